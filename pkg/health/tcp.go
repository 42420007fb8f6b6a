package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker confirms a server's Postgres port is listening and
// accepting connections. It is the cheapest reachability signal pgbackup
// has, and the one the reconciler uses by default for every configured
// server: a dial that completes says nothing about query readiness, but
// a dial that fails is a definitive "don't schedule backups here".
type TCPChecker struct {
	// Address is host:port for the server's Postgres listener.
	Address string

	// Timeout bounds the dial (default: 5 seconds).
	Timeout time.Duration
}

// NewTCPChecker returns a TCPChecker dialing address with a 5s timeout.
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address: address,
		Timeout: 5 * time.Second,
	}
}

// NewServerChecker builds the TCPChecker the reconciler wires up for one
// configured server, dialing host:port from its config.
func NewServerChecker(host string, port int) *TCPChecker {
	return NewTCPChecker(fmt.Sprintf("%s:%d", host, port))
}

// Check dials the address once and reports whether the connection
// succeeded; it sends no bytes and does not wait for a Postgres
// handshake.
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{Timeout: t.Timeout}

	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("dial %s: %v", t.Address, err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer conn.Close()

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("%s accepted a connection", t.Address),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type reports CheckTypeTCP.
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}

// WithTimeout overrides the dial timeout.
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
