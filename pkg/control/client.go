package control

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client is a thin wrapper around a Unix-domain connection to a
// control socket, offering one method per command the way
// test/framework/client.go wraps a generated RPC client with
// convenience methods — here over the length-prefixed JSON wire
// format instead of gRPC.
type Client struct {
	conn net.Conn
	mu   sync.Mutex
}

// Dial connects to the control socket at socketPath.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("control: dial %s: %w", socketPath, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call sends req and reads back a single Response. Callers of
// streaming commands should use stream instead.
func (c *Client) call(command Command, args map[string]interface{}) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := Request{ID: uuid.NewString(), Command: command, Arguments: args}
	if err := writeFrame(c.conn, req); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := readFrame(c.conn, &resp); err != nil {
		return Response{}, err
	}
	if !resp.Outcome {
		return resp, fmt.Errorf("control: %s: %s", command, resp.Error)
	}
	return resp, nil
}

// stream sends req and reads back Responses until one arrives with
// Final set, invoking fn on each non-final Response.
func (c *Client) stream(command Command, args map[string]interface{}, fn func(Response) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := Request{ID: uuid.NewString(), Command: command, Arguments: args}
	if err := writeFrame(c.conn, req); err != nil {
		return err
	}
	for {
		var resp Response
		if err := readFrame(c.conn, &resp); err != nil {
			return err
		}
		if !resp.Outcome {
			return fmt.Errorf("control: %s: %s", command, resp.Error)
		}
		if resp.Final {
			return nil
		}
		if err := fn(resp); err != nil {
			return err
		}
	}
}

// IsAlive pings the daemon.
func (c *Client) IsAlive() error {
	_, err := c.call(CommandIsAlive, nil)
	return err
}

// Backup requests a backup of server, optionally incremental against
// parentLabel.
func (c *Client) Backup(server, kind, parentLabel, sourceDir, compression, encryption string) (Response, error) {
	return c.call(CommandBackup, map[string]interface{}{
		"server":       server,
		"kind":         kind,
		"parent_label": parentLabel,
		"source_dir":   sourceDir,
		"compression":  compression,
		"encryption":   encryption,
	})
}

// Restore requests a restore of server/label into destination.
func (c *Client) Restore(server, label, destination string) (Response, error) {
	return c.call(CommandRestore, map[string]interface{}{
		"server":      server,
		"label":       label,
		"destination": destination,
	})
}

// Delete requests deletion of server/label.
func (c *Client) Delete(server, label string) (Response, error) {
	return c.call(CommandDelete, map[string]interface{}{"server": server, "label": label})
}

// ListBackups streams every backup registered for server, invoking fn
// once per backup.
func (c *Client) ListBackups(server string, fn func(Response) error) error {
	return c.stream(CommandListBackup, map[string]interface{}{"server": server}, fn)
}

// Status queries reachability for server, or every server if server is "".
func (c *Client) Status(server string) (Response, error) {
	return c.call(CommandStatus, map[string]interface{}{"server": server})
}

// Details retrieves one backup's catalogue entry.
func (c *Client) Details(server, label string) (Response, error) {
	return c.call(CommandDetails, map[string]interface{}{"server": server, "label": label})
}

// Stop asks the daemon to shut down.
func (c *Client) Stop() error {
	_, err := c.call(CommandStop, nil)
	return err
}

// Reset clears server's repository lock.
func (c *Client) Reset(server string) error {
	_, err := c.call(CommandReset, map[string]interface{}{"server": server})
	return err
}

// Reload asks the daemon to reload its configuration.
func (c *Client) Reload() error {
	_, err := c.call(CommandReload, nil)
	return err
}
