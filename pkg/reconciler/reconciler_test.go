package reconciler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/pgbackup/pkg/config"
	"github.com/cuemby/pgbackup/pkg/health"
)

// fakeChecker reports healthy unless told otherwise, for deterministic
// reconcile-loop assertions without real network I/O.
type fakeChecker struct {
	healthy atomic.Bool
}

func newFakeChecker(healthy bool) *fakeChecker {
	c := &fakeChecker{}
	c.healthy.Store(healthy)
	return c
}

func (c *fakeChecker) Check(ctx context.Context) health.Result {
	ok := c.healthy.Load()
	msg := "ok"
	if !ok {
		msg = "unreachable"
	}
	return health.Result{Healthy: ok, Message: msg, CheckedAt: time.Now()}
}

func (c *fakeChecker) Type() health.CheckType { return health.CheckTypeTCP }

func TestReconcilerMarksServerOnlineAfterSuccessfulCheck(t *testing.T) {
	server := config.NewServer(config.ServerConfig{Name: "pg1"})
	checker := newFakeChecker(true)

	r := New([]*config.Server{server}, func(*config.Server) health.Checker { return checker },
		health.Config{Interval: time.Second, Timeout: time.Second, Retries: 3})

	if server.Online() {
		t.Fatal("server should start offline")
	}

	r.reconcile()

	if !server.Online() {
		t.Fatal("server should be online after a successful check")
	}
}

func TestReconcilerMarksServerOfflineAfterRetriesExceeded(t *testing.T) {
	server := config.NewServer(config.ServerConfig{Name: "pg1"})
	server.SetOnline(true)
	checker := newFakeChecker(false)

	r := New([]*config.Server{server}, func(*config.Server) health.Checker { return checker },
		health.Config{Interval: time.Second, Timeout: time.Second, Retries: 2})

	r.reconcile()
	if !server.Online() {
		t.Fatal("one failed check should not yet mark the server offline")
	}

	r.reconcile()
	if server.Online() {
		t.Fatal("server should be offline after reaching the retry threshold")
	}
}

func TestReconcilerRecoversAfterSingleSuccess(t *testing.T) {
	server := config.NewServer(config.ServerConfig{Name: "pg1"})
	checker := newFakeChecker(false)

	r := New([]*config.Server{server}, func(*config.Server) health.Checker { return checker },
		health.Config{Interval: time.Second, Timeout: time.Second, Retries: 1})

	r.reconcile()
	if server.Online() {
		t.Fatal("server should be offline after the check fails")
	}

	checker.healthy.Store(true)
	r.reconcile()
	if !server.Online() {
		t.Fatal("server should be online again after a single successful check")
	}
}

func TestReconcilerTracksMultipleServersIndependently(t *testing.T) {
	pg1 := config.NewServer(config.ServerConfig{Name: "pg1"})
	pg2 := config.NewServer(config.ServerConfig{Name: "pg2"})
	healthyChecker := newFakeChecker(true)
	unhealthyChecker := newFakeChecker(false)

	r := New([]*config.Server{pg1, pg2}, func(s *config.Server) health.Checker {
		if s.Name == "pg1" {
			return healthyChecker
		}
		return unhealthyChecker
	}, health.Config{Interval: time.Second, Timeout: time.Second, Retries: 1})

	r.reconcile()

	if !pg1.Online() {
		t.Fatal("pg1 should be online")
	}
	if pg2.Online() {
		t.Fatal("pg2 should be offline")
	}
}

func TestReconcilerStartStop(t *testing.T) {
	server := config.NewServer(config.ServerConfig{Name: "pg1"})
	checker := newFakeChecker(true)

	r := New([]*config.Server{server}, func(*config.Server) health.Checker { return checker },
		health.Config{Interval: 10 * time.Millisecond, Timeout: time.Second, Retries: 1})

	r.Start()
	time.Sleep(50 * time.Millisecond)
	r.Stop()

	if !server.Online() {
		t.Fatal("server should have been marked online by the running loop")
	}
}
