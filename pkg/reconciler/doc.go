/*
Package reconciler runs the background loop that keeps pgbackup's
per-server reachability state current.

Each configured PostgreSQL server carries an atomic online flag
(config.Server.Online/SetOnline) that orchestrator.Retention consults
before a retention sweep and the control surface's STATUS command
reports; backup, restore, and delete do not check it. The reconciler
is what keeps that flag honest: it polls a
pkg/health checker for every server on a fixed interval and flips the
flag when reachability changes, applying hysteresis so a single dropped
packet doesn't take a server offline.

# Architecture

The reconciler runs on a fixed interval (configurable, default 15
seconds), checking every configured server each cycle:

	┌────────────────────────────────────────────────────────────┐
	│                  Health Check Loop                         │
	│                (default: every 15 seconds)                 │
	└────────────────┬───────────────────────────────────────────┘
	                 │
	    ┌────────────┴────────────┐
	    │                         │
	    ▼                         ▼
	┌─────────────────┐   ┌──────────────────┐
	│   Server pg1     │   │   Server pg2     │
	│  health.Checker  │   │  health.Checker  │
	└─────┬───────────┘   └──────┬───────────┘
	      │                      │
	      ▼                      ▼
	  Update health.Status   Update health.Status
	  (hysteresis)           (hysteresis)
	      │                      │
	      ▼                      ▼
	  config.Server          config.Server
	  .SetOnline(bool)       .SetOnline(bool)

# Failure Detection

## Server Unreachability

Each server has its own health.Status tracking consecutive failures.
A server flips offline only after health.Config.Retries consecutive
failed checks — by default 3 — so a single lost TCP connection attempt
doesn't make the retention sweep skip the server:

	Check 1: fail → ConsecutiveFailures=1, still online
	Check 2: fail → ConsecutiveFailures=2, still online
	Check 3: fail → ConsecutiveFailures=3 >= Retries(3), marked offline

A single successful check immediately marks the server online again,
since recovering reachability is never something worth being
conservative about.

## Downstream Effects

When a server flips offline:

  - pkg/orchestrator.Retention returns ErrOffline immediately, so the
    retention sweep skips the server (Delete does not check the flag)
  - pkg/metrics.ServersOnline (refreshed separately by
    pkg/metrics.Collector) reflects the new count
  - pkg/metrics.ServerStatusChangesTotal records the transition

# Usage

	import (
		"time"

		"github.com/cuemby/pgbackup/pkg/config"
		"github.com/cuemby/pgbackup/pkg/health"
		"github.com/cuemby/pgbackup/pkg/reconciler"
	)

	func startHealthMonitor(servers []*config.Server) *reconciler.Reconciler {
		r := reconciler.New(servers, func(s *config.Server) health.Checker {
			return health.NewTCPChecker(fmt.Sprintf("%s:%d", s.Host, s.Port))
		}, health.Config{
			Interval: 15 * time.Second,
			Timeout:  5 * time.Second,
			Retries:  3,
		})
		r.Start()
		return r
	}

	// On shutdown:
	// r.Stop()

# Integration Points

This package integrates with:

  - pkg/config: reads/writes config.Server's online flag
  - pkg/health: supplies the Checker implementation and Status hysteresis
  - pkg/metrics: records sweep duration, cycle count, and status flips
  - pkg/orchestrator: Retention consults the flag this package sets

# Design Patterns

Ticker-Driven Loop:
  - A single goroutine wakes on a time.Ticker and sweeps all servers
  - Stop() closes a channel the loop selects on, for clean shutdown

Per-Server Status:
  - Each server gets its own health.Status so one flaky server's
    failure streak never affects another server's online flag

# See Also

  - pkg/health - Checker implementations and hysteresis logic
  - pkg/config - Server.Online()/SetOnline()
  - pkg/orchestrator - consumers of the online flag
*/
package reconciler
