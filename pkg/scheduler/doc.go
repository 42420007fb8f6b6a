/*
Package scheduler runs the periodic retention sweep that prunes expired
backups for every configured PostgreSQL server.

Backups accumulate over time; without pruning, a server's backup
directory and catalogue would grow without bound. The scheduler applies
each server's types.RetentionPolicy on a fixed interval by calling
pkg/orchestrator.Retention, which computes the set of backups eligible
for deletion (outside the keep-count/keep-for window, with no live
children) and removes them.

# Architecture

The scheduler runs on a fixed interval (configurable, commonly once per
hour), sweeping every configured server each cycle:

	┌────────────────────────────────────────────────────────────┐
	│                  Retention Sweep Loop                      │
	│                (default: every hour)                       │
	└────────────────┬───────────────────────────────────────────┘
	                 │
	    ┌────────────┴────────────┐
	    │                         │
	    ▼                         ▼
	┌─────────────────┐   ┌──────────────────┐
	│   Server pg1     │   │   Server pg2     │
	│ orchestrator.    │   │ orchestrator.    │
	│ Retention(...)   │   │ Retention(...)   │
	└─────┬───────────┘   └──────┬───────────┘
	      │                      │
	      ▼                      ▼
	  Skip if offline        Skip if offline
	  or already locked      or already locked
	      │                      │
	      ▼                      ▼
	  Delete eligible        Delete eligible
	  backups                backups

# Retention Policy

Each server's types.RetentionPolicy bounds what is kept:

	KeepCount: keep at least this many most-recent valid backups;
	           values below 1 count as 1
	KeepFor:   keep backups newer than this duration, 0 = unbounded

A server with no policy entry in the scheduler's policy map is left
untouched — the sweep is opt-in per server, not a global default.

# Failure Handling

orchestrator.Retention returns two sentinel errors the scheduler treats
as expected, not logged as failures:

  - ErrOffline: the server's health monitor (pkg/reconciler) currently
    reports it unreachable
  - ErrLocked: another retention run already holds the server's
    repository lock

Any other error is logged and the sweep moves on to the next server —
one server's retention failure never blocks another's.

# Usage

	import (
		"time"

		"github.com/cuemby/pgbackup/pkg/catalogue"
		"github.com/cuemby/pgbackup/pkg/config"
		"github.com/cuemby/pgbackup/pkg/scheduler"
		"github.com/cuemby/pgbackup/pkg/types"
	)

	func startRetentionSweep(cat *catalogue.Catalogue, servers []*config.Server) *scheduler.Scheduler {
		policies := map[string]types.RetentionPolicy{
			"primary": {KeepCount: 7},
		}
		s := scheduler.New(cat, servers, policies, time.Hour)
		s.Start()
		return s
	}

	// On shutdown:
	// s.Stop()

# Integration Points

This package integrates with:

  - pkg/orchestrator: Retention is the operation this package schedules
  - pkg/config: reads Server.Online()/TryLockRepository() indirectly
    through orchestrator.Retention
  - pkg/metrics: records sweep duration and cycle count
  - pkg/reconciler: the online flag this package's skip logic honors is
    maintained by the health monitor, not by this package

# Design Patterns

Ticker-Driven Loop:
  - Same shape as pkg/reconciler's health-check loop: a goroutine
    wakes on a time.Ticker and sweeps, Stop() closes a channel for
    clean shutdown

Per-Server Opt-In:
  - The policy map, not the server list, decides which servers are
    swept — a server can be configured for backups without retention

# See Also

  - pkg/orchestrator - Retention and its ErrOffline/ErrLocked sentinels
  - pkg/types - RetentionPolicy
  - pkg/reconciler - maintains the online flag this package relies on
*/
package scheduler
