// Package scheduler runs the periodic retention sweep that prunes expired
// backups for every configured server.
package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/pgbackup/pkg/catalogue"
	"github.com/cuemby/pgbackup/pkg/config"
	"github.com/cuemby/pgbackup/pkg/log"
	"github.com/cuemby/pgbackup/pkg/metrics"
	"github.com/cuemby/pgbackup/pkg/orchestrator"
	"github.com/cuemby/pgbackup/pkg/types"
)

// Scheduler runs orchestrator.Retention against every configured server on
// a fixed interval, skipping servers that are offline or whose repository
// lock is already held by another Retention run.
type Scheduler struct {
	cat      *catalogue.Catalogue
	servers  []*config.Server
	policies map[string]types.RetentionPolicy
	interval time.Duration
	logger   zerolog.Logger
	mu       sync.RWMutex
	stopCh   chan struct{}
}

// New builds a Scheduler. policies maps server name to the retention
// policy applied to it; a server with no entry is skipped by the sweep.
func New(cat *catalogue.Catalogue, servers []*config.Server, policies map[string]types.RetentionPolicy, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		cat:      cat,
		servers:  servers,
		policies: policies,
		interval: interval,
		logger:   log.WithComponent("scheduler"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the retention-sweep loop.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// run is the main scheduler loop.
func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep runs one retention cycle across all configured servers.
func (s *Scheduler) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.RetentionDuration)
		metrics.RetentionCyclesTotal.Inc()
	}()

	for _, server := range s.servers {
		policy, ok := s.policies[server.Name]
		if !ok {
			continue
		}
		s.sweepServer(server, policy)
	}
}

// sweepServer applies one server's retention policy, logging but not
// propagating errors so one failing server never blocks the rest of the
// cycle.
func (s *Scheduler) sweepServer(server *config.Server, policy types.RetentionPolicy) {
	if err := orchestrator.Retention(server, s.cat, policy); err != nil {
		switch err {
		case orchestrator.ErrOffline:
			s.logger.Debug().Str("server", server.Name).Msg("skipping retention sweep, server offline")
		case orchestrator.ErrLocked:
			s.logger.Debug().Str("server", server.Name).Msg("skipping retention sweep, repository locked")
		default:
			s.logger.Error().Err(err).Str("server", server.Name).Msg("retention sweep failed")
		}
		return
	}

	s.logger.Info().Str("server", server.Name).Msg("retention sweep completed")
}
