// Package reconciler runs the periodic health-check loop that keeps each
// configured server's online flag in sync with reality.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/pgbackup/pkg/config"
	"github.com/cuemby/pgbackup/pkg/health"
	"github.com/cuemby/pgbackup/pkg/log"
	"github.com/cuemby/pgbackup/pkg/metrics"
)

// Reconciler polls every configured server's health checker on a fixed
// interval and flips config.Server's online flag when reachability
// changes, so the orchestrator and control surface can fail fast against
// an unreachable server instead of hanging.
type Reconciler struct {
	servers  []*config.Server
	checkers map[string]health.Checker
	statuses map[string]*health.Status
	config   health.Config
	logger   zerolog.Logger
	mu       sync.RWMutex
	stopCh   chan struct{}
}

// New builds a Reconciler for the given servers. checkerFor constructs the
// health.Checker used for one server; callers typically pass a closure
// building a health.TCPChecker against server.Host:Port.
func New(servers []*config.Server, checkerFor func(*config.Server) health.Checker, cfg health.Config) *Reconciler {
	checkers := make(map[string]health.Checker, len(servers))
	statuses := make(map[string]*health.Status, len(servers))
	for _, s := range servers {
		checkers[s.Name] = checkerFor(s)
		statuses[s.Name] = health.NewStatus()
	}

	return &Reconciler{
		servers:  servers,
		checkers: checkers,
		statuses: statuses,
		config:   cfg,
		logger:   log.WithComponent("reconciler"),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the reconciliation loop.
func (r *Reconciler) Start() {
	go r.run()
}

// Stop stops the reconciler.
func (r *Reconciler) Stop() {
	close(r.stopCh)
}

// run is the main reconciliation loop.
func (r *Reconciler) run() {
	interval := r.config.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info().Msg("health monitor started")

	for {
		select {
		case <-ticker.C:
			r.reconcile()
		case <-r.stopCh:
			r.logger.Info().Msg("health monitor stopped")
			return
		}
	}
}

// reconcile runs one health-check sweep over all configured servers.
func (r *Reconciler) reconcile() {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.HealthCheckDuration)
		metrics.HealthCheckCyclesTotal.Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.servers {
		if err := r.reconcileServer(s); err != nil {
			r.logger.Error().Err(err).Str("server", s.Name).Msg("health check failed to run")
		}
	}
}

// reconcileServer checks one server and updates its online flag on a
// status transition.
func (r *Reconciler) reconcileServer(s *config.Server) error {
	checker, ok := r.checkers[s.Name]
	if !ok {
		return fmt.Errorf("no checker configured for server %q", s.Name)
	}

	timeout := r.config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result := checker.Check(ctx)

	status := r.statuses[s.Name]
	wasHealthy := s.Online()
	status.Update(result, r.config)
	s.SetOnline(status.Healthy)

	if status.Healthy != wasHealthy {
		label := "offline"
		if status.Healthy {
			label = "online"
		}
		metrics.ServerStatusChangesTotal.WithLabelValues(s.Name, label).Inc()

		if status.Healthy {
			r.logger.Info().Str("server", s.Name).Msg("server is reachable again, marking online")
		} else {
			r.logger.Warn().
				Str("server", s.Name).
				Int("consecutive_failures", status.ConsecutiveFailures).
				Str("message", result.Message).
				Msg("server unreachable, marking offline")
		}
	}

	return nil
}
