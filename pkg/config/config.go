// Package config loads pgbackup's YAML configuration file and holds the
// per-server runtime flags consulted by the orchestrator and health monitor.
package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document, normally loaded from
// /etc/pgbackup/pgbackup.yaml.
type Config struct {
	BaseDir        string           `yaml:"base_dir"`
	UnixSocketDir  string           `yaml:"unix_socket_dir"`
	Logging        LoggingConfig    `yaml:"logging"`
	Metrics        MetricsConfig    `yaml:"metrics"`
	WorkerPoolSize int              `yaml:"worker_pool_size"`
	Retention      RetentionConfig  `yaml:"retention"`
	Servers        []ServerConfig   `yaml:"servers"`
}

// LoggingConfig configures pkg/log.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// RetentionConfig configures the periodic retention sweep.
type RetentionConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	KeepCount       int `yaml:"keep_count"`
	KeepForDays     int `yaml:"keep_for_days"`
}

// ServerConfig describes one PostgreSQL server pgbackup takes backups of.
type ServerConfig struct {
	Name        string `yaml:"name"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Compression string `yaml:"compression"`
	Encryption  string `yaml:"encryption"`
	WALSlot     string `yaml:"wal_slot"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 2
	}
	if cfg.UnixSocketDir == "" {
		cfg.UnixSocketDir = "/tmp"
	}

	return &cfg, nil
}

// Server is the runtime state pgbackup tracks for one configured server,
// including the two atomic flags the orchestrator and health monitor
// coordinate through (spec.md §5): online reflects reachability, repository
// guards mutually-exclusive retention/delete operations.
type Server struct {
	Name        string
	Host        string
	Port        int
	User        string
	Compression string
	Encryption  string
	WALSlot     string

	online     atomic.Bool
	repository atomic.Bool
}

// NewServer builds a Server from its static configuration. It starts
// offline until the health monitor confirms reachability.
func NewServer(sc ServerConfig) *Server {
	return &Server{
		Name:        sc.Name,
		Host:        sc.Host,
		Port:        sc.Port,
		User:        sc.User,
		Compression: sc.Compression,
		Encryption:  sc.Encryption,
		WALSlot:     sc.WALSlot,
	}
}

// Online reports whether the last health check succeeded.
func (s *Server) Online() bool { return s.online.Load() }

// SetOnline updates the reachability flag.
func (s *Server) SetOnline(v bool) { s.online.Store(v) }

// TryLockRepository acquires the exclusive repository lock used by
// retention and delete operations, returning false if already held.
func (s *Server) TryLockRepository() bool {
	return s.repository.CompareAndSwap(false, true)
}

// UnlockRepository releases the repository lock.
func (s *Server) UnlockRepository() {
	s.repository.Store(false)
}
