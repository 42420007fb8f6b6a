/*
Package metrics provides Prometheus metrics collection and exposition for pgbackup.

The metrics package defines and registers all pgbackup metrics using the
Prometheus client library, providing observability into catalogue state,
transfer throughput, codec performance, and control-socket activity.
Metrics are exposed via an HTTP endpoint for scraping by Prometheus
servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  │  - Automatic Go runtime metrics             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │              Metric Types                   │          │
	│  │                                              │          │
	│  │  Gauge: Instant values (backups by status)  │          │
	│  │  Counter: Monotonic increases (bytes moved) │          │
	│  │  Histogram: Distributions (backup duration) │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Catalogue: backups/servers gauges          │          │
	│  │  Transfer: bytes streamed, codec duration    │          │
	│  │  Control: request count, duration           │          │
	│  │  Orchestrator: backup/restore/verify time    │          │
	│  │  Retention: sweep duration, deleted count    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Format: Prometheus text exposition       │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Metric Registry:
  - Global Prometheus DefaultRegistry
  - All metrics registered at package init
  - Thread-safe for concurrent updates

Collector:
  - Ticker-driven refresh of catalogue-derived gauges every 15s
  - Start/Stop lifecycle, same shape as a health-check loop

Timer Helper:
  - Convenience wrapper for timing operations
  - Start timer, observe duration to histogram
  - Supports label values for histogram vectors

# Metrics Catalog

Catalogue Metrics:

pgbackup_backups_total{server, status}:
  - Type: Gauge
  - Description: Total backups by server and status (in-progress/valid/failed)
  - Example: pgbackup_backups_total{server="primary",status="valid"} 12

pgbackup_servers_total:
  - Type: Gauge
  - Description: Total number of configured servers

pgbackup_servers_online_total:
  - Type: Gauge
  - Description: Total number of servers currently reachable

Transfer Metrics:

pgbackup_bytes_streamed_total{server, operation}:
  - Type: Counter
  - Description: Bytes read from source files during backup/restore
  - Labels: server, operation ("backup"/"restore")

pgbackup_codec_duration_seconds{codec, operation}:
  - Type: Histogram
  - Description: Time spent in a codec's Step/Close calls
  - Labels: codec (gzip/zstd/lz4/bzip2/aes), operation (compress/decompress)

Control Metrics:

pgbackup_control_requests_total{command, status}:
  - Type: Counter
  - Description: Total control-socket requests by command and status

pgbackup_control_request_duration_seconds{command}:
  - Type: Histogram
  - Description: Control-socket request duration in seconds

Orchestrator Metrics:

pgbackup_backup_duration_seconds{server, kind}:
  - Type: Histogram
  - Description: Time to complete a backup workflow
  - Buckets: 1s to 1h, matching expected full/incremental run lengths

pgbackup_restore_duration_seconds{server}:
  - Type: Histogram
  - Description: Time to complete a restore workflow

pgbackup_verify_duration_seconds{server}:
  - Type: Histogram
  - Description: Time to verify a backup's manifest and checksums

pgbackup_backups_failed_total{server, stage}:
  - Type: Counter
  - Description: Total backup workflows that failed, by the stage that failed

Retention Metrics:

pgbackup_retention_duration_seconds:
  - Type: Histogram
  - Description: Retention sweep cycle duration

pgbackup_retention_cycles_total:
  - Type: Counter
  - Description: Total retention sweep cycles completed

pgbackup_retention_deleted_total{server}:
  - Type: Counter
  - Description: Total backups removed by retention, by server

WAL Metrics:

pgbackup_wal_segments_archived_total{server}:
  - Type: Counter
  - Description: Total WAL segments archived, by server

# Usage

Updating Gauge Metrics:

	import "github.com/cuemby/pgbackup/pkg/metrics"

	metrics.BackupsTotal.WithLabelValues("primary", "valid").Set(12)
	metrics.ServersOnline.Inc()

Updating Counter Metrics:

	metrics.BytesStreamed.WithLabelValues("primary", "backup").Add(float64(n))
	metrics.RetentionDeletedTotal.WithLabelValues("primary").Inc()

Recording Histogram Observations:

	timer := metrics.NewTimer()
	// ... run the backup workflow ...
	timer.ObserveDurationVec(metrics.BackupDuration, "primary", "full")

Complete Example:

	package main

	import (
		"net/http"
		"github.com/cuemby/pgbackup/pkg/metrics"
	)

	func main() {
		metrics.ServersTotal.Set(3)
		metrics.ServersOnline.Set(3)

		timer := metrics.NewTimer()
		runBackup()
		timer.ObserveDurationVec(metrics.BackupDuration, "primary", "full")

		http.Handle("/metrics", metrics.Handler())
		http.ListenAndServe(":9090", nil)
	}

	func runBackup() {}

# Integration Points

This package integrates with:

  - pkg/catalogue: Collector refreshes backup/server gauges
  - pkg/orchestrator: Records backup/restore/verify duration, bytes
    streamed, and per-codec duration
  - pkg/scheduler: Records retention sweep duration and cycle count
  - pkg/control: Instruments control-socket request count and duration
  - Prometheus: Scrapes /metrics endpoint

# Design Patterns

Package Init Registration:
  - All metrics registered in init() function
  - MustRegister panics on duplicate registration

Label Discipline:
  - Use WithLabelValues for cardinality-bounded labels (server name, status,
    codec name) — never backup labels or byte counts as label values

Timer Pattern:
  - Create timer at operation start
  - Call ObserveDuration/ObserveDurationVec at completion

# Monitoring

Prometheus Queries (PromQL):

Catalogue Health:
  - Total valid backups: sum(pgbackup_backups_total{status="valid"})
  - Failed backups: pgbackup_backups_total{status="failed"}
  - Servers offline: pgbackup_servers_total - pgbackup_servers_online_total

Backup Performance:
  - p95 backup duration: histogram_quantile(0.95, pgbackup_backup_duration_seconds_bucket)
  - Backup failure rate: rate(pgbackup_backups_failed_total[1h])
  - Throughput: rate(pgbackup_bytes_streamed_total[5m])

Retention Health:
  - Sweep rate: rate(pgbackup_retention_cycles_total[1h])
  - Backups pruned: rate(pgbackup_retention_deleted_total[1h])

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - Histogram best practices: https://prometheus.io/docs/practices/histograms/
*/
package metrics
