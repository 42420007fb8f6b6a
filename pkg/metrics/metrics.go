package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Catalogue metrics
	BackupsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pgbackup_backups_total",
			Help: "Total number of backups by server and status",
		},
		[]string{"server", "status"},
	)

	ServersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgbackup_servers_total",
			Help: "Total number of configured servers",
		},
	)

	ServersOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pgbackup_servers_online_total",
			Help: "Total number of servers currently reachable",
		},
	)

	// Transfer metrics
	BytesStreamed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgbackup_bytes_streamed_total",
			Help: "Total bytes read from source files during backup/restore",
		},
		[]string{"server", "operation"},
	)

	// Codec metrics
	CodecDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgbackup_codec_duration_seconds",
			Help:    "Time spent in a codec's Step/Close calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"codec", "operation"},
	)

	// Control-socket metrics
	ControlRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgbackup_control_requests_total",
			Help: "Total number of control-socket requests by command and status",
		},
		[]string{"command", "status"},
	)

	ControlRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgbackup_control_request_duration_seconds",
			Help:    "Control-socket request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// Orchestrator operation metrics
	BackupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgbackup_backup_duration_seconds",
			Help:    "Time taken to complete a backup workflow in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		},
		[]string{"server", "kind"},
	)

	RestoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgbackup_restore_duration_seconds",
			Help:    "Time taken to complete a restore workflow in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
		},
		[]string{"server"},
	)

	VerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgbackup_verify_duration_seconds",
			Help:    "Time taken to verify a backup's manifest and checksums in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server"},
	)

	BackupsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgbackup_backups_failed_total",
			Help: "Total number of backup workflows that failed",
		},
		[]string{"server", "stage"},
	)

	// Retention metrics
	RetentionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pgbackup_retention_duration_seconds",
			Help:    "Time taken for a retention sweep cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RetentionCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pgbackup_retention_cycles_total",
			Help: "Total number of retention sweep cycles completed",
		},
	)

	RetentionDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgbackup_retention_deleted_total",
			Help: "Total number of backups removed by retention by server",
		},
		[]string{"server"},
	)

	// WAL metrics
	WALSegmentsArchived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgbackup_wal_segments_archived_total",
			Help: "Total number of WAL segments archived by server",
		},
		[]string{"server"},
	)

	// Health monitor metrics
	HealthCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pgbackup_health_check_duration_seconds",
			Help:    "Time taken for one health-check sweep over all configured servers",
			Buckets: prometheus.DefBuckets,
		},
	)

	HealthCheckCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pgbackup_health_check_cycles_total",
			Help: "Total number of health-check sweep cycles completed",
		},
	)

	ServerStatusChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgbackup_server_status_changes_total",
			Help: "Total number of times a server's online/offline status flipped",
		},
		[]string{"server", "status"},
	)
)

func init() {
	prometheus.MustRegister(BackupsTotal)
	prometheus.MustRegister(ServersTotal)
	prometheus.MustRegister(ServersOnline)
	prometheus.MustRegister(BytesStreamed)
	prometheus.MustRegister(CodecDuration)
	prometheus.MustRegister(ControlRequestsTotal)
	prometheus.MustRegister(ControlRequestDuration)
	prometheus.MustRegister(BackupDuration)
	prometheus.MustRegister(RestoreDuration)
	prometheus.MustRegister(VerifyDuration)
	prometheus.MustRegister(BackupsFailedTotal)
	prometheus.MustRegister(RetentionDuration)
	prometheus.MustRegister(RetentionCyclesTotal)
	prometheus.MustRegister(RetentionDeletedTotal)
	prometheus.MustRegister(WALSegmentsArchived)
	prometheus.MustRegister(HealthCheckDuration)
	prometheus.MustRegister(HealthCheckCyclesTotal)
	prometheus.MustRegister(ServerStatusChangesTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
