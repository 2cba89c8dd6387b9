package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dray-io/auditvault/internal/archival"
)

// ArchivalMetrics holds metrics related to hot to cold tier migration.
// It implements archival.MetricsRecorder.
type ArchivalMetrics struct {
	// RunsTotal counts archival runs by status.
	RunsTotal *prometheus.CounterVec

	// RunDuration tracks how long runs take.
	RunDuration prometheus.Histogram

	// RecordsArchivedTotal counts migrated records by record type.
	RecordsArchivedTotal *prometheus.CounterVec

	// BytesArchivedTotal counts migrated bytes.
	BytesArchivedTotal prometheus.Counter

	// RecordsFailedTotal counts records left hot after a failed move.
	RecordsFailedTotal *prometheus.CounterVec

	// LockContentionTotal counts runs refused because the tenant lock was held.
	LockContentionTotal prometheus.Counter
}

// DefaultArchivalRunBuckets are duration buckets for archival runs, which
// scan whole tenants and range from seconds to hours.
var DefaultArchivalRunBuckets = []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200}

func newArchivalMetrics(f promauto.Factory) *ArchivalMetrics {
	return &ArchivalMetrics{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auditvault",
				Subsystem: "archival",
				Name:      "runs_total",
				Help:      "Total number of archival runs, broken down by status.",
			},
			[]string{"status"},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "auditvault",
				Subsystem: "archival",
				Name:      "run_duration_seconds",
				Help:      "Duration of archival runs in seconds.",
				Buckets:   DefaultArchivalRunBuckets,
			},
		),
		RecordsArchivedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auditvault",
				Subsystem: "archival",
				Name:      "records_archived_total",
				Help:      "Total number of records moved to the cold tier, by record type.",
			},
			[]string{"record_type"},
		),
		BytesArchivedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "auditvault",
				Subsystem: "archival",
				Name:      "bytes_archived_total",
				Help:      "Total bytes moved to the cold tier.",
			},
		),
		RecordsFailedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auditvault",
				Subsystem: "archival",
				Name:      "records_failed_total",
				Help:      "Total number of records that failed to move, by record type.",
			},
			[]string{"record_type"},
		),
		LockContentionTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "auditvault",
				Subsystem: "archival",
				Name:      "lock_contention_total",
				Help:      "Total number of runs refused because another archiver held the tenant lock.",
			},
		),
	}
}

// NewArchivalMetrics creates and registers archival metrics.
// Uses promauto for automatic registration with the default registry.
func NewArchivalMetrics() *ArchivalMetrics {
	return newArchivalMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewArchivalMetricsWithRegistry creates archival metrics registered with a custom registry.
func NewArchivalMetricsWithRegistry(reg prometheus.Registerer) *ArchivalMetrics {
	return newArchivalMetrics(promauto.With(reg))
}

// RecordRun records a finished run.
func (m *ArchivalMetrics) RecordRun(durationSeconds float64, success bool) {
	m.RunsTotal.WithLabelValues(statusLabel(success)).Inc()
	m.RunDuration.Observe(durationSeconds)
}

// RecordArchived records one migrated record.
func (m *ArchivalMetrics) RecordArchived(recordType string, bytes int64) {
	m.RecordsArchivedTotal.WithLabelValues(recordType).Inc()
	if bytes > 0 {
		m.BytesArchivedTotal.Add(float64(bytes))
	}
}

// RecordFailed records one record that failed to move.
func (m *ArchivalMetrics) RecordFailed(recordType string) {
	m.RecordsFailedTotal.WithLabelValues(recordType).Inc()
}

// RecordLockContention records a run refused by the tenant lock.
func (m *ArchivalMetrics) RecordLockContention() {
	m.LockContentionTotal.Inc()
}

var _ archival.MetricsRecorder = (*ArchivalMetrics)(nil)
