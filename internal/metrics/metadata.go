package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dray-io/auditvault/internal/metadata"
)

// MetadataMetrics holds metrics related to metadata store operations
// (policies and archival locks). It implements metadata.MetricsRecorder.
type MetadataMetrics struct {
	// LatencyHistogram tracks operation latencies broken down by operation type and status.
	// Labels: operation (get, put, delete, list, put_ephemeral), status (success, failure)
	LatencyHistogram *prometheus.HistogramVec

	// RequestsTotal tracks total operations by operation type and status.
	RequestsTotal *prometheus.CounterVec

	// ConflictsTotal counts conditional writes rejected on a version mismatch.
	ConflictsTotal *prometheus.CounterVec
}

// Metadata operation type label values.
const (
	OpGet          = "get"
	OpPut          = "put"
	OpDelete       = "delete"
	OpList         = "list"
	OpPutEphemeral = "put_ephemeral"
)

// DefaultMetadataLatencyBuckets are latency buckets for metadata operations.
// Optimized for metadata operations which are typically fast (sub-ms to tens of ms).
var DefaultMetadataLatencyBuckets = []float64{
	0.0001, // 0.1ms
	0.0005, // 0.5ms
	0.001,  // 1ms
	0.002,  // 2ms
	0.005,  // 5ms
	0.01,   // 10ms
	0.025,  // 25ms
	0.05,   // 50ms
	0.1,    // 100ms
	0.25,   // 250ms
	0.5,    // 500ms
	1.0,    // 1s
	2.5,    // 2.5s
	5.0,    // 5s
}

func newMetadataMetrics(f promauto.Factory) *MetadataMetrics {
	return &MetadataMetrics{
		LatencyHistogram: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "auditvault",
				Subsystem: "metadata",
				Name:      "operation_latency_seconds",
				Help:      "Metadata operation latency in seconds, broken down by operation type and status.",
				Buckets:   DefaultMetadataLatencyBuckets,
			},
			[]string{"operation", "status"},
		),
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auditvault",
				Subsystem: "metadata",
				Name:      "operations_total",
				Help:      "Total number of metadata operations, broken down by operation type and status.",
			},
			[]string{"operation", "status"},
		),
		ConflictsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auditvault",
				Subsystem: "metadata",
				Name:      "version_conflicts_total",
				Help:      "Total number of conditional writes rejected by a version mismatch, by operation type.",
			},
			[]string{"operation"},
		),
	}
}

// NewMetadataMetrics creates and registers metadata metrics.
// Uses promauto for automatic registration with the default registry.
func NewMetadataMetrics() *MetadataMetrics {
	return newMetadataMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewMetadataMetricsWithRegistry creates metadata metrics registered with a custom registry.
// Useful for testing to avoid conflicts with the default registry.
func NewMetadataMetricsWithRegistry(reg prometheus.Registerer) *MetadataMetrics {
	return newMetadataMetrics(promauto.With(reg))
}

// RecordOperation records an operation latency and increments the request counter.
func (m *MetadataMetrics) RecordOperation(operation string, durationSeconds float64, success bool) {
	status := statusLabel(success)
	m.LatencyHistogram.WithLabelValues(operation, status).Observe(durationSeconds)
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordGet records a Get operation.
func (m *MetadataMetrics) RecordGet(durationSeconds float64, success bool) {
	m.RecordOperation(OpGet, durationSeconds, success)
}

// RecordPut records a Put operation.
func (m *MetadataMetrics) RecordPut(durationSeconds float64, success bool) {
	m.RecordOperation(OpPut, durationSeconds, success)
}

// RecordDelete records a Delete operation.
func (m *MetadataMetrics) RecordDelete(durationSeconds float64, success bool) {
	m.RecordOperation(OpDelete, durationSeconds, success)
}

// RecordList records a List operation.
func (m *MetadataMetrics) RecordList(durationSeconds float64, success bool) {
	m.RecordOperation(OpList, durationSeconds, success)
}

// RecordPutEphemeral records a PutEphemeral operation.
func (m *MetadataMetrics) RecordPutEphemeral(durationSeconds float64, success bool) {
	m.RecordOperation(OpPutEphemeral, durationSeconds, success)
}

// RecordConflict records a version conflict for operation.
func (m *MetadataMetrics) RecordConflict(operation string) {
	m.ConflictsTotal.WithLabelValues(operation).Inc()
}

var _ metadata.MetricsRecorder = (*MetadataMetrics)(nil)
