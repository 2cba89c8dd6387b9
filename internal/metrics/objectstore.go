package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dray-io/auditvault/internal/objectstore"
)

// ObjectStoreMetrics holds metrics related to object store operations.
// It implements objectstore.MetricsRecorder.
type ObjectStoreMetrics struct {
	// LatencyHistogram tracks operation latencies by operation and status.
	// Labels: operation (put, get, head, delete, list, copy, restore), status (success, failure)
	LatencyHistogram *prometheus.HistogramVec

	// RequestsTotal tracks total operations by operation and status.
	RequestsTotal *prometheus.CounterVec

	// BytesTotal tracks bytes transferred by direction.
	// Labels: direction (read, write)
	BytesTotal *prometheus.CounterVec

	// ListedObjectsTotal counts objects returned by list pages.
	ListedObjectsTotal prometheus.Counter

	// CopiesTotal counts successful copies by destination storage class.
	CopiesTotal *prometheus.CounterVec
}

// Object store operation label values.
const (
	OpObjPut     = "put"
	OpObjGet     = "get"
	OpObjHead    = "head"
	OpObjDelete  = "delete"
	OpObjList    = "list"
	OpObjCopy    = "copy"
	OpObjRestore = "restore"
)

// Bytes direction label values.
const (
	DirectionRead  = "read"
	DirectionWrite = "write"
)

// DefaultObjectStoreLatencyBuckets are latency buckets for object store operations.
// Optimized for S3/GCS operations which typically range from tens of ms to seconds.
var DefaultObjectStoreLatencyBuckets = []float64{
	0.001,  // 1ms
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
	10.0,   // 10s
	30.0,   // 30s
	60.0,   // 60s
}

func newObjectStoreMetrics(f promauto.Factory) *ObjectStoreMetrics {
	return &ObjectStoreMetrics{
		LatencyHistogram: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "auditvault",
				Subsystem: "objectstore",
				Name:      "operation_latency_seconds",
				Help:      "Object store operation latency in seconds, broken down by operation and status.",
				Buckets:   DefaultObjectStoreLatencyBuckets,
			},
			[]string{"operation", "status"},
		),
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auditvault",
				Subsystem: "objectstore",
				Name:      "operations_total",
				Help:      "Total number of object store operations, broken down by operation and status.",
			},
			[]string{"operation", "status"},
		),
		BytesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auditvault",
				Subsystem: "objectstore",
				Name:      "bytes_total",
				Help:      "Total bytes transferred by direction (read/write).",
			},
			[]string{"direction"},
		),
		ListedObjectsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "auditvault",
				Subsystem: "objectstore",
				Name:      "listed_objects_total",
				Help:      "Total number of objects returned by list pages.",
			},
		),
		CopiesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auditvault",
				Subsystem: "objectstore",
				Name:      "copies_total",
				Help:      "Total number of successful server-side copies by destination storage class.",
			},
			[]string{"storage_class"},
		),
	}
}

// NewObjectStoreMetrics creates and registers object store metrics.
// Uses promauto for automatic registration with the default registry.
func NewObjectStoreMetrics() *ObjectStoreMetrics {
	return newObjectStoreMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewObjectStoreMetricsWithRegistry creates object store metrics registered with a custom registry.
// Useful for testing to avoid conflicts with the default registry.
func NewObjectStoreMetricsWithRegistry(reg prometheus.Registerer) *ObjectStoreMetrics {
	return newObjectStoreMetrics(promauto.With(reg))
}

// RecordOperation records an operation latency and increments the request counter.
func (m *ObjectStoreMetrics) RecordOperation(operation string, durationSeconds float64, success bool) {
	status := statusLabel(success)
	m.LatencyHistogram.WithLabelValues(operation, status).Observe(durationSeconds)
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
}

// RecordPut records a Put operation.
func (m *ObjectStoreMetrics) RecordPut(durationSeconds float64, success bool, bytes int64) {
	m.RecordOperation(OpObjPut, durationSeconds, success)
	if success && bytes > 0 {
		m.BytesTotal.WithLabelValues(DirectionWrite).Add(float64(bytes))
	}
}

// RecordGet records a Get operation.
func (m *ObjectStoreMetrics) RecordGet(durationSeconds float64, success bool, bytes int64) {
	m.RecordOperation(OpObjGet, durationSeconds, success)
	if success && bytes > 0 {
		m.BytesTotal.WithLabelValues(DirectionRead).Add(float64(bytes))
	}
}

// RecordHead records a Head operation.
func (m *ObjectStoreMetrics) RecordHead(durationSeconds float64, success bool) {
	m.RecordOperation(OpObjHead, durationSeconds, success)
}

// RecordDelete records a Delete operation.
func (m *ObjectStoreMetrics) RecordDelete(durationSeconds float64, success bool) {
	m.RecordOperation(OpObjDelete, durationSeconds, success)
}

// RecordList records one list page.
func (m *ObjectStoreMetrics) RecordList(durationSeconds float64, success bool, objects int) {
	m.RecordOperation(OpObjList, durationSeconds, success)
	if success && objects > 0 {
		m.ListedObjectsTotal.Add(float64(objects))
	}
}

// RecordCopy records a server-side copy into class.
func (m *ObjectStoreMetrics) RecordCopy(durationSeconds float64, success bool, class objectstore.StorageClass) {
	m.RecordOperation(OpObjCopy, durationSeconds, success)
	if success {
		if class == "" {
			class = objectstore.StorageClassStandard
		}
		m.CopiesTotal.WithLabelValues(string(class)).Inc()
	}
}

// RecordRestore records an archive restore request.
func (m *ObjectStoreMetrics) RecordRestore(durationSeconds float64, success bool) {
	m.RecordOperation(OpObjRestore, durationSeconds, success)
}

var _ objectstore.MetricsRecorder = (*ObjectStoreMetrics)(nil)
