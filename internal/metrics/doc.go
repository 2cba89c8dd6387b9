// Package metrics provides Prometheus metrics for observability.
//
// This package exposes metrics for auditvault operations including:
//   - Object store operation latency and counts, bytes moved, copies per storage class
//   - Metadata store operation latency and CAS conflicts
//   - Archival runs, records archived and failed, lock contention
//   - Retrieval jobs by outcome and restore requests
//   - Per-tenant storage usage and estimated cost
//   - Object store circuit breaker state
//
// Every recorder is built either with New*Metrics, which registers with the
// default registry via promauto, or New*MetricsWithRegistry for tests.
//
// Usage:
//
//	objMetrics := metrics.NewObjectStoreMetrics()
//	store := objectstore.NewInstrumentedStore(s3Store, objMetrics)
//
//	engine := archival.NewEngine(store, policies, cfg,
//	    archival.WithMetrics(metrics.NewArchivalMetrics()))
//
//	srv := metrics.NewServer(":9090")
//	srv.Start()
package metrics

// Status label values shared by all recorders.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

func statusLabel(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusFailure
}
