package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetadataMetrics_RecordOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetadataMetricsWithRegistry(reg)

	m.RecordGet(0.001, true)
	m.RecordPut(0.002, true)
	m.RecordPut(0.002, false)
	m.RecordPutEphemeral(0.003, true)
	m.RecordConflict("put")
	m.RecordConflict("put")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	requestsMF := findMetricFamily(mfs, "auditvault_metadata_operations_total")
	if requestsMF == nil {
		t.Fatal("auditvault_metadata_operations_total not found")
	}
	if v := getCounterValue(requestsMF, map[string]string{"operation": "put", "status": StatusFailure}); v != 1 {
		t.Errorf("Expected 1 failed put, got %f", v)
	}
	if v := getCounterValue(requestsMF, map[string]string{"operation": "put_ephemeral", "status": StatusSuccess}); v != 1 {
		t.Errorf("Expected 1 ephemeral put, got %f", v)
	}

	conflictsMF := findMetricFamily(mfs, "auditvault_metadata_version_conflicts_total")
	if v := getCounterValue(conflictsMF, map[string]string{"operation": "put"}); v != 2 {
		t.Errorf("Expected 2 conflicts, got %f", v)
	}
}

func TestArchivalMetrics_RecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewArchivalMetricsWithRegistry(reg)

	m.RecordRun(12, true)
	m.RecordRun(3, false)
	m.RecordArchived("TRADE_EVENT", 100)
	m.RecordArchived("TRADE_EVENT", 50)
	m.RecordArchived("AI_TRACE", 0)
	m.RecordFailed("AI_TRACE")
	m.RecordLockContention()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	runsMF := findMetricFamily(mfs, "auditvault_archival_runs_total")
	if v := getCounterValue(runsMF, map[string]string{"status": StatusSuccess}); v != 1 {
		t.Errorf("Expected 1 successful run, got %f", v)
	}
	if v := getCounterValue(runsMF, map[string]string{"status": StatusFailure}); v != 1 {
		t.Errorf("Expected 1 failed run, got %f", v)
	}
	if c := getHistogramCount(findMetricFamily(mfs, "auditvault_archival_run_duration_seconds"), map[string]string{}); c != 2 {
		t.Errorf("Expected 2 duration samples, got %d", c)
	}

	archivedMF := findMetricFamily(mfs, "auditvault_archival_records_archived_total")
	if v := getCounterValue(archivedMF, map[string]string{"record_type": "TRADE_EVENT"}); v != 2 {
		t.Errorf("Expected 2 trade events archived, got %f", v)
	}
	if v := getCounterValue(archivedMF, map[string]string{"record_type": "AI_TRACE"}); v != 1 {
		t.Errorf("Expected 1 trace archived, got %f", v)
	}
	if v := getCounterValue(findMetricFamily(mfs, "auditvault_archival_bytes_archived_total"), map[string]string{}); v != 150 {
		t.Errorf("Expected 150 bytes archived, got %f", v)
	}
	if v := getCounterValue(findMetricFamily(mfs, "auditvault_archival_records_failed_total"), map[string]string{"record_type": "AI_TRACE"}); v != 1 {
		t.Errorf("Expected 1 failure, got %f", v)
	}
	if v := getCounterValue(findMetricFamily(mfs, "auditvault_archival_lock_contention_total"), map[string]string{}); v != 1 {
		t.Errorf("Expected 1 lock contention, got %f", v)
	}
}

func TestRetrievalMetrics_JobLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRetrievalMetricsWithRegistry(reg)

	m.RecordJobCreated()
	m.RecordJobCreated()
	m.RecordRestoreRequest(true)
	m.RecordRestoreRequest(true)
	m.RecordRestoreRequest(false)
	m.RecordJobFinished("COMPLETED", 1.5)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	if v := getCounterValue(findMetricFamily(mfs, "auditvault_retrieval_jobs_created_total"), map[string]string{}); v != 2 {
		t.Errorf("Expected 2 jobs created, got %f", v)
	}
	if v := getCounterValue(findMetricFamily(mfs, "auditvault_retrieval_jobs_finished_total"), map[string]string{"status": "COMPLETED"}); v != 1 {
		t.Errorf("Expected 1 completed job, got %f", v)
	}
	if v := getGaugeValue(findMetricFamily(mfs, "auditvault_retrieval_jobs_in_flight"), map[string]string{}); v != 1 {
		t.Errorf("Expected 1 job in flight, got %f", v)
	}
	restoresMF := findMetricFamily(mfs, "auditvault_retrieval_restore_requests_total")
	if v := getCounterValue(restoresMF, map[string]string{"status": StatusSuccess}); v != 2 {
		t.Errorf("Expected 2 successful restores, got %f", v)
	}
	if v := getCounterValue(restoresMF, map[string]string{"status": StatusFailure}); v != 1 {
		t.Errorf("Expected 1 failed restore, got %f", v)
	}
}

func TestUsageMetrics_RecordUsageOverwrites(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewUsageMetricsWithRegistry(reg)

	m.RecordUsage("acme", 100, 1000, 0.5)
	m.RecordUsage("acme", 200, 1000, 0.75)
	m.RecordUsage("globex", 1, 2, 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	bytesMF := findMetricFamily(mfs, "auditvault_usage_storage_bytes")
	if v := getGaugeValue(bytesMF, map[string]string{"tenant": "acme", "tier": TierHot}); v != 200 {
		t.Errorf("Expected latest hot bytes 200, got %f", v)
	}
	if v := getGaugeValue(bytesMF, map[string]string{"tenant": "acme", "tier": TierCold}); v != 1000 {
		t.Errorf("Expected cold bytes 1000, got %f", v)
	}
	if v := getGaugeValue(findMetricFamily(mfs, "auditvault_usage_estimated_monthly_cost_usd"), map[string]string{"tenant": "acme"}); v != 0.75 {
		t.Errorf("Expected cost 0.75, got %f", v)
	}
}

func TestBreakerMetrics_OnStateChange(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBreakerMetricsWithRegistry(reg)

	m.OnStateChange("objectstore", "closed", "open")
	m.OnStateChange("objectstore", "open", "half-open")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	stateMF := findMetricFamily(mfs, "auditvault_breaker_state")
	if v := getGaugeValue(stateMF, map[string]string{"name": "objectstore"}); v != 1 {
		t.Errorf("Expected half-open state 1, got %f", v)
	}
	transitionsMF := findMetricFamily(mfs, "auditvault_breaker_transitions_total")
	if v := getCounterValue(transitionsMF, map[string]string{"name": "objectstore", "to": "open"}); v != 1 {
		t.Errorf("Expected 1 transition to open, got %f", v)
	}

	m.OnStateChange("objectstore", "half-open", "closed")
	mfs, _ = reg.Gather()
	if v := getGaugeValue(findMetricFamily(mfs, "auditvault_breaker_state"), map[string]string{"name": "objectstore"}); v != 0 {
		t.Errorf("Expected closed state 0, got %f", v)
	}
}
