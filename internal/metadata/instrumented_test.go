package metadata

import (
	"context"
	"errors"
	"testing"
)

// mockMetricsRecorder tracks calls for testing.
type mockMetricsRecorder struct {
	getCalls          []recordedCall
	putCalls          []recordedCall
	deleteCalls       []recordedCall
	listCalls         []recordedCall
	putEphemeralCalls []recordedCall
	conflicts         []string
}

type recordedCall struct {
	duration float64
	success  bool
}

func (m *mockMetricsRecorder) RecordGet(duration float64, success bool) {
	m.getCalls = append(m.getCalls, recordedCall{duration, success})
}

func (m *mockMetricsRecorder) RecordPut(duration float64, success bool) {
	m.putCalls = append(m.putCalls, recordedCall{duration, success})
}

func (m *mockMetricsRecorder) RecordDelete(duration float64, success bool) {
	m.deleteCalls = append(m.deleteCalls, recordedCall{duration, success})
}

func (m *mockMetricsRecorder) RecordList(duration float64, success bool) {
	m.listCalls = append(m.listCalls, recordedCall{duration, success})
}

func (m *mockMetricsRecorder) RecordPutEphemeral(duration float64, success bool) {
	m.putEphemeralCalls = append(m.putEphemeralCalls, recordedCall{duration, success})
}

func (m *mockMetricsRecorder) RecordConflict(operation string) {
	m.conflicts = append(m.conflicts, operation)
}

func TestInstrumentedStore_RecordsOperations(t *testing.T) {
	ctx := context.Background()
	rec := &mockMetricsRecorder{}
	store := NewInstrumentedStore(NewMockStore(), rec)

	if _, err := store.Put(ctx, "/k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := store.Get(ctx, "/k"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := store.List(ctx, "/", "", 0); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if _, err := store.PutEphemeral(ctx, "/lock", []byte("x")); err != nil {
		t.Fatalf("PutEphemeral failed: %v", err)
	}
	if err := store.Delete(ctx, "/k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if len(rec.putCalls) != 1 || !rec.putCalls[0].success {
		t.Errorf("put calls: %+v", rec.putCalls)
	}
	if len(rec.getCalls) != 1 || len(rec.listCalls) != 1 || len(rec.deleteCalls) != 1 || len(rec.putEphemeralCalls) != 1 {
		t.Errorf("unexpected call counts: get=%d list=%d delete=%d eph=%d",
			len(rec.getCalls), len(rec.listCalls), len(rec.deleteCalls), len(rec.putEphemeralCalls))
	}
}

func TestInstrumentedStore_CountsConflicts(t *testing.T) {
	ctx := context.Background()
	rec := &mockMetricsRecorder{}
	store := NewInstrumentedStore(NewMockStore(), rec)

	_, _ = store.Put(ctx, "/k", []byte("v"), WithExpectedVersion(0))
	_, err := store.Put(ctx, "/k", []byte("v"), WithExpectedVersion(0))
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
	_, _ = store.PutEphemeral(ctx, "/lock", []byte("a"), WithEphemeralExpectNotExists())
	_, _ = store.PutEphemeral(ctx, "/lock", []byte("b"), WithEphemeralExpectNotExists())

	if len(rec.conflicts) != 2 || rec.conflicts[0] != "put" || rec.conflicts[1] != "put_ephemeral" {
		t.Errorf("conflicts = %v", rec.conflicts)
	}
	if !rec.putCalls[1].success {
		t.Error("a CAS conflict should not be counted as a backend failure")
	}
}

func TestInstrumentedStore_NilMetrics(t *testing.T) {
	store := NewInstrumentedStore(NewMockStore(), nil)
	if _, err := store.Put(context.Background(), "/k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
