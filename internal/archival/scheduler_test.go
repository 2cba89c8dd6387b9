package archival

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/auditvault/internal/logging"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
	ran   chan string
}

func (r *fakeRunner) ArchiveExpiredRecords(_ context.Context, tenantID string) (*Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, tenantID)
	err := r.errs[tenantID]
	r.mu.Unlock()
	if r.ran != nil {
		select {
		case r.ran <- tenantID:
		default:
		}
	}
	if err != nil {
		return nil, err
	}
	return &Result{TenantID: tenantID}, nil
}

func (r *fakeRunner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestSchedulerRunOnce(t *testing.T) {
	boom := errors.New("store down")
	runner := &fakeRunner{errs: map[string]error{
		"beta":  boom,
		"gamma": ErrArchivalInProgress,
	}}
	s := NewScheduler(runner, SchedulerConfig{Tenants: []string{"alpha", "beta", "gamma", "delta"}}, logging.Nop())

	err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrArchivalInProgress, "a locked tenant is not a failure")
	assert.Equal(t, []string{"alpha", "beta", "gamma", "delta"}, runner.Calls())
}

func TestSchedulerDefaults(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, SchedulerConfig{}, nil)
	assert.Equal(t, DefaultScheduleInterval, s.config.Interval)
	assert.Equal(t, "archival-scheduler", s.String())
}

func TestSchedulerServeRunsOnStartAndStops(t *testing.T) {
	runner := &fakeRunner{ran: make(chan string, 1)}
	s := NewScheduler(runner, SchedulerConfig{
		Tenants:    []string{"acme"},
		Interval:   time.Hour,
		RunOnStart: true,
	}, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	select {
	case tenant := <-runner.ran:
		assert.Equal(t, "acme", tenant)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not run on start")
	}

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerServeTicks(t *testing.T) {
	runner := &fakeRunner{ran: make(chan string, 1)}
	s := NewScheduler(runner, SchedulerConfig{Tenants: []string{"acme"}, Interval: 10 * time.Millisecond}, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx) //nolint:errcheck

	select {
	case <-runner.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler never ticked")
	}
}
