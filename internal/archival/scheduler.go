package archival

import (
	"context"
	"errors"
	"time"

	"github.com/dray-io/auditvault/internal/logging"
)

// DefaultScheduleInterval is the time between scheduled archival passes.
const DefaultScheduleInterval = time.Hour

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Tenants are archived in order on every pass.
	Tenants []string

	// Interval between passes. Default: 1h.
	Interval time.Duration

	// RunOnStart runs a pass immediately instead of waiting one interval.
	RunOnStart bool
}

// Runner runs one archival pass for a tenant. *Engine implements it.
type Runner interface {
	ArchiveExpiredRecords(ctx context.Context, tenantID string) (*Result, error)
}

// Scheduler periodically triggers archival for a fixed set of tenants. It
// implements suture.Service.
type Scheduler struct {
	runner Runner
	config SchedulerConfig
	logger *logging.Logger
}

// NewScheduler returns a scheduler driving runner.
func NewScheduler(runner Runner, config SchedulerConfig, logger *logging.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultScheduleInterval
	}
	if logger == nil {
		logger = logging.Global()
	}
	return &Scheduler{runner: runner, config: config, logger: logger}
}

// Serve runs passes until ctx is cancelled.
func (s *Scheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.Infof("archival scheduler started", map[string]any{
		"tenants":    len(s.config.Tenants),
		"intervalMs": s.config.Interval.Milliseconds(),
	})

	if s.config.RunOnStart {
		s.RunOnce(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// String names the service for supervisor logs.
func (s *Scheduler) String() string {
	return "archival-scheduler"
}

// RunOnce archives every configured tenant once. A failing tenant does not
// stop the pass; the joined errors are returned.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, tenantID := range s.config.Tenants {
		if ctx.Err() != nil {
			break
		}
		res, err := s.runner.ArchiveExpiredRecords(ctx, tenantID)
		switch {
		case errors.Is(err, ErrArchivalInProgress):
			s.logger.Infof("archival skipped, tenant locked", map[string]any{"tenantId": tenantID})
		case err != nil:
			s.logger.Errorf("scheduled archival failed", map[string]any{"tenantId": tenantID, "error": err.Error()})
			errs = append(errs, err)
		default:
			s.logger.Debugf("scheduled archival finished", map[string]any{
				"tenantId":        tenantID,
				"recordsArchived": res.RecordsArchived,
				"recordsFailed":   res.RecordsFailed,
			})
		}
	}
	return errors.Join(errs...)
}
