// Package archival moves aged audit records from the hot tier to the cold
// tier according to each tenant's retention policies.
//
// A record is archived by copying its hot object to the mirrored archive/
// key in the configured cold storage class and then deleting the hot copy.
// The engine itself has no schedule; runs are triggered by the CLI or by a
// Scheduler.
package archival

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dray-io/auditvault/internal/audit"
	"github.com/dray-io/auditvault/internal/logging"
	"github.com/dray-io/auditvault/internal/objectstore"
	"github.com/dray-io/auditvault/internal/retention"
)

// ErrArchivalInProgress is returned when another archiver holds the tenant
// lock.
var ErrArchivalInProgress = errors.New("archival: run already in progress for tenant")

// PolicySource lists a tenant's retention policies. *retention.PolicyStore
// implements it.
type PolicySource interface {
	ListPolicies(ctx context.Context, tenantID string) ([]retention.Policy, error)
}

// MetricsRecorder records archival metrics. This allows the archival package
// to be decoupled from the metrics package.
type MetricsRecorder interface {
	RecordRun(durationSeconds float64, success bool)
	RecordArchived(recordType string, bytes int64)
	RecordFailed(recordType string)
	RecordLockContention()
}

// Result summarizes one archival run.
type Result struct {
	TenantID        string             `json:"tenantId"`
	RecordsArchived int                `json:"recordsArchived"`
	BytesArchived   int64              `json:"bytesArchived"`
	RecordTypes     []audit.RecordType `json:"recordTypes"`
	RecordsFailed   int                `json:"recordsFailed"`
	CompletedAt     time.Time          `json:"completedAt"`
}

// Config configures an Engine.
type Config struct {
	// ColdStorageClass is the storage class archived copies are written in.
	// Default: GLACIER.
	ColdStorageClass objectstore.StorageClass
}

// Engine archives expired hot records.
type Engine struct {
	store     objectstore.Store
	policies  PolicySource
	coldClass objectstore.StorageClass
	locks     *LockManager
	metrics   MetricsRecorder
	now       func() time.Time
	logger    *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLockManager serializes runs per tenant through lm.
func WithLockManager(lm *LockManager) Option {
	return func(e *Engine) { e.locks = lm }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine returns an engine moving objects within store.
func NewEngine(store objectstore.Store, policies PolicySource, cfg Config, opts ...Option) *Engine {
	if cfg.ColdStorageClass == "" {
		cfg.ColdStorageClass = objectstore.StorageClassGlacier
	}
	e := &Engine{
		store:     store,
		policies:  policies,
		coldClass: cfg.ColdStorageClass,
		now:       time.Now,
		logger:    logging.Global(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ArchiveExpiredRecords archives every hot record of tenantID whose enabled
// policy's archive window has passed.
//
// Objects that fail to move are logged, counted in RecordsFailed and left in
// place for the next run. The run as a whole fails only if policies or a
// listing cannot be read.
func (e *Engine) ArchiveExpiredRecords(ctx context.Context, tenantID string) (result *Result, err error) {
	if !audit.ValidKeySegment(tenantID) {
		return nil, &audit.ValidationError{Field: "tenantId", Reason: "must be non-empty and must not contain '/' or control characters"}
	}

	start := time.Now()
	runID := uuid.NewString()
	log := e.logger.With(map[string]any{"tenantId": tenantID, "runId": runID})
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordRun(time.Since(start).Seconds(), err == nil)
		}
	}()

	if e.locks != nil {
		acq, err := e.locks.Acquire(ctx, tenantID, runID)
		if err != nil {
			return nil, err
		}
		if !acq.Acquired {
			if e.metrics != nil {
				e.metrics.RecordLockContention()
			}
			return nil, fmt.Errorf("%w: %s held by %s", ErrArchivalInProgress, tenantID, acq.Lock.OwnerID)
		}
		defer func() {
			if relErr := e.locks.Release(context.WithoutCancel(ctx), tenantID); relErr != nil {
				log.Warnf("failed to release archival lock", map[string]any{"error": relErr.Error()})
			}
		}()
	}

	policies, err := e.policies.ListPolicies(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("archival: list policies: %w", err)
	}

	result = &Result{TenantID: tenantID, RecordTypes: []audit.RecordType{}}
	now := e.now()
	for _, p := range policies {
		if !p.Enabled {
			continue
		}
		if err := e.archiveType(ctx, log, tenantID, p, now, result); err != nil {
			return nil, err
		}
	}
	result.CompletedAt = e.now().UTC()

	log.Infof("archival run completed", map[string]any{
		"recordsArchived": result.RecordsArchived,
		"bytesArchived":   result.BytesArchived,
		"recordsFailed":   result.RecordsFailed,
		"durationMs":      time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (e *Engine) archiveType(ctx context.Context, log *logging.Logger, tenantID string, p retention.Policy, now time.Time, result *Result) error {
	threshold := p.ArchiveThreshold(now).UnixMilli()
	prefix := audit.TypePrefix(audit.TierHot, tenantID, p.RecordType)

	// Collect first so deletes do not shift the listing under the cursor.
	var due []objectstore.ObjectMeta
	err := objectstore.Walk(ctx, e.store, prefix, func(obj objectstore.ObjectMeta) error {
		if obj.LastModified < threshold {
			due = append(due, obj)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("archival: scan %s: %w", prefix, err)
	}

	archived := 0
	for _, obj := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		moved, err := e.archiveObject(ctx, obj.Key)
		if err != nil {
			result.RecordsFailed++
			if e.metrics != nil {
				e.metrics.RecordFailed(string(p.RecordType))
			}
			log.Errorf("failed to archive record", map[string]any{
				"key":   obj.Key,
				"error": err.Error(),
			})
			continue
		}
		if !moved {
			continue
		}
		archived++
		result.RecordsArchived++
		result.BytesArchived += obj.Size
		if e.metrics != nil {
			e.metrics.RecordArchived(string(p.RecordType), obj.Size)
		}
	}

	if archived > 0 {
		result.RecordTypes = append(result.RecordTypes, p.RecordType)
		log.Debugf("record type archived", map[string]any{
			"recordType": string(p.RecordType),
			"records":    archived,
		})
	}
	return nil
}

// archiveObject moves one hot object to the cold tier. It reports false when
// the hot object vanished before the copy, which means another run already
// moved it.
func (e *Engine) archiveObject(ctx context.Context, hotKey string) (bool, error) {
	coldKey, err := audit.ColdKey(hotKey)
	if err != nil {
		return false, err
	}

	if err := e.store.Copy(ctx, hotKey, coldKey, objectstore.CopyOptions{StorageClass: e.coldClass}); err != nil {
		if objectstore.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("copy to %s: %w", coldKey, err)
	}
	if err := e.store.Delete(ctx, hotKey); err != nil {
		return false, fmt.Errorf("delete hot copy: %w", err)
	}
	return true, nil
}
