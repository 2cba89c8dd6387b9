package retrieval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dray-io/auditvault/internal/audit"
	"github.com/dray-io/auditvault/internal/logging"
	"github.com/dray-io/auditvault/internal/objectstore"
)

// Config configures a Manager.
type Config struct {
	// DownloadURLBase prefixes the archive path reported on completed jobs.
	DownloadURLBase string

	// RestoreDays is how long restored copies stay readable. Default: 7.
	RestoreDays int

	// RestoreTier is the retrieval speed requested. Default: Standard.
	RestoreTier objectstore.RestoreTier

	// RestoresPerSecond caps restore requests across all jobs. Zero or
	// negative means unlimited.
	RestoresPerSecond float64

	// RestoreBurst is the limiter burst. Default: 10.
	RestoreBurst int

	// Completion estimate: EstimateBase + EstimatePerSqrtDay*sqrt(days),
	// capped at EstimateMax.
	EstimateBase       time.Duration
	EstimatePerSqrtDay time.Duration
	EstimateMax        time.Duration
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		RestoreDays:        7,
		RestoreTier:        objectstore.RestoreTierStandard,
		RestoresPerSecond:  50,
		RestoreBurst:       10,
		EstimateBase:       3 * time.Hour,
		EstimatePerSqrtDay: 30 * time.Minute,
		EstimateMax:        12 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RestoreDays <= 0 {
		c.RestoreDays = d.RestoreDays
	}
	if c.RestoreTier == "" {
		c.RestoreTier = d.RestoreTier
	}
	if c.RestoreBurst <= 0 {
		c.RestoreBurst = d.RestoreBurst
	}
	return c
}

// Estimate returns the expected time to restore a range of the given length.
func (c Config) Estimate(days float64) time.Duration {
	est := c.EstimateBase + time.Duration(math.Sqrt(math.Max(days, 0))*float64(c.EstimatePerSqrtDay))
	if c.EstimateMax > 0 && est > c.EstimateMax {
		est = c.EstimateMax
	}
	return est
}

// MetricsRecorder records retrieval metrics. This allows the retrieval
// package to be decoupled from the metrics package.
type MetricsRecorder interface {
	RecordJobCreated()
	RecordJobFinished(status string, durationSeconds float64)
	RecordRestoreRequest(success bool)
}

// Manager creates retrieval jobs and runs their restores in the background.
type Manager struct {
	store   objectstore.Store
	config  Config
	limiter *rate.Limiter
	metrics MetricsRecorder
	now     func() time.Time
	logger  *logging.Logger

	wg sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics sets the metrics recorder.
func WithMetrics(r MetricsRecorder) Option {
	return func(m *Manager) { m.metrics = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a Manager persisting jobs and restoring objects in store.
func NewManager(store objectstore.Store, config Config, opts ...Option) *Manager {
	config = config.withDefaults()
	limit := rate.Inf
	if config.RestoresPerSecond > 0 {
		limit = rate.Limit(config.RestoresPerSecond)
	}
	m := &Manager{
		store:   store,
		config:  config,
		limiter: rate.NewLimiter(limit, config.RestoreBurst),
		now:     time.Now,
		logger:  logging.Global(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type jobRef struct {
	TenantID   string           `validate:"keysegment"`
	RecordType audit.RecordType `validate:"recordtype"`
}

// RetrieveArchivedRecords creates a PENDING job restoring the cold records
// of one type whose objects were modified within tr, and starts the restore
// in the background. The returned job is a snapshot; poll GetJob for
// progress.
//
// The background restore is detached from ctx cancellation.
func (m *Manager) RetrieveArchivedRecords(ctx context.Context, tenantID string, recordType audit.RecordType, tr TimeRange) (*Job, error) {
	if err := audit.ValidateStruct(jobRef{TenantID: tenantID, RecordType: recordType}); err != nil {
		return nil, err
	}
	if err := tr.validate(); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	job := &Job{
		JobID:                   uuid.NewString(),
		TenantID:                tenantID,
		RecordType:              recordType,
		TimeRange:               TimeRange{StartDate: tr.StartDate.UTC(), EndDate: tr.EndDate.UTC()},
		Status:                  StatusPending,
		EstimatedCompletionTime: now.Add(m.config.Estimate(tr.Days())),
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := m.save(ctx, job, true); err != nil {
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.RecordJobCreated()
	}

	logging.FromCtx(ctx, m.logger).Infof("retrieval job created", map[string]any{
		"jobId":                   job.JobID,
		"tenantId":                tenantID,
		"recordType":              string(recordType),
		"estimatedCompletionTime": job.EstimatedCompletionTime,
	})

	snapshot := *job
	bg := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go m.run(bg, job)
	return &snapshot, nil
}

// Wait blocks until every background restore started so far has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, job *Job) {
	defer m.wg.Done()
	start := m.now()

	defer func() {
		if r := recover(); r != nil {
			m.fail(ctx, job, fmt.Errorf("restore panicked: %v", r))
		}
		if m.metrics != nil {
			m.metrics.RecordJobFinished(string(job.Status), m.now().Sub(start).Seconds())
		}
	}()

	if err := m.restore(ctx, job); err != nil {
		m.fail(ctx, job, err)
	}
}

func (m *Manager) restore(ctx context.Context, job *Job) error {
	log := logging.FromCtx(ctx, m.logger).With(map[string]any{"jobId": job.JobID, "tenantId": job.TenantID})

	if err := m.advance(ctx, job, StatusInProgress, nil); err != nil {
		return err
	}

	prefix := audit.TypePrefix(audit.TierCold, job.TenantID, job.RecordType)
	var matched []string
	err := objectstore.Walk(ctx, m.store, prefix, func(obj objectstore.ObjectMeta) error {
		if job.TimeRange.Contains(time.UnixMilli(obj.LastModified)) {
			matched = append(matched, obj.Key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", prefix, err)
	}
	job.ObjectsMatched = len(matched)

	opts := objectstore.RestoreOptions{Days: m.config.RestoreDays, Tier: m.config.RestoreTier}
	for _, key := range matched {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
		err := m.store.Restore(ctx, key, opts)
		if m.metrics != nil {
			m.metrics.RecordRestoreRequest(err == nil || errors.Is(err, objectstore.ErrRestoreInProgress))
		}
		if err != nil && !errors.Is(err, objectstore.ErrRestoreInProgress) {
			return fmt.Errorf("restore %s: %w", key, err)
		}
		job.ObjectsRestored++
	}

	err = m.advance(ctx, job, StatusCompleted, func(j *Job) {
		completed := j.UpdatedAt
		j.CompletedAt = &completed
		j.DownloadURL = strings.TrimSuffix(m.config.DownloadURLBase, "/") + "/" + prefix
	})
	if err != nil {
		return err
	}

	log.Infof("retrieval job completed", map[string]any{
		"objectsMatched":  job.ObjectsMatched,
		"objectsRestored": job.ObjectsRestored,
	})
	return nil
}

// advance transitions job to next and persists it. The in-memory job only
// changes once the write succeeds.
func (m *Manager) advance(ctx context.Context, job *Job, next Status, update func(*Job)) error {
	updated := *job
	if err := updated.transition(next, m.now().UTC()); err != nil {
		return err
	}
	if update != nil {
		update(&updated)
	}
	if err := m.save(ctx, &updated, false); err != nil {
		return err
	}
	*job = updated
	return nil
}

// fail records cause on the job. The error is logged and dropped; the job
// status is the only place it surfaces.
func (m *Manager) fail(ctx context.Context, job *Job, cause error) {
	log := logging.FromCtx(ctx, m.logger).With(map[string]any{"jobId": job.JobID, "tenantId": job.TenantID})

	err := m.advance(ctx, job, StatusFailed, func(j *Job) { j.ErrorMessage = cause.Error() })
	if err != nil {
		log.Errorf("failed to persist failed retrieval job", map[string]any{
			"cause": cause.Error(),
			"error": err.Error(),
		})
		return
	}
	log.Errorf("retrieval job failed", map[string]any{"error": cause.Error()})
}

func (m *Manager) save(ctx context.Context, job *Job, create bool) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("retrieval: encode job: %w", err)
	}
	opts := objectstore.PutOptions{}
	if create {
		opts.IfNoneMatch = "*"
	}
	key := audit.JobKey(job.TenantID, job.JobID)
	if err := m.store.PutWithOptions(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json", opts); err != nil {
		return fmt.Errorf("retrieval: save job %s: %w", job.JobID, err)
	}
	return nil
}

// GetJob returns a tenant's job, or nil if it does not exist.
func (m *Manager) GetJob(ctx context.Context, tenantID, jobID string) (*Job, error) {
	if !audit.ValidKeySegment(tenantID) {
		return nil, &audit.ValidationError{Field: "tenantId", Reason: "must be non-empty and must not contain '/' or control characters"}
	}
	if !audit.ValidKeySegment(jobID) {
		return nil, &audit.ValidationError{Field: "jobId", Reason: "must be non-empty and must not contain '/' or control characters"}
	}
	return m.load(ctx, tenantID, audit.JobKey(tenantID, jobID))
}

func (m *Manager) load(ctx context.Context, tenantID, key string) (*Job, error) {
	rc, err := m.store.Get(ctx, key)
	if objectstore.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("retrieval: get %s: %w", key, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("retrieval: read %s: %w", key, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("retrieval: decode %s: %w", key, err)
	}
	if job.TenantID != tenantID {
		return nil, fmt.Errorf("%w: %s", audit.ErrTenantIsolation, key)
	}
	return &job, nil
}

// ListJobs returns a tenant's jobs, oldest first.
func (m *Manager) ListJobs(ctx context.Context, tenantID string) ([]Job, error) {
	if !audit.ValidKeySegment(tenantID) {
		return nil, &audit.ValidationError{Field: "tenantId", Reason: "must be non-empty and must not contain '/' or control characters"}
	}

	jobs := []Job{}
	err := objectstore.Walk(ctx, m.store, audit.JobsPrefix(tenantID), func(obj objectstore.ObjectMeta) error {
		job, err := m.load(ctx, tenantID, obj.Key)
		if err != nil {
			return err
		}
		if job != nil {
			jobs = append(jobs, *job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].JobID < jobs[j].JobID
	})
	return jobs, nil
}
