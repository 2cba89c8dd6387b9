// Package usage reports per-tenant storage consumption and its estimated
// monthly cost across the hot and cold tiers.
package usage

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dray-io/auditvault/internal/audit"
	"github.com/dray-io/auditvault/internal/logging"
	"github.com/dray-io/auditvault/internal/objectstore"
)

const bytesPerGB = 1 << 30

// Config holds the per-GB-month storage prices in USD.
type Config struct {
	HotRatePerGBMonth  float64
	ColdRatePerGBMonth float64
}

// DefaultConfig returns list prices for S3 Standard and Glacier Flexible
// Retrieval.
func DefaultConfig() Config {
	return Config{
		HotRatePerGBMonth:  0.023,
		ColdRatePerGBMonth: 0.0036,
	}
}

// StorageUsage is a point-in-time storage summary for one tenant.
type StorageUsage struct {
	TenantID                string                   `json:"tenantId"`
	HotStorageBytes         int64                    `json:"hotStorageBytes"`
	ColdStorageBytes        int64                    `json:"coldStorageBytes"`
	TotalBytes              int64                    `json:"totalBytes"`
	HotObjectCount          int                      `json:"hotObjectCount"`
	ColdObjectCount         int                      `json:"coldObjectCount"`
	EstimatedMonthlyCostUSD float64                  `json:"estimatedMonthlyCostUsd"`
	RecordCounts            map[audit.RecordType]int `json:"recordCounts"`
	AsOfTimestamp           time.Time                `json:"asOfTimestamp"`
}

// MetricsRecorder records usage metrics. This allows the usage package to be
// decoupled from the metrics package.
type MetricsRecorder interface {
	RecordUsage(tenantID string, hotBytes, coldBytes int64, costUSD float64)
}

// Reporter computes StorageUsage from object listings.
type Reporter struct {
	store   objectstore.Store
	config  Config
	metrics MetricsRecorder
	now     func() time.Time
	logger  *logging.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(r *Reporter) { r.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Reporter) { r.logger = l }
}

// NewReporter returns a Reporter pricing usage with config.
func NewReporter(store objectstore.Store, config Config, opts ...Option) *Reporter {
	r := &Reporter{
		store:  store,
		config: config,
		now:    time.Now,
		logger: logging.Global(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type tally struct {
	bytes   int64
	objects int
	records map[audit.RecordType]int
}

// GetStorageUsage sums both tiers of a tenant concurrently. A tenant or
// bucket with nothing stored yields zero usage, not an error.
func (r *Reporter) GetStorageUsage(ctx context.Context, tenantID string) (*StorageUsage, error) {
	if !audit.ValidKeySegment(tenantID) {
		return nil, &audit.ValidationError{Field: "tenantId", Reason: "must be non-empty and must not contain '/' or control characters"}
	}

	var hot, cold tally
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		hot, err = r.scan(gctx, audit.TenantPrefix(audit.TierHot, tenantID))
		return err
	})
	g.Go(func() (err error) {
		cold, err = r.scan(gctx, audit.TenantPrefix(audit.TierCold, tenantID))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	u := &StorageUsage{
		TenantID:         tenantID,
		HotStorageBytes:  hot.bytes,
		ColdStorageBytes: cold.bytes,
		TotalBytes:       hot.bytes + cold.bytes,
		HotObjectCount:   hot.objects,
		ColdObjectCount:  cold.objects,
		RecordCounts:     make(map[audit.RecordType]int, len(audit.AllRecordTypes)),
		AsOfTimestamp:    r.now().UTC(),
	}
	for _, rt := range audit.AllRecordTypes {
		u.RecordCounts[rt] = hot.records[rt] + cold.records[rt]
	}
	u.EstimatedMonthlyCostUSD = r.cost(hot.bytes, cold.bytes)

	if r.metrics != nil {
		r.metrics.RecordUsage(tenantID, u.HotStorageBytes, u.ColdStorageBytes, u.EstimatedMonthlyCostUSD)
	}
	r.logger.Debugf("storage usage computed", map[string]any{
		"tenantId":         tenantID,
		"hotStorageBytes":  u.HotStorageBytes,
		"coldStorageBytes": u.ColdStorageBytes,
		"costUsd":          u.EstimatedMonthlyCostUSD,
	})
	return u, nil
}

// cost prices the byte counts and rounds to cents.
func (r *Reporter) cost(hotBytes, coldBytes int64) float64 {
	hotGB := float64(hotBytes) / bytesPerGB
	coldGB := float64(coldBytes) / bytesPerGB
	return math.Round((hotGB*r.config.HotRatePerGBMonth+coldGB*r.config.ColdRatePerGBMonth)*100) / 100
}

// scan totals every object under prefix. Record counts only include keys
// shaped like records of a known type.
func (r *Reporter) scan(ctx context.Context, prefix string) (tally, error) {
	t := tally{records: make(map[audit.RecordType]int)}
	err := objectstore.Walk(ctx, r.store, prefix, func(obj objectstore.ObjectMeta) error {
		t.bytes += obj.Size
		t.objects++

		segment, _, ok := strings.Cut(strings.TrimPrefix(obj.Key, prefix), "/")
		if !ok {
			return nil
		}
		if rt, known := audit.RecordTypeForSegment(segment); known {
			if _, isRecord := audit.RecordIDFromKey(obj.Key); isRecord {
				t.records[rt]++
			}
		}
		return nil
	})
	if errors.Is(err, objectstore.ErrBucketNotFound) {
		return tally{records: map[audit.RecordType]int{}}, nil
	}
	return t, err
}
