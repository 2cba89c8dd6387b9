package retention

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/dray-io/auditvault/internal/audit"
	"github.com/dray-io/auditvault/internal/logging"
	"github.com/dray-io/auditvault/internal/metadata"
	"github.com/dray-io/auditvault/internal/metadata/keys"
)

// ErrConcurrentUpdate is returned when another writer changed a policy
// between read and write. The caller may retry.
var ErrConcurrentUpdate = errors.New("retention: policy changed concurrently")

// PolicyStore reads and writes retention policies.
type PolicyStore struct {
	meta           metadata.MetadataStore
	defaultMinimum int
	tenantMinimums map[string]int
	now            func() time.Time
	logger         *logging.Logger
}

// Option configures a PolicyStore.
type Option func(*PolicyStore)

// WithDefaultMinimum sets the system-wide minimum retention in days.
func WithDefaultMinimum(days int) Option {
	return func(s *PolicyStore) {
		if days > 0 {
			s.defaultMinimum = days
		}
	}
}

// WithTenantMinimums sets per-tenant minimum retention overrides in days.
func WithTenantMinimums(m map[string]int) Option {
	return func(s *PolicyStore) {
		for tenant, days := range m {
			if days > 0 {
				s.tenantMinimums[tenant] = days
			}
		}
	}
}

// WithClock overrides the time source for createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *PolicyStore) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *PolicyStore) { s.logger = l }
}

// NewPolicyStore returns a PolicyStore backed by meta.
func NewPolicyStore(meta metadata.MetadataStore, opts ...Option) *PolicyStore {
	s := &PolicyStore{
		meta:           meta,
		defaultMinimum: DefaultMinimumRetentionDays,
		tenantMinimums: make(map[string]int),
		now:            time.Now,
		logger:         logging.Global(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultMinimum returns the minimum retention that applies to tenant when
// no policy overrides it.
func (s *PolicyStore) DefaultMinimum(tenantID string) int {
	if days, ok := s.tenantMinimums[tenantID]; ok {
		return days
	}
	return s.defaultMinimum
}

type policyRef struct {
	TenantID   string           `validate:"keysegment"`
	RecordType audit.RecordType `validate:"recordtype"`
}

type getResult struct {
	policy  *Policy
	version metadata.Version
}

func (s *PolicyStore) get(ctx context.Context, tenantID string, recordType audit.RecordType) (*getResult, error) {
	key := keys.PolicyKey(tenantID, string(recordType))
	res, err := s.meta.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("retention: get %s: %w", key, err)
	}
	if !res.Exists {
		return nil, nil
	}

	var p Policy
	if err := json.Unmarshal(res.Value, &p); err != nil {
		return nil, fmt.Errorf("retention: decode %s: %w", key, err)
	}
	return &getResult{policy: &p, version: res.Version}, nil
}

// SetPolicy creates or replaces the policy for (tenant, record type).
//
// Returns *audit.ValidationError if the input breaks a policy invariant and
// ErrConcurrentUpdate if another writer won the race.
func (s *PolicyStore) SetPolicy(ctx context.Context, in PolicyInput) (*Policy, error) {
	if err := audit.ValidateStruct(in); err != nil {
		return nil, err
	}

	minimum := s.DefaultMinimum(in.TenantID)
	if in.MinimumRetentionDays != nil {
		minimum = *in.MinimumRetentionDays
	}
	if err := checkWindows(in.RetentionDays, in.ArchiveAfterDays, minimum); err != nil {
		return nil, err
	}

	existing, err := s.get(ctx, in.TenantID, in.RecordType)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &Policy{
		TenantID:             in.TenantID,
		RecordType:           in.RecordType,
		RetentionDays:        in.RetentionDays,
		ArchiveAfterDays:     in.ArchiveAfterDays,
		MinimumRetentionDays: minimum,
		Enabled:              in.Enabled == nil || *in.Enabled,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	expected := metadata.Version(0)
	if existing != nil {
		p.CreatedAt = existing.policy.CreatedAt
		expected = existing.version
	}

	value, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("retention: encode policy: %w", err)
	}

	key := keys.PolicyKey(in.TenantID, string(in.RecordType))
	if _, err := s.meta.Put(ctx, key, value, metadata.WithExpectedVersion(expected)); err != nil {
		if errors.Is(err, metadata.ErrVersionMismatch) {
			return nil, fmt.Errorf("%w: %s", ErrConcurrentUpdate, key)
		}
		return nil, fmt.Errorf("retention: put %s: %w", key, err)
	}

	s.logger.Infof("retention policy saved", map[string]any{
		"tenantId":             p.TenantID,
		"recordType":           string(p.RecordType),
		"retentionDays":        p.RetentionDays,
		"archiveAfterDays":     p.ArchiveAfterDays,
		"minimumRetentionDays": p.MinimumRetentionDays,
		"enabled":              p.Enabled,
		"replaced":             existing != nil,
	})
	return p, nil
}

// GetPolicy returns the policy for (tenant, record type), or nil if there
// is none.
func (s *PolicyStore) GetPolicy(ctx context.Context, tenantID string, recordType audit.RecordType) (*Policy, error) {
	if err := audit.ValidateStruct(policyRef{TenantID: tenantID, RecordType: recordType}); err != nil {
		return nil, err
	}
	res, err := s.get(ctx, tenantID, recordType)
	if err != nil || res == nil {
		return nil, err
	}
	return res.policy, nil
}

// ListPolicies returns every policy of a tenant ordered by record type key.
// A tenant without policies yields an empty slice.
func (s *PolicyStore) ListPolicies(ctx context.Context, tenantID string) ([]Policy, error) {
	if !audit.ValidKeySegment(tenantID) {
		return nil, &audit.ValidationError{Field: "tenantId", Reason: "must be non-empty and must not contain '/' or control characters"}
	}

	kvs, err := s.meta.List(ctx, keys.PolicyTenantPrefix(tenantID), "", 0)
	if err != nil {
		return nil, fmt.Errorf("retention: list policies of %s: %w", tenantID, err)
	}

	policies := make([]Policy, 0, len(kvs))
	for _, kv := range kvs {
		var p Policy
		if err := json.Unmarshal(kv.Value, &p); err != nil {
			return nil, fmt.Errorf("retention: decode %s: %w", kv.Key, err)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// DeletePolicy removes the policy for (tenant, record type). It reports
// whether a policy existed. The default minimum applies afterwards.
func (s *PolicyStore) DeletePolicy(ctx context.Context, tenantID string, recordType audit.RecordType) (bool, error) {
	if err := audit.ValidateStruct(policyRef{TenantID: tenantID, RecordType: recordType}); err != nil {
		return false, err
	}
	existing, err := s.get(ctx, tenantID, recordType)
	if err != nil || existing == nil {
		return false, err
	}

	key := keys.PolicyKey(tenantID, string(recordType))
	if err := s.meta.Delete(ctx, key, metadata.WithDeleteExpectedVersion(existing.version)); err != nil {
		if errors.Is(err, metadata.ErrVersionMismatch) {
			return false, fmt.Errorf("%w: %s", ErrConcurrentUpdate, key)
		}
		return false, fmt.Errorf("retention: delete %s: %w", key, err)
	}
	s.logger.Infof("retention policy deleted", map[string]any{
		"tenantId":   tenantID,
		"recordType": string(recordType),
	})
	return true, nil
}

// MinimumRetentionDays resolves the effective minimum retention for
// (tenant, record type): the policy's value if one exists, otherwise the
// tenant or system default.
func (s *PolicyStore) MinimumRetentionDays(ctx context.Context, tenantID string, recordType audit.RecordType) (int, error) {
	p, err := s.GetPolicy(ctx, tenantID, recordType)
	if err != nil {
		return 0, err
	}
	if p != nil && p.MinimumRetentionDays > 0 {
		return p.MinimumRetentionDays, nil
	}
	return s.DefaultMinimum(tenantID), nil
}
