package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/dray-io/auditvault/internal/canonical"
	"github.com/dray-io/auditvault/internal/logging"
	"github.com/dray-io/auditvault/internal/objectstore"
)

const (
	contentType = "application/json"

	// Object metadata written alongside each record.
	metaContentHash = "content-hash"
	metaTenantID    = "tenant-id"
	metaRecordType  = "record-type"
)

// IntegrityResult is the outcome of VerifyIntegrity. Error is empty when
// IsValid is true.
type IntegrityResult struct {
	IsValid      bool   `json:"isValid"`
	StoredHash   string `json:"storedHash,omitempty"`
	ComputedHash string `json:"computedHash,omitempty"`
	Error        string `json:"error,omitempty"`
}

// LogStore persists write-once audit records.
type LogStore struct {
	store  objectstore.Store
	now    func() time.Time
	logger *logging.Logger
}

// Option configures a LogStore.
type Option func(*LogStore)

// WithClock overrides the time source used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *LogStore) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *LogStore) { s.logger = l }
}

// NewLogStore returns a LogStore backed by store.
func NewLogStore(store objectstore.Store, opts ...Option) *LogStore {
	s := &LogStore{
		store:  store,
		now:    time.Now,
		logger: logging.Global(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type writeInput struct {
	TenantID   string         `validate:"keysegment"`
	RecordType RecordType     `validate:"recordtype"`
	RecordID   string         `validate:"keysegment"`
	Data       map[string]any `validate:"required"`
}

// Write stores a new record and returns it. The payload is normalized
// through a JSON round trip, so numbers are kept exactly as the caller
// encoded them and the returned Data matches what Read later yields.
//
// Returns ErrImmutableViolation if a record already exists at the same
// coordinates and *ValidationError for bad input.
func (s *LogStore) Write(ctx context.Context, tenantID string, recordType RecordType, recordID string, data map[string]any) (*Record, error) {
	if err := ValidateStruct(writeInput{TenantID: tenantID, RecordType: recordType, RecordID: recordID, Data: data}); err != nil {
		return nil, err
	}

	normalized, err := canonical.Normalize(data)
	if err != nil {
		return nil, &ValidationError{Field: "data", Reason: err.Error()}
	}
	payload, ok := normalized.(map[string]any)
	if !ok {
		return nil, &ValidationError{Field: "data", Reason: "must be a JSON object"}
	}

	hash, err := canonical.Hash(payload)
	if err != nil {
		return nil, &ValidationError{Field: "data", Reason: err.Error()}
	}

	rec := &Record{
		RecordID:    recordID,
		TenantID:    tenantID,
		RecordType:  recordType,
		Data:        payload,
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
		ContentHash: hash,
		Version:     RecordVersion,
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("audit: encode record: %w", err)
	}

	key := RecordKey(TierHot, rec.Ref())
	err = s.store.PutWithOptions(ctx, key, bytes.NewReader(body), int64(len(body)), contentType, objectstore.PutOptions{
		IfNoneMatch: "*",
		Metadata: map[string]string{
			metaContentHash: hash,
			metaTenantID:    tenantID,
			metaRecordType:  string(recordType),
		},
	})
	if errors.Is(err, objectstore.ErrPreconditionFailed) {
		return nil, fmt.Errorf("%w: record already exists at %s", ErrImmutableViolation, key)
	}
	if err != nil {
		return nil, fmt.Errorf("audit: write %s: %w", key, err)
	}

	s.logger.Debugf("audit record written", map[string]any{
		"tenantId":    tenantID,
		"recordType":  string(recordType),
		"recordId":    recordID,
		"key":         key,
		"contentHash": hash,
	})
	return rec, nil
}

// Read returns the hot tier copy of a record, or nil if it does not exist.
func (s *LogStore) Read(ctx context.Context, ref RecordRef) (*Record, error) {
	return s.ReadAt(ctx, TierHot, ref)
}

// ReadAt returns the copy of a record in tier, or nil if it does not exist.
// Reading an archived copy that has not been restored fails with
// objectstore.ErrInvalidObjectState.
func (s *LogStore) ReadAt(ctx context.Context, tier Tier, ref RecordRef) (*Record, error) {
	if err := ValidateStruct(ref); err != nil {
		return nil, err
	}

	key := RecordKey(tier, ref)
	rc, err := s.store.Get(ctx, key)
	if objectstore.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit: read %s: %w", key, err)
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("audit: read %s: %w", key, err)
	}

	var rec Record
	if err := canonical.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("audit: decode %s: %w", key, err)
	}

	if rec.TenantID != ref.TenantID {
		s.logger.Errorf("stored record tenant does not match request", map[string]any{
			"key":             key,
			"requestedTenant": ref.TenantID,
			"storedTenant":    rec.TenantID,
		})
		return nil, fmt.Errorf("%w: %s", ErrTenantIsolation, key)
	}
	return &rec, nil
}

// Exists reports whether the hot tier copy of a record exists.
func (s *LogStore) Exists(ctx context.Context, ref RecordRef) (bool, error) {
	return s.ExistsAt(ctx, TierHot, ref)
}

// ExistsAt reports whether a record exists in tier without fetching it.
// Storage errors other than not-found are returned.
func (s *LogStore) ExistsAt(ctx context.Context, tier Tier, ref RecordRef) (bool, error) {
	if err := ValidateStruct(ref); err != nil {
		return false, err
	}

	key := RecordKey(tier, ref)
	_, err := s.store.Head(ctx, key)
	if objectstore.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("audit: head %s: %w", key, err)
	}
	return true, nil
}

// VerifyIntegrity recomputes the hash of the hot tier copy of a record.
func (s *LogStore) VerifyIntegrity(ctx context.Context, ref RecordRef) (*IntegrityResult, error) {
	return s.VerifyIntegrityAt(ctx, TierHot, ref)
}

// VerifyIntegrityAt recomputes the content hash of the stored payload and
// compares it with the stored hash. A missing record is reported as an
// invalid result, not an error.
func (s *LogStore) VerifyIntegrityAt(ctx context.Context, tier Tier, ref RecordRef) (*IntegrityResult, error) {
	rec, err := s.ReadAt(ctx, tier, ref)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &IntegrityResult{IsValid: false, Error: "record not found"}, nil
	}

	computed, err := canonical.Hash(rec.Data)
	if err != nil {
		return &IntegrityResult{
			IsValid:    false,
			StoredHash: rec.ContentHash,
			Error:      fmt.Sprintf("stored payload cannot be hashed: %v", err),
		}, nil
	}

	result := &IntegrityResult{
		IsValid:      computed == rec.ContentHash,
		StoredHash:   rec.ContentHash,
		ComputedHash: computed,
	}
	if !result.IsValid {
		result.Error = "content hash mismatch: record may have been tampered with"
		s.logger.Warnf("audit record failed integrity check", map[string]any{
			"tenantId":     ref.TenantID,
			"recordType":   string(ref.RecordType),
			"recordId":     ref.RecordID,
			"tier":         tier.String(),
			"storedHash":   rec.ContentHash,
			"computedHash": computed,
		})
	}
	return result, nil
}

// AttemptModify always fails. It returns ErrImmutableViolation when the
// record exists and ErrRecordNotExist when it does not.
func (s *LogStore) AttemptModify(ctx context.Context, ref RecordRef, _ map[string]any) error {
	exists, err := s.Exists(ctx, ref)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: cannot modify existing immutable record", ErrImmutableViolation)
	}
	return ErrRecordNotExist
}
