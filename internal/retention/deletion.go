package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/dray-io/auditvault/internal/audit"
	"github.com/dray-io/auditvault/internal/logging"
	"github.com/dray-io/auditvault/internal/objectstore"
)

// MinimumResolver resolves the effective minimum retention of a record type.
// *PolicyStore implements it.
type MinimumResolver interface {
	MinimumRetentionDays(ctx context.Context, tenantID string, recordType audit.RecordType) (int, error)
}

// DeletionCheck is the verdict of ValidateDeletion.
type DeletionCheck struct {
	Allowed            bool     `json:"allowed"`
	RecordsChecked     int      `json:"recordsChecked"`
	RecordsProtected   int      `json:"recordsProtected"`
	ProtectedRecordIDs []string `json:"protectedRecordIds"`
	Reason             string   `json:"reason,omitempty"`
}

// DeletionValidator decides whether records may be deleted.
//
// A record is protected when its hot tier object was last modified inside
// the minimum retention window, or when no hot tier object for it can be
// found at all. Deletion is allowed only if no requested record is protected.
type DeletionValidator struct {
	policies MinimumResolver
	store    objectstore.Store
	now      func() time.Time
	logger   *logging.Logger
}

// DeletionOption configures a DeletionValidator.
type DeletionOption func(*DeletionValidator)

// WithDeletionClock overrides the time source.
func WithDeletionClock(now func() time.Time) DeletionOption {
	return func(v *DeletionValidator) { v.now = now }
}

// WithDeletionLogger sets the logger.
func WithDeletionLogger(l *logging.Logger) DeletionOption {
	return func(v *DeletionValidator) { v.logger = l }
}

// NewDeletionValidator returns a validator reading minimums from policies
// and record ages from store.
func NewDeletionValidator(policies MinimumResolver, store objectstore.Store, opts ...DeletionOption) *DeletionValidator {
	v := &DeletionValidator{
		policies: policies,
		store:    store,
		now:      time.Now,
		logger:   logging.Global(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateDeletion checks recordIDs of one tenant and record type against
// the minimum retention window. Duplicate ids are checked once.
func (v *DeletionValidator) ValidateDeletion(ctx context.Context, tenantID string, recordType audit.RecordType, recordIDs []string) (*DeletionCheck, error) {
	if err := audit.ValidateStruct(policyRef{TenantID: tenantID, RecordType: recordType}); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(recordIDs))
	requested := make(map[string]bool, len(recordIDs))
	for _, id := range recordIDs {
		if !requested[id] {
			requested[id] = true
			ids = append(ids, id)
		}
	}

	check := &DeletionCheck{
		Allowed:            true,
		RecordsChecked:     len(ids),
		ProtectedRecordIDs: []string{},
	}
	if len(ids) == 0 {
		return check, nil
	}

	minimum, err := v.policies.MinimumRetentionDays(ctx, tenantID, recordType)
	if err != nil {
		return nil, err
	}
	threshold := v.now().Add(-days(minimum)).UnixMilli()

	// Newest last-modified stamp per requested id. The same id can exist
	// under several day partitions.
	newest := make(map[string]int64, len(ids))
	prefix := audit.TypePrefix(audit.TierHot, tenantID, recordType)
	err = objectstore.Walk(ctx, v.store, prefix, func(obj objectstore.ObjectMeta) error {
		id, ok := audit.RecordIDFromKey(obj.Key)
		if !ok || !requested[id] {
			return nil
		}
		if seen, found := newest[id]; !found || obj.LastModified > seen {
			newest[id] = obj.LastModified
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("retention: scan %s: %w", prefix, err)
	}

	missing := 0
	for _, id := range ids {
		lastModified, found := newest[id]
		switch {
		case !found:
			missing++
			check.ProtectedRecordIDs = append(check.ProtectedRecordIDs, id)
		case lastModified > threshold:
			check.ProtectedRecordIDs = append(check.ProtectedRecordIDs, id)
		}
	}

	check.RecordsProtected = len(check.ProtectedRecordIDs)
	check.Allowed = check.RecordsProtected == 0
	if !check.Allowed {
		check.Reason = fmt.Sprintf("%d of %d records are protected by the %d-day minimum retention window (%d could not be located)",
			check.RecordsProtected, check.RecordsChecked, minimum, missing)
	}

	v.logger.Infof("deletion validated", map[string]any{
		"tenantId":             tenantID,
		"recordType":           string(recordType),
		"recordsChecked":       check.RecordsChecked,
		"recordsProtected":     check.RecordsProtected,
		"minimumRetentionDays": minimum,
		"allowed":              check.Allowed,
	})
	return check, nil
}
