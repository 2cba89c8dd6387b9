package retention

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/auditvault/internal/audit"
	"github.com/dray-io/auditvault/internal/logging"
	"github.com/dray-io/auditvault/internal/metadata"
	"github.com/dray-io/auditvault/internal/objectstore"
)

type deletionFixture struct {
	policies  *PolicyStore
	store     *objectstore.MockStore
	validator *DeletionValidator
}

func newDeletionFixture(t *testing.T, minimumDays int) *deletionFixture {
	t.Helper()
	policies := NewPolicyStore(metadata.NewMockStore(),
		WithDefaultMinimum(minimumDays), WithClock(func() time.Time { return t0 }), WithLogger(logging.Nop()))
	store := objectstore.NewMockStore()
	return &deletionFixture{
		policies: policies,
		store:    store,
		validator: NewDeletionValidator(policies, store,
			WithDeletionClock(func() time.Time { return t0 }), WithDeletionLogger(logging.Nop())),
	}
}

// seed writes a hot record whose object was last modified age ago.
func (f *deletionFixture) seed(t *testing.T, id string, age time.Duration) string {
	t.Helper()
	ref := audit.RecordRef{TenantID: "acme", RecordType: audit.RecordTypeTradeEvent, CreatedAt: t0.Add(-age), RecordID: id}
	key := audit.RecordKey(audit.TierHot, ref)
	body := []byte(`{"id":"` + id + `"}`)
	require.NoError(t, f.store.Put(context.Background(), key, bytes.NewReader(body), int64(len(body)), "application/json"))
	require.True(t, f.store.SetLastModified(key, t0.Add(-age)))
	return key
}

func TestValidateDeletionUnknownRecordIsProtected(t *testing.T) {
	f := newDeletionFixture(t, 30)

	check, err := f.validator.ValidateDeletion(context.Background(), "acme", audit.RecordTypeTradeEvent, []string{"ghost"})
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, 1, check.RecordsChecked)
	assert.Equal(t, 1, check.RecordsProtected)
	assert.Equal(t, []string{"ghost"}, check.ProtectedRecordIDs)
	assert.Contains(t, check.Reason, "1 could not be located")
}

func TestValidateDeletionWindow(t *testing.T) {
	f := newDeletionFixture(t, 30)
	f.seed(t, "old", 45*24*time.Hour)
	f.seed(t, "young", 5*24*time.Hour)
	ctx := context.Background()

	check, err := f.validator.ValidateDeletion(ctx, "acme", audit.RecordTypeTradeEvent, []string{"old"})
	require.NoError(t, err)
	assert.True(t, check.Allowed)
	assert.Empty(t, check.ProtectedRecordIDs)
	assert.NotNil(t, check.ProtectedRecordIDs)
	assert.Empty(t, check.Reason)

	check, err = f.validator.ValidateDeletion(ctx, "acme", audit.RecordTypeTradeEvent, []string{"old", "young"})
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, 2, check.RecordsChecked)
	assert.Equal(t, []string{"young"}, check.ProtectedRecordIDs)
	assert.Contains(t, check.Reason, "30-day")
}

func TestValidateDeletionExactlyAtThreshold(t *testing.T) {
	f := newDeletionFixture(t, 30)
	f.seed(t, "edge", 30*24*time.Hour)

	check, err := f.validator.ValidateDeletion(context.Background(), "acme", audit.RecordTypeTradeEvent, []string{"edge"})
	require.NoError(t, err)
	assert.True(t, check.Allowed)
}

func TestValidateDeletionUsesPolicyMinimum(t *testing.T) {
	f := newDeletionFixture(t, 30)
	f.seed(t, "r1", 45*24*time.Hour)
	ctx := context.Background()

	_, err := f.policies.SetPolicy(ctx, PolicyInput{
		TenantID: "acme", RecordType: audit.RecordTypeTradeEvent,
		RetentionDays: 400, ArchiveAfterDays: 30, MinimumRetentionDays: intPtr(365),
	})
	require.NoError(t, err)

	check, err := f.validator.ValidateDeletion(ctx, "acme", audit.RecordTypeTradeEvent, []string{"r1"})
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, []string{"r1"}, check.ProtectedRecordIDs)
}

func TestValidateDeletionDeduplicates(t *testing.T) {
	f := newDeletionFixture(t, 30)
	f.seed(t, "young", time.Hour)

	check, err := f.validator.ValidateDeletion(context.Background(), "acme", audit.RecordTypeTradeEvent,
		[]string{"young", "young", "ghost", "young"})
	require.NoError(t, err)
	assert.Equal(t, 2, check.RecordsChecked)
	assert.Equal(t, 2, check.RecordsProtected)
	assert.Equal(t, []string{"young", "ghost"}, check.ProtectedRecordIDs)
}

func TestValidateDeletionEmptyRequest(t *testing.T) {
	f := newDeletionFixture(t, 30)

	check, err := f.validator.ValidateDeletion(context.Background(), "acme", audit.RecordTypeTradeEvent, nil)
	require.NoError(t, err)
	assert.True(t, check.Allowed)
	assert.Zero(t, check.RecordsChecked)
}

func TestValidateDeletionMatchesWholeIDs(t *testing.T) {
	f := newDeletionFixture(t, 30)
	f.seed(t, "r11", 90*24*time.Hour)

	check, err := f.validator.ValidateDeletion(context.Background(), "acme", audit.RecordTypeTradeEvent, []string{"r1"})
	require.NoError(t, err)
	assert.False(t, check.Allowed, "r1 must not match r11")
}

func TestValidateDeletionNewestCopyWins(t *testing.T) {
	f := newDeletionFixture(t, 30)
	f.seed(t, "dup", 90*24*time.Hour)
	f.seed(t, "dup", 2*24*time.Hour)

	check, err := f.validator.ValidateDeletion(context.Background(), "acme", audit.RecordTypeTradeEvent, []string{"dup"})
	require.NoError(t, err)
	assert.False(t, check.Allowed)
}

func TestValidateDeletionPaginates(t *testing.T) {
	f := newDeletionFixture(t, 30)
	f.store.SetPageSize(1)
	for _, id := range []string{"a", "b", "c", "d"} {
		f.seed(t, id, 60*24*time.Hour)
	}

	check, err := f.validator.ValidateDeletion(context.Background(), "acme", audit.RecordTypeTradeEvent, []string{"a", "d"})
	require.NoError(t, err)
	assert.True(t, check.Allowed)
}

func TestValidateDeletionScanError(t *testing.T) {
	f := newDeletionFixture(t, 30)
	boom := errors.New("listing unavailable")
	f.store.SetFault(func(op, key string) error {
		if op == "List" {
			return boom
		}
		return nil
	})

	_, err := f.validator.ValidateDeletion(context.Background(), "acme", audit.RecordTypeTradeEvent, []string{"r1"})
	assert.ErrorIs(t, err, boom)
}

func TestValidateDeletionRejectsBadScope(t *testing.T) {
	f := newDeletionFixture(t, 30)

	_, err := f.validator.ValidateDeletion(context.Background(), "acme", "NOPE", []string{"r1"})
	assert.ErrorIs(t, err, audit.ErrValidation)
}
