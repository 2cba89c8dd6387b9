package archival

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/dray-io/auditvault/internal/metadata"
	"github.com/dray-io/auditvault/internal/metadata/keys"
)

// Lock-related errors.
var (
	// ErrLockHeldByOther is returned when the tenant lock belongs to another
	// archiver.
	ErrLockHeldByOther = errors.New("archival: lock held by another archiver")

	// ErrInvalidTenantID is returned when a tenant ID is empty.
	ErrInvalidTenantID = errors.New("archival: invalid tenant ID")
)

// Lock is the ephemeral per-tenant archival lock stored at
// /auditvault/v1/archival/locks/<tenantId>.
type Lock struct {
	TenantID     string `json:"tenantId"`
	OwnerID      string `json:"ownerId"`
	AcquiredAtMs int64  `json:"acquiredAtMs"`

	// RunID identifies the archival run holding the lock.
	RunID string `json:"runId,omitempty"`
}

// AcquireResult is the outcome of an acquisition attempt. Lock is ours when
// Acquired is true, otherwise it describes the current holder.
type AcquireResult struct {
	Acquired bool
	Lock     *Lock
}

// LockManager serializes archival runs per tenant across processes.
//
// Locks are ephemeral keys: they disappear when the owning session ends, so
// a crashed archiver never blocks a tenant for longer than its session TTL.
type LockManager struct {
	meta    metadata.MetadataStore
	ownerID string
	now     func() time.Time

	mu   sync.Mutex
	held map[string]*Lock
}

// NewLockManager returns a lock manager. An empty ownerID is replaced by a
// random UUID.
func NewLockManager(meta metadata.MetadataStore, ownerID string) *LockManager {
	if ownerID == "" {
		ownerID = uuid.NewString()
	}
	return &LockManager{
		meta:    meta,
		ownerID: ownerID,
		now:     time.Now,
		held:    make(map[string]*Lock),
	}
}

// OwnerID returns the identity this manager acquires locks under.
func (lm *LockManager) OwnerID() string {
	return lm.ownerID
}

// Acquire takes the archival lock for a tenant, renewing it if this owner
// already holds it. Creation uses expect-not-exists and renewal uses the
// stored version, so concurrent acquirers cannot both win.
func (lm *LockManager) Acquire(ctx context.Context, tenantID, runID string) (*AcquireResult, error) {
	if tenantID == "" {
		return nil, ErrInvalidTenantID
	}

	key := keys.ArchivalLockKey(tenantID)
	now := lm.now().UnixMilli()

	res, err := lm.meta.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("archival: get lock: %w", err)
	}

	if res.Exists {
		var existing Lock
		if err := json.Unmarshal(res.Value, &existing); err != nil {
			return nil, fmt.Errorf("archival: unmarshal lock: %w", err)
		}
		if existing.OwnerID != lm.ownerID {
			return &AcquireResult{Acquired: false, Lock: &existing}, nil
		}

		existing.AcquiredAtMs = now
		if runID != "" {
			existing.RunID = runID
		}
		data, err := json.Marshal(existing)
		if err != nil {
			return nil, fmt.Errorf("archival: marshal lock: %w", err)
		}
		if _, err := lm.meta.PutEphemeral(ctx, key, data, metadata.WithEphemeralExpectedVersion(res.Version)); err != nil {
			if errors.Is(err, metadata.ErrVersionMismatch) {
				return lm.conflict(ctx, key)
			}
			return nil, fmt.Errorf("archival: renew lock: %w", err)
		}
		lm.remember(tenantID, &existing)
		return &AcquireResult{Acquired: true, Lock: &existing}, nil
	}

	lock := Lock{
		TenantID:     tenantID,
		OwnerID:      lm.ownerID,
		AcquiredAtMs: now,
		RunID:        runID,
	}
	data, err := json.Marshal(lock)
	if err != nil {
		return nil, fmt.Errorf("archival: marshal lock: %w", err)
	}
	if _, err := lm.meta.PutEphemeral(ctx, key, data, metadata.WithEphemeralExpectNotExists()); err != nil {
		if errors.Is(err, metadata.ErrVersionMismatch) {
			return lm.conflict(ctx, key)
		}
		return nil, fmt.Errorf("archival: acquire lock: %w", err)
	}
	lm.remember(tenantID, &lock)
	return &AcquireResult{Acquired: true, Lock: &lock}, nil
}

// conflict re-reads the lock after losing a race and reports the winner.
func (lm *LockManager) conflict(ctx context.Context, key string) (*AcquireResult, error) {
	res, err := lm.meta.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("archival: get lock after conflict: %w", err)
	}
	if !res.Exists {
		return nil, errors.New("archival: lock disappeared during conflict resolution")
	}
	var existing Lock
	if err := json.Unmarshal(res.Value, &existing); err != nil {
		return nil, fmt.Errorf("archival: unmarshal lock after conflict: %w", err)
	}
	return &AcquireResult{Acquired: false, Lock: &existing}, nil
}

// Release drops the tenant lock if this owner holds it. Releasing a lock
// held by someone else, or not held at all, is a no-op.
func (lm *LockManager) Release(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return ErrInvalidTenantID
	}

	key := keys.ArchivalLockKey(tenantID)
	res, err := lm.meta.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("archival: get lock for release: %w", err)
	}
	defer lm.forget(tenantID)

	if !res.Exists {
		return nil
	}
	var lock Lock
	if err := json.Unmarshal(res.Value, &lock); err != nil {
		return fmt.Errorf("archival: unmarshal lock for release: %w", err)
	}
	if lock.OwnerID != lm.ownerID {
		return nil
	}

	// Version-checked so a lock taken over between Get and Delete survives.
	if err := lm.meta.Delete(ctx, key, metadata.WithDeleteExpectedVersion(res.Version)); err != nil {
		if errors.Is(err, metadata.ErrVersionMismatch) {
			return nil
		}
		return fmt.Errorf("archival: delete lock: %w", err)
	}
	return nil
}

// Get returns the current lock of a tenant, or nil if unlocked.
func (lm *LockManager) Get(ctx context.Context, tenantID string) (*Lock, error) {
	if tenantID == "" {
		return nil, ErrInvalidTenantID
	}
	res, err := lm.meta.Get(ctx, keys.ArchivalLockKey(tenantID))
	if err != nil {
		return nil, fmt.Errorf("archival: get lock: %w", err)
	}
	if !res.Exists {
		return nil, nil
	}
	var lock Lock
	if err := json.Unmarshal(res.Value, &lock); err != nil {
		return nil, fmt.Errorf("archival: unmarshal lock: %w", err)
	}
	return &lock, nil
}

// IsHolder reads the store to check whether this owner holds the lock.
func (lm *LockManager) IsHolder(ctx context.Context, tenantID string) (bool, error) {
	lock, err := lm.Get(ctx, tenantID)
	if err != nil || lock == nil {
		return false, err
	}
	return lock.OwnerID == lm.ownerID, nil
}

// Held returns copies of the locks this manager believes it holds.
func (lm *LockManager) Held() []Lock {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	locks := make([]Lock, 0, len(lm.held))
	for _, l := range lm.held {
		locks = append(locks, *l)
	}
	return locks
}

// ReleaseAll releases every held lock. Used on shutdown.
func (lm *LockManager) ReleaseAll(ctx context.Context) error {
	var errs []error
	for _, l := range lm.Held() {
		if err := lm.Release(ctx, l.TenantID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (lm *LockManager) remember(tenantID string, l *Lock) {
	lm.mu.Lock()
	lm.held[tenantID] = l
	lm.mu.Unlock()
}

func (lm *LockManager) forget(tenantID string) {
	lm.mu.Lock()
	delete(lm.held, tenantID)
	lm.mu.Unlock()
}
