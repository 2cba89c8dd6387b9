package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// contacting the backend.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerConfig configures a BreakerStore.
type BreakerConfig struct {
	// Name identifies the breaker in state change callbacks.
	Name string

	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32

	// Interval is the cyclic period in the closed state after which
	// failure counts are cleared. Zero never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration

	// ConsecutiveFailures trips the breaker when reached.
	ConsecutiveFailures uint32

	// OnStateChange is called on every state transition. Optional.
	OnStateChange func(name, from, to string)
}

// DefaultBreakerConfig returns the settings used by the daemon.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "objectstore",
		MaxRequests:         3,
		Interval:            time.Minute,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerStore wraps a Store with a circuit breaker so a failing bucket is
// not hammered by scans that touch thousands of keys.
//
// Outcomes that prove the backend is answering (not found, precondition
// failures, restore already in progress, invalid object state, caller
// cancellation) do not count as failures.
type BreakerStore struct {
	store Store
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerStore wraps store with a circuit breaker.
func NewBreakerStore(store Store, cfg BreakerConfig) *BreakerStore {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = DefaultBreakerConfig().ConsecutiveFailures
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: isBackendHealthy,
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, from.String(), to.String())
		}
	}

	return &BreakerStore{
		store: store,
		cb:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State returns the current breaker state ("closed", "half-open" or "open").
func (s *BreakerStore) State() string {
	return s.cb.State().String()
}

func isBackendHealthy(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPreconditionFailed),
		errors.Is(err, ErrRestoreInProgress),
		errors.Is(err, ErrInvalidObjectState),
		errors.Is(err, context.Canceled):
		return true
	default:
		return false
	}
}

func (s *BreakerStore) execute(op, key string, fn func() (any, error)) (any, error) {
	result, err := s.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &ObjectError{Op: op, Key: key, Err: fmt.Errorf("%w: %w", ErrCircuitOpen, err)}
	}
	return result, err
}

func (s *BreakerStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return s.PutWithOptions(ctx, key, reader, size, contentType, PutOptions{})
}

func (s *BreakerStore) PutWithOptions(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts PutOptions) error {
	_, err := s.execute("Put", key, func() (any, error) {
		return nil, s.store.PutWithOptions(ctx, key, reader, size, contentType, opts)
	})
	return err
}

func (s *BreakerStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	result, err := s.execute("Get", key, func() (any, error) {
		return s.store.Get(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return result.(io.ReadCloser), nil
}

func (s *BreakerStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	result, err := s.execute("Head", key, func() (any, error) {
		return s.store.Head(ctx, key)
	})
	if err != nil {
		return ObjectMeta{}, err
	}
	return result.(ObjectMeta), nil
}

func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := s.execute("Delete", key, func() (any, error) {
		return nil, s.store.Delete(ctx, key)
	})
	return err
}

func (s *BreakerStore) ListPage(ctx context.Context, prefix string, cursor Cursor) (Page, error) {
	result, err := s.execute("List", prefix, func() (any, error) {
		return s.store.ListPage(ctx, prefix, cursor)
	})
	if err != nil {
		return Page{}, err
	}
	return result.(Page), nil
}

func (s *BreakerStore) Copy(ctx context.Context, srcKey, dstKey string, opts CopyOptions) error {
	_, err := s.execute("Copy", srcKey, func() (any, error) {
		return nil, s.store.Copy(ctx, srcKey, dstKey, opts)
	})
	return err
}

func (s *BreakerStore) Restore(ctx context.Context, key string, opts RestoreOptions) error {
	_, err := s.execute("Restore", key, func() (any, error) {
		return nil, s.store.Restore(ctx, key, opts)
	})
	return err
}

func (s *BreakerStore) Close() error {
	return s.store.Close()
}

var _ Store = (*BreakerStore)(nil)
