// Package badger implements the MetadataStore interface on an embedded
// BadgerDB.
//
// It serves single-node deployments that have no Oxia cluster. Values are
// stored behind an 8-byte big-endian version header so CAS semantics match
// the distributed store. Ephemeral keys are written with a TTL and kept
// alive by a background refresher; they are deleted on Close and expire on
// their own if the process dies.
package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dray-io/auditvault/internal/logging"
	"github.com/dray-io/auditvault/internal/metadata"
)

const (
	// DefaultSessionTTL bounds how long an ephemeral key outlives a crashed process.
	DefaultSessionTTL = 15 * time.Second

	// DefaultGCInterval is how often value log GC runs for on-disk stores.
	DefaultGCInterval = 10 * time.Minute

	// DefaultGCDiscardRatio is the discard ratio handed to RunValueLogGC.
	DefaultGCDiscardRatio = 0.5

	versionHeaderSize = 8
	metaEphemeral     = byte(0x01)
	conflictRetries   = 5
)

// Config holds configuration for a Badger-backed store.
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in memory. Used by tests and the memory backend.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// SessionTTL is the lifetime of ephemeral keys between refreshes.
	SessionTTL time.Duration

	// GCInterval is the value log GC period. Zero uses DefaultGCInterval,
	// negative disables GC.
	GCInterval time.Duration

	// GCDiscardRatio is passed to RunValueLogGC.
	GCDiscardRatio float64

	// Logger receives badger's internal logs. Nil silences them.
	Logger *logging.Logger
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return errors.New("badger: path is required unless in-memory")
	}
	if c.GCDiscardRatio < 0 || c.GCDiscardRatio >= 1 {
		return fmt.Errorf("badger: gc discard ratio %v must be in [0, 1)", c.GCDiscardRatio)
	}
	return nil
}

// Store implements metadata.MetadataStore on BadgerDB.
type Store struct {
	db     *badger.DB
	cfg    Config
	logger *logging.Logger
	closed atomic.Bool

	mu        sync.Mutex
	ephemeral map[string]struct{}

	stop chan struct{}
	wg   sync.WaitGroup
}

// badgerLogger routes badger's printf-style logs into the service logger.
type badgerLogger struct {
	l *logging.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Errorf(fmt.Sprintf(format, args...), map[string]any{"component": "badger"})
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warnf(fmt.Sprintf(format, args...), map[string]any{"component": "badger"})
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debugf(fmt.Sprintf(format, args...), map[string]any{"component": "badger"})
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debugf(fmt.Sprintf(format, args...), map[string]any{"component": "badger"})
}

// New opens a Badger-backed store.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.GCInterval == 0 {
		cfg.GCInterval = DefaultGCInterval
	}
	if cfg.GCDiscardRatio == 0 {
		cfg.GCDiscardRatio = DefaultGCDiscardRatio
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(badgerLogger{l: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = logging.Nop()
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}

	s := &Store{
		db:        db,
		cfg:       cfg,
		logger:    logger,
		ephemeral: make(map[string]struct{}),
		stop:      make(chan struct{}),
	}

	s.wg.Add(1)
	go s.refreshLoop()
	if !cfg.InMemory && cfg.GCInterval > 0 {
		s.wg.Add(1)
		go s.gcLoop()
	}
	return s, nil
}

func encode(version metadata.Version, value []byte) []byte {
	buf := make([]byte, versionHeaderSize+len(value))
	binary.BigEndian.PutUint64(buf, uint64(version))
	copy(buf[versionHeaderSize:], value)
	return buf
}

func decode(raw []byte) (metadata.Version, []byte, error) {
	if len(raw) < versionHeaderSize {
		return 0, nil, fmt.Errorf("badger: corrupt value: %d bytes", len(raw))
	}
	return metadata.Version(binary.BigEndian.Uint64(raw)), raw[versionHeaderSize:], nil
}

// current returns the stored version and value of key inside txn.
func current(txn *badger.Txn, key []byte) (metadata.Version, []byte, bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0, nil, false, err
	}
	version, value, err := decode(raw)
	if err != nil {
		return 0, nil, false, err
	}
	return version, value, true, nil
}

func (s *Store) checkClosed(ctx context.Context) error {
	if s.closed.Load() {
		return metadata.ErrStoreClosed
	}
	return ctx.Err()
}

// update runs fn in a read-write transaction, retrying commit conflicts.
// A conflict on a guarded write is reported as a version mismatch since the
// guard was evaluated against a snapshot someone else changed.
func (s *Store) update(ctx context.Context, guarded bool, fn func(txn *badger.Txn) error) error {
	var err error
	for range conflictRetries {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if guarded {
			return metadata.ErrVersionMismatch
		}
	}
	return err
}

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) (metadata.GetResult, error) {
	if err := s.checkClosed(ctx); err != nil {
		return metadata.GetResult{}, err
	}

	var result metadata.GetResult
	err := s.db.View(func(txn *badger.Txn) error {
		version, value, exists, err := current(txn, []byte(key))
		if err != nil {
			return err
		}
		result = metadata.GetResult{Value: value, Version: version, Exists: exists}
		return nil
	})
	if err != nil {
		return metadata.GetResult{}, fmt.Errorf("badger: get %q: %w", key, err)
	}
	return result, nil
}

// Put stores a value, optionally guarded by an expected version.
func (s *Store) Put(ctx context.Context, key string, value []byte, opts ...metadata.PutOption) (metadata.Version, error) {
	if err := s.checkClosed(ctx); err != nil {
		return 0, err
	}

	expected := metadata.ExtractExpectedVersion(opts)
	var newVersion metadata.Version
	err := s.update(ctx, expected != nil, func(txn *badger.Txn) error {
		version, _, exists, err := current(txn, []byte(key))
		if err != nil {
			return err
		}
		if !metadata.CheckVersion(expected, exists, version) {
			return metadata.ErrVersionMismatch
		}
		newVersion = version + 1
		return txn.Set([]byte(key), encode(newVersion, value))
	})
	if err != nil {
		if errors.Is(err, metadata.ErrVersionMismatch) {
			return 0, err
		}
		return 0, fmt.Errorf("badger: put %q: %w", key, err)
	}

	s.untrack(key)
	return newVersion, nil
}

// Delete removes a key. Deleting a missing key succeeds.
func (s *Store) Delete(ctx context.Context, key string, opts ...metadata.DeleteOption) error {
	if err := s.checkClosed(ctx); err != nil {
		return err
	}

	expected := metadata.ExtractDeleteExpectedVersion(opts)
	err := s.update(ctx, expected != nil, func(txn *badger.Txn) error {
		version, _, exists, err := current(txn, []byte(key))
		if err != nil {
			return err
		}
		if !exists {
			if expected != nil {
				return metadata.ErrVersionMismatch
			}
			return nil
		}
		if expected != nil && *expected != version {
			return metadata.ErrVersionMismatch
		}
		return txn.Delete([]byte(key))
	})
	if err != nil {
		if errors.Is(err, metadata.ErrVersionMismatch) {
			return err
		}
		return fmt.Errorf("badger: delete %q: %w", key, err)
	}

	s.untrack(key)
	return nil
}

// List returns keys in [startKey, endKey), or every key prefixed by
// startKey when endKey is empty.
func (s *Store) List(ctx context.Context, startKey, endKey string, limit int) ([]metadata.KV, error) {
	if err := s.checkClosed(ctx); err != nil {
		return nil, err
	}

	var result []metadata.KV
	err := s.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		if endKey == "" {
			iopts.Prefix = []byte(startKey)
		}
		it := txn.NewIterator(iopts)
		defer it.Close()

		end := []byte(endKey)
		for it.Seek([]byte(startKey)); it.Valid(); it.Next() {
			item := it.Item()
			if endKey != "" && bytes.Compare(item.Key(), end) >= 0 {
				break
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			version, value, err := decode(raw)
			if err != nil {
				return err
			}
			result = append(result, metadata.KV{
				Key:     string(item.KeyCopy(nil)),
				Value:   value,
				Version: version,
			})
			if limit > 0 && len(result) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: list %q: %w", startKey, err)
	}
	return result, nil
}

// PutEphemeral stores a value tied to this store's lifetime.
func (s *Store) PutEphemeral(ctx context.Context, key string, value []byte, opts ...metadata.EphemeralOption) (metadata.Version, error) {
	if err := s.checkClosed(ctx); err != nil {
		return 0, err
	}

	expectNotExists, expected := metadata.ExtractEphemeralOptions(opts)
	guarded := expectNotExists || expected != nil

	var newVersion metadata.Version
	err := s.update(ctx, guarded, func(txn *badger.Txn) error {
		version, _, exists, err := current(txn, []byte(key))
		if err != nil {
			return err
		}
		if expectNotExists && exists {
			return metadata.ErrVersionMismatch
		}
		if !metadata.CheckVersion(expected, exists, version) {
			return metadata.ErrVersionMismatch
		}
		newVersion = version + 1
		entry := badger.NewEntry([]byte(key), encode(newVersion, value)).
			WithMeta(metaEphemeral).
			WithTTL(s.cfg.SessionTTL)
		return txn.SetEntry(entry)
	})
	if err != nil {
		if errors.Is(err, metadata.ErrVersionMismatch) {
			return 0, err
		}
		return 0, fmt.Errorf("badger: put ephemeral %q: %w", key, err)
	}

	s.mu.Lock()
	s.ephemeral[key] = struct{}{}
	s.mu.Unlock()
	return newVersion, nil
}

func (s *Store) untrack(key string) {
	s.mu.Lock()
	delete(s.ephemeral, key)
	s.mu.Unlock()
}

func (s *Store) trackedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.ephemeral))
	for k := range s.ephemeral {
		keys = append(keys, k)
	}
	return keys
}

// refreshEphemeral extends the TTL of every ephemeral key this store owns.
func (s *Store) refreshEphemeral() {
	for _, key := range s.trackedKeys() {
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				s.untrack(key)
				return nil
			}
			if err != nil {
				return err
			}
			if item.UserMeta()&metaEphemeral == 0 {
				s.untrack(key)
				return nil
			}
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			entry := badger.NewEntry([]byte(key), raw).
				WithMeta(metaEphemeral).
				WithTTL(s.cfg.SessionTTL)
			return txn.SetEntry(entry)
		})
		if err != nil && !errors.Is(err, badger.ErrConflict) {
			s.logger.Warnf("ephemeral key refresh failed", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
}

func (s *Store) refreshLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SessionTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.refreshEphemeral()
		}
	}
}

func (s *Store) gcLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.runGC()
		}
	}
}

func (s *Store) runGC() {
	err := s.db.RunValueLogGC(s.cfg.GCDiscardRatio)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		s.logger.Warnf("badger value log gc failed", map[string]any{"error": err.Error()})
	}
}

// Close deletes this store's ephemeral keys and closes the database.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stop)
	s.wg.Wait()

	keys := s.trackedKeys()
	if len(keys) > 0 {
		err := s.db.Update(func(txn *badger.Txn) error {
			for _, key := range keys {
				if err := txn.Delete([]byte(key)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.logger.Warnf("failed to release ephemeral keys", map[string]any{"error": err.Error()})
		}
	}

	return s.db.Close()
}

var _ metadata.MetadataStore = (*Store)(nil)
