package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultMockPageSize is the listing page size used by a MockStore unless
// overridden with SetPageSize.
const DefaultMockPageSize = 1000

// FaultFunc decides whether an operation on a key should fail.
// Returning nil lets the operation proceed.
type FaultFunc func(op, key string) error

// MockStore is an in-memory implementation of the Store interface for testing.
//
// Beyond plain storage it models storage classes, archive restores,
// paginated listing and fault injection so tier migration paths can be
// exercised without a real bucket.
type MockStore struct {
	mu      sync.RWMutex
	objects map[string]*mockObject

	pageSize      int
	now           func() time.Time
	fault         FaultFunc
	bucketMissing bool
	deferRestores bool
	closed        bool

	restoreRequests []string
}

type mockObject struct {
	data      []byte
	meta      ObjectMeta
	restoring bool
	restored  bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		objects:  make(map[string]*mockObject),
		pageSize: DefaultMockPageSize,
		now:      time.Now,
	}
}

// SetPageSize sets the maximum number of objects returned per ListPage call.
func (s *MockStore) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 {
		n = 1
	}
	s.pageSize = n
}

// SetClock overrides the time source used for LastModified stamps.
func (s *MockStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetFault installs a fault injector consulted before every operation.
// Pass nil to clear it.
func (s *MockStore) SetFault(fn FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = fn
}

// SetBucketMissing makes every operation fail with ErrBucketNotFound.
func (s *MockStore) SetBucketMissing(missing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucketMissing = missing
}

// SetDeferRestores controls whether Restore completes immediately (the
// default) or leaves the object restoring until CompleteRestores is called.
func (s *MockStore) SetDeferRestores(deferred bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deferRestores = deferred
}

// CompleteRestores finishes every pending restore.
func (s *MockStore) CompleteRestores() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, obj := range s.objects {
		if obj.restoring {
			obj.restoring = false
			obj.restored = true
		}
	}
}

// SetLastModified overrides the LastModified stamp of an existing object.
// Returns false if the key does not exist.
func (s *MockStore) SetLastModified(key string, t time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return false
	}
	obj.meta.LastModified = t.UnixMilli()
	return true
}

// RestoreRequests returns the keys passed to successful Restore calls, in order.
func (s *MockStore) RestoreRequests() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.restoreRequests...)
}

// IsRestored reports whether an archived object has a readable restored copy.
func (s *MockStore) IsRestored(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return ok && obj.restored
}

// Keys returns all stored keys in lexicographic order.
func (s *MockStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// check runs the common preconditions. Caller must hold s.mu.
func (s *MockStore) check(op, key string) error {
	if s.closed {
		return &ObjectError{Op: op, Key: key, Err: ErrStoreClosed}
	}
	if s.bucketMissing {
		return &ObjectError{Op: op, Key: key, Err: ErrBucketNotFound}
	}
	if s.fault != nil {
		if err := s.fault(op, key); err != nil {
			return &ObjectError{Op: op, Key: key, Err: err}
		}
	}
	return nil
}

func (s *MockStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return s.PutWithOptions(ctx, key, reader, size, contentType, PutOptions{})
}

func (s *MockStore) PutWithOptions(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return &ObjectError{Op: "Put", Key: key, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("Put", key); err != nil {
		return err
	}

	if opts.IfNoneMatch == "*" {
		if _, exists := s.objects[key]; exists {
			return &ObjectError{Op: "Put", Key: key, Err: ErrPreconditionFailed}
		}
	}

	class := opts.StorageClass
	if class == "" {
		class = StorageClassStandard
	}

	sum := md5.Sum(data)
	s.objects[key] = &mockObject{
		data: data,
		meta: ObjectMeta{
			Key:          key,
			Size:         int64(len(data)),
			ContentType:  contentType,
			ETag:         hex.EncodeToString(sum[:]),
			LastModified: s.now().UnixMilli(),
			StorageClass: class,
			Metadata:     maps.Clone(opts.Metadata),
		},
	}

	return nil
}

func (s *MockStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check("Get", key); err != nil {
		return nil, err
	}

	obj, exists := s.objects[key]
	if !exists {
		return nil, &ObjectError{Op: "Get", Key: key, Err: ErrNotFound}
	}
	if obj.meta.StorageClass.IsArchive() && !obj.restored {
		return nil, &ObjectError{Op: "Get", Key: key, Err: ErrInvalidObjectState}
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *MockStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return ObjectMeta{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check("Head", key); err != nil {
		return ObjectMeta{}, err
	}

	obj, exists := s.objects[key]
	if !exists {
		return ObjectMeta{}, &ObjectError{Op: "Head", Key: key, Err: ErrNotFound}
	}

	return obj.meta, nil
}

func (s *MockStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("Delete", key); err != nil {
		return err
	}

	delete(s.objects, key)
	return nil
}

func (s *MockStore) ListPage(ctx context.Context, prefix string, cursor Cursor) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check("List", prefix); err != nil {
		return Page{}, err
	}

	keys := make([]string, 0)
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) && key > string(cursor) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var page Page
	for i, key := range keys {
		if i == s.pageSize {
			page.NextCursor = Cursor(page.Objects[len(page.Objects)-1].Key)
			break
		}
		page.Objects = append(page.Objects, s.objects[key].meta)
	}

	return page, nil
}

func (s *MockStore) Copy(ctx context.Context, srcKey, dstKey string, opts CopyOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("Copy", srcKey); err != nil {
		return err
	}

	src, exists := s.objects[srcKey]
	if !exists {
		return &ObjectError{Op: "Copy", Key: srcKey, Err: ErrNotFound}
	}
	if src.meta.StorageClass.IsArchive() && !src.restored {
		return &ObjectError{Op: "Copy", Key: srcKey, Err: ErrInvalidObjectState}
	}

	class := opts.StorageClass
	if class == "" {
		class = StorageClassStandard
	}

	meta := src.meta
	meta.Key = dstKey
	meta.StorageClass = class
	meta.LastModified = s.now().UnixMilli()
	meta.Metadata = maps.Clone(src.meta.Metadata)

	s.objects[dstKey] = &mockObject{
		data: bytes.Clone(src.data),
		meta: meta,
	}
	return nil
}

func (s *MockStore) Restore(ctx context.Context, key string, opts RestoreOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("Restore", key); err != nil {
		return err
	}

	obj, exists := s.objects[key]
	if !exists {
		return &ObjectError{Op: "Restore", Key: key, Err: ErrNotFound}
	}
	if !obj.meta.StorageClass.IsArchive() {
		return &ObjectError{Op: "Restore", Key: key, Err: ErrInvalidObjectState}
	}
	if obj.restoring {
		return &ObjectError{Op: "Restore", Key: key, Err: ErrRestoreInProgress}
	}

	if s.deferRestores {
		obj.restoring = true
	} else {
		obj.restored = true
	}
	s.restoreRequests = append(s.restoreRequests, key)
	return nil
}

func (s *MockStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Store = (*MockStore)(nil)
