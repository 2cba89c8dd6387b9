package objectstore

import (
	"context"
	"io"
	"time"
)

// MetricsRecorder is the interface for recording object store operation metrics.
// This allows the objectstore package to be decoupled from the metrics package.
type MetricsRecorder interface {
	RecordPut(durationSeconds float64, success bool, bytes int64)
	RecordGet(durationSeconds float64, success bool, bytes int64)
	RecordHead(durationSeconds float64, success bool)
	RecordDelete(durationSeconds float64, success bool)
	RecordList(durationSeconds float64, success bool, objects int)
	RecordCopy(durationSeconds float64, success bool, class StorageClass)
	RecordRestore(durationSeconds float64, success bool)
}

// InstrumentedStore wraps a Store and records metrics for each operation.
type InstrumentedStore struct {
	store   Store
	metrics MetricsRecorder
}

// NewInstrumentedStore creates an instrumented wrapper around a Store.
// If metrics is nil, no metrics are recorded and operations pass through directly.
func NewInstrumentedStore(store Store, metrics MetricsRecorder) *InstrumentedStore {
	return &InstrumentedStore{
		store:   store,
		metrics: metrics,
	}
}

// Put stores an object at the given key.
func (s *InstrumentedStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return s.PutWithOptions(ctx, key, reader, size, contentType, PutOptions{})
}

// PutWithOptions stores an object with additional options.
func (s *InstrumentedStore) PutWithOptions(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts PutOptions) error {
	start := time.Now()
	err := s.store.PutWithOptions(ctx, key, reader, size, contentType, opts)
	if s.metrics != nil {
		s.metrics.RecordPut(time.Since(start).Seconds(), succeeded(err), size)
	}
	return err
}

// Get retrieves an entire object. Bytes are counted as the body is read and
// the operation is recorded when the body is closed.
func (s *InstrumentedStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.store.Get(ctx, key)
	if s.metrics == nil {
		return rc, err
	}
	if err != nil {
		s.metrics.RecordGet(time.Since(start).Seconds(), succeeded(err), 0)
		return nil, err
	}
	return &countingReadCloser{
		ReadCloser: rc,
		start:      start,
		metrics:    s.metrics,
	}, nil
}

// Head retrieves object metadata without the body.
func (s *InstrumentedStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	start := time.Now()
	meta, err := s.store.Head(ctx, key)
	if s.metrics != nil {
		s.metrics.RecordHead(time.Since(start).Seconds(), succeeded(err))
	}
	return meta, err
}

// Delete removes an object.
func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.store.Delete(ctx, key)
	if s.metrics != nil {
		s.metrics.RecordDelete(time.Since(start).Seconds(), err == nil)
	}
	return err
}

// ListPage returns one page of objects matching the given prefix.
func (s *InstrumentedStore) ListPage(ctx context.Context, prefix string, cursor Cursor) (Page, error) {
	start := time.Now()
	page, err := s.store.ListPage(ctx, prefix, cursor)
	if s.metrics != nil {
		s.metrics.RecordList(time.Since(start).Seconds(), err == nil, len(page.Objects))
	}
	return page, err
}

// Copy copies an object into the requested storage class.
func (s *InstrumentedStore) Copy(ctx context.Context, srcKey, dstKey string, opts CopyOptions) error {
	start := time.Now()
	err := s.store.Copy(ctx, srcKey, dstKey, opts)
	if s.metrics != nil {
		class := opts.StorageClass
		if class == "" {
			class = StorageClassStandard
		}
		s.metrics.RecordCopy(time.Since(start).Seconds(), err == nil, class)
	}
	return err
}

// Restore requests a temporary readable copy of an archived object.
func (s *InstrumentedStore) Restore(ctx context.Context, key string, opts RestoreOptions) error {
	start := time.Now()
	err := s.store.Restore(ctx, key, opts)
	if s.metrics != nil {
		s.metrics.RecordRestore(time.Since(start).Seconds(), err == nil)
	}
	return err
}

// Close releases resources associated with the store.
func (s *InstrumentedStore) Close() error {
	return s.store.Close()
}

// succeeded treats a clean not-found as a successful round trip: the store
// answered, the object just wasn't there.
func succeeded(err error) bool {
	return err == nil || IsNotFound(err)
}

// countingReadCloser wraps a ReadCloser to track bytes read and record metrics on close.
type countingReadCloser struct {
	io.ReadCloser
	start     time.Time
	metrics   MetricsRecorder
	bytesRead int64
	readErr   bool
	closed    bool
}

func (r *countingReadCloser) Read(p []byte) (n int, err error) {
	n, err = r.ReadCloser.Read(p)
	r.bytesRead += int64(n)
	if err != nil && err != io.EOF {
		r.readErr = true
	}
	return n, err
}

func (r *countingReadCloser) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.ReadCloser.Close()
	r.metrics.RecordGet(time.Since(r.start).Seconds(), err == nil && !r.readErr, r.bytesRead)
	return err
}

// Ensure InstrumentedStore implements Store.
var _ Store = (*InstrumentedStore)(nil)
