// Package gcs implements the objectstore.Store interface on Google Cloud Storage.
//
// GCS archive classes stay directly readable, so Restore only confirms the
// object exists. Storage classes are mapped onto the objectstore tiers:
// GLACIER and DEEP_ARCHIVE are written as ARCHIVE, and COLDLINE, NEARLINE
// and ARCHIVE objects are reported back as GLACIER.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dray-io/auditvault/internal/objectstore"
)

// DefaultPageSize is the listing page size when Config.PageSize is zero.
const DefaultPageSize = 1000

// Config configures a GCS store.
type Config struct {
	// Bucket is the name of the GCS bucket.
	Bucket string

	// CredentialsFile is a service account key file.
	// If empty, Application Default Credentials are used.
	CredentialsFile string

	// Endpoint overrides the storage endpoint (e.g., a local emulator).
	// Requests to a custom endpoint are sent without authentication.
	Endpoint string

	// PageSize caps the number of objects per ListPage call.
	PageSize int
}

// Store implements objectstore.Store using Google Cloud Storage.
type Store struct {
	client   *storage.Client
	bucket   *storage.BucketHandle
	name     string
	pageSize int
	closed   bool
	mu       sync.RWMutex
}

// New creates a new GCS store with the given configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs: bucket name is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: failed to create storage client: %w", err)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Store{
		client:   client,
		bucket:   client.Bucket(cfg.Bucket),
		name:     cfg.Bucket,
		pageSize: pageSize,
	}, nil
}

func (s *Store) checkClosed(op, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrStoreClosed}
	}
	return nil
}

// Put stores an object at the given key.
func (s *Store) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return s.PutWithOptions(ctx, key, reader, size, contentType, objectstore.PutOptions{})
}

// PutWithOptions stores an object with additional options. IfNoneMatch "*"
// becomes a DoesNotExist precondition on the write.
func (s *Store) PutWithOptions(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts objectstore.PutOptions) error {
	if err := s.checkClosed("Put", key); err != nil {
		return err
	}

	obj := s.bucket.Object(key)
	if opts.IfNoneMatch == "*" {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	// Cancelling the writer's context aborts the upload.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if len(opts.Metadata) > 0 {
		w.Metadata = opts.Metadata
	}
	if opts.StorageClass != "" {
		w.StorageClass = toGCSClass(opts.StorageClass)
	}

	if _, err := io.Copy(w, reader); err != nil {
		cancel()
		_ = w.Close()
		return s.wrapError("Put", key, err)
	}
	if err := w.Close(); err != nil {
		return s.wrapError("Put", key, err)
	}
	return nil
}

// Get retrieves an entire object.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := s.checkClosed("Get", key); err != nil {
		return nil, err
	}

	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, s.wrapError("Get", key, err)
	}
	return r, nil
}

// Head retrieves object metadata without the body.
func (s *Store) Head(ctx context.Context, key string) (objectstore.ObjectMeta, error) {
	if err := s.checkClosed("Head", key); err != nil {
		return objectstore.ObjectMeta{}, err
	}

	attrs, err := s.bucket.Object(key).Attrs(ctx)
	if err != nil {
		return objectstore.ObjectMeta{}, s.wrapError("Head", key, err)
	}
	return toMeta(attrs), nil
}

// Delete removes an object.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.checkClosed("Delete", key); err != nil {
		return err
	}

	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		wrapped := s.wrapError("Delete", key, err)
		if errors.Is(wrapped, objectstore.ErrNotFound) {
			return nil
		}
		return wrapped
	}
	return nil
}

// ListPage returns one page of objects matching the given prefix.
// The cursor is the GCS page token.
func (s *Store) ListPage(ctx context.Context, prefix string, cursor objectstore.Cursor) (objectstore.Page, error) {
	if err := s.checkClosed("List", prefix); err != nil {
		return objectstore.Page{}, err
	}

	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	pager := iterator.NewPager(it, s.pageSize, string(cursor))

	var attrs []*storage.ObjectAttrs
	next, err := pager.NextPage(&attrs)
	if err != nil {
		return objectstore.Page{}, s.wrapError("List", prefix, err)
	}

	page := objectstore.Page{
		Objects:    make([]objectstore.ObjectMeta, 0, len(attrs)),
		NextCursor: objectstore.Cursor(next),
	}
	for _, a := range attrs {
		page.Objects = append(page.Objects, toMeta(a))
	}
	return page, nil
}

// Copy rewrites srcKey to dstKey in the requested storage class.
func (s *Store) Copy(ctx context.Context, srcKey, dstKey string, opts objectstore.CopyOptions) error {
	if err := s.checkClosed("Copy", srcKey); err != nil {
		return err
	}

	copier := s.bucket.Object(dstKey).CopierFrom(s.bucket.Object(srcKey))
	if opts.StorageClass != "" {
		copier.StorageClass = toGCSClass(opts.StorageClass)
	}
	if _, err := copier.Run(ctx); err != nil {
		return s.wrapError("Copy", srcKey, err)
	}
	return nil
}

// Restore confirms the object exists and is in an archive class. GCS
// serves archive objects directly, so there is nothing to thaw.
func (s *Store) Restore(ctx context.Context, key string, opts objectstore.RestoreOptions) error {
	meta, err := s.Head(ctx, key)
	if err != nil {
		var objErr *objectstore.ObjectError
		if errors.As(err, &objErr) {
			objErr.Op = "Restore"
		}
		return err
	}
	if !meta.StorageClass.IsArchive() {
		return &objectstore.ObjectError{Op: "Restore", Key: key, Err: objectstore.ErrInvalidObjectState}
	}
	return nil
}

// Close releases resources associated with the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

func (s *Store) wrapError(op, key string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, storage.ErrObjectNotExist):
		return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrNotFound}
	case errors.Is(err, storage.ErrBucketNotExist):
		return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrBucketNotFound}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusNotFound:
			return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrNotFound}
		case http.StatusForbidden, http.StatusUnauthorized:
			return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrAccessDenied}
		case http.StatusPreconditionFailed:
			return &objectstore.ObjectError{Op: op, Key: key, Err: objectstore.ErrPreconditionFailed}
		}
	}

	return &objectstore.ObjectError{Op: op, Key: key, Err: err}
}

func toMeta(a *storage.ObjectAttrs) objectstore.ObjectMeta {
	meta := objectstore.ObjectMeta{
		Key:          a.Name,
		Size:         a.Size,
		ContentType:  a.ContentType,
		ETag:         a.Etag,
		StorageClass: fromGCSClass(a.StorageClass),
		Metadata:     a.Metadata,
	}
	if !a.Updated.IsZero() {
		meta.LastModified = a.Updated.UnixMilli()
	}
	return meta
}

func toGCSClass(class objectstore.StorageClass) string {
	switch class {
	case objectstore.StorageClassGlacier, objectstore.StorageClassDeepArchive:
		return "ARCHIVE"
	default:
		return string(class)
	}
}

func fromGCSClass(class string) objectstore.StorageClass {
	switch class {
	case "", "STANDARD", "MULTI_REGIONAL", "REGIONAL":
		return objectstore.StorageClassStandard
	case "NEARLINE", "COLDLINE", "ARCHIVE":
		return objectstore.StorageClassGlacier
	default:
		return objectstore.StorageClass(class)
	}
}

var _ objectstore.Store = (*Store)(nil)
