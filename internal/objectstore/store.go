// Package objectstore defines the Store interface for tiered object storage.
//
// This package provides the core abstraction for object storage operations used
// throughout auditvault for storing immutable audit records, archived (cold tier)
// copies of those records, and retrieval job state. The interface is designed to
// be implemented by S3, GCS, and an in-memory store used in tests.
//
// # Usage
//
// The primary interface is [Store]:
//
//	store, err := s3.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	// Create-only write: fails with ErrPreconditionFailed if the key exists
//	err = store.PutWithOptions(ctx, key, reader, size, "application/json",
//	    objectstore.PutOptions{IfNoneMatch: "*"})
//
//	// Relocate to the cold tier
//	err = store.Copy(ctx, key, coldKey, objectstore.CopyOptions{StorageClass: objectstore.StorageClassGlacier})
//
// Listing is paginated. Callers thread a [Cursor] through [Store.ListPage]
// until the returned page has an empty NextCursor, or use [Walk]:
//
//	err := objectstore.Walk(ctx, store, "audit/tenant-a/", func(obj objectstore.ObjectMeta) error {
//	    total += obj.Size
//	    return nil
//	})
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrPreconditionFailed is returned when a conditional write fails
	// (e.g., an If-None-Match: * create on an existing key).
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied is returned when the credentials lack permission for the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrRestoreInProgress is returned when a restore is requested for an
	// object that already has a restore running.
	ErrRestoreInProgress = errors.New("restore already in progress")

	// ErrInvalidObjectState is returned when an operation is not valid for the
	// object's storage class (e.g., restoring an object that is not archived).
	ErrInvalidObjectState = errors.New("invalid object state")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// ObjectError wraps an error with the object key for context.
type ObjectError struct {
	Op  string // Operation that failed (e.g., "Put", "Copy", "Restore")
	Key string // Object key
	Err error  // Underlying error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("objectstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err indicates a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StorageClass names the storage tier an object lives in.
type StorageClass string

const (
	// StorageClassStandard is the immediately readable hot tier.
	StorageClassStandard StorageClass = "STANDARD"

	// StorageClassGlacier is the archive tier. Reads require a restore.
	StorageClassGlacier StorageClass = "GLACIER"

	// StorageClassDeepArchive is the lowest cost archive tier with the
	// longest restore latency.
	StorageClassDeepArchive StorageClass = "DEEP_ARCHIVE"
)

// IsArchive reports whether objects in this class need a restore before reading.
func (c StorageClass) IsArchive() bool {
	return c == StorageClassGlacier || c == StorageClassDeepArchive
}

// RestoreTier selects the retrieval speed of an archive restore.
type RestoreTier string

const (
	RestoreTierExpedited RestoreTier = "Expedited"
	RestoreTierStandard  RestoreTier = "Standard"
	RestoreTierBulk      RestoreTier = "Bulk"
)

// ObjectMeta contains metadata about an object.
type ObjectMeta struct {
	// Key is the object's key (path) in the bucket.
	Key string

	// Size is the object's size in bytes.
	Size int64

	// ContentType is the MIME type of the object.
	ContentType string

	// ETag is the entity tag, typically an MD5 hash of the object content.
	ETag string

	// LastModified is the Unix timestamp (milliseconds) when the object was last modified.
	LastModified int64

	// StorageClass is the tier the object is stored in. Empty means standard.
	StorageClass StorageClass

	// Metadata contains user-defined key-value metadata.
	Metadata map[string]string
}

// PutOptions configures a Put operation.
type PutOptions struct {
	// Metadata is optional user-defined key-value pairs stored with the object.
	Metadata map[string]string

	// IfNoneMatch when set to "*" causes the Put to fail with ErrPreconditionFailed
	// if an object already exists at the key. This enables atomic create operations.
	IfNoneMatch string

	// StorageClass is the tier to write into. Empty means standard.
	StorageClass StorageClass
}

// CopyOptions configures a Copy operation.
type CopyOptions struct {
	// StorageClass is the tier of the destination object. Empty means standard.
	StorageClass StorageClass
}

// RestoreOptions configures a Restore operation on an archived object.
type RestoreOptions struct {
	// Days is how long the temporary restored copy stays readable.
	Days int

	// Tier selects the retrieval speed.
	Tier RestoreTier
}

// Cursor is an opaque continuation token for paginated listing.
// The zero value starts at the beginning of the prefix.
type Cursor string

// Page is one page of a prefix listing.
type Page struct {
	// Objects are in lexicographic key order.
	Objects []ObjectMeta

	// NextCursor continues the listing. Empty when the listing is complete.
	NextCursor Cursor
}

// Done reports whether this is the last page.
func (p Page) Done() bool {
	return p.NextCursor == ""
}

// Store is the interface for object storage operations.
//
// All methods accept a context for cancellation and deadline propagation.
// Implementations should return wrapped errors using [ObjectError] where appropriate.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Put stores an object at the given key, replacing any existing object.
	//
	// The reader is consumed until EOF or error. The size parameter must match
	// the total bytes that will be read; some storage providers require this upfront.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// PutWithOptions stores an object with additional options.
	//
	// This method supports conditional writes via opts.IfNoneMatch, user-defined
	// metadata via opts.Metadata and the target tier via opts.StorageClass.
	PutWithOptions(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts PutOptions) error

	// Get retrieves an entire object.
	//
	// The caller must close the returned ReadCloser when done.
	//
	// Returns an error if the object doesn't exist or can't be retrieved:
	//   - ErrNotFound: object doesn't exist
	//   - ErrInvalidObjectState: object is archived and not restored
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Head retrieves object metadata without the body.
	//
	// Returns ErrNotFound if the object doesn't exist.
	Head(ctx context.Context, key string) (ObjectMeta, error)

	// Delete removes an object.
	//
	// Delete is idempotent: deleting a non-existent object succeeds silently.
	Delete(ctx context.Context, key string) error

	// ListPage returns one page of objects whose keys start with prefix.
	//
	// Pass the zero Cursor for the first page and the returned NextCursor for
	// subsequent pages. Results are in lexicographic key order.
	//
	// Returns ErrBucketNotFound if the bucket does not exist.
	ListPage(ctx context.Context, prefix string, cursor Cursor) (Page, error)

	// Copy copies srcKey to dstKey server side, writing the destination into
	// opts.StorageClass. The destination is overwritten if it exists.
	//
	// Returns ErrNotFound if the source doesn't exist.
	Copy(ctx context.Context, srcKey, dstKey string, opts CopyOptions) error

	// Restore requests a temporary readable copy of an archived object.
	//
	// Returns an error:
	//   - ErrNotFound: object doesn't exist
	//   - ErrRestoreInProgress: a restore is already running for the object
	//   - ErrInvalidObjectState: object is not in an archive storage class
	Restore(ctx context.Context, key string, opts RestoreOptions) error

	// Close releases resources associated with the store.
	//
	// After Close returns, all other methods will return errors.
	Close() error
}
