// Package backend defines the storage medium abstraction and the router that
// dispatches canonical storage paths to the local or bucket backend.
//
// Backends address objects by key: a slash separated path relative to the
// backend's own root. Directories are first class on every backend; on object
// stores they are represented by marker objects. Backends translate medium
// errors into *storage.Error values and never leak raw SDK or syscall errors.
package backend

import (
	"context"
	"io"
	"time"

	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/paths"
)

// Entry is a raw file or directory as seen by a backend.
type Entry struct {
	Key          string
	IsDir        bool
	Size         int64
	ContentType  string
	MD5          string // hex, files only, empty when the medium cannot tell cheaply
	LastModified time.Time
	CreatedAt    time.Time
}

// Name returns the last segment of the entry key.
func (e *Entry) Name() string {
	for i := len(e.Key) - 1; i >= 0; i-- {
		if e.Key[i] == '/' {
			return e.Key[i+1:]
		}
	}
	return e.Key
}

// Item converts a canonical entry into a StorageItem. Protection, creator,
// URL and aggregates are left for the caller to fill in.
func (e *Entry) Item() storage.StorageItem {
	item := storage.StorageItem{
		Path:         e.Key,
		Name:         e.Name(),
		Kind:         storage.KindFile,
		LastModified: e.LastModified,
		CreatedAt:    e.CreatedAt,
		IsFromBucket: paths.Classify(e.Key) == paths.Bucket,
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = e.LastModified
	}
	if e.IsDir {
		item.Kind = storage.KindDirectory
		return item
	}
	item.Size = e.Size
	item.ContentType = e.ContentType
	item.FileType = storage.FileTypeOf(e.ContentType)
	item.MD5Hash = e.MD5
	return item
}

// WalkFunc is called for every descendant visited by Walk. Returning
// ErrSkipDir from a directory entry skips its subtree.
type WalkFunc func(e Entry) error

// Backend is a storage medium.
type Backend interface {
	// Name identifies the backend in logs and metrics ("local", "bucket").
	Name() string

	// List returns the immediate children of dir sorted by key. The root ""
	// always exists.
	List(ctx context.Context, dir string) ([]Entry, error)

	// Stat returns the entry at key or a NotFound error.
	Stat(ctx context.Context, key string) (*Entry, error)

	// Read opens the file at key.
	Read(ctx context.Context, key string) (io.ReadCloser, *Entry, error)

	// Write stores r at key, replacing any existing file and creating missing
	// parent directories. An empty contentType is sniffed from the content.
	Write(ctx context.Context, key string, r io.Reader, contentType string) (*Entry, error)

	// Delete removes the file or directory (recursively) at key.
	Delete(ctx context.Context, key string) error

	// Move renames src to dst within the backend. dst must not exist.
	Move(ctx context.Context, src, dst string) error

	// Copy duplicates src (recursively for directories) to dst. dst must not exist.
	Copy(ctx context.Context, src, dst string) error

	// Mkdir creates the directory key and any missing parents. It returns a
	// Conflict error if key exists.
	Mkdir(ctx context.Context, key string) error

	// Walk visits every descendant of dir in lexical order.
	Walk(ctx context.Context, dir string, fn WalkFunc) error

	// HealthCheck verifies the medium is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases resources. Further calls fail with BackendUnavailable.
	Close() error
}

// Presigner is implemented by backends that can sign direct client uploads.
type Presigner interface {
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
}
