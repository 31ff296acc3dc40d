package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/pkg/metrics"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/paths"
)

// DefaultTimeout bounds a single backend call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Target is the resolution of a canonical path: the owning backend and the
// key inside it.
type Target struct {
	Location paths.Location
	Backend  Backend
	Key      string
}

// Router dispatches canonical storage paths to the local or bucket backend.
// Every call runs under a bounded timeout; entries and errors coming back are
// expressed in canonical paths.
type Router struct {
	local   Backend
	bucket  Backend
	timeout time.Duration
	metrics metrics.StorageMetrics
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMetrics records per-backend operation metrics. nil disables them.
func WithMetrics(m metrics.StorageMetrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// NewRouter creates a router over the two backends.
func NewRouter(local, bucket Backend, opts ...RouterOption) *Router {
	r := &Router{local: local, bucket: bucket, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the per-call timeout.
func (r *Router) Timeout() time.Duration {
	return r.timeout
}

// The storage root "" spans both backends: it holds the public root and the
// bucket's top-level entries. Reads of the root are merged here; mutations of
// the root are refused by the service before they reach the router.

func publicRootEntry() Entry {
	return Entry{Key: paths.PublicRoot, IsDir: true}
}

func (r *Router) bucketTarget() Target {
	return Target{Location: paths.Bucket, Backend: r.bucket}
}

// listRoot returns the public root followed by the bucket's top-level
// entries, sorted by key.
func (r *Router) listRoot(ctx context.Context) ([]Entry, error) {
	t := r.bucketTarget()
	var top []Entry
	err := r.call(ctx, t, "list", func(ctx context.Context) error {
		var err error
		top, err = r.bucket.List(ctx, "")
		return err
	})
	if err != nil {
		return nil, rebind(err, "")
	}
	entries := make([]Entry, 0, len(top)+1)
	entries = append(entries, publicRootEntry())
	for _, e := range top {
		if paths.Classify(e.Key) == paths.Bucket {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Key, b.Key) })
	return entries, nil
}

// walkRoot visits the public tree and then the bucket. Bucket keys that
// would classify as public are skipped since they are unreachable by path.
func (r *Router) walkRoot(ctx context.Context, fn WalkFunc) error {
	switch err := fn(publicRootEntry()); {
	case errors.Is(err, ErrSkipDir):
	case err != nil:
		return err
	default:
		if err := r.Walk(ctx, paths.PublicRoot, fn); err != nil {
			return err
		}
	}
	t := r.bucketTarget()
	return rebind(r.call(ctx, t, "walk", func(ctx context.Context) error {
		return r.bucket.Walk(ctx, "", func(e Entry) error {
			if paths.Classify(e.Key) != paths.Bucket {
				if e.IsDir {
					return ErrSkipDir
				}
				return nil
			}
			return fn(e)
		})
	}), "")
}

// Resolve maps a canonical path to its backend and key.
func (r *Router) Resolve(p string) Target {
	if paths.Classify(p) == paths.Local {
		return Target{Location: paths.Local, Backend: r.local, Key: paths.PublicKey(p)}
	}
	return Target{Location: paths.Bucket, Backend: r.bucket, Key: p}
}

// Canonical maps a backend key back to a canonical path.
func (r *Router) Canonical(loc paths.Location, key string) string {
	if loc == paths.Local {
		return paths.Join(paths.PublicRoot, key)
	}
	return key
}

func (r *Router) call(ctx context.Context, t Target, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		// Some SDKs wrap the deadline in their own error types.
		err = fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	metrics.ObserveBackendOperation(r.metrics, t.Backend.Name(), op, time.Since(start), err)
	if err != nil {
		logger.DebugCtx(ctx, "Backend call failed",
			logger.KeyBackend, t.Backend.Name(), logger.KeyOperation, op, logger.KeyKey, t.Key, logger.KeyError, err)
	}
	return err
}

// rebind rewrites an error reported against key so it names the canonical path.
func rebind(err error, canonical string) error {
	if err == nil {
		return nil
	}
	se := storage.AsError(canonical, err)
	switch se.Kind {
	case storage.KindNotFound:
		out := storage.NewNotFoundError(canonical)
		out.Err = se.Err
		return out
	case storage.KindConflict:
		out := storage.NewConflictError(canonical)
		out.Err = se.Err
		return out
	}
	out := *se
	out.Path = canonical
	return &out
}

func (r *Router) toCanonical(t Target, e Entry) Entry {
	e.Key = r.Canonical(t.Location, e.Key)
	return e
}

// List returns the children of dir with canonical keys.
func (r *Router) List(ctx context.Context, dir string) ([]Entry, error) {
	if dir == "" {
		return r.listRoot(ctx)
	}
	t := r.Resolve(dir)
	var entries []Entry
	err := r.call(ctx, t, "list", func(ctx context.Context) error {
		var err error
		entries, err = t.Backend.List(ctx, t.Key)
		return err
	})
	if err != nil {
		return nil, rebind(err, dir)
	}
	for i := range entries {
		entries[i] = r.toCanonical(t, entries[i])
	}
	return entries, nil
}

// Stat returns the entry at p.
func (r *Router) Stat(ctx context.Context, p string) (*Entry, error) {
	if p == "" {
		return &Entry{IsDir: true}, nil
	}
	t := r.Resolve(p)
	var e *Entry
	err := r.call(ctx, t, "stat", func(ctx context.Context) error {
		var err error
		e, err = t.Backend.Stat(ctx, t.Key)
		return err
	})
	if err != nil {
		return nil, rebind(err, p)
	}
	out := r.toCanonical(t, *e)
	return &out, nil
}

// Exists reports whether p exists. Errors other than NotFound are returned.
func (r *Router) Exists(ctx context.Context, p string) (bool, error) {
	_, err := r.Stat(ctx, p)
	switch {
	case err == nil:
		return true, nil
	case storage.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

type cancelReader struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReader) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

// Read opens the file at p. The per-call timeout covers the whole read and is
// released when the reader is closed.
func (r *Router) Read(ctx context.Context, p string) (io.ReadCloser, *Entry, error) {
	t := r.Resolve(p)
	ctx, cancel := context.WithTimeout(ctx, r.timeout)

	start := time.Now()
	rc, e, err := t.Backend.Read(ctx, t.Key)
	metrics.ObserveBackendOperation(r.metrics, t.Backend.Name(), "read", time.Since(start), err)
	if err != nil {
		cancel()
		return nil, nil, rebind(err, p)
	}
	out := r.toCanonical(t, *e)
	return &cancelReader{ReadCloser: rc, cancel: cancel}, &out, nil
}

// Write stores content at p.
func (r *Router) Write(ctx context.Context, p string, content io.Reader, contentType string) (*Entry, error) {
	t := r.Resolve(p)
	var e *Entry
	counter := &countingReader{r: content}
	err := r.call(ctx, t, "write", func(ctx context.Context) error {
		var err error
		e, err = t.Backend.Write(ctx, t.Key, counter, contentType)
		return err
	})
	if err != nil {
		return nil, rebind(err, p)
	}
	metrics.RecordBytes(r.metrics, t.Backend.Name(), "in", counter.n)
	out := r.toCanonical(t, *e)
	return &out, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Delete removes the file or directory at p.
func (r *Router) Delete(ctx context.Context, p string) error {
	t := r.Resolve(p)
	return rebind(r.call(ctx, t, "delete", func(ctx context.Context) error {
		return t.Backend.Delete(ctx, t.Key)
	}), p)
}

// Mkdir creates the directory p.
func (r *Router) Mkdir(ctx context.Context, p string) error {
	t := r.Resolve(p)
	return rebind(r.call(ctx, t, "mkdir", func(ctx context.Context) error {
		return t.Backend.Mkdir(ctx, t.Key)
	}), p)
}

// Walk visits every descendant of dir with canonical keys.
func (r *Router) Walk(ctx context.Context, dir string, fn WalkFunc) error {
	if dir == "" {
		return r.walkRoot(ctx, fn)
	}
	t := r.Resolve(dir)
	return rebind(r.call(ctx, t, "walk", func(ctx context.Context) error {
		return t.Backend.Walk(ctx, t.Key, func(e Entry) error {
			return fn(r.toCanonical(t, e))
		})
	}), dir)
}

// Move renames src to dst. Paths on different backends are transferred by
// copying and then deleting the source.
func (r *Router) Move(ctx context.Context, src, dst string) error {
	st, dt := r.Resolve(src), r.Resolve(dst)
	if st.Location == dt.Location {
		return rebind(r.call(ctx, st, "move", func(ctx context.Context) error {
			return st.Backend.Move(ctx, st.Key, dt.Key)
		}), src)
	}
	if err := r.transfer(ctx, st, dt); err != nil {
		return rebind(err, src)
	}
	err := r.call(ctx, st, "delete", func(ctx context.Context) error {
		return st.Backend.Delete(ctx, st.Key)
	})
	if err != nil {
		// The source is still in place, so the move has not happened.
		r.discard(ctx, dt)
	}
	return rebind(err, src)
}

// Copy duplicates src to dst, across backends if needed.
func (r *Router) Copy(ctx context.Context, src, dst string) error {
	st, dt := r.Resolve(src), r.Resolve(dst)
	if st.Location == dt.Location {
		return rebind(r.call(ctx, st, "copy", func(ctx context.Context) error {
			return st.Backend.Copy(ctx, st.Key, dt.Key)
		}), src)
	}
	return rebind(r.transfer(ctx, st, dt), src)
}

// transfer copies src into dst across backends. A failed transfer removes
// what it already wrote to dst so the item is either fully copied or absent.
func (r *Router) transfer(ctx context.Context, src, dst Target) error {
	err := r.call(ctx, dst, "stat", func(ctx context.Context) error {
		_, err := dst.Backend.Stat(ctx, dst.Key)
		return err
	})
	switch {
	case err == nil:
		return storage.NewConflictError(dst.Key)
	case !storage.IsNotFound(err):
		return err
	}

	err = r.call(ctx, src, "transfer", func(ctx context.Context) error {
		e, err := src.Backend.Stat(ctx, src.Key)
		if err != nil {
			return err
		}
		if !e.IsDir {
			return copyFile(ctx, src, dst, src.Key, dst.Key)
		}

		if err := dst.Backend.Mkdir(ctx, dst.Key); err != nil {
			return err
		}
		return src.Backend.Walk(ctx, src.Key, func(e Entry) error {
			target := paths.Rebase(e.Key, src.Key, dst.Key)
			if e.IsDir {
				err := dst.Backend.Mkdir(ctx, target)
				if storage.IsConflict(err) {
					return nil
				}
				return err
			}
			return copyFile(ctx, src, dst, e.Key, target)
		})
	})
	if err != nil {
		r.discard(ctx, dst)
	}
	return err
}

// discard removes what a transfer wrote to t. It runs even when ctx is done.
func (r *Router) discard(ctx context.Context, t Target) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := t.Backend.Delete(ctx, t.Key); err != nil && !storage.IsNotFound(err) {
		logger.WarnCtx(ctx, "Failed to clean up partial transfer",
			logger.KeyBackend, t.Backend.Name(), logger.KeyKey, t.Key, logger.KeyError, err)
	}
}

func copyFile(ctx context.Context, src, dst Target, srcKey, dstKey string) error {
	rc, e, err := src.Backend.Read(ctx, srcKey)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	_, err = dst.Backend.Write(ctx, dstKey, rc, e.ContentType)
	return err
}

// PresignUpload returns a presigned upload URL for p when the owning backend
// can sign. ok is false for backends without native signing.
func (r *Router) PresignUpload(ctx context.Context, p, contentType string, expiry time.Duration) (url string, ok bool, err error) {
	t := r.Resolve(p)
	signer, ok := t.Backend.(Presigner)
	if !ok {
		return "", false, nil
	}
	err = r.call(ctx, t, "presign", func(ctx context.Context) error {
		var err error
		url, err = signer.PresignUpload(ctx, t.Key, contentType, expiry)
		return err
	})
	if errors.Is(err, ErrPresignUnsupported) {
		return "", false, nil
	}
	if err != nil {
		return "", true, rebind(err, p)
	}
	return url, true, nil
}

// HealthCheck checks both backends.
func (r *Router) HealthCheck(ctx context.Context) error {
	for _, b := range []Backend{r.local, r.bucket} {
		t := Target{Backend: b}
		if err := r.call(ctx, t, "health", b.HealthCheck); err != nil {
			return fmt.Errorf("%s backend: %w", b.Name(), err)
		}
	}
	return nil
}

// Close closes both backends.
func (r *Router) Close() error {
	return errors.Join(r.local.Close(), r.bucket.Close())
}
