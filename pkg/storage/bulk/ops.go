package bulk

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/backend"
	"github.com/certforge/certstore/pkg/storage/paths"
	"github.com/certforge/certstore/pkg/usage"
)

// destination is a resolved move/copy destination.
type destination struct {
	path  string
	isDir bool
}

// target returns where src lands: inside the destination directory under
// its own name, or at the destination path itself.
func (d destination) target(src string) (string, error) {
	if !d.isDir {
		return d.path, nil
	}
	p, err := paths.Clean(src)
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", storage.NewInvalidInputError(src, "cannot move or copy the storage root")
	}
	return paths.Join(d.path, paths.Base(p)), nil
}

// resolveDestination decides how the n sources of a batch map onto raw. An
// existing directory receives every source under its own name. Otherwise a
// single source is renamed to raw; several sources need a directory.
func (e *Engine) resolveDestination(ctx context.Context, raw string, n int) (destination, error) {
	dest, err := paths.Clean(raw)
	if err != nil {
		return destination{}, err
	}
	entry, err := e.router.Stat(ctx, dest)
	switch {
	case storage.IsNotFound(err):
		if n == 1 {
			return destination{path: dest}, nil
		}
		return destination{}, storage.NewNotFoundError(dest)
	case err != nil:
		return destination{}, err
	case entry.IsDir:
		return destination{path: dest, isDir: true}, nil
	case n == 1:
		return destination{path: dest}, nil
	default:
		return destination{}, storage.NewInvalidInputError(dest, fmt.Sprintf("destination %q is not a directory", dest))
	}
}

// DeleteOne deletes the file or directory at raw.
//
// Files need deleteFiles on their directory and no live usage records.
// Directories need delete on themselves, no protected descendants and no
// usage records below them.
func (e *Engine) DeleteOne(ctx context.Context, raw string) (*storage.StorageItem, error) {
	p, err := paths.Clean(raw)
	if err != nil {
		return nil, err
	}
	if p == "" || p == paths.PublicRoot {
		return nil, storage.NewInvalidInputError(p, "cannot delete a storage root")
	}

	unlock, err := e.lock(ctx, p, p)
	if err != nil {
		return nil, err
	}
	defer unlock()

	entry, err := e.router.Stat(ctx, p)
	if err != nil {
		return nil, err
	}

	if entry.IsDir {
		err = e.perms.AssertAllowed(ctx, storage.ActionDelete, p)
	} else {
		err = e.perms.AssertAllowed(ctx, storage.ActionDeleteFiles, paths.Parent(p))
	}
	if err != nil {
		return nil, err
	}
	if err := e.perms.AssertMutable(ctx, p, entry.IsDir); err != nil {
		return nil, err
	}
	if err := e.assertUnused(ctx, p, entry.IsDir, "delete"); err != nil {
		return nil, err
	}

	item := entry.Item()
	mctx := detached(ctx)
	if err := e.router.Delete(mctx, p); err != nil {
		return nil, err
	}
	merr := e.retryMetadata(mctx, func(ctx context.Context) error {
		return e.items.DeleteItems(ctx, p)
	})
	e.changed(p)

	logger.InfoCtx(ctx, "Deleted storage item", logger.KeyPath, p, logger.KeyKind, string(item.Kind))
	if merr != nil {
		return &item, &storage.Warning{Path: p, Message: "deleted, but its protection and permission records could not be removed", Err: merr}
	}
	return &item, nil
}

// MoveOne moves src to the exact path target. It backs both batch moves and
// renames.
func (e *Engine) MoveOne(ctx context.Context, src, target string) (*storage.StorageItem, error) {
	return e.transferOne(ctx, OpMove, src, target)
}

// CopyOne copies src to the exact path target. The copy keeps the source's
// explicit permissions but not its protection.
func (e *Engine) CopyOne(ctx context.Context, src, target string) (*storage.StorageItem, error) {
	return e.transferOne(ctx, OpCopy, src, target)
}

func (e *Engine) transferOne(ctx context.Context, op, rawSrc, rawTarget string) (*storage.StorageItem, error) {
	src, err := paths.Clean(rawSrc)
	if err != nil {
		return nil, err
	}
	target, err := paths.Clean(rawTarget)
	if err != nil {
		return nil, err
	}
	if src == "" || src == paths.PublicRoot {
		return nil, storage.NewInvalidInputError(src, fmt.Sprintf("cannot %s a storage root", op))
	}
	if target == src {
		return nil, storage.NewInvalidInputError(src, "source and destination are the same")
	}
	if paths.IsWithin(target, src) {
		return nil, storage.NewInvalidInputError(src, fmt.Sprintf("cannot %s a directory into itself", op))
	}
	if target == "" || target == paths.PublicRoot {
		return nil, storage.NewConflictError(target)
	}

	unlock, err := e.lock(ctx, src, src, target)
	if err != nil {
		return nil, err
	}
	defer unlock()

	entry, err := e.router.Stat(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := e.checkTransfer(ctx, op, entry, target); err != nil {
		return nil, err
	}

	mctx := detached(ctx)
	if op == OpMove {
		err = e.router.Move(mctx, src, target)
	} else {
		err = e.router.Copy(mctx, src, target)
	}
	if err != nil {
		return nil, err
	}
	merr := e.syncMetadata(ctx, mctx, op, src, target)
	e.changed(src, target)

	moved, err := e.router.Stat(mctx, target)
	if err != nil {
		// The mutation happened; report what we know about it.
		moved = &backend.Entry{Key: target, IsDir: entry.IsDir, Size: entry.Size, LastModified: entry.LastModified}
	}
	item := moved.Item()
	if protected, perr := e.perms.IsProtected(mctx, target); perr == nil {
		item.IsProtected = protected
	}

	logger.InfoCtx(ctx, "Transferred storage item",
		logger.KeyOperation, op, logger.KeyPath, src, logger.KeyDestination, target)
	if merr != nil {
		return &item, &storage.Warning{Path: src, Message: op + " done, but item metadata could not be updated", Err: merr}
	}
	return &item, nil
}

// checkTransfer runs the permission, protection, usage and collision checks
// of a move or copy. The caller holds the locks of both paths.
func (e *Engine) checkTransfer(ctx context.Context, op string, entry *backend.Entry, target string) error {
	src := entry.Key

	var err error
	if entry.IsDir {
		err = e.perms.AssertAllowed(ctx, storage.ActionMove, src)
	} else {
		err = e.perms.AssertAllowed(ctx, storage.ActionMoveFiles, paths.Parent(src))
	}
	if err != nil {
		return err
	}

	parent := paths.Parent(target)
	if entry.IsDir {
		err = e.perms.AssertAllowed(ctx, storage.ActionCreateSubDir, parent)
	} else {
		err = e.perms.AssertAllowed(ctx, storage.ActionUpload, parent)
	}
	if err != nil {
		return err
	}

	if op == OpMove {
		if err := e.perms.AssertMutable(ctx, src, entry.IsDir); err != nil {
			return err
		}
		if err := e.assertUnused(ctx, src, entry.IsDir, "move"); err != nil {
			return err
		}
	}

	dir, err := e.router.Stat(ctx, parent)
	switch {
	case storage.IsNotFound(err):
		return storage.NewNotFoundError(parent)
	case err != nil:
		return err
	case !dir.IsDir:
		return storage.NewInvalidInputError(parent, fmt.Sprintf("%q is not a directory", parent))
	}

	exists, err := e.router.Exists(ctx, target)
	if err != nil {
		return err
	}
	if exists {
		return storage.NewConflictError(target)
	}
	return nil
}

// assertUnused fails with InUse when the file, or any file below the
// directory, has live usage records.
func (e *Engine) assertUnused(ctx context.Context, p string, isDir bool, verb string) error {
	if !isDir {
		res, err := e.usage.Check(ctx, p)
		if err != nil {
			return err
		}
		if !res.CanDelete {
			return storage.NewInUseError(p, fmt.Sprintf("cannot %s %q: %s", verb, p, res.DeleteBlockReason))
		}
		return nil
	}

	recs, err := e.usage.ListUnder(ctx, p)
	if err != nil {
		return err
	}
	if len(recs) > 0 {
		return storage.NewInUseError(p, fmt.Sprintf("cannot %s %q: it contains files in use. %s", verb, p, usage.BlockReason(recs)))
	}
	return nil
}

// syncMetadata carries item metadata along with a completed mutation. The
// backend change already happened, so the caller reports a failure as a
// warning.
func (e *Engine) syncMetadata(ctx, mctx context.Context, op, src, target string) error {
	actor := actorOf(ctx)
	return e.retryMetadata(mctx, func(ctx context.Context) error {
		if op == OpMove {
			return e.items.MoveItems(ctx, src, target)
		}
		return e.items.CopyItems(ctx, src, target, actor)
	})
}

// metadataAttempts bounds retries of a metadata write that follows a backend
// mutation.
const metadataAttempts = 3

// retryMetadata runs fn with exponential backoff until it succeeds, the
// attempts run out or ctx is done.
func (e *Engine) retryMetadata(ctx context.Context, fn func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retryInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, metadataAttempts-1), ctx)
	return backoff.RetryNotify(func() error { return fn(ctx) }, policy, func(err error, wait time.Duration) {
		logger.DebugCtx(ctx, "Retrying item metadata update", logger.KeyError, err, "wait", wait)
	})
}
