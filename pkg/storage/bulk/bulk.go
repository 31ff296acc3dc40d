// Package bulk executes delete, move and copy over sets of storage items.
//
// Every item runs as one check-then-act unit under a hierarchical path lock:
// permission, protection and usage checks are evaluated and the mutation is
// performed without another caller being able to touch an overlapping path
// in between. A failing item never stops the batch; the result accounts for
// every requested item in input order.
//
// Items run on a bounded worker pool. When the caller's context is canceled,
// items that have not started fail with a Canceled error while items whose
// mutation already began run to completion.
package bulk

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/internal/telemetry"
	"github.com/certforge/certstore/pkg/controlplane/store"
	"github.com/certforge/certstore/pkg/metrics"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/backend"
	"github.com/certforge/certstore/pkg/storage/pathlock"
	"github.com/certforge/certstore/pkg/storage/permission"
	"github.com/certforge/certstore/pkg/usage"
)

// DefaultConcurrency is the number of items processed in parallel.
const DefaultConcurrency = 4

// DefaultRetryInterval is the first backoff step of metadata retries.
const DefaultRetryInterval = 100 * time.Millisecond

// Operation names used in logs, metrics and spans.
const (
	OpDelete = "delete"
	OpMove   = "move"
	OpCopy   = "copy"
)

// ChangeFunc is notified with the paths a successful mutation touched.
type ChangeFunc func(paths ...string)

// Engine runs single-item and batch mutations.
type Engine struct {
	router   *backend.Router
	perms    *permission.Engine
	usage    *usage.Registry
	items    store.ItemStore
	locks    *pathlock.Locker
	limit    int
	metrics  metrics.StorageMetrics
	onChange ChangeFunc

	retryInterval time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency bounds the worker pool. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithLocker shares a path locker with other mutators.
func WithLocker(l *pathlock.Locker) Option {
	return func(e *Engine) {
		if l != nil {
			e.locks = l
		}
	}
}

// WithRetryInterval sets the first backoff step of metadata retries.
func WithRetryInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retryInterval = d
		}
	}
}

// WithMetrics records batch outcomes.
func WithMetrics(m metrics.StorageMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithChangeHook registers fn to be called after every successful mutation.
func WithChangeHook(fn ChangeFunc) Option {
	return func(e *Engine) { e.onChange = fn }
}

// New creates an engine.
func New(router *backend.Router, perms *permission.Engine, reg *usage.Registry, items store.ItemStore, opts ...Option) *Engine {
	e := &Engine{
		router: router,
		perms:  perms,
		usage:  reg,
		items:  items,
		locks:  pathlock.New(),
		limit:  DefaultConcurrency,

		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Locker returns the path locker guarding mutations.
func (e *Engine) Locker() *pathlock.Locker {
	return e.locks
}

// Delete removes every path in ps.
func (e *Engine) Delete(ctx context.Context, ps []string) *storage.BulkOperationResult {
	return e.run(ctx, OpDelete, telemetry.SpanStorageDelete, ps, e.DeleteOne)
}

// Move moves every path in ps into destination. An existing directory
// receives every item under its own name; a single item may instead be
// renamed to a destination that does not exist yet.
func (e *Engine) Move(ctx context.Context, ps []string, destination string) *storage.BulkOperationResult {
	return e.transferAll(ctx, OpMove, telemetry.SpanStorageMove, ps, destination, e.MoveOne)
}

// Copy copies every path in ps into destination. Existing targets are never
// overwritten.
func (e *Engine) Copy(ctx context.Context, ps []string, destination string) *storage.BulkOperationResult {
	return e.transferAll(ctx, OpCopy, telemetry.SpanStorageCopy, ps, destination, e.CopyOne)
}

type itemFunc func(ctx context.Context, p string) (*storage.StorageItem, error)

type transferFunc func(ctx context.Context, src, target string) (*storage.StorageItem, error)

func (e *Engine) transferAll(ctx context.Context, op, span string, ps []string, destination string, fn transferFunc) *storage.BulkOperationResult {
	dest, resolveErr := e.resolveDestination(ctx, destination, len(ps))
	return e.run(ctx, op, span, ps, func(ctx context.Context, p string) (*storage.StorageItem, error) {
		if resolveErr != nil {
			return nil, resolveErr
		}
		target, err := dest.target(p)
		if err != nil {
			return nil, err
		}
		return fn(ctx, p, target)
	}, telemetry.Target(destination))
}

func (e *Engine) run(ctx context.Context, op, spanName string, ps []string, fn itemFunc, attrs ...attribute.KeyValue) *storage.BulkOperationResult {
	start := time.Now()
	ctx = logger.OperationFromContext(ctx, op+"StorageItems")
	ctx, span := telemetry.StartStorageSpan(ctx, spanName, "",
		append(attrs, telemetry.Operation(op), telemetry.Items(len(ps)))...)
	defer span.End()

	outcomes := make([]storage.ItemOutcome, len(ps))
	var g errgroup.Group
	g.SetLimit(e.limit)
	for i, p := range ps {
		g.Go(func() error {
			outcomes[i] = e.runItem(ctx, p, fn)
			return nil
		})
	}
	_ = g.Wait()

	res := storage.Aggregate(outcomes)
	span.SetAttributes(telemetry.Outcome(res.SuccessCount, res.FailureCount)...)
	metrics.ObserveBulkOperation(e.metrics, op, res.SuccessCount, res.FailureCount, time.Since(start))

	args := []any{
		logger.KeyCount, len(ps),
		logger.KeySucceeded, res.SuccessCount,
		logger.KeyFailed, res.FailureCount,
		logger.KeyDurationMs, logger.Duration(start),
	}
	if res.FailureCount > 0 {
		logger.WarnCtx(ctx, "Bulk operation finished with failures", args...)
	} else {
		logger.InfoCtx(ctx, "Bulk operation finished", args...)
	}
	return res
}

func (e *Engine) runItem(ctx context.Context, p string, fn itemFunc) storage.ItemOutcome {
	out := storage.ItemOutcome{Path: p}
	if err := ctx.Err(); err != nil {
		out.Err = storage.NewCanceledError(p, err)
		return out
	}

	ictx, span := telemetry.StartStorageSpan(ctx, telemetry.SpanBulkItem, p)
	defer span.End()

	var err error
	out.Item, err = fn(ictx, p)
	out.Warning, out.Err = storage.SplitWarning(err)
	if out.Warning != nil {
		logger.WarnCtx(ictx, "Bulk item succeeded with a warning", logger.KeyPath, p, logger.KeyError, out.Warning)
	}
	if out.Err != nil {
		se := storage.AsError(p, out.Err)
		span.SetAttributes(telemetry.ErrorKind(se.Kind.String()))
		logger.DebugCtx(ictx, "Bulk item failed",
			logger.KeyPath, p, logger.KeyErrorKind, se.Kind.String(), logger.KeyError, se.Message)
	}
	return out
}

func (e *Engine) changed(ps ...string) {
	if e.onChange != nil {
		e.onChange(ps...)
	}
}

// lock acquires the path locks for one item. An interrupted wait means the
// item never started.
func (e *Engine) lock(ctx context.Context, p string, ps ...string) (pathlock.Unlock, error) {
	unlock, err := e.locks.Lock(ctx, ps...)
	if err != nil {
		return nil, storage.NewCanceledError(p, err)
	}
	return unlock, nil
}

// detached returns a context for a mutation that must run to completion
// once started. The router bounds each backend call with its own timeout.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func actorOf(ctx context.Context) string {
	if lc := logger.FromContext(ctx); lc != nil {
		return lc.Actor
	}
	return ""
}
