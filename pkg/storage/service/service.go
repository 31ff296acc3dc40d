// Package service is the storage subsystem's operation surface.
//
// It combines the backend router, the permission engine, the usage registry,
// the bulk engine and the upload URL issuer into the queries and mutations
// exposed by the API. Queries return errors; mutations never do. A mutation
// reports failures in its result so callers always get a success flag and a
// message.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/internal/telemetry"
	"github.com/certforge/certstore/pkg/controlplane/store"
	"github.com/certforge/certstore/pkg/metrics"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/backend"
	"github.com/certforge/certstore/pkg/storage/bulk"
	"github.com/certforge/certstore/pkg/storage/pathlock"
	"github.com/certforge/certstore/pkg/storage/paths"
	"github.com/certforge/certstore/pkg/storage/permission"
	"github.com/certforge/certstore/pkg/storage/signer"
	"github.com/certforge/certstore/pkg/usage"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Config configures a Service.
type Config struct {
	// PublicBaseURL prefixes the URLs of public files and local uploads.
	PublicBaseURL string

	// BulkConcurrency bounds the number of batch items processed at once.
	BulkConcurrency int

	// StatsCacheTTL bounds the staleness of directory aggregates.
	StatsCacheTTL time.Duration

	// MaxUploadSize limits uploads in bytes. 0 disables the limit.
	MaxUploadSize int64

	// SignedURL configures the upload URL issuer. PublicBaseURL and
	// MaxUploadSize are inherited when unset.
	SignedURL signer.Config
}

// Service implements the storage operations.
type Service struct {
	router *backend.Router
	items  store.ItemStore
	usage  *usage.Registry
	perms  *permission.Engine
	locks  *pathlock.Locker
	bulk   *bulk.Engine
	signer *signer.Issuer
	stats  *statsCache

	publicBaseURL string
	maxUpload     int64
	metrics       metrics.StorageMetrics
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records operation metrics.
func WithMetrics(m metrics.StorageMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New wires a Service.
func New(router *backend.Router, items store.ItemStore, reg *usage.Registry, config Config, opts ...Option) (*Service, error) {
	s := &Service{
		router:        router,
		items:         items,
		usage:         reg,
		perms:         permission.New(items),
		locks:         pathlock.New(),
		publicBaseURL: strings.TrimRight(config.PublicBaseURL, "/"),
		maxUpload:     config.MaxUploadSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	var err error
	if s.stats, err = newStatsCache(config.StatsCacheTTL); err != nil {
		return nil, fmt.Errorf("failed to create stats cache: %w", err)
	}

	sc := config.SignedURL
	if sc.PublicBaseURL == "" {
		sc.PublicBaseURL = s.publicBaseURL
	}
	if sc.MaxUploadSize == 0 {
		sc.MaxUploadSize = s.maxUpload
	}
	if s.signer, err = signer.New(router, s.perms, sc, signer.WithMetrics(s.metrics)); err != nil {
		s.stats.close()
		return nil, fmt.Errorf("failed to create upload signer: %w", err)
	}

	s.bulk = bulk.New(router, s.perms, reg, items,
		bulk.WithLocker(s.locks),
		bulk.WithConcurrency(config.BulkConcurrency),
		bulk.WithMetrics(s.metrics),
		bulk.WithChangeHook(s.stats.invalidate),
	)
	return s, nil
}

// Permissions returns the permission engine.
func (s *Service) Permissions() *permission.Engine {
	return s.perms
}

// Locker returns the path locker shared by every mutation.
func (s *Service) Locker() *pathlock.Locker {
	return s.locks
}

// Signer returns the upload URL issuer.
func (s *Service) Signer() *signer.Issuer {
	return s.signer
}

// HealthCheck verifies both backends and the usage store are reachable.
func (s *Service) HealthCheck(ctx context.Context) error {
	if err := s.router.HealthCheck(ctx); err != nil {
		return err
	}
	if err := s.usage.Store().Healthcheck(ctx); err != nil {
		return fmt.Errorf("usage store: %w", err)
	}
	return nil
}

// Close releases the cache. Backends and stores are owned by the caller.
func (s *Service) Close() error {
	s.stats.close()
	return nil
}

// PublicURL returns the URL a public path is served at, or "" for bucket
// paths.
func (s *Service) PublicURL(p string) string {
	if paths.Classify(p) != paths.Local {
		return ""
	}
	segs := strings.Split(paths.PublicKey(p), paths.Separator)
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.publicBaseURL + "/" + paths.PublicRoot + "/" + strings.Join(segs, "/")
}

// decorate fills in what the backend entry does not know: protection,
// creator, effective permissions and the public URL.
func (s *Service) decorate(snap *permission.Snapshot, e backend.Entry) storage.StorageItem {
	item := e.Item()
	item.IsProtected = snap.IsProtected(e.Key)
	if m := snap.Item(e.Key); m != nil {
		item.CreatedBy = m.CreatedBy
		item.ProtectChildren = m.ProtectChildren
	}
	if item.IsDir() {
		perms := snap.Permissions(e.Key)
		item.Permissions = &perms
	} else if !item.IsFromBucket {
		item.URL = s.PublicURL(e.Key)
	}
	return item
}

// describe returns the decorated item at p.
func (s *Service) describe(ctx context.Context, p string) (*storage.StorageItem, error) {
	entry, err := s.router.Stat(ctx, p)
	if err != nil {
		return nil, err
	}
	snap, err := s.perms.Snapshot(ctx, entry.Key)
	if err != nil {
		return nil, storage.NewBackendError(p, err)
	}
	item := s.decorate(snap, *entry)
	return &item, nil
}

// describeAfter describes an item that a mutation just produced. When the
// lookup fails the mutation still succeeded, so fall back to what is known.
func (s *Service) describeAfter(ctx context.Context, fallback *storage.StorageItem) *storage.StorageItem {
	item, err := s.describe(ctx, fallback.Path)
	if err != nil {
		logger.DebugCtx(ctx, "Failed to describe item after mutation", logger.KeyPath, fallback.Path, logger.KeyError, err)
		return fallback
	}
	return item
}

// withAggregates attaches cached or freshly computed subtree counters to a
// directory. Failures leave the counters unset.
func (s *Service) withAggregates(ctx context.Context, item *storage.StorageItem) {
	if !item.IsDir() {
		return
	}
	st, err := s.subtreeStats(ctx, item.Path)
	if err != nil {
		logger.DebugCtx(ctx, "Failed to compute directory aggregates", logger.KeyPath, item.Path, logger.KeyError, err)
		return
	}
	st.Aggregates().Apply(item)
}

func (s *Service) subtreeStats(ctx context.Context, dir string) (*StorageStats, error) {
	st, ok := s.stats.get(dir)
	telemetry.SetAttributes(ctx, telemetry.CacheHit(ok))
	if ok {
		return st, nil
	}
	gen := s.stats.begin()
	st, err := walkStats(ctx, s.router, dir)
	if err != nil {
		return nil, err
	}
	s.stats.set(dir, st, gen)
	return st, nil
}

func actorOf(ctx context.Context) string {
	if lc := logger.FromContext(ctx); lc != nil {
		return lc.Actor
	}
	return ""
}

// clean canonicalizes a caller supplied path.
func clean(p string) (string, error) {
	return paths.Clean(p)
}

// fail converts err into a failed mutation result and logs it.
func fail(ctx context.Context, op string, err error) *storage.MutationResult {
	se := storage.AsError("", err)
	level := logger.DebugCtx
	if se.Kind == storage.KindBackendUnavailable || se.Kind == storage.KindTimeout {
		level = logger.WarnCtx
	}
	level(ctx, "Storage mutation failed",
		logger.KeyOperation, op, logger.KeyPath, se.Path, logger.KeyErrorKind, se.Kind.String(), logger.KeyError, se)
	return storage.Failed(err)
}

// withWarning appends a follow-up failure to a success message.
func withWarning(msg string, w *storage.Warning) string {
	if w == nil {
		return msg
	}
	return msg + " (warning: " + w.Message + ")"
}

var errStopWalk = errors.New("stop walk")
