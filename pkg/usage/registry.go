package usage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/pkg/metrics"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/paths"
)

// RegisterInput describes a usage to register.
type RegisterInput struct {
	FilePath       string `json:"filePath"`
	ReferenceID    string `json:"referenceId"`
	ReferenceTable string `json:"referenceTable"`
	UsageType      string `json:"usageType"`
}

// DeregisterInput describes the usages to remove. Every usage type held by
// the reference on the file is removed.
type DeregisterInput struct {
	FilePath       string `json:"filePath"`
	ReferenceID    string `json:"referenceId"`
	ReferenceTable string `json:"referenceTable"`
}

// Registry validates requests and delegates to a Store. Store failures are
// reported as BackendUnavailable storage errors.
type Registry struct {
	store   Store
	metrics metrics.StorageMetrics
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics records registrations and removals.
func WithMetrics(m metrics.StorageMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry over store.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying store.
func (r *Registry) Store() Store {
	return r.store
}

func required(path, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return storage.NewInvalidInputError(path, field+" is required")
	}
	return nil
}

func cleanFilePath(p string) (string, error) {
	clean, err := paths.Clean(p)
	if err != nil {
		return "", err
	}
	if clean == "" {
		return "", storage.NewInvalidInputError(p, "file path is required")
	}
	return clean, nil
}

// Register records that an entity references a file. Registering an existing
// tuple returns the existing record.
func (r *Registry) Register(ctx context.Context, in RegisterInput) (*Record, error) {
	p, err := cleanFilePath(in.FilePath)
	if err != nil {
		return nil, err
	}
	for _, f := range [][2]string{
		{"referenceId", in.ReferenceID},
		{"referenceTable", in.ReferenceTable},
		{"usageType", in.UsageType},
	} {
		if err := required(p, f[0], f[1]); err != nil {
			return nil, err
		}
	}

	rec, created, err := r.store.Insert(ctx, Record{
		ID:             uuid.New().String(),
		FilePath:       p,
		ReferenceID:    in.ReferenceID,
		ReferenceTable: in.ReferenceTable,
		UsageType:      in.UsageType,
		Created:        r.now().UTC(),
	})
	if err != nil {
		return nil, storage.AsError(p, err)
	}
	if created {
		metrics.ObserveUsageChange(r.metrics, "register", 1)
		logger.DebugCtx(ctx, "Usage registered",
			logger.KeyPath, p, logger.KeyReferenceTable, in.ReferenceTable,
			logger.KeyReferenceID, in.ReferenceID, logger.KeyUsageType, in.UsageType)
	}
	return &rec, nil
}

// Deregister removes the reference's usages of a file. Removing a usage that
// does not exist is not an error.
func (r *Registry) Deregister(ctx context.Context, in DeregisterInput) (int, error) {
	p, err := cleanFilePath(in.FilePath)
	if err != nil {
		return 0, err
	}
	if err := required(p, "referenceId", in.ReferenceID); err != nil {
		return 0, err
	}
	if err := required(p, "referenceTable", in.ReferenceTable); err != nil {
		return 0, err
	}

	n, err := r.store.Delete(ctx, p, in.ReferenceID, in.ReferenceTable)
	if err != nil {
		return 0, storage.AsError(p, err)
	}
	if n > 0 {
		metrics.ObserveUsageChange(r.metrics, "deregister", n)
		logger.DebugCtx(ctx, "Usage deregistered",
			logger.KeyPath, p, logger.KeyReferenceTable, in.ReferenceTable,
			logger.KeyReferenceID, in.ReferenceID, logger.KeyCount, n)
	}
	return n, nil
}

// DeregisterReference removes every usage held by an entity, for when the
// entity itself is deleted.
func (r *Registry) DeregisterReference(ctx context.Context, referenceTable, referenceID string) (int, error) {
	if err := required("", "referenceTable", referenceTable); err != nil {
		return 0, err
	}
	if err := required("", "referenceId", referenceID); err != nil {
		return 0, err
	}
	n, err := r.store.DeleteReference(ctx, referenceTable, referenceID)
	if err != nil {
		return 0, storage.AsError("", err)
	}
	if n > 0 {
		metrics.ObserveUsageChange(r.metrics, "deregister", n)
	}
	return n, nil
}

// Check reports whether a file is in use.
func (r *Registry) Check(ctx context.Context, filePath string) (*CheckResult, error) {
	recs, err := r.List(ctx, filePath)
	if err != nil {
		return nil, err
	}
	p, _ := paths.Clean(filePath)
	return NewCheckResult(p, recs), nil
}

// List returns the usages of one file.
func (r *Registry) List(ctx context.Context, filePath string) ([]Record, error) {
	p, err := cleanFilePath(filePath)
	if err != nil {
		return nil, err
	}
	recs, err := r.store.ListByPath(ctx, p)
	if err != nil {
		return nil, storage.AsError(p, err)
	}
	SortRecords(recs)
	return recs, nil
}

// ListUnder returns the usages of a directory's descendants.
func (r *Registry) ListUnder(ctx context.Context, dir string) ([]Record, error) {
	p, err := paths.Clean(dir)
	if err != nil {
		return nil, err
	}
	recs, err := r.store.ListUnder(ctx, p)
	if err != nil {
		return nil, storage.AsError(p, err)
	}
	SortRecords(recs)
	return recs, nil
}

// ListByReference returns the usages held by an entity.
func (r *Registry) ListByReference(ctx context.Context, referenceTable, referenceID string) ([]Record, error) {
	recs, err := r.store.ListByReference(ctx, referenceTable, referenceID)
	if err != nil {
		return nil, storage.AsError("", err)
	}
	SortRecords(recs)
	return recs, nil
}
