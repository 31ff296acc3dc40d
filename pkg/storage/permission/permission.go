// Package permission computes effective directory permissions and protection
// from per-path metadata.
//
// Permissions are inherited top-down: the effective value of a flag on a
// directory is the AND of the explicit flags on the root, every ancestor and
// the directory itself, starting from all-true at the root. An item is
// protected when its own flag is set or an ancestor protects its children.
//
// Lookups fail closed: when metadata cannot be read, every action is denied.
package permission

import (
	"context"
	"fmt"

	"github.com/certforge/certstore/pkg/controlplane/models"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/paths"
)

// Source reads item metadata.
type Source interface {
	GetItems(ctx context.Context, paths []string) (map[string]*models.ItemMetadata, error)
	HasProtectedUnder(ctx context.Context, dir string) (bool, error)
}

// Engine answers permission and protection questions.
type Engine struct {
	src Source
}

// New creates an engine over src.
func New(src Source) *Engine {
	return &Engine{src: src}
}

// Snapshot is the metadata of a set of paths and all their ancestors, read in
// one query.
type Snapshot struct {
	rows map[string]*models.ItemMetadata
}

// Snapshot loads the metadata needed to resolve every path in ps.
func (e *Engine) Snapshot(ctx context.Context, ps ...string) (*Snapshot, error) {
	seen := make(map[string]struct{})
	var keys []string
	for _, p := range ps {
		for _, c := range paths.Chain(p) {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				keys = append(keys, c)
			}
		}
	}
	rows, err := e.src.GetItems(ctx, keys)
	if err != nil {
		return nil, err
	}
	return &Snapshot{rows: rows}, nil
}

// Item returns the metadata row of p, or nil.
func (s *Snapshot) Item(p string) *models.ItemMetadata {
	return s.rows[p]
}

// Permissions returns the effective permissions of directory dir.
func (s *Snapshot) Permissions(dir string) storage.DirectoryPermissions {
	perms := storage.AllowAll()
	for _, c := range paths.Chain(dir) {
		if m, ok := s.rows[c]; ok {
			perms = perms.Restrict(m.Flags())
		}
	}
	return perms
}

// IsProtected reports whether p is protected by its own flag or by an
// ancestor's protectChildren.
func (s *Snapshot) IsProtected(p string) bool {
	if m, ok := s.rows[p]; ok && m.IsProtected {
		return true
	}
	for _, a := range paths.Ancestors(p) {
		if m, ok := s.rows[a]; ok && m.ProtectChildren {
			return true
		}
	}
	return false
}

// EffectivePermissions returns the effective permissions of dir.
func (e *Engine) EffectivePermissions(ctx context.Context, dir string) (storage.DirectoryPermissions, error) {
	s, err := e.Snapshot(ctx, dir)
	if err != nil {
		return storage.DirectoryPermissions{}, err
	}
	return s.Permissions(dir), nil
}

// IsProtected reports whether p is protected.
func (e *Engine) IsProtected(ctx context.Context, p string) (bool, error) {
	s, err := e.Snapshot(ctx, p)
	if err != nil {
		return false, err
	}
	return s.IsProtected(p), nil
}

func unavailable(p string, err error) error {
	out := storage.NewForbiddenError(p, "permission data unavailable")
	out.Err = err
	return out
}

// AssertAllowed returns a Forbidden error unless action is allowed in dir.
func (e *Engine) AssertAllowed(ctx context.Context, action storage.Action, dir string) error {
	perms, err := e.EffectivePermissions(ctx, dir)
	if err != nil {
		return unavailable(dir, err)
	}
	if !perms.Allows(action) {
		return storage.NewForbiddenError(dir, fmt.Sprintf("%s is not allowed in %s", action, describeDir(dir)))
	}
	return nil
}

// AssertMutable returns a Forbidden error when p may not be deleted, moved or
// renamed: p is protected, or p is a directory holding protected items.
func (e *Engine) AssertMutable(ctx context.Context, p string, isDir bool) error {
	protected, err := e.IsProtected(ctx, p)
	if err != nil {
		return unavailable(p, err)
	}
	if protected {
		return storage.NewForbiddenError(p, "item is protected")
	}
	if !isDir {
		return nil
	}
	inner, err := e.src.HasProtectedUnder(ctx, p)
	if err != nil {
		return unavailable(p, err)
	}
	if inner {
		return storage.NewForbiddenError(p, "directory contains protected items")
	}
	return nil
}

func describeDir(dir string) string {
	if dir == "" {
		return "the storage root"
	}
	return fmt.Sprintf("%q", dir)
}
