// Package store provides the control plane persistence layer.
//
// It holds per-item storage metadata (protection flags, explicit directory
// permissions, creator) and, optionally, the usage registry's records.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL (HA-capable)
package store

import (
	"context"

	"github.com/certforge/certstore/pkg/controlplane/models"
	"github.com/certforge/certstore/pkg/storage"
)

// ItemStore persists item metadata keyed by canonical path.
//
// Thread Safety: Implementations must be safe for concurrent use from multiple
// goroutines.
type ItemStore interface {
	// GetItem returns the metadata of one path.
	// Returns models.ErrItemNotFound if the path has no row.
	GetItem(ctx context.Context, path string) (*models.ItemMetadata, error)

	// GetItems returns the rows of the given paths keyed by path. Paths
	// without a row are absent from the map.
	GetItems(ctx context.Context, paths []string) (map[string]*models.ItemMetadata, error)

	// ListItemsUnder returns the rows strictly below dir.
	ListItemsUnder(ctx context.Context, dir string) ([]*models.ItemMetadata, error)

	// HasProtectedUnder reports whether any row strictly below dir is
	// protected or protects its children.
	HasProtectedUnder(ctx context.Context, dir string) (bool, error)

	// SetProtection sets the protection flags of a path, creating the row.
	// protectChildren nil leaves the current value.
	SetProtection(ctx context.Context, path string, protected bool, protectChildren *bool) (*models.ItemMetadata, error)

	// UpdatePermissions merges flags into the path's explicit permissions.
	UpdatePermissions(ctx context.Context, path string, flags storage.PermissionFlags) (*models.ItemMetadata, error)

	// ReplacePermissions overwrites the path's explicit permissions.
	ReplacePermissions(ctx context.Context, path string, flags storage.PermissionFlags) (*models.ItemMetadata, error)

	// SetCreatedBy records the creator of a path.
	SetCreatedBy(ctx context.Context, path, actor string) error

	// MoveItems re-keys the rows of src and its descendants under dst.
	MoveItems(ctx context.Context, src, dst string) error

	// CopyItems duplicates the permission flags of src and its descendants
	// under dst. Protection is not copied; the copies belong to actor.
	CopyItems(ctx context.Context, src, dst, actor string) error

	// DeleteItems removes the rows of path and its descendants.
	DeleteItems(ctx context.Context, path string) error
}

// Store is the control plane persistence interface.
type Store interface {
	ItemStore

	// Healthcheck verifies the database is reachable.
	Healthcheck(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
