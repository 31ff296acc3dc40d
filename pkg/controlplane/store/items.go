package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/certforge/certstore/pkg/controlplane/models"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/paths"
)

// ============================================
// ITEM METADATA OPERATIONS
// ============================================

func (s *GORMStore) GetItem(ctx context.Context, path string) (*models.ItemMetadata, error) {
	return getByField[models.ItemMetadata](s.db, ctx, "path", path, models.ErrItemNotFound)
}

func (s *GORMStore) GetItems(ctx context.Context, ps []string) (map[string]*models.ItemMetadata, error) {
	out := make(map[string]*models.ItemMetadata, len(ps))
	if len(ps) == 0 {
		return out, nil
	}
	var rows []*models.ItemMetadata
	if err := s.withContext(ctx).Where("path IN ?", ps).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.Path] = r
	}
	return out, nil
}

func (s *GORMStore) ListItemsUnder(ctx context.Context, dir string) ([]*models.ItemMetadata, error) {
	var rows []*models.ItemMetadata
	err := underPath(s.withContext(ctx), "path", dir).Order("path").Find(&rows).Error
	return rows, err
}

func (s *GORMStore) HasProtectedUnder(ctx context.Context, dir string) (bool, error) {
	var count int64
	err := underPath(s.withContext(ctx).Model(&models.ItemMetadata{}), "path", dir).
		Where("is_protected = ? OR protect_children = ?", true, true).
		Count(&count).Error
	return count > 0, err
}

// mutate loads (or starts) the row of path, applies fn and saves it. Rows
// left empty are deleted.
func (s *GORMStore) mutate(ctx context.Context, path string, fn func(*models.ItemMetadata)) (*models.ItemMetadata, error) {
	var out *models.ItemMetadata
	err := s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.ItemMetadata
		err := tx.Where("path = ?", path).First(&m).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			m = models.ItemMetadata{Path: path}
		case err != nil:
			return err
		}

		fn(&m)
		out = &m
		if m.IsEmpty() {
			return tx.Where("path = ?", path).Delete(&models.ItemMetadata{}).Error
		}
		return tx.Save(&m).Error
	})
	return out, err
}

func (s *GORMStore) SetProtection(ctx context.Context, path string, protected bool, protectChildren *bool) (*models.ItemMetadata, error) {
	return s.mutate(ctx, path, func(m *models.ItemMetadata) {
		m.IsProtected = protected
		if protectChildren != nil {
			m.ProtectChildren = *protectChildren
		}
	})
}

func (s *GORMStore) UpdatePermissions(ctx context.Context, path string, flags storage.PermissionFlags) (*models.ItemMetadata, error) {
	return s.mutate(ctx, path, func(m *models.ItemMetadata) {
		m.SetFlags(m.Flags().Merge(flags))
	})
}

func (s *GORMStore) ReplacePermissions(ctx context.Context, path string, flags storage.PermissionFlags) (*models.ItemMetadata, error) {
	return s.mutate(ctx, path, func(m *models.ItemMetadata) {
		m.SetFlags(flags)
	})
}

func (s *GORMStore) SetCreatedBy(ctx context.Context, path, actor string) error {
	if actor == "" {
		return nil
	}
	_, err := s.mutate(ctx, path, func(m *models.ItemMetadata) {
		m.CreatedBy = actor
	})
	return err
}

func (s *GORMStore) MoveItems(ctx context.Context, src, dst string) error {
	return s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []*models.ItemMetadata
		if err := withinPath(tx, "path", src).Find(&rows).Error; err != nil {
			return err
		}
		if err := withinPath(tx, "path", dst).Delete(&models.ItemMetadata{}).Error; err != nil {
			return err
		}
		if err := withinPath(tx, "path", src).Delete(&models.ItemMetadata{}).Error; err != nil {
			return err
		}
		for _, r := range rows {
			r.Path = paths.Rebase(r.Path, src, dst)
			if err := tx.Create(r).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GORMStore) CopyItems(ctx context.Context, src, dst, actor string) error {
	return s.withContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []*models.ItemMetadata
		if err := withinPath(tx, "path", src).Find(&rows).Error; err != nil {
			return err
		}
		if err := withinPath(tx, "path", dst).Delete(&models.ItemMetadata{}).Error; err != nil {
			return err
		}
		copied := map[string]bool{}
		for _, r := range rows {
			if r.Flags().IsEmpty() {
				continue
			}
			c := models.ItemMetadata{Path: paths.Rebase(r.Path, src, dst), CreatedBy: actor}
			c.SetFlags(r.Flags())
			if err := tx.Create(&c).Error; err != nil {
				return err
			}
			copied[c.Path] = true
		}
		if actor != "" && !copied[dst] {
			return tx.Create(&models.ItemMetadata{Path: dst, CreatedBy: actor}).Error
		}
		return nil
	})
}

func (s *GORMStore) DeleteItems(ctx context.Context, path string) error {
	return withinPath(s.withContext(ctx), "path", path).Delete(&models.ItemMetadata{}).Error
}
