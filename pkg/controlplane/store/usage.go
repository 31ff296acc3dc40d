package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/certforge/certstore/pkg/controlplane/models"
	"github.com/certforge/certstore/pkg/usage"
)

// ============================================
// USAGE REGISTRY STORE
// ============================================

// UsageStore implements usage.Store on the control plane database.
type UsageStore struct {
	db *gorm.DB
}

var _ usage.Store = (*UsageStore)(nil)

// UsageStore returns a usage store sharing this store's database.
func (s *GORMStore) UsageStore() *UsageStore {
	return &UsageStore{db: s.db}
}

func (u *UsageStore) Insert(ctx context.Context, rec usage.Record) (usage.Record, bool, error) {
	row := models.FileUsageFromRecord(rec)
	res := u.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil && !isUniqueConstraintError(res.Error) {
		return usage.Record{}, false, res.Error
	}
	if res.Error == nil && res.RowsAffected == 1 {
		return row.Record(), true, nil
	}

	var existing models.FileUsage
	err := u.db.WithContext(ctx).
		Where("file_path = ? AND reference_table = ? AND reference_id = ? AND usage_type = ?",
			rec.FilePath, rec.ReferenceTable, rec.ReferenceID, rec.UsageType).
		First(&existing).Error
	if err != nil {
		return usage.Record{}, false, convertNotFoundError(err, models.ErrUsageNotFound)
	}
	return existing.Record(), false, nil
}

func (u *UsageStore) Delete(ctx context.Context, filePath, referenceID, referenceTable string) (int, error) {
	res := u.db.WithContext(ctx).
		Where("file_path = ? AND reference_id = ? AND reference_table = ?", filePath, referenceID, referenceTable).
		Delete(&models.FileUsage{})
	return int(res.RowsAffected), res.Error
}

func (u *UsageStore) DeleteReference(ctx context.Context, referenceTable, referenceID string) (int, error) {
	res := u.db.WithContext(ctx).
		Where("reference_table = ? AND reference_id = ?", referenceTable, referenceID).
		Delete(&models.FileUsage{})
	return int(res.RowsAffected), res.Error
}

func (u *UsageStore) find(q *gorm.DB) ([]usage.Record, error) {
	var rows []models.FileUsage
	if err := q.Order("created_at, file_path, reference_table, reference_id, usage_type").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]usage.Record, len(rows))
	for i := range rows {
		out[i] = rows[i].Record()
	}
	return out, nil
}

func (u *UsageStore) ListByPath(ctx context.Context, filePath string) ([]usage.Record, error) {
	return u.find(u.db.WithContext(ctx).Where("file_path = ?", filePath))
}

func (u *UsageStore) ListUnder(ctx context.Context, dir string) ([]usage.Record, error) {
	return u.find(withinPath(u.db.WithContext(ctx), "file_path", dir))
}

func (u *UsageStore) ListByReference(ctx context.Context, referenceTable, referenceID string) ([]usage.Record, error) {
	return u.find(u.db.WithContext(ctx).Where("reference_table = ? AND reference_id = ?", referenceTable, referenceID))
}

func (u *UsageStore) Healthcheck(ctx context.Context) error {
	if err := ping(ctx, u.db); err != nil {
		return err
	}
	if !u.db.WithContext(ctx).Migrator().HasTable(&models.FileUsage{}) {
		return errors.New("usage table is missing")
	}
	return nil
}

// Close is a no-op: the connection belongs to the GORMStore.
func (u *UsageStore) Close() error { return nil }
