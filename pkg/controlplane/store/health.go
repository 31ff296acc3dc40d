package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/certforge/certstore/pkg/controlplane/models"
)

// Healthcheck pings the database and confirms the item metadata table is
// still there, so a wiped or re-pointed database fails readiness.
func (s *GORMStore) Healthcheck(ctx context.Context) error {
	if err := ping(ctx, s.db); err != nil {
		return err
	}
	if !s.withContext(ctx).Migrator().HasTable(&models.ItemMetadata{}) {
		return fmt.Errorf("%s database is missing the item metadata table", s.config.Type)
	}
	return nil
}

// Close closes the connection pool. The UsageStore sharing it stops working.
func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

func ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

var _ Store = (*GORMStore)(nil)
