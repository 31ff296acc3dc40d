package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/pkg/usage/postgres/migrations"
)

// migrationsTable keeps the usage schema version apart from any other
// migrate user of the same database.
const migrationsTable = "usage_schema_migrations"

// RunMigrations brings the usage schema to the newest embedded version.
// Concurrent callers serialize on migrate's advisory lock.
func RunMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open usage database: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("reach usage database: %w", err)
	}

	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	before, _, _ := m.Version()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate usage schema from version %d: %w", before, err)
	}
	after, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read usage schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("usage schema version %d is dirty; fix it by hand and force the version", after)
	}
	if after != before {
		logger.Info("Usage schema migrated", "from", before, "to", after)
	}
	return nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	target, err := migratepg.WithInstance(db, &migratepg.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return nil, fmt.Errorf("prepare migration target: %w", err)
	}
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", target)
	if err != nil {
		return nil, fmt.Errorf("prepare migrations: %w", err)
	}
	return m, nil
}
