// Package postgres is a usage store on PostgreSQL through a pgx pool. The
// schema is managed by embedded golang-migrate migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/certforge/certstore/pkg/usage"
)

// Config configures the store.
type Config struct {
	// DSN is a PostgreSQL connection string (URL or key=value form).
	DSN string `mapstructure:"dsn" yaml:"dsn"`

	// MaxConns caps the pool. Default: 10.
	MaxConns int32 `mapstructure:"max_conns" yaml:"max_conns"`

	// AutoMigrate applies migrations on startup.
	AutoMigrate bool `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

// Store is a usage store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ usage.Store = (*Store)(nil)

// New connects to PostgreSQL and optionally migrates the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres usage store: dsn is required")
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 10
	}

	if cfg.AutoMigrate {
		if err := RunMigrations(ctx, cfg.DSN); err != nil {
			return nil, err
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

const selectColumns = `id, file_path, reference_id, reference_table, usage_type, created_at`

func scanRecord(row pgx.Row) (usage.Record, error) {
	var r usage.Record
	err := row.Scan(&r.ID, &r.FilePath, &r.ReferenceID, &r.ReferenceTable, &r.UsageType, &r.Created)
	r.Created = r.Created.UTC()
	return r, err
}

// Insert implements usage.Store.
func (s *Store) Insert(ctx context.Context, rec usage.Record) (usage.Record, bool, error) {
	out, err := scanRecord(s.pool.QueryRow(ctx, `
		INSERT INTO usage_records (id, file_path, reference_id, reference_table, usage_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT usage_records_tuple DO NOTHING
		RETURNING `+selectColumns,
		rec.ID, rec.FilePath, rec.ReferenceID, rec.ReferenceTable, rec.UsageType, rec.Created))
	if err == nil {
		return out, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return usage.Record{}, false, fmt.Errorf("insert usage: %w", err)
	}

	out, err = scanRecord(s.pool.QueryRow(ctx, `
		SELECT `+selectColumns+` FROM usage_records
		WHERE file_path = $1 AND reference_table = $2 AND reference_id = $3 AND usage_type = $4`,
		rec.FilePath, rec.ReferenceTable, rec.ReferenceID, rec.UsageType))
	if err != nil {
		return usage.Record{}, false, fmt.Errorf("load existing usage: %w", err)
	}
	return out, false, nil
}

// Delete implements usage.Store.
func (s *Store) Delete(ctx context.Context, filePath, referenceID, referenceTable string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM usage_records
		WHERE file_path = $1 AND reference_id = $2 AND reference_table = $3`,
		filePath, referenceID, referenceTable)
	if err != nil {
		return 0, fmt.Errorf("delete usage: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteReference implements usage.Store.
func (s *Store) DeleteReference(ctx context.Context, referenceTable, referenceID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM usage_records WHERE reference_table = $1 AND reference_id = $2`,
		referenceTable, referenceID)
	if err != nil {
		return 0, fmt.Errorf("delete reference usages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) query(ctx context.Context, where string, args ...any) ([]usage.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM usage_records WHERE `+where+
		` ORDER BY created_at, file_path, reference_table, reference_id, usage_type`, args...)
	if err != nil {
		return nil, fmt.Errorf("list usages: %w", err)
	}
	defer rows.Close()

	out := []usage.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListByPath implements usage.Store.
func (s *Store) ListByPath(ctx context.Context, filePath string) ([]usage.Record, error) {
	return s.query(ctx, `file_path = $1`, filePath)
}

// escapeLike escapes LIKE metacharacters with a backslash.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListUnder implements usage.Store.
func (s *Store) ListUnder(ctx context.Context, dir string) ([]usage.Record, error) {
	if dir == "" {
		return s.query(ctx, `TRUE`)
	}
	return s.query(ctx, `file_path = $1 OR file_path LIKE $2`, dir, escapeLike(dir)+"/%")
}

// ListByReference implements usage.Store.
func (s *Store) ListByReference(ctx context.Context, referenceTable, referenceID string) ([]usage.Record, error) {
	return s.query(ctx, `reference_table = $1 AND reference_id = $2`, referenceTable, referenceID)
}

// Healthcheck implements usage.Store.
func (s *Store) Healthcheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close implements usage.Store.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
