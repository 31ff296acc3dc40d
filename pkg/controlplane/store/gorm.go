package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/pkg/controlplane/models"
)

// sqlitePragmas let API readers proceed while a mutation holds the write
// lock, and make writers wait instead of failing with SQLITE_BUSY.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"foreign_keys(1)",
}

// GORMStore is the Store used by the server, on SQLite or PostgreSQL. Its
// connection also backs the default usage registry through UsageStore.
type GORMStore struct {
	db     *gorm.DB
	config *Config
}

// New opens the database described by config and migrates the item
// metadata and usage tables. A nil config means SQLite in the default
// location.
func New(config *Config) (*GORMStore, error) {
	if config == nil {
		config = &Config{}
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	dialector, err := openDialector(config)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newQueryLogger(config),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", config.Type, err)
	}

	if config.Type == DatabaseTypePostgres {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	}

	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return nil, fmt.Errorf("failed to migrate metadata schema: %w", err)
	}

	return &GORMStore{db: db, config: config}, nil
}

func openDialector(config *Config) (gorm.Dialector, error) {
	switch config.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		return sqlite.Open(sqliteDSN(config.SQLite.Path)), nil
	case DatabaseTypePostgres:
		return postgres.Open(config.Postgres.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %q", config.Type)
	}
}

func sqliteDSN(path string) string {
	params := make([]string, len(sqlitePragmas))
	for i, p := range sqlitePragmas {
		params[i] = "_pragma=" + p
	}
	return path + "?" + strings.Join(params, "&")
}

// newQueryLogger routes GORM's statement log into the certstore logger.
// Missing rows are expected lookups, not errors.
func newQueryLogger(config *Config) gormlogger.Interface {
	level := gormlogger.Warn
	if config.LogQueries {
		level = gormlogger.Info
	}
	return gormlogger.New(queryLogWriter{}, gormlogger.Config{
		SlowThreshold:             config.SlowQueryThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

type queryLogWriter struct{}

func (queryLogWriter) Printf(format string, args ...any) {
	line := strings.TrimSpace(fmt.Sprintf(format, args...))
	if strings.Contains(line, "SLOW SQL") {
		logger.Warn("Slow query", "statement", line)
		return
	}
	logger.Debug("sql", "statement", line)
}

// DB exposes the connection for tests and the usage store.
func (s *GORMStore) DB() *gorm.DB {
	return s.db
}

// isUniqueConstraintError matches duplicate keys, translated or not.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// convertNotFoundError maps gorm.ErrRecordNotFound to a domain error.
func convertNotFoundError(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}

// withContext is the entry point of every query.
func (s *GORMStore) withContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}
