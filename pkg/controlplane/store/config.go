package store

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DatabaseType selects the metadata database.
type DatabaseType string

const (
	// DatabaseTypeSQLite keeps metadata in a local file. Single node only.
	DatabaseTypeSQLite DatabaseType = "sqlite"

	// DatabaseTypePostgres shares metadata between several certstore nodes.
	DatabaseTypePostgres DatabaseType = "postgres"
)

const (
	defaultPostgresPort     = 5432
	defaultMaxOpenConns     = 25
	defaultMaxIdleConns     = 5
	defaultSlowQueryLogTime = 200 * time.Millisecond
)

// SQLiteConfig locates the SQLite database file.
type SQLiteConfig struct {
	// Path defaults to $XDG_CONFIG_HOME/certstore/certstore.db.
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig describes a PostgreSQL connection.
type PostgresConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Database     string `mapstructure:"database" yaml:"database"`
	User         string `mapstructure:"user" yaml:"user"`
	Password     string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode      string `mapstructure:"sslmode" yaml:"sslmode"` // disable, require, verify-ca, verify-full
	SSLRootCert  string `mapstructure:"sslrootcert" yaml:"sslrootcert,omitempty"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// DSN returns a postgres:// URL. Credentials are escaped, so passwords may
// contain any character.
func (c *PostgresConfig) DSN() string {
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.SSLRootCert != "" {
		q.Set("sslrootcert", c.SSLRootCert)
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}

// Config is the database section of the certstore configuration.
type Config struct {
	Type     DatabaseType   `mapstructure:"type" validate:"omitempty,oneof=sqlite postgres" yaml:"type"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`

	// LogQueries logs every SQL statement at DEBUG level.
	LogQueries bool `mapstructure:"log_queries" yaml:"log_queries"`

	// SlowQueryThreshold logs statements slower than this at WARN level.
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold" yaml:"slow_query_threshold"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}
	if c.SlowQueryThreshold == 0 {
		c.SlowQueryThreshold = defaultSlowQueryLogTime
	}

	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			c.SQLite.Path = filepath.Join(configHome(), "certstore", "certstore.db")
		}
	case DatabaseTypePostgres:
		p := &c.Postgres
		if p.Port == 0 {
			p.Port = defaultPostgresPort
		}
		if p.SSLMode == "" {
			p.SSLMode = "disable"
		}
		if p.MaxOpenConns == 0 {
			p.MaxOpenConns = defaultMaxOpenConns
		}
		if p.MaxIdleConns == 0 {
			p.MaxIdleConns = defaultMaxIdleConns
		}
	}
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

// Validate reports the first missing connection setting.
func (c *Config) Validate() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite path is required")
		}
		return nil
	case DatabaseTypePostgres:
		for _, f := range [...]struct{ name, value string }{
			{"host", c.Postgres.Host},
			{"database", c.Postgres.Database},
			{"user", c.Postgres.User},
		} {
			if f.value == "" {
				return fmt.Errorf("postgres %s is required", f.name)
			}
		}
		if c.Postgres.MaxIdleConns > c.Postgres.MaxOpenConns && c.Postgres.MaxOpenConns > 0 {
			return fmt.Errorf("postgres max_idle_conns (%d) exceeds max_open_conns (%d)",
				c.Postgres.MaxIdleConns, c.Postgres.MaxOpenConns)
		}
		return nil
	default:
		return fmt.Errorf("unsupported database type: %q", c.Type)
	}
}
