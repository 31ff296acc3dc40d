// Package config loads the certstore server configuration from a YAML file,
// CERTSTORE_* environment variables and built-in defaults, in increasing
// order of precedence from defaults up.
package config

import (
	"time"

	"github.com/certforge/certstore/internal/bytesize"
	"github.com/certforge/certstore/pkg/controlplane/api"
	"github.com/certforge/certstore/pkg/controlplane/store"
)

// Config is the root of config.yaml.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout bounds the drain of in-flight requests on exit.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database keeps item flags, ownership and, by default, usage records.
	Database store.Config  `mapstructure:"database" yaml:"database"`
	Metrics  MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Server   api.APIConfig `mapstructure:"server" yaml:"server"`
	Storage  StorageConfig `mapstructure:"storage" yaml:"storage"`
	Usage    UsageConfig   `mapstructure:"usage" yaml:"usage"`
}

type LoggingConfig struct {
	// Level is DEBUG, INFO, WARN or ERROR, in any case.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig enables OTLP trace export and Pyroscope profiling. Both
// are off by default.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector, host:port.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of root traces kept, 0 to 1.
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes lists what to collect, e.g. cpu, inuse_space, goroutines.
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig exposes Prometheus metrics on their own port. Nothing is
// collected while disabled.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// StorageConfig configures both backends and the service over them.
type StorageConfig struct {
	// PublicBaseURL is where clients reach this server, e.g.
	// https://files.example.com. Public file and local upload URLs start
	// with it.
	PublicBaseURL string `mapstructure:"public_base_url" validate:"required,url" yaml:"public_base_url"`

	// Local serves the public and private trees; Bucket serves storage.
	Local  BackendConfig `mapstructure:"local" yaml:"local"`
	Bucket BackendConfig `mapstructure:"bucket" yaml:"bucket"`

	BackendTimeout  time.Duration `mapstructure:"backend_timeout" validate:"gte=0" yaml:"backend_timeout"`
	BulkConcurrency int           `mapstructure:"bulk_concurrency" validate:"gte=0,lte=256" yaml:"bulk_concurrency"`

	// StatsCacheTTL is how stale a directory aggregate may get.
	StatsCacheTTL time.Duration `mapstructure:"stats_cache_ttl" validate:"gte=0" yaml:"stats_cache_ttl"`

	// MaxUploadSize accepts "50Mi", "10MB" or a byte count.
	MaxUploadSize bytesize.ByteSize `mapstructure:"max_upload_size" yaml:"max_upload_size"`

	SignedURL SignedURLConfig `mapstructure:"signed_url" yaml:"signed_url"`
}

const (
	BackendTypeFS     = "fs"
	BackendTypeS3     = "s3"
	BackendTypeMemory = "memory"
)

// BackendConfig picks a backend by Type. Only the matching section is read,
// and it is decoded into that backend's own Config.
type BackendConfig struct {
	Type string `mapstructure:"type" validate:"required,oneof=fs s3 memory" yaml:"type"`

	FS     map[string]any `mapstructure:"fs" yaml:"fs,omitempty"`         // base_path, create_dir, dir_mode, file_mode, min_free_space
	S3     map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`         // bucket, region, endpoint, key_prefix, ...
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty"` // presign_base_url
}

// SignedURLConfig configures upload URL issuance.
type SignedURLConfig struct {
	// Secret signs local upload tokens. Left empty, a random key is drawn
	// at startup and outstanding URLs die with the process.
	Secret string `mapstructure:"secret" validate:"omitempty,min=32" yaml:"secret,omitempty"`

	// DefaultExpiry applies to requests without one; MaxExpiry caps the rest.
	DefaultExpiry time.Duration `mapstructure:"default_expiry" validate:"gte=0" yaml:"default_expiry"`
	MaxExpiry     time.Duration `mapstructure:"max_expiry" validate:"gte=0" yaml:"max_expiry"`
}

const (
	UsageStoreDatabase = "database"
	UsageStoreBadger   = "badger"
	UsageStorePostgres = "postgres"
	UsageStoreMemory   = "memory"
)

// UsageConfig selects where usage records live. "database" shares the
// metadata database.
type UsageConfig struct {
	Store string `mapstructure:"store" validate:"required,oneof=database badger postgres memory" yaml:"store"`

	Badger   map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`     // path, in_memory
	Postgres map[string]any `mapstructure:"postgres" yaml:"postgres,omitempty"` // dsn, max_conns, auto_migrate
}
