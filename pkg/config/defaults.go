package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/certforge/certstore/internal/bytesize"
	"github.com/certforge/certstore/pkg/storage/signer"
)

const (
	DefaultPublicBaseURL   = "http://localhost:8080"
	DefaultBackendTimeout  = 30 * time.Second
	DefaultBulkConcurrency = 8
	DefaultStatsCacheTTL   = 30 * time.Second
	DefaultMaxUploadSize   = 50 * bytesize.MiB
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsPort     = 9090
)

// defaultProfileTypes keeps profiling cheap enough to leave on.
var defaultProfileTypes = []string{
	"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines",
}

// orDefault sets *field to def when it holds the zero value.
func orDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// ApplyDefaults fills every unset field. Values already set are kept.
func ApplyDefaults(cfg *Config) {
	orDefault(&cfg.Logging.Level, "INFO")
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	orDefault(&cfg.Logging.Format, "text")
	orDefault(&cfg.Logging.Output, "stdout")

	t := &cfg.Telemetry
	orDefault(&t.Endpoint, "localhost:4317")
	orDefault(&t.SampleRate, 1.0)
	orDefault(&t.Profiling.Endpoint, "http://localhost:4040")
	if len(t.Profiling.ProfileTypes) == 0 {
		t.Profiling.ProfileTypes = append([]string(nil), defaultProfileTypes...)
	}

	orDefault(&cfg.ShutdownTimeout, DefaultShutdownTimeout)
	cfg.Database.ApplyDefaults()
	cfg.Server.ApplyDefaults()

	// metrics stay opt-in; the port only matters once enabled
	if cfg.Metrics.Enabled {
		orDefault(&cfg.Metrics.Port, DefaultMetricsPort)
	}

	applyStorageDefaults(&cfg.Storage)

	orDefault(&cfg.Usage.Store, UsageStoreDatabase)
	if cfg.Usage.Store == UsageStoreBadger && cfg.Usage.Badger["path"] == nil && cfg.Usage.Badger["in_memory"] == nil {
		cfg.Usage.Badger = withDefault(cfg.Usage.Badger, "path", filepath.Join(getConfigDir(), "usage"))
	}
}

func applyStorageDefaults(s *StorageConfig) {
	orDefault(&s.PublicBaseURL, DefaultPublicBaseURL)
	s.PublicBaseURL = strings.TrimRight(s.PublicBaseURL, "/")

	for dir, b := range map[string]*BackendConfig{"local": &s.Local, "bucket": &s.Bucket} {
		orDefault(&b.Type, BackendTypeFS)
		if b.Type == BackendTypeFS {
			b.FS = withDefault(b.FS, "base_path", filepath.Join(getConfigDir(), "data", dir))
		}
	}

	orDefault(&s.BackendTimeout, DefaultBackendTimeout)
	orDefault(&s.BulkConcurrency, DefaultBulkConcurrency)
	orDefault(&s.StatsCacheTTL, DefaultStatsCacheTTL)
	orDefault(&s.MaxUploadSize, DefaultMaxUploadSize)
	orDefault(&s.SignedURL.DefaultExpiry, signer.DefaultExpiry)
	orDefault(&s.SignedURL.MaxExpiry, signer.MaxExpiry)
}

// withDefault sets m[key] unless present, allocating m if needed.
func withDefault(m map[string]any, key string, value any) map[string]any {
	if m == nil {
		m = map[string]any{}
	}
	if m[key] == nil {
		m[key] = value
	}
	return m
}

// GetDefaultConfig is the configuration used without a file, and the one
// "certstore init" starts from.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
