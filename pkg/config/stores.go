package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/certforge/certstore/pkg/controlplane/store"
	"github.com/certforge/certstore/pkg/storage/backend"
	"github.com/certforge/certstore/pkg/storage/backend/fs"
	"github.com/certforge/certstore/pkg/storage/backend/memory"
	"github.com/certforge/certstore/pkg/storage/backend/s3"
	"github.com/certforge/certstore/pkg/usage"
	"github.com/certforge/certstore/pkg/usage/badger"
	usagememory "github.com/certforge/certstore/pkg/usage/memory"
	"github.com/certforge/certstore/pkg/usage/postgres"
)

// memoryBackendConfig holds the options of the in-memory backend.
type memoryBackendConfig struct {
	PresignBaseURL string `mapstructure:"presign_base_url"`
}

// decodeOptions decodes the free-form options of a backend or usage store.
// Sizes and
// durations may be written as strings ("10GB", "30s"), and numbers given as
// environment strings are converted.
func decodeOptions(raw map[string]any, out any) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return d.Decode(raw)
}

// CreateBackend creates a storage backend from configuration. name labels
// the backend in logs and metrics ("local" or "bucket").
func CreateBackend(ctx context.Context, name string, cfg BackendConfig) (backend.Backend, error) {
	switch cfg.Type {
	case BackendTypeFS:
		return createFSBackend(cfg.FS)
	case BackendTypeS3:
		return createS3Backend(ctx, cfg.S3)
	case BackendTypeMemory:
		return createMemoryBackend(name, cfg.Memory)
	default:
		return nil, fmt.Errorf("unknown backend type: %q", cfg.Type)
	}
}

func createFSBackend(raw map[string]any) (backend.Backend, error) {
	// Decoding on top of the defaults keeps create_dir on unless disabled
	fsCfg := fs.DefaultConfig("")
	if err := decodeOptions(raw, &fsCfg); err != nil {
		return nil, fmt.Errorf("invalid fs backend config: %w", err)
	}
	if fsCfg.BasePath == "" {
		return nil, fmt.Errorf("fs backend requires base_path to be set")
	}
	return fs.New(fsCfg)
}

func createS3Backend(ctx context.Context, raw map[string]any) (backend.Backend, error) {
	var s3Cfg s3.Config
	if err := decodeOptions(raw, &s3Cfg); err != nil {
		return nil, fmt.Errorf("invalid s3 backend config: %w", err)
	}
	if s3Cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 backend requires bucket to be set")
	}
	return s3.NewFromConfig(ctx, s3Cfg)
}

func createMemoryBackend(name string, raw map[string]any) (backend.Backend, error) {
	var memCfg memoryBackendConfig
	if err := decodeOptions(raw, &memCfg); err != nil {
		return nil, fmt.Errorf("invalid memory backend config: %w", err)
	}
	opts := []memory.Option{memory.WithName(name)}
	if memCfg.PresignBaseURL != "" {
		opts = append(opts, memory.WithPresignBaseURL(memCfg.PresignBaseURL))
	}
	return memory.New(opts...), nil
}

// CreateUsageStore creates the usage registry store. db backs the
// "database" store type and may be nil for the others.
func CreateUsageStore(ctx context.Context, cfg UsageConfig, db *store.GORMStore) (usage.Store, error) {
	switch cfg.Store {
	case UsageStoreDatabase, "":
		if db == nil {
			return nil, fmt.Errorf("database usage store requires the metadata database")
		}
		return db.UsageStore(), nil
	case UsageStoreBadger:
		var badgerCfg badger.Config
		if err := decodeOptions(cfg.Badger, &badgerCfg); err != nil {
			return nil, fmt.Errorf("invalid badger config: %w", err)
		}
		s, err := badger.New(ctx, badgerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger usage store: %w", err)
		}
		return s, nil
	case UsageStorePostgres:
		pgCfg := postgres.Config{AutoMigrate: true}
		if err := decodeOptions(cfg.Postgres, &pgCfg); err != nil {
			return nil, fmt.Errorf("invalid postgres config: %w", err)
		}
		s, err := postgres.New(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres usage store: %w", err)
		}
		return s, nil
	case UsageStoreMemory:
		return usagememory.New(), nil
	default:
		return nil, fmt.Errorf("unknown usage store type: %q", cfg.Store)
	}
}
