// Package controlplane assembles a running certstore from configuration.
//
// The control plane owns:
//   - The metadata database (item flags, ownership, default usage store)
//   - The local and bucket storage backends
//   - The usage registry store
//   - The storage service and the REST API server
//   - The optional Prometheus metrics server
//
// Usage:
//
//	cp, err := controlplane.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cp.Close()
//
//	err = cp.Serve(ctx) // blocks until ctx is cancelled
package controlplane

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/certforge/certstore/internal/logger"
	"github.com/certforge/certstore/pkg/config"
	"github.com/certforge/certstore/pkg/controlplane/api"
	"github.com/certforge/certstore/pkg/controlplane/store"
	"github.com/certforge/certstore/pkg/metrics"
	_ "github.com/certforge/certstore/pkg/metrics/prometheus" // registers the Prometheus implementations
	"github.com/certforge/certstore/pkg/storage/backend"
	"github.com/certforge/certstore/pkg/storage/service"
	"github.com/certforge/certstore/pkg/storage/signer"
	"github.com/certforge/certstore/pkg/usage"
)

// DefaultShutdownTimeout bounds Serve's wait for servers to drain.
const DefaultShutdownTimeout = 30 * time.Second

// ControlPlane is the central component of a certstore process.
type ControlPlane struct {
	store         *store.GORMStore
	local         backend.Backend
	bucket        backend.Backend
	usageStore    usage.Store
	service       *service.Service
	apiServer     *api.Server
	metricsServer *metrics.Server

	shutdownTimeout time.Duration
	serveOnce       sync.Once
	closeOnce       sync.Once
}

// New builds every component described by cfg. Nothing listens until Serve.
//
// On error, whatever was already opened is closed again.
func New(ctx context.Context, cfg *config.Config) (_ *ControlPlane, err error) {
	if cfg == nil {
		return nil, errors.New("configuration cannot be nil")
	}

	cp := &ControlPlane{shutdownTimeout: cfg.ShutdownTimeout}
	if cp.shutdownTimeout == 0 {
		cp.shutdownTimeout = DefaultShutdownTimeout
	}
	defer func() {
		if err != nil {
			_ = cp.Close()
		}
	}()

	var m metrics.StorageMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		m = metrics.NewStorageMetrics()
		cp.metricsServer = metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
	}

	if cp.store, err = store.New(&cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to create metadata store: %w", err)
	}
	logger.Info("Metadata database ready", "type", cfg.Database.Type)

	if cp.local, err = config.CreateBackend(ctx, "local", cfg.Storage.Local); err != nil {
		return nil, fmt.Errorf("failed to create local backend: %w", err)
	}
	if cp.bucket, err = config.CreateBackend(ctx, "bucket", cfg.Storage.Bucket); err != nil {
		return nil, fmt.Errorf("failed to create bucket backend: %w", err)
	}
	logger.Info("Storage backends ready",
		"local", cfg.Storage.Local.Type,
		"bucket", cfg.Storage.Bucket.Type)

	if cp.usageStore, err = config.CreateUsageStore(ctx, cfg.Usage, cp.store); err != nil {
		return nil, fmt.Errorf("failed to create usage store: %w", err)
	}
	logger.Info("Usage registry ready", "store", cfg.Usage.Store)

	router := backend.NewRouter(cp.local, cp.bucket,
		backend.WithTimeout(cfg.Storage.BackendTimeout),
		backend.WithMetrics(m),
	)
	registry := usage.NewRegistry(cp.usageStore, usage.WithMetrics(m))

	cp.service, err = service.New(router, cp.store, registry, service.Config{
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
		BulkConcurrency: cfg.Storage.BulkConcurrency,
		StatsCacheTTL:   cfg.Storage.StatsCacheTTL,
		MaxUploadSize:   cfg.Storage.MaxUploadSize.Int64(),
		SignedURL: signer.Config{
			Secret:        cfg.Storage.SignedURL.Secret,
			DefaultExpiry: cfg.Storage.SignedURL.DefaultExpiry,
			MaxExpiry:     cfg.Storage.SignedURL.MaxExpiry,
		},
	}, service.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}
	if cfg.Storage.SignedURL.Secret == "" {
		logger.Warn("No upload URL secret configured; local upload URLs will not survive a restart")
	}

	if cp.apiServer, err = api.NewServer(cfg.Server, cp.service); err != nil {
		return nil, fmt.Errorf("failed to create API server: %w", err)
	}
	if !cp.apiServer.AuthEnabled() {
		logger.Warn("API authentication is disabled; storage routes accept anonymous requests")
	}

	return cp, nil
}

// Store returns the metadata database.
func (cp *ControlPlane) Store() *store.GORMStore {
	return cp.store
}

// Service returns the storage service.
func (cp *ControlPlane) Service() *service.Service {
	return cp.service
}

// APIServer returns the REST API server.
func (cp *ControlPlane) APIServer() *api.Server {
	return cp.apiServer
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (cp *ControlPlane) MetricsServer() *metrics.Server {
	return cp.metricsServer
}

// Serve runs the API server (and the metrics server when enabled) until ctx
// is cancelled or a server fails. It may only be called once.
//
// A cancelled ctx is a clean shutdown and returns nil.
func (cp *ControlPlane) Serve(ctx context.Context) error {
	err := errors.New("control plane is already serving")
	cp.serveOnce.Do(func() {
		err = cp.serve(ctx)
	})
	return err
}

func (cp *ControlPlane) serve(ctx context.Context) error {
	logger.Info("Starting certstore")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cp.apiServer.Run(gctx)
	})
	if cp.metricsServer != nil {
		g.Go(func() error {
			return cp.metricsServer.Run(gctx)
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", ctx.Err())
		select {
		case err = <-done:
		case <-time.After(cp.shutdownTimeout):
			err = fmt.Errorf("servers did not stop within %s", cp.shutdownTimeout)
		}
	}

	if err != nil {
		logger.Error("certstore stopped with error", logger.KeyError, err)
		return err
	}
	logger.Info("certstore stopped")
	return nil
}

// Close releases the service, usage store, backends and database. Safe to
// call more than once.
func (cp *ControlPlane) Close() error {
	var errs []error
	cp.closeOnce.Do(func() {
		if cp.service != nil {
			errs = append(errs, cp.service.Close())
		}
		if cp.usageStore != nil {
			errs = append(errs, cp.usageStore.Close())
		}
		if cp.bucket != nil {
			errs = append(errs, cp.bucket.Close())
		}
		if cp.local != nil {
			errs = append(errs, cp.local.Close())
		}
		if cp.store != nil {
			errs = append(errs, cp.store.Close())
		}
	})
	return errors.Join(errs...)
}
