package controlplane

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certstore/pkg/config"
	"github.com/certforge/certstore/pkg/controlplane/store"
	"github.com/certforge/certstore/pkg/storage/service"
)

func testConfig(t *testing.T, port int) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{
		Database: store.Config{
			Type:   store.DatabaseTypeSQLite,
			SQLite: store.SQLiteConfig{Path: filepath.Join(dir, "certstore.db")},
		},
		Storage: config.StorageConfig{
			PublicBaseURL: "https://files.example.com",
			Local: config.BackendConfig{
				Type: config.BackendTypeFS,
				FS:   map[string]any{"base_path": filepath.Join(dir, "local")},
			},
			Bucket: config.BackendConfig{Type: config.BackendTypeMemory},
		},
		Usage: config.UsageConfig{Store: config.UsageStoreDatabase},
	}
	cfg.Server.Port = port
	config.ApplyDefaults(cfg)
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func TestNew_BuildsComponents(t *testing.T) {
	cp, err := New(context.Background(), testConfig(t, 18190))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cp.Close() })

	assert.NotNil(t, cp.Store())
	assert.NotNil(t, cp.Service())
	assert.NotNil(t, cp.APIServer())
	assert.Nil(t, cp.MetricsServer(), "metrics are opt-in")

	require.NoError(t, cp.Service().HealthCheck(context.Background()))

	// The GORM store backs both item metadata and usage records
	res := cp.Service().CreateFolder(context.Background(), service.CreateFolderInput{Path: "public", Name: "seals"})
	require.True(t, res.Success, res.Message)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.Error(t, err)

	cfg := testConfig(t, 18191)
	cfg.Storage.Bucket = config.BackendConfig{Type: config.BackendTypeS3}
	_, err = New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket backend")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t, 18192)
	cp, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cp.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- cp.Serve(ctx) }()

	url := fmt.Sprintf("http://localhost:%d/health/ready", cfg.Server.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	err = cp.Serve(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "already serving"))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	assert.NoError(t, cp.Close())
	assert.NoError(t, cp.Close(), "Close is idempotent")
}
