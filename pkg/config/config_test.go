package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certstore/internal/bytesize"
)

// yamlPath keeps Windows backslashes out of double-quoted YAML strings,
// where they would be read as escapes.
func yamlPath(p string) string {
	return filepath.ToSlash(p)
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_File(t *testing.T) {
	dir := yamlPath(t.TempDir())
	cfg, err := Load(writeTestConfig(t, `
logging:
  level: "info"

database:
  type: sqlite
  sqlite:
    path: "`+dir+`/certstore.db"

storage:
  public_base_url: "https://files.example.com/"
  max_upload_size: 10Mi
  stats_cache_ttl: 5s
  local:
    type: fs
    fs:
      base_path: "`+dir+`/local"
  bucket:
    type: memory

server:
  port: 8080
`))
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level, "level is normalized")
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://files.example.com", cfg.Storage.PublicBaseURL, "trailing slash trimmed")
	assert.Equal(t, 10*bytesize.MiB, cfg.Storage.MaxUploadSize)
	assert.Equal(t, 5*time.Second, cfg.Storage.StatsCacheTTL)
	assert.Equal(t, BackendTypeMemory, cfg.Storage.Bucket.Type)
	assert.Equal(t, dir+"/local", cfg.Storage.Local.FS["base_path"])
	assert.Equal(t, UsageStoreDatabase, cfg.Usage.Store)
}

func TestLoad_NumericSizeAndDuration(t *testing.T) {
	cfg, err := Load(writeTestConfig(t, `
storage:
  public_base_url: "https://files.example.com"
  max_upload_size: 1048576
  backend_timeout: 2m
`))
	require.NoError(t, err)
	assert.Equal(t, bytesize.MiB, cfg.Storage.MaxUploadSize)
	assert.Equal(t, 2*time.Minute, cfg.Storage.BackendTimeout)
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeTestConfig(t, `
logging:
  level: INFO
  invalid yaml here [[[
`))
	assert.Error(t, err)
}

func TestLoad_BadValues(t *testing.T) {
	tests := map[string]string{
		"backend type": "storage:\n  bucket:\n    type: ftp\n",
		"duration":     "storage:\n  backend_timeout: soon\n",
		"size":         "storage:\n  max_upload_size: 12 parsecs\n",
	}
	for name, content := range tests {
		_, err := Load(writeTestConfig(t, content))
		assert.Error(t, err, name)
	}

	_, err := Load(writeTestConfig(t, tests["backend type"]))
	assert.ErrorContains(t, err, "oneof")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CERTSTORE_LOGGING_LEVEL", "ERROR")
	t.Setenv("CERTSTORE_SERVER_PORT", "9191")
	t.Setenv("CERTSTORE_STORAGE_MAX_UPLOAD_SIZE", "20MB")
	t.Setenv("CERTSTORE_TELEMETRY_PROFILING_PROFILE_TYPES", "cpu,goroutines")

	cfg, err := Load(writeTestConfig(t, `
logging:
  level: "INFO"
server:
  port: 8080
storage:
  public_base_url: "https://files.example.com"
  max_upload_size: 10Mi
telemetry:
  profiling:
    profile_types: [cpu]
`))
	require.NoError(t, err)

	assert.Equal(t, "ERROR", cfg.Logging.Level)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 20*bytesize.MB, cfg.Storage.MaxUploadSize)
	assert.Equal(t, []string{"cpu", "goroutines"}, cfg.Telemetry.Profiling.ProfileTypes)
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "certstore init")
}

func TestMustLoad_NoDefaultFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, err := MustLoad("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), GetDefaultConfigPath())
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Storage.PublicBaseURL = "https://cdn.example.com"
	cfg.Storage.BulkConcurrency = 4
	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com", loaded.Storage.PublicBaseURL)
	assert.Equal(t, 4, loaded.Storage.BulkConcurrency)
	assert.Equal(t, time.Hour, loaded.Storage.SignedURL.MaxExpiry)
	assert.Equal(t, cfg.Storage.MaxUploadSize, loaded.Storage.MaxUploadSize)
}

func TestDefaultPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)

	assert.Equal(t, filepath.Join(home, "certstore"), GetConfigDir())
	assert.Equal(t, filepath.Join(home, "certstore", "config.yaml"), GetDefaultConfigPath())
	assert.False(t, DefaultConfigExists())

	require.NoError(t, SaveConfig(GetDefaultConfig(), GetDefaultConfigPath()))
	assert.True(t, DefaultConfigExists())
}

func TestSchema(t *testing.T) {
	out, err := Schema()
	require.NoError(t, err)

	for _, want := range []string{
		`"public_base_url"`, `"signed_url"`, `"usage"`, `"shutdown_timeout"`,
		"Go duration, e.g. 30s", "Size in bytes, e.g. 52428800",
	} {
		assert.Contains(t, string(out), want)
	}
}
