package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestInitConfig_DefaultLocation(t *testing.T) {
	// XDG_CONFIG_HOME rather than HOME: os.UserHomeDir reads USERPROFILE on Windows
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfigPath(), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# certstore configuration file")
	for _, section := range []string{"logging", "database", "server", "storage", "usage"} {
		assert.Contains(t, string(raw), "\n"+section+":", "missing %s section", section)
	}

	var cfg Config
	require.NoError(t, yaml.Unmarshal(raw, &cfg))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestInitConfig_RefusesOverwrite(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := InitConfig(false)
	require.NoError(t, err)

	_, err = InitConfig(false)
	require.ErrorIs(t, err, ErrConfigExists)
	assert.Contains(t, err.Error(), "--force")
}

func TestInitConfigToPath_ForceRegeneratesSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, InitConfigToPath(path, false))
	first, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, InitConfigToPath(path, true))
	second, err := Load(path)
	require.NoError(t, err)

	assert.NotEqual(t, first.Server.Auth.Secret, second.Server.Auth.Secret)
	assert.NotEqual(t, first.Storage.SignedURL.Secret, second.Storage.SignedURL.Secret)
}

func TestInitConfigToPath_Loadable(t *testing.T) {
	t.Setenv("CERTSTORE_API_AUTH_SECRET", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, InitConfigToPath(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Server.Auth.Enabled)
	assert.Len(t, cfg.Server.Auth.Secret, 2*secretBytes)
	assert.Len(t, cfg.Storage.SignedURL.Secret, 2*secretBytes)
	assert.NotEqual(t, cfg.Server.Auth.Secret, cfg.Storage.SignedURL.Secret)
}

func TestNewSecrets(t *testing.T) {
	secrets, err := newSecrets(3)
	require.NoError(t, err)
	require.Len(t, secrets, 3)
	assert.NotEqual(t, secrets[0], secrets[1])
	assert.NotEqual(t, secrets[1], secrets[2])
}
