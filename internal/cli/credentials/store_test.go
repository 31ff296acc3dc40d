package credentials

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		expected  bool
	}{
		{"expired in past", time.Now().Add(-time.Hour), true},
		{"expires soon (within 60s)", time.Now().Add(30 * time.Second), true},
		{"not expired", time.Now().Add(2 * time.Hour), false},
		{"no expiry", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &Context{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.expected, ctx.IsExpired())
		})
	}
}

func TestStoreOperations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certstorectl", ConfigFileName)

	store, err := NewStoreAt(path)
	require.NoError(t, err)

	_, err = store.GetCurrentContext()
	assert.ErrorIs(t, err, ErrNoCurrentContext)

	require.NoError(t, store.SetContext("prod", &Context{ServerURL: "https://files.example.com", Token: "t1"}))
	require.NoError(t, store.SetContext("dev", &Context{ServerURL: "http://localhost:8080"}))

	assert.Equal(t, "prod", store.GetCurrentContextName(), "first context becomes current")
	assert.Equal(t, []string{"dev", "prod"}, store.ListContexts())

	require.NoError(t, store.UseContext("dev"))
	assert.ErrorIs(t, store.UseContext("staging"), ErrContextNotFound)

	// Reload from disk
	reloaded, err := NewStoreAt(path)
	require.NoError(t, err)
	ctx, err := reloaded.GetCurrentContext()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", ctx.ServerURL)

	prod, err := reloaded.GetContext("prod")
	require.NoError(t, err)
	assert.True(t, prod.HasToken())

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())
	}

	require.NoError(t, reloaded.DeleteContext("dev"))
	assert.Empty(t, reloaded.GetCurrentContextName())
	assert.ErrorIs(t, reloaded.DeleteContext("dev"), ErrContextNotFound)
}

func TestStoreClearCurrentContext(t *testing.T) {
	store, err := NewStoreAt(filepath.Join(t.TempDir(), ConfigFileName))
	require.NoError(t, err)

	require.NoError(t, store.SetContext("default", &Context{
		ServerURL: "http://localhost:8080",
		Subject:   "alice",
		Role:      "admin",
		Token:     "secret-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, store.ClearCurrentContext())

	ctx, err := store.GetCurrentContext()
	require.NoError(t, err)
	assert.False(t, ctx.HasToken())
	assert.Empty(t, ctx.Subject)
	assert.True(t, ctx.ExpiresAt.IsZero())
	assert.Equal(t, "http://localhost:8080", ctx.ServerURL, "server URL survives logout")
}

func TestStoreRenameContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	store, err := NewStoreAt(path)
	require.NoError(t, err)

	require.NoError(t, store.SetContext("localhost", &Context{ServerURL: "http://localhost:8080"}))
	require.NoError(t, store.SetContext("files.example.com", &Context{ServerURL: "https://files.example.com"}))

	require.NoError(t, store.RenameContext("localhost", "dev"))
	assert.Equal(t, "dev", store.GetCurrentContextName(), "current context follows the rename")
	assert.Equal(t, []string{"dev", "files.example.com"}, store.ListContexts())

	assert.ErrorIs(t, store.RenameContext("dev", "files.example.com"), ErrContextExists)
	assert.ErrorIs(t, store.RenameContext("missing", "x"), ErrContextNotFound)
	assert.Error(t, store.RenameContext("dev", " "))

	reloaded, err := NewStoreAt(path)
	require.NoError(t, err)
	ctx, err := reloaded.GetContext("dev")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", ctx.ServerURL)
}

func TestStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStoreAt(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, store.SetContext(name, &Context{ServerURL: "http://" + name}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ConfigFileName, entries[0].Name())
	assert.Equal(t, filepath.Join(dir, ConfigFileName), store.ConfigPath())
}

func TestNewStore_EnvironmentOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ci-contexts.json")
	t.Setenv(EnvConfigPath, path)

	store, err := NewStore()
	require.NoError(t, err)
	assert.Equal(t, path, store.ConfigPath())

	t.Setenv(EnvConfigPath, "")
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	store, err = NewStore()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg, DefaultConfigDir, ConfigFileName), store.ConfigPath())
}

func TestSetContext_RejectsEmptyName(t *testing.T) {
	store, err := NewStoreAt(filepath.Join(t.TempDir(), ConfigFileName))
	require.NoError(t, err)
	assert.Error(t, store.SetContext("", &Context{}))
}

func TestNewStoreAt_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewStoreAt(path)
	assert.Error(t, err)
}
