package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certstore/internal/bytesize"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/backend"
	"github.com/certforge/certstore/pkg/storage/backend/backendtest"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewWithPath(filepath.Join(t.TempDir(), "public"))
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend { return newStore(t) })
}

func TestNewRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	_, err := New(Config{BasePath: f})
	assert.Error(t, err)

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestPathEscapeRejected(t *testing.T) {
	s := newStore(t)
	_, err := s.Stat(context.Background(), "../outside")
	assert.True(t, storage.IsInvalidInput(err), "got %v", err)
}

func TestTempFilesHidden(t *testing.T) {
	s := newStore(t)
	backendtest.Put(t, s, "a.txt", "x")
	require.NoError(t, os.WriteFile(filepath.Join(s.BasePath(), tmpPrefix+"123"), []byte("partial"), 0o644))

	entries, err := s.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0].Key)
}

func TestContentTypeByExtension(t *testing.T) {
	s := newStore(t)
	backendtest.Put(t, s, "doc.pdf", "not really a pdf")

	entries, err := s.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "application/pdf", entries[0].ContentType)
}

func TestWriteOverDirectoryConflicts(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Mkdir(context.Background(), "folder"))
	_, err := s.Write(context.Background(), "folder", nil, "")
	assert.True(t, storage.IsConflict(err))
}

func TestDeleteRootRejected(t *testing.T) {
	s := newStore(t)
	assert.True(t, storage.IsInvalidInput(s.Delete(context.Background(), "")))
}

func TestHealthCheckFreeSpaceFloor(t *testing.T) {
	base := filepath.Join(t.TempDir(), "public")
	ctx := context.Background()

	free, err := freeSpace(filepath.Dir(base))
	if err != nil {
		t.Skipf("free space not available here: %v", err)
	}

	ok, err := New(Config{BasePath: base, CreateDir: true, MinFreeSpace: 1})
	require.NoError(t, err)
	require.NoError(t, ok.HealthCheck(ctx))

	full, err := New(Config{BasePath: base, MinFreeSpace: bytesize.ByteSize(free) * 1024})
	require.NoError(t, err)
	err = full.HealthCheck(ctx)
	require.Error(t, err)
	assert.Equal(t, storage.KindBackendUnavailable, storage.KindOf(err))
	assert.Contains(t, err.Error(), "floor")
}
