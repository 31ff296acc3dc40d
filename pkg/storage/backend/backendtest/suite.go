// Package backendtest is a conformance suite every backend.Backend
// implementation runs from its own tests.
package backendtest

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/backend"
)

// Factory returns a fresh, empty backend. It is called once per subtest.
type Factory func(t *testing.T) backend.Backend

// Run executes the suite against backends built by newBackend.
func Run(t *testing.T, newBackend Factory) {
	t.Run("WriteStatRead", func(t *testing.T) { testWriteStatRead(t, newBackend(t)) })
	t.Run("WriteSniffsContentType", func(t *testing.T) { testSniff(t, newBackend(t)) })
	t.Run("WriteCreatesParents", func(t *testing.T) { testWriteCreatesParents(t, newBackend(t)) })
	t.Run("StatMissing", func(t *testing.T) { testStatMissing(t, newBackend(t)) })
	t.Run("ListChildren", func(t *testing.T) { testList(t, newBackend(t)) })
	t.Run("ListMissingDir", func(t *testing.T) { testListMissing(t, newBackend(t)) })
	t.Run("Mkdir", func(t *testing.T) { testMkdir(t, newBackend(t)) })
	t.Run("DeleteFile", func(t *testing.T) { testDeleteFile(t, newBackend(t)) })
	t.Run("DeleteDirectoryRecursive", func(t *testing.T) { testDeleteDir(t, newBackend(t)) })
	t.Run("MoveFile", func(t *testing.T) { testMoveFile(t, newBackend(t)) })
	t.Run("MoveDirectory", func(t *testing.T) { testMoveDir(t, newBackend(t)) })
	t.Run("MoveOntoExistingConflicts", func(t *testing.T) { testMoveConflict(t, newBackend(t)) })
	t.Run("CopyFile", func(t *testing.T) { testCopyFile(t, newBackend(t)) })
	t.Run("CopyDirectory", func(t *testing.T) { testCopyDir(t, newBackend(t)) })
	t.Run("CopyOntoExistingConflicts", func(t *testing.T) { testCopyConflict(t, newBackend(t)) })
	t.Run("Walk", func(t *testing.T) { testWalk(t, newBackend(t)) })
	t.Run("WalkSkipDir", func(t *testing.T) { testWalkSkip(t, newBackend(t)) })
	t.Run("HealthAndClose", func(t *testing.T) { testClose(t, newBackend(t)) })
}

// Put writes a text file and fails the test on error.
func Put(t *testing.T, b backend.Backend, key, content string) *backend.Entry {
	t.Helper()
	e, err := b.Write(context.Background(), key, strings.NewReader(content), "")
	require.NoError(t, err, "write %s", key)
	return e
}

// Get reads a file fully and fails the test on error.
func Get(t *testing.T, b backend.Backend, key string) string {
	t.Helper()
	rc, _, err := b.Read(context.Background(), key)
	require.NoError(t, err, "read %s", key)
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func keys(entries []backend.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}

func testWriteStatRead(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	e, err := b.Write(ctx, "certs/a.txt", strings.NewReader("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "certs/a.txt", e.Key)
	assert.EqualValues(t, 5, e.Size)
	assert.False(t, e.IsDir)

	st, err := b.Stat(ctx, "certs/a.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 5, st.Size)
	assert.Equal(t, "a.txt", st.Name())
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", st.MD5)
	assert.False(t, st.LastModified.IsZero())

	assert.Equal(t, "hello", Get(t, b, "certs/a.txt"))

	// Overwrite replaces content.
	Put(t, b, "certs/a.txt", "bye")
	assert.Equal(t, "bye", Get(t, b, "certs/a.txt"))
}

func testSniff(t *testing.T, b backend.Backend) {
	png := "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89"
	e, err := b.Write(context.Background(), "img/blob", strings.NewReader(png), "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", e.ContentType)
}

func testWriteCreatesParents(t *testing.T, b backend.Backend) {
	Put(t, b, "a/b/c/file.txt", "x")
	for _, dir := range []string{"a", "a/b", "a/b/c"} {
		st, err := b.Stat(context.Background(), dir)
		require.NoError(t, err, dir)
		assert.True(t, st.IsDir, dir)
	}
}

func testStatMissing(t *testing.T, b backend.Backend) {
	_, err := b.Stat(context.Background(), "nope/missing.png")
	require.Error(t, err)
	assert.Equal(t, storage.KindNotFound, storage.KindOf(err))

	_, _, err = b.Read(context.Background(), "nope/missing.png")
	assert.True(t, storage.IsNotFound(err))
}

func testList(t *testing.T, b backend.Backend) {
	Put(t, b, "dir/b.txt", "bb")
	Put(t, b, "dir/a.txt", "a")
	Put(t, b, "dir/sub/c.txt", "c")
	require.NoError(t, b.Mkdir(context.Background(), "dir/empty"))

	entries, err := b.List(context.Background(), "dir")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dir/a.txt", "dir/b.txt", "dir/empty", "dir/sub"}, keys(entries))

	for _, e := range entries {
		switch e.Key {
		case "dir/sub", "dir/empty":
			assert.True(t, e.IsDir, e.Key)
		case "dir/b.txt":
			assert.EqualValues(t, 2, e.Size)
		}
	}

	root, err := b.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"dir"}, keys(root))
}

func testListMissing(t *testing.T, b backend.Backend) {
	_, err := b.List(context.Background(), "ghost")
	assert.True(t, storage.IsNotFound(err), "got %v", err)
}

func testMkdir(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	require.NoError(t, b.Mkdir(ctx, "x/y"))

	st, err := b.Stat(ctx, "x/y")
	require.NoError(t, err)
	assert.True(t, st.IsDir)

	err = b.Mkdir(ctx, "x/y")
	assert.True(t, storage.IsConflict(err), "got %v", err)

	entries, err := b.List(ctx, "x/y")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func testDeleteFile(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	Put(t, b, "d/f.txt", "x")
	require.NoError(t, b.Delete(ctx, "d/f.txt"))

	_, err := b.Stat(ctx, "d/f.txt")
	assert.True(t, storage.IsNotFound(err))

	// The parent directory survives.
	st, err := b.Stat(ctx, "d")
	require.NoError(t, err)
	assert.True(t, st.IsDir)

	assert.True(t, storage.IsNotFound(b.Delete(ctx, "d/f.txt")))
}

func testDeleteDir(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	Put(t, b, "tree/a.txt", "a")
	Put(t, b, "tree/sub/b.txt", "b")
	Put(t, b, "treehouse.txt", "keep")

	require.NoError(t, b.Delete(ctx, "tree"))
	_, err := b.Stat(ctx, "tree/sub/b.txt")
	assert.True(t, storage.IsNotFound(err))
	_, err = b.Stat(ctx, "tree")
	assert.True(t, storage.IsNotFound(err))

	assert.Equal(t, "keep", Get(t, b, "treehouse.txt"))
}

func testMoveFile(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	Put(t, b, "src/a.txt", "payload")
	require.NoError(t, b.Move(ctx, "src/a.txt", "dst/renamed.txt"))

	_, err := b.Stat(ctx, "src/a.txt")
	assert.True(t, storage.IsNotFound(err))
	assert.Equal(t, "payload", Get(t, b, "dst/renamed.txt"))
}

func testMoveDir(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	Put(t, b, "old/a.txt", "a")
	Put(t, b, "old/sub/b.txt", "b")
	require.NoError(t, b.Move(ctx, "old", "new"))

	assert.Equal(t, "a", Get(t, b, "new/a.txt"))
	assert.Equal(t, "b", Get(t, b, "new/sub/b.txt"))
	_, err := b.Stat(ctx, "old")
	assert.True(t, storage.IsNotFound(err))
}

func testMoveConflict(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	Put(t, b, "m/a.txt", "a")
	Put(t, b, "m/b.txt", "b")

	err := b.Move(ctx, "m/a.txt", "m/b.txt")
	assert.True(t, storage.IsConflict(err), "got %v", err)
	assert.Equal(t, "a", Get(t, b, "m/a.txt"))
	assert.Equal(t, "b", Get(t, b, "m/b.txt"))

	assert.True(t, storage.IsNotFound(b.Move(ctx, "m/ghost.txt", "m/c.txt")))
}

func testCopyFile(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	Put(t, b, "c/a.txt", "same")
	require.NoError(t, b.Copy(ctx, "c/a.txt", "c2/a.txt"))

	assert.Equal(t, "same", Get(t, b, "c/a.txt"))
	assert.Equal(t, "same", Get(t, b, "c2/a.txt"))
}

func testCopyDir(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	Put(t, b, "tpl/a.txt", "a")
	Put(t, b, "tpl/sub/b.txt", "b")
	require.NoError(t, b.Copy(ctx, "tpl", "tpl-copy"))

	assert.Equal(t, "a", Get(t, b, "tpl-copy/a.txt"))
	assert.Equal(t, "b", Get(t, b, "tpl-copy/sub/b.txt"))
	assert.Equal(t, "a", Get(t, b, "tpl/a.txt"))
}

func testCopyConflict(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	Put(t, b, "a.png", "source")
	Put(t, b, "b.png", "existing")

	err := b.Copy(ctx, "a.png", "b.png")
	assert.True(t, storage.IsConflict(err), "got %v", err)
	assert.Equal(t, "source", Get(t, b, "a.png"))
	assert.Equal(t, "existing", Get(t, b, "b.png"))
}

func testWalk(t *testing.T, b backend.Backend) {
	Put(t, b, "w/a.txt", "1")
	Put(t, b, "w/s/b.txt", "22")
	Put(t, b, "w/s/t/c.txt", "333")
	Put(t, b, "other.txt", "x")

	var files []string
	var dirs []string
	var total int64
	err := b.Walk(context.Background(), "w", func(e backend.Entry) error {
		if e.IsDir {
			dirs = append(dirs, e.Key)
		} else {
			files = append(files, e.Key)
			total += e.Size
		}
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"w/a.txt", "w/s/b.txt", "w/s/t/c.txt"}, files)
	assert.ElementsMatch(t, []string{"w/s", "w/s/t"}, dirs)
	assert.EqualValues(t, 6, total)
}

func testWalkSkip(t *testing.T, b backend.Backend) {
	Put(t, b, "k/keep.txt", "1")
	Put(t, b, "k/skip/x.txt", "1")
	Put(t, b, "k/skip/deep/y.txt", "1")

	var seen []string
	err := b.Walk(context.Background(), "k", func(e backend.Entry) error {
		if e.IsDir && e.Key == "k/skip" {
			return backend.ErrSkipDir
		}
		seen = append(seen, e.Key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"k/keep.txt"}, seen)
}

func testClose(t *testing.T, b backend.Backend) {
	ctx := context.Background()
	require.NoError(t, b.HealthCheck(ctx))
	require.NoError(t, b.Close())

	_, err := b.Stat(ctx, "anything")
	assert.ErrorIs(t, err, backend.ErrClosed)
}
