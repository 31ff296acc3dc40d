package backend_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/backend"
	"github.com/certforge/certstore/pkg/storage/backend/backendtest"
	"github.com/certforge/certstore/pkg/storage/backend/memory"
	"github.com/certforge/certstore/pkg/storage/paths"
)

func newRouter(t *testing.T, opts ...backend.RouterOption) (*backend.Router, *memory.Store, *memory.Store) {
	t.Helper()
	local := memory.New(memory.WithName("local"))
	bucket := memory.New(memory.WithName("bucket"))
	return backend.NewRouter(local, bucket, opts...), local, bucket
}

func TestRouterResolve(t *testing.T) {
	r, _, _ := newRouter(t)

	tests := []struct {
		path string
		loc  paths.Location
		key  string
	}{
		{"", paths.Local, ""},
		{"public", paths.Local, ""},
		{"public/logos/a.png", paths.Local, "logos/a.png"},
		{"/public/a.png", paths.Local, "a.png"},
		{"templates/2024/a.pdf", paths.Bucket, "templates/2024/a.pdf"},
		{"publicity/a.png", paths.Bucket, "publicity/a.png"},
		{"public/public/a.png", paths.Local, "public/a.png"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			target := r.Resolve(tt.path)
			assert.Equal(t, tt.loc, target.Location)
			assert.Equal(t, tt.key, target.Key)
		})
	}

	assert.Equal(t, "public/logos/a.png", r.Canonical(paths.Local, "logos/a.png"))
	assert.Equal(t, "public", r.Canonical(paths.Local, ""))
	assert.Equal(t, "templates/a.pdf", r.Canonical(paths.Bucket, "templates/a.pdf"))
}

func TestRouterCanonicalEntries(t *testing.T) {
	r, local, bucket := newRouter(t)
	ctx := context.Background()
	backendtest.Put(t, local, "logos/a.png", "png")
	backendtest.Put(t, bucket, "templates/b.pdf", "pdf")

	entries, err := r.List(ctx, "public/logos")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "public/logos/a.png", entries[0].Key)

	st, err := r.Stat(ctx, "templates/b.pdf")
	require.NoError(t, err)
	assert.Equal(t, "templates/b.pdf", st.Key)

	var walked []string
	require.NoError(t, r.Walk(ctx, "public", func(e backend.Entry) error {
		walked = append(walked, e.Key)
		return nil
	}))
	assert.ElementsMatch(t, []string{"public/logos", "public/logos/a.png"}, walked)
}

func TestRouterErrorsNameCanonicalPath(t *testing.T) {
	r, _, _ := newRouter(t)

	_, err := r.Stat(context.Background(), "public/missing.png")
	require.Error(t, err)
	var se *storage.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, storage.KindNotFound, se.Kind)
	assert.Equal(t, "public/missing.png", se.Path)
	assert.Contains(t, se.Message, "public/missing.png")
}

func TestRouterWriteAndRead(t *testing.T) {
	r, _, bucket := newRouter(t)
	ctx := context.Background()

	e, err := r.Write(ctx, "templates/a.txt", strings.NewReader("body"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "templates/a.txt", e.Key)
	assert.Equal(t, "body", backendtest.Get(t, bucket, "templates/a.txt"))

	ok, err := r.Exists(ctx, "templates/a.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Exists(ctx, "templates/ghost.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

// blockingStore never answers Stat until the context is done.
type blockingStore struct {
	*memory.Store
}

func (b blockingStore) Stat(ctx context.Context, key string) (*backend.Entry, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRouterTimeout(t *testing.T) {
	r := backend.NewRouter(memory.New(), blockingStore{memory.New()}, backend.WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := r.Stat(context.Background(), "templates/slow.pdf")
	require.Error(t, err)
	assert.True(t, storage.IsTimeout(err), "got %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRouterBackendFailure(t *testing.T) {
	r, _, bucket := newRouter(t)
	bucket.FailOn("templates/a.pdf", errors.New("connection refused"))

	_, err := r.Stat(context.Background(), "templates/a.pdf")
	assert.Equal(t, storage.KindBackendUnavailable, storage.KindOf(err))
}

func TestRouterCrossBackendMove(t *testing.T) {
	r, local, bucket := newRouter(t)
	ctx := context.Background()
	backendtest.Put(t, local, "drafts/a.txt", "a")
	backendtest.Put(t, local, "drafts/sub/b.txt", "b")

	require.NoError(t, r.Move(ctx, "public/drafts", "templates/drafts"))

	assert.Equal(t, "a", backendtest.Get(t, bucket, "templates/drafts/a.txt"))
	assert.Equal(t, "b", backendtest.Get(t, bucket, "templates/drafts/sub/b.txt"))
	_, err := local.Stat(ctx, "drafts")
	assert.True(t, storage.IsNotFound(err))
}

// undeletableStore refuses every Delete.
type undeletableStore struct {
	*memory.Store
}

func (u undeletableStore) Delete(ctx context.Context, key string) error {
	return storage.NewBackendError(key, errors.New("permission denied"))
}

func TestRouterCrossBackendMoveRollsBack(t *testing.T) {
	local := memory.New(memory.WithName("local"))
	bucket := memory.New(memory.WithName("bucket"))
	r := backend.NewRouter(undeletableStore{local}, bucket)
	ctx := context.Background()
	backendtest.Put(t, local, "drafts/a.txt", "a")

	err := r.Move(ctx, "public/drafts", "templates/drafts")
	require.Error(t, err)
	assert.Equal(t, storage.KindBackendUnavailable, storage.KindOf(err))

	_, err = bucket.Stat(ctx, "templates/drafts")
	assert.True(t, storage.IsNotFound(err), "copy should be removed when the source stays, got %v", err)
	assert.Equal(t, "a", backendtest.Get(t, local, "drafts/a.txt"))
}

func TestRouterRoot(t *testing.T) {
	r, local, bucket := newRouter(t)
	ctx := context.Background()
	backendtest.Put(t, local, "a.png", "png")
	backendtest.Put(t, bucket, "private/bg/cert1.png", "png")
	require.NoError(t, bucket.Mkdir(ctx, "templates"))

	t.Run("list", func(t *testing.T) {
		entries, err := r.List(ctx, "")
		require.NoError(t, err)
		var keys []string
		for _, e := range entries {
			assert.True(t, e.IsDir, e.Key)
			keys = append(keys, e.Key)
		}
		assert.Equal(t, []string{"private", "public", "templates"}, keys)
	})

	t.Run("stat", func(t *testing.T) {
		e, err := r.Stat(ctx, "")
		require.NoError(t, err)
		assert.True(t, e.IsDir)
		assert.Equal(t, "", e.Key)
	})

	t.Run("walk", func(t *testing.T) {
		var walked []string
		require.NoError(t, r.Walk(ctx, "", func(e backend.Entry) error {
			walked = append(walked, e.Key)
			return nil
		}))
		assert.ElementsMatch(t, []string{
			"public", "public/a.png",
			"private", "private/bg", "private/bg/cert1.png", "templates",
		}, walked)
	})

	t.Run("walk skips public tree", func(t *testing.T) {
		var walked []string
		require.NoError(t, r.Walk(ctx, "", func(e backend.Entry) error {
			walked = append(walked, e.Key)
			if e.Key == paths.PublicRoot {
				return backend.ErrSkipDir
			}
			return nil
		}))
		assert.NotContains(t, walked, "public/a.png")
		assert.Contains(t, walked, "private/bg/cert1.png")
	})
}

func TestRouterNestedPublicSegment(t *testing.T) {
	r, local, _ := newRouter(t)
	ctx := context.Background()
	backendtest.Put(t, local, "a.png", "OUTER")
	backendtest.Put(t, local, "public/a.png", "INNER")

	assert.Equal(t, "public/a.png", r.Resolve("public/public/a.png").Key)

	rc, e, err := r.Read(ctx, "public/public/a.png")
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	assert.Equal(t, "public/public/a.png", e.Key)
}

func TestRouterCrossBackendCopyConflict(t *testing.T) {
	r, local, bucket := newRouter(t)
	ctx := context.Background()
	backendtest.Put(t, local, "a.png", "new")
	backendtest.Put(t, bucket, "templates/a.png", "old")

	err := r.Copy(ctx, "public/a.png", "templates/a.png")
	assert.True(t, storage.IsConflict(err), "got %v", err)
	assert.Equal(t, "old", backendtest.Get(t, bucket, "templates/a.png"))
}

func TestRouterCrossBackendCopyCleansUp(t *testing.T) {
	r, local, bucket := newRouter(t)
	ctx := context.Background()
	backendtest.Put(t, local, "set/a.txt", "a")
	backendtest.Put(t, local, "set/b.txt", "b")
	local.FailOn("set/b.txt", errors.New("disk error"))

	err := r.Copy(ctx, "public/set", "templates/set")
	require.Error(t, err)

	_, err = bucket.Stat(ctx, "templates/set")
	assert.True(t, storage.IsNotFound(err), "partial copy should be removed, got %v", err)
	assert.Equal(t, "a", backendtest.Get(t, local, "set/a.txt"))
}

func TestRouterPresign(t *testing.T) {
	local := memory.New()
	bucket := memory.New(memory.WithPresignBaseURL("https://bucket.example.com"))
	r := backend.NewRouter(local, bucket)
	ctx := context.Background()

	url, ok, err := r.PresignUpload(ctx, "templates/a.png", "image/png", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, strings.HasPrefix(url, "https://bucket.example.com/templates/a.png?"), url)

	_, ok, err = r.PresignUpload(ctx, "public/a.png", "image/png", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}
