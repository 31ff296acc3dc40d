package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certstore/pkg/usage"
	"github.com/certforge/certstore/pkg/usage/usagetest"
)

func TestBadgerStore(t *testing.T) {
	usagetest.Run(t, func(t *testing.T) usage.Store {
		s, err := New(context.Background(), Config{InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestBadgerStorePersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New(ctx, Config{Path: dir})
	require.NoError(t, err)
	_, created, err := s.Insert(ctx, usagetest.Rec("bg/a.png", "template", "1", "template-background", 1))
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, s.Close())

	s, err = New(ctx, Config{Path: dir})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	recs, err := s.ListByReference(ctx, "template", "1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "bg/a.png", recs[0].FilePath)
}

func TestBadgerStoreRequiresPath(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
