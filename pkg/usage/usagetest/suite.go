// Package usagetest is a conformance suite for usage.Store implementations.
package usagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certstore/pkg/usage"
)

// Factory returns a fresh, empty store. It is called once per subtest.
type Factory func(t *testing.T) usage.Store

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertIsIdempotent", func(t *testing.T) { testInsertIdempotent(t, newStore(t)) })
	t.Run("ConcurrentInsertSameTuple", func(t *testing.T) { testConcurrentInsert(t, newStore(t)) })
	t.Run("DistinctUsageTypes", func(t *testing.T) { testDistinctTypes(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("DeleteMissingIsNoop", func(t *testing.T) { testDeleteMissing(t, newStore(t)) })
	t.Run("DeleteReference", func(t *testing.T) { testDeleteReference(t, newStore(t)) })
	t.Run("ListUnder", func(t *testing.T) { testListUnder(t, newStore(t)) })
	t.Run("Healthcheck", func(t *testing.T) { require.NoError(t, newStore(t).Healthcheck(context.Background())) })
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// Rec builds a record with a fresh ID. seq orders creation times.
func Rec(path, refTable, refID, usageType string, seq int) usage.Record {
	return usage.Record{
		ID:             uuid.New().String(),
		FilePath:       path,
		ReferenceID:    refID,
		ReferenceTable: refTable,
		UsageType:      usageType,
		Created:        base.Add(time.Duration(seq) * time.Second),
	}
}

func insert(t *testing.T, s usage.Store, r usage.Record) usage.Record {
	t.Helper()
	out, _, err := s.Insert(context.Background(), r)
	require.NoError(t, err)
	return out
}

func testInsertIdempotent(t *testing.T, s usage.Store) {
	ctx := context.Background()
	first, created, err := s.Insert(ctx, Rec("bg/cert1.png", "template", "1", "template-background", 1))
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := s.Insert(ctx, Rec("bg/cert1.png", "template", "1", "template-background", 2))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	recs, err := s.ListByPath(ctx, "bg/cert1.png")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "template", recs[0].ReferenceTable)
	assert.True(t, recs[0].Created.Equal(first.Created))
}

func testConcurrentInsert(t *testing.T, s usage.Store) {
	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, created, err := s.Insert(ctx, Rec("shared.png", "element", "7", "element-image", i))
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	recs, err := s.ListByPath(ctx, "shared.png")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func testDistinctTypes(t *testing.T, s usage.Store) {
	ctx := context.Background()
	insert(t, s, Rec("a.png", "template", "1", "template-background", 1))
	insert(t, s, Rec("a.png", "template", "1", "thumbnail", 2))
	insert(t, s, Rec("a.png", "element", "9", "element-image", 3))

	recs, err := s.ListByPath(ctx, "a.png")
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	byRef, err := s.ListByReference(ctx, "template", "1")
	require.NoError(t, err)
	assert.Len(t, byRef, 2)
}

func testDelete(t *testing.T, s usage.Store) {
	ctx := context.Background()
	insert(t, s, Rec("a.png", "template", "1", "template-background", 1))
	insert(t, s, Rec("a.png", "template", "1", "thumbnail", 2))
	insert(t, s, Rec("a.png", "template", "2", "template-background", 3))

	n, err := s.Delete(ctx, "a.png", "1", "template")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := s.ListByPath(ctx, "a.png")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2", recs[0].ReferenceID)
}

func testDeleteMissing(t *testing.T, s usage.Store) {
	n, err := s.Delete(context.Background(), "ghost.png", "1", "template")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testDeleteReference(t *testing.T, s usage.Store) {
	ctx := context.Background()
	insert(t, s, Rec("a.png", "template", "1", "template-background", 1))
	insert(t, s, Rec("b.png", "template", "1", "thumbnail", 2))
	insert(t, s, Rec("b.png", "template", "10", "thumbnail", 3))

	n, err := s.DeleteReference(ctx, "template", "1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs, err := s.ListUnder(ctx, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "10", recs[0].ReferenceID)
}

func testListUnder(t *testing.T, s usage.Store) {
	ctx := context.Background()
	for i, p := range []string{"certs/a.png", "certs/2024/b.png", "certsx/c.png", "other/d.png"} {
		insert(t, s, Rec(p, "template", fmt.Sprint(i), "template-background", i))
	}

	recs, err := s.ListUnder(ctx, "certs")
	require.NoError(t, err)
	var got []string
	for _, r := range recs {
		got = append(got, r.FilePath)
	}
	assert.ElementsMatch(t, []string{"certs/a.png", "certs/2024/b.png"}, got)

	all, err := s.ListUnder(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
