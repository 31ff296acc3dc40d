package usage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/usage"
	"github.com/certforge/certstore/pkg/usage/memory"
)

func newRegistry() *usage.Registry {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return usage.NewRegistry(memory.New(), usage.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	in := usage.RegisterInput{FilePath: "private/bg/cert1.png", ReferenceID: "1", ReferenceTable: "template", UsageType: "background"}

	first, err := r.Register(ctx, in)
	require.NoError(t, err)
	second, err := r.Register(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	recs, err := r.List(ctx, "private/bg/cert1.png")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestCheckLifecycle(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	const f = "private/bg/cert1.png"

	res, err := r.Check(ctx, f)
	require.NoError(t, err)
	assert.True(t, res.CanDelete)
	assert.False(t, res.IsInUse)
	assert.Empty(t, res.DeleteBlockReason)
	assert.NotNil(t, res.Usages)

	_, err = r.Register(ctx, usage.RegisterInput{FilePath: f, ReferenceID: "1", ReferenceTable: "template", UsageType: "background"})
	require.NoError(t, err)

	res, err = r.Check(ctx, f)
	require.NoError(t, err)
	assert.False(t, res.CanDelete)
	assert.True(t, res.IsInUse)
	assert.Contains(t, res.DeleteBlockReason, "template")

	n, err := r.Deregister(ctx, usage.DeregisterInput{FilePath: f, ReferenceID: "1", ReferenceTable: "template"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err = r.Check(ctx, f)
	require.NoError(t, err)
	assert.True(t, res.CanDelete)
}

func TestDeregisterMissingIsNoop(t *testing.T) {
	r := newRegistry()
	n, err := r.Deregister(context.Background(), usage.DeregisterInput{FilePath: "a.png", ReferenceID: "1", ReferenceTable: "template"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRegisterValidation(t *testing.T) {
	r := newRegistry()
	tests := []struct {
		name string
		in   usage.RegisterInput
	}{
		{"empty path", usage.RegisterInput{ReferenceID: "1", ReferenceTable: "template", UsageType: "bg"}},
		{"traversal", usage.RegisterInput{FilePath: "../etc/passwd", ReferenceID: "1", ReferenceTable: "template", UsageType: "bg"}},
		{"missing reference id", usage.RegisterInput{FilePath: "a.png", ReferenceTable: "template", UsageType: "bg"}},
		{"missing table", usage.RegisterInput{FilePath: "a.png", ReferenceID: "1", UsageType: "bg"}},
		{"missing usage type", usage.RegisterInput{FilePath: "a.png", ReferenceID: "1", ReferenceTable: "template"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Register(context.Background(), tt.in)
			assert.True(t, storage.IsInvalidInput(err), "got %v", err)
		})
	}
}

func TestRegisterNormalizesPath(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	_, err := r.Register(ctx, usage.RegisterInput{FilePath: "/private//bg/a.png/", ReferenceID: "1", ReferenceTable: "template", UsageType: "bg"})
	require.NoError(t, err)

	res, err := r.Check(ctx, "private/bg/a.png")
	require.NoError(t, err)
	assert.True(t, res.IsInUse)
}

func TestDeregisterReference(t *testing.T) {
	r := newRegistry()
	ctx := context.Background()
	for _, p := range []string{"a.png", "b.png"} {
		_, err := r.Register(ctx, usage.RegisterInput{FilePath: p, ReferenceID: "42", ReferenceTable: "element", UsageType: "element-image"})
		require.NoError(t, err)
	}

	recs, err := r.ListByReference(ctx, "element", "42")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a.png", recs[0].FilePath)

	n, err := r.DeregisterReference(ctx, "element", "42")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	under, err := r.ListUnder(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, under)
}

func TestBlockReason(t *testing.T) {
	recs := []usage.Record{
		{ReferenceTable: "template", UsageType: "template-background"},
		{ReferenceTable: "element", UsageType: "element-image"},
		{ReferenceTable: "template", UsageType: "template-background"},
	}
	assert.Equal(t, "File is in use by: element (element-image), template (template-background)", usage.BlockReason(recs))
	assert.Empty(t, usage.BlockReason(nil))
}
