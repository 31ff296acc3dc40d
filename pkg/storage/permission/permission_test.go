package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certstore/pkg/controlplane/models"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/paths"
)

type fakeSource struct {
	rows map[string]*models.ItemMetadata
	err  error
}

func (f *fakeSource) GetItems(_ context.Context, ps []string) (map[string]*models.ItemMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]*models.ItemMetadata{}
	for _, p := range ps {
		if m, ok := f.rows[p]; ok {
			out[p] = m
		}
	}
	return out, nil
}

func (f *fakeSource) HasProtectedUnder(_ context.Context, dir string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for p, m := range f.rows {
		if p != dir && paths.IsWithin(p, dir) && (m.IsProtected || m.ProtectChildren) {
			return true, nil
		}
	}
	return false, nil
}

func withFlags(path string, f storage.PermissionFlags) *models.ItemMetadata {
	m := &models.ItemMetadata{Path: path}
	m.SetFlags(f)
	return m
}

func TestEffectivePermissions(t *testing.T) {
	src := &fakeSource{rows: map[string]*models.ItemMetadata{
		"certs":           withFlags("certs", storage.PermissionFlags{AllowDelete: storage.Bool(false)}),
		"certs/2024":      withFlags("certs/2024", storage.PermissionFlags{AllowDelete: storage.Bool(true), AllowUploads: storage.Bool(false)}),
		"public":          withFlags("public", storage.PermissionFlags{AllowMove: storage.Bool(false)}),
		"public/open/sub": withFlags("public/open/sub", storage.PermissionFlags{AllowMove: storage.Bool(true)}),
	}}
	e := New(src)
	ctx := context.Background()

	tests := []struct {
		dir    string
		action storage.Action
		want   bool
	}{
		{"", storage.ActionDelete, true},
		{"other", storage.ActionDelete, true},
		{"certs", storage.ActionDelete, false},
		{"certs/2024", storage.ActionDelete, false},
		{"certs/2024/q1", storage.ActionDelete, false},
		{"certs/2024", storage.ActionUpload, false},
		{"certs", storage.ActionUpload, true},
		{"public/open/sub", storage.ActionMove, false},
		{"public/open/sub", storage.ActionMoveFiles, true},
	}
	for _, tt := range tests {
		t.Run(tt.dir+"/"+string(tt.action), func(t *testing.T) {
			perms, err := e.EffectivePermissions(ctx, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, perms.Allows(tt.action))
		})
	}
}

func TestRootRestriction(t *testing.T) {
	src := &fakeSource{rows: map[string]*models.ItemMetadata{
		"": withFlags("", storage.PermissionFlags{AllowCreateSubDirs: storage.Bool(false)}),
	}}
	e := New(src)
	err := e.AssertAllowed(context.Background(), storage.ActionCreateSubDir, "a/b")
	assert.True(t, storage.IsForbidden(err))
}

func TestAssertAllowedFailsClosed(t *testing.T) {
	e := New(&fakeSource{err: errors.New("db down")})

	err := e.AssertAllowed(context.Background(), storage.ActionUpload, "certs")
	require.Error(t, err)
	assert.True(t, storage.IsForbidden(err))
	assert.Contains(t, err.Error(), "db down")

	err = New(&fakeSource{}).AssertAllowed(context.Background(), storage.Action("rename"), "certs")
	assert.True(t, storage.IsForbidden(err), "unknown actions are denied")
}

func TestIsProtected(t *testing.T) {
	src := &fakeSource{rows: map[string]*models.ItemMetadata{
		"locked.png": {Path: "locked.png", IsProtected: true},
		"vault":      {Path: "vault", ProtectChildren: true},
	}}
	e := New(src)
	ctx := context.Background()

	tests := []struct {
		path string
		want bool
	}{
		{"locked.png", true},
		{"vault", false},
		{"vault/a.png", true},
		{"vault/deep/b.png", true},
		{"vaulted/c.png", false},
		{"free.png", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := e.IsProtected(ctx, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssertMutable(t *testing.T) {
	src := &fakeSource{rows: map[string]*models.ItemMetadata{
		"tpl/locked.png": {Path: "tpl/locked.png", IsProtected: true},
	}}
	e := New(src)
	ctx := context.Background()

	assert.True(t, storage.IsForbidden(e.AssertMutable(ctx, "tpl/locked.png", false)))
	assert.True(t, storage.IsForbidden(e.AssertMutable(ctx, "tpl", true)))
	assert.NoError(t, e.AssertMutable(ctx, "tpl/free.png", false))
	assert.NoError(t, e.AssertMutable(ctx, "other", true))

	broken := New(&fakeSource{err: errors.New("boom")})
	assert.True(t, storage.IsForbidden(broken.AssertMutable(ctx, "x", false)))
}

func TestSnapshotSharesQuery(t *testing.T) {
	src := &fakeSource{rows: map[string]*models.ItemMetadata{
		"d":     withFlags("d", storage.PermissionFlags{AllowUploads: storage.Bool(false)}),
		"d/a":   {Path: "d/a", IsProtected: true, CreatedBy: "alice"},
		"d/b/c": {Path: "d/b/c", ProtectChildren: true},
	}}
	s, err := New(src).Snapshot(context.Background(), "d/a", "d/b/c/x")
	require.NoError(t, err)

	assert.True(t, s.IsProtected("d/a"))
	assert.True(t, s.IsProtected("d/b/c/x"))
	assert.False(t, s.Permissions("d/b").AllowUploads)
	assert.Equal(t, "alice", s.Item("d/a").CreatedBy)
	assert.Nil(t, s.Item("d/zzz"))
}
