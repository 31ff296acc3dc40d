package paths

import (
	"testing"

	"github.com/certforge/certstore/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPublicRoot(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"", true},
		{"public", true},
		{"public/x", true},
		{"public/certs/2024/a.png", true},
		{"/public/x", true},
		{"private/x", false},
		{"publicity/x", false},
		{"templates", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPublicRoot(tt.path))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Local, Classify("public/a.png"))
	assert.Equal(t, Bucket, Classify("private/a.png"))
	assert.Equal(t, "local", Local.String())
	assert.Equal(t, "bucket", Bucket.String())
}

func TestToDisplayPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", ""},
		{"public", ""},
		{"public/", ""},
		{"public/certs", "certs"},
		{"public/certs/2024", "certs/2024"},
		{"public/public/x", "x"},
		{"private/bg/cert1.png", "private/bg/cert1.png"},
		{"/public/certs/", "certs"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ToDisplayPath(tt.path))
		})
	}
}

func TestToDisplayPathIdempotent(t *testing.T) {
	inputs := []string{
		"", "public", "public/", "/public", "public/public", "public//public/a",
		"public/a/b", "private", "private/public", "a/public/b", "//", "publicx",
	}
	for _, p := range inputs {
		once := ToDisplayPath(p)
		assert.Equal(t, once, ToDisplayPath(once), "input %q", p)
	}
}

func TestToStoragePathIsIdentity(t *testing.T) {
	for _, p := range []string{"", "certs/2024", "private/a"} {
		assert.Equal(t, p, ToStoragePath(p))
	}
}

func TestClean(t *testing.T) {
	valid := []struct {
		in, want string
	}{
		{"", ""},
		{"/", ""},
		{"public/certs/", "public/certs"},
		{"//public//certs", "public/certs"},
		{"  private/a.png ", "private/a.png"},
		{"public/2024 Q1/cert (1).png", "public/2024 Q1/cert (1).png"},
	}
	for _, tt := range valid {
		got, err := Clean(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	invalid := []string{
		"public/../secret",
		"./public",
		"public/a\\b",
		"public/a\x00b",
		"public/what?",
		"public/" + string(make([]byte, 300)),
	}
	for _, in := range invalid {
		_, err := Clean(in)
		require.Error(t, err, "%q", in)
		assert.Equal(t, storage.KindInvalidInput, storage.KindOf(err))
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("2024"))
	assert.NoError(t, ValidateName("cert final.png"))

	for _, name := range []string{"", "   ", "a/b", "..", " lead", "a:b", "tab\tname"} {
		err := ValidateName(name)
		assert.True(t, storage.IsInvalidInput(err), "%q", name)
	}
}

func TestJoinParentBase(t *testing.T) {
	assert.Equal(t, "public/certs/2024", Join("public/certs", "2024"))
	assert.Equal(t, "public", Join("", "public"))
	assert.Equal(t, "public", Join("public", ""))

	assert.Equal(t, "public/certs", Parent("public/certs/2024"))
	assert.Equal(t, "", Parent("public"))
	assert.Equal(t, "2024", Base("public/certs/2024"))
	assert.Equal(t, "public", Base("public"))
}

func TestAncestors(t *testing.T) {
	assert.Nil(t, Ancestors(""))
	assert.Equal(t, []string{""}, Ancestors("public"))
	assert.Equal(t, []string{"", "public", "public/certs"}, Ancestors("public/certs/2024"))
	assert.Equal(t, []string{"", "public", "public/certs", "public/certs/2024"}, Chain("public/certs/2024"))
}

func TestIsWithinAndOverlaps(t *testing.T) {
	assert.True(t, IsWithin("public/a/b", "public/a"))
	assert.True(t, IsWithin("public/a", "public/a"))
	assert.True(t, IsWithin("anything", ""))
	assert.False(t, IsWithin("public/ab", "public/a"))

	assert.True(t, Overlaps("public/a", "public/a/b"))
	assert.False(t, Overlaps("public/a", "public/b"))
}

func TestRebase(t *testing.T) {
	assert.Equal(t, "private/x/c.png", Rebase("public/a/c.png", "public/a", "private/x"))
	assert.Equal(t, "private/x", Rebase("public/a", "public/a", "private/x"))
	assert.Equal(t, "dst/a/b", Rebase("a/b", "", "dst"))
}
