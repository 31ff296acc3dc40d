package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileTypeOf(t *testing.T) {
	tests := []struct {
		contentType string
		want        FileType
	}{
		{"image/png", FileTypeImage},
		{"IMAGE/SVG+XML", FileTypeImage},
		{"video/mp4", FileTypeVideo},
		{"audio/mpeg", FileTypeAudio},
		{"application/pdf", FileTypeDocument},
		{"text/plain; charset=utf-8", FileTypeDocument},
		{"application/zip", FileTypeArchive},
		{"application/octet-stream", FileTypeOther},
		{"", FileTypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, FileTypeOf(tt.contentType))
		})
	}
}

func TestParseFileType(t *testing.T) {
	ft, ok := ParseFileType(" Image ")
	assert.True(t, ok)
	assert.Equal(t, FileTypeImage, ft)

	_, ok = ParseFileType("spreadsheet")
	assert.False(t, ok)
}

func TestDirectoryStatsApply(t *testing.T) {
	item := &StorageItem{Kind: KindDirectory}
	DirectoryStats{FileCount: 3, FolderCount: 1, TotalSize: 42}.Apply(item)
	if assert.NotNil(t, item.FileCount) {
		assert.EqualValues(t, 3, *item.FileCount)
		assert.EqualValues(t, 1, *item.FolderCount)
		assert.EqualValues(t, 42, *item.TotalSize)
	}
}

func TestPermissionsRestrict(t *testing.T) {
	perms := AllowAll().Restrict(PermissionFlags{AllowDelete: Bool(false), AllowUploads: Bool(true)})
	assert.False(t, perms.AllowDelete)
	assert.True(t, perms.AllowUploads)
	assert.True(t, perms.AllowMove)

	// A later true never re-enables a flag.
	perms = perms.Restrict(PermissionFlags{AllowDelete: Bool(true)})
	assert.False(t, perms.Allows(ActionDelete))
	assert.False(t, perms.Allows(Action("chmod")))
}

func TestPermissionFlagsMerge(t *testing.T) {
	base := PermissionFlags{AllowUploads: Bool(false), AllowMove: Bool(false)}
	merged := base.Merge(PermissionFlags{AllowMove: Bool(true), AllowDelete: Bool(false)})

	assert.False(t, *merged.AllowUploads)
	assert.True(t, *merged.AllowMove)
	assert.False(t, *merged.AllowDelete)
	assert.Nil(t, merged.AllowMoveFiles)
	assert.False(t, merged.IsEmpty())
	assert.True(t, PermissionFlags{}.IsEmpty())
}

func TestAggregateKeepsOrder(t *testing.T) {
	outcomes := []ItemOutcome{
		{Path: "public/1", Item: &StorageItem{Path: "public/1", Name: "1"}},
		{Path: "public/2", Err: NewForbiddenError("public/2", "protected")},
		{Path: "public/3", Item: &StorageItem{Path: "public/3", Name: "3"}},
		{Path: "public/4"},
	}
	res := Aggregate(outcomes)

	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 2, res.FailureCount)
	assert.Equal(t, len(outcomes), res.Total())
	assert.Equal(t, "public/1", res.SuccessfulItems[0].Path)
	assert.Equal(t, "public/3", res.SuccessfulItems[1].Path)
	assert.Equal(t, BulkError{Path: "public/2", Kind: KindForbidden, Message: "protected"}, res.Errors[0])
	assert.Equal(t, KindBackendUnavailable, res.Errors[1].Kind)
}

func TestFailedResult(t *testing.T) {
	res := Failed(NewInUseError("private/bg/cert1.png", "File is in use by: template (background)"))
	assert.False(t, res.Success)
	assert.Equal(t, KindInUse, res.ErrorKind)
	assert.Contains(t, res.Message, "in use")
}
