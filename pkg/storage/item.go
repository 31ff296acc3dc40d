package storage

import (
	"path"
	"strings"
	"time"
)

// ItemKind distinguishes files from directories.
type ItemKind string

const (
	KindFile      ItemKind = "file"
	KindDirectory ItemKind = "directory"
)

// FileType is a coarse category derived from the content type, used for
// filtering and statistics.
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeDocument FileType = "document"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeArchive  FileType = "archive"
	FileTypeOther    FileType = "other"
)

// ParseFileType returns the FileType named s, or false.
func ParseFileType(s string) (FileType, bool) {
	switch ft := FileType(strings.ToLower(strings.TrimSpace(s))); ft {
	case FileTypeImage, FileTypeDocument, FileTypeVideo, FileTypeAudio, FileTypeArchive, FileTypeOther:
		return ft, true
	}
	return "", false
}

var documentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/rtf":    true,
	"application/json":   true,
	"application/xml":    true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/vnd.ms-excel":                true,
	"application/vnd.ms-powerpoint":           true,
	"application/vnd.oasis.opendocument.text": true,
}

var archiveTypes = map[string]bool{
	"application/zip":              true,
	"application/gzip":             true,
	"application/x-tar":            true,
	"application/x-7z-compressed":  true,
	"application/vnd.rar":          true,
	"application/x-rar-compressed": true,
}

// FileTypeOf categorizes a content type. Parameters such as "; charset=utf-8"
// are ignored.
func FileTypeOf(contentType string) FileType {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	switch {
	case strings.HasPrefix(ct, "image/"):
		return FileTypeImage
	case strings.HasPrefix(ct, "video/"):
		return FileTypeVideo
	case strings.HasPrefix(ct, "audio/"):
		return FileTypeAudio
	case strings.HasPrefix(ct, "text/"), documentTypes[ct]:
		return FileTypeDocument
	case archiveTypes[ct]:
		return FileTypeArchive
	default:
		return FileTypeOther
	}
}

// StorageItem is a file or directory as returned to API callers.
type StorageItem struct {
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	Kind         ItemKind  `json:"kind"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
	CreatedBy    string    `json:"createdBy,omitempty"`
	IsFromBucket bool      `json:"isFromBucket"`
	IsProtected  bool      `json:"isProtected"`

	// Files only.
	ContentType string   `json:"contentType,omitempty"`
	FileType    FileType `json:"fileType,omitempty"`
	MD5Hash     string   `json:"md5Hash,omitempty"`
	URL         string   `json:"url,omitempty"`

	// Directories only. Aggregates are nil until computed.
	ProtectChildren bool                  `json:"protectChildren,omitempty"`
	FileCount       *int64                `json:"fileCount,omitempty"`
	FolderCount     *int64                `json:"folderCount,omitempty"`
	TotalSize       *int64                `json:"totalSize,omitempty"`
	Permissions     *DirectoryPermissions `json:"permissions,omitempty"`
}

// IsDir reports whether the item is a directory.
func (i *StorageItem) IsDir() bool {
	return i.Kind == KindDirectory
}

// Extension returns the lower-case file extension without the dot.
func (i *StorageItem) Extension() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(i.Name)), ".")
}

// Identity returns the minimal view of the item carried in bulk results.
func (i *StorageItem) Identity() StorageItem {
	return StorageItem{
		Path:         i.Path,
		Name:         i.Name,
		Kind:         i.Kind,
		Size:         i.Size,
		IsFromBucket: i.IsFromBucket,
		IsProtected:  i.IsProtected,
		LastModified: i.LastModified,
		CreatedAt:    i.CreatedAt,
	}
}

// DirectoryStats holds the aggregates of a directory subtree.
type DirectoryStats struct {
	FileCount   int64 `json:"fileCount"`
	FolderCount int64 `json:"folderCount"`
	TotalSize   int64 `json:"totalSize"`
}

// Apply copies the aggregates onto a directory item.
func (s DirectoryStats) Apply(item *StorageItem) {
	fc, dc, ts := s.FileCount, s.FolderCount, s.TotalSize
	item.FileCount, item.FolderCount, item.TotalSize = &fc, &dc, &ts
}
