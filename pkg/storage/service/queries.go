package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/certforge/certstore/internal/telemetry"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/backend"
	"github.com/certforge/certstore/pkg/storage/paths"
)

// DirectoryChildren lists the items directly inside dir. Child directories
// carry their subtree aggregates, served from cache when fresh.
func (s *Service) DirectoryChildren(ctx context.Context, dir string) ([]storage.StorageItem, error) {
	p, err := clean(dir)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartStorageSpan(ctx, telemetry.SpanStorageList, p)
	defer span.End()

	entries, err := s.router.List(ctx, p)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	items, err := s.decorateAll(ctx, p, entries)
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.withAggregates(ctx, &items[i])
	}
	return items, nil
}

// FetchDirectoryChildren is DirectoryChildren with the aggregates of dir's
// subtree recomputed instead of served from cache.
func (s *Service) FetchDirectoryChildren(ctx context.Context, dir string) ([]storage.StorageItem, error) {
	p, err := clean(dir)
	if err != nil {
		return nil, err
	}
	s.stats.invalidate(p)
	return s.DirectoryChildren(ctx, p)
}

func (s *Service) decorateAll(ctx context.Context, dir string, entries []backend.Entry) ([]storage.StorageItem, error) {
	keys := make([]string, 0, len(entries)+1)
	keys = append(keys, dir)
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	snap, err := s.perms.Snapshot(ctx, keys...)
	if err != nil {
		return nil, storage.NewBackendError(dir, err)
	}
	items := make([]storage.StorageItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, s.decorate(snap, e))
	}
	return items, nil
}

// FileInfo describes the file at p.
func (s *Service) FileInfo(ctx context.Context, p string) (*storage.StorageItem, error) {
	c, err := clean(p)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartStorageSpan(ctx, telemetry.SpanStorageInfo, c)
	defer span.End()

	item, err := s.describe(ctx, c)
	if err != nil {
		return nil, err
	}
	if item.IsDir() {
		return nil, storage.NewInvalidInputError(c, fmt.Sprintf("%q is a folder", c))
	}
	return item, nil
}

// FolderInfo describes the directory at p with its aggregates.
func (s *Service) FolderInfo(ctx context.Context, p string) (*storage.StorageItem, error) {
	c, err := clean(p)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartStorageSpan(ctx, telemetry.SpanStorageInfo, c)
	defer span.End()

	item, err := s.describe(ctx, c)
	if err != nil {
		return nil, err
	}
	if !item.IsDir() {
		return nil, storage.NewInvalidInputError(c, fmt.Sprintf("%q is a file", c))
	}
	s.withAggregates(ctx, item)
	return item, nil
}

// Sort keys accepted by ListFiles.
const (
	SortByName         = "name"
	SortBySize         = "size"
	SortByLastModified = "lastModified"
	SortByCreatedAt    = "createdAt"
	SortByType         = "type"
)

// ListFilesInput selects a page of a directory listing.
type ListFilesInput struct {
	Path          string `json:"path"`
	Limit         int    `json:"limit" validate:"gte=0"`
	Offset        int    `json:"offset" validate:"gte=0"`
	FileType      string `json:"fileType,omitempty"`
	SortBy        string `json:"sortBy,omitempty" validate:"omitempty,oneof=name size lastModified createdAt type"`
	SortDirection string `json:"sortDirection,omitempty" validate:"omitempty,oneof=asc desc ASC DESC"`
	SearchTerm    string `json:"searchTerm,omitempty"`
}

// FileList is a page of items.
type FileList struct {
	Items      []storage.StorageItem `json:"items"`
	TotalCount int                   `json:"totalCount"`
	Limit      int                   `json:"limit"`
	Offset     int                   `json:"offset"`
	HasMore    bool                  `json:"hasMore"`
}

// ListFiles returns a filtered, sorted page of the items directly inside a
// directory. Directories sort before files. A file type filter drops
// directories.
func (s *Service) ListFiles(ctx context.Context, in ListFilesInput) (*FileList, error) {
	p, err := clean(in.Path)
	if err != nil {
		return nil, err
	}
	limit, err := pageLimit(in.Limit)
	if err != nil {
		return nil, err
	}
	if in.Offset < 0 {
		return nil, storage.NewInvalidInputError(p, "offset must not be negative")
	}
	var fileType storage.FileType
	if in.FileType != "" {
		ft, ok := storage.ParseFileType(in.FileType)
		if !ok {
			return nil, storage.NewInvalidInputError(p, fmt.Sprintf("unknown file type %q", in.FileType))
		}
		fileType = ft
	}
	less, err := sorter(in.SortBy, in.SortDirection)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartStorageSpan(ctx, telemetry.SpanStorageList, p)
	defer span.End()

	entries, err := s.router.List(ctx, p)
	if err != nil {
		return nil, err
	}
	term := strings.ToLower(strings.TrimSpace(in.SearchTerm))
	kept := entries[:0]
	for _, e := range entries {
		if fileType != "" && (e.IsDir || storage.FileTypeOf(e.ContentType) != fileType) {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(e.Name()), term) {
			continue
		}
		kept = append(kept, e)
	}

	items, err := s.decorateAll(ctx, p, kept)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDir() != items[j].IsDir() {
			return items[i].IsDir()
		}
		return less(&items[i], &items[j])
	})

	res := &FileList{TotalCount: len(items), Limit: limit, Offset: in.Offset, Items: []storage.StorageItem{}}
	if in.Offset < len(items) {
		end := min(in.Offset+limit, len(items))
		res.Items = items[in.Offset:end]
		res.HasMore = end < len(items)
	}
	return res, nil
}

func pageLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, storage.NewInvalidInputError("", "limit must not be negative")
	case limit == 0:
		return DefaultListLimit, nil
	case limit > MaxListLimit:
		return MaxListLimit, nil
	default:
		return limit, nil
	}
}

func sorter(by, direction string) (func(a, b *storage.StorageItem) bool, error) {
	var less func(a, b *storage.StorageItem) bool
	byName := func(a, b *storage.StorageItem) bool {
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	}
	switch by {
	case "", SortByName:
		less = byName
	case SortBySize:
		less = func(a, b *storage.StorageItem) bool {
			if a.Size != b.Size {
				return a.Size < b.Size
			}
			return byName(a, b)
		}
	case SortByLastModified:
		less = func(a, b *storage.StorageItem) bool {
			if !a.LastModified.Equal(b.LastModified) {
				return a.LastModified.Before(b.LastModified)
			}
			return byName(a, b)
		}
	case SortByCreatedAt:
		less = func(a, b *storage.StorageItem) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return byName(a, b)
		}
	case SortByType:
		less = func(a, b *storage.StorageItem) bool {
			if a.FileType != b.FileType {
				return a.FileType < b.FileType
			}
			return byName(a, b)
		}
	default:
		return nil, storage.NewInvalidInputError("", fmt.Sprintf("unknown sort field %q", by))
	}

	switch strings.ToLower(direction) {
	case "", "asc":
		return less, nil
	case "desc":
		return func(a, b *storage.StorageItem) bool { return less(b, a) }, nil
	default:
		return nil, storage.NewInvalidInputError("", fmt.Sprintf("unknown sort direction %q", direction))
	}
}

// SearchInput selects files by name below a folder.
type SearchInput struct {
	SearchTerm string `json:"searchTerm" validate:"required"`
	Folder     string `json:"folder,omitempty"`
	FileType   string `json:"fileType,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// SearchFiles returns the files below the folder whose name contains the
// search term, case-insensitively, in path order.
func (s *Service) SearchFiles(ctx context.Context, in SearchInput) ([]storage.StorageItem, error) {
	folder, err := clean(in.Folder)
	if err != nil {
		return nil, err
	}
	term := strings.ToLower(strings.TrimSpace(in.SearchTerm))
	if term == "" {
		return nil, storage.NewInvalidInputError(folder, "search term must not be empty")
	}
	limit, err := pageLimit(in.Limit)
	if err != nil {
		return nil, err
	}
	var fileType storage.FileType
	if in.FileType != "" {
		ft, ok := storage.ParseFileType(in.FileType)
		if !ok {
			return nil, storage.NewInvalidInputError(folder, fmt.Sprintf("unknown file type %q", in.FileType))
		}
		fileType = ft
	}

	ctx, span := telemetry.StartStorageSpan(ctx, telemetry.SpanStorageSearch, folder)
	defer span.End()

	var found []backend.Entry
	err = s.router.Walk(ctx, folder, func(e backend.Entry) error {
		if e.IsDir {
			return nil
		}
		if fileType != "" && storage.FileTypeOf(e.ContentType) != fileType {
			return nil
		}
		if strings.Contains(strings.ToLower(e.Name()), term) {
			found = append(found, e)
			if len(found) >= limit {
				return errStopWalk
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return nil, err
	}
	return s.decorateAll(ctx, folder, found)
}

// StorageStats summarizes the subtree at p. The result is always computed
// fresh and refreshes the aggregate cache.
func (s *Service) StorageStats(ctx context.Context, p string) (*StorageStats, error) {
	c, err := clean(p)
	if err != nil {
		return nil, err
	}
	ctx, span := telemetry.StartStorageSpan(ctx, telemetry.SpanStorageStats, c)
	defer span.End()

	entry, err := s.router.Stat(ctx, c)
	if err != nil {
		return nil, err
	}
	if !entry.IsDir {
		return nil, storage.NewInvalidInputError(c, fmt.Sprintf("%q is a file", c))
	}
	gen := s.stats.begin()
	st, err := walkStats(ctx, s.router, c)
	if err != nil {
		return nil, err
	}
	s.stats.set(c, st, gen)
	return st, nil
}

// OpenPublic opens a publicly served file. rel is relative to the public
// root, as it appears in the file's URL. Directories and missing files are
// both reported as NotFound. The caller closes the reader.
func (s *Service) OpenPublic(ctx context.Context, rel string) (io.ReadCloser, *storage.StorageItem, error) {
	c, err := clean(rel)
	if err != nil {
		return nil, nil, err
	}
	p := paths.Join(paths.PublicRoot, c)
	if p == paths.PublicRoot {
		return nil, nil, storage.NewNotFoundError(p)
	}

	rc, entry, err := s.router.Read(ctx, p)
	if storage.IsInvalidInput(err) {
		return nil, nil, storage.NewNotFoundError(p)
	}
	if err != nil {
		return nil, nil, err
	}
	if entry.IsDir {
		_ = rc.Close()
		return nil, nil, storage.NewNotFoundError(p)
	}
	item := entry.Item()
	item.URL = s.PublicURL(p)
	return rc, &item, nil
}
