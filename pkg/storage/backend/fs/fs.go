// Package fs implements the local filesystem backend that serves the public
// tree.
package fs

import (
	"bufio"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/gabriel-vasile/mimetype"

	"github.com/certforge/certstore/internal/bytesize"
	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/backend"
)

const tmpPrefix = ".certstore-tmp-"

// Config holds configuration for the filesystem backend.
type Config struct {
	// BasePath is the directory that maps to the backend root.
	BasePath string `mapstructure:"base_path" yaml:"base_path"`

	// CreateDir creates BasePath if it does not exist. Default: true
	CreateDir bool `mapstructure:"create_dir" yaml:"create_dir"`

	// DirMode is the permission mode for created directories. Default: 0755
	DirMode os.FileMode `mapstructure:"dir_mode" yaml:"dir_mode"`

	// FileMode is the permission mode for created files. Default: 0644
	FileMode os.FileMode `mapstructure:"file_mode" yaml:"file_mode"`

	// MinFreeSpace fails health checks once the volume holding BasePath has
	// less space left. Zero disables the check.
	MinFreeSpace bytesize.ByteSize `mapstructure:"min_free_space" yaml:"min_free_space"`
}

// DefaultConfig returns the default configuration rooted at basePath.
func DefaultConfig(basePath string) Config {
	return Config{
		BasePath:  basePath,
		CreateDir: true,
		DirMode:   0o755,
		FileMode:  0o644,
	}
}

// Store is the filesystem backend.
type Store struct {
	mu       sync.RWMutex
	basePath string
	dirMode  os.FileMode
	fileMode os.FileMode
	minFree  uint64
	closed   bool
}

var _ backend.Backend = (*Store)(nil)

// New creates a filesystem backend.
func New(cfg Config) (*Store, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("base path is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0o755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}

	base, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base path: %w", err)
	}
	if cfg.CreateDir {
		if err := os.MkdirAll(base, cfg.DirMode); err != nil {
			return nil, fmt.Errorf("create base path: %w", err)
		}
	}

	info, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("stat base path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base path %q is not a directory", base)
	}

	return &Store{
		basePath: base,
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
		minFree:  uint64(cfg.MinFreeSpace),
	}, nil
}

// NewWithPath creates a filesystem backend with the default configuration.
func NewWithPath(basePath string) (*Store, error) {
	return New(DefaultConfig(basePath))
}

// Name implements backend.Backend.
func (s *Store) Name() string { return "local" }

// BasePath returns the absolute root directory.
func (s *Store) BasePath() string { return s.basePath }

func (s *Store) fullPath(key string) (string, error) {
	p := filepath.Join(s.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.basePath, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", storage.NewInvalidInputError(key, "path escapes the storage root")
	}
	return p, nil
}

func (s *Store) keyOf(full string) string {
	rel, err := filepath.Rel(s.basePath, full)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

// classify translates filesystem errors into the storage taxonomy.
func classify(key string, err error) error {
	if err == nil {
		return nil
	}
	var se *storage.Error
	switch {
	case errors.As(err, &se):
		return se
	case errors.Is(err, iofs.ErrNotExist):
		return &storage.Error{Kind: storage.KindNotFound, Path: key, Message: fmt.Sprintf("%q not found", key), Err: err}
	case errors.Is(err, iofs.ErrExist):
		return &storage.Error{Kind: storage.KindConflict, Path: key, Message: fmt.Sprintf("destination %q already exists", key), Err: err}
	case errors.Is(err, iofs.ErrPermission):
		return &storage.Error{Kind: storage.KindForbidden, Path: key, Message: "access denied by the filesystem", Err: err}
	case errors.Is(err, syscall.ENOTDIR):
		return &storage.Error{Kind: storage.KindInvalidInput, Path: key, Message: "a parent of the path is a file", Err: err}
	case errors.Is(err, syscall.ENOSPC):
		return &storage.Error{Kind: storage.KindBackendUnavailable, Path: key, Message: "no space left on the storage volume", Err: err}
	default:
		return storage.AsError(key, err)
	}
}

func (s *Store) checkOpen(key string) error {
	if s.closed {
		return backend.Closed(key)
	}
	return nil
}

func skipName(name string) bool {
	return strings.HasPrefix(name, tmpPrefix)
}

func (s *Store) entry(key string, info iofs.FileInfo, full string, withDigest bool) (backend.Entry, error) {
	e := backend.Entry{
		Key:          key,
		IsDir:        info.IsDir(),
		LastModified: info.ModTime().UTC(),
		CreatedAt:    info.ModTime().UTC(),
	}
	if e.IsDir {
		return e, nil
	}
	e.Size = info.Size()
	e.ContentType = contentTypeByName(info.Name())
	if !withDigest {
		if e.ContentType == "" {
			if mt, err := mimetype.DetectFile(full); err == nil {
				e.ContentType = mt.String()
			}
		}
		return e, nil
	}

	f, err := os.Open(full)
	if err != nil {
		return e, err
	}
	defer func() { _ = f.Close() }()

	h := md5.New()
	br := bufio.NewReader(f)
	head, _ := br.Peek(3072)
	if e.ContentType == "" {
		e.ContentType = mimetype.Detect(head).String()
	}
	if _, err := io.Copy(h, br); err != nil {
		return e, err
	}
	e.MD5 = hex.EncodeToString(h.Sum(nil))
	return e, nil
}

// contentTypeByName maps well known extensions; "" means sniff the content.
func contentTypeByName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}

// List implements backend.Backend.
func (s *Store) List(ctx context.Context, dir string) ([]backend.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(dir); err != nil {
		return nil, err
	}

	full, err := s.fullPath(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, classify(dir, err)
	}
	if !info.IsDir() {
		return nil, backend.NotADirectory(dir)
	}

	dirents, err := os.ReadDir(full)
	if err != nil {
		return nil, classify(dir, err)
	}

	out := make([]backend.Entry, 0, len(dirents))
	for _, d := range dirents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if skipName(d.Name()) || !(d.Type().IsRegular() || d.IsDir()) {
			continue
		}
		fi, err := d.Info()
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				continue
			}
			return nil, classify(dir, err)
		}
		key := path.Join(dir, d.Name())
		e, err := s.entry(key, fi, filepath.Join(full, d.Name()), false)
		if err != nil {
			return nil, classify(key, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Stat implements backend.Backend. File entries include the MD5 digest.
func (s *Store) Stat(ctx context.Context, key string) (*backend.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(key); err != nil {
		return nil, err
	}
	return s.stat(key, true)
}

func (s *Store) stat(key string, withDigest bool) (*backend.Entry, error) {
	full, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, classify(key, err)
	}
	e, err := s.entry(key, info, full, withDigest)
	if err != nil {
		return nil, classify(key, err)
	}
	return &e, nil
}

// Read implements backend.Backend.
func (s *Store) Read(ctx context.Context, key string) (io.ReadCloser, *backend.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(key); err != nil {
		return nil, nil, err
	}

	e, err := s.stat(key, false)
	if err != nil {
		return nil, nil, err
	}
	if e.IsDir {
		return nil, nil, storage.NewInvalidInputError(key, "cannot read a directory")
	}
	full, _ := s.fullPath(key)
	f, err := os.Open(full)
	if err != nil {
		return nil, nil, classify(key, err)
	}
	return f, e, nil
}

// Write implements backend.Backend. The content is written to a temporary
// file and renamed into place so readers never observe a partial file.
func (s *Store) Write(ctx context.Context, key string, r io.Reader, contentType string) (*backend.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(key); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, storage.NewInvalidInputError(key, "cannot write to the root")
	}

	full, err := s.fullPath(key)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(full); err == nil && info.IsDir() {
		return nil, storage.NewConflictError(key)
	}
	if err := os.MkdirAll(filepath.Dir(full), s.dirMode); err != nil {
		return nil, classify(key, err)
	}
	if err := s.writeFile(ctx, full, r); err != nil {
		return nil, classify(key, err)
	}

	e, err := s.stat(key, true)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		e.ContentType = contentType
	}
	return e, nil
}

func (s *Store) writeFile(ctx context.Context, full string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(full), tmpPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(s.fileMode); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, full); err != nil {
		cleanup()
		return err
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Delete implements backend.Backend.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(key); err != nil {
		return err
	}
	if key == "" {
		return storage.NewInvalidInputError(key, "cannot delete the root")
	}

	full, err := s.fullPath(key)
	if err != nil {
		return err
	}
	info, err := os.Stat(full)
	if err != nil {
		return classify(key, err)
	}
	if info.IsDir() {
		return classify(key, os.RemoveAll(full))
	}
	return classify(key, os.Remove(full))
}

// Move implements backend.Backend.
func (s *Store) Move(ctx context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(src); err != nil {
		return err
	}

	from, to, err := s.pair(src, dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(to), s.dirMode); err != nil {
		return classify(dst, err)
	}
	return classify(src, os.Rename(from, to))
}

// pair resolves src and dst, checking src exists and dst does not.
func (s *Store) pair(src, dst string) (string, string, error) {
	if src == "" || dst == "" {
		return "", "", storage.NewInvalidInputError(src, "cannot move or copy the root")
	}
	from, err := s.fullPath(src)
	if err != nil {
		return "", "", err
	}
	to, err := s.fullPath(dst)
	if err != nil {
		return "", "", err
	}
	if _, err := os.Stat(from); err != nil {
		return "", "", classify(src, err)
	}
	if _, err := os.Lstat(to); err == nil {
		return "", "", storage.NewConflictError(dst)
	} else if !errors.Is(err, iofs.ErrNotExist) {
		return "", "", classify(dst, err)
	}
	return from, to, nil
}

// Copy implements backend.Backend.
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(src); err != nil {
		return err
	}

	from, to, err := s.pair(src, dst)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(from, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if skipName(d.Name()) {
			return nil
		}
		rel, _ := filepath.Rel(from, p)
		target := filepath.Join(to, rel)
		if d.IsDir() {
			return os.MkdirAll(target, s.dirMode)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(target), s.dirMode); err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		return s.writeFile(ctx, target, f)
	})
	if err != nil {
		_ = os.RemoveAll(to)
		return classify(src, err)
	}
	return nil
}

// Mkdir implements backend.Backend.
func (s *Store) Mkdir(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(key); err != nil {
		return err
	}

	full, err := s.fullPath(key)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(full); err == nil {
		return storage.NewConflictError(key)
	}
	return classify(key, os.MkdirAll(full, s.dirMode))
}

// Walk implements backend.Backend.
func (s *Store) Walk(ctx context.Context, dir string, fn backend.WalkFunc) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(dir); err != nil {
		return err
	}

	root, err := s.fullPath(dir)
	if err != nil {
		return err
	}
	info, err := os.Stat(root)
	if err != nil {
		return classify(dir, err)
	}
	if !info.IsDir() {
		return backend.NotADirectory(dir)
	}

	return filepath.WalkDir(root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return nil
			}
			return classify(s.keyOf(p), err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == root {
			return nil
		}
		if skipName(d.Name()) || !(d.Type().IsRegular() || d.IsDir()) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		e, err := s.entry(s.keyOf(p), fi, p, false)
		if err != nil {
			return classify(e.Key, err)
		}
		if err := fn(e); err != nil {
			if errors.Is(err, backend.ErrSkipDir) && d.IsDir() {
				return iofs.SkipDir
			}
			return err
		}
		return nil
	})
}

// HealthCheck implements backend.Backend.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(""); err != nil {
		return err
	}
	info, err := os.Stat(s.basePath)
	if err != nil {
		return storage.NewBackendError("", err)
	}
	if !info.IsDir() {
		return storage.NewBackendError("", fmt.Errorf("%s is not a directory", s.basePath))
	}
	return s.checkFreeSpace()
}

func (s *Store) checkFreeSpace() error {
	if s.minFree == 0 {
		return nil
	}
	free, err := freeSpace(s.basePath)
	if errors.Is(err, errors.ErrUnsupported) {
		return nil
	}
	if err != nil {
		return storage.NewBackendError("", fmt.Errorf("free space of %s: %w", s.basePath, err))
	}
	if free < s.minFree {
		return storage.NewBackendError("", fmt.Errorf("%s has %s free, below the %s floor",
			s.basePath, bytesize.ByteSize(free), bytesize.ByteSize(s.minFree)))
	}
	return nil
}

// Close implements backend.Backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
