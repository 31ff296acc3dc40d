// Package memory implements an in-process backend. It backs the bucket in
// development mode and both backends in tests.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/backend"
	"github.com/certforge/certstore/pkg/storage/paths"
)

type node struct {
	dir         bool
	data        []byte
	contentType string
	modified    time.Time
	created     time.Time
}

// Store is an in-memory backend.
type Store struct {
	mu      sync.RWMutex
	name    string
	nodes   map[string]*node
	closed  bool
	now     func() time.Time
	signURL string

	// One-shot injected errors keyed by backend key, see FailOn.
	failures map[string]error
}

var (
	_ backend.Backend   = (*Store)(nil)
	_ backend.Presigner = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithName sets the name reported in logs and metrics. Default: "memory".
func WithName(name string) Option {
	return func(s *Store) { s.name = name }
}

// WithPresignBaseURL enables fake presigned URLs under base, for tests and
// development setups that exercise the bucket signing path.
func WithPresignBaseURL(base string) Option {
	return func(s *Store) { s.signURL = strings.TrimRight(base, "/") }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty in-memory backend.
func New(opts ...Option) *Store {
	s := &Store{
		name:     "memory",
		nodes:    make(map[string]*node),
		now:      time.Now,
		failures: make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailOn makes the next operation touching key return err.
func (s *Store) FailOn(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = err
}

func (s *Store) takeFailure(key string) error {
	if err, ok := s.failures[key]; ok {
		delete(s.failures, key)
		return err
	}
	return nil
}

// Name implements backend.Backend.
func (s *Store) Name() string { return s.name }

func (s *Store) check(key string) error {
	if s.closed {
		return backend.Closed(key)
	}
	return s.takeFailure(key)
}

func (s *Store) get(key string) (*node, bool) {
	if key == "" {
		return &node{dir: true}, true
	}
	n, ok := s.nodes[key]
	return n, ok
}

func (s *Store) toEntry(key string, n *node) backend.Entry {
	e := backend.Entry{
		Key:          key,
		IsDir:        n.dir,
		LastModified: n.modified,
		CreatedAt:    n.created,
	}
	if !n.dir {
		e.Size = int64(len(n.data))
		e.ContentType = n.contentType
		sum := md5.Sum(n.data)
		e.MD5 = hex.EncodeToString(sum[:])
	}
	return e
}

// mkdirAll creates key and its parents. Caller holds the write lock.
func (s *Store) mkdirAll(key string) error {
	now := s.now().UTC()
	for _, p := range paths.Chain(key) {
		if p == "" {
			continue
		}
		if n, ok := s.nodes[p]; ok {
			if !n.dir {
				return storage.NewInvalidInputError(p, "a parent of the path is a file")
			}
			continue
		}
		s.nodes[p] = &node{dir: true, modified: now, created: now}
	}
	return nil
}

func (s *Store) children(dir string, recursive bool) []string {
	var keys []string
	for k := range s.nodes {
		if k == dir || !paths.IsWithin(k, dir) {
			continue
		}
		if !recursive && paths.Parent(k) != dir {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// List implements backend.Backend.
func (s *Store) List(ctx context.Context, dir string) ([]backend.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(dir); err != nil {
		return nil, err
	}

	n, ok := s.get(dir)
	if !ok {
		return nil, storage.NewNotFoundError(dir)
	}
	if !n.dir {
		return nil, backend.NotADirectory(dir)
	}
	keys := s.children(dir, false)
	out := make([]backend.Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.toEntry(k, s.nodes[k]))
	}
	return out, nil
}

// Stat implements backend.Backend.
func (s *Store) Stat(ctx context.Context, key string) (*backend.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(key); err != nil {
		return nil, err
	}
	n, ok := s.get(key)
	if !ok {
		return nil, storage.NewNotFoundError(key)
	}
	e := s.toEntry(key, n)
	return &e, nil
}

// Read implements backend.Backend.
func (s *Store) Read(ctx context.Context, key string) (io.ReadCloser, *backend.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(key); err != nil {
		return nil, nil, err
	}
	n, ok := s.get(key)
	if !ok {
		return nil, nil, storage.NewNotFoundError(key)
	}
	if n.dir {
		return nil, nil, storage.NewInvalidInputError(key, "cannot read a directory")
	}
	e := s.toEntry(key, n)
	return io.NopCloser(bytes.NewReader(n.data)), &e, nil
}

// Write implements backend.Backend.
func (s *Store) Write(ctx context.Context, key string, r io.Reader, contentType string) (*backend.Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, storage.NewBackendError(key, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(key); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, storage.NewInvalidInputError(key, "cannot write to the root")
	}
	if n, ok := s.nodes[key]; ok && n.dir {
		return nil, storage.NewConflictError(key)
	}
	if err := s.mkdirAll(paths.Parent(key)); err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	now := s.now().UTC()
	created := now
	if old, ok := s.nodes[key]; ok {
		created = old.created
	}
	n := &node{data: data, contentType: contentType, modified: now, created: created}
	s.nodes[key] = n
	e := s.toEntry(key, n)
	return &e, nil
}

// Delete implements backend.Backend.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(key); err != nil {
		return err
	}
	if key == "" {
		return storage.NewInvalidInputError(key, "cannot delete the root")
	}
	if _, ok := s.nodes[key]; !ok {
		return storage.NewNotFoundError(key)
	}
	for _, k := range s.children(key, true) {
		delete(s.nodes, k)
	}
	delete(s.nodes, key)
	return nil
}

func (s *Store) prepare(src, dst string) error {
	if src == "" || dst == "" {
		return storage.NewInvalidInputError(src, "cannot move or copy the root")
	}
	if _, ok := s.nodes[src]; !ok {
		return storage.NewNotFoundError(src)
	}
	if _, ok := s.nodes[dst]; ok {
		return storage.NewConflictError(dst)
	}
	if paths.IsWithin(dst, src) {
		return storage.NewInvalidInputError(dst, "cannot move or copy a directory into itself")
	}
	return s.mkdirAll(paths.Parent(dst))
}

// Move implements backend.Backend.
func (s *Store) Move(ctx context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(src); err != nil {
		return err
	}
	if err := s.prepare(src, dst); err != nil {
		return err
	}

	for _, k := range append(s.children(src, true), src) {
		s.nodes[paths.Rebase(k, src, dst)] = s.nodes[k]
		delete(s.nodes, k)
	}
	return nil
}

// Copy implements backend.Backend.
func (s *Store) Copy(ctx context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(src); err != nil {
		return err
	}
	if err := s.prepare(src, dst); err != nil {
		return err
	}

	now := s.now().UTC()
	for _, k := range append(s.children(src, true), src) {
		n := *s.nodes[k]
		n.data = append([]byte(nil), n.data...)
		n.created, n.modified = now, now
		s.nodes[paths.Rebase(k, src, dst)] = &n
	}
	return nil
}

// Mkdir implements backend.Backend.
func (s *Store) Mkdir(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(key); err != nil {
		return err
	}
	if _, ok := s.get(key); ok {
		return storage.NewConflictError(key)
	}
	return s.mkdirAll(key)
}

// Walk implements backend.Backend. The callback runs without the store lock.
func (s *Store) Walk(ctx context.Context, dir string, fn backend.WalkFunc) error {
	s.mu.Lock()
	if err := s.check(dir); err != nil {
		s.mu.Unlock()
		return err
	}
	n, ok := s.get(dir)
	if !ok {
		s.mu.Unlock()
		return storage.NewNotFoundError(dir)
	}
	if !n.dir {
		s.mu.Unlock()
		return backend.NotADirectory(dir)
	}
	keys := s.children(dir, true)
	entries := make([]backend.Entry, len(keys))
	for i, k := range keys {
		entries[i] = s.toEntry(k, s.nodes[k])
	}
	s.mu.Unlock()

	var skipped []string
walk:
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, dir := range skipped {
			if paths.IsWithin(e.Key, dir) {
				continue walk
			}
		}
		if err := fn(e); err != nil {
			if errors.Is(err, backend.ErrSkipDir) && e.IsDir {
				skipped = append(skipped, e.Key)
				continue
			}
			return err
		}
	}
	return nil
}

// PresignUpload implements backend.Presigner when a presign base URL is set.
func (s *Store) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if s.signURL == "" {
		return "", backend.ErrPresignUnsupported
	}
	q := url.Values{}
	q.Set("X-Expires", fmt.Sprintf("%d", int(expiry.Seconds())))
	if contentType != "" {
		q.Set("Content-Type", contentType)
	}
	return s.signURL + "/" + key + "?" + q.Encode(), nil
}

// HealthCheck implements backend.Backend.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return backend.Closed("")
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
