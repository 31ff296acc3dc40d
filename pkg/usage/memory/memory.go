// Package memory is an in-process usage store for tests and development.
package memory

import (
	"context"
	"sync"

	"github.com/certforge/certstore/pkg/storage/paths"
	"github.com/certforge/certstore/pkg/usage"
)

// Store keeps usage records in a map keyed by tuple.
type Store struct {
	mu      sync.RWMutex
	records map[usage.Tuple]usage.Record
}

var _ usage.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{records: make(map[usage.Tuple]usage.Record)}
}

// Insert implements usage.Store.
func (s *Store) Insert(_ context.Context, rec usage.Record) (usage.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.records[rec.Tuple()]; ok {
		return existing, false, nil
	}
	s.records[rec.Tuple()] = rec
	return rec, true, nil
}

func (s *Store) deleteWhere(match func(usage.Record) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, r := range s.records {
		if match(r) {
			delete(s.records, k)
			n++
		}
	}
	return n
}

// Delete implements usage.Store.
func (s *Store) Delete(_ context.Context, filePath, referenceID, referenceTable string) (int, error) {
	return s.deleteWhere(func(r usage.Record) bool {
		return r.FilePath == filePath && r.ReferenceID == referenceID && r.ReferenceTable == referenceTable
	}), nil
}

// DeleteReference implements usage.Store.
func (s *Store) DeleteReference(_ context.Context, referenceTable, referenceID string) (int, error) {
	return s.deleteWhere(func(r usage.Record) bool {
		return r.ReferenceID == referenceID && r.ReferenceTable == referenceTable
	}), nil
}

func (s *Store) listWhere(match func(usage.Record) bool) []usage.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []usage.Record{}
	for _, r := range s.records {
		if match(r) {
			out = append(out, r)
		}
	}
	usage.SortRecords(out)
	return out
}

// ListByPath implements usage.Store.
func (s *Store) ListByPath(_ context.Context, filePath string) ([]usage.Record, error) {
	return s.listWhere(func(r usage.Record) bool { return r.FilePath == filePath }), nil
}

// ListUnder implements usage.Store.
func (s *Store) ListUnder(_ context.Context, dir string) ([]usage.Record, error) {
	return s.listWhere(func(r usage.Record) bool { return paths.IsWithin(r.FilePath, dir) }), nil
}

// ListByReference implements usage.Store.
func (s *Store) ListByReference(_ context.Context, referenceTable, referenceID string) ([]usage.Record, error) {
	return s.listWhere(func(r usage.Record) bool {
		return r.ReferenceTable == referenceTable && r.ReferenceID == referenceID
	}), nil
}

// Healthcheck implements usage.Store.
func (s *Store) Healthcheck(context.Context) error { return nil }

// Close implements usage.Store.
func (s *Store) Close() error { return nil }
