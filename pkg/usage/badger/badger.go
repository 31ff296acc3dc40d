// Package badger is an embedded usage store on BadgerDB.
//
// Key layout:
//
//	u:<filePath>\x00<referenceTable>\x00<referenceID>\x00<usageType>  -> JSON record
//	r:<referenceTable>\x00<referenceID>\x00<filePath>\x00<usageType>  -> empty (reference index)
//
// NUL cannot appear in a cleaned storage path, so prefix scans never match a
// neighbouring tuple.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/certforge/certstore/pkg/storage/paths"
	"github.com/certforge/certstore/pkg/usage"
)

const (
	prefixUsage     = "u:"
	prefixReference = "r:"
	sep             = "\x00"

	// maxConflictRetries bounds retries of transactions that lost a
	// write-write conflict.
	maxConflictRetries = 5
)

// Config configures the store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string `mapstructure:"path" yaml:"path"`

	// InMemory runs badger without touching disk.
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory"`
}

// Store is a usage store on BadgerDB.
type Store struct {
	db *badgerdb.DB
}

var _ usage.Store = (*Store)(nil)

// New opens (or creates) the database.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badgerdb.Options
	if cfg.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badger usage store: path is required")
		}
		opts = badgerdb.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLoggingLevel(badgerdb.WARNING).WithCompression(options.None)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Path, err)
	}
	return &Store{db: db}, nil
}

func usageKey(t usage.Tuple) []byte {
	return []byte(prefixUsage + t.FilePath + sep + t.ReferenceTable + sep + t.ReferenceID + sep + t.UsageType)
}

func referenceKey(t usage.Tuple) []byte {
	return []byte(prefixReference + t.ReferenceTable + sep + t.ReferenceID + sep + t.FilePath + sep + t.UsageType)
}

// update runs fn in a read-write transaction, retrying conflicts.
func (s *Store) update(ctx context.Context, fn func(txn *badgerdb.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
	}
	return err
}

// Insert implements usage.Store.
func (s *Store) Insert(ctx context.Context, rec usage.Record) (usage.Record, bool, error) {
	var (
		out     usage.Record
		created bool
	)
	err := s.update(ctx, func(txn *badgerdb.Txn) error {
		key := usageKey(rec.Tuple())
		item, err := txn.Get(key)
		switch {
		case err == nil:
			created = false
			return item.Value(func(val []byte) error { return json.Unmarshal(val, &out) })
		case !errors.Is(err, badgerdb.ErrKeyNotFound):
			return err
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		if err := txn.Set(referenceKey(rec.Tuple()), nil); err != nil {
			return err
		}
		out, created = rec, true
		return nil
	})
	if err != nil {
		return usage.Record{}, false, fmt.Errorf("insert usage: %w", err)
	}
	return out, created, nil
}

// scan decodes every record under a usage-key prefix.
func scan(txn *badgerdb.Txn, prefix string, fn func(usage.Record) error) error {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var r usage.Record
		if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &r) }); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// scanReferences collects the tuples held by a reference.
func scanReferences(txn *badgerdb.Txn, table, id string) []usage.Tuple {
	prefix := prefixReference + table + sep + id + sep
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []usage.Tuple
	for it.Rewind(); it.Valid(); it.Next() {
		rest := strings.TrimPrefix(string(it.Item().Key()), prefix)
		parts := strings.SplitN(rest, sep, 2)
		if len(parts) != 2 {
			continue
		}
		out = append(out, usage.Tuple{FilePath: parts[0], ReferenceTable: table, ReferenceID: id, UsageType: parts[1]})
	}
	return out
}

func deleteTuples(txn *badgerdb.Txn, tuples []usage.Tuple) error {
	for _, t := range tuples {
		if err := txn.Delete(usageKey(t)); err != nil {
			return err
		}
		if err := txn.Delete(referenceKey(t)); err != nil {
			return err
		}
	}
	return nil
}

// Delete implements usage.Store.
func (s *Store) Delete(ctx context.Context, filePath, referenceID, referenceTable string) (int, error) {
	var n int
	err := s.update(ctx, func(txn *badgerdb.Txn) error {
		var tuples []usage.Tuple
		prefix := prefixUsage + filePath + sep + referenceTable + sep + referenceID + sep
		if err := scan(txn, prefix, func(r usage.Record) error {
			tuples = append(tuples, r.Tuple())
			return nil
		}); err != nil {
			return err
		}
		n = len(tuples)
		return deleteTuples(txn, tuples)
	})
	if err != nil {
		return 0, fmt.Errorf("delete usage: %w", err)
	}
	return n, nil
}

// DeleteReference implements usage.Store.
func (s *Store) DeleteReference(ctx context.Context, referenceTable, referenceID string) (int, error) {
	var n int
	err := s.update(ctx, func(txn *badgerdb.Txn) error {
		tuples := scanReferences(txn, referenceTable, referenceID)
		n = len(tuples)
		return deleteTuples(txn, tuples)
	})
	if err != nil {
		return 0, fmt.Errorf("delete reference usages: %w", err)
	}
	return n, nil
}

func (s *Store) list(prefix string, keep func(usage.Record) bool) ([]usage.Record, error) {
	out := []usage.Record{}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		return scan(txn, prefix, func(r usage.Record) error {
			if keep == nil || keep(r) {
				out = append(out, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list usages: %w", err)
	}
	usage.SortRecords(out)
	return out, nil
}

// ListByPath implements usage.Store.
func (s *Store) ListByPath(_ context.Context, filePath string) ([]usage.Record, error) {
	return s.list(prefixUsage+filePath+sep, nil)
}

// ListUnder implements usage.Store.
func (s *Store) ListUnder(_ context.Context, dir string) ([]usage.Record, error) {
	return s.list(prefixUsage+dir, func(r usage.Record) bool {
		return paths.IsWithin(r.FilePath, dir)
	})
}

// ListByReference implements usage.Store.
func (s *Store) ListByReference(_ context.Context, referenceTable, referenceID string) ([]usage.Record, error) {
	out := []usage.Record{}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		for _, t := range scanReferences(txn, referenceTable, referenceID) {
			item, err := txn.Get(usageKey(t))
			if errors.Is(err, badgerdb.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var r usage.Record
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &r) }); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list reference usages: %w", err)
	}
	usage.SortRecords(out)
	return out, nil
}

// Healthcheck implements usage.Store.
func (s *Store) Healthcheck(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger usage store is closed")
	}
	return nil
}

// Close implements usage.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
