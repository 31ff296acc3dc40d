package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/certforge/certstore/pkg/storage"
	"github.com/certforge/certstore/pkg/storage/backend"
	"github.com/certforge/certstore/pkg/storage/paths"
)

// DefaultStatsCacheTTL bounds how stale a cached directory aggregate may be.
const DefaultStatsCacheTTL = 30 * time.Second

// FileTypeStats is the share of one file type in a subtree.
type FileTypeStats struct {
	FileType storage.FileType `json:"fileType"`
	Count    int64            `json:"count"`
	Size     int64            `json:"size"`
}

// StorageStats summarizes a subtree.
type StorageStats struct {
	Path         string          `json:"path"`
	TotalFiles   int64           `json:"totalFiles"`
	TotalFolders int64           `json:"totalFolders"`
	TotalSize    int64           `json:"totalSize"`
	FileTypes    []FileTypeStats `json:"fileTypes"`
}

// Aggregates returns the directory counters of the summary.
func (s *StorageStats) Aggregates() storage.DirectoryStats {
	return storage.DirectoryStats{FileCount: s.TotalFiles, FolderCount: s.TotalFolders, TotalSize: s.TotalSize}
}

// walkStats computes the summary of dir by visiting every descendant.
func walkStats(ctx context.Context, router *backend.Router, dir string) (*StorageStats, error) {
	st := &StorageStats{Path: dir, FileTypes: []FileTypeStats{}}
	byType := map[storage.FileType]*FileTypeStats{}
	err := router.Walk(ctx, dir, func(e backend.Entry) error {
		if e.IsDir {
			st.TotalFolders++
			return nil
		}
		st.TotalFiles++
		st.TotalSize += e.Size
		ft := storage.FileTypeOf(e.ContentType)
		ts, ok := byType[ft]
		if !ok {
			ts = &FileTypeStats{FileType: ft}
			byType[ft] = ts
		}
		ts.Count++
		ts.Size += e.Size
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, ts := range byType {
		st.FileTypes = append(st.FileTypes, *ts)
	}
	sort.Slice(st.FileTypes, func(i, j int) bool {
		return st.FileTypes[i].FileType < st.FileTypes[j].FileType
	})
	return st, nil
}

// statsCache caches directory summaries. Entries expire after the TTL and
// are dropped as soon as a mutation touches an overlapping path.
//
// A walk that started before an invalidation must not cache its result, so
// callers take a generation with begin before walking and hand it to set.
type statsCache struct {
	cache *ristretto.Cache[string, *StorageStats]
	ttl   time.Duration

	mu         sync.Mutex
	generation uint64
	expires    map[string]time.Time
}

func newStatsCache(ttl time.Duration) (*statsCache, error) {
	if ttl <= 0 {
		ttl = DefaultStatsCacheTTL
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *StorageStats]{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &statsCache{cache: c, ttl: ttl, expires: make(map[string]time.Time)}, nil
}

func (c *statsCache) get(dir string) (*StorageStats, bool) {
	return c.cache.Get(dir)
}

// begin returns the current generation.
func (c *statsCache) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// set caches st unless an invalidation ran since gen was taken.
func (c *statsCache) set(dir string, st *StorageStats, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	now := time.Now()
	c.prune(now)
	c.expires[dir] = now.Add(c.ttl)
	c.cache.SetWithTTL(dir, st, 1, c.ttl)
	c.cache.Wait()
}

// prune forgets keys whose entries have already expired. c.mu must be held.
func (c *statsCache) prune(now time.Time) {
	for k, exp := range c.expires {
		if now.After(exp) {
			delete(c.expires, k)
		}
	}
}

// invalidate drops the summaries of every directory containing or contained
// in one of ps.
func (c *statsCache) invalidate(ps ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.prune(time.Now())
	for k := range c.expires {
		for _, p := range ps {
			if paths.Overlaps(k, p) {
				c.cache.Del(k)
				delete(c.expires, k)
				break
			}
		}
	}
}

// size reports how many keys are tracked.
func (c *statsCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.expires)
}

func (c *statsCache) close() {
	c.cache.Close()
}
