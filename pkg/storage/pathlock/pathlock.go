// Package pathlock serializes mutations on overlapping storage paths.
//
// A lock on a path covers the whole subtree below it: two lock holders never
// hold paths where one is an ancestor of (or equal to) the other. Mutations on
// disjoint subtrees proceed concurrently.
package pathlock

import (
	"context"
	"sync"

	"github.com/certforge/certstore/pkg/storage/paths"
)

// Locker grants subtree locks on canonical paths.
type Locker struct {
	mu   sync.Mutex
	held map[string]int

	// changed is closed and replaced whenever a lock is released.
	changed chan struct{}
}

// New creates an empty Locker.
func New() *Locker {
	return &Locker{
		held:    make(map[string]int),
		changed: make(chan struct{}),
	}
}

// Unlock releases the paths acquired by a Lock call. It is safe to call more
// than once.
type Unlock func()

// Lock acquires all of the given paths atomically, waiting while any of them
// overlaps a path held by another caller. Paths passed in the same call may
// overlap each other. It returns ctx's error if the wait is abandoned.
func (l *Locker) Lock(ctx context.Context, ps ...string) (Unlock, error) {
	for {
		l.mu.Lock()
		if !l.conflicts(ps) {
			for _, p := range ps {
				l.held[p]++
			}
			l.mu.Unlock()
			return l.releaser(ps), nil
		}
		wait := l.changed
		l.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryLock is Lock without waiting. ok is false when a path is busy.
func (l *Locker) TryLock(ps ...string) (unlock Unlock, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conflicts(ps) {
		return nil, false
	}
	for _, p := range ps {
		l.held[p]++
	}
	return l.releaser(ps), true
}

// Held returns the number of distinct paths currently locked.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// conflicts reports whether any requested path overlaps a held one. Caller
// holds l.mu.
func (l *Locker) conflicts(ps []string) bool {
	for held := range l.held {
		for _, p := range ps {
			if paths.Overlaps(held, p) {
				return true
			}
		}
	}
	return false
}

func (l *Locker) releaser(ps []string) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for _, p := range ps {
				if l.held[p]--; l.held[p] <= 0 {
					delete(l.held, p)
				}
			}
			close(l.changed)
			l.changed = make(chan struct{})
		})
	}
}
