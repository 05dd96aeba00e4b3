// Package cooldown suppresses repeat notifications to the same recipient
// within a time window.
package cooldown

import (
	"context"
	"sync"
	"time"
)

// Set is a rolling set of keys that expire after their window.
type Set interface {
	Contains(ctx context.Context, key string) (bool, error)
	Insert(ctx context.Context, key string, window time.Duration) error
	// Purge drops expired keys and returns how many were removed.
	Purge(ctx context.Context) (int, error)
}

var _ Set = (*MemorySet)(nil)

// MemorySet is the in-process Set. Expired keys stay visible to Len until
// Purge runs; Contains already treats them as absent.
type MemorySet struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemorySet() *MemorySet {
	return NewMemorySetWithClock(time.Now)
}

// NewMemorySetWithClock is NewMemorySet with an injectable clock.
func NewMemorySetWithClock(nowFn func() time.Time) *MemorySet {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &MemorySet{
		entries: make(map[string]time.Time),
		now:     nowFn,
	}
}

func (s *MemorySet) Contains(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	return !s.now().After(expiresAt), nil
}

func (s *MemorySet) Insert(_ context.Context, key string, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = s.now().Add(window)
	return nil
}

func (s *MemorySet) Purge(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, expiresAt := range s.entries {
		if now.After(expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemorySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
