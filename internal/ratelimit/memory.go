package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// MemoryStore is the in-process fallback window. Per-instance only, so
// under Redis outage the effective global limit is limit × instances,
// which still bounds abuse.
//
// Keys are hashed before storage so raw identifiers (addresses, user
// ids) never sit in a long-lived map.
type MemoryStore struct {
	mu    sync.Mutex
	hits  map[string][]time.Time
	ticks int
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hits: make(map[string][]time.Time),
		now:  time.Now,
	}
}

func (s *MemoryStore) Hit(_ context.Context, key string, limit int, window time.Duration) (bool, int64, time.Time, error) {
	hashed := hashKey(key)
	now := s.now()
	cutoff := now.Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.hits[hashed][:0]
	for _, t := range s.hits[hashed] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	// Only admitted hits enter the window; a denied caller's retries must
	// not keep the window full past the point where its real hits age out.
	allowed := len(kept) < limit
	if allowed {
		kept = append(kept, now)
	}
	s.hits[hashed] = kept

	// A full prune on every hit would make each check O(total keys), so
	// idle-key cleanup runs on a cadence instead.
	s.ticks++
	if s.ticks%256 == 0 {
		s.pruneLocked(cutoff)
	}

	var oldest time.Time
	if len(kept) > 0 {
		oldest = kept[0]
	}
	return allowed, int64(len(kept)), oldest, nil
}

// pruneLocked drops fully expired keys so idle identifiers do not
// accumulate forever.
func (s *MemoryStore) pruneLocked(cutoff time.Time) {
	for key, times := range s.hits {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(s.hits, key)
		}
	}
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
