package auth

import (
	"sync"
	"time"
)

// tokenCache memoizes token -> user id for a few minutes so the hot path
// does not pay a storage round trip per request. Entries are evicted on
// revocation and expire on their own otherwise.
type tokenCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	userID    int64
	expiresAt time.Time
}

func newTokenCache(ttl time.Duration) *tokenCache {
	return &tokenCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *tokenCache) get(token string, now time.Time) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[token]
	if !ok {
		return 0, false
	}
	if now.After(entry.expiresAt) {
		delete(c.entries, token)
		return 0, false
	}
	return entry.userID, true
}

func (c *tokenCache) set(token string, userID int64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = cacheEntry{userID: userID, expiresAt: now.Add(c.ttl)}
}

func (c *tokenCache) delete(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
}

// deleteUser scans the map. The cache holds at most a few minutes of
// distinct tokens, so the scan is cheap relative to a RevokeAll.
func (c *tokenCache) deleteUser(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for token, entry := range c.entries {
		if entry.userID == userID {
			delete(c.entries, token)
		}
	}
}
