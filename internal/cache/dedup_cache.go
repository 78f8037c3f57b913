// internal/cache/dedup_cache.go
package cache

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// DedupCache remembers recently seen message ids per organization so the
// ingest path can skip duplicates without a database round trip. Entries are
// exact, expire after the configured TTL and are swept lazily on access.
type DedupCache struct {
	entries map[string]time.Time
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	hits    atomic.Int64
	misses  atomic.Int64
	now     func() time.Time
}

// NewDedupCache creates a dedup cache with the given TTL and size cap.
func NewDedupCache(ttl time.Duration, maxSize int) *DedupCache {
	if maxSize <= 0 {
		maxSize = 100_000
	}
	return &DedupCache{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

func dedupKey(orgID int64, wamID string) string {
	return strconv.FormatInt(orgID, 10) + ":" + wamID
}

// Seen reports whether the message id was marked within the TTL window.
func (c *DedupCache) Seen(orgID int64, wamID string) bool {
	key := dedupKey(orgID, wamID)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return false
	}
	if now.After(expiry) {
		delete(c.entries, key)
		c.misses.Add(1)
		return false
	}
	c.hits.Add(1)
	return true
}

// Mark records the message id. When the cache is full, expired entries are
// swept first; if still full the new entry is dropped and the database unique
// constraint remains the authority.
func (c *DedupCache) Mark(orgID int64, wamID string) {
	key := dedupKey(orgID, wamID)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		for k, expiry := range c.entries {
			if now.After(expiry) {
				delete(c.entries, k)
			}
		}
		if len(c.entries) >= c.maxSize {
			return
		}
	}
	c.entries[key] = now.Add(c.ttl)
}

// GetStats returns cache statistics
func (c *DedupCache) GetStats() DedupCacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	total := hits + misses

	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()

	return DedupCacheStats{
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
		Size:    size,
	}
}

type DedupCacheStats struct {
	Hits    int64
	Misses  int64
	HitRate float64
	Size    int
}
