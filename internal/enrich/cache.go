package enrich

import (
	"sync"
	"time"
)

// defaultCacheEntries bounds the resolved-URL cache.
const defaultCacheEntries = 512

// urlCache maps storage keys to presigned URLs until they near expiry.
type urlCache struct {
	mu         sync.Mutex
	entries    map[string]urlEntry
	maxEntries int
	now        func() time.Time
}

type urlEntry struct {
	url       string
	expiresAt time.Time
}

func newURLCache(maxEntries int, now func() time.Time) *urlCache {
	return &urlCache{
		entries:    make(map[string]urlEntry),
		maxEntries: maxEntries,
		now:        now,
	}
}

func (c *urlCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return e.url, true
}

// put stores url for ttl. Non-positive TTLs are not cached.
func (c *urlCache) put(key, url string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = urlEntry{url: url, expiresAt: now.Add(ttl)}
}

// evictLocked drops expired entries, then the one expiring soonest if the
// cache is still full.
func (c *urlCache) evictLocked(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}

func (c *urlCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
