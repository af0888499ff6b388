package sentiment

import (
	"fmt"
	"sync"
	"time"
)

// cache is a bounded TTL cache for sentiment results. Keys bucket by UTC day,
// so a score computed in the morning serves the whole day until its TTL runs
// out. When full, the entry closest to expiry is evicted.
type cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

type cacheEntry struct {
	result  Result
	expires time.Time
}

func newCache(ttl time.Duration, maxSize int, now func() time.Time) *cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 1024
	}
	if now == nil {
		now = time.Now
	}
	return &cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
	}
}

func cacheKey(ticker string, windowDays int, day time.Time) string {
	return fmt.Sprintf("%s:%d:%s", ticker, windowDays, day.UTC().Format("2006-01-02"))
}

func (c *cache) get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || c.now().After(entry.expires) {
		delete(c.entries, key)
		return Result{}, false
	}
	return entry.result, true
}

func (c *cache) put(key string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		if _, exists := c.entries[key]; !exists {
			c.evictLocked()
		}
	}
	c.entries[key] = cacheEntry{result: result, expires: c.now().Add(c.ttl)}
}

func (c *cache) evictLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.expires.Before(oldest) {
			oldestKey = k
			oldest = e.expires
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
