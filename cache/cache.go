package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

// entry holds one cached discovery with its creation timestamp.
type entry struct {
	urls      []string
	createdAt time.Time
}

// Cache is a simple in-memory cache for discovery results, keyed by
// query parameters. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
}

// New creates a Cache holding at most maxEntries discoveries for ttl
// each. A background goroutine evicts expired entries periodically.
// A non-positive ttl disables caching entirely.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}

	if ttl > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Key generates a cache key from the query, the result cap, and the
// domain allow list. Any of them changing must miss the cache.
func Key(query string, maxResults int, domains []string) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte("|"))
	fmt.Fprintf(h, "%d", maxResults)
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(domains, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached discovery if it exists and has not expired.
// Returns the URLs and whether it was a cache hit.
func (c *Cache) Get(key string) ([]string, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Since(e.createdAt) > c.ttl {
		return nil, false
	}

	return e.urls, true
}

// Set stores a discovery in the cache. If the cache is at capacity,
// a random entry is evicted to make room.
func (c *Cache) Set(key string, urls []string) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		urls:      urls,
		createdAt: time.Now(),
	}
}

// cleanupLoop evicts expired entries once per TTL period.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-c.ttl)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
