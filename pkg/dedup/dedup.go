// Package dedup provides the bounded LRU of recently-seen transaction hashes
// used to collapse duplicate deliveries across a chain adapter's multiplexed
// WebSocket providers.
package dedup

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a fixed-capacity seen-hash set. Seen is safe for concurrent use.
type Cache struct {
	inner *lru.Cache[string, struct{}]
}

// New builds a Cache holding at most size hashes (default 65536 per §4.1).
func New(size int) *Cache {
	if size <= 0 {
		size = 65536
	}
	c, _ := lru.New[string, struct{}](size)
	return &Cache{inner: c}
}

// Seen reports whether hash was already recorded, recording it if not. The
// return value answers "should this delivery be dropped as a duplicate?".
func (c *Cache) Seen(hash string) bool {
	if _, ok := c.inner.Get(hash); ok {
		return true
	}
	c.inner.Add(hash, struct{}{})
	return false
}

// Len returns the current number of tracked hashes.
func (c *Cache) Len() int { return c.inner.Len() }
