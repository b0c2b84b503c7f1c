package engine

import (
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheCapacity is used when no positive capacity is configured.
const DefaultCacheCapacity = 100

// VerdictCache is a bounded LRU set of strings known to be clean.
// Only clean results are stored, so a hit always means "skip evaluation".
type VerdictCache struct {
	capacity int
	entries  *lru.Cache[string, struct{}]
}

// NewVerdictCache creates a cache holding at most capacity keys.
func NewVerdictCache(capacity int) *VerdictCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	// lru.New only fails on a non-positive size.
	entries, _ := lru.New[string, struct{}](capacity)
	return &VerdictCache{capacity: capacity, entries: entries}
}

// Lookup reports whether key is cached, promoting it on a hit.
func (c *VerdictCache) Lookup(key string) bool {
	_, ok := c.entries.Get(key)
	return ok
}

// Put records key as most recently used, evicting the least recently
// used key when the cache is over capacity.
func (c *VerdictCache) Put(key string) {
	c.entries.Add(key, struct{}{})
}

// Len returns the number of cached keys.
func (c *VerdictCache) Len() int {
	return c.entries.Len()
}

// Capacity returns the maximum number of keys.
func (c *VerdictCache) Capacity() int {
	return c.capacity
}

// Keys returns the cached keys, most recently used first.
func (c *VerdictCache) Keys() []string {
	keys := c.entries.Keys()
	slices.Reverse(keys)
	return keys
}
