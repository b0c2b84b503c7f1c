package auth

import (
	"sync"
	"sync/atomic"
	"time"
)

// AuthCache remembers verified app secrets so that bcrypt runs once per
// secret per TTL. Expired entries are still served while one caller
// reloads them in the background.
type AuthCache struct {
	entries sync.Map // secret -> *cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	app        *AppContext
	expiresAt  time.Time
	refreshing atomic.Bool
}

// NewAuthCache creates a cache with the given TTL.
func NewAuthCache(ttl time.Duration) *AuthCache {
	return &AuthCache{ttl: ttl, now: time.Now}
}

// GetResult holds the result of a cache lookup.
type GetResult struct {
	App          *AppContext
	Hit          bool // a value was found, fresh or stale
	NeedsRefresh bool // the entry expired and this caller should refresh it
}

// Get looks up a secret. A stale entry is returned with Hit set, and
// exactly one caller per expiry sees NeedsRefresh.
func (c *AuthCache) Get(secret string) GetResult {
	val, ok := c.entries.Load(secret)
	if !ok {
		return GetResult{}
	}
	entry := val.(*cacheEntry)
	if c.now().Before(entry.expiresAt) {
		return GetResult{App: entry.app, Hit: true}
	}
	return GetResult{
		App:          entry.app,
		Hit:          true,
		NeedsRefresh: entry.refreshing.CompareAndSwap(false, true),
	}
}

// Set stores the app context for a secret for one TTL.
func (c *AuthCache) Set(secret string, app *AppContext) {
	c.entries.Store(secret, &cacheEntry{
		app:       app,
		expiresAt: c.now().Add(c.ttl),
	})
}

// Delete removes one secret.
func (c *AuthCache) Delete(secret string) {
	c.entries.Delete(secret)
}

// InvalidateApp drops every secret cached for appID and returns how many
// were dropped. Used after the app's secret, mode or config changes.
func (c *AuthCache) InvalidateApp(appID string) int {
	n := 0
	c.entries.Range(func(key, val any) bool {
		if val.(*cacheEntry).app.AppID == appID {
			c.entries.Delete(key)
			n++
		}
		return true
	})
	return n
}

// Len returns the number of cached secrets, fresh or stale.
func (c *AuthCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
