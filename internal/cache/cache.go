// Package cache provides a time-boxed get-or-compute cache keyed by an
// endpoint+params hash, used to short-circuit redundant Square catalog
// searches within a small window.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// TTLCache wraps go-cache with per-entry TTLs managed here so that expired
// values stay retrievable as stale fallbacks until Cleanup runs. Construct it
// explicitly and inject it; there is no package-level instance.
type TTLCache struct {
	store *gocache.Cache
	mu    sync.Mutex // serialises compute for the same instance
}

// New creates an empty cache. Expired entries are only removed by Cleanup or
// an explicit invalidation.
func New() *TTLCache {
	return &TTLCache{store: gocache.New(gocache.NoExpiration, 0)}
}

// GetOrCompute returns the cached value for key if it is still fresh,
// otherwise runs fetch and caches the result for ttl. If fetch fails and a
// stale value exists, the stale value is served; with nothing cached the
// fetch error propagates.
func (c *TTLCache) GetOrCompute(key string, ttl time.Duration, fetch func() (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var stale *entry
	if v, ok := c.store.Get(key); ok {
		e := v.(entry)
		if time.Now().Before(e.expiresAt) {
			return e.value, nil
		}
		stale = &e
	}

	value, err := fetch()
	if err != nil {
		if stale != nil {
			log.Printf("cache: fetch for %s failed, serving stale entry: %v", key, err)
			return stale.value, nil
		}
		return nil, err
	}
	c.store.Set(key, entry{value: value, expiresAt: time.Now().Add(ttl)}, gocache.NoExpiration)
	return value, nil
}

// Invalidate removes one entry.
func (c *TTLCache) Invalidate(key string) {
	c.store.Delete(key)
}

// InvalidatePattern removes every entry whose key contains substr.
func (c *TTLCache) InvalidatePattern(substr string) int {
	removed := 0
	for key := range c.store.Items() {
		if strings.Contains(key, substr) {
			c.store.Delete(key)
			removed++
		}
	}
	return removed
}

// Cleanup drops entries whose TTL has passed, discarding their stale-fallback
// value.
func (c *TTLCache) Cleanup() int {
	now := time.Now()
	removed := 0
	for key, item := range c.store.Items() {
		if e, ok := item.Object.(entry); ok && now.After(e.expiresAt) {
			c.store.Delete(key)
			removed++
		}
	}
	return removed
}

// Clear empties the cache. Intended for test isolation.
func (c *TTLCache) Clear() {
	c.store.Flush()
}

// Key derives a stable cache key from an endpoint and its parameters. The
// endpoint stays as a readable prefix so InvalidatePattern can target it.
func Key(endpoint string, params ...string) string {
	h := sha256.Sum256([]byte(endpoint + "|" + strings.Join(params, "|")))
	return endpoint + ":" + hex.EncodeToString(h[:8])
}
