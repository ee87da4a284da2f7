package forgeapi

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCacheTTL is the response cache's entry lifetime (spec §4.1).
const DefaultCacheTTL = 5 * time.Minute

const defaultCacheSize = 4096

// ResponseCache is a content-addressed, TTL-expiring cache with
// key-pattern invalidation, used by the Gateway to avoid re-fetching
// forge views callers have already seen this window. Single-writer-per-key
// discipline is provided by the underlying expirable LRU's own locking.
type ResponseCache struct {
	mu    sync.RWMutex
	cache *lru.LRU[string, any]
}

// NewResponseCache builds an empty cache with the spec's default TTL.
func NewResponseCache() *ResponseCache {
	return &ResponseCache{cache: lru.NewLRU[string, any](defaultCacheSize, nil, DefaultCacheTTL)}
}

// Get returns a cached value for key, if present and unexpired.
func (c *ResponseCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Get(key)
}

// Set stores a value under key.
func (c *ResponseCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, value)
}

// InvalidatePrefix removes every cached key with the given prefix, used
// after writes that change the cached view (spec §4.1).
func (c *ResponseCache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Remove(k)
		}
	}
}
