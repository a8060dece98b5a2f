package cachemanager

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/dockyard/internal/log"
)

const (
	DefaultExpiration      = 5 * time.Minute
	DefaultCleanupInterval = 10 * time.Minute
)

// InMemoryCacheManager keeps values in a go-cache instance. The name shows
// up in cache log lines so several caches can be told apart.
type InMemoryCacheManager[K ~string, V any] struct {
	name  string
	items *gocache.Cache
}

var _ CacheManager[string, []string] = (*InMemoryCacheManager[string, []string])(nil)

// NewInMemoryCacheManager creates a cache whose entries live for ttl unless
// Set is given another duration. Expired entries are swept every cleanup.
func NewInMemoryCacheManager[K ~string, V any](name string, ttl, cleanup time.Duration) *InMemoryCacheManager[K, V] {
	return &InMemoryCacheManager[K, V]{name: name, items: gocache.New(ttl, cleanup)}
}

func (c *InMemoryCacheManager[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zero V
	raw, found := c.items.Get(string(key))
	if !found {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		// Only reachable if someone writes to items directly.
		log.Error(log.CatCache, "cached value has unexpected type", "cache", c.name, "key", key)
		c.items.Delete(string(key))
		return zero, false
	}
	log.Debug(log.CatCache, "hit", "cache", c.name, "key", key)
	return v, true
}

func (c *InMemoryCacheManager[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	c.items.Set(string(key), value, ttl)
}

// Flush empties the cache.
func (c *InMemoryCacheManager[K, V]) Flush(context.Context) error {
	if n := c.items.ItemCount(); n > 0 {
		log.Debug(log.CatCache, "flushed", "cache", c.name, "entries", n)
	}
	c.items.Flush()
	return nil
}

// Len counts entries, including expired ones the sweeper has not reached.
func (c *InMemoryCacheManager[K, V]) Len() int {
	return c.items.ItemCount()
}
