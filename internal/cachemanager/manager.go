// Package cachemanager memoizes derived values, such as filtered layout
// views, in a TTL cache.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a typed TTL cache. A zero ttl passed to Set means the
// cache's own default expiration.
type CacheManager[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Flush(ctx context.Context) error
	Len() int
}

// Stats counts lookups served from the cache and lookups that had to
// compute a value.
type Stats struct {
	Hits   int64
	Misses int64
}
