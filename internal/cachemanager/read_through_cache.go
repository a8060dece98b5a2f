package cachemanager

import (
	"context"
	"sync/atomic"
	"time"
)

// Memo computes values on demand and keeps them until they expire or
// Invalidate is called. With a nil cache every Get computes.
type Memo[K comparable, V any, I any] struct {
	cache   CacheManager[K, V]
	ttl     time.Duration
	compute func(ctx context.Context, input I) (V, error)

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemo wraps cache. Values are stored with ttl.
func NewMemo[K comparable, V any, I any](
	cache CacheManager[K, V],
	ttl time.Duration,
	compute func(ctx context.Context, input I) (V, error),
) *Memo[K, V, I] {
	return &Memo[K, V, I]{cache: cache, ttl: ttl, compute: compute}
}

// Get returns the value stored under key, computing it from input on a
// miss. Failed computations are not stored.
func (m *Memo[K, V, I]) Get(ctx context.Context, key K, input I) (V, error) {
	if m.cache == nil {
		return m.compute(ctx, input)
	}
	if value, ok := m.cache.Get(ctx, key); ok {
		m.hits.Add(1)
		return value, nil
	}

	m.misses.Add(1)
	value, err := m.compute(ctx, input)
	if err != nil {
		return value, err
	}
	m.cache.Set(ctx, key, value, m.ttl)
	return value, nil
}

// Invalidate drops every stored value.
func (m *Memo[K, V, I]) Invalidate(ctx context.Context) error {
	if m.cache == nil {
		return nil
	}
	return m.cache.Flush(ctx)
}

// Enabled reports whether values are being kept at all.
func (m *Memo[K, V, I]) Enabled() bool { return m.cache != nil }

func (m *Memo[K, V, I]) Stats() Stats {
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load()}
}
