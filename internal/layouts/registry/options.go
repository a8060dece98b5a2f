package registry

import (
	"time"

	"golang.org/x/text/language"

	"github.com/zjrosen/dockyard/internal/cachemanager"
	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/layouts/idgen"
	"github.com/zjrosen/dockyard/internal/pubsub"
)

// Option configures a Registry.
type Option func(*Registry)

// WithIDGenerator sets the source of new layout keys.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(r *Registry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// WithClock sets the time source used for LastUpdated and LastOpened.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithBroker publishes a LayoutEvent for every mutation.
func WithBroker(b *pubsub.Broker[domain.LayoutEvent]) Option {
	return func(r *Registry) {
		r.broker = b
	}
}

// WithChangeHook registers fn to run after every mutation that changes
// persisted state. It is called without the registry lock held.
func WithChangeHook(fn func()) Option {
	return func(r *Registry) {
		r.onChange = fn
	}
}

// WithViewCache caches View results in cache for ttl.
func WithViewCache(cache cachemanager.CacheManager[string, []domain.Layout], ttl time.Duration) Option {
	return func(r *Registry) {
		r.viewCache = cache
		r.viewTTL = ttl
	}
}

// WithCaseSensitiveSearch makes name search in View match case exactly.
func WithCaseSensitiveSearch(enabled bool) Option {
	return func(r *Registry) {
		r.caseSensitive = enabled
	}
}

// WithLocale sets the collation used to sort by name.
func WithLocale(tag language.Tag) Option {
	return func(r *Registry) {
		r.locale = tag
	}
}

// WithRecentLimit changes how many recently opened layouts are remembered.
func WithRecentLimit(n int) Option {
	return func(r *Registry) {
		r.recentLimit = n
	}
}
