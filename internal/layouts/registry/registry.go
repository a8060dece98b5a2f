// Package registry owns the collection of saved layouts.
//
// Every operation is synchronous and holds the registry mutex for its
// whole duration, so mutations are atomic with respect to each other.
// Persistence happens elsewhere: the registry only announces changes
// through its change hook and event broker.
package registry

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/zjrosen/dockyard/internal/cachemanager"
	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/layouts/idgen"
	"github.com/zjrosen/dockyard/internal/layouts/query"
	"github.com/zjrosen/dockyard/internal/layouts/recency"
	"github.com/zjrosen/dockyard/internal/layouts/snapshot"
	"github.com/zjrosen/dockyard/internal/log"
	"github.com/zjrosen/dockyard/internal/pubsub"
)

// Registry is the in-memory collection of layouts plus the recency list.
type Registry struct {
	mu       sync.RWMutex
	layouts  map[string]domain.Layout
	recent   *recency.Tracker
	revision uint64

	newID         idgen.Generator
	now           func() time.Time
	broker        *pubsub.Broker[domain.LayoutEvent]
	onChange      func()
	caseSensitive bool
	locale        language.Tag
	recentLimit   int

	viewCache cachemanager.CacheManager[string, []domain.Layout]
	viewTTL   time.Duration
	views     *cachemanager.Memo[string, []domain.Layout, viewInput]
}

type viewInput struct {
	q   query.Query
	now time.Time
}

// change is an event to emit once the lock is released.
type change struct {
	typ    pubsub.EventType
	key    string
	layout domain.Layout
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		layouts:     make(map[string]domain.Layout),
		newID:       idgen.New,
		now:         time.Now,
		locale:      language.English,
		recentLimit: recency.DefaultLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.recent = recency.New(r.recentLimit)
	r.views = cachemanager.NewMemo(r.viewCache, r.viewTTL, r.buildView)
	return r
}

// Add creates a layout and returns its key. An empty kind means local.
func (r *Registry) Add(name string, kind domain.Kind) string {
	if kind != "" && !kind.IsValid() {
		log.Warn(log.CatRegistry, "unknown kind, using local", "kind", kind)
		kind = domain.KindLocal
	}

	r.mu.Lock()
	l := domain.NewLayout(r.allocKeyLocked(), name, kind, r.now())
	r.layouts[l.Key] = l
	r.revision++
	r.mu.Unlock()

	log.Debug(log.CatRegistry, "layout added", "key", l.Key, "name", name)
	r.emit(change{typ: pubsub.CreatedEvent, key: l.Key, layout: l})
	return l.Key
}

// Delete removes a layout and drops it from the recency list. Deleting a
// missing key does nothing.
func (r *Registry) Delete(key string) {
	r.mu.Lock()
	l, ok := r.layouts[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.layouts, key)
	r.recent.Remove(key)
	r.revision++
	r.mu.Unlock()

	log.Debug(log.CatRegistry, "layout deleted", "key", key)
	r.emit(change{typ: pubsub.DeletedEvent, key: key, layout: l})
}

// Update merges p into the layout at key. LastUpdated is set to now unless
// p supplies it. Updating a missing key does nothing.
func (r *Registry) Update(key string, p domain.Patch) {
	if p.Kind != nil && !p.Kind.IsValid() {
		log.Warn(log.CatRegistry, "ignoring unknown kind in update", "key", key, "kind", *p.Kind)
		p.Kind = nil
	}

	r.mu.Lock()
	l, ok := r.layouts[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	if p.LastUpdated == nil {
		p.LastUpdated = domain.Ptr(r.now())
	}
	l = l.Apply(p)
	r.layouts[key] = l
	r.revision++
	r.mu.Unlock()

	r.emit(change{typ: pubsub.UpdatedEvent, key: key, layout: l})
}

// Rename sets the name of a layout.
func (r *Registry) Rename(key, name string) {
	r.Update(key, domain.Patch{Name: &name})
}

// SetPanelVisibility shows or hides the side panels of a layout.
func (r *Registry) SetPanelVisibility(key string, left, right bool) {
	r.Update(key, domain.Patch{LeftPanelVisible: &left, RightPanelVisible: &right})
}

// SavePayload stores the docking engine's serialized arrangement.
func (r *Registry) SavePayload(key, payload string) {
	r.Update(key, domain.Patch{Payload: &payload})
}

// Get returns the layout at key.
func (r *Registry) Get(key string) (domain.Layout, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.layouts[key]
	if !ok {
		return domain.Layout{}, false
	}
	return l.Clone(), true
}

// Duplicate copies the layout at key under a fresh key. The copy is a
// local layout named with CopySuffix that has never been opened.
func (r *Registry) Duplicate(key string) (string, bool) {
	r.mu.Lock()
	src, ok := r.layouts[key]
	if !ok {
		r.mu.Unlock()
		return "", false
	}
	dup := src.Clone()
	dup.Key = r.allocKeyLocked()
	dup.Name = src.Name + domain.CopySuffix
	dup.Kind = domain.KindLocal
	dup.LastUpdated = domain.Timestamp(r.now())
	dup.LastOpened = nil
	r.layouts[dup.Key] = dup
	r.revision++
	r.mu.Unlock()

	log.Debug(log.CatRegistry, "layout duplicated", "source", key, "key", dup.Key)
	r.emit(change{typ: pubsub.CreatedEvent, key: dup.Key, layout: dup})
	return dup.Key, true
}

// ExportSnapshot encodes the layout at key. A missing key yields the empty
// snapshot, which ImportSnapshot rejects.
func (r *Registry) ExportSnapshot(key string) string {
	r.mu.RLock()
	l, ok := r.layouts[key]
	r.mu.RUnlock()

	if !ok {
		return snapshot.Encode(nil)
	}
	return snapshot.Encode(&l)
}

// ImportSnapshot adds the layout encoded in text under a fresh key and
// returns that key. The imported layout is local, updated now and never
// opened, whatever the snapshot says. It returns false, and changes
// nothing, when text cannot be decoded.
func (r *Registry) ImportSnapshot(text string) (string, bool) {
	l, err := snapshot.Decode(text)
	if err != nil {
		log.WarnErr(log.CatSnapshot, "snapshot import failed", err)
		return "", false
	}

	r.mu.Lock()
	l.Key = r.allocKeyLocked()
	l.Kind = domain.KindLocal
	l.LastUpdated = domain.Timestamp(r.now())
	l.LastOpened = nil
	r.layouts[l.Key] = l
	r.revision++
	r.mu.Unlock()

	log.Info(log.CatRegistry, "layout imported", "key", l.Key, "name", l.Name)
	r.emit(change{typ: pubsub.CreatedEvent, key: l.Key, layout: l})
	return l.Key, true
}

// MarkOpened records that the layout became the active one: LastOpened is
// set to now and the key moves to the front of the recency list.
// LastUpdated is left alone. Missing keys are ignored.
func (r *Registry) MarkOpened(key string) {
	r.mu.Lock()
	l, ok := r.layouts[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	opened := domain.Timestamp(r.now())
	l.LastOpened = &opened
	r.layouts[key] = l
	r.recent.Touch(key)
	r.revision++
	r.mu.Unlock()

	r.emit(change{typ: pubsub.OpenedEvent, key: key, layout: l})
}

// Current returns the most recently opened layout that still exists.
func (r *Registry) Current() (domain.Layout, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.recent.Front()
	if !ok {
		return domain.Layout{}, false
	}
	l, ok := r.layouts[key]
	if !ok {
		return domain.Layout{}, false
	}
	return l.Clone(), true
}

// Recent returns the recency list, most recent first.
func (r *Registry) Recent() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recent.List()
}

// RecentLayouts resolves the recency list to layouts, skipping keys that
// no longer exist.
func (r *Registry) RecentLayouts() []domain.Layout {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Layout
	for _, key := range r.recent.List() {
		if l, ok := r.layouts[key]; ok {
			out = append(out, l.Clone())
		}
	}
	return out
}

// List returns every layout ordered by key.
func (r *Registry) List() []domain.Layout {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []domain.Layout {
	out := make([]domain.Layout, 0, len(r.layouts))
	for _, l := range r.layouts {
		out = append(out, l.Clone())
	}
	slices.SortFunc(out, func(a, b domain.Layout) int { return cmp.Compare(a.Key, b.Key) })
	return out
}

// Len returns the number of layouts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.layouts)
}

// Revision increases with every change to the collection or recency list.
func (r *Registry) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}

// State returns a deep copy of everything that is persisted.
func (r *Registry) State() domain.State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := domain.State{
		Layouts: make(map[string]domain.Layout, len(r.layouts)),
		Recent:  r.recent.List(),
	}
	for key, l := range r.layouts {
		s.Layouts[key] = l.Clone()
	}
	return s
}

// Restore replaces the registry contents with s, typically right after
// loading. Recency entries for missing layouts are dropped. Restore does not
// run the change hook since s is already persisted.
func (r *Registry) Restore(s domain.State) {
	r.mu.Lock()
	r.layouts = make(map[string]domain.Layout, len(s.Layouts))
	for key, l := range s.Layouts {
		r.layouts[key] = l.Clone()
	}
	// Stale keys go before the cap is applied, or they would crowd out
	// live ones.
	r.recent.Reset(slices.DeleteFunc(slices.Clone(s.Recent), func(key string) bool {
		_, ok := r.layouts[key]
		return !ok
	}))
	r.revision++
	n := len(r.layouts)
	r.mu.Unlock()

	r.invalidateViews()
	log.Info(log.CatRegistry, "registry restored", "layouts", n)
}

// View returns the layouts that pass q's filter, in q's order. Name search
// follows the registry's case policy regardless of q. Results are cached
// per revision, query and calendar day when a view cache is configured.
func (r *Registry) View(ctx context.Context, q query.Query, now time.Time) []domain.Layout {
	q.Filter.CaseSensitive = r.caseSensitive

	r.mu.RLock()
	rev := r.revision
	r.mu.RUnlock()

	// Bucket predicates only look at now's calendar date.
	key := fmt.Sprintf("%d|%s|%s", rev, q.Key(), now.Format("2006-01-02Z07:00"))
	view, err := r.views.Get(ctx, key, viewInput{q: q, now: now})
	if err != nil {
		log.ErrorErr(log.CatRegistry, "building view failed", err)
		return nil
	}

	out := make([]domain.Layout, len(view))
	for i, l := range view {
		out[i] = l.Clone()
	}
	return out
}

// ViewCacheStats reports how often View was served from the cache.
func (r *Registry) ViewCacheStats() cachemanager.Stats {
	return r.views.Stats()
}

func (r *Registry) buildView(_ context.Context, in viewInput) ([]domain.Layout, error) {
	r.mu.RLock()
	all := r.listLocked()
	r.mu.RUnlock()

	return in.q.Apply(all, in.now, r.locale), nil
}

func (r *Registry) invalidateViews() {
	if err := r.views.Invalidate(context.Background()); err != nil {
		log.WarnErr(log.CatCache, "view cache flush failed", err)
	}
}

// allocKeyLocked returns a key not used by any layout.
func (r *Registry) allocKeyLocked() string {
	for {
		key := r.newID()
		if _, taken := r.layouts[key]; !taken {
			return key
		}
		log.Warn(log.CatRegistry, "generated key already in use", "key", key)
	}
}

// emit runs after the lock is released.
func (r *Registry) emit(c change) {
	r.invalidateViews()
	if r.broker != nil {
		r.broker.Publish(c.typ, domain.LayoutEvent{Key: c.key, Layout: c.layout.Clone()})
	}
	if r.onChange != nil {
		r.onChange()
	}
}

// Keys returns the keys of all layouts, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.layouts))
}
