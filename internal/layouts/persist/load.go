// Package persist connects the registry to durable storage: it repairs and
// merges state on load and coalesces saves after changes.
package persist

import (
	"context"
	"slices"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/log"
)

// Repair makes every layout's declared key match the key it is stored
// under. The storage key wins, since recency entries and external
// references use it. It returns the repaired storage keys in sorted order.
func Repair(raw *domain.RawState) []string {
	if raw == nil {
		return nil
	}
	var repaired []string
	for storageKey, l := range raw.Layouts {
		if l.Key == storageKey {
			continue
		}
		log.Warn(log.CatStore, "repairing layout key", "storage_key", storageKey, "declared_key", l.Key)
		l.Key = storageKey
		raw.Layouts[storageKey] = l
		repaired = append(repaired, storageKey)
	}
	slices.Sort(repaired)
	return repaired
}

// Merge lays raw over defaults one top-level field at a time: a field
// missing from raw keeps its default.
func Merge(defaults domain.State, raw *domain.RawState) domain.State {
	out := defaults.Clone()
	if raw == nil {
		return out
	}
	if raw.Layouts != nil {
		out.Layouts = make(map[string]domain.Layout, len(raw.Layouts))
		for key, l := range raw.Layouts {
			out.Layouts[key] = l.Clone()
		}
	}
	if raw.Recent != nil {
		out.Recent = slices.Clone(raw.Recent)
	}
	return out
}

// Load reads state from store and prepares it for the registry. A failed
// or empty load yields the default state; the registry then starts empty
// rather than refusing to start.
func Load(ctx context.Context, store domain.Store) domain.State {
	raw, err := store.Load(ctx)
	if err != nil {
		log.ErrorErr(log.CatStore, "loading layouts failed, starting from defaults", err)
		return domain.DefaultState()
	}
	if raw == nil {
		log.Info(log.CatStore, "no stored layouts, starting from defaults")
		return domain.DefaultState()
	}

	if repaired := Repair(raw); len(repaired) > 0 {
		log.Warn(log.CatStore, "repaired layout keys on load", "count", len(repaired))
	}
	state := Merge(domain.DefaultState(), raw)
	log.Debug(log.CatStore, "layouts loaded", "layouts", len(state.Layouts), "recent", len(state.Recent))
	return state
}
