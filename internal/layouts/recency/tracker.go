// Package recency keeps a bounded most-recently-used list of layout keys.
package recency

import "slices"

// DefaultLimit is how many keys the registry remembers.
const DefaultLimit = 2

// Tracker is an ordered list of distinct keys, most recent first, never
// longer than its limit. It is not safe for concurrent use; the registry
// guards it with its own mutex.
type Tracker struct {
	limit int
	keys  []string
}

// New creates a tracker holding at most limit keys. A limit below one
// falls back to DefaultLimit.
func New(limit int) *Tracker {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Tracker{limit: limit, keys: make([]string, 0, limit)}
}

// Touch moves key to the front, inserting it if absent and dropping the
// oldest key when the list is over its limit.
func (t *Tracker) Touch(key string) {
	if i := slices.Index(t.keys, key); i >= 0 {
		t.keys = slices.Delete(t.keys, i, i+1)
	}
	t.keys = slices.Insert(t.keys, 0, key)
	if len(t.keys) > t.limit {
		t.keys = t.keys[:t.limit]
	}
}

// Remove drops key if present.
func (t *Tracker) Remove(key string) {
	t.keys = slices.DeleteFunc(t.keys, func(k string) bool { return k == key })
}

// Front returns the most recent key.
func (t *Tracker) Front() (string, bool) {
	if len(t.keys) == 0 {
		return "", false
	}
	return t.keys[0], true
}

// List returns a copy of the keys, most recent first.
func (t *Tracker) List() []string {
	return slices.Clone(t.keys)
}

// Len returns the number of tracked keys.
func (t *Tracker) Len() int {
	return len(t.keys)
}

// Retain drops every key for which keep returns false.
func (t *Tracker) Retain(keep func(string) bool) {
	t.keys = slices.DeleteFunc(t.keys, func(k string) bool { return !keep(k) })
}

// Reset adopts a persisted list. Later duplicates are dropped and the
// result is cut to the limit, keeping the front.
func (t *Tracker) Reset(keys []string) {
	t.keys = t.keys[:0]
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if len(t.keys) == t.limit {
			break
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		t.keys = append(t.keys, key)
	}
}
