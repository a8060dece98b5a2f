package domain

import "context"

// Store is the durable backing for registry state.
// Implementations may use a JSON file, SQLite, an object store or memory.
type Store interface {
	// Load returns the stored state, or nil if nothing has been stored yet.
	Load(ctx context.Context) (*RawState, error)

	// Save replaces the stored state with s.
	Save(ctx context.Context, s State) error

	// Close releases any resources held by the store.
	Close() error
}

// LayoutEvent is the payload published on every registry mutation.
// Layout is the record after the change; for deletions it is the removed
// record (zero if it was never present).
type LayoutEvent struct {
	Key    string
	Layout Layout
}
