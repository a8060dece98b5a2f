// Package idgen generates layout keys: random (v4) UUIDs in canonical text form.
package idgen

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator returns a new unique key on every call.
type Generator func() string

// New returns a new random UUID string.
func New() string {
	return uuid.New().String()
}

// Valid reports whether id parses as a UUID.
func Valid(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// Sequence returns a Generator that yields ids in order, then falls back to
// "generated-<n>" once exhausted. Intended for tests that need stable keys.
func Sequence(ids ...string) Generator {
	var (
		mu   sync.Mutex
		next int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		defer func() { next++ }()
		if next < len(ids) {
			return ids[next]
		}
		return fmt.Sprintf("generated-%d", next)
	}
}
