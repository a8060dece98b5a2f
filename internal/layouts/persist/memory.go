package persist

import (
	"context"
	"slices"
	"sync"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
)

// MemoryStore keeps state in memory. It backs tests and throwaway sessions.
type MemoryStore struct {
	mu      sync.Mutex
	state   *domain.RawState
	saves   int
	loadErr error
	saveErr error
}

var _ domain.Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store holding raw, or nothing if raw is nil.
func NewMemoryStore(raw *domain.RawState) *MemoryStore {
	return &MemoryStore{state: cloneRaw(raw)}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Load(context.Context) (*domain.RawState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return cloneRaw(m.state), nil
}

func (m *MemoryStore) Save(_ context.Context, s domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	c := s.Clone()
	m.state = &domain.RawState{Layouts: c.Layouts, Recent: c.Recent}
	m.saves++
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Saves returns how many saves succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FailLoad makes subsequent loads return err (nil restores normal loads).
func (m *MemoryStore) FailLoad(err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
}

// FailSave makes subsequent saves return err (nil restores normal saves).
func (m *MemoryStore) FailSave(err error) {
	m.mu.Lock()
	m.saveErr = err
	m.mu.Unlock()
}

func cloneRaw(raw *domain.RawState) *domain.RawState {
	if raw == nil {
		return nil
	}
	out := &domain.RawState{}
	if raw.Layouts != nil {
		out.Layouts = make(map[string]domain.Layout, len(raw.Layouts))
		for k, l := range raw.Layouts {
			out.Layouts[k] = l.Clone()
		}
	}
	if raw.Recent != nil {
		out.Recent = slices.Clone(raw.Recent)
	}
	return out
}
