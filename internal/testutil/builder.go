// Package testutil builds layout registry fixtures for tests.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
)

// Builder accumulates layouts and a recency list and turns them into a
// domain.State.
type Builder struct {
	t       testing.TB
	order   []string
	layouts map[string]domain.Layout
	recent  []string
}

// NewBuilder creates an empty builder.
func NewBuilder(t testing.TB) *Builder {
	t.Helper()
	return &Builder{t: t, layouts: make(map[string]domain.Layout)}
}

// WithLayout adds a layout stored under key with optional configuration.
// Adding the same key twice replaces the earlier layout.
func (b *Builder) WithLayout(key string, opts ...LayoutOption) *Builder {
	l := defaultLayout(key)
	for _, opt := range opts {
		opt(&l)
	}
	if _, exists := b.layouts[key]; !exists {
		b.order = append(b.order, key)
	}
	b.layouts[key] = l
	return b
}

// WithRecent sets the recency list, most recent first.
func (b *Builder) WithRecent(keys ...string) *Builder {
	b.recent = append([]string(nil), keys...)
	return b
}

// Keys returns the layout keys in the order they were added.
func (b *Builder) Keys() []string {
	return append([]string(nil), b.order...)
}

// Build returns the accumulated state. Each call returns an independent copy.
func (b *Builder) Build() domain.State {
	s := domain.State{
		Layouts: make(map[string]domain.Layout, len(b.layouts)),
		Recent:  append([]string{}, b.recent...),
	}
	for key, l := range b.layouts {
		s.Layouts[key] = l.Clone()
	}
	return s
}

// Save builds the state and writes it through store.
func (b *Builder) Save(store domain.Store) domain.State {
	b.t.Helper()
	s := b.Build()
	require.NoError(b.t, store.Save(context.Background(), s))
	return s
}

// RequireStateEqual fails unless got holds exactly the layouts and recency
// list of want.
func RequireStateEqual(t require.TestingT, want domain.State, got *domain.RawState) {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	require.NotNil(t, got)
	require.Len(t, got.Layouts, len(want.Layouts))
	for key, l := range want.Layouts {
		stored, ok := got.Layouts[key]
		require.True(t, ok, "missing %q", key)
		require.True(t, l.Equal(stored), "layout %q differs: want %+v got %+v", key, l, stored)
	}
	require.Equal(t, want.Recent, got.Recent)
}
