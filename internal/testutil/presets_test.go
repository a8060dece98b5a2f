package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
)

func TestWithStandardLayouts(t *testing.T) {
	s := NewBuilder(t).WithStandardLayouts().Build()

	require.Len(t, s.Layouts, 2)
	require.Equal(t, []string{"sales", "ops"}, s.Recent)

	ops := s.Layouts["ops"]
	require.Equal(t, domain.KindLocal, ops.Kind)
	require.NotNil(t, ops.LastOpened)
	require.NotEmpty(t, ops.Payload)

	sales := s.Layouts["sales"]
	require.Equal(t, domain.KindOnline, sales.Kind)
	require.False(t, sales.LeftPanelVisible)
	require.True(t, sales.LastUpdated.After(ops.LastUpdated))
}

func TestWithManyLayouts(t *testing.T) {
	b := NewBuilder(t).WithManyLayouts(12)
	s := b.Build()

	require.Len(t, s.Layouts, 12)
	require.Equal(t, "layout-0", b.Keys()[0])
	require.Equal(t, "layout-11", b.Keys()[11])
	require.Equal(t, "Layout 11", s.Layouts["layout-11"].Name)
	require.True(t, s.Layouts["layout-11"].LastUpdated.After(s.Layouts["layout-10"].LastUpdated))
}
