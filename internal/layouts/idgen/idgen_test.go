package idgen

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNew_IsVersion4(t *testing.T) {
	id := New()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	require.Equal(t, uuid.Version(4), parsed.Version())
	require.Equal(t, parsed.String(), id, "canonical text form")
}

func TestNew_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id := New()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s after %d iterations", id, i)
		seen[id] = struct{}{}
	}
}

func TestValid(t *testing.T) {
	require.True(t, Valid(New()))
	require.False(t, Valid(""))
	require.False(t, Valid("not-a-uuid"))
}

func TestSequence(t *testing.T) {
	gen := Sequence("a", "b")
	require.Equal(t, "a", gen())
	require.Equal(t, "b", gen())
	require.Equal(t, "generated-2", gen())
}
