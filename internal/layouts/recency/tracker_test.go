package recency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestTouch_MostRecentFirst(t *testing.T) {
	tr := New(DefaultLimit)

	tr.Touch("a")
	tr.Touch("b")
	assert.Equal(t, []string{"b", "a"}, tr.List())

	tr.Touch("a")
	assert.Equal(t, []string{"a", "b"}, tr.List())
}

func TestTouch_EvictsOldest(t *testing.T) {
	tr := New(DefaultLimit)

	tr.Touch("a")
	tr.Touch("b")
	tr.Touch("c")
	assert.Equal(t, []string{"c", "b"}, tr.List())
}

func TestTouch_SameKeyTwice(t *testing.T) {
	tr := New(DefaultLimit)
	tr.Touch("a")
	tr.Touch("a")
	assert.Equal(t, []string{"a"}, tr.List())
}

func TestRemove(t *testing.T) {
	tr := New(DefaultLimit)
	tr.Touch("a")
	tr.Touch("b")

	tr.Remove("b")
	assert.Equal(t, []string{"a"}, tr.List())

	tr.Remove("missing")
	assert.Equal(t, []string{"a"}, tr.List())

	front, ok := tr.Front()
	require.True(t, ok)
	assert.Equal(t, "a", front)

	tr.Remove("a")
	_, ok = tr.Front()
	assert.False(t, ok)
}

func TestList_ReturnsCopy(t *testing.T) {
	tr := New(DefaultLimit)
	tr.Touch("a")

	list := tr.List()
	list[0] = "mutated"
	assert.Equal(t, []string{"a"}, tr.List())
}

func TestReset_Normalizes(t *testing.T) {
	tr := New(DefaultLimit)
	tr.Reset([]string{"a", "a", "b", "c"})
	assert.Equal(t, []string{"a", "b"}, tr.List())

	tr.Reset(nil)
	assert.Empty(t, tr.List())
	assert.Equal(t, 0, tr.Len())
}

func TestRetain(t *testing.T) {
	tr := New(3)
	tr.Reset([]string{"a", "b", "c"})

	tr.Retain(func(k string) bool { return k != "b" })
	assert.Equal(t, []string{"a", "c"}, tr.List())
}

func TestNew_InvalidLimit(t *testing.T) {
	tr := New(0)
	for _, k := range []string{"a", "b", "c"} {
		tr.Touch(k)
	}
	assert.Len(t, tr.List(), DefaultLimit)
}

// TestTracker_Invariants drives random operations and checks that the list
// stays bounded, distinct, and ordered by last touch.
func TestTracker_Invariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(1, 4).Draw(rt, "limit")
		tr := New(limit)
		keyGen := rapid.SampledFrom([]string{"a", "b", "c", "d", "e"})

		var touches []string // full touch history, newest last
		removed := make(map[string]bool)

		steps := rapid.IntRange(0, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			key := keyGen.Draw(rt, "key")
			if rapid.IntRange(0, 3).Draw(rt, "op") == 0 {
				tr.Remove(key)
				removed[key] = true
				continue
			}
			tr.Touch(key)
			touches = append(touches, key)
			delete(removed, key)

			if front, _ := tr.Front(); front != key {
				rt.Fatalf("touched %q but front is %q", key, front)
			}
		}

		list := tr.List()
		if len(list) > limit {
			rt.Fatalf("list %v longer than limit %d", list, limit)
		}
		seen := make(map[string]bool)
		for _, k := range list {
			if seen[k] {
				rt.Fatalf("duplicate key %q in %v", k, list)
			}
			seen[k] = true
			if removed[k] {
				rt.Fatalf("removed key %q still listed", k)
			}
		}

		// Keys appear in order of their last touch.
		for i := 1; i < len(list); i++ {
			if lastIndex(touches, list[i-1]) < lastIndex(touches, list[i]) {
				rt.Fatalf("order violated in %v", list)
			}
		}
	})
}

func lastIndex(s []string, v string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == v {
			return i
		}
	}
	return -1
}
