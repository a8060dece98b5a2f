// Package domain holds the layout registry's entity types and the storage
// contract. It has no infrastructure dependencies.
package domain

import (
	"maps"
	"slices"
	"time"
)

// Kind classifies where a layout came from.
type Kind string

const (
	// KindLocal is a layout created or imported on this machine.
	KindLocal Kind = "local"

	// KindOnline is a layout obtained from a remote source.
	KindOnline Kind = "online"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if the kind is a recognized layout kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindLocal, KindOnline:
		return true
	default:
		return false
	}
}

// Display returns the label shown for the kind in list views.
func (k Kind) Display() string {
	switch k {
	case KindLocal:
		return "Local"
	case KindOnline:
		return "Online"
	default:
		return string(k)
	}
}

// CopySuffix is appended to the name of a duplicated layout.
const CopySuffix = " copy"

// Layout is a saved arrangement of dashboard panels.
//
// Payload is produced by the docking engine and stored verbatim; the
// registry never looks inside it.
type Layout struct {
	Key               string
	Name              string
	Kind              Kind
	LastUpdated       time.Time
	LastOpened        *time.Time // nil until the layout is first opened
	LeftPanelVisible  bool
	RightPanelVisible bool
	Payload           string
}

// NewLayout creates a layout with both side panels visible and no open time.
func NewLayout(key, name string, kind Kind, now time.Time) Layout {
	if kind == "" {
		kind = KindLocal
	}
	return Layout{
		Key:               key,
		Name:              name,
		Kind:              kind,
		LastUpdated:       Timestamp(now),
		LeftPanelVisible:  true,
		RightPanelVisible: true,
	}
}

// Clone returns a copy that shares no pointers with l.
func (l Layout) Clone() Layout {
	if l.LastOpened != nil {
		opened := *l.LastOpened
		l.LastOpened = &opened
	}
	return l
}

// Equal reports whether two layouts hold the same values, comparing
// timestamps by instant.
func (l Layout) Equal(other Layout) bool {
	return l.Key == other.Key && l.EqualIgnoringKey(other)
}

// EqualIgnoringKey is Equal without the key, which is not part of a
// layout's portable identity.
func (l Layout) EqualIgnoringKey(other Layout) bool {
	if (l.LastOpened == nil) != (other.LastOpened == nil) {
		return false
	}
	if l.LastOpened != nil && !l.LastOpened.Equal(*other.LastOpened) {
		return false
	}
	return l.Name == other.Name &&
		l.Kind == other.Kind &&
		l.LastUpdated.Equal(other.LastUpdated) &&
		l.LeftPanelVisible == other.LeftPanelVisible &&
		l.RightPanelVisible == other.RightPanelVisible &&
		l.Payload == other.Payload
}

// Timestamp normalizes t for storage: UTC with the monotonic reading
// stripped, so values survive a round trip through text unchanged.
func Timestamp(t time.Time) time.Time {
	return t.UTC()
}

// State is the whole persisted registry: every layout keyed by its storage
// key, plus the recency list (most recent first).
type State struct {
	Layouts map[string]Layout
	Recent  []string
}

// DefaultState is the state of a registry that has never been saved.
func DefaultState() State {
	return State{
		Layouts: make(map[string]Layout),
		Recent:  []string{},
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{
		Layouts: make(map[string]Layout, len(s.Layouts)),
		Recent:  append([]string{}, s.Recent...),
	}
	for key, l := range s.Layouts {
		out.Layouts[key] = l.Clone()
	}
	return out
}

// RawState is state as read back from storage, before repair. A nil field
// means the stored document did not contain it.
type RawState struct {
	Layouts map[string]Layout
	Recent  []string
}

// Keys returns the storage keys of the raw layouts.
func (r RawState) Keys() []string {
	return slices.Sorted(maps.Keys(r.Layouts))
}
