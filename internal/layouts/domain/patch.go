package domain

import "time"

// Patch is a partial update to a layout. Nil fields are left untouched.
// LastOpened and ClearLastOpened are mutually exclusive; ClearLastOpened wins.
type Patch struct {
	Name              *string
	Kind              *Kind
	LastUpdated       *time.Time
	LastOpened        *time.Time
	ClearLastOpened   bool
	LeftPanelVisible  *bool
	RightPanelVisible *bool
	Payload           *string
}

// Apply returns l with every set field of p overwritten. The key is never
// part of a patch. Apply does not touch LastUpdated unless p sets it; the
// registry owns the refresh rule.
func (l Layout) Apply(p Patch) Layout {
	out := l.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Kind != nil {
		out.Kind = *p.Kind
	}
	if p.LastUpdated != nil {
		out.LastUpdated = Timestamp(*p.LastUpdated)
	}
	switch {
	case p.ClearLastOpened:
		out.LastOpened = nil
	case p.LastOpened != nil:
		opened := Timestamp(*p.LastOpened)
		out.LastOpened = &opened
	}
	if p.LeftPanelVisible != nil {
		out.LeftPanelVisible = *p.LeftPanelVisible
	}
	if p.RightPanelVisible != nil {
		out.RightPanelVisible = *p.RightPanelVisible
	}
	if p.Payload != nil {
		out.Payload = *p.Payload
	}
	return out
}

// IsEmpty reports whether p changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Kind == nil && p.LastUpdated == nil &&
		p.LastOpened == nil && !p.ClearLastOpened &&
		p.LeftPanelVisible == nil && p.RightPanelVisible == nil && p.Payload == nil
}

// Ptr returns a pointer to v. Convenience for building patches.
func Ptr[T any](v T) *T {
	return &v
}
