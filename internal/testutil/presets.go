package testutil

import (
	"strconv"
	"time"
)

// WithStandardLayouts adds two layouts with every field exercised:
//
//	ops   local, opened a day after Reference, with a payload
//	sales online, updated an hour after Reference, left panel hidden
//
// sales is the most recently opened.
func (b *Builder) WithStandardLayouts() *Builder {
	return b.
		WithLayout("ops",
			Name("Ops"),
			OpenedAt(Reference.Add(24*time.Hour)),
			Payload(`{"dock":[1,2]}`)).
		WithLayout("sales",
			Name("Sales"),
			Online(),
			UpdatedAt(Reference.Add(time.Hour)),
			Panels(false, true)).
		WithRecent("sales", "ops")
}

// WithManyLayouts adds n local layouts keyed layout-0 .. layout-(n-1), each
// updated a minute after the previous one.
func (b *Builder) WithManyLayouts(n int) *Builder {
	for i := range n {
		key := "layout-" + strconv.Itoa(i)
		b.WithLayout(key, Name("Layout "+strconv.Itoa(i)), UpdatedAt(Reference.Add(time.Duration(i)*time.Minute)))
	}
	return b
}
