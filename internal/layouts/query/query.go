package query

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
)

// Query is a filter plus an ordering: everything a list view needs.
type Query struct {
	Filter Filter
	Sort   SortKey
}

// Default returns the query of an unfiltered list view.
func Default() Query {
	return Query{
		Filter: Filter{Kind: KindAll, Updated: UpdatedAll},
		Sort:   DefaultSort,
	}
}

// Key identifies the query for caching. Two queries with the same key
// always produce the same list from the same layouts and time.
func (q Query) Key() string {
	kind := q.Filter.Kind
	if kind == "" {
		kind = KindAll
	}
	updated := q.Filter.Updated
	if updated == "" {
		updated = UpdatedAll
	}
	sortKey := q.Sort
	if sortKey == "" {
		sortKey = DefaultSort
	}

	var b strings.Builder
	b.WriteString("q=")
	b.WriteString(strconv.Quote(q.Filter.Search))
	b.WriteString("|kind=")
	b.WriteString(string(kind))
	b.WriteString("|updated=")
	b.WriteString(string(updated))
	b.WriteString("|sort=")
	b.WriteString(string(sortKey))
	if q.Filter.CaseSensitive {
		b.WriteString("|cs")
	}
	return b.String()
}

// Apply returns the layouts that pass the filter, ordered by the sort key.
// The input slice is not modified.
func (q Query) Apply(layouts []domain.Layout, now time.Time, locale language.Tag) []domain.Layout {
	match := q.Filter.matcher(now)
	out := make([]domain.Layout, 0, len(layouts))
	for _, l := range layouts {
		if match(l) {
			out = append(out, l)
		}
	}
	Sort(out, q.Sort, locale)
	return out
}

// Group is a run of layouts sharing a kind.
type Group struct {
	Kind    domain.Kind
	Layouts []domain.Layout
}

// GroupByKind splits an ordered list into local and online groups, keeping
// the order within each. Empty groups are omitted.
func GroupByKind(layouts []domain.Layout) []Group {
	groups := []Group{{Kind: domain.KindLocal}, {Kind: domain.KindOnline}}
	for _, l := range layouts {
		for i := range groups {
			if groups[i].Kind == l.Kind {
				groups[i].Layouts = append(groups[i].Layouts, l)
				break
			}
		}
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.Layouts) > 0 {
			out = append(out, g)
		}
	}
	return out
}
