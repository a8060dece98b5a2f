package query

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
)

// SortKey names a list ordering.
type SortKey string

const (
	SortNameAsc     SortKey = "name-asc"
	SortNameDesc    SortKey = "name-desc"
	SortUpdatedAsc  SortKey = "updated-asc"
	SortUpdatedDesc SortKey = "updated-desc"
	SortOpenedAsc   SortKey = "opened-asc"
	SortOpenedDesc  SortKey = "opened-desc"
)

// DefaultSort shows the most recently opened layouts first.
const DefaultSort = SortOpenedDesc

// SortKeys lists every ordering in menu order.
var SortKeys = []SortKey{
	SortNameAsc,
	SortNameDesc,
	SortUpdatedAsc,
	SortUpdatedDesc,
	SortOpenedAsc,
	SortOpenedDesc,
}

// Display returns the label shown for the ordering.
func (s SortKey) Display() string {
	switch s {
	case SortNameAsc:
		return "Name (A-Z)"
	case SortNameDesc:
		return "Name (Z-A)"
	case SortUpdatedAsc:
		return "Updated (oldest first)"
	case SortUpdatedDesc:
		return "Updated (newest first)"
	case SortOpenedAsc:
		return "Opened (oldest first)"
	case SortOpenedDesc:
		return "Opened (newest first)"
	default:
		return string(s)
	}
}

// ParseSort parses a sort key. The empty string selects DefaultSort.
func ParseSort(s string) (SortKey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultSort, nil
	}
	for _, k := range SortKeys {
		if s == string(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort %q", s)
}

// Sort orders layouts in place. The sort is stable, so layouts that compare
// equal keep their relative order. Names are compared with the collation
// rules of locale. A layout that was never opened counts as older than any
// opened one.
func Sort(layouts []domain.Layout, key SortKey, locale language.Tag) {
	if !slices.Contains(SortKeys, key) {
		key = DefaultSort
	}

	var cmp func(a, b domain.Layout) int
	switch key {
	case SortNameAsc, SortNameDesc:
		col := collate.New(locale)
		cmp = func(a, b domain.Layout) int {
			return col.CompareString(a.Name, b.Name)
		}
	case SortUpdatedAsc, SortUpdatedDesc:
		cmp = func(a, b domain.Layout) int {
			return a.LastUpdated.Compare(b.LastUpdated)
		}
	default:
		cmp = compareOpened
	}

	if strings.HasSuffix(string(key), "-desc") {
		asc := cmp
		cmp = func(a, b domain.Layout) int { return asc(b, a) }
	}
	slices.SortStableFunc(layouts, cmp)
}

func compareOpened(a, b domain.Layout) int {
	switch {
	case a.LastOpened == nil && b.LastOpened == nil:
		return 0
	case a.LastOpened == nil:
		return -1
	case b.LastOpened == nil:
		return 1
	default:
		return a.LastOpened.Compare(*b.LastOpened)
	}
}
