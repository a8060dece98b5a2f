// Package query filters and orders layouts for list views.
package query

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
)

// KindFilter restricts a list to one kind of layout.
type KindFilter string

// KindAll disables kind filtering.
const KindAll KindFilter = "all"

// ForKind returns the filter that keeps only layouts of kind k.
func ForKind(k domain.Kind) KindFilter {
	return KindFilter(k)
}

func (f KindFilter) matches(k domain.Kind) bool {
	return f == "" || f == KindAll || domain.Kind(f) == k
}

// Display returns the label shown for the filter.
func (f KindFilter) Display() string {
	if f == "" || f == KindAll {
		return "All"
	}
	return domain.Kind(f).Display()
}

// ParseKindFilter parses "all", "local" or "online". The empty string
// means all.
func ParseKindFilter(s string) (KindFilter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", string(KindAll):
		return KindAll, nil
	}
	if k := domain.Kind(s); k.IsValid() {
		return ForKind(k), nil
	}
	return "", fmt.Errorf("unknown kind %q (want all, local or online)", s)
}

// UpdatedBucket selects layouts by when they were last updated, measured in
// calendar units relative to now.
type UpdatedBucket string

const (
	UpdatedAll        UpdatedBucket = "all"
	UpdatedToday      UpdatedBucket = "today"
	UpdatedYesterday  UpdatedBucket = "yesterday"
	UpdatedLast7Days  UpdatedBucket = "last7Days"
	UpdatedLast30Days UpdatedBucket = "last30Days"
	UpdatedThisMonth  UpdatedBucket = "thisMonth"
	UpdatedLastMonth  UpdatedBucket = "lastMonth"
	UpdatedThisYear   UpdatedBucket = "thisYear"
)

// UpdatedBuckets lists every bucket in menu order.
var UpdatedBuckets = []UpdatedBucket{
	UpdatedAll,
	UpdatedToday,
	UpdatedYesterday,
	UpdatedLast7Days,
	UpdatedLast30Days,
	UpdatedThisMonth,
	UpdatedLastMonth,
	UpdatedThisYear,
}

// Display returns the label shown for the bucket.
func (b UpdatedBucket) Display() string {
	switch b {
	case "", UpdatedAll:
		return "All time"
	case UpdatedToday:
		return "Today"
	case UpdatedYesterday:
		return "Yesterday"
	case UpdatedLast7Days:
		return "Last 7 days"
	case UpdatedLast30Days:
		return "Last 30 days"
	case UpdatedThisMonth:
		return "This month"
	case UpdatedLastMonth:
		return "Last month"
	case UpdatedThisYear:
		return "This year"
	default:
		return string(b)
	}
}

// Contains reports whether t falls in the bucket. Differences are counted
// in calendar days, months and years in now's location, so 23:59 yesterday
// is one day ago even if it was only a minute before now.
func (b UpdatedBucket) Contains(t, now time.Time) bool {
	switch b {
	case "", UpdatedAll:
		return true
	case UpdatedToday:
		return calendarDays(now, t) == 0
	case UpdatedYesterday:
		return calendarDays(now, t) == 1
	case UpdatedLast7Days:
		return calendarDays(now, t) <= 7
	case UpdatedLast30Days:
		return calendarDays(now, t) <= 30
	case UpdatedThisMonth:
		return calendarMonths(now, t) == 0
	case UpdatedLastMonth:
		return calendarMonths(now, t) == 1
	case UpdatedThisYear:
		return calendarYears(now, t) == 0
	default:
		return false
	}
}

// ParseUpdatedBucket parses a bucket name, ignoring case.
func ParseUpdatedBucket(s string) (UpdatedBucket, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return UpdatedAll, nil
	}
	for _, b := range UpdatedBuckets {
		if strings.EqualFold(s, string(b)) {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown updated bucket %q", s)
}

// calendarDays returns the number of calendar-day boundaries between t and
// now. It is negative when t is after now.
func calendarDays(now, t time.Time) int {
	t = t.In(now.Location())
	ny, nm, nd := now.Date()
	ty, tm, td := t.Date()
	a := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int((a.Unix() - b.Unix()) / 86400)
}

func calendarMonths(now, t time.Time) int {
	t = t.In(now.Location())
	return (now.Year()-t.Year())*12 + int(now.Month()) - int(t.Month())
}

func calendarYears(now, t time.Time) int {
	return now.Year() - t.In(now.Location()).Year()
}

// Filter is a conjunction of predicates over layouts.
type Filter struct {
	Search        string
	Kind          KindFilter
	Updated       UpdatedBucket
	CaseSensitive bool
}

// IsZero reports whether the filter keeps every layout.
func (f Filter) IsZero() bool {
	return f.Search == "" &&
		(f.Kind == "" || f.Kind == KindAll) &&
		(f.Updated == "" || f.Updated == UpdatedAll)
}

// Matches reports whether l passes every predicate of f.
func (f Filter) Matches(l domain.Layout, now time.Time) bool {
	return f.matcher(now)(l)
}

// matcher compiles f once for a whole list. The returned function is not
// safe for concurrent use.
func (f Filter) matcher(now time.Time) func(domain.Layout) bool {
	var (
		folder cases.Caser
		needle = f.Search
	)
	if !f.CaseSensitive && needle != "" {
		folder = cases.Fold()
		needle = folder.String(needle)
	}

	return func(l domain.Layout) bool {
		if !f.Kind.matches(l.Kind) {
			return false
		}
		if !f.Updated.Contains(l.LastUpdated, now) {
			return false
		}
		if needle == "" {
			return true
		}
		name := l.Name
		if !f.CaseSensitive {
			name = folder.String(name)
		}
		return strings.Contains(name, needle)
	}
}
