package testutil

import (
	"time"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
)

// Reference is the fixed instant fixtures are dated from.
var Reference = time.Date(2024, time.March, 1, 12, 30, 0, 0, time.UTC)

// LayoutOption configures a layout during builder setup.
type LayoutOption func(*domain.Layout)

// defaultLayout returns a local layout named after its key, updated at
// Reference and never opened.
func defaultLayout(key string) domain.Layout {
	return domain.NewLayout(key, key, domain.KindLocal, Reference)
}

// Name sets the layout name.
func Name(name string) LayoutOption {
	return func(l *domain.Layout) { l.Name = name }
}

// Kind sets the layout kind.
func Kind(k domain.Kind) LayoutOption {
	return func(l *domain.Layout) { l.Kind = k }
}

// Online makes the layout an online one.
func Online() LayoutOption {
	return Kind(domain.KindOnline)
}

// UpdatedAt sets LastUpdated.
func UpdatedAt(t time.Time) LayoutOption {
	return func(l *domain.Layout) { l.LastUpdated = domain.Timestamp(t) }
}

// OpenedAt sets LastOpened.
func OpenedAt(t time.Time) LayoutOption {
	return func(l *domain.Layout) {
		opened := domain.Timestamp(t)
		l.LastOpened = &opened
	}
}

// Panels sets side panel visibility.
func Panels(left, right bool) LayoutOption {
	return func(l *domain.Layout) {
		l.LeftPanelVisible = left
		l.RightPanelVisible = right
	}
}

// Payload sets the docking engine payload.
func Payload(p string) LayoutOption {
	return func(l *domain.Layout) { l.Payload = p }
}

// DeclaredKey overrides the key recorded inside the layout, leaving the
// storage key alone. Used to simulate drifted records.
func DeclaredKey(key string) LayoutOption {
	return func(l *domain.Layout) { l.Key = key }
}
