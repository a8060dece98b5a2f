package sqlite

import (
	"fmt"
	"time"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
)

// timeLayout keeps sub-second precision so timestamps survive a round trip.
const timeLayout = time.RFC3339Nano

// LayoutModel represents the database row for the layouts table.
// StorageKey is the row's identity; DeclaredKey is the key the record
// carries, which load-time repair reconciles with StorageKey.
type LayoutModel struct {
	StorageKey        string
	DeclaredKey       string
	Name              string
	Kind              string
	LastUpdated       string
	LastOpened        *string // nullable
	LeftPanelVisible  bool
	RightPanelVisible bool
	Payload           *string // nullable
}

// toLayoutModel converts a layout stored under storageKey to a row.
func toLayoutModel(storageKey string, l domain.Layout) *LayoutModel {
	m := &LayoutModel{
		StorageKey:        storageKey,
		DeclaredKey:       l.Key,
		Name:              l.Name,
		Kind:              string(l.Kind),
		LastUpdated:       l.LastUpdated.UTC().Format(timeLayout),
		LeftPanelVisible:  l.LeftPanelVisible,
		RightPanelVisible: l.RightPanelVisible,
	}
	if l.LastOpened != nil {
		opened := l.LastOpened.UTC().Format(timeLayout)
		m.LastOpened = &opened
	}
	if l.Payload != "" {
		payload := l.Payload
		m.Payload = &payload
	}
	return m
}

// toDomain converts a row back to a layout. Rows with an unknown kind or
// unparsable timestamps are rejected.
func (m *LayoutModel) toDomain() (domain.Layout, error) {
	kind := domain.Kind(m.Kind)
	if !kind.IsValid() {
		return domain.Layout{}, fmt.Errorf("invalid kind %q", m.Kind)
	}
	updated, err := time.Parse(timeLayout, m.LastUpdated)
	if err != nil {
		return domain.Layout{}, fmt.Errorf("invalid last_updated: %w", err)
	}

	l := domain.Layout{
		Key:               m.DeclaredKey,
		Name:              m.Name,
		Kind:              kind,
		LastUpdated:       domain.Timestamp(updated),
		LeftPanelVisible:  m.LeftPanelVisible,
		RightPanelVisible: m.RightPanelVisible,
	}
	if m.LastOpened != nil {
		opened, err := time.Parse(timeLayout, *m.LastOpened)
		if err != nil {
			return domain.Layout{}, fmt.Errorf("invalid last_opened: %w", err)
		}
		opened = domain.Timestamp(opened)
		l.LastOpened = &opened
	}
	if m.Payload != nil {
		l.Payload = *m.Payload
	}
	return l, nil
}
