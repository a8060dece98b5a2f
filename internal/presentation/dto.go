// Package presentation converts layouts into the shapes the CLI prints.
package presentation

import (
	"time"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/layouts/query"
)

// LayoutDTO represents a layout for machine-readable output. The payload
// is reported by size only.
type LayoutDTO struct {
	Key               string     `json:"key"`
	Name              string     `json:"name"`
	Kind              string     `json:"kind"`
	LastUpdated       time.Time  `json:"last_updated"`
	LastOpened        *time.Time `json:"last_opened,omitempty"`
	LeftPanelVisible  bool       `json:"left_panel_visible"`
	RightPanelVisible bool       `json:"right_panel_visible"`
	PayloadBytes      int        `json:"payload_bytes"`
}

// GroupDTO is a titled run of layouts, as printed by 'list --group'.
type GroupDTO struct {
	Title   string      `json:"title"`
	Layouts []LayoutDTO `json:"layouts"`
}

// FromLayout converts a domain layout.
func FromLayout(l domain.Layout) LayoutDTO {
	return LayoutDTO{
		Key:               l.Key,
		Name:              l.Name,
		Kind:              l.Kind.String(),
		LastUpdated:       l.LastUpdated,
		LastOpened:        l.LastOpened,
		LeftPanelVisible:  l.LeftPanelVisible,
		RightPanelVisible: l.RightPanelVisible,
		PayloadBytes:      len(l.Payload),
	}
}

// FromLayouts converts a list, keeping its order. The result is never nil
// so it encodes as [] rather than null.
func FromLayouts(layouts []domain.Layout) []LayoutDTO {
	out := make([]LayoutDTO, 0, len(layouts))
	for _, l := range layouts {
		out = append(out, FromLayout(l))
	}
	return out
}

// FromGroups converts kind groups, titling each with the kind.
func FromGroups(recent []domain.Layout, groups []query.Group) []GroupDTO {
	out := []GroupDTO{{Title: "recent", Layouts: FromLayouts(recent)}}
	for _, g := range groups {
		out = append(out, GroupDTO{Title: g.Kind.String(), Layouts: FromLayouts(g.Layouts)})
	}
	return out
}
