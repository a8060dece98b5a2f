package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#BBBBBB", Dark: "#555555"})
)

// layoutTable renders layouts as a bordered table with relative times.
func layoutTable(layouts []domain.Layout, now time.Time) string {
	rows := make([][]string, 0, len(layouts))
	for _, l := range layouts {
		rows = append(rows, []string{
			l.Key,
			l.Name,
			l.Kind.Display(),
			relativeTime(&l.LastUpdated, now),
			relativeTime(l.LastOpened, now),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("KEY", "NAME", "KIND", "UPDATED", "OPENED").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.String()
}

// printSection writes a titled table, or nothing when layouts is empty.
func printSection(w io.Writer, title string, layouts []domain.Layout, now time.Time) {
	if len(layouts) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, sectionStyle.Render(title))
	_, _ = fmt.Fprintln(w, layoutTable(layouts, now))
}

func relativeTime(t *time.Time, now time.Time) string {
	if t == nil {
		return "never"
	}
	return humanize.RelTime(*t, now, "ago", "from now")
}

// describeLayout prints every field of one layout.
func describeLayout(w io.Writer, l domain.Layout, now time.Time) {
	_, _ = fmt.Fprintf(w, "Key:      %s\n", l.Key)
	_, _ = fmt.Fprintf(w, "Name:     %s\n", l.Name)
	_, _ = fmt.Fprintf(w, "Kind:     %s\n", l.Kind.Display())
	_, _ = fmt.Fprintf(w, "Updated:  %s (%s)\n", l.LastUpdated.Format(time.RFC3339), relativeTime(&l.LastUpdated, now))
	if l.LastOpened != nil {
		_, _ = fmt.Fprintf(w, "Opened:   %s (%s)\n", l.LastOpened.Format(time.RFC3339), relativeTime(l.LastOpened, now))
	} else {
		_, _ = fmt.Fprintln(w, "Opened:   never")
	}
	_, _ = fmt.Fprintf(w, "Panels:   left=%s right=%s\n", onOff(l.LeftPanelVisible), onOff(l.RightPanelVisible))
	_, _ = fmt.Fprintf(w, "Payload:  %s\n", humanize.Bytes(uint64(len(l.Payload))))
}

func onOff(v bool) string {
	if v {
		return "shown"
	}
	return "hidden"
}
