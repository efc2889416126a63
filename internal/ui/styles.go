package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/timeblock/internal/theme"
)

// Styles are the lipgloss styles derived from a theme.
type Styles struct {
	Title    lipgloss.Style
	Upper    lipgloss.Style
	Lower    lipgloss.Style
	Label    lipgloss.Style
	Selected lipgloss.Style
	Grid     lipgloss.Style
	Done     lipgloss.Style
	Left     lipgloss.Style
	Dangling lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
}

// NewStyles maps theme roles onto chart elements.
func NewStyles(t theme.Theme) Styles {
	t = t.Normalize()
	fg := func(hex string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
	}
	return Styles{
		Title:    fg(t.Primary).Bold(true),
		Upper:    fg(t.Text).Bold(true),
		Lower:    fg(t.Muted),
		Label:    fg(t.Text),
		Selected: fg(t.Primary).Bold(true),
		Grid:     fg(t.Blend("background", "muted", 0.5)),
		Done:     fg(t.Primary),
		Left:     fg(t.Secondary),
		Dangling: fg(t.Muted).Italic(true),
		Muted:    fg(t.Muted),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626")).Bold(true),
	}
}
