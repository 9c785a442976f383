package tui

import "github.com/charmbracelet/lipgloss"

// Dashboard palette. The accent marks the focused pane and pane titles;
// chrome stays in the grey range so agent output dominates the screen.
var (
	colorAccent = lipgloss.Color("81")
	colorBorder = lipgloss.Color("238")
	colorFaint  = lipgloss.Color("243")
)

var (
	stylePaneFocused = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorAccent)

	stylePaneBlurred = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorBorder)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			Padding(0, 1)

	styleStats = lipgloss.NewStyle().
			Foreground(colorFaint)

	styleHelp = lipgloss.NewStyle().
			Foreground(colorBorder)
)
