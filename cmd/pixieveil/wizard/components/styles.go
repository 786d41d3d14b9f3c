package components

import "github.com/charmbracelet/lipgloss"

// Shared styles for wizard screens.
var (
	// TitleStyle renders screen titles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	// SubtitleStyle renders secondary text
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)
