package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/help"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2).
			Width(60)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63")).
			Bold(true)

	panelDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	panelDetailStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))
)

// HelpPanel displays contextual help for the focused form field.
type HelpPanel struct {
	field  string
	width  int
	height int
}

// NewHelpPanel creates a help panel with a usable default width.
func NewHelpPanel() *HelpPanel {
	return &HelpPanel{
		width:  60,
		height: 10,
	}
}

// SetField updates which field's help to display
func (h *HelpPanel) SetField(field string) {
	h.field = field
}

// SetSize updates panel dimensions
func (h *HelpPanel) SetSize(width, height int) {
	h.width = width
	h.height = height
}

// View renders the help panel
func (h *HelpPanel) View() string {
	style := panelStyle.Width(h.width - 4)

	text, ok := help.Texts[h.field]
	if !ok {
		return style.Render("Select a field to see help")
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		panelTitleStyle.Render(text.Title),
		"",
		panelDescStyle.Render(text.Description),
		"",
		panelDetailStyle.Render(text.Details),
	)

	return style.Render(body)
}
