package screens

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/components"
	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/types"
)

// ProfileScreen configures the anonymisation profile switches.
type ProfileScreen struct {
	form      *huh.Form
	helpPanel *components.HelpPanel
	profile   *types.ProfileDraft
	width     int
	height    int
	done      bool
	cancelled bool
}

// NewProfileScreen creates a new anonymisation configuration screen
func NewProfileScreen(profile *types.ProfileDraft) *ProfileScreen {
	s := &ProfileScreen{
		helpPanel: components.NewHelpPanel(),
		profile:   profile,
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Anonymisation Profile").
				Description("The built-in profile blanks demographics, pseudonymises identifiers and resets dates. These switches adjust it."),

			huh.NewConfirm().
				Key("pixel_blackout").
				Title("Black out the top pixel rows?").
				Value(&profile.PixelBlackout),

			huh.NewConfirm().
				Key("keep_private_tags").
				Title("Keep vendor private tags?").
				Value(&profile.KeepPrivateTags),

			huh.NewConfirm().
				Key("retain_study_date").
				Title("Retain the study date and time?").
				Value(&profile.RetainStudyDate),
		),
	).WithShowHelp(false).WithShowErrors(true)

	return s
}

// Init implements tea.Model
func (s *ProfileScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements tea.Model
func (s *ProfileScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			s.cancelled = true
			return s, tea.Quit
		}
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.helpPanel.SetSize(msg.Width/3, msg.Height/2)
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if focused := s.form.GetFocusedField(); focused != nil {
		s.helpPanel.SetField(focused.GetKey())
	}

	if s.form.State == huh.StateCompleted {
		s.done = true
	}

	return s, cmd
}

// View implements tea.Model
func (s *ProfileScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}

	title := components.TitleStyle.Render("PIXIEVEIL WIZARD - Anonymisation")

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		s.form.View(),
		"",
		s.helpPanel.View(),
		"",
		"Tab: Next field | Enter: Submit | Esc: Cancel",
	)

	return content
}

// Done returns true if the form was completed
func (s *ProfileScreen) Done() bool {
	return s.done
}

// Cancelled returns true if the user cancelled
func (s *ProfileScreen) Cancelled() bool {
	return s.cancelled
}
