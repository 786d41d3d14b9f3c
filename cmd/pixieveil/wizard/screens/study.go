package screens

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/components"
	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/types"
)

// StudyScreen configures completion detection and the series filter.
type StudyScreen struct {
	form      *huh.Form
	helpPanel *components.HelpPanel
	study     *types.StudyDraft
	width     int
	height    int
	done      bool
	cancelled bool

	// String versions for form binding (huh binds to strings)
	timeoutStr    string
	intervalStr   string
	modalitiesStr string
}

// NewStudyScreen creates a new study configuration screen
func NewStudyScreen(study *types.StudyDraft) *StudyScreen {
	if study.CompletionTimeout == 0 {
		study.CompletionTimeout = 120
	}
	if study.CompletionCheckInterval == 0 {
		study.CompletionCheckInterval = 30
	}

	s := &StudyScreen{
		helpPanel:     components.NewHelpPanel(),
		study:         study,
		timeoutStr:    strconv.Itoa(study.CompletionTimeout),
		intervalStr:   strconv.Itoa(study.CompletionCheckInterval),
		modalitiesStr: strings.Join(study.ExcludeModalities, ", "),
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("completion_timeout").
				Title("Completion Timeout (seconds)").
				Value(&s.timeoutStr).
				Validate(validateSeconds),

			huh.NewInput().
				Key("check_interval").
				Title("Check Interval (seconds)").
				Value(&s.intervalStr).
				Validate(validatePositiveSeconds),

			huh.NewInput().
				Key("exclude_modalities").
				Title("Excluded Modalities").
				Placeholder("e.g. SR, PR, KO").
				Value(&s.modalitiesStr),

			huh.NewConfirm().
				Key("keep_original_series").
				Title("Keep only ORIGINAL images?").
				Value(&study.KeepOriginalSeries),
		),
	).WithShowHelp(false).WithShowErrors(true)

	return s
}

func validateSeconds(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validatePositiveSeconds(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n <= 0 {
		return fmt.Errorf("must be greater than 0")
	}
	return nil
}

// Init implements tea.Model
func (s *StudyScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements tea.Model
func (s *StudyScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
		s.syncDraftFromForm()
	}

	return s, cmd
}

// syncDraftFromForm parses form values back to the draft
func (s *StudyScreen) syncDraftFromForm() {
	if n, err := strconv.Atoi(s.timeoutStr); err == nil {
		s.study.CompletionTimeout = n
	}
	if n, err := strconv.Atoi(s.intervalStr); err == nil {
		s.study.CompletionCheckInterval = n
	}
	s.study.ExcludeModalities = parseModalities(s.modalitiesStr)
}

// parseModalities splits a comma separated modality list, trimming blanks
// and uppercasing the codes.
func parseModalities(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code != "" {
			out = append(out, code)
		}
	}
	return out
}

// View implements tea.Model
func (s *StudyScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}

	title := components.TitleStyle.Render("PIXIEVEIL WIZARD - Study Completion")

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
func (s *StudyScreen) Done() bool {
	return s.done
}

// Cancelled returns true if the user cancelled
func (s *StudyScreen) Cancelled() bool {
	return s.cancelled
}
