package screens

import (
	"fmt"
	"net"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/components"
	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/types"
)

// ServerScreen is the first wizard screen, covering the DICOM listener,
// the dashboard socket and the log output.
type ServerScreen struct {
	form      *huh.Form
	helpPanel *components.HelpPanel
	server    *types.ServerDraft
	width     int
	height    int
	done      bool
	cancelled bool

	// String versions for form binding (huh binds to strings)
	dicomPortStr string
	httpPortStr  string
}

// NewServerScreen creates a new server configuration screen
func NewServerScreen(server *types.ServerDraft) *ServerScreen {
	// Set defaults if not provided
	if server.IP == "" {
		server.IP = "0.0.0.0"
	}
	if server.Port == 0 {
		server.Port = 11112
	}
	if server.AETitle == "" {
		server.AETitle = "PIXIEVEIL"
	}
	if server.HTTPIP == "" {
		server.HTTPIP = "0.0.0.0"
	}
	if server.HTTPPort == 0 {
		server.HTTPPort = 8080
	}
	if server.LogLevel == "" {
		server.LogLevel = "info"
	}
	if server.LogFormat == "" {
		server.LogFormat = "text"
	}

	s := &ServerScreen{
		helpPanel:    components.NewHelpPanel(),
		server:       server,
		dicomPortStr: strconv.Itoa(server.Port),
		httpPortStr:  strconv.Itoa(server.HTTPPort),
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("dicom_ip").
				Title("Listen Address").
				Value(&server.IP).
				Validate(validateIP),

			huh.NewInput().
				Key("dicom_port").
				Title("DICOM Port").
				Value(&s.dicomPortStr).
				Validate(validatePort),

			huh.NewInput().
				Key("ae_title").
				Title("AE Title").
				Value(&server.AETitle).
				Validate(validateAETitle),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("http_ip").
				Title("Dashboard Address").
				Value(&server.HTTPIP).
				Validate(validateIP),

			huh.NewInput().
				Key("http_port").
				Title("Dashboard Port").
				Value(&s.httpPortStr).
				Validate(validatePort),

			huh.NewSelect[string]().
				Key("log_level").
				Title("Log Level").
				Options(
					huh.NewOption("debug - everything", "debug"),
					huh.NewOption("info - lifecycle and studies", "info"),
					huh.NewOption("warning - problems only", "warning"),
					huh.NewOption("error - failures only", "error"),
				).
				Value(&server.LogLevel),

			huh.NewSelect[string]().
				Key("log_format").
				Title("Log Format").
				Options(
					huh.NewOption("text - terminal friendly", "text"),
					huh.NewOption("json - for log collectors", "json"),
				).
				Value(&server.LogFormat),
		),
	).WithShowHelp(false).WithShowErrors(true)

	return s
}

func validateIP(s string) error {
	if net.ParseIP(s) == nil {
		return fmt.Errorf("must be an IP address")
	}
	return nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n <= 0 || n > 65535 {
		return fmt.Errorf("must be between 1 and 65535")
	}
	return nil
}

func validateAETitle(s string) error {
	if s == "" {
		return fmt.Errorf("AE title is required")
	}
	if len(s) > 16 {
		return fmt.Errorf("AE title exceeds 16 characters")
	}
	return nil
}

// Init implements tea.Model
func (s *ServerScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements tea.Model
func (s *ServerScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
func (s *ServerScreen) syncDraftFromForm() {
	if n, err := strconv.Atoi(s.dicomPortStr); err == nil {
		s.server.Port = n
	}
	if n, err := strconv.Atoi(s.httpPortStr); err == nil {
		s.server.HTTPPort = n
	}
}

// View implements tea.Model
func (s *ServerScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}

	title := components.TitleStyle.Render("PIXIEVEIL WIZARD - Service Endpoints")

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
func (s *ServerScreen) Done() bool {
	return s.done
}

// Cancelled returns true if the user cancelled
func (s *ServerScreen) Cancelled() bool {
	return s.cancelled
}
