package screens

import (
	"fmt"
	"net/url"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/components"
	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/types"
)

// StorageScreen configures the local roots and the upload endpoint.
type StorageScreen struct {
	form      *huh.Form
	helpPanel *components.HelpPanel
	storage   *types.StorageDraft
	width     int
	height    int
	done      bool
	cancelled bool
}

// NewStorageScreen creates a new storage configuration screen
func NewStorageScreen(storage *types.StorageDraft) *StorageScreen {
	if storage.BasePath == "" {
		storage.BasePath = "./storage"
	}

	s := &StorageScreen{
		helpPanel: components.NewHelpPanel(),
		storage:   storage,
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("base_path").
				Title("Storage Root").
				Value(&storage.BasePath).
				Validate(func(str string) error {
					if str == "" {
						return fmt.Errorf("storage root is required")
					}
					return nil
				}),

			huh.NewInput().
				Key("temp_path").
				Title("Temp Directory").
				Placeholder("blank = <storage root>/temp").
				Value(&storage.TempPath),

			huh.NewInput().
				Key("remote_url").
				Title("Upload Endpoint").
				Placeholder("blank = uploads disabled").
				Value(&storage.RemoteURL).
				Validate(validateRemoteURL),

			huh.NewInput().
				Key("auth_token").
				Title("Auth Token").
				EchoMode(huh.EchoModePassword).
				Value(&storage.AuthToken),
		),
	).WithShowHelp(false).WithShowErrors(true)

	return s
}

func validateRemoteURL(s string) error {
	if s == "" {
		return nil
	}
	parsed, err := url.Parse(s)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("must be an absolute URL, e.g. https://archive.example.com")
	}
	return nil
}

// Init implements tea.Model
func (s *StorageScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements tea.Model
func (s *StorageScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
func (s *StorageScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}

	title := components.TitleStyle.Render("PIXIEVEIL WIZARD - Storage and Upload")

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
func (s *StorageScreen) Done() bool {
	return s.done
}

// Cancelled returns true if the user cancelled
func (s *StorageScreen) Cancelled() bool {
	return s.cancelled
}
