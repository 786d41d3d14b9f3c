// Package wizard provides an interactive TUI that builds a settings file.
package wizard

import (
	"fmt"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/components"
	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/screens"
	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/types"
)

// Phase represents the current phase/screen of the wizard.
type Phase int

const (
	PhaseServer Phase = iota
	PhaseStorage
	PhaseStudy
	PhaseProfile
	PhaseSummary
	PhaseSavePath
	PhaseComplete
	PhaseError
)

// Wizard is the main orchestrator for the wizard interface.
type Wizard struct {
	draft *types.Draft

	// Current phase
	phase Phase

	// Screen instances
	serverScreen     *screens.ServerScreen
	storageScreen    *screens.StorageScreen
	studyScreen      *screens.StudyScreen
	profileScreen    *screens.ProfileScreen
	summaryScreen    *screens.SummaryScreen
	completionScreen *screens.CompletionScreen
	errorScreen      *screens.ErrorScreen

	// Save path form
	savePathForm *huh.Form
	settingsPath string

	// Window size
	width  int
	height int

	// Final state
	cancelled bool
	finished  bool
	err       error
}

// NewWizard creates a new wizard with default or loaded draft settings.
func NewWizard(draft *types.Draft) *Wizard {
	if draft == nil {
		draft = &types.Draft{
			Server: types.ServerDraft{
				IP:        "0.0.0.0",
				Port:      11112,
				AETitle:   "PIXIEVEIL",
				HTTPIP:    "0.0.0.0",
				HTTPPort:  8080,
				LogLevel:  "info",
				LogFormat: "text",
			},
			Storage: types.StorageDraft{
				BasePath: "./storage",
			},
			Study: types.StudyDraft{
				CompletionTimeout:       120,
				CompletionCheckInterval: 30,
			},
		}
	}

	w := &Wizard{
		draft: draft,
		phase: PhaseServer,
	}

	// Initialize the first screen
	w.serverScreen = screens.NewServerScreen(&draft.Server)

	return w
}

// Init implements tea.Model.
func (w *Wizard) Init() tea.Cmd {
	return w.serverScreen.Init()
}

// Update implements tea.Model.
func (w *Wizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle window size for all phases
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		w.width = wsm.Width
		w.height = wsm.Height
	}

	switch w.phase {
	case PhaseServer:
		return w.updateServer(msg)
	case PhaseStorage:
		return w.updateStorage(msg)
	case PhaseStudy:
		return w.updateStudy(msg)
	case PhaseProfile:
		return w.updateProfile(msg)
	case PhaseSummary:
		return w.updateSummary(msg)
	case PhaseSavePath:
		return w.updateSavePath(msg)
	case PhaseComplete:
		return w.updateComplete(msg)
	case PhaseError:
		return w.updateError(msg)
	}

	return w, nil
}

// View implements tea.Model.
func (w *Wizard) View() string {
	switch w.phase {
	case PhaseServer:
		return w.serverScreen.View()
	case PhaseStorage:
		return w.storageScreen.View()
	case PhaseStudy:
		return w.studyScreen.View()
	case PhaseProfile:
		return w.profileScreen.View()
	case PhaseSummary:
		return w.summaryScreen.View()
	case PhaseSavePath:
		return w.viewSavePath()
	case PhaseComplete:
		return w.completionScreen.View()
	case PhaseError:
		return w.errorScreen.View()
	}

	return ""
}

// updateServer handles updates in the server configuration phase.
func (w *Wizard) updateServer(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := w.serverScreen.Update(msg)
	if ss, ok := model.(*screens.ServerScreen); ok {
		w.serverScreen = ss
	}

	if w.serverScreen.Cancelled() {
		w.cancelled = true
		return w, tea.Quit
	}

	if w.serverScreen.Done() {
		return w.transitionToStorage()
	}

	return w, cmd
}

// transitionToStorage moves to the storage screen.
func (w *Wizard) transitionToStorage() (tea.Model, tea.Cmd) {
	w.phase = PhaseStorage
	w.storageScreen = screens.NewStorageScreen(&w.draft.Storage)
	return w, w.storageScreen.Init()
}

// updateStorage handles updates in the storage configuration phase.
func (w *Wizard) updateStorage(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := w.storageScreen.Update(msg)
	if ss, ok := model.(*screens.StorageScreen); ok {
		w.storageScreen = ss
	}

	if w.storageScreen.Cancelled() {
		w.cancelled = true
		return w, tea.Quit
	}

	if w.storageScreen.Done() {
		return w.transitionToStudy()
	}

	return w, cmd
}

// transitionToStudy moves to the study completion screen.
func (w *Wizard) transitionToStudy() (tea.Model, tea.Cmd) {
	w.phase = PhaseStudy
	w.studyScreen = screens.NewStudyScreen(&w.draft.Study)
	return w, w.studyScreen.Init()
}

// updateStudy handles updates in the study configuration phase.
func (w *Wizard) updateStudy(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := w.studyScreen.Update(msg)
	if ss, ok := model.(*screens.StudyScreen); ok {
		w.studyScreen = ss
	}

	if w.studyScreen.Cancelled() {
		w.cancelled = true
		return w, tea.Quit
	}

	if w.studyScreen.Done() {
		return w.transitionToProfile()
	}

	return w, cmd
}

// transitionToProfile moves to the anonymisation screen.
func (w *Wizard) transitionToProfile() (tea.Model, tea.Cmd) {
	w.phase = PhaseProfile
	w.profileScreen = screens.NewProfileScreen(&w.draft.Profile)
	return w, w.profileScreen.Init()
}

// updateProfile handles updates in the anonymisation phase.
func (w *Wizard) updateProfile(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := w.profileScreen.Update(msg)
	if ps, ok := model.(*screens.ProfileScreen); ok {
		w.profileScreen = ps
	}

	if w.profileScreen.Cancelled() {
		w.cancelled = true
		return w, tea.Quit
	}

	if w.profileScreen.Done() {
		return w.transitionToSummary()
	}

	return w, cmd
}

// transitionToSummary moves to the summary screen.
func (w *Wizard) transitionToSummary() (tea.Model, tea.Cmd) {
	w.phase = PhaseSummary
	w.summaryScreen = screens.NewSummaryScreen(w.draft)
	return w, w.summaryScreen.Init()
}

// updateSummary handles updates in the summary phase.
func (w *Wizard) updateSummary(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := w.summaryScreen.Update(msg)
	if ss, ok := model.(*screens.SummaryScreen); ok {
		w.summaryScreen = ss
	}

	if w.summaryScreen.Cancelled() {
		w.cancelled = true
		return w, tea.Quit
	}

	if w.summaryScreen.Done() {
		switch w.summaryScreen.Action() {
		case screens.SummaryActionBack:
			// Go back to the first screen
			w.phase = PhaseServer
			w.serverScreen = screens.NewServerScreen(&w.draft.Server)
			return w, w.serverScreen.Init()

		case screens.SummaryActionSave:
			return w.transitionToSavePath()

		case screens.SummaryActionCancel:
			w.cancelled = true
			return w, tea.Quit
		}
	}

	return w, cmd
}

// transitionToSavePath shows the save path dialog.
func (w *Wizard) transitionToSavePath() (tea.Model, tea.Cmd) {
	w.phase = PhaseSavePath
	if w.settingsPath == "" {
		w.settingsPath = "settings.yaml"
	}

	w.savePathForm = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("settings_path").
				Title("Save settings to").
				Description("Enter the path for the YAML settings file").
				Value(&w.settingsPath).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("path is required")
					}
					return nil
				}),
		),
	).WithShowHelp(false)

	return w, w.savePathForm.Init()
}

// updateSavePath handles updates in the save path phase.
func (w *Wizard) updateSavePath(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			// Go back to summary
			return w.transitionToSummary()
		case "ctrl+c":
			w.cancelled = true
			return w, tea.Quit
		}
	}

	form, cmd := w.savePathForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		w.savePathForm = f
	}

	if w.savePathForm.State == huh.StateCompleted {
		if err := SaveToYAML(w.draft, w.settingsPath); err != nil {
			w.err = err
			w.phase = PhaseError
			w.errorScreen = screens.NewErrorScreen(err)
			return w, nil
		}

		w.phase = PhaseComplete
		w.completionScreen = screens.NewCompletionScreen(w.settingsPath)
		return w, nil
	}

	return w, cmd
}

// viewSavePath renders the save path dialog.
func (w *Wizard) viewSavePath() string {
	title := components.TitleStyle.Render("Save Settings")

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		w.savePathForm.View(),
		"",
		"Enter: Save | Esc: Back",
	)

	return content
}

// updateComplete handles updates in the completion phase.
func (w *Wizard) updateComplete(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := w.completionScreen.Update(msg)
	if cs, ok := model.(*screens.CompletionScreen); ok {
		w.completionScreen = cs
	}

	if w.completionScreen.Done() {
		w.finished = true
		return w, tea.Quit
	}

	return w, cmd
}

// updateError handles updates in the error phase.
func (w *Wizard) updateError(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := w.errorScreen.Update(msg)
	if es, ok := model.(*screens.ErrorScreen); ok {
		w.errorScreen = es
	}

	if w.errorScreen.Done() {
		w.finished = true
		return w, tea.Quit
	}

	return w, cmd
}

// Run starts the interactive wizard that builds a settings file. If
// fromConfig is provided, the wizard is pre-filled from that file.
func Run(fromConfig string) error {
	var draft *types.Draft

	// Load settings if provided
	if fromConfig != "" {
		absPath, err := filepath.Abs(fromConfig)
		if err != nil {
			return fmt.Errorf("resolving settings path: %w", err)
		}

		loaded, err := LoadFromYAML(absPath)
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}
		draft = loaded
	}

	// Create and run the wizard
	wizard := NewWizard(draft)
	p := tea.NewProgram(wizard, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("running wizard: %w", err)
	}

	// Check final state
	if w, ok := finalModel.(*Wizard); ok {
		if w.cancelled {
			return nil // User cancelled, not an error
		}
		if w.err != nil {
			return w.err
		}
	}

	return nil
}
