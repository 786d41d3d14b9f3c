package screens

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/components"
	"github.com/mrsinham/pixieveil/cmd/pixieveil/wizard/types"
)

// SummaryAction represents the action selected on the summary screen
type SummaryAction int

const (
	// SummaryActionSave writes the settings file
	SummaryActionSave SummaryAction = iota
	// SummaryActionBack returns to the first screen
	SummaryActionBack
	// SummaryActionCancel exits the wizard
	SummaryActionCancel
)

const (
	actionSave   = "save"
	actionBack   = "back"
	actionCancel = "cancel"
)

var (
	summaryPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("63")).
				Padding(1, 2)

	summaryTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("63")).
				Bold(true).
				MarginBottom(1)

	summaryLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))

	summaryValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Bold(true)

	treeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	treeFolderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	treeNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	cliCommandStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)

// SummaryScreen displays the drafted settings before they are saved
type SummaryScreen struct {
	form      *huh.Form
	draft     *types.Draft
	action    string
	done      bool
	cancelled bool
	width     int
	height    int
}

// NewSummaryScreen creates a new summary screen
func NewSummaryScreen(draft *types.Draft) *SummaryScreen {
	s := &SummaryScreen{
		draft:  draft,
		action: actionSave, // Default action
	}

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("action").
				Title("Select an action").
				Options(
					huh.NewOption("Save settings file", actionSave),
					huh.NewOption("Back to edit", actionBack),
					huh.NewOption("Cancel and exit", actionCancel),
				).
				Value(&s.action),
		),
	).WithShowHelp(false)

	return s
}

// Init implements tea.Model
func (s *SummaryScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements tea.Model
func (s *SummaryScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			s.cancelled = true
			return s, tea.Quit
		case "esc":
			// Esc goes back instead of cancelling
			s.action = actionBack
			s.done = true
			return s, nil
		}
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.done = true
	}

	return s, cmd
}

// View implements tea.Model
func (s *SummaryScreen) View() string {
	if s.cancelled {
		return "Cancelled.\n"
	}

	title := components.TitleStyle.Render("SUMMARY - Review Settings")

	// Left panel: the drafted settings
	leftPanel := s.buildSettingsSummary()

	// Right panel: how the storage root will look
	rightPanel := s.buildLayoutPreview()

	panelWidth := 45
	leftStyled := summaryPanelStyle.Width(panelWidth).Render(leftPanel)
	rightStyled := summaryPanelStyle.Width(panelWidth).Render(rightPanel)
	panels := lipgloss.JoinHorizontal(lipgloss.Top, leftStyled, "  ", rightStyled)

	cliSection := s.buildServiceCommand()

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		panels,
		"",
		cliSection,
		"",
		s.form.View(),
		"",
		"Enter: Select action | Esc: Back",
	)

	return content
}

// buildSettingsSummary builds the left panel listing the drafted values
func (s *SummaryScreen) buildSettingsSummary() string {
	var sb strings.Builder

	sb.WriteString(summaryTitleStyle.Render("Settings Summary"))
	sb.WriteString("\n\n")

	d := s.draft

	uploads := "disabled"
	if d.Storage.RemoteURL != "" {
		uploads = d.Storage.RemoteURL
	}

	tempPath := d.Storage.TempPath
	if tempPath == "" {
		tempPath = d.Storage.BasePath + "/temp"
	}

	excluded := "none"
	if len(d.Study.ExcludeModalities) > 0 {
		excluded = strings.Join(d.Study.ExcludeModalities, ", ")
	}

	filter := "all images"
	if d.Study.KeepOriginalSeries {
		filter = "ORIGINAL images only"
	}

	params := []struct {
		label string
		value string
	}{
		{"DICOM Listener", fmt.Sprintf("%s:%d", d.Server.IP, d.Server.Port)},
		{"AE Title", d.Server.AETitle},
		{"Dashboard", fmt.Sprintf("%s:%d", d.Server.HTTPIP, d.Server.HTTPPort)},
		{"Storage Root", d.Storage.BasePath},
		{"Temp Directory", tempPath},
		{"Uploads", uploads},
		{"Completion Timeout", fmt.Sprintf("%ds", d.Study.CompletionTimeout)},
		{"Check Interval", fmt.Sprintf("%ds", d.Study.CompletionCheckInterval)},
		{"Excluded Modalities", excluded},
		{"Series Filter", filter},
		{"Profile", profileSummary(d.Profile)},
	}

	for _, p := range params {
		sb.WriteString(summaryLabelStyle.Render(p.label + ": "))
		sb.WriteString(summaryValueStyle.Render(p.value))
		sb.WriteString("\n")
	}

	return sb.String()
}

// profileSummary names the profile and the switches that deviate from it
func profileSummary(p types.ProfileDraft) string {
	var enabled []string
	if p.PixelBlackout {
		enabled = append(enabled, "pixel blackout")
	}
	if p.KeepPrivateTags {
		enabled = append(enabled, "private tags kept")
	}
	if p.RetainStudyDate {
		enabled = append(enabled, "study date kept")
	}
	if len(enabled) == 0 {
		return "built-in default"
	}
	return "custom (" + strings.Join(enabled, ", ") + ")"
}

// layoutNode is one row of the storage layout preview
type layoutNode struct {
	prefix string
	dir    bool
	name   string
	note   string
}

// buildLayoutPreview builds the right panel showing how studies land
// under the storage root
func (s *SummaryScreen) buildLayoutPreview() string {
	var sb strings.Builder

	sb.WriteString(summaryTitleStyle.Render("Storage Layout"))
	sb.WriteString("\n\n")

	root := s.draft.Storage.BasePath
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}

	nodes := []layoutNode{
		{"", true, root, ""},
		{"├──", true, "0001/", "first received study"},
		{"│   ├──", true, "0001/", "first series"},
		{"│   │   ├──", false, "0001.dcm", ""},
		{"│   │   └──", false, "0002.dcm", ""},
		{"│   └──", true, "0002/", ""},
		{"│       └──", false, "0001.dcm", ""},
		{"├──", true, "0002/", "next study"},
		{"├──", false, "0001.zip", "completed archive"},
	}
	if s.draft.Storage.TempPath == "" {
		nodes = append(nodes, layoutNode{"└──", true, "temp/", "in-flight receives"})
	} else {
		// A dedicated temp path lives outside the storage root
		nodes[len(nodes)-1].prefix = "└──"
	}

	folder := treeFolderStyle.Render("[DIR]")
	for _, n := range nodes {
		if n.prefix != "" {
			sb.WriteString(treeStyle.Render(n.prefix))
			sb.WriteString(" ")
		}
		if n.dir {
			sb.WriteString(folder)
			sb.WriteString(" ")
		}
		sb.WriteString(treeNameStyle.Render(n.name))
		if n.note != "" {
			sb.WriteString(treeStyle.Render("  " + n.note))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// buildServiceCommand shows how to start the service with the saved file
func (s *SummaryScreen) buildServiceCommand() string {
	var sb strings.Builder

	sb.WriteString(summaryTitleStyle.Render("Run the Service"))
	sb.WriteString("\n\n")
	sb.WriteString(cliCommandStyle.Render("pixieveil --config settings.yaml"))

	return sb.String()
}

// Done returns true if the form was completed
func (s *SummaryScreen) Done() bool {
	return s.done
}

// Cancelled returns true if the user cancelled
func (s *SummaryScreen) Cancelled() bool {
	return s.cancelled
}

// Action returns the selected action
func (s *SummaryScreen) Action() SummaryAction {
	switch s.action {
	case actionBack:
		return SummaryActionBack
	case actionCancel:
		return SummaryActionCancel
	default:
		return SummaryActionSave
	}
}
