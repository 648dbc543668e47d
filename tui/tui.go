// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Full-screen browser for relationships, their timelines and reminders
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/models"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
	ViewNote
	ViewConfirmDelete
)

// Tab selects the collection shown in the list view
type Tab int

const (
	TabRelationships Tab = iota
	TabReminders
)

var tabNames = []string{"Relationships", "Reminders"}

// Messages carrying data into the model. Snapshots arrive both from the
// initial load and from store subscriptions.
type (
	relationshipsMsg []*models.Relationship
	remindersMsg     []*models.Reminder
	activitiesMsg    struct {
		relationshipID string
		activities     []*models.Activity
	}
	deletedMsg struct {
		name     string
		warnings crm.Warnings
	}
	noteSavedMsg struct {
		activity *models.Activity
		warnings crm.Warnings
	}
	errMsg struct{ err error }
)

// Model is the main bubbletea model
type Model struct {
	svc *crm.Service
	ctx context.Context
	now func() time.Time

	viewMode ViewMode
	tab      Tab

	relationships []*models.Relationship
	reminders     []*models.Reminder
	selectedRow   int

	// Detail view state
	selected   *models.Relationship
	activities []*models.Activity

	// Note input state
	noteInput textinput.Model

	status string
	width  int
	height int
	err    error
}

// NewModel creates a new TUI model
func NewModel(ctx context.Context, svc *crm.Service) Model {
	input := textinput.New()
	input.Placeholder = "What did you talk about?"
	input.CharLimit = 500
	input.Width = 60

	return Model{
		svc:       svc,
		ctx:       ctx,
		now:       time.Now,
		viewMode:  ViewList,
		tab:       TabRelationships,
		noteInput: input,
		width:     80,
		height:    24,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadRelationships, m.loadReminders)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case relationshipsMsg:
		m.relationships = msg
		m.clampSelection()
		m.refreshSelected()
		return m, nil
	case remindersMsg:
		m.reminders = m.reminders[:0:0]
		for _, rem := range msg {
			if !rem.IsCompleted {
				m.reminders = append(m.reminders, rem)
			}
		}
		m.clampSelection()
		return m, nil
	case activitiesMsg:
		if m.selected != nil && m.selected.ID == msg.relationshipID {
			m.activities = msg.activities
		}
		return m, nil
	case deletedMsg:
		m.status = "Deleted " + msg.name
		if len(msg.warnings) > 0 {
			m.status += " (with warnings: " + msg.warnings.String() + ")"
		}
		m.selected = nil
		m.activities = nil
		m.viewMode = ViewList
		return m, m.loadRelationships
	case noteSavedMsg:
		m.status = "Note saved"
		if len(msg.warnings) > 0 {
			m.status += " (with warnings: " + msg.warnings.String() + ")"
		}
		m.viewMode = ViewDetail
		return m, m.loadActivities(m.selected)
	case errMsg:
		m.err = msg.err
		if m.viewMode == ViewConfirmDelete {
			m.viewMode = ViewDetail
		}
		return m, nil
	}

	if m.viewMode == ViewNote {
		var cmd tea.Cmd
		m.noteInput, cmd = m.noteInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewList:
		return m.renderListView()
	case ViewDetail:
		return m.renderDetailView()
	case ViewNote:
		return m.renderNoteView()
	case ViewConfirmDelete:
		return m.renderConfirmDeleteView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	// The note input owns every other key while it is focused.
	if m.viewMode == ViewNote {
		return m.handleNoteKeys(msg)
	}
	if msg.String() == "q" {
		return m, tea.Quit
	}

	m.err = nil
	switch m.viewMode {
	case ViewList:
		return m.handleListKeys(msg)
	case ViewDetail:
		return m.handleDetailKeys(msg)
	case ViewConfirmDelete:
		return m.handleConfirmDeleteKeys(msg)
	}

	return m, nil
}

func (m *Model) clampSelection() {
	n := len(m.relationships)
	if m.tab == TabReminders {
		n = len(m.reminders)
	}
	if m.selectedRow >= n {
		m.selectedRow = n - 1
	}
	if m.selectedRow < 0 {
		m.selectedRow = 0
	}
}

// refreshSelected swaps the open relationship for its latest snapshot.
func (m *Model) refreshSelected() {
	if m.selected == nil {
		return
	}
	for _, rel := range m.relationships {
		if rel.ID == m.selected.ID {
			m.selected = rel
			return
		}
	}
}

func (m Model) loadRelationships() tea.Msg {
	rels, err := m.svc.Relationships.List(m.ctx)
	if err != nil {
		return errMsg{err}
	}
	return relationshipsMsg(rels)
}

func (m Model) loadReminders() tea.Msg {
	rems, err := m.svc.Reminders.List(m.ctx)
	if err != nil {
		return errMsg{err}
	}
	return remindersMsg(rems)
}

func (m Model) loadActivities(rel *models.Relationship) tea.Cmd {
	if rel == nil {
		return nil
	}
	return func() tea.Msg {
		acts, err := m.svc.Activities.ListForRelationship(m.ctx, rel)
		if err != nil {
			return errMsg{err}
		}
		return activitiesMsg{relationshipID: rel.ID, activities: acts}
	}
}

// Run starts the full-screen interface and streams store changes into it
// until the user quits.
func Run(ctx context.Context, svc *crm.Service) error {
	p := tea.NewProgram(NewModel(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx))

	stopRels, err := svc.Relationships.Subscribe(ctx, func(rels []*models.Relationship) {
		p.Send(relationshipsMsg(rels))
	})
	if err != nil {
		return err
	}
	defer stopRels()

	stopRems, err := svc.Reminders.Subscribe(ctx, func(rems []*models.Reminder) {
		p.Send(remindersMsg(rems))
	})
	if err != nil {
		return err
	}
	defer stopRems()

	_, err = p.Run()
	return err
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	overdueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)
