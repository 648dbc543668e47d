// ABOUTME: Relationship detail view
// ABOUTME: Shows fields and the activity timeline
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/kith/models"
)

var (
	fieldLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Width(20)

	fieldValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

func (m Model) renderDetailView() string {
	var s strings.Builder

	if m.selected == nil {
		return "No relationship selected"
	}
	rel := m.selected

	// Title
	s.WriteString(titleStyle.Render(strings.ToUpper(rel.ContactName)))
	s.WriteString("\n\n")

	now := m.now()
	s.WriteString(m.renderField("Last Contact", lastContact(rel, now)+" via "+rel.LastContactMethod))
	s.WriteString(m.renderField("Cadence", string(rel.ReminderFrequency)))
	next := nextLabel(rel.NextReminderDate)
	if rel.NextReminderDate != nil && rel.NextReminderDate.Before(now) {
		next = overdueStyle.Render(next + " (overdue)")
	}
	s.WriteString(m.renderField("Next Check-in", next))
	s.WriteString(m.renderField("Tags", strings.Join(rel.Tags, ", ")))
	if len(rel.ContactData.Emails) > 0 {
		s.WriteString(m.renderField("Email", rel.ContactData.Emails[0]))
	}
	if len(rel.ContactData.Phones) > 0 {
		s.WriteString(m.renderField("Phone", rel.ContactData.Phones[0]))
	}
	if rel.ContactData.Company != "" {
		s.WriteString(m.renderField("Company", rel.ContactData.Company))
	}
	s.WriteString(m.renderField("Notes", rel.Notes))

	// Timeline
	s.WriteString("\n")
	s.WriteString(lipgloss.NewStyle().Bold(true).Render("TIMELINE"))
	s.WriteString("\n")
	if len(m.activities) == 0 {
		s.WriteString(helpStyle.Render("  nothing recorded yet"))
		s.WriteString("\n")
	}
	for _, act := range m.activities {
		s.WriteString("  • " + timelineEntry(act) + "\n")
	}

	s.WriteString("\n")
	s.WriteString(m.renderStatus())
	s.WriteString("\n")

	// Help
	s.WriteString(m.renderDetailHelp())

	return s.String()
}

func timelineEntry(act *models.Activity) string {
	day := act.CreatedAt.Local().Format(dateLayout)
	switch act.Type {
	case models.ActivityInteraction:
		if act.Date != nil {
			day = act.Date.Local().Format(dateLayout)
		}
		return fmt.Sprintf("[%s] %s %s", day, act.InteractionType, act.Description)
	case models.ActivityReminder:
		due := "-"
		if act.ReminderDate != nil {
			due = act.ReminderDate.Local().Format("2006-01-02 15:04")
		}
		state := "pending"
		if act.IsCompleted {
			state = "done"
		}
		return fmt.Sprintf("[%s] reminder %s (%s, %s) %s", due, act.ReminderType, act.Frequency, state, act.Description)
	default:
		return fmt.Sprintf("[%s] note %s", day, act.Content)
	}
}

func (m Model) renderField(label, value string) string {
	if value == "" {
		value = "-"
	}
	return fmt.Sprintf("%s %s\n",
		fieldLabelStyle.Render(label+":"),
		fieldValueStyle.Render(value))
}

func (m Model) renderDetailHelp() string {
	help := []string{
		"Esc: Back",
		"n: Add note",
		"c: Complete next reminder",
		"d: Delete",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.viewMode = ViewList
		m.status = ""
	case "n":
		m.viewMode = ViewNote
		m.noteInput.Reset()
		cmd := m.noteInput.Focus()
		return m, cmd
	case "c":
		act := nextPendingReminder(m.activities)
		if act == nil {
			m.status = "No pending reminders"
			return m, nil
		}
		return m, m.completeReminder(act.ID)
	case "d":
		m.viewMode = ViewConfirmDelete
	}

	return m, nil
}

// nextPendingReminder returns the earliest incomplete reminder activity.
func nextPendingReminder(acts []*models.Activity) *models.Activity {
	var next *models.Activity
	for _, act := range acts {
		if act.Type != models.ActivityReminder || act.IsCompleted || act.ReminderDate == nil {
			continue
		}
		if next == nil || act.ReminderDate.Before(*next.ReminderDate) {
			next = act
		}
	}
	return next
}

func (m Model) completeReminder(id string) tea.Cmd {
	rel := m.selected
	return func() tea.Msg {
		if _, _, err := m.svc.Activities.CompleteReminder(m.ctx, id); err != nil {
			return errMsg{err}
		}
		acts, err := m.svc.Activities.ListForRelationship(m.ctx, rel)
		if err != nil {
			return errMsg{err}
		}
		return activitiesMsg{relationshipID: rel.ID, activities: acts}
	}
}
