// ABOUTME: List view for relationships and reminders
// ABOUTME: Tabbed tables with keyboard navigation
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/kith/cadence"
	"github.com/harperreed/kith/models"
)

const dateLayout = "2006-01-02"

func (m Model) renderListView() string {
	var s strings.Builder

	// Title
	s.WriteString(titleStyle.Render("KITH"))
	s.WriteString("\n\n")

	// Tabs
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	// Table
	s.WriteString(m.renderTable())
	s.WriteString("\n")

	s.WriteString(m.renderStatus())
	s.WriteString("\n")

	// Help
	s.WriteString(m.renderListHelp())

	return s.String()
}

func (m Model) renderTabs() string {
	var rendered []string

	for i, tab := range tabNames {
		if Tab(i) == m.tab {
			rendered = append(rendered, tabActiveStyle.Render(tab))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(tab))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderTable() string {
	switch m.tab {
	case TabRelationships:
		return m.renderRelationshipsTable()
	case TabReminders:
		return m.renderRemindersTable()
	}
	return ""
}

func (m Model) renderRelationshipsTable() string {
	if len(m.relationships) == 0 {
		return helpStyle.Render("No relationships yet. Add one with `kith rel add <name>`.")
	}

	columns := []table.Column{
		{Title: "Name", Width: 26},
		{Title: "Last Contact", Width: 20},
		{Title: "Cadence", Width: 10},
		{Title: "Next", Width: 12},
		{Title: "Tags", Width: 20},
	}

	now := m.now()
	var rows []table.Row
	for _, rel := range m.relationships {
		rows = append(rows, table.Row{
			rel.ContactName,
			lastContact(rel, now),
			string(rel.ReminderFrequency),
			nextLabel(rel.NextReminderDate),
			strings.Join(rel.Tags, ","),
		})
	}

	return m.buildTable(columns, rows).View()
}

func (m Model) renderRemindersTable() string {
	if len(m.reminders) == 0 {
		return helpStyle.Render("No pending reminders.")
	}

	columns := []table.Column{
		{Title: "Due", Width: 18},
		{Title: "Contact", Width: 24},
		{Title: "Type", Width: 12},
		{Title: "Repeats", Width: 10},
		{Title: "Notes", Width: 24},
	}

	var rows []table.Row
	for _, rem := range m.reminders {
		due := rem.Date.Local().Format("2006-01-02 15:04")
		if rem.IsOverdue {
			due += " !"
		}
		rows = append(rows, table.Row{
			due,
			rem.ContactName,
			rem.Type,
			string(rem.Frequency),
			rem.Notes,
		})
	}

	return m.buildTable(columns, rows).View()
}

func (m Model) buildTable(columns []table.Column, rows []table.Row) table.Model {
	height := m.height - 10
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	// Set selected row
	if m.selectedRow < len(rows) {
		t.SetCursor(m.selectedRow)
	}
	return t
}

func (m Model) renderStatus() string {
	if m.err != nil {
		return errorStyle.Render("Error: " + m.err.Error())
	}
	if m.status != "" {
		return statusStyle.Render(m.status)
	}
	return ""
}

func (m Model) renderListHelp() string {
	help := []string{
		"↑/↓: Navigate",
		"Tab: Switch tabs",
		"Enter: View details",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := len(m.relationships)
	if m.tab == TabReminders {
		rows = len(m.reminders)
	}

	switch msg.String() {
	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case "down", "j":
		if m.selectedRow < rows-1 {
			m.selectedRow++
		}
	case "tab":
		m.tab = (m.tab + 1) % Tab(len(tabNames))
		m.selectedRow = 0
		m.status = ""
	case "enter":
		rel := m.relationshipAtCursor()
		if rel == nil {
			return m, nil
		}
		m.selected = rel
		m.activities = nil
		m.viewMode = ViewDetail
		m.status = ""
		return m, m.loadActivities(rel)
	}

	return m, nil
}

// relationshipAtCursor maps the highlighted row to a relationship. On the
// reminders tab that is the reminder's owner.
func (m Model) relationshipAtCursor() *models.Relationship {
	switch m.tab {
	case TabRelationships:
		if m.selectedRow < len(m.relationships) {
			return m.relationships[m.selectedRow]
		}
	case TabReminders:
		if m.selectedRow >= len(m.reminders) {
			return nil
		}
		rem := m.reminders[m.selectedRow]
		for _, rel := range m.relationships {
			if rel.ID == rem.RelationshipID || strings.EqualFold(rel.ContactName, rem.ContactName) {
				return rel
			}
		}
	}
	return nil
}

func lastContact(rel *models.Relationship, now time.Time) string {
	if rel.LastContactDate.IsZero() {
		return "-"
	}
	days := cadence.ElapsedDays(rel.LastContactDate, now)
	switch bucket := cadence.BucketForDays(days); bucket {
	case cadence.BucketToday, cadence.BucketYesterday:
		return string(bucket)
	default:
		return fmt.Sprintf("%dd ago", days)
	}
}

func nextLabel(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(dateLayout)
}
