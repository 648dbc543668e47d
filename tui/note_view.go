// ABOUTME: Quick note input for the selected relationship
// ABOUTME: Saves through the service as a note activity
package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/kith/models"
)

func (m Model) renderNoteView() string {
	var s strings.Builder

	name := ""
	if m.selected != nil {
		name = m.selected.ContactName
	}
	s.WriteString(titleStyle.Render("NOTE FOR " + strings.ToUpper(name)))
	s.WriteString("\n\n")
	s.WriteString(m.noteInput.View())
	s.WriteString("\n\n")
	s.WriteString(m.renderStatus())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("Enter: Save • Esc: Cancel"))

	return s.String()
}

func (m Model) handleNoteKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.noteInput.Blur()
		m.viewMode = ViewDetail
		return m, nil
	case "enter":
		content := strings.TrimSpace(m.noteInput.Value())
		if content == "" || m.selected == nil {
			m.noteInput.Blur()
			m.viewMode = ViewDetail
			return m, nil
		}
		m.noteInput.Blur()
		return m, m.saveNote(m.selected.ContactName, content)
	}

	var cmd tea.Cmd
	m.noteInput, cmd = m.noteInput.Update(msg)
	return m, cmd
}

func (m Model) saveNote(contactName, content string) tea.Cmd {
	return func() tea.Msg {
		act := &models.Activity{
			Type:        models.ActivityNote,
			ContactName: contactName,
			Content:     content,
		}
		created, warns, err := m.svc.AddActivity(m.ctx, act, nil)
		if err != nil {
			return errMsg{err}
		}
		return noteSavedMsg{activity: created, warnings: warns}
	}
}
