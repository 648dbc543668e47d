// ABOUTME: Tests for the terminal UI models
// ABOUTME: Drives Update with key and snapshot messages
package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testModel(t *testing.T) Model {
	t.Helper()
	m := NewModel(context.Background(), nil)
	m.now = func() time.Time { return fixedNow }
	next := fixedNow.AddDate(0, 0, 3)
	updated, _ := m.Update(relationshipsMsg{
		{ID: "r1", ContactName: "Jordan Lee", LastContactDate: fixedNow.AddDate(0, 0, -12), ReminderFrequency: models.FrequencyMonth, NextReminderDate: &next},
		{ID: "r2", ContactName: "Sam Rivera", LastContactDate: fixedNow, ReminderFrequency: models.FrequencyWeek},
	})
	return updated.(Model)
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(keyPress(k))
		m = next.(Model)
	}
	return m, cmd
}

func TestListNavigationStaysInBounds(t *testing.T) {
	m := testModel(t)

	m, _ = press(t, m, "up")
	assert.Equal(t, 0, m.selectedRow)

	m, _ = press(t, m, "down", "down", "j")
	assert.Equal(t, 1, m.selectedRow)

	m, _ = press(t, m, "k")
	assert.Equal(t, 0, m.selectedRow)
}

func TestListRendersRelationships(t *testing.T) {
	m := testModel(t)
	view := m.View()
	assert.Contains(t, view, "KITH")
	assert.Contains(t, view, "Jordan Lee")
	assert.Contains(t, view, "12d ago")
	assert.Contains(t, view, "Sam Rivera")
}

func TestEnterOpensDetailAndLoadsTimeline(t *testing.T) {
	m := testModel(t)

	m, cmd := press(t, m, "down", "enter")
	assert.Equal(t, ViewDetail, m.viewMode)
	require.NotNil(t, m.selected)
	assert.Equal(t, "r2", m.selected.ID)
	assert.NotNil(t, cmd)

	reminderDate := fixedNow.AddDate(0, 0, 2)
	next, _ := m.Update(activitiesMsg{relationshipID: "r2", activities: []*models.Activity{
		{ID: "a1", Type: models.ActivityNote, Content: "likes climbing", CreatedAt: fixedNow},
		{ID: "a2", Type: models.ActivityReminder, ReminderType: "follow_up", ReminderDate: &reminderDate, Frequency: models.FrequencyWeek},
	}})
	m = next.(Model)
	view := m.View()
	assert.Contains(t, view, "SAM RIVERA")
	assert.Contains(t, view, "likes climbing")
	assert.Contains(t, view, "pending")

	m, _ = press(t, m, "esc")
	assert.Equal(t, ViewList, m.viewMode)
}

func TestActivitiesForAnotherRelationshipAreIgnored(t *testing.T) {
	m := testModel(t)
	m, _ = press(t, m, "enter")

	next, _ := m.Update(activitiesMsg{relationshipID: "other", activities: []*models.Activity{{ID: "x"}}})
	assert.Empty(t, next.(Model).activities)
}

func TestSnapshotRefreshesOpenRelationship(t *testing.T) {
	m := testModel(t)
	m, _ = press(t, m, "enter")

	next, _ := m.Update(relationshipsMsg{{ID: "r1", ContactName: "Jordan Lee", Notes: "moved to Lisbon"}})
	m = next.(Model)
	assert.Equal(t, "moved to Lisbon", m.selected.Notes)
}

func TestShrinkingSnapshotClampsSelection(t *testing.T) {
	m := testModel(t)
	m, _ = press(t, m, "down")

	next, _ := m.Update(relationshipsMsg{{ID: "r1", ContactName: "Jordan Lee"}})
	assert.Equal(t, 0, next.(Model).selectedRow)
}

func TestTabSwitchesToReminders(t *testing.T) {
	m := testModel(t)
	next, _ := m.Update(remindersMsg{
		{ID: "rem-1", RelationshipID: "r1", ContactName: "Jordan Lee", Type: "follow_up", Date: fixedNow.AddDate(0, 0, 1), Frequency: models.FrequencyNever},
		{ID: "rem-2", RelationshipID: "r2", ContactName: "Sam Rivera", Type: "birthday", Date: fixedNow.AddDate(0, 0, 2), IsCompleted: true},
	})
	m = next.(Model)
	require.Len(t, m.reminders, 1)

	m, _ = press(t, m, "tab")
	assert.Equal(t, TabReminders, m.tab)
	assert.Contains(t, m.View(), "follow_up")

	m, _ = press(t, m, "enter")
	assert.Equal(t, ViewDetail, m.viewMode)
	assert.Equal(t, "r1", m.selected.ID)
}

func TestDeleteConfirmation(t *testing.T) {
	m := testModel(t)
	m, _ = press(t, m, "enter", "d")
	assert.Equal(t, ViewConfirmDelete, m.viewMode)
	assert.Contains(t, m.View(), "Delete Jordan Lee?")

	cancelled, _ := press(t, m, "n")
	assert.Equal(t, ViewDetail, cancelled.viewMode)

	_, cmd := press(t, m, "y")
	assert.NotNil(t, cmd)

	next, _ := m.Update(deletedMsg{name: "Jordan Lee"})
	m = next.(Model)
	assert.Equal(t, ViewList, m.viewMode)
	assert.Nil(t, m.selected)
	assert.Equal(t, "Deleted Jordan Lee", m.status)
}

func TestDeleteFailureReturnsToDetail(t *testing.T) {
	m := testModel(t)
	m, _ = press(t, m, "enter", "d")

	next, _ := m.Update(errMsg{assert.AnError})
	m = next.(Model)
	assert.Equal(t, ViewDetail, m.viewMode)
	assert.Contains(t, m.View(), assert.AnError.Error())
}

func TestNoteInputCapturesKeys(t *testing.T) {
	m := testModel(t)
	m, _ = press(t, m, "enter", "n")
	assert.Equal(t, ViewNote, m.viewMode)

	// "q" is text here, not quit.
	m, _ = press(t, m, "q", "u", "i", "z")
	assert.Equal(t, "quiz", m.noteInput.Value())

	_, cmd := press(t, m, "enter")
	assert.NotNil(t, cmd)

	m, _ = press(t, m, "esc")
	assert.Equal(t, ViewDetail, m.viewMode)
}

func TestEmptyNoteIsDiscarded(t *testing.T) {
	m := testModel(t)
	m, _ = press(t, m, "enter", "n")

	m, cmd := press(t, m, "enter")
	assert.Nil(t, cmd)
	assert.Equal(t, ViewDetail, m.viewMode)
}

func TestCompleteWithoutPendingReminder(t *testing.T) {
	m := testModel(t)
	m, _ = press(t, m, "enter")

	m, cmd := press(t, m, "c")
	assert.Nil(t, cmd)
	assert.Equal(t, "No pending reminders", m.status)
}

func TestNextPendingReminder(t *testing.T) {
	early := fixedNow.AddDate(0, 0, 1)
	late := fixedNow.AddDate(0, 0, 5)
	acts := []*models.Activity{
		{ID: "done", Type: models.ActivityReminder, ReminderDate: &early, IsCompleted: true},
		{ID: "late", Type: models.ActivityReminder, ReminderDate: &late},
		{ID: "note", Type: models.ActivityNote},
		{ID: "early", Type: models.ActivityReminder, ReminderDate: &early},
	}
	require.NotNil(t, nextPendingReminder(acts))
	assert.Equal(t, "early", nextPendingReminder(acts).ID)
	assert.Nil(t, nextPendingReminder(acts[:1]))
}

func TestChooser(t *testing.T) {
	collision := &crm.CollisionError{
		Name:     "Jordan Lee",
		Existing: &models.Relationship{ID: "r1", ContactName: "Jordan Lee"},
		ForkName: "Jordan Lee (2026)",
	}

	tests := []struct {
		name string
		keys []tea.KeyMsg
		want crm.Resolution
	}{
		{"enter picks first", []tea.KeyMsg{keyPress("enter")}, crm.ResolveOpenExisting},
		{"move down to fork", []tea.KeyMsg{keyPress("down"), keyPress("enter")}, crm.ResolveFork},
		{"shortcut fork", []tea.KeyMsg{keyPress("f")}, crm.ResolveFork},
		{"shortcut edit", []tea.KeyMsg{keyPress("e")}, crm.ResolveOpenExisting},
		{"escape cancels", []tea.KeyMsg{keyPress("esc")}, crm.ResolveNone},
		{"cursor stops at cancel", []tea.KeyMsg{keyPress("down"), keyPress("down"), keyPress("down"), keyPress("enter")}, crm.ResolveNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m tea.Model = newChooser(collision)
			assert.Contains(t, m.View(), "Jordan Lee (2026)")
			for _, k := range tt.keys {
				m, _ = m.Update(k)
			}
			final := m.(chooserModel)
			assert.True(t, final.done)
			assert.Equal(t, tt.want, final.result)
		})
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"y", true},
		{"Y", true},
		{"n", false},
		{"enter", false},
		{"esc", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			var m tea.Model = confirmModel{question: "Delete?"}
			assert.Contains(t, m.View(), "[y/N]")
			m, cmd := m.Update(keyPress(tt.key))
			assert.NotNil(t, cmd)
			assert.True(t, m.(confirmModel).done)
			assert.Equal(t, tt.want, m.(confirmModel).answer)
		})
	}
}
