// ABOUTME: Tests for the MCP tool, resource and prompt handlers
// ABOUTME: Runs handlers against a real sqlite store in a temp dir
package handlers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/harperreed/kith/contacts"
	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/identity"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/notify"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	svc        *crm.Service
	dispatcher *notify.LocalDispatcher
}

func setupTestService(t *testing.T) *testEnv {
	t.Helper()
	store, err := db.OpenSQLiteStore(filepath.Join(t.TempDir(), "kith.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	dispatcher := notify.NewLocalDispatcher(nil, time.Second)
	dir := contacts.Static{
		{ID: "c-1", Name: "Jordan Lee", Phones: []string{"+1 555 0100"}, Emails: []string{"jordan@example.com"}},
	}
	svc := crm.NewService(store, identity.Static("user-1"), notify.NewScheduler(dispatcher, nil), dir)
	return &testEnv{svc: svc, dispatcher: dispatcher}
}

func TestAddRelationshipAndCollision(t *testing.T) {
	env := setupTestService(t)
	h := NewRelationshipHandlers(env.svc)
	ctx := context.Background()

	_, out, err := h.AddRelationship(ctx, nil, AddRelationshipInput{
		ContactName:        "Sam Rivera",
		RelationshipFields: RelationshipFields{ContactFrequency: "week", Tags: []string{"friend"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "week", out.ContactFrequency)
	assert.NotEmpty(t, out.NextReminderDate)
	assert.Equal(t, []string{"friend"}, out.Tags)

	_, _, err = h.AddRelationship(ctx, nil, AddRelationshipInput{ContactName: "sam rivera"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "on_conflict")

	_, opened, err := h.AddRelationship(ctx, nil, AddRelationshipInput{ContactName: "sam rivera", OnConflict: "open"})
	require.NoError(t, err)
	assert.Equal(t, out.ID, opened.ID)

	_, forked, err := h.AddRelationship(ctx, nil, AddRelationshipInput{ContactName: "Sam Rivera", OnConflict: "fork"})
	require.NoError(t, err)
	assert.NotEqual(t, out.ID, forked.ID)
	assert.Contains(t, forked.ContactName, "Sam Rivera (")

	_, _, err = h.AddRelationship(ctx, nil, AddRelationshipInput{ContactName: "X", OnConflict: "merge"})
	assert.Error(t, err)
}

func TestAddRelationshipRequiresName(t *testing.T) {
	env := setupTestService(t)
	h := NewRelationshipHandlers(env.svc)

	_, _, err := h.AddRelationship(context.Background(), nil, AddRelationshipInput{ContactName: "  "})
	assert.Error(t, err)
}

func TestLogInteractionCreatesRelationshipFromDirectory(t *testing.T) {
	env := setupTestService(t)
	acts := NewActivityHandlers(env.svc)
	rels := NewRelationshipHandlers(env.svc)
	ctx := context.Background()

	_, out, err := acts.LogInteraction(ctx, nil, LogInteractionInput{
		ContactName:     "Jordan Lee",
		InteractionType: "inPerson",
		Date:            "yesterday",
		Location:        "Cafe",
	})
	require.NoError(t, err)
	assert.Equal(t, "interaction", out.Type)
	assert.Equal(t, "Cafe", out.Location)

	_, detail, err := rels.GetRelationship(ctx, nil, GetRelationshipInput{Relationship: "jordan lee"})
	require.NoError(t, err)
	assert.Equal(t, "c-1", detail.ContactID)
	assert.Equal(t, []string{"jordan@example.com"}, detail.Emails)
	require.Len(t, detail.Activities, 1)
	assert.Equal(t, out.ID, detail.Activities[0].ID)
}

func TestLogInteractionRejectsFutureDate(t *testing.T) {
	env := setupTestService(t)
	acts := NewActivityHandlers(env.svc)

	future := time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339)
	_, _, err := acts.LogInteraction(context.Background(), nil, LogInteractionInput{ContactName: "Pat", Date: future})
	assert.Error(t, err)

	_, list, err := NewRelationshipHandlers(env.svc).ListRelationships(context.Background(), nil, ListRelationshipsInput{})
	require.NoError(t, err)
	assert.Empty(t, list.Relationships)
}

func TestReminderLifecycle(t *testing.T) {
	env := setupTestService(t)
	acts := NewActivityHandlers(env.svc)
	ctx := context.Background()

	due := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	_, added, err := acts.AddReminder(ctx, nil, AddReminderInput{
		ContactName: "Alex Kim",
		Date:        due.Format(time.RFC3339),
		Frequency:   "week",
		Notes:       "ask about the move",
	})
	require.NoError(t, err)
	assert.Empty(t, added.Warnings)
	require.NotEmpty(t, added.ReminderID)
	assert.Len(t, env.dispatcher.Pending(), 3)

	_, list, err := acts.ListReminders(ctx, nil, ListRemindersInput{WithinDays: 7})
	require.NoError(t, err)
	require.Len(t, list.Reminders, 1)
	assert.Equal(t, added.ReminderID, list.Reminders[0].ID)
	assert.True(t, list.Reminders[0].IsThisWeek)

	// Completing by reminder id rolls the weekly reminder forward.
	_, done, err := acts.CompleteReminder(ctx, nil, CompleteReminderInput{ID: added.ReminderID})
	require.NoError(t, err)
	assert.False(t, done.IsCompleted)
	assert.Equal(t, due.AddDate(0, 0, 7).Format(time.RFC3339), done.ReminderDate)

	_, del, err := acts.DeleteActivity(ctx, nil, DeleteActivityInput{ID: added.ID})
	require.NoError(t, err)
	assert.True(t, del.Deleted)
	assert.Empty(t, env.dispatcher.Pending())
}

func TestAddReminderRejectsPastDate(t *testing.T) {
	env := setupTestService(t)
	acts := NewActivityHandlers(env.svc)

	_, _, err := acts.AddReminder(context.Background(), nil, AddReminderInput{ContactName: "Alex", Date: "2020-01-01"})
	assert.Error(t, err)
	assert.Empty(t, env.dispatcher.Pending())
}

func TestUpdateActivityArchivesAndFilters(t *testing.T) {
	env := setupTestService(t)
	acts := NewActivityHandlers(env.svc)
	ctx := context.Background()

	_, note, err := acts.AddNote(ctx, nil, AddNoteInput{Content: "Loves climbing", ContactName: "Riley"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultNoteCategory, note.Category)

	archived := true
	content := "Loves bouldering"
	_, updated, err := acts.UpdateActivity(ctx, nil, UpdateActivityInput{ID: note.ID, Content: &content, Archived: &archived})
	require.NoError(t, err)
	assert.Equal(t, "Loves bouldering", updated.Content)
	assert.True(t, updated.IsArchived)

	_, visible, err := acts.ListActivities(ctx, nil, ListActivitiesInput{Type: "note"})
	require.NoError(t, err)
	assert.Empty(t, visible.Activities)

	_, all, err := acts.ListActivities(ctx, nil, ListActivitiesInput{Type: "note", IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all.Activities, 1)

	_, _, err = acts.ListActivities(ctx, nil, ListActivitiesInput{Type: "meeting"})
	assert.Error(t, err)
}

func TestDeleteRelationshipCascades(t *testing.T) {
	env := setupTestService(t)
	acts := NewActivityHandlers(env.svc)
	rels := NewRelationshipHandlers(env.svc)
	ctx := context.Background()

	_, _, err := acts.AddNote(ctx, nil, AddNoteInput{Content: "met at the conference", ContactName: "Casey"})
	require.NoError(t, err)
	_, _, err = acts.AddReminder(ctx, nil, AddReminderInput{
		ContactName: "Casey",
		Date:        time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)

	_, out, err := rels.DeleteRelationship(ctx, nil, DeleteRelationshipInput{Relationship: "casey"})
	require.NoError(t, err)
	assert.True(t, out.Deleted)
	assert.Empty(t, out.Warnings)

	_, left, err := acts.ListActivities(ctx, nil, ListActivitiesInput{IncludeArchived: true})
	require.NoError(t, err)
	assert.Empty(t, left.Activities)
	assert.Empty(t, env.dispatcher.Pending())

	_, _, err = rels.GetRelationship(ctx, nil, GetRelationshipInput{Relationship: "casey"})
	assert.Error(t, err)
}

func TestUpdateRelationshipRename(t *testing.T) {
	env := setupTestService(t)
	rels := NewRelationshipHandlers(env.svc)
	ctx := context.Background()

	_, a, err := rels.AddRelationship(ctx, nil, AddRelationshipInput{ContactName: "Morgan"})
	require.NoError(t, err)
	_, _, err = rels.AddRelationship(ctx, nil, AddRelationshipInput{ContactName: "Drew"})
	require.NoError(t, err)

	_, _, err = rels.UpdateRelationship(ctx, nil, UpdateRelationshipInput{Relationship: a.ID, ContactName: "drew"})
	assert.Error(t, err)

	_, renamed, err := rels.UpdateRelationship(ctx, nil, UpdateRelationshipInput{
		Relationship:       a.ID,
		ContactName:        "Morgan Blake",
		RelationshipFields: RelationshipFields{ContactFrequency: "3months"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Morgan Blake", renamed.ContactName)
	assert.Equal(t, "3months", renamed.ContactFrequency)
}

func TestReadResource(t *testing.T) {
	env := setupTestService(t)
	rels := NewRelationshipHandlers(env.svc)
	res := NewResourceHandlers(env.svc)
	ctx := context.Background()

	_, rel, err := rels.AddRelationship(ctx, nil, AddRelationshipInput{ContactName: "Quinn"})
	require.NoError(t, err)

	out, err := res.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "kith://relationships"}})
	require.NoError(t, err)
	require.Len(t, out.Contents, 1)
	assert.Contains(t, out.Contents[0].Text, "Quinn")

	out, err = res.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "kith://relationships/" + rel.ID}})
	require.NoError(t, err)
	assert.Contains(t, out.Contents[0].Text, rel.ID)

	_, err = res.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "crm://contacts"}})
	assert.Error(t, err)
	_, err = res.ReadResource(ctx, &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "kith://deals"}})
	assert.Error(t, err)
}

func TestPrompts(t *testing.T) {
	env := setupTestService(t)
	acts := NewActivityHandlers(env.svc)
	prompts := NewPromptHandlers(env.svc)
	ctx := context.Background()

	_, _, err := acts.AddNote(ctx, nil, AddNoteInput{Content: "Training for a marathon", ContactName: "Taylor"})
	require.NoError(t, err)

	out, err := prompts.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{
		Name:      "catch-up",
		Arguments: map[string]string{"relationship": "taylor"},
	}})
	require.NoError(t, err)
	require.Len(t, out.Messages, 1)
	text := out.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "Taylor")
	assert.Contains(t, text, "Training for a marathon")

	_, err = prompts.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "catch-up"}})
	assert.Error(t, err)

	out, err = prompts.GetPrompt(ctx, &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "follow-up-suggestions"}})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Messages)
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	got, err := parseDate("2025-06-01", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseDate("Yesterday", now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -1), got)

	_, err = parseDate("someday", now)
	assert.Error(t, err)
}
