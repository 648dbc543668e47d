// ABOUTME: Tests for activities and their paired reminders
// ABOUTME: Covers the reminder saga, completion and resync
package crm

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/notify"
	"github.com/harperreed/kith/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reminderActivity(name string, due time.Time, freq models.Frequency) *models.Activity {
	return &models.Activity{
		Type:         models.ActivityReminder,
		ContactName:  name,
		Description:  "catch up",
		ReminderDate: ptr(due),
		Frequency:    freq,
	}
}

func TestAddNoteCreatesRelationship(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	act, warns, err := f.svc.AddActivity(ctx, &models.Activity{
		Type:        models.ActivityNote,
		ContactName: "Alex",
		Content:     "Loves sourdough",
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.NotEmpty(t, act.ID)
	assert.Equal(t, models.DefaultNoteCategory, act.Category)

	rels, err := f.svc.Relationships.List(ctx)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "Alex", rels[0].ContactName)

	acts, err := f.svc.Activities.List(ctx, ActivityFilter{ContactName: "alex"})
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, act.ID, acts[0].ID)
	assert.Equal(t, models.ActivityNote, acts[0].Type)
}

func TestAddActivityRejectsUnknownType(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.AddActivity(context.Background(), &models.Activity{Type: "meeting", ContactName: "Alex"}, nil)
	assert.True(t, validation.IsValidationError(err))
}

func TestInvalidActivityCreatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	_, _, err := f.svc.AddActivity(ctx, reminderActivity("Pat", past, models.FrequencyNever), nil)
	require.Error(t, err)
	assert.True(t, validation.IsValidationError(err))

	future := time.Now().Add(time.Hour)
	_, _, err = f.svc.AddActivity(ctx, &models.Activity{
		Type:        models.ActivityInteraction,
		ContactName: "Pat",
		Date:        &future,
	}, nil)
	assert.True(t, validation.IsValidationError(err))

	rels, err := f.svc.Relationships.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rels)
	rems, err := f.svc.Reminders.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rems)
}

func TestInteractionAllowsClockSkew(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	f.setClock(now)

	act, _, err := f.svc.AddActivity(context.Background(), &models.Activity{
		Type:        models.ActivityInteraction,
		ContactName: "Pat",
		Date:        ptr(now.Add(30 * time.Second)),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.InteractionCall, act.InteractionType)
}

func TestInteractionAdvancesLastContact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	when := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	_, err := f.svc.Relationships.Create(ctx, &models.Relationship{
		ContactName:     "Jamie",
		LastContactDate: when.AddDate(0, 0, -10),
	})
	require.NoError(t, err)

	_, warns, err := f.svc.AddActivity(ctx, &models.Activity{
		Type:            models.ActivityInteraction,
		ContactName:     "jamie",
		InteractionType: models.InteractionInPerson,
		Date:            &when,
		Location:        "Cafe",
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, warns)

	rel, err := f.svc.Relationships.FindByName(ctx, "Jamie")
	require.NoError(t, err)
	assert.Equal(t, when, rel.LastContactDate.UTC())
	assert.Equal(t, models.ContactMethodInPerson, rel.LastContactMethod)
	assert.Equal(t, when.AddDate(0, 1, 0), rel.NextReminderDate.UTC())
}

func TestReminderActivityIsPairedWithReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)

	act, warns, err := f.svc.AddActivity(ctx, reminderActivity("Pat", due, models.FrequencyWeek), nil)
	require.NoError(t, err)
	assert.Empty(t, warns)
	require.NotEmpty(t, act.ReminderID)
	assert.Equal(t, models.DefaultReminderType, act.ReminderType)

	rem, err := f.svc.Reminders.Get(ctx, act.ReminderID)
	require.NoError(t, err)
	assert.Equal(t, act.ContactName, rem.ContactName)
	assert.Equal(t, due, rem.Date.UTC())
	assert.Equal(t, models.FrequencyWeek, rem.Frequency)
	assert.True(t, rem.IsThisWeek)
	assert.False(t, rem.IsOverdue)
	assert.Len(t, rem.NotificationHandles, 3)

	rel, err := f.svc.Relationships.FindByName(ctx, "Pat")
	require.NoError(t, err)
	assert.Equal(t, rel.ID, rem.RelationshipID)

	assert.Equal(t, []time.Time{
		due.Add(-60 * time.Minute),
		due.Add(-30 * time.Minute),
		due.Add(-15 * time.Minute),
	}, fireTimes(f.dispatcher.Pending()))
}

func TestEditReminderActivityReschedules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)

	act, _, err := f.svc.AddActivity(ctx, reminderActivity("Pat", due, models.FrequencyNever), nil)
	require.NoError(t, err)
	before, err := f.svc.Reminders.Get(ctx, act.ReminderID)
	require.NoError(t, err)

	newDue := due.Add(24 * time.Hour)
	act.ReminderDate = &newDue
	updated, warns, err := f.svc.Activities.Update(ctx, act)
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Equal(t, newDue, updated.ReminderDate.UTC())

	rem, err := f.svc.Reminders.Get(ctx, act.ReminderID)
	require.NoError(t, err)
	assert.Equal(t, newDue, rem.Date.UTC())
	require.Len(t, rem.NotificationHandles, 3)

	pending := f.dispatcher.Pending()
	assert.Equal(t, []time.Time{
		newDue.Add(-60 * time.Minute),
		newDue.Add(-30 * time.Minute),
		newDue.Add(-15 * time.Minute),
	}, fireTimes(pending))
	for _, n := range pending {
		assert.NotContains(t, before.NotificationHandles, string(n.Handle))
	}
}

func TestActivityTypeIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	act, _, err := f.svc.AddActivity(ctx, &models.Activity{Type: models.ActivityNote, ContactName: "Alex", Content: "hi"}, nil)
	require.NoError(t, err)

	act.Type = models.ActivityInteraction
	_, _, err = f.svc.Activities.Update(ctx, act)
	assert.True(t, validation.IsValidationError(err))
}

func TestUpdateWithMissingReminderWarns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Second)

	act, _, err := f.svc.AddActivity(ctx, reminderActivity("Pat", due, models.FrequencyNever), nil)
	require.NoError(t, err)
	_, err = f.svc.Reminders.Delete(ctx, act.ReminderID)
	require.NoError(t, err)

	act.Description = "bring the book"
	updated, warns, err := f.svc.Activities.Update(ctx, act)
	require.NoError(t, err)
	assert.Equal(t, "bring the book", updated.Description)
	require.Len(t, warns, 1)
	assert.ErrorIs(t, warns[0], ErrNoPairedReminder)
}

func TestReminderSagaCompensatesFailedActivityWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.FailCreate(db.CollectionActivities)

	due := time.Now().UTC().Add(48 * time.Hour)
	_, _, err := f.svc.AddActivity(ctx, reminderActivity("Pat", due, models.FrequencyNever), nil)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	rems, err := f.svc.Reminders.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rems)
	assert.Empty(t, f.dispatcher.Pending())
}

func TestSchedulingFailureKeepsReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.dispatcher.SetDown(true)

	due := time.Now().UTC().Add(48 * time.Hour)
	act, warns, err := f.svc.AddActivity(ctx, reminderActivity("Pat", due, models.FrequencyNever), nil)
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.ErrorIs(t, warns[0], notify.ErrUnavailable)

	rem, err := f.svc.Reminders.Get(ctx, act.ReminderID)
	require.NoError(t, err)
	assert.Empty(t, rem.NotificationHandles)

	f.dispatcher.SetDown(false)
	scheduled, warns, err := f.svc.Reminders.Resync(ctx)
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Equal(t, 1, scheduled)
	assert.Len(t, f.dispatcher.Pending(), 3)
}

func TestCompleteOneOffReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := time.Now().UTC().Add(48 * time.Hour)

	act, _, err := f.svc.AddActivity(ctx, reminderActivity("Pat", due, models.FrequencyNever), nil)
	require.NoError(t, err)

	done, warns, err := f.svc.Activities.CompleteReminder(ctx, act.ID)
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.True(t, done.IsCompleted)
	assert.NotNil(t, done.CompletedAt)
	assert.Empty(t, f.dispatcher.Pending())

	rem, err := f.svc.Reminders.Get(ctx, act.ReminderID)
	require.NoError(t, err)
	assert.Empty(t, rem.NotificationHandles)
	assert.True(t, rem.IsCompleted)
	assert.False(t, rem.IsOverdue)

	scheduled, warns, err := f.svc.Reminders.Resync(ctx)
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Zero(t, scheduled)
	assert.Empty(t, f.dispatcher.Pending())

	again, _, err := f.svc.Activities.CompleteReminder(ctx, act.ID)
	require.NoError(t, err)
	assert.True(t, again.IsCompleted)
	assert.Empty(t, f.dispatcher.Pending())
}

func TestCompleteRecurringReminderRollsForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)

	act, _, err := f.svc.AddActivity(ctx, reminderActivity("Pat", due, models.FrequencyWeek), nil)
	require.NoError(t, err)

	done, warns, err := f.svc.Activities.CompleteReminder(ctx, act.ID)
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.False(t, done.IsCompleted)
	assert.NotNil(t, done.CompletedAt)
	next := due.AddDate(0, 0, 7)
	assert.Equal(t, next, done.ReminderDate.UTC())

	rem, err := f.svc.Reminders.Get(ctx, act.ReminderID)
	require.NoError(t, err)
	assert.Equal(t, next, rem.Date.UTC())
	assert.Equal(t, []time.Time{
		next.Add(-60 * time.Minute),
		next.Add(-30 * time.Minute),
		next.Add(-15 * time.Minute),
	}, fireTimes(f.dispatcher.Pending()))
}

func TestArchiveHidesActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	act, _, err := f.svc.AddActivity(ctx, &models.Activity{Type: models.ActivityNote, ContactName: "Alex", Content: "hi"}, nil)
	require.NoError(t, err)

	archived, err := f.svc.Activities.Archive(ctx, act.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)

	visible, err := f.svc.Activities.List(ctx, ActivityFilter{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	all, err := f.svc.Activities.List(ctx, ActivityFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = f.svc.Activities.Unarchive(ctx, act.ID)
	require.NoError(t, err)
	visible, err = f.svc.Activities.List(ctx, ActivityFilter{Type: models.ActivityNote})
	require.NoError(t, err)
	assert.Len(t, visible, 1)
}

func TestDeleteReminderActivityRemovesReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := time.Now().UTC().Add(48 * time.Hour)

	act, _, err := f.svc.AddActivity(ctx, reminderActivity("Pat", due, models.FrequencyNever), nil)
	require.NoError(t, err)

	warns, err := f.svc.Activities.Delete(ctx, act.ID)
	require.NoError(t, err)
	assert.Empty(t, warns)

	_, err = f.svc.Activities.Get(ctx, act.ID)
	assert.ErrorIs(t, err, ErrNotFoundOrAccessDenied)
	_, err = f.svc.Reminders.Get(ctx, act.ReminderID)
	assert.ErrorIs(t, err, ErrNotFoundOrAccessDenied)
	assert.Empty(t, f.dispatcher.Pending())
}
