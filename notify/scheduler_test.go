// ABOUTME: Tests for reminder notification scheduling
// ABOUTME: Lead offsets, past-lead skipping and rescheduling
package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harperreed/kith/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyDispatcher wraps a LocalDispatcher and fails on demand.
type flakyDispatcher struct {
	*LocalDispatcher
	failSchedule bool
	failCancel   bool
	cancelled    [][]Handle
}

func (f *flakyDispatcher) Schedule(ctx context.Context, due time.Time, leads []int, msg Message) ([]Handle, error) {
	if f.failSchedule {
		return nil, ErrUnavailable
	}
	return f.LocalDispatcher.Schedule(ctx, due, leads, msg)
}

func (f *flakyDispatcher) Cancel(ctx context.Context, handles []Handle) error {
	if f.failCancel {
		return ErrUnavailable
	}
	f.cancelled = append(f.cancelled, handles)
	return f.LocalDispatcher.Cancel(ctx, handles)
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestScheduler(leads []int) (*Scheduler, *flakyDispatcher) {
	local := NewLocalDispatcher(LogSink{}, time.Second)
	local.now = func() time.Time { return fixedNow }
	fd := &flakyDispatcher{LocalDispatcher: local}
	s := NewScheduler(fd, leads)
	s.now = func() time.Time { return fixedNow }
	return s, fd
}

func fireTimes(ns []Notification) []time.Time {
	out := make([]time.Time, len(ns))
	for i, n := range ns {
		out[i] = n.FireAt
	}
	return out
}

func TestScheduleForReminderDefaults(t *testing.T) {
	s, fd := newTestScheduler(nil)
	due := fixedNow.Add(24 * time.Hour)

	handles, err := s.ScheduleForReminder(context.Background(), "r1", due, nil, Message{Title: "Call Sam"})
	require.NoError(t, err)
	require.Len(t, handles, 3)

	pending := fd.Pending()
	assert.Equal(t, []time.Time{
		due.Add(-60 * time.Minute),
		due.Add(-30 * time.Minute),
		due.Add(-15 * time.Minute),
	}, fireTimes(pending))
	assert.Equal(t, "r1", pending[0].Message.ReminderID)
	assert.Equal(t, handles, s.Handles("r1"))
}

func TestScheduleRejectsPastOrPresentDue(t *testing.T) {
	s, fd := newTestScheduler(nil)

	for _, due := range []time.Time{fixedNow, fixedNow.Add(-time.Minute)} {
		_, err := s.ScheduleForReminder(context.Background(), "r1", due, nil, Message{})
		require.Error(t, err)
		assert.True(t, validation.IsValidationError(err))
	}
	assert.Empty(t, fd.Pending())
}

func TestScheduleSkipsElapsedOffsets(t *testing.T) {
	s, fd := newTestScheduler(nil)
	due := fixedNow.Add(20 * time.Minute)

	handles, err := s.ScheduleForReminder(context.Background(), "r1", due, nil, Message{})
	require.NoError(t, err)
	require.Len(t, handles, 1)
	assert.Equal(t, 15, fd.Pending()[0].LeadMinutes)
}

func TestRescheduleCancelsPreviousHandles(t *testing.T) {
	s, fd := newTestScheduler([]int{60, 10})
	ctx := context.Background()

	first, err := s.ScheduleForReminder(ctx, "r1", fixedNow.Add(48*time.Hour), nil, Message{})
	require.NoError(t, err)

	newDue := fixedNow.Add(72 * time.Hour)
	second, err := s.RescheduleForReminder(ctx, "r1", newDue, nil, Message{})
	require.NoError(t, err)

	require.Len(t, fd.cancelled, 1)
	assert.ElementsMatch(t, first, fd.cancelled[0])
	assert.Equal(t, second, s.Handles("r1"))

	pending := fd.Pending()
	assert.Equal(t, []time.Time{newDue.Add(-60 * time.Minute), newDue.Add(-10 * time.Minute)}, fireTimes(pending))
	for _, n := range pending {
		assert.NotContains(t, first, n.Handle)
	}
}

func TestRescheduleToPastClearsNotifications(t *testing.T) {
	s, fd := newTestScheduler(nil)
	ctx := context.Background()

	_, err := s.ScheduleForReminder(ctx, "r1", fixedNow.Add(time.Hour*5), nil, Message{})
	require.NoError(t, err)

	handles, err := s.RescheduleForReminder(ctx, "r1", fixedNow.Add(-time.Hour), nil, Message{})
	require.NoError(t, err)
	assert.Empty(t, handles)
	assert.Empty(t, fd.Pending())
}

func TestCancelFailureKeepsHandles(t *testing.T) {
	s, fd := newTestScheduler(nil)
	ctx := context.Background()

	handles, err := s.ScheduleForReminder(ctx, "r1", fixedNow.Add(time.Hour*5), nil, Message{})
	require.NoError(t, err)

	fd.failCancel = true
	assert.ErrorIs(t, s.CancelForReminder(ctx, "r1"), ErrUnavailable)
	assert.Equal(t, handles, s.Handles("r1"))

	_, err = s.RescheduleForReminder(ctx, "r1", fixedNow.Add(time.Hour*6), nil, Message{})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Len(t, fd.Pending(), 3)

	fd.failCancel = false
	require.NoError(t, s.CancelForReminder(ctx, "r1"))
	assert.Empty(t, s.Handles("r1"))
	assert.Empty(t, fd.Pending())
}

func TestScheduleFailureIsReturned(t *testing.T) {
	s, fd := newTestScheduler(nil)
	fd.failSchedule = true

	_, err := s.ScheduleForReminder(context.Background(), "r1", fixedNow.Add(time.Hour*5), nil, Message{})
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Empty(t, s.Handles("r1"))
}

func TestRestoreSeedsHandlesForCancel(t *testing.T) {
	s, fd := newTestScheduler(nil)
	ctx := context.Background()

	other := NewScheduler(fd, nil)
	other.now = func() time.Time { return fixedNow }
	handles, err := other.ScheduleForReminder(ctx, "r1", fixedNow.Add(time.Hour*5), nil, Message{})
	require.NoError(t, err)

	s.Restore("r1", handles)
	s.Restore("r1", handles[:1])
	assert.Len(t, s.Handles("r1"), 3)

	require.NoError(t, s.CancelForReminder(ctx, "r1"))
	assert.Empty(t, fd.Pending())
}
