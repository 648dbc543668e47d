// ABOUTME: Turns reminders into lead-offset notifications
// ABOUTME: Tracks issued handles per reminder for cancel and reschedule
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harperreed/kith/validation"
)

// DefaultLeadMinutes fire one hour, half an hour and a quarter hour before due.
var DefaultLeadMinutes = []int{60, 30, 15}

// Scheduler binds reminder lifecycles to a Dispatcher and tracks the
// handles issued for each reminder.
type Scheduler struct {
	dispatcher Dispatcher
	leads      []int
	now        func() time.Time

	mu     sync.Mutex
	issued map[string][]Handle
}

// NewScheduler returns a scheduler using leads when callers pass none.
func NewScheduler(d Dispatcher, leads []int) *Scheduler {
	if len(leads) == 0 {
		leads = DefaultLeadMinutes
	}
	return &Scheduler{
		dispatcher: d,
		leads:      append([]int(nil), leads...),
		now:        time.Now,
		issued:     make(map[string][]Handle),
	}
}

// LeadMinutes returns the default lead offsets.
func (s *Scheduler) LeadMinutes() []int {
	return append([]int(nil), s.leads...)
}

// ScheduleForReminder schedules notifications for a new reminder. due must
// be strictly in the future. Offsets whose fire time already passed are
// skipped.
func (s *Scheduler) ScheduleForReminder(ctx context.Context, reminderID string, due time.Time, leads []int, msg Message) ([]Handle, error) {
	now := s.now()
	if !validation.ReminderDateAllowed(due, now) {
		return nil, &validation.FieldError{Field: "date", Message: "reminder must be due in the future"}
	}
	return s.schedule(ctx, reminderID, due, now, leads, msg)
}

// RescheduleForReminder cancels every handle issued for the reminder, then
// schedules against the new due date. A due date that is no longer in the
// future leaves the reminder with no pending notifications.
func (s *Scheduler) RescheduleForReminder(ctx context.Context, reminderID string, due time.Time, leads []int, msg Message) ([]Handle, error) {
	if err := s.CancelForReminder(ctx, reminderID); err != nil {
		return nil, fmt.Errorf("cancel previous notifications: %w", err)
	}
	now := s.now()
	if !due.After(now) {
		return nil, nil
	}
	return s.schedule(ctx, reminderID, due, now, leads, msg)
}

// CancelForReminder cancels every handle issued for the reminder. The
// handles are kept when the dispatcher fails so a retry can cancel them.
func (s *Scheduler) CancelForReminder(ctx context.Context, reminderID string) error {
	s.mu.Lock()
	handles := s.issued[reminderID]
	s.mu.Unlock()

	if len(handles) == 0 {
		return nil
	}
	if err := s.dispatcher.Cancel(ctx, handles); err != nil {
		failureCounter.WithLabelValues("cancel").Inc()
		return err
	}
	cancelledCounter.Add(float64(len(handles)))

	s.mu.Lock()
	delete(s.issued, reminderID)
	s.mu.Unlock()
	return nil
}

// Restore seeds handles loaded from a persisted reminder, merging with any
// already tracked.
func (s *Scheduler) Restore(reminderID string, handles []Handle) {
	if len(handles) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[Handle]bool, len(s.issued[reminderID]))
	for _, h := range s.issued[reminderID] {
		seen[h] = true
	}
	for _, h := range handles {
		if !seen[h] {
			s.issued[reminderID] = append(s.issued[reminderID], h)
			seen[h] = true
		}
	}
}

// Handles returns the handles currently tracked for the reminder.
func (s *Scheduler) Handles(reminderID string) []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Handle(nil), s.issued[reminderID]...)
}

func (s *Scheduler) schedule(ctx context.Context, reminderID string, due, now time.Time, leads []int, msg Message) ([]Handle, error) {
	if len(leads) == 0 {
		leads = s.leads
	}
	upcoming := make([]int, 0, len(leads))
	for _, lead := range leads {
		if lead < 0 {
			continue
		}
		if FireTime(due, lead).After(now) {
			upcoming = append(upcoming, lead)
		}
	}
	if len(upcoming) == 0 {
		return nil, nil
	}

	msg.ReminderID = reminderID
	handles, err := s.dispatcher.Schedule(ctx, due, upcoming, msg)
	if err != nil {
		failureCounter.WithLabelValues("schedule").Inc()
		return nil, err
	}
	scheduledCounter.Add(float64(len(handles)))

	s.mu.Lock()
	s.issued[reminderID] = append(s.issued[reminderID], handles...)
	s.mu.Unlock()
	return handles, nil
}
