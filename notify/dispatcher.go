// ABOUTME: Notification dispatcher interface and message types
// ABOUTME: Sinks receive notifications when they fall due

// Package notify schedules local notifications for reminders.
package notify

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the notification subsystem cannot be reached.
var ErrUnavailable = errors.New("notification dispatcher unavailable")

// Handle identifies one scheduled notification.
type Handle string

// Message is the content shown when a notification fires.
type Message struct {
	UserID      string `json:"userId,omitempty"`
	ReminderID  string `json:"reminderId"`
	ContactName string `json:"contactName"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

// Notification is a single pending delivery.
type Notification struct {
	Handle      Handle    `json:"handle"`
	Due         time.Time `json:"due"`
	FireAt      time.Time `json:"fireAt"`
	LeadMinutes int       `json:"leadMinutes"`
	Message     Message   `json:"message"`
}

// Dispatcher schedules and cancels time-offset notifications. Schedule
// returns one handle per lead offset, each firing leadMinutes before due.
type Dispatcher interface {
	Schedule(ctx context.Context, due time.Time, leadMinutes []int, msg Message) ([]Handle, error)
	Cancel(ctx context.Context, handles []Handle) error
}

// FireTime is when a notification with the given lead fires.
func FireTime(due time.Time, leadMinutes int) time.Time {
	return due.Add(-time.Duration(leadMinutes) * time.Minute)
}

// HandleStrings converts handles for persistence.
func HandleStrings(hs []Handle) []string {
	if len(hs) == 0 {
		return nil
	}
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = string(h)
	}
	return out
}

// ParseHandles converts persisted handles back.
func ParseHandles(ss []string) []Handle {
	if len(ss) == 0 {
		return nil
	}
	out := make([]Handle, len(ss))
	for i, s := range ss {
		out[i] = Handle(s)
	}
	return out
}
