// ABOUTME: Polls stored reminders and keeps this process's notifications in step
// ABOUTME: Picks up reminders written by other processes sharing the store
package crm

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kith/models"
)

// ReminderWatcher re-arms notifications for reminders that changed since
// its last pass, wherever the change was made. It is not safe for
// concurrent use; run one per dispatcher.
type ReminderWatcher struct {
	reminders *Reminders
	interval  time.Duration
	armed     map[string]string
}

// NewReminderWatcher returns a watcher polling every interval.
func NewReminderWatcher(reminders *Reminders, interval time.Duration) *ReminderWatcher {
	return &ReminderWatcher{
		reminders: reminders,
		interval:  interval,
		armed:     make(map[string]string),
	}
}

// Run syncs immediately and then on every tick until ctx is done.
func (w *ReminderWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		n, warns, err := w.Sync(ctx)
		switch {
		case err != nil:
			log.Warn("watch reminders", "err", err)
		case n > 0 || len(warns) > 0:
			log.Debug("watch reminders", "rescheduled", n, "warnings", len(warns))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sync reschedules open future reminders that are new or changed since the
// last pass, and cancels the notifications of reminders that were completed,
// deleted or fell due. It reports how many reminders were rescheduled.
func (w *ReminderWatcher) Sync(ctx context.Context) (int, Warnings, error) {
	r := w.reminders
	if r.scheduler == nil {
		return 0, nil, nil
	}
	q, err := r.scope(ctx)
	if err != nil {
		return 0, nil, err
	}
	rems, err := r.query(ctx, q)
	if err != nil {
		return 0, nil, err
	}

	var warns Warnings
	now := r.now()
	open := make(map[string]bool, len(rems))
	rescheduled := 0
	for _, rem := range rems {
		if rem.IsCompleted || !rem.Date.After(now) {
			continue
		}
		open[rem.ID] = true
		fp := fingerprint(rem)
		if w.armed[rem.ID] == fp {
			continue
		}
		r.reschedule(ctx, q, rem, &warns)
		w.armed[rem.ID] = fp
		rescheduled++
	}

	for id := range w.armed {
		if open[id] {
			continue
		}
		warns.note("cancel notifications", r.scheduler.CancelForReminder(ctx, id), "reminder", id)
		delete(w.armed, id)
	}
	return rescheduled, warns, nil
}

// fingerprint covers every field a notification is built from.
func fingerprint(rem *models.Reminder) string {
	return rem.Date.UTC().Format(time.RFC3339Nano) + "\x00" + rem.ContactName + "\x00" + rem.Type + "\x00" + rem.Notes
}
