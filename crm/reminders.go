// ABOUTME: Reminder persistence bound to notification scheduling
// ABOUTME: Persistence is load-bearing; scheduling failures become warnings
package crm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kith/cadence"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/identity"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/notify"
	"github.com/harperreed/kith/validation"
)

// Reminders stores reminder entities and keeps their notifications in step.
type Reminders struct {
	store     db.Store
	ids       identity.Provider
	scheduler *notify.Scheduler
	now       func() time.Time
}

// NewReminders returns a reminder store. A nil scheduler disables
// notifications.
func NewReminders(store db.Store, ids identity.Provider, scheduler *notify.Scheduler) *Reminders {
	return &Reminders{store: store, ids: ids, scheduler: scheduler, now: utcNow}
}

func (r *Reminders) scope(ctx context.Context) (db.Query, error) {
	userID, err := r.ids.UserID(ctx)
	if err != nil {
		return db.Query{}, err
	}
	return db.Query{Collection: db.CollectionReminders, UserID: userID}, nil
}

func reminderMessage(rem *models.Reminder) notify.Message {
	kind := strings.ReplaceAll(rem.Type, "_", " ")
	if kind == "" {
		kind = "reminder"
	}
	return notify.Message{
		UserID:      rem.UserID,
		ContactName: rem.ContactName,
		Title:       fmt.Sprintf("%s: %s", rem.ContactName, kind),
		Body:        rem.Notes,
	}
}

func (r *Reminders) applyDefaults(rem *models.Reminder) {
	rem.ContactName = strings.TrimSpace(rem.ContactName)
	if rem.Type == "" {
		rem.Type = models.DefaultReminderType
	}
	if rem.Frequency == "" {
		rem.Frequency = models.FrequencyNever
	}
	if rem.Tags == nil {
		rem.Tags = []string{}
	}
}

func validateReminder(rem *models.Reminder) error {
	var errs validation.Errors
	if rem.ContactName == "" {
		errs.Add("contactName", "is required")
	}
	if rem.Date.IsZero() {
		errs.Add("date", "is required")
	}
	if _, err := cadence.ParseFrequency(string(rem.Frequency)); err != nil {
		errs.Add("frequency", "%s", err.Error())
	}
	errs.CheckLength("notes", rem.Notes, validation.MaxActivityContent)
	return errs.Err()
}

// Create persists rem and then schedules its notifications. The reminder
// must be due in the future.
func (r *Reminders) Create(ctx context.Context, rem *models.Reminder) (*models.Reminder, Warnings, error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, nil, err
	}

	draft := *rem
	draft.NotificationHandles = nil
	draft.IsCompleted = false
	r.applyDefaults(&draft)
	if err := validateReminder(&draft); err != nil {
		return nil, nil, err
	}
	now := r.now()
	if !validation.ReminderDateAllowed(draft.Date, now) {
		return nil, nil, &validation.FieldError{Field: "date", Message: "reminder must be due in the future"}
	}
	draft.RefreshFlags(now)

	fields, err := encode(&draft)
	if err != nil {
		return nil, nil, err
	}
	doc := &db.Document{Collection: q.Collection, UserID: q.UserID, Fields: fields}
	if err := r.store.Create(ctx, doc); err != nil {
		return nil, nil, storeErr("create reminder", err)
	}

	var warns Warnings
	created, err := r.decode(doc)
	if err != nil {
		return nil, nil, err
	}
	if r.scheduler == nil {
		return created, nil, nil
	}

	handles, err := r.scheduler.ScheduleForReminder(ctx, created.ID, created.Date, nil, reminderMessage(created))
	warns.note("schedule notifications", err, "reminder", created.ID)
	if err == nil && len(handles) > 0 {
		updated, err := r.storeHandles(ctx, q, created.ID, handles)
		warns.note("store notification handles", err, "reminder", created.ID)
		if updated != nil {
			created = updated
		}
	}
	return created, warns, nil
}

func (r *Reminders) storeHandles(ctx context.Context, q db.Query, id string, handles []notify.Handle) (*models.Reminder, error) {
	var value interface{}
	if hs := notify.HandleStrings(handles); hs != nil {
		value = stringsToAny(hs)
	}
	doc, err := r.store.Update(ctx, q.Collection, q.UserID, id, map[string]interface{}{
		"notificationHandles": value,
	})
	if err != nil {
		return nil, err
	}
	return r.decode(doc)
}

func stringsToAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (r *Reminders) decode(doc *db.Document) (*models.Reminder, error) {
	var rem models.Reminder
	if err := decode(doc, &rem); err != nil {
		return nil, err
	}
	rem.RefreshFlags(r.now())
	return &rem, nil
}

// Get returns the reminder with fresh overdue flags.
func (r *Reminders) Get(ctx context.Context, id string) (*models.Reminder, error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := r.store.Get(ctx, q.Collection, q.UserID, id)
	if err != nil {
		return nil, storeErr("get reminder", err)
	}
	return r.decode(doc)
}

// List returns every reminder ordered by due date.
func (r *Reminders) List(ctx context.Context) ([]*models.Reminder, error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, q.OrderBy("date", false))
}

// ListForRelationship returns reminders linked to the relationship by id
// or by contact name.
func (r *Reminders) ListForRelationship(ctx context.Context, rel *models.Relationship) ([]*models.Reminder, error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	byID, err := r.query(ctx, q.Where("relationshipId", rel.ID))
	if err != nil {
		return nil, err
	}
	byName, err := r.query(ctx, q.WhereFold("contactName", rel.ContactName))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(byID))
	out := make([]*models.Reminder, 0, len(byID)+len(byName))
	for _, rem := range append(byID, byName...) {
		if !seen[rem.ID] {
			seen[rem.ID] = true
			out = append(out, rem)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *Reminders) query(ctx context.Context, q db.Query) ([]*models.Reminder, error) {
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, storeErr("list reminders", err)
	}
	rems, err := decodeAll[models.Reminder](docs)
	if err != nil {
		return nil, err
	}
	now := r.now()
	for _, rem := range rems {
		rem.RefreshFlags(now)
	}
	return rems, nil
}

// Update persists rem and reschedules its notifications when the due date
// moved. Moving the due date into the past is a validation error.
func (r *Reminders) Update(ctx context.Context, rem *models.Reminder) (*models.Reminder, Warnings, error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, nil, err
	}
	current, err := r.store.Get(ctx, q.Collection, q.UserID, rem.ID)
	if err != nil {
		return nil, nil, storeErr("update reminder", err)
	}
	before, err := r.decode(current)
	if err != nil {
		return nil, nil, err
	}

	next := *rem
	next.ID, next.UserID = before.ID, before.UserID
	next.CreatedAt, next.UpdatedAt = before.CreatedAt, before.UpdatedAt
	next.NotificationHandles = before.NotificationHandles
	next.IsCompleted = before.IsCompleted
	r.applyDefaults(&next)
	if err := validateReminder(&next); err != nil {
		return nil, nil, err
	}
	now := r.now()
	moved := !next.Date.Equal(before.Date)
	if moved && !validation.ReminderDateAllowed(next.Date, now) {
		return nil, nil, &validation.FieldError{Field: "date", Message: "reminder must be due in the future"}
	}
	next.RefreshFlags(now)

	updated, err := r.patch(ctx, q, current, &next)
	if err != nil {
		return nil, nil, err
	}

	var warns Warnings
	if moved || next.ContactName != before.ContactName || next.Type != before.Type || next.Notes != before.Notes {
		updated = r.reschedule(ctx, q, updated, &warns)
	}
	return updated, warns, nil
}

func (r *Reminders) patch(ctx context.Context, q db.Query, current *db.Document, next *models.Reminder) (*models.Reminder, error) {
	after, err := encode(next)
	if err != nil {
		return nil, err
	}
	p := diff(current.Fields, after)
	if len(p) == 0 {
		return r.decode(current)
	}
	doc, err := r.store.Update(ctx, q.Collection, q.UserID, current.ID, p)
	if err != nil {
		return nil, storeErr("update reminder", err)
	}
	return r.decode(doc)
}

// reschedule replaces the reminder's notifications and persists the new
// handles. A completed or past reminder only has its notifications
// cancelled. Failures are recorded as warnings.
func (r *Reminders) reschedule(ctx context.Context, q db.Query, rem *models.Reminder, warns *Warnings) *models.Reminder {
	if r.scheduler == nil {
		return rem
	}
	if rem.IsCompleted || !rem.Date.After(r.now()) {
		return r.clearHandles(ctx, q, rem, warns)
	}
	r.scheduler.Restore(rem.ID, notify.ParseHandles(rem.NotificationHandles))
	handles, err := r.scheduler.RescheduleForReminder(ctx, rem.ID, rem.Date, nil, reminderMessage(rem))
	if err != nil {
		warns.note("reschedule notifications", err, "reminder", rem.ID)
		return rem
	}
	updated, err := r.storeHandles(ctx, q, rem.ID, handles)
	if err != nil {
		warns.note("store notification handles", err, "reminder", rem.ID)
		return rem
	}
	return updated
}

// Delete removes the reminder, then cancels its notifications.
func (r *Reminders) Delete(ctx context.Context, id string) (Warnings, error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	current, err := r.store.Get(ctx, q.Collection, q.UserID, id)
	if err != nil {
		return nil, storeErr("delete reminder", err)
	}
	rem, err := r.decode(current)
	if err != nil {
		return nil, err
	}
	if err := r.store.Delete(ctx, q.Collection, q.UserID, id); err != nil {
		return nil, storeErr("delete reminder", err)
	}

	var warns Warnings
	warns.note("cancel notifications", r.cancel(ctx, rem), "reminder", id)
	return warns, nil
}

// clearHandles cancels the reminder's notifications and drops the stored
// handles.
func (r *Reminders) clearHandles(ctx context.Context, q db.Query, rem *models.Reminder, warns *Warnings) *models.Reminder {
	warns.note("cancel notifications", r.cancel(ctx, rem), "reminder", rem.ID)
	if len(rem.NotificationHandles) == 0 {
		return rem
	}
	updated, err := r.storeHandles(ctx, q, rem.ID, nil)
	if err != nil {
		warns.note("store notification handles", err, "reminder", rem.ID)
		return rem
	}
	return updated
}

func (r *Reminders) cancel(ctx context.Context, rem *models.Reminder) error {
	if r.scheduler == nil {
		return nil
	}
	r.scheduler.Restore(rem.ID, notify.ParseHandles(rem.NotificationHandles))
	return r.scheduler.CancelForReminder(ctx, rem.ID)
}

// Advance handles completion: a recurring reminder rolls its due date
// forward until it is in the future and is rescheduled; a one-off reminder
// is marked completed and has its notifications cancelled.
func (r *Reminders) Advance(ctx context.Context, id string) (*models.Reminder, Warnings, error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, nil, err
	}
	current, err := r.store.Get(ctx, q.Collection, q.UserID, id)
	if err != nil {
		return nil, nil, storeErr("advance reminder", err)
	}
	rem, err := r.decode(current)
	if err != nil {
		return nil, nil, err
	}

	var warns Warnings
	now := r.now()
	next, ok := cadence.Next(rem.Date, rem.Frequency)
	if !ok {
		if rem.IsCompleted {
			return rem, nil, nil
		}
		warns.note("cancel notifications", r.cancel(ctx, rem), "reminder", id)
		rem.IsCompleted = true
		rem.NotificationHandles = nil
		updated, err := r.patch(ctx, q, current, rem)
		if err != nil {
			return nil, nil, err
		}
		return updated, warns, nil
	}
	for !next.After(now) {
		next, _ = cadence.Next(next, rem.Frequency)
	}

	rem.Date = next
	rem.RefreshFlags(now)
	updated, err := r.patch(ctx, q, current, rem)
	if err != nil {
		return nil, nil, err
	}
	return r.reschedule(ctx, q, updated, &warns), warns, nil
}

// Resync re-issues notifications for every open future reminder, for use
// when a dispatcher starts with an empty pending set.
func (r *Reminders) Resync(ctx context.Context) (int, Warnings, error) {
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
	scheduled := 0
	for _, rem := range rems {
		if rem.IsCompleted || !rem.Date.After(now) {
			continue
		}
		updated := r.reschedule(ctx, q, rem, &warns)
		if len(updated.NotificationHandles) > 0 {
			scheduled++
		}
	}
	log.Debug("resynced reminders", "scheduled", scheduled, "total", len(rems))
	return scheduled, warns, nil
}

// Subscribe calls fn with reminders ordered by due date now and after
// every change.
func (r *Reminders) Subscribe(ctx context.Context, fn func([]*models.Reminder)) (func(), error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.Subscribe(q.OrderBy("date", false), func(docs []*db.Document) {
		rems, err := decodeAll[models.Reminder](docs)
		if err != nil {
			log.Warn("decode reminders", "err", err)
			return
		}
		now := r.now()
		for _, rem := range rems {
			rem.RefreshFlags(now)
		}
		fn(rems)
	})
}
