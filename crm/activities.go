// ABOUTME: Activity persistence for notes, interactions and reminders
// ABOUTME: Reminder activities are written in lockstep with their Reminder
package crm

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kith/cadence"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/identity"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/validation"
)

// ErrNoPairedReminder is recorded as a warning when a reminder activity has
// no reminder to keep in step with.
var ErrNoPairedReminder = errors.New("reminder activity has no paired reminder")

// ActivityFilter narrows List. Zero values match everything except
// archived activities.
type ActivityFilter struct {
	Type            models.ActivityType
	ContactName     string
	IncludeArchived bool
	Limit           int
}

// Activities stores the activity timeline.
type Activities struct {
	store     db.Store
	ids       identity.Provider
	reminders *Reminders
	now       func() time.Time
}

// NewActivities returns an activity store that pairs reminder activities
// with entries in reminders.
func NewActivities(store db.Store, ids identity.Provider, reminders *Reminders) *Activities {
	return &Activities{store: store, ids: ids, reminders: reminders, now: utcNow}
}

func (a *Activities) scope(ctx context.Context) (db.Query, error) {
	userID, err := a.ids.UserID(ctx)
	if err != nil {
		return db.Query{}, err
	}
	return db.Query{Collection: db.CollectionActivities, UserID: userID}, nil
}

// prepare returns a copy of in with variant defaults applied, validated
// for creation.
func (a *Activities) prepare(in *models.Activity) (*models.Activity, error) {
	if !in.Type.Valid() {
		return nil, &validation.FieldError{Field: "type", Message: "must be note, interaction or reminder"}
	}
	draft := *in
	draft.ID, draft.UserID = "", ""
	draft.ReminderID, draft.RelationshipID = "", ""
	draft.IsArchived = false
	draft.IsCompleted = false
	draft.CompletedAt = nil
	a.applyDefaults(&draft)

	if err := validateActivity(&draft, nil, a.now()); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (a *Activities) applyDefaults(act *models.Activity) {
	act.ContactName = strings.TrimSpace(act.ContactName)
	if act.Tags == nil {
		act.Tags = []string{}
	}
	switch act.Type {
	case models.ActivityNote:
		if act.Category == "" {
			act.Category = models.DefaultNoteCategory
		}
	case models.ActivityInteraction:
		if act.InteractionType == "" {
			act.InteractionType = models.InteractionCall
		}
		if act.Date == nil {
			now := a.now()
			act.Date = &now
		}
	case models.ActivityReminder:
		if act.ReminderType == "" {
			act.ReminderType = models.DefaultReminderType
		}
		if act.Frequency == "" {
			act.Frequency = models.FrequencyNever
		}
	}
}

// validateActivity checks act against its variant rules. before is the
// stored activity on update, nil on create; temporal rules only apply to
// dates that changed.
func validateActivity(act, before *models.Activity, now time.Time) error {
	var errs validation.Errors
	errs.CheckLength("description", act.Description, validation.MaxActivityDescription)

	switch act.Type {
	case models.ActivityNote:
		errs.CheckLength("content", act.Content, validation.MaxActivityContent)
		if strings.TrimSpace(act.Content) == "" && strings.TrimSpace(act.Description) == "" {
			errs.Add("content", "is required")
		}
	case models.ActivityInteraction:
		if act.ContactName == "" {
			errs.Add("contactName", "is required")
		}
		errs.Check(models.ValidInteractionType(act.InteractionType), "interactionType", "must be call, text, email or inPerson")
		errs.Check(act.Duration >= 0, "duration", "must not be negative")
		if act.Date != nil && (before == nil || !sameTime(act.Date, before.Date)) {
			errs.Check(validation.InteractionDateAllowed(*act.Date, now), "date", "cannot be in the future")
		}
	case models.ActivityReminder:
		if act.ContactName == "" {
			errs.Add("contactName", "is required")
		}
		if act.ReminderDate == nil {
			errs.Add("reminderDate", "is required")
		} else if before == nil || !sameTime(act.ReminderDate, before.ReminderDate) {
			errs.Check(validation.ReminderDateAllowed(*act.ReminderDate, now), "reminderDate", "must be in the future")
		}
		if _, err := cadence.ParseFrequency(string(act.Frequency)); err != nil {
			errs.Add("frequency", "%s", err.Error())
		}
	}
	return errs.Err()
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func reminderFor(act *models.Activity, relationshipID string) *models.Reminder {
	rem := &models.Reminder{
		ContactName:    act.ContactName,
		ContactID:      act.ContactID,
		RelationshipID: relationshipID,
		Type:           act.ReminderType,
		Frequency:      act.Frequency,
		Tags:           act.Tags,
		Notes:          act.Description,
	}
	if act.ReminderDate != nil {
		rem.Date = *act.ReminderDate
	}
	return rem
}

// Create validates and persists an activity. A reminder activity first
// creates its Reminder, then the activity carrying reminderId; if the
// activity write fails the Reminder is deleted again.
func (a *Activities) Create(ctx context.Context, act *models.Activity) (*models.Activity, Warnings, error) {
	draft, err := a.prepare(act)
	if err != nil {
		return nil, nil, err
	}
	return a.insert(ctx, draft, "")
}

func (a *Activities) insert(ctx context.Context, draft *models.Activity, relationshipID string) (*models.Activity, Warnings, error) {
	q, err := a.scope(ctx)
	if err != nil {
		return nil, nil, err
	}

	draft.RelationshipID = relationshipID

	var warns Warnings
	var rem *models.Reminder
	if draft.Type == models.ActivityReminder {
		var remWarns Warnings
		rem, remWarns, err = a.reminders.Create(ctx, reminderFor(draft, relationshipID))
		if err != nil {
			return nil, nil, err
		}
		warns = append(warns, remWarns...)
		draft.ReminderID = rem.ID
	}

	fields, err := encode(draft)
	if err != nil {
		return nil, nil, err
	}
	doc := &db.Document{Collection: q.Collection, UserID: q.UserID, Fields: fields}
	if err := a.store.Create(ctx, doc); err != nil {
		if rem != nil {
			delWarns, delErr := a.reminders.Delete(ctx, rem.ID)
			if delErr != nil {
				log.Error("orphaned reminder after failed activity write", "reminder", rem.ID, "err", delErr)
			}
			for _, w := range delWarns {
				log.Warn("compensating delete", "reminder", rem.ID, "err", w)
			}
		}
		return nil, nil, storeErr("create activity", err)
	}

	created, err := a.decode(doc)
	if err != nil {
		return nil, nil, err
	}
	return created, warns, nil
}

func (a *Activities) decode(doc *db.Document) (*models.Activity, error) {
	var act models.Activity
	if err := decode(doc, &act); err != nil {
		return nil, err
	}
	return &act, nil
}

// Get returns the activity or ErrNotFoundOrAccessDenied.
func (a *Activities) Get(ctx context.Context, id string) (*models.Activity, error) {
	q, err := a.scope(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := a.store.Get(ctx, q.Collection, q.UserID, id)
	if err != nil {
		return nil, storeErr("get activity", err)
	}
	return a.decode(doc)
}

func (f ActivityFilter) query(q db.Query) db.Query {
	if f.Type != "" {
		q = q.Where("type", string(f.Type))
	}
	if f.ContactName != "" {
		q = q.WhereFold("contactName", f.ContactName)
	}
	if !f.IncludeArchived {
		q = q.Where("isArchived", false)
	}
	q = q.OrderBy("createdAt", true)
	q.Limit = f.Limit
	return q
}

// List returns matching activities, newest first.
func (a *Activities) List(ctx context.Context, filter ActivityFilter) ([]*models.Activity, error) {
	q, err := a.scope(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := a.store.Query(ctx, filter.query(q))
	if err != nil {
		return nil, storeErr("list activities", err)
	}
	return decodeAll[models.Activity](docs)
}

// Update persists the editable fields of act. The type cannot change. For
// a reminder activity the paired Reminder is updated and rescheduled; if
// it cannot be found the activity update still succeeds with a warning.
func (a *Activities) Update(ctx context.Context, act *models.Activity) (*models.Activity, Warnings, error) {
	q, err := a.scope(ctx)
	if err != nil {
		return nil, nil, err
	}
	current, err := a.store.Get(ctx, q.Collection, q.UserID, act.ID)
	if err != nil {
		return nil, nil, storeErr("update activity", err)
	}
	before, err := a.decode(current)
	if err != nil {
		return nil, nil, err
	}
	if act.Type != "" && act.Type != before.Type {
		return nil, nil, &validation.FieldError{Field: "type", Message: "cannot be changed"}
	}

	next := *act
	next.ID, next.UserID, next.Type = before.ID, before.UserID, before.Type
	next.CreatedAt, next.UpdatedAt = before.CreatedAt, before.UpdatedAt
	next.ReminderID, next.RelationshipID = before.ReminderID, before.RelationshipID
	next.IsArchived = before.IsArchived
	next.IsCompleted, next.CompletedAt = before.IsCompleted, before.CompletedAt
	a.applyDefaults(&next)
	if err := validateActivity(&next, before, a.now()); err != nil {
		return nil, nil, err
	}

	updated, err := a.patch(ctx, q, current, &next)
	if err != nil {
		return nil, nil, err
	}

	var warns Warnings
	if updated.Type == models.ActivityReminder {
		warns = a.syncReminder(ctx, updated)
	}
	return updated, warns, nil
}

// syncReminder pushes the activity's reminder fields to its Reminder.
func (a *Activities) syncReminder(ctx context.Context, act *models.Activity) Warnings {
	var warns Warnings
	if act.ReminderID == "" {
		warns.note("sync reminder", ErrNoPairedReminder, "activity", act.ID)
		return warns
	}
	rem, err := a.reminders.Get(ctx, act.ReminderID)
	if err != nil {
		if errors.Is(err, ErrNotFoundOrAccessDenied) {
			err = ErrNoPairedReminder
		}
		warns.note("sync reminder", err, "activity", act.ID, "reminder", act.ReminderID)
		return warns
	}

	want := reminderFor(act, rem.RelationshipID)
	want.ID = rem.ID
	_, remWarns, err := a.reminders.Update(ctx, want)
	warns.note("sync reminder", err, "activity", act.ID, "reminder", act.ReminderID)
	return append(warns, remWarns...)
}

func (a *Activities) patch(ctx context.Context, q db.Query, current *db.Document, next *models.Activity) (*models.Activity, error) {
	after, err := encode(next)
	if err != nil {
		return nil, err
	}
	p := diff(current.Fields, after)
	if len(p) == 0 {
		return a.decode(current)
	}
	doc, err := a.store.Update(ctx, q.Collection, q.UserID, current.ID, p)
	if err != nil {
		return nil, storeErr("update activity", err)
	}
	return a.decode(doc)
}

// Archive soft-deletes the activity.
func (a *Activities) Archive(ctx context.Context, id string) (*models.Activity, error) {
	return a.setArchived(ctx, id, true)
}

// Unarchive restores an archived activity.
func (a *Activities) Unarchive(ctx context.Context, id string) (*models.Activity, error) {
	return a.setArchived(ctx, id, false)
}

func (a *Activities) setArchived(ctx context.Context, id string, archived bool) (*models.Activity, error) {
	q, err := a.scope(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := a.store.Update(ctx, q.Collection, q.UserID, id, map[string]interface{}{"isArchived": archived})
	if err != nil {
		return nil, storeErr("archive activity", err)
	}
	return a.decode(doc)
}

// Delete hard-deletes the activity and, for a reminder activity, its
// Reminder. A Reminder that cannot be removed becomes a warning.
func (a *Activities) Delete(ctx context.Context, id string) (Warnings, error) {
	act, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := a.deleteDoc(ctx, id); err != nil {
		return nil, err
	}

	var warns Warnings
	if act.Type == models.ActivityReminder && act.ReminderID != "" {
		remWarns, err := a.reminders.Delete(ctx, act.ReminderID)
		if !errors.Is(err, ErrNotFoundOrAccessDenied) {
			warns.note("delete reminder", err, "activity", id, "reminder", act.ReminderID)
		}
		warns = append(warns, remWarns...)
	}
	return warns, nil
}

func (a *Activities) deleteDoc(ctx context.Context, id string) error {
	q, err := a.scope(ctx)
	if err != nil {
		return err
	}
	return storeErr("delete activity", a.store.Delete(ctx, q.Collection, q.UserID, id))
}

// CompleteReminder marks a reminder activity done. A recurring reminder
// rolls forward to its next due date and stays open; a one-off reminder
// is closed and its notifications cancelled.
func (a *Activities) CompleteReminder(ctx context.Context, id string) (*models.Activity, Warnings, error) {
	q, err := a.scope(ctx)
	if err != nil {
		return nil, nil, err
	}
	current, err := a.store.Get(ctx, q.Collection, q.UserID, id)
	if err != nil {
		return nil, nil, storeErr("complete reminder", err)
	}
	act, err := a.decode(current)
	if err != nil {
		return nil, nil, err
	}
	if act.Type != models.ActivityReminder {
		return nil, nil, &validation.FieldError{Field: "type", Message: "only reminders can be completed"}
	}
	if act.IsCompleted {
		return act, nil, nil
	}

	var warns Warnings
	var rem *models.Reminder
	if act.ReminderID == "" {
		warns.note("complete reminder", ErrNoPairedReminder, "activity", id)
	} else {
		var remWarns Warnings
		rem, remWarns, err = a.reminders.Advance(ctx, act.ReminderID)
		if errors.Is(err, ErrNotFoundOrAccessDenied) {
			err = ErrNoPairedReminder
		}
		warns.note("complete reminder", err, "activity", id, "reminder", act.ReminderID)
		warns = append(warns, remWarns...)
	}

	now := a.now()
	act.CompletedAt = &now
	if next, ok := a.nextOccurrence(act, rem, now); ok {
		act.ReminderDate = &next
		act.IsCompleted = false
	} else {
		act.IsCompleted = true
	}

	updated, err := a.patch(ctx, q, current, act)
	if err != nil {
		return nil, nil, err
	}
	return updated, warns, nil
}

// nextOccurrence returns the rolled-forward due date of a recurring
// reminder activity, preferring the paired Reminder's date.
func (a *Activities) nextOccurrence(act *models.Activity, rem *models.Reminder, now time.Time) (time.Time, bool) {
	if rem != nil {
		if _, recurring := cadence.Next(rem.Date, rem.Frequency); recurring {
			return rem.Date, true
		}
		return time.Time{}, false
	}
	if act.ReminderDate == nil {
		return time.Time{}, false
	}
	next, ok := cadence.Next(*act.ReminderDate, act.Frequency)
	if !ok {
		return time.Time{}, false
	}
	for !next.After(now) {
		next, _ = cadence.Next(next, act.Frequency)
	}
	return next, true
}

// FindByReminderID returns the activity paired with a reminder, or nil.
func (a *Activities) FindByReminderID(ctx context.Context, reminderID string) (*models.Activity, error) {
	q, err := a.scope(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := a.store.Query(ctx, q.Where("reminderId", reminderID))
	if err != nil {
		return nil, storeErr("find activity", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return a.decode(docs[0])
}

// ListForRelationship returns every activity, archived or not, linked to
// the relationship by id or by contact name, newest first.
func (a *Activities) ListForRelationship(ctx context.Context, rel *models.Relationship) ([]*models.Activity, error) {
	q, err := a.scope(ctx)
	if err != nil {
		return nil, err
	}
	byID, err := a.store.Query(ctx, q.Where("relationshipId", rel.ID))
	if err != nil {
		return nil, storeErr("list activities", err)
	}
	byName, err := a.store.Query(ctx, q.WhereFold("contactName", rel.ContactName))
	if err != nil {
		return nil, storeErr("list activities", err)
	}
	acts, err := decodeAll[models.Activity](append(byID, byName...))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(acts))
	out := make([]*models.Activity, 0, len(acts))
	for _, act := range acts {
		if !seen[act.ID] {
			seen[act.ID] = true
			out = append(out, act)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// relink points an activity at a renamed relationship.
func (a *Activities) relink(ctx context.Context, id string, rel *models.Relationship) error {
	q, err := a.scope(ctx)
	if err != nil {
		return err
	}
	_, err = a.store.Update(ctx, q.Collection, q.UserID, id, map[string]interface{}{
		"contactName":    rel.ContactName,
		"relationshipId": rel.ID,
	})
	return storeErr("relink activity", err)
}

// Subscribe calls fn with the filtered activity list now and after every
// change.
func (a *Activities) Subscribe(ctx context.Context, filter ActivityFilter, fn func([]*models.Activity)) (func(), error) {
	q, err := a.scope(ctx)
	if err != nil {
		return nil, err
	}
	return a.store.Subscribe(filter.query(q), func(docs []*db.Document) {
		acts, err := decodeAll[models.Activity](docs)
		if err != nil {
			log.Warn("decode activities", "err", err)
			return
		}
		fn(acts)
	})
}
