// ABOUTME: Relationship persistence with case-insensitive name lookup
// ABOUTME: Keeps nextReminderDate derived from lastContactDate and frequency
package crm

import (
	"context"
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

// Relationships stores per-contact engagement records.
type Relationships struct {
	store db.Store
	ids   identity.Provider
	now   func() time.Time
}

// NewRelationships returns a relationship store.
func NewRelationships(store db.Store, ids identity.Provider) *Relationships {
	return &Relationships{store: store, ids: ids, now: utcNow}
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func (r *Relationships) scope(ctx context.Context) (db.Query, error) {
	userID, err := r.ids.UserID(ctx)
	if err != nil {
		return db.Query{}, err
	}
	return db.Query{Collection: db.CollectionRelationships, UserID: userID}, nil
}

// applyDefaults fills the fields a new relationship must carry and derives
// nextReminderDate.
func (r *Relationships) applyDefaults(rel *models.Relationship) {
	rel.ContactName = strings.TrimSpace(rel.ContactName)
	if rel.LastContactDate.IsZero() {
		rel.LastContactDate = r.now()
	}
	if rel.LastContactMethod == "" {
		rel.LastContactMethod = models.DefaultContactMethod
	}
	if rel.ReminderFrequency == "" {
		rel.ReminderFrequency = models.DefaultFrequency
	}
	if rel.Tags == nil {
		rel.Tags = []string{}
	}
	if rel.ContactData.Phones == nil {
		rel.ContactData.Phones = []string{}
	}
	if rel.ContactData.Emails == nil {
		rel.ContactData.Emails = []string{}
	}
	rel.NextReminderDate = cadence.NextPtr(rel.LastContactDate, rel.ReminderFrequency)
}

func validateRelationship(rel *models.Relationship) error {
	if err := validation.ValidateRelationship(rel); err != nil {
		return err
	}
	if _, err := cadence.ParseFrequency(string(rel.ReminderFrequency)); err != nil {
		return &validation.FieldError{Field: "reminderFrequency", Message: err.Error()}
	}
	return nil
}

// Create validates and persists a new relationship. It does not check for
// name collisions; see Service.StartRelationship.
func (r *Relationships) Create(ctx context.Context, rel *models.Relationship) (*models.Relationship, error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}

	draft := *rel
	r.applyDefaults(&draft)
	if err := validateRelationship(&draft); err != nil {
		return nil, err
	}

	fields, err := encode(&draft)
	if err != nil {
		return nil, err
	}
	doc := &db.Document{Collection: q.Collection, UserID: q.UserID, Fields: fields}
	if err := r.store.Create(ctx, doc); err != nil {
		return nil, storeErr("create relationship", err)
	}
	return r.decode(doc)
}

func (r *Relationships) decode(doc *db.Document) (*models.Relationship, error) {
	var rel models.Relationship
	if err := decode(doc, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// Get returns the relationship or ErrNotFoundOrAccessDenied.
func (r *Relationships) Get(ctx context.Context, id string) (*models.Relationship, error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := r.store.Get(ctx, q.Collection, q.UserID, id)
	if err != nil {
		return nil, storeErr("get relationship", err)
	}
	return r.decode(doc)
}

// List returns every relationship sorted by name.
func (r *Relationships) List(ctx context.Context) ([]*models.Relationship, error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, storeErr("list relationships", err)
	}
	rels, err := decodeAll[models.Relationship](docs)
	if err != nil {
		return nil, err
	}
	sortByName(rels)
	return rels, nil
}

// ListDue returns relationships whose next reminder falls before cutoff,
// soonest first.
func (r *Relationships) ListDue(ctx context.Context, cutoff time.Time) ([]*models.Relationship, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var due []*models.Relationship
	for _, rel := range all {
		if rel.NextReminderDate != nil && rel.NextReminderDate.Before(cutoff) {
			due = append(due, rel)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextReminderDate.Before(*due[j].NextReminderDate)
	})
	return due, nil
}

// FindByName returns the relationship whose normalized name matches, or
// nil when there is none. With duplicates the oldest wins.
func (r *Relationships) FindByName(ctx context.Context, name string) (*models.Relationship, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	q, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := r.store.Query(ctx, q.WhereFold("contactName", name).OrderBy("createdAt", false))
	if err != nil {
		return nil, storeErr("find relationship", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return r.decode(docs[0])
}

// FindByContactID returns the relationship linked to a device contact, or nil.
func (r *Relationships) FindByContactID(ctx context.Context, contactID string) (*models.Relationship, error) {
	if contactID == "" {
		return nil, nil
	}
	q, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := r.store.Query(ctx, q.Where("contactId", contactID).OrderBy("createdAt", false))
	if err != nil {
		return nil, storeErr("find relationship", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return r.decode(docs[0])
}

// CheckCollision returns the relationship that name would duplicate,
// ignoring excludeID, or nil.
func (r *Relationships) CheckCollision(ctx context.Context, name, excludeID string) (*models.Relationship, error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := r.store.Query(ctx, q.WhereFold("contactName", name).OrderBy("createdAt", false))
	if err != nil {
		return nil, storeErr("check collision", err)
	}
	for _, d := range docs {
		if d.ID != excludeID {
			return r.decode(d)
		}
	}
	return nil, nil
}

// Update persists the editable fields of rel. nextReminderDate is
// recomputed from lastContactDate and reminderFrequency; renaming onto an
// existing relationship's name is a collision.
func (r *Relationships) Update(ctx context.Context, rel *models.Relationship) (*models.Relationship, error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	current, err := r.store.Get(ctx, q.Collection, q.UserID, rel.ID)
	if err != nil {
		return nil, storeErr("update relationship", err)
	}
	before, err := r.decode(current)
	if err != nil {
		return nil, err
	}

	next := *rel
	next.ID, next.UserID = before.ID, before.UserID
	next.CreatedAt, next.UpdatedAt = before.CreatedAt, before.UpdatedAt
	if next.LastContactDate.IsZero() {
		next.LastContactDate = before.LastContactDate
	}
	r.applyDefaults(&next)
	if err := validateRelationship(&next); err != nil {
		return nil, err
	}

	if models.NormalizeName(next.ContactName) != models.NormalizeName(before.ContactName) {
		existing, err := r.CheckCollision(ctx, next.ContactName, next.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return nil, &CollisionError{Name: next.ContactName, Existing: existing}
		}
	}

	return r.patch(ctx, q, current, &next)
}

func (r *Relationships) patch(ctx context.Context, q db.Query, current *db.Document, next *models.Relationship) (*models.Relationship, error) {
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
		return nil, storeErr("update relationship", err)
	}
	return r.decode(doc)
}

// RecordContact advances lastContactDate when at is newer than the stored
// date. It reports whether anything changed.
func (r *Relationships) RecordContact(ctx context.Context, id string, at time.Time, method string) (*models.Relationship, bool, error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, false, err
	}
	current, err := r.store.Get(ctx, q.Collection, q.UserID, id)
	if err != nil {
		return nil, false, storeErr("record contact", err)
	}
	rel, err := r.decode(current)
	if err != nil {
		return nil, false, err
	}
	if !at.After(rel.LastContactDate) {
		return rel, false, nil
	}

	rel.LastContactDate = at
	if method != "" {
		rel.LastContactMethod = method
	}
	rel.NextReminderDate = cadence.NextPtr(rel.LastContactDate, rel.ReminderFrequency)
	updated, err := r.patch(ctx, q, current, rel)
	if err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

// Delete removes only the relationship document. Service.DeleteRelationship
// also removes its activities and reminders.
func (r *Relationships) Delete(ctx context.Context, id string) error {
	q, err := r.scope(ctx)
	if err != nil {
		return err
	}
	return storeErr("delete relationship", r.store.Delete(ctx, q.Collection, q.UserID, id))
}

// Subscribe calls fn with the sorted relationship list now and after every
// change.
func (r *Relationships) Subscribe(ctx context.Context, fn func([]*models.Relationship)) (func(), error) {
	q, err := r.scope(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.Subscribe(q, func(docs []*db.Document) {
		rels, err := decodeAll[models.Relationship](docs)
		if err != nil {
			log.Warn("decode relationships", "err", err)
			return
		}
		sortByName(rels)
		fn(rels)
	})
}

func sortByName(rels []*models.Relationship) {
	sort.SliceStable(rels, func(i, j int) bool {
		return models.NormalizeName(rels[i].ContactName) < models.NormalizeName(rels[j].ContactName)
	})
}
