// ABOUTME: Wires the stores together for cross-entity operations
// ABOUTME: Activity recording, explicit relationship creation and cascading delete
package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kith/contacts"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/identity"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/notify"
	"golang.org/x/sync/errgroup"
)

// cascadeLimit bounds concurrent child deletions.
const cascadeLimit = 8

// Resolution picks how StartRelationship handles a name collision.
type Resolution int

const (
	// ResolveNone reports the collision to the caller.
	ResolveNone Resolution = iota
	// ResolveOpenExisting returns the existing relationship for editing.
	ResolveOpenExisting
	// ResolveFork creates the relationship under "<name> (<year>)".
	ResolveFork
)

// Service is constructed once at startup and shared by every surface.
type Service struct {
	Relationships *Relationships
	Activities    *Activities
	Reminders     *Reminders
	Reconciler    *Reconciler
	Directory     contacts.Directory

	now func() time.Time
}

// NewService builds the stores over store. scheduler and dir may be nil.
func NewService(store db.Store, ids identity.Provider, scheduler *notify.Scheduler, dir contacts.Directory) *Service {
	if dir == nil {
		dir = contacts.None{}
	}
	rels := NewRelationships(store, ids)
	rems := NewReminders(store, ids, scheduler)
	return &Service{
		Relationships: rels,
		Activities:    NewActivities(store, ids, rems),
		Reminders:     rems,
		Reconciler:    NewReconciler(rels, ids),
		Directory:     dir,
		now:           utcNow,
	}
}

// AddActivity records an activity, creating the relationship it refers to
// when needed. source seeds a new relationship's contact data; when nil
// the directory is searched by name. Relationship creation and the
// last-contact bump for interactions are best-effort.
func (s *Service) AddActivity(ctx context.Context, act *models.Activity, source *models.DeviceContact) (*models.Activity, Warnings, error) {
	draft, err := s.Activities.prepare(act)
	if err != nil {
		return nil, nil, err
	}

	var warns Warnings
	var rel *models.Relationship
	if draft.ContactName != "" {
		if source == nil {
			source = contacts.FindByName(ctx, s.Directory, draft.ContactName)
		}
		if source != nil && draft.ContactID == "" {
			draft.ContactID = source.ID
		}
		rel, err = s.Reconciler.ensure(ctx, draft.ContactName, source)
		warns.note("ensure relationship", err, "name", draft.ContactName)
	}

	relID := ""
	if rel != nil {
		relID = rel.ID
	}
	created, actWarns, err := s.Activities.insert(ctx, draft, relID)
	if err != nil {
		return nil, nil, err
	}
	warns = append(warns, actWarns...)

	if rel != nil && created.Type == models.ActivityInteraction && created.Date != nil {
		_, _, err := s.Relationships.RecordContact(ctx, rel.ID, *created.Date, created.InteractionType)
		warns.note("record contact", err, "relationship", rel.ID)
	}
	return created, warns, nil
}

// StartRelationship creates a relationship from an explicit user action.
// When the name is taken the outcome depends on res; a fork name that is
// also taken returns another *CollisionError rather than retrying.
func (s *Service) StartRelationship(ctx context.Context, draft *models.Relationship, res Resolution) (*models.Relationship, error) {
	existing, err := s.Relationships.CheckCollision(ctx, draft.ContactName, "")
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return s.Relationships.Create(ctx, draft)
	}

	fork := ForkName(strings.TrimSpace(draft.ContactName), s.now())
	switch res {
	case ResolveOpenExisting:
		return existing, nil
	case ResolveFork:
		taken, err := s.Relationships.CheckCollision(ctx, fork, "")
		if err != nil {
			return nil, err
		}
		if taken != nil {
			return nil, &CollisionError{Name: fork, Existing: taken, ForkName: ForkName(fork, s.now())}
		}
		forked := *draft
		forked.ContactName = fork
		return s.Relationships.Create(ctx, &forked)
	}
	return nil, &CollisionError{Name: draft.ContactName, Existing: existing, ForkName: fork}
}

// UpdateRelationship persists rel. A rename is carried over to the
// activities and reminders filed under the old name; failures there are
// warnings.
func (s *Service) UpdateRelationship(ctx context.Context, rel *models.Relationship) (*models.Relationship, Warnings, error) {
	before, err := s.Relationships.Get(ctx, rel.ID)
	if err != nil {
		return nil, nil, err
	}
	updated, err := s.Relationships.Update(ctx, rel)
	if err != nil {
		return nil, nil, err
	}
	if updated.ContactName == before.ContactName {
		return updated, nil, nil
	}

	var warns Warnings
	acts, err := s.Activities.ListForRelationship(ctx, before)
	warns.note("list activities", err, "relationship", before.ID)
	for _, act := range acts {
		warns.note("relink activity", s.Activities.relink(ctx, act.ID, updated), "activity", act.ID)
	}

	rems, err := s.Reminders.ListForRelationship(ctx, before)
	warns.note("list reminders", err, "relationship", before.ID)
	for _, rem := range rems {
		rem.ContactName, rem.RelationshipID = updated.ContactName, updated.ID
		_, remWarns, err := s.Reminders.Update(ctx, rem)
		warns.note("relink reminder", err, "reminder", rem.ID)
		warns = append(warns, remWarns...)
	}
	log.Info("renamed relationship", "from", before.ContactName, "to", updated.ContactName, "activities", len(acts), "reminders", len(rems))
	return updated, warns, nil
}

// ForkName disambiguates name with the current year.
func ForkName(name string, now time.Time) string {
	return fmt.Sprintf("%s (%d)", name, now.Year())
}

// DeleteRelationship removes the relationship together with every activity
// and reminder referring to it. Children are deleted concurrently and each
// failure only becomes a warning; the relationship itself goes last and
// its failure is returned.
func (s *Service) DeleteRelationship(ctx context.Context, id string) (Warnings, error) {
	rel, err := s.Relationships.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var warns Warnings
	acts, err := s.Activities.ListForRelationship(ctx, rel)
	warns.note("list activities", err, "relationship", id)
	rems, err := s.Reminders.ListForRelationship(ctx, rel)
	warns.note("list reminders", err, "relationship", id)

	var mu sync.Mutex
	collect := func(op string, err error, keyvals ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		warns.note(op, err, keyvals...)
	}

	// Paired reminders are removed in the reminder pass, so activities
	// only drop their own document.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cascadeLimit)
	for _, act := range acts {
		act := act
		g.Go(func() error {
			collect("delete activity", s.Activities.deleteDoc(gctx, act.ID), "activity", act.ID)
			return nil
		})
	}
	for _, remID := range reminderIDs(acts, rems) {
		remID := remID
		g.Go(func() error {
			remWarns, err := s.Reminders.Delete(gctx, remID)
			if errors.Is(err, ErrNotFoundOrAccessDenied) {
				err = nil
			}
			collect("delete reminder", err, "reminder", remID)
			mu.Lock()
			warns = append(warns, remWarns...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := s.Relationships.Delete(ctx, id); err != nil {
		return warns, err
	}
	log.Info("deleted relationship", "name", rel.ContactName, "activities", len(acts), "reminders", len(rems), "warnings", len(warns))
	return warns, nil
}

// reminderIDs merges the reminders found for a relationship with those
// referenced by its activities.
func reminderIDs(acts []*models.Activity, rems []*models.Reminder) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, r := range rems {
		add(r.ID)
	}
	for _, a := range acts {
		add(a.ReminderID)
	}
	return ids
}
