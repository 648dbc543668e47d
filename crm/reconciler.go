// ABOUTME: Ensures a relationship exists before anything is recorded about a contact
// ABOUTME: Concurrent callers for one name collapse onto a single creation
package crm

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/harperreed/kith/identity"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/validation"
	"golang.org/x/sync/singleflight"
)

// Reconciler lazily creates relationships.
type Reconciler struct {
	rels  *Relationships
	ids   identity.Provider
	group singleflight.Group
}

// NewReconciler returns a reconciler creating relationships in rels.
func NewReconciler(rels *Relationships, ids identity.Provider) *Reconciler {
	return &Reconciler{rels: rels, ids: ids}
}

// EnsureRelationshipExists returns the relationship matching name,
// creating it with default cadence when absent. source, when given,
// seeds contact data. Failures are logged and reported as nil so they
// never block the caller's own write.
func (r *Reconciler) EnsureRelationshipExists(ctx context.Context, name string, source *models.DeviceContact) *models.Relationship {
	rel, err := r.ensure(ctx, name, source)
	if err != nil {
		var w Warnings
		w.note("ensure relationship", err, "name", name)
		return nil
	}
	return rel
}

func (r *Reconciler) ensure(ctx context.Context, name string, source *models.DeviceContact) (*models.Relationship, error) {
	key := models.NormalizeName(name)
	if key == "" {
		return nil, &validation.FieldError{Field: "contactName", Message: "is required"}
	}
	userID, err := r.ids.UserID(ctx)
	if err != nil {
		return nil, err
	}

	v, err, shared := r.group.Do(userID+"\x00"+key, func() (interface{}, error) {
		// Joined callers share this work, so it must outlive the first caller.
		ctx := context.WithoutCancel(ctx)
		existing, err := r.rels.FindByName(ctx, name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
		rel, err := r.rels.Create(ctx, newRelationship(name, source))
		if err != nil {
			return nil, err
		}
		log.Info("created relationship", "name", rel.ContactName, "id", rel.ID)
		return rel, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("joined in-flight relationship creation", "name", name)
	}
	out := *v.(*models.Relationship)
	return &out, nil
}

// newRelationship builds the lazily created record. Phones and emails come
// from source as-is; other source fields are kept only when they would pass
// validation.
func newRelationship(name string, source *models.DeviceContact) *models.Relationship {
	rel := &models.Relationship{ContactName: strings.TrimSpace(name)}
	if source == nil {
		return rel
	}

	rel.ContactID = source.ID
	rel.ContactData.Phones = keep(source.Phones, validation.Phone)
	rel.ContactData.Emails = keep(source.Emails, validation.Email)
	if validation.MaxLength(source.Company, validation.MaxCompany) {
		rel.ContactData.Company = source.Company
	}
	if validation.MaxLength(source.JobTitle, validation.MaxJobTitle) {
		rel.ContactData.JobTitle = source.JobTitle
	}
	if validation.MaxLength(source.Address, validation.MaxAddress) {
		rel.ContactData.Address = source.Address
	}
	if validation.Birthday(source.Birthday) {
		rel.ContactData.Birthday = source.Birthday
	}
	if validation.MaxLength(source.Note, validation.MaxContactNotes) {
		rel.ContactData.Notes = source.Note
	}
	return rel
}

func keep(values []string, ok func(string) bool) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" && ok(v) {
			out = append(out, v)
		}
	}
	return out
}
