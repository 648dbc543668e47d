// ABOUTME: Relationship MCP tool handlers
// ABOUTME: Implements add, list, get, update and delete of tracked relationships
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/kith/cadence"
	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type RelationshipHandlers struct {
	svc *crm.Service
	now func() time.Time
}

func NewRelationshipHandlers(svc *crm.Service) *RelationshipHandlers {
	return &RelationshipHandlers{svc: svc, now: time.Now}
}

type RelationshipFields struct {
	ContactFrequency  string   `json:"contact_frequency,omitempty" jsonschema:"Check-in cadence: never, week, month, 3months, 6months or year"`
	LastContactDate   string   `json:"last_contact_date,omitempty" jsonschema:"Last contact as YYYY-MM-DD or an elapsed bucket: today, yesterday, week, month, 3months, 6months, year"`
	LastContactMethod string   `json:"last_contact_method,omitempty" jsonschema:"call, text, email, inPerson or other"`
	Tags              []string `json:"tags,omitempty" jsonschema:"Tags"`
	Notes             string   `json:"notes,omitempty" jsonschema:"Free-form notes"`
	Phones            []string `json:"phones,omitempty" jsonschema:"Phone numbers"`
	Emails            []string `json:"emails,omitempty" jsonschema:"Email addresses"`
	Company           string   `json:"company,omitempty" jsonschema:"Company"`
	JobTitle          string   `json:"job_title,omitempty" jsonschema:"Job title"`
	Birthday          string   `json:"birthday,omitempty" jsonschema:"Birthday as MM/DD/YYYY"`
	Twitter           string   `json:"twitter,omitempty" jsonschema:"X/Twitter @handle or profile URL"`
	Instagram         string   `json:"instagram,omitempty" jsonschema:"Instagram @handle or profile URL"`
	Spouse            string   `json:"spouse,omitempty" jsonschema:"Spouse or partner"`
	Kids              string   `json:"kids,omitempty" jsonschema:"Kids"`
}

// apply copies the non-empty fields onto rel.
func (f RelationshipFields) apply(rel *models.Relationship, now time.Time) error {
	if f.ContactFrequency != "" {
		freq, err := cadence.ParseFrequency(f.ContactFrequency)
		if err != nil {
			return err
		}
		rel.ReminderFrequency = freq
	}
	if f.LastContactDate != "" {
		t, err := parseDate(f.LastContactDate, now)
		if err != nil {
			return fmt.Errorf("invalid last_contact_date: %w", err)
		}
		rel.LastContactDate = t
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&rel.LastContactMethod, f.LastContactMethod)
	set(&rel.Notes, f.Notes)
	set(&rel.ContactData.Company, f.Company)
	set(&rel.ContactData.JobTitle, f.JobTitle)
	set(&rel.ContactData.Birthday, f.Birthday)
	set(&rel.ContactData.Twitter, f.Twitter)
	set(&rel.ContactData.Instagram, f.Instagram)
	set(&rel.FamilyInfo.Spouse, f.Spouse)
	set(&rel.FamilyInfo.Kids, f.Kids)
	if f.Tags != nil {
		rel.Tags = f.Tags
	}
	if f.Phones != nil {
		rel.ContactData.Phones = f.Phones
	}
	if f.Emails != nil {
		rel.ContactData.Emails = f.Emails
	}
	return nil
}

type AddRelationshipInput struct {
	ContactName string `json:"contact_name" jsonschema:"Name of the person to keep in touch with"`
	OnConflict  string `json:"on_conflict,omitempty" jsonschema:"When the name is already tracked: fail (default), open to return the existing record, or fork to add a dated copy"`
	RelationshipFields
}

type RelationshipOutput struct {
	ID                string   `json:"id"`
	ContactName       string   `json:"contact_name"`
	ContactID         string   `json:"contact_id,omitempty"`
	LastContactDate   string   `json:"last_contact_date"`
	LastContactMethod string   `json:"last_contact_method"`
	ContactFrequency  string   `json:"contact_frequency"`
	NextReminderDate  string   `json:"next_reminder_date,omitempty"`
	Tags              []string `json:"tags"`
	Notes             string   `json:"notes,omitempty"`
	Phones            []string `json:"phones,omitempty"`
	Emails            []string `json:"emails,omitempty"`
	Company           string   `json:"company,omitempty"`
	JobTitle          string   `json:"job_title,omitempty"`
	Birthday          string   `json:"birthday,omitempty"`
	Twitter           string   `json:"twitter,omitempty"`
	Instagram         string   `json:"instagram,omitempty"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
	Warnings          []string `json:"warnings,omitempty"`
}

func (h *RelationshipHandlers) AddRelationship(ctx context.Context, request *mcp.CallToolRequest, input AddRelationshipInput) (*mcp.CallToolResult, RelationshipOutput, error) {
	if strings.TrimSpace(input.ContactName) == "" {
		return nil, RelationshipOutput{}, fmt.Errorf("contact_name is required")
	}

	var res crm.Resolution
	switch input.OnConflict {
	case "", "fail":
		res = crm.ResolveNone
	case "open":
		res = crm.ResolveOpenExisting
	case "fork":
		res = crm.ResolveFork
	default:
		return nil, RelationshipOutput{}, fmt.Errorf("invalid on_conflict %q: want fail, open or fork", input.OnConflict)
	}

	draft := &models.Relationship{ContactName: input.ContactName}
	if err := input.RelationshipFields.apply(draft, h.now()); err != nil {
		return nil, RelationshipOutput{}, err
	}

	rel, err := h.svc.StartRelationship(ctx, draft, res)
	if err != nil {
		var collision *crm.CollisionError
		if errors.As(err, &collision) {
			return nil, RelationshipOutput{}, fmt.Errorf("%w; retry with on_conflict open or fork", err)
		}
		return nil, RelationshipOutput{}, fmt.Errorf("failed to add relationship: %w", err)
	}

	return nil, relationshipToOutput(rel), nil
}

type ListRelationshipsInput struct {
	DueWithinDays *int   `json:"due_within_days,omitempty" jsonschema:"Only relationships whose next check-in falls within this many days (0 means overdue or due today)"`
	Tag           string `json:"tag,omitempty" jsonschema:"Only relationships with this tag"`
}

type ListRelationshipsOutput struct {
	Relationships []RelationshipOutput `json:"relationships"`
}

func (h *RelationshipHandlers) ListRelationships(ctx context.Context, request *mcp.CallToolRequest, input ListRelationshipsInput) (*mcp.CallToolResult, ListRelationshipsOutput, error) {
	var rels []*models.Relationship
	var err error
	if input.DueWithinDays != nil {
		rels, err = h.svc.Relationships.ListDue(ctx, h.now().AddDate(0, 0, *input.DueWithinDays))
	} else {
		rels, err = h.svc.Relationships.List(ctx)
	}
	if err != nil {
		return nil, ListRelationshipsOutput{}, fmt.Errorf("failed to list relationships: %w", err)
	}

	out := ListRelationshipsOutput{Relationships: []RelationshipOutput{}}
	for _, rel := range rels {
		if input.Tag != "" && !hasTag(rel.Tags, input.Tag) {
			continue
		}
		out.Relationships = append(out.Relationships, relationshipToOutput(rel))
	}
	return nil, out, nil
}

type GetRelationshipInput struct {
	Relationship string `json:"relationship" jsonschema:"Relationship ID or contact name"`
}

type RelationshipDetailOutput struct {
	RelationshipOutput
	Activities []ActivityOutput `json:"activities"`
	Reminders  []ReminderOutput `json:"reminders"`
}

func (h *RelationshipHandlers) GetRelationship(ctx context.Context, request *mcp.CallToolRequest, input GetRelationshipInput) (*mcp.CallToolResult, RelationshipDetailOutput, error) {
	rel, err := h.lookup(ctx, input.Relationship)
	if err != nil {
		return nil, RelationshipDetailOutput{}, err
	}

	acts, err := h.svc.Activities.ListForRelationship(ctx, rel)
	if err != nil {
		return nil, RelationshipDetailOutput{}, fmt.Errorf("failed to list activities: %w", err)
	}
	rems, err := h.svc.Reminders.ListForRelationship(ctx, rel)
	if err != nil {
		return nil, RelationshipDetailOutput{}, fmt.Errorf("failed to list reminders: %w", err)
	}

	out := RelationshipDetailOutput{
		RelationshipOutput: relationshipToOutput(rel),
		Activities:         make([]ActivityOutput, 0, len(acts)),
		Reminders:          make([]ReminderOutput, 0, len(rems)),
	}
	for _, act := range acts {
		out.Activities = append(out.Activities, activityToOutput(act))
	}
	for _, rem := range rems {
		out.Reminders = append(out.Reminders, reminderToOutput(rem))
	}
	return nil, out, nil
}

type UpdateRelationshipInput struct {
	Relationship string `json:"relationship" jsonschema:"Relationship ID or contact name"`
	ContactName  string `json:"contact_name,omitempty" jsonschema:"New name; must not collide with another relationship"`
	RelationshipFields
}

func (h *RelationshipHandlers) UpdateRelationship(ctx context.Context, request *mcp.CallToolRequest, input UpdateRelationshipInput) (*mcp.CallToolResult, RelationshipOutput, error) {
	rel, err := h.lookup(ctx, input.Relationship)
	if err != nil {
		return nil, RelationshipOutput{}, err
	}
	if input.ContactName != "" {
		rel.ContactName = input.ContactName
	}
	if err := input.RelationshipFields.apply(rel, h.now()); err != nil {
		return nil, RelationshipOutput{}, err
	}

	updated, warns, err := h.svc.UpdateRelationship(ctx, rel)
	if err != nil {
		return nil, RelationshipOutput{}, fmt.Errorf("failed to update relationship: %w", err)
	}
	out := relationshipToOutput(updated)
	out.Warnings = warningStrings(warns)
	return nil, out, nil
}

type DeleteRelationshipInput struct {
	Relationship string `json:"relationship" jsonschema:"Relationship ID or contact name"`
}

type DeleteOutput struct {
	ID       string   `json:"id"`
	Deleted  bool     `json:"deleted"`
	Warnings []string `json:"warnings,omitempty"`
}

func (h *RelationshipHandlers) DeleteRelationship(ctx context.Context, request *mcp.CallToolRequest, input DeleteRelationshipInput) (*mcp.CallToolResult, DeleteOutput, error) {
	rel, err := h.lookup(ctx, input.Relationship)
	if err != nil {
		return nil, DeleteOutput{}, err
	}
	warns, err := h.svc.DeleteRelationship(ctx, rel.ID)
	if err != nil {
		return nil, DeleteOutput{}, fmt.Errorf("failed to delete relationship: %w", err)
	}
	return nil, DeleteOutput{ID: rel.ID, Deleted: true, Warnings: warningStrings(warns)}, nil
}

// lookup resolves an ID first, then a case-insensitive name.
func (h *RelationshipHandlers) lookup(ctx context.Context, ref string) (*models.Relationship, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("relationship is required")
	}
	rel, err := h.svc.Relationships.Get(ctx, ref)
	if err == nil {
		return rel, nil
	}
	if !errors.Is(err, crm.ErrNotFoundOrAccessDenied) {
		return nil, err
	}
	rel, err = h.svc.Relationships.FindByName(ctx, ref)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, fmt.Errorf("relationship not found: %s", ref)
	}
	return rel, nil
}

func relationshipToOutput(rel *models.Relationship) RelationshipOutput {
	return RelationshipOutput{
		ID:                rel.ID,
		ContactName:       rel.ContactName,
		ContactID:         rel.ContactID,
		LastContactDate:   formatTime(&rel.LastContactDate),
		LastContactMethod: rel.LastContactMethod,
		ContactFrequency:  string(rel.ReminderFrequency),
		NextReminderDate:  formatTime(rel.NextReminderDate),
		Tags:              nonNil(rel.Tags),
		Notes:             rel.Notes,
		Phones:            rel.ContactData.Phones,
		Emails:            rel.ContactData.Emails,
		Company:           rel.ContactData.Company,
		JobTitle:          rel.ContactData.JobTitle,
		Birthday:          rel.ContactData.Birthday,
		Twitter:           rel.ContactData.Twitter,
		Instagram:         rel.ContactData.Instagram,
		CreatedAt:         formatTime(&rel.CreatedAt),
		UpdatedAt:         formatTime(&rel.UpdatedAt),
	}
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
