// ABOUTME: Activity and reminder MCP tool handlers
// ABOUTME: Implements add_note, log_interaction, add_reminder, complete_reminder and the list tools
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/kith/cadence"
	"github.com/harperreed/kith/crm"
	"github.com/harperreed/kith/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ActivityHandlers struct {
	svc *crm.Service
	now func() time.Time
}

func NewActivityHandlers(svc *crm.Service) *ActivityHandlers {
	return &ActivityHandlers{svc: svc, now: time.Now}
}

type ActivityOutput struct {
	ID              string   `json:"id"`
	Type            string   `json:"type"`
	ContactName     string   `json:"contact_name,omitempty"`
	Description     string   `json:"description,omitempty"`
	Tags            []string `json:"tags"`
	IsArchived      bool     `json:"is_archived"`
	Content         string   `json:"content,omitempty"`
	Category        string   `json:"category,omitempty"`
	InteractionType string   `json:"interaction_type,omitempty"`
	Date            string   `json:"date,omitempty"`
	Duration        int      `json:"duration,omitempty"`
	Location        string   `json:"location,omitempty"`
	ReminderDate    string   `json:"reminder_date,omitempty"`
	ReminderType    string   `json:"reminder_type,omitempty"`
	Frequency       string   `json:"frequency,omitempty"`
	ReminderID      string   `json:"reminder_id,omitempty"`
	IsCompleted     bool     `json:"is_completed,omitempty"`
	CreatedAt       string   `json:"created_at"`
	Warnings        []string `json:"warnings,omitempty"`
}

type ReminderOutput struct {
	ID          string   `json:"id"`
	ContactName string   `json:"contact_name"`
	Type        string   `json:"type"`
	Date        string   `json:"date"`
	Frequency   string   `json:"frequency"`
	Notes       string   `json:"notes,omitempty"`
	Tags        []string `json:"tags"`
	IsOverdue   bool     `json:"is_overdue"`
	IsThisWeek  bool     `json:"is_this_week"`
}

type AddNoteInput struct {
	Content     string   `json:"content" jsonschema:"Note text"`
	ContactName string   `json:"contact_name,omitempty" jsonschema:"Person the note is about; created as a relationship if new"`
	Category    string   `json:"category,omitempty" jsonschema:"Category (default general)"`
	Tags        []string `json:"tags,omitempty" jsonschema:"Tags"`
}

func (h *ActivityHandlers) AddNote(ctx context.Context, request *mcp.CallToolRequest, input AddNoteInput) (*mcp.CallToolResult, ActivityOutput, error) {
	return h.add(ctx, &models.Activity{
		Type:        models.ActivityNote,
		ContactName: input.ContactName,
		Content:     input.Content,
		Category:    input.Category,
		Tags:        input.Tags,
	})
}

type LogInteractionInput struct {
	ContactName     string   `json:"contact_name" jsonschema:"Person you interacted with"`
	InteractionType string   `json:"interaction_type,omitempty" jsonschema:"call, text, email or inPerson (default call)"`
	Date            string   `json:"date,omitempty" jsonschema:"When it happened, YYYY-MM-DD or RFC 3339; defaults to now and may not be in the future"`
	Duration        int      `json:"duration,omitempty" jsonschema:"Duration in minutes"`
	Location        string   `json:"location,omitempty" jsonschema:"Where it happened"`
	Description     string   `json:"description,omitempty" jsonschema:"What you talked about"`
	Tags            []string `json:"tags,omitempty" jsonschema:"Tags"`
}

func (h *ActivityHandlers) LogInteraction(ctx context.Context, request *mcp.CallToolRequest, input LogInteractionInput) (*mcp.CallToolResult, ActivityOutput, error) {
	act := &models.Activity{
		Type:            models.ActivityInteraction,
		ContactName:     input.ContactName,
		InteractionType: input.InteractionType,
		Duration:        input.Duration,
		Location:        input.Location,
		Description:     input.Description,
		Tags:            input.Tags,
	}
	if input.Date != "" {
		t, err := parseDate(input.Date, h.now())
		if err != nil {
			return nil, ActivityOutput{}, fmt.Errorf("invalid date: %w", err)
		}
		act.Date = &t
	}
	return h.add(ctx, act)
}

type AddReminderInput struct {
	ContactName  string   `json:"contact_name" jsonschema:"Person to follow up with"`
	Date         string   `json:"date" jsonschema:"Due date and time in RFC 3339; must be in the future"`
	ReminderType string   `json:"reminder_type,omitempty" jsonschema:"Kind of follow-up (default follow_up)"`
	Frequency    string   `json:"frequency,omitempty" jsonschema:"Repeat: never, week, month, 3months, 6months or year"`
	Notes        string   `json:"notes,omitempty" jsonschema:"Notes"`
	Tags         []string `json:"tags,omitempty" jsonschema:"Tags"`
}

func (h *ActivityHandlers) AddReminder(ctx context.Context, request *mcp.CallToolRequest, input AddReminderInput) (*mcp.CallToolResult, ActivityOutput, error) {
	if input.Date == "" {
		return nil, ActivityOutput{}, fmt.Errorf("date is required")
	}
	due, ok := cadence.ParseDate(input.Date)
	if !ok {
		return nil, ActivityOutput{}, fmt.Errorf("invalid date %q", input.Date)
	}
	act := &models.Activity{
		Type:         models.ActivityReminder,
		ContactName:  input.ContactName,
		ReminderDate: &due,
		ReminderType: input.ReminderType,
		Description:  input.Notes,
		Tags:         input.Tags,
	}
	if input.Frequency != "" {
		freq, err := cadence.ParseFrequency(input.Frequency)
		if err != nil {
			return nil, ActivityOutput{}, err
		}
		act.Frequency = freq
	}
	return h.add(ctx, act)
}

func (h *ActivityHandlers) add(ctx context.Context, act *models.Activity) (*mcp.CallToolResult, ActivityOutput, error) {
	created, warns, err := h.svc.AddActivity(ctx, act, nil)
	if err != nil {
		return nil, ActivityOutput{}, fmt.Errorf("failed to add %s: %w", act.Type, err)
	}
	out := activityToOutput(created)
	out.Warnings = warningStrings(warns)
	return nil, out, nil
}

type CompleteReminderInput struct {
	ID string `json:"id" jsonschema:"Reminder activity ID or reminder ID"`
}

func (h *ActivityHandlers) CompleteReminder(ctx context.Context, request *mcp.CallToolRequest, input CompleteReminderInput) (*mcp.CallToolResult, ActivityOutput, error) {
	act, err := h.reminderActivity(ctx, input.ID)
	if err != nil {
		return nil, ActivityOutput{}, err
	}
	done, warns, err := h.svc.Activities.CompleteReminder(ctx, act.ID)
	if err != nil {
		return nil, ActivityOutput{}, fmt.Errorf("failed to complete reminder: %w", err)
	}
	out := activityToOutput(done)
	out.Warnings = warningStrings(warns)
	return nil, out, nil
}

type UpdateActivityInput struct {
	ID          string   `json:"id" jsonschema:"Activity ID"`
	Description *string  `json:"description,omitempty" jsonschema:"New description"`
	Content     *string  `json:"content,omitempty" jsonschema:"New note content"`
	Date        string   `json:"date,omitempty" jsonschema:"New interaction date or reminder due date"`
	Frequency   string   `json:"frequency,omitempty" jsonschema:"New reminder frequency"`
	Location    *string  `json:"location,omitempty" jsonschema:"New interaction location"`
	Tags        []string `json:"tags,omitempty" jsonschema:"Replacement tags"`
	Archived    *bool    `json:"archived,omitempty" jsonschema:"Archive or restore the activity"`
}

func (h *ActivityHandlers) UpdateActivity(ctx context.Context, request *mcp.CallToolRequest, input UpdateActivityInput) (*mcp.CallToolResult, ActivityOutput, error) {
	act, err := h.svc.Activities.Get(ctx, input.ID)
	if err != nil {
		return nil, ActivityOutput{}, fmt.Errorf("activity not found: %w", err)
	}
	if input.Description != nil {
		act.Description = *input.Description
	}
	if input.Content != nil {
		act.Content = *input.Content
	}
	if input.Location != nil {
		act.Location = *input.Location
	}
	if input.Tags != nil {
		act.Tags = input.Tags
	}
	if input.Frequency != "" {
		freq, err := cadence.ParseFrequency(input.Frequency)
		if err != nil {
			return nil, ActivityOutput{}, err
		}
		act.Frequency = freq
	}
	if input.Date != "" {
		t, err := parseDate(input.Date, h.now())
		if err != nil {
			return nil, ActivityOutput{}, fmt.Errorf("invalid date: %w", err)
		}
		switch act.Type {
		case models.ActivityInteraction:
			act.Date = &t
		case models.ActivityReminder:
			act.ReminderDate = &t
		default:
			return nil, ActivityOutput{}, fmt.Errorf("date does not apply to %s activities", act.Type)
		}
	}

	updated, warns, err := h.svc.Activities.Update(ctx, act)
	if err != nil {
		return nil, ActivityOutput{}, fmt.Errorf("failed to update activity: %w", err)
	}
	if input.Archived != nil && *input.Archived != updated.IsArchived {
		if *input.Archived {
			updated, err = h.svc.Activities.Archive(ctx, updated.ID)
		} else {
			updated, err = h.svc.Activities.Unarchive(ctx, updated.ID)
		}
		if err != nil {
			return nil, ActivityOutput{}, fmt.Errorf("failed to archive activity: %w", err)
		}
	}
	out := activityToOutput(updated)
	out.Warnings = warningStrings(warns)
	return nil, out, nil
}

type DeleteActivityInput struct {
	ID string `json:"id" jsonschema:"Activity ID"`
}

func (h *ActivityHandlers) DeleteActivity(ctx context.Context, request *mcp.CallToolRequest, input DeleteActivityInput) (*mcp.CallToolResult, DeleteOutput, error) {
	warns, err := h.svc.Activities.Delete(ctx, input.ID)
	if err != nil {
		return nil, DeleteOutput{}, fmt.Errorf("failed to delete activity: %w", err)
	}
	return nil, DeleteOutput{ID: input.ID, Deleted: true, Warnings: warningStrings(warns)}, nil
}

type ListActivitiesInput struct {
	Type            string `json:"type,omitempty" jsonschema:"Only note, interaction or reminder"`
	ContactName     string `json:"contact_name,omitempty" jsonschema:"Only activities about this person"`
	IncludeArchived bool   `json:"include_archived,omitempty" jsonschema:"Include archived activities"`
	Limit           int    `json:"limit,omitempty" jsonschema:"Maximum results (default 50)"`
}

type ListActivitiesOutput struct {
	Activities []ActivityOutput `json:"activities"`
}

func (h *ActivityHandlers) ListActivities(ctx context.Context, request *mcp.CallToolRequest, input ListActivitiesInput) (*mcp.CallToolResult, ListActivitiesOutput, error) {
	if input.Type != "" && !models.ActivityType(input.Type).Valid() {
		return nil, ListActivitiesOutput{}, fmt.Errorf("invalid type %q", input.Type)
	}
	if input.Limit <= 0 {
		input.Limit = 50
	}
	acts, err := h.svc.Activities.List(ctx, crm.ActivityFilter{
		Type:            models.ActivityType(input.Type),
		ContactName:     input.ContactName,
		IncludeArchived: input.IncludeArchived,
		Limit:           input.Limit,
	})
	if err != nil {
		return nil, ListActivitiesOutput{}, fmt.Errorf("failed to list activities: %w", err)
	}
	out := ListActivitiesOutput{Activities: make([]ActivityOutput, 0, len(acts))}
	for _, act := range acts {
		out.Activities = append(out.Activities, activityToOutput(act))
	}
	return nil, out, nil
}

type ListRemindersInput struct {
	OverdueOnly bool `json:"overdue_only,omitempty" jsonschema:"Only reminders past their due date"`
	WithinDays  int  `json:"within_days,omitempty" jsonschema:"Only reminders due within this many days"`
}

type ListRemindersOutput struct {
	Reminders []ReminderOutput `json:"reminders"`
}

func (h *ActivityHandlers) ListReminders(ctx context.Context, request *mcp.CallToolRequest, input ListRemindersInput) (*mcp.CallToolResult, ListRemindersOutput, error) {
	rems, err := h.svc.Reminders.List(ctx)
	if err != nil {
		return nil, ListRemindersOutput{}, fmt.Errorf("failed to list reminders: %w", err)
	}
	cutoff := h.now().AddDate(0, 0, input.WithinDays)
	out := ListRemindersOutput{Reminders: []ReminderOutput{}}
	for _, rem := range rems {
		if input.OverdueOnly && !rem.IsOverdue {
			continue
		}
		if input.WithinDays > 0 && rem.Date.After(cutoff) {
			continue
		}
		out.Reminders = append(out.Reminders, reminderToOutput(rem))
	}
	return nil, out, nil
}

// reminderActivity accepts an activity ID or the ID of its paired reminder.
func (h *ActivityHandlers) reminderActivity(ctx context.Context, id string) (*models.Activity, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("id is required")
	}
	act, err := h.svc.Activities.Get(ctx, id)
	if err == nil {
		return act, nil
	}
	paired, findErr := h.svc.Activities.FindByReminderID(ctx, id)
	if findErr != nil {
		return nil, findErr
	}
	if paired == nil {
		return nil, fmt.Errorf("reminder not found: %w", err)
	}
	return paired, nil
}

func activityToOutput(act *models.Activity) ActivityOutput {
	return ActivityOutput{
		ID:              act.ID,
		Type:            string(act.Type),
		ContactName:     act.ContactName,
		Description:     act.Description,
		Tags:            nonNil(act.Tags),
		IsArchived:      act.IsArchived,
		Content:         act.Content,
		Category:        act.Category,
		InteractionType: act.InteractionType,
		Date:            formatTime(act.Date),
		Duration:        act.Duration,
		Location:        act.Location,
		ReminderDate:    formatTime(act.ReminderDate),
		ReminderType:    act.ReminderType,
		Frequency:       string(act.Frequency),
		ReminderID:      act.ReminderID,
		IsCompleted:     act.IsCompleted,
		CreatedAt:       formatTime(&act.CreatedAt),
	}
}

func reminderToOutput(rem *models.Reminder) ReminderOutput {
	return ReminderOutput{
		ID:          rem.ID,
		ContactName: rem.ContactName,
		Type:        rem.Type,
		Date:        formatTime(&rem.Date),
		Frequency:   string(rem.Frequency),
		Notes:       rem.Notes,
		Tags:        nonNil(rem.Tags),
		IsOverdue:   rem.IsOverdue,
		IsThisWeek:  rem.IsThisWeek,
	}
}
