// ABOUTME: MCP prompt handlers for relationship workflows
// ABOUTME: Builds catch-up briefings and follow-up suggestions from stored records
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/kith/cadence"
	"github.com/harperreed/kith/crm"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	svc  *crm.Service
	rels *RelationshipHandlers
	now  func() time.Time
}

func NewPromptHandlers(svc *crm.Service) *PromptHandlers {
	return &PromptHandlers{svc: svc, rels: NewRelationshipHandlers(svc), now: time.Now}
}

// Prompts lists the prompt templates this server offers.
func (h *PromptHandlers) Prompts() []*mcp.Prompt {
	return []*mcp.Prompt{
		{
			Name:        "catch-up",
			Description: "Brief me before reaching out to someone",
			Arguments: []*mcp.PromptArgument{
				{Name: "relationship", Description: "Relationship ID or contact name", Required: true},
			},
		},
		{
			Name:        "follow-up-suggestions",
			Description: "Suggest who to reach out to this week",
		},
	}
}

// GetPrompt generates the prompt message for the named template.
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	switch request.Params.Name {
	case "catch-up":
		return h.catchUp(ctx, request.Params.Arguments)
	case "follow-up-suggestions":
		return h.followUpSuggestions(ctx)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *PromptHandlers) catchUp(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	ref, ok := args["relationship"]
	if !ok {
		return nil, fmt.Errorf("relationship is required")
	}
	rel, err := h.rels.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	acts, err := h.svc.Activities.ListForRelationship(ctx, rel)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activities: %w", err)
	}

	now := h.now()
	var b strings.Builder
	fmt.Fprintf(&b, "I'm about to reach out to %s.\n\n", rel.ContactName)
	fmt.Fprintf(&b, "Last contact: %s via %s (%s)\n",
		rel.LastContactDate.Format("2006-01-02"), rel.LastContactMethod,
		cadence.BucketForDays(cadence.ElapsedDays(rel.LastContactDate, now)))
	fmt.Fprintf(&b, "Intended cadence: %s\n", rel.ReminderFrequency)
	if rel.FamilyInfo.Spouse != "" || rel.FamilyInfo.Kids != "" {
		fmt.Fprintf(&b, "Family: spouse %q, kids %q\n", rel.FamilyInfo.Spouse, rel.FamilyInfo.Kids)
	}
	if rel.ContactData.Company != "" {
		fmt.Fprintf(&b, "Works at: %s %s\n", rel.ContactData.Company, rel.ContactData.JobTitle)
	}
	if rel.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", rel.Notes)
	}

	if len(acts) > 0 {
		b.WriteString("\nRecent history:\n")
		for i, act := range acts {
			if i == 10 {
				break
			}
			out := activityToOutput(act)
			detail := out.Content
			if detail == "" {
				detail = out.Description
			}
			fmt.Fprintf(&b, "- %s %s: %s\n", act.CreatedAt.Format("2006-01-02"), act.Type, detail)
		}
	}

	b.WriteString("\nPlease give me:")
	b.WriteString("\n1. A short refresher on where we left off")
	b.WriteString("\n2. Two or three things worth asking about")
	b.WriteString("\n3. A suggested opening message")

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Catch-up briefing for %s", rel.ContactName),
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: b.String()}},
		},
	}, nil
}

func (h *PromptHandlers) followUpSuggestions(ctx context.Context) (*mcp.GetPromptResult, error) {
	now := h.now()
	due, err := h.svc.Relationships.ListDue(ctx, now.AddDate(0, 0, 7))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due relationships: %w", err)
	}
	rems, err := h.svc.Reminders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reminders: %w", err)
	}

	var b strings.Builder
	b.WriteString("Here is who I'm due to contact this week.\n\n")
	if len(due) == 0 {
		b.WriteString("No relationships are due.\n")
	}
	for _, rel := range due {
		state := "due"
		if rel.NextReminderDate != nil && rel.NextReminderDate.Before(now) {
			state = "overdue"
		}
		fmt.Fprintf(&b, "- %s (%s, every %s, last contact %s)\n",
			rel.ContactName, state, rel.ReminderFrequency, rel.LastContactDate.Format("2006-01-02"))
	}

	var upcoming []string
	for _, rem := range rems {
		if rem.IsOverdue || rem.IsThisWeek {
			upcoming = append(upcoming, fmt.Sprintf("- %s: %s on %s", rem.ContactName,
				strings.ReplaceAll(rem.Type, "_", " "), rem.Date.Format("2006-01-02 15:04")))
		}
	}
	if len(upcoming) > 0 {
		b.WriteString("\nScheduled reminders:\n")
		b.WriteString(strings.Join(upcoming, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\nPlease prioritize these and suggest a short plan for the week.")

	return &mcp.GetPromptResult{
		Description: "Follow-up suggestions for the coming week",
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: b.String()}},
		},
	}, nil
}
