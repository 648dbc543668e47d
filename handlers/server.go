// ABOUTME: Assembles the MCP server from the tool, resource and prompt handlers
// ABOUTME: Shared by the stdio command and tests
package handlers

import (
	"github.com/harperreed/kith/crm"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer registers every kith tool, resource and prompt against svc.
func NewServer(svc *crm.Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "kith",
		Version: version,
	}, nil)

	rels := NewRelationshipHandlers(svc)
	acts := NewActivityHandlers(svc)
	resources := NewResourceHandlers(svc)
	prompts := NewPromptHandlers(svc)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_relationship",
		Description: "Start tracking a person with a check-in cadence",
	}, rels.AddRelationship)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_relationships",
		Description: "List tracked relationships, optionally only those due for a check-in",
	}, rels.ListRelationships)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_relationship",
		Description: "Get a relationship with its activity timeline and reminders",
	}, rels.GetRelationship)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_relationship",
		Description: "Update a relationship's cadence, contact details or name",
	}, rels.UpdateRelationship)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_relationship",
		Description: "Delete a relationship together with its activities and reminders",
	}, rels.DeleteRelationship)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_note",
		Description: "Record a note, optionally about a person",
	}, acts.AddNote)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "log_interaction",
		Description: "Log a call, text, email or meeting and update the last contact date",
	}, acts.LogInteraction)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_reminder",
		Description: "Schedule a follow-up reminder with notifications",
	}, acts.AddReminder)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "complete_reminder",
		Description: "Mark a reminder done; recurring reminders roll forward",
	}, acts.CompleteReminder)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_activity",
		Description: "Edit, archive or restore an activity; reminder edits reschedule notifications",
	}, acts.UpdateActivity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_activity",
		Description: "Delete an activity and its paired reminder",
	}, acts.DeleteActivity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_activities",
		Description: "List the activity timeline, newest first",
	}, acts.ListActivities)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_reminders",
		Description: "List scheduled reminders by due date",
	}, acts.ListReminders)

	server.AddResource(&mcp.Resource{
		URI:      resourceScheme + "relationships",
		Name:     "relationships",
		MIMEType: "application/json",
	}, resources.ReadResource)
	server.AddResource(&mcp.Resource{
		URI:      resourceScheme + "reminders",
		Name:     "reminders",
		MIMEType: "application/json",
	}, resources.ReadResource)
	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: resourceScheme + "relationships/{id}",
		Name:        "relationship",
		MIMEType:    "application/json",
	}, resources.ReadResource)

	for _, p := range prompts.Prompts() {
		server.AddPrompt(p, prompts.GetPrompt)
	}

	return server
}
