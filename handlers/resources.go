// ABOUTME: MCP resource handlers exposing stored records
// ABOUTME: Provides read-only JSON views of relationships and reminders via kith:// URIs
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/kith/crm"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const resourceScheme = "kith://"

type ResourceHandlers struct {
	svc *crm.Service
}

func NewResourceHandlers(svc *crm.Service) *ResourceHandlers {
	return &ResourceHandlers{svc: svc}
}

// ReadResource handles resource read requests.
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}
	parts := strings.Split(strings.TrimPrefix(uri, resourceScheme), "/")

	switch parts[0] {
	case "relationships":
		if len(parts) == 1 || parts[1] == "" {
			return h.readRelationships(ctx, uri)
		}
		return h.readRelationship(ctx, uri, parts[1])
	case "reminders":
		return h.readReminders(ctx, uri)
	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}
}

func (h *ResourceHandlers) readRelationships(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	rels, err := h.svc.Relationships.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch relationships: %w", err)
	}
	out := make([]RelationshipOutput, 0, len(rels))
	for _, rel := range rels {
		out = append(out, relationshipToOutput(rel))
	}
	return jsonResource(uri, out)
}

func (h *ResourceHandlers) readRelationship(ctx context.Context, uri, id string) (*mcp.ReadResourceResult, error) {
	rel, err := h.svc.Relationships.Get(ctx, id)
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri)
	}
	return jsonResource(uri, relationshipToOutput(rel))
}

func (h *ResourceHandlers) readReminders(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	rems, err := h.svc.Reminders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reminders: %w", err)
	}
	out := make([]ReminderOutput, 0, len(rems))
	for _, rem := range rems {
		out = append(out, reminderToOutput(rem))
	}
	return jsonResource(uri, out)
}

func jsonResource(uri string, v interface{}) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{URI: uri, MIMEType: "application/json", Text: string(data)},
	}}, nil
}
