package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mark3labs/specdash/internal/syncserver"
	"github.com/mark3labs/specdash/internal/workitem"
)

// itemSummary is the list-items row.
type itemSummary struct {
	Slug         string                `json:"slug"`
	Name         string                `json:"name"`
	Status       workitem.Status       `json:"status"`
	LastModified time.Time             `json:"lastModified"`
	Tasks        *workitem.TaskSummary `json:"tasks,omitempty"`
	Degraded     bool                  `json:"degraded,omitempty"`
}

func summarize(it workitem.WorkItem) itemSummary {
	sum := itemSummary{
		Slug:         it.Slug,
		Name:         it.DisplayName,
		Status:       it.Status,
		LastModified: it.LastModified,
		Degraded:     it.Degraded,
	}
	if it.Kind == workitem.KindSpec {
		tasks := it.TaskSummary
		sum.Tasks = &tasks
	}
	return sum
}

func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects := s.src.Projects()
	out := make([]map[string]string, 0, len(projects))
	for _, p := range projects {
		out = append(out, map[string]string{"id": p.ID, "name": p.Name, "path": p.Path})
	}
	return jsonResult(out)
}

func (s *Server) handleListItems(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	project, kind, errResult := s.target(args)
	if errResult != nil {
		return errResult, nil
	}

	var status workitem.Status
	if v, ok := args["status"].(string); ok && v != "" {
		status = workitem.Status(v)
		if workitem.Priority(kind, status) > len(workitem.Statuses(kind)) {
			return mcp.NewToolResultError(fmt.Sprintf("unknown %s status %q", kind, v)), nil
		}
	}

	items, err := s.src.Snapshot(ctx, project, kind)
	if err != nil {
		return queryError(project, "listing "+kind.Dir(), err), nil
	}

	rows := make([]itemSummary, 0, len(items))
	for _, it := range items {
		if status != "" && it.Status != status {
			continue
		}
		rows = append(rows, summarize(it))
	}
	return jsonResult(rows)
}

func (s *Server) handleGetItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	project, kind, errResult := s.target(args)
	if errResult != nil {
		return errResult, nil
	}
	slug, _ := args["slug"].(string)
	if slug == "" {
		return mcp.NewToolResultError("missing 'slug' parameter"), nil
	}

	it, ok, err := s.src.Item(ctx, project, kind, slug)
	if err != nil {
		return queryError(project, "reading "+string(kind)+"/"+slug, err), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%s %q not found in %s", kind, slug, project)), nil
	}
	return jsonResult(it)
}

// target resolves the project and kind arguments. The project may be
// omitted when exactly one is served.
func (s *Server) target(args map[string]any) (string, workitem.Kind, *mcp.CallToolResult) {
	if args == nil {
		return "", "", mcp.NewToolResultError("no arguments provided")
	}

	rawKind, _ := args["kind"].(string)
	kind, err := workitem.ParseKind(rawKind)
	if err != nil {
		return "", "", mcp.NewToolResultError(err.Error())
	}

	project, _ := args["project"].(string)
	if project == "" {
		projects := s.src.Projects()
		if len(projects) != 1 {
			return "", "", mcp.NewToolResultError("missing 'project' parameter; call list-projects to see the IDs")
		}
		project = projects[0].ID
	}
	return project, kind, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// queryError turns a Source error into a tool error.
func queryError(project, what string, err error) *mcp.CallToolResult {
	if errors.Is(err, syncserver.ErrUnknownProject) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown project %q; call list-projects to see the IDs", project))
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", what, err))
}

var _ Source = (*syncserver.Server)(nil)
