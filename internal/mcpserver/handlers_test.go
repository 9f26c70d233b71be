package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/specdash/internal/syncserver"
	"github.com/mark3labs/specdash/internal/workitem"
)

type fakeSource struct {
	projects []syncserver.Project
	items    map[string]map[workitem.Kind][]workitem.WorkItem
}

func (f *fakeSource) Projects() []syncserver.Project { return f.projects }

func (f *fakeSource) Snapshot(_ context.Context, project string, kind workitem.Kind) ([]workitem.WorkItem, error) {
	byKind, ok := f.items[project]
	if !ok {
		return nil, syncserver.ErrUnknownProject
	}
	return byKind[kind], nil
}

func (f *fakeSource) Item(ctx context.Context, project string, kind workitem.Kind, slug string) (workitem.WorkItem, bool, error) {
	items, err := f.Snapshot(ctx, project, kind)
	if err != nil {
		return workitem.WorkItem{}, false, err
	}
	for _, it := range items {
		if it.Slug == slug {
			return it, true, nil
		}
	}
	return workitem.WorkItem{}, false, nil
}

func newFake(projects ...string) *fakeSource {
	f := &fakeSource{items: map[string]map[workitem.Kind][]workitem.WorkItem{}}
	mod := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range projects {
		f.projects = append(f.projects, syncserver.Project{ID: id, Name: id, Path: "/work/" + id})
		f.items[id] = map[workitem.Kind][]workitem.WorkItem{
			workitem.KindSpec: {
				{Kind: workitem.KindSpec, Slug: "search", DisplayName: "Search", Status: workitem.StatusInProgress,
					LastModified: mod, TaskSummary: workitem.TaskSummary{Total: 5, Completed: 3}},
			},
			workitem.KindBug: {
				{Kind: workitem.KindBug, Slug: "crash", DisplayName: "Crash", Status: workitem.StatusReported, LastModified: mod},
				{Kind: workitem.KindBug, Slug: "leak", DisplayName: "Leak", Status: workitem.StatusFixing, LastModified: mod},
			},
		}
	}
	return f
}

func call(t *testing.T, s *Server, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func extractText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if text, ok := result.Content[0].(mcp.TextContent); ok {
		return text.Text
	}
	return ""
}

func TestListProjects(t *testing.T) {
	s := New(newFake("api", "web"), "test")
	res := call(t, s, s.handleListProjects, nil)
	require.False(t, res.IsError)

	var got []map[string]string
	require.NoError(t, json.Unmarshal([]byte(extractText(res)), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "api", got[0]["id"])
	assert.Equal(t, "/work/web", got[1]["path"])
}

func TestListItems(t *testing.T) {
	s := New(newFake("api"), "test")

	res := call(t, s, s.handleListItems, map[string]any{"kind": "bugs"})
	require.False(t, res.IsError, extractText(res))
	var rows []itemSummary
	require.NoError(t, json.Unmarshal([]byte(extractText(res)), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "crash", rows[0].Slug)
	assert.Nil(t, rows[0].Tasks)

	res = call(t, s, s.handleListItems, map[string]any{"project": "api", "kind": "spec"})
	require.NoError(t, json.Unmarshal([]byte(extractText(res)), &rows))
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Tasks)
	assert.Equal(t, 3, rows[0].Tasks.Completed)
}

func TestListItems_StatusFilter(t *testing.T) {
	s := New(newFake("api"), "test")

	res := call(t, s, s.handleListItems, map[string]any{"kind": "bug", "status": "fixing"})
	var rows []itemSummary
	require.NoError(t, json.Unmarshal([]byte(extractText(res)), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "leak", rows[0].Slug)

	res = call(t, s, s.handleListItems, map[string]any{"kind": "bug", "status": "completed"})
	assert.True(t, res.IsError)
	assert.Contains(t, extractText(res), "unknown bug status")
}

func TestListItems_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeSource
		args    map[string]any
		wantErr string
	}{
		{"no arguments", newFake("api"), nil, "no arguments"},
		{"bad kind", newFake("api"), map[string]any{"kind": "steering"}, "invalid kind"},
		{"ambiguous project", newFake("api", "web"), map[string]any{"kind": "bug"}, "missing 'project'"},
		{"unknown project", newFake("api"), map[string]any{"project": "nope", "kind": "bug"}, "unknown project"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.fake, "test")
			res := call(t, s, s.handleListItems, tt.args)
			assert.True(t, res.IsError)
			assert.Contains(t, extractText(res), tt.wantErr)
		})
	}
}

func TestGetItem(t *testing.T) {
	s := New(newFake("api"), "test")

	res := call(t, s, s.handleGetItem, map[string]any{"kind": "spec", "slug": "search"})
	require.False(t, res.IsError, extractText(res))
	var it workitem.WorkItem
	require.NoError(t, json.Unmarshal([]byte(extractText(res)), &it))
	assert.Equal(t, workitem.StatusInProgress, it.Status)
	assert.Equal(t, 5, it.TaskSummary.Total)

	res = call(t, s, s.handleGetItem, map[string]any{"kind": "spec", "slug": "missing"})
	assert.True(t, res.IsError)
	assert.Contains(t, extractText(res), "not found")

	res = call(t, s, s.handleGetItem, map[string]any{"kind": "spec"})
	assert.True(t, res.IsError)
	assert.Contains(t, extractText(res), "slug")
}

func TestToolsRegistered(t *testing.T) {
	s := New(newFake("api"), "test")

	raw := s.MCP().HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(raw)
	require.NoError(t, err)

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &resp))

	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"list-projects", "list-items", "get-item"}, names)
}
