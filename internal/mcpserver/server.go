// Package mcpserver exposes the live work-item view to coding agents as MCP
// tools over streamable HTTP.
package mcpserver

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mark3labs/specdash/internal/syncserver"
	"github.com/mark3labs/specdash/internal/workitem"
)

// Path is where Handler is mounted next to /ws.
const Path = "/mcp"

// Source answers read queries. *syncserver.Server implements it.
type Source interface {
	Projects() []syncserver.Project
	Snapshot(ctx context.Context, projectID string, kind workitem.Kind) ([]workitem.WorkItem, error)
	Item(ctx context.Context, projectID string, kind workitem.Kind, slug string) (workitem.WorkItem, bool, error)
}

// Server wraps an MCP server whose tools read from a Source.
type Server struct {
	src       Source
	mcpServer *server.MCPServer
	handler   *server.StreamableHTTPServer
}

// New creates the MCP server and registers its tools.
func New(src Source, version string) *Server {
	s := &Server{src: src}
	s.mcpServer = server.NewMCPServer(
		"specdash",
		version,
		server.WithToolCapabilities(false),
	)
	s.registerTools()
	s.handler = server.NewStreamableHTTPServer(s.mcpServer, server.WithStateLess(true))
	return s
}

// Handler serves the MCP endpoint. Mount it at Path.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("list-projects",
			mcp.WithDescription("List the projects this dashboard serves"),
		),
		s.handleListProjects,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list-items",
			mcp.WithDescription("List a project's specs or bugs in dashboard order (status priority, most recently modified first)"),
			mcp.WithString("project",
				mcp.Description("Project ID; optional when only one project is served"),
			),
			mcp.WithString("kind", mcp.Required(),
				mcp.Description("Work item kind"),
				mcp.Enum(string(workitem.KindSpec), string(workitem.KindBug)),
			),
			mcp.WithString("status",
				mcp.Description("Only return items with this status"),
			),
		),
		s.handleListItems,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get-item",
			mcp.WithDescription("Get one spec or bug with its documents and tasks"),
			mcp.WithString("project",
				mcp.Description("Project ID; optional when only one project is served"),
			),
			mcp.WithString("kind", mcp.Required(),
				mcp.Description("Work item kind"),
				mcp.Enum(string(workitem.KindSpec), string(workitem.KindBug)),
			),
			mcp.WithString("slug", mcp.Required(),
				mcp.Description("Directory name of the item"),
			),
		),
		s.handleGetItem,
	)
}
