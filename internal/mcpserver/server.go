// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Historian tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/historian/internal/apperr"
	"github.com/starford/historian/internal/historian"
	"github.com/starford/historian/internal/models"
)

// DocumentFormatURI names the document-format resource.
const DocumentFormatURI = "historian://document-format"

// Server wraps the MCP server with Historian tools.
type Server struct {
	mcp *server.MCPServer
	svc *historian.Service
}

// New creates a new MCP server with all Historian tools registered.
func New(svc *historian.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Historian",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_events",
		mcp.WithDescription("List timeline events, newest first."),
		mcp.WithNumber("limit", mcp.Description("Max events (default 200, max 500)")),
	), s.listEvents)

	s.mcp.AddTool(mcp.NewTool("get_event",
		mcp.WithDescription("Read one event by id (historian:YYYY-MM-DD:Title)."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Event id")),
	), s.getEvent)

	s.mcp.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Read the bounded timeline graph: events plus theme, tag "+
			"and person nodes with NEXT, THEME, TAGGED and MENTIONS edges."),
		mcp.WithNumber("limit", mcp.Description("Max events (default 200, max 500)")),
	), s.getGraph)

	s.mcp.AddTool(mcp.NewTool("get_layout",
		mcp.WithDescription("Run the force-directed layout and return node positions."),
		mcp.WithNumber("limit", mcp.Description("Max events")),
		mcp.WithNumber("width", mcp.Description("Viewport width (default 960)")),
		mcp.WithNumber("height", mcp.Description("Viewport height (default 640)")),
		mcp.WithString("selected", mcp.Description("Node id to highlight with its neighbours")),
	), s.getLayout)

	s.mcp.AddTool(mcp.NewTool("ingest_event",
		mcp.WithDescription("Ingest one event, optionally linked to a predecessor. "+
			"Requires the admin credential. Read "+DocumentFormatURI+" for field conventions."),
		mcp.WithString("credential", mcp.Required(), mcp.Description("Shared admin secret")),
		mcp.WithString("created", mcp.Required(), mcp.Description("Date, YYYY-MM-DD")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Event title")),
		mcp.WithString("content", mcp.Description("Body text")),
		mcp.WithString("theme", mcp.Description("Optional theme")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags")),
		mcp.WithArray("people", mcp.WithStringItems(), mcp.Description("People mentioned")),
		mcp.WithString("previousEventId", mcp.Description("Predecessor event id for a NEXT edge")),
	), s.ingestEvent)

	s.mcp.AddResource(
		mcp.NewResource(DocumentFormatURI, "Document Format",
			mcp.WithResourceDescription("File naming and metadata convention for timeline documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDocumentFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns service errors into tool errors. Unauthorized is kept
// terse so a bad credential leaks nothing.
func toolError(err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, apperr.ErrUnauthorized) {
		return mcp.NewToolResultError("unauthorized"), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) listEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	events, err := s.svc.ListEvents(ctx, req.GetInt("limit", 0))
	if err != nil {
		return toolError(err)
	}
	return jsonResult(events)
}

func (s *Server) getEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev, err := s.svc.GetEvent(ctx, id)
	if err != nil {
		return toolError(err)
	}
	if ev == nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return jsonResult(ev)
}

func (s *Server) getGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := s.svc.Graph(ctx, req.GetInt("limit", 0))
	if err != nil {
		return toolError(err)
	}
	return jsonResult(g)
}

func (s *Server) getLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Layout(ctx, historian.LayoutRequest{
		Limit:    req.GetInt("limit", 0),
		Width:    req.GetFloat("width", 0),
		Height:   req.GetFloat("height", 0),
		Selected: req.GetString("selected", ""),
	})
	if err != nil {
		return toolError(err)
	}
	return jsonResult(res)
}

func (s *Server) ingestEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	credential, err := req.RequireString("credential")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev := models.Event{
		Created: req.GetString("created", ""),
		Title:   req.GetString("title", ""),
		Content: req.GetString("content", ""),
		Theme:   req.GetString("theme", ""),
		Tags:    req.GetStringSlice("tags", nil),
		People:  req.GetStringSlice("people", nil),
	}
	res, err := s.svc.IngestEvent(ctx, credential, ev, req.GetString("previousEventId", ""))
	if err != nil {
		return toolError(err)
	}
	return jsonResult(res)
}

func (s *Server) readDocumentFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      DocumentFormatURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
