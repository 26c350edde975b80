package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/historian/internal/graphstore"
	"github.com/starford/historian/internal/historian"
	"github.com/starford/historian/internal/loader"
	"github.com/starford/historian/internal/testutil"
)

const testSecret = "s3cret"

func testServer(t *testing.T, files map[string]string) (*Server, *historian.Service) {
	t.Helper()
	quiet := slog.New(slog.NewJSONHandler(io.Discard, nil))
	_, src := testutil.TestDocs(t, files)
	store := testutil.TestStore(t)
	svc := historian.NewService(store, loader.New(src, loader.WithLogger(quiet)),
		historian.WithAdminSecret(testSecret), historian.WithLogger(quiet))
	return New(svc, "test"), svc
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" helper; call the handlers.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_events":
		result, err = srv.listEvents(ctx, req)
	case "get_event":
		result, err = srv.getEvent(ctx, req)
	case "get_graph":
		result, err = srv.getGraph(ctx, req)
	case "get_layout":
		result, err = srv.getLayout(ctx, req)
	case "ingest_event":
		result, err = srv.ingestEvent(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestIngestAndGetEvent(t *testing.T) {
	srv, _ := testServer(t, nil)

	r := callTool(t, srv, "ingest_event", map[string]any{
		"credential": testSecret,
		"created":    "2026-02-01",
		"title":      "Kickoff",
		"tags":       []any{"ops"},
	})
	if r.IsError {
		t.Fatalf("ingest error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"id": "historian:2026-02-01:Kickoff"`) {
		t.Errorf("ingest result = %s", resultText(r))
	}

	r = callTool(t, srv, "get_event", map[string]any{"id": "historian:2026-02-01:Kickoff"})
	if r.IsError || !strings.Contains(resultText(r), `"title": "Kickoff"`) {
		t.Errorf("get result = %s", resultText(r))
	}
}

func TestIngestEvent_WrongCredential(t *testing.T) {
	srv, _ := testServer(t, nil)
	r := callTool(t, srv, "ingest_event", map[string]any{
		"credential": "nope",
		"created":    "2026-02-01",
		"title":      "Kickoff",
	})
	if !r.IsError || resultText(r) != "unauthorized" {
		t.Errorf("result = %q, error = %v", resultText(r), r.IsError)
	}
}

func TestGetEventMissing(t *testing.T) {
	srv, _ := testServer(t, nil)
	r := callTool(t, srv, "get_event", map[string]any{"id": "historian:1999-01-01:None"})
	if !r.IsError {
		t.Error("expected error for missing event")
	}
	r = callTool(t, srv, "get_event", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing id argument")
	}
}

func TestListEventsAndGraph(t *testing.T) {
	srv, svc := testServer(t, map[string]string{
		"2026-02-01.A.md": "---\ntheme: Security\n---\nalpha",
		"2026-02-10.B.md": "beta",
	})
	if _, err := svc.Ingest(context.Background(), historian.IngestOptions{Max: 10}); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "list_events", map[string]any{"limit": float64(1)})
	text := resultText(r)
	if r.IsError || !strings.Contains(text, "2026-02-10") || strings.Contains(text, "2026-02-01") {
		t.Errorf("list = %s", text)
	}

	r = callTool(t, srv, "get_graph", map[string]any{})
	text = resultText(r)
	for _, want := range []string{`"NEXT"`, `"THEME"`, "topic:Security"} {
		if !strings.Contains(text, want) {
			t.Errorf("graph missing %s", want)
		}
	}

	r = callTool(t, srv, "get_layout", map[string]any{"width": float64(300), "height": float64(200)})
	if r.IsError || !strings.Contains(resultText(r), `"positions"`) {
		t.Errorf("layout = %s", resultText(r))
	}
}

func TestUnconfiguredStore(t *testing.T) {
	srv := New(historian.NewService(graphstore.Unconfigured{}, nil), "test")
	r := callTool(t, srv, "get_graph", map[string]any{})
	if !r.IsError || !strings.Contains(resultText(r), "not configured") {
		t.Errorf("result = %q", resultText(r))
	}
}

func TestDocumentFormatResource(t *testing.T) {
	srv, _ := testServer(t, nil)
	contents, err := srv.readDocumentFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != DocumentFormatURI || !strings.Contains(tc.Text, "YYYY-MM-DD.Title.md") {
		t.Errorf("resource = %+v", contents[0])
	}
}
