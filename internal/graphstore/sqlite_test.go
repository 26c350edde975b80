package graphstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/starford/historian/internal/apperr"
	"github.com/starford/historian/internal/models"
)

func testStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "historian-test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func event(created, title string) models.Event {
	return models.Event{Created: created, Title: title, Content: title + " body", SourcePath: created + "." + title + ".md"}
}

func nextEdge(from, to models.Event) models.Edge {
	return models.Edge{
		From: models.EventID(from.Created, from.Title),
		To:   models.EventID(to.Created, to.Title),
		Type: models.EdgeNext,
	}
}

func TestSchemaCreation(t *testing.T) {
	s := testStore(t)
	var count int
	if err := s.conn.QueryRow(`SELECT count(*) FROM nodes`).Scan(&count); err != nil {
		t.Fatalf("nodes table missing: %v", err)
	}
	if err := s.conn.QueryRow(`SELECT count(*) FROM edges`).Scan(&count); err != nil {
		t.Fatalf("edges table missing: %v", err)
	}
}

func TestUpsert_ChainScenario(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	a, b := event("2026-02-01", "A"), event("2026-02-10", "B")

	res, err := s.Upsert(ctx, []models.Event{a, b}, []models.Edge{nextEdge(a, b)})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if res.Events != 2 || res.Edges != 1 || len(res.SkippedEdges) != 0 {
		t.Errorf("result = %+v", res)
	}

	g, err := s.Read(ctx, 10)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(g.Nodes) != 2 || len(g.Edges) != 1 {
		t.Fatalf("graph = %d nodes, %d edges; want 2, 1", len(g.Nodes), len(g.Edges))
	}
	e := g.Edges[0]
	if e.Type != models.EdgeNext || e.From != "historian:2026-02-01:A" || e.To != "historian:2026-02-10:B" {
		t.Errorf("edge = %+v", e)
	}
	if g.Nodes[0].Created != "2026-02-10" {
		t.Errorf("nodes not ordered newest first: %+v", g.Nodes[0])
	}
}

func TestUpsert_CategoryScenario(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ev := event("2026-03-01", "Handshake")
	ev.Theme = "Security"
	ev.Tags = []string{"tls", "http"}

	if _, err := s.Upsert(ctx, []models.Event{ev}, nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	g, err := s.Read(ctx, 10)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var topics, tags int
	for _, n := range g.Nodes {
		switch n.Label {
		case models.LabelTopic:
			topics++
			if n.ID != "topic:Security" || n.Created != models.SentinelDate || n.Content != "" {
				t.Errorf("topic node = %+v", n)
			}
		case models.LabelTag:
			tags++
		}
	}
	if topics != 1 || tags != 2 {
		t.Errorf("topics = %d, tags = %d; want 1, 2", topics, tags)
	}
	if len(g.Edges) != 3 || g.CountEdges(models.EdgeTheme) != 1 || g.CountEdges(models.EdgeTagged) != 2 {
		t.Errorf("edges = %+v", g.Edges)
	}
}

func TestUpsert_EventCannotReplaceCategory(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ev := event("2026-03-01", "Handshake")
	ev.Theme = "Security"
	if _, err := s.Upsert(ctx, []models.Event{ev}, nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	clash := event("2026-03-02", "Clash")
	clash.ID = "topic:Security"
	if _, err := s.Upsert(ctx, []models.Event{clash}, nil); err != nil {
		t.Fatalf("Upsert clash: %v", err)
	}

	var label string
	if err := s.conn.QueryRow(`SELECT label FROM nodes WHERE id = 'topic:Security'`).Scan(&label); err != nil {
		t.Fatalf("query: %v", err)
	}
	if label != models.LabelTopic {
		t.Errorf("label = %q, want %q", label, models.LabelTopic)
	}
	g, err := s.Read(ctx, 10)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if g.CountEdges(models.EdgeTheme) != 1 {
		t.Errorf("THEME edges = %d, want 1", g.CountEdges(models.EdgeTheme))
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	a, b := event("2026-02-01", "A"), event("2026-02-10", "B")
	a.Tags = []string{"x"}
	b.People = []string{"Ada"}
	b.Theme = "Math"
	events := []models.Event{a, b}
	edges := []models.Edge{nextEdge(a, b)}

	if _, err := s.Upsert(ctx, events, edges); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	first, _ := s.Read(ctx, 10)
	firstStats, _ := s.Stats(ctx)

	for i := 0; i < 3; i++ {
		if _, err := s.Upsert(ctx, events, edges); err != nil {
			t.Fatalf("repeat Upsert: %v", err)
		}
	}
	again, _ := s.Read(ctx, 10)
	againStats, _ := s.Stats(ctx)

	if len(first.Nodes) != len(again.Nodes) || len(first.Edges) != len(again.Edges) {
		t.Errorf("read changed: %d/%d -> %d/%d", len(first.Nodes), len(first.Edges), len(again.Nodes), len(again.Edges))
	}
	if firstStats.TotalNodes() != againStats.TotalNodes() || firstStats.TotalEdges() != againStats.TotalEdges() {
		t.Errorf("stats changed: %+v -> %+v", firstStats, againStats)
	}
	if againStats.Nodes[models.LabelEvent] != 2 || againStats.Edges[string(models.EdgeNext)] != 1 {
		t.Errorf("stats = %+v", againStats)
	}
}

func TestUpsert_UpdatesInPlace(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ev := event("2026-02-01", "A")
	_, _ = s.Upsert(ctx, []models.Event{ev}, nil)
	ev.Content = "rewritten"
	ev.Era = "modern"
	_, _ = s.Upsert(ctx, []models.Event{ev}, nil)

	g, _ := s.Read(ctx, 10)
	if len(g.Nodes) != 1 {
		t.Fatalf("nodes = %d, want 1", len(g.Nodes))
	}
	if g.Nodes[0].Content != "rewritten" || g.Nodes[0].Era != "modern" {
		t.Errorf("node = %+v", g.Nodes[0])
	}
}

func TestUpsert_SkipsDanglingNext(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	b := event("2026-02-10", "B")
	ghost := event("2020-01-01", "Ghost")

	res, err := s.Upsert(ctx, []models.Event{b}, []models.Edge{nextEdge(ghost, b)})
	if err != nil {
		t.Fatalf("Upsert should not fail on dangling NEXT: %v", err)
	}
	if len(res.SkippedEdges) != 1 || res.Edges != 0 {
		t.Errorf("result = %+v, want 1 skipped edge", res)
	}
	g, _ := s.Read(ctx, 10)
	if len(g.Edges) != 0 {
		t.Errorf("edges = %+v, want none", g.Edges)
	}
}

func TestUpsert_FiltersEmptyLabels(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ev := event("2026-02-01", "A")
	ev.Tags = []string{"", "go", "  "}
	ev.People = []string{""}

	res, err := s.Upsert(ctx, []models.Event{ev}, nil)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if res.SkippedLabels != 3 {
		t.Errorf("skipped labels = %d, want 3", res.SkippedLabels)
	}
	st, _ := s.Stats(ctx)
	if st.Nodes[models.LabelTag] != 1 || st.Nodes[models.LabelPerson] != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRead_PseudoNodeDedup(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	a, b := event("2026-02-01", "A"), event("2026-02-02", "B")
	a.Tags = []string{"shared"}
	b.Tags = []string{"shared"}
	_, _ = s.Upsert(ctx, []models.Event{a, b}, nil)

	g, _ := s.Read(ctx, 10)
	var tagNodes int
	for _, n := range g.Nodes {
		if n.ID == "tag:shared" {
			tagNodes++
		}
	}
	if tagNodes != 1 {
		t.Errorf("tag:shared nodes = %d, want 1", tagNodes)
	}
	var tagged int
	for _, e := range g.Edges {
		if e.Type == models.EdgeTagged && e.To == "tag:shared" {
			tagged++
		}
	}
	if tagged != 2 {
		t.Errorf("TAGGED edges to tag:shared = %d, want 2", tagged)
	}
}

func TestRead_NoDanglingEdgesWithLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	var events []models.Event
	for _, d := range []string{"01", "02", "03", "04", "05", "06"} {
		ev := event("2026-01-"+d, "E"+d)
		ev.Tags = []string{"t" + d, "common"}
		ev.People = []string{"Ada"}
		events = append(events, ev)
	}
	var edges []models.Edge
	for i := 0; i < len(events)-1; i++ {
		edges = append(edges, nextEdge(events[i], events[i+1]))
	}
	if _, err := s.Upsert(ctx, events, edges); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	for _, limit := range []int{1, 2, 3, 6, 10} {
		g, err := s.Read(ctx, limit)
		if err != nil {
			t.Fatalf("Read(%d): %v", limit, err)
		}
		if err := g.Validate(); err != nil {
			t.Errorf("Read(%d): %v", limit, err)
		}
		want := limit
		if want > len(events) {
			want = len(events)
		}
		if n := len(g.Events()); n != want {
			t.Errorf("Read(%d) events = %d, want %d", limit, n, want)
		}
		if n := g.CountEdges(models.EdgeNext); n != want-1 {
			t.Errorf("Read(%d) NEXT edges = %d, want %d", limit, n, want-1)
		}
	}
}

func TestRead_Empty(t *testing.T) {
	s := testStore(t)
	g, err := s.Read(context.Background(), 10)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if g.Nodes == nil || g.Edges == nil || len(g.Nodes) != 0 {
		t.Errorf("graph = %+v, want empty non-nil slices", g)
	}
}

func TestUnconfigured(t *testing.T) {
	s, err := Open(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Configured() {
		t.Fatal("empty backend should be unconfigured")
	}
	if _, err := s.Read(context.Background(), 10); !errors.Is(err, apperr.ErrNotConfigured) {
		t.Errorf("Read err = %v, want ErrNotConfigured", err)
	}
	if _, err := s.Upsert(context.Background(), nil, nil); !errors.Is(err, apperr.ErrNotConfigured) {
		t.Errorf("Upsert err = %v, want ErrNotConfigured", err)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Config{Backend: "redis"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
