package graphstore

import (
	"strings"

	"github.com/starford/historian/internal/models"
)

// categoryRef is one event-to-category edge to merge.
type categoryRef struct {
	EventID string
	Label   string
	Value   string
	Type    models.EdgeType
}

// batch is the normalized form of an upsert call.
type batch struct {
	events        []models.Event
	categories    []categoryRef
	next          []models.Edge
	skippedLabels int
}

// planBatch normalizes events, expands their category references and keeps
// only the NEXT edges from the supplied list.
func planBatch(events []models.Event, edges []models.Edge) batch {
	var b batch
	b.events = make([]models.Event, 0, len(events))
	for _, ev := range events {
		b.skippedLabels += models.CountEmpty(ev.Tags) + models.CountEmpty(ev.People)
		if ev.Theme != "" && strings.TrimSpace(ev.Theme) == "" {
			b.skippedLabels++
		}
		ev.Normalize()
		b.events = append(b.events, ev)

		if ev.Theme != "" {
			b.categories = append(b.categories, categoryRef{ev.ID, models.LabelTopic, ev.Theme, models.EdgeTheme})
		}
		for _, tag := range ev.Tags {
			b.categories = append(b.categories, categoryRef{ev.ID, models.LabelTag, tag, models.EdgeTagged})
		}
		for _, p := range ev.People {
			b.categories = append(b.categories, categoryRef{ev.ID, models.LabelPerson, p, models.EdgeMentions})
		}
	}
	for _, e := range edges {
		if e.Type == models.EdgeNext {
			b.next = append(b.next, e)
		}
	}
	return b
}

// edgeRow is one stored edge as read back from a backend. For category
// edges ToLabel and ToTitle describe the target node.
type edgeRow struct {
	From    string
	To      string
	Type    models.EdgeType
	ToLabel string
	ToTitle string
}

// assemble builds the read response from the fetched events and the edge
// rows whose source is one of them. NEXT edges leaving the event set are
// dropped, and each referenced category becomes exactly one pseudo-node.
func assemble(events []models.Event, rows []edgeRow) models.Graph {
	g := models.Graph{
		Nodes: make([]models.Node, 0, len(events)),
		Edges: make([]models.Edge, 0, len(rows)),
	}
	inSet := make(map[string]struct{}, len(events))
	for _, ev := range events {
		inSet[ev.ID] = struct{}{}
		g.Nodes = append(g.Nodes, ev)
	}

	pseudo := make(map[string]struct{})
	seenEdge := make(map[models.Edge]struct{}, len(rows))
	for _, r := range rows {
		if _, ok := inSet[r.From]; !ok {
			continue
		}
		edge := models.Edge{From: r.From, To: r.To, Type: r.Type}
		if r.Type == models.EdgeNext {
			if _, ok := inSet[r.To]; !ok {
				continue
			}
		} else {
			if r.ToTitle == "" || !models.IsCategory(r.ToLabel) {
				continue
			}
			if _, ok := pseudo[r.To]; !ok {
				pseudo[r.To] = struct{}{}
				g.Nodes = append(g.Nodes, models.NewCategoryNode(r.ToLabel, r.ToTitle))
			}
		}
		if _, dup := seenEdge[edge]; dup {
			continue
		}
		seenEdge[edge] = struct{}{}
		g.Edges = append(g.Edges, edge)
	}
	return g
}
