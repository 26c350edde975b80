package models

import "fmt"

// EdgeType names a typed relation between two nodes.
type EdgeType string

// Edge types.
const (
	EdgeNext     EdgeType = "NEXT"
	EdgeTheme    EdgeType = "THEME"
	EdgeTagged   EdgeType = "TAGGED"
	EdgeMentions EdgeType = "MENTIONS"
)

// Valid reports whether t is one of the known edge types.
func (t EdgeType) Valid() bool {
	switch t {
	case EdgeNext, EdgeTheme, EdgeTagged, EdgeMentions:
		return true
	}
	return false
}

// CategoryLabel returns the node label an edge of this type points at,
// or "" for NEXT.
func (t EdgeType) CategoryLabel() string {
	switch t {
	case EdgeTheme:
		return LabelTopic
	case EdgeTagged:
		return LabelTag
	case EdgeMentions:
		return LabelPerson
	}
	return ""
}

// Edge is a directed typed relation. Its identity is the (From, To, Type) triple.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Type EdgeType `json:"type"`
}

// Graph is the response shape of a graph read.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Validate returns an error naming the first edge whose endpoint is missing
// from the node set.
func (g Graph) Validate() error {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = struct{}{}
	}
	for _, e := range g.Edges {
		if _, ok := ids[e.From]; !ok {
			return fmt.Errorf("graph: dangling edge %s -[%s]-> %s: missing source", e.From, e.Type, e.To)
		}
		if _, ok := ids[e.To]; !ok {
			return fmt.Errorf("graph: dangling edge %s -[%s]-> %s: missing target", e.From, e.Type, e.To)
		}
	}
	return nil
}

// Events returns the event nodes of the graph, skipping pseudo-nodes.
func (g Graph) Events() []Event {
	out := make([]Event, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if !n.IsCategory() {
			out = append(out, n)
		}
	}
	return out
}

// CountEdges returns the number of edges of the given type.
func (g Graph) CountEdges(t EdgeType) int {
	n := 0
	for _, e := range g.Edges {
		if e.Type == t {
			n++
		}
	}
	return n
}
