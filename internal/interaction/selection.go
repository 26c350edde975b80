package interaction

import (
	"sort"

	"github.com/starford/historian/internal/models"
)

// Selection tracks the selected node and its direct neighbours.
type Selection struct {
	selected  string
	adjacency map[string]map[string]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{adjacency: map[string]map[string]struct{}{}}
}

// SetEdges rebuilds the adjacency index from the visible edge set. Direction
// is ignored.
func (s *Selection) SetEdges(edges []models.Edge) {
	adj := make(map[string]map[string]struct{}, len(edges))
	link := func(a, b string) {
		if adj[a] == nil {
			adj[a] = map[string]struct{}{}
		}
		adj[a][b] = struct{}{}
	}
	for _, e := range edges {
		link(e.From, e.To)
		link(e.To, e.From)
	}
	s.adjacency = adj
}

// Select marks id as selected.
func (s *Selection) Select(id string) { s.selected = id }

// Clear removes the selection.
func (s *Selection) Clear() { s.selected = "" }

// Selected returns the selected id, or "".
func (s *Selection) Selected() string { return s.selected }

// Active reports whether a node is selected.
func (s *Selection) Active() bool { return s.selected != "" }

// IsHighlighted reports whether id is the selected node or one of its
// neighbours. With nothing selected no node is highlighted.
func (s *Selection) IsHighlighted(id string) bool {
	if s.selected == "" {
		return false
	}
	if id == s.selected {
		return true
	}
	_, ok := s.adjacency[s.selected][id]
	return ok
}

// Highlighted returns the highlight set in sorted order.
func (s *Selection) Highlighted() []string {
	if s.selected == "" {
		return []string{}
	}
	out := []string{s.selected}
	for id := range s.adjacency[s.selected] {
		if id != s.selected {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
