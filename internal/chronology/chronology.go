// Package chronology derives the NEXT chain between events.
package chronology

import (
	"sort"

	"github.com/starford/historian/internal/models"
)

// Sorted returns a copy of events ordered ascending by created date. Events
// sharing a date keep their input order.
func Sorted(events []models.Event) []models.Event {
	out := make([]models.Event, len(events))
	copy(out, events)
	// YYYY-MM-DD compares correctly as a string.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Created < out[j].Created
	})
	return out
}

// Build returns the NEXT edges linking each event to its chronological
// successor. Fewer than two events yield no edges.
func Build(events []models.Event) []models.Edge {
	if len(events) < 2 {
		return []models.Edge{}
	}
	sorted := Sorted(events)
	edges := make([]models.Edge, 0, len(sorted)-1)
	for i := 0; i < len(sorted)-1; i++ {
		edges = append(edges, models.Edge{
			From: sorted[i].ID,
			To:   sorted[i+1].ID,
			Type: models.EdgeNext,
		})
	}
	return edges
}
