// Package models defines the domain types for Historian.
package models

import "strings"

// SentinelDate is the created value carried by category pseudo-nodes.
const SentinelDate = "0000-00-00"

// Node labels.
const (
	LabelEvent  = "event"
	LabelTopic  = "topic"
	LabelTag    = "tag"
	LabelPerson = "person"
)

// Event is a dated note ingested into the graph.
type Event struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Created    string   `json:"created"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	SourcePath string   `json:"sourcePath"`
	Theme      string   `json:"theme,omitempty"`
	Source     string   `json:"source,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Era        string   `json:"era,omitempty"`
	Tags       []string `json:"tags"`
	People     []string `json:"people"`
}

// Node is an element of a graph read. Category pseudo-nodes share the Event
// shape with the event-only fields left empty.
type Node = Event

// EventIDPrefix starts every event id. Category ids never carry it.
const EventIDPrefix = "historian:"

// EventID returns the stable id for a (created, title) pair.
func EventID(created, title string) string {
	return EventIDPrefix + created + ":" + title
}

// CategoryID returns the pseudo-node id for a category label.
func CategoryID(label, value string) string {
	return label + ":" + value
}

// IsCategory reports whether label names a category kind.
func IsCategory(label string) bool {
	switch label {
	case LabelTopic, LabelTag, LabelPerson:
		return true
	}
	return false
}

// IsCategory reports whether the node is a synthesized category pseudo-node.
func (e Event) IsCategory() bool {
	return IsCategory(e.Label)
}

// NewCategoryNode builds the pseudo-node for a category label.
func NewCategoryNode(label, value string) Node {
	return Node{
		ID:      CategoryID(label, value),
		Label:   label,
		Created: SentinelDate,
		Title:   value,
		Tags:    []string{},
		People:  []string{},
	}
}

// Normalize fills defaults that every stored event carries.
func (e *Event) Normalize() {
	if e.Label == "" {
		e.Label = LabelEvent
	}
	if e.ID == "" {
		e.ID = EventID(e.Created, e.Title)
	}
	e.Theme = strings.TrimSpace(e.Theme)
	e.Tags = CleanLabels(e.Tags)
	e.People = CleanLabels(e.People)
}

// CleanLabels trims values, drops empty ones, and removes duplicates while
// keeping first-seen order. It never returns nil.
func CleanLabels(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// CountEmpty returns how many values in the slice are blank.
func CountEmpty(in []string) int {
	n := 0
	for _, v := range in {
		if strings.TrimSpace(v) == "" {
			n++
		}
	}
	return n
}
