package api

import (
	"time"

	"github.com/starford/historian/internal/graphstore"
	"github.com/starford/historian/internal/historian"
	"github.com/starford/historian/internal/models"
)

// EventInput is the event half of an ingest request. ID is synthesised from
// created and title when omitted.
type EventInput struct {
	ID         string   `json:"id,omitempty" example:"historian:2026-02-01:Kickoff"`
	Created    string   `json:"created" example:"2026-02-01" validate:"required"`
	Title      string   `json:"title" example:"Kickoff" validate:"required"`
	Content    string   `json:"content" example:"Project started."`
	SourcePath string   `json:"sourcePath,omitempty" example:"2026-02-01.Kickoff.md"`
	Theme      string   `json:"theme,omitempty" example:"Security"`
	Source     string   `json:"source,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Era        string   `json:"era,omitempty"`
	Tags       []string `json:"tags,omitempty" example:"tls,http"`
	People     []string `json:"people,omitempty" example:"Ada"`
}

// Event converts the input to the domain type.
func (in EventInput) Event() models.Event {
	return models.Event{
		ID:         in.ID,
		Created:    in.Created,
		Title:      in.Title,
		Content:    in.Content,
		SourcePath: in.SourcePath,
		Theme:      in.Theme,
		Source:     in.Source,
		Kind:       in.Kind,
		Era:        in.Era,
		Tags:       in.Tags,
		People:     in.People,
	}
}

// IngestEventRequest is the request body for POST /api/events.
type IngestEventRequest struct {
	Event           EventInput `json:"event" validate:"required"`
	PreviousEventID string     `json:"previousEventId,omitempty" example:"historian:2026-01-31:Planning"`
}

// IngestEventResponse is returned after a successful single-event ingest.
type IngestEventResponse = historian.IngestEventResult

// EventListResponse wraps an event listing.
type EventListResponse struct {
	Events []models.Event `json:"events" validate:"required"`
}

// GraphResponse is the bounded graph read.
type GraphResponse = models.Graph

// LayoutResponse is a laid-out graph.
type LayoutResponse = historian.LayoutResult

// StatsResponse holds store counts.
type StatsResponse = graphstore.Stats

// DocumentItem describes one file in the documents directory.
type DocumentItem struct {
	Name     string    `json:"name" example:"2026-02-01.Kickoff.md" validate:"required"`
	Size     int64     `json:"size" example:"512"`
	ModTime  time.Time `json:"modTime"`
	Created  string    `json:"created,omitempty" example:"2026-02-01"`
	Title    string    `json:"title,omitempty" example:"Kickoff"`
	EventID  string    `json:"eventId,omitempty" example:"historian:2026-02-01:Kickoff"`
	Accepted bool      `json:"accepted"`
}

// DocumentListResponse wraps a documents listing.
type DocumentListResponse struct {
	Documents []DocumentItem `json:"documents" validate:"required"`
}
