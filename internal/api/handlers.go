package api

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/starford/historian/internal/historian"
)

// Handler holds API route handlers.
type Handler struct {
	svc *historian.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *historian.Service) *Handler {
	return &Handler{svc: svc}
}

// eventID extracts the event id from the URL. Ids contain colons and may
// arrive percent-encoded.
func eventID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListEvents handles GET /api/events.
//
//	@Summary		List events, newest first
//	@Tags			events
//	@Produce		json
//	@Param			limit	query		int	false	"Max events (default 200, max 500)"
//	@Success		200		{object}	EventListResponse
//	@Failure		503		{object}	errResponse
//	@Router			/events [get]
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeError(w, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, EventListResponse{Events: events})
}

// GetEvent handles GET /api/events/{id}.
//
//	@Summary		Get a single event by id
//	@Tags			events
//	@Produce		json
//	@Param			id	path		string	true	"Event id"
//	@Success		200	{object}	models.Event
//	@Failure		404	{object}	errResponse
//	@Router			/events/{id} [get]
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := eventID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("id is required"))
		return
	}
	ev, err := h.svc.GetEvent(r.Context(), id)
	if err != nil {
		writeError(w, "get event", err)
		return
	}
	if ev == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// IngestEvent handles POST /api/events.
//
//	@Summary		Ingest one event with an optional predecessor link
//	@Tags			events
//	@Accept			json
//	@Produce		json
//	@Param			X-Admin-Secret	header		string				true	"Shared admin secret"
//	@Param			body			body		IngestEventRequest	true	"Event to ingest"
//	@Success		201				{object}	IngestEventResponse
//	@Failure		400				{object}	errResponse
//	@Failure		401				{object}	errResponse
//	@Failure		503				{object}	errResponse
//	@Router			/events [post]
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var req IngestEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.IngestEvent(r.Context(), credential(r), req.Event.Event(), req.PreviousEventID)
	if err != nil {
		writeError(w, "ingest event", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the bounded timeline graph
//	@Tags			graph
//	@Produce		json
//	@Param			limit	query		int	false	"Max events (default 200, max 500)"
//	@Success		200		{object}	GraphResponse
//	@Failure		503		{object}	errResponse
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Graph(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func layoutRequest(r *http.Request) historian.LayoutRequest {
	return historian.LayoutRequest{
		Limit:    queryInt(r, "limit"),
		Width:    queryFloat(r, "width"),
		Height:   queryFloat(r, "height"),
		Steps:    queryInt(r, "steps"),
		Selected: r.URL.Query().Get("selected"),
		Seed:     uint64(queryInt(r, "seed")),
	}
}

// Layout handles GET /api/graph/layout.
//
//	@Summary		Get the graph with force-directed positions
//	@Tags			graph
//	@Produce		json
//	@Param			limit		query		int		false	"Max events"
//	@Param			width		query		number	false	"Viewport width"
//	@Param			height		query		number	false	"Viewport height"
//	@Param			steps		query		int		false	"Max simulation frames"
//	@Param			selected	query		string	false	"Node to highlight"
//	@Param			seed		query		int		false	"Jitter seed"
//	@Success		200			{object}	LayoutResponse
//	@Failure		503			{object}	errResponse
//	@Router			/graph/layout [get]
func (h *Handler) Layout(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Layout(r.Context(), layoutRequest(r))
	if err != nil {
		writeError(w, "layout", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Stats handles GET /api/stats.
//
//	@Summary		Node and edge counts
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Failure		503	{object}	errResponse
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
