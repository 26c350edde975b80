package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/historian/internal/historian"
	"github.com/starford/historian/internal/storage"
)

const maxBodyBytes = 1 << 20

// Options holds the optional parts of the router.
type Options struct {
	// Documents, if non-nil, is served read-only under /documents.
	Documents storage.Source
	// Stream, if non-nil, is mounted at GET /stream.
	Stream http.Handler
	// Schedulers drives live layout streams. Nil disables the endpoint.
	Schedulers SchedulerFactory
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *historian.Service, opts Options) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(LimitBody(maxBodyBytes))

	// Events.
	r.Get("/events", h.ListEvents)
	r.Post("/events", h.IngestEvent)
	r.Get("/events/{id}", h.GetEvent)

	// Graph.
	r.Get("/graph", h.Graph)
	r.Get("/graph/layout", h.Layout)
	if opts.Schedulers != nil {
		r.Get("/graph/layout/stream", NewLayoutStreamHandler(svc, opts.Schedulers).ServeHTTP)
	}
	r.Get("/stats", h.Stats)

	// Source documents.
	if opts.Documents != nil {
		dh := NewDocumentHandler(opts.Documents)
		r.Get("/documents", dh.List)
		r.Get("/documents/{name}", dh.Serve)
	}

	// Change notifications.
	if opts.Stream != nil {
		r.Get("/stream", opts.Stream.ServeHTTP)
	}

	return r
}
