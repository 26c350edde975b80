// Package historian is the query and mutation façade over the graph store,
// with a document-loader fallback for reads.
package historian

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/historian/internal/apperr"
	"github.com/starford/historian/internal/graphstore"
	"github.com/starford/historian/internal/loader"
	"github.com/starford/historian/internal/models"
)

// GetEventScan is the number of events searched by GetEvent.
const GetEventScan = graphstore.MaxReadLimit

// Notifier receives change notifications after successful writes.
type Notifier func(kind string, data any)

// Service coordinates the graph store and the document loader.
type Service struct {
	store  graphstore.Store
	loader *loader.Loader
	secret string
	logger *slog.Logger
	notify Notifier
}

// Option configures a Service.
type Option func(*Service)

// WithAdminSecret sets the shared secret required by IngestEvent.
func WithAdminSecret(secret string) Option {
	return func(s *Service) { s.secret = secret }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithNotifier registers a callback for write notifications.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notify = n }
}

// NewService creates a Service. ld may be nil when no document directory is
// available; store must be non-nil (use graphstore.Unconfigured{}).
func NewService(store graphstore.Store, ld *loader.Loader, opts ...Option) *Service {
	s := &Service{
		store:  store,
		loader: ld,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreConfigured reports whether reads go to the graph store.
func (s *Service) StoreConfigured() bool {
	return s.store.Configured()
}

// reader is the read strategy chosen once per request.
type reader interface {
	events(ctx context.Context, limit int) ([]models.Event, error)
}

type storeReader struct{ store graphstore.Store }

func (r storeReader) events(ctx context.Context, limit int) ([]models.Event, error) {
	g, err := r.store.Read(ctx, limit)
	if err != nil {
		return nil, err
	}
	events := g.Events()
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

type loaderReader struct{ loader *loader.Loader }

func (r loaderReader) events(ctx context.Context, limit int) ([]models.Event, error) {
	res, err := r.loader.Load(ctx, limit)
	if err != nil {
		return nil, err
	}
	return res.Events, nil
}

func (s *Service) reader() (reader, error) {
	if s.store.Configured() {
		return storeReader{store: s.store}, nil
	}
	if s.loader == nil {
		return nil, apperr.ErrNotConfigured
	}
	return loaderReader{loader: s.loader}, nil
}

// ListEvents returns up to limit events, newest first. Category pseudo-nodes
// are never included.
func (s *Service) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	events, err := r.events(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("historian: list events: %w", err)
	}
	return nonNil(events), nil
}

// GetEvent returns the event with the given id, or nil when it is absent.
func (s *Service) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	r, err := s.reader()
	if err != nil {
		return nil, err
	}
	events, err := r.events(ctx, GetEventScan)
	if err != nil {
		return nil, fmt.Errorf("historian: get event: %w", err)
	}
	for i := range events {
		if events[i].ID == id {
			return &events[i], nil
		}
	}
	return nil, nil
}

// Graph returns the bounded graph read. There is no loader fallback: an
// unconfigured store fails with apperr.ErrNotConfigured.
func (s *Service) Graph(ctx context.Context, limit int) (models.Graph, error) {
	g, err := s.store.Read(ctx, limit)
	if err != nil {
		return models.Graph{}, fmt.Errorf("historian: graph: %w", err)
	}
	if err := g.Validate(); err != nil {
		return models.Graph{}, fmt.Errorf("historian: %w", err)
	}
	return g, nil
}

// Stats returns store counts.
func (s *Service) Stats(ctx context.Context) (graphstore.Stats, error) {
	return s.store.Stats(ctx)
}

func (s *Service) publish(kind string, data any) {
	if s.notify != nil {
		s.notify(kind, data)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
