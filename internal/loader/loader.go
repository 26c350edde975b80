// Package loader turns a directory of dated Markdown documents into event
// records.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/starford/historian/internal/models"
	"github.com/starford/historian/internal/parser"
	"github.com/starford/historian/internal/storage"
)

// DefaultMax is used when Load is called with a non-positive max.
const DefaultMax = 200

// Result is the outcome of one Load call.
type Result struct {
	// Events are sorted by created descending.
	Events []models.Event
	// Skipped lists .md file names that do not follow the naming
	// convention. Files without the .md extension are never candidates and
	// are not reported.
	Skipped []string
}

// Loader reads events from a document source.
type Loader struct {
	src         storage.Source
	logger      *slog.Logger
	concurrency int
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for skip diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithConcurrency bounds the number of documents read in parallel.
func WithConcurrency(n int) Option {
	return func(ld *Loader) {
		if n > 0 {
			ld.concurrency = n
		}
	}
}

// New creates a Loader over src.
func New(src storage.Source, opts ...Option) *Loader {
	ld := &Loader{
		src:         src,
		logger:      slog.Default(),
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

type candidate struct {
	name    string
	created string
	title   string
}

// Load lists the source, keeps the newest max documents by date, and reads
// only those. Any read failure fails the whole call.
func (ld *Loader) Load(ctx context.Context, max int) (Result, error) {
	if max <= 0 {
		max = DefaultMax
	}

	entries, err := ld.src.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loader: %w", err)
	}

	var res Result
	cands := make([]candidate, 0, len(entries))
	for _, e := range entries {
		created, title, ok := parser.ParseFilename(e.Name)
		if !ok {
			ld.logger.Debug("loader: skipped file", slog.String("name", e.Name))
			res.Skipped = append(res.Skipped, e.Name)
			continue
		}
		cands = append(cands, candidate{name: e.Name, created: created, title: title})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].created != cands[j].created {
			return cands[i].created > cands[j].created
		}
		return cands[i].name < cands[j].name
	})
	if len(cands) > max {
		cands = cands[:max]
	}

	events := make([]models.Event, len(cands))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(ld.concurrency)
	for i, c := range cands {
		g.Go(func() error {
			data, err := ld.src.Read(gCtx, c.name)
			if err != nil {
				return fmt.Errorf("loader: %w", err)
			}
			events[i] = parser.Event(c.created, c.title, c.name, parser.Parse(data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res.Events = events
	return res, nil
}
