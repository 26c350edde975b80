package historian

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/historian/internal/apperr"
	"github.com/starford/historian/internal/chronology"
	"github.com/starford/historian/internal/graphstore"
	"github.com/starford/historian/internal/models"
)

// Notification kinds.
const (
	KindEventIngested = "event.ingested"
	KindGraphUpdated  = "graph.updated"
)

// IngestEventResult is returned by IngestEvent.
type IngestEventResult struct {
	ID       string   `json:"id"`
	Events   int      `json:"events"`
	Edges    int      `json:"edges"`
	Warnings []string `json:"warnings"`
}

// IngestOptions controls a batch ingestion run.
type IngestOptions struct {
	Max    int
	DryRun bool
}

// IngestReport summarises a batch ingestion run.
type IngestReport struct {
	RunID        string                   `json:"runId"`
	ParsedEvents int                      `json:"parsedEvents"`
	ParsedEdges  int                      `json:"parsedEdges"`
	SkippedFiles []string                 `json:"skippedFiles"`
	DryRun       bool                     `json:"dryRun"`
	Upserted     *graphstore.UpsertResult `json:"upserted,omitempty"`
}

// Authorize compares credential with the server secret in constant time.
// An unset secret rejects every credential.
func (s *Service) Authorize(credential string) error {
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(credential), []byte(s.secret)) != 1 {
		return apperr.ErrUnauthorized
	}
	return nil
}

var eventIDPattern = regexp.MustCompile("^" + regexp.QuoteMeta(models.EventIDPrefix))

// validateEvent rejects malformed events. A caller-supplied id must be an
// event id so it can never overwrite a category node.
func validateEvent(ev models.Event, previousID string) error {
	err := validation.ValidateStruct(&ev,
		validation.Field(&ev.ID, validation.Match(eventIDPattern)),
		validation.Field(&ev.Created, validation.Required, validation.Date("2006-01-02")),
		validation.Field(&ev.Title, validation.Required, validation.Length(1, 300)),
	)
	if err == nil {
		err = validation.Validate(previousID, validation.Match(eventIDPattern))
		if err != nil {
			err = fmt.Errorf("previousId: %w", err)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return nil
}

// IngestEvent admits a single event, optionally linking it to a predecessor
// with a NEXT edge. The credential must match the server secret.
func (s *Service) IngestEvent(ctx context.Context, credential string, ev models.Event, previousID string) (IngestEventResult, error) {
	if err := s.Authorize(credential); err != nil {
		s.logger.Warn("ingest event rejected", slog.String("reason", "credential mismatch"))
		return IngestEventResult{}, err
	}
	if err := validateEvent(ev, previousID); err != nil {
		return IngestEventResult{}, err
	}
	if !s.store.Configured() {
		return IngestEventResult{}, apperr.ErrNotConfigured
	}

	ev.Normalize()
	if ev.SourcePath == "" {
		ev.SourcePath = ev.Created + "." + ev.Title + ".md"
	}

	var edges []models.Edge
	if previousID != "" {
		edges = append(edges, models.Edge{From: previousID, To: ev.ID, Type: models.EdgeNext})
	}

	res, err := s.store.Upsert(ctx, []models.Event{ev}, edges)
	if err != nil {
		return IngestEventResult{}, fmt.Errorf("historian: ingest event: %w", err)
	}

	out := IngestEventResult{
		ID:       ev.ID,
		Events:   res.Events,
		Edges:    res.Edges,
		Warnings: []string{},
	}
	for _, e := range res.SkippedEdges {
		msg := fmt.Sprintf("predecessor %q not found; NEXT edge to %q was not created", e.From, e.To)
		out.Warnings = append(out.Warnings, msg)
		s.logger.Warn("ingest event: dropped NEXT edge", slog.String("from", e.From), slog.String("to", e.To))
	}
	if res.SkippedLabels > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%d empty labels ignored", res.SkippedLabels))
	}

	s.logger.Info("event ingested",
		slog.String("id", ev.ID),
		slog.Int("events", res.Events),
		slog.Int("edges", res.Edges))
	s.publish(KindEventIngested, map[string]string{"id": ev.ID})
	return out, nil
}

// Ingest runs the batch pipeline: load documents, derive the NEXT chain,
// and upsert everything unless DryRun is set.
func (s *Service) Ingest(ctx context.Context, opts IngestOptions) (IngestReport, error) {
	report := IngestReport{RunID: uuid.NewString(), DryRun: opts.DryRun}
	logger := s.logger.With(slog.String("run_id", report.RunID))

	if s.loader == nil {
		return report, fmt.Errorf("historian: ingest: no document source configured")
	}
	if !opts.DryRun && !s.store.Configured() {
		return report, apperr.ErrNotConfigured
	}

	loaded, err := s.loader.Load(ctx, opts.Max)
	if err != nil {
		return report, fmt.Errorf("historian: ingest: %w", err)
	}
	edges := chronology.Build(loaded.Events)

	report.ParsedEvents = len(loaded.Events)
	report.ParsedEdges = len(edges)
	report.SkippedFiles = nonNil(loaded.Skipped)

	logger.Info("ingest parsed",
		slog.Int("events", report.ParsedEvents),
		slog.Int("edges", report.ParsedEdges),
		slog.Int("skipped_files", len(report.SkippedFiles)))

	if opts.DryRun {
		return report, nil
	}

	res, err := s.store.Upsert(ctx, loaded.Events, edges)
	if err != nil {
		return report, fmt.Errorf("historian: ingest: %w", err)
	}
	report.Upserted = &res

	logger.Info("ingest upserted",
		slog.Int("events", res.Events),
		slog.Int("edges", res.Edges),
		slog.Int("skipped_edges", len(res.SkippedEdges)),
		slog.Int("skipped_labels", res.SkippedLabels))
	s.publish(KindGraphUpdated, map[string]any{"runId": report.RunID, "events": res.Events})
	return report, nil
}
