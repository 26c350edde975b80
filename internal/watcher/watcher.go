// Package watcher re-ingests the documents directory when its Markdown files
// change.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/historian/internal/historian"
	"github.com/starford/historian/internal/parser"
	"github.com/starford/historian/internal/storage"
)

// DefaultDebounce is the quiet period before a burst of changes triggers
// one ingestion run.
const DefaultDebounce = 500 * time.Millisecond

// Ingester runs a batch ingestion. *historian.Service satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, opts historian.IngestOptions) (historian.IngestReport, error)
}

// Watcher batches file system events on a documents directory and runs an
// ingestion when the content of an accepted document actually changed.
type Watcher struct {
	src      storage.Source
	ing      Ingester
	opts     historian.IngestOptions
	debounce time.Duration
	logger   *slog.Logger
	onRun    func(historian.IngestReport)

	sums map[string]string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithIngestOptions sets the options passed to each run.
func WithIngestOptions(o historian.IngestOptions) Option {
	return func(w *Watcher) { w.opts = o }
}

// OnRun registers a callback invoked after each successful run.
func OnRun(fn func(historian.IngestReport)) Option {
	return func(w *Watcher) { w.onRun = fn }
}

// New creates a Watcher over src.
func New(src storage.Source, ing Ingester, opts ...Option) *Watcher {
	w := &Watcher{
		src:      src,
		ing:      ing,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		sums:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Prime records the current checksum of every accepted document so that the
// first event for an unchanged file does not trigger a run.
func (w *Watcher) Prime(ctx context.Context) error {
	entries, err := w.src.List(ctx)
	if err != nil {
		return fmt.Errorf("watcher: prime: %w", err)
	}
	for _, e := range entries {
		if _, _, ok := parser.ParseFilename(e.Name); !ok {
			continue
		}
		data, err := w.src.Read(ctx, e.Name)
		if err != nil {
			continue
		}
		w.sums[e.Name] = sum(data)
	}
	return nil
}

// changed reports whether any pending name differs from its last known
// checksum, updating the record as it goes.
func (w *Watcher) changed(ctx context.Context, pending map[string]struct{}) bool {
	dirty := false
	for name := range pending {
		data, err := w.src.Read(ctx, name)
		if err != nil {
			// Removed or renamed away. The graph store is upsert-only, so
			// the next run cannot drop it; just forget the checksum.
			delete(w.sums, name)
			continue
		}
		s := sum(data)
		if w.sums[name] != s {
			w.sums[name] = s
			dirty = true
		}
	}
	return dirty
}

// Run watches the source root until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer fw.Close()

	root := w.src.Root()
	if err := fw.Add(root); err != nil {
		return fmt.Errorf("watcher: add %s: %w", root, err)
	}
	w.logger.Info("watcher: started", slog.String("root", root), slog.Duration("debounce", w.debounce))

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
		pending = make(map[string]struct{})
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerCh = timer.C
		} else {
			timer.Reset(w.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			if !w.changed(ctx, pending) {
				w.logger.Debug("watcher: no content change", slog.Int("files", len(pending)))
				clear(pending)
				continue
			}
			clear(pending)
			w.run(ctx)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if filepath.Dir(ev.Name) != root || !strings.HasSuffix(name, ".md") {
				continue
			}
			if _, _, ok := parser.ParseFilename(name); !ok {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[name] = struct{}{}
			schedule()

		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", werr.Error()))
		}
	}
}

func (w *Watcher) run(ctx context.Context) {
	report, err := w.ing.Ingest(ctx, w.opts)
	if err != nil {
		w.logger.Warn("watcher: ingest failed", slog.String("error", err.Error()))
		return
	}
	w.logger.Info("watcher: ingested",
		slog.String("run_id", report.RunID),
		slog.Int("events", report.ParsedEvents),
		slog.Int("edges", report.ParsedEdges))
	if w.onRun != nil {
		w.onRun(report)
	}
}
