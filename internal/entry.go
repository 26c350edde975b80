// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/historian/internal/api"
	"github.com/starford/historian/internal/graphstore"
	"github.com/starford/historian/internal/historian"
	"github.com/starford/historian/internal/loader"
	"github.com/starford/historian/internal/mcpserver"
	"github.com/starford/historian/internal/sse"
	"github.com/starford/historian/internal/storage"
	"github.com/starford/historian/internal/watcher"
)

// Runtime holds the wired components shared by every command.
type Runtime struct {
	Config  *Config
	Logger  *slog.Logger
	Source  *storage.FS
	Store   graphstore.Store
	Service *historian.Service

	version string
}

// Close releases the graph store.
func (rt *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Store.Close(ctx); err != nil {
		rt.Logger.Warn("graph store close failed", slog.String("error", err.Error()))
	}
}

// Bootstrap builds the logger, document source, graph store and service.
// Extra service options are applied after the configured ones.
func Bootstrap(ctx context.Context, opts []Option, svcOpts ...historian.Option) (*Runtime, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
		slog.SetDefault(logger)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("documents_path", cfg.Documents.Path),
		slog.String("graph_backend", cfg.Graph.Backend),
		slog.Bool("watch", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if app.createDir {
		if err := os.MkdirAll(cfg.Documents.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create documents dir: %w", err)
		}
	}

	src, err := storage.NewFS(cfg.Documents.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	store, err := graphstore.Open(ctx, cfg.Graph.ToStore())
	if err != nil {
		return nil, fmt.Errorf("init graph store: %w", err)
	}
	if !store.Configured() {
		logger.Warn("graph store not configured; reads fall back to the documents directory")
	}
	if cfg.Admin.Secret == "" {
		logger.Warn("admin secret not set; every mutation will be rejected")
	}

	ld := loader.New(src, loader.WithLogger(logger))
	base := []historian.Option{
		historian.WithAdminSecret(cfg.Admin.Secret),
		historian.WithLogger(logger),
	}
	svc := historian.NewService(store, ld, append(base, svcOpts...)...)

	return &Runtime{
		Config:  cfg,
		Logger:  logger,
		Source:  src,
		Store:   store,
		Service: svc,
		version: app.version,
	}, nil
}

func writeStatus(w http.ResponseWriter, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// NewHTTPHandler builds the full HTTP surface: health probes and the API
// under /api.
func NewHTTPHandler(rt *Runtime, broker *sse.Broker) http.Handler {
	apiRouter := api.NewRouter(rt.Service, api.Options{
		Documents:  rt.Source,
		Stream:     broker,
		Schedulers: api.TickerSchedulers(rt.Config.App.HTTP.LayoutFPS),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		graph := "unconfigured"
		if rt.Service.StoreConfigured() {
			graph = "configured"
		}
		writeStatus(w, map[string]string{"status": "ok", "graphStore": graph})
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	return r
}

// Run starts the HTTP server, the SSE broker and, when enabled, the
// documents watcher.
func Run(ctx context.Context, opts ...Option) error {
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := Bootstrap(ctx, append([]Option{WithCreateDocumentsDir(true)}, opts...), historian.WithNotifier(broker.Notify))
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.Config
	logger := rt.Logger

	// Run initial ingest.
	if rt.Store.Configured() {
		if _, err := rt.Service.Ingest(ctx, historian.IngestOptions{Max: cfg.Documents.Max}); err != nil {
			logger.Warn("initial ingest failed", slog.String("error", err.Error()))
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           NewHTTPHandler(rt, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	// Start documents watcher.
	if cfg.Watch.Enabled && rt.Store.Configured() {
		w := watcher.New(rt.Source, rt.Service,
			watcher.WithDebounce(cfg.Watch.Debounce),
			watcher.WithLogger(logger),
			watcher.WithIngestOptions(historian.IngestOptions{Max: cfg.Documents.Max}),
		)
		if err := w.Prime(gCtx); err != nil {
			logger.Warn("watcher prime failed", slog.String("error", err.Error()))
		}
		g.Go(func() error {
			return w.Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")
		stop()
		// Open change streams never finish on their own.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	rt, err := Bootstrap(ctx, append([]Option{WithLogOutput(os.Stderr), WithCreateDocumentsDir(true)}, opts...))
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.Logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.Service, rt.version).ServeStdio()
}
