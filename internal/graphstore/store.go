// Package graphstore persists events and their derived category nodes in a
// labeled-property graph and reads back bounded, hydrated subgraphs.
//
// Concurrent upserts touching the same event ids are as safe as the
// backend's merge-by-id semantics: the last writer wins per property.
package graphstore

import (
	"context"
	"fmt"

	"github.com/starford/historian/internal/apperr"
	"github.com/starford/historian/internal/models"
)

// Read limits.
const (
	DefaultReadLimit = 200
	MaxReadLimit     = 500
)

// Backends.
const (
	BackendNone   = ""
	BackendNeo4j  = "neo4j"
	BackendSQLite = "sqlite"
)

// Store is the graph persistence contract shared by all backends.
type Store interface {
	// Upsert merges events, their category nodes and edges, and the supplied
	// NEXT edges whose endpoints both exist. It runs as one transaction.
	Upsert(ctx context.Context, events []models.Event, edges []models.Edge) (UpsertResult, error)
	// Read returns up to limit events (newest first), the edges whose event
	// endpoint is in that set, and one pseudo-node per referenced category.
	Read(ctx context.Context, limit int) (models.Graph, error)
	// Stats returns node and edge counts.
	Stats(ctx context.Context) (Stats, error)
	// Configured reports whether the store is backed by a real database.
	Configured() bool
	Close(ctx context.Context) error
}

// UpsertResult reports what one Upsert call processed.
type UpsertResult struct {
	Events int `json:"events"`
	Edges  int `json:"edges"`
	// SkippedEdges are NEXT edges dropped because an endpoint was missing.
	SkippedEdges []models.Edge `json:"skippedEdges"`
	// SkippedLabels counts blank theme/tag/person values filtered out.
	SkippedLabels int `json:"skippedLabels"`
}

// Stats holds node counts per label and edge counts per type.
type Stats struct {
	Nodes map[string]int `json:"nodes"`
	Edges map[string]int `json:"edges"`
}

// TotalNodes sums the node counts.
func (s Stats) TotalNodes() int {
	n := 0
	for _, c := range s.Nodes {
		n += c
	}
	return n
}

// TotalEdges sums the edge counts.
func (s Stats) TotalEdges() int {
	n := 0
	for _, c := range s.Edges {
		n += c
	}
	return n
}

// Config holds connection coordinates for a backend.
type Config struct {
	Backend    string
	URI        string
	Username   string
	Password   string
	Database   string
	SQLitePath string
}

// Open constructs the store selected by cfg.Backend. An empty backend yields
// an Unconfigured store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendNone:
		return Unconfigured{}, nil
	case BackendNeo4j:
		s, err := OpenNeo4j(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("graphstore: unknown backend %q", cfg.Backend)
	}
}

// Unconfigured is the store used when no backend is set. Every operation
// fails with apperr.ErrNotConfigured.
type Unconfigured struct{}

var _ Store = Unconfigured{}

func (Unconfigured) Upsert(context.Context, []models.Event, []models.Edge) (UpsertResult, error) {
	return UpsertResult{}, apperr.ErrNotConfigured
}

func (Unconfigured) Read(context.Context, int) (models.Graph, error) {
	return models.Graph{}, apperr.ErrNotConfigured
}

func (Unconfigured) Stats(context.Context) (Stats, error) {
	return Stats{}, apperr.ErrNotConfigured
}

func (Unconfigured) Configured() bool { return false }

func (Unconfigured) Close(context.Context) error { return nil }

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultReadLimit
	}
	if limit > MaxReadLimit {
		return MaxReadLimit
	}
	return limit
}
