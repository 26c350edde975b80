package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/historian/internal/models"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS nodes (
	id          TEXT PRIMARY KEY,
	label       TEXT NOT NULL,
	created     TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	source_path TEXT NOT NULL DEFAULT '',
	theme       TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL DEFAULT '',
	era         TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '[]',
	people      TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS edges (
	src  TEXT NOT NULL,
	dst  TEXT NOT NULL,
	type TEXT NOT NULL,
	UNIQUE(src, dst, type)
);

CREATE INDEX IF NOT EXISTS idx_nodes_label_created ON nodes(label, created);
CREATE INDEX IF NOT EXISTS idx_edges_src ON edges(src);
CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst);
`

// SQLite stores the labeled-property graph in two tables: nodes keyed by id
// with a label column, and edges unique on (src, dst, type).
type SQLite struct {
	conn *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		return nil, fmt.Errorf("graphstore: sqlite path is required")
	}
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("graphstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graphstore: ping: %w", err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("graphstore: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Configured always reports true for an open database.
func (s *SQLite) Configured() bool { return true }

// Close closes the underlying database connection.
func (s *SQLite) Close(context.Context) error {
	return s.conn.Close()
}

// Upsert merges the batch within a single transaction.
func (s *SQLite) Upsert(ctx context.Context, events []models.Event, edges []models.Edge) (UpsertResult, error) {
	b := planBatch(events, edges)
	res := UpsertResult{SkippedLabels: b.skippedLabels, SkippedEdges: []models.Edge{}}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("graphstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	eventStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, label, created, title, content, source_path, theme, source, kind, era, tags, people)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label       = excluded.label,
			created     = excluded.created,
			title       = excluded.title,
			content     = excluded.content,
			source_path = excluded.source_path,
			theme       = excluded.theme,
			source      = excluded.source,
			kind        = excluded.kind,
			era         = excluded.era,
			tags        = excluded.tags,
			people      = excluded.people
		WHERE nodes.label = 'event'
	`)
	if err != nil {
		return res, fmt.Errorf("graphstore: prepare event upsert: %w", err)
	}
	defer eventStmt.Close()

	for _, ev := range b.events {
		tags, _ := json.Marshal(ev.Tags)
		people, _ := json.Marshal(ev.People)
		if _, err := eventStmt.ExecContext(ctx, ev.ID, models.LabelEvent, ev.Created, ev.Title, ev.Content,
			ev.SourcePath, ev.Theme, ev.Source, ev.Kind, ev.Era, string(tags), string(people)); err != nil {
			return res, fmt.Errorf("graphstore: upsert event %s: %w", ev.ID, err)
		}
		res.Events++
	}

	catStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (id, label, created, title) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return res, fmt.Errorf("graphstore: prepare category merge: %w", err)
	}
	defer catStmt.Close()

	edgeStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO edges (src, dst, type) VALUES (?, ?, ?)`)
	if err != nil {
		return res, fmt.Errorf("graphstore: prepare edge merge: %w", err)
	}
	defer edgeStmt.Close()

	for _, c := range b.categories {
		id := models.CategoryID(c.Label, c.Value)
		if _, err := catStmt.ExecContext(ctx, id, c.Label, models.SentinelDate, c.Value); err != nil {
			return res, fmt.Errorf("graphstore: merge %s: %w", id, err)
		}
		if _, err := edgeStmt.ExecContext(ctx, c.EventID, id, string(c.Type)); err != nil {
			return res, fmt.Errorf("graphstore: merge %s edge: %w", c.Type, err)
		}
		res.Edges++
	}

	for _, e := range b.next {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM nodes WHERE label = ? AND id IN (?, ?)`,
			models.LabelEvent, e.From, e.To).Scan(&n); err != nil {
			return res, fmt.Errorf("graphstore: check next endpoints: %w", err)
		}
		if n != 2 {
			res.SkippedEdges = append(res.SkippedEdges, e)
			continue
		}
		if _, err := edgeStmt.ExecContext(ctx, e.From, e.To, string(models.EdgeNext)); err != nil {
			return res, fmt.Errorf("graphstore: merge NEXT edge: %w", err)
		}
		res.Edges++
	}

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("graphstore: commit: %w", err)
	}
	return res, nil
}

// Read returns the newest events and their hydrated neighbourhood.
func (s *SQLite) Read(ctx context.Context, limit int) (models.Graph, error) {
	limit = clampLimit(limit)

	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, created, title, content, source_path, theme, source, kind, era, tags, people
		FROM nodes
		WHERE label = ?
		ORDER BY created DESC, id ASC
		LIMIT ?
	`, models.LabelEvent, limit)
	if err != nil {
		return models.Graph{}, fmt.Errorf("graphstore: read events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		var tags, people string
		if err := rows.Scan(&ev.ID, &ev.Created, &ev.Title, &ev.Content, &ev.SourcePath,
			&ev.Theme, &ev.Source, &ev.Kind, &ev.Era, &tags, &people); err != nil {
			return models.Graph{}, fmt.Errorf("graphstore: scan event: %w", err)
		}
		ev.Label = models.LabelEvent
		_ = json.Unmarshal([]byte(tags), &ev.Tags)
		_ = json.Unmarshal([]byte(people), &ev.People)
		ev.Tags = models.CleanLabels(ev.Tags)
		ev.People = models.CleanLabels(ev.People)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return models.Graph{}, err
	}
	if len(events) == 0 {
		return models.Graph{Nodes: []models.Node{}, Edges: []models.Edge{}}, nil
	}

	edgeRows, err := s.readEdges(ctx, events)
	if err != nil {
		return models.Graph{}, err
	}
	return assemble(events, edgeRows), nil
}

func (s *SQLite) readEdges(ctx context.Context, events []models.Event) ([]edgeRow, error) {
	args := make([]any, 0, len(events))
	for _, ev := range events {
		args = append(args, ev.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(events)), ",")

	rows, err := s.conn.QueryContext(ctx, `
		SELECT e.src, e.dst, e.type, n.label, n.title
		FROM edges e
		JOIN nodes n ON n.id = e.dst
		WHERE e.src IN (`+placeholders+`)
		ORDER BY e.type, e.src, e.dst
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("graphstore: read edges: %w", err)
	}
	defer rows.Close()

	var out []edgeRow
	for rows.Next() {
		var r edgeRow
		var typ string
		if err := rows.Scan(&r.From, &r.To, &typ, &r.ToLabel, &r.ToTitle); err != nil {
			return nil, fmt.Errorf("graphstore: scan edge: %w", err)
		}
		r.Type = models.EdgeType(typ)
		if !r.Type.Valid() {
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats counts nodes per label and edges per type.
func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Nodes: map[string]int{}, Edges: map[string]int{}}
	if err := s.countInto(ctx, `SELECT label, COUNT(*) FROM nodes GROUP BY label`, st.Nodes); err != nil {
		return st, err
	}
	if err := s.countInto(ctx, `SELECT type, COUNT(*) FROM edges GROUP BY type`, st.Edges); err != nil {
		return st, err
	}
	return st, nil
}

func (s *SQLite) countInto(ctx context.Context, query string, into map[string]int) error {
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("graphstore: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}
