package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/starford/historian/internal/models"
)

var neo4jConstraints = []string{
	`CREATE CONSTRAINT historian_event_id IF NOT EXISTS FOR (e:Event) REQUIRE e.id IS UNIQUE`,
	`CREATE CONSTRAINT historian_topic_label IF NOT EXISTS FOR (t:Topic) REQUIRE t.label IS UNIQUE`,
	`CREATE CONSTRAINT historian_tag_label IF NOT EXISTS FOR (t:Tag) REQUIRE t.label IS UNIQUE`,
	`CREATE CONSTRAINT historian_person_label IF NOT EXISTS FOR (p:Person) REQUIRE p.label IS UNIQUE`,
}

const cypherUpsertEvents = `
UNWIND $events AS ev
MERGE (e:Event {id: ev.id})
SET e.created = ev.created,
    e.title = ev.title,
    e.content = ev.content,
    e.sourcePath = ev.sourcePath,
    e.theme = ev.theme,
    e.source = ev.source,
    e.kind = ev.kind,
    e.era = ev.era,
    e.tags = ev.tags,
    e.people = ev.people
WITH e, ev
FOREACH (_ IN CASE WHEN ev.theme <> '' THEN [1] ELSE [] END |
    MERGE (t:Topic {label: ev.theme})
    MERGE (e)-[:THEME]->(t))
FOREACH (tag IN ev.tags |
    MERGE (g:Tag {label: tag})
    MERGE (e)-[:TAGGED]->(g))
FOREACH (person IN ev.people |
    MERGE (p:Person {label: person})
    MERGE (e)-[:MENTIONS]->(p))
`

const cypherMergeNext = `
UNWIND $edges AS edge
MATCH (a:Event {id: edge.from})
MATCH (b:Event {id: edge.to})
MERGE (a)-[:NEXT]->(b)
RETURN edge.from AS from, edge.to AS to
`

const cypherReadEvents = `
MATCH (e:Event)
RETURN e
ORDER BY e.created DESC, e.id ASC
LIMIT $limit
`

const cypherReadEdges = `
MATCH (e:Event)-[r:NEXT|THEME|TAGGED|MENTIONS]->(m)
WHERE e.id IN $ids
RETURN e.id AS from,
       type(r) AS type,
       CASE WHEN m:Event THEN m.id ELSE m.label END AS target
ORDER BY type, from, target
`

// Neo4j is the Store backed by a Neo4j database.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ Store = (*Neo4j)(nil)

// OpenNeo4j connects to the server, verifies connectivity and ensures the
// uniqueness constraints exist.
func OpenNeo4j(ctx context.Context, cfg Config) (*Neo4j, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("graphstore: neo4j uri is required")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("graphstore: create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graphstore: neo4j connectivity: %w", err)
	}

	s := &Neo4j{driver: driver, database: cfg.Database}
	for _, stmt := range neo4jConstraints {
		if _, err := neo4j.ExecuteQuery(ctx, driver, stmt, nil, neo4j.EagerResultTransformer, s.queryOpts()...); err != nil {
			_ = driver.Close(ctx)
			return nil, fmt.Errorf("graphstore: neo4j constraint: %w", err)
		}
	}
	return s, nil
}

// Configured always reports true for a connected driver.
func (s *Neo4j) Configured() bool { return true }

// Close releases the driver.
func (s *Neo4j) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4j) queryOpts(extra ...neo4j.ExecuteQueryConfigurationOption) []neo4j.ExecuteQueryConfigurationOption {
	opts := extra
	if s.database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(s.database))
	}
	return opts
}

// Upsert merges events, category nodes and NEXT edges in one write
// transaction.
func (s *Neo4j) Upsert(ctx context.Context, events []models.Event, edges []models.Edge) (UpsertResult, error) {
	b := planBatch(events, edges)
	res := UpsertResult{SkippedLabels: b.skippedLabels, SkippedEdges: []models.Edge{}}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	merged, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(b.events) > 0 {
			r, err := tx.Run(ctx, cypherUpsertEvents, map[string]any{"events": eventParams(b.events)})
			if err != nil {
				return nil, err
			}
			if _, err := r.Consume(ctx); err != nil {
				return nil, err
			}
		}
		if len(b.next) == 0 {
			return []*neo4j.Record{}, nil
		}
		r, err := tx.Run(ctx, cypherMergeNext, map[string]any{"edges": edgeParams(b.next)})
		if err != nil {
			return nil, err
		}
		return r.Collect(ctx)
	})
	if err != nil {
		return res, fmt.Errorf("graphstore: neo4j upsert: %w", err)
	}

	applied := make(map[models.Edge]struct{})
	for _, rec := range merged.([]*neo4j.Record) {
		from, _, _ := neo4j.GetRecordValue[string](rec, "from")
		to, _, _ := neo4j.GetRecordValue[string](rec, "to")
		applied[models.Edge{From: from, To: to, Type: models.EdgeNext}] = struct{}{}
	}

	res.Events = len(b.events)
	res.Edges = len(b.categories)
	for _, e := range b.next {
		if _, ok := applied[e]; ok {
			res.Edges++
			continue
		}
		res.SkippedEdges = append(res.SkippedEdges, e)
	}
	return res, nil
}

// Read returns the newest events and their hydrated neighbourhood.
func (s *Neo4j) Read(ctx context.Context, limit int) (models.Graph, error) {
	limit = clampLimit(limit)

	result, err := neo4j.ExecuteQuery(ctx, s.driver, cypherReadEvents,
		map[string]any{"limit": int64(limit)},
		neo4j.EagerResultTransformer, s.queryOpts(neo4j.ExecuteQueryWithReadersRouting())...)
	if err != nil {
		return models.Graph{}, fmt.Errorf("graphstore: neo4j read events: %w", err)
	}

	events := make([]models.Event, 0, len(result.Records))
	ids := make([]string, 0, len(result.Records))
	for _, rec := range result.Records {
		node, ok, err := neo4j.GetRecordValue[neo4j.Node](rec, "e")
		if err != nil || !ok {
			return models.Graph{}, fmt.Errorf("graphstore: neo4j decode event: %w", err)
		}
		ev := eventFromProps(node.Props)
		events = append(events, ev)
		ids = append(ids, ev.ID)
	}
	if len(events) == 0 {
		return models.Graph{Nodes: []models.Node{}, Edges: []models.Edge{}}, nil
	}

	edgeResult, err := neo4j.ExecuteQuery(ctx, s.driver, cypherReadEdges,
		map[string]any{"ids": ids},
		neo4j.EagerResultTransformer, s.queryOpts(neo4j.ExecuteQueryWithReadersRouting())...)
	if err != nil {
		return models.Graph{}, fmt.Errorf("graphstore: neo4j read edges: %w", err)
	}

	rows := make([]edgeRow, 0, len(edgeResult.Records))
	for _, rec := range edgeResult.Records {
		from, _, _ := neo4j.GetRecordValue[string](rec, "from")
		typ, _, _ := neo4j.GetRecordValue[string](rec, "type")
		target, _, _ := neo4j.GetRecordValue[string](rec, "target")
		if row, ok := edgeRowFromRecord(from, typ, target); ok {
			rows = append(rows, row)
		}
	}
	return assemble(events, rows), nil
}

// Stats counts nodes per label and relationships per type.
func (s *Neo4j) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Nodes: map[string]int{}, Edges: map[string]int{}}

	nodes, err := neo4j.ExecuteQuery(ctx, s.driver,
		`MATCH (n) WHERE n:Event OR n:Topic OR n:Tag OR n:Person RETURN labels(n)[0] AS key, count(*) AS n`,
		nil, neo4j.EagerResultTransformer, s.queryOpts(neo4j.ExecuteQueryWithReadersRouting())...)
	if err != nil {
		return st, fmt.Errorf("graphstore: neo4j stats: %w", err)
	}
	for _, rec := range nodes.Records {
		key, _, _ := neo4j.GetRecordValue[string](rec, "key")
		n, _, _ := neo4j.GetRecordValue[int64](rec, "n")
		st.Nodes[labelFromNeo4j(key)] += int(n)
	}

	rels, err := neo4j.ExecuteQuery(ctx, s.driver,
		`MATCH (:Event)-[r:NEXT|THEME|TAGGED|MENTIONS]->() RETURN type(r) AS key, count(*) AS n`,
		nil, neo4j.EagerResultTransformer, s.queryOpts(neo4j.ExecuteQueryWithReadersRouting())...)
	if err != nil {
		return st, fmt.Errorf("graphstore: neo4j stats: %w", err)
	}
	for _, rec := range rels.Records {
		key, _, _ := neo4j.GetRecordValue[string](rec, "key")
		n, _, _ := neo4j.GetRecordValue[int64](rec, "n")
		st.Edges[key] = int(n)
	}
	return st, nil
}

func eventParams(events []models.Event) []map[string]any {
	out := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		out = append(out, map[string]any{
			"id":         ev.ID,
			"created":    ev.Created,
			"title":      ev.Title,
			"content":    ev.Content,
			"sourcePath": ev.SourcePath,
			"theme":      ev.Theme,
			"source":     ev.Source,
			"kind":       ev.Kind,
			"era":        ev.Era,
			"tags":       ev.Tags,
			"people":     ev.People,
		})
	}
	return out
}

func edgeParams(edges []models.Edge) []map[string]any {
	out := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		out = append(out, map[string]any{"from": e.From, "to": e.To})
	}
	return out
}

func eventFromProps(props map[string]any) models.Event {
	str := func(key string) string {
		s, _ := props[key].(string)
		return s
	}
	return models.Event{
		ID:         str("id"),
		Label:      models.LabelEvent,
		Created:    str("created"),
		Title:      str("title"),
		Content:    str("content"),
		SourcePath: str("sourcePath"),
		Theme:      str("theme"),
		Source:     str("source"),
		Kind:       str("kind"),
		Era:        str("era"),
		Tags:       stringList(props["tags"]),
		People:     stringList(props["people"]),
	}
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return models.CleanLabels(list)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return models.CleanLabels(out)
	}
	return []string{}
}

func edgeRowFromRecord(from, typ, target string) (edgeRow, bool) {
	t := models.EdgeType(typ)
	if !t.Valid() || from == "" || target == "" {
		return edgeRow{}, false
	}
	if t == models.EdgeNext {
		return edgeRow{From: from, To: target, Type: t}, true
	}
	label := t.CategoryLabel()
	return edgeRow{
		From:    from,
		To:      models.CategoryID(label, target),
		Type:    t,
		ToLabel: label,
		ToTitle: target,
	}, true
}

func labelFromNeo4j(label string) string {
	switch label {
	case "Event":
		return models.LabelEvent
	case "Topic":
		return models.LabelTopic
	case "Tag":
		return models.LabelTag
	case "Person":
		return models.LabelPerson
	}
	return label
}
