package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/historian/internal/graphstore"
	pkgconfig "github.com/starford/historian/pkg/config"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	if cfg.Graph.Backend != graphstore.BackendNone {
		t.Errorf("backend = %q, want unconfigured", cfg.Graph.Backend)
	}
}

func TestGraphConfig_UnknownBackend(t *testing.T) {
	cfg := GraphConfig{Backend: "postgres"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown backend should fail validation")
	}
}

func TestGraphConfig_Neo4jNeedsURI(t *testing.T) {
	cfg := GraphConfig{Backend: graphstore.BackendNeo4j}
	if err := cfg.Validate(); err == nil {
		t.Fatal("neo4j without uri should fail")
	}
	cfg.URI = "neo4j://localhost:7687"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("neo4j with uri should pass: %v", err)
	}
}

func TestGraphConfig_SQLiteNeedsPath(t *testing.T) {
	cfg := GraphConfig{Backend: graphstore.BackendSQLite}
	if err := cfg.Validate(); err == nil {
		t.Fatal("sqlite without path should fail")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ApplyEnv(envMap(map[string]string{
		"HISTORIAN_DOCS_DIR":     "/srv/docs",
		"NEO4J_URI":              "neo4j://db:7687",
		"NEO4J_USER":             "neo4j",
		"NEO4J_PASSWORD":         "pw",
		"NEO4J_DATABASE":         "history",
		"HISTORIAN_ADMIN_SECRET": "s3cret",
	}))

	if cfg.Documents.Path != "/srv/docs" {
		t.Errorf("docs = %q", cfg.Documents.Path)
	}
	if cfg.Graph.Backend != graphstore.BackendNeo4j {
		t.Errorf("backend = %q, want neo4j", cfg.Graph.Backend)
	}
	sc := cfg.Graph.ToStore()
	if sc.URI != "neo4j://db:7687" || sc.Username != "neo4j" || sc.Password != "pw" || sc.Database != "history" {
		t.Errorf("store config = %+v", sc)
	}
	if cfg.Admin.Secret != "s3cret" {
		t.Errorf("secret = %q", cfg.Admin.Secret)
	}
}

func TestApplyEnv_ExplicitBackendKept(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Graph.Backend = graphstore.BackendSQLite
	cfg.ApplyEnv(envMap(map[string]string{"NEO4J_URI": "neo4j://db:7687"}))
	if cfg.Graph.Backend != graphstore.BackendSQLite {
		t.Errorf("backend = %q, want sqlite", cfg.Graph.Backend)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("TEST_HISTORIAN_SECRET", "from-env")
	yaml := `app:
  log_level: debug
  http:
    port: 9090
documents:
  path: ./docs
  max: 50
graph:
  backend: sqlite
  sqlite_path: ./graph.db
admin:
  secret: ${TEST_HISTORIAN_SECRET}
watch:
  enabled: false
  debounce: 2s
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.Documents.Max != 50 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Graph.Backend != graphstore.BackendSQLite || cfg.Graph.SQLitePath != "./graph.db" {
		t.Errorf("graph = %+v", cfg.Graph)
	}
	if cfg.Admin.Secret != "from-env" {
		t.Errorf("secret = %q", cfg.Admin.Secret)
	}
	if cfg.Watch.Enabled || cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("watch = %+v", cfg.Watch)
	}
	if cfg.App.HTTP.LayoutFPS != 60 {
		t.Errorf("layout fps default lost: %d", cfg.App.HTTP.LayoutFPS)
	}
}
