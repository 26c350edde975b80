package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/historian/internal/graphstore"
	"github.com/starford/historian/internal/loader"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Documents DocumentsConfig   `yaml:"documents"`
	Graph     GraphConfig       `yaml:"graph"`
	Admin     AdminConfig       `yaml:"admin"`
	Watch     WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Documents.Validate(); err != nil {
		return err
	}
	if err := c.Graph.Validate(); err != nil {
		return err
	}
	return c.Watch.Validate()
}

// ApplyEnv overrides file values with the well-known environment variables.
// A Neo4j URI without an explicit backend selects the neo4j backend.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Documents.Path, "HISTORIAN_DOCS_DIR")
	set(&c.Graph.URI, "NEO4J_URI")
	set(&c.Graph.Username, "NEO4J_USER")
	set(&c.Graph.Password, "NEO4J_PASSWORD")
	set(&c.Graph.Database, "NEO4J_DATABASE")
	set(&c.Admin.Secret, "HISTORIAN_ADMIN_SECRET")
	if c.Graph.Backend == graphstore.BackendNone && c.Graph.URI != "" {
		c.Graph.Backend = graphstore.BackendNeo4j
	}
}

// ApplyProcessEnv is ApplyEnv over the process environment.
func (c *Config) ApplyProcessEnv() {
	c.ApplyEnv(os.LookupEnv)
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
	// LayoutFPS is the frame rate of live layout streams.
	LayoutFPS int `yaml:"layout_fps"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.LayoutFPS, validation.Min(1), validation.Max(240)),
	)
}

// DocumentsConfig locates the dated Markdown documents.
type DocumentsConfig struct {
	Path string `yaml:"path"`
	Max  int    `yaml:"max"`
}

// Validate validates the documents configuration.
func (c *DocumentsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Max, validation.Min(0)),
	)
}

// GraphConfig selects and addresses the graph store. An empty backend leaves
// the store unconfigured; reads then fall back to the documents directory.
type GraphConfig struct {
	Backend    string `yaml:"backend"`
	URI        string `yaml:"uri"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Validate validates the graph configuration.
func (c *GraphConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.In(graphstore.BackendNone, graphstore.BackendNeo4j, graphstore.BackendSQLite)),
		validation.Field(&c.URI, validation.When(c.Backend == graphstore.BackendNeo4j, validation.Required)),
		validation.Field(&c.SQLitePath, validation.When(c.Backend == graphstore.BackendSQLite, validation.Required)),
	)
}

// ToStore converts to graphstore.Config.
func (c *GraphConfig) ToStore() graphstore.Config {
	return graphstore.Config{
		Backend:    c.Backend,
		URI:        c.URI,
		Username:   c.Username,
		Password:   c.Password,
		Database:   c.Database,
		SQLitePath: c.SQLitePath,
	}
}

// AdminConfig holds the shared secret for mutations. An empty secret
// rejects every mutation.
type AdminConfig struct {
	Secret string `yaml:"secret"`
}

// WatchConfig controls re-ingestion on document changes.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:      8080,
				LayoutFPS: 60,
			},
		},
		Documents: DocumentsConfig{
			Path: "./documents",
			Max:  loader.DefaultMax,
		},
		Graph: GraphConfig{
			SQLitePath: "./historian.db",
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 500 * time.Millisecond,
		},
	}
}
