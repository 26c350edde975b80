package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/historian/internal"
	"github.com/starford/historian/internal/historian"
	pkgconfig "github.com/starford/historian/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// bootstrap loads the config and wires the runtime. Logs go to stderr so
// that stdout carries only command output.
func bootstrap(ctx context.Context, cmd *cli.Command, mutate func(*internal.Config)) (*internal.Runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	return internal.Bootstrap(ctx, []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithLogOutput(os.Stderr),
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func ingest(ctx context.Context, cmd *cli.Command) error {
	rt, err := bootstrap(ctx, cmd, func(cfg *internal.Config) {
		if dir := cmd.String("dir"); dir != "" {
			cfg.Documents.Path = dir
		}
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	limit := int(cmd.Int("max"))
	if limit <= 0 {
		limit = rt.Config.Documents.Max
	}
	report, err := rt.Service.Ingest(ctx, historian.IngestOptions{Max: limit, DryRun: cmd.Bool("dry-run")})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	return printJSON(os.Stdout, report)
}

func stats(ctx context.Context, cmd *cli.Command) error {
	rt, err := bootstrap(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	st, err := rt.Service.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	return printJSON(os.Stdout, st)
}

func renderSVG(ctx context.Context, cmd *cli.Command) error {
	rt, err := bootstrap(ctx, cmd, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	out := io.Writer(os.Stdout)
	if path := cmd.String("out"); path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		defer f.Close()
		out = f
	}

	res, err := internal.RenderSnapshot(ctx, rt.Service, internal.SnapshotRequest{
		Layout: historian.LayoutRequest{
			Limit:    int(cmd.Int("limit")),
			Width:    cmd.Float("width"),
			Height:   cmd.Float("height"),
			Steps:    int(cmd.Int("steps")),
			Selected: cmd.String("selected"),
			Seed:     uint64(cmd.Int("seed")),
		},
		Zoom: cmd.Float("zoom"),
	}, out)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	rt.Logger.Info("rendered",
		slog.Int("nodes", len(res.Nodes)),
		slog.Int("edges", len(res.Edges)),
		slog.Int("steps", res.Steps),
		slog.Float64("alpha", res.Alpha))
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "historian",
		Usage:   "Timeline graph engine for dated Markdown documents",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, change stream and documents watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:   "ingest",
				Usage:  "Parse the documents directory and upsert it into the graph store",
				Action: ingest,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "Documents directory (overrides config)", Sources: cli.EnvVars("HISTORIAN_DOCS_DIR")},
					&cli.IntFlag{Name: "max", Usage: "Newest documents to ingest (default from config)"},
					&cli.BoolFlag{Name: "dry-run", Usage: "Parse only, write nothing"},
				},
			},
			{
				Name:   "stats",
				Usage:  "Print graph store node and edge counts",
				Action: stats,
			},
			{
				Name:   "render",
				Usage:  "Lay out the graph and write an SVG snapshot",
				Action: renderSVG,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Max events"},
					&cli.FloatFlag{Name: "width", Value: historian.DefaultLayoutWidth, Usage: "Canvas width"},
					&cli.FloatFlag{Name: "height", Value: historian.DefaultLayoutHeight, Usage: "Canvas height"},
					&cli.IntFlag{Name: "steps", Value: historian.DefaultLayoutSteps, Usage: "Max simulation frames"},
					&cli.StringFlag{Name: "selected", Usage: "Node id to centre and highlight"},
					&cli.IntFlag{Name: "seed", Value: 1, Usage: "Jitter seed"},
					&cli.FloatFlag{Name: "zoom", Value: 1, Usage: "Scale factor, clamped to [0.2, 6]"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file, - for stdout"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
