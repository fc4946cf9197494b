package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/memex/internal"
	"github.com/starford/memex/internal/kb"
	"github.com/starford/memex/internal/render"
	pkgconfig "github.com/starford/memex/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
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

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// stdout carries the protocol.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	return internal.ServeStdio(ctx,
		internal.WithConfig(cfg),
		internal.WithVersion(version),
		internal.WithLogger(logger),
	)
}

// withIndex opens the index for a one-shot query command: no auto-pull, no
// watcher, warnings only on stderr.
func withIndex(fn func(ctx context.Context, cmd *cli.Command, m *internal.Memex) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Sync.AutoPull = false
		cfg.Sync.Watch = false

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		m, err := internal.Open(ctx, internal.WithConfig(cfg), internal.WithLogger(logger))
		if err != nil {
			return err
		}
		defer m.Close()

		return fn(ctx, cmd, m)
	}
}

func searchCmd(ctx context.Context, cmd *cli.Command, m *internal.Memex) error {
	query := cmd.Args().First()
	if query == "" {
		return cli.Exit("usage: memex search <query>", 2)
	}
	results, err := m.KB.Search(ctx, query, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	fmt.Println(render.SearchResults(results, true))
	return nil
}

func listCmd(ctx context.Context, cmd *cli.Command, m *internal.Memex) error {
	entries := m.KB.ListEntries(ctx, kb.ListFilter{
		Type: cmd.String("type"),
		Tag:  cmd.String("tag"),
	})
	fmt.Println(render.Entries(entries, m.KB.BacklinkCount))
	return nil
}

func readCmd(ctx context.Context, cmd *cli.Command, m *internal.Memex) error {
	path := cmd.Args().First()
	if path == "" {
		return cli.Exit("usage: memex read <path>", 2)
	}
	e, ok := m.KB.ReadEntry(ctx, path)
	if !ok {
		return cli.Exit(render.NotFound(path), 1)
	}
	fmt.Println(render.Entry(e, m.KB.Backlinks(e.Path)))
	return nil
}

func statsCmd(_ context.Context, _ *cli.Command, m *internal.Memex) error {
	fmt.Println(render.Stats(m.KB.Stats()))
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:    "memex",
		Usage:   "Knowledge index over a git repository of Markdown entries, served over REST, MCP and the command line",
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
				Usage:  "Serve the REST API and MCP over HTTP",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP over stdio",
				Action: serveMCP,
			},
			{
				Name:      "search",
				Usage:     "Search entries",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "Maximum number of results"},
				},
				Action: withIndex(searchCmd),
			},
			{
				Name:  "list",
				Usage: "List entries, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "Only entries of this type"},
					&cli.StringFlag{Name: "tag", Usage: "Only entries carrying this tag"},
				},
				Action: withIndex(listCmd),
			},
			{
				Name:      "read",
				Usage:     "Print an entry with its backlinks",
				ArgsUsage: "<path>",
				Action:    withIndex(readCmd),
			},
			{
				Name:   "stats",
				Usage:  "Print entry, edge, type and tag counts",
				Action: withIndex(statsCmd),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
