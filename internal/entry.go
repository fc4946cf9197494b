// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/memex/internal/api"
	"github.com/starford/memex/internal/cache"
	"github.com/starford/memex/internal/embed"
	"github.com/starford/memex/internal/gitsync"
	"github.com/starford/memex/internal/kb"
	"github.com/starford/memex/internal/mcpserver"
	"github.com/starford/memex/internal/search"
	"github.com/starford/memex/internal/sse"
	"github.com/starford/memex/internal/storage"
)

// Memex is a built knowledge index together with the resources it owns.
type Memex struct {
	KB     *kb.KB
	Config *Config

	// Dir is the absolute knowledge directory.
	Dir string

	closers []io.Closer
}

// Close releases the embedding cache, if any.
func (m *Memex) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// MCPServer returns an MCP server exposing m's index.
func (m *Memex) MCPServer(version string) *mcpserver.Server {
	return mcpserver.New(m.KB, version, m.Config.Knowledge.Types, m.Config.Knowledge.RecommendedTags)
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	slog.SetDefault(app.logger)
	return app, nil
}

// Open builds the knowledge index described by the configuration without
// serving it. The caller must Close the result.
func Open(ctx context.Context, opts ...Option) (*Memex, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	return build(ctx, app.config, app.logger)
}

func build(ctx context.Context, cfg *Config, logger *slog.Logger, extra ...kb.Option) (*Memex, error) {
	store, err := storage.NewFS(cfg.Knowledge.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	m := &Memex{
		Config: cfg,
		Dir:    filepath.Join(store.Root(), filepath.FromSlash(cfg.Knowledge.RootDir)),
	}
	kbOpts := []kb.Option{
		kb.WithKnowledgeDir(cfg.Knowledge.RootDir),
		kb.WithLogger(logger),
	}

	if sem := newSemantic(ctx, cfg, logger); sem != nil {
		kbOpts = append(kbOpts, kb.WithSemantic(sem))
		m.closers = append(m.closers, sem)
	}

	if cfg.Sync.AutoPull {
		puller := gitsync.New(store.Root(), cfg.Sync.PullTimeout)
		kbOpts = append(kbOpts, kb.WithPuller(puller, cfg.Sync.PullInterval))
	}

	kbOpts = append(kbOpts, extra...)
	m.KB = kb.New(ctx, store, search.NewPrimary(cfg.Search.Backend), kbOpts...)
	logger.Info("Knowledge index built",
		slog.Int("entries", m.KB.EntryCount()),
		slog.Int("edges", m.KB.EdgeCount()))
	return m, nil
}

// newSemantic returns nil whenever embedding search cannot be set up; the
// index then answers from the lexical backend alone.
func newSemantic(ctx context.Context, cfg *Config, logger *slog.Logger) *search.Semantic {
	if cfg.Search.Backend != search.KindSemantic {
		return nil
	}
	if !cfg.Search.SemanticEnabled() {
		logger.Warn("semantic: no API key configured, using bm25")
		return nil
	}
	sc := cfg.Search.Semantic

	embedder, err := embed.New(ctx, sc.EmbedConfig())
	if err != nil {
		logger.Warn("semantic: init embedder failed, using bm25", slog.String("error", err.Error()))
		return nil
	}

	store, err := cache.Open(sc.CacheFormat, sc.CacheFile(cfg.Knowledge.RepoRoot))
	if err != nil {
		logger.Warn("semantic: open cache failed, using bm25", slog.String("error", err.Error()))
		return nil
	}

	logger.Info("semantic: enabled",
		slog.String("provider", sc.Provider),
		slog.String("model", embedder.ModelName()),
		slog.String("cache", sc.CacheFile(cfg.Knowledge.RepoRoot)))
	return search.NewSemantic(embedder, store,
		search.WithBatchSize(sc.BatchSize),
		search.WithEmbedTimeout(sc.Timeout),
		search.WithSemanticLogger(logger),
	)
}

// ServeStdio builds the index and serves MCP over stdin/stdout until the
// client disconnects.
func ServeStdio(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	m, err := build(ctx, app.config, app.logger)
	if err != nil {
		return err
	}
	defer m.Close()

	return m.MCPServer(app.version).ServeStdio()
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	cfg := app.config
	logger := app.logger

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("repo_root", cfg.Knowledge.RepoRoot),
		slog.String("knowledge_dir", cfg.Knowledge.KnowledgePath()),
		slog.String("search_backend", cfg.Search.Backend),
		slog.Bool("auto_pull", cfg.Sync.AutoPull),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(sse.DefaultRefreshThrottle)
	defer broker.Close()

	m, err := build(ctx, cfg, logger, kb.WithOnChange(func(c kb.Change) {
		broker.PublishChange(sse.Change{
			Created: c.Created,
			Updated: c.Updated,
			Deleted: c.Deleted,
			Entries: c.Entries,
			Edges:   c.Edges,
		})
	}))
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("close resources", slog.String("error", err.Error()))
		}
	}()

	authEnabled := cfg.Auth.AuthEnabled()
	apiRouter := api.NewRouter(m.KB, authEnabled, cfg.Auth.Token)
	mcpHandler := api.AuthMiddleware(authEnabled, cfg.Auth.Token)(m.MCPServer(app.version).Handler())

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","entries":%d}`, m.KB.EntryCount())
	})

	r.Mount("/api", apiRouter)
	r.With(api.AuthMiddleware(authEnabled, cfg.Auth.Token)).Get("/api/events", broker.ServeHTTP)
	r.Handle("/mcp", mcpHandler)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Event streams never go idle on their own.
	httpServer.RegisterOnShutdown(broker.Close)

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	if cfg.Sync.Watch {
		g.Go(func() error {
			if err := m.KB.Watch(gCtx, m.Dir); err != nil {
				logger.Warn("watcher: disabled", slog.String("error", err.Error()))
			}
			return nil
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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		stop()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
