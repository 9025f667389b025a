// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
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

	"github.com/starford/quill/internal/api"
	"github.com/starford/quill/internal/bookservice"
	"github.com/starford/quill/internal/index"
	"github.com/starford/quill/internal/library"
	"github.com/starford/quill/internal/mcpserver"
	"github.com/starford/quill/internal/resolver"
	"github.com/starford/quill/internal/sse"
)

// libraryThrottle spaces library.updated events caused by chapter edits.
const libraryThrottle = 2 * time.Second

// Components are the wired application services. Close releases them.
type Components struct {
	Config  *Config
	Logger  *slog.Logger
	Service *bookservice.Service
	// Broker and Watcher are set only for the HTTP server.
	Broker  *sse.Broker
	Watcher *index.Watcher

	db *index.DB
}

// Close releases the index and event broker.
func (c *Components) Close() error {
	if c.Broker != nil {
		c.Broker.Close()
	}
	return c.db.Close()
}

// Open wires the services for one-shot commands: no events, no watcher.
func Open(opts ...Option) (*Components, error) {
	return build(false, opts)
}

func build(live bool, opts []Option) (*Components, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	libraryPath, err := cfg.LibraryPath()
	if err != nil {
		return nil, err
	}
	indexPath, err := cfg.IndexPath()
	if err != nil {
		return nil, err
	}

	logger.Info("Configuration loaded",
		slog.String("library_path", libraryPath),
		slog.String("sqlite_path", indexPath),
		slog.Bool("watch", cfg.Index.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	res, err := resolver.New(cfg.Resolver.Limits(), logger)
	if err != nil {
		return nil, fmt.Errorf("init resolver: %w", err)
	}

	// The index lives beside the library by default; make sure the folder exists.
	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := index.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	c := &Components{Config: cfg, Logger: logger, db: db}
	svcOpts := bookservice.Options{
		Resolver: res,
		Library:  library.New(libraryPath, logger),
		DB:       db,
		Logger:   logger,
	}
	if live {
		c.Broker = sse.NewBroker(libraryThrottle)
		svcOpts.Events = c.Broker
		if cfg.Index.Watch {
			w, err := index.NewWatcher(db, logger, func(kind, bookPath, chapterID string) {
				c.Broker.PublishChapterEvent(kind, bookPath, chapterID)
			})
			if err != nil {
				_ = c.Close()
				return nil, fmt.Errorf("init watcher: %w", err)
			}
			c.Watcher = w
			svcOpts.Watcher = w
		}
	}
	c.Service = bookservice.New(svcOpts)
	return c, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := build(true, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config
	logger := app.Logger
	svc := app.Service
	broker := app.Broker

	// Run initial sync.
	if err := svc.SyncIndex(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	if err := svc.WatchLibrary(ctx); err != nil {
		logger.Warn("watch library failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher; its callback feeds the SSE broker.
	if app.Watcher != nil {
		g.Go(func() error {
			return app.Watcher.Run(gCtx)
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

		// Close SSE subscribers first so streaming handlers return.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Returning an error stops the watcher goroutine through gCtx.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown ends the errgroup after a clean shutdown.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr unless
// another output is given.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, err := build(false, opts)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Service.SyncIndex(ctx); err != nil {
		app.Logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	app.Logger.Info("Starting MCP server on stdio")
	return mcpserver.New(app.Service).ServeStdio()
}
