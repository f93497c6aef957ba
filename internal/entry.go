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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/daylog/internal/api"
	"github.com/starford/daylog/internal/index"
	"github.com/starford/daylog/internal/mcpserver"
	"github.com/starford/daylog/internal/notebook"
	"github.com/starford/daylog/internal/sse"
	"github.com/starford/daylog/internal/vcs"
)

var errConfigRequired = errors.New("config is required")

// NewLogger builds the JSON logger for cfg. Output goes to out and, when
// cfg.LogFile is set, to a rotating file as well. The returned func closes
// the file.
func NewLogger(cfg ApplicationConfig, out io.Writer) (*slog.Logger, func()) {
	closeFn := func() {}
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(out, rotator)
		closeFn = func() { _ = rotator.Close() }
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	return logger, closeFn
}

// OpenNotebook opens the repository and day index named by cfg, prepares the
// repository and returns the service over them. The returned func closes the
// index.
func OpenNotebook(ctx context.Context, cfg *Config, logger *slog.Logger, pub notebook.Publisher) (*notebook.Service, func(), error) {
	if err := os.MkdirAll(cfg.Repository.LocalPath, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create repository dir: %w", err)
	}
	store, err := vcs.Open(cfg.Repository, vcs.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("open repository: %w", err)
	}

	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init index: %w", err)
	}

	svc := notebook.New(store,
		notebook.WithIndex(db),
		notebook.WithPublisher(pub),
		notebook.WithLogger(logger),
	)
	if err := svc.Initialize(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("initialize repository: %w", err)
	}
	return svc, func() { db.Close() }, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		var closeLog func()
		logger, closeLog = NewLogger(cfg.App, os.Stdout)
		defer closeLog()
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("repository_path", cfg.Repository.LocalPath),
		slog.Bool("remote", cfg.Repository.HasRemote()),
		slog.String("transport", cfg.Repository.Transport),
		slog.String("index_path", cfg.Index.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc, closeNotebook, err := OpenNotebook(ctx, cfg, logger, broker)
	if err != nil {
		return err
	}
	defer closeNotebook()

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
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := svc.Store().State(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
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

	// Keep the index in step with edits made outside the service.
	g.Go(func() error {
		if err := svc.Watch(gCtx); err != nil {
			logger.Warn("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	if cfg.Sync.Auto {
		g.Go(func() error {
			return svc.AutoSync(gCtx, notebook.AutoSyncConfig{
				StartupDelay: cfg.Sync.StartupDelay,
				Interval:     cfg.Sync.Interval,
			})
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

		if cfg.Sync.OnShutdown {
			syncCtx, cancelSync := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancelSync()
			if res := svc.BestEffortSync(syncCtx); res.Err != nil {
				logger.Debug("shutdown sync failed", slog.String("error", res.Error))
			}
		}

		// Unblock the watcher and auto-sync loop on a signal-initiated stop.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.logger
	if logger == nil {
		var closeLog func()
		logger, closeLog = NewLogger(app.config.App, os.Stderr)
		defer closeLog()
	}
	slog.SetDefault(logger)

	svc, closeNotebook, err := OpenNotebook(ctx, app.config, logger, nil)
	if err != nil {
		return err
	}
	defer closeNotebook()

	logger.Info("Starting MCP server on stdio", slog.String("repository_path", app.config.Repository.LocalPath))
	return mcpserver.New(svc, app.version).ServeStdio()
}
