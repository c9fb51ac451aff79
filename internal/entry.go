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

	"github.com/starford/memolog/internal/api"
	"github.com/starford/memolog/internal/index"
	"github.com/starford/memolog/internal/mcpserver"
	"github.com/starford/memolog/internal/memostore"
	"github.com/starford/memolog/internal/metrics"
	"github.com/starford/memolog/internal/reminder"
	"github.com/starford/memolog/internal/sse"
	"github.com/starford/memolog/internal/storage"
	"github.com/starford/memolog/internal/tracker"
)

// components is the wired application graph shared by the HTTP and MCP modes.
type components struct {
	logger  *slog.Logger
	loc     *time.Location
	store   *storage.FS
	db      *index.DB
	broker  *sse.Broker
	metrics *metrics.Recorder
	memos   *memostore.Service
	tracker *tracker.Service
}

// memoEvents fans memo changes out to SSE subscribers and the write counter.
type memoEvents struct {
	broker  *sse.Broker
	metrics *metrics.Recorder
}

func (m memoEvents) PublishMemoEvent(kind, id string) {
	m.metrics.MemoWritten(kind)
	m.broker.PublishMemoEvent(kind, id)
}

func configure(opts []Option) (*Config, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app.config, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// build opens the vault and index and wires the services on top of them.
// The caller closes c.db and c.broker.
func build(cfg *Config, logger *slog.Logger) (*components, error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	c := &components{
		logger:  logger,
		loc:     loc,
		store:   store,
		db:      db,
		broker:  sse.NewBroker(2 * time.Second),
		metrics: metrics.New(),
	}
	c.memos = memostore.NewService(store, db, logger,
		memostore.WithNotifier(memoEvents{broker: c.broker, metrics: c.metrics}))
	c.tracker = tracker.NewService(c.memos, logger,
		tracker.WithPublisher(c.broker),
		tracker.WithMetrics(c.metrics),
		tracker.WithLocation(loc))
	return c, nil
}

func (c *components) close() {
	c.broker.Close()
	if err := c.db.Close(); err != nil {
		c.logger.Error("close index", slog.String("error", err.Error()))
	}
}

// Run starts the HTTP server, the vault watcher and the reminder job.
func Run(ctx context.Context, opts ...Option) error {
	cfg, err := configure(opts)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("timezone", cfg.App.Timezone),
		slog.Bool("reminder_enabled", cfg.Reminder.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	apiRouter := api.NewRouter(api.Config{
		Memos:       c.memos,
		Tracker:     c.tracker,
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Events:      c.broker,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health and metrics endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"index unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", c.metrics.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// External edits in the vault refresh the corpus and reach SSE clients.
	g.Go(func() error {
		events := memoEvents{broker: c.broker, metrics: c.metrics}
		err := index.Watch(gCtx, c.db, c.store, cfg.Vault.Path, logger, func(kind, id string) {
			c.memos.Cache().Invalidate()
			events.PublishMemoEvent(kind, id)
		})
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	if cfg.Reminder.Enabled {
		rem := reminder.New(c.tracker, c.broker, logger,
			reminder.WithWindow(cfg.Reminder.Window),
			reminder.WithCounter(c.metrics),
			reminder.WithLocation(c.loc))
		g.Go(func() error {
			return rem.Run(gCtx, cfg.Reminder.Spec)
		})
	}

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		// Stops the watcher and the reminder job.
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

// RunMCP serves the MCP tools on stdio. Logs go to stderr since stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	cfg, err := configure(opts)
	if err != nil {
		return err
	}

	logger := newLogger(os.Stderr, cfg.App.LogLevel)

	c, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		err := index.Watch(watchCtx, c.db, c.store, cfg.Vault.Path, logger, func(string, string) {
			c.memos.Cache().Invalidate()
		})
		if err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	logger.Info("Serving MCP on stdio", slog.String("vault_path", cfg.Vault.Path))
	return mcpserver.New(c.memos, c.tracker, nil).ServeStdio()
}
