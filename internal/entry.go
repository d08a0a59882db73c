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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/skylabel/internal/api"
	"github.com/starford/skylabel/internal/labeling"
	"github.com/starford/skylabel/internal/lease"
	"github.com/starford/skylabel/internal/pool"
	"github.com/starford/skylabel/internal/sse"
	"github.com/starford/skylabel/internal/store"
)

// App holds the long-lived components shared by every command.
type App struct {
	Service *labeling.Service
	Config  *Config
	Logger  *slog.Logger

	db     *store.DB
	pool   *pool.FS
	leases *lease.Memory
}

// Open builds the logger, pools, database and labeling service from the
// configured options. Callers must Close the returned App.
func Open(ctx context.Context, opts ...Option) (*App, error) {
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

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("unlabeled_dir", cfg.Pool.UnlabeledDir),
		slog.String("labeled_dir", cfg.Pool.LabeledDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Duration("lease_ttl", cfg.Lease.TTL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	for _, dir := range []string{cfg.Pool.UnlabeledDir, cfg.Pool.LabeledDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create pool dir: %w", err)
		}
	}

	images, err := pool.NewFS(cfg.Pool.UnlabeledDir, cfg.Pool.LabeledDir)
	if err != nil {
		return nil, fmt.Errorf("init pool: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	leases := lease.NewMemory(lease.WithTTL(cfg.Lease.TTL))

	svcOpts := []labeling.Option{labeling.WithLogger(logger)}
	if app.notifier != nil {
		svcOpts = append(svcOpts, labeling.WithNotifier(app.notifier))
	}
	svc := labeling.NewService(db, images, leases, svcOpts...)

	if dir := cfg.Reference.DataDir; dir != "" {
		loaded, err := svc.LoadPresets(ctx, dir)
		if err != nil {
			logger.Warn("reference presets not loaded", slog.String("dir", dir), slog.String("error", err.Error()))
		} else {
			for kind, n := range loaded {
				logger.Info("reference presets loaded", slog.String("kind", string(kind)), slog.Int("inserted", n))
			}
		}
	}

	return &App{
		Service: svc,
		Config:  cfg,
		Logger:  logger,
		db:      db,
		pool:    images,
		leases:  leases,
	}, nil
}

// Close releases the database.
func (a *App) Close() error {
	return a.db.Close()
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	probe := &application{}
	for _, opt := range opts {
		opt(probe)
	}
	if probe.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := probe.config

	// SSE broker.
	broker := sse.NewBroker(cfg.App.EventThrottle)
	defer broker.Close()

	a, err := Open(ctx, append(opts, withNotifier(broker))...)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.Logger

	// A crash between moving a file and recording it leaves an orphan.
	orphans, err := a.Service.AuditOrphans(ctx)
	if err != nil {
		logger.Warn("orphan audit failed", slog.String("error", err.Error()))
	} else if len(orphans) > 0 {
		logger.Warn("labeled files without annotation rows; recover manually",
			slog.Int("count", len(orphans)))
	}

	apiRouter := api.NewRouter(a.Service, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints.
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := a.db.Ping(req.Context()); err != nil {
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

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Registered before the server starts so an early signal is not lost.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	// Watch the unlabeled pool so clients refresh when images arrive.
	g.Go(func() error {
		if err := pool.Watch(gCtx, a.pool.UnlabeledDir(), logger, broker.PublishPoolEvent); err != nil {
			logger.Warn("pool watcher unavailable", slog.String("error", err.Error()))
		}
		return nil
	})

	// Reclaim memory held by expired leases.
	g.Go(func() error {
		lease.Reap(gCtx, a.leases, cfg.Lease.ReapInterval, logger)
		return nil
	})

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
		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Close SSE streams first; Shutdown waits for active handlers.
		broker.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the watcher and reaper.
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
