package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talbiyah/progress-engine/internal/curriculum"
	"github.com/talbiyah/progress-engine/internal/platform/cache"
	"github.com/talbiyah/progress-engine/internal/platform/config"
	"github.com/talbiyah/progress-engine/internal/platform/database"
	"github.com/talbiyah/progress-engine/internal/progress"
	"github.com/talbiyah/progress-engine/internal/realtime"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, cleanup, err := buildApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	mux := newMux(app)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// buildApp wires the stores. With a database URL the curriculum and
// ledger live in Postgres; otherwise the curriculum comes from YAML
// seed files and the ledger is in-memory (development mode).
func buildApp(ctx context.Context, cfg *config.Config) (*app, func(), error) {
	hub := realtime.NewHub()
	a := &app{hub: hub}
	cleanup := func() {}

	if cfg.Database.URL != "" {
		db, err := database.Connect(ctx, cfg.Database.URL, database.Options{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		store, err := curriculum.NewPostgresStore(db.Pool)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		ledger, err := progress.NewPostgresLedger(db.Pool)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		a.db = db
		a.store = store
		a.ledger = ledger
		cleanup = db.Close
	} else {
		loader, err := curriculum.NewLoader(cfg.Curriculum.SeedPath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading curriculum seeds: %w", err)
		}
		a.store = loader.Store()
		a.ledger = progress.NewMemoryLedger()
		slog.Info("running on in-memory stores", "seed_path", cfg.Curriculum.SeedPath)
	}

	if cfg.Cache.URL != "" {
		c, err := cache.Connect(ctx, cfg.Cache.URL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connecting to cache: %w", err)
		}
		a.cache = c
		a.hierarchies = curriculum.NewHierarchyCache(c.Client, cfg.Cache.HierarchyTTL)
		prev := cleanup
		cleanup = func() {
			c.Close()
			prev()
		}
	}

	a.workflow = progress.NewWorkflow(a.ledger, hub)
	return a, cleanup, nil
}
