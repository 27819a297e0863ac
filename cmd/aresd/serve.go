package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/neikan-bsn/ares/internal/httpapi"
	aresapi "github.com/neikan-bsn/ares/pkg/ares"
	"github.com/neikan-bsn/ares/pkg/config"
	"github.com/neikan-bsn/ares/pkg/observability"
	"github.com/neikan-bsn/ares/pkg/store"
)

// ServeCmd starts the ARES daemon: it opens the configured store, wires
// pkg/ares.Service, and serves the Core API over HTTP until signaled.
type ServeCmd struct {
	Config string `short:"c" help:"Path to config file." type:"path"`
}

func (c *ServeCmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("aresd: loading config: %w", err)
	}

	db, err := sql.Open(driverNameFor(cfg.DatabaseDialect), cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("aresd: opening database: %w", err)
	}
	defer db.Close()

	st, err := store.NewSQLStore(db, cfg.DatabaseDialect, slog.Default())
	if err != nil {
		return fmt.Errorf("aresd: initializing store: %w", err)
	}

	obs, err := observability.NewManager(ctx, &cfg.Observability)
	if err != nil {
		return fmt.Errorf("aresd: initializing observability: %w", err)
	}

	registry := defaultRegistry(slog.Default())

	svc, err := aresapi.New(ctx, st, cfg, registry, obs, slog.Default())
	if err != nil {
		return fmt.Errorf("aresd: wiring core service: %w", err)
	}

	edge, err := httpapi.New(svc, cfg.JWTPublicKeyPath, slog.Default())
	if err != nil {
		return fmt.Errorf("aresd: wiring http edge: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           edge.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("aresd: listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("aresd: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("aresd: server failed: %w", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		cfg.SetDefaults()
		return cfg, cfg.Validate()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func driverNameFor(dialect string) string {
	switch dialect {
	case "postgres":
		return "postgres"
	case "mysql":
		return "mysql"
	default:
		return "sqlite3"
	}
}
