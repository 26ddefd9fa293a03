package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/smartcart/internal/backup"
	"github.com/dukerupert/smartcart/internal/config"
	"github.com/dukerupert/smartcart/internal/logging"
	"github.com/dukerupert/smartcart/internal/server"
	"github.com/dukerupert/smartcart/internal/shopping"
	"github.com/dukerupert/smartcart/internal/store"
	"github.com/dukerupert/smartcart/internal/store/memory"
	"github.com/dukerupert/smartcart/internal/store/sqlite"
)

type serveOptions struct {
	addr   string
	store  string
	dbPath string
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			if opts.addr != "" {
				cfg.Addr = opts.addr
			}
			switch opts.store {
			case "":
			case config.StoreSQLite, config.StoreMemory:
				cfg.Store = opts.store
			default:
				return fmt.Errorf("unknown store %q", opts.store)
			}
			if opts.dbPath != "" {
				cfg.DBPath = opts.dbPath
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.store, "store", "", "store backend: sqlite or memory")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database path")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.Auth.SecretGenerated {
		logger.Warn("no JWT secret configured; using a random one, tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	tracker, closeTracker, err := openTracker(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTracker()

	srv := server.New(st, tracker, server.Config{
		JWTSecret:      cfg.Auth.JWTSecret,
		AccessTTL:      cfg.Auth.AccessTTL,
		RefreshTTL:     cfg.Auth.RefreshTTL,
		CORSOrigins:    cfg.CORSOrigins,
		AuthRateLimit:  cfg.Auth.RateLimit,
		AuthRateWindow: cfg.Auth.RateWindow,
		Push:           cfg.Push,
		Email:          cfg.Email,
	}, logger)
	go srv.RunCleanup(ctx)
	startBackups(ctx, cfg, st, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("smartcart listening", "addr", cfg.Addr, "store", cfg.Store, "push", cfg.Push.Enabled())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store == config.StoreMemory {
		return memory.New(), nil
	}
	st, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// startBackups schedules snapshots when object storage is configured and the
// store is SQLite.
func startBackups(ctx context.Context, cfg *config.Config, st store.Store, logger *slog.Logger) {
	sq, ok := st.(*sqlite.Store)
	if !ok || !cfg.Backup.Enabled() || cfg.Backup.Interval <= 0 {
		return
	}
	mgr, err := backup.NewManager(cfg.Backup, logger.With("component", "backup"))
	if err != nil {
		logger.Error("backups disabled", "error", err)
		return
	}
	logger.Info("scheduled backups enabled", "interval", cfg.Backup.Interval, "retention", cfg.Backup.Retention)
	go mgr.RunEvery(ctx, sq.DB(), cfg.Backup.Interval, cfg.Backup.Retention)
}

func openTracker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (shopping.Tracker, func(), error) {
	if cfg.Redis.Addr == "" {
		return shopping.NewMemoryTracker(), func() {}, nil
	}
	client, err := shopping.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("shopping sessions stored in redis", "addr", cfg.Redis.Addr)
	return shopping.NewRedisTracker(client, cfg.Redis.Prefix), func() { client.Close() }, nil
}
