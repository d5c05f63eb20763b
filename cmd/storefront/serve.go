package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/npmart/storefront/internal/config"
	"github.com/npmart/storefront/internal/infra"
	"github.com/npmart/storefront/internal/logging"
	"github.com/npmart/storefront/internal/records"
	"github.com/npmart/storefront/internal/server"
)

func createServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cmd.Context(), cfg, logging.New(cfg.LogLevel), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the records schema before serving")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger, migrate bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Development runs on in-memory adapters unless URLs are provided.
	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		db = pool

		if migrate {
			if err := records.Migrate(ctx, db); err != nil {
				return err
			}
			logger.Info("records schema applied")
		}
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory record store")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		client, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		cache = client
	} else {
		logger.Warn("REDIS_URL not set; preferences and OTP state stay in memory")
	}

	srv, err := server.New(cfg, db, cache, logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server exited cleanly")
	return nil
}
