package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Aincrad-Flux/TWIN/internal/config"
	"github.com/Aincrad-Flux/TWIN/internal/database"
	"github.com/Aincrad-Flux/TWIN/internal/logger"
	"github.com/Aincrad-Flux/TWIN/internal/observability"
	"github.com/Aincrad-Flux/TWIN/internal/server"
	"github.com/Aincrad-Flux/TWIN/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "twin: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{Level: cfg.Logs.Level, Format: cfg.Logs.Format, Dir: cfg.Logs.Dir})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Close()

	nrApp, err := observability.NewApplication(cfg.Observability)
	if err != nil {
		log.Warn().Err(err).Msg("new relic disabled")
	}
	defer observability.Shutdown(nrApp)

	var pool *pgxpool.Pool
	if cfg.Database.Enabled() {
		if cfg.Database.RunMigration {
			if err := database.RunMigrations(ctx, cfg.Database.URL, log.Component("migrations")); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
		}
		pool, err = database.NewPool(ctx, cfg.Database, nrApp != nil, log.Component("database"))
		if err != nil {
			return fmt.Errorf("database pool: %w", err)
		}
		defer pool.Close()
	}

	o3, err := storage.NewO3Client(cfg.Storage.O3)
	if err != nil {
		return fmt.Errorf("o3 client: %w", err)
	}
	if o3 != nil {
		if err := o3.EnsureBucket(ctx); err != nil {
			log.Warn().Err(err).Str("bucket", cfg.Storage.O3.Bucket).Msg("o3 bucket not ready, archiving may fail")
		}
	}

	log.Info().
		Str("env", cfg.Primary.Env).
		Str("logs_dir", cfg.Logs.Dir).
		Bool("signature_validation", cfg.Jira.ValidateSignature).
		Bool("secret_configured", cfg.Jira.WebhookSecret != "").
		Bool("admin_key_configured", cfg.Admin.APIKey != "").
		Msg("starting T.W.I.N")

	srv := server.New(cfg, log.Logger, server.Deps{Pool: pool, O3: o3, NewRelic: nrApp})
	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("server exited")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
