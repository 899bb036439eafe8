package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/screwyprof/airdrop/airdrop"
	"github.com/screwyprof/airdrop/migrator"
	"github.com/screwyprof/airdrop/migrator/config"
	"github.com/screwyprof/airdrop/pkg/clock"
	"github.com/screwyprof/airdrop/pkg/logger"
	"github.com/screwyprof/airdrop/pkg/pgxdb"
)

// These values are overridden at build time using -ldflags
var (
	version = "dev"
	date    = "unknown"
)

func main() {
	// Load configuration from environment
	cfg := config.New()

	// Initialize logger and set as default
	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
	})
	slog.SetDefault(log)

	log.Info("Starting database migrator service",
		slog.String("migrationsDir", cfg.MigrationsDir),
		slog.Bool("initialConfig", cfg.HasInitialConfig()),
		slog.String("version", version),
		slog.String("date", date),
	)

	// Create a context that cancels on SIGINT/SIGTERM _or_ when the timeout elapses
	baseCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(baseCtx, cfg.OperationTimeout)
	defer cancel()

	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	log.Info("Applying database migrations")
	if err := migrator.ApplyMigrations(db, cfg.MigrationsDir); err != nil {
		log.Error("Failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("Database migrations applied successfully")

	if cfg.HasInitialConfig() {
		initial := airdrop.Config{
			Administrator:       cfg.Administrator,
			Token:               cfg.Token,
			ExpirationTimestamp: cfg.ExpirationTimestamp,
			MerkleRoot:          cfg.MerkleRoot,
		}
		if initial.ExpirationTimestamp == 0 {
			initial.ExpirationTimestamp = clock.UnixAfter(clock.SystemClock{}, cfg.ExpiresIn)
		}

		log.Info("Initializing distribution config",
			slog.String("administrator", initial.Administrator.Hex()),
			slog.String("root", initial.MerkleRoot.Hex()),
		)
		if err := migrator.InitializeConfig(ctx, db, initial); err != nil {
			log.Error("Failed to initialize distribution config", slog.Any("error", err))
			os.Exit(1)
		}
		log.Info("Distribution config initialized successfully")
	}

	log.Info("Database migrator completed successfully")
}
