package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkashifaslam/go-api-template/internal/app/bootstrap"
	"github.com/mkashifaslam/go-api-template/internal/app/migrate"
	"github.com/mkashifaslam/go-api-template/internal/app/seed"
	"github.com/mkashifaslam/go-api-template/pkg/config"
	"github.com/mkashifaslam/go-api-template/pkg/crypto"
	"github.com/mkashifaslam/go-api-template/pkg/logger"
)

func main() {
	command := flag.String("command", "up", "migrate command (up|status|version|down|seed)")
	timeout := flag.Duration("timeout", time.Minute, "command timeout")
	target := flag.Int64("target", 0, "target version for down command (optional)")
	flag.Parse()

	_ = config.LoadDotEnv()
	cfg := config.LoadAPIConfig()
	log := logger.New("migrate", logger.ParseLevel(cfg.LogLevel))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *command == "seed" {
		store, err := bootstrap.OpenStore(ctx, cfg, log)
		if err != nil {
			log.Error("failed to open profile store", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		hasher := crypto.NewHasher(cfg.BcryptCost, cfg.HashWorkers)
		created, err := seed.Run(ctx, store.Profiles, hasher, seed.DefaultAccounts, log)
		if err != nil {
			log.Error("failed to seed profiles", "error", err)
			store.Close()
			os.Exit(1)
		}
		log.Info("migration command completed", "command", *command, "created", created)
		return
	}

	if cfg.DBDriver != config.DriverPostgres {
		log.Error("schema migrations only run against postgres; sqlite is migrated by the api on startup", "driver", cfg.DBDriver)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migration runner", "error", err)
		os.Exit(1)
	}
	defer runner.Close()

	switch *command {
	case "up":
		if err := runner.Ensure(ctx); err != nil {
			log.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	case "status":
		if err := runner.Status(ctx); err != nil {
			log.Error("failed to fetch migration status", "error", err)
			os.Exit(1)
		}
	case "version":
		version, err := runner.Version(ctx)
		if err != nil {
			log.Error("failed to read schema version", "error", err)
			os.Exit(1)
		}
		log.Info("schema version", "version", version)
	case "down":
		if err := runner.Down(ctx, *target); err != nil {
			log.Error("failed to roll back migrations", "error", err)
			os.Exit(1)
		}
	default:
		log.Error("unsupported command", "command", *command)
		os.Exit(1)
	}

	log.Info("migration command completed", "command", *command)
}
