// Package bootstrap opens the profile store selected by configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkashifaslam/go-api-template/internal/app/migrate"
	"github.com/mkashifaslam/go-api-template/internal/repository"
	"github.com/mkashifaslam/go-api-template/internal/repository/cache"
	"github.com/mkashifaslam/go-api-template/internal/repository/gormstore"
	"github.com/mkashifaslam/go-api-template/internal/repository/postgres"
	"github.com/mkashifaslam/go-api-template/pkg/config"
)

// Store is an opened profile repository with its cleanup.
type Store struct {
	Profiles repository.ProfileRepository
	closers  []func()
}

// Close releases every resource opened by OpenStore, newest first.
func (s *Store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenStore connects to the configured database, applies migrations and
// layers the optional Redis cache and the per-call timeout on top.
func OpenStore(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (*Store, error) {
	store := &Store{}
	var base repository.ProfileRepository

	switch cfg.DBDriver {
	case config.DriverSQLite:
		gs, err := gormstore.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store.closers = append(store.closers, func() { _ = gs.Close() })
		base = gs
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("configure migrations: %w", err)
		}
		store.closers = append(store.closers, runner.Close)
		if err := runner.Ping(ctx); err != nil {
			store.Close()
			return nil, err
		}
		if err := runner.Ensure(ctx); err != nil {
			store.Close()
			return nil, err
		}
		base = postgres.New(pool)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}

	if addr := strings.TrimSpace(cfg.CacheAddr); addr != "" {
		client, err := cache.NewClient(addr, cfg.CachePassword, cfg.CacheDB)
		if err != nil {
			log.Warn("redis profile cache unavailable", "error", err)
		} else {
			cached := cache.New(base, client, cfg.CacheTTL, log)
			store.closers = append(store.closers, func() { _ = cached.Close() })
			base = cached
			log.Info("redis profile cache enabled", "addr", addr, "ttl", cfg.CacheTTL)
		}
	}

	store.Profiles = repository.WithTimeout(base, cfg.StoreTimeout)
	return store, nil
}
