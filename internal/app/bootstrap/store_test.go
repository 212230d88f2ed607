package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mkashifaslam/go-api-template/pkg/config"
)

func TestOpenStoreSQLiteWithCache(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	cfg := config.APIConfig{
		DBDriver:     config.DriverSQLite,
		DatabaseURL:  filepath.Join(t.TempDir(), "app.db"),
		StoreTimeout: time.Second,
		CacheAddr:    mr.Addr(),
		CacheTTL:     time.Minute,
	}
	store, err := OpenStore(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	if err := store.Profiles.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if len(store.closers) != 2 {
		t.Fatalf("expected sqlite and cache closers, got %d", len(store.closers))
	}
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.APIConfig{DBDriver: "oracle"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
