package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAPIConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_TIMEOUT_SECONDS", "7")

	cfg := LoadAPIConfig()
	if cfg.Addr != ":4000" || cfg.Prefix != "/api/v1" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.BcryptCost != 10 {
		t.Fatalf("expected bcrypt cost 10, got %d", cfg.BcryptCost)
	}
	if cfg.StoreTimeout != 7*time.Second {
		t.Fatalf("unexpected store timeout: %s", cfg.StoreTimeout)
	}
	if cfg.Production() {
		t.Fatalf("expected development mode by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRequiresSecret(t *testing.T) {
	cfg := APIConfig{DBDriver: DriverPostgres}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingJWTSecret) {
		t.Fatalf("expected ErrMissingJWTSecret, got %v", err)
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := APIConfig{JWTSecret: "x", DBDriver: "oracle"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected driver validation error")
	}
}

func TestProductionFlag(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	if !LoadAPIConfig().Production() {
		t.Fatalf("expected production mode")
	}
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DOTENV_TEST_A=from-file\nDOTENV_TEST_B=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("DOTENV_TEST_A", "from-env")
	os.Unsetenv("DOTENV_TEST_B")
	t.Cleanup(func() { os.Unsetenv("DOTENV_TEST_B") })

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("DOTENV_TEST_A"); got != "from-env" {
		t.Fatalf("expected environment to win, got %q", got)
	}
	if got := os.Getenv("DOTENV_TEST_B"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
}
