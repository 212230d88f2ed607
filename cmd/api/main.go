package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mkashifaslam/go-api-template/internal/app/bootstrap"
	httpx "github.com/mkashifaslam/go-api-template/internal/http"
	"github.com/mkashifaslam/go-api-template/internal/service/auth"
	"github.com/mkashifaslam/go-api-template/internal/service/profile"
	"github.com/mkashifaslam/go-api-template/internal/session"
	"github.com/mkashifaslam/go-api-template/internal/validate"
	"github.com/mkashifaslam/go-api-template/pkg/config"
	"github.com/mkashifaslam/go-api-template/pkg/crypto"
	jwtpkg "github.com/mkashifaslam/go-api-template/pkg/jwt"
	"github.com/mkashifaslam/go-api-template/pkg/logger"
)

func main() {
	dotenvErr := config.LoadDotEnv()
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))
	if dotenvErr != nil {
		log.Warn("failed to load .env file", "error", dotenvErr)
	}

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	issuer, err := jwtpkg.NewIssuer(cfg.JWTSecret)
	if err != nil {
		log.Error("failed to configure token issuer", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open profile store", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	hasher := crypto.NewHasher(cfg.BcryptCost, cfg.HashWorkers)
	authSvc := auth.New(store.Profiles, issuer, hasher, log)
	profileSvc := profile.New(store.Profiles, hasher, log)
	cookies := session.New(cfg.Production(), issuer.TTL())

	router := httpx.NewRouter(log, cfg.Prefix, authSvc, profileSvc, validate.New(), cookies, store.Profiles.Ping)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "prefix", cfg.Prefix, "env", cfg.Environment, "driver", cfg.DBDriver)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			store.Close()
			os.Exit(1)
		}
	}
}
