// Package seed inserts demo profiles for local development.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mkashifaslam/go-api-template/internal/domain"
	"github.com/mkashifaslam/go-api-template/internal/repository"
)

// Account is a demo profile with its plaintext password.
type Account struct {
	Email    string
	Name     string
	Password string
}

// DefaultAccounts are created by `migrate -command seed`.
var DefaultAccounts = []Account{
	{Email: "alice@example.com", Name: "Alice Example", Password: "password123"},
	{Email: "bob@example.com", Name: "Bob Example", Password: "password123"},
	{Email: "carol@example.com", Name: "Carol Example", Password: "password123"},
}

// Hasher hashes seed passwords.
type Hasher interface {
	Hash(ctx context.Context, plain string) (string, error)
}

// Run creates every account that does not exist yet and reports how many
// were inserted. Existing emails are skipped, so Run can be repeated.
func Run(ctx context.Context, profiles repository.ProfileRepository, hasher Hasher, accounts []Account, log *slog.Logger) (int, error) {
	if log == nil {
		log = slog.Default()
	}
	created := 0
	for _, acc := range accounts {
		_, err := profiles.GetProfileByEmail(ctx, acc.Email)
		if err == nil {
			log.Info("seed profile exists", "email", acc.Email)
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return created, fmt.Errorf("lookup %s: %w", acc.Email, err)
		}
		hash, err := hasher.Hash(ctx, acc.Password)
		if err != nil {
			return created, fmt.Errorf("hash password for %s: %w", acc.Email, err)
		}
		now := time.Now().UTC()
		p := &domain.Profile{
			ID:           uuid.NewString(),
			Email:        acc.Email,
			Name:         acc.Name,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := profiles.CreateProfile(ctx, p); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				continue
			}
			return created, fmt.Errorf("create %s: %w", acc.Email, err)
		}
		created++
		log.Info("seed profile created", "email", acc.Email, "profile_id", p.ID)
	}
	return created, nil
}
