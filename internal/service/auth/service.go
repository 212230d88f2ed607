package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/mkashifaslam/go-api-template/internal/domain"
	"github.com/mkashifaslam/go-api-template/internal/repository"
	jwtpkg "github.com/mkashifaslam/go-api-template/pkg/jwt"
)

var (
	// ErrUnauthorized covers every reason a session token is not accepted.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned for an unknown email and for a wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when registering an email that is taken.
	ErrUserExists = errors.New("user already exists")
)

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	Issue(jwtpkg.Identity) (string, error)
	Verify(token string) (jwtpkg.Identity, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, hashed string) (bool, error)
}

// Service handles authentication workflows.
type Service struct {
	profiles repository.ProfileRepository
	tokens   TokenIssuer
	hasher   PasswordHasher
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a Service.
func New(profiles repository.ProfileRepository, tokens TokenIssuer, hasher PasswordHasher, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{profiles: profiles, tokens: tokens, hasher: hasher, logger: logger, now: time.Now}
}

// Registration is the input of Register.
type Registration struct {
	Email    string
	Password string
	Name     string
}

// Register creates a profile and returns it with a fresh session token.
func (s Service) Register(ctx context.Context, in Registration) (*domain.Profile, string, error) {
	_, err := s.profiles.GetProfileByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, "", ErrUserExists
	case !errors.Is(err, repository.ErrNotFound):
		return nil, "", fmt.Errorf("lookup profile by email: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, "", err
	}
	now := s.now().UTC()
	profile := &domain.Profile{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, "", ErrUserExists
		}
		return nil, "", fmt.Errorf("create profile: %w", err)
	}
	token, err := s.issue(profile)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user registered", "user_id", profile.ID)
	return profile, token, nil
}

// Login checks credentials and returns the profile with a fresh session token.
func (s Service) Login(ctx context.Context, email, password string) (*domain.Profile, string, error) {
	profile, err := s.profiles.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("lookup profile by email: %w", err)
	}
	ok, err := s.hasher.Verify(ctx, password, profile.PasswordHash)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.issue(profile)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("user logged in", "user_id", profile.ID)
	return profile, token, nil
}

// Authenticate verifies a session token. It never touches the store; any
// failure is reported as ErrUnauthorized wrapping the cause.
func (s Service) Authenticate(token string) (jwtpkg.Identity, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return jwtpkg.Identity{}, fmt.Errorf("%w: session token missing", ErrUnauthorized)
	}
	identity, err := s.tokens.Verify(trimmed)
	if err != nil {
		return jwtpkg.Identity{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return identity, nil
}

func (s Service) issue(profile *domain.Profile) (string, error) {
	token, err := s.tokens.Issue(jwtpkg.Identity{UserID: profile.ID, Email: profile.Email})
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}
	return token, nil
}
