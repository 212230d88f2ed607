package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"github.com/mkashifaslam/go-api-template/internal/domain"
	"github.com/mkashifaslam/go-api-template/internal/repository"
)

var (
	// ErrNotFound is returned when no profile has the requested id.
	ErrNotFound = errors.New("user profile not found")
	// ErrNoFields is returned by Update when the input changes nothing.
	ErrNoFields = errors.New("no valid fields to update")
	// ErrEmailTaken is returned when another profile already uses the email.
	ErrEmailTaken = errors.New("email already in use")
)

// PasswordHasher hashes new passwords before they are stored.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
}

// Service exposes CRUD operations on user profiles.
type Service struct {
	profiles repository.ProfileRepository
	hasher   PasswordHasher
	logger   *slog.Logger
}

// New constructs a Service.
func New(profiles repository.ProfileRepository, hasher PasswordHasher, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{profiles: profiles, hasher: hasher, logger: logger}
}

// UpdateInput lists the fields a caller may change. Nil fields are kept.
type UpdateInput struct {
	Email    *string
	Name     *string
	Password *string
}

// List returns a page of profiles ordered by creation time.
func (s Service) List(ctx context.Context, limit, offset int) ([]domain.Profile, error) {
	profiles, err := s.profiles.ListProfiles(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// Get returns a single profile.
func (s Service) Get(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := s.profiles.GetProfileByID(ctx, id)
	if err != nil {
		return nil, translate("get profile", err)
	}
	return p, nil
}

// Update applies the non-nil fields of in. A new password is hashed first.
func (s Service) Update(ctx context.Context, id string, in UpdateInput) (*domain.Profile, error) {
	update := domain.ProfileUpdate{Email: in.Email}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		update.Name = &name
	}
	if update.Empty() && in.Password == nil {
		return nil, ErrNoFields
	}

	if in.Email != nil {
		// A missing profile is reported as such before any email conflict.
		if _, err := s.profiles.GetProfileByID(ctx, id); err != nil {
			return nil, translate("get profile", err)
		}
		owner, err := s.profiles.GetProfileByEmail(ctx, *in.Email)
		switch {
		case err == nil && owner.ID != id:
			return nil, ErrEmailTaken
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("lookup profile by email: %w", err)
		}
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(ctx, *in.Password)
		if err != nil {
			return nil, err
		}
		update.PasswordHash = &hash
	}

	p, err := s.profiles.UpdateProfile(ctx, id, update)
	if err != nil {
		return nil, translate("update profile", err)
	}
	s.logger.Info("profile updated", "profile_id", id)
	return p, nil
}

// Delete removes a profile and returns it.
func (s Service) Delete(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := s.profiles.DeleteProfile(ctx, id)
	if err != nil {
		return nil, translate("delete profile", err)
	}
	s.logger.Info("profile deleted", "profile_id", id)
	return p, nil
}

func translate(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrEmailTaken
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
