package repository

import (
	"context"

	"github.com/mkashifaslam/go-api-template/internal/domain"
)

// ProfileRepository persists user profiles.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *domain.Profile) error
	GetProfileByID(ctx context.Context, id string) (*domain.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error)
	ListProfiles(ctx context.Context, limit, offset int) ([]domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Profile, error)
	DeleteProfile(ctx context.Context, id string) (*domain.Profile, error)
	Ping(ctx context.Context) error
}
