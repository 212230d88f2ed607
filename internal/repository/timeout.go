package repository

import (
	"context"
	"time"

	"github.com/mkashifaslam/go-api-template/internal/domain"
)

// timeoutRepository bounds every call on the wrapped repository.
type timeoutRepository struct {
	next    ProfileRepository
	timeout time.Duration
}

// WithTimeout wraps next so that no call waits longer than timeout. A
// non-positive timeout returns next unchanged.
func WithTimeout(next ProfileRepository, timeout time.Duration) ProfileRepository {
	if timeout <= 0 {
		return next
	}
	return timeoutRepository{next: next, timeout: timeout}
}

func (r timeoutRepository) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.CreateProfile(ctx, profile)
}

func (r timeoutRepository) GetProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.GetProfileByID(ctx, id)
}

func (r timeoutRepository) GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.GetProfileByEmail(ctx, email)
}

func (r timeoutRepository) ListProfiles(ctx context.Context, limit, offset int) ([]domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.ListProfiles(ctx, limit, offset)
}

func (r timeoutRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.UpdateProfile(ctx, id, update)
}

func (r timeoutRepository) DeleteProfile(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.DeleteProfile(ctx, id)
}

func (r timeoutRepository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.Ping(ctx)
}
