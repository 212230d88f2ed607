package profile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkashifaslam/go-api-template/internal/domain"
	"github.com/mkashifaslam/go-api-template/internal/repository"
)

func TestUpdateRequiresFields(t *testing.T) {
	svc := New(&repoStub{}, hasherStub{}, discardLogger())
	_, err := svc.Update(context.Background(), "p-1", UpdateInput{})
	assert.ErrorIs(t, err, ErrNoFields)
}

func TestUpdateHashesPassword(t *testing.T) {
	repo := &repoStub{
		updateFunc: func(id string, u domain.ProfileUpdate) (*domain.Profile, error) {
			require.NotNil(t, u.PasswordHash)
			assert.Equal(t, "hashed:newpassword", *u.PasswordHash)
			assert.Nil(t, u.Email)
			return &domain.Profile{ID: id}, nil
		},
	}
	svc := New(repo, hasherStub{}, discardLogger())
	password := "newpassword"
	p, err := svc.Update(context.Background(), "p-1", UpdateInput{Password: &password})
	require.NoError(t, err)
	assert.Equal(t, "p-1", p.ID)
}

func TestUpdateRejectsEmailOfAnotherProfile(t *testing.T) {
	repo := &repoStub{
		byEmail: map[string]domain.Profile{"taken@x.com": {ID: "p-2", Email: "taken@x.com"}},
		updateFunc: func(string, domain.ProfileUpdate) (*domain.Profile, error) {
			t.Fatalf("update must not run")
			return nil, nil
		},
	}
	svc := New(repo, hasherStub{}, discardLogger())
	email := "taken@x.com"
	_, err := svc.Update(context.Background(), "p-1", UpdateInput{Email: &email})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUpdateMissingProfileBeforeEmailConflict(t *testing.T) {
	repo := &repoStub{
		byEmail: map[string]domain.Profile{"taken@x.com": {ID: "p-2", Email: "taken@x.com"}},
	}
	svc := New(repo, hasherStub{}, discardLogger())
	email := "taken@x.com"
	_, err := svc.Update(context.Background(), "missing", UpdateInput{Email: &email})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateKeepsOwnEmail(t *testing.T) {
	repo := &repoStub{
		byEmail: map[string]domain.Profile{"me@x.com": {ID: "p-1", Email: "me@x.com"}},
		updateFunc: func(id string, u domain.ProfileUpdate) (*domain.Profile, error) {
			return &domain.Profile{ID: id, Email: *u.Email, UpdatedAt: time.Now()}, nil
		},
	}
	svc := New(repo, hasherStub{}, discardLogger())
	email := "me@x.com"
	p, err := svc.Update(context.Background(), "p-1", UpdateInput{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "me@x.com", p.Email)
}

func TestStoreErrorsAreTranslated(t *testing.T) {
	repo := &repoStub{
		updateFunc: func(string, domain.ProfileUpdate) (*domain.Profile, error) {
			return nil, repository.ErrConflict
		},
	}
	svc := New(repo, hasherStub{}, discardLogger())
	name := "Ann"

	_, err := svc.Update(context.Background(), "p-1", UpdateInput{Name: &name})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	repo.listErr = errors.New("boom")
	_, err = svc.List(context.Background(), 10, 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type hasherStub struct{}

func (hasherStub) Hash(_ context.Context, plain string) (string, error) {
	return "hashed:" + plain, nil
}

type repoStub struct {
	byEmail    map[string]domain.Profile
	updateFunc func(string, domain.ProfileUpdate) (*domain.Profile, error)
	listErr    error
}

func (r *repoStub) CreateProfile(context.Context, *domain.Profile) error { return nil }

func (r *repoStub) GetProfileByID(_ context.Context, id string) (*domain.Profile, error) {
	if id == "missing" {
		return nil, repository.ErrNotFound
	}
	return &domain.Profile{ID: id}, nil
}

func (r *repoStub) GetProfileByEmail(_ context.Context, email string) (*domain.Profile, error) {
	if p, ok := r.byEmail[email]; ok {
		return &p, nil
	}
	return nil, repository.ErrNotFound
}

func (r *repoStub) ListProfiles(context.Context, int, int) ([]domain.Profile, error) {
	return nil, r.listErr
}

func (r *repoStub) UpdateProfile(_ context.Context, id string, u domain.ProfileUpdate) (*domain.Profile, error) {
	if r.updateFunc == nil {
		return nil, repository.ErrNotFound
	}
	return r.updateFunc(id, u)
}

func (r *repoStub) DeleteProfile(context.Context, string) (*domain.Profile, error) {
	return nil, repository.ErrNotFound
}

func (r *repoStub) Ping(context.Context) error { return nil }
