package gormstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkashifaslam/go-api-template/internal/domain"
	"github.com/mkashifaslam/go-api-template/internal/repository"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "profiles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newProfile(id, email string, created time.Time) *domain.Profile {
	return &domain.Profile{
		ID:           id,
		Email:        email,
		Name:         "User " + id,
		PasswordHash: "$2a$10$placeholder",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestStoreCRUD(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateProfile(ctx, newProfile("p-1", "a@x.com", base)))
	require.NoError(t, store.CreateProfile(ctx, newProfile("p-2", "b@x.com", base.Add(time.Minute))))

	got, err := store.GetProfileByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)
	assert.Equal(t, "$2a$10$placeholder", got.PasswordHash)

	got, err = store.GetProfileByEmail(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, "p-2", got.ID)

	page, err := store.ListProfiles(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "p-2", page[0].ID)

	name := "Renamed"
	updated, err := store.UpdateProfile(ctx, "p-1", domain.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.True(t, updated.UpdatedAt.After(base))

	deleted, err := store.DeleteProfile(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", deleted.ID)

	_, err = store.GetProfileByID(ctx, "p-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, store.Ping(ctx))
}

func TestStoreTranslatesErrors(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.CreateProfile(ctx, newProfile("p-1", "a@x.com", now)))
	require.NoError(t, store.CreateProfile(ctx, newProfile("p-2", "b@x.com", now)))

	err := store.CreateProfile(ctx, newProfile("p-3", "a@x.com", now))
	assert.ErrorIs(t, err, repository.ErrConflict)

	email := "a@x.com"
	_, err = store.UpdateProfile(ctx, "p-2", domain.ProfileUpdate{Email: &email})
	assert.ErrorIs(t, err, repository.ErrConflict)

	name := "ghost"
	_, err = store.UpdateProfile(ctx, "missing", domain.ProfileUpdate{Name: &name})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.DeleteProfile(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.UpdateProfile(ctx, "p-1", domain.ProfileUpdate{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, repository.ErrNotFound))
}
