package cache

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/mkashifaslam/go-api-template/internal/domain"
	"github.com/mkashifaslam/go-api-template/internal/repository"
)

func TestReadThroughAndEviction(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewClient(mr.Addr(), "", 0)
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	backing := &countingRepo{profile: domain.Profile{
		ID:           "p-1",
		Email:        "a@x.com",
		Name:         "Ann",
		PasswordHash: "$2a$10$hash",
		CreatedAt:    time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC),
	}}
	repo := New(backing, client, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	first, err := repo.GetProfileByID(ctx, "p-1")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	second, err := repo.GetProfileByID(ctx, "p-1")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if backing.gets != 1 {
		t.Fatalf("expected one backing read, got %d", backing.gets)
	}
	if first.ID != second.ID || first.Email != second.Email || !first.CreatedAt.Equal(second.CreatedAt) {
		t.Fatalf("cached profile differs: %+v vs %+v", first, second)
	}
	if second.PasswordHash != "" {
		t.Fatalf("expected cached profile without password hash, got %q", second.PasswordHash)
	}
	raw, err := mr.Get(keyPrefix + "p-1")
	if err != nil {
		t.Fatalf("expected cache key to be written: %v", err)
	}
	if strings.Contains(raw, "$2a$") {
		t.Fatalf("password hash leaked into cache entry: %s", raw)
	}
	if ttl := mr.TTL(keyPrefix + "p-1"); ttl != time.Minute {
		t.Fatalf("unexpected ttl: %s", ttl)
	}

	name := "Bob"
	if _, err := repo.UpdateProfile(ctx, "p-1", domain.ProfileUpdate{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mr.Exists(keyPrefix + "p-1") {
		t.Fatalf("expected cache key evicted after update")
	}
	updated, err := repo.GetProfileByID(ctx, "p-1")
	if err != nil || updated.Name != "Bob" {
		t.Fatalf("expected fresh profile, got %+v err=%v", updated, err)
	}
	if backing.gets != 2 {
		t.Fatalf("expected backing read after eviction, got %d", backing.gets)
	}

	if _, err := repo.DeleteProfile(ctx, "p-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetProfileByID(ctx, "p-1"); err != repository.ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestWriteDuringMissIsNotCachedStale(t *testing.T) {
	cases := map[string]func(context.Context, *Repository) error{
		"delete": func(ctx context.Context, repo *Repository) error {
			_, err := repo.DeleteProfile(ctx, "p-1")
			return err
		},
		"update": func(ctx context.Context, repo *Repository) error {
			name := "Bob"
			_, err := repo.UpdateProfile(ctx, "p-1", domain.ProfileUpdate{Name: &name})
			return err
		},
	}
	for name, write := range cases {
		t.Run(name, func(t *testing.T) {
			mr, err := miniredis.Run()
			if err != nil {
				t.Fatalf("start miniredis: %v", err)
			}
			defer mr.Close()
			client, err := NewClient(mr.Addr(), "", 0)
			if err != nil {
				t.Fatalf("NewClient error: %v", err)
			}

			read := make(chan struct{})
			release := make(chan struct{})
			backing := &countingRepo{
				profile: domain.Profile{ID: "p-1", Email: "a@x.com", Name: "Ann"},
				afterRead: func() {
					close(read)
					<-release
				},
			}
			repo := New(backing, client, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
			t.Cleanup(func() { _ = repo.Close() })
			ctx := context.Background()

			done := make(chan error, 1)
			go func() {
				_, err := repo.GetProfileByID(ctx, "p-1")
				done <- err
			}()
			<-read
			backing.afterRead = nil
			if err := write(ctx, repo); err != nil {
				t.Fatalf("write: %v", err)
			}
			close(release)
			if err := <-done; err != nil {
				t.Fatalf("slow read: %v", err)
			}

			if mr.Exists(keyPrefix + "p-1") {
				t.Fatalf("row read before the %s was cached", name)
			}
			p, err := repo.GetProfileByID(ctx, "p-1")
			switch name {
			case "delete":
				if err != repository.ErrNotFound {
					t.Fatalf("expected ErrNotFound after delete, got %+v err=%v", p, err)
				}
			case "update":
				if err != nil || p.Name != "Bob" {
					t.Fatalf("expected updated profile, got %+v err=%v", p, err)
				}
			}
		})
	}
}

func TestRedisOutageFallsThrough(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	backing := &countingRepo{profile: domain.Profile{ID: "p-1", Email: "a@x.com"}}
	repo := New(backing, client, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))

	p, err := repo.GetProfileByID(context.Background(), "p-1")
	if err != nil || p.ID != "p-1" {
		t.Fatalf("expected backing result, got %+v err=%v", p, err)
	}
}

type countingRepo struct {
	repository.ProfileRepository
	profile   domain.Profile
	deleted   bool
	gets      int
	afterRead func()
}

func (c *countingRepo) GetProfileByID(_ context.Context, id string) (*domain.Profile, error) {
	c.gets++
	if c.deleted || id != c.profile.ID {
		return nil, repository.ErrNotFound
	}
	p := c.profile
	if hook := c.afterRead; hook != nil {
		hook()
	}
	return &p, nil
}

func (c *countingRepo) UpdateProfile(_ context.Context, id string, u domain.ProfileUpdate) (*domain.Profile, error) {
	if u.Name != nil {
		c.profile.Name = *u.Name
	}
	p := c.profile
	return &p, nil
}

func (c *countingRepo) DeleteProfile(_ context.Context, id string) (*domain.Profile, error) {
	c.deleted = true
	p := c.profile
	return &p, nil
}
