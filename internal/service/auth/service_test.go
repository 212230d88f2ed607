package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkashifaslam/go-api-template/internal/domain"
	"github.com/mkashifaslam/go-api-template/internal/repository"
	"github.com/mkashifaslam/go-api-template/pkg/crypto"
	jwtpkg "github.com/mkashifaslam/go-api-template/pkg/jwt"
)

func TestRegisterCreatesProfileAndToken(t *testing.T) {
	repo := newProfileRepoStub()
	svc, issuer := newService(t, repo)

	profile, token, err := svc.Register(context.Background(), Registration{Email: "a@x.com", Password: "password123", Name: " Ann "})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if profile.ID == "" || profile.Name != "Ann" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if profile.PasswordHash == "password123" || bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte("password123")) != nil {
		t.Fatalf("password was not hashed")
	}
	identity, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if identity.UserID != profile.ID || identity.Email != "a@x.com" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestRegisterRejectsTakenEmail(t *testing.T) {
	repo := newProfileRepoStub()
	svc, _ := newService(t, repo)
	original, _, err := svc.Register(context.Background(), Registration{Email: "a@x.com", Password: "password123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Register(context.Background(), Registration{Email: "a@x.com", Password: "different1", Name: "Eve"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	stored, _ := repo.GetProfileByEmail(context.Background(), "a@x.com")
	if stored.ID != original.ID || stored.PasswordHash != original.PasswordHash || stored.Name != "" {
		t.Fatalf("original profile modified: %+v", stored)
	}
}

func TestRegisterMapsStoreConflict(t *testing.T) {
	repo := newProfileRepoStub()
	repo.createErr = repository.ErrConflict
	svc, _ := newService(t, repo)
	if _, _, err := svc.Register(context.Background(), Registration{Email: "race@x.com", Password: "password123"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLoginCredentialFailuresAreIndistinguishable(t *testing.T) {
	repo := newProfileRepoStub()
	svc, _ := newService(t, repo)
	if _, _, err := svc.Register(context.Background(), Registration{Email: "a@x.com", Password: "password123"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, wrongPassword := svc.Login(context.Background(), "a@x.com", "password999")
	_, _, unknownEmail := svc.Login(context.Background(), "b@x.com", "password123")
	if !errors.Is(wrongPassword, ErrInvalidCredentials) || !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v and %v", wrongPassword, unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("errors differ: %q vs %q", wrongPassword, unknownEmail)
	}

	profile, token, err := svc.Login(context.Background(), "a@x.com", "password123")
	if err != nil || token == "" || profile.Email != "a@x.com" {
		t.Fatalf("expected successful login, got profile=%+v err=%v", profile, err)
	}
}

func TestLoginPropagatesStoreFailure(t *testing.T) {
	repo := newProfileRepoStub()
	repo.lookupErr = errors.New("connection reset")
	svc, _ := newService(t, repo)
	_, _, err := svc.Login(context.Background(), "a@x.com", "password123")
	if err == nil || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, issuer := newService(t, newProfileRepoStub())

	token, err := issuer.Issue(jwtpkg.Identity{UserID: "u1", Email: "u1@x.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	identity, err := svc.Authenticate(token)
	if err != nil || identity.UserID != "u1" {
		t.Fatalf("expected identity, got %+v err=%v", identity, err)
	}

	past := time.Now().Add(-jwtpkg.TokenTTL - time.Minute)
	oldIssuer, _ := jwtpkg.NewIssuer("test-secret", jwtpkg.WithClock(func() time.Time { return past }))
	expired, _ := oldIssuer.Issue(jwtpkg.Identity{UserID: "u1", Email: "u1@x.com"})
	otherIssuer, _ := jwtpkg.NewIssuer("other-secret")
	forged, _ := otherIssuer.Issue(jwtpkg.Identity{UserID: "u1", Email: "u1@x.com"})

	cases := map[string]string{
		"missing":   "  ",
		"malformed": "not-a-token",
		"expired":   expired,
		"forged":    forged,
	}
	for name, tok := range cases {
		if _, err := svc.Authenticate(tok); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}
	if _, err := svc.Authenticate(expired); !errors.Is(err, jwtpkg.ErrExpired) {
		t.Fatalf("expected cause to be kept, got %v", err)
	}
}

func newService(t *testing.T, repo repository.ProfileRepository) (Service, *jwtpkg.Issuer) {
	t.Helper()
	issuer, err := jwtpkg.NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	return New(repo, issuer, crypto.NewHasher(bcrypt.MinCost, 2), newLogger()), issuer
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type profileRepoStub struct {
	mu        sync.Mutex
	byID      map[string]domain.Profile
	createErr error
	lookupErr error
}

func newProfileRepoStub() *profileRepoStub {
	return &profileRepoStub{byID: make(map[string]domain.Profile)}
}

func (r *profileRepoStub) CreateProfile(_ context.Context, profile *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, p := range r.byID {
		if p.Email == profile.Email {
			return repository.ErrConflict
		}
	}
	r.byID[profile.ID] = *profile
	return nil
}

func (r *profileRepoStub) GetProfileByID(_ context.Context, id string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *profileRepoStub) GetProfileByEmail(_ context.Context, email string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	for _, p := range r.byID {
		if p.Email == email {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *profileRepoStub) ListProfiles(context.Context, int, int) ([]domain.Profile, error) {
	return nil, errors.New("not implemented")
}

func (r *profileRepoStub) UpdateProfile(context.Context, string, domain.ProfileUpdate) (*domain.Profile, error) {
	return nil, errors.New("not implemented")
}

func (r *profileRepoStub) DeleteProfile(context.Context, string) (*domain.Profile, error) {
	return nil, errors.New("not implemented")
}

func (r *profileRepoStub) Ping(context.Context) error { return nil }
