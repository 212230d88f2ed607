// Package cache keeps recently read profiles in Redis in front of another
// ProfileRepository. Redis failures are logged and the call falls through to
// the wrapped repository.
//
// Every id has a generation counter that writes bump. A miss only fills the
// cache if the generation it saw before reading is still current, so a read
// racing an update or delete cannot put the old row back.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/mkashifaslam/go-api-template/internal/domain"
	"github.com/mkashifaslam/go-api-template/internal/repository"
)

const (
	keyPrefix = "profiles:profile:"
	genPrefix = "profiles:gen:"
)

// genTTL bounds how long a generation counter outlives the last write.
const genTTL = 24 * time.Hour

var errStaleFill = errors.New("profile changed during cache fill")

// Repository is a read-through cache for profile lookups by id.
type Repository struct {
	next    repository.ProfileRepository
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	timeout time.Duration
}

var _ repository.ProfileRepository = (*Repository)(nil)

// NewClient connects to Redis and checks the connection.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// New wraps next with a cache stored in client.
func New(next repository.ProfileRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Repository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		next:    next,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		timeout: 250 * time.Millisecond,
	}
}

// entry is the cached form. It leaves out the password hash, so profiles
// served from the cache carry an empty PasswordHash; credential checks read
// by email, which is never cached.
type entry struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Repository) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	return r.next.CreateProfile(ctx, profile)
}

// GetProfileByID serves from Redis when possible and fills it on a miss.
func (r *Repository) GetProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	if p, ok := r.load(ctx, id); ok {
		return p, nil
	}
	gen, genOK := r.generation(ctx, id)
	p, err := r.next.GetProfileByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if genOK {
		r.store(ctx, p, gen)
	}
	return p, nil
}

// GetProfileByEmail is not cached; it backs login and uniqueness checks.
func (r *Repository) GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return r.next.GetProfileByEmail(ctx, email)
}

func (r *Repository) ListProfiles(ctx context.Context, limit, offset int) ([]domain.Profile, error) {
	return r.next.ListProfiles(ctx, limit, offset)
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Profile, error) {
	p, err := r.next.UpdateProfile(ctx, id, update)
	r.evict(ctx, id)
	return p, err
}

func (r *Repository) DeleteProfile(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := r.next.DeleteProfile(ctx, id)
	r.evict(ctx, id)
	return p, err
}

// Ping checks the wrapped store only; the cache is optional.
func (r *Repository) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

// Close releases the Redis connection.
func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) load(ctx context.Context, id string) (*domain.Profile, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	data, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logRedisError("get", err)
		}
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		r.logRedisError("decode", err)
		return nil, false
	}
	return &domain.Profile{
		ID:        e.ID,
		Email:     e.Email,
		Name:      e.Name,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, true
}

// generation returns the current write generation of id. An id that was
// never written has the empty generation.
func (r *Repository) generation(ctx context.Context, id string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	gen, err := r.client.Get(ctx, genPrefix+id).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.logRedisError("get generation", err)
		return "", false
	}
	return gen, true
}

// store caches p unless the generation of its id moved past gen.
func (r *Repository) store(ctx context.Context, p *domain.Profile, gen string) {
	data, err := json.Marshal(entry{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	})
	if err != nil {
		r.logRedisError("encode", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	genKey := genPrefix + p.ID
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, keyPrefix+p.ID, data, r.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil, errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
	default:
		r.logRedisError("set", err)
	}
}

// evict bumps the generation of id and drops its entry.
func (r *Repository) evict(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genPrefix+id)
		pipe.Expire(ctx, genPrefix+id, genTTL)
		pipe.Del(ctx, keyPrefix+id)
		return nil
	})
	if err != nil {
		r.logRedisError("del", err)
	}
}

func (r *Repository) logRedisError(op string, err error) {
	r.logger.Error("redis profile cache error", "op", op, "error", err)
}
