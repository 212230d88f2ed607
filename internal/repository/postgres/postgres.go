package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkashifaslam/go-api-template/internal/domain"
	"github.com/mkashifaslam/go-api-template/internal/repository"
)

const uniqueViolation = "23505"

const profileColumns = `id, email, name, hashed_password, created_at, updated_at`

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ repository.ProfileRepository = (*Repository)(nil)

// CreateProfile inserts a profile.
func (r *Repository) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	const query = `INSERT INTO user_profiles (id, email, name, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, profile.ID, profile.Email, profile.Name, profile.PasswordHash, profile.CreatedAt, profile.UpdatedAt)
	return translate(err)
}

// GetProfileByID retrieves a profile by identifier.
func (r *Repository) GetProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE id = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, id))
}

// GetProfileByEmail fetches a profile by email.
func (r *Repository) GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE email = $1`
	return scanProfile(r.pool.QueryRow(ctx, query, email))
}

// ListProfiles returns a page of profiles ordered by creation time.
func (r *Repository) ListProfiles(ctx context.Context, limit, offset int) ([]domain.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles ORDER BY created_at, id LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]domain.Profile, 0)
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// UpdateProfile applies the non-nil fields of update and returns the stored row.
func (r *Repository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Profile, error) {
	if update.Empty() {
		return nil, fmt.Errorf("update profile %s: no columns to update", id)
	}
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Email != nil {
		add("email", *update.Email)
	}
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.PasswordHash != nil {
		add("hashed_password", *update.PasswordHash)
	}
	add("updated_at", time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE user_profiles SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), profileColumns)
	return scanProfile(r.pool.QueryRow(ctx, query, args...))
}

// DeleteProfile removes a profile and returns the deleted row.
func (r *Repository) DeleteProfile(ctx context.Context, id string) (*domain.Profile, error) {
	query := `DELETE FROM user_profiles WHERE id = $1 RETURNING ` + profileColumns
	return scanProfile(r.pool.QueryRow(ctx, query, id))
}

// Ping checks connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.ConstraintName)
	}
	return err
}
