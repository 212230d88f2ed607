// Package gormstore keeps user profiles in SQLite through GORM. It backs
// local development (DB_DRIVER=sqlite) where no Postgres server is running.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mkashifaslam/go-api-template/internal/domain"
	"github.com/mkashifaslam/go-api-template/internal/repository"
)

// userProfile is the table model.
type userProfile struct {
	ID             string    `gorm:"primaryKey;size:64"`
	Email          string    `gorm:"uniqueIndex;not null"`
	Name           string    `gorm:"not null;default:''"`
	HashedPassword string    `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null;index"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (userProfile) TableName() string { return "user_profiles" }

// Store implements repository.ProfileRepository on GORM.
type Store struct {
	db *gorm.DB
}

var _ repository.ProfileRepository = (*Store)(nil)

// Open connects to the SQLite database at dsn and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return New(db)
}

// New wraps an existing handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("gormstore: nil database handle")
	}
	if err := db.AutoMigrate(&userProfile{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateProfile inserts a profile.
func (s *Store) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	model := toModel(profile)
	return translate(s.db.WithContext(ctx).Create(&model).Error)
}

// GetProfileByID retrieves a profile by identifier.
func (s *Store) GetProfileByID(ctx context.Context, id string) (*domain.Profile, error) {
	var model userProfile
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return fromModel(model), nil
}

// GetProfileByEmail fetches a profile by email.
func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	var model userProfile
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return fromModel(model), nil
}

// ListProfiles returns a page of profiles ordered by creation time.
func (s *Store) ListProfiles(ctx context.Context, limit, offset int) ([]domain.Profile, error) {
	var models []userProfile
	err := s.db.WithContext(ctx).
		Order("created_at").Order("id").
		Limit(limit).Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, translate(err)
	}
	profiles := make([]domain.Profile, 0, len(models))
	for _, m := range models {
		profiles = append(profiles, *fromModel(m))
	}
	return profiles, nil
}

// UpdateProfile applies the non-nil fields of update inside a transaction.
func (s *Store) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Profile, error) {
	if update.Empty() {
		return nil, fmt.Errorf("update profile %s: no columns to update", id)
	}
	columns := map[string]any{"updated_at": time.Now().UTC()}
	if update.Email != nil {
		columns["email"] = *update.Email
	}
	if update.Name != nil {
		columns["name"] = *update.Name
	}
	if update.PasswordHash != nil {
		columns["hashed_password"] = *update.PasswordHash
	}

	var model userProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&userProfile{}).Where("id = ?", id).Updates(columns)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("id = ?", id).First(&model).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return fromModel(model), nil
}

// DeleteProfile removes a profile and returns the deleted row.
func (s *Store) DeleteProfile(ctx context.Context, id string) (*domain.Profile, error) {
	var model userProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&userProfile{}).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return fromModel(model), nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", repository.ErrConflict, err)
	default:
		return err
	}
}

func toModel(p *domain.Profile) userProfile {
	return userProfile{
		ID:             p.ID,
		Email:          p.Email,
		Name:           p.Name,
		HashedPassword: p.PasswordHash,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func fromModel(m userProfile) *domain.Profile {
	return &domain.Profile{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.HashedPassword,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
