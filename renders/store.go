// Package renders stores render requests and serves them over HTTP.
package renders

import (
	"context"
	"errors"
	"time"

	"github.com/drewmudry/chatshorts-api/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a render does not exist or belongs to
// another user.
var ErrNotFound = errors.New("render not found")

// Store persists renders.
type Store interface {
	Create(ctx context.Context, r *models.Render) error
	Get(ctx context.Context, id uint) (*models.Render, error)
	GetForUser(ctx context.Context, publicID string, userID uint) (*models.Render, error)
	ListForUser(ctx context.Context, userID uint, limit int) ([]models.Render, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	InStatusBefore(ctx context.Context, status string, before time.Time) ([]models.Render, error)
	FinishedBefore(ctx context.Context, before time.Time) ([]models.Render, error)
	Delete(ctx context.Context, id uint) error
}

// GormStore is the Postgres-backed Store.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Create(ctx context.Context, r *models.Render) error {
	return s.DB.WithContext(ctx).Create(r).Error
}

func (s *GormStore) Get(ctx context.Context, id uint) (*models.Render, error) {
	var r models.Render
	if err := s.DB.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *GormStore) GetForUser(ctx context.Context, publicID string, userID uint) (*models.Render, error) {
	var r models.Render
	err := s.DB.WithContext(ctx).First(&r, "public_id = ? AND user_id = ?", publicID, userID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &r, nil
}

func (s *GormStore) ListForUser(ctx context.Context, userID uint, limit int) ([]models.Render, error) {
	var out []models.Render
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *GormStore) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := s.DB.WithContext(ctx).Model(&models.Render{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) InStatusBefore(ctx context.Context, status string, before time.Time) ([]models.Render, error) {
	var out []models.Render
	err := s.DB.WithContext(ctx).Where("status = ? AND updated_at < ?", status, before).Find(&out).Error
	return out, err
}

func (s *GormStore) FinishedBefore(ctx context.Context, before time.Time) ([]models.Render, error) {
	var out []models.Render
	err := s.DB.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []string{models.StatusComplete, models.StatusFailed}, before).
		Find(&out).Error
	return out, err
}

func (s *GormStore) Delete(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Delete(&models.Render{}, id).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
