package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hlsforge/hlsforge/internal/models"
)

// runRepository implements RunRepository using GORM.
type runRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) Create(ctx context.Context, run *models.RunRecord) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *runRepository) Update(ctx context.Context, run *models.RunRecord) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *runRepository) GetByID(ctx context.Context, id string) (*models.RunRecord, error) {
	var run models.RunRecord
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *runRepository) GetRecent(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	var runs []*models.RunRecord
	if err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
