package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/hlsforge/hlsforge/internal/models"
)

// jobRepository implements JobRepository using GORM.
type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *models.EncodingJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepository) Update(ctx context.Context, job *models.EncodingJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *jobRepository) GetByID(ctx context.Context, id models.ULID) (*models.EncodingJob, error) {
	var job models.EncodingJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) GetByRunID(ctx context.Context, runID string) ([]*models.EncodingJob, error) {
	var jobs []*models.EncodingJob
	if err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) GetByState(ctx context.Context, state models.JobState, limit int) ([]*models.EncodingJob, error) {
	var jobs []*models.EncodingJob
	if err := r.db.WithContext(ctx).
		Where("state = ?", state).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) GetRecent(ctx context.Context, limit int) ([]*models.EncodingJob, error) {
	var jobs []*models.EncodingJob
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
