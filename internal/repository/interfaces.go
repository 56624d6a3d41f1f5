// Package repository defines data access interfaces for run and job
// history. All database access goes through these interfaces.
package repository

import (
	"context"

	"github.com/hlsforge/hlsforge/internal/models"
)

// RunRepository defines operations for batch run persistence.
type RunRepository interface {
	// Create creates a new run record.
	Create(ctx context.Context, run *models.RunRecord) error
	// Update updates an existing run record.
	Update(ctx context.Context, run *models.RunRecord) error
	// GetByID retrieves a run by ID. Returns nil when not found.
	GetByID(ctx context.Context, id string) (*models.RunRecord, error)
	// GetRecent retrieves the most recent runs, newest first.
	GetRecent(ctx context.Context, limit int) ([]*models.RunRecord, error)
}

// JobRepository defines operations for encoding job persistence.
type JobRepository interface {
	// Create creates a new job record.
	Create(ctx context.Context, job *models.EncodingJob) error
	// Update updates an existing job record.
	Update(ctx context.Context, job *models.EncodingJob) error
	// GetByID retrieves a job by ID. Returns nil when not found.
	GetByID(ctx context.Context, id models.ULID) (*models.EncodingJob, error)
	// GetByRunID retrieves all jobs belonging to a run.
	GetByRunID(ctx context.Context, runID string) ([]*models.EncodingJob, error)
	// GetByState retrieves jobs in the given state, newest first.
	GetByState(ctx context.Context, state models.JobState, limit int) ([]*models.EncodingJob, error)
	// GetRecent retrieves the most recent jobs, newest first.
	GetRecent(ctx context.Context, limit int) ([]*models.EncodingJob, error)
}
