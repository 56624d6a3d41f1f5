package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlsforge/hlsforge/internal/config"
	"github.com/hlsforge/hlsforge/internal/database"
	"github.com/hlsforge/hlsforge/internal/models"
)

func setupDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(config.DatabaseConfig{
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func makeJob(runID, identifier string) *models.EncodingJob {
	entry := &models.FileEntry{Path: "/in/" + identifier + ".mp4", Identifier: identifier}
	return models.NewEncodingJob(runID, entry, "default", "/out/"+identifier, 3)
}

func TestJobRepository_CreateAndGet(t *testing.T) {
	db := setupDB(t)
	repo := NewJobRepository(db.DB)
	ctx := context.Background()

	job := makeJob("run-1", "123-456")
	require.NoError(t, repo.Create(ctx, job))
	require.False(t, job.ID.IsZero(), "create assigns a ULID")

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "123-456", got.Identifier)
	assert.Equal(t, models.JobStatePending, got.State)
}

func TestJobRepository_GetByID_NotFound(t *testing.T) {
	db := setupDB(t)
	repo := NewJobRepository(db.DB)

	got, err := repo.GetByID(context.Background(), models.NewULID())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestJobRepository_Update(t *testing.T) {
	db := setupDB(t)
	repo := NewJobRepository(db.DB)
	ctx := context.Background()

	job := makeJob("run-1", "123-456")
	require.NoError(t, repo.Create(ctx, job))

	job.MarkRunning()
	job.MarkSucceeded()
	job.PeakCPUPercent = 250
	require.NoError(t, repo.Update(ctx, job))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateSucceeded, got.State)
	assert.Equal(t, 1, got.AttemptCount)
	assert.Equal(t, float64(250), got.PeakCPUPercent)
	assert.NotNil(t, got.CompletedAt)
}

func TestJobRepository_GetByRunIDAndState(t *testing.T) {
	db := setupDB(t)
	repo := NewJobRepository(db.DB)
	ctx := context.Background()

	a := makeJob("run-1", "1-1")
	b := makeJob("run-1", "1-2")
	c := makeJob("run-2", "2-1")
	for _, job := range []*models.EncodingJob{a, b, c} {
		require.NoError(t, repo.Create(ctx, job))
	}

	b.MarkRunning()
	b.MarkFailed(errors.New("encode failed"))
	require.NoError(t, repo.Update(ctx, b))

	byRun, err := repo.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, byRun, 2)

	failed, err := repo.GetByState(ctx, models.JobStateFailed, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "1-2", failed[0].Identifier)

	recent, err := repo.GetRecent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestRunRepository_RoundTrip(t *testing.T) {
	db := setupDB(t)
	repo := NewRunRepository(db.DB)
	ctx := context.Background()

	run := &models.RunRecord{
		ID:          uuid.NewString(),
		ProfileName: "default",
		InputDir:    "/in",
		StartedAt:   models.Now(),
	}
	require.NoError(t, repo.Create(ctx, run))

	run.Discovered = 3
	run.Validated = 2
	run.Succeeded = 2
	now := models.Now()
	run.FinishedAt = &now
	require.NoError(t, repo.Update(ctx, run))

	got, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Succeeded)
	assert.NotNil(t, got.FinishedAt)

	missing, err := repo.GetByID(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, missing)

	recent, err := repo.GetRecent(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
