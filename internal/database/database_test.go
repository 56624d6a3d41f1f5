package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/hlsforge/hlsforge/internal/config"
	"github.com/hlsforge/hlsforge/internal/models"
)

func TestNew_OpensAndMigrates(t *testing.T) {
	db, err := New(config.DatabaseConfig{
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	}, nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Ping(context.Background()))

	// Migrated tables accept writes.
	entry := &models.FileEntry{Path: "/in/1-1.mp4", Identifier: "1-1"}
	job := models.NewEncodingJob("run-1", entry, "default", "/out/1-1", 1)
	require.NoError(t, db.Create(job).Error)
	assert.False(t, job.ID.IsZero())
}

func TestSqliteDSN(t *testing.T) {
	dsn := sqliteDSN("app.db")
	assert.Contains(t, dsn, "app.db?")
	assert.Contains(t, dsn, "_pragma=journal_mode(WAL)")

	withQuery := sqliteDSN("app.db?mode=ro")
	assert.Contains(t, withQuery, "app.db?mode=ro&_pragma=")
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, gormLogLevel("silent"))
	assert.Equal(t, logger.Error, gormLogLevel("error"))
	assert.Equal(t, logger.Warn, gormLogLevel("warn"))
	assert.Equal(t, logger.Info, gormLogLevel("info"))
	assert.Equal(t, logger.Warn, gormLogLevel("bogus"))
}
