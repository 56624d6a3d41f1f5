package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./incoming", cfg.Storage.InputDir)
	assert.Equal(t, "./output", cfg.Storage.OutputDir)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "hlsforge.db", cfg.Database.DSN)
	assert.Equal(t, "default", cfg.Run.Profile)
	assert.Greater(t, cfg.FFmpeg.EncodeTimeout, time.Duration(0))
	assert.NotEmpty(t, cfg.Watch.Cron)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  input_dir: /srv/incoming
  output_dir: /srv/hls
logging:
  level: debug
  format: text
run:
  profile: fast720
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/incoming", cfg.Storage.InputDir)
	assert.Equal(t, "/srv/hls", cfg.Storage.OutputDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "fast720", cfg.Run.Profile)
	// Untouched sections keep their defaults.
	assert.Equal(t, "hlsforge.db", cfg.Database.DSN)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  input_dir: /from/file
`), 0o644))

	t.Setenv("HLSFORGE_STORAGE_INPUT_DIR", "/from/env")
	t.Setenv("HLSFORGE_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.Storage.InputDir)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"missing input dir", func(c *Config) { c.Storage.InputDir = "" }, "input_dir"},
		{"missing output dir", func(c *Config) { c.Storage.OutputDir = "" }, "output_dir"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"missing dsn", func(c *Config) { c.Database.DSN = "" }, "database.dsn"},
		{"missing profile", func(c *Config) { c.Run.Profile = "" }, "run.profile"},
		{"zero timeout", func(c *Config) { c.FFmpeg.EncodeTimeout = 0 }, "encode_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWorkPath(t *testing.T) {
	s := StorageConfig{OutputDir: "/srv/hls"}
	assert.Equal(t, filepath.Join("/srv/hls", ".work"), s.WorkPath())

	s.WorkDir = "/tmp/work"
	assert.Equal(t, "/tmp/work", s.WorkPath())
}
