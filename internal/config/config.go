// Package config provides configuration management for hlsforge using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultEncodeTimeout = 2 * time.Hour
	defaultWatchCron     = "*/15 * * * *"
)

// Default pattern expressions. The intake contract is built around numeric
// `<group>-<item>` identifiers; all three patterns can be overridden per
// profile or via the config file.
const (
	DefaultValidationPattern   = `^\d+-\d+\.mp4$`
	DefaultRenamePattern       = `(\d+-\d+)(?:[_-].*?)?\.mp4$`
	DefaultOrganizationPattern = `^(\d+)-\d+`
)

// Config holds all configuration for the application.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	FFmpeg   FFmpegConfig   `mapstructure:"ffmpeg"`
	Run      RunConfig      `mapstructure:"run"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

// StorageConfig holds filesystem layout configuration.
type StorageConfig struct {
	// InputDir is the directory swept for source video files.
	InputDir string `mapstructure:"input_dir"`
	// OutputDir is the root under which per-job output folders are created.
	OutputDir string `mapstructure:"output_dir"`
	// WorkDir holds intermediate rendition encodes before packaging.
	WorkDir string `mapstructure:"work_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// DatabaseConfig holds the job-history database configuration.
// Only SQLite is supported; the DSN is a file path. DSNs can embed
// credentials, so the field is redacted when the config is logged.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn" masq:"secret"`
	LogLevel string `mapstructure:"log_level"` // silent, error, warn, info
}

// FFmpegConfig holds external encoder binary configuration.
type FFmpegConfig struct {
	BinaryPath    string        `mapstructure:"binary_path"` // Path to ffmpeg binary (empty = $PATH lookup)
	ProbePath     string        `mapstructure:"probe_path"`  // Path to ffprobe binary (empty = $PATH lookup)
	EncodeTimeout time.Duration `mapstructure:"encode_timeout"`
}

// RunConfig holds batch-run configuration.
type RunConfig struct {
	// Profile is the name of the active processing profile.
	Profile string `mapstructure:"profile"`
	// ProfilesFile is an optional YAML file with named profile bundles.
	ProfilesFile string `mapstructure:"profiles_file"`
}

// WatchConfig holds recurring-sweep configuration for the watch command.
type WatchConfig struct {
	// Cron is a 5-field cron expression controlling sweep cadence.
	Cron string `mapstructure:"cron"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration and are
// prefixed with HLSFORGE_, with underscores for nesting.
// Example: HLSFORGE_STORAGE_INPUT_DIR=/srv/incoming.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hlsforge")
		v.AddConfigPath("$HOME/.hlsforge")
	}

	v.SetEnvPrefix("HLSFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - defaults and env vars apply
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.input_dir", "./incoming")
	v.SetDefault("storage.output_dir", "./output")
	v.SetDefault("storage.work_dir", "./work")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("database.dsn", "hlsforge.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("ffmpeg.binary_path", "")
	v.SetDefault("ffmpeg.probe_path", "")
	v.SetDefault("ffmpeg.encode_timeout", defaultEncodeTimeout)

	v.SetDefault("run.profile", "default")
	v.SetDefault("run.profiles_file", "")

	v.SetDefault("watch.cron", defaultWatchCron)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Storage.InputDir == "" {
		return fmt.Errorf("storage.input_dir is required")
	}
	if c.Storage.OutputDir == "" {
		return fmt.Errorf("storage.output_dir is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if c.Run.Profile == "" {
		return fmt.Errorf("run.profile is required")
	}

	if c.FFmpeg.EncodeTimeout <= 0 {
		return fmt.Errorf("ffmpeg.encode_timeout must be positive")
	}

	return nil
}

// WorkPath returns the work directory, defaulting next to the output root.
func (c *StorageConfig) WorkPath() string {
	if c.WorkDir != "" {
		return c.WorkDir
	}
	return filepath.Join(c.OutputDir, ".work")
}
