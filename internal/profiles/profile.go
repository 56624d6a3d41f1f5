// Package profiles holds named processing-profile bundles and resolves
// the active one for a run.
package profiles

import (
	"fmt"
	"sort"
	"time"

	"github.com/hlsforge/hlsforge/internal/config"
	"github.com/hlsforge/hlsforge/internal/models"
)

// PlaylistType is the HLS playlist finality mode.
type PlaylistType string

const (
	// PlaylistVOD produces closed playlists with an end marker.
	PlaylistVOD PlaylistType = "vod"
	// PlaylistEvent produces open-ended, appendable playlists.
	PlaylistEvent PlaylistType = "event"
)

// IsValid returns true for a recognized playlist type.
func (t PlaylistType) IsValid() bool {
	return t == PlaylistVOD || t == PlaylistEvent
}

// QualityLevel is one rung of the quality ladder.
type QualityLevel struct {
	// Name labels the rendition and its output subfolder (e.g. "1080p").
	Name string `yaml:"name"`
	// Bitrate is the target video bitrate in kbps.
	Bitrate int `yaml:"bitrate"`
	// Width and Height are the target resolution.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Resolution returns the WxH string for encoder arguments and playlists.
func (q QualityLevel) Resolution() string {
	return fmt.Sprintf("%dx%d", q.Width, q.Height)
}

// PatternOverrides optionally replaces the default pattern rules.
type PatternOverrides struct {
	Validation      string `yaml:"file_validation_pattern"`
	Rename          string `yaml:"file_rename_pattern"`
	Organization    string `yaml:"folder_organization_pattern"`
	CaseInsensitive bool   `yaml:"case_insensitive"`
}

// Profile is an immutable named configuration bundle. Profiles are
// loaded once at session start; mutation goes through Clone, never
// in-place edits.
type Profile struct {
	Name string

	// Encoder is the ffmpeg video encoder name (e.g. libx264).
	Encoder string
	// Preset is the encoder speed/quality preset.
	Preset string
	// Tune is the optional encoder tune (empty = none).
	Tune string
	// FPS is the output frame rate (0 = keep source).
	FPS int

	// Ladder is the quality ladder, highest bitrate first.
	Ladder []QualityLevel

	// SegmentDuration is the target HLS segment length.
	SegmentDuration time.Duration
	// Playlist selects VOD or EVENT playlists.
	Playlist PlaylistType

	// Parallelism is the encoding worker-pool size.
	Parallelism int
	// MaxAttempts bounds per-job encode retries.
	MaxAttempts int

	// AutoRenameFiles renames files to canonical form before validation.
	AutoRenameFiles bool
	// AutoOrganizeFolders relocates completed output folders.
	AutoOrganizeFolders bool

	// Patterns optionally overrides the default rules.
	Patterns PatternOverrides
}

// Default returns the built-in profile.
func Default() *Profile {
	return &Profile{
		Name:    "default",
		Encoder: "libx264",
		Preset:  "veryfast",
		FPS:     30,
		Ladder: []QualityLevel{
			{Name: "1080p", Bitrate: 5000, Width: 1920, Height: 1080},
			{Name: "720p", Bitrate: 2800, Width: 1280, Height: 720},
			{Name: "480p", Bitrate: 1400, Width: 842, Height: 480},
		},
		SegmentDuration:     6 * time.Second,
		Playlist:            PlaylistVOD,
		Parallelism:         2,
		MaxAttempts:         3,
		AutoRenameFiles:     true,
		AutoOrganizeFolders: true,
	}
}

// Clone returns a copy suitable for customization; the stored profile
// itself is never edited.
func (p *Profile) Clone() *Profile {
	clone := *p
	clone.Ladder = make([]QualityLevel, len(p.Ladder))
	copy(clone.Ladder, p.Ladder)
	return &clone
}

// PatternRules resolves the effective pattern rules, falling back to the
// package defaults for unset overrides.
func (p *Profile) PatternRules() (validation, rename, organization string, caseInsensitive bool) {
	validation = p.Patterns.Validation
	if validation == "" {
		validation = config.DefaultValidationPattern
	}
	rename = p.Patterns.Rename
	if rename == "" {
		rename = config.DefaultRenamePattern
	}
	organization = p.Patterns.Organization
	if organization == "" {
		organization = config.DefaultOrganizationPattern
	}
	return validation, rename, organization, p.Patterns.CaseInsensitive
}

// Validate checks the profile for fatal configuration errors.
func (p *Profile) Validate() error {
	if p.Encoder == "" {
		return models.NewConfigError("encoder", "is required", nil)
	}
	if len(p.Ladder) == 0 {
		return models.NewConfigError("quality_ladder", "must have at least one level", nil)
	}
	for i, q := range p.Ladder {
		if q.Bitrate <= 0 {
			return models.NewConfigError("quality_ladder", fmt.Sprintf("level %d: bitrate must be positive", i), nil)
		}
		if q.Width <= 0 || q.Height <= 0 {
			return models.NewConfigError("quality_ladder", fmt.Sprintf("level %d: resolution must be positive", i), nil)
		}
	}
	if p.SegmentDuration <= 0 {
		return models.NewConfigError("segment_duration", "must be positive", nil)
	}
	if !p.Playlist.IsValid() {
		return models.NewConfigError("playlist_type", "must be vod or event", nil)
	}
	if p.Parallelism < 1 {
		return models.NewConfigError("parallelism", "must be at least 1", nil)
	}
	if p.MaxAttempts < 1 {
		return models.NewConfigError("max_attempts", "must be at least 1", nil)
	}
	return nil
}

// normalize fills defaults and orders the ladder highest bitrate first,
// the ordering the master playlist relies on.
func (p *Profile) normalize() {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = 3
	}
	for i := range p.Ladder {
		if p.Ladder[i].Name == "" {
			p.Ladder[i].Name = fmt.Sprintf("%dp", p.Ladder[i].Height)
		}
	}
	sort.SliceStable(p.Ladder, func(i, j int) bool {
		return p.Ladder[i].Bitrate > p.Ladder[j].Bitrate
	})
}
