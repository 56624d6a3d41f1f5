package profiles

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hlsforge/hlsforge/internal/models"
)

func writeProfiles(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewStore_HasDefault(t *testing.T) {
	store := NewStore()

	p, err := store.Resolve("default")
	require.NoError(t, err)
	assert.Equal(t, "libx264", p.Encoder)
	assert.Len(t, p.Ladder, 3)
	assert.Equal(t, 6*time.Second, p.SegmentDuration)
	assert.Equal(t, PlaylistVOD, p.Playlist)
	assert.True(t, p.AutoRenameFiles)
	assert.True(t, p.AutoOrganizeFolders)
}

func TestLoadFile_OverlaysDefault(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  fast720:
    preset: ultrafast
    segment_duration: 4s
    quality_ladder:
      - bitrate: 2800
        width: 1280
        height: 720
`)

	store, err := LoadFile(path)
	require.NoError(t, err)

	p, err := store.Resolve("fast720")
	require.NoError(t, err)

	// Overridden fields.
	assert.Equal(t, "ultrafast", p.Preset)
	assert.Equal(t, 4*time.Second, p.SegmentDuration)
	require.Len(t, p.Ladder, 1)
	assert.Equal(t, "720p", p.Ladder[0].Name, "unnamed levels get a height-based name")

	// Inherited fields.
	assert.Equal(t, "libx264", p.Encoder)
	assert.Equal(t, 30, p.FPS)

	// The builtin default is still present.
	_, err = store.Resolve("default")
	assert.NoError(t, err)
}

func TestLoadFile_NumericSegmentDuration(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  numeric:
    segment_duration: 10
`)

	store, err := LoadFile(path)
	require.NoError(t, err)

	p, err := store.Resolve("numeric")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, p.SegmentDuration)
}

func TestLoadFile_LadderSortedByBitrate(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  unsorted:
    quality_ladder:
      - {bitrate: 1400, width: 842, height: 480}
      - {bitrate: 5000, width: 1920, height: 1080}
      - {bitrate: 2800, width: 1280, height: 720}
`)

	store, err := LoadFile(path)
	require.NoError(t, err)

	p, err := store.Resolve("unsorted")
	require.NoError(t, err)
	require.Len(t, p.Ladder, 3)
	assert.Equal(t, 5000, p.Ladder[0].Bitrate)
	assert.Equal(t, 2800, p.Ladder[1].Bitrate)
	assert.Equal(t, 1400, p.Ladder[2].Bitrate)
}

func TestLoadFile_InvalidProfile(t *testing.T) {
	path := writeProfiles(t, `
profiles:
  broken:
    quality_ladder:
      - {bitrate: 0, width: 1920, height: 1080}
`)

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := writeProfiles(t, "profiles: [not a map")

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.True(t, models.IsConfigError(err))
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, models.IsConfigError(err))
}

func TestResolve_UnknownProfile(t *testing.T) {
	store := NewStore()

	_, err := store.Resolve("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrProfileNotFound))
}

func TestResolve_ReturnsCopy(t *testing.T) {
	store := NewStore()

	first, err := store.Resolve("default")
	require.NoError(t, err)
	first.Parallelism = 99

	second, err := store.Resolve("default")
	require.NoError(t, err)
	assert.NotEqual(t, 99, second.Parallelism)
}

func TestProfile_PatternRules_Defaults(t *testing.T) {
	p := Default()
	validation, rename, organization, caseInsensitive := p.PatternRules()

	assert.NotEmpty(t, validation)
	assert.NotEmpty(t, rename)
	assert.NotEmpty(t, organization)
	assert.False(t, caseInsensitive)
}

func TestProfile_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
		errMsg string
	}{
		{"missing encoder", func(p *Profile) { p.Encoder = "" }, "encoder"},
		{"empty ladder", func(p *Profile) { p.Ladder = nil }, "quality_ladder"},
		{"zero segment duration", func(p *Profile) { p.SegmentDuration = 0 }, "segment_duration"},
		{"zero parallelism", func(p *Profile) { p.Parallelism = 0 }, "parallelism"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(p)
			err := p.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
