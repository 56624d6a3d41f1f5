package profiles

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hlsforge/hlsforge/internal/models"
)

// Duration wraps time.Duration with YAML support for strings like "6s".
// Plain numbers are interpreted as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("parsing duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("parsing duration: %w", err)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// profileDoc is the YAML shape of one profile entry. Unset fields fall
// back to the base profile they override.
type profileDoc struct {
	Encoder             *string          `yaml:"encoder"`
	Preset              *string          `yaml:"preset"`
	Tune                *string          `yaml:"tune"`
	FPS                 *int             `yaml:"fps"`
	Ladder              []QualityLevel   `yaml:"quality_ladder"`
	SegmentDuration     *Duration        `yaml:"segment_duration"`
	Playlist            *PlaylistType    `yaml:"playlist_type"`
	Parallelism         *int             `yaml:"parallelism"`
	MaxAttempts         *int             `yaml:"max_attempts"`
	AutoRenameFiles     *bool            `yaml:"auto_rename_files"`
	AutoOrganizeFolders *bool            `yaml:"auto_organize_folders"`
	Patterns            PatternOverrides `yaml:"patterns"`
}

// Store holds the loaded profiles, keyed by name.
type Store struct {
	profiles map[string]*Profile
}

// NewStore creates a store containing only the built-in default profile.
func NewStore() *Store {
	s := &Store{profiles: make(map[string]*Profile)}
	def := Default()
	def.normalize()
	s.profiles[def.Name] = def
	return s
}

// LoadFile loads named profiles from a YAML document of the form
//
//	profiles:
//	  fast1080:
//	    encoder: libx264
//	    ...
//
// Each entry starts from the built-in default and overrides the fields
// it sets. An entry named "default" replaces the built-in values.
// Validation failures are fatal configuration errors.
func LoadFile(path string) (*Store, error) {
	s := NewStore()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewConfigError("profiles_file", "cannot read "+path, err)
	}

	var doc struct {
		Profiles map[string]profileDoc `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, models.NewConfigError("profiles_file", "invalid YAML in "+path, err)
	}

	for name, entry := range doc.Profiles {
		p := Default()
		p.Name = name
		applyDoc(p, entry)
		p.normalize()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		s.profiles[name] = p
	}

	return s, nil
}

func applyDoc(p *Profile, doc profileDoc) {
	if doc.Encoder != nil {
		p.Encoder = *doc.Encoder
	}
	if doc.Preset != nil {
		p.Preset = *doc.Preset
	}
	if doc.Tune != nil {
		p.Tune = *doc.Tune
	}
	if doc.FPS != nil {
		p.FPS = *doc.FPS
	}
	if len(doc.Ladder) > 0 {
		p.Ladder = doc.Ladder
	}
	if doc.SegmentDuration != nil {
		p.SegmentDuration = doc.SegmentDuration.Duration()
	}
	if doc.Playlist != nil {
		p.Playlist = *doc.Playlist
	}
	if doc.Parallelism != nil {
		p.Parallelism = *doc.Parallelism
	}
	if doc.MaxAttempts != nil {
		p.MaxAttempts = *doc.MaxAttempts
	}
	if doc.AutoRenameFiles != nil {
		p.AutoRenameFiles = *doc.AutoRenameFiles
	}
	if doc.AutoOrganizeFolders != nil {
		p.AutoOrganizeFolders = *doc.AutoOrganizeFolders
	}
	if doc.Patterns.Validation != "" {
		p.Patterns.Validation = doc.Patterns.Validation
	}
	if doc.Patterns.Rename != "" {
		p.Patterns.Rename = doc.Patterns.Rename
	}
	if doc.Patterns.Organization != "" {
		p.Patterns.Organization = doc.Patterns.Organization
	}
	if doc.Patterns.CaseInsensitive {
		p.Patterns.CaseInsensitive = true
	}
}

// Resolve returns a copy of the named profile, or ErrProfileNotFound
// wrapped in a ConfigError (an invalid profile reference is fatal,
// pre-run). Callers may mutate the copy freely.
func (s *Store) Resolve(name string) (*Profile, error) {
	p, ok := s.profiles[name]
	if !ok {
		return nil, models.NewConfigError("run.profile", "unknown profile "+name, models.ErrProfileNotFound)
	}
	return p.Clone(), nil
}

// Names returns the profile names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
