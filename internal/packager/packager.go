// Package packager splits encoded renditions into HLS segments and
// writes the media and multivariant playlists.
package packager

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"

	"github.com/hlsforge/hlsforge/internal/ffmpeg"
	"github.com/hlsforge/hlsforge/internal/profiles"
)

const (
	// MasterPlaylistName is the multivariant playlist filename at the
	// root of each packaged output directory.
	MasterPlaylistName = "master.m3u8"
	// MediaPlaylistName is the per-rendition playlist filename.
	MediaPlaylistName = "index.m3u8"

	segmentPattern = "segment_%05d.ts"
	playlistPerm   = 0o644
	dirPerm        = 0o755
)

// Rendition pairs an encoded intermediate file with its quality level.
type Rendition struct {
	Level  profiles.QualityLevel
	Source string
}

// Request describes one packaging operation: a set of encoded
// renditions of a single input, written as an HLS tree under OutputDir.
type Request struct {
	Identifier string
	Profile    *profiles.Profile
	Renditions []Rendition
	OutputDir  string
}

// Packager produces HLS output from encoded renditions.
type Packager struct {
	binaries ffmpeg.Binaries
	prober   *ffmpeg.Prober
	logger   *slog.Logger
}

// New creates a packager.
func New(binaries ffmpeg.Binaries, logger *slog.Logger) *Packager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Packager{
		binaries: binaries,
		prober:   ffmpeg.NewProber(binaries.FFprobe),
		logger:   logger,
	}
}

// Package segments every rendition and writes the playlists. On any
// failure the partially written output directory is removed.
func (p *Packager) Package(ctx context.Context, req Request) error {
	if len(req.Renditions) == 0 {
		return fmt.Errorf("packaging %s: no renditions", req.Identifier)
	}

	if err := p.packageAll(ctx, req); err != nil {
		if rmErr := os.RemoveAll(req.OutputDir); rmErr != nil {
			p.logger.Warn("failed to remove partial output",
				"dir", req.OutputDir, "error", rmErr)
		}
		return err
	}
	return nil
}

func (p *Packager) packageAll(ctx context.Context, req Request) error {
	for _, r := range req.Renditions {
		if err := p.packageRendition(ctx, req, r); err != nil {
			return fmt.Errorf("packaging %s (%s): %w", req.Identifier, r.Level.Name, err)
		}
	}

	if err := p.writeMaster(req); err != nil {
		return fmt.Errorf("packaging %s: %w", req.Identifier, err)
	}

	p.logger.Info("packaged",
		"identifier", req.Identifier,
		"renditions", len(req.Renditions),
		"output_dir", req.OutputDir)
	return nil
}

// packageRendition stream-copies one rendition into fixed-duration TS
// segments and writes its media playlist.
func (p *Packager) packageRendition(ctx context.Context, req Request, r Rendition) error {
	dir := filepath.Join(req.OutputDir, r.Level.Name)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	total, err := p.prober.Duration(ctx, r.Source)
	if err != nil {
		return err
	}

	segSeconds := req.Profile.SegmentDuration.Seconds()
	cmd := ffmpeg.NewCommandBuilder(p.binaries.FFmpeg).
		HideBanner().
		Overwrite().
		Input(r.Source).
		CopyStreams().
		SegmentArgs(segSeconds).
		Output(filepath.Join(dir, segmentPattern)).
		Build()

	p.logger.Debug("segmenting rendition",
		"identifier", req.Identifier,
		"level", r.Level.Name,
		"command", cmd.String())

	if err := cmd.Run(ctx); err != nil {
		return err
	}

	segments, err := listSegments(dir)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("no segments produced in %s", dir)
	}

	media := buildMediaPlaylist(segments, total, req.Profile)
	data, err := media.Marshal()
	if err != nil {
		return fmt.Errorf("marshalling media playlist: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, MediaPlaylistName), data, playlistPerm)
}

// listSegments returns the TS segment filenames in dir, sorted.
func listSegments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".ts") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// buildMediaPlaylist assembles the playlist for one rendition. The
// segmenter produces full-length segments except the last one, so
// durations are derived from the total container duration.
func buildMediaPlaylist(segments []string, total time.Duration, p *profiles.Profile) *playlist.Media {
	segDur := p.SegmentDuration
	n := len(segments)

	last := total - time.Duration(n-1)*segDur
	if last <= 0 || last > segDur {
		last = segDur
	}

	target := int(math.Ceil(segDur.Seconds()))
	if lastCeil := int(math.Ceil(last.Seconds())); lastCeil > target {
		target = lastCeil
	}

	media := &playlist.Media{
		Version:        3,
		TargetDuration: target,
		MediaSequence:  0,
		Segments:       make([]*playlist.MediaSegment, 0, n),
	}

	switch p.Playlist {
	case profiles.PlaylistEvent:
		typ := playlist.MediaPlaylistTypeEvent
		media.PlaylistType = &typ
	default:
		typ := playlist.MediaPlaylistTypeVOD
		media.PlaylistType = &typ
		media.Endlist = true
	}

	for i, name := range segments {
		dur := segDur
		if i == n-1 {
			dur = last
		}
		media.Segments = append(media.Segments, &playlist.MediaSegment{
			Duration: dur,
			URI:      name,
		})
	}
	return media
}

// writeMaster writes the multivariant playlist referencing every
// rendition's media playlist.
func (p *Packager) writeMaster(req Request) error {
	mv := &playlist.Multivariant{
		Version:             3,
		IndependentSegments: true,
	}

	for _, r := range req.Renditions {
		variant := &playlist.MultivariantVariant{
			Bandwidth:  variantBandwidth(r.Level),
			Resolution: r.Level.Resolution(),
			Codecs:     variantCodecs(req.Profile.Encoder),
			URI:        r.Level.Name + "/" + MediaPlaylistName,
		}
		if req.Profile.FPS > 0 {
			fps := float64(req.Profile.FPS)
			variant.FrameRate = &fps
		}
		mv.Variants = append(mv.Variants, variant)
	}

	data, err := mv.Marshal()
	if err != nil {
		return fmt.Errorf("marshalling multivariant playlist: %w", err)
	}
	return os.WriteFile(filepath.Join(req.OutputDir, MasterPlaylistName), data, playlistPerm)
}

// variantBandwidth returns the peak bandwidth in bits per second,
// video bitrate plus the fixed audio rate.
func variantBandwidth(level profiles.QualityLevel) int {
	const audioKbps = 128
	return (level.Bitrate + audioKbps) * 1000
}

// variantCodecs maps the encoder to RFC 6381 codec strings.
func variantCodecs(encoder string) []string {
	const aacLC = "mp4a.40.2"
	switch encoder {
	case "libx265", "hevc_nvenc", "hevc_qsv", "hevc_vaapi":
		return []string{"hvc1.1.6.L120.90", aacLC}
	default:
		return []string{"avc1.640028", aacLC}
	}
}
