package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hlsforge/hlsforge/internal/profiles"
)

// defaultAudioBitrate is used for every rendition; audio is cheap
// relative to video and a single rate keeps renditions switchable.
const defaultAudioBitrate = "128k"

// RenditionSpec describes one encode of a source file into a single
// quality level.
type RenditionSpec struct {
	Source  string
	Dest    string
	Profile *profiles.Profile
	Level   profiles.QualityLevel
}

// Encoder runs FFmpeg to produce per-rendition intermediate files.
type Encoder struct {
	binaries Binaries
	timeout  time.Duration
	logger   *slog.Logger
}

// NewEncoder creates an encoder using the given binaries.
func NewEncoder(binaries Binaries, timeout time.Duration, logger *slog.Logger) *Encoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Encoder{
		binaries: binaries,
		timeout:  timeout,
		logger:   logger,
	}
}

// Encode transcodes spec.Source into spec.Dest at the rendition's
// bitrate and resolution, with keyframes aligned to segment boundaries
// so the output can later be split without re-encoding. It returns
// peak resource usage of the FFmpeg process.
func (e *Encoder) Encode(ctx context.Context, spec RenditionSpec) (ProcessStats, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := e.buildCommand(spec)

	e.logger.Debug("starting rendition encode",
		"source", spec.Source,
		"dest", spec.Dest,
		"level", spec.Level.Name,
		"command", cmd.String())

	if err := cmd.Start(ctx); err != nil {
		return ProcessStats{}, err
	}

	monitor := NewProcessMonitor(cmd.PID())
	monitor.Start()

	err := cmd.Wait(ctx)
	stats := monitor.Stop()

	if err != nil {
		return stats, fmt.Errorf("encoding %s (%s): %w", spec.Source, spec.Level.Name, err)
	}

	e.logger.Debug("rendition encode complete",
		"dest", spec.Dest,
		"level", spec.Level.Name,
		"peak_cpu_percent", stats.PeakCPUPercent,
		"peak_rss_bytes", stats.PeakRSSBytes)

	return stats, nil
}

func (e *Encoder) buildCommand(spec RenditionSpec) *Command {
	p := spec.Profile
	level := spec.Level

	b := NewCommandBuilder(e.binaries.FFmpeg).
		HideBanner().
		Overwrite().
		Input(spec.Source).
		Scale(level.Width, level.Height).
		VideoCodec(p.Encoder).
		VideoPreset(p.Preset).
		Tune(p.Tune).
		FrameRate(p.FPS).
		VideoBitrate(level.Bitrate).
		AudioCodec("aac").
		AudioBitrate(defaultAudioBitrate)

	// Force keyframes on segment boundaries so the packager can split
	// with a stream copy.
	if gop := e.gopSize(p); gop > 0 {
		b.OutputArgs("-g", strconv.Itoa(gop), "-keyint_min", strconv.Itoa(gop), "-sc_threshold", "0")
	}

	return b.Output(spec.Dest).Build()
}

// gopSize returns the keyframe interval in frames for the profile's
// segment duration, or 0 when the frame rate is unknown.
func (e *Encoder) gopSize(p *profiles.Profile) int {
	if p.FPS <= 0 {
		return 0
	}
	return int(p.SegmentDuration.Seconds() * float64(p.FPS))
}
