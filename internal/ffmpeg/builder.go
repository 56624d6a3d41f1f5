package ffmpeg

import (
	"strconv"
	"strings"
)

// CommandBuilder builds FFmpeg commands with a fluent API.
type CommandBuilder struct {
	binary     string
	globalArgs []string
	inputArgs  []string
	input      string
	filterArgs []string
	outputArgs []string
	output     string
	logLevel   string
	overwrite  bool
}

// NewCommandBuilder creates a new FFmpeg command builder.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{
		binary:   ffmpegPath,
		logLevel: "error",
	}
}

// LogLevel sets the FFmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// HideBanner hides the FFmpeg banner.
func (b *CommandBuilder) HideBanner() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// Overwrite enables output file overwriting.
func (b *CommandBuilder) Overwrite() *CommandBuilder {
	b.overwrite = true
	return b
}

// Input sets the input source.
func (b *CommandBuilder) Input(input string) *CommandBuilder {
	b.input = input
	return b
}

// VideoCodec sets the video codec.
func (b *CommandBuilder) VideoCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:v", codec)
	return b
}

// VideoPreset sets the encoding preset.
func (b *CommandBuilder) VideoPreset(preset string) *CommandBuilder {
	if preset != "" {
		b.outputArgs = append(b.outputArgs, "-preset", preset)
	}
	return b
}

// Tune sets the encoder tune.
func (b *CommandBuilder) Tune(tune string) *CommandBuilder {
	if tune != "" {
		b.outputArgs = append(b.outputArgs, "-tune", tune)
	}
	return b
}

// FrameRate sets the output frame rate. Zero keeps the source rate.
func (b *CommandBuilder) FrameRate(fps int) *CommandBuilder {
	if fps > 0 {
		b.outputArgs = append(b.outputArgs, "-r", strconv.Itoa(fps))
	}
	return b
}

// VideoBitrate sets target, max, and buffer rates for a rendition.
// bitrateKbps is the target; maxrate matches it and bufsize is doubled,
// the conventional VBV setup for ABR ladders.
func (b *CommandBuilder) VideoBitrate(bitrateKbps int) *CommandBuilder {
	rate := strconv.Itoa(bitrateKbps) + "k"
	buf := strconv.Itoa(bitrateKbps*2) + "k"
	b.outputArgs = append(b.outputArgs, "-b:v", rate, "-maxrate", rate, "-bufsize", buf)
	return b
}

// Scale adds a scale filter for the target resolution.
func (b *CommandBuilder) Scale(width, height int) *CommandBuilder {
	b.filterArgs = append(b.filterArgs, "scale="+strconv.Itoa(width)+":"+strconv.Itoa(height))
	return b
}

// AudioCodec sets the audio codec.
func (b *CommandBuilder) AudioCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:a", codec)
	return b
}

// AudioBitrate sets the audio bitrate.
func (b *CommandBuilder) AudioBitrate(bitrate string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-b:a", bitrate)
	return b
}

// CopyStreams copies all streams without re-encoding.
func (b *CommandBuilder) CopyStreams() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c", "copy")
	return b
}

// SegmentArgs configures the segment muxer for fixed-duration MPEG-TS
// chunks with per-segment timestamp reset.
func (b *CommandBuilder) SegmentArgs(segmentSeconds float64) *CommandBuilder {
	b.outputArgs = append(b.outputArgs,
		"-f", "segment",
		"-segment_time", strconv.FormatFloat(segmentSeconds, 'f', -1, 64),
		"-segment_format", "mpegts",
		"-reset_timestamps", "1",
	)
	return b
}

// OutputArgs adds arbitrary output arguments.
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// Output sets the output destination.
func (b *CommandBuilder) Output(output string) *CommandBuilder {
	b.output = output
	return b
}

// Build builds the command.
func (b *CommandBuilder) Build() *Command {
	var args []string

	args = append(args, "-loglevel", b.logLevel)
	args = append(args, b.globalArgs...)

	if b.overwrite {
		args = append(args, "-y")
	}

	args = append(args, b.inputArgs...)
	args = append(args, "-i", b.input)

	if len(b.filterArgs) > 0 {
		args = append(args, "-vf", strings.Join(b.filterArgs, ","))
	}

	args = append(args, b.outputArgs...)
	args = append(args, b.output)

	return &Command{
		Binary: b.binary,
		Args:   args,
	}
}
