// Package ffmpeg wraps invocation of the external FFmpeg/FFprobe
// binaries: detection, command construction, execution, and process
// monitoring.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hlsforge/hlsforge/internal/config"
)

// Binaries holds resolved encoder binary paths.
type Binaries struct {
	FFmpeg  string
	FFprobe string
}

// Locate resolves the ffmpeg and ffprobe binaries from configuration,
// falling back to $PATH lookup, and verifies the ffmpeg binary answers
// to -version. A missing or broken binary is fatal before any file is
// touched.
func Locate(ctx context.Context, cfg config.FFmpegConfig) (Binaries, error) {
	var b Binaries
	var err error

	b.FFmpeg, err = resolve(cfg.BinaryPath, "ffmpeg")
	if err != nil {
		return b, err
	}
	b.FFprobe, err = resolve(cfg.ProbePath, "ffprobe")
	if err != nil {
		return b, err
	}

	if err := verify(ctx, b.FFmpeg); err != nil {
		return b, fmt.Errorf("verifying %s: %w", b.FFmpeg, err)
	}
	return b, nil
}

func resolve(configured, name string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}

// verify runs `ffmpeg -version` and checks the banner line.
func verify(ctx context.Context, ffmpegPath string) error {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-version")
	output, err := cmd.Output()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(string(output), "ffmpeg version") {
		return fmt.Errorf("unexpected -version output")
	}
	return nil
}
