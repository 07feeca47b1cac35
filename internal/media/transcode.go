package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"video-worker/internal/domain"
	"video-worker/internal/gateway"
)

// FFmpegTranscoder implements gateway.Transcoder by shelling out to ffmpeg
// for the 720p30/16kHz-mono normalization pass and ffprobe for duration.
type FFmpegTranscoder struct {
	FFmpegPath  string
	FFprobePath string
}

var _ gateway.Transcoder = (*FFmpegTranscoder)(nil)

func (t *FFmpegTranscoder) Transcode(ctx context.Context, inputPath, outputPath string) (gateway.TranscodeResult, error) {
	cmd := exec.CommandContext(ctx, t.ffmpeg(),
		"-y",
		"-i", inputPath,
		"-vf", "scale=-2:720,fps=30",
		"-c:v", "libx264",
		"-ar", "16000",
		"-ac", "1",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return gateway.TranscodeResult{}, domain.Retryable(fmt.Errorf("ffmpeg transcode: %w: %s", err, stderr.String()))
	}

	duration, err := t.probeDuration(ctx, outputPath)
	if err != nil {
		return gateway.TranscodeResult{}, domain.Retryable(fmt.Errorf("ffprobe duration: %w", err))
	}

	audioPath := filepath.Join(filepath.Dir(outputPath), "audio.wav")
	if err := t.extractAudio(ctx, inputPath, audioPath); err != nil {
		return gateway.TranscodeResult{}, domain.Retryable(fmt.Errorf("ffmpeg audio extraction: %w", err))
	}

	return gateway.TranscodeResult{NormalizedPath: outputPath, AudioPath: audioPath, DurationSec: duration}, nil
}

// extractAudio writes the 16kHz mono audio sidecar alongside the
// normalized video, per §6's filesystem layout.
func (t *FFmpegTranscoder) extractAudio(ctx context.Context, inputPath, audioPath string) error {
	cmd := exec.CommandContext(ctx, t.ffmpeg(),
		"-y",
		"-i", inputPath,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		audioPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, stderr.String())
	}
	return nil
}

func (t *FFmpegTranscoder) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe(),
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
}

func (t *FFmpegTranscoder) ffmpeg() string {
	if t.FFmpegPath != "" {
		return t.FFmpegPath
	}
	return "ffmpeg"
}

func (t *FFmpegTranscoder) ffprobe() string {
	if t.FFprobePath != "" {
		return t.FFprobePath
	}
	return "ffprobe"
}
