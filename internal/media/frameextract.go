package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"video-worker/internal/domain"
	"video-worker/internal/gateway"
)

// FFmpegFrameExtractor implements gateway.FrameExtractor by seeking to a
// timestamp and writing a single JPEG, grounded on the seek-then-vframes-1
// invocation pattern used for thumbnailing elsewhere in the corpus.
type FFmpegFrameExtractor struct {
	FFmpegPath string
}

var _ gateway.FrameExtractor = (*FFmpegFrameExtractor)(nil)

func (e *FFmpegFrameExtractor) ExtractFrame(ctx context.Context, videoPath string, atSeconds float64, outputPath string) error {
	cmd := exec.CommandContext(ctx, e.ffmpeg(),
		"-y",
		"-ss", fmt.Sprintf("%.3f", atSeconds),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return domain.Retryable(fmt.Errorf("ffmpeg extract frame at %.3f: %w: %s", atSeconds, err, stderr.String()))
	}
	return nil
}

func (e *FFmpegFrameExtractor) ffmpeg() string {
	if e.FFmpegPath != "" {
		return e.FFmpegPath
	}
	return "ffmpeg"
}
