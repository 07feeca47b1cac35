package pipeline

import (
	"context"
	"fmt"
	"os"

	"video-worker/internal/domain"
	"video-worker/internal/ids"
	"video-worker/internal/subtitle"
)

// Transcribe is stage §4.D.2: transcribe the normalized audio track and
// write both the transcript_segments rows and the SRT sidecar.
func Transcribe(ctx context.Context, d *Deps, video *domain.Video) error {
	has, err := d.Storage.HasSegments(ctx, video.ID)
	if err != nil {
		return domain.Retryable(fmt.Errorf("transcribe: check existing segments: %w", err))
	}
	if has {
		return nil
	}

	audioExists, err := d.Blob.Exists(ctx, audioRelPath(video.ID))
	if err != nil {
		return domain.Retryable(fmt.Errorf("transcribe: check audio sidecar: %w", err))
	}
	if !audioExists {
		return domain.Fatal(fmt.Errorf("transcribe: audio sidecar missing for video %s", video.ID))
	}

	audioPath, err := d.Blob.LocalPath(ctx, audioRelPath(video.ID))
	if err != nil {
		return domain.Retryable(fmt.Errorf("transcribe: resolve audio path: %w", err))
	}

	chunks, err := d.Transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return err
	}

	segments := make([]domain.TranscriptSegment, len(chunks))
	for i, c := range chunks {
		segments[i] = domain.TranscriptSegment{
			ID:      ids.Segment(video.ID, i),
			VideoID: video.ID,
			TStart:  c.TStart,
			TEnd:    c.TEnd,
			Text:    c.Text,
		}
	}

	if err := d.Storage.BulkInsertSegments(ctx, segments); err != nil {
		return domain.Retryable(fmt.Errorf("transcribe: bulk insert segments: %w", err))
	}

	if err := writeSubtitleSidecar(ctx, d, video.ID, segments); err != nil {
		return domain.Retryable(fmt.Errorf("transcribe: write subtitle sidecar: %w", err))
	}

	return nil
}

func writeSubtitleSidecar(ctx context.Context, d *Deps, videoID string, segments []domain.TranscriptSegment) error {
	srtPath, err := d.Blob.LocalPath(ctx, subsRelPath(videoID))
	if err != nil {
		return err
	}
	f, err := os.Create(srtPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := subtitle.WriteSRT(f, segments); err != nil {
		return err
	}
	return d.Blob.Persist(ctx, subsRelPath(videoID))
}
