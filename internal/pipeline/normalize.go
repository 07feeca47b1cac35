package pipeline

import (
	"context"
	"fmt"

	"video-worker/internal/domain"
)

// Normalize is stage §4.D.1: transcode the uploaded source to 720p30 video
// plus a 16kHz mono audio sidecar, then record the result on the video row.
func Normalize(ctx context.Context, d *Deps, video *domain.Video) error {
	if video.IsNormalized() {
		exists, err := d.Blob.Exists(ctx, normalizedRelPath(video.ID))
		if err != nil {
			return domain.Retryable(fmt.Errorf("normalize: check existing output: %w", err))
		}
		if exists {
			return nil
		}
	}

	inputExists, err := d.Blob.Exists(ctx, video.OriginalPath)
	if err != nil {
		return domain.Retryable(fmt.Errorf("normalize: check input file: %w", err))
	}
	if !inputExists {
		return domain.Fatal(fmt.Errorf("normalize: input file missing: %s", video.OriginalPath))
	}

	inputPath, err := d.Blob.LocalPath(ctx, video.OriginalPath)
	if err != nil {
		return domain.Retryable(fmt.Errorf("normalize: resolve input path: %w", err))
	}

	outputPath, err := d.Blob.LocalPath(ctx, normalizedRelPath(video.ID))
	if err != nil {
		return domain.Retryable(fmt.Errorf("normalize: resolve output path: %w", err))
	}

	result, err := d.Transcoder.Transcode(ctx, inputPath, outputPath)
	if err != nil {
		return err
	}

	if err := d.Blob.Persist(ctx, normalizedRelPath(video.ID)); err != nil {
		return domain.Retryable(fmt.Errorf("normalize: persist video: %w", err))
	}
	if err := d.Blob.Persist(ctx, audioRelPath(video.ID)); err != nil {
		return domain.Retryable(fmt.Errorf("normalize: persist audio: %w", err))
	}

	if err := d.Storage.UpdateVideoNormalized(ctx, video.ID, normalizedRelPath(video.ID), result.DurationSec); err != nil {
		return domain.Retryable(fmt.Errorf("normalize: update video row: %w", err))
	}
	return nil
}
