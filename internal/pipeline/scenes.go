package pipeline

import (
	"context"
	"fmt"

	"video-worker/internal/domain"
	"video-worker/internal/ids"
)

// Scenes is stage §4.D.3: split the normalized video into adjacent,
// half-open scene intervals and record them with a dense index.
func Scenes(ctx context.Context, d *Deps, video *domain.Video) error {
	has, err := d.Storage.HasScenes(ctx, video.ID)
	if err != nil {
		return domain.Retryable(fmt.Errorf("scenes: check existing rows: %w", err))
	}
	if has {
		return nil
	}

	videoPath, err := d.Blob.LocalPath(ctx, normalizedRelPath(video.ID))
	if err != nil {
		return domain.Retryable(fmt.Errorf("scenes: resolve normalized path: %w", err))
	}

	intervals, err := d.SceneDetector.DetectScenes(ctx, videoPath)
	if err != nil {
		return err
	}
	if len(intervals) == 0 {
		return domain.Fatal(fmt.Errorf("scenes: detector returned no intervals for video %s", video.ID))
	}

	rows := make([]domain.Scene, len(intervals))
	for i, iv := range intervals {
		rows[i] = domain.Scene{
			ID:      ids.Scene(video.ID, i),
			VideoID: video.ID,
			Idx:     i,
			TStart:  iv.TStart,
			TEnd:    iv.TEnd,
		}
	}

	if err := d.Storage.BulkInsertScenes(ctx, rows); err != nil {
		return domain.Retryable(fmt.Errorf("scenes: bulk insert: %w", err))
	}
	return nil
}
