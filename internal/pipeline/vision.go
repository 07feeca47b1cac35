package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"video-worker/internal/domain"
	"video-worker/internal/gateway"
	"video-worker/internal/ids"
)

// visionPerFrameRetries bounds the local retries a single frame gets after
// a schema-validation failure before it is skipped with a warning (§4.D.5).
const visionPerFrameRetries = 2

// Vision is stage §4.D.5: caption every frame lacking one, dispatched with
// bounded concurrency. Completion order is arbitrary but the result set is
// assembled back into frame-index order before it is persisted.
func Vision(ctx context.Context, d *Deps, video *domain.Video) error {
	frames, err := d.Storage.FramesMissingCaption(ctx, video.ID)
	if err != nil {
		return domain.Retryable(err)
	}
	if len(frames) == 0 {
		return nil
	}

	concurrency := d.VisionMaxConcurrent
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]*domain.FrameCaption, len(frames))
	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup
	dispatchFailed := false

	for i, frame := range frames {
		if err := sem.Acquire(ctx, 1); err != nil {
			dispatchFailed = true
			break
		}
		i, frame := i, frame
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			caption, capErr := captionOneFrame(ctx, d, frame)
			if capErr != nil {
				d.Log.WithError(capErr).WithField("frame_id", frame.ID).
					Warn("vision caption skipped after exhausting per-frame retries")
				return
			}
			results[i] = caption
		}()
	}
	wg.Wait()

	// Fallback: a semaphore acquire only fails when ctx is done or the
	// context is otherwise unusable for concurrent dispatch; whatever
	// frames didn't get a result yet are retried sequentially instead of
	// abandoning the stage outright.
	if dispatchFailed {
		d.Log.Warn("vision concurrent dispatch failed, falling back to sequential captioning")
		for i, frame := range frames {
			if results[i] != nil {
				continue
			}
			caption, capErr := captionOneFrame(ctx, d, frame)
			if capErr != nil {
				d.Log.WithError(capErr).WithField("frame_id", frame.ID).
					Warn("vision caption skipped after exhausting per-frame retries")
				continue
			}
			results[i] = caption
		}
	}

	rows := make([]domain.FrameCaption, 0, len(frames))
	for _, c := range results {
		if c != nil {
			rows = append(rows, *c)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	if err := d.Storage.BulkInsertCaptions(ctx, rows); err != nil {
		return domain.Retryable(err)
	}
	return nil
}

func captionOneFrame(ctx context.Context, d *Deps, frame domain.Frame) (*domain.FrameCaption, error) {
	localPath, err := d.Blob.LocalPath(ctx, frame.Path)
	if err != nil {
		return nil, domain.Retryable(err)
	}

	var lastErr error
	for attempt := 0; attempt <= visionPerFrameRetries; attempt++ {
		result, capErr := d.Vision.Caption(ctx, localPath)
		if capErr == nil {
			return &domain.FrameCaption{
				ID:       ids.Caption(frame.ID),
				FrameID:  frame.ID,
				Caption:  result.Caption,
				Entities: entitiesFromVisionResult(result),
			}, nil
		}
		lastErr = capErr
		if domain.IsFatal(capErr) {
			return nil, capErr
		}
	}
	return nil, lastErr
}

func entitiesFromVisionResult(result gateway.VisionResult) domain.Entities {
	controls := make([]domain.Control, len(result.Controls))
	for i, c := range result.Controls {
		controls[i] = domain.Control{Type: c.Type, Label: c.Label, Position: c.Position}
	}
	textOnScreen := make([]domain.TextOnScreen, len(result.TextOnScreen))
	for i, t := range result.TextOnScreen {
		textOnScreen[i] = domain.TextOnScreen{Text: t.Text, Position: t.Position}
	}
	return domain.Entities{Controls: controls, TextOnScreen: textOnScreen}
}
