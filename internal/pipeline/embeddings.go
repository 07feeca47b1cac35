package pipeline

import (
	"context"
	"fmt"
	"strings"

	"video-worker/internal/domain"
)

// embedBatchSize is the maximum number of strings sent to Embed in one
// call (§4.D.6).
const embedBatchSize = 100

// Embeddings is stage §4.D.6: embed every transcript segment and frame
// caption for this video that doesn't have a vector yet.
func Embeddings(ctx context.Context, d *Deps, video *domain.Video) error {
	segments, err := d.Storage.SegmentsMissingEmbedding(ctx, video.ID)
	if err != nil {
		return domain.Retryable(fmt.Errorf("embeddings: list segments: %w", err))
	}
	if err := embedSegments(ctx, d, segments); err != nil {
		return err
	}

	captions, err := d.Storage.CaptionsMissingEmbedding(ctx, video.ID)
	if err != nil {
		return domain.Retryable(fmt.Errorf("embeddings: list captions: %w", err))
	}
	if err := embedCaptions(ctx, d, captions); err != nil {
		return err
	}

	return nil
}

func embedSegments(ctx context.Context, d *Deps, segments []domain.TranscriptSegment) error {
	for start := 0; start < len(segments); start += embedBatchSize {
		batch := segments[start:min(start+embedBatchSize, len(segments))]

		texts := make([]string, len(batch))
		for i, s := range batch {
			texts[i] = s.Text
		}

		vectors, err := d.Embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		for i, s := range batch {
			if err := d.Storage.UpdateSegmentEmbedding(ctx, s.ID, vectors[i]); err != nil {
				return domain.Retryable(fmt.Errorf("embeddings: update segment %s: %w", s.ID, err))
			}
		}
	}
	return nil
}

func embedCaptions(ctx context.Context, d *Deps, captions []domain.FrameCaption) error {
	for start := 0; start < len(captions); start += embedBatchSize {
		batch := captions[start:min(start+embedBatchSize, len(captions))]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = captionEmbedText(c)
		}

		vectors, err := d.Embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		for i, c := range batch {
			if err := d.Storage.UpdateCaptionEmbedding(ctx, c.ID, vectors[i]); err != nil {
				return domain.Retryable(fmt.Errorf("embeddings: update caption %s: %w", c.ID, err))
			}
		}
	}
	return nil
}

// captionEmbedText folds a caption's structured entities into one string
// so the embedding captures controls and on-screen text, not just the
// free-form caption sentence.
func captionEmbedText(c domain.FrameCaption) string {
	var b strings.Builder
	b.WriteString("Caption: ")
	b.WriteString(c.Caption)

	if len(c.Entities.Controls) > 0 {
		parts := make([]string, len(c.Entities.Controls))
		for i, ctrl := range c.Entities.Controls {
			parts[i] = fmt.Sprintf("%s (%s) at %s", ctrl.Label, ctrl.Type, ctrl.Position)
		}
		b.WriteString(" Controls: ")
		b.WriteString(strings.Join(parts, "; "))
	}

	if len(c.Entities.TextOnScreen) > 0 {
		parts := make([]string, len(c.Entities.TextOnScreen))
		for i, t := range c.Entities.TextOnScreen {
			parts[i] = t.Text
		}
		b.WriteString(" Text on screen: ")
		b.WriteString(strings.Join(parts, "; "))
	}

	return b.String()
}
