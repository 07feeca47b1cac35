package pipeline

import (
	"context"
	"fmt"
	"math"

	"video-worker/internal/domain"
	"video-worker/internal/ids"
	"video-worker/internal/media"
)

// dedupHammingThreshold is the maximum Hamming distance at which two
// frames are still considered near-duplicates (§4.D.4.3).
const dedupHammingThreshold = 6

// candidateFrame is one extracted-but-not-yet-persisted frame, carried
// through extraction and dedup before a dense idx is assigned.
type candidateFrame struct {
	scene   domain.Scene
	relPath string
	hash    string
}

// Frames is stage §4.D.4: pick a bounded set of representative scenes,
// extract a midpoint frame from each, and drop near-duplicates by
// perceptual hash while always keeping the first and last selected scenes.
func Frames(ctx context.Context, d *Deps, video *domain.Video) error {
	has, err := d.Storage.HasFrames(ctx, video.ID)
	if err != nil {
		return domain.Retryable(fmt.Errorf("frames: check existing rows: %w", err))
	}
	if has {
		return nil
	}

	scenes, err := d.Storage.ListScenes(ctx, video.ID)
	if err != nil {
		return domain.Retryable(fmt.Errorf("frames: list scenes: %w", err))
	}
	if len(scenes) == 0 {
		return domain.Fatal(fmt.Errorf("frames: no scenes recorded for video %s", video.ID))
	}

	videoPath, err := d.Blob.LocalPath(ctx, normalizedRelPath(video.ID))
	if err != nil {
		return domain.Retryable(fmt.Errorf("frames: resolve normalized path: %w", err))
	}

	candidateScenes := selectCandidateScenes(scenes, d.MaxFramesPerVideo)

	extracted := make([]candidateFrame, 0, len(candidateScenes))
	for _, scene := range candidateScenes {
		relPath := frameRelPath(video.ID, scene.Idx)
		localPath, err := d.Blob.LocalPath(ctx, relPath)
		if err != nil {
			return domain.Retryable(fmt.Errorf("frames: resolve frame path: %w", err))
		}
		if err := d.FrameExtractor.ExtractFrame(ctx, videoPath, scene.Midpoint(), localPath); err != nil {
			return err
		}
		hash, err := d.Hasher.Hash(ctx, localPath)
		if err != nil {
			return domain.Retryable(fmt.Errorf("frames: hash %s: %w", localPath, err))
		}
		extracted = append(extracted, candidateFrame{scene: scene, relPath: relPath, hash: hash})
	}

	accepted := dedupeFrames(extracted, dedupHammingThreshold)

	rows := make([]domain.Frame, 0, len(accepted))
	for i, f := range accepted {
		if err := d.Blob.Persist(ctx, f.relPath); err != nil {
			return domain.Retryable(fmt.Errorf("frames: persist %s: %w", f.relPath, err))
		}
		rows = append(rows, domain.Frame{
			ID:      ids.Frame(video.ID, i),
			SceneID: f.scene.ID,
			TFrame:  f.scene.Midpoint(),
			Path:    f.relPath,
			Phash:   f.hash,
		})
	}

	if err := d.Storage.BulkInsertFrames(ctx, rows); err != nil {
		return domain.Retryable(fmt.Errorf("frames: bulk insert: %w", err))
	}
	return nil
}

// selectCandidateScenes implements §4.D.4.1. When every scene fits under
// the budget, all of them are candidates. Otherwise it picks maxFrames
// indices spread as evenly as possible across [0, N-1], always including
// the first and last scene, via round(i*(N-1)/(K-1)) for i in [0, K-1].
func selectCandidateScenes(scenes []domain.Scene, maxFrames int) []domain.Scene {
	n := len(scenes)
	if maxFrames <= 0 || n <= maxFrames {
		return scenes
	}
	k := maxFrames
	if k == 1 {
		return scenes[:1]
	}

	seen := make(map[int]struct{}, k)
	indices := make([]int, 0, k)
	for i := 0; i < k; i++ {
		idx := int(math.Round(float64(i) * float64(n-1) / float64(k-1)))
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		indices = append(indices, idx)
	}

	out := make([]domain.Scene, len(indices))
	for i, idx := range indices {
		out[i] = scenes[idx]
	}
	return out
}

// dedupeFrames implements §4.D.4.3: iterate candidates in scene order,
// accepting a frame only if it is more than dedupHammingThreshold bits
// away from every already-accepted frame, except the first and last
// candidate scenes, which are always retained.
func dedupeFrames(frames []candidateFrame, threshold int) []candidateFrame {
	if len(frames) == 0 {
		return frames
	}

	firstIdx := frames[0].scene.Idx
	lastIdx := frames[len(frames)-1].scene.Idx

	accepted := make([]candidateFrame, 0, len(frames))
	for _, f := range frames {
		if f.scene.Idx == firstIdx || f.scene.Idx == lastIdx {
			accepted = append(accepted, f)
			continue
		}

		duplicate := false
		for _, a := range accepted {
			if media.Hamming(f.hash, a.hash) <= threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			accepted = append(accepted, f)
		}
	}
	return accepted
}
