// Package pipeline implements the six idempotent processing stages of
// §4.D and the orchestrator of §4.E that runs them in order for one
// claimed job. Every stage has the same shape: read prior state from the
// storage gateway, skip if already complete for this video, otherwise do
// the work through a media primitive and persist the result — which is
// what makes a crashed-and-reclaimed job safe to rerun from scratch.
package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"video-worker/internal/blob"
	"video-worker/internal/gateway"
)

// Deps bundles every capability a stage needs. It is passed by pointer
// through the whole pipeline package rather than threading a dozen
// parameters through each stage function.
type Deps struct {
	Storage        gateway.Storage
	Blob           blob.Store
	Transcoder     gateway.Transcoder
	SceneDetector  gateway.SceneDetector
	FrameExtractor gateway.FrameExtractor
	Hasher         gateway.PerceptualHasher
	Transcriber    gateway.Transcriber
	Vision         gateway.VisionCaptioner
	Embedder       gateway.Embedder

	MaxFramesPerVideo   int
	VisionMaxConcurrent int

	EnableTranscription  bool
	EnableVisionAnalysis bool
	EnableEmbeddings     bool

	Log logrus.FieldLogger
}

// §6's fixed filesystem layout, expressed as pure functions of a video ID
// so every stage can rederive a path without threading it through state.
func normalizedRelPath(videoID string) string {
	return fmt.Sprintf("processed/%s/normalized.mp4", videoID)
}
func audioRelPath(videoID string) string { return fmt.Sprintf("processed/%s/audio.wav", videoID) }
func frameRelPath(videoID string, sceneIdx int) string {
	return fmt.Sprintf("frames/%s/scene_%03d.jpg", videoID, sceneIdx)
}
func subsRelPath(videoID string) string { return fmt.Sprintf("subs/%s.srt", videoID) }
