package gateway

import "context"

// TranscodeResult is what Transcode reports back after normalizing a clip.
type TranscodeResult struct {
	NormalizedPath string
	AudioPath      string
	DurationSec    float64
}

// SceneInterval is one half-open [TStart, TEnd) span detected in a video.
type SceneInterval struct {
	TStart float64
	TEnd   float64
}

// TranscriptChunk is one utterance produced by Transcribe.
type TranscriptChunk struct {
	TStart float64
	TEnd   float64
	Text   string
}

// VisionResult is the structured payload a VisionCaption call must
// conform to (§6 schema) before a caption row is persisted.
type VisionResult struct {
	Caption      string
	Controls     []VisionControl
	TextOnScreen []VisionText
}

type VisionControl struct {
	Type     string
	Label    string
	Position string
}

type VisionText struct {
	Text     string
	Position string
}

// Transcoder renders a source clip to the fixed normalized format (720p30
// video, 16kHz mono audio) and reports its duration.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string) (TranscodeResult, error)
}

// SceneDetector splits a normalized clip into adjacent, half-open scene
// intervals covering its full duration.
type SceneDetector interface {
	DetectScenes(ctx context.Context, videoPath string) ([]SceneInterval, error)
}

// FrameExtractor writes a single JPEG at the requested timestamp.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoPath string, atSeconds float64, outputPath string) error
}

// PerceptualHasher computes a 64-bit difference hash of a decoded image,
// hex-encoded for storage. Hamming distance between two hashes correlates
// with perceptual similarity of the source frames.
type PerceptualHasher interface {
	Hash(ctx context.Context, imagePath string) (string, error)
}

// Transcriber turns an extracted audio track into an ordered, non-overlapping
// list of transcript chunks covering the whole track.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]TranscriptChunk, error)
}

// VisionCaptioner analyzes a single frame image and returns a caption plus
// structured entities, already validated against the §6 schema.
type VisionCaptioner interface {
	Caption(ctx context.Context, imagePath string) (VisionResult, error)
}

// Embedder maps a batch of strings to fixed-length vectors, one per input,
// preserving input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
