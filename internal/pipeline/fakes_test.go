package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"video-worker/internal/domain"
	"video-worker/internal/gateway"
)

// fakeStorage is an in-memory stand-in for gateway.Storage, enough to
// exercise every stage's skip-clause and write path without a database.
type fakeStorage struct {
	mu sync.Mutex

	videos       map[string]*domain.Video
	scenes       map[string][]domain.Scene
	frames       map[string][]domain.Frame
	segments     map[string][]domain.TranscriptSegment
	captions     map[string][]domain.FrameCaption
	frameToVideo map[string]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		videos:       map[string]*domain.Video{},
		scenes:       map[string][]domain.Scene{},
		frames:       map[string][]domain.Frame{},
		segments:     map[string][]domain.TranscriptSegment{},
		captions:     map[string][]domain.FrameCaption{},
		frameToVideo: map[string]string{},
	}
}

func (s *fakeStorage) ClaimNextJob(ctx context.Context) (*gateway.ClaimedJob, error) {
	return nil, errors.New("not used in pipeline tests")
}
func (s *fakeStorage) FailJob(ctx context.Context, jobID, message string) error   { return nil }
func (s *fakeStorage) CompleteJob(ctx context.Context, jobID, videoID string) error { return nil }
func (s *fakeStorage) ResetJob(ctx context.Context, jobID, message string) error  { return nil }

func (s *fakeStorage) FetchVideo(ctx context.Context, videoID string) (*domain.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[videoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *fakeStorage) UpdateVideoNormalized(ctx context.Context, videoID, normalizedPath string, durationSec float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.videos[videoID]
	v.NormalizedPath = &normalizedPath
	v.DurationSec = &durationSec
	return nil
}

func (s *fakeStorage) HasScenes(ctx context.Context, videoID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scenes[videoID]) > 0, nil
}
func (s *fakeStorage) BulkInsertScenes(ctx context.Context, rows []domain.Scene) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.scenes[r.VideoID] = append(s.scenes[r.VideoID], r)
	}
	return nil
}
func (s *fakeStorage) ListScenes(ctx context.Context, videoID string) ([]domain.Scene, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Scene{}, s.scenes[videoID]...), nil
}

func (s *fakeStorage) HasFrames(ctx context.Context, videoID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames[videoID]) > 0, nil
}
func (s *fakeStorage) BulkInsertFrames(ctx context.Context, rows []domain.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		videoID := s.sceneOwner(r.SceneID)
		s.frames[videoID] = append(s.frames[videoID], r)
		s.frameToVideo[r.ID] = videoID
	}
	return nil
}
func (s *fakeStorage) ListFrames(ctx context.Context, videoID string) ([]domain.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Frame{}, s.frames[videoID]...), nil
}
func (s *fakeStorage) FramesMissingCaption(ctx context.Context, videoID string) ([]domain.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	captioned := map[string]bool{}
	for _, c := range s.captions[videoID] {
		captioned[c.FrameID] = true
	}
	var out []domain.Frame
	for _, f := range s.frames[videoID] {
		if !captioned[f.ID] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStorage) sceneOwner(sceneID string) string {
	for videoID, rows := range s.scenes {
		for _, r := range rows {
			if r.ID == sceneID {
				return videoID
			}
		}
	}
	return ""
}

func (s *fakeStorage) HasSegments(ctx context.Context, videoID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.segments[videoID]) > 0, nil
}
func (s *fakeStorage) BulkInsertSegments(ctx context.Context, rows []domain.TranscriptSegment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.segments[r.VideoID] = append(s.segments[r.VideoID], r)
	}
	return nil
}
func (s *fakeStorage) SegmentsMissingEmbedding(ctx context.Context, videoID string) ([]domain.TranscriptSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TranscriptSegment
	for _, seg := range s.segments[videoID] {
		if seg.Embedding == nil {
			out = append(out, seg)
		}
	}
	return out, nil
}
func (s *fakeStorage) UpdateSegmentEmbedding(ctx context.Context, id string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for videoID, rows := range s.segments {
		for i, r := range rows {
			if r.ID == id {
				s.segments[videoID][i].Embedding = vector
				return nil
			}
		}
	}
	return fmt.Errorf("segment %s not found", id)
}

func (s *fakeStorage) BulkInsertCaptions(ctx context.Context, rows []domain.FrameCaption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		videoID := s.frameToVideo[r.FrameID]
		s.captions[videoID] = append(s.captions[videoID], r)
	}
	return nil
}
func (s *fakeStorage) CaptionsMissingEmbedding(ctx context.Context, videoID string) ([]domain.FrameCaption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FrameCaption
	for _, c := range s.captions[videoID] {
		if c.Embedding == nil {
			out = append(out, c)
		}
	}
	return out, nil
}
func (s *fakeStorage) UpdateCaptionEmbedding(ctx context.Context, id string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for videoID, rows := range s.captions {
		for i, r := range rows {
			if r.ID == id {
				s.captions[videoID][i].Embedding = vector
				return nil
			}
		}
	}
	return fmt.Errorf("caption %s not found", id)
}

func (s *fakeStorage) PeekQueue(ctx context.Context, limit int) ([]gateway.QueueEntry, error) {
	return nil, nil
}
func (s *fakeStorage) Stats(ctx context.Context) (gateway.Stats, error) { return gateway.Stats{}, nil }
func (s *fakeStorage) Ping(ctx context.Context) error                  { return nil }

var _ gateway.Storage = (*fakeStorage)(nil)

// fakeBlob is a blob.Store backed by a real temp directory, since the
// Transcribe stage writes an actual SRT file through LocalPath. A relPath
// exists once it has been persisted, matching the seam a MinIO backend
// would need (a relPath can exist remotely before anything is cached
// locally), or when a file is already on disk under the temp directory.
type fakeBlob struct {
	mu        sync.Mutex
	baseDir   string
	persisted map[string]bool
}

func newFakeBlob(baseDir string) *fakeBlob {
	return &fakeBlob{baseDir: baseDir, persisted: map[string]bool{}}
}

func (b *fakeBlob) LocalPath(ctx context.Context, relPath string) (string, error) {
	full := filepath.Join(b.baseDir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	return full, nil
}
func (b *fakeBlob) Persist(ctx context.Context, relPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.persisted[relPath] = true
	return nil
}
func (b *fakeBlob) Exists(ctx context.Context, relPath string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.persisted[relPath] {
		return true, nil
	}
	_, err := os.Stat(filepath.Join(b.baseDir, relPath))
	if err != nil {
		return false, nil
	}
	return true, nil
}

// markPresent seeds a relPath as already existing, for tests exercising an
// input file that's expected to be there from the start (e.g. an upload).
func (b *fakeBlob) markPresent(relPath string) {
	full := filepath.Join(b.baseDir, relPath)
	_ = os.MkdirAll(filepath.Dir(full), 0o755)
	_ = os.WriteFile(full, []byte("fixture"), 0o644)
}

// fakeTranscoder, fakeSceneDetector, fakeFrameExtractor, fakeHasher,
// fakeTranscriber, fakeVision and fakeEmbedder are minimal, deterministic
// stand-ins for the §4.C media primitives.

type fakeTranscoder struct{}

func (fakeTranscoder) Transcode(ctx context.Context, inputPath, outputPath string) (gateway.TranscodeResult, error) {
	return gateway.TranscodeResult{NormalizedPath: outputPath, AudioPath: outputPath + ".wav", DurationSec: 42}, nil
}

type fakeSceneDetector struct {
	intervals []gateway.SceneInterval
}

func (f fakeSceneDetector) DetectScenes(ctx context.Context, videoPath string) ([]gateway.SceneInterval, error) {
	return f.intervals, nil
}

type fakeFrameExtractor struct{}

func (fakeFrameExtractor) ExtractFrame(ctx context.Context, videoPath string, atSeconds float64, outputPath string) error {
	return nil
}

// fakeHasher hands out hashes from a fixed table keyed by image path
// (unknown paths hash to all zeros), so dedup tests can control which
// frames collide without a real image.
type fakeHasher struct {
	byPath map[string]string
}

func (f fakeHasher) Hash(ctx context.Context, imagePath string) (string, error) {
	if h, ok := f.byPath[imagePath]; ok {
		return h, nil
	}
	return "0000000000000000", nil
}

type fakeTranscriber struct {
	chunks []gateway.TranscriptChunk
}

func (f fakeTranscriber) Transcribe(ctx context.Context, audioPath string) ([]gateway.TranscriptChunk, error) {
	return f.chunks, nil
}

type fakeVision struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeVision) Caption(ctx context.Context, imagePath string) (gateway.VisionResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return gateway.VisionResult{}, f.err
	}
	return gateway.VisionResult{Caption: "a scene at " + imagePath}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1, 2}
	}
	return out, nil
}
