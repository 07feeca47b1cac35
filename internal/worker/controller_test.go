package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"video-worker/internal/domain"
	"video-worker/internal/gateway"
)

// fakeStorage exercises only the subset of gateway.Storage the controller
// itself touches: claim/complete/reset/fail. Everything else is left
// unimplemented since the fake orchestrator below never calls down into it.
type fakeStorage struct {
	mu sync.Mutex

	pending   []gateway.ClaimedJob
	completed []string
	reset     []string
	failed    []string
}

func (s *fakeStorage) ClaimNextJob(ctx context.Context) (*gateway.ClaimedJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil, nil
	}
	job := s.pending[0]
	s.pending = s.pending[1:]
	return &job, nil
}

func (s *fakeStorage) FailJob(ctx context.Context, jobID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, jobID)
	return nil
}
func (s *fakeStorage) CompleteJob(ctx context.Context, jobID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, jobID)
	return nil
}
func (s *fakeStorage) ResetJob(ctx context.Context, jobID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset = append(s.reset, jobID)
	return nil
}

func (s *fakeStorage) FetchVideo(ctx context.Context, videoID string) (*domain.Video, error) {
	return nil, domain.Fatal(errors.New("fetch video should not be reached, orchestrator is faked out"))
}
func (s *fakeStorage) UpdateVideoNormalized(ctx context.Context, videoID, normalizedPath string, durationSec float64) error {
	return nil
}
func (s *fakeStorage) HasScenes(ctx context.Context, videoID string) (bool, error)   { return false, nil }
func (s *fakeStorage) BulkInsertScenes(ctx context.Context, rows []domain.Scene) error { return nil }
func (s *fakeStorage) ListScenes(ctx context.Context, videoID string) ([]domain.Scene, error) {
	return nil, nil
}
func (s *fakeStorage) HasFrames(ctx context.Context, videoID string) (bool, error)   { return false, nil }
func (s *fakeStorage) BulkInsertFrames(ctx context.Context, rows []domain.Frame) error { return nil }
func (s *fakeStorage) ListFrames(ctx context.Context, videoID string) ([]domain.Frame, error) {
	return nil, nil
}
func (s *fakeStorage) FramesMissingCaption(ctx context.Context, videoID string) ([]domain.Frame, error) {
	return nil, nil
}
func (s *fakeStorage) HasSegments(ctx context.Context, videoID string) (bool, error) { return false, nil }
func (s *fakeStorage) BulkInsertSegments(ctx context.Context, rows []domain.TranscriptSegment) error {
	return nil
}
func (s *fakeStorage) SegmentsMissingEmbedding(ctx context.Context, videoID string) ([]domain.TranscriptSegment, error) {
	return nil, nil
}
func (s *fakeStorage) UpdateSegmentEmbedding(ctx context.Context, id string, vector []float32) error {
	return nil
}
func (s *fakeStorage) BulkInsertCaptions(ctx context.Context, rows []domain.FrameCaption) error {
	return nil
}
func (s *fakeStorage) CaptionsMissingEmbedding(ctx context.Context, videoID string) ([]domain.FrameCaption, error) {
	return nil, nil
}
func (s *fakeStorage) UpdateCaptionEmbedding(ctx context.Context, id string, vector []float32) error {
	return nil
}
func (s *fakeStorage) PeekQueue(ctx context.Context, limit int) ([]gateway.QueueEntry, error) {
	return nil, nil
}
func (s *fakeStorage) Stats(ctx context.Context) (gateway.Stats, error) { return gateway.Stats{}, nil }
func (s *fakeStorage) Ping(ctx context.Context) error                  { return nil }

var _ gateway.Storage = (*fakeStorage)(nil)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestControllerCompletesSuccessfulJob(t *testing.T) {
	storage := &fakeStorage{pending: []gateway.ClaimedJob{{JobID: "j1", VideoID: "v1", Attempts: 1}}}

	c := &Controller{
		Storage:      storage,
		PollInterval: 5 * time.Millisecond,
		MaxAttempts:  3,
		Log:          testLogger(),
	}

	done := make(chan struct{})
	c.runOnce = func(ctx context.Context, job *gateway.ClaimedJob) error { close(done); return nil }

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	go c.Run(ctx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("controller never ran the claimed job")
	}

	require.Eventually(t, func() bool {
		storage.mu.Lock()
		defer storage.mu.Unlock()
		return len(storage.completed) == 1 && storage.completed[0] == "j1"
	}, time.Second, 5*time.Millisecond)
}

func TestControllerResetsRetryableFailureUnderAttemptLimit(t *testing.T) {
	storage := &fakeStorage{pending: []gateway.ClaimedJob{{JobID: "j1", VideoID: "v1", Attempts: 1}}}

	c := &Controller{
		Storage:      storage,
		PollInterval: 5 * time.Millisecond,
		MaxAttempts:  3,
		Log:          testLogger(),
	}
	c.runOnce = func(ctx context.Context, job *gateway.ClaimedJob) error {
		return domain.Retryable(errors.New("transient db error"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	require.Equal(t, []string{"j1"}, storage.reset)
	require.Empty(t, storage.failed)
	require.Empty(t, storage.completed)
}

func TestControllerFailsJobAtAttemptLimit(t *testing.T) {
	storage := &fakeStorage{pending: []gateway.ClaimedJob{{JobID: "j1", VideoID: "v1", Attempts: 3}}}

	c := &Controller{
		Storage:      storage,
		PollInterval: 5 * time.Millisecond,
		MaxAttempts:  3,
		Log:          testLogger(),
	}
	c.runOnce = func(ctx context.Context, job *gateway.ClaimedJob) error {
		return domain.Retryable(errors.New("still failing"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	require.Equal(t, []string{"j1"}, storage.failed)
	require.Empty(t, storage.reset)
}

func TestControllerFailsJobImmediatelyOnFatalError(t *testing.T) {
	storage := &fakeStorage{pending: []gateway.ClaimedJob{{JobID: "j1", VideoID: "v1", Attempts: 1}}}

	c := &Controller{
		Storage:      storage,
		PollInterval: 5 * time.Millisecond,
		MaxAttempts:  3,
		Log:          testLogger(),
	}
	c.runOnce = func(ctx context.Context, job *gateway.ClaimedJob) error {
		return domain.Fatal(errors.New("input file missing"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	c.Run(ctx)

	require.Equal(t, []string{"j1"}, storage.failed)
	require.Empty(t, storage.reset)
}

func TestControllerBacksOffOnEmptyQueueThenStopsOnCancel(t *testing.T) {
	storage := &fakeStorage{}

	c := &Controller{
		Storage:      storage,
		PollInterval: 5 * time.Millisecond,
		MaxAttempts:  3,
		Log:          testLogger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Run(ctx)
	require.NoError(t, err)
}
