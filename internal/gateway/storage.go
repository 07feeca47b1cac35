// Package gateway declares the capability interfaces the pipeline and the
// job controller depend on. Concrete implementations (Postgres, local
// filesystem, MinIO, an OpenAI-compatible HTTP API, ...) live under
// internal/store, internal/blob and internal/media and satisfy these
// interfaces; nothing above this package reaches for a concrete type.
package gateway

import (
	"context"

	"video-worker/internal/domain"
)

// ClaimedJob is what claim_next_job hands back to the controller.
type ClaimedJob struct {
	JobID    string
	VideoID  string
	Attempts int
}

// QueueEntry is one row surfaced by the read-only peek projection.
type QueueEntry struct {
	JobID        string
	VideoID      string
	OriginalPath string
	CreatedAt    string
}

// Stats is the read-only counters projection (§4.G).
type Stats struct {
	PendingJobs    int64
	ProcessingJobs int64
	DoneJobs       int64
	FailedJobs     int64
}

// Storage is the narrow, typed set of operations over the relational store
// described in §4.B. Every write is conflict-tolerant on its natural key so
// that re-running a stage after a crash never produces duplicate rows.
type Storage interface {
	// ClaimNextJob atomically selects one pending job in FIFO order,
	// skipping rows locked by concurrent workers, transitions it to
	// processing and increments attempts — all in one transaction. It
	// returns (nil, nil) when the queue is empty.
	ClaimNextJob(ctx context.Context) (*ClaimedJob, error)

	FailJob(ctx context.Context, jobID, message string) error
	// CompleteJob marks the job done and its parent video ready.
	CompleteJob(ctx context.Context, jobID, videoID string) error
	// ResetJob restores a job to pending without losing its attempt
	// count, recording the error that caused the reset.
	ResetJob(ctx context.Context, jobID, message string) error

	FetchVideo(ctx context.Context, videoID string) (*domain.Video, error)
	UpdateVideoNormalized(ctx context.Context, videoID, normalizedPath string, durationSec float64) error

	HasScenes(ctx context.Context, videoID string) (bool, error)
	BulkInsertScenes(ctx context.Context, rows []domain.Scene) error
	ListScenes(ctx context.Context, videoID string) ([]domain.Scene, error)

	HasFrames(ctx context.Context, videoID string) (bool, error)
	BulkInsertFrames(ctx context.Context, rows []domain.Frame) error
	ListFrames(ctx context.Context, videoID string) ([]domain.Frame, error)
	FramesMissingCaption(ctx context.Context, videoID string) ([]domain.Frame, error)

	HasSegments(ctx context.Context, videoID string) (bool, error)
	BulkInsertSegments(ctx context.Context, rows []domain.TranscriptSegment) error
	SegmentsMissingEmbedding(ctx context.Context, videoID string) ([]domain.TranscriptSegment, error)
	UpdateSegmentEmbedding(ctx context.Context, id string, vector []float32) error

	BulkInsertCaptions(ctx context.Context, rows []domain.FrameCaption) error
	CaptionsMissingEmbedding(ctx context.Context, videoID string) ([]domain.FrameCaption, error)
	UpdateCaptionEmbedding(ctx context.Context, id string, vector []float32) error

	PeekQueue(ctx context.Context, limit int) ([]QueueEntry, error)
	Stats(ctx context.Context) (Stats, error)

	Ping(ctx context.Context) error
}
