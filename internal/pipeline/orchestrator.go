package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"video-worker/internal/domain"
	"video-worker/internal/gateway"
	"video-worker/internal/logging"
)

// Orchestrator runs the six stage modules in order for one claimed job,
// per the state machine in §4.E:
//
//	CLAIMED -> NORMALIZE -> TRANSCRIBE -> SCENES -> FRAMES -> VISION -> EMBEDDINGS -> DONE
//
// A stage's error is either fatal-for-job or retryable, per the taxonomy
// classified by the gateway and media primitives; the orchestrator itself
// never reclassifies, it only decides whether a stage is enabled and logs
// the named milestone after each one completes.
type Orchestrator struct {
	Deps *Deps
}

func NewOrchestrator(deps *Deps) *Orchestrator {
	return &Orchestrator{Deps: deps}
}

type stage struct {
	name      string
	milestone string
	enabled   bool
	run       func(context.Context, *Deps, *domain.Video) error
}

// Run executes the pipeline for job against video. It returns nil on
// success, or an error classified via domain.IsRetryable/domain.IsFatal
// for the caller (the job controller) to act on.
func (o *Orchestrator) Run(ctx context.Context, job *gateway.ClaimedJob) error {
	d := o.Deps
	log := d.Log.WithFields(logrus.Fields{"job_id": job.JobID, "video_id": job.VideoID})
	logging.Milestone(log, job.JobID, job.VideoID, "CLAIMED")

	video, err := d.Storage.FetchVideo(ctx, job.VideoID)
	if err != nil {
		return o.failed(log, job, fmt.Errorf("fetch video: %w", err))
	}

	stages := []stage{
		{"normalize", "NORMALIZED", true, Normalize},
		{"transcribe", "TRANSCRIBED", d.EnableTranscription, Transcribe},
		{"scenes", "SCENES", true, Scenes},
		{"frames", "FRAMES", true, Frames},
		{"vision", "VISION", d.EnableVisionAnalysis, Vision},
		{"embeddings", "EMBEDDINGS", d.EnableEmbeddings, Embeddings},
	}

	for _, s := range stages {
		if !s.enabled {
			continue
		}
		if err := s.run(ctx, d, video); err != nil {
			return o.failed(log, job, fmt.Errorf("%s: %w", s.name, err))
		}
		logging.Milestone(log, job.JobID, job.VideoID, s.milestone)
	}

	logging.Milestone(log, job.JobID, job.VideoID, "READY")
	return nil
}

func (o *Orchestrator) failed(log logrus.FieldLogger, job *gateway.ClaimedJob, err error) error {
	logging.Milestone(log, job.JobID, job.VideoID, "FAILED")
	return err
}
