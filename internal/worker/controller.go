// Package worker implements the job controller of §4.F: the top-level
// claim/run/retry loop that owns a single worker process's interaction
// with the shared queue. Safety across concurrent worker processes comes
// entirely from the storage gateway's claim transaction — this package
// adds no locking of its own.
package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"video-worker/internal/domain"
	"video-worker/internal/gateway"
	"video-worker/internal/pipeline"
)

// backoffCap bounds the exponential backoff applied after an empty claim,
// per §4.F.1 ("apply exponential backoff up to a capped maximum").
const backoffCap = 30 * time.Second

// shutdownGrace is how long Run waits for an in-flight job to reach its
// next checkpoint after a shutdown signal before giving up and resetting
// the job row to pending, per §4.F.4.
const shutdownGrace = 2 * time.Minute

// Controller runs the poll/claim/orchestrate/retry loop described in §4.F.
type Controller struct {
	Storage      gateway.Storage
	Orchestrator *pipeline.Orchestrator

	PollInterval time.Duration
	MaxAttempts  int

	// Hints, if non-nil, is a best-effort channel the loop also selects
	// on: a value wakes the loop immediately and resets the backoff,
	// without weakening the pure-polling correctness guarantee (§9
	// addition J). Nil means "poll only".
	Hints <-chan struct{}

	Log logrus.FieldLogger

	// runOnce is a seam for tests: it defaults to c.Orchestrator.Run and
	// is only ever overridden by controller_test.go to exercise the
	// claim/retry/fail bookkeeping without a real pipeline.
	runOnce func(ctx context.Context, job *gateway.ClaimedJob) error
}

// Run blocks until ctx is cancelled. On cancellation it stops claiming new
// jobs and, if a job is currently in flight, waits up to shutdownGrace for
// it to finish before returning — per §4.F.4 "never abandon a job row in
// processing on clean shutdown".
func (c *Controller) Run(ctx context.Context) error {
	backoff := c.PollInterval

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		claimed, err := c.Storage.ClaimNextJob(ctx)
		if err != nil {
			c.Log.WithError(err).Warn("claim_next_job failed, backing off")
			if !c.sleep(ctx, &backoff) {
				return nil
			}
			continue
		}

		if claimed == nil {
			if !c.sleep(ctx, &backoff) {
				return nil
			}
			continue
		}

		backoff = c.PollInterval
		c.runClaimed(ctx, claimed)
	}
}

// runClaimed drives one claimed job through the orchestrator and applies
// §4.F.3's disposition rules to the result. It is run with a detached
// context so a caller cancellation during shutdown does not abort a job
// mid-stage; instead, once the caller's context is cancelled the job gets
// shutdownGrace to finish, after which its context is cancelled and the
// row is reset to pending.
func (c *Controller) runClaimed(parent context.Context, claimed *gateway.ClaimedJob) {
	bookkeepingCtx := context.WithoutCancel(parent)
	jobCtx, cancel := context.WithCancel(bookkeepingCtx)
	defer cancel()
	stopGrace := context.AfterFunc(parent, func() {
		select {
		case <-time.After(shutdownGrace):
			cancel()
		case <-jobCtx.Done():
		}
	})
	defer stopGrace()

	run := c.runOnce
	if run == nil {
		run = c.Orchestrator.Run
	}
	err := run(jobCtx, claimed)
	switch {
	case err == nil:
		if completeErr := c.Storage.CompleteJob(bookkeepingCtx, claimed.JobID, claimed.VideoID); completeErr != nil {
			c.Log.WithError(completeErr).WithField("job_id", claimed.JobID).Error("complete_job failed")
		}
	case jobCtx.Err() != nil || (domain.IsRetryable(err) && claimed.Attempts < c.MaxAttempts):
		if resetErr := c.Storage.ResetJob(bookkeepingCtx, claimed.JobID, err.Error()); resetErr != nil {
			c.Log.WithError(resetErr).WithField("job_id", claimed.JobID).Error("reset_job failed")
		}
	default:
		if failErr := c.Storage.FailJob(bookkeepingCtx, claimed.JobID, err.Error()); failErr != nil {
			c.Log.WithError(failErr).WithField("job_id", claimed.JobID).Error("fail_job failed")
		}
	}
}

// sleep waits for either the backoff duration *d, ctx cancellation, or a
// poll hint, whichever comes first. A full wait doubles *d (up to
// backoffCap); a hint resets it to PollInterval. It returns false when ctx
// was the reason it returned, so Run knows to stop.
func (c *Controller) sleep(ctx context.Context, d *time.Duration) bool {
	timer := time.NewTimer(*d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		*d = nextBackoff(*d)
		return true
	case <-c.Hints:
		*d = c.PollInterval
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	next := d * 2
	if next > backoffCap {
		return backoffCap
	}
	return next
}
