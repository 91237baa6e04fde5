// Package queue implements the durable enrichment job queue on top of the
// store layer: idempotent enqueue, atomic claiming, and retry accounting.
package queue

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/model"
	"github.com/sells-group/leadscout/internal/store"
)

// MaxRetries is the number of attempts a job gets before it is parked as a
// permanent failure. Failed jobs stay queryable and can be re-armed manually.
const MaxRetries = 3

type Queue struct {
	store store.Store
}

func New(st store.Store) *Queue {
	return &Queue{store: st}
}

// Enqueue creates a queued job for the lead unless one of the same type is
// already queued or running, in which case the existing job is returned.
func (q *Queue) Enqueue(ctx context.Context, leadID string, jobType model.JobType) (*model.EnrichmentJob, error) {
	if !jobType.Valid() {
		return nil, eris.Errorf("queue: unknown job type %q", jobType)
	}

	existing, err := q.store.FindActiveJob(ctx, leadID, jobType)
	if err != nil {
		return nil, eris.Wrap(err, "queue: find active job")
	}
	if existing != nil {
		zap.L().Debug("job already active, skipping enqueue",
			zap.String("leadId", leadID),
			zap.String("jobType", string(jobType)),
			zap.String("jobId", existing.ID))
		return existing, nil
	}

	job, err := q.store.CreateJob(ctx, leadID, jobType)
	if err != nil {
		return nil, eris.Wrap(err, "queue: create job")
	}
	zap.L().Info("job enqueued",
		zap.String("jobId", job.ID),
		zap.String("leadId", leadID),
		zap.String("jobType", string(jobType)))
	return job, nil
}

// ClaimNext atomically claims the oldest eligible queued job, marking it
// running. Returns nil when the queue is empty. Storage errors are logged
// and reported as "no work": the caller polls again later either way.
func (q *Queue) ClaimNext(ctx context.Context) (*model.EnrichmentJob, error) {
	job, err := q.store.ClaimNextJob(ctx, MaxRetries)
	if err != nil {
		zap.L().Warn("claim next job failed", zap.Error(err))
		return nil, nil
	}
	return job, nil
}

// MarkSuccess records a successful completion. Calling it on an already
// terminal job is a no-op.
func (q *Queue) MarkSuccess(ctx context.Context, job *model.EnrichmentJob) error {
	if job.Status.Terminal() {
		return nil
	}
	now := time.Now().UTC()
	job.Status = model.JobStatusSuccess
	job.LastError = ""
	job.CompletedAt = &now
	if err := q.store.UpdateJob(ctx, job); err != nil {
		return eris.Wrap(err, "queue: mark success")
	}
	zap.L().Info("job succeeded",
		zap.String("jobId", job.ID),
		zap.String("jobType", string(job.Type)))
	return nil
}

// MarkFailure records a failed attempt. Below the retry limit the job goes
// straight back to queued and is immediately eligible again; at the limit it
// is parked as a permanent failure.
func (q *Queue) MarkFailure(ctx context.Context, job *model.EnrichmentJob, cause error) error {
	job.RetryCount++
	if cause != nil {
		job.LastError = cause.Error()
	}

	if job.RetryCount < MaxRetries {
		job.Status = model.JobStatusQueued
		job.StartedAt = nil
		job.CompletedAt = nil
		if err := q.store.UpdateJob(ctx, job); err != nil {
			return eris.Wrap(err, "queue: requeue job")
		}
		zap.L().Warn("job failed, requeued",
			zap.String("jobId", job.ID),
			zap.String("jobType", string(job.Type)),
			zap.Int("retryCount", job.RetryCount),
			zap.String("lastError", job.LastError))
		return nil
	}

	now := time.Now().UTC()
	job.Status = model.JobStatusFailure
	job.CompletedAt = &now
	if err := q.store.UpdateJob(ctx, job); err != nil {
		return eris.Wrap(err, "queue: mark failure")
	}
	zap.L().Error("job failed permanently",
		zap.String("jobId", job.ID),
		zap.String("jobType", string(job.Type)),
		zap.Int("retryCount", job.RetryCount),
		zap.String("lastError", job.LastError))
	return nil
}

// Retry re-arms a permanently failed job by resetting its retry budget and
// putting it back in the queue. Returns false when the job is not in the
// failure state.
func (q *Queue) Retry(ctx context.Context, jobID string) (bool, error) {
	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return false, eris.Wrap(err, "queue: get job")
	}
	if job == nil {
		return false, eris.Errorf("queue: job not found: %s", jobID)
	}
	if job.Status != model.JobStatusFailure {
		return false, nil
	}

	job.Status = model.JobStatusQueued
	job.RetryCount = 0
	job.LastError = ""
	job.StartedAt = nil
	job.CompletedAt = nil
	if err := q.store.UpdateJob(ctx, job); err != nil {
		return false, eris.Wrap(err, "queue: retry job")
	}
	zap.L().Info("job re-armed for retry", zap.String("jobId", job.ID))
	return true, nil
}

// PendingCount reports how many jobs are queued or running.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	n, err := q.store.CountJobs(ctx, model.JobStatusQueued, model.JobStatusRunning)
	if err != nil {
		return 0, eris.Wrap(err, "queue: count pending")
	}
	return n, nil
}

// Failures lists permanently failed jobs, newest first.
func (q *Queue) Failures(ctx context.Context, limit int) ([]model.EnrichmentJob, error) {
	jobs, err := q.store.ListJobs(ctx, store.JobFilter{
		Statuses: []model.JobStatus{model.JobStatusFailure},
		Limit:    limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "queue: list failures")
	}
	return jobs, nil
}
