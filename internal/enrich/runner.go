package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadscout/internal/queue"
)

// RunReport summarizes one batch invocation.
type RunReport struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Runner drains the job queue in bounded batches. Each invocation claims
// and processes jobs until the batch size or the wall-clock budget is
// exhausted, then stops; it holds no state between invocations.
type Runner struct {
	queue     *queue.Queue
	processor *Processor
	batchSize int
	budget    time.Duration
}

func NewRunner(q *queue.Queue, p *Processor, batchSize int, budget time.Duration) *Runner {
	if batchSize <= 0 {
		batchSize = 10
	}
	if budget <= 0 {
		budget = 45 * time.Second
	}
	return &Runner{queue: q, processor: p, batchSize: batchSize, budget: budget}
}

// RunBatch claims and processes up to batchSize jobs within the time
// budget. A job claimed before the deadline runs to completion; the loop
// just stops claiming new ones.
func (r *Runner) RunBatch(ctx context.Context) (RunReport, error) {
	deadline := time.Now().Add(r.budget)
	var report RunReport

	for report.Processed < r.batchSize {
		if time.Now().After(deadline) {
			zap.L().Info("batch budget exhausted", zap.Int("processed", report.Processed))
			break
		}
		if ctx.Err() != nil {
			break
		}

		job, err := r.queue.ClaimNext(ctx)
		if err != nil {
			return report, err
		}
		if job == nil {
			break
		}

		report.Processed++
		if procErr := r.processor.Process(ctx, job); procErr != nil {
			report.Failed++
			if err := r.queue.MarkFailure(ctx, job, procErr); err != nil {
				return report, err
			}
			continue
		}
		report.Succeeded++
		if err := r.queue.MarkSuccess(ctx, job); err != nil {
			return report, err
		}
	}

	zap.L().Info("batch complete",
		zap.Int("processed", report.Processed),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed))
	return report, nil
}
