package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eventlane/backend/pkg/queue"
)

// Worker consumes email and roster export jobs from the Redis queues and
// dispatches them to their processors.
type Worker struct {
	queue   *queue.Queue
	emails  *EmailProcessor
	exports *ExportProcessor
	logger  *zap.Logger
}

// New creates a worker.
func New(q *queue.Queue, emails *EmailProcessor, exports *ExportProcessor, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{queue: q, emails: emails, exports: exports, logger: logger}
}

// Run starts the worker loop: dequeue, process, retry on error. Blocks until
// ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping")
			return
		default:
		}

		job, key, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopping")
				return
			}
			w.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		w.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := w.process(ctx, job); err != nil {
			w.logger.Error("job failed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Error(err))
			if reErr := w.queue.Retry(ctx, job, key); reErr != nil {
				w.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			continue
		}
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeEmail:
		return w.emails.Process(ctx, job)
	case queue.JobTypeRosterExport:
		return w.exports.Process(ctx, job)
	default:
		// Unknown types are dropped rather than retried forever.
		w.logger.Warn("dropping job with unknown type", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return nil
	}
}
