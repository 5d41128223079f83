package worker

import (
	"context"
	"fmt"
	"log/slog"
)

// workerLoop processes jobs until the dispatcher closes jobsChan or ctx is canceled
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case t, ok := <-w.jobsChan:
			if !ok {
				w.logger.Info("Worker goroutine stopping - jobsChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			w.handle(ctx, workerName, t)
		}
	}
}

// handle processes one job and acknowledges its delivery exactly once.
// Shutdown does not interrupt a job that has already started.
func (w *Worker) handle(ctx context.Context, workerName string, t *task) {
	w.logger.Info("Worker received job",
		slog.String("worker_name", workerName),
		slog.String("job_id", t.msg.ID),
		slog.Uint64("delivery_tag", t.msg.DeliveryTag),
	)

	if err := w.process(context.WithoutCancel(ctx), t.msg.ID); err != nil {
		w.logger.Error("Job processing failed",
			slog.String("worker_name", workerName),
			slog.String("job_id", t.msg.ID),
			slog.Any("error", err),
		)
	}

	if err := t.delivery.Ack(false); err != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("worker_name", workerName),
			slog.String("job_id", t.msg.ID),
			slog.Any("error", err),
		)
	}
}

// process shields the pool from processor panics
func (w *Worker) process(ctx context.Context, jobID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return w.processor.Process(ctx, jobID)
}
