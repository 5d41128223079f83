package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// Consumer yields deliveries from the job queue
type Consumer interface {
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Processor runs a job to completion
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// Config holds worker configuration
type Config struct {
	Logger      *slog.Logger
	Consumer    Consumer
	Processor   Processor
	Concurrency int
	WorkerID    string
}

// Worker consumes job messages and hands them to a pool of goroutines
type Worker struct {
	logger      *slog.Logger
	consumer    Consumer
	processor   Processor
	concurrency int
	workerID    string
	jobsChan    chan *task
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	workerID := cfg.WorkerID
	if workerID == "" {
		host, _ := os.Hostname()
		workerID = fmt.Sprintf("worker-%s-%s", host, uuid.NewString()[:8])
	}

	return &Worker{
		logger:      cfg.Logger,
		consumer:    cfg.Consumer,
		processor:   cfg.Processor,
		concurrency: concurrency,
		workerID:    workerID,
		jobsChan:    make(chan *task),
	}
}

// Start consumes until ctx is canceled or the broker closes the delivery channel.
// Jobs already handed to a goroutine run to completion before Start returns.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
	)

	deliveries, err := w.consumer.Consume(w.workerID)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(w.jobsChan)
		return w.dispatch(gctx, deliveries)
	})

	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			w.workerLoop(gctx, i)
			return nil
		})
	}

	err = g.Wait()
	w.logger.Info("Worker stopped", slog.String("worker_id", w.workerID))
	return err
}
