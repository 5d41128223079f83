package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/analysis-service/internal/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDeliveriesClosed is returned when the broker closes the delivery channel
var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

// task pairs a parsed message with the delivery it must acknowledge
type task struct {
	msg      domain.JobMessage
	delivery amqp.Delivery
}

// dispatch parses deliveries and hands them to the worker pool
func (w *Worker) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return ErrDeliveriesClosed
			}

			msg, err := parseMessage(delivery)
			if err != nil {
				w.logger.Error("Dropping malformed message",
					slog.Any("error", err),
					slog.String("body", string(delivery.Body)),
				)
				// redelivering a malformed message can never succeed
				if ackErr := delivery.Ack(false); ackErr != nil {
					w.logger.Error("Failed to ACK malformed message",
						slog.Any("error", ackErr),
					)
				}
				continue
			}

			select {
			case w.jobsChan <- &task{msg: msg, delivery: delivery}:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("job_id", msg.ID),
					slog.Uint64("delivery_tag", msg.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching job")
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("job_id", msg.ID),
						slog.Any("error", nackErr),
					)
				}
				return nil
			}
		}
	}
}

// parseMessage decodes {"id": "<uuid>"}
func parseMessage(delivery amqp.Delivery) (domain.JobMessage, error) {
	var msg domain.JobMessage
	if err := json.Unmarshal(delivery.Body, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}

	if _, err := uuid.Parse(msg.ID); err != nil {
		return msg, fmt.Errorf("%w: id %q is not a UUID", domain.ErrInvalidMessage, msg.ID)
	}

	msg.DeliveryTag = delivery.DeliveryTag
	return msg, nil
}
