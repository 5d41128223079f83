package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecord struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records []ackRecord
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, ackRecord{tag: tag, ack: true})
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) snapshot() []ackRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ackRecord(nil), a.records...)
}

type fakeConsumer struct {
	deliveries chan amqp.Delivery
	err        error
}

func (c *fakeConsumer) Consume(string) (<-chan amqp.Delivery, error) {
	return c.deliveries, c.err
}

type recordingProcessor struct {
	mu    sync.Mutex
	ids   []string
	fail  map[string]error
	panic map[string]bool
}

func (p *recordingProcessor) Process(_ context.Context, jobID string) error {
	p.mu.Lock()
	p.ids = append(p.ids, jobID)
	p.mu.Unlock()

	if p.panic[jobID] {
		panic("boom")
	}
	return p.fail[jobID]
}

func (p *recordingProcessor) processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}

func newTestWorker(consumer Consumer, processor Processor) *Worker {
	return NewWorker(&Config{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Consumer:  consumer,
		Processor: processor,
		WorkerID:  "test-worker",
	})
}

func delivery(ack amqp.Acknowledger, tag uint64, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: []byte(body)}
}

func TestWorker_AcksEveryDeliveryOnce(t *testing.T) {
	ack := &fakeAcknowledger{}
	okID := uuid.NewString()
	failingID := uuid.NewString()
	panicID := uuid.NewString()

	deliveries := make(chan amqp.Delivery, 6)
	deliveries <- delivery(ack, 1, `{"id":"`+okID+`"}`)
	deliveries <- delivery(ack, 2, `not json`)
	deliveries <- delivery(ack, 3, `{"id":"not-a-uuid"}`)
	deliveries <- delivery(ack, 4, `{"id":"`+failingID+`"}`)
	deliveries <- delivery(ack, 5, `{"id":"`+panicID+`"}`)
	close(deliveries)

	processor := &recordingProcessor{
		fail:  map[string]error{failingID: errors.New("database unavailable")},
		panic: map[string]bool{panicID: true},
	}
	w := newTestWorker(&fakeConsumer{deliveries: deliveries}, processor)

	err := w.Start(context.Background())
	assert.ErrorIs(t, err, ErrDeliveriesClosed)

	assert.Equal(t, []string{okID, failingID, panicID}, processor.processed())

	records := ack.snapshot()
	require.Len(t, records, 5)
	seen := make(map[uint64]int)
	for _, r := range records {
		assert.True(t, r.ack, "delivery %d should be acked", r.tag)
		seen[r.tag]++
	}
	for tag := uint64(1); tag <= 5; tag++ {
		assert.Equal(t, 1, seen[tag], "delivery %d", tag)
	}
}

func TestWorker_StopsOnContextCancel(t *testing.T) {
	deliveries := make(chan amqp.Delivery)
	w := newTestWorker(&fakeConsumer{deliveries: deliveries}, &recordingProcessor{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_ConsumeFailure(t *testing.T) {
	w := newTestWorker(&fakeConsumer{err: errors.New("channel closed")}, &recordingProcessor{})

	err := w.Start(context.Background())
	assert.ErrorContains(t, err, "failed to start consuming")
}

func TestWorker_DispatchNacksOnShutdown(t *testing.T) {
	ack := &fakeAcknowledger{}
	deliveries := make(chan amqp.Delivery)
	w := newTestWorker(&fakeConsumer{}, &recordingProcessor{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.dispatch(ctx, deliveries) }()

	// nobody reads jobsChan, so the dispatcher blocks holding this delivery
	deliveries <- delivery(ack, 7, `{"id":"`+uuid.NewString()+`"}`)
	cancel()

	require.NoError(t, <-done)
	assert.Equal(t, []ackRecord{{tag: 7, requeue: true}}, ack.snapshot())
}

func TestParseMessage(t *testing.T) {
	id := uuid.NewString()

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"id":"` + id + `"}`},
		{name: "extra fields ignored", body: `{"id":"` + id + `","type":"bytecode"}`},
		{name: "invalid json", body: `{"id":`, wantErr: true},
		{name: "missing id", body: `{}`, wantErr: true},
		{name: "non uuid id", body: `{"id":"123"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := parseMessage(amqp.Delivery{DeliveryTag: 9, Body: []byte(tt.body)})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, msg.ID)
			assert.Equal(t, uint64(9), msg.DeliveryTag)
		})
	}
}
