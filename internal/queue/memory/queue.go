// Package memory provides a channel-backed broker for local development
// and tests. It models at-least-once delivery explicitly: a Nack puts the
// message back with an incremented attempt counter, and messages that
// exhaust their attempts land in an inspectable dead-letter list.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/trendtube/ingest/internal/metrics"
	"github.com/trendtube/ingest/internal/video"
)

// Queue is a bounded in-memory broker with context-aware operations.
// It implements both video.Publisher and video.Queue.
type Queue struct {
	ch          chan video.Delivery
	maxAttempts int
	logger      *zap.Logger

	mu          sync.Mutex
	closed      bool
	deadLetters []video.Delivery
}

// NewQueue constructs a queue with the provided capacity and redelivery cap.
func NewQueue(capacity, maxAttempts int, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Queue{
		ch:          make(chan video.Delivery, capacity),
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Publish enqueues a first-attempt delivery for the identifier.
func (q *Queue) Publish(ctx context.Context, id video.ID) error {
	return q.enqueue(ctx, video.Delivery{ID: id, Attempt: 1})
}

// Dequeue pops the next delivery, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (video.Delivery, error) {
	select {
	case <-ctx.Done():
		return video.Delivery{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case d, ok := <-q.ch:
		if !ok {
			return video.Delivery{}, errors.New("queue closed")
		}
		return d, nil
	}
}

// Ack marks the delivery as done. The memory broker holds no per-message
// state after Dequeue, so this is a no-op kept for interface symmetry.
func (q *Queue) Ack(_ context.Context, _ video.Delivery) error {
	return nil
}

// Nack requeues the delivery with an incremented attempt counter. A
// delivery that has already consumed its last attempt is moved to the
// dead-letter list instead of being redelivered forever.
func (q *Queue) Nack(ctx context.Context, d video.Delivery) error {
	if d.Attempt >= q.maxAttempts {
		q.mu.Lock()
		q.deadLetters = append(q.deadLetters, d)
		q.mu.Unlock()
		q.logger.Warn("delivery dead-lettered",
			zap.String("video_id", string(d.ID)),
			zap.Int("attempts", d.Attempt),
		)
		metrics.ObserveMessage(metrics.OutcomeDeadLetter)
		return nil
	}
	d.Attempt++
	return q.enqueue(ctx, d)
}

// DeadLetters returns a copy of the dead-lettered deliveries.
func (q *Queue) DeadLetters() []video.Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]video.Delivery, len(q.deadLetters))
	copy(out, q.deadLetters)
	return out
}

func (q *Queue) enqueue(ctx context.Context, d video.Delivery) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- d:
		return nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
