package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trendtube/ingest/internal/video"
)

func TestQueue_PublishDequeueAck(t *testing.T) {
	t.Parallel()

	q := NewQueue(4, 3, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, "RRubcjpTkks"))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, video.ID("RRubcjpTkks"), d.ID)
	require.Equal(t, 1, d.Attempt)
	require.NoError(t, q.Ack(ctx, d))
}

func TestQueue_NackRedeliversWithIncrementedAttempt(t *testing.T) {
	t.Parallel()

	q := NewQueue(4, 3, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, "RRubcjpTkks"))
	d, err := q.Dequeue(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Nack(ctx, d))

	redelivered, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, d.ID, redelivered.ID)
	require.Equal(t, 2, redelivered.Attempt)
}

func TestQueue_ExhaustedAttemptsDeadLetter(t *testing.T) {
	t.Parallel()

	q := NewQueue(4, 2, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, "RRubcjpTkks"))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Nack(ctx, d))

	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, d.Attempt)
	require.NoError(t, q.Nack(ctx, d))

	// The second nack exhausted the attempt budget; nothing is redelivered.
	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	require.Equal(t, video.ID("RRubcjpTkks"), dead[0].ID)

	ctxTimeout, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = q.Dequeue(ctxTimeout)
	require.Error(t, err)
}

func TestQueue_DuplicatePublishesAreIndependentDeliveries(t *testing.T) {
	t.Parallel()

	q := NewQueue(4, 3, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, "RRubcjpTkks"))
	require.NoError(t, q.Publish(ctx, "RRubcjpTkks"))

	first, err := q.Dequeue(ctx)
	require.NoError(t, err)
	second, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, 1, first.Attempt)
	require.Equal(t, 1, second.Attempt)
}

func TestQueue_DequeueRespectsContext(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, 3, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.Error(t, err)
}
