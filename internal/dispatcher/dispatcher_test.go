package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	queueMemory "github.com/trendtube/ingest/internal/queue/memory"
	storageMemory "github.com/trendtube/ingest/internal/storage/memory"
	"github.com/trendtube/ingest/internal/video"
	"github.com/trendtube/ingest/internal/worker"
)

type staticFetcher struct {
	mu    sync.Mutex
	seen  map[video.ID]int
	title string
}

func (f *staticFetcher) Fetch(_ context.Context, id video.ID) (video.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[video.ID]int{}
	}
	f.seen[id]++
	return video.Record{
		ID:    id,
		Title: f.title,
		Tags:  []string{},
	}, nil
}

func TestDispatcher_FansOutAcrossWorkers(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queueMemory.NewQueue(16, 3, zap.NewNop())
	store := storageMemory.NewVideoStore()
	fetcher := &staticFetcher{title: "shared"}

	var workers []*worker.Worker
	for i := 0; i < 3; i++ {
		workers = append(workers, worker.New(q, fetcher, store, worker.Config{}, zap.NewNop()))
	}
	d := New(workers)

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	ids := []video.ID{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc", "ddddddddddd"}
	for _, id := range ids {
		require.NoError(t, q.Publish(ctx, id))
	}

	require.Eventually(t, func() bool {
		return store.Len() == len(ids)
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}
