package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trendtube/ingest/internal/video"
)

func testRecord() video.Record {
	return video.Record{
		ID:           "RRubcjpTkks",
		Title:        "Learn Java in 14 Minutes",
		Description:  "seriously",
		ChannelTitle: "Alex Lee",
		ViewCount:    123456,
		LikeCount:    0,
		Tags:         []string{"java", "tutorial"},
		FetchedAt:    time.Unix(1700000000, 0).UTC(),
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewVideoStore()
	ctx := context.Background()
	rec := testRecord()

	require.NoError(t, store.Upsert(ctx, rec))
	require.NoError(t, store.Upsert(ctx, rec))

	require.Equal(t, 1, store.Len())
	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec, got)
}

func TestUpsertFullyReplaces(t *testing.T) {
	t.Parallel()

	store := NewVideoStore()
	ctx := context.Background()

	first := testRecord()
	require.NoError(t, store.Upsert(ctx, first))

	second := first
	second.ViewCount = 200000
	second.Tags = []string{"java"}
	require.NoError(t, store.Upsert(ctx, second))

	got, err := store.Get(ctx, first.ID)
	require.NoError(t, err)
	require.EqualValues(t, 200000, got.ViewCount)
	// Tags are replaced wholesale, not merged.
	require.Equal(t, []string{"java"}, got.Tags)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := NewVideoStore()
	_, err := store.Get(context.Background(), "aaaaaaaaaaa")
	require.ErrorIs(t, err, video.ErrNotFound)
}

func TestExistsByID(t *testing.T) {
	t.Parallel()

	store := NewVideoStore()
	ctx := context.Background()

	exists, err := store.ExistsByID(ctx, "RRubcjpTkks")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.Upsert(ctx, testRecord()))

	exists, err = store.ExistsByID(ctx, "RRubcjpTkks")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestTrendingOrdersByViewCount(t *testing.T) {
	t.Parallel()

	store := NewVideoStore()
	ctx := context.Background()

	low := testRecord()
	low.ID = "aaaaaaaaaaa"
	low.ViewCount = 10
	high := testRecord()
	high.ID = "bbbbbbbbbbb"
	high.ViewCount = 1000

	require.NoError(t, store.Upsert(ctx, low))
	require.NoError(t, store.Upsert(ctx, high))

	got, err := store.Trending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, high.ID, got[0].ID)
}

func TestSearchMatchesTitleOrTag(t *testing.T) {
	t.Parallel()

	store := NewVideoStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, testRecord()))

	byTitle, err := store.Search(ctx, "learn java")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)

	byTag, err := store.Search(ctx, "tutorial")
	require.NoError(t, err)
	require.Len(t, byTag, 1)

	none, err := store.Search(ctx, "cooking")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()

	store := NewVideoStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, testRecord()))

	got, err := store.Get(ctx, "RRubcjpTkks")
	require.NoError(t, err)
	got.Tags[0] = "mutated"

	fresh, err := store.Get(ctx, "RRubcjpTkks")
	require.NoError(t, err)
	require.Equal(t, []string{"java", "tutorial"}, fresh.Tags)
}
