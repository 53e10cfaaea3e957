package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trendtube/ingest/internal/video"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fakeArchive struct {
	mu    sync.Mutex
	puts  map[string][]byte
	err   error
	calls int
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{puts: map[string][]byte{}}
}

func (a *fakeArchive) Put(_ context.Context, path string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return "", a.err
	}
	a.puts[path] = data
	return "mem://" + path, nil
}

func newTestFetcher(t *testing.T, payload string, status int) (*Fetcher, *fakeArchive) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/videos", r.URL.Path)
		require.Equal(t, "snippet,statistics", r.URL.Query().Get("part"))
		require.NotEmpty(t, r.URL.Query().Get("id"))
		w.WriteHeader(status)
		w.Write([]byte(payload)) //nolint:errcheck // test server
	}))
	t.Cleanup(srv.Close)

	archive := newFakeArchive()
	f := New(
		Config{APIKey: "test-key", BaseURL: srv.URL, ArchivePrefix: "responses"},
		&fakeClock{now: time.Unix(1700000000, 0).UTC()},
		archive,
		zap.NewNop(),
	)
	return f, archive
}

const fullPayload = `{
  "items": [{
    "snippet": {
      "title": "Learn Java in 14 Minutes",
      "description": "seriously",
      "channelTitle": "Alex Lee",
      "tags": ["java", "tutorial"]
    },
    "statistics": {
      "viewCount": "123456",
      "likeCount": "789"
    }
  }]
}`

func TestFetch_FullResponse(t *testing.T) {
	t.Parallel()

	f, archive := newTestFetcher(t, fullPayload, http.StatusOK)

	rec, err := f.Fetch(context.Background(), "RRubcjpTkks")
	require.NoError(t, err)
	require.Equal(t, video.Record{
		ID:           "RRubcjpTkks",
		Title:        "Learn Java in 14 Minutes",
		Description:  "seriously",
		ChannelTitle: "Alex Lee",
		ViewCount:    123456,
		LikeCount:    789,
		Tags:         []string{"java", "tutorial"},
		FetchedAt:    time.Unix(1700000000, 0).UTC(),
	}, rec)

	require.Len(t, archive.puts, 1)
	require.Contains(t, archive.puts, "responses/RRubcjpTkks/1700000000.json")
}

func TestFetch_MissingLikeCountDefaultsToZero(t *testing.T) {
	t.Parallel()

	payload := `{"items":[{
		"snippet":{"title":"t","description":"d","channelTitle":"c","tags":["java","tutorial"]},
		"statistics":{"viewCount":"123456"}
	}]}`
	f, _ := newTestFetcher(t, payload, http.StatusOK)

	rec, err := f.Fetch(context.Background(), "RRubcjpTkks")
	require.NoError(t, err)
	require.EqualValues(t, 123456, rec.ViewCount)
	require.EqualValues(t, 0, rec.LikeCount)
	require.Equal(t, []string{"java", "tutorial"}, rec.Tags)
}

func TestFetch_MissingTagsYieldEmptySlice(t *testing.T) {
	t.Parallel()

	payload := `{"items":[{
		"snippet":{"title":"t","description":"d","channelTitle":"c"},
		"statistics":{"viewCount":"7","likeCount":"1"}
	}]}`
	f, _ := newTestFetcher(t, payload, http.StatusOK)

	rec, err := f.Fetch(context.Background(), "RRubcjpTkks")
	require.NoError(t, err)
	require.NotNil(t, rec.Tags)
	require.Empty(t, rec.Tags)
}

func TestFetch_NonNumericViewCountIsParseError(t *testing.T) {
	t.Parallel()

	payload := `{"items":[{
		"snippet":{"title":"t","description":"d","channelTitle":"c"},
		"statistics":{"viewCount":"not-a-number"}
	}]}`
	f, archive := newTestFetcher(t, payload, http.StatusOK)

	_, err := f.Fetch(context.Background(), "RRubcjpTkks")
	var parseErr *video.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, "statistics.viewCount", parseErr.Field)
	require.Zero(t, archive.calls, "failed fetches must not be archived")
}

func TestFetch_MissingRequiredFieldsAreParseErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload string
		field   string
	}{
		{
			name: "missing title",
			payload: `{"items":[{
				"snippet":{"description":"d","channelTitle":"c"},
				"statistics":{"viewCount":"1"}
			}]}`,
			field: "snippet.title",
		},
		{
			name: "missing description",
			payload: `{"items":[{
				"snippet":{"title":"t","channelTitle":"c"},
				"statistics":{"viewCount":"1"}
			}]}`,
			field: "snippet.description",
		},
		{
			name: "missing channel title",
			payload: `{"items":[{
				"snippet":{"title":"t","description":"d"},
				"statistics":{"viewCount":"1"}
			}]}`,
			field: "snippet.channelTitle",
		},
		{
			name: "missing view count",
			payload: `{"items":[{
				"snippet":{"title":"t","description":"d","channelTitle":"c"},
				"statistics":{"likeCount":"1"}
			}]}`,
			field: "statistics.viewCount",
		},
		{
			name:    "missing statistics part",
			payload: `{"items":[{"snippet":{"title":"t","description":"d","channelTitle":"c"}}]}`,
			field:   "statistics",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f, _ := newTestFetcher(t, tc.payload, http.StatusOK)
			_, err := f.Fetch(context.Background(), "RRubcjpTkks")
			var parseErr *video.ParseError
			require.ErrorAs(t, err, &parseErr)
			require.Equal(t, tc.field, parseErr.Field)
		})
	}
}

func TestFetch_EmptyItemsIsNotFound(t *testing.T) {
	t.Parallel()

	f, _ := newTestFetcher(t, `{"items":[]}`, http.StatusOK)
	_, err := f.Fetch(context.Background(), "RRubcjpTkks")
	require.ErrorIs(t, err, video.ErrNotFound)
}

func TestFetch_ProviderErrorIsFetchError(t *testing.T) {
	t.Parallel()

	f, _ := newTestFetcher(t, `{"error":{"code":500}}`, http.StatusInternalServerError)
	_, err := f.Fetch(context.Background(), "RRubcjpTkks")
	var fetchErr *video.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
}

func TestFetch_TransportFailureIsFetchError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	f := New(Config{APIKey: "k", BaseURL: srv.URL}, nil, nil, zap.NewNop())
	_, err := f.Fetch(context.Background(), "RRubcjpTkks")
	var fetchErr *video.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Zero(t, fetchErr.StatusCode)
}

func TestFetch_ArchiveFailureDoesNotFailFetch(t *testing.T) {
	t.Parallel()

	f, archive := newTestFetcher(t, fullPayload, http.StatusOK)
	archive.err = errors.New("bucket unavailable")

	rec, err := f.Fetch(context.Background(), "RRubcjpTkks")
	require.NoError(t, err)
	require.EqualValues(t, 123456, rec.ViewCount)
}
