// Package youtube fetches video metadata from the YouTube Data API and
// normalizes it into the internal record shape.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/trendtube/ingest/internal/video"
)

// Config controls the provider endpoint and credentials.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// ArchivePrefix is the path prefix for archived raw responses.
	ArchivePrefix string
}

// QuotaLimiter paces requests against the provider's quota.
type QuotaLimiter interface {
	Wait(ctx context.Context) error
}

// Fetcher issues one videos.list request per identifier, asking for the
// snippet and statistics parts. When an archive is configured, the raw
// payload of each successful fetch is stored before normalization results
// are returned; archive failures are logged and never fail the fetch.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	clock   video.Clock
	archive video.Archive
	limiter QuotaLimiter
	logger  *zap.Logger
}

// listResponse is the provider envelope. The counters arrive as numeric
// strings; required snippet fields are pointers so absence is detectable.
type listResponse struct {
	Items []struct {
		Snippet *struct {
			Title        *string  `json:"title"`
			Description  *string  `json:"description"`
			ChannelTitle *string  `json:"channelTitle"`
			Tags         []string `json:"tags"`
		} `json:"snippet"`
		Statistics *struct {
			ViewCount *string `json:"viewCount"`
			LikeCount *string `json:"likeCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// New constructs a Fetcher. archive may be nil to disable raw archiving.
func New(cfg Config, clock video.Clock, archive video.Archive, logger *zap.Logger) *Fetcher {
	return NewWithLimiter(cfg, clock, archive, nil, logger)
}

// NewWithLimiter constructs a Fetcher that waits on limiter before each
// provider request. limiter may be nil to disable pacing.
func NewWithLimiter(cfg Config, clock video.Clock, archive video.Archive, limiter QuotaLimiter, logger *zap.Logger) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com/youtube/v3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		clock:   clock,
		archive: archive,
		limiter: limiter,
		logger:  logger,
	}
}

// Fetch retrieves snippet and statistics for one identifier and maps them
// into a Record. Transport and non-2xx failures are *video.FetchError;
// missing required fields and malformed counters are *video.ParseError;
// an identifier unknown to the provider is video.ErrNotFound.
func (f *Fetcher) Fetch(ctx context.Context, id video.ID) (video.Record, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return video.Record{}, fmt.Errorf("provider quota: %w", err)
		}
	}

	endpoint := fmt.Sprintf("%s/videos?part=snippet,statistics&id=%s&key=%s",
		f.cfg.BaseURL, url.QueryEscape(string(id)), url.QueryEscape(f.cfg.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return video.Record{}, fmt.Errorf("build provider request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return video.Record{}, &video.FetchError{ID: id, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return video.Record{}, &video.FetchError{ID: id, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return video.Record{}, &video.FetchError{ID: id, StatusCode: resp.StatusCode}
	}

	rec, err := f.normalize(id, body)
	if err != nil {
		return video.Record{}, err
	}
	f.archiveRaw(ctx, id, body)
	return rec, nil
}

func (f *Fetcher) archiveRaw(ctx context.Context, id video.ID, body []byte) {
	if f.archive == nil {
		return
	}
	ts := time.Now().Unix()
	if f.clock != nil {
		ts = f.clock.Now().Unix()
	}
	prefix := strings.Trim(f.cfg.ArchivePrefix, "/")
	path := fmt.Sprintf("%s/%d.json", id, ts)
	if prefix != "" {
		path = fmt.Sprintf("%s/%s", prefix, path)
	}
	uri, err := f.archive.Put(ctx, path, body)
	if err != nil {
		f.logger.Warn("archive raw response failed",
			zap.String("video_id", string(id)),
			zap.Error(err),
		)
		return
	}
	f.logger.Debug("raw response archived",
		zap.String("video_id", string(id)),
		zap.String("uri", uri),
	)
}

func (f *Fetcher) normalize(id video.ID, body []byte) (video.Record, error) {
	var envelope listResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return video.Record{}, &video.ParseError{ID: id, Field: "items", Err: err}
	}
	if len(envelope.Items) == 0 {
		return video.Record{}, fmt.Errorf("provider has no entry for %s: %w", id, video.ErrNotFound)
	}

	item := envelope.Items[0]
	if item.Snippet == nil {
		return video.Record{}, missingField(id, "snippet")
	}
	if item.Statistics == nil {
		return video.Record{}, missingField(id, "statistics")
	}
	if item.Snippet.Title == nil {
		return video.Record{}, missingField(id, "snippet.title")
	}
	if item.Snippet.Description == nil {
		return video.Record{}, missingField(id, "snippet.description")
	}
	if item.Snippet.ChannelTitle == nil {
		return video.Record{}, missingField(id, "snippet.channelTitle")
	}
	if item.Statistics.ViewCount == nil {
		return video.Record{}, missingField(id, "statistics.viewCount")
	}

	viewCount, err := parseCount(*item.Statistics.ViewCount)
	if err != nil {
		return video.Record{}, &video.ParseError{ID: id, Field: "statistics.viewCount", Err: err}
	}

	// likeCount is optional; channels can hide it.
	likeCount := int64(0)
	if item.Statistics.LikeCount != nil {
		likeCount, err = parseCount(*item.Statistics.LikeCount)
		if err != nil {
			return video.Record{}, &video.ParseError{ID: id, Field: "statistics.likeCount", Err: err}
		}
	}

	// Tags keep provider order; absence means an empty sequence, not nil.
	tags := item.Snippet.Tags
	if tags == nil {
		tags = []string{}
	}

	rec := video.Record{
		ID:           id,
		Title:        *item.Snippet.Title,
		Description:  *item.Snippet.Description,
		ChannelTitle: *item.Snippet.ChannelTitle,
		ViewCount:    viewCount,
		LikeCount:    likeCount,
		Tags:         tags,
	}
	if f.clock != nil {
		rec.FetchedAt = f.clock.Now()
	}
	return rec, nil
}

func missingField(id video.ID, field string) error {
	return &video.ParseError{ID: id, Field: field, Err: fmt.Errorf("required field absent")}
}

func parseCount(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("count %q is negative", s)
	}
	return n, nil
}
