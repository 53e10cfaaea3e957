// Package worker implements the fetch-and-persist consumer loop.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/trendtube/ingest/internal/metrics"
	"github.com/trendtube/ingest/internal/video"
)

// Config controls Worker behavior.
type Config struct {
	FetchTimeout time.Duration
}

// Worker consumes queue deliveries and drives the fetch/upsert pipeline.
// It performs no deduplication: redeliveries and duplicate identifiers are
// safe because the store's upsert is idempotent per identifier.
type Worker struct {
	queue   video.Queue
	fetcher video.Fetcher
	store   video.Store
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Worker.
func New(queue video.Queue, fetcher video.Fetcher, store video.Store, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Worker{
		queue:   queue,
		fetcher: fetcher,
		store:   store,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run blocks, consuming deliveries until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		d, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			continue
		}
		w.process(ctx, d)
	}
}

// process handles one delivery to completion and answers it with exactly
// one Ack or Nack. Transient failures are nacked for redelivery;
// deterministic failures are acked and dropped, since redelivering a
// message the provider cannot satisfy would just loop forever.
func (w *Worker) process(ctx context.Context, d video.Delivery) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	w.logger.Debug("delivery received",
		zap.String("video_id", string(d.ID)),
		zap.Int("attempt", d.Attempt),
	)

	fetchCtx := ctx
	if w.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, w.cfg.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	rec, err := w.fetcher.Fetch(fetchCtx, d.ID)
	metrics.ObserveFetch(time.Since(start))
	if err != nil {
		w.settleFetchFailure(ctx, d, err)
		return
	}

	if err := w.store.Upsert(ctx, rec); err != nil {
		w.logger.Error("upsert failed, requeueing",
			zap.String("video_id", string(d.ID)),
			zap.Int("attempt", d.Attempt),
			zap.Error(err),
		)
		w.nack(ctx, d)
		return
	}

	if err := w.queue.Ack(ctx, d); err != nil {
		w.logger.Error("ack failed", zap.String("video_id", string(d.ID)), zap.Error(err))
	}
	metrics.ObserveMessage(metrics.OutcomeStored)
	w.logger.Info("video metadata stored",
		zap.String("video_id", string(d.ID)),
		zap.String("title", rec.Title),
		zap.Int64("view_count", rec.ViewCount),
	)
}

func (w *Worker) settleFetchFailure(ctx context.Context, d video.Delivery, err error) {
	var parseErr *video.ParseError
	if errors.As(err, &parseErr) || errors.Is(err, video.ErrNotFound) {
		// Poison: the provider response will not change on retry.
		w.logger.Error("dropping unprocessable delivery",
			zap.String("video_id", string(d.ID)),
			zap.Int("attempt", d.Attempt),
			zap.Error(err),
		)
		if ackErr := w.queue.Ack(ctx, d); ackErr != nil {
			w.logger.Error("ack failed", zap.String("video_id", string(d.ID)), zap.Error(ackErr))
		}
		metrics.ObserveMessage(metrics.OutcomeDropped)
		return
	}

	w.logger.Warn("fetch failed, requeueing",
		zap.String("video_id", string(d.ID)),
		zap.Int("attempt", d.Attempt),
		zap.Error(err),
	)
	w.nack(ctx, d)
}

func (w *Worker) nack(ctx context.Context, d video.Delivery) {
	if err := w.queue.Nack(ctx, d); err != nil {
		w.logger.Error("nack failed", zap.String("video_id", string(d.ID)), zap.Error(err))
		return
	}
	metrics.ObserveMessage(metrics.OutcomeRequeued)
}
