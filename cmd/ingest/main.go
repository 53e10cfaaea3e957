package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcsStorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/trendtube/ingest/internal/api"
	"github.com/trendtube/ingest/internal/archive"
	"github.com/trendtube/ingest/internal/clock/system"
	"github.com/trendtube/ingest/internal/config"
	"github.com/trendtube/ingest/internal/dispatcher"
	"github.com/trendtube/ingest/internal/fetcher/youtube"
	"github.com/trendtube/ingest/internal/logging"
	"github.com/trendtube/ingest/internal/probe"
	queueMemory "github.com/trendtube/ingest/internal/queue/memory"
	queuePubsub "github.com/trendtube/ingest/internal/queue/pubsub"
	"github.com/trendtube/ingest/internal/quota"
	storageMemory "github.com/trendtube/ingest/internal/storage/memory"
	storagePostgres "github.com/trendtube/ingest/internal/storage/postgres"
	"github.com/trendtube/ingest/internal/video"
	"github.com/trendtube/ingest/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}

	broker, startBroker, closeBroker, err := newBroker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("broker init failed", zap.Error(err))
	}
	defer closeBroker()

	arc, err := newArchive(ctx, cfg)
	if err != nil {
		logger.Fatal("archive init failed", zap.Error(err))
	}

	clock := system.New()
	limiter := quota.New(quota.Config{
		RequestsPerSecond: cfg.YouTube.QuotaRPS,
		Burst:             cfg.YouTube.QuotaBurst,
	})
	fetcher := youtube.NewWithLimiter(youtube.Config{
		APIKey:        cfg.YouTube.APIKey,
		BaseURL:       cfg.YouTube.BaseURL,
		Timeout:       time.Duration(cfg.YouTube.TimeoutSeconds) * time.Second,
		ArchivePrefix: cfg.Archive.Prefix,
	}, clock, arc, limiter, logger.Named("fetcher"))

	prober := newProber(cfg, store)

	workerCfg := worker.Config{FetchTimeout: cfg.FetchTimeout()}
	var workers []*worker.Worker
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		workers = append(workers, worker.New(
			broker,
			fetcher,
			store,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(workers)

	apiServer := api.NewServer(broker, prober, store, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := startBroker(ctx); err != nil {
			logger.Error("broker receive loop error", zap.Error(err))
			stop()
		}
	}()

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", len(workers)))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newStore(ctx context.Context, cfg config.Config) (video.Store, error) {
	switch cfg.DB.Provider {
	case "postgres":
		return storagePostgres.NewVideoStore(ctx, storagePostgres.VideoStoreConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
		})
	case "memory", "":
		return storageMemory.NewVideoStore(), nil
	default:
		return nil, fmt.Errorf("unknown db provider %q", cfg.DB.Provider)
	}
}

// broker is the combined publish and consume surface; the start func is a
// no-op for the in-memory broker and runs the Receive loop for Pub/Sub.
type broker interface {
	video.Publisher
	video.Queue
}

func newBroker(ctx context.Context, cfg config.Config, logger *zap.Logger) (broker, func(context.Context) error, func(), error) {
	switch cfg.Queue.Provider {
	case "pubsub":
		q, err := queuePubsub.New(ctx, queuePubsub.Config{
			ProjectID:    cfg.Queue.ProjectID,
			Topic:        cfg.Queue.Topic,
			Subscription: cfg.Queue.Subscription,
			RoutingKey:   cfg.Queue.RoutingKey,
		}, logger.Named("pubsub"))
		if err != nil {
			return nil, nil, func() {}, err
		}
		closeFn := func() {
			if err := q.Close(); err != nil {
				logger.Warn("pubsub close failed", zap.Error(err))
			}
		}
		return q, q.Start, closeFn, nil
	case "memory", "":
		q := queueMemory.NewQueue(cfg.Queue.Depth, cfg.Queue.MaxAttempts, logger.Named("queue"))
		return q, func(context.Context) error { return nil }, q.Close, nil
	default:
		return nil, nil, func() {}, fmt.Errorf("unknown queue provider %q", cfg.Queue.Provider)
	}
}

func newArchive(ctx context.Context, cfg config.Config) (video.Archive, error) {
	switch cfg.Archive.Provider {
	case "gcs":
		client, err := gcsStorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return archive.NewGCS(client, cfg.Archive.Bucket)
	case "memory":
		return archive.NewMemory(), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Archive.Provider)
	}
}

func newProber(cfg config.Config, store video.Store) video.Prober {
	if cfg.Probe.Mode == "http" {
		return probe.NewHTTP(cfg.Probe.BaseURL, time.Duration(cfg.Probe.TimeoutSeconds)*time.Second)
	}
	return probe.NewStore(store)
}
