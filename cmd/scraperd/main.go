// Command scraperd runs the vacancy scraping service: the HTTP API,
// the cron scheduler and the worker pool, wired per configuration.
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

	"go.uber.org/zap"

	"github.com/jobradar/vacancy-scraper/internal/api"
	"github.com/jobradar/vacancy-scraper/internal/archive"
	"github.com/jobradar/vacancy-scraper/internal/clock/system"
	"github.com/jobradar/vacancy-scraper/internal/config"
	"github.com/jobradar/vacancy-scraper/internal/dedup"
	"github.com/jobradar/vacancy-scraper/internal/dispatcher"
	"github.com/jobradar/vacancy-scraper/internal/extractor"
	"github.com/jobradar/vacancy-scraper/internal/fetcher"
	"github.com/jobradar/vacancy-scraper/internal/id/uuid"
	"github.com/jobradar/vacancy-scraper/internal/logging"
	"github.com/jobradar/vacancy-scraper/internal/metrics"
	mempub "github.com/jobradar/vacancy-scraper/internal/publisher/memory"
	pubsubpub "github.com/jobradar/vacancy-scraper/internal/publisher/pubsub"
	memqueue "github.com/jobradar/vacancy-scraper/internal/queue/memory"
	"github.com/jobradar/vacancy-scraper/internal/ratelimit"
	"github.com/jobradar/vacancy-scraper/internal/scheduler"
	"github.com/jobradar/vacancy-scraper/internal/scraper"
	"github.com/jobradar/vacancy-scraper/internal/stats"
	memstore "github.com/jobradar/vacancy-scraper/internal/storage/memory"
	"github.com/jobradar/vacancy-scraper/internal/storage/postgres"
	"github.com/jobradar/vacancy-scraper/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clk := system.New()
	ids := uuid.New()

	vacancies, runStore, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	arch, err := buildArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	pub, closePub, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePub()

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Scraper.DefaultRPS,
		DefaultBurst: cfg.Scraper.DefaultBurst,
	})
	for _, src := range cfg.Sources {
		if src.RateRPS > 0 {
			limiter.Configure(src.ID, src.RateRPS, src.RateBurst)
		}
	}

	fetch := fetcher.New(fetcher.Config{
		UserAgent:      cfg.Scraper.UserAgent,
		Timeout:        time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
	}, limiter, logger)

	ext := extractor.New(logger)
	resolver := dedup.NewResolver(vacancies, clk, ids)
	queue := memqueue.NewQueue(cfg.Scraper.QueueDepth)
	reporter := stats.NewReporter(cfg.Scraper.StatsWindow)

	sched := scheduler.New(scheduler.Config{
		MaxRunRetries:    cfg.Scraper.MaxRunRetries,
		RetryBackoffBase: time.Duration(cfg.Scraper.RetryBackoffBaseMs) * time.Millisecond,
		RetryBackoffMax:  time.Duration(cfg.Scraper.RetryBackoffMaxMs) * time.Millisecond,
	}, queue, runStore, ids, clk, cfg.Sources, logger)

	workerCfg := worker.Config{
		MaxRunDuration: cfg.RunBudget(),
		Topic:          cfg.Publisher.TopicName,
		ArchivePrefix:  cfg.Archive.Prefix,
	}
	workers := make([]*worker.Worker, cfg.Scraper.Workers)
	for i := range workers {
		workers[i] = worker.New(
			queue, runStore, resolver, fetch, ext, pub, arch,
			clk, sched, reporter, cfg.Sources, workerCfg, logger,
		)
	}
	pool := dispatcher.New(workers)

	srv := api.NewServer(sched, reporter, runStore, logger, cfg)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		pool.Run(ctx)
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("scraper service listening",
		zap.Int("port", cfg.Server.Port),
		zap.Int("workers", cfg.Scraper.Workers),
		zap.Int("sources", len(cfg.Sources)),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}

	<-poolDone
	logger.Info("worker pool drained, exiting")
	return nil
}

func buildStores(ctx context.Context, cfg config.Config) (scraper.VacancyStore, scraper.RunStore, error) {
	if cfg.DB.Provider != "postgres" {
		return memstore.NewVacancyStore(), memstore.NewRunStore(), nil
	}
	pgCfg := postgres.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeSec) * time.Second,
	}
	vacancies, err := postgres.NewVacancyStore(ctx, pgCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres vacancy store: %w", err)
	}
	runs, err := postgres.NewRunStore(ctx, pgCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres run store: %w", err)
	}
	return vacancies, runs, nil
}

func buildArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (scraper.Archive, error) {
	if cfg.Archive.Provider != "gcs" {
		return archive.NoOp{}, nil
	}
	gcs, err := archive.NewGCS(ctx, cfg.Archive.Bucket, logger)
	if err != nil {
		return nil, fmt.Errorf("gcs archive: %w", err)
	}
	return gcs, nil
}

func buildPublisher(ctx context.Context, cfg config.Config) (scraper.Publisher, func(), error) {
	if cfg.Publisher.Provider != "pubsub" {
		return mempub.New(), func() {}, nil
	}
	pub, err := pubsubpub.New(ctx, cfg.Publisher.ProjectID, cfg.Publisher.TopicName)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub publisher: %w", err)
	}
	return pub, func() { _ = pub.Close() }, nil
}
