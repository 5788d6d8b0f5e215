package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/ParkerRex/zeke-sub005/internal/config"
	"github.com/ParkerRex/zeke-sub005/internal/domain"
	"github.com/ParkerRex/zeke-sub005/internal/publisher"
	"github.com/ParkerRex/zeke-sub005/internal/quota"
	"github.com/ParkerRex/zeke-sub005/internal/retry"
	"github.com/ParkerRex/zeke-sub005/internal/scheduler"
	"github.com/ParkerRex/zeke-sub005/internal/service"
	"github.com/ParkerRex/zeke-sub005/internal/source/rss"
	"github.com/ParkerRex/zeke-sub005/internal/source/youtube"
	"github.com/ParkerRex/zeke-sub005/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	queue, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	itemStore := postgres.NewItemStore(db)
	sourceStore := postgres.NewSourceStore(db)
	healthStore := postgres.NewHealthStore(db)

	rssFetcher := rss.New(rss.Config{
		Timeout: cfg.Feed.Timeout,
		Retry:   retryConfig(cfg.Feed.Retry),
	}, logger)

	tracker := quota.NewTracker(
		cfg.YouTube.Quota.DailyLimit,
		cfg.YouTube.Quota.SafetyBuffer,
		cfg.YouTube.Quota.ResetHour,
	)
	ytClient := youtube.NewClient(youtube.Config{
		APIKey:   cfg.YouTube.APIKey,
		BaseURL:  cfg.YouTube.BaseURL,
		Timeout:  cfg.YouTube.Timeout,
		PageSize: cfg.YouTube.PageSize,
		Retry:    retryConfig(cfg.YouTube.Retry),
	}, tracker, logger)

	ingestService := service.NewIngestService(
		[]service.Fetcher{
			rssFetcher,
			youtube.NewSearchFetcher(ytClient, logger),
			youtube.NewChannelFetcher(ytClient, sourceStore, logger),
		},
		itemStore,
		sourceStore,
		healthStore,
		queue,
		logger,
		cfg.Ingest.Concurrency,
	)

	schedules := map[domain.SourceKind]string{
		domain.SourceKindFeed:           cfg.Ingest.FeedSchedule,
		domain.SourceKindYouTubeSearch:  cfg.Ingest.YouTubeSchedule,
		domain.SourceKindYouTubeChannel: cfg.Ingest.YouTubeSchedule,
	}
	sched := scheduler.NewScheduler(ingestService, schedules, cfg.Ingest.RunOnStart, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting ingest daemon",
		"feed_schedule", cfg.Ingest.FeedSchedule,
		"youtube_schedule", cfg.Ingest.YouTubeSchedule,
		"concurrency", cfg.Ingest.Concurrency,
	)

	if err := sched.Start(ctx); err != nil && err != context.Canceled {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}

func retryConfig(cfg config.RetryConfig) retry.Config {
	return retry.Config{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Jitter:         true,
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
