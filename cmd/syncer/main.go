package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"espn_feed/internal/config"
	"espn_feed/internal/publisher"
	"espn_feed/internal/scheduler"
	"espn_feed/internal/service"
	"espn_feed/internal/source/espn"
	"espn_feed/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single sync and exit")
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

	pub, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Error("failed to create publisher", "driver", cfg.Publisher.Driver, "error", err)
		os.Exit(1)
	}
	if pub != nil {
		defer pub.Close()
	}

	articleStore := postgres.NewArticleStore(db)
	videoStore := postgres.NewVideoStore(db)
	tagStore := postgres.NewTagStore(db)
	syncStateStore := postgres.NewSyncStateStore(db)
	txManager := postgres.NewTransactionManager(db)

	espnSource := espn.New(sourceConfig(cfg), logger)

	syncService := service.NewSyncService(
		espnSource,
		articleStore,
		videoStore,
		tagStore,
		syncStateStore,
		txManager,
		pub,
		logger,
		cfg.Sync,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		stats, err := syncService.Sync(ctx)
		if stats != nil {
			logger.Info("sync finished",
				"new", stats.New,
				"updated", stats.Updated,
				"skipped", stats.Skipped,
				"categories", stats.Categories,
				"video_items", stats.VideoItems,
				"errors", stats.Errors,
			)
		}
		if err != nil {
			logger.Error("sync failed", "error", err)
			os.Exit(1)
		}
		return
	}

	sched := scheduler.NewScheduler(syncService, cfg.Sync.Interval, cfg.Sync.Timeout, logger)

	logger.Info("starting espn syncer",
		"source", espnSource.Name(),
		"interval", cfg.Sync.Interval,
		"feeds", len(cfg.API.NewsFeeds),
		"watch", cfg.Sync.WatchEnabled(),
		"publisher", cfg.Publisher.Driver,
	)

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
	logger.Info("syncer stopped")
}

// newPublisher returns a nil interface for the "none" driver so the sync
// service skips publishing.
func newPublisher(cfg *config.Config, logger *slog.Logger) (service.Publisher, error) {
	switch cfg.Publisher.Driver {
	case config.PublisherRabbitMQ:
		r, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.PublisherKafka:
		return publisher.NewKafka(publisher.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, logger), nil
	case config.PublisherNone:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown publisher driver %q", cfg.Publisher.Driver)
}

func sourceConfig(cfg *config.Config) espn.Config {
	feeds := make([]espn.Feed, len(cfg.API.NewsFeeds))
	for i, f := range cfg.API.NewsFeeds {
		feeds[i] = espn.Feed{Name: f.Name, URL: f.URL}
	}
	return espn.Config{
		NewsFeeds:      feeds,
		WatchURL:       cfg.API.WatchURL,
		Timeout:        cfg.API.Timeout,
		MaxAttempts:    cfg.API.Retry.MaxAttempts,
		InitialBackoff: cfg.API.Retry.InitialBackoff,
		MaxBackoff:     cfg.API.Retry.MaxBackoff,
		UserAgent:      cfg.API.UserAgent,
		CDNHost:        cfg.API.CDNHost,
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
