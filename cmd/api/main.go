package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"

	"espn_feed/internal/api"
	"espn_feed/internal/config"
	"espn_feed/internal/normalizer"
	"espn_feed/internal/playback"
	"espn_feed/internal/source/espn"
	"espn_feed/internal/storage/postgres"
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
	logger.Info("connected to database")

	// Only playback resolution goes upstream from the API process.
	resolver := espn.New(espn.Config{
		Timeout:        cfg.API.Timeout,
		MaxAttempts:    cfg.API.Retry.MaxAttempts,
		InitialBackoff: cfg.API.Retry.InitialBackoff,
		MaxBackoff:     cfg.API.Retry.MaxBackoff,
		UserAgent:      cfg.API.UserAgent,
		CDNHost:        cfg.API.CDNHost,
	}, logger)

	sessions := playback.NewSessions(resolver, playback.Config{
		IndirectionMarker: cfg.Playback.IndirectionMarker,
		Debounce:          cfg.Playback.Debounce,
		ResolveTimeout:    cfg.Playback.ResolveTimeout,
	}, cfg.Playback.SessionIdleTTL, logger)

	e := echo.New()
	server := api.NewServer(e, api.Config{
		Port:        cfg.Server.Port,
		CorsOrigins: cfg.Server.CorsOrigins,
		RateLimit:   cfg.Server.RateLimit,
		RateBurst:   cfg.Server.RateBurst,
	}, logger)

	api.NewRouter(
		e,
		postgres.NewArticleStore(db),
		postgres.NewVideoStore(db),
		postgres.NewSyncStateStore(db),
		sessions,
		normalizer.NewImageRewriter(cfg.API.CDNHost),
		cfg.Server.PageSize,
	).Bind()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
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

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}
