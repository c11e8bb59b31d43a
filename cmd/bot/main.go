package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/C0okiesl/KopiRadar/internal/bot"
	"github.com/C0okiesl/KopiRadar/internal/config"
	"github.com/C0okiesl/KopiRadar/internal/feed"
	"github.com/C0okiesl/KopiRadar/internal/geocode"
	"github.com/C0okiesl/KopiRadar/internal/geofence"
	"github.com/C0okiesl/KopiRadar/internal/radar"
	"github.com/C0okiesl/KopiRadar/internal/scheduler"
	"github.com/C0okiesl/KopiRadar/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	var geo geocode.Geocoder = geocode.Disabled{}
	if cfg.GoogleMapsKey != "" {
		geo = geocode.NewGoogle(http.DefaultClient, cfg.GoogleMapsKey)
	}

	fences := geofence.New(store, cfg.GeofenceRadius)
	feedClient := feed.New(http.DefaultClient, cfg.FeedURL, cfg.FeedKey, log)

	svc := radar.New(store, feedClient, geo, fences, radar.Config{
		DefaultLat:       cfg.DefaultLat,
		DefaultLng:       cfg.DefaultLng,
		HistoryRetention: cfg.HistoryRetention,
	}, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := svc.Load(ctx); err != nil {
		log.Error("load user cache", "error", err)
		os.Exit(1)
	}

	b, err := bot.New(cfg.TelegramBotToken, svc, geo, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(svc, b, cfg.WatchInterval, log)
	b.SetWatcher(sched)

	log.Info("starting radar", "watch_interval", cfg.WatchInterval)

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("radar stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
