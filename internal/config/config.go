// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultLat           = 1.3490515
	DefaultLng           = 103.9414295
	DefaultFeedURL       = "https://api.fastpokemap.se/"
	DefaultFeedKey       = "allow-all"
	DefaultWatchInterval = 240 * time.Second
	DefaultRadius        = 0.003
	DefaultRetention     = 7 * 24 * time.Hour
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	GoogleMapsKey    string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	FeedURL string
	FeedKey string

	DefaultLat       float64
	DefaultLng       float64
	WatchInterval    time.Duration
	GeofenceRadius   float64
	HistoryRetention time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	cfg := &Config{
		TelegramBotToken: token,
		GoogleMapsKey:    os.Getenv("GOOGLE_MAPS_KEY"),
		DatabasePath:     envOr("DATABASE_PATH", "./data/radar.db"),
		LogLevel:         envOr("LOG_LEVEL", "info"),
		FeedURL:          envOr("FEED_URL", DefaultFeedURL),
		FeedKey:          envOr("FEED_KEY", DefaultFeedKey),
		DefaultLat:       DefaultLat,
		DefaultLng:       DefaultLng,
		WatchInterval:    DefaultWatchInterval,
		GeofenceRadius:   DefaultRadius,
		HistoryRetention: DefaultRetention,
	}

	var err error
	if cfg.DefaultLat, err = envFloat("DEFAULT_LAT", cfg.DefaultLat); err != nil {
		return nil, err
	}
	if cfg.DefaultLng, err = envFloat("DEFAULT_LNG", cfg.DefaultLng); err != nil {
		return nil, err
	}
	if cfg.GeofenceRadius, err = envFloat("GEOFENCE_RADIUS", cfg.GeofenceRadius); err != nil {
		return nil, err
	}

	if raw := os.Getenv("WATCH_INTERVAL_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 1 {
			return nil, fmt.Errorf("invalid WATCH_INTERVAL_SECONDS %q", raw)
		}
		cfg.WatchInterval = time.Duration(secs) * time.Second
	}

	if raw := os.Getenv("HISTORY_RETENTION_DAYS"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			return nil, fmt.Errorf("invalid HISTORY_RETENTION_DAYS %q", raw)
		}
		cfg.HistoryRetention = time.Duration(days) * 24 * time.Hour
	}

	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
		}
	}

	return cfg, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
