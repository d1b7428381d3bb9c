package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pscheid92/screensync/internal/domain"
	"go-simpler.org/env"
)

const (
	ChangeLogMemory = "memory"
	ChangeLogFile   = "file"
	ChangeLogRedis  = "redis"

	RelayNone  = "none"
	RelayRedis = "redis"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	DataDir  string `env:"DATA_DIR" default:"./data"`
	MediaDir string `env:"MEDIA_DIR" default:"./media"`

	ChangeLogBackend  string `env:"CHANGELOG_BACKEND" default:"memory"`
	ChangeLogPath     string `env:"CHANGELOG_PATH" default:"./data/change-events.json"`
	ChangeLogCapacity int    `env:"CHANGELOG_CAPACITY" default:"10"`

	RedisURL      string `env:"REDIS_URL"`
	AnnounceRelay string `env:"ANNOUNCE_RELAY" default:"none"`

	FingerprintCacheTTL             time.Duration `env:"FINGERPRINT_CACHE_TTL" default:"60s"`
	FingerprintInvalidateOnAnnounce bool          `env:"FINGERPRINT_INVALIDATE_ON_ANNOUNCE" default:"false"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	WSMaxConnectionsPerIP   int     `env:"WS_MAX_CONNECTIONS_PER_IP" default:"100"`
	WSConnectRatePerSecond  float64 `env:"WS_CONNECT_RATE_PER_SECOND" default:"5"`
	WSConnectBurst          int     `env:"WS_CONNECT_BURST" default:"20"`
	WSAllowedOrigins        string  `env:"WS_ALLOWED_ORIGINS"`
	RateLimitPerSecond      float64 `env:"RATE_LIMIT_PER_SECOND" default:"20"`
	RateLimitBurst          int     `env:"RATE_LIMIT_BURST" default:"40"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NeedsRedis reports whether any configured component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.ChangeLogBackend == ChangeLogRedis || c.AnnounceRelay == RelayRedis
}

// AllowedOrigins splits WS_ALLOWED_ORIGINS into trimmed, non-empty entries.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.WSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// IsDevelopment reports whether localhost origins are accepted on the push channel.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func validate(cfg *Config) error {
	switch cfg.ChangeLogBackend {
	case ChangeLogMemory, ChangeLogFile, ChangeLogRedis:
	default:
		return fmt.Errorf("CHANGELOG_BACKEND must be one of memory, file, redis (got %q)", cfg.ChangeLogBackend)
	}

	switch cfg.AnnounceRelay {
	case RelayNone, RelayRedis:
	default:
		return fmt.Errorf("ANNOUNCE_RELAY must be one of none, redis (got %q)", cfg.AnnounceRelay)
	}

	if cfg.NeedsRedis() && cfg.RedisURL == "" {
		return errors.New("REDIS_URL is required when CHANGELOG_BACKEND or ANNOUNCE_RELAY is redis")
	}
	if cfg.ChangeLogBackend == ChangeLogFile && cfg.ChangeLogPath == "" {
		return errors.New("CHANGELOG_PATH is required when CHANGELOG_BACKEND is file")
	}
	if cfg.ChangeLogCapacity < 1 {
		return errors.New("CHANGELOG_CAPACITY must be at least 1")
	}
	if cfg.ChangeLogCapacity > domain.DefaultChangeLogCapacity {
		return fmt.Errorf("CHANGELOG_CAPACITY must be at most %d", domain.DefaultChangeLogCapacity)
	}
	if cfg.FingerprintCacheTTL < 0 {
		return errors.New("FINGERPRINT_CACHE_TTL must not be negative")
	}
	if cfg.MaxWebSocketConnections < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS must be at least 1")
	}
	if cfg.WSMaxConnectionsPerIP < 0 {
		return errors.New("WS_MAX_CONNECTIONS_PER_IP must not be negative")
	}
	if cfg.DataDir == "" {
		return errors.New("DATA_DIR is required")
	}
	if cfg.MediaDir == "" {
		return errors.New("MEDIA_DIR is required")
	}

	return nil
}
