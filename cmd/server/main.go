package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/screensync/internal/adapter/httpserver"
	"github.com/pscheid92/screensync/internal/adapter/metrics"
	"github.com/pscheid92/screensync/internal/adapter/redis"
	"github.com/pscheid92/screensync/internal/app"
	"github.com/pscheid92/screensync/internal/authority"
	"github.com/pscheid92/screensync/internal/changelog"
	"github.com/pscheid92/screensync/internal/content"
	"github.com/pscheid92/screensync/internal/domain"
	"github.com/pscheid92/screensync/internal/hub"
	"github.com/pscheid92/screensync/internal/platform/config"
	"github.com/pscheid92/screensync/internal/platform/logging"
	"github.com/pscheid92/screensync/internal/platform/version"
	goredis "github.com/redis/go-redis/v9"
)

const (
	mediaBaseURL          = "/media"
	cacheEvictionInterval = time.Minute
	shutdownTimeout       = 10 * time.Second
)

func runGracefulShutdown(srv *httpserver.Server, h *hub.Hub, stopBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopBackground()
		h.Stop()

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) *goredis.Client {
	if !cfg.NeedsRedis() {
		return nil
	}

	client, err := redis.NewClient(ctx, cfg.RedisURL, metrics.NewRedisMetrics(reg))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupChangeLog(cfg *config.Config, rdb *goredis.Client, clock clockwork.Clock) domain.ChangeLog {
	switch cfg.ChangeLogBackend {
	case config.ChangeLogFile:
		slog.Info("Using file change log", "path", cfg.ChangeLogPath, "capacity", cfg.ChangeLogCapacity)
		return changelog.NewFile(cfg.ChangeLogPath, cfg.ChangeLogCapacity, clock)
	case config.ChangeLogRedis:
		slog.Info("Using Redis change log", "key", redis.DefaultChangeLogKey, "capacity", cfg.ChangeLogCapacity)
		return redis.NewChangeLog(rdb, redis.DefaultChangeLogKey, cfg.ChangeLogCapacity, clock)
	default:
		slog.Info("Using in-memory change log", "capacity", cfg.ChangeLogCapacity)
		return changelog.NewMemory(cfg.ChangeLogCapacity, clock)
	}
}

func instanceID() string {
	suffix := uuid.NewString()[:8]
	host, err := os.Hostname()
	if err != nil || host == "" {
		return suffix
	}
	return host + "-" + suffix
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	reg := metrics.NewRegistry()

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	rdb := setupRedis(bgCtx, cfg, reg)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	store := authority.NewFileStore(cfg.DataDir, cfg.MediaDir, mediaBaseURL)
	resolver := content.NewResolver(store, mediaBaseURL)
	cache := content.NewCache(content.NewFingerprinter(resolver), cfg.FingerprintCacheTTL, clock, metrics.NewCacheMetrics(reg))
	stopEviction := cache.StartEvictionTimer(cacheEvictionInterval)
	defer stopEviction()
	streamer := content.NewStreamer(resolver)

	changeLog := setupChangeLog(cfg, rdb, clock)

	h := hub.New(clock, cfg.MaxWebSocketConnections, metrics.NewHubMetrics(reg))
	wsHandler := hub.NewHandler(h, hub.NewCheckOrigin(cfg.AllowedOrigins(), cfg.IsDevelopment()))

	opts := []app.AnnouncerOption{app.WithAnnounceMetrics(metrics.NewAnnounceMetrics(reg))}
	if cfg.FingerprintInvalidateOnAnnounce {
		opts = append(opts, app.WithInvalidation(cache))
	}
	if cfg.AnnounceRelay == config.RelayRedis {
		relay := redis.NewRelay(rdb, redis.DefaultRelayChannel, redis.WithRelayClock(clock))
		opts = append(opts, app.WithRelay(relay))
		go relay.Supervise(bgCtx, h)
	}
	announcer := app.NewAnnouncer(h, changeLog, clock, opts...)

	var svcOpts []app.ServiceOption
	registryDone := make(chan struct{})
	if rdb != nil {
		registry := redis.NewInstanceRegistry(rdb, instanceID(), version.Get().Version, 0, clock)
		svcOpts = append(svcOpts, app.WithInstances(registry))
		go func() {
			defer close(registryDone)
			registry.Run(bgCtx)
		}()
	} else {
		close(registryDone)
	}

	appSvc := app.NewService(cache, streamer, changeLog, announcer, h, svcOpts...)

	healthChecks := []httpserver.HealthCheck{
		{Name: "content_authority", Check: store.Ready},
	}
	if rdb != nil {
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	srv := httpserver.NewServer(cfg, appSvc, wsHandler, reg, healthChecks)

	done := runGracefulShutdown(srv, h, stopBackground)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	<-registryDone
}
