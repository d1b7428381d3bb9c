package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/screensync/internal/adapter/metrics"
	"github.com/pscheid92/screensync/internal/app"
	"github.com/pscheid92/screensync/internal/domain"
	"github.com/pscheid92/screensync/internal/platform/config"
)

type appService interface {
	ContentStatus(ctx context.Context, screenID string) (domain.ContentStatus, error)
	Stream(ctx context.Context, screenID string, index int) (domain.StreamResponse, error)
	ChangesSince(ctx context.Context, since int64) []domain.ChangeEvent
	Announce(ctx context.Context, kind domain.EventKind, payload map[string]any) app.AnnounceResult
	Clients() []domain.ClientRegistration
	Instances(ctx context.Context) []domain.ServerInstance
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app              appService
	websocketHandler http.Handler

	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	healthChecks []HealthCheck
	startTime    time.Time
}

// NewServer wires routes and middleware. reg may be nil, in which case
// /metrics is not served and requests are not measured.
func NewServer(cfg *config.Config, app appService, websocketHandler http.Handler, reg *prometheus.Registry, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:             e,
		config:           cfg,
		app:              app,
		websocketHandler: websocketHandler,
		registry:         reg,
		healthChecks:     healthChecks,
		startTime:        time.Now(),
	}
	if reg != nil {
		srv.httpMetrics = metrics.NewHTTPMetrics(reg)
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router for in-process callers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
