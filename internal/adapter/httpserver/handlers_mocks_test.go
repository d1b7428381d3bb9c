package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pscheid92/screensync/internal/app"
	"github.com/pscheid92/screensync/internal/domain"
	"github.com/pscheid92/screensync/internal/platform/config"
	"github.com/prometheus/client_golang/prometheus"
)

// --- Mock implementations ---

type mockAppService struct {
	contentStatusFn func(ctx context.Context, screenID string) (domain.ContentStatus, error)
	streamFn        func(ctx context.Context, screenID string, index int) (domain.StreamResponse, error)
	changesSinceFn  func(ctx context.Context, since int64) []domain.ChangeEvent
	announceFn      func(ctx context.Context, kind domain.EventKind, payload map[string]any) app.AnnounceResult
	clients         []domain.ClientRegistration
	instances       []domain.ServerInstance
}

func (m *mockAppService) ContentStatus(ctx context.Context, screenID string) (domain.ContentStatus, error) {
	if m.contentStatusFn != nil {
		return m.contentStatusFn(ctx, screenID)
	}
	return domain.ContentStatus{Files: []domain.FileInfo{}}, nil
}

func (m *mockAppService) Stream(ctx context.Context, screenID string, index int) (domain.StreamResponse, error) {
	if m.streamFn != nil {
		return m.streamFn(ctx, screenID, index)
	}
	return domain.StreamResponse{}, domain.ErrNoContent
}

func (m *mockAppService) ChangesSince(ctx context.Context, since int64) []domain.ChangeEvent {
	if m.changesSinceFn != nil {
		return m.changesSinceFn(ctx, since)
	}
	return []domain.ChangeEvent{}
}

func (m *mockAppService) Announce(ctx context.Context, kind domain.EventKind, payload map[string]any) app.AnnounceResult {
	if m.announceFn != nil {
		return m.announceFn(ctx, kind, payload)
	}
	return app.AnnounceResult{Kind: kind, Logged: true}
}

func (m *mockAppService) Clients() []domain.ClientRegistration {
	if m.clients == nil {
		return []domain.ClientRegistration{}
	}
	return m.clients
}

func (m *mockAppService) Instances(context.Context) []domain.ServerInstance {
	if m.instances == nil {
		return []domain.ServerInstance{}
	}
	return m.instances
}

// --- Test helpers ---

type serverOptions struct {
	cfg          *config.Config
	wsHandler    http.Handler
	registry     *prometheus.Registry
	healthChecks []HealthCheck
}

func withConfig(cfg *config.Config) func(*serverOptions) {
	return func(o *serverOptions) { o.cfg = cfg }
}

func withWebsocketHandler(h http.Handler) func(*serverOptions) {
	return func(o *serverOptions) { o.wsHandler = h }
}

func withRegistry(reg *prometheus.Registry) func(*serverOptions) {
	return func(o *serverOptions) { o.registry = reg }
}

func withHealthChecks(checks ...HealthCheck) func(*serverOptions) {
	return func(o *serverOptions) { o.healthChecks = checks }
}

func newTestServer(t *testing.T, app appService, opts ...func(*serverOptions)) *Server {
	t.Helper()

	o := serverOptions{cfg: &config.Config{Port: "0"}}
	for _, opt := range opts {
		opt(&o)
	}
	return NewServer(o.cfg, app, o.wsHandler, o.registry, o.healthChecks)
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
