package player

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/domain"
	"github.com/pscheid92/screensync/internal/platform/retry"
	"golang.org/x/sync/errgroup"
)

type Config struct {
	ServerURL         string
	ScreenID          string
	StatusInterval    time.Duration
	ChangeLogInterval time.Duration
	PingInterval      time.Duration
	DisablePush       bool
	Policy            retry.Policy
	HTTPClient        *http.Client
}

type Option func(*Player)

// WithSource replaces the HTTP source, e.g. in tests.
func WithSource(src Source) Option {
	return func(p *Player) { p.source = src }
}

func WithPlayerCallbacks(cb Callbacks) Option {
	return func(p *Player) { p.callbacks = cb }
}

// Player wires a Session to its Watcher and PushListener for one screen.
type Player struct {
	cfg       Config
	renderer  Renderer
	clock     clockwork.Clock
	source    Source
	callbacks Callbacks
}

func New(cfg Config, renderer Renderer, clock clockwork.Clock, opts ...Option) *Player {
	if cfg.Policy.InitialBackoff <= 0 {
		cfg.Policy = retry.DefaultPolicy()
	}
	p := &Player{
		cfg:      cfg,
		renderer: renderer,
		clock:    clock,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.source == nil {
		p.source = NewHTTPSource(cfg.ServerURL, cfg.HTTPClient)
	}
	return p
}

// Run plays until ctx is cancelled, then stops the session and waits for
// the poll and push loops to exit.
func (p *Player) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	var push *PushListener
	var watcher *Watcher

	if !p.cfg.DisablePush {
		push = NewPushListener(PushConfig{
			ServerURL:    p.cfg.ServerURL,
			ScreenID:     p.cfg.ScreenID,
			PingInterval: p.cfg.PingInterval,
			Cooldown:     p.cfg.ChangeLogInterval,
		}, p.clock, func(ctx context.Context, kind domain.EventKind) {
			watcher.Hint(ctx, kind)
		})
	}

	cb := p.callbacks
	userState := cb.OnState
	cb.OnState = func(state domain.PlaybackState) {
		if push != nil {
			push.ReportStatus(state.Status)
		}
		if userState != nil {
			userState(state)
		}
	}

	session := NewSession(p.cfg.ScreenID, p.source, p.renderer, p.clock,
		WithPolicy(p.cfg.Policy),
		WithCallbacks(cb),
	)

	watcher = NewWatcher(p.source, p.clock, WatcherConfig{
		ScreenID:          p.cfg.ScreenID,
		StatusInterval:    p.cfg.StatusInterval,
		ChangeLogInterval: p.cfg.ChangeLogInterval,
		FetchPolicy:       DefaultFetchPolicy(),
	}, func(status domain.ContentStatus) {
		slog.InfoContext(gctx, "Reloading after content change", "screen_id", p.cfg.ScreenID, "hash", status.ContentHash)
		session.Reload()
	})

	slog.InfoContext(ctx, "Player starting", "screen_id", p.cfg.ScreenID, "server", p.cfg.ServerURL, "push", push != nil)

	g.Go(func() error {
		watcher.Run(gctx)
		return nil
	})
	if push != nil {
		g.Go(func() error { return push.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		session.Stop()
		return nil
	})

	session.Start(gctx)

	err := g.Wait()
	slog.InfoContext(ctx, "Player stopped", "screen_id", p.cfg.ScreenID)
	return err
}
