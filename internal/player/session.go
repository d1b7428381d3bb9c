package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/domain"
	"github.com/pscheid92/screensync/internal/platform/retry"
)

const DefaultNoticeTTL = 5 * time.Second

// Source is the server as seen by a screen.
type Source interface {
	Stream(ctx context.Context, screenID string, index int) (domain.StreamResponse, error)
	ContentStatus(ctx context.Context, screenID string) (domain.ContentStatus, error)
	ChangeEvents(ctx context.Context, since int64) ([]domain.ChangeEvent, error)
}

// Reporter receives the outcome of one Play call.
type Reporter interface {
	Completed()
	Failed(err error)
}

// Renderer is the decode pipeline. Only one item plays at a time: Play
// replaces whatever was playing. Play returns promptly and reports the
// outcome later through report, never from inside Play.
type Renderer interface {
	Play(ctx context.Context, item domain.PlaylistItem, report Reporter)
	Preload(item domain.PlaylistItem)
	Stop()
}

// Callbacks observe the session. They run in order, one at a time, after the
// session lock is released, so they may call back into the Session.
type Callbacks struct {
	OnLoad   func(resp domain.StreamResponse)
	OnError  func(err error, class ErrorClass)
	OnNotice func(message string) // empty message clears the notice
	OnState  func(state domain.PlaybackState)
}

type SessionOption func(*Session)

func WithPolicy(p retry.Policy) SessionOption {
	return func(s *Session) { s.policy = p }
}

func WithCallbacks(cb Callbacks) SessionOption {
	return func(s *Session) { s.callbacks = cb }
}

func WithNoticeTTL(d time.Duration) SessionOption {
	return func(s *Session) { s.noticeTTL = d }
}

// Session is the playback state machine for one screen. Every load, retry
// timer and Play call carries the generation it was started under; anything
// reporting back under an older generation has been superseded and is dropped.
type Session struct {
	screenID  string
	source    Source
	renderer  Renderer
	clock     clockwork.Clock
	policy    retry.Policy
	noticeTTL time.Duration
	callbacks Callbacks

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	state       domain.PlaybackState
	looping     bool
	gen         uint64
	started     bool
	stopped     bool
	retryTimer  clockwork.Timer
	noticeTimer clockwork.Timer
	noticeGen   uint64
	pending     []func()
	draining    bool

	// renderMu orders renderer calls so a superseded load cannot start
	// playing after the load that replaced it.
	renderMu sync.Mutex
}

func NewSession(screenID string, source Source, renderer Renderer, clock clockwork.Clock, opts ...SessionOption) *Session {
	s := &Session{
		screenID:  screenID,
		source:    source,
		renderer:  renderer,
		clock:     clock,
		policy:    retry.DefaultPolicy(),
		noticeTTL: DefaultNoticeTTL,
		looping:   true,
		state:     domain.PlaybackState{Status: domain.StatusLoading},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads index 0. It is a no-op on a started or stopped session.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.loadLocked(0)
	s.unlock()
}

// Reload restarts the current index with a fresh retry budget. The server
// wraps the index if the playlist shrank.
func (s *Session) Reload() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	index := s.state.CurrentIndex
	if s.state.Status == domain.StatusNoContent {
		index = 0
	}
	s.state.RetryCount = 0
	s.loadLocked(index)
	s.unlock()
}

func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.gen++
	s.stopTimersLocked()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.renderMu.Lock()
	s.renderer.Stop()
	s.renderMu.Unlock()
}

// State returns a copy of the current playback state.
func (s *Session) State() domain.PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) loadLocked(index int) {
	s.gen++
	gen := s.gen
	s.stopRetryLocked()

	s.state.CurrentIndex = index
	s.setStatusLocked(domain.StatusLoading)

	ctx := s.ctx
	go s.fetch(ctx, gen, index)
}

func (s *Session) fetch(ctx context.Context, gen uint64, index int) {
	resp, err := s.source.Stream(ctx, s.screenID, index)

	s.mu.Lock()
	defer s.unlock()

	if gen != s.gen || s.stopped {
		return
	}

	if errors.Is(err, domain.ErrNoContent) || (err == nil && resp.CurrentItem == nil) {
		slog.InfoContext(ctx, "No content assigned", "screen_id", s.screenID)
		s.state.TotalItems = 0
		s.state.CurrentIndex = 0
		s.state.RetryCount = 0
		s.state.LastError = nil
		s.setStatusLocked(domain.StatusNoContent)
		s.after(func() { s.stopRenderer(gen) })
		return
	}
	if err != nil {
		// Nothing is playing yet, so a failed fetch always gets the retry path.
		if Classify(err) == ClassUnknown {
			err = fmt.Errorf("%w: %w", domain.ErrNetworkTransient, err)
		}
		s.failLocked(gen, err)
		return
	}

	if resp.CurrentIndex != s.state.CurrentIndex {
		s.state.RetryCount = 0
	}
	s.state.CurrentIndex = resp.CurrentIndex
	s.state.TotalItems = resp.TotalItems
	s.state.LastError = nil
	s.looping = resp.IsLooping
	s.setStatusLocked(domain.StatusPlaying)

	slog.DebugContext(ctx, "Loaded item",
		"screen_id", s.screenID,
		"index", resp.CurrentIndex,
		"total", resp.TotalItems,
		"item", resp.CurrentItem.Name,
	)

	if cb := s.callbacks.OnLoad; cb != nil {
		s.after(func() { cb(resp) })
	}
	s.after(func() { s.play(ctx, gen, resp) })
}

func (s *Session) play(ctx context.Context, gen uint64, resp domain.StreamResponse) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	if !s.isCurrent(gen) {
		return
	}
	s.renderer.Play(ctx, *resp.CurrentItem, reporter{s: s, gen: gen})
	if resp.NextItem != nil {
		s.renderer.Preload(*resp.NextItem)
	}
}

func (s *Session) stopRenderer(gen uint64) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	if s.isCurrent(gen) {
		s.renderer.Stop()
	}
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen && !s.stopped
}

func (s *Session) completedLocked(gen uint64) {
	if gen != s.gen || s.stopped || s.state.Status != domain.StatusPlaying {
		return
	}
	s.advanceLocked()
}

// advanceLocked moves to the next index, or ends a non-looping playlist.
func (s *Session) advanceLocked() {
	s.state.RetryCount = 0

	total := s.state.TotalItems
	if total == 0 {
		s.loadLocked(0)
		return
	}

	if !s.looping && s.state.CurrentIndex >= total-1 {
		s.gen++
		gen := s.gen
		s.stopRetryLocked()
		s.setStatusLocked(domain.StatusCompleted)
		s.after(func() { s.stopRenderer(gen) })
		return
	}

	s.loadLocked((s.state.CurrentIndex + 1) % total)
}

func (s *Session) failLocked(gen uint64, err error) {
	if gen != s.gen || !s.started || s.stopped {
		return
	}

	class := Classify(err)
	if cb := s.callbacks.OnError; cb != nil {
		s.after(func() { cb(err, class) })
	}

	attrs := []any{
		"screen_id", s.screenID,
		"index", s.state.CurrentIndex,
		"class", class.String(),
		"error", err,
	}

	switch class {
	case ClassPermanent:
		slog.WarnContext(s.ctx, "Skipping unplayable item", attrs...)
		s.state.LastError = err
		s.advanceLocked()

	case ClassTransient:
		s.state.LastError = err
		if s.policy.Exhausted(s.state.RetryCount) {
			slog.WarnContext(s.ctx, "Retries exhausted, skipping item", append(attrs, "retries", s.state.RetryCount)...)
			s.advanceLocked()
			return
		}

		s.state.RetryCount++
		backoff := s.policy.Backoff(s.state.RetryCount)
		slog.InfoContext(s.ctx, "Retrying item", append(attrs, "retry", s.state.RetryCount, "backoff", backoff)...)

		// Invalidate the failed attempt so a late report cannot race the retry.
		s.gen++
		retryGen := s.gen
		s.setStatusLocked(domain.StatusError)
		s.stopRetryLocked()
		s.retryTimer = s.clock.AfterFunc(backoff, func() { s.retry(retryGen) })
		s.noticeLocked("Connection problem, retrying")

	default:
		slog.WarnContext(s.ctx, "Unexpected playback error", attrs...)
		s.noticeLocked("Playback problem: " + err.Error())
	}
}

func (s *Session) retry(gen uint64) {
	s.mu.Lock()
	defer s.unlock()

	if gen != s.gen || s.stopped {
		return
	}
	s.loadLocked(s.state.CurrentIndex)
}

func (s *Session) noticeLocked(message string) {
	cb := s.callbacks.OnNotice
	if cb == nil {
		return
	}

	if s.noticeTimer != nil {
		s.noticeTimer.Stop()
	}
	s.noticeGen++
	noticeGen := s.noticeGen
	s.after(func() { cb(message) })

	s.noticeTimer = s.clock.AfterFunc(s.noticeTTL, func() {
		s.mu.Lock()
		if noticeGen != s.noticeGen || s.stopped {
			s.mu.Unlock()
			return
		}
		s.noticeTimer = nil
		s.after(func() { cb("") })
		s.unlock()
	})
}

func (s *Session) setStatusLocked(status domain.PlaybackStatus) {
	s.state.Status = status
	if cb := s.callbacks.OnState; cb != nil {
		state := s.state
		s.after(func() { cb(state) })
	}
}

func (s *Session) stopRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

func (s *Session) stopTimersLocked() {
	s.stopRetryLocked()
	if s.noticeTimer != nil {
		s.noticeTimer.Stop()
		s.noticeTimer = nil
	}
}

// after queues fn to run once the lock is released by unlock.
func (s *Session) after(fn func()) {
	s.pending = append(s.pending, fn)
}

// unlock releases mu and runs queued callbacks in the order they were
// queued. One goroutine drains at a time; callbacks queued meanwhile,
// including those from a callback calling back into the session, run
// after the current one on the draining goroutine.
func (s *Session) unlock() {
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 {
		fn := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		fn()
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

// reporter binds a Play call to the generation that started it.
type reporter struct {
	s   *Session
	gen uint64
}

func (r reporter) Completed() {
	r.s.mu.Lock()
	r.s.completedLocked(r.gen)
	r.s.unlock()
}

func (r reporter) Failed(err error) {
	r.s.mu.Lock()
	r.s.failLocked(r.gen, err)
	r.s.unlock()
}
