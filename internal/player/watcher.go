package player

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/domain"
	"github.com/pscheid92/screensync/internal/platform/retry"
)

const (
	DefaultStatusInterval    = 30 * time.Second
	DefaultChangeLogInterval = 15 * time.Second
)

// DefaultFetchPolicy keeps fingerprint fetches short: a poll tick that cannot
// reach the server gives up quickly and the next tick tries again.
func DefaultFetchPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

type WatcherConfig struct {
	ScreenID          string
	StatusInterval    time.Duration
	ChangeLogInterval time.Duration
	FetchPolicy       retry.Policy
}

func (c *WatcherConfig) applyDefaults() {
	if c.StatusInterval <= 0 {
		c.StatusInterval = DefaultStatusInterval
	}
	if c.ChangeLogInterval <= 0 {
		c.ChangeLogInterval = DefaultChangeLogInterval
	}
}

// Watcher decides when a screen must reload. Change-log entries and push
// hints only trigger a fingerprint check; onChange fires only when the
// fetched content hash differs from the last one seen.
type Watcher struct {
	source   Source
	clock    clockwork.Clock
	cfg      WatcherConfig
	onChange func(status domain.ContentStatus)

	statusBusy  atomic.Bool
	changesBusy atomic.Bool
	wg          sync.WaitGroup

	mu        sync.Mutex
	lastHash  string
	hasHash   bool
	lastEvent int64
}

func NewWatcher(source Source, clock clockwork.Clock, cfg WatcherConfig, onChange func(domain.ContentStatus)) *Watcher {
	cfg.applyDefaults()
	return &Watcher{
		source:   source,
		clock:    clock,
		cfg:      cfg,
		onChange: onChange,
	}
}

// Run polls until ctx is cancelled and waits for in-flight checks to finish.
// The first fingerprint fetched becomes the baseline and does not trigger a
// reload.
func (w *Watcher) Run(ctx context.Context) {
	statusTicker := w.clock.NewTicker(w.cfg.StatusInterval)
	defer statusTicker.Stop()
	changesTicker := w.clock.NewTicker(w.cfg.ChangeLogInterval)
	defer changesTicker.Stop()

	w.TriggerCheck(ctx)

	for {
		select {
		case <-ctx.Done():
			w.wg.Wait()
			return
		case <-statusTicker.Chan():
			w.TriggerCheck(ctx)
		case <-changesTicker.Chan():
			w.triggerChangePoll(ctx)
		}
	}
}

// Hint reacts to a push notification. It never reloads on its own.
func (w *Watcher) Hint(ctx context.Context, kind domain.EventKind) {
	slog.DebugContext(ctx, "Content hint received", "screen_id", w.cfg.ScreenID, "kind", kind)
	w.TriggerCheck(ctx)
}

// TriggerCheck starts a background fingerprint check unless one is already
// in flight. It reports whether a check was started.
func (w *Watcher) TriggerCheck(ctx context.Context) bool {
	if !w.statusBusy.CompareAndSwap(false, true) {
		slog.DebugContext(ctx, "Fingerprint check already in flight, skipping", "screen_id", w.cfg.ScreenID)
		return false
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.statusBusy.Store(false)
		w.CheckFingerprint(ctx)
	}()
	return true
}

// CheckFingerprint fetches the content status and calls onChange when the
// hash moved. Fetch failures keep the previous hash.
func (w *Watcher) CheckFingerprint(ctx context.Context) bool {
	status, err := retry.Do(ctx, w.clock, w.cfg.FetchPolicy, retryable,
		func(ctx context.Context) (domain.ContentStatus, error) {
			return w.source.ContentStatus(ctx, w.cfg.ScreenID)
		})
	if err != nil {
		if ctx.Err() == nil {
			slog.WarnContext(ctx, "Fingerprint fetch failed, keeping previous", "screen_id", w.cfg.ScreenID, "error", err)
		}
		return false
	}

	w.mu.Lock()
	changed := w.hasHash && status.ContentHash != w.lastHash
	w.lastHash = status.ContentHash
	w.hasHash = true
	w.mu.Unlock()

	if changed {
		slog.InfoContext(ctx, "Content changed",
			"screen_id", w.cfg.ScreenID,
			"hash", status.ContentHash,
			"items", status.ItemCount,
		)
		if w.onChange != nil {
			w.onChange(status)
		}
	}
	return changed
}

func (w *Watcher) triggerChangePoll(ctx context.Context) bool {
	if !w.changesBusy.CompareAndSwap(false, true) {
		return false
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.changesBusy.Store(false)
		w.PollChanges(ctx)
	}()
	return true
}

// PollChanges reads the change log since the newest event seen and asks for
// a fingerprint check if anything new arrived. Payloads are not trusted.
func (w *Watcher) PollChanges(ctx context.Context) int {
	w.mu.Lock()
	since := w.lastEvent
	w.mu.Unlock()

	events, err := w.source.ChangeEvents(ctx, since)
	if err != nil {
		if ctx.Err() == nil {
			slog.WarnContext(ctx, "Change log poll failed", "screen_id", w.cfg.ScreenID, "error", err)
		}
		return 0
	}
	if len(events) == 0 {
		return 0
	}

	newest := since
	for _, ev := range events {
		newest = max(newest, ev.Timestamp)
	}
	w.mu.Lock()
	w.lastEvent = max(w.lastEvent, newest)
	w.mu.Unlock()

	slog.DebugContext(ctx, "Change log has new events", "screen_id", w.cfg.ScreenID, "count", len(events))
	w.TriggerCheck(ctx)
	return len(events)
}

// LastHash returns the last content hash seen, if any.
func (w *Watcher) LastHash() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastHash, w.hasHash
}
