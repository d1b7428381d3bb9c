package app

import (
	"context"
	"log/slog"
	"maps"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/adapter/metrics"
	"github.com/pscheid92/screensync/internal/domain"
)

// CacheInvalidator drops cached fingerprints so the next status request
// recomputes them.
type CacheInvalidator interface {
	InvalidateAll()
}

// AnnounceResult reports which halves of an announcement went through.
type AnnounceResult struct {
	Kind      domain.EventKind `json:"kind"`
	Timestamp int64            `json:"timestamp"`
	Delivered int              `json:"delivered"`
	Relayed   bool             `json:"relayed"`
	Logged    bool             `json:"logged"`
}

type Announcer struct {
	notifier    domain.ContentNotifier
	relay       domain.AnnouncementRelay
	log         domain.ChangeLog
	invalidator CacheInvalidator
	clock       clockwork.Clock
	m           *metrics.AnnounceMetrics
}

type AnnouncerOption func(*Announcer)

// WithRelay publishes the push half on a shared channel instead of notifying
// the local hub directly. The relay subscriber delivers it locally.
func WithRelay(relay domain.AnnouncementRelay) AnnouncerOption {
	return func(a *Announcer) { a.relay = relay }
}

// WithInvalidation drops every cached fingerprint on announce.
func WithInvalidation(inv CacheInvalidator) AnnouncerOption {
	return func(a *Announcer) { a.invalidator = inv }
}

func WithAnnounceMetrics(m *metrics.AnnounceMetrics) AnnouncerOption {
	return func(a *Announcer) { a.m = m }
}

func NewAnnouncer(notifier domain.ContentNotifier, log domain.ChangeLog, clock clockwork.Clock, opts ...AnnouncerOption) *Announcer {
	a := &Announcer{
		notifier: notifier,
		log:      log,
		clock:    clock,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Announce pushes a content hint and records it in the change log. Neither
// failure is returned: screens that miss the hint still see the change log
// entry, and screens that miss both still converge on the next fingerprint
// poll.
func (a *Announcer) Announce(ctx context.Context, kind domain.EventKind, payload map[string]any) AnnounceResult {
	res := AnnounceResult{
		Kind:      kind,
		Timestamp: a.clock.Now().UnixMilli(),
	}
	if a.m != nil {
		a.m.Announcements.WithLabelValues(string(kind)).Inc()
	}

	if a.invalidator != nil {
		a.invalidator.InvalidateAll()
	}

	a.push(ctx, kind, payload, &res)

	event := domain.ChangeEvent{Kind: kind, Timestamp: res.Timestamp, Payload: maps.Clone(payload)}
	if err := a.log.Append(ctx, event); err != nil {
		slog.WarnContext(ctx, "Change log append failed", "kind", kind, "error", err)
		if a.m != nil {
			a.m.ChangeLogFailures.Inc()
		}
	} else {
		res.Logged = true
	}

	slog.InfoContext(ctx, "Content announced",
		"kind", kind,
		"delivered", res.Delivered,
		"relayed", res.Relayed,
		"logged", res.Logged,
	)
	return res
}

func (a *Announcer) push(ctx context.Context, kind domain.EventKind, payload map[string]any, res *AnnounceResult) {
	if a.relay != nil {
		err := a.relay.Publish(ctx, kind, payload)
		if err == nil {
			res.Relayed = true
			return
		}
		slog.WarnContext(ctx, "Relay publish failed, notifying local clients only", "kind", kind, "error", err)
		if a.m != nil {
			a.m.RelayFailures.Inc()
		}
	}

	res.Delivered = a.notifier.NotifyContentUpdate(kind, maps.Clone(payload))
	if a.m != nil {
		a.m.HintDeliveries.Add(float64(res.Delivered))
	}
}
