package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/domain"
	"github.com/pscheid92/screensync/internal/platform/retry"
	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultRelayChannel  = "screensync:announcements"
	DefaultRelayCooldown = 30 * time.Second
)

var (
	// ErrRelayNotSubscribed means this instance has no live subscriber, so
	// its own clients would miss the announcement.
	ErrRelayNotSubscribed = errors.New("relay subscriber not running")
	// ErrNoRelayReceivers means the publish reached no subscriber at all.
	ErrNoRelayReceivers = errors.New("announcement reached no relay subscriber")
)

// DefaultRelayPolicy retries a failed subscription a few times before
// cooling down.
func DefaultRelayPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     8 * time.Second,
	}
}

type RelayOption func(*Relay)

func WithRelayClock(clock clockwork.Clock) RelayOption {
	return func(r *Relay) { r.clock = clock }
}

// WithResubscribe sets the retry budget for a failed subscription and the
// pause once it is used up.
func WithResubscribe(policy retry.Policy, cooldown time.Duration) RelayOption {
	return func(r *Relay) {
		r.policy = policy
		r.cooldown = cooldown
	}
}

type relayMessage struct {
	Kind    domain.EventKind `json:"kind"`
	Payload map[string]any   `json:"payload,omitempty"`
}

// Relay fans announcements out over Redis pub/sub. Every instance runs a
// subscriber that hands received hints to its local hub, including the
// instance that published.
type Relay struct {
	rdb      *goredis.Client
	channel  string
	clock    clockwork.Clock
	policy   retry.Policy
	cooldown time.Duration

	// Live subscriptions held by this instance.
	active atomic.Int32
}

var _ domain.AnnouncementRelay = (*Relay)(nil)

func NewRelay(rdb *goredis.Client, channel string, opts ...RelayOption) *Relay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	r := &Relay{
		rdb:      rdb,
		channel:  channel,
		clock:    clockwork.NewRealClock(),
		policy:   DefaultRelayPolicy(),
		cooldown: DefaultRelayCooldown,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.policy.InitialBackoff <= 0 {
		r.policy = DefaultRelayPolicy()
	}
	if r.cooldown <= 0 {
		r.cooldown = DefaultRelayCooldown
	}
	return r
}

// Publish sends the announcement to every subscribed instance. It fails when
// this instance is not subscribed or nobody received the message, so the
// caller can notify its local clients directly.
func (r *Relay) Publish(ctx context.Context, kind domain.EventKind, payload map[string]any) error {
	data, err := json.Marshal(relayMessage{Kind: kind, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to marshal announcement: %w", err)
	}
	receivers, err := r.rdb.Publish(ctx, r.channel, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish announcement: %w", err)
	}
	if r.active.Load() == 0 {
		return fmt.Errorf("published to %d receivers: %w", receivers, ErrRelayNotSubscribed)
	}
	if receivers == 0 {
		return ErrNoRelayReceivers
	}
	return nil
}

// Subscribed reports whether this instance currently holds a subscription.
func (r *Relay) Subscribed() bool {
	return r.active.Load() > 0
}

// Supervise keeps a subscription alive until ctx is cancelled. A failed
// subscription is retried with backoff; once the budget is spent it waits out
// the cooldown and starts over. Meanwhile Publish fails and announcements go
// to local clients only.
func (r *Relay) Supervise(ctx context.Context, notifier domain.ContentNotifier) {
	for {
		_, err := retry.Do(ctx, r.clock, r.policy, retryAlways, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, r.Run(ctx, notifier)
		})
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			slog.WarnContext(ctx, "Announcement relay subscription ended, resubscribing", "channel", r.channel)
			continue
		}

		slog.ErrorContext(ctx, "Announcement relay unavailable, announcing locally",
			"channel", r.channel,
			"cooldown", r.cooldown,
			"error", err,
		)
		select {
		case <-r.clock.After(r.cooldown):
		case <-ctx.Done():
			return
		}
	}
}

// Run subscribes to the relay channel and forwards every announcement to
// notifier until ctx is cancelled. It returns an error when the subscription
// cannot be established and nil once an established one ends.
func (r *Relay) Run(ctx context.Context, notifier domain.ContentNotifier) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer func() { _ = pubsub.Close() }()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	r.active.Add(1)
	defer r.active.Add(-1)
	slog.InfoContext(ctx, "Announcement relay subscribed", "channel", r.channel)

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(ctx, notifier, msg.Payload)
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Relay) handle(ctx context.Context, notifier domain.ContentNotifier, payload string) {
	var msg relayMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		slog.WarnContext(ctx, "Dropping malformed relay message", "channel", r.channel, "error", err)
		return
	}
	if _, err := domain.ParseEventKind(string(msg.Kind)); err != nil {
		slog.WarnContext(ctx, "Dropping relay message with unknown kind", "kind", msg.Kind)
		return
	}

	delivered := notifier.NotifyContentUpdate(msg.Kind, msg.Payload)
	slog.DebugContext(ctx, "Relayed content update", "kind", msg.Kind, "clients", delivered)
}

func retryAlways(error) retry.Action { return retry.Retry }
