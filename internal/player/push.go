package player

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/domain"
	"github.com/pscheid92/screensync/internal/platform/retry"
)

const (
	DefaultPushPingInterval = 25 * time.Second
	pushWriteDeadline       = 5 * time.Second
	pushHandshakeTimeout    = 10 * time.Second
)

// DefaultReconnectPolicy retries a lost push connection a few times before
// cooling down to the polling interval.
func DefaultReconnectPolicy() retry.Policy {
	return retry.Policy{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     8 * time.Second,
	}
}

type PushConfig struct {
	ServerURL    string
	ScreenID     string
	PingInterval time.Duration
	// Cooldown is the pause after reconnect attempts are exhausted. Polling
	// keeps the screen correct meanwhile.
	Cooldown time.Duration
	Policy   retry.Policy
	Dialer   *websocket.Dialer
}

type pushMessage struct {
	Type       string `json:"type"`
	UpdateType string `json:"updateType,omitempty"`
}

// PushListener keeps the screen's push connection open. Content hints go to
// onHint; a lost connection is never fatal.
type PushListener struct {
	cfg    PushConfig
	clock  clockwork.Clock
	onHint func(ctx context.Context, kind domain.EventKind)

	statusCh chan domain.PlaybackStatus

	mu         sync.Mutex
	lastStatus domain.PlaybackStatus
}

func NewPushListener(cfg PushConfig, clock clockwork.Clock, onHint func(context.Context, domain.EventKind)) *PushListener {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPushPingInterval
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultChangeLogInterval
	}
	if cfg.Policy.InitialBackoff <= 0 {
		cfg.Policy = DefaultReconnectPolicy()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{HandshakeTimeout: pushHandshakeTimeout}
	}
	return &PushListener{
		cfg:      cfg,
		clock:    clock,
		onHint:   onHint,
		statusCh: make(chan domain.PlaybackStatus, 1),
	}
}

// ReportStatus queues the screen's playback status for the server. Only the
// latest unsent status is kept; it is resent after every reconnect.
func (p *PushListener) ReportStatus(status domain.PlaybackStatus) {
	p.mu.Lock()
	p.lastStatus = status
	p.mu.Unlock()

	for {
		select {
		case p.statusCh <- status:
			return
		default:
		}
		select {
		case <-p.statusCh:
		default:
		}
	}
}

// Run connects and reconnects until ctx is cancelled.
func (p *PushListener) Run(ctx context.Context) error {
	target, err := pushURL(p.cfg.ServerURL, p.cfg.ScreenID)
	if err != nil {
		return err
	}

	for {
		conn, err := retry.Do(ctx, p.clock, p.cfg.Policy, alwaysRetry, func(ctx context.Context) (*websocket.Conn, error) {
			conn, _, err := p.cfg.Dialer.DialContext(ctx, target, nil)
			return conn, err
		})
		if ctx.Err() != nil {
			if conn != nil {
				_ = conn.Close()
			}
			return nil
		}
		if err != nil {
			slog.WarnContext(ctx, "Push channel unavailable, relying on polling",
				"screen_id", p.cfg.ScreenID,
				"cooldown", p.cfg.Cooldown,
				"error", err,
			)
			select {
			case <-p.clock.After(p.cfg.Cooldown):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		slog.InfoContext(ctx, "Push channel connected", "screen_id", p.cfg.ScreenID)
		p.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		slog.WarnContext(ctx, "Push channel lost, reconnecting", "screen_id", p.cfg.ScreenID)
	}
}

// serve runs one connection. The writer goroutine owns every write; the
// read loop runs here until the connection fails or ctx ends.
func (p *PushListener) serve(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.writeLoop(ctx, conn, done)
	}()

	defer func() {
		close(done)
		wg.Wait()
		_ = conn.Close()
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "Push read failed", "screen_id", p.cfg.ScreenID, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		p.handle(ctx, data)
	}
}

func (p *PushListener) writeLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := p.clock.NewTicker(p.cfg.PingInterval)
	defer ticker.Stop()

	write := func(v any) bool {
		data, err := json.Marshal(v)
		if err != nil {
			return true
		}
		_ = conn.SetWriteDeadline(p.clock.Now().Add(pushWriteDeadline))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// Closing unblocks the reader, which ends serve.
			_ = conn.Close()
			return false
		}
		return true
	}

	p.mu.Lock()
	last := p.lastStatus
	p.mu.Unlock()
	if last != "" && !write(statusMessage(last)) {
		return
	}

	for {
		select {
		case status := <-p.statusCh:
			if !write(statusMessage(status)) {
				return
			}
		case <-ticker.Chan():
			if !write(map[string]string{"type": domain.MessagePing}) {
				return
			}
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "screen shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, p.clock.Now().Add(pushWriteDeadline))
			_ = conn.Close()
			return
		case <-done:
			return
		}
	}
}

func (p *PushListener) handle(ctx context.Context, data []byte) {
	var msg pushMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.WarnContext(ctx, "Dropping malformed push message", "screen_id", p.cfg.ScreenID, "error", err)
		return
	}

	switch msg.Type {
	case domain.MessageContentUpdated:
		kind, err := domain.ParseEventKind(msg.UpdateType)
		if err != nil {
			kind = domain.EventContentUpdated
		}
		if p.onHint != nil {
			p.onHint(ctx, kind)
		}
	case domain.MessageConnected, domain.MessagePong:
	default:
		slog.DebugContext(ctx, "Ignoring push message", "type", msg.Type)
	}
}

func statusMessage(status domain.PlaybackStatus) map[string]string {
	return map[string]string{
		"type":   domain.MessageScreenStatus,
		"status": string(status),
	}
}

func alwaysRetry(error) retry.Action { return retry.Retry }

// pushURL turns the server base URL into the screen's push endpoint.
func pushURL(base, screenID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{
		"type":     {string(domain.RoleScreen)},
		"screenId": {screenID},
	}.Encode()
	return u.String(), nil
}
