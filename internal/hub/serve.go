package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pscheid92/screensync/internal/domain"
	"github.com/pscheid92/screensync/internal/platform/correlation"
)

// ReadConn is a Conn the hub can also read from.
type ReadConn interface {
	Conn
	ReadMessage() (messageType int, p []byte, err error)
}

type inbound struct {
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`
}

// ServeConn registers conn and runs its read loop until the peer goes away or
// ctx is cancelled. The registration is removed before ServeConn returns.
func (h *Hub) ServeConn(ctx context.Context, conn ReadConn, role domain.ClientRole, screenID string) error {
	id, err := h.Register(conn, role, screenID)
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		_ = conn.Close()
		return fmt.Errorf("register client: %w", err)
	}
	defer h.Unregister(id)

	ctx = correlation.Ensure(ctx)
	if screenID != "" {
		ctx = correlation.WithScreen(ctx, screenID)
	}

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stopped:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "Push connection lost", "client_id", id, "error", err)
			}
			return nil
		}
		if msgType != websocket.TextMessage {
			continue
		}

		_ = conn.SetReadDeadline(h.clock.Now().Add(pongDeadline))
		h.Touch(id)

		if err := h.handleInbound(id, role, screenID, data); err != nil {
			if h.metrics != nil {
				h.metrics.MalformedMessages.Inc()
			}
			slog.WarnContext(ctx, "Dropping inbound message", "client_id", id, "error", err)
		}
	}
}

func (h *Hub) handleInbound(id uuid.UUID, role domain.ClientRole, screenID string, data []byte) error {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}

	switch msg.Type {
	case domain.MessagePing:
		h.SendTo(ByClientID(id), Message{
			"type":      domain.MessagePong,
			"timestamp": h.clock.Now().UnixMilli(),
		})
		return nil

	case domain.MessageScreenStatus:
		if role != domain.RoleScreen {
			return fmt.Errorf("%w: screen-status from %s client", domain.ErrMalformedMessage, role)
		}
		if msg.Status == "" {
			return fmt.Errorf("%w: screen-status without status", domain.ErrMalformedMessage)
		}
		h.NotifyScreenStatus(screenID, msg.Status)
		return nil

	case "":
		return fmt.Errorf("%w: missing type", domain.ErrMalformedMessage)

	default:
		return fmt.Errorf("%w: unknown type %q", domain.ErrMalformedMessage, msg.Type)
	}
}
