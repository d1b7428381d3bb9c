package hub

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pscheid92/screensync/internal/domain"
)

// Handler upgrades GET /ws?type=screen|admin&screenId=... and serves the
// connection until it closes.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(h *Hub, checkOrigin func(*http.Request) bool) *Handler {
	return &Handler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

func (hd *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	role, ok := domain.ParseClientRole(q.Get("type"))
	if !ok {
		http.Error(w, "type must be screen or admin", http.StatusBadRequest)
		return
	}
	screenID := q.Get("screenId")
	if role == domain.RoleScreen && screenID == "" {
		http.Error(w, "screenId is required for screen clients", http.StatusBadRequest)
		return
	}

	conn, err := hd.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		slog.DebugContext(r.Context(), "WebSocket upgrade failed", "error", err)
		return
	}

	if err := hd.hub.ServeConn(r.Context(), conn, role, screenID); err != nil {
		slog.WarnContext(r.Context(), "Push connection refused", "role", role, "screen_id", screenID, "error", err)
	}
}
