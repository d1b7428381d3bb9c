package domain

import (
	"time"

	"github.com/google/uuid"
)

type ClientRole string

const (
	RoleScreen ClientRole = "screen"
	RoleAdmin  ClientRole = "admin"
)

// ParseClientRole validates a role from the push channel query string.
func ParseClientRole(s string) (ClientRole, bool) {
	switch ClientRole(s) {
	case RoleScreen:
		return RoleScreen, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// ClientRegistration is one live push connection. Owned by the hub.
type ClientRegistration struct {
	ClientID    uuid.UUID  `json:"clientId"`
	Role        ClientRole `json:"role"`
	ScreenID    string     `json:"screenId,omitempty"`
	ConnectedAt time.Time  `json:"connectedAt"`
	LastSeenAt  time.Time  `json:"lastSeenAt"`
}

// Message types on the push channel.
const (
	MessageConnected          = "connected"
	MessagePing               = "ping"
	MessagePong               = "pong"
	MessageScreenStatus       = "screen-status"
	MessageScreenStatusUpdate = "screen-status-update"
	MessageContentUpdated     = "content-updated"
)

// ServerInstance is one server process sharing the same Redis deployment.
type ServerInstance struct {
	InstanceID string `json:"instanceId"`
	Version    string `json:"version"`
	LastSeen   int64  `json:"lastSeen"` // unix ms
}
