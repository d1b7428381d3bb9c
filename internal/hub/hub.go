package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/adapter/metrics"
	"github.com/pscheid92/screensync/internal/domain"
)

const (
	commandTimeout     = 5 * time.Second
	stopTimeout        = 10 * time.Second
	commandChannelSize = 256
)

var (
	ErrHubFull    = errors.New("connection limit reached")
	ErrHubStopped = errors.New("hub stopped")
)

// Message is a flat JSON object with a "type" field.
type Message map[string]any

func (m Message) Type() string {
	t, _ := m["type"].(string)
	return t
}

// Predicate selects the registrations a message is sent to.
type Predicate func(domain.ClientRegistration) bool

func All(domain.ClientRegistration) bool { return true }

func ByRole(role domain.ClientRole) Predicate {
	return func(r domain.ClientRegistration) bool { return r.Role == role }
}

func ByScreen(screenID string) Predicate {
	return func(r domain.ClientRegistration) bool {
		return r.Role == domain.RoleScreen && r.ScreenID == screenID
	}
}

func ByClientID(id uuid.UUID) Predicate {
	return func(r domain.ClientRegistration) bool { return r.ClientID == id }
}

type command interface{ isCommand() }

type baseCommand struct{}

func (baseCommand) isCommand() {}

type registerResult struct {
	id  uuid.UUID
	err error
}

type registerCmd struct {
	baseCommand
	conn     Conn
	role     domain.ClientRole
	screenID string
	reply    chan registerResult
}

type unregisterCmd struct {
	baseCommand
	id    uuid.UUID
	reply chan struct{}
}

type touchCmd struct {
	baseCommand
	id uuid.UUID
}

type sendCmd struct {
	baseCommand
	pred  Predicate
	kind  string
	data  []byte
	reply chan int
}

type clientsCmd struct {
	baseCommand
	reply chan []domain.ClientRegistration
}

type stopCmd struct {
	baseCommand
}

type client struct {
	reg    domain.ClientRegistration
	writer *clientWriter
}

// Hub is the connection registry. Create it with New and release it with Stop.
type Hub struct {
	cmdCh          chan command
	clock          clockwork.Clock
	metrics        *metrics.HubMetrics
	maxConnections int
	clients        map[uuid.UUID]*client
	done           chan struct{}
	stopTimeout    time.Duration
}

// New starts the hub goroutine. m may be nil.
func New(clock clockwork.Clock, maxConnections int, m *metrics.HubMetrics) *Hub {
	h := &Hub{
		cmdCh:          make(chan command, commandChannelSize),
		clock:          clock,
		metrics:        m,
		maxConnections: maxConnections,
		clients:        make(map[uuid.UUID]*client),
		done:           make(chan struct{}),
		stopTimeout:    stopTimeout,
	}
	go h.run()
	return h
}

// Register adds a connection and queues the "connected" greeting to it.
func (h *Hub) Register(conn Conn, role domain.ClientRole, screenID string) (uuid.UUID, error) {
	reply := make(chan registerResult, 1)
	if !h.submit(registerCmd{conn: conn, role: role, screenID: screenID, reply: reply}) {
		return uuid.Nil, ErrHubStopped
	}

	res, ok := awaitReply(h, reply)
	if !ok {
		return uuid.Nil, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
	return res.id, res.err
}

// Unregister removes a registration and stops its writer. It returns once the
// registration is gone. Unknown IDs are ignored.
func (h *Hub) Unregister(id uuid.UUID) {
	reply := make(chan struct{}, 1)
	if !h.submit(unregisterCmd{id: id, reply: reply}) {
		return
	}
	if _, ok := awaitReply(h, reply); !ok {
		slog.Warn("Unregister timed out", "client_id", id, "timeout", commandTimeout)
	}
}

// Touch refreshes LastSeenAt.
func (h *Hub) Touch(id uuid.UUID) {
	h.submit(touchCmd{id: id})
}

// SendTo queues msg to every matching client and returns the number of
// deliveries. It never fails; marshalling errors and dead clients count as zero.
func (h *Hub) SendTo(pred Predicate, msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal hub message", "type", msg.Type(), "error", err)
		return 0
	}

	reply := make(chan int, 1)
	if !h.submit(sendCmd{pred: pred, kind: msg.Type(), data: data, reply: reply}) {
		return 0
	}
	n, ok := awaitReply(h, reply)
	if !ok {
		slog.Warn("SendTo timed out", "type", msg.Type(), "timeout", commandTimeout)
		return 0
	}
	return n
}

// NotifyContentUpdate sends a content-updated hint to every screen and admin.
// Payload keys are merged into the message; type and timestamp always win.
func (h *Hub) NotifyContentUpdate(kind domain.EventKind, payload map[string]any) int {
	msg := make(Message, len(payload)+3)
	for k, v := range payload {
		msg[k] = v
	}
	msg["type"] = domain.MessageContentUpdated
	msg["updateType"] = string(kind)
	msg["timestamp"] = h.clock.Now().UnixMilli()

	return h.SendTo(All, msg)
}

// NotifyScreenStatus forwards a screen's playback status to admins.
func (h *Hub) NotifyScreenStatus(screenID, status string) int {
	return h.SendTo(ByRole(domain.RoleAdmin), Message{
		"type":      domain.MessageScreenStatusUpdate,
		"screenId":  screenID,
		"status":    status,
		"timestamp": h.clock.Now().UnixMilli(),
	})
}

// Clients returns a snapshot of all registrations.
func (h *Hub) Clients() []domain.ClientRegistration {
	reply := make(chan []domain.ClientRegistration, 1)
	if !h.submit(clientsCmd{reply: reply}) {
		return nil
	}
	regs, _ := awaitReply(h, reply)
	return regs
}

// Stop closes every connection with a close frame and ends the hub goroutine.
func (h *Hub) Stop() {
	if !h.submit(stopCmd{}) {
		return
	}

	timeout := h.clock.NewTimer(h.stopTimeout)
	defer timeout.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", h.stopTimeout)
	}
}

func (h *Hub) submit(cmd command) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.done:
		return false
	}
}

func awaitReply[T any](h *Hub, reply <-chan T) (T, bool) {
	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	var zero T
	select {
	case v := <-reply:
		return v, true
	case <-h.done:
		return zero, false
	case <-timer.Chan():
		return zero, false
	}
}

func (h *Hub) run() {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Hub panic recovered", "panic", r)
			h.closeAll("hub failure")
		}
	}()

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			id, err := h.handleRegister(c)
			c.reply <- registerResult{id: id, err: err}
		case unregisterCmd:
			h.handleUnregister(c.id)
			c.reply <- struct{}{}
		case touchCmd:
			if cl, ok := h.clients[c.id]; ok {
				cl.reg.LastSeenAt = h.clock.Now()
			}
		case sendCmd:
			c.reply <- h.handleSend(c)
		case clientsCmd:
			regs := make([]domain.ClientRegistration, 0, len(h.clients))
			for _, cl := range h.clients {
				regs = append(regs, cl.reg)
			}
			c.reply <- regs
		case stopCmd:
			slog.Info("Hub shutting down", "clients", len(h.clients))
			h.closeAll("server shutting down")
			return
		default:
			slog.Warn("Hub received unknown command", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) (uuid.UUID, error) {
	if len(h.clients) >= h.maxConnections {
		if h.metrics != nil {
			h.metrics.RejectedConnections.Inc()
		}
		slog.Warn("Rejecting client: connection limit reached", "max_connections", h.maxConnections, "role", c.role)
		return uuid.Nil, ErrHubFull
	}

	now := h.clock.Now()
	reg := domain.ClientRegistration{
		ClientID:    uuid.New(),
		Role:        c.role,
		ScreenID:    c.screenID,
		ConnectedAt: now,
		LastSeenAt:  now,
	}
	cl := &client{reg: reg, writer: newClientWriter(c.conn, h.clock)}
	h.clients[reg.ClientID] = cl

	greeting, _ := json.Marshal(Message{
		"type":       domain.MessageConnected,
		"clientId":   reg.ClientID.String(),
		"serverTime": now.UTC().Format(time.RFC3339Nano),
		"timestamp":  now.UnixMilli(),
	})
	cl.writer.enqueue(greeting)

	if h.metrics != nil {
		h.metrics.ActiveConnections.WithLabelValues(string(reg.Role)).Inc()
		h.metrics.MessagesSent.WithLabelValues(domain.MessageConnected).Inc()
	}
	slog.Debug("Client registered", "client_id", reg.ClientID, "role", reg.Role, "screen_id", reg.ScreenID, "total_clients", len(h.clients))
	return reg.ClientID, nil
}

func (h *Hub) handleUnregister(id uuid.UUID) {
	cl, ok := h.clients[id]
	if !ok {
		return
	}

	delete(h.clients, id)
	cl.writer.stop()

	if h.metrics != nil {
		h.metrics.ActiveConnections.WithLabelValues(string(cl.reg.Role)).Dec()
	}
	slog.Debug("Client unregistered", "client_id", id, "role", cl.reg.Role, "remaining_clients", len(h.clients))
}

func (h *Hub) handleSend(c sendCmd) int {
	delivered := 0
	var slow []uuid.UUID

	for id, cl := range h.clients {
		if !c.pred(cl.reg) || !cl.writer.alive() {
			continue
		}
		if !cl.writer.enqueue(c.data) {
			slow = append(slow, id)
			continue
		}
		delivered++
	}

	for _, id := range slow {
		slog.Warn("Disconnecting slow client", "client_id", id)
		if h.metrics != nil {
			h.metrics.SlowClientsEvicted.Inc()
		}
		h.handleUnregister(id)
	}

	if h.metrics != nil && delivered > 0 {
		h.metrics.MessagesSent.WithLabelValues(c.kind).Add(float64(delivered))
	}
	return delivered
}

func (h *Hub) closeAll(reason string) {
	for id, cl := range h.clients {
		cl.writer.stopGraceful(reason)
		delete(h.clients, id)
	}
	if h.metrics != nil {
		h.metrics.ActiveConnections.Reset()
	}
}

// compile-time check that gorilla connections satisfy Conn.
var _ Conn = (*websocket.Conn)(nil)
