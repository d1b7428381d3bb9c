package hub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	messageBufferSize = 16
)

// Conn is the part of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// clientWriter is the only goroutine that writes to its connection.
type clientWriter struct {
	conn     Conn
	clock    clockwork.Clock
	send     chan []byte
	done     chan struct{}
	dead     atomic.Bool
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newClientWriter(conn Conn, clock clockwork.Clock) *clientWriter {
	cw := &clientWriter{
		conn:  conn,
		clock: clock,
		send:  make(chan []byte, messageBufferSize),
		done:  make(chan struct{}),
	}
	cw.configurePongHandler()
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) alive() bool {
	return !cw.dead.Load()
}

// enqueue reports false when the buffer is full.
func (cw *clientWriter) enqueue(data []byte) bool {
	select {
	case cw.send <- data:
		return true
	default:
		return false
	}
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg := <-cw.send:
			cw.updateWriteDeadline()
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				cw.fail()
				return
			}
		case <-ticker.Chan():
			cw.updateWriteDeadline()
			if err := cw.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				cw.fail()
				return
			}
		case <-cw.done:
			return
		}
	}
}

// fail marks the writer dead and closes the socket, which ends the reader
// and with it the registration.
func (cw *clientWriter) fail() {
	cw.dead.Store(true)
	_ = cw.conn.Close()
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		cw.dead.Store(true)
		close(cw.done)
		_ = cw.conn.Close()
	})
	cw.wg.Wait()
}

// stopGraceful sends a close frame with reason before closing.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		cw.dead.Store(true)
		close(cw.done)
		// Wait for run to exit so the close frame is not a concurrent write.
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
		cw.updateWriteDeadline()
		_ = cw.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.conn.Close()
	})
}

func (cw *clientWriter) configurePongHandler() {
	cw.updateReadDeadline()
	cw.conn.SetPongHandler(func(string) error {
		cw.updateReadDeadline()
		return nil
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.conn.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}

func (cw *clientWriter) updateReadDeadline() {
	_ = cw.conn.SetReadDeadline(cw.clock.Now().Add(pongDeadline))
}
