package changelog

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/domain"
)

// Memory is a mutex-guarded ring buffer. Its contents do not survive a restart.
type Memory struct {
	mu    sync.Mutex
	clock clockwork.Clock
	buf   []domain.ChangeEvent
	head  int // index of the oldest event
	size  int
}

func NewMemory(capacity int, clock clockwork.Clock) *Memory {
	return &Memory{
		clock: clock,
		buf:   make([]domain.ChangeEvent, NormalizeCapacity(capacity)),
	}
}

func (m *Memory) Append(_ context.Context, event domain.ChangeEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event = Stamp(m.clock, event)

	if m.size < len(m.buf) {
		m.buf[(m.head+m.size)%len(m.buf)] = event
		m.size++
		return nil
	}

	// Full: overwrite the oldest slot and move head forward.
	m.buf[m.head] = event
	m.head = (m.head + 1) % len(m.buf)
	return nil
}

func (m *Memory) ReadSince(_ context.Context, ts int64) ([]domain.ChangeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Since(m.snapshot(), ts), nil
}

// Len returns the number of retained events.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// snapshot returns the retained events oldest first. Caller holds mu.
func (m *Memory) snapshot() []domain.ChangeEvent {
	out := make([]domain.ChangeEvent, m.size)
	for i := range m.size {
		out[i] = m.buf[(m.head+i)%len(m.buf)]
	}
	return out
}
