package changelog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/domain"
)

const lockRetryDelay = 10 * time.Millisecond

// File keeps the log as a JSON array on disk. Writes are serialized by an
// in-process mutex and an advisory file lock, so several server processes
// can share one file. A missing or unreadable file reads as empty.
type File struct {
	mu       sync.Mutex
	path     string
	lock     *flock.Flock
	capacity int
	clock    clockwork.Clock
}

func NewFile(path string, capacity int, clock clockwork.Clock) *File {
	return &File{
		path:     path,
		lock:     flock.New(path + ".lock"),
		capacity: NormalizeCapacity(capacity),
		clock:    clock,
	}
}

func (f *File) Append(ctx context.Context, event domain.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create change log directory: %w", err)
	}

	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire change log lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquire change log lock: %w", ctx.Err())
	}
	defer func() { _ = f.lock.Unlock() }()

	events := f.load(ctx)
	events = Trim(append(events, Stamp(f.clock, event)), f.capacity)

	return f.save(events)
}

func (f *File) ReadSince(ctx context.Context, ts int64) ([]domain.ChangeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := os.Stat(f.path); errors.Is(err, os.ErrNotExist) {
		return []domain.ChangeEvent{}, nil
	}

	locked, err := f.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire change log read lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire change log read lock: %w", ctx.Err())
	}
	defer func() { _ = f.lock.Unlock() }()

	return Since(f.load(ctx), ts), nil
}

func (f *File) load(ctx context.Context) []domain.ChangeEvent {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.WarnContext(ctx, "Change log unreadable, treating as empty", "path", f.path, "error", err)
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var events []domain.ChangeEvent
	if err := json.Unmarshal(data, &events); err != nil {
		slog.WarnContext(ctx, "Change log corrupt, treating as empty", "path", f.path, "error", err)
		return nil
	}
	return events
}

// save writes atomically through a temp file in the same directory.
func (f *File) save(events []domain.ChangeEvent) error {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal change log: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp change log: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp change log: %w", err)
	}
	return nil
}
