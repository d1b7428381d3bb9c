package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/domain"
)

const (
	DefaultImageDuration = 10 * time.Second
	DefaultVideoDuration = 30 * time.Second
)

// LogRenderer is a headless renderer: it "plays" each item by waiting for its
// duration and logging what would be on screen. Items without a URL or with
// an unknown media type fail as undecodable.
type LogRenderer struct {
	clock         clockwork.Clock
	imageDuration time.Duration
	videoDuration time.Duration

	mu    sync.Mutex
	timer clockwork.Timer
	gen   uint64
}

var _ Renderer = (*LogRenderer)(nil)

func NewLogRenderer(clock clockwork.Clock, imageDuration, videoDuration time.Duration) *LogRenderer {
	if imageDuration <= 0 {
		imageDuration = DefaultImageDuration
	}
	if videoDuration <= 0 {
		videoDuration = DefaultVideoDuration
	}
	return &LogRenderer{
		clock:         clock,
		imageDuration: imageDuration,
		videoDuration: videoDuration,
	}
}

func (r *LogRenderer) Play(ctx context.Context, item domain.PlaylistItem, report Reporter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()
	gen := r.gen

	d, err := r.durationOf(item)
	if err != nil {
		go report.Failed(err)
		return
	}

	slog.InfoContext(ctx, "Playing", "item", item.Name, "type", item.Type, "url", item.URL, "duration", d)
	r.timer = r.clock.AfterFunc(d, func() {
		r.mu.Lock()
		current := gen == r.gen
		r.mu.Unlock()
		if current {
			report.Completed()
		}
	})
}

func (r *LogRenderer) Preload(item domain.PlaylistItem) {
	slog.Debug("Preloading", "item", item.Name, "url", item.URL)
}

func (r *LogRenderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *LogRenderer) stopLocked() {
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *LogRenderer) durationOf(item domain.PlaylistItem) (time.Duration, error) {
	if item.URL == "" {
		return 0, fmt.Errorf("%s has no URL: %w", item.Name, domain.ErrDecodeUnsupported)
	}
	if item.Duration > 0 {
		return time.Duration(item.Duration) * time.Second, nil
	}
	switch item.Type {
	case domain.MediaImage:
		return r.imageDuration, nil
	case domain.MediaVideo:
		return r.videoDuration, nil
	default:
		return 0, fmt.Errorf("%s has media type %q: %w", item.Name, item.Type, domain.ErrDecodeUnsupported)
	}
}
