package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pscheid92/screensync/internal/domain"
	"github.com/stretchr/testify/require"
)

// fakeSource serves a fixed playlist. Errors queued per index are returned
// before the playlist is consulted.
type fakeSource struct {
	mu          sync.Mutex
	items       []domain.PlaylistItem
	looping     bool
	streamErrs  map[int][]error
	streamCalls map[int]int
	hash        string
	statusErr   error
	statusCalls int
	statusGate  chan struct{}
	events      []domain.ChangeEvent
	sinceArgs   []int64
}

func newFakeSource(names ...string) *fakeSource {
	src := &fakeSource{
		looping:     true,
		streamErrs:  make(map[int][]error),
		streamCalls: make(map[int]int),
		hash:        "hash-1",
	}
	src.setItems(names...)
	return src
}

func (f *fakeSource) setItems(names ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	for _, n := range names {
		f.items = append(f.items, domain.PlaylistItem{
			ID:   n,
			Name: n,
			URL:  "/media/" + n + ".jpg",
			Type: domain.MediaImage,
		})
	}
}

func (f *fakeSource) failStream(index int, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamErrs[index] = append(f.streamErrs[index], errs...)
}

func (f *fakeSource) setHash(hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hash = hash
}

func (f *fakeSource) calls(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls[index]
}

func (f *fakeSource) statusCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func (f *fakeSource) Stream(_ context.Context, _ string, index int) (domain.StreamResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.streamCalls[index]++
	if errs := f.streamErrs[index]; len(errs) > 0 {
		f.streamErrs[index] = errs[1:]
		return domain.StreamResponse{}, errs[0]
	}
	if len(f.items) == 0 {
		return domain.StreamResponse{}, domain.ErrNoContent
	}

	idx := index % len(f.items)
	current := f.items[idx]
	next := f.items[(idx+1)%len(f.items)]
	return domain.StreamResponse{
		CurrentItem:  &current,
		NextItem:     &next,
		TotalItems:   len(f.items),
		CurrentIndex: idx,
		IsLooping:    f.looping,
	}, nil
}

func (f *fakeSource) ContentStatus(ctx context.Context, _ string) (domain.ContentStatus, error) {
	f.mu.Lock()
	gate := f.statusGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.ContentStatus{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return domain.ContentStatus{}, f.statusErr
	}
	return domain.ContentStatus{
		HasContent:  len(f.items) > 0,
		ContentHash: f.hash,
		ItemCount:   len(f.items),
	}, nil
}

func (f *fakeSource) ChangeEvents(_ context.Context, since int64) ([]domain.ChangeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinceArgs = append(f.sinceArgs, since)

	out := []domain.ChangeEvent{}
	for _, ev := range f.events {
		if ev.Timestamp > since {
			out = append(out, ev)
		}
	}
	return out, nil
}

type playCall struct {
	item   domain.PlaylistItem
	report Reporter
}

// fakeRenderer hands every Play to the test, which decides the outcome.
type fakeRenderer struct {
	plays    chan playCall
	preloads chan domain.PlaylistItem

	mu    sync.Mutex
	stops int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		plays:    make(chan playCall, 64),
		preloads: make(chan domain.PlaylistItem, 64),
	}
}

func (r *fakeRenderer) Play(_ context.Context, item domain.PlaylistItem, report Reporter) {
	r.plays <- playCall{item: item, report: report}
}

func (r *fakeRenderer) Preload(item domain.PlaylistItem) {
	r.preloads <- item
}

func (r *fakeRenderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
}

func (r *fakeRenderer) stopCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stops
}

func nextPlay(t *testing.T, r *fakeRenderer) playCall {
	t.Helper()
	select {
	case p := <-r.plays:
		return p
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for Play")
		return playCall{}
	}
}

func assertNoPlay(t *testing.T, r *fakeRenderer) {
	t.Helper()
	select {
	case p := <-r.plays:
		require.FailNow(t, "unexpected Play", "item %s", p.item.Name)
	case <-time.After(100 * time.Millisecond):
	}
}

// fakeReporter collects LogRenderer outcomes.
type fakeReporter struct {
	completed chan struct{}
	failed    chan error
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{
		completed: make(chan struct{}, 8),
		failed:    make(chan error, 8),
	}
}

func (r *fakeReporter) Completed()       { r.completed <- struct{}{} }
func (r *fakeReporter) Failed(err error) { r.failed <- err }
