package changelog

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendFactory func(t *testing.T, capacity int, clock clockwork.Clock) domain.ChangeLog

func backends() map[string]backendFactory {
	return map[string]backendFactory{
		"memory": func(_ *testing.T, capacity int, clock clockwork.Clock) domain.ChangeLog {
			return NewMemory(capacity, clock)
		},
		"file": func(t *testing.T, capacity int, clock clockwork.Clock) domain.ChangeLog {
			return NewFile(filepath.Join(t.TempDir(), "events.json"), capacity, clock)
		},
	}
}

func event(ts int64) domain.ChangeEvent {
	return domain.ChangeEvent{Kind: domain.EventPlaylistUpdated, Timestamp: ts, Payload: map[string]any{"seq": float64(ts)}}
}

func timestamps(events []domain.ChangeEvent) []int64 {
	out := make([]int64, len(events))
	for i, e := range events {
		out[i] = e.Timestamp
	}
	return out
}

func TestChangeLog_EvictsOldestBeyondCapacity(t *testing.T) {
	for name, newLog := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			log := newLog(t, domain.DefaultChangeLogCapacity, clockwork.NewFakeClock())

			for ts := int64(1); ts <= 15; ts++ {
				require.NoError(t, log.Append(ctx, event(ts)))
			}

			all, err := log.ReadSince(ctx, 0)
			require.NoError(t, err)
			assert.Equal(t, []int64{6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, timestamps(all))
		})
	}
}

func TestChangeLog_ReadSinceIsStrictlyGreater(t *testing.T) {
	for name, newLog := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			log := newLog(t, domain.DefaultChangeLogCapacity, clockwork.NewFakeClock())

			for _, ts := range []int64{100, 200, 300} {
				require.NoError(t, log.Append(ctx, event(ts)))
			}

			got, err := log.ReadSince(ctx, 200)
			require.NoError(t, err)
			assert.Equal(t, []int64{300}, timestamps(got))

			got, err = log.ReadSince(ctx, 300)
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestChangeLog_KeepsInsertionOrder(t *testing.T) {
	for name, newLog := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			log := newLog(t, domain.DefaultChangeLogCapacity, clockwork.NewFakeClock())

			// Clock skew between writers can produce out-of-order timestamps.
			for _, ts := range []int64{50, 30, 70, 10} {
				require.NoError(t, log.Append(ctx, event(ts)))
			}

			got, err := log.ReadSince(ctx, 20)
			require.NoError(t, err)
			assert.Equal(t, []int64{50, 30, 70}, timestamps(got))
		})
	}
}

func TestChangeLog_StampsMissingTimestamp(t *testing.T) {
	for name, newLog := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
			log := newLog(t, domain.DefaultChangeLogCapacity, clock)

			require.NoError(t, log.Append(ctx, domain.ChangeEvent{Kind: domain.EventFilesUploaded}))

			got, err := log.ReadSince(ctx, 0)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, int64(1_700_000_000_000), got[0].Timestamp)
			assert.Equal(t, domain.EventFilesUploaded, got[0].Kind)
		})
	}
}

func TestChangeLog_WindowProperty(t *testing.T) {
	for name, newLog := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const capacity = 4
			log := newLog(t, capacity, clockwork.NewFakeClock())

			var appended []int64
			for i := 1; i <= 9; i++ {
				ts := int64((i * 37) % 11) // scrambled order
				require.NoError(t, log.Append(ctx, event(ts)))
				appended = append(appended, ts)

				retained := appended
				if len(retained) > capacity {
					retained = retained[len(retained)-capacity:]
				}
				for _, cut := range []int64{0, 3, 6, 9} {
					want := []int64{}
					for _, ts := range retained {
						if ts > cut {
							want = append(want, ts)
						}
					}
					got, err := log.ReadSince(ctx, cut)
					require.NoError(t, err)
					assert.Equal(t, want, timestamps(got), "after %d appends, since %d", i, cut)
				}
			}
		})
	}
}

func TestMemory_ConcurrentAppendsStayBounded(t *testing.T) {
	ctx := context.Background()
	log := NewMemory(domain.DefaultChangeLogCapacity, clockwork.NewFakeClock())

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			_ = log.Append(ctx, event(ts))
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, domain.DefaultChangeLogCapacity, log.Len())
}

func TestNewMemory_NonPositiveCapacityUsesDefault(t *testing.T) {
	log := NewMemory(0, clockwork.NewFakeClock())
	assert.Len(t, log.buf, domain.DefaultChangeLogCapacity)
}

func TestNewMemory_CapacityCappedAtWindow(t *testing.T) {
	log := NewMemory(50, clockwork.NewFakeClock())
	ctx := context.Background()
	for i := range 20 {
		require.NoError(t, log.Append(ctx, event(int64(i+1))))
	}

	got, err := log.ReadSince(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, domain.DefaultChangeLogCapacity)
	assert.Equal(t, int64(11), got[0].Timestamp)
}

func TestFile_CapacityCappedAtWindow(t *testing.T) {
	log := NewFile(filepath.Join(t.TempDir(), "events.json"), 50, clockwork.NewFakeClock())
	ctx := context.Background()
	for i := range 15 {
		require.NoError(t, log.Append(ctx, event(int64(i+1))))
	}

	got, err := log.ReadSince(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, domain.DefaultChangeLogCapacity)
}

func TestFile_MissingFileReadsEmpty(t *testing.T) {
	log := NewFile(filepath.Join(t.TempDir(), "nope", "events.json"), 10, clockwork.NewFakeClock())

	got, err := log.ReadSince(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFile_CorruptFileSoftFails(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	log := NewFile(path, 10, clockwork.NewFakeClock())

	got, err := log.ReadSince(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	// The next append rewrites the file cleanly.
	require.NoError(t, log.Append(ctx, event(42)))
	got, err = log.ReadSince(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, timestamps(got))
}

func TestFile_SharedBetweenInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.json")
	a := NewFile(path, 10, clockwork.NewFakeClock())
	b := NewFile(path, 10, clockwork.NewFakeClock())

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			writer := a
			if ts%2 == 0 {
				writer = b
			}
			assert.NoError(t, writer.Append(ctx, event(ts)))
		}(int64(i + 1))
	}
	wg.Wait()

	got, err := a.ReadSince(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestFile_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "events.json")

	require.NoError(t, NewFile(path, 10, clockwork.NewFakeClock()).Append(ctx, event(7)))

	got, err := NewFile(path, 10, clockwork.NewFakeClock()).ReadSince(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, float64(7), got[0].Payload["seq"])
}
