package changelog

import (
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/domain"
)

// Stamp fills in a missing timestamp from the clock.
func Stamp(clock clockwork.Clock, event domain.ChangeEvent) domain.ChangeEvent {
	if event.Timestamp == 0 {
		event.Timestamp = clock.Now().UnixMilli()
	}
	return event
}

// Since returns the events newer than ts, keeping their order. The result is
// never nil so it encodes as an empty JSON array.
func Since(events []domain.ChangeEvent, ts int64) []domain.ChangeEvent {
	out := make([]domain.ChangeEvent, 0, len(events))
	for _, e := range events {
		if e.Timestamp > ts {
			out = append(out, e)
		}
	}
	return out
}

// Trim drops the oldest events until at most capacity remain.
func Trim(events []domain.ChangeEvent, capacity int) []domain.ChangeEvent {
	if len(events) <= capacity {
		return events
	}
	return events[len(events)-capacity:]
}

// NormalizeCapacity maps non-positive capacities to the default and caps
// larger ones at it.
func NormalizeCapacity(capacity int) int {
	if capacity < 1 || capacity > domain.DefaultChangeLogCapacity {
		return domain.DefaultChangeLogCapacity
	}
	return capacity
}
