package domain

import (
	"context"
	"fmt"
)

type EventKind string

const (
	EventContentUpdated  EventKind = "content-updated"
	EventFilesUploaded   EventKind = "files-uploaded"
	EventPlaylistUpdated EventKind = "playlist-updated"
)

func ParseEventKind(s string) (EventKind, error) {
	switch EventKind(s) {
	case EventContentUpdated, EventFilesUploaded, EventPlaylistUpdated:
		return EventKind(s), nil
	default:
		return "", fmt.Errorf("unknown event kind %q", s)
	}
}

// ChangeEvent is a record in the fallback change log. Timestamp is unix milliseconds.
type ChangeEvent struct {
	Kind      EventKind      `json:"kind"`
	Timestamp int64          `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// DefaultChangeLogCapacity is the number of events any ChangeLog retains.
const DefaultChangeLogCapacity = 10

// ChangeLog is a bounded FIFO of recent change events consumed by polling screens.
type ChangeLog interface {
	Append(ctx context.Context, event ChangeEvent) error
	ReadSince(ctx context.Context, since int64) ([]ChangeEvent, error)
}
