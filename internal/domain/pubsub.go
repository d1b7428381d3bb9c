package domain

import "context"

// ContentNotifier pushes a low-latency content hint to connected clients.
type ContentNotifier interface {
	NotifyContentUpdate(kind EventKind, payload map[string]any) int
}

// AnnouncementRelay fans a content hint out to every server instance.
type AnnouncementRelay interface {
	Publish(ctx context.Context, kind EventKind, payload map[string]any) error
}
