package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/changelog"
	"github.com/pscheid92/screensync/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const DefaultChangeLogKey = "screensync:change-events"

// ChangeLog stores the change log as a Redis list, newest first, shared by
// every server instance pointing at the same key.
type ChangeLog struct {
	rdb      *goredis.Client
	key      string
	capacity int
	clock    clockwork.Clock
}

var _ domain.ChangeLog = (*ChangeLog)(nil)

func NewChangeLog(rdb *goredis.Client, key string, capacity int, clock clockwork.Clock) *ChangeLog {
	if key == "" {
		key = DefaultChangeLogKey
	}
	return &ChangeLog{
		rdb:      rdb,
		key:      key,
		capacity: changelog.NormalizeCapacity(capacity),
		clock:    clock,
	}
}

func (c *ChangeLog) Append(ctx context.Context, event domain.ChangeEvent) error {
	data, err := json.Marshal(changelog.Stamp(c.clock, event))
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, c.key, data)
		pipe.LTrim(ctx, c.key, 0, int64(c.capacity-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append change event: %w", err)
	}
	return nil
}

func (c *ChangeLog) ReadSince(ctx context.Context, since int64) ([]domain.ChangeEvent, error) {
	raw, err := c.rdb.LRange(ctx, c.key, 0, int64(c.capacity-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read change events: %w", err)
	}

	// LPUSH keeps the newest entry at the head.
	slices.Reverse(raw)

	events := make([]domain.ChangeEvent, 0, len(raw))
	for _, item := range raw {
		var ev domain.ChangeEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			slog.WarnContext(ctx, "Skipping corrupt change event", "key", c.key, "error", err)
			continue
		}
		events = append(events, ev)
	}

	return changelog.Since(events, since), nil
}
