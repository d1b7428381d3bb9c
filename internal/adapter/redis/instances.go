package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/screensync/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultInstancesKey = "screensync:instances"
	DefaultHeartbeat    = 15 * time.Second

	// An instance missing this many heartbeats is no longer listed.
	staleHeartbeats = 4
)

// InstanceRegistry keeps a heartbeat per server instance in a Redis hash so
// operators can see which instances share the relay and change log.
type InstanceRegistry struct {
	rdb        *goredis.Client
	key        string
	instanceID string
	version    string
	heartbeat  time.Duration
	clock      clockwork.Clock
}

func NewInstanceRegistry(rdb *goredis.Client, instanceID, version string, heartbeat time.Duration, clock clockwork.Clock) *InstanceRegistry {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &InstanceRegistry{
		rdb:        rdb,
		key:        DefaultInstancesKey,
		instanceID: instanceID,
		version:    version,
		heartbeat:  heartbeat,
		clock:      clock,
	}
}

// Run registers immediately, heartbeats until ctx is cancelled, then removes
// the registration.
func (r *InstanceRegistry) Run(ctx context.Context) {
	r.beat(ctx)

	ticker := r.clock.NewTicker(r.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.beat(ctx)
		case <-ctx.Done():
			r.deregister()
			return
		}
	}
}

func (r *InstanceRegistry) beat(ctx context.Context) {
	data, err := json.Marshal(domain.ServerInstance{
		InstanceID: r.instanceID,
		Version:    r.version,
		LastSeen:   r.clock.Now().UnixMilli(),
	})
	if err != nil {
		return
	}
	if err := r.rdb.HSet(ctx, r.key, r.instanceID, data).Err(); err != nil && ctx.Err() == nil {
		slog.WarnContext(ctx, "Instance heartbeat failed", "instance_id", r.instanceID, "error", err)
	}
}

func (r *InstanceRegistry) deregister() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.rdb.HDel(ctx, r.key, r.instanceID).Err(); err != nil {
		slog.Warn("Failed to deregister instance", "instance_id", r.instanceID, "error", err)
	}
}

// Instances lists instances with a recent heartbeat, ordered by ID. Corrupt
// entries are skipped.
func (r *InstanceRegistry) Instances(ctx context.Context) ([]domain.ServerInstance, error) {
	raw, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	cutoff := r.clock.Now().Add(-staleHeartbeats * r.heartbeat).UnixMilli()
	instances := make([]domain.ServerInstance, 0, len(raw))
	for _, data := range raw {
		var inst domain.ServerInstance
		if err := json.Unmarshal([]byte(data), &inst); err != nil {
			continue
		}
		if inst.LastSeen >= cutoff {
			instances = append(instances, inst)
		}
	}

	sort.Slice(instances, func(i, j int) bool { return instances[i].InstanceID < instances[j].InstanceID })
	return instances, nil
}
