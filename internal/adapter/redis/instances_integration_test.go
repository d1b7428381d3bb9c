package redis

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceRegistry_HeartbeatAndDeregister(t *testing.T) {
	client := setupTestClient(t)
	clock := clockwork.NewFakeClock()
	a := NewInstanceRegistry(client, "a", "v1", time.Second, clock)
	b := NewInstanceRegistry(client, "b", "v2", time.Second, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()
	b.beat(context.Background())

	require.Eventually(t, func() bool {
		list, err := b.Instances(context.Background())
		return err == nil && len(list) == 2
	}, 2*time.Second, 10*time.Millisecond)

	list, err := b.Instances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", list[0].InstanceID)
	assert.Equal(t, "v1", list[0].Version)
	assert.Equal(t, "b", list[1].InstanceID)

	cancel()
	<-done

	list, err = b.Instances(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].InstanceID)
}

func TestInstanceRegistry_HidesStaleAndCorruptEntries(t *testing.T) {
	client := setupTestClient(t)
	clock := clockwork.NewFakeClock()
	r := NewInstanceRegistry(client, "old", "v1", time.Second, clock)
	ctx := context.Background()

	r.beat(ctx)
	require.NoError(t, client.HSet(ctx, DefaultInstancesKey, "broken", "{not json").Err())

	clock.Advance(staleHeartbeats*time.Second + time.Millisecond)
	fresh := NewInstanceRegistry(client, "new", "v1", time.Second, clock)
	fresh.beat(ctx)

	list, err := fresh.Instances(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].InstanceID)
}
