package redis

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/screensync/internal/adapter/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Connects(t *testing.T) {
	client := setupTestClient(t)

	err := client.Ping(context.Background()).Err()
	require.NoError(t, err)
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not-a-url://", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse redis URL")
}

func TestNewClient_RecordsOperationMetrics(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	client, err := NewClient(ctx, testRedisURL, m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(ctx, "metrics-key", "v", 0).Err())

	assert.GreaterOrEqual(t, testutil.CollectAndCount(m.OperationDuration), 2, "ping and set are both observed")
	assert.Equal(t, float64(0), testutil.ToFloat64(m.OperationErrors.WithLabelValues("set")))
}
