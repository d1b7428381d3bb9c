package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/screensync/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingProcess(ctx context.Context, cmd goredis.Cmder) error {
	return errors.New("connection refused")
}

func tripBreaker(t *testing.T, hook *CircuitBreakerHook, n int) {
	t.Helper()
	ctx := context.Background()
	processHook := hook.ProcessHook(failingProcess)
	for i := 0; i < n; i++ {
		_ = processHook(ctx, goredis.NewStringCmd(ctx, "get", "key"))
	}
}

func shortTimeoutHook(m *metrics.RedisMetrics) *CircuitBreakerHook {
	return newCircuitBreakerHook(gobreaker.Settings{
		Name:        "redis-test",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     100 * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 3 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	}, m)
}

func TestCircuitBreakerHook_NormalOperation(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	assert.Equal(t, gobreaker.StateClosed, hook.GetState())

	ctx := context.Background()
	processHook := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
		return nil
	})
	for i := 0; i < 10; i++ {
		assert.NoError(t, processHook(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	}

	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
	counts := hook.GetCounts()
	assert.Equal(t, uint32(10), counts.Requests)
	assert.Equal(t, uint32(10), counts.TotalSuccesses)
	assert.Equal(t, uint32(0), counts.TotalFailures)
}

func TestCircuitBreakerHook_NilIsNotAFailure(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)

	ctx := context.Background()
	processHook := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
		return goredis.Nil
	})
	for i := 0; i < 10; i++ {
		err := processHook(ctx, goredis.NewStringCmd(ctx, "get", "missing"))
		assert.ErrorIs(t, err, goredis.Nil)
	}

	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
	assert.Equal(t, uint32(0), hook.GetCounts().TotalFailures)
}

func TestCircuitBreakerHook_TransientFailures(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)

	ctx := context.Background()
	processHook := hook.ProcessHook(failingProcess)
	for i := 0; i < 2; i++ {
		err := processHook(ctx, goredis.NewStringCmd(ctx, "get", "key"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
}

func TestCircuitBreakerHook_OpensAfterSustainedFailures(t *testing.T) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	hook := NewCircuitBreakerHook(m)

	tripBreaker(t, hook, 5)

	assert.Equal(t, gobreaker.StateOpen, hook.GetState())
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CircuitState))
}

func TestCircuitBreakerHook_FailsFastWhenOpen(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	tripBreaker(t, hook, 5)
	require.Equal(t, gobreaker.StateOpen, hook.GetState())

	ctx := context.Background()
	called := false
	processHook := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
		called = true
		return nil
	})

	cmd := goredis.NewStringCmd(ctx, "lpush", "key", "value")
	err := processHook(ctx, cmd)

	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.ErrorIs(t, cmd.Err(), gobreaker.ErrOpenState, "command carries the breaker error")
	assert.False(t, called, "Redis should not be called when circuit is open")
}

func TestCircuitBreakerHook_PipelineFailsFastWhenOpen(t *testing.T) {
	hook := NewCircuitBreakerHook(nil)
	tripBreaker(t, hook, 5)

	ctx := context.Background()
	called := false
	pipelineHook := hook.ProcessPipelineHook(func(ctx context.Context, cmds []goredis.Cmder) error {
		called = true
		return nil
	})

	cmds := []goredis.Cmder{
		goredis.NewIntCmd(ctx, "lpush", "key", "value"),
		goredis.NewStatusCmd(ctx, "ltrim", "key", 0, 9),
	}
	err := pipelineHook(ctx, cmds)

	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.False(t, called)
	for _, cmd := range cmds {
		assert.ErrorIs(t, cmd.Err(), gobreaker.ErrOpenState)
	}
}

func TestCircuitBreakerHook_RecoveryToHalfOpen(t *testing.T) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	hook := shortTimeoutHook(m)

	tripBreaker(t, hook, 3)
	require.Equal(t, gobreaker.StateOpen, hook.GetState())

	time.Sleep(150 * time.Millisecond)

	ctx := context.Background()
	processHook := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
		return nil
	})
	require.NoError(t, processHook(ctx, goredis.NewStringCmd(ctx, "get", "key")))

	assert.Equal(t, gobreaker.StateHalfOpen, hook.GetState())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CircuitState))
}

func TestCircuitBreakerHook_ClosesAfterSuccessfulRecovery(t *testing.T) {
	m := metrics.NewRedisMetrics(prometheus.NewRegistry())
	hook := shortTimeoutHook(m)

	tripBreaker(t, hook, 3)
	require.Equal(t, gobreaker.StateOpen, hook.GetState())

	time.Sleep(150 * time.Millisecond)

	ctx := context.Background()
	processHook := hook.ProcessHook(func(ctx context.Context, cmd goredis.Cmder) error {
		return nil
	})
	for i := 0; i < 3; i++ {
		require.NoError(t, processHook(ctx, goredis.NewStringCmd(ctx, "get", "key")))
	}

	assert.Equal(t, gobreaker.StateClosed, hook.GetState())
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CircuitState))
}
