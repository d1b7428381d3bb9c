package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pscheid92/screensync/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// CircuitBreakerHook fails Redis commands fast once the server looks
// unavailable, so the change log and relay degrade to their soft-fail paths
// instead of stalling every announcement on connection timeouts.
type CircuitBreakerHook struct {
	cb *gobreaker.CircuitBreaker
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

// NewCircuitBreakerHook trips at a 60% failure rate over at least 5 requests
// and probes again with a single request after 30s. m may be nil.
func NewCircuitBreakerHook(m *metrics.RedisMetrics) *CircuitBreakerHook {
	return newCircuitBreakerHook(gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	}, m)
}

func newCircuitBreakerHook(settings gobreaker.Settings, m *metrics.RedisMetrics) *CircuitBreakerHook {
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		slog.Warn("Circuit breaker state changed",
			"component", name,
			"from", from.String(),
			"to", to.String(),
		)
		if m != nil {
			m.CircuitState.Set(stateToFloat(to))
		}
	}
	return &CircuitBreakerHook{cb: gobreaker.NewCircuitBreaker(settings)}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return next
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		var cmdErr error
		_, err := h.cb.Execute(func() (interface{}, error) {
			cmdErr = next(ctx, cmd)
			if errors.Is(cmdErr, goredis.Nil) {
				return nil, nil
			}
			return nil, cmdErr
		})
		if isBreakerRejection(err) {
			err = fmt.Errorf("redis circuit breaker open: %w", err)
			cmd.SetErr(err)
			return err
		}
		return cmdErr
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		var pipeErr error
		_, err := h.cb.Execute(func() (interface{}, error) {
			pipeErr = next(ctx, cmds)
			if errors.Is(pipeErr, goredis.Nil) {
				return nil, nil
			}
			return nil, pipeErr
		})
		if isBreakerRejection(err) {
			err = fmt.Errorf("redis circuit breaker open: %w", err)
			for _, cmd := range cmds {
				cmd.SetErr(err)
			}
			return err
		}
		return pipeErr
	}
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// GetState returns the current breaker state.
func (h *CircuitBreakerHook) GetState() gobreaker.State {
	return h.cb.State()
}

// GetCounts returns the request counts of the current breaker generation.
func (h *CircuitBreakerHook) GetCounts() gobreaker.Counts {
	return h.cb.Counts()
}
