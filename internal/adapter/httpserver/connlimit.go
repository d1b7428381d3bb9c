package httpserver

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/screensync/internal/platform/errors"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTimeout     = 10 * time.Minute
)

type limitReason string

const (
	limitReasonPerIP limitReason = "per_ip_limit"
	limitReasonRate  limitReason = "rate_limit"
)

// connLimits guards the push endpoint per client IP: how many connections
// one address may hold open and how fast it may open new ones. The hub
// enforces the instance-wide cap. A zero limit disables that check.
type connLimits struct {
	clock    clockwork.Clock
	maxPerIP int
	rate     rate.Limit
	burst    int

	mu        sync.Mutex
	open      map[string]int
	limiters  map[string]*rateLimiterEntry
	cleanupAt time.Time
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newConnLimits(clock clockwork.Clock, maxPerIP int, connectsPerSecond float64, burst int) *connLimits {
	return &connLimits{
		clock:     clock,
		maxPerIP:  maxPerIP,
		rate:      rate.Limit(connectsPerSecond),
		burst:     max(burst, 1),
		open:      make(map[string]int),
		limiters:  make(map[string]*rateLimiterEntry),
		cleanupAt: clock.Now().Add(limiterCleanupInterval),
	}
}

// acquire reserves a connection slot for ip. The rate check runs first so a
// reconnect storm is refused before it counts against the open connections.
func (l *connLimits) acquire(ip string) (bool, limitReason) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		l.cleanupLocked(now)
		l.cleanupAt = now.Add(limiterCleanupInterval)
	}

	if l.rate > 0 {
		entry, ok := l.limiters[ip]
		if !ok {
			entry = &rateLimiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
			l.limiters[ip] = entry
		}
		entry.lastSeen = now
		if !entry.limiter.AllowN(now, 1) {
			return false, limitReasonRate
		}
	}

	if l.maxPerIP > 0 && l.open[ip] >= l.maxPerIP {
		return false, limitReasonPerIP
	}
	l.open[ip]++
	return true, ""
}

func (l *connLimits) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := l.open[ip]; n > 1 {
		l.open[ip] = n - 1
	} else {
		delete(l.open, ip)
	}
}

func (l *connLimits) openCount(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open[ip]
}

func (l *connLimits) cleanupLocked(now time.Time) {
	cutoff := now.Add(-limiterIdleTimeout)
	for ip, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}

// middleware holds the slot for as long as the wrapped handler runs, which
// for the push endpoint is the lifetime of the connection.
func (l *connLimits) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			ok, reason := l.acquire(ip)
			if !ok {
				slog.WarnContext(c.Request().Context(), "Push connection rejected", "ip", ip, "reason", reason)
				c.Response().Header().Set("Retry-After", "5")
				return c.JSON(http.StatusTooManyRequests, apperrors.ErrorResponse{
					Error: "too many connections",
					Type:  apperrors.TypeOverloaded,
				})
			}
			defer l.release(ip)
			return next(c)
		}
	}
}
