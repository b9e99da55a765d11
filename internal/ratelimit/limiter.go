package ratelimit

import (
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Config describes one fixed window.
type Config struct {
	Window time.Duration
	Max    int
}

// Result is the outcome of a single Check call.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, 0 when allowed
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window request counter keyed by caller identity.
// Fixed windows reset at hard boundaries, so two bursts of Max requests
// can land within 2*Window of wall time around a boundary. That is the
// intended behavior, not a bug; callers depend on these exact timings.
//
// Limiters are constructed and injected per process (or per test), never
// held in a package-level variable.
type Limiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	lastCleanup time.Time
	now         func() time.Time
}

func New() *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// NewWithClock builds a limiter with an injected clock for tests.
func NewWithClock(now func() time.Time) *Limiter {
	l := New()
	l.now = now
	return l
}

// Check consumes one request for key under cfg and reports whether it is
// allowed. It never fails: an unknown key simply starts a fresh window.
func (l *Limiter) Check(key string, cfg Config) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanup(now, cfg.Window)

	b, ok := l.buckets[key]
	if !ok || !b.resetAt.After(now) {
		b = &bucket{count: 0, resetAt: now.Add(cfg.Window)}
		l.buckets[key] = b
	}
	b.count++

	allowed := b.count <= cfg.Max
	remaining := cfg.Max - b.count
	if remaining < 0 {
		remaining = 0
	}

	retryAfter := 0
	if !allowed {
		retryAfter = int(math.Ceil(b.resetAt.Sub(now).Seconds()))
	}

	return Result{
		Allowed:    allowed,
		Remaining:  remaining,
		ResetAt:    b.resetAt,
		RetryAfter: retryAfter,
	}
}

// cleanup drops expired buckets. Memory hygiene only; correctness does not
// depend on it. The sweep itself runs at most once per window so hot paths
// do not scan the whole map on every request.
func (l *Limiter) cleanup(now time.Time, window time.Duration) {
	if now.Sub(l.lastCleanup) < window {
		return
	}
	for key, b := range l.buckets {
		if !b.resetAt.After(now) {
			delete(l.buckets, key)
		}
	}
	l.lastCleanup = now
}

// Sweep removes all expired buckets immediately. The maintenance cron calls
// this so idle processes do not hold stale keys between requests.
func (l *Limiter) Sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if !b.resetAt.After(now) {
			delete(l.buckets, key)
		}
	}
	l.lastCleanup = now
}

// ClientIP resolves the caller network identity, preferring proxy headers
// in the order the edge sets them.
func ClientIP(c *gin.Context) string {
	if ip := strings.TrimSpace(c.GetHeader("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	if ip := strings.TrimSpace(c.GetHeader("X-Real-Ip")); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
