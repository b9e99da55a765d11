package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_FixedWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })
	cfg := Config{Window: 10 * time.Minute, Max: 3}

	t.Run("allows exactly max calls in one window", func(t *testing.T) {
		for i := 0; i < cfg.Max; i++ {
			res := l.Check("login:1.2.3.4", cfg)
			assert.True(t, res.Allowed, "call %d should pass", i+1)
			assert.Equal(t, cfg.Max-i-1, res.Remaining)
			assert.Equal(t, 0, res.RetryAfter)
		}

		res := l.Check("login:1.2.3.4", cfg)
		assert.False(t, res.Allowed)
		assert.Equal(t, 0, res.Remaining)
		assert.Greater(t, res.RetryAfter, 0)
	})

	t.Run("fresh window after reset", func(t *testing.T) {
		now = now.Add(cfg.Window + time.Second)

		res := l.Check("login:1.2.3.4", cfg)
		assert.True(t, res.Allowed)
		assert.Equal(t, cfg.Max-1, res.Remaining)
		assert.Equal(t, now.Add(cfg.Window), res.ResetAt)
	})

	t.Run("keys are independent", func(t *testing.T) {
		for i := 0; i < cfg.Max+2; i++ {
			l.Check("login:5.6.7.8", cfg)
		}
		res := l.Check("login:9.9.9.9", cfg)
		assert.True(t, res.Allowed)
	})
}

func TestLimiter_BoundaryBurstIsAccepted(t *testing.T) {
	// Fixed windows allow max requests just before a boundary and max more
	// just after it. That double burst is the documented trade-off of the
	// scheme; this test pins it down so nobody "fixes" it to sliding window.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })
	cfg := Config{Window: time.Minute, Max: 2}

	require.True(t, l.Check("k", cfg).Allowed)
	require.True(t, l.Check("k", cfg).Allowed)
	require.False(t, l.Check("k", cfg).Allowed)

	now = now.Add(cfg.Window + time.Millisecond)

	assert.True(t, l.Check("k", cfg).Allowed)
	assert.True(t, l.Check("k", cfg).Allowed)
	assert.False(t, l.Check("k", cfg).Allowed)
}

func TestLimiter_RetryAfterRoundsUp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })
	cfg := Config{Window: 90 * time.Second, Max: 1}

	require.True(t, l.Check("k", cfg).Allowed)

	now = now.Add(500 * time.Millisecond)
	res := l.Check("k", cfg)
	require.False(t, res.Allowed)
	// 89.5s remaining rounds up to 90.
	assert.Equal(t, 90, res.RetryAfter)
}

func TestLimiter_SweepDropsExpiredBuckets(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewWithClock(func() time.Time { return now })
	cfg := Config{Window: time.Minute, Max: 5}

	for i := 0; i < 10; i++ {
		l.Check(fmt.Sprintf("k%d", i), cfg)
	}
	require.Len(t, l.buckets, 10)

	now = now.Add(2 * time.Minute)
	l.Sweep()
	assert.Empty(t, l.buckets)

	// Sweeping never affects correctness: a new call starts fresh.
	res := l.Check("k0", cfg)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)
}

func TestClientIP_HeaderPrecedence(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"cloudflare wins", map[string]string{"CF-Connecting-IP": "1.1.1.1", "X-Forwarded-For": "2.2.2.2"}, "1.1.1.1"},
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "3.3.3.3, 4.4.4.4"}, "3.3.3.3"},
		{"real ip fallback", map[string]string{"X-Real-Ip": "5.5.5.5"}, "5.5.5.5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ClientIP(c))
		})
	}
}

func TestMiddleware_RejectsWithRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	l := New()
	cfg := Config{Window: time.Minute, Max: 1}

	router := gin.New()
	router.POST("/submit", Middleware(l, cfg, IPKey("submit")), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/submit", nil))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/submit", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}
