package ratelimit

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// KeyFunc builds the bucket key for a request. Sensitive endpoints combine
// the network identity with a second dimension (e.g. submitted email) so one
// IP cannot exhaust another caller's quota.
type KeyFunc func(c *gin.Context) string

// IPKey keys buckets by client IP with a route prefix.
func IPKey(prefix string) KeyFunc {
	return func(c *gin.Context) string {
		return prefix + ":" + ClientIP(c)
	}
}

// Middleware rejects requests over the window budget with 429 and a
// Retry-After header. Allowed requests carry the X-RateLimit-* headers.
func Middleware(l *Limiter, cfg Config, keyFn KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := l.Check(keyFn(c), cfg)

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			log.Printf("[ratelimit] rejected method=%s path=%s ip=%s retry_after=%ds",
				c.Request.Method, c.Request.URL.Path, ClientIP(c), res.RetryAfter)
			c.Header("Retry-After", strconv.Itoa(res.RetryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"ok":         false,
				"error":      fmt.Sprintf("too many requests, retry in %ds", res.RetryAfter),
				"retryAfter": res.RetryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
