package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kah-digital/agency-backend/internal/auth/domain"
	"github.com/kah-digital/agency-backend/internal/auth/service"
	"github.com/kah-digital/agency-backend/internal/ratelimit"
)

const (
	// CtxSession holds the authenticated *domain.Session for handlers
	// behind the gate.
	CtxSession = "admin_session"
)

// Options configures the admin gate.
type Options struct {
	// CookieName is the session cookie the gate reads.
	CookieName string
	// ExcludePrefixes are sub-paths that bypass the gate entirely (login
	// and auth bootstrap). Checked before any identity lookup so a broken
	// identity backend can never lock out the login page itself.
	ExcludePrefixes []string
}

// Gate enforces session -> admin role -> MFA, in that order. Every denial
// is audit-logged with method, path, and caller IP only; allowed requests
// produce no log line to bound log volume.
func Gate(svc *service.Service, opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range opts.ExcludePrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		if !svc.Ready() {
			deny(c, "auth-config-missing")
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "auth backend not configured"})
			c.Abort()
			return
		}

		cookie, _ := c.Cookie(opts.CookieName)
		sess, err := svc.Authenticate(c.Request.Context(), cookie)
		if err != nil {
			if errors.Is(err, domain.ErrConfigMissing) {
				deny(c, "auth-config-missing")
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "auth backend not configured"})
			} else {
				deny(c, "unauthenticated")
				c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthenticated"})
			}
			c.Abort()
			return
		}

		if !sess.IsAdmin() {
			deny(c, "forbidden")
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "forbidden"})
			c.Abort()
			return
		}

		if !sess.MFASatisfied() {
			requirement, reqErr := svc.MFARequirement(c.Request.Context(), sess)
			if reqErr != nil {
				requirement = service.MFAVerify
			}
			deny(c, "mfa-required")
			c.JSON(http.StatusForbidden, gin.H{
				"ok":    false,
				"error": "mfa required",
				"mfa":   requirement,
			})
			c.Abort()
			return
		}

		c.Set(CtxSession, sess)
		c.Next()
	}
}

// SessionFrom extracts the gate-attached session, nil when absent.
func SessionFrom(c *gin.Context) *domain.Session {
	v, ok := c.Get(CtxSession)
	if !ok {
		return nil
	}
	sess, _ := v.(*domain.Session)
	return sess
}

func deny(c *gin.Context, reason string) {
	log.Printf("[gate] denied reason=%s method=%s path=%s ip=%s",
		reason, c.Request.Method, c.Request.URL.Path, ratelimit.ClientIP(c))
}
