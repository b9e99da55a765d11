package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kah-digital/agency-backend/internal/auth/domain"
	"github.com/kah-digital/agency-backend/internal/auth/middleware"
	"github.com/kah-digital/agency-backend/internal/ratelimit"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "email and password required"})
		return
	}

	// Attempt lockout is tracked per email in addition to the rate limit
	// below; the two guards fail independently.
	if h.lockout != nil {
		if until := h.lockout.LockedUntil(c.Request.Context(), email); !until.IsZero() {
			remaining := int(time.Until(until).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(remaining))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"ok":        false,
				"error":     fmt.Sprintf("account locked, retry in %ds", remaining),
				"lockUntil": until.UnixMilli(),
			})
			return
		}
	}

	// Key on ip+email so one address cannot burn another user's quota.
	key := "admin-login:" + ratelimit.ClientIP(c) + ":" + email
	if res := h.limiter.Check(key, h.loginRate); !res.Allowed {
		c.Header("Retry-After", strconv.Itoa(res.RetryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"ok":         false,
			"error":      fmt.Sprintf("too many attempts, retry in %ds", res.RetryAfter),
			"retryAfter": res.RetryAfter,
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.loginTimeout)
	defer cancel()

	sess, err := h.svc.SignIn(ctx, email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusGatewayTimeout, gin.H{"ok": false, "error": "auth backend too slow, retry"})
		case errors.Is(err, domain.ErrConfigMissing):
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "auth backend not configured"})
		case errors.Is(err, domain.ErrInvalidCredentials):
			if h.lockout != nil {
				h.lockout.RecordFailure(c.Request.Context(), email)
			}
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid credentials"})
		case errors.Is(err, domain.ErrForbidden):
			if h.lockout != nil {
				h.lockout.RecordFailure(c.Request.Context(), email)
			}
			c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "account not authorized"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "login failed"})
		}
		return
	}

	if h.lockout != nil {
		h.lockout.Clear(c.Request.Context(), email)
	}

	h.setSessionCookie(c, sess.ID, int(h.sessionTTL.Seconds()))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) logout(c *gin.Context) {
	cookie, _ := c.Cookie(h.cookieName)
	if cookie != "" {
		_ = h.svc.SignOut(c.Request.Context(), cookie)
	}
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// status is the tolerant probe the console uses on load: always 200,
// reporting only booleans.
func (h *Handler) status(c *gin.Context) {
	sess, err := h.sessionFromCookie(c)
	if err != nil || !sess.IsAdmin() {
		c.JSON(http.StatusOK, gin.H{"isAdmin": false, "mfaActive": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"isAdmin": true, "mfaActive": sess.MFASatisfied()})
}

func (h *Handler) mfaStatus(c *gin.Context) {
	sess, ok := h.requireAdmin(c)
	if !ok {
		return
	}

	res, err := h.svc.MFAStatus(c.Request.Context(), sess)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not load mfa factors"})
		return
	}
	c.JSON(http.StatusOK, res)
}

type mfaVerifyReq struct {
	FactorID string `json:"factorId"`
	Code     string `json:"code"`
}

func (h *Handler) mfaVerify(c *gin.Context) {
	sess, ok := h.requireAdmin(c)
	if !ok {
		return
	}

	var req mfaVerifyReq
	if err := c.ShouldBindJSON(&req); err != nil ||
		strings.TrimSpace(req.FactorID) == "" || strings.TrimSpace(req.Code) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "factorId and code required"})
		return
	}

	err := h.svc.MFAVerify(c.Request.Context(), sess, strings.TrimSpace(req.FactorID), strings.TrimSpace(req.Code))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCode) || errors.Is(err, domain.ErrFactorNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid mfa code"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "verification failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) mfaReset(c *gin.Context) {
	sess, ok := h.requireAdmin(c)
	if !ok {
		return
	}

	if err := h.svc.MFAReset(c.Request.Context(), sess); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "mfa reset failed"})
		return
	}

	// The reset terminates the session; drop the cookie so the next
	// request starts the setup flow cleanly.
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) sessionFromCookie(c *gin.Context) (*domain.Session, error) {
	cookie, _ := c.Cookie(h.cookieName)
	return h.svc.Authenticate(c.Request.Context(), cookie)
}

// requireAdmin applies the session+role slice of the gate for the auth
// bootstrap endpoints, which sit outside the gated admin group but must
// still refuse anonymous or non-admin callers. MFA level is intentionally
// not required here: these are the endpoints that establish it.
func (h *Handler) requireAdmin(c *gin.Context) (*domain.Session, bool) {
	if sess := middleware.SessionFrom(c); sess != nil {
		return sess, true
	}

	sess, err := h.sessionFromCookie(c)
	if err != nil {
		if errors.Is(err, domain.ErrConfigMissing) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "auth backend not configured"})
		} else {
			c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "unauthenticated"})
		}
		return nil, false
	}
	if !sess.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"ok": false, "error": "forbidden"})
		return nil, false
	}
	return sess, true
}

func (h *Handler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookieName, value, maxAge, "/", "", false, true)
}
