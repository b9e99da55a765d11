package http

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kah-digital/agency-backend/internal/botcheck"
	"github.com/kah-digital/agency-backend/internal/leads/domain"
	"github.com/kah-digital/agency-backend/internal/leads/repository"
	"github.com/kah-digital/agency-backend/internal/ratelimit"
)

// Notifier receives accepted leads for fan-out. Delivery problems stay on
// the notifier's side.
type Notifier interface {
	NotifyLead(ctx context.Context, lead domain.LeadRecord)
}

// Handler accepts public quote submissions.
type Handler struct {
	store    repository.Store
	verifier *botcheck.Verifier
	notifier Notifier
	limiter  *ratelimit.Limiter
	rate     ratelimit.Config
	now      func() time.Time
}

func New(store repository.Store, verifier *botcheck.Verifier, notifier Notifier, limiter *ratelimit.Limiter, rate ratelimit.Config) *Handler {
	return &Handler{
		store:    store,
		verifier: verifier,
		notifier: notifier,
		limiter:  limiter,
		rate:     rate,
		now:      time.Now,
	}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/leads", h.submit)
}

// submission is the public payload: a full lead plus the anti-abuse fields
// that never reach storage.
type submission struct {
	domain.LeadRecord

	TurnstileToken string `json:"turnstileToken"`
	// Honeypot. Humans never see this field; bots fill it.
	Website string `json:"website"`
}

func (h *Handler) submit(c *gin.Context) {
	if !h.verifier.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "captcha not configured"})
		return
	}

	ip := ratelimit.ClientIP(c)
	res := h.limiter.Check("quote:"+ip, h.rate)
	h.rateHeaders(c, res)
	if !res.Allowed {
		c.Header("Retry-After", strconv.Itoa(res.RetryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "too many requests", "retryAfter": res.RetryAfter})
		return
	}

	var sub submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	token := strings.TrimSpace(sub.TurnstileToken)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "captcha token missing"})
		return
	}

	remoteIP := ip
	if remoteIP == "unknown" {
		remoteIP = ""
	}
	verification := h.verifier.Verify(c.Request.Context(), token, remoteIP)
	if !verification.Success {
		log.Printf("[leads] captcha %s ip=%s", verification, ip)
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":      false,
			"error":   "captcha verification failed",
			"details": verification.ErrorCodes,
		})
		return
	}

	// A filled honeypot gets a fake success so the bot learns nothing.
	if strings.TrimSpace(sub.Website) != "" {
		log.Printf("[leads] honeypot tripped ip=%s", ip)
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	// Second bucket keyed per IP and email pair, so one address cannot
	// burn the whole IP budget with rotating identities unnoticed.
	email := strings.ToLower(strings.TrimSpace(sub.Email))
	pairRes := h.limiter.Check("quote:"+ip+":"+email, h.rate)
	if !pairRes.Allowed {
		c.Header("Retry-After", strconv.Itoa(pairRes.RetryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "too many requests", "retryAfter": pairRes.RetryAfter})
		return
	}

	lead := sub.LeadRecord
	if err := lead.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	lead.ID = ""
	lead.SubmittedAt = h.now().UTC()
	lead.Feasibility = domain.FeasibilityPending
	lead.Deposit = domain.DepositNone

	if err := h.store.Insert(c.Request.Context(), &lead); err != nil {
		log.Printf("[leads] insert failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not save request"})
		return
	}

	// Best effort; the submitter never sees notification problems.
	h.notifier.NotifyLead(c.Request.Context(), lead)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) rateHeaders(c *gin.Context, res ratelimit.Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(h.rate.Max))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
}
