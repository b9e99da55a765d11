package http

import (
	"log"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kah-digital/agency-backend/internal/leads/domain"
	"github.com/kah-digital/agency-backend/internal/leads/repository"
	"github.com/kah-digital/agency-backend/internal/mailer"
	"github.com/kah-digital/agency-backend/internal/notify"
	"github.com/kah-digital/agency-backend/internal/ratelimit"
	"github.com/kah-digital/agency-backend/internal/reply"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	maxSubjectLength = 200
	maxBodyLength    = 10000
	maxEmailLength   = 320
)

// Handler sends operator replies, either precomposed or built from a
// template draft against a stored lead.
type Handler struct {
	composer *reply.Composer
	store    repository.Store
	mail     notify.Sender
	limiter  *ratelimit.Limiter
	rate     ratelimit.Config
	replyTo  string
}

type Options struct {
	Composer *reply.Composer
	Store    repository.Store
	Mail     notify.Sender
	Limiter  *ratelimit.Limiter
	RateCfg  ratelimit.Config
	ReplyTo  string
}

func New(opts Options) *Handler {
	return &Handler{
		composer: opts.Composer,
		store:    opts.Store,
		mail:     opts.Mail,
		limiter:  opts.Limiter,
		rate:     opts.RateCfg,
		replyTo:  opts.ReplyTo,
	}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/replies", h.send)
	rg.POST("/replies/preview", h.preview)
}

type sendReq struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`

	// Compose mode: when a template id is present the subject and body
	// are generated server-side from the referenced lead.
	LeadID      string       `json:"leadId"`
	SubmittedAt string       `json:"submittedAt"`
	Draft       *reply.Draft `json:"draft"`
}

func (h *Handler) send(c *gin.Context) {
	res := h.limiter.Check("admin-reply:"+ratelimit.ClientIP(c), h.rate)
	if !res.Allowed {
		c.Header("Retry-After", strconv.Itoa(res.RetryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "too many requests", "retryAfter": res.RetryAfter})
		return
	}

	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	msg, ok := h.resolveMessage(c, req)
	if !ok {
		return
	}

	if req.To == "" || !emailRegex.MatchString(req.To) || len(req.To) > maxEmailLength {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid recipient"})
		return
	}
	if len(msg.Subject) == 0 || len(msg.Body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing subject or body"})
		return
	}
	if len(msg.Subject) > maxSubjectLength || len(msg.Body) > maxBodyLength {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "message too long"})
		return
	}

	if !h.mail.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "mail service unavailable"})
		return
	}

	err := h.mail.Send(c.Request.Context(), mailer.Email{
		To:      []string{req.To},
		ReplyTo: h.replyTo,
		Subject: msg.Subject,
		Text:    msg.Body,
	})
	if err != nil {
		log.Printf("[replies] send failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "send failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// preview composes without sending, so the operator can review and edit.
func (h *Handler) preview(c *gin.Context) {
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Draft == nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	msg, ok := h.resolveMessage(c, req)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "subject": msg.Subject, "body": msg.Body})
}

// resolveMessage returns the outbound message, composing it when a draft is
// supplied. On failure it writes the error response and returns false.
func (h *Handler) resolveMessage(c *gin.Context, req sendReq) (reply.Message, bool) {
	if req.Draft == nil {
		return reply.Message{Subject: req.Subject, Body: req.Body}, true
	}

	lead, ok := h.findLead(c, req)
	if !ok {
		return reply.Message{}, false
	}

	msg, err := h.composer.Compose(lead, *req.Draft)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return reply.Message{}, false
	}
	return msg, true
}

func (h *Handler) findLead(c *gin.Context, req sendReq) (lead domain.LeadRecord, ok bool) {
	leads, err := h.store.ListRecent(c.Request.Context(), 200)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not load lead"})
		return lead, false
	}

	var wantTime time.Time
	if req.SubmittedAt != "" {
		wantTime, err = time.Parse(time.RFC3339, req.SubmittedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid submittedAt"})
			return lead, false
		}
	}

	for _, candidate := range leads {
		if req.LeadID != "" && candidate.ID == req.LeadID {
			return candidate, true
		}
		if req.LeadID == "" && !wantTime.IsZero() && candidate.SubmittedAt.Equal(wantTime) {
			return candidate, true
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "lead not found"})
	return lead, false
}
