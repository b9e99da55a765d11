package http

import (
	"encoding/base64"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kah-digital/agency-backend/internal/brief"
	"github.com/kah-digital/agency-backend/internal/mailer"
	"github.com/kah-digital/agency-backend/internal/notify"
	"github.com/kah-digital/agency-backend/internal/ratelimit"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Handler emails a filled project brief back to the requester with the
// admin recipients in bcc.
type Handler struct {
	mail    notify.Sender
	admins  []string
	replyTo string
	limiter *ratelimit.Limiter
	rate    ratelimit.Config
}

func New(mail notify.Sender, admins []string, replyTo string, limiter *ratelimit.Limiter, rate ratelimit.Config) *Handler {
	return &Handler{mail: mail, admins: admins, replyTo: replyTo, limiter: limiter, rate: rate}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/brief", h.send)
}

type briefReq struct {
	Email     string            `json:"email"`
	Locale    string            `json:"locale"`
	Fields    map[string]string `json:"fields"`
	PDFBase64 string            `json:"pdfBase64"`
}

func (h *Handler) send(c *gin.Context) {
	res := h.limiter.Check("brief:"+ratelimit.ClientIP(c), h.rate)
	if !res.Allowed {
		c.Header("Retry-After", strconv.Itoa(res.RetryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "too many requests", "retryAfter": res.RetryAfter})
		return
	}

	if !h.mail.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "mail service unavailable"})
		return
	}

	var req briefReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !emailRegex.MatchString(email) {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid email"})
		return
	}
	if req.PDFBase64 == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "missing pdf"})
		return
	}

	pdf, err := brief.DecodePDF(req.PDFBase64)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "error": "pdf too large or invalid"})
		return
	}

	locale := brief.NormalizeLocale(req.Locale)
	summary := brief.Summary(req.Fields, locale)

	err = h.mail.Send(c.Request.Context(), mailer.Email{
		To:      []string{email},
		Bcc:     brief.FilterSelfBcc(h.admins, email),
		ReplyTo: h.replyTo,
		Subject: brief.Subject(locale),
		Text:    brief.BodyText(summary, locale),
		Attachments: []mailer.Attachment{{
			Filename: brief.AttachmentName(locale),
			Content:  base64.StdEncoding.EncodeToString(pdf),
		}},
	})
	if err != nil {
		log.Printf("[brief] send failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "send failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
