package http

import (
	"time"

	"github.com/kah-digital/agency-backend/internal/auth/service"
	"github.com/kah-digital/agency-backend/internal/ratelimit"
)

// Handler bundles the dependencies for admin auth endpoints.
type Handler struct {
	svc        *service.Service
	limiter    *ratelimit.Limiter
	loginRate  ratelimit.Config
	lockout    *service.LockoutTracker
	cookieName string
	sessionTTL time.Duration
	// loginTimeout bounds the whole sign-in call; past it the client gets
	// an explicit "too slow, retry" instead of a hung request.
	loginTimeout time.Duration
}

type Options struct {
	Limiter      *ratelimit.Limiter
	LoginRate    ratelimit.Config
	Lockout      *service.LockoutTracker
	CookieName   string
	SessionTTL   time.Duration
	LoginTimeout time.Duration
}

func New(svc *service.Service, opts Options) *Handler {
	if opts.LoginTimeout == 0 {
		opts.LoginTimeout = 15 * time.Second
	}
	return &Handler{
		svc:          svc,
		limiter:      opts.Limiter,
		loginRate:    opts.LoginRate,
		lockout:      opts.Lockout,
		cookieName:   opts.CookieName,
		sessionTTL:   opts.SessionTTL,
		loginTimeout: opts.LoginTimeout,
	}
}
