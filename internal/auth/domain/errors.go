package domain

import "errors"

var (
	// ErrConfigMissing means the identity backend has no credentials at all.
	// Distinct from transient failures: it will not self-heal on retry, so
	// callers surface 503 rather than 500.
	ErrConfigMissing = errors.New("auth backend not configured")
	// ErrInvalidCredentials hides whether email or password failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	// ErrMfaVerifyRequired: a factor is enrolled but this session has not
	// presented a code yet.
	ErrMfaVerifyRequired = errors.New("mfa verification required")
	// ErrMfaSetupRequired: no factor enrolled at all.
	ErrMfaSetupRequired = errors.New("mfa enrollment required")
	ErrInvalidCode      = errors.New("invalid mfa code")
	ErrSessionNotFound  = errors.New("session not found")
	ErrFactorNotFound   = errors.New("mfa factor not found")
)
