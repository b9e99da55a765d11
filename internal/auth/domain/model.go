package domain

import "time"

// AssuranceLevel is the authentication strength of a session.
// aal1 means password only, aal2 means password plus a verified TOTP code.
type AssuranceLevel string

const (
	LevelPassword AssuranceLevel = "aal1"
	LevelMFA      AssuranceLevel = "aal2"
)

const RoleAdmin = "admin"

// AdminUser is an operator account able to reach the admin console.
type AdminUser struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

func (u AdminUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Session is the server-side session record the gate consumes.
type Session struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Email     string         `json:"email"`
	Role      string         `json:"role"`
	Level     AssuranceLevel `json:"level"`
	CreatedAt time.Time      `json:"created_at"`
}

func (s Session) IsAdmin() bool {
	return s.Role == RoleAdmin
}

func (s Session) MFASatisfied() bool {
	return s.Level == LevelMFA
}

// Factor is an enrolled TOTP authenticator.
// Verified flips to true after the first successful code check; an enrolled
// but unverified factor still routes the user to verify, not to re-setup.
type Factor struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Secret    string    `json:"secret"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}
