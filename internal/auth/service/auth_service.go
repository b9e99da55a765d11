package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/kah-digital/agency-backend/internal/auth/domain"
)

// UserFinder looks up admin accounts. Nil when the identity backend is not
// configured; the service then answers ErrConfigMissing instead of 500s.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*domain.AdminUser, error)
}

type SessionStore interface {
	Create(ctx context.Context, sess *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	SetLevel(ctx context.Context, id string, level domain.AssuranceLevel) error
	Delete(ctx context.Context, id string) error
}

type FactorStore interface {
	List(ctx context.Context, userID string) ([]domain.Factor, error)
	Add(ctx context.Context, factor domain.Factor) error
	MarkVerified(ctx context.Context, userID, factorID string) error
	DeleteAll(ctx context.Context, userID string) error
}

// Service implements login, session authentication, and the TOTP MFA flow.
type Service struct {
	users    UserFinder
	sessions SessionStore
	factors  FactorStore
	issuer   string
	now      func() time.Time
}

func New(users UserFinder, sessions SessionStore, factors FactorStore, issuer string) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		factors:  factors,
		issuer:   issuer,
		now:      time.Now,
	}
}

// Ready reports whether the identity backend is wired at all.
func (s *Service) Ready() bool {
	return s != nil && s.users != nil && s.sessions != nil
}

// SignIn checks credentials and the admin role, then mints an aal1 session.
// Non-admin accounts are rejected before any session exists, so a valid
// password alone never opens a foothold.
func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	if !s.Ready() {
		return nil, domain.ErrConfigMissing
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}

	if !user.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	sess := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		Level:     domain.LevelPassword,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if !s.Ready() {
		return domain.ErrConfigMissing
	}
	return s.sessions.Delete(ctx, sessionID)
}

// Authenticate resolves a session cookie value to a live session.
func (s *Service) Authenticate(ctx context.Context, sessionID string) (*domain.Session, error) {
	if !s.Ready() {
		return nil, domain.ErrConfigMissing
	}
	if sessionID == "" {
		return nil, domain.ErrUnauthenticated
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// MFAStatus values mirror the admin console's three states.
const (
	MFAActive = "active"
	MFAVerify = "verify"
	MFASetup  = "setup"
)

type MFAStatusResult struct {
	Status   string `json:"status"`
	FactorID string `json:"factorId,omitempty"`
	QRCode   string `json:"qrCode,omitempty"`
}

// MFAStatus decides what the operator must do next. Precedence: a verified
// session is active; an enrolled factor (verified or not) means prompt for
// a code; only a user with zero factors is sent through setup, which
// enrolls a fresh secret and returns the provisioning URL.
func (s *Service) MFAStatus(ctx context.Context, sess *domain.Session) (*MFAStatusResult, error) {
	if !s.Ready() {
		return nil, domain.ErrConfigMissing
	}

	if sess.MFASatisfied() {
		return &MFAStatusResult{Status: MFAActive}, nil
	}

	factors, err := s.factors.List(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if len(factors) > 0 {
		return &MFAStatusResult{Status: MFAVerify, FactorID: factors[0].ID}, nil
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: sess.Email,
	})
	if err != nil {
		return nil, err
	}

	factor := domain.Factor{
		ID:        uuid.New().String(),
		UserID:    sess.UserID,
		Secret:    key.Secret(),
		Verified:  false,
		CreatedAt: s.now().UTC(),
	}
	if err := s.factors.Add(ctx, factor); err != nil {
		return nil, err
	}

	return &MFAStatusResult{
		Status:   MFASetup,
		FactorID: factor.ID,
		QRCode:   key.URL(),
	}, nil
}

// MFAVerify checks a TOTP code against the named factor and, on success,
// marks the factor verified and promotes the session to aal2.
func (s *Service) MFAVerify(ctx context.Context, sess *domain.Session, factorID, code string) error {
	if !s.Ready() {
		return domain.ErrConfigMissing
	}

	factors, err := s.factors.List(ctx, sess.UserID)
	if err != nil {
		return err
	}

	var factor *domain.Factor
	for i := range factors {
		if factors[i].ID == factorID {
			factor = &factors[i]
			break
		}
	}
	if factor == nil {
		return domain.ErrFactorNotFound
	}

	if !totp.Validate(code, factor.Secret) {
		return domain.ErrInvalidCode
	}

	if err := s.factors.MarkVerified(ctx, sess.UserID, factorID); err != nil {
		return err
	}
	if err := s.sessions.SetLevel(ctx, sess.ID, domain.LevelMFA); err != nil {
		return err
	}
	sess.Level = domain.LevelMFA
	return nil
}

// MFAReset unenrolls every factor and terminates the current session, so
// the next request re-triggers setup from scratch.
func (s *Service) MFAReset(ctx context.Context, sess *domain.Session) error {
	if !s.Ready() {
		return domain.ErrConfigMissing
	}
	if err := s.factors.DeleteAll(ctx, sess.UserID); err != nil {
		return err
	}
	return s.sessions.Delete(ctx, sess.ID)
}

// MFARequirement distinguishes "must verify" from "must enroll" for gate
// rejections, without enrolling anything as a side effect.
func (s *Service) MFARequirement(ctx context.Context, sess *domain.Session) (string, error) {
	factors, err := s.factors.List(ctx, sess.UserID)
	if err != nil {
		return "", err
	}
	if len(factors) > 0 {
		return MFAVerify, nil
	}
	return MFASetup, nil
}
