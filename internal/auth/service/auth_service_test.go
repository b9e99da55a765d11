package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kah-digital/agency-backend/internal/auth/domain"
	"github.com/kah-digital/agency-backend/internal/auth/repository"
)

type fakeUsers struct {
	users map[string]*domain.AdminUser
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*domain.AdminUser, error) {
	if u, ok := f.users[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, domain.ErrInvalidCredentials
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestService(t *testing.T) (*Service, *fakeUsers) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	users := &fakeUsers{users: map[string]*domain.AdminUser{
		"admin@kah-digital.com": {
			ID:           "u-admin",
			Email:        "admin@kah-digital.com",
			PasswordHash: hashPassword(t, "correct horse"),
			Role:         domain.RoleAdmin,
		},
		"intern@kah-digital.com": {
			ID:           "u-intern",
			Email:        "intern@kah-digital.com",
			PasswordHash: hashPassword(t, "correct horse"),
			Role:         "viewer",
		},
	}}

	svc := New(
		users,
		repository.NewSessionStore(client, time.Hour),
		repository.NewFactorStore(client),
		"Kah-Digital Admin",
	)
	return svc, users
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	t.Run("valid credentials mint an aal1 session", func(t *testing.T) {
		sess, err := svc.SignIn(ctx, "admin@kah-digital.com", "correct horse")
		require.NoError(t, err)
		assert.NotEmpty(t, sess.ID)
		assert.Equal(t, domain.LevelPassword, sess.Level)
		assert.True(t, sess.IsAdmin())
		assert.False(t, sess.MFASatisfied())

		loaded, err := svc.Authenticate(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, loaded.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.SignIn(ctx, "admin@kah-digital.com", "wrong")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.SignIn(ctx, "nobody@kah-digital.com", "correct horse")
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("non-admin role rejected before any session exists", func(t *testing.T) {
		_, err := svc.SignIn(ctx, "intern@kah-digital.com", "correct horse")
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestServiceNotReady(t *testing.T) {
	ctx := context.Background()
	svc := New(nil, nil, nil, "issuer")

	_, err := svc.SignIn(ctx, "a@b.c", "pw")
	assert.ErrorIs(t, err, domain.ErrConfigMissing)

	_, err = svc.Authenticate(ctx, "some-session")
	assert.ErrorIs(t, err, domain.ErrConfigMissing)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	t.Run("empty cookie", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "")
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "no-such-session")
		assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	})
}

func TestMFAFlow(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	sess, err := svc.SignIn(ctx, "admin@kah-digital.com", "correct horse")
	require.NoError(t, err)

	// First status call enrolls a fresh factor and hands back the
	// provisioning URL.
	status, err := svc.MFAStatus(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, MFASetup, status.Status)
	assert.NotEmpty(t, status.FactorID)
	assert.Contains(t, status.QRCode, "otpauth://totp/")
	assert.Contains(t, status.QRCode, "Kah-Digital%20Admin")

	// A second status call must not enroll again: the pending factor
	// routes to verify.
	again, err := svc.MFAStatus(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, MFAVerify, again.Status)
	assert.Equal(t, status.FactorID, again.FactorID)

	req, err := svc.MFARequirement(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, MFAVerify, req)

	// Extract the shared secret from the otpauth URL to play the
	// authenticator's role.
	secret := secretFromURL(t, status.QRCode)

	t.Run("wrong code", func(t *testing.T) {
		err := svc.MFAVerify(ctx, sess, status.FactorID, "000000")
		assert.ErrorIs(t, err, domain.ErrInvalidCode)
		assert.False(t, sess.MFASatisfied())
	})

	t.Run("unknown factor", func(t *testing.T) {
		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)
		err = svc.MFAVerify(ctx, sess, "no-such-factor", code)
		assert.ErrorIs(t, err, domain.ErrFactorNotFound)
	})

	t.Run("valid code promotes to aal2", func(t *testing.T) {
		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)
		require.NoError(t, svc.MFAVerify(ctx, sess, status.FactorID, code))
		assert.True(t, sess.MFASatisfied())

		// The stored session was promoted too.
		loaded, err := svc.Authenticate(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LevelMFA, loaded.Level)

		status, err := svc.MFAStatus(ctx, loaded)
		require.NoError(t, err)
		assert.Equal(t, MFAActive, status.Status)
	})
}

func TestMFAReset(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	sess, err := svc.SignIn(ctx, "admin@kah-digital.com", "correct horse")
	require.NoError(t, err)

	first, err := svc.MFAStatus(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, MFASetup, first.Status)

	require.NoError(t, svc.MFAReset(ctx, sess))

	// The session is gone.
	_, err = svc.Authenticate(ctx, sess.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	// A new session starts setup from scratch with a new factor.
	sess2, err := svc.SignIn(ctx, "admin@kah-digital.com", "correct horse")
	require.NoError(t, err)
	second, err := svc.MFAStatus(ctx, sess2)
	require.NoError(t, err)
	assert.Equal(t, MFASetup, second.Status)
	assert.NotEqual(t, first.FactorID, second.FactorID)
}

func secretFromURL(t *testing.T, url string) string {
	t.Helper()
	const marker = "secret="
	i := strings.Index(url, marker)
	require.GreaterOrEqual(t, i, 0, "otpauth url must carry a secret")
	secret := url[i+len(marker):]
	if j := strings.IndexByte(secret, '&'); j >= 0 {
		secret = secret[:j]
	}
	return secret
}
