package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kah-digital/agency-backend/internal/auth/domain"
	"github.com/kah-digital/agency-backend/internal/auth/repository"
	"github.com/kah-digital/agency-backend/internal/auth/service"
	"github.com/kah-digital/agency-backend/internal/ratelimit"
)

const testCookie = "kah_admin_session"

type fakeFinder struct {
	user *domain.AdminUser
}

func (f *fakeFinder) FindByEmail(ctx context.Context, email string) (*domain.AdminUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.user != nil && f.user.Email == email {
		return f.user, nil
	}
	return nil, domain.ErrInvalidCredentials
}

type authRig struct {
	engine *gin.Engine
	svc    *service.Service
}

func newAuthRig(t *testing.T, role string, opts Options) *authRig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	svc := service.New(
		&fakeFinder{user: &domain.AdminUser{
			ID:           "u1",
			Email:        "admin@kah-digital.com",
			PasswordHash: string(hash),
			Role:         role,
		}},
		repository.NewSessionStore(client, time.Hour),
		repository.NewFactorStore(client),
		"Kah-Digital Admin",
	)

	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New()
	}
	if opts.LoginRate.Max == 0 {
		opts.LoginRate = ratelimit.Config{Window: 10 * time.Minute, Max: 20}
	}
	if opts.Lockout == nil {
		opts.Lockout = service.NewLockoutTracker(repository.NewAttemptStore(client))
	}
	opts.CookieName = testCookie
	if opts.SessionTTL == 0 {
		opts.SessionTTL = time.Hour
	}

	r := gin.New()
	New(svc, opts).Register(r.Group("/auth"))
	return &authRig{engine: r, svc: svc}
}

func (rig *authRig) do(method, path, body, cookie string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: cookie})
	}
	w := httptest.NewRecorder()
	rig.engine.ServeHTTP(w, req)
	return w
}

func (rig *authRig) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	return rig.do(http.MethodPost, "/auth/login", body, "")
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == testCookie {
			return ck.Value
		}
	}
	t.Fatalf("no %s cookie in response", testCookie)
	return ""
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestLoginSuccess(t *testing.T) {
	rig := newAuthRig(t, domain.RoleAdmin, Options{})

	w := rig.login(t, "admin@kah-digital.com", "correct-horse")
	require.Equal(t, http.StatusOK, w.Code)

	sid := sessionCookie(t, w)
	assert.NotEmpty(t, sid)

	sess, err := rig.svc.Authenticate(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "admin@kah-digital.com", sess.Email)
	assert.Equal(t, domain.LevelPassword, sess.Level)
}

func TestLoginValidation(t *testing.T) {
	rig := newAuthRig(t, domain.RoleAdmin, Options{})

	t.Run("malformed json", func(t *testing.T) {
		w := rig.do(http.MethodPost, "/auth/login", "{not json", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := rig.do(http.MethodPost, "/auth/login", `{"email":"","password":""}`, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLoginInvalidCredentials(t *testing.T) {
	rig := newAuthRig(t, domain.RoleAdmin, Options{})

	w := rig.login(t, "admin@kah-digital.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = rig.login(t, "nobody@kah-digital.com", "correct-horse")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginForbiddenRole(t *testing.T) {
	rig := newAuthRig(t, "viewer", Options{})

	w := rig.login(t, "admin@kah-digital.com", "correct-horse")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoginLockout(t *testing.T) {
	rig := newAuthRig(t, domain.RoleAdmin, Options{})

	for i := 0; i < 5; i++ {
		w := rig.login(t, "admin@kah-digital.com", "wrong")
		require.Equal(t, http.StatusUnauthorized, w.Code, "attempt %d", i+1)
	}

	// The lock refuses even the correct password.
	w := rig.login(t, "admin@kah-digital.com", "correct-horse")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	body := decodeBody(t, w)
	assert.Contains(t, body, "lockUntil")

	// Other accounts stay untouched by the lock (the unknown account still
	// fails closed, but with 401 rather than 429).
	w = rig.login(t, "other@kah-digital.com", "correct-horse")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRateLimited(t *testing.T) {
	rig := newAuthRig(t, domain.RoleAdmin, Options{
		LoginRate: ratelimit.Config{Window: 10 * time.Minute, Max: 2},
	})

	rig.login(t, "admin@kah-digital.com", "wrong")
	rig.login(t, "admin@kah-digital.com", "wrong")

	w := rig.login(t, "admin@kah-digital.com", "correct-horse")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	body := decodeBody(t, w)
	assert.Contains(t, body, "retryAfter")
}

func TestLoginSuccessClearsLockoutCounter(t *testing.T) {
	rig := newAuthRig(t, domain.RoleAdmin, Options{})

	for i := 0; i < 4; i++ {
		rig.login(t, "admin@kah-digital.com", "wrong")
	}
	w := rig.login(t, "admin@kah-digital.com", "correct-horse")
	require.Equal(t, http.StatusOK, w.Code)

	// The counter reset: four more failures do not lock.
	for i := 0; i < 4; i++ {
		w = rig.login(t, "admin@kah-digital.com", "wrong")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestLoginBackendNotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(service.New(nil, nil, nil, ""), Options{
		Limiter:    ratelimit.New(),
		LoginRate:  ratelimit.Config{Window: time.Minute, Max: 5},
		CookieName: testCookie,
		SessionTTL: time.Hour,
	})
	h.Register(r.Group("/auth"))

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"admin@kah-digital.com","password":"pw"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLoginBackendTooSlow(t *testing.T) {
	rig := newAuthRig(t, domain.RoleAdmin, Options{LoginTimeout: time.Nanosecond})

	w := rig.login(t, "admin@kah-digital.com", "correct-horse")
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), "too slow")
}

func TestLogout(t *testing.T) {
	rig := newAuthRig(t, domain.RoleAdmin, Options{})

	sid := sessionCookie(t, rig.login(t, "admin@kah-digital.com", "correct-horse"))

	w := rig.do(http.MethodPost, "/auth/logout", "", sid)
	require.Equal(t, http.StatusOK, w.Code)

	// The cookie is dropped and the session revoked.
	for _, ck := range w.Result().Cookies() {
		if ck.Name == testCookie {
			assert.Empty(t, ck.Value)
			assert.Less(t, ck.MaxAge, 0)
		}
	}
	_, err := rig.svc.Authenticate(context.Background(), sid)
	assert.Error(t, err)
}

func TestStatusProbe(t *testing.T) {
	rig := newAuthRig(t, domain.RoleAdmin, Options{})

	t.Run("anonymous", func(t *testing.T) {
		w := rig.do(http.MethodGet, "/auth/status", "", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, false, body["isAdmin"])
		assert.Equal(t, false, body["mfaActive"])
	})

	t.Run("signed in without mfa", func(t *testing.T) {
		sid := sessionCookie(t, rig.login(t, "admin@kah-digital.com", "correct-horse"))
		w := rig.do(http.MethodGet, "/auth/status", "", sid)
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["isAdmin"])
		assert.Equal(t, false, body["mfaActive"])
	})

	t.Run("stale cookie", func(t *testing.T) {
		w := rig.do(http.MethodGet, "/auth/status", "", "no-such-session")
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, false, body["isAdmin"])
	})
}

func TestMFAEndpointsRequireAdmin(t *testing.T) {
	rig := newAuthRig(t, domain.RoleAdmin, Options{})

	w := rig.do(http.MethodGet, "/auth/mfa", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = rig.do(http.MethodPost, "/auth/mfa/verify", `{"factorId":"f","code":"000000"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = rig.do(http.MethodPost, "/auth/mfa/reset", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMFAEnrollmentFlow(t *testing.T) {
	rig := newAuthRig(t, domain.RoleAdmin, Options{})
	sid := sessionCookie(t, rig.login(t, "admin@kah-digital.com", "correct-horse"))

	w := rig.do(http.MethodGet, "/auth/mfa", "", sid)
	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		Status   string `json:"status"`
		FactorID string `json:"factorId"`
		QRCode   string `json:"qrCode"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.Equal(t, "setup", status.Status)
	require.NotEmpty(t, status.FactorID)
	require.Contains(t, status.QRCode, "otpauth://totp/")

	t.Run("missing fields rejected", func(t *testing.T) {
		w := rig.do(http.MethodPost, "/auth/mfa/verify", `{"factorId":"","code":""}`, sid)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("wrong code rejected", func(t *testing.T) {
		w := rig.do(http.MethodPost, "/auth/mfa/verify",
			fmt.Sprintf(`{"factorId":%q,"code":"000000"}`, status.FactorID), sid)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid mfa code")
	})

	secret := secretParam(t, status.QRCode)
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	w = rig.do(http.MethodPost, "/auth/mfa/verify",
		fmt.Sprintf(`{"factorId":%q,"code":%q}`, status.FactorID, code), sid)
	require.Equal(t, http.StatusOK, w.Code)

	// The probe now reports full assurance.
	w = rig.do(http.MethodGet, "/auth/status", "", sid)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["mfaActive"])

	// And the factor endpoint reports the factor active.
	w = rig.do(http.MethodGet, "/auth/mfa", "", sid)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"active"`)
}

func TestMFAReset(t *testing.T) {
	rig := newAuthRig(t, domain.RoleAdmin, Options{})
	sid := sessionCookie(t, rig.login(t, "admin@kah-digital.com", "correct-horse"))

	// Enroll first so the reset has something to clear.
	w := rig.do(http.MethodGet, "/auth/mfa", "", sid)
	require.Equal(t, http.StatusOK, w.Code)

	w = rig.do(http.MethodPost, "/auth/mfa/reset", "", sid)
	require.Equal(t, http.StatusOK, w.Code)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == testCookie {
			assert.Empty(t, ck.Value)
		}
	}

	// The old session died with the reset.
	w = rig.do(http.MethodGet, "/auth/mfa", "", sid)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// A fresh sign-in starts setup over with a new factor.
	sid2 := sessionCookie(t, rig.login(t, "admin@kah-digital.com", "correct-horse"))
	w = rig.do(http.MethodGet, "/auth/mfa", "", sid2)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"setup"`)
}

func secretParam(t *testing.T, otpauthURL string) string {
	t.Helper()
	i := strings.Index(otpauthURL, "secret=")
	require.GreaterOrEqual(t, i, 0)
	rest := otpauthURL[i+len("secret="):]
	if j := strings.IndexByte(rest, '&'); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
