package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pelita-edu/pelita/internal/auth"
	"github.com/pelita-edu/pelita/internal/shared"
	"github.com/pelita-edu/pelita/internal/tenant"
	_ "github.com/pelita-edu/pelita/testing"
)

type stubRepo struct {
	users   map[string]*auth.User
	logins  []string
	logouts []string
}

func (s *stubRepo) FindByEmail(ctx context.Context, tenantID, email string) (*auth.User, error) {
	u, ok := s.users[tenantID+"/"+email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (s *stubRepo) RecordLogin(ctx context.Context, sessionID, userID string, ip, userAgent string) error {
	s.logins = append(s.logins, sessionID)
	return nil
}

func (s *stubRepo) RecordLogout(ctx context.Context, sessionID string) error {
	s.logouts = append(s.logouts, sessionID)
	return nil
}

func passwordHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthHandler(t *testing.T, repo auth.Repository) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessionManager, csrfManager)
	return handler, sessionManager
}

func loginRequest(t *testing.T, sessionManager *shared.SessionManager, tenantID, body string) (*http.Request, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	ctx := shared.ContextWithSession(req.Context(), sess)
	if tenantID != "" {
		ctx = tenant.ContextWithTenant(ctx, tenantID)
	}
	return req.WithContext(ctx), sess
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubRepo{users: map[string]*auth.User{
		"tenant-a/guru@sekolah.id": {
			ID: "u1", TenantID: "tenant-a", Email: "guru@sekolah.id",
			FullName: "Ibu Sari", Role: "TEACHER",
			PasswordHash: passwordHash(t, "rahasia123"), IsActive: true,
		},
	}}
	handler, sessionManager := newAuthHandler(t, repo)

	req, sess := loginRequest(t, sessionManager, "tenant-a", `{"email":"guru@sekolah.id","password":"rahasia123"}`)
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "u1", resp["user_id"])
	require.Equal(t, "tenant-a", resp["tenant_id"])
	require.Equal(t, "TEACHER", resp["role"])
	require.NotEmpty(t, resp["csrf_token"])

	require.Equal(t, "u1", sess.User())
	require.Equal(t, "tenant-a", sess.Tenant())
	require.Equal(t, []string{sess.ID}, repo.logins)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &stubRepo{users: map[string]*auth.User{
		"tenant-a/guru@sekolah.id": {
			ID: "u1", TenantID: "tenant-a", Email: "guru@sekolah.id",
			PasswordHash: passwordHash(t, "rahasia123"), IsActive: true,
		},
	}}
	handler, sessionManager := newAuthHandler(t, repo)

	req, sess := loginRequest(t, sessionManager, "tenant-a", `{"email":"guru@sekolah.id","password":"salah"}`)
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, sess.User())
}

func TestLoginWrongTenant(t *testing.T) {
	repo := &stubRepo{users: map[string]*auth.User{
		"tenant-a/guru@sekolah.id": {
			ID: "u1", TenantID: "tenant-a", Email: "guru@sekolah.id",
			PasswordHash: passwordHash(t, "rahasia123"), IsActive: true,
		},
	}}
	handler, sessionManager := newAuthHandler(t, repo)

	// The account exists, just not in this tenant. Same 401 as a bad password.
	req, _ := loginRequest(t, sessionManager, "tenant-b", `{"email":"guru@sekolah.id","password":"rahasia123"}`)
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := &stubRepo{users: map[string]*auth.User{
		"tenant-a/guru@sekolah.id": {
			ID: "u1", TenantID: "tenant-a", Email: "guru@sekolah.id",
			PasswordHash: passwordHash(t, "rahasia123"), IsActive: false,
		},
	}}
	handler, sessionManager := newAuthHandler(t, repo)

	req, _ := loginRequest(t, sessionManager, "tenant-a", `{"email":"guru@sekolah.id","password":"rahasia123"}`)
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRequiresTenantContext(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{})

	req, _ := loginRequest(t, sessionManager, "", `{"email":"guru@sekolah.id","password":"rahasia123"}`)
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginValidation(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubRepo{})

	req, _ := loginRequest(t, sessionManager, "tenant-a", `{"email":"not-an-email"}`)
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	repo := &stubRepo{}
	handler, sessionManager := newAuthHandler(t, repo)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("u1")
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	rec := httptest.NewRecorder()
	handler.Logout(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []string{sess.ID}, repo.logouts)
}
