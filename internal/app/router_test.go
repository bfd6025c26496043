package app_test

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

	"github.com/pelita-edu/pelita/internal/announcements"
	"github.com/pelita-edu/pelita/internal/app"
	"github.com/pelita-edu/pelita/internal/auth"
	"github.com/pelita-edu/pelita/internal/shared"
	"github.com/pelita-edu/pelita/internal/tenant"
	_ "github.com/pelita-edu/pelita/testing"
)

type stubTenantRepo struct {
	slugs map[string]string
}

func (s *stubTenantRepo) FindIDBySlug(ctx context.Context, slug string) (string, error) {
	id, ok := s.slugs[slug]
	if !ok {
		return "", shared.ErrNotFound
	}
	return id, nil
}

type stubAuthRepo struct {
	users map[string]*auth.User
}

func (s *stubAuthRepo) FindByEmail(ctx context.Context, tenantID, email string) (*auth.User, error) {
	u, ok := s.users[tenantID+"/"+email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (s *stubAuthRepo) RecordLogin(ctx context.Context, sessionID, userID string, ip, userAgent string) error {
	return nil
}

func (s *stubAuthRepo) RecordLogout(ctx context.Context, sessionID string) error {
	return nil
}

// newRouter assembles the full production router with the middleware stack,
// backed by miniredis and stub repositories.
func newRouter(t *testing.T, authRepo auth.Repository) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	resolver := tenant.NewResolver("pelita.local", &stubTenantRepo{
		slugs: map[string]string{"smaharapan": "tenant-a"},
	})

	return app.NewRouter(app.RouterParams{
		Logger:               logger,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		TenantResolver:       resolver,
		AuthHandler:          auth.NewHandler(logger, auth.NewService(authRepo), sessionManager, csrfManager),
		AnnouncementsHandler: announcements.NewHandler(logger, nil, nil),
	})
}

// Login must be reachable at /auth/login through the assembled router. The
// auth handler tests exercise the handler directly, so only a routed request
// catches a mount prefix mismatch.
func TestRouterLoginRoute(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("rahasia123"), bcrypt.MinCost)
	require.NoError(t, err)
	router := newRouter(t, &stubAuthRepo{users: map[string]*auth.User{
		"tenant-a/guru@sekolah.id": {
			ID: "u1", TenantID: "tenant-a", Email: "guru@sekolah.id",
			FullName: "Ibu Sari", Role: "TEACHER",
			PasswordHash: string(hash), IsActive: true,
		},
	}})

	body := `{"email":"guru@sekolah.id","password":"rahasia123"}`
	req := httptest.NewRequest(http.MethodPost, "http://smaharapan.pelita.local/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "u1", resp["user_id"])
	require.Equal(t, "tenant-a", resp["tenant_id"])
	require.NotEmpty(t, resp["csrf_token"])
	require.NotEmpty(t, rec.Header().Get("Set-Cookie"))
}

func TestRouterLoginExemptFromCSRF(t *testing.T) {
	router := newRouter(t, &stubAuthRepo{})

	// No session, no token: login must still reach the handler and fail on
	// credentials, not on CSRF.
	body := `{"email":"guru@sekolah.id","password":"salah"}`
	req := httptest.NewRequest(http.MethodPost, "http://smaharapan.pelita.local/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterLogoutRequiresCSRF(t *testing.T) {
	router := newRouter(t, &stubAuthRepo{})

	req := httptest.NewRequest(http.MethodPost, "http://smaharapan.pelita.local/auth/logout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Routed, but blocked by the CSRF middleware rather than 404.
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterUnknownPath(t *testing.T) {
	router := newRouter(t, &stubAuthRepo{})

	req := httptest.NewRequest(http.MethodPost, "http://smaharapan.pelita.local/auth/auth/login", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
