package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pelita-edu/pelita/internal/shared"
)

type stubRepo struct {
	slugs map[string]string
}

func (r *stubRepo) FindIDBySlug(ctx context.Context, slug string) (string, error) {
	id, ok := r.slugs[slug]
	if !ok {
		return "", shared.ErrNotFound
	}
	return id, nil
}

func newTestResolver() *Resolver {
	return NewResolver("pelita.sch.id", &stubRepo{slugs: map[string]string{
		"smaharapan": "tenant-a",
		"smkbakti":   "tenant-b",
	}})
}

func TestSlugFromHost(t *testing.T) {
	r := newTestResolver()

	cases := []struct {
		host string
		want string
	}{
		{"smaharapan.pelita.sch.id", "smaharapan"},
		{"smaharapan.pelita.sch.id:8080", "smaharapan"},
		{"SMAHARAPAN.Pelita.SCH.ID", "smaharapan"},
		{"pelita.sch.id", ""},
		{"deep.smaharapan.pelita.sch.id", ""},
		{"evil.example.com", ""},
		{"pelita.sch.id.example.com", ""},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, r.slugFromHost(tc.host), "host %q", tc.host)
	}
}

func TestResolveRequestBySubdomain(t *testing.T) {
	r := newTestResolver()

	req := httptest.NewRequest(http.MethodGet, "http://smaharapan.pelita.sch.id/api/v1/announcements", nil)
	id, err := r.ResolveRequest(req)
	require.NoError(t, err)
	require.Equal(t, "tenant-a", id)
}

func TestResolveRequestUnknownSlug(t *testing.T) {
	r := newTestResolver()

	req := httptest.NewRequest(http.MethodGet, "http://nosuch.pelita.sch.id/", nil)
	id, err := r.ResolveRequest(req)
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestResolveRequestFallsBackToSession(t *testing.T) {
	r := newTestResolver()

	sess := &shared.Session{}
	sess.SetTenant("tenant-b")
	req := httptest.NewRequest(http.MethodGet, "http://pelita.sch.id/", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	id, err := r.ResolveRequest(req)
	require.NoError(t, err)
	require.Equal(t, "tenant-b", id)
}

func TestMiddlewareStoresTenantInContext(t *testing.T) {
	r := newTestResolver()

	var got string
	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got, ok = FromContext(req.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "http://smkbakti.pelita.sch.id/", nil)
	rec := httptest.NewRecorder()
	r.Middleware(next).ServeHTTP(rec, req)

	require.True(t, ok)
	require.Equal(t, "tenant-b", got)
}

func TestMiddlewarePassesThroughWithoutTenant(t *testing.T) {
	r := newTestResolver()

	var ok bool
	next := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, ok = FromContext(req.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "http://pelita.sch.id/healthz", nil)
	rec := httptest.NewRecorder()
	r.Middleware(next).ServeHTTP(rec, req)

	require.False(t, ok)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestFromContextEmpty(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)
}
