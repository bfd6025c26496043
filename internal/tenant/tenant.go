// Package tenant resolves the active tenant for a request and threads it
// through context as an explicit value. Nothing in this package holds
// module-level tenant state.
package tenant

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pelita-edu/pelita/internal/shared"
)

type contextKey struct{}

// ContextWithTenant stores the resolved tenant id in context.
func ContextWithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// FromContext extracts the tenant id resolved for the request, if any.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Repository maps tenant slugs to tenant ids.
type Repository interface {
	FindIDBySlug(ctx context.Context, slug string) (string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindIDBySlug resolves an active tenant by its subdomain slug.
func (r *PGRepository) FindIDBySlug(ctx context.Context, slug string) (string, error) {
	const query = `SELECT id FROM tenants WHERE slug = $1 AND is_active`
	var id string
	if err := r.pool.QueryRow(ctx, query, slug).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return id, nil
}

// Resolver derives the tenant id from the request host subdomain, falling
// back to the session's tenant claim when the host carries no slug.
type Resolver struct {
	baseDomain string
	repo       Repository
}

// NewResolver constructs a Resolver. baseDomain is the shared suffix under
// which tenant subdomains live, e.g. "pelita.sch.id".
func NewResolver(baseDomain string, repo Repository) *Resolver {
	return &Resolver{baseDomain: strings.ToLower(strings.TrimSpace(baseDomain)), repo: repo}
}

// ResolveRequest returns the tenant id for r, or "" when none applies.
func (t *Resolver) ResolveRequest(r *http.Request) (string, error) {
	if slug := t.slugFromHost(r.Host); slug != "" {
		id, err := t.repo.FindIDBySlug(r.Context(), slug)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return "", nil
			}
			return "", err
		}
		return id, nil
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return sess.Tenant(), nil
	}
	return "", nil
}

// Middleware resolves the tenant once per request and stores it in context.
// Requests without a resolvable tenant pass through; operations that need
// one fail with a missing-tenant error downstream.
func (t *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := t.ResolveRequest(r)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if tenantID != "" {
			r = r.WithContext(ContextWithTenant(r.Context(), tenantID))
		}
		next.ServeHTTP(w, r)
	})
}

func (t *Resolver) slugFromHost(host string) string {
	if host == "" || t.baseDomain == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	if host == t.baseDomain {
		return ""
	}
	suffix := "." + t.baseDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	slug := strings.TrimSuffix(host, suffix)
	if slug == "" || strings.Contains(slug, ".") {
		return ""
	}
	return slug
}
