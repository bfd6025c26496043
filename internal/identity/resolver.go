package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/pelita-edu/pelita/internal/shared"
)

// Repository defines the persistence lookups identity resolution depends on.
type Repository interface {
	FindUser(ctx context.Context, tenantID, userID string) (*User, error)
	TaughtClassIDs(ctx context.Context, tenantID, teacherID string) ([]string, error)
}

// Resolver turns an opaque session into an AuthContext.
type Resolver struct {
	repo Repository
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve produces the AuthContext for the session's user within tenantID.
// The session's tenant claim, when present, must match the tenant resolved
// for the request; a mismatch is treated as not authenticated rather than
// revealing that the account exists elsewhere.
func (r *Resolver) Resolve(ctx context.Context, sess *shared.Session, tenantID string) (*AuthContext, error) {
	if sess == nil || sess.User() == "" {
		return nil, ErrNotAuthenticated
	}
	if tenantID == "" {
		return nil, ErrNotAuthenticated
	}
	if claim := sess.Tenant(); claim != "" && claim != tenantID {
		return nil, ErrNotAuthenticated
	}

	user, err := r.repo.FindUser(ctx, tenantID, sess.User())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("identity: find user: %w", err)
	}
	if !user.IsActive || !ValidRole(user.Role) {
		return nil, ErrNotAuthenticated
	}

	authCtx := &AuthContext{
		UserID:   user.ID,
		Role:     user.Role,
		TenantID: user.TenantID,
	}

	if user.Role == RoleTeacher {
		classIDs, err := r.repo.TaughtClassIDs(ctx, tenantID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("identity: taught classes: %w", err)
		}
		authCtx.TaughtClassIDs = classIDs
	}

	return authCtx, nil
}
