package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pelita-edu/pelita/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, tenantID, email string) (*User, error)
	RecordLogin(ctx context.Context, sessionID, userID string, ip, userAgent string) error
	RecordLogout(ctx context.Context, sessionID string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user by email within one tenant. Accounts in other
// tenants are invisible to the lookup.
func (r *PGRepository) FindByEmail(ctx context.Context, tenantID, email string) (*User, error) {
	const query = `
		SELECT id, tenant_id, email, full_name, role, password_hash, is_active, created_at, updated_at
		FROM users WHERE tenant_id = $1 AND email = $2`
	var user User
	err := r.pool.QueryRow(ctx, query, tenantID, email).Scan(
		&user.ID, &user.TenantID, &user.Email, &user.FullName, &user.Role,
		&user.PasswordHash, &user.IsActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// RecordLogin persists a login event for auditing.
func (r *PGRepository) RecordLogin(ctx context.Context, sessionID, userID string, ip, userAgent string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO login_sessions (id, user_id, ip, user_agent, created_at) VALUES ($1, $2, $3, $4, NOW())`,
		sessionID, userID, ip, userAgent,
	)
	return err
}

// RecordLogout marks a login session ended.
func (r *PGRepository) RecordLogout(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE login_sessions SET ended_at = NOW() WHERE id = $1 AND ended_at IS NULL`,
		sessionID,
	)
	return err
}
