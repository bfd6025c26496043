package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pelita-edu/pelita/internal/shared"
)

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindUser fetches a user by id, filtered by tenant in the same query.
func (r *PGRepository) FindUser(ctx context.Context, tenantID, userID string) (*User, error) {
	const query = `SELECT id, tenant_id, role, is_active FROM users WHERE tenant_id = $1 AND id = $2`
	var user User
	err := r.pool.QueryRow(ctx, query, tenantID, userID).Scan(&user.ID, &user.TenantID, &user.Role, &user.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// TaughtClassIDs returns the distinct classes the teacher is assigned to in
// the tenant's active term.
func (r *PGRepository) TaughtClassIDs(ctx context.Context, tenantID, teacherID string) ([]string, error) {
	const query = `
		SELECT DISTINCT ta.class_id
		FROM teacher_assignments ta
		JOIN terms t ON ta.term_id = t.id AND t.is_active
		WHERE ta.tenant_id = $1 AND ta.teacher_id = $2`
	rows, err := r.pool.Query(ctx, query, tenantID, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
