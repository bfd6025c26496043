package announcements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pelita-edu/pelita/internal/authz"
	"github.com/pelita-edu/pelita/internal/identity"
	"github.com/pelita-edu/pelita/internal/shared"
)

// SortableColumns is the allow-list of columns a caller may sort by. Anything
// else falls back to the default ordering.
var SortableColumns = []string{"published_at", "created_at", "updated_at", "priority", "title"}

// Visibility restricts a listing to what one non-privileged reader may see.
type Visibility struct {
	UserID   string
	Role     identity.Role
	GroupIDs []string
	Now      time.Time
}

// ListFilter constrains listing and counting queries. The same filter value
// must drive both so totals always agree with the pages.
type ListFilter struct {
	Search     string
	Scope      *authz.Scope
	Published  *bool
	VisibleTo  *Visibility
	SortColumn string
	SortDesc   bool
	// PinnedFirst prepends the pinned/priority buckets to the ordering. Set
	// for the default listing only; an explicit sort key orders by that key
	// alone.
	PinnedFirst bool
	Limit       int
	Offset      int
}

// UpdatePatch is the typed set of mutable announcement fields. The repository
// accepts no free-form field maps, so an update can never touch tenant_id,
// scope, or ownership columns.
type UpdatePatch struct {
	Title       *string
	Body        *string
	Priority    *Priority
	Pinned      *bool
	ExpiresAt   *time.Time
	Published   *bool
	PublishedAt *time.Time
}

// Repository defines tenant-qualified persistence for announcements. Every
// method takes the tenant id and applies it inside the query itself; there is
// no way to load first and filter after.
type Repository interface {
	FindOne(ctx context.Context, tenantID, id string) (*Announcement, error)
	List(ctx context.Context, tenantID string, filter ListFilter) ([]Announcement, error)
	Count(ctx context.Context, tenantID string, filter ListFilter) (int, error)
	Create(ctx context.Context, a Announcement) error
	UpdateWhere(ctx context.Context, tenantID, id string, patch UpdatePatch) (int64, error)
	DeleteWhere(ctx context.Context, tenantID, id string) (int64, error)
	UnpublishExpired(ctx context.Context, now time.Time) ([]string, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const announcementColumns = `id, tenant_id, title, body, scope, group_id, target_role, owner_id, priority, pinned, published, published_at, expires_at, created_at, updated_at`

func scanAnnouncement(row pgx.Row) (*Announcement, error) {
	var a Announcement
	err := row.Scan(
		&a.ID, &a.TenantID, &a.Title, &a.Body, &a.Scope,
		&a.GroupID, &a.TargetRole, &a.OwnerID,
		&a.Priority, &a.Pinned, &a.Published,
		&a.PublishedAt, &a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindOne loads one announcement by {tenant, id} in a single query.
func (r *PGRepository) FindOne(ctx context.Context, tenantID, id string) (*Announcement, error) {
	query := fmt.Sprintf(`SELECT %s FROM announcements WHERE tenant_id = $1 AND id = $2`, announcementColumns)
	a, err := scanAnnouncement(r.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func buildFilter(tenantID string, filter ListFilter) (string, []interface{}) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{tenantID}
	argPos := 2

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR body ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}
	if filter.Scope != nil {
		conditions = append(conditions, fmt.Sprintf("scope = $%d", argPos))
		args = append(args, *filter.Scope)
		argPos++
	}
	if filter.Published != nil {
		conditions = append(conditions, fmt.Sprintf("published = $%d", argPos))
		args = append(args, *filter.Published)
		argPos++
	}
	if v := filter.VisibleTo; v != nil {
		cond := fmt.Sprintf(`(
			(published AND (expires_at IS NULL OR expires_at > $%d) AND (
				scope = 'ORGANIZATION'
				OR (scope = 'ROLE' AND target_role = $%d)
				OR (scope = 'GROUP' AND group_id = ANY($%d))
			))
			OR owner_id = $%d
		)`, argPos, argPos+1, argPos+2, argPos+3)
		conditions = append(conditions, cond)
		groupIDs := v.GroupIDs
		if groupIDs == nil {
			groupIDs = []string{}
		}
		args = append(args, v.Now, v.Role, groupIDs, v.UserID)
		argPos += 4
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func orderClause(filter ListFilter) string {
	column := filter.SortColumn
	if column == "" {
		column = "published_at"
	}
	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}
	// NULLS LAST keeps never-published drafts at the end of date orderings.
	key := fmt.Sprintf("%s %s NULLS LAST, id DESC", column, dir)
	if !filter.PinnedFirst {
		return "ORDER BY " + key
	}
	// Default listing: pinned items first, then priority, then the key.
	return "ORDER BY pinned DESC, CASE priority WHEN 'HIGH' THEN 0 WHEN 'NORMAL' THEN 1 ELSE 2 END, " + key
}

// List returns one page of announcements under the filter.
func (r *PGRepository) List(ctx context.Context, tenantID string, filter ListFilter) ([]Announcement, error) {
	where, args := buildFilter(tenantID, filter)
	query := fmt.Sprintf(
		"SELECT %s FROM announcements %s %s LIMIT $%d OFFSET $%d",
		announcementColumns, where, orderClause(filter), len(args)+1, len(args)+2,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

// Count returns the total matching the filter, independent of pagination.
func (r *PGRepository) Count(ctx context.Context, tenantID string, filter ListFilter) (int, error) {
	where, args := buildFilter(tenantID, filter)
	query := fmt.Sprintf("SELECT COUNT(*) FROM announcements %s", where)
	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Create inserts a new announcement.
func (r *PGRepository) Create(ctx context.Context, a Announcement) error {
	const query = `
		INSERT INTO announcements (id, tenant_id, title, body, scope, group_id, target_role, owner_id, priority, pinned, published, published_at, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())`
	_, err := r.pool.Exec(ctx, query,
		a.ID, a.TenantID, a.Title, a.Body, a.Scope,
		a.GroupID, a.TargetRole, a.OwnerID,
		a.Priority, a.Pinned, a.Published, a.PublishedAt, a.ExpiresAt,
	)
	return err
}

// UpdateWhere applies the patch to the row matching {tenant, id} and reports
// how many rows changed. The compound filter sits on the UPDATE itself, so
// even a bypassed permission check cannot write across tenants.
func (r *PGRepository) UpdateWhere(ctx context.Context, tenantID, id string, patch UpdatePatch) (int64, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	argPos := 1

	appendSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}

	if patch.Title != nil {
		appendSet("title", *patch.Title)
	}
	if patch.Body != nil {
		appendSet("body", *patch.Body)
	}
	if patch.Priority != nil {
		appendSet("priority", *patch.Priority)
	}
	if patch.Pinned != nil {
		appendSet("pinned", *patch.Pinned)
	}
	if patch.ExpiresAt != nil {
		appendSet("expires_at", *patch.ExpiresAt)
	}
	if patch.Published != nil {
		appendSet("published", *patch.Published)
	}
	if patch.PublishedAt != nil {
		appendSet("published_at", *patch.PublishedAt)
	}

	query := fmt.Sprintf(
		"UPDATE announcements SET %s WHERE tenant_id = $%d AND id = $%d",
		strings.Join(sets, ", "), argPos, argPos+1,
	)
	args = append(args, tenantID, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteWhere removes the row matching {tenant, id}.
func (r *PGRepository) DeleteWhere(ctx context.Context, tenantID, id string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM announcements WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UnpublishExpired flips published off for every record whose expiry has
// passed and returns the distinct tenants that had rows change, so the
// caller can drop their cached lists. Runs tenant-wide from the background
// sweep, never from a request.
func (r *PGRepository) UnpublishExpired(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`UPDATE announcements SET published = FALSE, updated_at = NOW() WHERE published AND expires_at IS NOT NULL AND expires_at <= $1 RETURNING tenant_id`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := map[string]struct{}{}
	var tenants []string
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, err
		}
		if _, ok := seen[tenantID]; ok {
			continue
		}
		seen[tenantID] = struct{}{}
		tenants = append(tenants, tenantID)
	}
	return tenants, rows.Err()
}
