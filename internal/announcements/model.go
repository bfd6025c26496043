package announcements

import (
	"time"

	"github.com/pelita-edu/pelita/internal/authz"
	"github.com/pelita-edu/pelita/internal/identity"
)

// Priority orders announcements within a listing.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	return p == PriorityLow || p == PriorityNormal || p == PriorityHigh
}

// Announcement is a persisted announcement row. TenantID is the sole
// isolation key and is immutable after creation, as is Scope.
type Announcement struct {
	ID          string         `json:"id" db:"id"`
	TenantID    string         `json:"-" db:"tenant_id"`
	Title       string         `json:"title" db:"title"`
	Body        string         `json:"body" db:"body"`
	Scope       authz.Scope    `json:"scope" db:"scope"`
	GroupID     *string        `json:"group_id,omitempty" db:"group_id"`
	TargetRole  *identity.Role `json:"target_role,omitempty" db:"target_role"`
	OwnerID     *string        `json:"owner_id,omitempty" db:"owner_id"`
	Priority    Priority       `json:"priority" db:"priority"`
	Pinned      bool           `json:"pinned" db:"pinned"`
	Published   bool           `json:"published" db:"published"`
	PublishedAt *time.Time     `json:"published_at,omitempty" db:"published_at"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// AuthzRecord projects the attributes the permission engine decides over.
func (a *Announcement) AuthzRecord() *authz.Record {
	if a == nil {
		return nil
	}
	rec := &authz.Record{
		TenantID:  a.TenantID,
		Scope:     a.Scope,
		Published: a.Published,
	}
	if a.GroupID != nil {
		rec.GroupID = *a.GroupID
	}
	if a.TargetRole != nil {
		rec.TargetRole = *a.TargetRole
	}
	if a.OwnerID != nil {
		rec.OwnerID = *a.OwnerID
	}
	return rec
}

// Expired reports whether the announcement's expiry has passed at now.
func (a *Announcement) Expired(now time.Time) bool {
	return a != nil && a.ExpiresAt != nil && !a.ExpiresAt.After(now)
}
