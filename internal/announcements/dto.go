package announcements

import (
	"time"

	"github.com/pelita-edu/pelita/internal/authz"
	"github.com/pelita-edu/pelita/internal/identity"
	"github.com/pelita-edu/pelita/internal/shared"
)

type CreateAnnouncementRequest struct {
	Title      string         `json:"title" validate:"required,max=200"`
	Body       string         `json:"body" validate:"required"`
	Scope      authz.Scope    `json:"scope" validate:"required,oneof=ORGANIZATION GROUP ROLE"`
	GroupID    *string        `json:"group_id,omitempty"`
	TargetRole *identity.Role `json:"target_role,omitempty"`
	Priority   Priority       `json:"priority" validate:"omitempty,oneof=LOW NORMAL HIGH"`
	Pinned     bool           `json:"pinned"`
	Published  bool           `json:"published"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
}

// UpdateAnnouncementRequest deliberately carries no scope, group, or target
// role fields: scope is immutable after creation, so an update can never
// smuggle a record into a scope its author could not have chosen.
type UpdateAnnouncementRequest struct {
	Title     *string    `json:"title,omitempty" validate:"omitempty,max=200"`
	Body      *string    `json:"body,omitempty"`
	Priority  *Priority  `json:"priority,omitempty" validate:"omitempty,oneof=LOW NORMAL HIGH"`
	Pinned    *bool      `json:"pinned,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type SetPublishedRequest struct {
	Published bool `json:"published"`
}

type ListAnnouncementsRequest struct {
	Search    string       `json:"search" validate:"max=200"`
	Scope     *authz.Scope `json:"scope,omitempty" validate:"omitempty,oneof=ORGANIZATION GROUP ROLE"`
	Published *bool        `json:"published,omitempty"`
	Sort      string       `json:"sort" validate:"max=40"`
	Page      int          `json:"page" validate:"gte=0"`
	PerPage   int          `json:"per_page" validate:"gte=0,lte=100"`
}

// ListAnnouncementsResult pairs one page of items with pagination metadata
// derived from an independent count under the same filter.
type ListAnnouncementsResult struct {
	Items      []Announcement    `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

// scopeTargetFields checks the scope/target invariant on create payloads:
// GROUP requires a group id, ROLE requires a target role, ORGANIZATION
// forbids both. Returns field-level messages for anything violated.
func (r CreateAnnouncementRequest) scopeTargetFields() map[string]string {
	fields := make(map[string]string)
	switch r.Scope {
	case authz.ScopeGroup:
		if r.GroupID == nil || *r.GroupID == "" {
			fields["group_id"] = "required for GROUP scope"
		}
		if r.TargetRole != nil {
			fields["target_role"] = "not allowed for GROUP scope"
		}
	case authz.ScopeRole:
		if r.TargetRole == nil || *r.TargetRole == "" {
			fields["target_role"] = "required for ROLE scope"
		}
		if r.GroupID != nil {
			fields["group_id"] = "not allowed for ROLE scope"
		}
	case authz.ScopeOrganization:
		if r.GroupID != nil {
			fields["group_id"] = "not allowed for ORGANIZATION scope"
		}
		if r.TargetRole != nil {
			fields["target_role"] = "not allowed for ORGANIZATION scope"
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
