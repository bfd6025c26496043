package authz

import (
	"fmt"

	"github.com/pelita-edu/pelita/internal/identity"
)

// ScopeError reports that an identity may not author content at a scope.
type ScopeError struct {
	Scope   Scope
	Message string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("scope %s: %s", e.Scope, e.Message)
}

// ScopeTarget carries the scope-specific target of an authoring request.
type ScopeTarget struct {
	GroupID    string
	TargetRole identity.Role
}

// ValidateScope decides whether ctx may author content at the requested
// scope, independent of any specific record. It applies at creation time
// only; scope is immutable once a record exists.
func ValidateScope(ctx *identity.AuthContext, scope Scope, target ScopeTarget) error {
	if ctx == nil {
		return &ScopeError{Scope: scope, Message: "no identity"}
	}

	switch scope {
	case ScopeOrganization:
		if !ctx.Role.Privileged() {
			return &ScopeError{Scope: scope, Message: "organization scope requires elevated role"}
		}
		return nil

	case ScopeGroup:
		switch ctx.Role {
		case identity.RoleAdmin, identity.RolePrincipal:
			if target.GroupID == "" {
				return &ScopeError{Scope: scope, Message: "group scope requires a group id"}
			}
			return nil
		case identity.RoleTeacher:
			if target.GroupID == "" {
				return &ScopeError{Scope: scope, Message: "group scope requires a group id"}
			}
			if !ctx.TeachesClass(target.GroupID) {
				return &ScopeError{Scope: scope, Message: "not authorized for this group"}
			}
			return nil
		default:
			return &ScopeError{Scope: scope, Message: "group scope requires teaching or elevated role"}
		}

	case ScopeRole:
		if !ctx.Role.Privileged() {
			return &ScopeError{Scope: scope, Message: "role scope requires elevated role"}
		}
		if !identity.ValidRole(target.TargetRole) {
			return &ScopeError{Scope: scope, Message: "invalid target role"}
		}
		return nil

	default:
		return &ScopeError{Scope: scope, Message: "unknown scope"}
	}
}
