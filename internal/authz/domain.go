// Package authz decides whether an identity may perform an action on a
// tenant-scoped record. Both the scope validator and the permission engine
// are pure functions over their inputs: they do no I/O, hold no state, and
// are safe to call concurrently from any number of requests.
package authz

import "github.com/pelita-edu/pelita/internal/identity"

// Scope is the visibility class of a record.
type Scope string

const (
	// ScopeOrganization makes a record visible tenant-wide.
	ScopeOrganization Scope = "ORGANIZATION"
	// ScopeGroup targets a sub-unit such as a class.
	ScopeGroup Scope = "GROUP"
	// ScopeRole targets every identity holding one role.
	ScopeRole Scope = "ROLE"
)

// ValidScope reports whether s is a member of the scope enumeration.
func ValidScope(s Scope) bool {
	return s == ScopeOrganization || s == ScopeGroup || s == ScopeRole
}

// Action enumerates the operations the engine arbitrates.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionRead    Action = "READ"
	ActionUpdate  Action = "UPDATE"
	ActionDelete  Action = "DELETE"
	ActionPublish Action = "PUBLISH"
)

// DenialReason is the typed cause attached to a deny decision.
type DenialReason string

const (
	// DenyNotFound covers tenant mismatches. A record in another tenant is
	// indistinguishable from a record that does not exist, so cross-tenant
	// probing learns nothing.
	DenyNotFound DenialReason = "NOT_FOUND"
	// DenyScope covers authoring-scope failures on create.
	DenyScope DenialReason = "SCOPE_DENIED"
	// DenyRead covers read attempts on records the identity may not see.
	DenyRead DenialReason = "UNAUTHORIZED_READ"
	// DenyWrite covers update/delete/publish attempts the identity may not make.
	DenyWrite DenialReason = "UNAUTHORIZED_WRITE"
)

// Decision is the verdict for one action against one record or scope.
type Decision struct {
	Allowed bool
	Reason  DenialReason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason DenialReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Record is the view of a protected record the engine decides over. Callers
// load the row themselves and project these attributes; the engine never
// touches storage.
type Record struct {
	TenantID   string
	Scope      Scope
	GroupID    string        // set when Scope is GROUP
	TargetRole identity.Role // set when Scope is ROLE
	OwnerID    string        // empty for legacy unattributed rows
	Published  bool
}
