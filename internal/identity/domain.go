package identity

import "errors"

// Role is the single role an identity holds within its tenant.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RolePrincipal  Role = "PRINCIPAL"
	RoleTeacher    Role = "TEACHER"
	RoleStudent    Role = "STUDENT"
	RoleGuardian   Role = "GUARDIAN"
	RoleStaff      Role = "STAFF"
	RoleAccountant Role = "ACCOUNTANT"
)

// ErrNotAuthenticated is returned when no valid identity can be resolved.
// Resolution fails closed: a missing session, unknown user, or absent role
// claim never degrades to a permissive default.
var ErrNotAuthenticated = errors.New("not authenticated")

// ValidRole reports whether r is a member of the role enumeration.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RolePrincipal, RoleTeacher, RoleStudent, RoleGuardian, RoleStaff, RoleAccountant:
		return true
	}
	return false
}

// Privileged reports whether the role may manage records regardless of
// ownership.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RolePrincipal
}

// AuthContext is the normalized per-request representation of who is asking.
// It is constructed once per inbound request and discarded at request end;
// it is never cached or shared across requests.
type AuthContext struct {
	UserID         string
	Role           Role
	TenantID       string
	TaughtClassIDs []string
}

// TeachesClass reports whether classID is among the classes this identity is
// currently assigned to teach.
func (c *AuthContext) TeachesClass(classID string) bool {
	if c == nil || classID == "" {
		return false
	}
	for _, id := range c.TaughtClassIDs {
		if id == classID {
			return true
		}
	}
	return false
}

// User is an account row as seen by identity resolution.
type User struct {
	ID       string
	TenantID string
	Role     Role
	IsActive bool
}
