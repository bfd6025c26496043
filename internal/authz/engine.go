package authz

import "github.com/pelita-edu/pelita/internal/identity"

// Check evaluates the decision table for one action. The rules are evaluated
// in order and the first match wins.
//
// For CREATE the record carries the requested scope attributes and the check
// delegates to ValidateScope. For every other action the caller must have
// loaded the record first; absence of a record is the caller's problem and
// must short-circuit to a not-found outcome before reaching the engine.
func Check(ctx *identity.AuthContext, action Action, rec *Record) Decision {
	if ctx == nil {
		return deny(DenyWrite)
	}

	// Tenant boundary first. A mismatch is never reported as forbidden.
	if rec != nil && rec.TenantID != ctx.TenantID {
		return deny(DenyNotFound)
	}

	switch action {
	case ActionCreate:
		if rec == nil {
			return deny(DenyScope)
		}
		if err := ValidateScope(ctx, rec.Scope, ScopeTarget{GroupID: rec.GroupID, TargetRole: rec.TargetRole}); err != nil {
			return deny(DenyScope)
		}
		return allow()

	case ActionRead:
		if rec == nil {
			return deny(DenyRead)
		}
		if rec.Published {
			return allow()
		}
		if ctx.Role.Privileged() {
			return allow()
		}
		if rec.OwnerID != "" && rec.OwnerID == ctx.UserID {
			return allow()
		}
		return deny(DenyRead)

	case ActionUpdate, ActionDelete, ActionPublish:
		if rec == nil {
			return deny(DenyWrite)
		}
		if ctx.Role.Privileged() {
			return allow()
		}
		// Owner check is vacuously false for legacy rows with no owner;
		// only elevated roles can touch those.
		if rec.OwnerID == "" || rec.OwnerID != ctx.UserID {
			return deny(DenyWrite)
		}
		// Group membership is re-checked at mutation time, not just at
		// creation. A teacher reassigned off a class loses edit rights on
		// records they authored for it.
		if rec.Scope == ScopeGroup && !ctx.TeachesClass(rec.GroupID) {
			return deny(DenyWrite)
		}
		return allow()

	default:
		return deny(DenyWrite)
	}
}
