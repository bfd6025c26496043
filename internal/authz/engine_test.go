package authz_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pelita-edu/pelita/internal/authz"
	"github.com/pelita-edu/pelita/internal/identity"
)

func record(mutate ...func(*authz.Record)) *authz.Record {
	rec := &authz.Record{
		TenantID:  "t-1",
		Scope:     authz.ScopeOrganization,
		OwnerID:   "u-1",
		Published: true,
	}
	for _, fn := range mutate {
		fn(rec)
	}
	return rec
}

func TestCheckTenantMismatchIsNotFound(t *testing.T) {
	foreign := record(func(r *authz.Record) { r.TenantID = "t-2" })

	for _, action := range []authz.Action{authz.ActionRead, authz.ActionUpdate, authz.ActionDelete, authz.ActionPublish} {
		// Even an admin of the wrong tenant sees nothing but absence.
		dec := authz.Check(actor(identity.RoleAdmin), action, foreign)
		require.False(t, dec.Allowed, "action %s", action)
		require.Equal(t, authz.DenyNotFound, dec.Reason, "action %s", action)
	}
}

func TestCheckCreateDelegatesToScopeValidator(t *testing.T) {
	orgDraft := record(func(r *authz.Record) { r.Published = false })

	dec := authz.Check(actor(identity.RoleAdmin), authz.ActionCreate, orgDraft)
	require.True(t, dec.Allowed)

	dec = authz.Check(actor(identity.RoleStudent), authz.ActionCreate, orgDraft)
	require.False(t, dec.Allowed)
	require.Equal(t, authz.DenyScope, dec.Reason)

	groupRec := record(func(r *authz.Record) {
		r.Scope = authz.ScopeGroup
		r.GroupID = "c-9"
	})
	dec = authz.Check(actor(identity.RoleTeacher, "c-1"), authz.ActionCreate, groupRec)
	require.False(t, dec.Allowed)
	require.Equal(t, authz.DenyScope, dec.Reason)

	dec = authz.Check(actor(identity.RoleTeacher, "c-9"), authz.ActionCreate, groupRec)
	require.True(t, dec.Allowed)

	dec = authz.Check(actor(identity.RoleAdmin), authz.ActionCreate, nil)
	require.False(t, dec.Allowed)
	require.Equal(t, authz.DenyScope, dec.Reason)
}

func TestCheckReadVisibility(t *testing.T) {
	published := record()
	dec := authz.Check(actor(identity.RoleStudent), authz.ActionRead, published)
	require.True(t, dec.Allowed)

	unpublished := record(func(r *authz.Record) {
		r.Published = false
		r.OwnerID = "owner-1"
	})

	// Privileged roles and the owner see drafts, nobody else does.
	require.True(t, authz.Check(actor(identity.RoleAdmin), authz.ActionRead, unpublished).Allowed)
	require.True(t, authz.Check(actor(identity.RolePrincipal), authz.ActionRead, unpublished).Allowed)

	owner := &identity.AuthContext{UserID: "owner-1", Role: identity.RoleTeacher, TenantID: "t-1"}
	require.True(t, authz.Check(owner, authz.ActionRead, unpublished).Allowed)

	dec = authz.Check(actor(identity.RoleStudent), authz.ActionRead, unpublished)
	require.False(t, dec.Allowed)
	require.Equal(t, authz.DenyRead, dec.Reason)
}

func TestCheckOwnershipGating(t *testing.T) {
	rec := record(func(r *authz.Record) { r.OwnerID = "owner-1" })
	owner := &identity.AuthContext{UserID: "owner-1", Role: identity.RoleStaff, TenantID: "t-1"}
	stranger := &identity.AuthContext{UserID: "other-1", Role: identity.RoleStaff, TenantID: "t-1"}

	for _, action := range []authz.Action{authz.ActionUpdate, authz.ActionDelete, authz.ActionPublish} {
		require.True(t, authz.Check(owner, action, rec).Allowed, "owner %s", action)

		dec := authz.Check(stranger, action, rec)
		require.False(t, dec.Allowed, "stranger %s", action)
		require.Equal(t, authz.DenyWrite, dec.Reason)

		require.True(t, authz.Check(actor(identity.RoleAdmin), action, rec).Allowed, "admin %s", action)
	}
}

func TestCheckGroupRevocation(t *testing.T) {
	rec := record(func(r *authz.Record) {
		r.Scope = authz.ScopeGroup
		r.GroupID = "c-1"
		r.OwnerID = "teach-1"
	})

	current := &identity.AuthContext{UserID: "teach-1", Role: identity.RoleTeacher, TenantID: "t-1", TaughtClassIDs: []string{"c-1"}}
	require.True(t, authz.Check(current, authz.ActionUpdate, rec).Allowed)

	// Same owner, reassigned off the class: rights are gone.
	reassigned := &identity.AuthContext{UserID: "teach-1", Role: identity.RoleTeacher, TenantID: "t-1", TaughtClassIDs: []string{"c-2"}}
	for _, action := range []authz.Action{authz.ActionUpdate, authz.ActionDelete, authz.ActionPublish} {
		dec := authz.Check(reassigned, action, rec)
		require.False(t, dec.Allowed, "action %s", action)
		require.Equal(t, authz.DenyWrite, dec.Reason)
	}
}

func TestCheckLegacyOwnerlessRecords(t *testing.T) {
	rec := record(func(r *authz.Record) { r.OwnerID = "" })

	require.True(t, authz.Check(actor(identity.RoleAdmin), authz.ActionDelete, rec).Allowed)
	require.True(t, authz.Check(actor(identity.RolePrincipal), authz.ActionUpdate, rec).Allowed)

	dec := authz.Check(actor(identity.RoleTeacher, "c-1"), authz.ActionUpdate, rec)
	require.False(t, dec.Allowed)
	require.Equal(t, authz.DenyWrite, dec.Reason)
}

func TestCheckNilInputs(t *testing.T) {
	require.False(t, authz.Check(nil, authz.ActionRead, record()).Allowed)
	require.False(t, authz.Check(actor(identity.RoleAdmin), authz.ActionUpdate, nil).Allowed)
	require.False(t, authz.Check(actor(identity.RoleAdmin), authz.Action("RENAME"), record()).Allowed)
}
