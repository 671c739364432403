package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/licensehub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer(dbtest.New(t))
	require.NoError(t, err)
	return NewService(Params{Log: zaptest.NewLogger(t), Enforcer: enforcer})
}

func TestAuthorizeByRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		role    string
		object  string
		action  string
		allowed bool
	}{
		{RoleMember, ObjectLicense, ActionLicenseView, true},
		{RoleMember, ObjectLicense, ActionLicenseReveal, false},
		{RoleMember, ObjectReturnedFields, ActionReturnedFieldsUpdate, false},
		{RoleAdmin, ObjectLicense, ActionLicenseReveal, true},
		{RoleAdmin, ObjectReturnedFields, ActionReturnedFieldsUpdate, true},
		{RoleAdmin, ObjectLicense, ActionLicenseDelete, false},
		{RoleAdmin, ObjectTeam, ActionTeamSigningSecret, false},
		{RoleOwner, ObjectLicense, ActionLicenseDelete, true},
		{RoleOwner, ObjectAPIKey, ActionAPIKeyRevoke, true},
		{RoleOwner, ObjectTeam, ActionTeamSigningSecret, true},
	}

	for _, tc := range cases {
		t.Run(tc.role+"/"+tc.action, func(t *testing.T) {
			err := svc.Authorize(ctx, Actor{Subject: "42", TeamID: "7", Role: tc.role}, tc.object, tc.action)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrForbidden)
			}
		})
	}
}

func TestAuthorizeFollowsLatestRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, Actor{Subject: "42", TeamID: "7", Role: RoleOwner}, ObjectLicense, ActionLicenseDelete))

	err := svc.Authorize(ctx, Actor{Subject: "42", TeamID: "7", Role: RoleMember}, ObjectLicense, ActionLicenseDelete)
	assert.ErrorIs(t, err, ErrForbidden)

	// Roles are scoped per team.
	require.NoError(t, svc.Authorize(ctx, Actor{Subject: "42", TeamID: "8", Role: RoleOwner}, ObjectLicense, ActionLicenseDelete))
}

func TestAuthorizeRejectsInvalidInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, Actor{TeamID: "7", Role: RoleOwner}, ObjectLicense, ActionLicenseView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Subject: "42", TeamID: "x", Role: RoleOwner}, ObjectLicense, ActionLicenseView), ErrInvalidTeam)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Subject: "42", TeamID: "7", Role: "root"}, ObjectLicense, ActionLicenseView), ErrInvalidRole)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Subject: "42", TeamID: "7", Role: RoleOwner}, "", ActionLicenseView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{Subject: "42", TeamID: "7", Role: RoleOwner}, ObjectLicense, " "), ErrInvalidAction)
}

func TestNewEnforcerSeedsOnce(t *testing.T) {
	db := dbtest.New(t)
	first, err := NewEnforcer(db)
	require.NoError(t, err)
	before, err := first.GetPolicy()
	require.NoError(t, err)

	second, err := NewEnforcer(db)
	require.NoError(t, err)
	after, err := second.GetPolicy()
	require.NoError(t, err)

	assert.Len(t, after, len(before))
	// member 5 + admin 15 + owner 18
	assert.Len(t, after, 38)
}

func TestMinimumRoleObjects(t *testing.T) {
	objects := map[string]bool{
		ObjectLicense: true, ObjectCustomer: true, ObjectProduct: true,
		ObjectReturnedFields: true, ObjectAPIKey: true, ObjectAuditLog: true, ObjectTeam: true,
	}
	for action, role := range minimumRole {
		assert.True(t, objects[objectOf(action)], action)
		assert.Contains(t, roleRank, role, action)
	}
}
