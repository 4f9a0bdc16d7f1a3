package fakeapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/t11e/go-identity"
	"github.com/t11e/go-identity/session"
)

func newClient(t *testing.T, s *Server, opts ...identity.Option) *identity.Client {
	t.Helper()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	opts = append([]identity.Option{identity.WithMaxRetries(0)}, opts...)
	c, err := identity.Open(*u, opts...)
	require.NoError(t, err)
	return c
}

func TestServer_CreateAssignsCodes(t *testing.T) {
	s := New()
	c := newClient(t, s)
	ctx := context.Background()

	a, err := c.CreateOrganizationUnit(ctx, identity.CreateOrganizationUnitInput{DisplayName: "A"})
	require.NoError(t, err)
	b, err := c.CreateOrganizationUnit(ctx, identity.CreateOrganizationUnitInput{DisplayName: "B", ParentID: &a.ID})
	require.NoError(t, err)
	b2, err := c.CreateOrganizationUnit(ctx, identity.CreateOrganizationUnitInput{DisplayName: "B2", ParentID: &a.ID})
	require.NoError(t, err)

	assert.Equal(t, "00001", a.Code)
	assert.Equal(t, "00001.00001", b.Code)
	assert.Equal(t, "00001.00002", b2.Code)
	assert.Equal(t, a.ID, b.Parent())
	assert.Equal(t, 3, s.Calls(OpCreateUnit))
}

func TestServer_SiblingNamesAreUnique(t *testing.T) {
	s := New()
	root := s.SeedUnit("Root", "")
	s.SeedUnit("Team", root.ID)
	c := newClient(t, s)

	_, err := c.CreateOrganizationUnit(context.Background(),
		identity.CreateOrganizationUnitInput{DisplayName: "Team", ParentID: &root.ID})
	require.Error(t, err)
	assert.True(t, identity.IsStatus(err, http.StatusForbidden))
	assert.Contains(t, identity.MessageOf(err), "There is already an organization unit with name Team")

	// Same name at another level is fine.
	_, err = c.CreateOrganizationUnit(context.Background(), identity.CreateOrganizationUnitInput{DisplayName: "Team"})
	require.NoError(t, err)
}

func TestServer_DeleteCascades(t *testing.T) {
	s := New()
	a := s.SeedUnit("A", "")
	b := s.SeedUnit("B", a.ID)
	s.SeedUnit("C", b.ID)
	other := s.SeedUnit("Other", "")
	u := s.SeedUser("alice")
	s.SeedMembers(b.ID, u.ID)
	c := newClient(t, s)

	require.NoError(t, c.DeleteOrganizationUnit(context.Background(), a.ID))

	units := s.Units()
	require.Len(t, units, 1)
	assert.Equal(t, other.ID, units[0].ID)
	assert.Empty(t, s.MemberIDs(b.ID))

	err := c.DeleteOrganizationUnit(context.Background(), a.ID)
	assert.True(t, identity.IsStatus(err, http.StatusNotFound))
}

func TestServer_MoveRejectsDescendant(t *testing.T) {
	s := New()
	a := s.SeedUnit("A", "")
	b := s.SeedUnit("B", a.ID)
	cu := s.SeedUnit("C", b.ID)
	c := newClient(t, s)
	ctx := context.Background()

	err := c.MoveOrganizationUnit(ctx, a.ID, cu.ID)
	require.Error(t, err)
	assert.True(t, identity.IsStatus(err, http.StatusForbidden))

	require.NoError(t, c.MoveOrganizationUnit(ctx, cu.ID, ""))
	got, err := c.GetOrganizationUnit(ctx, cu.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsRoot())
	assert.Equal(t, "00002", got.Code)
}

func TestServer_Membership(t *testing.T) {
	s := New()
	from := s.SeedUnit("From", "")
	to := s.SeedUnit("To", "")
	alice, bob := s.SeedUser("alice"), s.SeedUser("bob")
	admin := s.SeedRole("admin")
	c := newClient(t, s)
	ctx := context.Background()

	require.NoError(t, c.AddUsersToUnit(ctx, from.ID, []string{alice.ID, bob.ID}))
	available, err := c.ListAvailableUsers(ctx, to.ID)
	require.NoError(t, err)
	assert.Len(t, available, 2)

	require.NoError(t, c.MoveAllUsers(ctx, from.ID, to.ID))
	assert.Empty(t, s.MemberIDs(from.ID))
	assert.Equal(t, []string{alice.ID, bob.ID}, s.MemberIDs(to.ID))

	require.NoError(t, c.RemoveUserFromUnit(ctx, to.ID, alice.ID))
	users, err := c.ListUsersForUnit(ctx, to.ID)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].UserName)

	require.NoError(t, c.AddRolesToUnit(ctx, to.ID, []string{admin.ID}))
	roles, err := c.ListRolesForUnit(ctx, to.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.NoError(t, c.RemoveRoleFromUnit(ctx, to.ID, admin.ID))
	assert.Empty(t, s.RoleIDs(to.ID))

	err = c.AddUsersToUnit(ctx, to.ID, []string{"missing"})
	assert.True(t, identity.IsStatus(err, http.StatusNotFound))
}

func TestServer_FailNext(t *testing.T) {
	s := New()
	a := s.SeedUnit("A", "")
	c := newClient(t, s)

	s.FailNext(OpDeleteUnit, http.StatusConflict, "Unit is locked")
	err := c.DeleteOrganizationUnit(context.Background(), a.ID)
	require.Error(t, err)
	assert.True(t, identity.IsStatus(err, http.StatusConflict))
	assert.Equal(t, "Unit is locked", identity.MessageOf(err))
	assert.Len(t, s.Units(), 1)

	s.FailNext(OpDeleteUnit, 0, "")
	err = c.DeleteOrganizationUnit(context.Background(), a.ID)
	require.Error(t, err)
	assert.False(t, identity.IsRemote(err))

	require.NoError(t, c.DeleteOrganizationUnit(context.Background(), a.ID))
	assert.Equal(t, 3, s.Calls(OpDeleteUnit))
}

func TestServer_AccessToken(t *testing.T) {
	s := New(WithAccessToken("secret"))
	s.SeedUnit("A", "")

	_, err := newClient(t, s).ListOrganizationUnits(context.Background())
	assert.True(t, identity.IsStatus(err, http.StatusUnauthorized))

	units, err := newClient(t, s, identity.WithAccessToken("secret")).ListOrganizationUnits(context.Background())
	require.NoError(t, err)
	assert.Len(t, units, 1)
}

func TestServer_Configuration(t *testing.T) {
	s := New()
	s.Grant(session.PolicyManageRoles, false)

	cfg, err := newClient(t, s).GetApplicationConfiguration(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.Auth.GrantedPolicies[session.PolicyManageOU])
	assert.False(t, cfg.Auth.GrantedPolicies[session.PolicyManageRoles])
	assert.Equal(t, "admin", cfg.CurrentUser.UserName)
}
