package orgunit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/t11e/go-identity"
	"github.com/t11e/go-identity/internal/fakeapi"
	"github.com/t11e/go-identity/notify"
	"github.com/t11e/go-identity/session"
	"github.com/t11e/go-identity/tree"
)

type fixture struct {
	srv    *fakeapi.Server
	client *identity.Client
	notes  *notify.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := fakeapi.New()
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)
	u, err := url.Parse(hs.URL)
	require.NoError(t, err)
	client, err := identity.Open(*u, identity.WithMaxRetries(0))
	require.NoError(t, err)
	return &fixture{srv: srv, client: client, notes: &notify.Recorder{}}
}

func (f *fixture) manager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	return f.managerWith(t, f.client, opts...)
}

func (f *fixture) managerWith(t *testing.T, api API, opts ...Option) *Manager {
	t.Helper()
	m := New(api, append([]Option{WithNotifier(f.notes)}, opts...)...)
	require.NoError(t, m.Load(context.Background()))
	f.srv.ResetCalls()
	f.notes.Reset()
	return m
}

func (f *fixture) last(t *testing.T) notify.Notification {
	t.Helper()
	n, ok := f.notes.Last()
	require.True(t, ok, "expected a notification")
	return n
}

func unitIDs(units []identity.OrganizationUnit) []string {
	ids := make([]string, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	return ids
}

func TestLoad_BuildsTree(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	b := f.srv.SeedUnit("B", a.ID)
	c := f.srv.SeedUnit("C", b.ID)
	m := f.manager(t)

	snap := m.Snapshot()
	assert.Equal(t, Idle, snap.State)
	require.Len(t, snap.Tree, 1)
	assert.Equal(t, "A", snap.Tree[0].Name)
	require.Len(t, snap.Tree[0].Children, 1)
	assert.Equal(t, b.ID, snap.Tree[0].Children[0].ID)
	require.Len(t, snap.Tree[0].Children[0].Children, 1)
	assert.Equal(t, c.ID, snap.Tree[0].Children[0].Children[0].ID)
}

func TestLoad_FailureNotifies(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)

	f.srv.FailNext(fakeapi.OpListUnits, http.StatusInternalServerError, "")
	err := m.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, notify.Notification{Level: notify.Error, Message: "Failed to load organization units"}, f.last(t))
}

func TestLoad_ClearsVanishedSelection(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	m := f.manager(t)
	ctx := context.Background()
	require.NoError(t, m.Select(ctx, a.ID))

	require.NoError(t, f.client.DeleteOrganizationUnit(ctx, a.ID))
	require.NoError(t, m.Load(ctx))
	assert.Equal(t, Idle, m.State())
	assert.Empty(t, m.Snapshot().SelectedID)
}

func TestSelect_FetchesMembers(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	alice := f.srv.SeedUser("alice")
	role := f.srv.SeedRole("manager")
	f.srv.SeedMembers(a.ID, alice.ID)
	f.srv.SeedRoles(a.ID, role.ID)
	m := f.manager(t)

	require.NoError(t, m.Select(context.Background(), a.ID))
	snap := m.Snapshot()
	assert.Equal(t, UnitSelected, snap.State)
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "alice", snap.Users[0].UserName)
	require.Len(t, snap.Roles, 1)
	assert.Equal(t, "manager", snap.Roles[0].Name)
	sel, ok := snap.Selected()
	require.True(t, ok)
	assert.Equal(t, "A", sel.DisplayName)
}

func TestSelect_UnknownUnit(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)

	assert.NoError(t, m.Select(context.Background(), ""))
	err := m.Select(context.Background(), "missing")
	assert.Equal(t, ErrUnitNotFound, err)
	assert.Equal(t, notify.Warning, f.last(t).Level)
	assert.Zero(t, f.srv.TotalCalls())
}

func TestSelect_FailureKeepsSelection(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	m := f.manager(t)

	f.srv.FailNext(fakeapi.OpListUsers, http.StatusInternalServerError, "Members unavailable")
	err := m.Select(context.Background(), a.ID)
	require.Error(t, err)
	assert.Equal(t, notify.Notification{Level: notify.Error, Message: "Members unavailable"}, f.last(t))
	assert.Equal(t, a.ID, m.Snapshot().SelectedID)
	assert.Empty(t, m.Snapshot().Users)
}

// gatedAPI holds the member fetch of one unit until released, then answers
// it regardless of cancellation.
type gatedAPI struct {
	API
	unitID  string
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedAPI) ListUsersForUnit(ctx context.Context, id string) ([]identity.User, error) {
	if id == g.unitID {
		g.once.Do(func() { close(g.entered) })
		<-g.release
		return g.API.ListUsersForUnit(context.Background(), id)
	}
	return g.API.ListUsersForUnit(ctx, id)
}

func TestSelect_StaleResponseDiscarded(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	b := f.srv.SeedUnit("B", "")
	alice, bob := f.srv.SeedUser("alice"), f.srv.SeedUser("bob")
	f.srv.SeedMembers(a.ID, alice.ID)
	f.srv.SeedMembers(b.ID, bob.ID)

	api := &gatedAPI{API: f.client, unitID: a.ID, entered: make(chan struct{}), release: make(chan struct{})}
	m := f.managerWith(t, api)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- m.Select(ctx, a.ID) }()
	<-api.entered

	require.NoError(t, m.Select(ctx, b.ID))
	close(api.release)
	assert.NoError(t, <-done)

	snap := m.Snapshot()
	assert.Equal(t, b.ID, snap.SelectedID)
	require.Len(t, snap.Users, 1)
	assert.Equal(t, "bob", snap.Users[0].UserName)
	assert.Empty(t, f.notes.All())
}

func TestAddUnit_ReloadsTree(t *testing.T) {
	f := newFixture(t)
	root := f.srv.SeedUnit("Root", "")
	m := f.manager(t)

	unit, err := m.AddUnit(context.Background(), "Team", root.ID)
	require.NoError(t, err)
	assert.Equal(t, notify.Notification{Level: notify.Success, Message: "Organization unit added successfully"}, f.last(t))
	assert.Equal(t, 1, f.srv.Calls(fakeapi.OpListUnits))

	node := tree.Find(m.Snapshot().Tree, unit.ID)
	require.NotNil(t, node)
	assert.Equal(t, "Team", node.Name)
	assert.Equal(t, root.ID, m.Snapshot().Tree[0].ID)
	assert.Same(t, node, m.Snapshot().Tree[0].Children[0])
}

func TestAddUnit_Failures(t *testing.T) {
	f := newFixture(t)
	root := f.srv.SeedUnit("Root", "")
	f.srv.SeedUnit("Team", root.ID)
	m := f.manager(t)
	ctx := context.Background()
	before := unitIDs(m.Snapshot().Units)

	_, err := m.AddUnit(ctx, "Team", root.ID)
	require.Error(t, err)
	n := f.last(t)
	assert.Equal(t, notify.Error, n.Level)
	assert.Contains(t, n.Message, "There is already an organization unit with name Team")

	f.srv.FailNext(fakeapi.OpCreateUnit, http.StatusBadRequest, "")
	_, err = m.AddUnit(ctx, "Other", root.ID)
	require.Error(t, err)
	assert.Equal(t, "Failed to add organization unit", f.last(t).Message)

	f.srv.FailNext(fakeapi.OpCreateUnit, 0, "")
	_, err = m.AddUnit(ctx, "Other", root.ID)
	require.Error(t, err)
	assert.Equal(t, "An error occurred while saving the organization unit", f.last(t).Message)

	assert.Equal(t, before, unitIDs(m.Snapshot().Units))
	assert.Zero(t, f.srv.Calls(fakeapi.OpListUnits))
}

func TestAddUnit_LocalRejections(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	ctx := context.Background()

	_, err := m.AddUnit(ctx, "  ", "")
	require.Error(t, err)
	assert.True(t, identity.IsValidation(err))
	assert.Equal(t, notify.Notification{Level: notify.Warning, Message: "displayName is required"}, f.last(t))

	_, err = m.AddUnit(ctx, "Team", "missing")
	assert.Equal(t, ErrUnitNotFound, err)
	assert.Zero(t, f.srv.TotalCalls())
}

func TestEditUnit(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	m := f.manager(t)

	require.NoError(t, m.EditUnit(context.Background(), a.ID, "Renamed"))
	assert.Equal(t, "Organization unit updated successfully", f.last(t).Message)
	assert.Equal(t, "Renamed", m.Snapshot().Tree[0].Name)
}

func TestDeleteUnit_ClearsSelection(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	b := f.srv.SeedUnit("B", a.ID)
	other := f.srv.SeedUnit("Other", "")
	m := f.manager(t)
	ctx := context.Background()

	require.NoError(t, m.Select(ctx, other.ID))
	require.NoError(t, m.DeleteUnit(ctx, b.ID))
	assert.Equal(t, other.ID, m.Snapshot().SelectedID)

	require.NoError(t, m.Select(ctx, a.ID))
	require.NoError(t, m.DeleteUnit(ctx, a.ID))
	assert.Equal(t, Idle, m.State())
	assert.Equal(t, "Organization unit deleted successfully", f.last(t).Message)
	assert.Equal(t, []string{other.ID}, unitIDs(m.Snapshot().Units))
}

func TestDeleteUnit_ClearsSelectionInsideSubtree(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	b := f.srv.SeedUnit("B", a.ID)
	m := f.manager(t)
	ctx := context.Background()

	require.NoError(t, m.Select(ctx, b.ID))
	require.NoError(t, m.DeleteUnit(ctx, a.ID))
	assert.Equal(t, Idle, m.State())
	assert.Empty(t, m.Snapshot().Units)
}

func TestDeleteUnit_FailureLeavesState(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	f.srv.SeedUnit("B", a.ID)
	m := f.manager(t)
	ctx := context.Background()
	require.NoError(t, m.Select(ctx, a.ID))
	before := m.Snapshot()

	f.srv.FailNext(fakeapi.OpDeleteUnit, http.StatusForbidden, "Unit has members")
	err := m.DeleteUnit(ctx, a.ID)
	require.Error(t, err)
	assert.True(t, identity.IsStatus(err, http.StatusForbidden))
	assert.Equal(t, notify.Notification{Level: notify.Error, Message: "Unit has members"}, f.last(t))

	after := m.Snapshot()
	assert.Equal(t, before.SelectedID, after.SelectedID)
	assert.Equal(t, unitIDs(before.Units), unitIDs(after.Units))
	assert.Equal(t, before.Tree, after.Tree)
	assert.Len(t, f.srv.Units(), 2)
}

func TestMoveUnit(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	b := f.srv.SeedUnit("B", a.ID)
	c := f.srv.SeedUnit("C", b.ID)
	m := f.manager(t)
	ctx := context.Background()

	for _, target := range []string{a.ID, b.ID, c.ID} {
		err := m.MoveUnit(ctx, a.ID, target)
		assert.Equal(t, ErrInvalidParent, err)
	}
	assert.Zero(t, f.srv.TotalCalls())
	assert.Equal(t, notify.Notification{
		Level:   notify.Error,
		Message: "Cannot move an organization unit under itself or one of its descendants.",
	}, f.last(t))

	assert.Equal(t, ErrTargetNotFound, m.MoveUnit(ctx, c.ID, "missing"))

	require.NoError(t, m.MoveUnit(ctx, c.ID, ""))
	assert.Equal(t, "Organization unit moved successfully", f.last(t).Message)
	forest := m.Snapshot().Tree
	require.Len(t, forest, 2)
	assert.Equal(t, c.ID, forest[1].ID)
}

func TestMoveAllUsers_NoUsers(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	b := f.srv.SeedUnit("B", "")
	m := f.manager(t)
	ctx := context.Background()
	require.NoError(t, m.Select(ctx, a.ID))
	f.srv.ResetCalls()

	err := m.MoveAllUsers(ctx, b.ID)
	assert.Equal(t, ErrNoUsersToMove, err)
	assert.Equal(t, notify.Notification{Level: notify.Warning, Message: "There are no users currently in this unit."}, f.last(t))
	assert.Zero(t, f.srv.TotalCalls())
}

func TestMoveAllUsers_UnknownWhenMembersFailedToLoad(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	b := f.srv.SeedUnit("B", "")
	alice := f.srv.SeedUser("alice")
	f.srv.SeedMembers(a.ID, alice.ID)
	m := f.manager(t)
	ctx := context.Background()

	f.srv.FailNext(fakeapi.OpListUsers, http.StatusInternalServerError, "Members unavailable")
	require.Error(t, m.Select(ctx, a.ID))
	f.srv.ResetCalls()

	_, err := m.OpenMoveAllUsers()
	assert.Equal(t, ErrUsersNotLoaded, err)
	assert.Equal(t, notify.Notification{Level: notify.Error, Message: "The users of this unit could not be loaded."}, f.last(t))

	assert.Equal(t, ErrUsersNotLoaded, m.MoveAllUsers(ctx, b.ID))
	assert.Zero(t, f.srv.TotalCalls())
	assert.Equal(t, []string{alice.ID}, f.srv.MemberIDs(a.ID))

	require.NoError(t, m.Select(ctx, a.ID))
	require.NoError(t, m.MoveAllUsers(ctx, b.ID))
	assert.Equal(t, []string{alice.ID}, f.srv.MemberIDs(b.ID))
}

func TestMoveAllUsers(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	b := f.srv.SeedUnit("B", "")
	alice := f.srv.SeedUser("alice")
	f.srv.SeedMembers(a.ID, alice.ID)
	m := f.manager(t)
	ctx := context.Background()

	assert.Equal(t, ErrNoSelection, m.MoveAllUsers(ctx, b.ID))
	require.NoError(t, m.Select(ctx, a.ID))

	assert.Equal(t, ErrTargetNotFound, m.MoveAllUsers(ctx, a.ID))
	require.NoError(t, m.MoveAllUsers(ctx, b.ID))
	assert.Equal(t, "Users moved successfully", f.last(t).Message)
	assert.Empty(t, m.Snapshot().Users)
	assert.Equal(t, []string{alice.ID}, f.srv.MemberIDs(b.ID))
}

func TestMembership_RefreshesOnlyAffectedList(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	alice := f.srv.SeedUser("alice")
	role := f.srv.SeedRole("auditor")
	m := f.manager(t)
	ctx := context.Background()
	require.NoError(t, m.Select(ctx, a.ID))
	f.srv.ResetCalls()

	require.NoError(t, m.AddUsers(ctx, []string{alice.ID}))
	assert.Equal(t, "Users added successfully", f.last(t).Message)
	assert.Len(t, m.Snapshot().Users, 1)
	assert.Equal(t, 1, f.srv.Calls(fakeapi.OpListUsers))
	assert.Zero(t, f.srv.Calls(fakeapi.OpListRoles))
	assert.Zero(t, f.srv.Calls(fakeapi.OpListUnits))

	require.NoError(t, m.AddRoles(ctx, []string{role.ID}))
	assert.Len(t, m.Snapshot().Roles, 1)
	assert.Equal(t, 1, f.srv.Calls(fakeapi.OpListRoles))

	require.NoError(t, m.RemoveUser(ctx, alice.ID))
	assert.Equal(t, "User deleted successfully", f.last(t).Message)
	assert.Empty(t, m.Snapshot().Users)

	require.NoError(t, m.RemoveRole(ctx, role.ID))
	assert.Equal(t, "Role deleted successfully", f.last(t).Message)
	assert.Empty(t, m.Snapshot().Roles)

	assert.Equal(t, ErrNoUsersSelected, m.AddUsers(ctx, nil))
	assert.Equal(t, ErrNoRolesSelected, m.AddRoles(ctx, nil))
}

func TestPermissions(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	alice := f.srv.SeedUser("alice")
	s := session.Start(nil, nil, session.Policies{session.PolicyManageMembers: true})
	m := f.manager(t, WithSession(s))
	ctx := context.Background()
	require.NoError(t, m.Select(ctx, a.ID))
	f.srv.ResetCalls()

	_, err := m.AddUnit(ctx, "Team", "")
	assert.Equal(t, ErrNotPermitted, err)
	assert.Equal(t, notify.Notification{Level: notify.Warning, Message: "You do not have permission to perform this action."}, f.last(t))
	assert.Equal(t, ErrNotPermitted, m.DeleteUnit(ctx, a.ID))
	assert.Equal(t, ErrNotPermitted, m.AddRoles(ctx, []string{"r"}))
	assert.Zero(t, f.srv.TotalCalls())

	require.NoError(t, m.AddUsers(ctx, []string{alice.ID}))

	s.End()
	assert.Equal(t, ErrNotPermitted, m.AddUsers(ctx, []string{alice.ID}))
}

func TestCancelledContextIsNotNotified(t *testing.T) {
	f := newFixture(t)
	a := f.srv.SeedUnit("A", "")
	m := f.manager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.EditUnit(ctx, a.ID, "Renamed")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, f.notes.All())
}
