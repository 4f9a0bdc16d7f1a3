package orgunit

import (
	"context"
	"fmt"

	identity "github.com/t11e/go-identity"
	"github.com/t11e/go-identity/notify"
	"github.com/t11e/go-identity/session"
	"github.com/t11e/go-identity/tree"
)

type DialogKind int

const (
	DialogAddUnit DialogKind = iota + 1
	DialogEditUnit
	DialogDeleteUnit
	DialogMoveUnit
	DialogMoveAllUsers
	DialogAddUsers
	DialogAddRoles
	DialogRemoveUser
	DialogRemoveRole
)

var dialogKindNames = map[DialogKind]string{
	DialogAddUnit:      "add-unit",
	DialogEditUnit:     "edit-unit",
	DialogDeleteUnit:   "delete-unit",
	DialogMoveUnit:     "move-unit",
	DialogMoveAllUsers: "move-all-users",
	DialogAddUsers:     "add-users",
	DialogAddRoles:     "add-roles",
	DialogRemoveUser:   "remove-user",
	DialogRemoveRole:   "remove-role",
}

func (k DialogKind) String() string {
	if s, ok := dialogKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("dialog(%d)", int(k))
}

// Dialog is the open modal together with the payload it acts upon. The set
// of implementations is closed.
type Dialog interface {
	Kind() DialogKind
	Title() string
	Description() string
	dialog()
}

const confirmTitle = "Are You Sure"

type AddUnitDialog struct {
	ParentID   string
	ParentName string
}

func (AddUnitDialog) Kind() DialogKind { return DialogAddUnit }
func (AddUnitDialog) Title() string    { return "New organization unit" }
func (d AddUnitDialog) Description() string {
	if d.ParentID == "" {
		return "Create a new organization unit"
	}
	return "Parent: " + d.ParentName
}
func (AddUnitDialog) dialog() {}

type EditUnitDialog struct {
	UnitID      string
	DisplayName string
}

func (EditUnitDialog) Kind() DialogKind    { return DialogEditUnit }
func (EditUnitDialog) Title() string       { return "Edit Unit" }
func (EditUnitDialog) Description() string { return "Edit the name of the organization unit" }
func (EditUnitDialog) dialog()             {}

type DeleteUnitDialog struct {
	UnitID   string
	UnitName string
}

func (DeleteUnitDialog) Kind() DialogKind { return DialogDeleteUnit }
func (DeleteUnitDialog) Title() string    { return confirmTitle }
func (d DeleteUnitDialog) Description() string {
	return fmt.Sprintf("Are you sure you want to delete the organization unit %q ?", d.UnitName)
}
func (DeleteUnitDialog) dialog() {}

// MoveUnitDialog offers every unit outside the moved unit's subtree as the
// new parent. AllowRoot is set when the unit is not a root already.
type MoveUnitDialog struct {
	UnitID    string
	UnitName  string
	AllowRoot bool
	Options   []tree.Option
}

func (MoveUnitDialog) Kind() DialogKind { return DialogMoveUnit }
func (MoveUnitDialog) Title() string    { return "Move unit" }
func (d MoveUnitDialog) Description() string {
	return fmt.Sprintf("Move %s under:", d.UnitName)
}
func (MoveUnitDialog) dialog() {}

type MoveAllUsersDialog struct {
	UnitID    string
	UnitName  string
	UserCount int
	Options   []tree.Option
}

func (MoveAllUsersDialog) Kind() DialogKind { return DialogMoveAllUsers }
func (MoveAllUsersDialog) Title() string    { return "Move all Users" }
func (d MoveAllUsersDialog) Description() string {
	return fmt.Sprintf("Move all users from %s to:", d.UnitName)
}
func (MoveAllUsersDialog) dialog() {}

type AddUsersDialog struct {
	UnitID    string
	Available []identity.User
}

func (AddUsersDialog) Kind() DialogKind    { return DialogAddUsers }
func (AddUsersDialog) Title() string       { return "Add users" }
func (AddUsersDialog) Description() string { return "Select the users to add to the organization unit" }
func (AddUsersDialog) dialog()             {}

type AddRolesDialog struct {
	UnitID    string
	Available []identity.Role
}

func (AddRolesDialog) Kind() DialogKind    { return DialogAddRoles }
func (AddRolesDialog) Title() string       { return "Add roles" }
func (AddRolesDialog) Description() string { return "Select the roles to add to the organization unit" }
func (AddRolesDialog) dialog()             {}

type RemoveUserDialog struct {
	UnitID   string
	UnitName string
	UserID   string
	UserName string
}

func (RemoveUserDialog) Kind() DialogKind { return DialogRemoveUser }
func (RemoveUserDialog) Title() string    { return confirmTitle }
func (d RemoveUserDialog) Description() string {
	return fmt.Sprintf("Are you sure you want to remove the user %q from organization unit %q ?", d.UserName, d.UnitName)
}
func (RemoveUserDialog) dialog() {}

type RemoveRoleDialog struct {
	UnitID   string
	UnitName string
	RoleID   string
	RoleName string
}

func (RemoveRoleDialog) Kind() DialogKind { return DialogRemoveRole }
func (RemoveRoleDialog) Title() string    { return confirmTitle }
func (d RemoveRoleDialog) Description() string {
	return fmt.Sprintf("Are you sure you want to remove the role %q from organization unit %q ?", d.RoleName, d.UnitName)
}
func (RemoveRoleDialog) dialog() {}

// Dialog returns the open dialog, or nil.
func (m *Manager) Dialog() Dialog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dialog
}

// Cancel closes the open dialog without acting on it.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialog = nil
}

func (m *Manager) openLocked(d Dialog) {
	m.dialogSeq++
	m.dialog = d
}

// closeDialog closes the dialog opened as seq, leaving any newer one alone.
func (m *Manager) closeDialog(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dialogSeq == seq {
		m.dialog = nil
	}
}

func currentDialog[T Dialog](m *Manager) (T, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dialog.(T)
	if !ok {
		var zero T
		return zero, 0, ErrDialogMismatch
	}
	return d, m.dialogSeq, nil
}

// OpenAddUnit opens the creation dialog for a child of parentID, or for a
// root unit when parentID is empty.
func (m *Manager) OpenAddUnit(parentID string) (AddUnitDialog, error) {
	if err := m.require(session.PolicyManageOU); err != nil {
		return AddUnitDialog{}, err
	}
	m.mu.Lock()
	d := AddUnitDialog{ParentID: parentID}
	if parentID != "" {
		parent, ok := findUnit(m.units, parentID)
		if !ok {
			m.mu.Unlock()
			return AddUnitDialog{}, m.reject(notify.Error, ErrUnitNotFound)
		}
		d.ParentName = parent.DisplayName
	}
	m.openLocked(d)
	m.mu.Unlock()
	return d, nil
}

func (m *Manager) SubmitAddUnit(ctx context.Context, displayName string) (*identity.OrganizationUnit, error) {
	d, seq, err := currentDialog[AddUnitDialog](m)
	if err != nil {
		return nil, err
	}
	unit, err := m.AddUnit(ctx, displayName, d.ParentID)
	if err != nil {
		return nil, err
	}
	m.closeDialog(seq)
	return unit, nil
}

// OpenEditUnit opens the rename dialog for the selected unit.
func (m *Manager) OpenEditUnit() (EditUnitDialog, error) {
	if err := m.require(session.PolicyManageOU); err != nil {
		return EditUnitDialog{}, err
	}
	m.mu.Lock()
	unit, err := m.selectedUnitLocked()
	if err != nil {
		m.mu.Unlock()
		return EditUnitDialog{}, m.reject(notify.Error, err)
	}
	d := EditUnitDialog{UnitID: unit.ID, DisplayName: unit.DisplayName}
	m.openLocked(d)
	m.mu.Unlock()
	return d, nil
}

func (m *Manager) SubmitEditUnit(ctx context.Context, displayName string) error {
	d, seq, err := currentDialog[EditUnitDialog](m)
	if err != nil {
		return err
	}
	if err := m.EditUnit(ctx, d.UnitID, displayName); err != nil {
		return err
	}
	m.closeDialog(seq)
	return nil
}

// OpenDeleteUnit asks for confirmation before deleting the selected unit.
func (m *Manager) OpenDeleteUnit() (DeleteUnitDialog, error) {
	if err := m.require(session.PolicyManageOU); err != nil {
		return DeleteUnitDialog{}, err
	}
	m.mu.Lock()
	unit, err := m.selectedUnitLocked()
	if err != nil {
		m.mu.Unlock()
		return DeleteUnitDialog{}, m.reject(notify.Error, err)
	}
	d := DeleteUnitDialog{UnitID: unit.ID, UnitName: unit.DisplayName}
	m.openLocked(d)
	m.mu.Unlock()
	return d, nil
}

// OpenMoveUnit opens the re-parent dialog for the selected unit.
func (m *Manager) OpenMoveUnit() (MoveUnitDialog, error) {
	if err := m.require(session.PolicyManageOU); err != nil {
		return MoveUnitDialog{}, err
	}
	m.mu.Lock()
	unit, err := m.selectedUnitLocked()
	if err != nil {
		m.mu.Unlock()
		return MoveUnitDialog{}, m.reject(notify.Error, err)
	}
	exclude := tree.Descendants(m.units, unit.ID)
	exclude[unit.ID] = true
	d := MoveUnitDialog{
		UnitID:    unit.ID,
		UnitName:  unit.DisplayName,
		AllowRoot: !unit.IsRoot(),
		Options:   tree.Options(m.units, exclude),
	}
	m.openLocked(d)
	m.mu.Unlock()
	return d, nil
}

// SubmitMoveUnit moves the unit under newParentID; empty means root.
func (m *Manager) SubmitMoveUnit(ctx context.Context, newParentID string) error {
	d, seq, err := currentDialog[MoveUnitDialog](m)
	if err != nil {
		return err
	}
	if newParentID == "" && !d.AllowRoot {
		return m.reject(notify.Error, ErrOptionNotFound)
	}
	if newParentID != "" && !hasOption(d.Options, newParentID) {
		// Either unknown or inside the moved subtree.
		m.mu.Lock()
		err := checkMove(m.units, d.UnitID, newParentID)
		m.mu.Unlock()
		if err == nil {
			err = ErrOptionNotFound
		}
		return m.reject(notify.Error, err)
	}
	if err := m.MoveUnit(ctx, d.UnitID, newParentID); err != nil {
		return err
	}
	m.closeDialog(seq)
	return nil
}

// OpenMoveAllUsers offers every other unit as the destination for the
// selected unit's users. It refuses when the unit has no users.
func (m *Manager) OpenMoveAllUsers() (MoveAllUsersDialog, error) {
	if err := m.require(session.PolicyManageMembers); err != nil {
		return MoveAllUsersDialog{}, err
	}
	m.mu.Lock()
	unit, err := m.selectedUnitLocked()
	if err != nil {
		m.mu.Unlock()
		return MoveAllUsersDialog{}, m.reject(notify.Error, err)
	}
	if !m.usersLoaded {
		m.mu.Unlock()
		return MoveAllUsersDialog{}, m.reject(notify.Error, ErrUsersNotLoaded)
	}
	if len(m.users) == 0 {
		m.mu.Unlock()
		return MoveAllUsersDialog{}, m.reject(notify.Warning, ErrNoUsersToMove)
	}
	opts := tree.Options(m.units, map[string]bool{unit.ID: true})
	if len(opts) == 0 {
		m.mu.Unlock()
		return MoveAllUsersDialog{}, m.reject(notify.Error, ErrNoOtherUnits)
	}
	d := MoveAllUsersDialog{
		UnitID:    unit.ID,
		UnitName:  unit.DisplayName,
		UserCount: len(m.users),
		Options:   opts,
	}
	m.openLocked(d)
	m.mu.Unlock()
	return d, nil
}

func (m *Manager) SubmitMoveAllUsers(ctx context.Context, targetID string) error {
	d, seq, err := currentDialog[MoveAllUsersDialog](m)
	if err != nil {
		return err
	}
	if !hasOption(d.Options, targetID) {
		return m.reject(notify.Error, ErrOptionNotFound)
	}
	if err := m.moveAllUsers(ctx, d.UnitID, targetID, d.UserCount); err != nil {
		return err
	}
	m.closeDialog(seq)
	return nil
}

// OpenAddUsers fetches the users that can still join the selected unit.
func (m *Manager) OpenAddUsers(ctx context.Context) (AddUsersDialog, error) {
	if err := m.require(session.PolicyManageMembers); err != nil {
		return AddUsersDialog{}, err
	}
	unit, err := m.selectedUnit()
	if err != nil {
		return AddUsersDialog{}, m.reject(notify.Error, err)
	}
	available, err := m.api.ListAvailableUsers(ctx, unit.ID)
	if err != nil {
		return AddUsersDialog{}, m.fail(opLoadAvailableUsers, err)
	}
	d := AddUsersDialog{UnitID: unit.ID, Available: available}
	m.mu.Lock()
	m.openLocked(d)
	m.mu.Unlock()
	return d, nil
}

func (m *Manager) SubmitAddUsers(ctx context.Context, userIDs []string) error {
	d, seq, err := currentDialog[AddUsersDialog](m)
	if err != nil {
		return err
	}
	if err := m.addUsers(ctx, d.UnitID, userIDs); err != nil {
		return err
	}
	m.closeDialog(seq)
	return nil
}

// OpenAddRoles fetches the roles that can still be assigned to the
// selected unit.
func (m *Manager) OpenAddRoles(ctx context.Context) (AddRolesDialog, error) {
	if err := m.require(session.PolicyManageRoles); err != nil {
		return AddRolesDialog{}, err
	}
	unit, err := m.selectedUnit()
	if err != nil {
		return AddRolesDialog{}, m.reject(notify.Error, err)
	}
	available, err := m.api.ListAvailableRoles(ctx, unit.ID)
	if err != nil {
		return AddRolesDialog{}, m.fail(opLoadAvailableRoles, err)
	}
	d := AddRolesDialog{UnitID: unit.ID, Available: available}
	m.mu.Lock()
	m.openLocked(d)
	m.mu.Unlock()
	return d, nil
}

func (m *Manager) SubmitAddRoles(ctx context.Context, roleIDs []string) error {
	d, seq, err := currentDialog[AddRolesDialog](m)
	if err != nil {
		return err
	}
	if err := m.addRoles(ctx, d.UnitID, roleIDs); err != nil {
		return err
	}
	m.closeDialog(seq)
	return nil
}

// OpenRemoveUser asks for confirmation before removing a member of the
// selected unit.
func (m *Manager) OpenRemoveUser(userID string) (RemoveUserDialog, error) {
	if err := m.require(session.PolicyManageMembers); err != nil {
		return RemoveUserDialog{}, err
	}
	m.mu.Lock()
	unit, err := m.selectedUnitLocked()
	if err != nil {
		m.mu.Unlock()
		return RemoveUserDialog{}, m.reject(notify.Error, err)
	}
	var d RemoveUserDialog
	found := false
	for _, u := range m.users {
		if u.ID == userID {
			d = RemoveUserDialog{UnitID: unit.ID, UnitName: unit.DisplayName, UserID: u.ID, UserName: u.UserName}
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return RemoveUserDialog{}, m.reject(notify.Error, ErrUserNotFound)
	}
	m.openLocked(d)
	m.mu.Unlock()
	return d, nil
}

// OpenRemoveRole asks for confirmation before removing a role from the
// selected unit.
func (m *Manager) OpenRemoveRole(roleID string) (RemoveRoleDialog, error) {
	if err := m.require(session.PolicyManageRoles); err != nil {
		return RemoveRoleDialog{}, err
	}
	m.mu.Lock()
	unit, err := m.selectedUnitLocked()
	if err != nil {
		m.mu.Unlock()
		return RemoveRoleDialog{}, m.reject(notify.Error, err)
	}
	var d RemoveRoleDialog
	found := false
	for _, r := range m.roles {
		if r.ID == roleID {
			d = RemoveRoleDialog{UnitID: unit.ID, UnitName: unit.DisplayName, RoleID: r.ID, RoleName: r.Name}
			found = true
			break
		}
	}
	if !found {
		m.mu.Unlock()
		return RemoveRoleDialog{}, m.reject(notify.Error, ErrRoleNotFound)
	}
	m.openLocked(d)
	m.mu.Unlock()
	return d, nil
}

// Confirm executes the open confirmation dialog.
func (m *Manager) Confirm(ctx context.Context) error {
	m.mu.Lock()
	d, seq := m.dialog, m.dialogSeq
	m.mu.Unlock()

	var err error
	switch d := d.(type) {
	case DeleteUnitDialog:
		err = m.DeleteUnit(ctx, d.UnitID)
	case RemoveUserDialog:
		err = m.removeUser(ctx, d.UnitID, d.UserID)
	case RemoveRoleDialog:
		err = m.removeRole(ctx, d.UnitID, d.RoleID)
	default:
		return ErrDialogMismatch
	}
	if err != nil {
		return err
	}
	m.closeDialog(seq)
	return nil
}

func hasOption(opts []tree.Option, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}
