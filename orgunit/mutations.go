package orgunit

import (
	"context"

	identity "github.com/t11e/go-identity"
	"github.com/t11e/go-identity/notify"
	"github.com/t11e/go-identity/session"
	"github.com/t11e/go-identity/tree"
)

// AddUnit creates a unit under parentID, or a root when parentID is empty.
func (m *Manager) AddUnit(ctx context.Context, displayName string, parentID string) (*identity.OrganizationUnit, error) {
	if err := m.require(session.PolicyManageOU); err != nil {
		return nil, err
	}
	if parentID != "" {
		m.mu.Lock()
		ok := hasUnit(m.units, parentID)
		m.mu.Unlock()
		if !ok {
			return nil, m.reject(notify.Error, ErrUnitNotFound)
		}
	}

	unit, err := m.api.CreateOrganizationUnit(ctx, identity.CreateOrganizationUnitInput{
		DisplayName: displayName,
		ParentID:    identity.StringPtr(parentID),
	})
	if err != nil {
		return nil, m.fail(opAddUnit, err)
	}
	m.logger.Infow("organization unit added", "unit", unit.ID, "parent", parentID)
	m.succeed(opAddUnit)
	m.reload(ctx)
	return unit, nil
}

// EditUnit renames a unit.
func (m *Manager) EditUnit(ctx context.Context, id string, displayName string) error {
	if err := m.require(session.PolicyManageOU); err != nil {
		return err
	}
	m.mu.Lock()
	ok := hasUnit(m.units, id)
	m.mu.Unlock()
	if !ok {
		return m.reject(notify.Error, ErrUnitNotFound)
	}

	_, err := m.api.UpdateOrganizationUnit(ctx, id, identity.UpdateOrganizationUnitInput{DisplayName: displayName})
	if err != nil {
		return m.fail(opEditUnit, err)
	}
	m.logger.Infow("organization unit updated", "unit", id)
	m.succeed(opEditUnit)
	m.reload(ctx)
	return nil
}

// DeleteUnit removes a unit. The service deletes its subtree, so a
// selection inside it is cleared.
func (m *Manager) DeleteUnit(ctx context.Context, id string) error {
	if err := m.require(session.PolicyManageOU); err != nil {
		return err
	}
	m.mu.Lock()
	ok := hasUnit(m.units, id)
	m.mu.Unlock()
	if !ok {
		return m.reject(notify.Error, ErrUnitNotFound)
	}

	if err := m.api.DeleteOrganizationUnit(ctx, id); err != nil {
		return m.fail(opDeleteUnit, err)
	}

	m.mu.Lock()
	if m.selectedID == id || tree.IsDescendant(m.units, id, m.selectedID) {
		m.clearSelectionLocked()
	}
	m.mu.Unlock()

	m.logger.Infow("organization unit deleted", "unit", id)
	m.succeed(opDeleteUnit)
	m.reload(ctx)
	return nil
}

// MoveUnit re-parents a unit; an empty newParentID makes it a root. A unit
// cannot be moved under itself or any of its descendants.
func (m *Manager) MoveUnit(ctx context.Context, id string, newParentID string) error {
	if err := m.require(session.PolicyManageOU); err != nil {
		return err
	}
	m.mu.Lock()
	err := checkMove(m.units, id, newParentID)
	m.mu.Unlock()
	if err != nil {
		return m.reject(notify.Error, err)
	}

	if err := m.api.MoveOrganizationUnit(ctx, id, newParentID); err != nil {
		return m.fail(opMoveUnit, err)
	}
	m.logger.Infow("organization unit moved", "unit", id, "parent", newParentID)
	m.succeed(opMoveUnit)
	m.reload(ctx)
	return nil
}

func checkMove(units []identity.OrganizationUnit, id string, newParentID string) error {
	if !hasUnit(units, id) {
		return ErrUnitNotFound
	}
	if newParentID == "" {
		return nil
	}
	if !hasUnit(units, newParentID) {
		return ErrTargetNotFound
	}
	if newParentID == id || tree.IsDescendant(units, id, newParentID) {
		return ErrInvalidParent
	}
	return nil
}

// MoveAllUsers moves every user of the selected unit into targetID. A unit
// without users is rejected before any request is made.
func (m *Manager) MoveAllUsers(ctx context.Context, targetID string) error {
	unit, err := m.selectedUnit()
	if err != nil {
		return m.reject(notify.Error, err)
	}
	return m.moveAllUsers(ctx, unit.ID, targetID, -1)
}

// moveAllUsers moves the users of fromID into targetID. While fromID is
// selected its loaded member list decides the guard; otherwise userCount
// does, and a negative userCount means unknown.
func (m *Manager) moveAllUsers(ctx context.Context, fromID string, targetID string, userCount int) error {
	if err := m.require(session.PolicyManageMembers); err != nil {
		return err
	}
	m.mu.Lock()
	fromOK := hasUnit(m.units, fromID)
	loaded := userCount >= 0
	if m.selectedID == fromID {
		userCount, loaded = len(m.users), m.usersLoaded
	}
	targetOK := targetID != fromID && hasUnit(m.units, targetID)
	m.mu.Unlock()

	switch {
	case !fromOK:
		return m.reject(notify.Error, ErrUnitNotFound)
	case !loaded:
		return m.reject(notify.Error, ErrUsersNotLoaded)
	case userCount == 0:
		return m.reject(notify.Warning, ErrNoUsersToMove)
	case !targetOK:
		return m.reject(notify.Error, ErrTargetNotFound)
	}

	if err := m.api.MoveAllUsers(ctx, fromID, targetID); err != nil {
		return m.fail(opMoveUsers, err)
	}
	m.logger.Infow("users moved", "from", fromID, "to", targetID, "count", userCount)
	if m.isSelected(fromID) {
		m.refreshUsers(ctx, fromID)
	}
	m.succeed(opMoveUsers)
	return nil
}

// AddUsers adds users to the selected unit.
func (m *Manager) AddUsers(ctx context.Context, userIDs []string) error {
	unit, err := m.selectedUnit()
	if err != nil {
		return m.reject(notify.Error, err)
	}
	return m.addUsers(ctx, unit.ID, userIDs)
}

func (m *Manager) addUsers(ctx context.Context, unitID string, userIDs []string) error {
	if err := m.require(session.PolicyManageMembers); err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return m.reject(notify.Error, ErrNoUsersSelected)
	}
	if err := m.api.AddUsersToUnit(ctx, unitID, userIDs); err != nil {
		return m.fail(opAddUsers, err)
	}
	m.logger.Infow("users added", "unit", unitID, "count", len(userIDs))
	m.succeed(opAddUsers)
	m.refreshUsers(ctx, unitID)
	return nil
}

// RemoveUser removes one user from the selected unit.
func (m *Manager) RemoveUser(ctx context.Context, userID string) error {
	unit, err := m.selectedUnit()
	if err != nil {
		return m.reject(notify.Error, err)
	}
	return m.removeUser(ctx, unit.ID, userID)
}

func (m *Manager) removeUser(ctx context.Context, unitID string, userID string) error {
	if err := m.require(session.PolicyManageMembers); err != nil {
		return err
	}
	if userID == "" {
		return m.reject(notify.Error, ErrUserNotFound)
	}
	if err := m.api.RemoveUserFromUnit(ctx, unitID, userID); err != nil {
		return m.fail(opRemoveUser, err)
	}
	m.logger.Infow("user removed", "unit", unitID, "user", userID)
	m.succeed(opRemoveUser)
	m.refreshUsers(ctx, unitID)
	return nil
}

// AddRoles assigns roles to the selected unit.
func (m *Manager) AddRoles(ctx context.Context, roleIDs []string) error {
	unit, err := m.selectedUnit()
	if err != nil {
		return m.reject(notify.Error, err)
	}
	return m.addRoles(ctx, unit.ID, roleIDs)
}

func (m *Manager) addRoles(ctx context.Context, unitID string, roleIDs []string) error {
	if err := m.require(session.PolicyManageRoles); err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		return m.reject(notify.Error, ErrNoRolesSelected)
	}
	if err := m.api.AddRolesToUnit(ctx, unitID, roleIDs); err != nil {
		return m.fail(opAddRoles, err)
	}
	m.logger.Infow("roles added", "unit", unitID, "count", len(roleIDs))
	m.succeed(opAddRoles)
	m.refreshRoles(ctx, unitID)
	return nil
}

// RemoveRole removes one role from the selected unit.
func (m *Manager) RemoveRole(ctx context.Context, roleID string) error {
	unit, err := m.selectedUnit()
	if err != nil {
		return m.reject(notify.Error, err)
	}
	return m.removeRole(ctx, unit.ID, roleID)
}

func (m *Manager) removeRole(ctx context.Context, unitID string, roleID string) error {
	if err := m.require(session.PolicyManageRoles); err != nil {
		return err
	}
	if roleID == "" {
		return m.reject(notify.Error, ErrRoleNotFound)
	}
	if err := m.api.RemoveRoleFromUnit(ctx, unitID, roleID); err != nil {
		return m.fail(opRemoveRole, err)
	}
	m.logger.Infow("role removed", "unit", unitID, "role", roleID)
	m.succeed(opRemoveRole)
	m.refreshRoles(ctx, unitID)
	return nil
}
