package orgunit

import (
	"github.com/pkg/errors"
)

// operation holds the user facing texts of one remote call.
type operation struct {
	name      string
	success   string
	failure   string
	transport string
}

var (
	opLoadUnits = operation{
		name:      "load units",
		failure:   "Failed to load organization units",
		transport: "An error occurred while loading the organization units",
	}
	opLoadMembers = operation{
		name:      "load members",
		failure:   "Failed to load the users and roles of the organization unit",
		transport: "An error occurred while loading the users and roles of the organization unit",
	}
	opLoadAvailableUsers = operation{
		name:      "load available users",
		failure:   "Failed to load users",
		transport: "An error occurred while loading the users",
	}
	opLoadAvailableRoles = operation{
		name:      "load available roles",
		failure:   "Failed to load roles",
		transport: "An error occurred while loading the roles",
	}
	opAddUnit = operation{
		name:      "add unit",
		success:   "Organization unit added successfully",
		failure:   "Failed to add organization unit",
		transport: "An error occurred while saving the organization unit",
	}
	opEditUnit = operation{
		name:      "edit unit",
		success:   "Organization unit updated successfully",
		failure:   "Failed to update organization unit",
		transport: "An error occurred while updating the organization unit",
	}
	opDeleteUnit = operation{
		name:      "delete unit",
		success:   "Organization unit deleted successfully",
		failure:   "Failed to delete organization unit",
		transport: "An error occurred while deleting the organization unit",
	}
	opMoveUnit = operation{
		name:      "move unit",
		success:   "Organization unit moved successfully",
		failure:   "Failed to move organization unit",
		transport: "An error occurred while moving the organization unit",
	}
	opMoveUsers = operation{
		name:      "move users",
		success:   "Users moved successfully",
		failure:   "Failed to move users",
		transport: "An error occurred while moving the users",
	}
	opAddUsers = operation{
		name:      "add users",
		success:   "Users added successfully",
		failure:   "Failed to add users",
		transport: "An error occurred while adding the users",
	}
	opRemoveUser = operation{
		name:      "remove user",
		success:   "User deleted successfully",
		failure:   "Failed to delete user",
		transport: "An error occurred while deleting the user",
	}
	opAddRoles = operation{
		name:      "add roles",
		success:   "Roles added successfully",
		failure:   "Failed to add roles",
		transport: "An error occurred while adding the roles",
	}
	opRemoveRole = operation{
		name:      "remove role",
		success:   "Role deleted successfully",
		failure:   "Failed to delete role",
		transport: "An error occurred while deleting the role",
	}
)

// Local precondition failures. None of them reaches the server.
var (
	ErrNoSelection     = errors.New("orgunit: no unit selected")
	ErrUnitNotFound    = errors.New("orgunit: unit not found")
	ErrTargetNotFound  = errors.New("orgunit: target unit not found")
	ErrOptionNotFound  = errors.New("orgunit: selected option not found")
	ErrNoUsersToMove   = errors.New("orgunit: unit has no users")
	ErrUsersNotLoaded  = errors.New("orgunit: users of the unit are not loaded")
	ErrNoOtherUnits    = errors.New("orgunit: no other units")
	ErrNoUsersSelected = errors.New("orgunit: no users selected")
	ErrNoRolesSelected = errors.New("orgunit: no roles selected")
	ErrUserNotFound    = errors.New("orgunit: user not found")
	ErrRoleNotFound    = errors.New("orgunit: role not found")
	ErrInvalidParent   = errors.New("orgunit: parent is the unit or one of its descendants")
	ErrNotPermitted    = errors.New("orgunit: policy not granted")
	ErrDialogMismatch  = errors.New("orgunit: no matching dialog is open")
)

var preconditionMessages = map[error]string{
	ErrNoSelection:     "Please select a unit",
	ErrUnitNotFound:    "Organization unit not found",
	ErrTargetNotFound:  "Target unit not found",
	ErrOptionNotFound:  "Selected unit not found",
	ErrNoUsersToMove:   "There are no users currently in this unit.",
	ErrUsersNotLoaded:  "The users of this unit could not be loaded.",
	ErrNoOtherUnits:    "No other units available to move users.",
	ErrNoUsersSelected: "No users selected",
	ErrNoRolesSelected: "No roles selected",
	ErrUserNotFound:    "User not found",
	ErrRoleNotFound:    "Role not found",
	ErrInvalidParent:   "Cannot move an organization unit under itself or one of its descendants.",
	ErrNotPermitted:    "You do not have permission to perform this action.",
}
