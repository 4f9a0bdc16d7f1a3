package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	identity "github.com/t11e/go-identity"
)

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage the users of an organization unit",
	}
	cmd.AddCommand(
		newUsersListCmd(a),
		newUsersAddCmd(a),
		newUsersRemoveCmd(a),
		newUsersMoveAllCmd(a),
	)
	return cmd
}

func newUsersListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list UNIT",
		Short: "List the users of an organization unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := a.selectUnit(cmd, args[0])
			if err != nil {
				return err
			}
			users := m.Snapshot().Users
			return a.write(users, func(w io.Writer) error {
				return writeUsers(w, users)
			})
		},
	}
}

func newUsersAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add UNIT USER...",
		Short: "Add users to an organization unit",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := a.selectUnit(cmd, args[0])
			if err != nil {
				return err
			}
			d, err := m.OpenAddUsers(cmd.Context())
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(args)-1)
			for _, ref := range args[1:] {
				u, ok := findUser(d.Available, ref)
				if !ok {
					m.Cancel()
					return errors.Errorf("user %q is not available for this unit", ref)
				}
				ids = append(ids, u.ID)
			}
			return m.SubmitAddUsers(cmd.Context(), ids)
		},
	}
}

func newUsersRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove UNIT USER",
		Short: "Remove a user from an organization unit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := a.selectUnit(cmd, args[0])
			if err != nil {
				return err
			}
			id := args[1]
			if u, ok := findUser(m.Snapshot().Users, id); ok {
				id = u.ID
			}
			d, err := m.OpenRemoveUser(id)
			if err != nil {
				return err
			}
			ok, err := a.confirm(d.Title(), d.Description())
			if err != nil || !ok {
				m.Cancel()
				return err
			}
			return m.Confirm(cmd.Context())
		},
	}
}

func newUsersMoveAllCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "move-all FROM TO",
		Short: "Move every user of a unit to another unit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := a.selectUnit(cmd, args[0])
			if err != nil {
				return err
			}
			target, err := resolveUnit(m.Snapshot().Units, args[1])
			if err != nil {
				return err
			}
			if _, err := m.OpenMoveAllUsers(); err != nil {
				return err
			}
			return m.SubmitMoveAllUsers(cmd.Context(), target.ID)
		},
	}
}

func newRolesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Manage the roles of an organization unit",
	}
	cmd.AddCommand(
		newRolesListCmd(a),
		newRolesAddCmd(a),
		newRolesRemoveCmd(a),
	)
	return cmd
}

func newRolesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list UNIT",
		Short: "List the roles of an organization unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := a.selectUnit(cmd, args[0])
			if err != nil {
				return err
			}
			roles := m.Snapshot().Roles
			return a.write(roles, func(w io.Writer) error {
				return writeRoles(w, roles)
			})
		},
	}
}

func newRolesAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add UNIT ROLE...",
		Short: "Assign roles to an organization unit",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := a.selectUnit(cmd, args[0])
			if err != nil {
				return err
			}
			d, err := m.OpenAddRoles(cmd.Context())
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(args)-1)
			for _, ref := range args[1:] {
				r, ok := findRole(d.Available, ref)
				if !ok {
					m.Cancel()
					return errors.Errorf("role %q is not available for this unit", ref)
				}
				ids = append(ids, r.ID)
			}
			return m.SubmitAddRoles(cmd.Context(), ids)
		},
	}
}

func newRolesRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove UNIT ROLE",
		Short: "Remove a role from an organization unit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := a.selectUnit(cmd, args[0])
			if err != nil {
				return err
			}
			id := args[1]
			if r, ok := findRole(m.Snapshot().Roles, id); ok {
				id = r.ID
			}
			d, err := m.OpenRemoveRole(id)
			if err != nil {
				return err
			}
			ok, err := a.confirm(d.Title(), d.Description())
			if err != nil || !ok {
				m.Cancel()
				return err
			}
			return m.Confirm(cmd.Context())
		},
	}
}

func findUser(users []identity.User, ref string) (identity.User, bool) {
	for _, u := range users {
		if u.ID == ref || strings.EqualFold(u.UserName, ref) {
			return u, true
		}
	}
	return identity.User{}, false
}

func findRole(roles []identity.Role, ref string) (identity.Role, bool) {
	for _, r := range roles {
		if r.ID == ref || strings.EqualFold(r.Name, ref) {
			return r, true
		}
	}
	return identity.Role{}, false
}

func writeUsers(w io.Writer, users []identity.User) error {
	if len(users) == 0 {
		_, err := fmt.Fprintln(w, "No users.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tEMAIL\tID")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.UserName, u.Email, u.ID)
	}
	return tw.Flush()
}

func writeRoles(w io.Writer, roles []identity.Role) error {
	if len(roles) == 0 {
		_, err := fmt.Fprintln(w, "No roles.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tID")
	for _, r := range roles {
		fmt.Fprintf(tw, "%s\t%s\n", r.Name, r.ID)
	}
	return tw.Flush()
}
