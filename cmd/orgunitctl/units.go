package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/t11e/go-identity/tree"
)

func newTreeCmd(a *app) *cobra.Command {
	var ids bool
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the organization unit tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.open(cmd)
			if err != nil {
				return err
			}
			forest := m.Snapshot().Tree
			return a.write(forest, func(w io.Writer) error {
				if len(forest) == 0 {
					_, err := fmt.Fprintln(w, "No organization units.")
					return err
				}
				var werr error
				tree.Walk(forest, func(n *tree.Node, depth int) bool {
					line := strings.Repeat("  ", depth) + n.Name
					if ids {
						line += " (" + n.ID + ")"
					}
					_, werr = fmt.Fprintln(w, line)
					return werr == nil
				})
				return werr
			})
		},
	}
	cmd.Flags().BoolVar(&ids, "ids", false, "Show unit ids")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create an organization unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.open(cmd)
			if err != nil {
				return err
			}
			parentID := ""
			if parent != "" {
				p, err := resolveUnit(m.Snapshot().Units, parent)
				if err != nil {
					return err
				}
				parentID = p.ID
			}
			if _, err := m.OpenAddUnit(parentID); err != nil {
				return err
			}
			unit, err := m.SubmitAddUnit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.write(unit, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, unit.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Parent unit id or name; empty creates a root unit")
	return cmd
}

func newRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename UNIT NAME",
		Short: "Change the display name of an organization unit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := a.selectUnit(cmd, args[0])
			if err != nil {
				return err
			}
			if _, err := m.OpenEditUnit(); err != nil {
				return err
			}
			return m.SubmitEditUnit(cmd.Context(), args[1])
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete UNIT",
		Short: "Delete an organization unit and everything below it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := a.selectUnit(cmd, args[0])
			if err != nil {
				return err
			}
			d, err := m.OpenDeleteUnit()
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

func newMoveCmd(a *app) *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "move UNIT",
		Short: "Move an organization unit under another parent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := a.selectUnit(cmd, args[0])
			if err != nil {
				return err
			}
			target := ""
			if parent != "" {
				p, err := resolveUnit(m.Snapshot().Units, parent)
				if err != nil {
					return err
				}
				target = p.ID
			}
			if _, err := m.OpenMoveUnit(); err != nil {
				return err
			}
			return m.SubmitMoveUnit(cmd.Context(), target)
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "New parent unit id or name; empty makes the unit a root")
	return cmd
}
