package main

import (
	"fmt"
	"io"

	goversion "github.com/caarlos0/go-version"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/t11e/go-identity/session"
)

var policies = []string{
	session.PolicyOrganizationUnits,
	session.PolicyManageOU,
	session.PolicyManageMembers,
	session.PolicyManageRoles,
}

type whoami struct {
	Member   *session.Member `json:"member" yaml:"member"`
	Policies map[string]bool `json:"policies" yaml:"policies"`
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and the organization unit permissions granted to them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.open(cmd); err != nil {
				return err
			}
			s, ok := session.FromContext(cmd.Context())
			if !ok {
				return errors.New("no session")
			}
			out := whoami{Policies: make(map[string]bool, len(policies))}
			if m, ok := s.CurrentMember(); ok {
				out.Member = &m
			}
			for _, p := range policies {
				out.Policies[p] = s.Granted(p)
			}
			return a.write(out, func(w io.Writer) error {
				if out.Member == nil {
					fmt.Fprintln(w, "Not signed in.")
				} else {
					fmt.Fprintf(w, "%s <%s> (%s)\n", out.Member.Identifier, out.Member.Mail, out.Member.ID)
				}
				for _, p := range policies {
					mark := "-"
					if out.Policies[p] {
						mark = "+"
					}
					fmt.Fprintf(w, "  %s %s\n", mark, p)
				}
				return nil
			})
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := checkFormat(a.format); err != nil {
				return err
			}
			info := buildVersion(version, commit, date, builtBy, treeState)
			return a.write(info, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, info.String())
				return err
			})
		},
	}
}

func buildVersion(version, commit, date, builtBy, treeState string) goversion.Info {
	return goversion.GetVersionInfo(
		goversion.WithAppDetails("orgunitctl", "Manage organization units, their users and roles", ""),
		func(i *goversion.Info) {
			if commit != "" {
				i.GitCommit = commit
			}
			if version != "" {
				i.GitVersion = version
			}
			if treeState != "" {
				i.GitTreeState = treeState
			}
			if date != "" {
				i.BuildDate = date
			}
			if builtBy != "" {
				i.BuiltBy = builtBy
			}
		},
	)
}
