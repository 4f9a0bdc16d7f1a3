package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	identity "github.com/t11e/go-identity"
	"github.com/t11e/go-identity/internal/config"
	"github.com/t11e/go-identity/notify"
	"github.com/t11e/go-identity/orgunit"
	"github.com/t11e/go-identity/session"
)

// app carries what the subcommands share. The manager is opened lazily so
// commands like version work without any configuration.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	format   string
	yes      bool
	quiet    bool
	envFiles []string

	// shown records what the user has already been told.
	shown notify.Recorder

	logger  *zap.SugaredLogger
	client  *identity.Client
	manager *orgunit.Manager
}

// execute runs the command line and returns the process exit code. Errors
// the manager has already reported are not printed again.
func execute(in io.Reader, out, errOut io.Writer, args []string) int {
	a := &app{in: in, out: out, errOut: errOut}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		if n, ok := a.shown.Last(); !ok || n.Level == notify.Success {
			fmt.Fprintf(errOut, "orgunitctl: %s\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "orgunitctl",
		Short:         "Manage organization units, their users and roles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	cmd.SetIn(a.in)
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.format, "output", "o", formatText, "Output format: text, json or yaml")
	flags.BoolVarP(&a.yes, "yes", "y", false, "Answer yes to confirmation prompts")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "Send notifications to the log instead of stderr")
	flags.StringSliceVar(&a.envFiles, "env-file", config.DefaultEnvFiles, "Env files to load when present")

	cmd.AddCommand(
		newTreeCmd(a),
		newAddCmd(a),
		newRenameCmd(a),
		newDeleteCmd(a),
		newMoveCmd(a),
		newUsersCmd(a),
		newRolesCmd(a),
		newWhoamiCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

// open connects to the service, starts a session from the application
// configuration and loads the unit tree.
func (a *app) open(cmd *cobra.Command) (*orgunit.Manager, error) {
	if a.manager != nil {
		return a.manager, nil
	}
	if err := checkFormat(a.format); err != nil {
		return nil, err
	}
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return nil, err
	}
	if a.logger, err = cfg.Logger(); err != nil {
		return nil, err
	}
	if a.client, err = cfg.Client(a.logger); err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	appCfg, err := a.client.GetApplicationConfiguration(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading application configuration")
	}
	var members []session.Member
	current := session.MemberFromConfiguration(appCfg)
	if current != nil {
		members = append(members, *current)
	}
	s := session.Start(current, members, session.PoliciesFromConfiguration(appCfg))
	cmd.SetContext(session.NewContext(ctx, s))

	var user notify.Notifier = notify.Writer(a.errOut)
	if a.quiet {
		user = notify.Log(a.logger)
	}
	a.manager = orgunit.New(a.client,
		orgunit.WithLogger(a.logger),
		orgunit.WithNotifier(notify.Tee(user, &a.shown)),
		orgunit.WithSession(s))
	if err := a.manager.Load(cmd.Context()); err != nil {
		return nil, err
	}
	return a.manager, nil
}

// resolveUnit accepts a unit id or an unambiguous display name.
func resolveUnit(units []identity.OrganizationUnit, ref string) (identity.OrganizationUnit, error) {
	var byName []identity.OrganizationUnit
	for _, u := range units {
		if u.ID == ref {
			return u, nil
		}
		if strings.EqualFold(u.DisplayName, ref) {
			byName = append(byName, u)
		}
	}
	switch len(byName) {
	case 0:
		return identity.OrganizationUnit{}, errors.Errorf("no organization unit %q", ref)
	case 1:
		return byName[0], nil
	default:
		return identity.OrganizationUnit{}, errors.Errorf("%d organization units are named %q, use the id", len(byName), ref)
	}
}

// selectUnit resolves ref and makes it the selected unit.
func (a *app) selectUnit(cmd *cobra.Command, ref string) (*orgunit.Manager, identity.OrganizationUnit, error) {
	m, err := a.open(cmd)
	if err != nil {
		return nil, identity.OrganizationUnit{}, err
	}
	unit, err := resolveUnit(m.Snapshot().Units, ref)
	if err != nil {
		return nil, identity.OrganizationUnit{}, err
	}
	if err := m.Select(cmd.Context(), unit.ID); err != nil {
		return nil, identity.OrganizationUnit{}, err
	}
	return m, unit, nil
}
