// Package orgunit keeps an organization unit tree and the membership panel
// of the selected unit in step with the identity service.
//
// The service is the source of truth: every visible change follows a
// successful response, and after each mutation the affected data is
// fetched again instead of being patched locally.
package orgunit

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	identity "github.com/t11e/go-identity"
	"github.com/t11e/go-identity/notify"
	"github.com/t11e/go-identity/session"
	"github.com/t11e/go-identity/tree"
)

// API is the part of *identity.Client the manager needs.
type API interface {
	ListOrganizationUnits(ctx context.Context) ([]identity.OrganizationUnit, error)
	CreateOrganizationUnit(ctx context.Context, in identity.CreateOrganizationUnitInput) (*identity.OrganizationUnit, error)
	UpdateOrganizationUnit(ctx context.Context, id string, in identity.UpdateOrganizationUnitInput) (*identity.OrganizationUnit, error)
	DeleteOrganizationUnit(ctx context.Context, id string) error
	MoveOrganizationUnit(ctx context.Context, id string, newParentID string) error
	ListUsersForUnit(ctx context.Context, id string) ([]identity.User, error)
	ListRolesForUnit(ctx context.Context, id string) ([]identity.Role, error)
	ListAvailableUsers(ctx context.Context, id string) ([]identity.User, error)
	ListAvailableRoles(ctx context.Context, id string) ([]identity.Role, error)
	AddUsersToUnit(ctx context.Context, id string, userIDs []string) error
	RemoveUserFromUnit(ctx context.Context, id string, userID string) error
	AddRolesToUnit(ctx context.Context, id string, roleIDs []string) error
	RemoveRoleFromUnit(ctx context.Context, id string, roleID string) error
	MoveAllUsers(ctx context.Context, fromID string, toID string) error
}

var _ API = (*identity.Client)(nil)

type State int

const (
	Idle State = iota
	UnitSelected
	DialogOpen
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case UnitSelected:
		return "unit-selected"
	case DialogOpen:
		return "dialog-open"
	default:
		return "unknown"
	}
}

type Option func(m *Manager)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(m *Manager) {
		m.logger = logger.Named("orgunit")
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithSession gates operations on the policies granted to the session.
// Without a session every operation is allowed.
func WithSession(s *session.Session) Option {
	return func(m *Manager) {
		m.session = s
	}
}

type Manager struct {
	api      API
	logger   *zap.SugaredLogger
	notifier notify.Notifier
	session  *session.Session

	mu           sync.Mutex
	units        []identity.OrganizationUnit
	forest       []*tree.Node
	selectedID   string
	users        []identity.User
	roles        []identity.Role
	usersLoaded  bool
	dialog       Dialog
	dialogSeq    uint64
	selectSeq    uint64
	cancelSelect context.CancelFunc
}

func New(api API, opts ...Option) *Manager {
	m := &Manager{
		api:      api,
		logger:   zap.NewNop().Sugar(),
		notifier: notify.Discard,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot is a point-in-time copy of the manager state. Tree nodes are
// shared with the manager and must not be modified.
type Snapshot struct {
	State      State
	Units      []identity.OrganizationUnit
	Tree       []*tree.Node
	SelectedID string
	Users      []identity.User
	Roles      []identity.Role
	Dialog     Dialog
}

// Selected returns the selected unit, if any.
func (s Snapshot) Selected() (identity.OrganizationUnit, bool) {
	if s.SelectedID == "" {
		return identity.OrganizationUnit{}, false
	}
	for _, u := range s.Units {
		if u.ID == s.SelectedID {
			return u, true
		}
	}
	return identity.OrganizationUnit{}, false
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:      m.stateLocked(),
		Units:      append([]identity.OrganizationUnit(nil), m.units...),
		Tree:       append([]*tree.Node(nil), m.forest...),
		SelectedID: m.selectedID,
		Users:      append([]identity.User(nil), m.users...),
		Roles:      append([]identity.Role(nil), m.roles...),
		Dialog:     m.dialog,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	switch {
	case m.dialog != nil:
		return DialogOpen
	case m.selectedID != "":
		return UnitSelected
	default:
		return Idle
	}
}

// Load fetches the full unit list and rebuilds the tree.
func (m *Manager) Load(ctx context.Context) error {
	units, err := m.api.ListOrganizationUnits(ctx)
	if err != nil {
		return m.fail(opLoadUnits, err)
	}
	forest := tree.Build(units)

	m.mu.Lock()
	m.units = units
	m.forest = forest
	if m.selectedID != "" && !hasUnit(units, m.selectedID) {
		m.clearSelectionLocked()
	}
	m.mu.Unlock()

	m.logger.Debugw("loaded organization units", "count", len(units), "roots", len(forest))
	return nil
}

// reload refreshes the tree after a successful mutation. Its failure is
// reported but does not undo the mutation.
func (m *Manager) reload(ctx context.Context) {
	if err := m.Load(ctx); err != nil {
		m.logger.Warnw("reload after mutation failed", "error", err)
	}
}

// Select makes id the active unit and fetches its users and roles in
// parallel. A newer Select cancels the fetch of an older one, and only the
// latest selection's response is applied.
func (m *Manager) Select(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	m.mu.Lock()
	if !hasUnit(m.units, id) {
		m.mu.Unlock()
		return m.reject(notify.Warning, ErrUnitNotFound)
	}
	if m.cancelSelect != nil {
		m.cancelSelect()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.selectSeq++
	seq := m.selectSeq
	m.cancelSelect = cancel
	m.selectedID = id
	m.users, m.roles = nil, nil
	m.usersLoaded = false
	m.mu.Unlock()

	users, roles, err := m.fetchMembers(fetchCtx, id)

	m.mu.Lock()
	current := seq == m.selectSeq
	if current {
		m.cancelSelect = nil
		if err == nil {
			m.users, m.roles = users, roles
			m.usersLoaded = true
		}
	}
	m.mu.Unlock()

	if !current {
		m.logger.Debugw("discarding superseded selection", "unit", id)
		return nil
	}
	if err != nil {
		return m.fail(opLoadMembers, err)
	}
	return nil
}

func (m *Manager) fetchMembers(ctx context.Context, id string) ([]identity.User, []identity.Role, error) {
	var (
		users []identity.User
		roles []identity.Role
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = m.api.ListUsersForUnit(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		roles, err = m.api.ListRolesForUnit(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return users, roles, nil
}

// ClearSelection returns to the idle state.
func (m *Manager) ClearSelection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearSelectionLocked()
	m.dialog = nil
}

func (m *Manager) clearSelectionLocked() {
	if m.cancelSelect != nil {
		m.cancelSelect()
		m.cancelSelect = nil
	}
	m.selectSeq++
	m.selectedID = ""
	m.users, m.roles = nil, nil
	m.usersLoaded = false
}

func (m *Manager) refreshUsers(ctx context.Context, unitID string) {
	users, err := m.api.ListUsersForUnit(ctx, unitID)
	if err != nil {
		_ = m.fail(opLoadMembers, err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selectedID == unitID {
		m.users = users
		m.usersLoaded = true
	}
}

func (m *Manager) refreshRoles(ctx context.Context, unitID string) {
	roles, err := m.api.ListRolesForUnit(ctx, unitID)
	if err != nil {
		_ = m.fail(opLoadMembers, err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selectedID == unitID {
		m.roles = roles
	}
}

// selectedUnitLocked returns the selected unit or ErrNoSelection.
func (m *Manager) selectedUnitLocked() (identity.OrganizationUnit, error) {
	if m.selectedID == "" {
		return identity.OrganizationUnit{}, ErrNoSelection
	}
	u, ok := findUnit(m.units, m.selectedID)
	if !ok {
		return identity.OrganizationUnit{}, ErrNoSelection
	}
	return u, nil
}

func (m *Manager) isSelected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedID == id
}

func (m *Manager) selectedUnit() (identity.OrganizationUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectedUnitLocked()
}

func (m *Manager) require(policy string) error {
	if m.session == nil || m.session.Granted(policy) {
		return nil
	}
	m.logger.Infow("policy not granted", "policy", policy)
	return m.reject(notify.Warning, ErrNotPermitted)
}

func (m *Manager) succeed(op operation) {
	m.notifier.Notify(notify.Notification{Level: notify.Success, Message: op.success})
}

// reject reports a local precondition failure.
func (m *Manager) reject(level notify.Level, err error) error {
	msg, ok := preconditionMessages[err]
	if !ok {
		msg = err.Error()
	}
	m.notifier.Notify(notify.Notification{Level: level, Message: msg})
	return err
}

// fail reports a failed remote call and returns err unchanged.
func (m *Manager) fail(op operation, err error) error {
	switch {
	case identity.IsValidation(err):
		m.notifier.Notify(notify.Notification{Level: notify.Warning, Message: err.Error()})
	case identity.IsRemote(err):
		msg := identity.MessageOf(err)
		if msg == "" {
			msg = op.failure
		}
		m.notifier.Notify(notify.Notification{Level: notify.Error, Message: msg})
	case errors.Is(err, context.Canceled):
		// the caller went away; nobody is left to tell
	default:
		m.notifier.Notify(notify.Notification{Level: notify.Error, Message: op.transport})
	}
	m.logger.Warnw(op.failure, "op", op.name, "error", err)
	return err
}

func hasUnit(units []identity.OrganizationUnit, id string) bool {
	_, ok := findUnit(units, id)
	return ok
}

func findUnit(units []identity.OrganizationUnit, id string) (identity.OrganizationUnit, bool) {
	for _, u := range units {
		if u.ID == id {
			return u, true
		}
	}
	return identity.OrganizationUnit{}, false
}
