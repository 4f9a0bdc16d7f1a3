// Package fakeapi is an in-memory identity service speaking the same wire
// format as the hosted one. It backs the identity-stub command and the
// package tests.
package fakeapi

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	identity "github.com/t11e/go-identity"
	"github.com/t11e/go-identity/session"
)

// Operation names, one per endpoint. They match the client method names.
const (
	OpListUnits      = "ListOrganizationUnits"
	OpGetUnit        = "GetOrganizationUnit"
	OpCreateUnit     = "CreateOrganizationUnit"
	OpUpdateUnit     = "UpdateOrganizationUnit"
	OpDeleteUnit     = "DeleteOrganizationUnit"
	OpMoveUnit       = "MoveOrganizationUnit"
	OpListUsers      = "ListUsersForUnit"
	OpListRoles      = "ListRolesForUnit"
	OpAvailableUsers = "ListAvailableUsers"
	OpAvailableRoles = "ListAvailableRoles"
	OpAddUsers       = "AddUsersToUnit"
	OpRemoveUser     = "RemoveUserFromUnit"
	OpAddRoles       = "AddRolesToUnit"
	OpRemoveRole     = "RemoveRoleFromUnit"
	OpMoveAllUsers   = "MoveAllUsers"
	OpConfiguration  = "GetApplicationConfiguration"
)

const (
	defaultUserName    = "admin"
	defaultUserEmail   = "admin@example.com"
	maxDisplayNameSize = 128
)

type Option func(s *Server)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Server) {
		s.logger = logger.Named("fakeapi")
	}
}

// WithAccessToken makes every request carry this bearer token.
func WithAccessToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

type failure struct {
	status  int
	message string
}

type Server struct {
	router http.Handler
	logger *zap.SugaredLogger
	token  string
	now    func() time.Time

	mu        sync.Mutex
	units     []identity.OrganizationUnit
	users     []identity.User
	roles     []identity.Role
	members   map[string][]string
	unitRoles map[string][]string
	policies  map[string]bool
	current   identity.CurrentUser
	failures  map[string][]failure
	calls     map[string]int
}

// New returns a server with no units. The current user is granted every
// organization unit policy.
func New(opts ...Option) *Server {
	adminID := uuid.NewString()
	s := &Server{
		logger:    zap.NewNop().Sugar(),
		now:       time.Now,
		members:   map[string][]string{},
		unitRoles: map[string][]string{},
		policies: map[string]bool{
			session.PolicyManageOU:      true,
			session.PolicyManageMembers: true,
			session.PolicyManageRoles:   true,
		},
		current: identity.CurrentUser{
			IsAuthenticated: true,
			ID:              &adminID,
			UserName:        defaultUserName,
			Email:           defaultUserEmail,
			Roles:           []string{"admin"},
		},
		failures: map[string][]failure{},
		calls:    map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/api/identity/organization-units", func(r chi.Router) {
		r.Get("/all", s.handle(OpListUnits, s.listUnits))
		r.Get("/available-users", s.handle(OpAvailableUsers, s.availableUsers))
		r.Get("/available-roles", s.handle(OpAvailableRoles, s.availableRoles))
		r.Post("/", s.handle(OpCreateUnit, s.createUnit))
		r.Delete("/", s.handle(OpDeleteUnit, s.deleteUnit))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handle(OpGetUnit, s.getUnit))
			r.Put("/", s.handle(OpUpdateUnit, s.updateUnit))
			r.Put("/move", s.handle(OpMoveUnit, s.moveUnit))
			r.Put("/move-all-users", s.handle(OpMoveAllUsers, s.moveAllUsers))

			r.Get("/members", s.handle(OpListUsers, s.listMembers))
			r.Put("/members", s.handle(OpAddUsers, s.addMembers))
			r.Delete("/members/{userId}", s.handle(OpRemoveUser, s.removeMember))

			r.Get("/roles", s.handle(OpListRoles, s.listRoles))
			r.Put("/roles", s.handle(OpAddRoles, s.addRoles))
			r.Delete("/roles/{roleId}", s.handle(OpRemoveRole, s.removeRole))
		})
	})

	r.Get("/api/abp/application-configuration", s.handle(OpConfiguration, s.configuration))
	return r
}

type handlerFunc func(r *http.Request) (interface{}, error)

func (s *Server) handle(op string, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		s.mu.Lock()
		s.calls[op]++
		f, injected := s.popFailureLocked(op)
		s.mu.Unlock()

		status := http.StatusOK
		defer func() {
			s.logger.Infow(r.Method,
				"op", op,
				"url", r.URL.String(),
				"time", time.Since(startTime).Seconds(),
				"status", status)
		}()

		if !s.authorized(r) {
			status = http.StatusUnauthorized
			writeError(w, unauthorized())
			return
		}
		if injected {
			if f.status == 0 {
				status = 0
				dropConnection(w)
				return
			}
			status = f.status
			writeError(w, &apiError{status: f.status, body: errorInfo{Message: f.message}})
			return
		}

		v, err := h(r)
		if err != nil {
			e := asAPIError(err)
			status = e.status
			writeError(w, e)
			return
		}
		if v == nil {
			status = http.StatusNoContent
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, v)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") == s.token
}

// FailNext makes the next request to op answer with status and an error
// envelope carrying message. A zero status drops the connection instead.
// Calls queue up in order.
func (s *Server) FailNext(op string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], failure{status: status, message: message})
}

func (s *Server) popFailureLocked(op string) (failure, bool) {
	q := s.failures[op]
	if len(q) == 0 {
		return failure{}, false
	}
	s.failures[op] = q[1:]
	return q[0], true
}

// Calls returns how many requests reached op.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls returns how many requests reached any endpoint.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// ResetCalls zeroes the request counters.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = map[string]int{}
}

// Grant sets whether the current user holds policy.
func (s *Server) Grant(policy string, granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if granted {
		s.policies[policy] = true
	} else {
		delete(s.policies, policy)
	}
}
