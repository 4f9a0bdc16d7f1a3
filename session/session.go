// Package session holds the signed-in member and the policies granted to
// them for the lifetime of one session.
package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	identity "github.com/t11e/go-identity"
)

const (
	PolicyOrganizationUnits = "AbpIdentity.OrganizationUnits"
	PolicyManageOU          = "AbpIdentity.OrganizationUnits.ManageOU"
	PolicyManageMembers     = "AbpIdentity.OrganizationUnits.ManageMembers"
	PolicyManageRoles       = "AbpIdentity.OrganizationUnits.ManageRoles"
)

var (
	ErrEnded         = errors.New("session: ended")
	ErrUnknownMember = errors.New("session: unknown member")
)

type Member struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Surname    string `json:"surname,omitempty"`
	Identifier string `json:"identifier"`
	Type       string `json:"type,omitempty"`
	Mail       string `json:"mail,omitempty"`
}

// Policies maps a policy name to whether it is granted.
type Policies map[string]bool

type Session struct {
	mu       sync.RWMutex
	current  *Member
	members  []Member
	policies Policies
	ended    bool
}

// Start begins a session. current may be nil when the user has not picked
// a member yet.
func Start(current *Member, members []Member, policies Policies) *Session {
	s := &Session{
		members:  append([]Member(nil), members...),
		policies: make(Policies, len(policies)),
	}
	for k, v := range policies {
		s.policies[k] = v
	}
	if current != nil {
		m := *current
		s.current = &m
	}
	return s
}

func (s *Session) CurrentMember() (Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ended || s.current == nil {
		return Member{}, false
	}
	return *s.current, true
}

func (s *Session) Members() []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Member(nil), s.members...)
}

// Switch makes the member with the given id current.
func (s *Session) Switch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return ErrEnded
	}
	for i := range s.members {
		if s.members[i].ID == id {
			m := s.members[i]
			s.current = &m
			return nil
		}
	}
	return errors.Wrapf(ErrUnknownMember, "member %q", id)
}

// Granted reports whether policy is granted. Nothing is granted once the
// session has ended.
func (s *Session) Granted(policy string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.ended && s.policies[policy]
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.ended
}

// End discards the member and policy state.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	s.current = nil
	s.policies = nil
}

// PoliciesFromConfiguration extracts the granted policies reported by the
// service.
func PoliciesFromConfiguration(cfg *identity.ApplicationConfiguration) Policies {
	if cfg == nil {
		return Policies{}
	}
	p := make(Policies, len(cfg.Auth.GrantedPolicies))
	for k, v := range cfg.Auth.GrantedPolicies {
		p[k] = v
	}
	return p
}

// MemberFromConfiguration describes the signed-in user as a member.
func MemberFromConfiguration(cfg *identity.ApplicationConfiguration) *Member {
	if cfg == nil || !cfg.CurrentUser.IsAuthenticated || cfg.CurrentUser.ID == nil {
		return nil
	}
	u := cfg.CurrentUser
	return &Member{
		ID:         *u.ID,
		Name:       u.Name,
		Surname:    u.SurName,
		Identifier: u.UserName,
		Type:       "USER",
		Mail:       u.Email,
	}
}

type ctxKey struct{}

func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
