package fakeapi

import (
	"strings"

	"github.com/google/uuid"

	identity "github.com/t11e/go-identity"
)

// SeedUnit stores a unit directly, skipping the checks the endpoints run.
// An unknown parentID is kept as is, which leaves the unit dangling.
func (s *Server) SeedUnit(displayName, parentID string) identity.OrganizationUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	s.units = append(s.units, identity.OrganizationUnit{
		ID:               uuid.NewString(),
		ParentID:         identity.StringPtr(parentID),
		DisplayName:      displayName,
		CreationTime:     &now,
		ConcurrencyStamp: newStamp(),
	})
	s.recodeLocked()
	return s.units[len(s.units)-1]
}

func (s *Server) SeedUser(userName string) identity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := identity.User{
		ID:       uuid.NewString(),
		UserName: userName,
		Email:    strings.ToLower(userName) + "@example.com",
		IsActive: true,
	}
	s.users = append(s.users, u)
	return u
}

func (s *Server) SeedRole(name string) identity.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := identity.Role{ID: uuid.NewString(), Name: name, IsPublic: true}
	s.roles = append(s.roles, r)
	return r
}

// SeedMembers adds users to a unit.
func (s *Server) SeedMembers(unitID string, userIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range userIDs {
		s.members[unitID] = appendUnique(s.members[unitID], id)
	}
}

// SeedRoles assigns roles to a unit.
func (s *Server) SeedRoles(unitID string, roleIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range roleIDs {
		s.unitRoles[unitID] = appendUnique(s.unitRoles[unitID], id)
	}
}

// Units returns a copy of the stored units in creation order.
func (s *Server) Units() []identity.OrganizationUnit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]identity.OrganizationUnit(nil), s.units...)
}

// MemberIDs returns the ids of the users in a unit.
func (s *Server) MemberIDs(unitID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.members[unitID]...)
}

// RoleIDs returns the ids of the roles assigned to a unit.
func (s *Server) RoleIDs(unitID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.unitRoles[unitID]...)
}

// SeedDemo fills the server with a small organization used by the stub
// command.
func (s *Server) SeedDemo() {
	hq := s.SeedUnit("Headquarters", "")
	eng := s.SeedUnit("Engineering", hq.ID)
	s.SeedUnit("Platform", eng.ID)
	s.SeedUnit("Mobile", eng.ID)
	sales := s.SeedUnit("Sales", hq.ID)
	s.SeedUnit("Operations", "")

	alice := s.SeedUser("alice")
	bob := s.SeedUser("bob")
	carol := s.SeedUser("carol")
	s.SeedUser("dave")

	manager := s.SeedRole("manager")
	s.SeedRole("auditor")

	s.SeedMembers(eng.ID, alice.ID, bob.ID)
	s.SeedMembers(sales.ID, carol.ID)
	s.SeedRoles(eng.ID, manager.ID)
}
