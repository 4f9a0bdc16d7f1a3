package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	identity "github.com/t11e/go-identity"
	"github.com/t11e/go-identity/tree"
)

const (
	entityUnit = "Volo.Abp.Identity.OrganizationUnit"
	entityUser = "Volo.Abp.Identity.IdentityUser"
	entityRole = "Volo.Abp.Identity.IdentityRole"

	codeDuplicateName = "Volo.Abp.Identity:010001"
	codeInvalidParent = "Volo.Abp.Identity:010002"
)

type listResult[T any] struct {
	TotalCount int `json:"totalCount"`
	Items      []T `json:"items"`
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return invalidRequest("input", "The input was not valid.")
	}
	return nil
}

// page applies the SkipCount and MaxResultCount query parameters.
func page[T any](r *http.Request, items []T) listResult[T] {
	total := len(items)
	skip, _ := strconv.Atoi(r.URL.Query().Get("SkipCount"))
	limit, err := strconv.Atoi(r.URL.Query().Get("MaxResultCount"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if skip < 0 || skip > total {
		skip = total
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return listResult[T]{TotalCount: total, Items: append([]T{}, items[skip:end]...)}
}

func (s *Server) listUnits(_ *http.Request) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listResult[identity.OrganizationUnit]{
		TotalCount: len(s.units),
		Items:      append([]identity.OrganizationUnit{}, s.units...),
	}, nil
}

func (s *Server) getUnit(r *http.Request) (interface{}, error) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.unitIndexLocked(id)
	if i < 0 {
		return nil, entityNotFound(entityUnit, id)
	}
	return s.units[i], nil
}

func (s *Server) createUnit(r *http.Request) (interface{}, error) {
	var in identity.CreateOrganizationUnitInput
	if err := decodeBody(r, &in); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.DisplayName)
	if err := checkDisplayName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	parent := ""
	if in.ParentID != nil {
		parent = *in.ParentID
	}
	if parent != "" && s.unitIndexLocked(parent) < 0 {
		return nil, entityNotFound(entityUnit, parent)
	}
	if err := s.checkSiblingNameLocked(parent, name, ""); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := identity.OrganizationUnit{
		ID:               uuid.NewString(),
		ParentID:         identity.StringPtr(parent),
		DisplayName:      name,
		CreationTime:     &now,
		ConcurrencyStamp: newStamp(),
	}
	s.units = append(s.units, u)
	s.recodeLocked()
	return s.units[len(s.units)-1], nil
}

func (s *Server) updateUnit(r *http.Request) (interface{}, error) {
	id := chi.URLParam(r, "id")
	var in identity.UpdateOrganizationUnitInput
	if err := decodeBody(r, &in); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.DisplayName)
	if err := checkDisplayName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.unitIndexLocked(id)
	if i < 0 {
		return nil, entityNotFound(entityUnit, id)
	}
	if err := s.checkSiblingNameLocked(s.units[i].Parent(), name, id); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	s.units[i].DisplayName = name
	s.units[i].LastModificationTime = &now
	s.units[i].ConcurrencyStamp = newStamp()
	return s.units[i], nil
}

// deleteUnit removes the unit together with its subtree.
func (s *Server) deleteUnit(r *http.Request) (interface{}, error) {
	id := r.URL.Query().Get("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unitIndexLocked(id) < 0 {
		return nil, entityNotFound(entityUnit, id)
	}
	gone := tree.Descendants(s.units, id)
	gone[id] = true

	kept := s.units[:0]
	for _, u := range s.units {
		if gone[u.ID] {
			delete(s.members, u.ID)
			delete(s.unitRoles, u.ID)
			continue
		}
		kept = append(kept, u)
	}
	s.units = kept
	s.recodeLocked()
	return nil, nil
}

func (s *Server) moveUnit(r *http.Request) (interface{}, error) {
	id := chi.URLParam(r, "id")
	var in identity.MoveOrganizationUnitInput
	if err := decodeBody(r, &in); err != nil {
		return nil, err
	}
	parent := ""
	if in.NewParentID != nil {
		parent = *in.NewParentID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.unitIndexLocked(id)
	if i < 0 {
		return nil, entityNotFound(entityUnit, id)
	}
	if parent != "" {
		if s.unitIndexLocked(parent) < 0 {
			return nil, entityNotFound(entityUnit, parent)
		}
		if parent == id || tree.IsDescendant(s.units, id, parent) {
			return nil, businessError(codeInvalidParent, "An organization unit can not be moved under itself or one of its children.")
		}
	}
	if err := s.checkSiblingNameLocked(parent, s.units[i].DisplayName, id); err != nil {
		return nil, err
	}
	s.units[i].ParentID = identity.StringPtr(parent)
	s.units[i].ConcurrencyStamp = newStamp()
	s.recodeLocked()
	return nil, nil
}

func (s *Server) listMembers(r *http.Request) (interface{}, error) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unitIndexLocked(id) < 0 {
		return nil, entityNotFound(entityUnit, id)
	}
	return page(r, s.usersLocked(s.members[id], true)), nil
}

func (s *Server) availableUsers(r *http.Request) (interface{}, error) {
	id := r.URL.Query().Get("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unitIndexLocked(id) < 0 {
		return nil, entityNotFound(entityUnit, id)
	}
	return page(r, s.usersLocked(s.members[id], false)), nil
}

func (s *Server) addMembers(r *http.Request) (interface{}, error) {
	id := chi.URLParam(r, "id")
	var in struct {
		UserIDs []string `json:"userIds"`
	}
	if err := decodeBody(r, &in); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unitIndexLocked(id) < 0 {
		return nil, entityNotFound(entityUnit, id)
	}
	for _, uid := range in.UserIDs {
		if s.userIndexLocked(uid) < 0 {
			return nil, entityNotFound(entityUser, uid)
		}
	}
	for _, uid := range in.UserIDs {
		s.members[id] = appendUnique(s.members[id], uid)
	}
	return nil, nil
}

func (s *Server) removeMember(r *http.Request) (interface{}, error) {
	id, uid := chi.URLParam(r, "id"), chi.URLParam(r, "userId")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unitIndexLocked(id) < 0 {
		return nil, entityNotFound(entityUnit, id)
	}
	if s.userIndexLocked(uid) < 0 {
		return nil, entityNotFound(entityUser, uid)
	}
	s.members[id] = without(s.members[id], uid)
	return nil, nil
}

func (s *Server) moveAllUsers(r *http.Request) (interface{}, error) {
	from, to := chi.URLParam(r, "id"), r.URL.Query().Get("organizationId")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unitIndexLocked(from) < 0 {
		return nil, entityNotFound(entityUnit, from)
	}
	if s.unitIndexLocked(to) < 0 {
		return nil, entityNotFound(entityUnit, to)
	}
	if from == to {
		return nil, invalidRequest("organizationId", "The target organization unit must differ from the source.")
	}
	for _, uid := range s.members[from] {
		s.members[to] = appendUnique(s.members[to], uid)
	}
	delete(s.members, from)
	return nil, nil
}

func (s *Server) listRoles(r *http.Request) (interface{}, error) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unitIndexLocked(id) < 0 {
		return nil, entityNotFound(entityUnit, id)
	}
	return page(r, s.rolesLocked(s.unitRoles[id], true)), nil
}

func (s *Server) availableRoles(r *http.Request) (interface{}, error) {
	id := r.URL.Query().Get("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unitIndexLocked(id) < 0 {
		return nil, entityNotFound(entityUnit, id)
	}
	return page(r, s.rolesLocked(s.unitRoles[id], false)), nil
}

func (s *Server) addRoles(r *http.Request) (interface{}, error) {
	id := chi.URLParam(r, "id")
	var in struct {
		RoleIDs []string `json:"roleIds"`
	}
	if err := decodeBody(r, &in); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unitIndexLocked(id) < 0 {
		return nil, entityNotFound(entityUnit, id)
	}
	for _, rid := range in.RoleIDs {
		if s.roleIndexLocked(rid) < 0 {
			return nil, entityNotFound(entityRole, rid)
		}
	}
	for _, rid := range in.RoleIDs {
		s.unitRoles[id] = appendUnique(s.unitRoles[id], rid)
	}
	return nil, nil
}

func (s *Server) removeRole(r *http.Request) (interface{}, error) {
	id, rid := chi.URLParam(r, "id"), chi.URLParam(r, "roleId")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unitIndexLocked(id) < 0 {
		return nil, entityNotFound(entityUnit, id)
	}
	if s.roleIndexLocked(rid) < 0 {
		return nil, entityNotFound(entityRole, rid)
	}
	s.unitRoles[id] = without(s.unitRoles[id], rid)
	return nil, nil
}

func (s *Server) configuration(_ *http.Request) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cfg identity.ApplicationConfiguration
	cfg.Auth.GrantedPolicies = make(map[string]bool, len(s.policies))
	for p, ok := range s.policies {
		cfg.Auth.GrantedPolicies[p] = ok
	}
	cfg.CurrentUser = s.current
	return cfg, nil
}

func checkDisplayName(name string) error {
	if name == "" {
		return invalidRequest("displayName", "The DisplayName field is required.")
	}
	if len(name) > maxDisplayNameSize {
		return invalidRequest("displayName",
			fmt.Sprintf("The field DisplayName must be a string with a maximum length of %d.", maxDisplayNameSize))
	}
	return nil
}

// checkSiblingNameLocked rejects a name already used by another child of
// parent. self is skipped so a unit may keep its own name.
func (s *Server) checkSiblingNameLocked(parent, name, self string) error {
	for _, u := range s.units {
		if u.ID != self && u.Parent() == parent && u.DisplayName == name {
			return businessError(codeDuplicateName, fmt.Sprintf(
				"There is already an organization unit with name %s. Two units with same name can not be created in same level.", name))
		}
	}
	return nil
}

// recodeLocked assigns hierarchical codes (00001.00002) in tree order.
func (s *Server) recodeLocked() {
	codes := make(map[string]string, len(s.units))
	var assign func(nodes []*tree.Node, prefix string)
	assign = func(nodes []*tree.Node, prefix string) {
		for i, n := range nodes {
			code := fmt.Sprintf("%05d", i+1)
			if prefix != "" {
				code = prefix + "." + code
			}
			codes[n.ID] = code
			assign(n.Children, code)
		}
	}
	assign(tree.Build(s.units), "")
	for i := range s.units {
		s.units[i].Code = codes[s.units[i].ID]
	}
}

func (s *Server) unitIndexLocked(id string) int {
	for i, u := range s.units {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) userIndexLocked(id string) int {
	for i, u := range s.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) roleIndexLocked(id string) int {
	for i, r := range s.roles {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// usersLocked returns the users in ids when in is set and the others
// otherwise, in seed order.
func (s *Server) usersLocked(ids []string, in bool) []identity.User {
	set := toSet(ids)
	out := []identity.User{}
	for _, u := range s.users {
		if set[u.ID] == in {
			out = append(out, u)
		}
	}
	return out
}

func (s *Server) rolesLocked(ids []string, in bool) []identity.Role {
	set := toSet(ids)
	out := []identity.Role{}
	for _, r := range s.roles {
		if set[r.ID] == in {
			out = append(out, r)
		}
	}
	return out
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func appendUnique(ids []string, id string) []string {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func newStamp() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
