package tree

import (
	identity "github.com/t11e/go-identity"
)

// Option is a selectable unit, labelled with its parent for disambiguation.
type Option struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	ParentName  string `json:"parentName,omitempty" yaml:"parentName,omitempty"`
}

func (o Option) Label() string {
	if o.ParentName == "" {
		return o.DisplayName
	}
	return o.DisplayName + " Parent: " + o.ParentName
}

// ByID indexes units by id.
func ByID(units []identity.OrganizationUnit) map[string]identity.OrganizationUnit {
	m := make(map[string]identity.OrganizationUnit, len(units))
	for _, u := range units {
		m[u.ID] = u
	}
	return m
}

// Options lists every unit not in exclude, in source order.
func Options(units []identity.OrganizationUnit, exclude map[string]bool) []Option {
	byID := ByID(units)
	var out []Option
	for _, u := range units {
		if exclude[u.ID] {
			continue
		}
		o := Option{ID: u.ID, DisplayName: u.DisplayName}
		if p, ok := byID[u.Parent()]; ok {
			o.ParentName = p.DisplayName
		}
		out = append(out, o)
	}
	return out
}

// Descendants returns the ids of every unit below id.
func Descendants(units []identity.OrganizationUnit, id string) map[string]bool {
	childrenOf := make(map[string][]string, len(units))
	for _, u := range units {
		if !u.IsRoot() {
			childrenOf[u.Parent()] = append(childrenOf[u.Parent()], u.ID)
		}
	}
	out := make(map[string]bool)
	stack := append([]string(nil), childrenOf[id]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if out[cur] || cur == id {
			continue
		}
		out[cur] = true
		stack = append(stack, childrenOf[cur]...)
	}
	return out
}

// IsDescendant reports whether id sits somewhere below ancestorID.
func IsDescendant(units []identity.OrganizationUnit, ancestorID, id string) bool {
	byID := ByID(units)
	seen := make(map[string]bool)
	for cur, ok := byID[id]; ok && !seen[cur.ID]; cur, ok = byID[cur.Parent()] {
		seen[cur.ID] = true
		if cur.Parent() == ancestorID && ancestorID != "" {
			return true
		}
	}
	return false
}

// Path returns the display names from the root down to id.
func Path(units []identity.OrganizationUnit, id string) []string {
	byID := ByID(units)
	var names []string
	seen := make(map[string]bool)
	for cur, ok := byID[id]; ok && !seen[cur.ID]; cur, ok = byID[cur.Parent()] {
		seen[cur.ID] = true
		names = append([]string{cur.DisplayName}, names...)
	}
	return names
}
