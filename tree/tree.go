// Package tree assembles organization units into a forest.
//
// The forest is derived data: it is rebuilt from the flat unit list after
// every fetch and never edited in place.
package tree

import (
	identity "github.com/t11e/go-identity"
)

// Node is one organization unit in the rendered forest.
type Node struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Children []*Node `json:"children" yaml:"children,omitempty"`
}

// Build groups units under their parents, starting from the roots. Roots
// and siblings keep their order in units. A unit whose parent is not in
// units is dropped together with its subtree.
func Build(units []identity.OrganizationUnit) []*Node {
	childrenOf := make(map[string][]int, len(units))
	var roots []int
	for i, u := range units {
		if u.IsRoot() {
			roots = append(roots, i)
			continue
		}
		childrenOf[u.Parent()] = append(childrenOf[u.Parent()], i)
	}

	visited := make(map[string]bool, len(units))
	forest := make([]*Node, 0, len(roots))
	for _, i := range roots {
		if n := buildNode(units, i, childrenOf, visited); n != nil {
			forest = append(forest, n)
		}
	}
	return forest
}

func buildNode(
	units []identity.OrganizationUnit,
	i int,
	childrenOf map[string][]int,
	visited map[string]bool) *Node {
	u := units[i]
	if visited[u.ID] {
		return nil
	}
	visited[u.ID] = true

	n := &Node{ID: u.ID, Name: u.DisplayName, Children: []*Node{}}
	for _, c := range childrenOf[u.ID] {
		if child := buildNode(units, c, childrenOf, visited); child != nil {
			n.Children = append(n.Children, child)
		}
	}
	return n
}

// Walk visits every node depth first. Returning false from fn stops the walk.
func Walk(forest []*Node, fn func(n *Node, depth int) bool) {
	var walk func(nodes []*Node, depth int) bool
	walk = func(nodes []*Node, depth int) bool {
		for _, n := range nodes {
			if !fn(n, depth) {
				return false
			}
			if !walk(n.Children, depth+1) {
				return false
			}
		}
		return true
	}
	walk(forest, 0)
}

// Find returns the node with the given id, or nil.
func Find(forest []*Node, id string) *Node {
	var found *Node
	Walk(forest, func(n *Node, _ int) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Count returns the number of nodes in the forest.
func Count(forest []*Node) int {
	total := 0
	Walk(forest, func(*Node, int) bool {
		total++
		return true
	})
	return total
}
