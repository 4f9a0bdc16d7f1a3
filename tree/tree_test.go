package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/t11e/go-identity"
)

func unit(id, parent, name string) identity.OrganizationUnit {
	return identity.OrganizationUnit{ID: id, ParentID: identity.StringPtr(parent), DisplayName: name}
}

func TestBuild_Chain(t *testing.T) {
	units := []identity.OrganizationUnit{
		unit("A", "", "A"),
		unit("B", "A", "B"),
		unit("C", "B", "C"),
	}

	forest := Build(units)
	require.Len(t, forest, 1)
	assert.Equal(t, "A", forest[0].ID)
	require.Len(t, forest[0].Children, 1)
	assert.Equal(t, "B", forest[0].Children[0].ID)
	require.Len(t, forest[0].Children[0].Children, 1)
	assert.Equal(t, "C", forest[0].Children[0].Children[0].ID)
	assert.Empty(t, forest[0].Children[0].Children[0].Children)
}

func TestBuild_KeepsSourceOrder(t *testing.T) {
	units := []identity.OrganizationUnit{
		unit("r2", "", "Second root"),
		unit("c2", "r1", "Child two"),
		unit("r1", "", "First root"),
		unit("c1", "r1", "Child one"),
	}

	forest := Build(units)
	require.Len(t, forest, 2)
	assert.Equal(t, "r2", forest[0].ID)
	assert.Equal(t, "r1", forest[1].ID)
	require.Len(t, forest[1].Children, 2)
	assert.Equal(t, "c2", forest[1].Children[0].ID)
	assert.Equal(t, "c1", forest[1].Children[1].ID)
}

func TestBuild_Idempotent(t *testing.T) {
	units := []identity.OrganizationUnit{
		unit("a", "", "a"),
		unit("b", "a", "b"),
		unit("c", "a", "c"),
		unit("d", "c", "d"),
		unit("e", "", "e"),
	}
	assert.Equal(t, Build(units), Build(units))
}

func TestBuild_DropsDanglingParents(t *testing.T) {
	units := []identity.OrganizationUnit{
		unit("a", "", "a"),
		unit("orphan", "missing", "orphan"),
		unit("orphan-child", "orphan", "orphan child"),
	}

	forest := Build(units)
	require.Len(t, forest, 1)
	assert.Nil(t, Find(forest, "orphan"))
	assert.Nil(t, Find(forest, "orphan-child"))
	assert.Equal(t, 1, Count(forest))
}

func TestBuild_SurvivesCyclesAndDuplicates(t *testing.T) {
	units := []identity.OrganizationUnit{
		unit("a", "", "a"),
		unit("b", "a", "b"),
		unit("a", "b", "a again"),
		unit("x", "y", "x"),
		unit("y", "x", "y"),
	}

	forest := Build(units)
	require.Len(t, forest, 1)
	assert.Equal(t, 2, Count(forest))
}

func TestBuild_Empty(t *testing.T) {
	assert.Empty(t, Build(nil))
}

func TestOptions_LabelsParents(t *testing.T) {
	units := []identity.OrganizationUnit{
		unit("a", "", "Head office"),
		unit("b", "a", "Finance"),
		unit("c", "", "Branch"),
	}

	opts := Options(units, map[string]bool{"c": true})
	require.Len(t, opts, 2)
	assert.Equal(t, "Head office", opts[0].Label())
	assert.Equal(t, "Finance Parent: Head office", opts[1].Label())
}

func TestDescendants(t *testing.T) {
	units := []identity.OrganizationUnit{
		unit("a", "", "a"),
		unit("b", "a", "b"),
		unit("c", "b", "c"),
		unit("d", "", "d"),
	}

	assert.Equal(t, map[string]bool{"b": true, "c": true}, Descendants(units, "a"))
	assert.Empty(t, Descendants(units, "d"))
	assert.True(t, IsDescendant(units, "a", "c"))
	assert.False(t, IsDescendant(units, "c", "a"))
	assert.False(t, IsDescendant(units, "a", "a"))
	assert.False(t, IsDescendant(units, "", "a"))
}

func TestPath(t *testing.T) {
	units := []identity.OrganizationUnit{
		unit("a", "", "Root"),
		unit("b", "a", "Mid"),
		unit("c", "b", "Leaf"),
	}
	assert.Equal(t, []string{"Root", "Mid", "Leaf"}, Path(units, "c"))
	assert.Empty(t, Path(units, "zzz"))
}
