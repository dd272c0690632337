package waypoint

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoCollectionGraph builds leaves 1..4 on the x axis grouped as {1,2} and
// {3,4} under one root, with edges 1<->2, 3<->4 and 2->3.
func twoCollectionGraph(t *testing.T, opts ...Option) (*Graph, *Collection, *Collection, *Collection) {
	t.Helper()
	g := NewGraph(opts...)
	for i := ID(1); i <= 4; i++ {
		require.True(t, g.InsertWaypoint(pt(i, float64(i), 0, 0)))
	}

	left, right := g.CreateCollection(1), g.CreateCollection(1)
	require.NoError(t, g.Assign(1, left))
	require.NoError(t, g.Assign(2, left))
	require.NoError(t, g.Assign(3, right))
	require.NoError(t, g.Assign(4, right))

	root := g.CreateCollection(2)
	require.NoError(t, g.Assign(left.ID(), root))
	require.NoError(t, g.Assign(right.ID(), root))

	require.NoError(t, g.AddEdge(1, 2))
	require.NoError(t, g.AddEdge(2, 1))
	require.NoError(t, g.AddEdge(3, 4))
	require.NoError(t, g.AddEdge(4, 3))
	require.NoError(t, g.AddEdge(2, 3))
	return g, left, right, root
}

func requireBounded(t *testing.T, g *Graph, max int) {
	t.Helper()
	for _, wp := range g.Waypoints() {
		if c, ok := wp.(*Collection); ok {
			require.LessOrEqual(t, c.Degree(), max, "collection %d", c.ID())
		}
	}
}

func TestInsertWaypoint(t *testing.T) {
	g := NewGraph()

	assert.True(t, g.InsertWaypoint(pt(1, 0, 0, 0)))
	assert.True(t, g.Contains(1))
	assert.False(t, g.Contains(2))

	wp, ok := g.FindWaypoint(1)
	require.True(t, ok)
	assert.Equal(t, mgl64.Vec3{0, 0, 0}, wp.Position())

	assert.False(t, g.InsertWaypoint(pt(NoID, 0, 0, 0)))
	assert.False(t, g.Contains(NoID))
}

func TestInsertExistingWaypointIsMove(t *testing.T) {
	g, left, _, root := twoCollectionGraph(t)
	before := left.Position()

	assert.False(t, g.InsertWaypoint(pt(1, -9, 0, 0)))

	wp, _ := g.FindWaypoint(1)
	assert.Equal(t, mgl64.Vec3{-9, 0, 0}, wp.Position())
	assert.NotEqual(t, before, left.Position())
	assert.Equal(t, mgl64.Vec3{-3.5, 0, 0}, left.Position())
	assert.InDelta(t, (-3.5+3.5)/2, root.Position()[0], 1e-9)

	closest, ok := g.ClosestWaypoint(mgl64.Vec3{-8, 0, 0})
	require.True(t, ok)
	assert.Equal(t, ID(1), closest.ID())
	require.NoError(t, g.Validate())
}

func TestInsertLeafWithCollectionIDFails(t *testing.T) {
	g, left, _, _ := twoCollectionGraph(t)

	assert.False(t, g.InsertWaypoint(pt(left.ID(), 0, 0, 0)))
	c := g.FindCollection(left.ID())
	assert.Equal(t, left, c)
}

func TestPutWaypointReportsRejections(t *testing.T) {
	g, left, _, _ := twoCollectionGraph(t)

	_, err := g.PutWaypoint(pt(left.ID(), 0, 0, 0))
	assert.ErrorIs(t, err, ErrReservedID)
	_, err = g.PutWaypoint(pt(MaxLeafID+1, 0, 0, 0))
	assert.ErrorIs(t, err, ErrReservedID)
	_, err = g.PutWaypoint(pt(NoID, 0, 0, 0))
	assert.ErrorIs(t, err, ErrReservedID)
	_, err = g.PutWaypoint(left)
	assert.ErrorIs(t, err, ErrDuplicateID)

	inserted, err := g.PutWaypoint(pt(MaxLeafID, 9, 0, 0))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = g.PutWaypoint(pt(1, -1, 0, 0))
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, g.Validate())
}

func TestCollectionIDsStayClearOfLeafIDs(t *testing.T) {
	g, left, right, root := twoCollectionGraph(t)

	for _, c := range []*Collection{left, right, root} {
		assert.Greater(t, c.ID(), MaxLeafID)
		assert.ErrorIs(t, CheckLeafID(c.ID()), ErrReservedID)
	}
	assert.NoError(t, CheckLeafID(5))

	// The next small ID is free for a caller's leaf
	assert.False(t, g.Contains(5))
	assert.True(t, g.InsertWaypoint(pt(5, 5, 0, 0)))
	wp, ok := g.FindWaypoint(5)
	require.True(t, ok)
	_, isCollection := wp.(*Collection)
	assert.False(t, isCollection)
}

func TestFindCollectionAndParents(t *testing.T) {
	g, left, right, root := twoCollectionGraph(t)

	assert.Equal(t, left, g.FindCollection(1))
	assert.Equal(t, left, g.FindCollection(left.ID()))
	assert.Equal(t, root, g.GetParent(left.ID()))
	assert.Equal(t, root, g.GetRootParent(4))
	assert.Nil(t, g.GetParent(root.ID()))
	assert.Nil(t, g.FindCollection(99))

	assert.True(t, g.HasPath(1, 4))
	assert.Equal(t, 1, right.Level())
	assert.Equal(t, 3, g.NumSearchLevels())
	assert.Equal(t, 0, g.SearchLevelNum(3))
	assert.Equal(t, 2, g.SearchLevelNum(root.ID()))
	assert.Equal(t, -1, g.SearchLevelNum(99))
}

func TestFindCommonParent(t *testing.T) {
	g, left, _, root := twoCollectionGraph(t)

	assert.Equal(t, left, g.FindCommonParent(1, 2))
	assert.Equal(t, root, g.FindCommonParent(1, 4))
	assert.Equal(t, root, g.FindCommonParent(4, 1))
	assert.Equal(t, root, g.FindCommonParent(left.ID(), 4))
	assert.Nil(t, g.FindCommonParent(1, 99))

	// Disjoint trees
	require.True(t, g.InsertWaypoint(pt(50, 0, 0, 0)))
	other := g.CreateCollection(1)
	require.NoError(t, g.Assign(50, other))
	assert.Nil(t, g.FindCommonParent(1, 50))
	assert.False(t, g.HasPath(1, 50))
}

func TestFindCommonParentIsSymmetric(t *testing.T) {
	g := buildFixture(t, DefaultMaxChildren)
	ids := fixtureIDs()
	for _, a := range ids {
		for _, b := range ids {
			assert.Equal(t, g.FindCommonParent(a, b), g.FindCommonParent(b, a), "%d %d", a, b)
		}
	}
}

func TestGetNodePath(t *testing.T) {
	g, left, right, root := twoCollectionGraph(t)

	chain, ok := g.GetNodePath(1, root)
	require.True(t, ok)
	assert.Equal(t, []*Collection{left, root}, chain)

	chain, ok = g.GetNodePath(1, left)
	require.True(t, ok)
	assert.Equal(t, []*Collection{left}, chain)

	_, ok = g.GetNodePath(1, right)
	assert.False(t, ok)
	_, ok = g.GetNodePath(1, nil)
	assert.False(t, ok)
}

func TestAssignRejectsLevelMismatch(t *testing.T) {
	g, left, right, root := twoCollectionGraph(t)

	err := g.Assign(1, root)
	assert.ErrorIs(t, err, ErrLevelMismatch)

	err = g.Assign(left.ID(), right)
	assert.ErrorIs(t, err, ErrLevelMismatch)

	err = g.Assign(99, left)
	assert.ErrorIs(t, err, ErrWaypointNotFound)

	require.True(t, g.InsertWaypoint(pt(60, 0, 0, 0)))
	err = g.Assign(3, &Collection{id: 60, edges: map[ID][]ChildEdge{}})
	assert.True(t, errors.Is(err, ErrNotCollection))
	require.NoError(t, g.Validate())
}

func TestAssignMovesEmptyRootToLevel(t *testing.T) {
	g := NewGraph()
	require.True(t, g.InsertWaypoint(pt(1, 1, 1, 1)))

	wc := g.CreateCollection(1)
	rootNode := g.CreateCollection(1)

	require.NoError(t, g.Assign(1, wc))
	require.NoError(t, g.Assign(wc.ID(), rootNode))
	// Assigning again is a no-op
	require.NoError(t, g.Assign(wc.ID(), rootNode))

	assert.Equal(t, 0, g.SearchLevelNum(1))
	assert.Equal(t, 1, g.SearchLevelNum(wc.ID()))
	assert.Equal(t, 2, g.SearchLevelNum(rootNode.ID()))
	assert.Equal(t, 1, rootNode.Degree())
	assert.Equal(t, rootNode, g.GetRootParent(1))
	require.NoError(t, g.Validate())
}

func TestAddEdgeAcrossLevelsFails(t *testing.T) {
	g, left, _, _ := twoCollectionGraph(t)

	err := g.AddEdge(1, left.ID())
	assert.ErrorIs(t, err, ErrLevelMismatch)
	err = g.AddEdge(1, 99)
	assert.ErrorIs(t, err, ErrWaypointNotFound)
}

func TestAbstractEdges(t *testing.T) {
	g, left, right, root := twoCollectionGraph(t)
	g.CreateAbstractEdges()

	level1 := g.NavMeshAtSearchLevel(1)
	assert.True(t, level1.Contains(left.ID(), right.ID()))
	assert.False(t, level1.Contains(right.ID(), left.ID()))

	assert.ElementsMatch(t, []ChildEdge{{1, 2}, {2, 1}}, left.EdgesTo(left.ID()))
	assert.Equal(t, []ChildEdge{{2, 3}}, left.EdgesTo(right.ID()))
	assert.Empty(t, right.EdgesTo(left.ID()))
	assert.Equal(t, []ChildEdge{{left.ID(), right.ID()}}, root.EdgesTo(root.ID()))
	assert.Equal(t, []ChildEdge{{From: 2, To: 1}, {From: 2, To: 3}}, left.GetEdges(2))

	// Edits are picked up lazily
	require.NoError(t, g.AddEdge(3, 2))
	succ := g.GetAllEdgesFromWaypoint(right.ID())
	require.Len(t, succ, 1)
	assert.Equal(t, left.ID(), succ[0].ID())
}

func TestRemoveEdge(t *testing.T) {
	g, _, _, _ := twoCollectionGraph(t)

	assert.True(t, g.RemoveEdge(2, 3))
	assert.False(t, g.RemoveEdge(2, 3))
	assert.False(t, g.RemoveEdge(99, 3))
	assert.Len(t, g.GetAllEdgesFromWaypoint(3), 1)

	g.RemoveAllEdgesFromWaypoint(1)
	assert.Empty(t, g.GetAllEdgesFromWaypoint(1))
	assert.Len(t, g.GetAllEdgesFromWaypoint(2), 1)
}

func TestRemoveWaypoint(t *testing.T) {
	g, left, _, _ := twoCollectionGraph(t)

	assert.False(t, g.RemoveWaypoint(99))
	require.True(t, g.RemoveWaypoint(2))

	assert.False(t, g.Contains(2))
	_, ok := g.FindWaypoint(2)
	assert.False(t, ok)
	assert.False(t, left.HasChild(2))

	// No dangling edges anywhere
	for _, sl := range []int{0, 1, 2} {
		g.NavMeshAtSearchLevel(sl).Range(func(from, to Waypoint) bool {
			assert.NotEqual(t, ID(2), from.ID())
			assert.NotEqual(t, ID(2), to.ID())
			return true
		})
	}
	for _, wp := range g.Waypoints() {
		if c, ok := wp.(*Collection); ok {
			for _, child := range c.ChildIDs() {
				for _, e := range c.GetEdges(child) {
					assert.NotEqual(t, ID(2), e.To)
				}
			}
		}
	}
	closest, _ := g.ClosestWaypoint(mgl64.Vec3{2, 0, 0})
	assert.NotEqual(t, ID(2), closest.ID())
	require.NoError(t, g.Validate())
}

func TestRemoveCollectionRemovesSubtree(t *testing.T) {
	g, left, _, root := twoCollectionGraph(t)

	require.True(t, g.RemoveWaypoint(left.ID()))

	assert.False(t, g.Contains(1))
	assert.False(t, g.Contains(2))
	assert.False(t, g.Contains(left.ID()))
	assert.Equal(t, 1, root.Degree())
	assert.Equal(t, 4, g.Len())
	require.NoError(t, g.Validate())
}

func TestRemoveCollapsesEmptyAncestorsBelowRoot(t *testing.T) {
	g := NewGraph()
	require.True(t, g.InsertWaypoint(pt(1, 0, 0, 0)))
	require.True(t, g.InsertWaypoint(pt(2, 5, 0, 0)))

	leafCol, keepCol := g.CreateCollection(1), g.CreateCollection(1)
	mid, keepMid := g.CreateCollection(2), g.CreateCollection(2)
	root := g.CreateCollection(3)
	require.NoError(t, g.Assign(1, leafCol))
	require.NoError(t, g.Assign(2, keepCol))
	require.NoError(t, g.Assign(leafCol.ID(), mid))
	require.NoError(t, g.Assign(keepCol.ID(), keepMid))
	require.NoError(t, g.Assign(mid.ID(), root))
	require.NoError(t, g.Assign(keepMid.ID(), root))

	require.True(t, g.RemoveWaypoint(1))

	assert.False(t, g.Contains(leafCol.ID()))
	assert.False(t, g.Contains(mid.ID()))
	assert.True(t, g.Contains(root.ID()))
	assert.Equal(t, []ID{keepMid.ID()}, root.ChildIDs())
	require.NoError(t, g.Validate())

	// The root survives even when it empties
	require.True(t, g.RemoveWaypoint(2))
	assert.True(t, g.Contains(root.ID()))
	assert.Zero(t, root.Degree())
	require.NoError(t, g.Validate())
}

func TestClearRunsHook(t *testing.T) {
	cleared := 0
	g, _, _, _ := twoCollectionGraph(t, WithOnClear(func() { cleared++ }))

	g.Clear()

	assert.Equal(t, 1, cleared)
	assert.Zero(t, g.Len())
	assert.Zero(t, g.NumSearchLevels())
	assert.False(t, g.Contains(1))
	_, ok := g.ClosestWaypoint(mgl64.Vec3{})
	assert.False(t, ok)
}

func TestInsertIntoFullHierarchyStaysBounded(t *testing.T) {
	const max = 2
	g, _, _, _ := twoCollectionGraph(t, WithBuilder(NewProximityBuilder(max)))
	requireBounded(t, g, max)

	e := pt(5, 5, 0, 0)
	assert.True(t, g.InsertWaypoint(e))

	assert.True(t, g.Contains(5))
	requireBounded(t, g, max)
	require.NoError(t, g.Validate())
	assert.NotNil(t, g.GetParent(5))
	assert.True(t, g.HasPath(1, 5))
}

func TestValidateReportsCorruption(t *testing.T) {
	g, left, _, _ := twoCollectionGraph(t)
	require.NoError(t, g.Validate())

	// Break the parent link behind the graph's back
	g.idx.get(1).parent = 12345
	err := g.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptGraph)

	g.idx.get(1).parent = left.ID()
	require.NoError(t, g.Validate())
}

func TestValidateRequiresSingleRoot(t *testing.T) {
	g, _, _, root := twoCollectionGraph(t)

	stray := g.CreateCollection(2)
	err := g.Validate()
	assert.ErrorIs(t, err, ErrCorruptGraph)
	assert.Contains(t, err.Error(), "without a parent")

	require.True(t, g.RemoveWaypoint(stray.ID()))
	require.NoError(t, g.Validate())

	// A parentless collection below the top level is a second tree
	low := g.CreateCollection(1)
	require.Error(t, g.Validate())
	require.NoError(t, g.Assign(low.ID(), root))
	require.NoError(t, g.Validate())
}

func TestRandomEditsKeepTreeValid(t *testing.T) {
	const max = 4
	rng := rand.New(rand.NewSource(7))

	mesh := gridMesh(6, 6)
	g := NewGraph(WithBuilder(NewProximityBuilder(max)))
	require.NoError(t, g.CreateGraph(mesh, NewProximityBuilder(max)))
	require.NoError(t, g.Validate())

	next := ID(1000)
	for step := 0; step < 200; step++ {
		leaves := g.SearchLevel(0).Nodes()
		if rng.Intn(2) == 0 && len(leaves) > 1 {
			id := leaves[rng.Intn(len(leaves))]
			require.True(t, g.RemoveWaypoint(id))
			assert.False(t, g.Contains(id))
		} else {
			next++
			wp := pt(next, rng.Float64()*6, rng.Float64()*6, 0)
			require.True(t, g.InsertWaypoint(wp))
			if len(leaves) > 0 {
				other := leaves[rng.Intn(len(leaves))]
				require.NoError(t, g.AddEdge(next, other))
				require.NoError(t, g.AddEdge(other, next))
			}
		}
		require.NoError(t, g.Validate(), "step %d", step)
		requireBounded(t, g, max)
	}
}

// gridMesh builds a w x h grid with 4-neighbour edges in both directions
func gridMesh(w, h int) *NavMesh {
	nm := NewNavMesh()
	id := func(x, y int) ID { return ID(y*w + x + 1) }
	at := func(x, y int) Point { return pt(id(x, y), float64(x), float64(y), 0) }

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			nm.AddWaypoint(at(x, y))
			if x+1 < w {
				nm.AddEdge(at(x, y), at(x+1, y))
				nm.AddEdge(at(x+1, y), at(x, y))
			}
			if y+1 < h {
				nm.AddEdge(at(x, y), at(x, y+1))
				nm.AddEdge(at(x, y+1), at(x, y))
			}
		}
	}
	return nm
}
