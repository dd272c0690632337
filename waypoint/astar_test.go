package waypoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixtureEdges = [][2]ID{
	{1, 2}, {1, 3}, {1, 4}, {2, 3}, {2, 4}, {2, 15}, {3, 4}, {3, 5}, {3, 6},
	{4, 5}, {4, 6}, {5, 6}, {6, 7}, {7, 8}, {8, 9}, {9, 10}, {9, 11}, {9, 12},
	{10, 11}, {10, 12}, {11, 12}, {11, 13}, {11, 14}, {12, 13}, {12, 14},
	{13, 14}, {13, 16}, {15, 16},
}

func fixtureIDs() []ID {
	ids := make([]ID, 16)
	for i := range ids {
		ids[i] = ID(i + 1)
	}
	return ids
}

// fixtureMesh holds 16 waypoints on the diagonal with undirected edges
func fixtureMesh() *NavMesh {
	nm := NewNavMesh()
	at := func(id ID) Point { return pt(id, float64(id), float64(id), float64(id)) }
	for _, id := range fixtureIDs() {
		nm.AddWaypoint(at(id))
	}
	for _, e := range fixtureEdges {
		nm.AddEdge(at(e[0]), at(e[1]))
		nm.AddEdge(at(e[1]), at(e[0]))
	}
	return nm
}

func buildFixture(t *testing.T, maxChildren int) *Graph {
	t.Helper()
	g := NewGraph()
	require.NoError(t, g.CreateGraph(fixtureMesh(), NewProximityBuilder(maxChildren)))
	require.NoError(t, g.Validate())
	return g
}

func lineGraph(t *testing.T, n int) *Graph {
	t.Helper()
	g := NewGraph()
	for i := 1; i <= n; i++ {
		require.True(t, g.InsertWaypoint(pt(ID(i), float64(i), 0, 0)))
		if i > 1 {
			require.NoError(t, g.AddEdge(ID(i-1), ID(i)))
		}
	}
	return g
}

func TestFindSingleLevelPath(t *testing.T) {
	g := lineGraph(t, 3)
	a := NewAStar(g)

	path, result := a.FindSingleLevelPath(1, 3)
	require.Equal(t, PathFound, result)
	assert.Equal(t, []ID{1, 2, 3}, path.IDs())
	assert.InDelta(t, 2.0, path.Length(), 1e-9)

	// Edges are directed
	_, result = a.FindSingleLevelPath(3, 1)
	assert.Equal(t, NoPath, result)
}

func TestFindSingleLevelPathAfterEdgeRemoval(t *testing.T) {
	g := lineGraph(t, 3)
	require.True(t, g.RemoveEdge(2, 3))

	path, result := NewAStar(g).FindSingleLevelPath(1, 3)
	assert.Equal(t, NoPath, result)
	assert.Empty(t, path)
	assert.Equal(t, "NO_PATH", result.String())
}

func TestFindSingleLevelPathEndpoints(t *testing.T) {
	g, left, _, _ := twoCollectionGraph(t)
	a := NewAStar(g)

	path, result := a.FindSingleLevelPath(2, 2)
	require.Equal(t, PathFound, result)
	assert.Equal(t, []ID{2}, path.IDs())

	_, result = a.FindSingleLevelPath(1, 99)
	assert.Equal(t, NoPath, result)

	_, result = a.FindSingleLevelPath(1, left.ID())
	assert.Equal(t, NoPath, result)
}

func TestFindSingleLevelPathPrefersCheaperRoute(t *testing.T) {
	g := NewGraph()
	for _, wp := range []Point{pt(1, 0, 0, 0), pt(2, 5, 5, 0), pt(3, 5, 0, 0), pt(4, 10, 0, 0)} {
		require.True(t, g.InsertWaypoint(wp))
	}
	require.NoError(t, g.AddEdge(1, 2))
	require.NoError(t, g.AddEdge(2, 4))
	require.NoError(t, g.AddEdge(1, 3))
	require.NoError(t, g.AddEdge(3, 4))

	path, result := NewAStar(g).FindSingleLevelPath(1, 4)
	require.Equal(t, PathFound, result)
	assert.Equal(t, []ID{1, 3, 4}, path.IDs())
}

func TestOpenListOrder(t *testing.T) {
	open := newOpenList()
	open.offer(pt(1, 0, 0, 0), 4, 1, nil)
	open.offer(pt(2, 0, 0, 0), 2, 3, nil)
	open.offer(pt(3, 0, 0, 0), 1, 4, nil)
	open.offer(pt(4, 0, 0, 0), 9, 0, nil)

	// A cheaper route replaces the stored one, a dearer one is ignored
	open.offer(pt(4, 0, 0, 0), 0, 0, nil)
	open.offer(pt(1, 0, 0, 0), 8, 1, nil)

	var order []ID
	for open.Len() > 0 {
		order = append(order, open.next().wp.ID())
	}
	// f ties between 1, 2 and 3 go to the lower h, then first seen
	assert.Equal(t, []ID{4, 1, 2, 3}, order)
	assert.Empty(t, open.byID)
}

func TestTieBreakPrefersLowerHeuristic(t *testing.T) {
	g := NewGraph()
	for _, wp := range []Point{pt(1, 0, 0, 0), pt(2, 0, 0, 0), pt(3, 0, 0, 0), pt(4, 0, 0, 0)} {
		require.True(t, g.InsertWaypoint(wp))
	}
	// 2 is pushed before 3 and both reach f = 3
	require.NoError(t, g.AddEdge(1, 2))
	require.NoError(t, g.AddEdge(1, 3))
	require.NoError(t, g.AddEdge(2, 4))
	require.NoError(t, g.AddEdge(3, 4))

	costs := map[[2]ID]float64{{1, 2}: 1, {1, 3}: 2, {2, 4}: 1, {3, 4}: 1}
	heuristic := map[ID]float64{1: 0, 2: 2, 3: 1, 4: 0}

	var expanded []ID
	a := NewAStar(g,
		WithCost(func(from, to Waypoint) float64 {
			if len(expanded) == 0 || expanded[len(expanded)-1] != from.ID() {
				expanded = append(expanded, from.ID())
			}
			return costs[[2]ID{from.ID(), to.ID()}]
		}),
		WithHeuristic(func(from, _ Waypoint) float64 { return heuristic[from.ID()] }),
	)

	path, result := a.FindSingleLevelPath(1, 4)
	require.Equal(t, PathFound, result)
	assert.Equal(t, []ID{1, 3, 4}, path.IDs())
	assert.Equal(t, []ID{1, 3}, expanded)
}

func TestTieBreakFallsBackToInsertionOrder(t *testing.T) {
	g := NewGraph()
	for _, wp := range []Point{pt(1, 0, 0, 0), pt(2, 0, 0, 0), pt(3, 0, 0, 0), pt(4, 0, 0, 0)} {
		require.True(t, g.InsertWaypoint(wp))
	}
	require.NoError(t, g.AddEdge(1, 3))
	require.NoError(t, g.AddEdge(1, 2))
	require.NoError(t, g.AddEdge(2, 4))
	require.NoError(t, g.AddEdge(3, 4))

	a := NewAStar(g,
		WithCost(func(_, _ Waypoint) float64 { return 1 }),
		WithHeuristic(func(_, _ Waypoint) float64 { return 0 }),
	)

	path, result := a.FindSingleLevelPath(1, 4)
	require.Equal(t, PathFound, result)
	assert.Equal(t, []ID{1, 3, 4}, path.IDs())
}

func TestSearchBudget(t *testing.T) {
	g := lineGraph(t, 10)

	a := NewAStar(g, WithMaxNodes(3))
	_, result := a.FindSingleLevelPath(1, 10)
	assert.Equal(t, NoPath, result)
	assert.Equal(t, 3, a.NodesExplored())

	a = NewAStar(g)
	path, result := a.FindSingleLevelPath(1, 10)
	require.Equal(t, PathFound, result)
	assert.Len(t, path, 10)
	assert.Equal(t, 10, a.NodesExplored())
}

func TestHierarchicalFindPathAcrossCollections(t *testing.T) {
	g, _, _, _ := twoCollectionGraph(t)
	a := NewAStar(g)

	path, result := a.HierarchicalFindPath(1, 4)
	require.Equal(t, PathFound, result)
	assert.Equal(t, []ID{1, 2, 3, 4}, path.IDs())
	assert.Equal(t, "PATH_FOUND", result.String())

	// 2 -> 3 is the only link and it points right
	_, result = a.HierarchicalFindPath(4, 1)
	assert.Equal(t, NoPath, result)
}

func TestHierarchicalFindPathWithinCollection(t *testing.T) {
	g, _, _, _ := twoCollectionGraph(t)
	a := NewAStar(g)

	hier, result := a.HierarchicalFindPath(1, 2)
	require.Equal(t, PathFound, result)
	flat, flatResult := a.FindSingleLevelPath(1, 2)
	require.Equal(t, PathFound, flatResult)
	assert.Equal(t, flat.IDs(), hier.IDs())

	path, result := a.HierarchicalFindPath(3, 3)
	require.Equal(t, PathFound, result)
	assert.Equal(t, []ID{3}, path.IDs())
}

func TestHierarchicalFindPathBetweenCollections(t *testing.T) {
	g, left, right, _ := twoCollectionGraph(t)

	path, result := NewAStar(g).HierarchicalFindPath(left.ID(), right.ID())
	require.Equal(t, PathFound, result)
	assert.Equal(t, []ID{left.ID(), right.ID()}, path.IDs())
}

func TestHierarchicalFindPathFailures(t *testing.T) {
	g, left, _, _ := twoCollectionGraph(t)
	a := NewAStar(g)

	_, result := a.HierarchicalFindPath(1, 99)
	assert.Equal(t, NoPath, result)

	_, result = a.HierarchicalFindPath(1, left.ID())
	assert.Equal(t, NoPath, result)

	// A leaf outside the tree has no common parent
	require.True(t, g.InsertWaypoint(pt(40, 9, 9, 9)))
	require.NoError(t, g.AddEdge(4, 40))
	_, result = a.HierarchicalFindPath(1, 40)
	assert.Equal(t, NoPath, result)

	path, result := a.FindSingleLevelPath(1, 40)
	require.Equal(t, PathFound, result)
	assert.Equal(t, []ID{1, 2, 3, 4, 40}, path.IDs())
}

func TestHierarchicalFindPathSeesEdgeEdits(t *testing.T) {
	g, _, _, _ := twoCollectionGraph(t)
	a := NewAStar(g)

	_, result := a.HierarchicalFindPath(4, 1)
	require.Equal(t, NoPath, result)

	require.NoError(t, g.AddEdge(3, 2))
	path, result := a.HierarchicalFindPath(4, 1)
	require.Equal(t, PathFound, result)
	assert.Equal(t, []ID{4, 3, 2, 1}, path.IDs())

	require.True(t, g.RemoveEdge(2, 3))
	_, result = a.HierarchicalFindPath(1, 4)
	assert.Equal(t, NoPath, result)
}

func TestCreateSearchSpace(t *testing.T) {
	g, left, right, _ := twoCollectionGraph(t)
	g.CreateAbstractEdges()
	a := NewAStar(g)

	space := NewNavMesh()
	a.CreateSearchSpace(Path{left, right}, space)

	assert.Equal(t, 5, space.NumEdges())
	assert.True(t, space.Contains(2, 3))
	assert.False(t, space.Contains(3, 2))

	a.CreateSearchSpace(Path{right}, space)
	assert.Equal(t, 2, space.NumEdges())
	assert.False(t, space.Contains(2, 3))
}

func TestFixtureHierarchy(t *testing.T) {
	g := buildFixture(t, DefaultMaxChildren)

	assert.Equal(t, 3, g.NumSearchLevels())
	assert.Equal(t, 16, g.SearchLevel(0).Len())
	assert.Equal(t, 2, g.SearchLevel(1).Len())
	assert.Equal(t, 1, g.SearchLevel(2).Len())
	requireBounded(t, g, DefaultMaxChildren)

	root := g.Collections(2)[0]
	for _, id := range fixtureIDs() {
		assert.Equal(t, root, g.GetRootParent(id))
	}
}

func TestFixtureHierarchicalMatchesConnectivity(t *testing.T) {
	g := buildFixture(t, DefaultMaxChildren)
	a := NewAStar(g)
	base := g.NavMeshAtSearchLevel(0)

	for _, from := range fixtureIDs() {
		for _, to := range fixtureIDs() {
			flat, flatResult := a.FindSingleLevelPath(from, to)
			require.Equal(t, PathFound, flatResult, "%d -> %d", from, to)

			path, result := a.HierarchicalFindPath(from, to)
			require.Equal(t, PathFound, result, "%d -> %d", from, to)
			assert.Equal(t, from, path[0].ID())
			assert.Equal(t, to, path[len(path)-1].ID())
			for i := 1; i < len(path); i++ {
				assert.True(t, base.Contains(path[i-1].ID(), path[i].ID()),
					"%d -> %d uses missing edge %d -> %d", from, to, path[i-1].ID(), path[i].ID())
			}
			assert.GreaterOrEqual(t, path.Length()+1e-9, flat.Length())
		}
	}
}
