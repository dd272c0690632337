package waypoint

import "go.uber.org/zap"

// HierarchicalFindPath plans coarse-to-fine. It starts inside the lowest
// collection that holds both endpoints and, one level at a time, searches
// between the ancestors of from and to using only the child edges of the
// corridor found on the level above. The last search runs between from and
// to themselves.
//
// Refinement is greedy: the first corridor found on a level is kept, and if
// it cannot be refined the search fails rather than backtracking. Both
// endpoints must be on the same search level.
func (a *AStar) HierarchicalFindPath(from, to ID) (Path, PathFindResult) {
	a.nodesExplored = 0

	start, ok := a.graph.FindWaypoint(from)
	if !ok {
		return nil, NoPath
	}
	goal, ok := a.graph.FindWaypoint(to)
	if !ok {
		return nil, NoPath
	}
	if from == to {
		return Path{start}, PathFound
	}
	if a.graph.SearchLevelNum(from) != a.graph.SearchLevelNum(to) {
		return nil, NoPath
	}

	a.graph.ensureAbstractEdges()

	common := a.graph.FindCommonParent(from, to)
	if common == nil {
		a.logger.Debug("no common parent",
			zap.Uint64("from", uint64(from)), zap.Uint64("to", uint64(to)))
		return nil, NoPath
	}

	lhs, lok := a.chainBelow(from, common)
	rhs, rok := a.chainBelow(to, common)
	if !lok || !rok || len(lhs) != len(rhs) {
		a.logger.Warn("ancestor chains do not line up",
			zap.Uint64("from", uint64(from)), zap.Uint64("to", uint64(to)),
			zap.Int("lhs", len(lhs)), zap.Int("rhs", len(rhs)))
		return nil, NoPath
	}

	working := Path{common}
	for i := len(lhs) - 1; i >= 0; i-- {
		a.CreateSearchSpace(working, a.space)
		refined, result := a.findPath(a.space, lhs[i], rhs[i])
		if result != PathFound {
			a.logger.Debug("corridor could not be refined",
				zap.Int("level", lhs[i].level),
				zap.Uint64("from", uint64(lhs[i].id)), zap.Uint64("to", uint64(rhs[i].id)))
			return nil, NoPath
		}
		working = refined
	}

	a.CreateSearchSpace(working, a.space)
	return a.findPath(a.space, start, goal)
}

// CreateSearchSpace fills space with the child edges of a corridor of
// collections: the internal edges of each collection and the edges leading
// into the next collection of the corridor.
func (a *AStar) CreateSearchSpace(corridor Path, space *NavMesh) {
	space.Clear()

	for i, wp := range corridor {
		c := a.graph.idx.collection(wp.ID())
		if c == nil {
			a.logger.Error("corridor element is not a collection", zap.Uint64("waypoint", uint64(wp.ID())))
			continue
		}

		a.addChildEdges(space, c.EdgesTo(c.id))
		if i+1 < len(corridor) {
			a.addChildEdges(space, c.EdgesTo(corridor[i+1].ID()))
		}
	}
}

func (a *AStar) addChildEdges(space *NavMesh, edges []ChildEdge) {
	for _, e := range edges {
		from, fok := a.graph.FindWaypoint(e.From)
		to, tok := a.graph.FindWaypoint(e.To)
		if !fok || !tok {
			continue
		}
		space.AddEdge(from, to)
	}
}

// chainBelow returns the ancestors of id below common, finest first. A
// collection is not its own ancestor.
func (a *AStar) chainBelow(id ID, common *Collection) ([]*Collection, bool) {
	chain, ok := a.graph.GetNodePath(id, common)
	if !ok {
		return nil, false
	}
	chain = chain[:len(chain)-1]
	if len(chain) > 0 && chain[0].id == id {
		chain = chain[1:]
	}
	return chain, true
}
