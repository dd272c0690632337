package waypoint

import (
	"fmt"

	"go.uber.org/zap"
)

// AddEdge adds the directed edge from -> to on the level both waypoints share.
// Edges above level 0 are rebuilt from the level below by
// CreateAbstractEdges, so callers normally add edges between leaves only.
func (g *Graph) AddEdge(from, to ID) error {
	fh, th := g.idx.get(from), g.idx.get(to)
	if fh == nil || th == nil {
		g.logger.Error("edge between unknown waypoints",
			zap.Uint64("from", uint64(from)), zap.Uint64("to", uint64(to)))
		return fmt.Errorf("add edge %d -> %d: %w", from, to, ErrWaypointNotFound)
	}
	if fh.level != th.level {
		g.logger.Error("edge between waypoints on different search levels",
			zap.Uint64("from", uint64(from)), zap.Int("fromLevel", fh.level),
			zap.Uint64("to", uint64(to)), zap.Int("toLevel", th.level))
		return fmt.Errorf("add edge %d -> %d: %w", from, to, ErrLevelMismatch)
	}

	g.idx.levelOrCreate(fh.level).mesh.AddEdge(fh.waypoint(), th.waypoint())
	g.stale = true
	return nil
}

// RemoveEdge removes the directed edge from -> to
func (g *Graph) RemoveEdge(from, to ID) bool {
	fh := g.idx.get(from)
	if fh == nil {
		return false
	}
	sl := g.idx.level(fh.level)
	if sl == nil || !sl.mesh.RemoveEdge(from, to) {
		return false
	}
	g.stale = true
	return true
}

// RemoveAllEdgesFromWaypoint removes every edge leaving id
func (g *Graph) RemoveAllEdgesFromWaypoint(id ID) {
	h := g.idx.get(id)
	if h == nil {
		return
	}
	if sl := g.idx.level(h.level); sl != nil {
		sl.mesh.RemoveOutgoingEdges(id)
		g.stale = true
	}
}

// GetAllEdgesFromWaypoint returns the successors of id on its level
func (g *Graph) GetAllEdgesFromWaypoint(id ID) []Waypoint {
	g.ensureAbstractEdges()

	h := g.idx.get(id)
	if h == nil {
		return nil
	}
	if sl := g.idx.level(h.level); sl != nil {
		return sl.mesh.Successors(id)
	}
	return nil
}

// CreateAbstractEdges rebuilds the edges of every level above 0, bottom-up
func (g *Graph) CreateAbstractEdges() {
	for _, sl := range g.idx.levels {
		if sl.num == 0 {
			continue
		}
		if err := g.CreateAbstractEdgesAtLevel(sl.num); err != nil {
			g.logger.Error("failed to create abstract edges",
				zap.Int("level", sl.num), zap.Error(err))
		}
	}
	g.stale = false
}

// CreateAbstractEdgesAtLevel derives the edges of level num from the edges of
// the level below. For every edge a -> b below, the collection A of a gains
// the child edge (a, b) keyed by the collection B of b, and when A != B the
// level gets the edge A -> B.
func (g *Graph) CreateAbstractEdgesAtLevel(num int) error {
	if num < 1 {
		return fmt.Errorf("abstract edges at level %d: %w", num, ErrLevelMismatch)
	}
	cur, below := g.idx.level(num), g.idx.level(num-1)
	if cur == nil || below == nil {
		return nil
	}

	cur.mesh.ClearEdges()
	cols := g.Collections(num)
	for _, c := range cols {
		c.ClearEdges()
	}

	for _, c := range cols {
		for _, child := range c.children {
			for _, to := range below.mesh.Successors(child.ID()) {
				toParent := g.GetParent(to.ID())
				if toParent == nil {
					g.logger.Warn("edge target has no collection",
						zap.Uint64("from", uint64(child.ID())), zap.Uint64("to", uint64(to.ID())),
						zap.Int("level", num-1))
					continue
				}
				if toParent != c {
					cur.mesh.AddEdge(c, toParent)
				}
				if child.ID() != to.ID() {
					c.AddEdge(toParent.id, ChildEdge{From: child.ID(), To: to.ID()})
				}
			}
		}
	}
	return nil
}

// ensureAbstractEdges rebuilds the derived edges when an edit made them stale
func (g *Graph) ensureAbstractEdges() {
	if g.stale {
		g.CreateAbstractEdges()
	}
}
