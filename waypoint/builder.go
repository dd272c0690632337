package waypoint

import (
	"fmt"
	"math"
	"sort"
)

// Builder decides how waypoints are grouped into collections.
type Builder interface {
	// MaxChildrenPerNode is the most children a collection may hold.
	MaxChildrenPerNode() int

	// SelectBestCollection returns the collection on level that wp should
	// join, or nil to start a new collection. wp lives on level-1.
	SelectBestCollection(g *Graph, wp Waypoint, level int) *Collection

	// Split divides an overfull collection in two. One half may be c itself;
	// the other must be a new collection on the same level, created with
	// Graph.CreateCollection and filled with Graph.Assign.
	Split(g *Graph, c *Collection) (*Collection, *Collection, error)
}

// DefaultMaxChildren is the child bound used when none is configured
const DefaultMaxChildren = 10

// ProximityBuilder groups waypoints with the collections of their neighbours.
// A waypoint joins the nearest collection with room that already holds one of
// its neighbours, so collections stay connected and a coarse path can be
// refined inside them. When all of those are full it tries the collections of
// its neighbours' neighbours, and only then starts a new collection.
// Waypoints without any edge join the nearest collection on the level, full or
// not, and leave the split to the graph.
type ProximityBuilder struct {
	maxChildren int
}

// NewProximityBuilder creates a builder with the given child bound
func NewProximityBuilder(maxChildren int) *ProximityBuilder {
	return &ProximityBuilder{maxChildren: maxChildren}
}

// MaxChildrenPerNode implements Builder
func (b *ProximityBuilder) MaxChildrenPerNode() int {
	return b.maxChildren
}

// SelectBestCollection implements Builder
func (b *ProximityBuilder) SelectBestCollection(g *Graph, wp Waypoint, level int) *Collection {
	mesh := g.NavMeshAtSearchLevel(level - 1)
	if mesh == nil {
		return nil
	}

	neighbours := append(mesh.Successors(wp.ID()), mesh.Predecessors(wp.ID())...)
	if len(neighbours) == 0 {
		return b.nearest(wp, g.Collections(level), true)
	}

	var candidates []*Collection
	seen := make(map[ID]bool)
	for _, n := range neighbours {
		p := g.GetParent(n.ID())
		if p == nil || p.Level() != level || seen[p.ID()] {
			continue
		}
		// Joining its own collection again is not a move
		if p.HasChild(wp.ID()) {
			return p
		}
		seen[p.ID()] = true
		candidates = append(candidates, p)
	}
	if best := b.nearest(wp, candidates, false); best != nil {
		return best
	}

	// Every adjacent collection is full; look one hop further
	candidates = candidates[:0]
	for _, n := range neighbours {
		for _, m := range append(mesh.Successors(n.ID()), mesh.Predecessors(n.ID())...) {
			if m.ID() == wp.ID() {
				continue
			}
			p := g.GetParent(m.ID())
			if p == nil || p.Level() != level || seen[p.ID()] {
				continue
			}
			seen[p.ID()] = true
			candidates = append(candidates, p)
		}
	}
	return b.nearest(wp, candidates, false)
}

// nearest prefers collections with room, then the smaller centroid distance,
// then the lower ID
func (b *ProximityBuilder) nearest(wp Waypoint, cols []*Collection, allowFull bool) *Collection {
	var best *Collection
	bestFull, bestDist := true, math.Inf(1)

	for _, c := range cols {
		full := c.Degree() >= b.maxChildren
		if full && !allowFull {
			continue
		}
		d := Distance(wp, c)
		switch {
		case best == nil:
		case bestFull && !full:
		case full != bestFull:
			continue
		case d < bestDist:
		case d == bestDist && c.ID() < best.ID():
		default:
			continue
		}
		best, bestFull, bestDist = c, full, d
	}
	return best
}

// Split implements Builder. A breadth-first spanning tree is grown over the
// children's edges, seeded with the child lying lowest along the widest axis,
// and cut at the edge that divides it most evenly. Both halves stay
// connected, and the subtree below the cut moves to a new collection.
// Children the tree cannot reach move together instead.
func (b *ProximityBuilder) Split(g *Graph, c *Collection) (*Collection, *Collection, error) {
	children := c.Children()
	if len(children) < 2 {
		return nil, nil, fmt.Errorf("split collection %d with %d children: %w", c.ID(), len(children), ErrSplitOverflow)
	}

	axis := widestAxis(children)
	sortAlong(children, axis)

	member := make(map[ID]bool, len(children))
	for _, child := range children {
		member[child.ID()] = true
	}
	mesh := g.NavMeshAtSearchLevel(c.Level() - 1)

	// Spanning tree in BFS order
	order := []Waypoint{children[0]}
	parent := map[ID]ID{children[0].ID(): NoID}
	for i := 0; i < len(order); i++ {
		for _, n := range splitNeighbours(mesh, order[i], member, axis) {
			if _, seen := parent[n.ID()]; seen {
				continue
			}
			parent[n.ID()] = order[i].ID()
			order = append(order, n)
		}
	}

	moving := make(map[ID]bool)
	if len(order) < len(children) {
		for _, child := range children {
			if _, reached := parent[child.ID()]; !reached {
				moving[child.ID()] = true
			}
		}
	} else {
		// Subtree sizes, leaves first
		size := make(map[ID]int, len(order))
		for i := len(order) - 1; i >= 0; i-- {
			id := order[i].ID()
			size[id]++
			if p := parent[id]; p != NoID {
				size[p] += size[id]
			}
		}

		cut, best := NoID, len(order)+1
		for _, wp := range order[1:] {
			imbalance := len(order) - 2*size[wp.ID()]
			if imbalance < 0 {
				imbalance = -imbalance
			}
			if imbalance < best {
				cut, best = wp.ID(), imbalance
			}
		}

		for _, wp := range order {
			for id := wp.ID(); id != NoID; id = parent[id] {
				if id == cut {
					moving[wp.ID()] = true
					break
				}
			}
		}
	}

	fresh := g.CreateCollection(c.Level())
	for _, child := range children {
		if !moving[child.ID()] {
			continue
		}
		if err := g.Assign(child.ID(), fresh); err != nil {
			return nil, nil, err
		}
	}
	return c, fresh, nil
}

// splitNeighbours returns the members adjacent to wp in either direction,
// ordered along axis
func splitNeighbours(mesh *NavMesh, wp Waypoint, member map[ID]bool, axis int) []Waypoint {
	if mesh == nil {
		return nil
	}
	var result []Waypoint
	seen := make(map[ID]bool)
	for _, n := range append(mesh.Successors(wp.ID()), mesh.Predecessors(wp.ID())...) {
		if member[n.ID()] && !seen[n.ID()] {
			seen[n.ID()] = true
			result = append(result, n)
		}
	}
	sortAlong(result, axis)
	return result
}

// sortAlong orders waypoints by their coordinate on axis, then by ID
func sortAlong(wps []Waypoint, axis int) {
	sort.SliceStable(wps, func(i, j int) bool {
		pi, pj := wps[i].Position()[axis], wps[j].Position()[axis]
		if pi != pj {
			return pi < pj
		}
		return wps[i].ID() < wps[j].ID()
	})
}

func widestAxis(wps []Waypoint) int {
	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, wp := range wps {
		p := wp.Position()
		for i := 0; i < 3; i++ {
			lo[i] = math.Min(lo[i], p[i])
			hi[i] = math.Max(hi[i], p[i])
		}
	}
	axis := 0
	for i := 1; i < 3; i++ {
		if hi[i]-lo[i] > hi[axis]-lo[axis] {
			axis = i
		}
	}
	return axis
}
