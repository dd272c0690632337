package waypoint

import (
	"container/heap"

	"go.uber.org/zap"
)

// PathFindResult is the outcome of a search
type PathFindResult int

const (
	NoPath PathFindResult = iota
	PathFound
)

func (r PathFindResult) String() string {
	switch r {
	case NoPath:
		return "NO_PATH"
	case PathFound:
		return "PATH_FOUND"
	}
	return "UNKNOWN"
}

// CostFunc returns the cost of travelling along an edge
type CostFunc func(from, to Waypoint) float64

// HeuristicFunc estimates the remaining cost to goal. It must never
// overestimate, or paths are no longer shortest.
type HeuristicFunc func(from, goal Waypoint) float64

// searchNode is one entry of the open list. slot tracks its heap position
// and is -1 once the node is closed.
type searchNode struct {
	wp   Waypoint
	g, h float64
	seq  uint64
	from *searchNode
	slot int
}

func (n *searchNode) f() float64 { return n.g + n.h }

// before orders the open list by estimated total cost, then by remaining
// cost, then by discovery order
func before(a, b *searchNode) bool {
	switch fa, fb := a.f(), b.f(); {
	case fa != fb:
		return fa < fb
	case a.h != b.h:
		return a.h < b.h
	}
	return a.seq < b.seq
}

// openList holds the frontier of a search keyed by waypoint
type openList struct {
	nodes []*searchNode
	byID  map[ID]*searchNode
	seq   uint64
}

func newOpenList() *openList {
	return &openList{byID: make(map[ID]*searchNode)}
}

func (o *openList) Len() int           { return len(o.nodes) }
func (o *openList) Less(i, j int) bool { return before(o.nodes[i], o.nodes[j]) }

func (o *openList) Swap(i, j int) {
	o.nodes[i], o.nodes[j] = o.nodes[j], o.nodes[i]
	o.nodes[i].slot, o.nodes[j].slot = i, j
}

func (o *openList) Push(x any) {
	n := x.(*searchNode)
	n.slot = len(o.nodes)
	o.nodes = append(o.nodes, n)
}

func (o *openList) Pop() any {
	last := len(o.nodes) - 1
	n := o.nodes[last]
	o.nodes[last] = nil
	o.nodes = o.nodes[:last]
	n.slot = -1
	return n
}

// offer records a route to wp at cost g through from. A cheaper route to a
// waypoint already on the list replaces the old one.
func (o *openList) offer(wp Waypoint, g, h float64, from *searchNode) {
	if n, ok := o.byID[wp.ID()]; ok {
		if g < n.g {
			n.g, n.from = g, from
			heap.Fix(o, n.slot)
		}
		return
	}
	o.seq++
	n := &searchNode{wp: wp, g: g, h: h, seq: o.seq, from: from}
	o.byID[wp.ID()] = n
	heap.Push(o, n)
}

// next removes the most promising node
func (o *openList) next() *searchNode {
	n := heap.Pop(o).(*searchNode)
	delete(o.byID, n.wp.ID())
	return n
}

// AStar plans paths over a Graph
type AStar struct {
	graph     *Graph
	cost      CostFunc
	heuristic HeuristicFunc
	maxNodes  int
	logger    *zap.Logger

	// space is the search space of hierarchical refinement, rebuilt per level
	space *NavMesh

	nodesExplored int
}

// AStarOption configures an AStar
type AStarOption func(*AStar)

// WithCost replaces the edge cost, Euclidean distance by default
func WithCost(fn CostFunc) AStarOption {
	return func(a *AStar) {
		if fn != nil {
			a.cost = fn
		}
	}
}

// WithHeuristic replaces the goal estimate, Euclidean distance by default
func WithHeuristic(fn HeuristicFunc) AStarOption {
	return func(a *AStar) {
		if fn != nil {
			a.heuristic = fn
		}
	}
}

// WithMaxNodes stops a single search after expanding n nodes. Zero means no
// limit.
func WithMaxNodes(n int) AStarOption {
	return func(a *AStar) {
		if n >= 0 {
			a.maxNodes = n
		}
	}
}

// WithSearchLogger sets the logger for search diagnostics
func WithSearchLogger(l *zap.Logger) AStarOption {
	return func(a *AStar) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAStar creates a planner for g
func NewAStar(g *Graph, opts ...AStarOption) *AStar {
	a := &AStar{
		graph:     g,
		cost:      func(from, to Waypoint) float64 { return Distance(from, to) },
		heuristic: func(from, goal Waypoint) float64 { return Distance(from, goal) },
		logger:    zap.NewNop(),
		space:     NewNavMesh(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NodesExplored returns the number of nodes expanded by the last call
func (a *AStar) NodesExplored() int {
	return a.nodesExplored
}

// FindSingleLevelPath searches the edges of the level both waypoints live on
func (a *AStar) FindSingleLevelPath(from, to ID) (Path, PathFindResult) {
	a.nodesExplored = 0

	start, ok := a.graph.FindWaypoint(from)
	if !ok {
		return nil, NoPath
	}
	goal, ok := a.graph.FindWaypoint(to)
	if !ok {
		return nil, NoPath
	}

	level := a.graph.SearchLevelNum(from)
	if level != a.graph.SearchLevelNum(to) {
		a.logger.Debug("endpoints on different search levels",
			zap.Uint64("from", uint64(from)), zap.Uint64("to", uint64(to)))
		return nil, NoPath
	}

	if level > 0 {
		a.graph.ensureAbstractEdges()
	}
	return a.findPath(a.graph.NavMeshAtSearchLevel(level), start, goal)
}

// findPath computes the shortest path from start to goal using A* over space
func (a *AStar) findPath(space *NavMesh, start, goal Waypoint) (Path, PathFindResult) {
	if start.ID() == goal.ID() {
		return Path{start}, PathFound
	}
	if space == nil {
		return nil, NoPath
	}

	open := newOpenList()
	open.offer(start, 0, a.heuristic(start, goal), nil)
	closed := make(map[ID]bool)

	for open.Len() > 0 {
		if a.maxNodes > 0 && a.nodesExplored >= a.maxNodes {
			a.logger.Debug("search budget exhausted", zap.Int("maxNodes", a.maxNodes))
			return nil, NoPath
		}

		current := open.next()
		a.nodesExplored++
		if current.wp.ID() == goal.ID() {
			return reconstruct(current), PathFound
		}
		closed[current.wp.ID()] = true

		for _, next := range space.Successors(current.wp.ID()) {
			if closed[next.ID()] {
				continue
			}
			open.offer(next, current.g+a.cost(current.wp, next), a.heuristic(next, goal), current)
		}
	}
	return nil, NoPath
}

func reconstruct(goal *searchNode) Path {
	var path Path
	for node := goal; node != nil; node = node.from {
		path = append(path, node.wp)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
