package waypoint

import "sort"

// NavMesh is a directed edge list between waypoints. It is the search space
// for A*, and each search level keeps one for its own edges.
//
// Adding A->B never adds B->A.
type NavMesh struct {
	nodes map[ID]Waypoint
	out   map[ID][]ID
	in    map[ID][]ID
	edges int
}

// NewNavMesh creates an empty NavMesh
func NewNavMesh() *NavMesh {
	return &NavMesh{
		nodes: make(map[ID]Waypoint),
		out:   make(map[ID][]ID),
		in:    make(map[ID][]ID),
	}
}

// AddWaypoint registers a waypoint without edges. Waypoints referenced by
// AddEdge are registered automatically.
func (nm *NavMesh) AddWaypoint(wp Waypoint) {
	nm.nodes[wp.ID()] = wp
}

// AddEdge inserts the directed edge from -> to. Adding an existing edge has no
// effect. Self loops are not rejected.
func (nm *NavMesh) AddEdge(from, to Waypoint) {
	nm.nodes[from.ID()] = from
	nm.nodes[to.ID()] = to

	if nm.Contains(from.ID(), to.ID()) {
		return
	}

	nm.out[from.ID()] = append(nm.out[from.ID()], to.ID())
	nm.in[to.ID()] = append(nm.in[to.ID()], from.ID())
	nm.edges++
}

// RemoveEdge removes the directed edge from -> to
func (nm *NavMesh) RemoveEdge(from, to ID) bool {
	succ, ok := removeID(nm.out[from], to)
	if !ok {
		return false
	}
	nm.setOut(from, succ)

	pred, _ := removeID(nm.in[to], from)
	nm.setIn(to, pred)
	nm.edges--
	return true
}

// RemoveOutgoingEdges removes every edge leaving id
func (nm *NavMesh) RemoveOutgoingEdges(id ID) {
	for _, to := range nm.out[id] {
		pred, _ := removeID(nm.in[to], id)
		nm.setIn(to, pred)
		nm.edges--
	}
	delete(nm.out, id)
}

// RemoveAllEdges removes every edge leaving or entering id
func (nm *NavMesh) RemoveAllEdges(id ID) {
	nm.RemoveOutgoingEdges(id)

	for _, from := range nm.in[id] {
		succ, _ := removeID(nm.out[from], id)
		nm.setOut(from, succ)
		nm.edges--
	}
	delete(nm.in, id)
}

// RemoveWaypoint removes all edges touching id and forgets the waypoint
func (nm *NavMesh) RemoveWaypoint(id ID) {
	nm.RemoveAllEdges(id)
	delete(nm.nodes, id)
}

// Clear removes every edge and waypoint
func (nm *NavMesh) Clear() {
	clear(nm.nodes)
	clear(nm.out)
	clear(nm.in)
	nm.edges = 0
}

// ClearEdges removes every edge but keeps the registered waypoints
func (nm *NavMesh) ClearEdges() {
	clear(nm.out)
	clear(nm.in)
	nm.edges = 0
}

// Contains reports whether the directed edge from -> to exists
func (nm *NavMesh) Contains(from, to ID) bool {
	for _, id := range nm.out[from] {
		if id == to {
			return true
		}
	}
	return false
}

// Waypoint returns a registered waypoint
func (nm *NavMesh) Waypoint(id ID) (Waypoint, bool) {
	wp, ok := nm.nodes[id]
	return wp, ok
}

// Successors returns the waypoints reachable from id over one edge, in the
// order the edges were added. An unknown id has no successors.
func (nm *NavMesh) Successors(id ID) []Waypoint {
	return nm.resolve(nm.out[id])
}

// Predecessors returns the waypoints with an edge into id
func (nm *NavMesh) Predecessors(id ID) []Waypoint {
	return nm.resolve(nm.in[id])
}

// Waypoints returns every registered waypoint ordered by ID
func (nm *NavMesh) Waypoints() []Waypoint {
	wps := make([]Waypoint, 0, len(nm.nodes))
	for _, wp := range nm.nodes {
		wps = append(wps, wp)
	}
	sort.Slice(wps, func(i, j int) bool { return wps[i].ID() < wps[j].ID() })
	return wps
}

// NumEdges returns the number of directed edges
func (nm *NavMesh) NumEdges() int {
	return nm.edges
}

// Len returns the number of registered waypoints
func (nm *NavMesh) Len() int {
	return len(nm.nodes)
}

// Range calls fn for every edge, ordered by source ID and then by insertion.
// Iteration stops when fn returns false.
func (nm *NavMesh) Range(fn func(from, to Waypoint) bool) {
	froms := make([]ID, 0, len(nm.out))
	for id := range nm.out {
		froms = append(froms, id)
	}
	sort.Slice(froms, func(i, j int) bool { return froms[i] < froms[j] })

	for _, from := range froms {
		for _, to := range nm.out[from] {
			if !fn(nm.nodes[from], nm.nodes[to]) {
				return
			}
		}
	}
}

func (nm *NavMesh) resolve(ids []ID) []Waypoint {
	if len(ids) == 0 {
		return nil
	}
	wps := make([]Waypoint, 0, len(ids))
	for _, id := range ids {
		wps = append(wps, nm.nodes[id])
	}
	return wps
}

func (nm *NavMesh) setOut(id ID, ids []ID) {
	if len(ids) == 0 {
		delete(nm.out, id)
		return
	}
	nm.out[id] = ids
}

func (nm *NavMesh) setIn(id ID, ids []ID) {
	if len(ids) == 0 {
		delete(nm.in, id)
		return
	}
	nm.in[id] = ids
}

// removeID deletes the first occurrence of id, keeping order
func removeID(ids []ID, id ID) ([]ID, bool) {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...), true
		}
	}
	return ids, false
}
