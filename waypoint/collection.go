package waypoint

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// ChildEdge is an edge between two waypoints one level below a collection.
// From is always a child of the collection that stores the edge.
type ChildEdge struct {
	From ID
	To   ID
}

// Collection groups waypoints of one search level into a single waypoint of
// the level above. Its position is the centroid of its children.
type Collection struct {
	id       ID
	level    int
	parent   ID
	centroid mgl64.Vec3
	radius   float64

	children []Waypoint

	// edges is keyed by the collection that contains ChildEdge.To: a sibling
	// at this level, or this collection itself for internal edges.
	edges map[ID][]ChildEdge

	owner *Graph
}

// NewCollection creates an empty collection that is not yet part of a graph.
// Register it with Graph.InsertCollection or Graph.Assign.
func NewCollection(id ID) *Collection {
	return newCollection(id, 0)
}

func newCollection(id ID, level int) *Collection {
	return &Collection{
		id:    id,
		level: level,
		edges: make(map[ID][]ChildEdge),
	}
}

// ID implements Waypoint
func (c *Collection) ID() ID { return c.id }

// Position implements Waypoint. It is the mean position of the children.
func (c *Collection) Position() mgl64.Vec3 { return c.centroid }

// Radius is the distance from the centroid that encloses every child
func (c *Collection) Radius() float64 { return c.radius }

// Level returns the search level the collection lives on
func (c *Collection) Level() int { return c.level }

// Parent returns the ID of the enclosing collection, or NoID for a root
func (c *Collection) Parent() ID { return c.parent }

// Degree returns the number of children
func (c *Collection) Degree() int { return len(c.children) }

// Children returns the children in insertion order
func (c *Collection) Children() []Waypoint {
	return append([]Waypoint(nil), c.children...)
}

// ChildIDs returns the child IDs in insertion order
func (c *Collection) ChildIDs() []ID {
	ids := make([]ID, len(c.children))
	for i, child := range c.children {
		ids[i] = child.ID()
	}
	return ids
}

// HasChild reports whether id is a direct child
func (c *Collection) HasChild(id ID) bool {
	return c.childIndex(id) >= 0
}

// Child returns a direct child by ID
func (c *Collection) Child(id ID) (Waypoint, bool) {
	if i := c.childIndex(id); i >= 0 {
		return c.children[i], true
	}
	return nil, false
}

// Insert adds child to this collection. On a collection owned by a Graph this
// is Graph.Assign, so the child is moved out of any previous parent.
func (c *Collection) Insert(child Waypoint) bool {
	if c.owner != nil {
		return c.owner.Assign(child.ID(), c) == nil
	}
	return c.insertChild(child)
}

// Remove detaches a direct child. The child stays in the graph without a
// parent; edges that mention it are pruned from this collection.
func (c *Collection) Remove(id ID) bool {
	if !c.HasChild(id) {
		return false
	}
	if c.owner != nil {
		return c.owner.detach(id)
	}
	c.removeChild(id)
	c.Recalculate()
	return true
}

// GetEdges returns every child edge leaving childID
func (c *Collection) GetEdges(childID ID) []ChildEdge {
	if !c.HasChild(childID) {
		return nil
	}

	var result []ChildEdge
	for _, dest := range c.edgeKeys() {
		for _, e := range c.edges[dest] {
			if e.From == childID {
				result = append(result, e)
			}
		}
	}
	return result
}

// EdgesTo returns the child edges that lead into the collection dest
func (c *Collection) EdgesTo(dest ID) []ChildEdge {
	return append([]ChildEdge(nil), c.edges[dest]...)
}

// AddEdge records a child edge leading into the collection dest. The edge
// must start at a child of this collection. Duplicates are ignored.
func (c *Collection) AddEdge(dest ID, e ChildEdge) bool {
	if !c.HasChild(e.From) {
		return false
	}
	for _, existing := range c.edges[dest] {
		if existing == e {
			return false
		}
	}
	c.edges[dest] = append(c.edges[dest], e)
	return true
}

// NumEdges returns the number of child edges stored
func (c *Collection) NumEdges() int {
	n := 0
	for _, list := range c.edges {
		n += len(list)
	}
	return n
}

// ClearEdges drops the child-edge table
func (c *Collection) ClearEdges() {
	clear(c.edges)
}

// Recalculate recomputes centroid and radius from the children. Child
// collections contribute their own radius.
func (c *Collection) Recalculate() {
	if len(c.children) == 0 {
		c.radius = 0
		return
	}

	var sum mgl64.Vec3
	for _, child := range c.children {
		sum = sum.Add(child.Position())
	}
	c.centroid = sum.Mul(1 / float64(len(c.children)))

	c.radius = 0
	for _, child := range c.children {
		r := child.Position().Sub(c.centroid).Len()
		if sized, ok := child.(interface{ Radius() float64 }); ok {
			r += sized.Radius()
		}
		if r > c.radius {
			c.radius = r
		}
	}
}

func (c *Collection) String() string {
	return fmt.Sprintf("collection %d (level %d, %d children)", c.id, c.level, len(c.children))
}

func (c *Collection) childIndex(id ID) int {
	for i, child := range c.children {
		if child.ID() == id {
			return i
		}
	}
	return -1
}

func (c *Collection) insertChild(child Waypoint) bool {
	if c.HasChild(child.ID()) {
		return false
	}
	c.children = append(c.children, child)
	c.Recalculate()
	return true
}

// replaceChild swaps the stored value of a child that moved
func (c *Collection) replaceChild(child Waypoint) {
	if i := c.childIndex(child.ID()); i >= 0 {
		c.children[i] = child
	}
}

func (c *Collection) removeChild(id ID) bool {
	i := c.childIndex(id)
	if i < 0 {
		return false
	}
	c.children = append(c.children[:i], c.children[i+1:]...)
	c.pruneRefs(id)
	return true
}

// pruneRefs drops every child edge that mentions id, as an endpoint or as
// the destination collection.
func (c *Collection) pruneRefs(id ID) {
	delete(c.edges, id)
	for dest, list := range c.edges {
		kept := list[:0]
		for _, e := range list {
			if e.From != id && e.To != id {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(c.edges, dest)
			continue
		}
		c.edges[dest] = kept
	}
}

func (c *Collection) edgeKeys() []ID {
	keys := make([]ID, 0, len(c.edges))
	for k := range c.edges {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
