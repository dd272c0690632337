package waypoint

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// DefaultMaxLevels bounds the height of a hierarchy
const DefaultMaxLevels = 32

// Graph is a hierarchy of waypoints. Level 0 holds the leaves supplied by the
// caller; every level above holds the collections that group the level below.
// Edges live on the level of their endpoints. The edges of levels above 0 are
// derived from the level below and rebuilt lazily after edits.
type Graph struct {
	idx       *graphIndex
	spatial   *SpatialIndex
	builder   Builder
	logger    *zap.Logger
	onClear   func()
	maxLevels int

	// stale marks the abstract edges as out of date
	stale bool
}

// Option configures a Graph
type Option func(*Graph)

// WithLogger sets the logger used for misuse reports and build summaries
func WithLogger(l *zap.Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithBuilder sets the builder used to place waypoints inserted after the
// hierarchy was built
func WithBuilder(b Builder) Option {
	return func(g *Graph) { g.builder = b }
}

// WithMaxLevels limits the number of search levels
func WithMaxLevels(n int) Option {
	return func(g *Graph) {
		if n > 1 {
			g.maxLevels = n
		}
	}
}

// WithOnClear registers a hook that runs at the end of Clear
func WithOnClear(fn func()) Option {
	return func(g *Graph) { g.onClear = fn }
}

// NewGraph creates an empty graph
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		idx:       newGraphIndex(),
		spatial:   NewSpatialIndex(),
		logger:    zap.NewNop(),
		maxLevels: DefaultMaxLevels,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Builder returns the builder used for incremental placement
func (g *Graph) Builder() Builder { return g.builder }

// Clear drops every waypoint, collection and edge, then runs the OnClear hook
func (g *Graph) Clear() {
	for _, h := range g.idx.holders {
		if h.kind == collectionNode {
			h.col.owner = nil
		}
	}
	g.idx.reset()
	g.spatial.Clear()
	g.stale = false

	if g.onClear != nil {
		g.onClear()
	}
}

// Len returns the number of waypoints and collections
func (g *Graph) Len() int {
	return len(g.idx.holders)
}

// Contains reports whether id names a waypoint or collection
func (g *Graph) Contains(id ID) bool {
	return g.idx.get(id) != nil
}

// FindWaypoint looks up a waypoint or collection by ID
func (g *Graph) FindWaypoint(id ID) (Waypoint, bool) {
	h := g.idx.get(id)
	if h == nil {
		return nil, false
	}
	return h.waypoint(), true
}

// FindCollection returns the parent of a leaf, or the collection itself when
// id names a collection. nil when id is unknown or the leaf has no parent.
func (g *Graph) FindCollection(id ID) *Collection {
	h := g.idx.get(id)
	if h == nil {
		return nil
	}
	switch h.kind {
	case collectionNode:
		return h.col
	case leafNode:
		return g.idx.collection(h.parent)
	}
	return nil
}

// GetParent returns the collection that directly contains id
func (g *Graph) GetParent(id ID) *Collection {
	h := g.idx.get(id)
	if h == nil {
		return nil
	}
	return g.idx.collection(h.parent)
}

// GetRootParent returns the top of the tree that contains id
func (g *Graph) GetRootParent(id ID) *Collection {
	c := g.GetParent(id)
	for c != nil && c.parent != NoID {
		c = g.idx.collection(c.parent)
	}
	return c
}

// HasPath reports whether two waypoints share a root, which is a
// precondition for a hierarchical search between them.
func (g *Graph) HasPath(a, b ID) bool {
	ra, rb := g.GetRootParent(a), g.GetRootParent(b)
	return ra != nil && ra == rb
}

// FindCommonParent returns the lowest collection containing both waypoints.
// Leaves start from their parent and collections from themselves.
func (g *Graph) FindCommonParent(a, b ID) *Collection {
	lc, rc := g.FindCollection(a), g.FindCollection(b)
	if lc == nil || rc == nil {
		return nil
	}

	// Bring both chains to the same level
	for lc != nil && rc != nil && lc.level < rc.level {
		lc = g.idx.collection(lc.parent)
	}
	for lc != nil && rc != nil && rc.level < lc.level {
		rc = g.idx.collection(rc.parent)
	}

	for lc != nil && rc != nil {
		if lc == rc {
			return lc
		}
		lc = g.idx.collection(lc.parent)
		rc = g.idx.collection(rc.parent)
	}
	return nil
}

// GetNodePath returns the chain of collections from FindCollection(id) up to
// and including ancestor. ok is false when ancestor is not on that chain.
func (g *Graph) GetNodePath(id ID, ancestor *Collection) ([]*Collection, bool) {
	if ancestor == nil {
		return nil, false
	}
	var chain []*Collection
	for c := g.FindCollection(id); c != nil; c = g.idx.collection(c.parent) {
		chain = append(chain, c)
		if c == ancestor {
			return chain, true
		}
	}
	return nil, false
}

// NumSearchLevels returns the number of levels, including level 0
func (g *Graph) NumSearchLevels() int {
	return len(g.idx.levels)
}

// SearchLevel returns level num, or nil
func (g *Graph) SearchLevel(num int) *SearchLevel {
	return g.idx.level(num)
}

// SearchLevelNum returns the level of id, or -1 when unknown
func (g *Graph) SearchLevelNum(id ID) int {
	h := g.idx.get(id)
	if h == nil {
		return -1
	}
	return h.level
}

// NavMeshAtSearchLevel returns the edge store of level num, or nil
func (g *Graph) NavMeshAtSearchLevel(num int) *NavMesh {
	if sl := g.idx.level(num); sl != nil {
		return sl.mesh
	}
	return nil
}

// Waypoints returns every waypoint and collection ordered by level, then by
// insertion within the level
func (g *Graph) Waypoints() []Waypoint {
	wps := make([]Waypoint, 0, len(g.idx.holders))
	for _, sl := range g.idx.levels {
		for _, id := range sl.nodes {
			wps = append(wps, g.idx.holders[id].waypoint())
		}
	}
	return wps
}

// Collections returns every collection on level num
func (g *Graph) Collections(num int) []*Collection {
	sl := g.idx.level(num)
	if sl == nil || num == 0 {
		return nil
	}
	cols := make([]*Collection, 0, len(sl.nodes))
	for _, id := range sl.nodes {
		if c := g.idx.collection(id); c != nil {
			cols = append(cols, c)
		}
	}
	return cols
}

// ClosestWaypoint returns the leaf nearest to pos
func (g *Graph) ClosestWaypoint(pos mgl64.Vec3) (Waypoint, bool) {
	return g.spatial.Nearest(pos)
}

// WaypointsInRadius returns the leaves within radius of pos, nearest first
func (g *Graph) WaypointsInRadius(pos mgl64.Vec3, radius float64) []Waypoint {
	return g.spatial.InRadius(pos, radius)
}

// CreateCollection creates an empty collection registered on level
func (g *Graph) CreateCollection(level int) *Collection {
	c := newCollection(g.idx.nextID(), level)
	g.register(c, level)
	return c
}

// InsertCollection registers an empty collection built by the caller. It
// fails when the ID is taken or the collection already has children.
func (g *Graph) InsertCollection(c *Collection, level int) bool {
	if c == nil || c.id == NoID || g.Contains(c.id) {
		return false
	}
	if c.Degree() > 0 || c.owner != nil {
		g.logger.Error("collection must be empty and unowned to be inserted",
			zap.Uint64("collection", uint64(c.id)))
		return false
	}
	g.register(c, level)
	return true
}

// InsertWaypoint adds a leaf. An ID that is already present is treated as a
// move: the stored value is replaced and the centroids above it recomputed,
// and false is returned. A *Collection is registered on level 1. Rejected
// waypoints are logged; use PutWaypoint to get the error instead.
func (g *Graph) InsertWaypoint(wp Waypoint) bool {
	if c, ok := wp.(*Collection); ok {
		return g.InsertCollection(c, 1)
	}
	inserted, err := g.PutWaypoint(wp)
	if err != nil {
		g.logger.Error("failed to insert waypoint", zap.Error(err))
	}
	return inserted
}

// PutWaypoint adds or moves a leaf like InsertWaypoint and reports why a
// waypoint was refused. IDs above MaxLeafID belong to collections and are
// rejected with ErrReservedID. A leaf is still stored when the builder fails
// to place it; that error is returned with inserted set.
func (g *Graph) PutWaypoint(wp Waypoint) (inserted bool, err error) {
	if wp == nil {
		return false, fmt.Errorf("nil waypoint: %w", ErrReservedID)
	}
	if _, ok := wp.(*Collection); ok {
		return false, fmt.Errorf("collection %d is not a leaf: %w", wp.ID(), ErrDuplicateID)
	}
	if err := CheckLeafID(wp.ID()); err != nil {
		return false, err
	}

	if h := g.idx.get(wp.ID()); h != nil {
		if h.kind != leafNode {
			return false, fmt.Errorf("waypoint %d names a collection: %w", wp.ID(), ErrDuplicateID)
		}
		g.move(h, wp)
		return false, nil
	}

	g.idx.put(&holder{kind: leafNode, level: 0, leaf: wp})
	g.spatial.Insert(wp)
	g.stale = true

	if g.builder != nil && g.idx.topLevel() >= 1 {
		if err := g.attach(g.builder, wp.ID(), 1); err != nil {
			return true, fmt.Errorf("failed to place waypoint %d in hierarchy: %w", wp.ID(), err)
		}
	}
	return true, nil
}

func (g *Graph) move(h *holder, wp Waypoint) {
	h.leaf = wp
	g.spatial.Remove(wp.ID())
	g.spatial.Insert(wp)

	if sl := g.idx.level(h.level); sl != nil {
		sl.mesh.AddWaypoint(wp)
	}
	if p := g.idx.collection(h.parent); p != nil {
		p.replaceChild(wp)
		g.recalculateUp(p)
	}
}

// Assign makes parent the parent of child. The parent must sit one level
// above the child; an empty root collection on another level is moved there.
// A child that already has a parent is moved out of it.
func (g *Graph) Assign(child ID, parent *Collection) error {
	h := g.idx.get(child)
	if h == nil {
		return fmt.Errorf("assign %d: %w", child, ErrWaypointNotFound)
	}
	if parent == nil {
		return fmt.Errorf("assign %d to nil parent: %w", child, ErrWaypointNotFound)
	}
	if parent.id == child {
		return fmt.Errorf("assign %d to itself: %w", child, ErrLevelMismatch)
	}

	want := h.level + 1
	ph := g.idx.get(parent.id)
	switch {
	case ph == nil:
		if !g.InsertCollection(parent, want) {
			return fmt.Errorf("assign %d: register parent %d: %w", child, parent.id, ErrDuplicateID)
		}
		ph = g.idx.get(parent.id)
	case ph.kind != collectionNode:
		return fmt.Errorf("assign %d to %d: %w", child, parent.id, ErrNotCollection)
	case ph.col != parent:
		return fmt.Errorf("assign %d: parent %d belongs to another collection: %w", child, parent.id, ErrDuplicateID)
	case ph.level != want:
		if parent.parent != NoID || parent.Degree() > 0 {
			g.logger.Error("parent must be one level above child",
				zap.Uint64("child", uint64(child)), zap.Int("childLevel", h.level),
				zap.Uint64("parent", uint64(parent.id)), zap.Int("parentLevel", ph.level))
			return fmt.Errorf("assign %d (level %d) to %d (level %d): %w",
				child, h.level, parent.id, ph.level, ErrLevelMismatch)
		}
		g.relevel(ph, want)
	}

	if h.parent == parent.id {
		return nil
	}
	if h.parent != NoID {
		g.detach(child)
	}

	parent.insertChild(h.waypoint())
	h.setParent(parent.id)
	g.recalculateUp(parent)
	g.stale = true
	return nil
}

// detach removes child from its parent. The child stays in the graph.
func (g *Graph) detach(child ID) bool {
	h := g.idx.get(child)
	if h == nil || h.parent == NoID {
		return false
	}
	p := g.idx.collection(h.parent)
	h.setParent(NoID)
	if p == nil {
		return false
	}
	p.removeChild(child)
	g.pruneChildEdges(child, h.level)
	g.recalculateUp(p)
	g.stale = true
	return true
}

// RemoveWaypoint removes a waypoint or a collection with its whole subtree.
// Collections emptied by the removal collapse, up to but not including the
// root.
func (g *Graph) RemoveWaypoint(id ID) bool {
	h := g.idx.get(id)
	if h == nil {
		return false
	}

	parent := g.idx.collection(h.parent)
	level := h.level
	g.removeSubtree(id)

	if parent != nil {
		parent.removeChild(id)
		g.pruneChildEdges(id, level)
		g.collapse(parent)
	}
	g.idx.dropEmptyLevels()
	g.stale = true
	return true
}

// collapse removes emptied collections walking up from c, stopping at the
// root
func (g *Graph) collapse(c *Collection) {
	for c != nil && c.Degree() == 0 && c.parent != NoID {
		parent := g.idx.collection(c.parent)
		g.removeSubtree(c.id)
		if parent != nil {
			parent.removeChild(c.id)
			g.pruneChildEdges(c.id, c.level)
		}
		c = parent
	}
	g.recalculateUp(c)
}

func (g *Graph) removeSubtree(id ID) {
	h := g.idx.get(id)
	if h == nil {
		return
	}

	if h.kind == collectionNode {
		for _, child := range h.col.ChildIDs() {
			g.removeSubtree(child)
		}
		h.col.owner = nil
	} else {
		g.spatial.Remove(id)
	}

	g.pruneChildEdges(id, h.level)
	g.idx.delete(id)
}

// pruneChildEdges drops references to id from the edge tables of the level
// above it
func (g *Graph) pruneChildEdges(id ID, level int) {
	for _, c := range g.Collections(level + 1) {
		c.pruneRefs(id)
	}
}

func (g *Graph) register(c *Collection, level int) {
	c.level = level
	c.parent = NoID
	c.owner = g
	g.idx.put(&holder{kind: collectionNode, level: level, col: c})
}

// relevel moves an empty root collection to another level
func (g *Graph) relevel(h *holder, level int) {
	if sl := g.idx.level(h.level); sl != nil {
		sl.remove(h.col.id)
	}
	h.setLevel(level)
	g.idx.levelOrCreate(level).add(h.col)
}

func (g *Graph) recalculateUp(c *Collection) {
	for c != nil {
		c.Recalculate()
		c = g.idx.collection(c.parent)
	}
}
