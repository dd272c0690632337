package waypoint

import "sort"

type nodeKind uint8

const (
	leafNode nodeKind = iota
	collectionNode
)

func (k nodeKind) String() string {
	switch k {
	case leafNode:
		return "leaf"
	case collectionNode:
		return "collection"
	}
	return "unknown"
}

// holder is the index entry of one ID
type holder struct {
	kind   nodeKind
	level  int
	parent ID
	leaf   Waypoint
	col    *Collection
}

func (h *holder) waypoint() Waypoint {
	switch h.kind {
	case leafNode:
		return h.leaf
	case collectionNode:
		return h.col
	}
	return nil
}

func (h *holder) setParent(id ID) {
	h.parent = id
	if h.kind == collectionNode {
		h.col.parent = id
	}
}

func (h *holder) setLevel(level int) {
	h.level = level
	if h.kind == collectionNode {
		h.col.level = level
	}
}

// SearchLevel is one depth of the hierarchy: its nodes and the edges between
// them.
type SearchLevel struct {
	num   int
	nodes []ID
	mesh  *NavMesh
}

func newSearchLevel(num int) *SearchLevel {
	return &SearchLevel{num: num, mesh: NewNavMesh()}
}

// Num returns the level number; 0 holds the leaves
func (sl *SearchLevel) Num() int { return sl.num }

// Nodes returns the IDs on this level in insertion order
func (sl *SearchLevel) Nodes() []ID { return append([]ID(nil), sl.nodes...) }

// Len returns the number of nodes on this level
func (sl *SearchLevel) Len() int { return len(sl.nodes) }

// NavMesh returns the edge store of this level
func (sl *SearchLevel) NavMesh() *NavMesh { return sl.mesh }

func (sl *SearchLevel) add(wp Waypoint) {
	sl.nodes = append(sl.nodes, wp.ID())
	sl.mesh.AddWaypoint(wp)
}

func (sl *SearchLevel) remove(id ID) {
	sl.nodes, _ = removeID(sl.nodes, id)
	sl.mesh.RemoveWaypoint(id)
}

// graphIndex maps every ID to its holder and keeps the search levels
type graphIndex struct {
	holders map[ID]*holder
	levels  []*SearchLevel

	// nextCol is the next candidate for an allocated collection ID. It
	// counts down from the top of the reserved range.
	nextCol ID
}

func newGraphIndex() *graphIndex {
	return &graphIndex{holders: make(map[ID]*holder), nextCol: maxCollectionID}
}

func (idx *graphIndex) get(id ID) *holder {
	return idx.holders[id]
}

func (idx *graphIndex) collection(id ID) *Collection {
	h := idx.holders[id]
	if h == nil || h.kind != collectionNode {
		return nil
	}
	return h.col
}

func (idx *graphIndex) put(h *holder) {
	wp := h.waypoint()
	idx.holders[wp.ID()] = h
	idx.levelOrCreate(h.level).add(wp)
}

func (idx *graphIndex) delete(id ID) {
	h := idx.holders[id]
	if h == nil {
		return
	}
	if sl := idx.level(h.level); sl != nil {
		sl.remove(id)
	}
	delete(idx.holders, id)
}

// nextID returns the highest free ID of the reserved range
func (idx *graphIndex) nextID() ID {
	for idx.holders[idx.nextCol] != nil {
		idx.nextCol--
	}
	id := idx.nextCol
	idx.nextCol--
	return id
}

func (idx *graphIndex) level(num int) *SearchLevel {
	i := sort.Search(len(idx.levels), func(i int) bool { return idx.levels[i].num >= num })
	if i < len(idx.levels) && idx.levels[i].num == num {
		return idx.levels[i]
	}
	return nil
}

func (idx *graphIndex) levelOrCreate(num int) *SearchLevel {
	i := sort.Search(len(idx.levels), func(i int) bool { return idx.levels[i].num >= num })
	if i < len(idx.levels) && idx.levels[i].num == num {
		return idx.levels[i]
	}
	sl := newSearchLevel(num)
	idx.levels = append(idx.levels, nil)
	copy(idx.levels[i+1:], idx.levels[i:])
	idx.levels[i] = sl
	return sl
}

// topLevel returns the highest level that holds nodes, or -1
func (idx *graphIndex) topLevel() int {
	for i := len(idx.levels) - 1; i >= 0; i-- {
		if len(idx.levels[i].nodes) > 0 {
			return idx.levels[i].num
		}
	}
	return -1
}

// dropEmptyLevels removes trailing levels without nodes
func (idx *graphIndex) dropEmptyLevels() {
	for len(idx.levels) > 0 && len(idx.levels[len(idx.levels)-1].nodes) == 0 {
		idx.levels = idx.levels[:len(idx.levels)-1]
	}
}

func (idx *graphIndex) reset() {
	clear(idx.holders)
	idx.levels = nil
	idx.nextCol = maxCollectionID
}
