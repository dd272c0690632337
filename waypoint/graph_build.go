package waypoint

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// CreateGraph replaces the contents of the graph with the waypoints and edges
// of nm, then builds the hierarchy with b. On error the graph is left empty.
func (g *Graph) CreateGraph(nm *NavMesh, b Builder) error {
	if err := checkBuilder(b); err != nil {
		return err
	}

	g.Clear()
	if nm == nil {
		return nil
	}

	for _, wp := range nm.Waypoints() {
		if err := CheckLeafID(wp.ID()); err != nil {
			g.Clear()
			return err
		}
		g.idx.put(&holder{kind: leafNode, level: 0, leaf: wp})
		g.spatial.Insert(wp)
	}
	nm.Range(func(from, to Waypoint) bool {
		g.idx.level(0).mesh.AddEdge(from, to)
		return true
	})

	if err := g.BuildHierarchy(b); err != nil {
		g.Clear()
		return err
	}
	return nil
}

// BuildHierarchy discards every collection and regroups the current leaves
// level by level until a single root remains. On error every collection is
// dropped again and only the leaves and their edges remain.
func (g *Graph) BuildHierarchy(b Builder) error {
	if err := checkBuilder(b); err != nil {
		return err
	}
	start := time.Now()

	g.builder = b
	g.dropCollections()

	base := g.idx.level(0)
	if base == nil || base.Len() == 0 {
		return nil
	}

	if err := g.buildLevels(b); err != nil {
		g.dropCollections()
		g.stale = false
		return err
	}

	g.stale = false
	g.logger.Info("waypoint hierarchy built",
		zap.Int("waypoints", base.Len()),
		zap.Int("levels", g.NumSearchLevels()),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (g *Graph) buildLevels(b Builder) error {
	for level := 1; ; level++ {
		if level >= g.maxLevels {
			return fmt.Errorf("build level %d: %w", level, ErrTooManyLevels)
		}

		nodes := g.idx.level(level - 1).Nodes()
		for _, id := range nodes {
			if err := g.place(b, id, level); err != nil {
				return err
			}
		}
		if err := g.CreateAbstractEdgesAtLevel(level); err != nil {
			return err
		}

		n := g.idx.level(level).Len()
		g.logger.Debug("built search level",
			zap.Int("level", level), zap.Int("children", len(nodes)), zap.Int("collections", n))

		if n == 1 {
			break
		}
		if n >= len(nodes) {
			return fmt.Errorf("build level %d: %d nodes grouped into %d collections: %w",
				level, len(nodes), n, ErrBuilderStalled)
		}
	}
	return nil
}

// place assigns one node of level-1 to a collection on level while the level
// is being built. New halves of a split stay unparented until the next level.
func (g *Graph) place(b Builder, id ID, level int) error {
	wp, _ := g.FindWaypoint(id)
	c, err := g.selectCollection(b, wp, level)
	if err != nil {
		return err
	}
	if err := g.Assign(id, c); err != nil {
		return err
	}
	_, err = g.splitIfFull(b, c)
	return err
}

// attach inserts node id, which lives on level-1, into the hierarchy on
// level. Full collections are split and their new halves attached one level
// up. Splitting the root grows a new root.
func (g *Graph) attach(b Builder, id ID, level int) error {
	if level >= g.maxLevels {
		return fmt.Errorf("attach %d at level %d: %w", id, level, ErrTooManyLevels)
	}

	if level > g.idx.topLevel() {
		root := g.CreateCollection(level)
		for _, n := range g.idx.level(level - 1).Nodes() {
			if h := g.idx.get(n); h != nil && h.parent == NoID {
				if err := g.Assign(n, root); err != nil {
					return err
				}
			}
		}
		return g.splitAndAttach(b, root)
	}

	// Derived edges of the node's own level drive the builder's choice
	if level-1 >= 1 {
		if err := g.CreateAbstractEdgesAtLevel(level - 1); err != nil {
			return err
		}
	}

	wp, _ := g.FindWaypoint(id)
	c := b.SelectBestCollection(g, wp, level)
	if c == nil {
		c = g.CreateCollection(level)
		if err := g.Assign(id, c); err != nil {
			return err
		}
		return g.attach(b, c.id, level+1)
	}
	if err := g.checkCandidate(c, level); err != nil {
		return err
	}
	if err := g.Assign(id, c); err != nil {
		return err
	}
	return g.splitAndAttach(b, c)
}

func (g *Graph) splitAndAttach(b Builder, c *Collection) error {
	fresh, err := g.splitIfFull(b, c)
	if err != nil || fresh == nil {
		return err
	}
	if err := g.attach(b, fresh.id, c.level+1); err != nil {
		return err
	}
	g.stale = true
	return nil
}

// splitIfFull splits c when it holds more children than the builder allows
// and returns the half that has no parent yet
func (g *Graph) splitIfFull(b Builder, c *Collection) (*Collection, error) {
	limit := b.MaxChildrenPerNode()
	if c.Degree() <= limit {
		return nil, nil
	}

	left, right, err := b.Split(g, c)
	if err != nil {
		return nil, fmt.Errorf("split collection %d: %w", c.id, err)
	}
	if left == nil || right == nil {
		return nil, fmt.Errorf("split collection %d returned nil half: %w", c.id, ErrSplitOverflow)
	}
	if left.Degree() > limit || right.Degree() > limit {
		return nil, fmt.Errorf("split collection %d into %d and %d children, max %d: %w",
			c.id, left.Degree(), right.Degree(), limit, ErrSplitOverflow)
	}

	g.logger.Debug("split collection",
		zap.Uint64("collection", uint64(c.id)),
		zap.Uint64("left", uint64(left.id)), zap.Uint64("right", uint64(right.id)))

	switch {
	case right.parent == NoID && right != c:
		return right, nil
	case left.parent == NoID && left != c:
		return left, nil
	}
	return nil, nil
}

func (g *Graph) selectCollection(b Builder, wp Waypoint, level int) (*Collection, error) {
	c := b.SelectBestCollection(g, wp, level)
	if c == nil {
		return g.CreateCollection(level), nil
	}
	return c, g.checkCandidate(c, level)
}

func (g *Graph) checkCandidate(c *Collection, level int) error {
	if g.idx.collection(c.id) != c {
		return fmt.Errorf("builder chose unknown collection %d: %w", c.id, ErrWaypointNotFound)
	}
	if c.level != level {
		return fmt.Errorf("builder chose collection %d on level %d, want %d: %w",
			c.id, c.level, level, ErrLevelMismatch)
	}
	return nil
}

// dropCollections removes every collection and detaches the leaves
func (g *Graph) dropCollections() {
	var kept []*SearchLevel
	for _, sl := range g.idx.levels {
		if sl.num == 0 {
			kept = append(kept, sl)
			continue
		}
		for _, id := range sl.nodes {
			if c := g.idx.collection(id); c != nil {
				c.owner = nil
			}
			delete(g.idx.holders, id)
		}
	}
	g.idx.levels = kept
	g.idx.nextCol = maxCollectionID

	if base := g.idx.level(0); base != nil {
		for _, id := range base.nodes {
			g.idx.holders[id].setParent(NoID)
		}
	}
}

func checkBuilder(b Builder) error {
	if b == nil {
		return fmt.Errorf("nil builder: %w", ErrInvalidBuilder)
	}
	if b.MaxChildrenPerNode() < 2 {
		return fmt.Errorf("max children per node %d: %w", b.MaxChildrenPerNode(), ErrInvalidBuilder)
	}
	return nil
}
