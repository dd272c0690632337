package waypoint

import (
	"errors"
	"fmt"
	"sort"
)

// Validate walks the index and the tree and reports every structural
// inconsistency it finds: broken parent links, level violations, cycles,
// level lists that disagree with the index, child edges that reference
// missing waypoints, and collections that do not hang below a single root on
// the top level. Leaves without a parent are outside the hierarchy and
// allowed.
func (g *Graph) Validate() error {
	var errs []error
	report := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrCorruptGraph, fmt.Sprintf(format, args...)))
	}

	listed := 0
	for _, sl := range g.idx.levels {
		for _, id := range sl.nodes {
			h := g.idx.get(id)
			switch {
			case h == nil:
				report("level %d lists unknown waypoint %d", sl.num, id)
			case h.level != sl.num:
				report("waypoint %d listed on level %d but stored on level %d", id, sl.num, h.level)
			}
			listed++
		}
	}
	if listed != len(g.idx.holders) {
		report("levels list %d waypoints, index holds %d", listed, len(g.idx.holders))
	}

	for id, h := range g.idx.holders {
		if h.kind == leafNode && h.level != 0 {
			report("leaf %d on level %d", id, h.level)
		}

		if h.parent != NoID {
			p := g.idx.collection(h.parent)
			switch {
			case p == nil:
				report("waypoint %d has missing parent %d", id, h.parent)
			case p.level != h.level+1:
				report("waypoint %d on level %d has parent %d on level %d", id, h.level, p.id, p.level)
			case !p.HasChild(id):
				report("parent %d does not list child %d", p.id, id)
			}
		}

		if h.kind != collectionNode {
			continue
		}
		c := h.col
		if c.id != id || c.level != h.level || c.parent != h.parent || c.owner != g {
			report("collection %d disagrees with its index entry", id)
		}
		for _, child := range c.children {
			ch := g.idx.get(child.ID())
			switch {
			case ch == nil:
				report("collection %d lists missing child %d", id, child.ID())
			case ch.parent != id:
				report("child %d of collection %d points to parent %d", child.ID(), id, ch.parent)
			}
		}
		for dest, edges := range c.edges {
			if !g.Contains(dest) {
				report("collection %d has edges into missing collection %d", id, dest)
			}
			for _, e := range edges {
				if !c.HasChild(e.From) || !g.Contains(e.To) {
					report("collection %d has dangling child edge %d -> %d", id, e.From, e.To)
				}
			}
		}
	}

	var roots []ID
	for id, h := range g.idx.holders {
		if h.kind == collectionNode && h.parent == NoID {
			roots = append(roots, id)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
	switch {
	case len(roots) > 1:
		report("%d collections without a parent: %v", len(roots), roots)
	case len(roots) == 1 && g.idx.get(roots[0]).level != g.idx.topLevel():
		report("root %d on level %d below top level %d", roots[0], g.idx.get(roots[0]).level, g.idx.topLevel())
	}

	// Parent chains must terminate within the number of waypoints
	for id := range g.idx.holders {
		steps := 0
		for cur := g.idx.get(id); cur != nil && cur.parent != NoID; cur = g.idx.get(cur.parent) {
			steps++
			if steps > len(g.idx.holders) {
				report("cycle through waypoint %d", id)
				break
			}
		}
	}

	return errors.Join(errs...)
}
