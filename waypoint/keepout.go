package waypoint

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// KeepOut is a set of planar zones that roadmap samples and edges must avoid.
// Only X and Y are considered.
type KeepOut []orb.Polygon

// Contains reports whether p lies inside any zone
func (k KeepOut) Contains(p orb.Point) bool {
	for _, zone := range k {
		if planar.PolygonContains(zone, p) {
			return true
		}
	}
	return false
}

// IsPathClear checks if a straight line between two points avoids every zone
func (k KeepOut) IsPathClear(a, b orb.Point) bool {
	for _, zone := range k {
		for _, ring := range zone {
			if crossesRing(a, b, ring) {
				return false
			}
		}

		// Either endpoint inside, or the segment lying entirely inside
		if planar.PolygonContains(zone, a) || planar.PolygonContains(zone, b) {
			return false
		}
		if planar.PolygonContains(zone, orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}) {
			return false
		}
	}
	return true
}

// crossesRing reports whether segment ab crosses or touches an edge of ring.
// An open ring is closed implicitly.
func crossesRing(a, b orb.Point, ring orb.Ring) bool {
	if len(ring) == 0 {
		return false
	}
	prev := ring[len(ring)-1]
	for _, p := range ring {
		if crosses(a, b, prev, p) {
			return true
		}
		prev = p
	}
	return false
}

// crosses reports whether segments ab and cd meet. Meeting only at a shared
// endpoint does not count, so paths may start on a zone corner.
func crosses(a, b, c, d orb.Point) bool {
	if a == c || a == d || b == c || b == d {
		return false
	}
	if side(a, b, c)*side(a, b, d) < 0 && side(c, d, a)*side(c, d, b) < 0 {
		return true
	}
	return touches(c, d, a) || touches(c, d, b) || touches(a, b, c) || touches(a, b, d)
}

// side is positive when r lies left of the line through p and q
func side(p, q, r orb.Point) float64 {
	return (q[0]-p[0])*(r[1]-p[1]) - (q[1]-p[1])*(r[0]-p[0])
}

func touches(p, q, r orb.Point) bool {
	return planar.DistanceFromSegment(p, q, r) < pointTolerance
}
