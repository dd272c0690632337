package waypoint

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Path is an ordered list of waypoints from start to goal, inclusive
type Path []Waypoint

// IDs returns the waypoint IDs along the path
func (p Path) IDs() []ID {
	ids := make([]ID, len(p))
	for i, wp := range p {
		ids[i] = wp.ID()
	}
	return ids
}

// Length returns the summed Euclidean length of the path
func (p Path) Length() float64 {
	total := 0.0
	for i := 1; i < len(p); i++ {
		total += Distance(p[i-1], p[i])
	}
	return total
}

// LineString returns the path projected onto the XY plane
func (p Path) LineString() orb.LineString {
	ls := make(orb.LineString, len(p))
	for i, wp := range p {
		ls[i] = toOrb(wp)
	}
	return ls
}

// DistanceMeters returns the length of the path in metres, reading X as
// longitude and Y as latitude
func (p Path) DistanceMeters() float64 {
	total := 0.0
	for i := 1; i < len(p); i++ {
		total += geo.Distance(toOrb(p[i-1]), toOrb(p[i]))
	}
	return total
}

func toOrb(wp Waypoint) orb.Point {
	pos := wp.Position()
	return orb.Point{pos[0], pos[1]}
}
