// Package waypoint implements a hierarchical waypoint graph and the A* path
// planner that runs on it.
//
// Leaf waypoints are supplied by the caller. The Graph groups them into a tree
// of Collections, one search level per tree depth, and AStar plans either on a
// single level or coarse-to-fine across levels.
//
// Neither Graph nor AStar is safe for concurrent use. Every mutation and every
// search must be serialized by the caller.
package waypoint

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ID identifies a waypoint. Leaves and collections share one ID space.
type ID uint64

// NoID is the zero ID; it never names a waypoint.
const NoID ID = 0

// MaxLeafID is the highest ID a caller may give a leaf. IDs above it are
// reserved for the collections a Graph allocates, counting down from the top.
const MaxLeafID ID = math.MaxUint64 >> 1

const maxCollectionID ID = math.MaxUint64

// CheckLeafID reports whether id can name a caller's waypoint
func CheckLeafID(id ID) error {
	if id == NoID || id > MaxLeafID {
		return fmt.Errorf("waypoint id %d outside 1..%d: %w", id, MaxLeafID, ErrReservedID)
	}
	return nil
}

// Waypoint is anything with a stable identity and a position.
type Waypoint interface {
	ID() ID
	Position() mgl64.Vec3
}

// Point is the basic leaf waypoint.
type Point struct {
	id  ID
	pos mgl64.Vec3
}

// NewPoint creates a leaf waypoint
func NewPoint(id ID, pos mgl64.Vec3) Point {
	return Point{id: id, pos: pos}
}

// ID implements Waypoint
func (p Point) ID() ID { return p.id }

// Position implements Waypoint
func (p Point) Position() mgl64.Vec3 { return p.pos }

func (p Point) String() string {
	return fmt.Sprintf("waypoint %d (%.2f, %.2f, %.2f)", p.id, p.pos[0], p.pos[1], p.pos[2])
}

// Distance calculates Euclidean distance between two waypoints
func Distance(a, b Waypoint) float64 {
	return a.Position().Sub(b.Position()).Len()
}
