package waypoint

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/go-gl/mathgl/mgl64"
)

// pointTolerance is the half-size of the box stored for each waypoint
const pointTolerance = 1e-9

// waypointEntry wraps a waypoint for R-tree storage
type waypointEntry struct {
	wp   Waypoint
	bbox rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (e *waypointEntry) Bounds() rtreego.Rect {
	return e.bbox
}

// SpatialIndex answers nearest and radius queries over leaf waypoints
type SpatialIndex struct {
	tree    *rtreego.Rtree
	entries map[ID]*waypointEntry
}

// NewSpatialIndex creates an empty index
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{
		tree:    rtreego.NewTree(3, 25, 50), // 3D, min 25, max 50 entries per node
		entries: make(map[ID]*waypointEntry),
	}
}

// Insert adds wp, replacing a previous entry with the same ID
func (si *SpatialIndex) Insert(wp Waypoint) {
	si.Remove(wp.ID())

	entry := &waypointEntry{wp: wp, bbox: toPoint(wp.Position()).ToRect(pointTolerance)}
	si.tree.Insert(entry)
	si.entries[wp.ID()] = entry
}

// Remove deletes the entry for id
func (si *SpatialIndex) Remove(id ID) bool {
	entry, ok := si.entries[id]
	if !ok {
		return false
	}
	si.tree.Delete(entry)
	delete(si.entries, id)
	return true
}

// Len returns the number of indexed waypoints
func (si *SpatialIndex) Len() int {
	return len(si.entries)
}

// Clear empties the index
func (si *SpatialIndex) Clear() {
	si.tree = rtreego.NewTree(3, 25, 50)
	clear(si.entries)
}

// Nearest returns the waypoint closest to pos
func (si *SpatialIndex) Nearest(pos mgl64.Vec3) (Waypoint, bool) {
	if len(si.entries) == 0 {
		return nil, false
	}
	item := si.tree.NearestNeighbor(toPoint(pos))
	if item == nil {
		return nil, false
	}
	return item.(*waypointEntry).wp, true
}

// InRadius returns the waypoints within radius of pos, nearest first
func (si *SpatialIndex) InRadius(pos mgl64.Vec3, radius float64) []Waypoint {
	if radius < pointTolerance {
		radius = pointTolerance
	}

	side := 2 * radius
	corner := toPoint(pos.Sub(mgl64.Vec3{radius, radius, radius}))
	bbox, err := rtreego.NewRect(corner, []float64{side, side, side})
	if err != nil {
		return []Waypoint{}
	}

	results := si.tree.SearchIntersect(bbox)
	wps := make([]Waypoint, 0, len(results))
	for _, item := range results {
		wp := item.(*waypointEntry).wp
		if wp.Position().Sub(pos).Len() <= radius {
			wps = append(wps, wp)
		}
	}

	sort.Slice(wps, func(i, j int) bool {
		di, dj := wps[i].Position().Sub(pos).Len(), wps[j].Position().Sub(pos).Len()
		if di != dj {
			return di < dj
		}
		return wps[i].ID() < wps[j].ID()
	})
	return wps
}

func toPoint(v mgl64.Vec3) rtreego.Point {
	return rtreego.Point{v[0], v[1], v[2]}
}
