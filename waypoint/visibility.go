package waypoint

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
	"go.uber.org/zap"
)

// DefaultMaxVisibilityVertices caps the waypoints of a visibility mesh. Edge
// checks grow with the square of the vertex count.
const DefaultMaxVisibilityVertices = 1000

// VisibilityConfig describes a visibility mesh around keep-out zones
type VisibilityConfig struct {
	// Margin pushes each corner away from its zone so edges can pass it
	Margin float64
	// Epsilon simplifies zone outlines first; zero keeps them as given
	Epsilon     float64
	Altitude    float64
	FirstID     ID
	MaxVertices int
}

// VisibilityStats summarises a generated visibility mesh
type VisibilityStats struct {
	Zones    int
	Vertices int
	Edges    int
	Elapsed  time.Duration
}

// GenerateVisibilityMesh places a waypoint just outside every corner of the
// keep-out zones and links each pair of corners with line of sight in both
// directions.
func GenerateVisibilityMesh(zones KeepOut, cfg VisibilityConfig, logger *zap.Logger) (*NavMesh, VisibilityStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	startTime := time.Now()

	maxVertices := cfg.MaxVertices
	if maxVertices <= 0 {
		maxVertices = DefaultMaxVisibilityVertices
	}
	nextID := cfg.FirstID
	if nextID == NoID {
		nextID = 1
	}

	zones = PrepareKeepOut(zones, cfg.Epsilon)
	stats := VisibilityStats{Zones: len(zones)}

	mesh := NewNavMesh()
	var corners []Waypoint
	seen := make(map[orb.Point]bool)
	for _, zone := range zones {
		centroid, _ := planar.CentroidArea(zone)
		outer := zone[0]
		for i, v := range outer {
			// The closing point repeats the first
			if i == len(outer)-1 && v.Equal(outer[0]) {
				break
			}
			p := pushOut(v, centroid, cfg.Margin)
			if seen[p] || zones.Contains(p) {
				continue
			}
			seen[p] = true

			if len(corners) >= maxVertices {
				return nil, stats, fmt.Errorf("more than %d corners in %d zones: %w",
					maxVertices, len(zones), ErrTooManyVertices)
			}
			wp := NewPoint(nextID, mgl64.Vec3{p[0], p[1], cfg.Altitude})
			nextID++
			corners = append(corners, wp)
			mesh.AddWaypoint(wp)
		}
	}
	stats.Vertices = len(corners)

	index := NewZoneIndex(zones)
	for i, a := range corners {
		for _, b := range corners[i+1:] {
			if !index.IsPathClear(toOrb(a), toOrb(b)) {
				continue
			}
			mesh.AddEdge(a, b)
			mesh.AddEdge(b, a)
			stats.Edges++
		}
	}

	stats.Elapsed = time.Since(startTime)
	logger.Info("visibility mesh built",
		zap.Int("zones", stats.Zones),
		zap.Int("waypoints", stats.Vertices),
		zap.Int("edges", stats.Edges),
		zap.Duration("took", stats.Elapsed))
	return mesh, stats, nil
}

// PrepareKeepOut drops zones lying inside other zones and, when epsilon is
// positive, simplifies the outlines with Douglas-Peucker. The input is not
// modified.
func PrepareKeepOut(zones KeepOut, epsilon float64) KeepOut {
	contained := make([]bool, len(zones))
	for i := range zones {
		for j := range zones {
			if i == j || contained[j] || len(zones[i]) == 0 {
				continue
			}
			if zoneInside(zones[i], zones[j]) {
				contained[i] = true
				break
			}
		}
	}

	var result KeepOut
	for i, zone := range zones {
		if contained[i] || len(zone) == 0 {
			continue
		}
		if epsilon > 0 {
			simplified, ok := simplify.DouglasPeucker(epsilon).Simplify(zone.Clone()).(orb.Polygon)
			if ok && len(simplified) > 0 && len(simplified[0]) >= 4 {
				zone = simplified
			}
		}
		result = append(result, zone)
	}
	return result
}

// zoneInside reports whether every corner of a lies inside b
func zoneInside(a, b orb.Polygon) bool {
	bound := b.Bound()
	if !bound.Contains(a.Bound().Min) || !bound.Contains(a.Bound().Max) {
		return false
	}
	for _, v := range a[0] {
		if !planar.PolygonContains(b, v) {
			return false
		}
	}
	return true
}

// pushOut moves v away from centroid by margin
func pushOut(v, centroid orb.Point, margin float64) orb.Point {
	if margin <= 0 {
		return v
	}
	dx, dy := v[0]-centroid[0], v[1]-centroid[1]
	d := planar.Distance(v, centroid)
	if d == 0 {
		return v
	}
	return orb.Point{v[0] + dx/d*margin, v[1] + dy/d*margin}
}
