package waypoint

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// GeoJSONSource is what a GeoJSON file contributes: waypoints with their edges
// and keep-out zones
type GeoJSONSource struct {
	Mesh    *NavMesh
	KeepOut KeepOut
}

// ParseGeoJSON reads a FeatureCollection.
//
//   - Point features are waypoints. The "id" property is required; the
//     optional "z" property sets the height.
//   - LineString features with "from" and "to" properties are edges, added in
//     both directions unless "bidirectional" is false.
//   - Polygon and MultiPolygon features are keep-out zones.
func ParseGeoJSON(data []byte) (*GeoJSONSource, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feature collection: %w", err)
	}

	src := &GeoJSONSource{Mesh: NewNavMesh()}
	type edge struct {
		from, to ID
		both     bool
	}
	var edges []edge

	for i, f := range fc.Features {
		switch geom := f.Geometry.(type) {
		case orb.Point:
			id, ok := featureID(f.Properties, "id")
			if !ok {
				return nil, fmt.Errorf("feature %d: point without id: %w", i, ErrWaypointNotFound)
			}
			z := f.Properties.MustFloat64("z", 0)
			src.Mesh.AddWaypoint(NewPoint(id, mgl64.Vec3{geom[0], geom[1], z}))

		case orb.LineString:
			from, fok := featureID(f.Properties, "from")
			to, tok := featureID(f.Properties, "to")
			if !fok || !tok {
				return nil, fmt.Errorf("feature %d: edge without from/to: %w", i, ErrWaypointNotFound)
			}
			edges = append(edges, edge{from: from, to: to, both: f.Properties.MustBool("bidirectional", true)})

		case orb.Polygon:
			src.KeepOut = append(src.KeepOut, geom)

		case orb.MultiPolygon:
			for _, p := range geom {
				src.KeepOut = append(src.KeepOut, p)
			}
		}
	}

	// Edges may come before the points they reference
	for _, e := range edges {
		from, fok := src.Mesh.Waypoint(e.from)
		to, tok := src.Mesh.Waypoint(e.to)
		if !fok || !tok {
			return nil, fmt.Errorf("edge %d -> %d: %w", e.from, e.to, ErrWaypointNotFound)
		}
		src.Mesh.AddEdge(from, to)
		if e.both {
			src.Mesh.AddEdge(to, from)
		}
	}
	return src, nil
}

// LoadGeoJSON reads and parses a GeoJSON file
func LoadGeoJSON(filename string) (*GeoJSONSource, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseGeoJSON(data)
}

// LevelGeoJSON exports one search level for visualization: a Point feature
// per node and a LineString feature per edge. Edges present in both
// directions are emitted once with "bidirectional" set.
func (g *Graph) LevelGeoJSON(level int) *geojson.FeatureCollection {
	g.ensureAbstractEdges()

	fc := geojson.NewFeatureCollection()
	sl := g.idx.level(level)
	if sl == nil {
		return fc
	}

	for _, id := range sl.nodes {
		h := g.idx.get(id)
		wp := h.waypoint()
		f := geojson.NewFeature(toOrb(wp))
		f.Properties["id"] = uint64(id)
		f.Properties["z"] = wp.Position()[2]
		f.Properties["level"] = level
		f.Properties["kind"] = h.kind.String()
		if h.parent != NoID {
			f.Properties["parent"] = uint64(h.parent)
		}
		if h.kind == collectionNode {
			f.Properties["radius"] = h.col.Radius()
			f.Properties["children"] = h.col.Degree()
		}
		fc.Append(f)
	}

	sl.mesh.Range(func(from, to Waypoint) bool {
		both := sl.mesh.Contains(to.ID(), from.ID())
		if both && to.ID() < from.ID() {
			return true
		}
		f := geojson.NewFeature(orb.LineString{toOrb(from), toOrb(to)})
		f.Properties["from"] = uint64(from.ID())
		f.Properties["to"] = uint64(to.ID())
		f.Properties["bidirectional"] = both
		fc.Append(f)
		return true
	})
	return fc
}

// PathFeature returns a path as a LineString feature with its waypoint IDs
func PathFeature(p Path) *geojson.Feature {
	f := geojson.NewFeature(p.LineString())
	f.Properties["waypoints"] = p.IDs()
	f.Properties["length"] = p.Length()
	return f
}

func featureID(props geojson.Properties, key string) (ID, bool) {
	v, ok := props[key]
	if !ok {
		return NoID, false
	}
	n, ok := v.(float64)
	if !ok || n <= 0 || n != float64(uint64(n)) {
		return NoID, false
	}
	return ID(n), true
}
