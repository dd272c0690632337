package waypoint

import (
	"fmt"
	"path/filepath"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// zoneEntry wraps a keep-out zone for R-tree storage
type zoneEntry struct {
	zone orb.Polygon
	bbox rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (e *zoneEntry) Bounds() rtreego.Rect {
	return e.bbox
}

// ZoneIndex narrows keep-out checks to the zones near a segment
type ZoneIndex struct {
	tree *rtreego.Rtree
	size int
}

// NewZoneIndex indexes the bounding boxes of zones
func NewZoneIndex(zones KeepOut) *ZoneIndex {
	zi := &ZoneIndex{tree: rtreego.NewTree(2, 25, 50)}
	for _, zone := range zones {
		if len(zone) == 0 || len(zone[0]) == 0 {
			continue
		}
		bbox, err := boundToRect(zone.Bound())
		if err != nil {
			continue
		}
		zi.tree.Insert(&zoneEntry{zone: zone, bbox: bbox})
		zi.size++
	}
	return zi
}

// Len returns the number of indexed zones
func (zi *ZoneIndex) Len() int {
	return zi.size
}

// Query returns the zones whose bounding boxes intersect b
func (zi *ZoneIndex) Query(b orb.Bound) KeepOut {
	if zi.size == 0 {
		return nil
	}
	rect, err := boundToRect(b)
	if err != nil {
		return nil
	}
	results := zi.tree.SearchIntersect(rect)
	zones := make(KeepOut, 0, len(results))
	for _, item := range results {
		zones = append(zones, item.(*zoneEntry).zone)
	}
	return zones
}

// IsPathClear checks the segment against the zones near it
func (zi *ZoneIndex) IsPathClear(a, b orb.Point) bool {
	return zi.Query(orb.MultiPoint{a, b}.Bound()).IsPathClear(a, b)
}

// boundToRect pads b so flat bounds still make a valid rectangle
func boundToRect(b orb.Bound) (rtreego.Rect, error) {
	return rtreego.NewRect(
		rtreego.Point{b.Min[0] - pointTolerance, b.Min[1] - pointTolerance},
		[]float64{b.Max[0] - b.Min[0] + 2*pointTolerance, b.Max[1] - b.Min[1] + 2*pointTolerance},
	)
}

// LoadKeepOutDir collects the keep-out zones of every *.geojson file in dir.
// Files that cannot be read or parsed are logged and skipped.
func LoadKeepOutDir(dir string, logger *zap.Logger) (KeepOut, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.geojson"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	logger.Info("loading keep-out zones", zap.String("dir", dir), zap.Int("files", len(files)))
	var zones KeepOut
	for _, file := range files {
		src, err := LoadGeoJSON(file)
		if err != nil {
			logger.Warn("skipping keep-out file", zap.String("file", file), zap.Error(err))
			continue
		}
		zones = append(zones, src.KeepOut...)
		logger.Debug("loaded keep-out file", zap.String("file", filepath.Base(file)),
			zap.Int("zones", len(src.KeepOut)))
	}
	logger.Info("keep-out zones loaded", zap.Int("zones", len(zones)))
	return zones, nil
}
