package waypoint

import (
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// RoadmapConfig describes a probabilistic roadmap
type RoadmapConfig struct {
	Samples          int
	ConnectionRadius float64
	Min, Max         mgl64.Vec3
	FirstID          ID
	Seed             int64 // zero seeds from the clock
	KeepOut          KeepOut
}

// RoadmapStats summarises a generated roadmap
type RoadmapStats struct {
	Samples       int
	Edges         int
	RejectedEdges int
	Elapsed       time.Duration
}

// GenerateRoadmap samples waypoints uniformly inside the bounds, skipping
// samples inside keep-out zones, and connects every pair whose horizontal
// distance is within the connection radius with edges in both directions.
// Altitude is ignored when connecting, so degree bounds and a metre altitude
// band can be mixed.
func GenerateRoadmap(cfg RoadmapConfig, logger *zap.Logger) (*NavMesh, RoadmapStats) {
	if logger == nil {
		logger = zap.NewNop()
	}
	startTime := time.Now()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	firstID := cfg.FirstID
	if firstID == NoID {
		firstID = 1
	}

	mesh := NewNavMesh()
	index := NewSpatialIndex()
	extent := cfg.Max.Sub(cfg.Min)

	// Step 1: random sampling within the bounds
	samples := make([]Waypoint, 0, cfg.Samples)
	maxAttempts := cfg.Samples * 10
	for attempts := 0; len(samples) < cfg.Samples && attempts < maxAttempts; attempts++ {
		pos := cfg.Min.Add(mgl64.Vec3{
			rng.Float64() * extent[0],
			rng.Float64() * extent[1],
			rng.Float64() * extent[2],
		})
		wp := NewPoint(firstID+ID(len(samples)), pos)
		if cfg.KeepOut.Contains(toOrb(wp)) {
			continue
		}

		samples = append(samples, wp)
		mesh.AddWaypoint(wp)
		index.Insert(NewPoint(wp.ID(), mgl64.Vec3{pos[0], pos[1], 0}))
	}

	if len(samples) < cfg.Samples {
		logger.Warn("roadmap generated fewer samples than requested",
			zap.Int("samples", len(samples)), zap.Int("requested", cfg.Samples))
	}

	// Step 2: connect nearby samples
	stats := RoadmapStats{Samples: len(samples)}
	zones := NewZoneIndex(cfg.KeepOut)
	for _, wp := range samples {
		pos := wp.Position()
		for _, near := range index.InRadius(mgl64.Vec3{pos[0], pos[1], 0}, cfg.ConnectionRadius) {
			if near.ID() <= wp.ID() {
				continue
			}
			other := samples[near.ID()-firstID]
			if !zones.IsPathClear(toOrb(wp), toOrb(other)) {
				stats.RejectedEdges++
				continue
			}
			mesh.AddEdge(wp, other)
			mesh.AddEdge(other, wp)
			stats.Edges++
		}
	}

	stats.Elapsed = time.Since(startTime)
	logger.Info("roadmap built",
		zap.Int("waypoints", stats.Samples),
		zap.Int("edges", stats.Edges),
		zap.Int("rejectedEdges", stats.RejectedEdges),
		zap.Duration("took", stats.Elapsed))
	return mesh, stats
}
