package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"waypoint-planner/waypoint"
)

// Config is the service configuration
type Config struct {
	Listen  string          `yaml:"listen"`
	Log     LogConfig       `yaml:"log"`
	Graph   GraphConfig     `yaml:"graph"`
	Route   RouteConfig     `yaml:"route"`
	Roadmap RoadmapDefaults `yaml:"roadmap"`
}

// LogConfig controls the zap logger and optional file rotation
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // empty logs to stdout only
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// GraphConfig controls hierarchy construction and persistence
type GraphConfig struct {
	MaxChildren  int    `yaml:"maxChildren"`
	MaxLevels    int    `yaml:"maxLevels"`
	SnapshotPath string `yaml:"snapshotPath"`
	SeedGeoJSON  string `yaml:"seedGeoJSON"`
	KeepOutDir   string `yaml:"keepOutDir"` // *.geojson zones applied to roadmaps that name none
}

// RouteConfig controls the planner
type RouteConfig struct {
	MaxNodes   int     `yaml:"maxNodes"`   // zero is unlimited
	SnapRadius float64 `yaml:"snapRadius"` // zero snaps to the nearest waypoint at any distance
}

// RoadmapDefaults fills the fields a POST /graph/roadmap request leaves out
type RoadmapDefaults struct {
	Samples          int        `yaml:"samples"`
	ConnectionRadius float64    `yaml:"connectionRadius"`
	Min              [3]float64 `yaml:"min"`
	Max              [3]float64 `yaml:"max"`
	ZoneMargin       float64    `yaml:"zoneMargin"` // clearance of visibility waypoints from zone corners
}

// DefaultConfig returns the built-in configuration. The roadmap bounds cover
// the Netherlands in lon/lat degrees at 30 to 120 m altitude. Samples are
// linked by horizontal distance, so the radius is in degrees too.
func DefaultConfig() Config {
	return Config{
		Listen: ":8080",
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Graph: GraphConfig{
			MaxChildren:  waypoint.DefaultMaxChildren,
			MaxLevels:    waypoint.DefaultMaxLevels,
			SnapshotPath: "waypoints.bin",
		},
		Roadmap: RoadmapDefaults{
			Samples:          500,
			ConnectionRadius: 0.1, // ~11 km
			Min:              [3]float64{3.3, 50.7, 30},
			Max:              [3]float64{7.2, 53.6, 120},
			ZoneMargin:       0.001, // ~100 m
		},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the service cannot run with
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address must be set"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Graph.MaxChildren < 2 {
		errs = append(errs, fmt.Errorf("graph.maxChildren %d must be at least 2", c.Graph.MaxChildren))
	}
	if c.Graph.MaxLevels < 2 {
		errs = append(errs, fmt.Errorf("graph.maxLevels %d must be at least 2", c.Graph.MaxLevels))
	}
	if c.Route.MaxNodes < 0 {
		errs = append(errs, fmt.Errorf("route.maxNodes %d must not be negative", c.Route.MaxNodes))
	}
	if c.Route.SnapRadius < 0 {
		errs = append(errs, fmt.Errorf("route.snapRadius %g must not be negative", c.Route.SnapRadius))
	}
	if c.Roadmap.Samples < 0 || c.Roadmap.ConnectionRadius < 0 || c.Roadmap.ZoneMargin < 0 {
		errs = append(errs, errors.New("roadmap samples, connectionRadius and zoneMargin must not be negative"))
	}
	for i := range c.Roadmap.Min {
		if c.Roadmap.Min[i] > c.Roadmap.Max[i] {
			errs = append(errs, fmt.Errorf("roadmap.min[%d] %g is above roadmap.max[%d] %g",
				i, c.Roadmap.Min[i], i, c.Roadmap.Max[i]))
		}
	}
	return errors.Join(errs...)
}
