package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"waypoint-planner/waypoint"
)

// server owns the navigation graph. mu serializes every request that touches
// the graph or the planner, searches included: the planner reuses its search
// space between calls.
type server struct {
	mu      deadlock.Mutex
	graph   *waypoint.Graph
	astar   *waypoint.AStar
	builder *waypoint.ProximityBuilder
	keepOut waypoint.KeepOut

	cfg Config
	log *zap.Logger
}

func newServer(cfg Config, log *zap.Logger) *server {
	s := &server{
		builder: waypoint.NewProximityBuilder(cfg.Graph.MaxChildren),
		cfg:     cfg,
		log:     log,
	}
	s.graph = waypoint.NewGraph(
		waypoint.WithLogger(log.Named("graph")),
		waypoint.WithBuilder(s.builder),
		waypoint.WithMaxLevels(cfg.Graph.MaxLevels),
		waypoint.WithOnClear(func() { log.Debug("graph cleared") }),
	)
	s.astar = waypoint.NewAStar(s.graph,
		waypoint.WithMaxNodes(cfg.Route.MaxNodes),
		waypoint.WithSearchLogger(log.Named("astar")),
	)
	return s
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/graph/roadmap", s.roadmapHandler)
	mux.HandleFunc("/graph/waypoints", s.insertWaypointsHandler)
	mux.HandleFunc("/graph/waypoints/{id}", s.removeWaypointHandler)
	mux.HandleFunc("/graph/edges", s.edgesHandler)
	mux.HandleFunc("/graph/lines", s.linesHandler)
	mux.HandleFunc("/graph/save", s.saveHandler)
	mux.HandleFunc("/route", s.routeHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return withCORS(mux)
}

// load restores the snapshot when one exists, otherwise builds the graph from
// the GeoJSON seed when one is configured
func (s *server) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := s.cfg.Graph.KeepOutDir; dir != "" {
		zones, err := waypoint.LoadKeepOutDir(dir, s.log.Named("keepout"))
		if err != nil {
			return fmt.Errorf("load keep-out zones: %w", err)
		}
		s.keepOut = zones
	}

	if path := s.cfg.Graph.SnapshotPath; path != "" {
		err := waypoint.LoadSnapshot(s.graph, path)
		switch {
		case err == nil:
			s.log.Info("loaded snapshot", zap.String("path", path),
				zap.Int("waypoints", s.leafCount()), zap.Int("levels", s.graph.NumSearchLevels()))
			return nil
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("load snapshot: %w", err)
		}
		s.log.Info("no snapshot found (this is normal on first run)", zap.String("path", path))
	}

	if path := s.cfg.Graph.SeedGeoJSON; path != "" {
		src, err := waypoint.LoadGeoJSON(path)
		if err != nil {
			return fmt.Errorf("load seed: %w", err)
		}
		mesh := src.Mesh
		// A seed holding only keep-out zones is routed around their corners
		if zones := append(src.KeepOut, s.keepOut...); mesh.Len() == 0 && len(zones) > 0 {
			vmesh, _, err := waypoint.GenerateVisibilityMesh(zones, waypoint.VisibilityConfig{
				Margin:  s.cfg.Roadmap.ZoneMargin,
				FirstID: 1,
			}, s.log.Named("visibility"))
			if err != nil {
				return fmt.Errorf("build seed visibility mesh: %w", err)
			}
			mesh = vmesh
		}
		if err := s.graph.CreateGraph(mesh, s.builder); err != nil {
			return fmt.Errorf("build seed graph: %w", err)
		}
		s.log.Info("built graph from seed", zap.String("path", path),
			zap.Int("waypoints", mesh.Len()), zap.Int("keepOutZones", len(src.KeepOut)))
	}
	return nil
}

func (s *server) leafCount() int {
	if sl := s.graph.SearchLevel(0); sl != nil {
		return sl.Len()
	}
	return 0
}

// withCORS lets browser front ends call every route. Preflight requests are
// answered here and never reach the mux.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to write response", zap.Int("status", status), zap.Error(err))
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

type roadmapRequest struct {
	Kind             string        `json:"kind,omitempty"` // "prm" (default) or "visibility"
	Samples          int           `json:"samples"`
	ConnectionRadius float64       `json:"connectionRadius"`
	Min              *[3]float64   `json:"min,omitempty"`
	Max              *[3]float64   `json:"max,omitempty"`
	Seed             int64         `json:"seed,omitempty"`
	KeepOut          []orb.Polygon `json:"keepOut,omitempty"`
	Margin           float64       `json:"margin,omitempty"`
	Epsilon          float64       `json:"epsilon,omitempty"`
	Altitude         float64       `json:"altitude,omitempty"`
	Force            bool          `json:"force,omitempty"` // Set to true to force rebuild
}

// POST /graph/roadmap - sample a roadmap, or link the corners of the keep-out
// zones, and build the hierarchy over it
func (s *server) roadmapHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req roadmapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Warn("invalid roadmap request", zap.Error(err))
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	def := s.cfg.Roadmap
	if req.Samples == 0 {
		req.Samples = def.Samples
	}
	if req.ConnectionRadius == 0 {
		req.ConnectionRadius = def.ConnectionRadius
	}
	if req.Min == nil {
		req.Min = &def.Min
	}
	if req.Max == nil {
		req.Max = &def.Max
	}
	if len(req.KeepOut) == 0 {
		req.KeepOut = s.keepOut
	}
	if req.Margin == 0 {
		req.Margin = def.ZoneMargin
	}
	switch req.Kind {
	case "", "prm":
		if req.Samples < 1 || req.ConnectionRadius <= 0 {
			s.writeError(w, http.StatusBadRequest, "samples and connectionRadius must be positive")
			return
		}
	case "visibility":
		if len(req.KeepOut) == 0 {
			s.writeError(w, http.StatusBadRequest, "visibility roadmap needs keepOut zones")
			return
		}
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown roadmap kind %q", req.Kind))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph.Len() > 0 && !req.Force {
		s.log.Info("roadmap already exists, rebuild refused without force")
		s.writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   "graph already exists",
			"message": "Graph is already built. Set 'force: true' to rebuild, or restart the server.",
		})
		return
	}

	resp := map[string]any{"success": true}
	var mesh *waypoint.NavMesh
	if req.Kind == "visibility" {
		vmesh, stats, err := waypoint.GenerateVisibilityMesh(req.KeepOut, waypoint.VisibilityConfig{
			Margin:   req.Margin,
			Epsilon:  req.Epsilon,
			Altitude: req.Altitude,
			FirstID:  1,
		}, s.log.Named("visibility"))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mesh = vmesh
		resp["waypoints"] = stats.Vertices
		resp["edges"] = stats.Edges
		resp["zones"] = stats.Zones
	} else {
		pmesh, stats := waypoint.GenerateRoadmap(waypoint.RoadmapConfig{
			Samples:          req.Samples,
			ConnectionRadius: req.ConnectionRadius,
			Min:              mgl64.Vec3(*req.Min),
			Max:              mgl64.Vec3(*req.Max),
			FirstID:          1,
			Seed:             req.Seed,
			KeepOut:          req.KeepOut,
		}, s.log.Named("roadmap"))
		mesh = pmesh
		resp["waypoints"] = stats.Samples
		resp["edges"] = stats.Edges
		resp["rejectedEdges"] = stats.RejectedEdges
	}

	if err := s.graph.CreateGraph(mesh, s.builder); err != nil {
		s.log.Error("failed to build hierarchy", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp["levels"] = s.graph.NumSearchLevels()
	s.writeJSON(w, http.StatusOK, resp)
}

type waypointRequest struct {
	ID       waypoint.ID   `json:"id"`
	Position [3]float64    `json:"position"`
	Links    []waypoint.ID `json:"links,omitempty"` // linked in both directions
}

// POST /graph/waypoints - insert or move waypoints
func (s *server) insertWaypointsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Waypoints []waypointRequest `json:"waypoints"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, wr := range req.Waypoints {
		if err := waypoint.CheckLeafID(wr.ID); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []string
	inserted, moved := 0, 0
	for _, wr := range req.Waypoints {
		ok, err := s.graph.PutWaypoint(waypoint.NewPoint(wr.ID, mgl64.Vec3(wr.Position)))
		switch {
		case ok:
			inserted++
		case err == nil:
			moved++
		}
		if err != nil {
			failed = append(failed, err.Error())
		}
	}

	for _, wr := range req.Waypoints {
		for _, other := range wr.Links {
			for _, err := range []error{s.graph.AddEdge(wr.ID, other), s.graph.AddEdge(other, wr.ID)} {
				if err != nil {
					failed = append(failed, err.Error())
				}
			}
		}
	}

	// The first waypoints of an empty service get a hierarchy here; later ones
	// are placed by the builder as they arrive
	if s.graph.NumSearchLevels() < 2 && s.leafCount() > 0 {
		if err := s.graph.BuildHierarchy(s.builder); err != nil {
			s.log.Error("failed to build hierarchy", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.log.Info("waypoints inserted", zap.Int("inserted", inserted), zap.Int("moved", moved),
		zap.Int("failedLinks", len(failed)))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":  len(failed) == 0,
		"inserted": inserted,
		"moved":    moved,
		"errors":   failed,
	})
}

// DELETE /graph/waypoints/{id}
func (s *server) removeWaypointHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid waypoint id")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.graph.RemoveWaypoint(waypoint.ID(id)) {
		s.writeError(w, http.StatusNotFound, "waypoint not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

type edgeRequest struct {
	From          waypoint.ID `json:"from"`
	To            waypoint.ID `json:"to"`
	Bidirectional bool        `json:"bidirectional,omitempty"`
}

// POST /graph/edges - add directed edges between waypoints on the same level
func (s *server) edgesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Edges []edgeRequest `json:"edges"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, e := range req.Edges {
		err := s.graph.AddEdge(e.From, e.To)
		if err == nil && e.Bidirectional {
			err = s.graph.AddEdge(e.To, e.From)
		}
		switch {
		case errors.Is(err, waypoint.ErrWaypointNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		case err != nil:
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		added++
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "added": added})
}

type routeRequest struct {
	Start       *[3]float64 `json:"start,omitempty"`
	End         *[3]float64 `json:"end,omitempty"`
	From        waypoint.ID `json:"from,omitempty"`
	To          waypoint.ID `json:"to,omitempty"`
	SingleLevel bool        `json:"singleLevel,omitempty"`
}

type routeResponse struct {
	Success        bool             `json:"success"`
	Result         string           `json:"result"`
	Message        string           `json:"message,omitempty"`
	Waypoints      []waypoint.ID    `json:"waypoints,omitempty"`
	Positions      [][3]float64     `json:"positions,omitempty"`
	Length         float64          `json:"length,omitempty"`
	DistanceMeters float64          `json:"distanceMeters,omitempty"`
	NodesExplored  int              `json:"nodesExplored"`
	Geometry       *geojson.Feature `json:"geometry,omitempty"`
}

// POST /route - plan between two waypoints, given by id or snapped from a
// position
func (s *server) routeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.leafCount() == 0 {
		s.writeError(w, http.StatusBadRequest, "graph not built. Call /graph/roadmap first")
		return
	}

	from, err := s.resolve(req.From, req.Start)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "start: "+err.Error())
		return
	}
	to, err := s.resolve(req.To, req.End)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "end: "+err.Error())
		return
	}

	var path waypoint.Path
	var result waypoint.PathFindResult
	if req.SingleLevel {
		path, result = s.astar.FindSingleLevelPath(from, to)
	} else {
		path, result = s.astar.HierarchicalFindPath(from, to)
	}

	resp := routeResponse{
		Success:       result == waypoint.PathFound,
		Result:        result.String(),
		NodesExplored: s.astar.NodesExplored(),
	}
	if result != waypoint.PathFound {
		resp.Message = "no path found"
		s.log.Info("no path found", zap.Uint64("from", uint64(from)), zap.Uint64("to", uint64(to)),
			zap.Bool("singleLevel", req.SingleLevel), zap.Int("nodesExplored", resp.NodesExplored))
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Waypoints = path.IDs()
	for _, wp := range path {
		resp.Positions = append(resp.Positions, [3]float64(wp.Position()))
	}
	resp.Length = path.Length()
	resp.DistanceMeters = path.DistanceMeters()
	resp.Geometry = waypoint.PathFeature(path)

	s.log.Info("path found", zap.Uint64("from", uint64(from)), zap.Uint64("to", uint64(to)),
		zap.Int("waypoints", len(path)), zap.Float64("length", resp.Length),
		zap.Int("nodesExplored", resp.NodesExplored))
	s.writeJSON(w, http.StatusOK, resp)
}

// resolve returns id when set, otherwise the waypoint nearest to pos
func (s *server) resolve(id waypoint.ID, pos *[3]float64) (waypoint.ID, error) {
	if id != waypoint.NoID {
		if !s.graph.Contains(id) {
			return waypoint.NoID, fmt.Errorf("waypoint %d: %w", id, waypoint.ErrWaypointNotFound)
		}
		return id, nil
	}
	if pos == nil {
		return waypoint.NoID, errors.New("id or position required")
	}

	p := mgl64.Vec3(*pos)
	wp, ok := s.graph.ClosestWaypoint(p)
	if !ok {
		return waypoint.NoID, waypoint.ErrWaypointNotFound
	}
	if r := s.cfg.Route.SnapRadius; r > 0 && wp.Position().Sub(p).Len() > r {
		return waypoint.NoID, fmt.Errorf("no waypoint within %g: %w", r, waypoint.ErrWaypointNotFound)
	}
	return wp.ID(), nil
}

// GET /graph/lines?level=N - one search level as GeoJSON for visualization
func (s *server) linesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	level := 0
	if v := r.URL.Query().Get("level"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid level")
			return
		}
		level = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.graph.SearchLevel(level) == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("search level %d does not exist", level))
		return
	}
	fc := s.graph.LevelGeoJSON(level)
	s.log.Debug("returning search level", zap.Int("level", level), zap.Int("features", len(fc.Features)))
	s.writeJSON(w, http.StatusOK, fc)
}

// POST /graph/save - write the snapshot, optionally under another file name
// in the snapshot directory
func (s *server) saveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Snapshots only land next to the configured one, under a plain file name
	var req struct {
		Name string `json:"name,omitempty"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	path := s.cfg.Graph.SnapshotPath
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "no snapshot path configured")
		return
	}
	if req.Name != "" {
		if req.Name != filepath.Base(req.Name) || req.Name == "." || req.Name == ".." {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid snapshot name %q", req.Name))
			return
		}
		path = filepath.Join(filepath.Dir(path), req.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := waypoint.SaveSnapshot(s.graph, path); err != nil {
		s.log.Error("failed to save snapshot", zap.String("path", path), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info("snapshot saved", zap.String("path", path), zap.Int("entries", s.graph.Len()))
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "path": path})
}

// GET /health - readiness and counts
func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	leaves := s.leafCount()
	total := s.graph.Len()
	levels := s.graph.NumSearchLevels()
	s.mu.Unlock()

	status := "ready"
	if leaves == 0 {
		status = "waiting for graph"
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      status,
		"waypoints":   leaves,
		"collections": total - leaves,
		"levels":      levels,
	})
}
