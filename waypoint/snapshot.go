package waypoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Snapshot is a serializable copy of a graph: leaves, level 0 edges and the
// collection tree. Derived edges are recomputed on restore.
type Snapshot struct {
	Waypoints   []SnapshotWaypoint   `json:"waypoints"`
	Collections []SnapshotCollection `json:"collections"`
	Edges       []SnapshotEdge       `json:"edges"`
}

// SnapshotWaypoint is a leaf waypoint
type SnapshotWaypoint struct {
	ID       ID         `json:"id"`
	Position [3]float64 `json:"position"`
}

// SnapshotCollection is a collection and its children in order
type SnapshotCollection struct {
	ID       ID   `json:"id"`
	Level    int  `json:"level"`
	Children []ID `json:"children"`
}

// SnapshotEdge is a directed edge between leaves
type SnapshotEdge struct {
	From ID `json:"from"`
	To   ID `json:"to"`
}

// Snapshot captures the current graph
func (g *Graph) Snapshot() *Snapshot {
	s := &Snapshot{}

	if base := g.idx.level(0); base != nil {
		for _, id := range base.nodes {
			pos := g.idx.get(id).waypoint().Position()
			s.Waypoints = append(s.Waypoints, SnapshotWaypoint{ID: id, Position: [3]float64(pos)})
		}
		base.mesh.Range(func(from, to Waypoint) bool {
			s.Edges = append(s.Edges, SnapshotEdge{From: from.ID(), To: to.ID()})
			return true
		})
	}

	for _, sl := range g.idx.levels {
		if sl.num == 0 {
			continue
		}
		for _, c := range g.Collections(sl.num) {
			s.Collections = append(s.Collections, SnapshotCollection{
				ID:       c.id,
				Level:    c.level,
				Children: c.ChildIDs(),
			})
		}
	}
	return s
}

// Restore replaces the graph contents with a snapshot. On error the graph is
// left empty.
func (g *Graph) Restore(s *Snapshot) error {
	g.Clear()
	if err := g.restore(s); err != nil {
		g.Clear()
		return err
	}
	g.CreateAbstractEdges()
	return nil
}

func (g *Graph) restore(s *Snapshot) error {
	// Placement is replayed from the snapshot, not from the builder
	builder := g.builder
	g.builder = nil
	defer func() { g.builder = builder }()

	for _, w := range s.Waypoints {
		inserted, err := g.PutWaypoint(NewPoint(w.ID, mgl64.Vec3(w.Position)))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
		if !inserted {
			return fmt.Errorf("duplicate waypoint %d: %w", w.ID, ErrInvalidSnapshot)
		}
	}

	cols := append([]SnapshotCollection(nil), s.Collections...)
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Level < cols[j].Level })
	for _, sc := range cols {
		if sc.Level < 1 || !g.InsertCollection(NewCollection(sc.ID), sc.Level) {
			return fmt.Errorf("collection %d on level %d: %w", sc.ID, sc.Level, ErrInvalidSnapshot)
		}
	}
	for _, sc := range cols {
		c := g.idx.collection(sc.ID)
		for _, child := range sc.Children {
			if err := g.Assign(child, c); err != nil {
				return fmt.Errorf("collection %d: %w: %w", sc.ID, ErrInvalidSnapshot, err)
			}
		}
	}

	for _, e := range s.Edges {
		if err := g.AddEdge(e.From, e.To); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
	}
	return g.Validate()
}

// EncodeJSON serializes the snapshot as indented JSON
func (s *Snapshot) EncodeJSON() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshotJSON parses a JSON snapshot
func DecodeSnapshotJSON(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// SaveSnapshot writes the graph to filename: JSON for a .json extension and
// the binary encoding otherwise
func SaveSnapshot(g *Graph, filename string) error {
	s := g.Snapshot()

	var data []byte
	var err error
	if isJSON(filename) {
		data, err = s.EncodeJSON()
	} else {
		data, err = s.EncodeBinary()
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// LoadSnapshot reads a file written by SaveSnapshot into g
func LoadSnapshot(g *Graph, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var s *Snapshot
	if isJSON(filename) {
		s, err = DecodeSnapshotJSON(data)
	} else {
		s, err = DecodeSnapshotBinary(data)
	}
	if err != nil {
		return err
	}
	return g.Restore(s)
}

func isJSON(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".json")
}
