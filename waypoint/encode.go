package waypoint

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Binary snapshot layout, protobuf wire compatible:
//
//	message Snapshot {
//	  repeated Waypoint waypoints = 1;
//	  repeated Collection collections = 2;
//	  repeated Edge edges = 3;
//	  uint32 version = 15;
//	}
//	message Waypoint { uint64 id = 1; double x = 2; double y = 3; double z = 4; }
//	message Collection { uint64 id = 1; uint32 level = 2; repeated uint64 children = 3 [packed]; }
//	message Edge { uint64 from = 1; uint64 to = 2; }
const snapshotVersion = 1

const (
	fieldWaypoints   protowire.Number = 1
	fieldCollections protowire.Number = 2
	fieldEdges       protowire.Number = 3
	fieldVersion     protowire.Number = 15
)

// EncodeBinary serializes the snapshot in protobuf wire format
func (s *Snapshot) EncodeBinary() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, fieldVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, snapshotVersion)

	for _, w := range s.Waypoints {
		var m []byte
		m = appendUint(m, 1, uint64(w.ID))
		for i, v := range w.Position {
			m = protowire.AppendTag(m, protowire.Number(2+i), protowire.Fixed64Type)
			m = protowire.AppendFixed64(m, math.Float64bits(v))
		}
		b = protowire.AppendTag(b, fieldWaypoints, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}

	for _, c := range s.Collections {
		if c.Level < 0 {
			return nil, fmt.Errorf("collection %d has level %d: %w", c.ID, c.Level, ErrInvalidSnapshot)
		}
		var m []byte
		m = appendUint(m, 1, uint64(c.ID))
		m = appendUint(m, 2, uint64(c.Level))
		var packed []byte
		for _, child := range c.Children {
			packed = protowire.AppendVarint(packed, uint64(child))
		}
		m = protowire.AppendTag(m, 3, protowire.BytesType)
		m = protowire.AppendBytes(m, packed)
		b = protowire.AppendTag(b, fieldCollections, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}

	for _, e := range s.Edges {
		var m []byte
		m = appendUint(m, 1, uint64(e.From))
		m = appendUint(m, 2, uint64(e.To))
		b = protowire.AppendTag(b, fieldEdges, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	return b, nil
}

// DecodeSnapshotBinary parses the output of EncodeBinary. Unknown fields are
// skipped.
func DecodeSnapshotBinary(data []byte) (*Snapshot, error) {
	s := &Snapshot{}
	err := rangeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n >= 0 && v > snapshotVersion {
				return n, fmt.Errorf("snapshot version %d: %w", v, ErrInvalidSnapshot)
			}
			return n, nil

		case num == fieldWaypoints && typ == protowire.BytesType:
			m, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			w, err := decodeWaypoint(m)
			s.Waypoints = append(s.Waypoints, w)
			return n, err

		case num == fieldCollections && typ == protowire.BytesType:
			m, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			c, err := decodeCollection(m)
			s.Collections = append(s.Collections, c)
			return n, err

		case num == fieldEdges && typ == protowire.BytesType:
			m, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			e, err := decodeEdge(m)
			s.Edges = append(s.Edges, e)
			return n, err
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func decodeWaypoint(data []byte) (SnapshotWaypoint, error) {
	var w SnapshotWaypoint
	err := rangeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			w.ID = ID(v)
			return n, nil
		case num >= 2 && num <= 4 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			w.Position[num-2] = math.Float64frombits(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return w, err
}

func decodeCollection(data []byte) (SnapshotCollection, error) {
	var c SnapshotCollection
	err := rangeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.ID = ID(v)
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.Level = int(v)
			return n, nil
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.Children = append(c.Children, ID(v))
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			for len(packed) > 0 && n >= 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return m, nil
				}
				c.Children = append(c.Children, ID(v))
				packed = packed[m:]
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return c, err
}

func decodeEdge(data []byte) (SnapshotEdge, error) {
	var e SnapshotEdge
	err := rangeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if typ == protowire.VarintType && (num == 1 || num == 2) {
			v, n := protowire.ConsumeVarint(b)
			if num == 1 {
				e.From = ID(v)
			} else {
				e.To = ID(v)
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return e, err
}

// rangeFields walks the fields of one message. fn consumes the value that
// follows the tag and returns how many bytes it used, negative on a wire
// error.
func rangeFields(data []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrInvalidSnapshot, protowire.ParseError(n))
		}
		data = data[n:]

		m, err := fn(num, typ, data)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("%w: %w", ErrInvalidSnapshot, protowire.ParseError(m))
		}
		data = data[m:]
	}
	return nil
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
