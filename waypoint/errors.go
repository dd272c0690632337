package waypoint

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrWaypointNotFound is returned when an ID does not name a waypoint in
	// the graph.
	ErrWaypointNotFound = errors.New("waypoint not found")

	// ErrNotCollection is returned when an operation needs a collection but
	// the ID names a leaf.
	ErrNotCollection = errors.New("waypoint is not a collection")

	// ErrLevelMismatch is returned when two waypoints must share a search
	// level, or a parent must sit exactly one level above its child.
	ErrLevelMismatch = errors.New("search level mismatch")

	// ErrDuplicateID is returned when an ID is already registered with a
	// different kind of waypoint.
	ErrDuplicateID = errors.New("duplicate waypoint ID")

	// ErrInvalidBuilder is returned for a nil builder or one whose child
	// bound is below two.
	ErrInvalidBuilder = errors.New("invalid builder")

	// ErrBuilderStalled is returned when a build pass does not reduce the
	// node count of the next level.
	ErrBuilderStalled = errors.New("builder made no progress")

	// ErrSplitOverflow is returned when a split leaves a half above the
	// child bound.
	ErrSplitOverflow = errors.New("split exceeded max children")

	// ErrTooManyLevels is returned when the hierarchy needs more levels than
	// the graph allows.
	ErrTooManyLevels = errors.New("too many search levels")

	// ErrCorruptGraph is returned by Validate for structural damage.
	ErrCorruptGraph = errors.New("corrupt graph")

	// ErrInvalidSnapshot is returned when a snapshot cannot be decoded or
	// restored.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrReservedID is returned for a leaf ID of zero or inside the range
	// reserved for collections.
	ErrReservedID = errors.New("reserved waypoint id")

	// ErrTooManyVertices is returned when keep-out zones yield more
	// visibility waypoints than allowed.
	ErrTooManyVertices = errors.New("too many visibility vertices")
)
