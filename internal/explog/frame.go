package explog

import (
	"fmt"
	"sort"
)

// RobotID identifies one physical robot; it is stable across frames.
type RobotID int

// Phase is the simulator's opaque behavioural-mode token. The parser never
// validates it; the constants below only name the values the simulator is
// known to print.
type Phase string

const (
	PhaseIdle             Phase = "Idle"
	PhaseInitialWallFind  Phase = "InitialWallFind"
	PhaseBoundaryScouting Phase = "BoundaryScouting"
	PhaseBoundaryAnalysis Phase = "BoundaryAnalysis"
	PhaseIslandEscape     Phase = "IslandEscape"
	PhaseCentralScan      Phase = "CentralScan"
	PhaseInteriorSweep    Phase = "InteriorSweep"
)

// Point is an integer grid coordinate. Y grows downwards, matching the row
// order of the printed maps.
type Point struct {
	X, Y int
}

func (p Point) String() string { return fmt.Sprintf("(%d, %d)", p.X, p.Y) }

// Offset translates local-map coordinates into world coordinates.
type Offset struct {
	DX, DY int
}

// Apply maps a local cell to its world cell.
func (o Offset) Apply(local Point) Point {
	return Point{X: local.X + o.DX, Y: local.Y + o.DY}
}

// RobotState is one robot's snapshot within a frame.
//
// HasPosition is false for a placeholder created by a map block that arrived
// before the robot's status record; Position and Phase are then zero.
// Map is nil when no usable map block was seen for the robot in the frame.
// Aligned is false when the map carried no self-marker (or the robot has no
// position); Offset is meaningful only when Aligned is true.
type RobotState struct {
	ID          RobotID
	Position    Point
	HasPosition bool
	Phase       Phase
	Map         *LocalMap
	Offset      Offset
	Aligned     bool
}

// WorldCell projects a local-map cell into world coordinates. ok is false
// when the robot's map is not aligned.
func (r RobotState) WorldCell(local Point) (Point, bool) {
	if !r.Aligned {
		return Point{}, false
	}
	return r.Offset.Apply(local), true
}

// detached returns r with its own copy of the map header so writes through
// the returned pointer never reach a stored frame. Rows are immutable and
// stay shared.
func (r RobotState) detached() RobotState {
	if r.Map != nil {
		m := *r.Map
		r.Map = &m
	}
	return r
}

// Frame is the finalised, read-only snapshot of all robots at one tick.
type Frame struct {
	tick   int
	robots map[RobotID]RobotState
}

// NewFrame builds a frame from robot states. Later entries with a duplicate
// id replace earlier ones. The input slice is not retained.
func NewFrame(tick int, robots []RobotState) Frame {
	m := make(map[RobotID]RobotState, len(robots))
	for _, r := range robots {
		m[r.ID] = r.detached()
	}
	return Frame{tick: tick, robots: m}
}

// Tick returns the simulation tick of the frame.
func (f Frame) Tick() int { return f.tick }

// Len returns the number of robots in the frame.
func (f Frame) Len() int { return len(f.robots) }

// Robot returns the state of one robot.
func (f Frame) Robot(id RobotID) (RobotState, bool) {
	r, ok := f.robots[id]
	return r.detached(), ok
}

// IDs returns the robot ids in ascending order.
func (f Frame) IDs() []RobotID {
	ids := make([]RobotID, 0, len(f.robots))
	for id := range f.robots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Robots returns the robot states ordered by id.
func (f Frame) Robots() []RobotState {
	out := make([]RobotState, 0, len(f.robots))
	for _, id := range f.IDs() {
		out = append(out, f.robots[id].detached())
	}
	return out
}
