package track

import (
	"github.com/cjeanneret/SonoGo/internal/logic/pattern"
)

// Position is a 3-axis coordinate in logical millimetres, relative to an
// arbitrary but fixed origin established when the rig was powered up.
type Position struct {
	X float64 `json:"x_mm"`
	Y float64 `json:"y_mm"`
	Z float64 `json:"z_mm"`
}

// Get returns the coordinate along the given axis.
func (p Position) Get(axis pattern.Axis) float64 {
	switch axis {
	case pattern.AxisX:
		return p.X
	case pattern.AxisY:
		return p.Y
	case pattern.AxisZ:
		return p.Z
	}
	return 0
}

func (p *Position) add(axis pattern.Axis, delta float64) {
	switch axis {
	case pattern.AxisX:
		p.X += delta
	case pattern.AxisY:
		p.Y += delta
	case pattern.AxisZ:
		p.Z += delta
	}
}

// Tracker records the rig's commanded position and the start snapshot of the
// scan in progress. It is a pure state holder: only successful motion
// acknowledgements may mutate it, and it performs no I/O. A single goroutine
// owns it for the duration of a scan, so no locking is needed.
type Tracker struct {
	current Position
	start   Position
}

// New returns a tracker with the current pose as the logical origin.
func New() *Tracker {
	return &Tracker{}
}

// RecordStart snapshots the current position as the scan start. Called once
// at the beginning of each scan; the previous snapshot is overwritten.
func (t *Tracker) RecordStart() {
	t.start = t.current
}

// ApplyRelative adds delta to the tracked coordinate for the axis. Call only
// after a motion command has reported success.
func (t *Tracker) ApplyRelative(axis pattern.Axis, delta float64) {
	t.current.add(axis, delta)
}

// Current returns the tracked position.
func (t *Tracker) Current() Position {
	return t.current
}

// Start returns the recorded scan start position.
func (t *Tracker) Start() Position {
	return t.start
}

// ReturnVector returns, per axis, start - current: the relative displacement
// that brings the rig back to the recorded start.
func (t *Tracker) ReturnVector() Position {
	return Position{
		X: t.start.X - t.current.X,
		Y: t.start.Y - t.current.Y,
		Z: t.start.Z - t.current.Z,
	}
}
