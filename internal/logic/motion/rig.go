package motion

import (
	"fmt"

	"github.com/cjeanneret/SonoGo/internal/debug"
	"github.com/cjeanneret/SonoGo/internal/hw/stepper"
	"github.com/cjeanneret/SonoGo/internal/logic/pattern"
)

// Rig drives the three gantry axes directly from GPIO-connected A4988
// drivers, for builds where the Raspberry Pi replaces the Arduino.
type Rig struct {
	x, y, z *stepper.Stepper
}

// NewRig wires one stepper per axis. Any axis may be nil if the build
// doesn't have it; moving a missing axis fails.
func NewRig(x, y, z *stepper.Stepper) *Rig {
	return &Rig{x: x, y: y, z: z}
}

func (r *Rig) MoveAxis(axis pattern.Axis, distanceMM float64) error {
	s := r.stepperFor(axis)
	if s == nil {
		return fmt.Errorf("rig: no stepper wired for axis %q", axis)
	}

	debug.Move(string(axis), distanceMM)

	// Drivers are powered only for the move itself, so coil noise never
	// overlaps a measurement.
	if err := s.Enable(); err != nil {
		return fmt.Errorf("rig: enable %s: %w", axis, err)
	}
	defer s.Disable()

	if err := s.MoveMM(distanceMM); err != nil {
		return fmt.Errorf("rig: move %s: %w", axis, err)
	}
	return nil
}

func (r *Rig) stepperFor(axis pattern.Axis) *stepper.Stepper {
	switch axis {
	case pattern.AxisX:
		return r.x
	case pattern.AxisY:
		return r.y
	case pattern.AxisZ:
		return r.z
	}
	return nil
}
