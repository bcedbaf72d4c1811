// Package motion abstracts the machinery that moves the hydrophone. Scans
// only ever issue relative single-axis moves, so the interface is exactly
// that. Backends: the Arduino serial controller, a direct-drive GPIO rig,
// or a mock.
package motion

import (
	"github.com/cjeanneret/SonoGo/internal/logic/pattern"
)

// Mover executes one relative move and blocks until the hardware reports
// the move complete. An error means the carriage position along that axis
// can no longer be trusted.
type Mover interface {
	MoveAxis(axis pattern.Axis, distanceMM float64) error
}
