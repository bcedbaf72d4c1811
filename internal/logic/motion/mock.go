package motion

import (
	"github.com/cjeanneret/SonoGo/internal/debug"
	"github.com/cjeanneret/SonoGo/internal/logic/pattern"
)

// Move is one recorded MoveAxis call.
type Move struct {
	Axis     pattern.Axis
	Distance float64
}

// MockMover records moves and optionally fails on command, for tests and
// for dry-running scans without hardware.
type MockMover struct {
	Moves []Move

	// FailAt, when >= 0, makes the move with that index (0-based) fail
	// with FailErr. Failed moves are not recorded.
	FailAt  int
	FailErr error

	calls int
}

// NewMockMover returns a mover that never fails.
func NewMockMover() *MockMover {
	return &MockMover{FailAt: -1}
}

func (m *MockMover) MoveAxis(axis pattern.Axis, distanceMM float64) error {
	idx := m.calls
	m.calls++
	if m.FailAt >= 0 && idx == m.FailAt {
		return m.FailErr
	}
	debug.Move(string(axis), distanceMM)
	m.Moves = append(m.Moves, Move{Axis: axis, Distance: distanceMM})
	return nil
}
