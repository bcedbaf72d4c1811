package scan

import (
	"fmt"

	"github.com/cjeanneret/SonoGo/internal/logic/pattern"
)

// MoveError reports a motion command that failed mid-scan. The scan is
// aborted and its partial data discarded, since the probe position is no
// longer trustworthy past this point.
type MoveError struct {
	Axis     pattern.Axis
	Distance float64
	Err      error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move %s by %+.3fmm failed: %v", e.Axis, e.Distance, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

// ReturnError reports that the post-scan return leg could not bring the
// probe back to its start position. When the scan itself succeeded the
// result is still returned alongside this error; the probe simply sits at
// an unknown offset and needs manual repositioning.
type ReturnError struct {
	Axis pattern.Axis
	Err  error
}

func (e *ReturnError) Error() string {
	return fmt.Sprintf("return to start failed on axis %s: %v", e.Axis, e.Err)
}

func (e *ReturnError) Unwrap() error { return e.Err }
