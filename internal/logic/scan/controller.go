// Package scan runs the measurement sequence: it walks the probe through the
// planned grid, samples the oscilloscope at every grid point, and always
// tries to bring the probe back to where the scan started, whatever happened
// in between.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/SonoGo/internal/debug"
	"github.com/cjeanneret/SonoGo/internal/hw/scope"
	"github.com/cjeanneret/SonoGo/internal/logic/motion"
	"github.com/cjeanneret/SonoGo/internal/logic/pattern"
	"github.com/cjeanneret/SonoGo/internal/logic/track"
)

// DefaultSettle is the pause between a completed move and the measurement,
// letting mechanical vibration die down.
const DefaultSettle = 100 * time.Millisecond

// Datapoint is one sampled grid point. Peaks is nil when the oscilloscope
// had no reading available at that position.
type Datapoint struct {
	Index    int            `json:"index"`
	Position track.Position `json:"position"`
	Time     time.Time      `json:"time"`
	Peaks    *scope.Peaks   `json:"peaks,omitempty"`
	Trace    *scope.Trace   `json:"trace,omitempty"`
}

// Result is a completed scan.
type Result struct {
	Spec      pattern.Spec   `json:"spec"`
	Plan      *pattern.Plan  `json:"-"`
	Start     track.Position `json:"start"`
	Points    []Datapoint    `json:"points"`
	Missing   int            `json:"missing"`
	StartedAt time.Time      `json:"started_at"`
	Elapsed   time.Duration  `json:"elapsed"`
}

// Observer is called after every recorded datapoint, for progress reporting.
type Observer func(completed, total int, dp Datapoint)

// Params tunes a controller.
type Params struct {
	// Settle is the post-move pause before sampling. <=0 means DefaultSettle.
	Settle time.Duration

	// CaptureWaveform stores the raw trace with each datapoint, when the
	// sampler supports it.
	CaptureWaveform bool

	Observer Observer
}

// Controller owns the probe for the lifetime of the program: all motion,
// scanning or manual jogging, goes through it so the position tracker never
// drifts from reality.
type Controller struct {
	mover   motion.Mover
	sampler scope.Sampler
	tracker *track.Tracker
	params  Params
}

// NewController builds a controller around a motion backend and a sampler.
func NewController(m motion.Mover, s scope.Sampler, params Params) *Controller {
	if params.Settle <= 0 {
		params.Settle = DefaultSettle
	}
	return &Controller{
		mover:   m,
		sampler: s,
		tracker: track.New(),
		params:  params,
	}
}

// Position returns the probe's tracked position.
func (c *Controller) Position() track.Position {
	return c.tracker.Current()
}

// Jog moves one axis manually, with the same tracking and settle behaviour
// as scan moves. Used for positioning the probe before a scan.
func (c *Controller) Jog(axis pattern.Axis, distanceMM float64) error {
	return c.move(axis, distanceMM)
}

// ResetOrigin declares the current physical position to be the logical
// origin, e.g. after homing.
func (c *Controller) ResetOrigin() {
	c.tracker = track.New()
}

// Run executes one scan. The grid is centred on the probe's current
// position. On success the probe is back at its start position and the
// result holds one datapoint per grid point, in acquisition order.
//
// Any motion or measurement failure aborts the scan and discards its
// partial data. Whatever happens, the controller attempts to drive the
// probe back to the start position before returning. If the scan succeeded
// but the return leg failed, the result is returned together with a
// *ReturnError so the data survives and the operator is warned.
func (c *Controller) Run(ctx context.Context, spec pattern.Spec) (result *Result, err error) {
	plan, err := pattern.BuildPlan(spec)
	if err != nil {
		return nil, err
	}

	c.tracker.RecordStart()
	res := &Result{
		Spec:      spec,
		Plan:      plan,
		Start:     c.tracker.Start(),
		StartedAt: time.Now(),
	}

	debug.Plan(plan.Columns(), plan.Rows(), plan.TotalPoints())

	defer func() {
		rerr := c.returnToStart()
		if rerr == nil {
			return
		}
		if err != nil {
			// The scan already failed; the lost position is logged
			// but the original error stays.
			debug.Error("Return to start also failed: %v", rerr)
			return
		}
		err = rerr
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Centre the grid: the requested extents straddle the start position.
	if err := c.move(plan.Primary, plan.PrimaryCenter); err != nil {
		return nil, err
	}
	if plan.Secondary != "" {
		if err := c.move(plan.Secondary, plan.SecondaryCenter); err != nil {
			return nil, err
		}
	}

	for row := 0; row < plan.Rows(); row++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scan aborted: %w", err)
		}
		if row > 0 {
			if err := c.move(plan.Secondary, plan.StepSize); err != nil {
				return nil, err
			}
		}
		if plan.Secondary != "" {
			debug.Row(row, plan.Rows(), plan.RowDirection(row))
		}

		// First point of the row is sampled in place, then once after
		// every step. Odd rows sweep backwards (boustrophedon).
		if err := c.samplePoint(res, plan); err != nil {
			return nil, err
		}
		delta := pattern.SnakeDelta(row, plan.StepSize)
		for i := 0; i < plan.PrimarySteps; i++ {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("scan aborted: %w", err)
			}
			if err := c.move(plan.Primary, delta); err != nil {
				return nil, err
			}
			if err := c.samplePoint(res, plan); err != nil {
				return nil, err
			}
		}
	}

	res.Elapsed = time.Since(res.StartedAt)
	debug.Summary("Scan complete: %d points (%d missing) in %s",
		len(res.Points), res.Missing, res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// move executes one relative move, updates the tracker on success and waits
// out the settle delay. Zero-length moves are skipped entirely.
func (c *Controller) move(axis pattern.Axis, distanceMM float64) error {
	if distanceMM == 0 {
		return nil
	}
	if err := c.mover.MoveAxis(axis, distanceMM); err != nil {
		return &MoveError{Axis: axis, Distance: distanceMM, Err: err}
	}
	c.tracker.ApplyRelative(axis, distanceMM)
	time.Sleep(c.params.Settle)
	return nil
}

func (c *Controller) samplePoint(res *Result, plan *pattern.Plan) error {
	peaks, err := c.sampler.Measure()
	if err != nil {
		return fmt.Errorf("measurement failed: %w", err)
	}

	pos := c.tracker.Current()
	dp := Datapoint{
		Index:    len(res.Points),
		Position: pos,
		Time:     time.Now(),
		Peaks:    peaks,
	}
	if peaks == nil {
		res.Missing++
	} else if c.params.CaptureWaveform {
		if ts, ok := c.sampler.(scope.TraceSampler); ok {
			tr, werr := ts.Waveform()
			if werr != nil {
				debug.Error("Waveform capture failed at point %d: %v", dp.Index, werr)
			} else {
				dp.Trace = tr
			}
		}
	}

	res.Points = append(res.Points, dp)
	debug.Sample(len(res.Points), plan.TotalPoints(), pos.X, pos.Y, pos.Z)
	if c.params.Observer != nil {
		c.params.Observer(len(res.Points), plan.TotalPoints(), dp)
	}
	return nil
}

// returnToStart drives the probe back to the recorded start, axis by axis,
// with the settle pause between axis moves. It stops at the first axis that
// fails; hammering further moves on a rig that just faulted risks making the
// position worse.
func (c *Controller) returnToStart() *ReturnError {
	vec := c.tracker.ReturnVector()
	for _, axis := range []pattern.Axis{pattern.AxisX, pattern.AxisY, pattern.AxisZ} {
		d := vec.Get(axis)
		if d == 0 {
			continue
		}
		debug.Verbose("Returning %s by %+.3fmm", axis, d)
		if err := c.mover.MoveAxis(axis, d); err != nil {
			return &ReturnError{Axis: axis, Err: err}
		}
		c.tracker.ApplyRelative(axis, d)
		time.Sleep(c.params.Settle)
	}
	return nil
}
