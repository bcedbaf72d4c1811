package pattern

import (
	"errors"
	"fmt"
	"math"
)

// Axis identifies one motion axis of the scanner frame.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
	AxisZ Axis = "z"
)

// ScanType tags the supported scan geometries. For 2D types the order of the
// axes in the tag is meaningful: the first axis is swept fastest.
type ScanType string

const (
	Scan1DX  ScanType = "1d_x"
	Scan1DY  ScanType = "1d_y"
	Scan1DZ  ScanType = "1d_z"
	Scan2DXY ScanType = "2d_xy"
	Scan2DXZ ScanType = "2d_xz"
	Scan2DYZ ScanType = "2d_yz"
)

// ErrBadSpec is returned for unrecognized scan types or invalid dimensions.
// It is always detected before any motion command is issued.
var ErrBadSpec = errors.New("invalid scan specification")

// Is2D reports whether the scan type sweeps two axes.
func (t ScanType) Is2D() bool {
	switch t {
	case Scan2DXY, Scan2DXZ, Scan2DYZ:
		return true
	}
	return false
}

// Axes returns the swept axes for the scan type. For 1D scans the secondary
// axis is empty. The primary axis is the one swept fastest.
func (t ScanType) Axes() (primary, secondary Axis, err error) {
	switch t {
	case Scan1DX:
		return AxisX, "", nil
	case Scan1DY:
		return AxisY, "", nil
	case Scan1DZ:
		return AxisZ, "", nil
	case Scan2DXY:
		return AxisX, AxisY, nil
	case Scan2DXZ:
		return AxisX, AxisZ, nil
	case Scan2DYZ:
		return AxisY, AxisZ, nil
	default:
		return "", "", fmt.Errorf("%w: unrecognized scan type %q", ErrBadSpec, string(t))
	}
}

// Dimensions holds the scan extents per axis and the shared resolution,
// all in millimetres. Extents for axes not involved in the scan are ignored.
type Dimensions struct {
	X          float64 `yaml:"x" json:"x"`
	Y          float64 `yaml:"y" json:"y"`
	Z          float64 `yaml:"z" json:"z"`
	Resolution float64 `yaml:"resolution" json:"resolution"`
}

// Extent returns the scan extent along the given axis.
func (d Dimensions) Extent(axis Axis) float64 {
	switch axis {
	case AxisX:
		return d.X
	case AxisY:
		return d.Y
	case AxisZ:
		return d.Z
	}
	return 0
}

// Spec is a declarative scan request: what to sweep and how finely.
type Spec struct {
	Type ScanType   `yaml:"type" json:"type"`
	Dims Dimensions `yaml:"dimensions" json:"dimensions"`
}

// Plan is the computed traversal for a Spec: step counts per axis, the step
// size, and the centering offsets that place the sweep symmetrically around
// the start position. A Plan is pure data; executing it is the scan
// controller's job.
type Plan struct {
	Type      ScanType
	Primary   Axis
	Secondary Axis // empty for 1D scans

	PrimarySteps   int
	SecondarySteps int // 0 for 1D scans
	StepSize       float64

	// Centering moves issued before sampling begins, from the operator-chosen
	// center to the sweep's corner: -extent/2 along each involved axis.
	PrimaryCenter   float64
	SecondaryCenter float64
}

// StepCount returns the number of resolution steps that fit in the extent.
// Fractional remainders are truncated; an extent smaller than the resolution
// yields zero steps (a single-point sweep along that axis).
func StepCount(extentMM, resolutionMM float64) int {
	if resolutionMM <= 0 || extentMM <= 0 {
		return 0
	}
	return int(math.Floor(extentMM / resolutionMM))
}

// SnakeDelta returns the signed primary-axis displacement for one step of the
// given raster row. Even rows sweep in the positive direction, odd rows in the
// negative direction, so consecutive rows traverse the primary axis in
// opposite directions and total travel is minimized.
func SnakeDelta(row int, stepSize float64) float64 {
	if row%2 == 0 {
		return stepSize
	}
	return -stepSize
}

// BuildPlan validates a Spec and computes its traversal Plan. It returns
// ErrBadSpec (wrapped) for an unrecognized type, non-positive resolution, or
// negative extents. No hardware is touched here.
func BuildPlan(spec Spec) (*Plan, error) {
	primary, secondary, err := spec.Type.Axes()
	if err != nil {
		return nil, err
	}
	if spec.Dims.Resolution <= 0 {
		return nil, fmt.Errorf("%w: resolution must be > 0, got %g", ErrBadSpec, spec.Dims.Resolution)
	}

	p := &Plan{
		Type:     spec.Type,
		Primary:  primary,
		StepSize: spec.Dims.Resolution,
	}

	priExtent := spec.Dims.Extent(primary)
	if priExtent < 0 {
		return nil, fmt.Errorf("%w: extent along %s must be >= 0, got %g", ErrBadSpec, primary, priExtent)
	}
	p.PrimarySteps = StepCount(priExtent, spec.Dims.Resolution)
	p.PrimaryCenter = -priExtent / 2

	if secondary != "" {
		secExtent := spec.Dims.Extent(secondary)
		if secExtent < 0 {
			return nil, fmt.Errorf("%w: extent along %s must be >= 0, got %g", ErrBadSpec, secondary, secExtent)
		}
		p.Secondary = secondary
		p.SecondarySteps = StepCount(secExtent, spec.Dims.Resolution)
		p.SecondaryCenter = -secExtent / 2
	}

	return p, nil
}

// Rows returns the number of raster rows (secondary positions) in the plan.
func (p *Plan) Rows() int {
	return p.SecondarySteps + 1
}

// Columns returns the number of sampled positions along the primary axis.
func (p *Plan) Columns() int {
	return p.PrimarySteps + 1
}

// TotalPoints returns the number of datapoints the plan will produce.
func (p *Plan) TotalPoints() int {
	return p.Columns() * p.Rows()
}

// RowDirection describes the sweep direction of a raster row, for logging.
func (p *Plan) RowDirection(row int) string {
	if row%2 == 0 {
		return "forward"
	}
	return "reverse"
}
