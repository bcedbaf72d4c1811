package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPlan_1D(t *testing.T) {
	cases := []struct {
		name      string
		spec      Spec
		wantAxis  Axis
		wantSteps int
		wantCtr   float64
	}{
		{
			name:      "1d_y 2mm at 0.5mm",
			spec:      Spec{Type: Scan1DY, Dims: Dimensions{Y: 2, Resolution: 0.5}},
			wantAxis:  AxisY,
			wantSteps: 4,
			wantCtr:   -1.0,
		},
		{
			name:      "1d_x 10mm at 1mm",
			spec:      Spec{Type: Scan1DX, Dims: Dimensions{X: 10, Resolution: 1}},
			wantAxis:  AxisX,
			wantSteps: 10,
			wantCtr:   -5.0,
		},
		{
			name:      "1d_z fractional remainder truncated",
			spec:      Spec{Type: Scan1DZ, Dims: Dimensions{Z: 2.3, Resolution: 0.5}},
			wantAxis:  AxisZ,
			wantSteps: 4,
			wantCtr:   -1.15,
		},
		{
			name:      "zero extent single point",
			spec:      Spec{Type: Scan1DX, Dims: Dimensions{X: 0, Resolution: 0.5}},
			wantAxis:  AxisX,
			wantSteps: 0,
			wantCtr:   0,
		},
		{
			name:      "resolution larger than extent single point",
			spec:      Spec{Type: Scan1DX, Dims: Dimensions{X: 0.2, Resolution: 0.5}},
			wantAxis:  AxisX,
			wantSteps: 0,
			wantCtr:   -0.1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := BuildPlan(tc.spec)
			require.NoError(t, err)
			assert.Equal(t, tc.wantAxis, plan.Primary)
			assert.Empty(t, plan.Secondary)
			assert.Equal(t, tc.wantSteps, plan.PrimarySteps)
			assert.Equal(t, 0, plan.SecondarySteps)
			assert.InDelta(t, tc.wantCtr, plan.PrimaryCenter, 1e-9)
			assert.Equal(t, tc.wantSteps+1, plan.TotalPoints())
		})
	}
}

func TestBuildPlan_2D(t *testing.T) {
	plan, err := BuildPlan(Spec{
		Type: Scan2DXY,
		Dims: Dimensions{X: 1, Y: 1, Resolution: 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, AxisX, plan.Primary)
	assert.Equal(t, AxisY, plan.Secondary)
	assert.Equal(t, 2, plan.PrimarySteps)
	assert.Equal(t, 2, plan.SecondarySteps)
	assert.InDelta(t, -0.5, plan.PrimaryCenter, 1e-9)
	assert.InDelta(t, -0.5, plan.SecondaryCenter, 1e-9)
	assert.Equal(t, 9, plan.TotalPoints())
}

func TestBuildPlan_AxisOrderFromTag(t *testing.T) {
	cases := []struct {
		scanType  ScanType
		primary   Axis
		secondary Axis
	}{
		{Scan2DXY, AxisX, AxisY},
		{Scan2DXZ, AxisX, AxisZ},
		{Scan2DYZ, AxisY, AxisZ},
	}
	for _, tc := range cases {
		t.Run(string(tc.scanType), func(t *testing.T) {
			plan, err := BuildPlan(Spec{
				Type: tc.scanType,
				Dims: Dimensions{X: 1, Y: 1, Z: 1, Resolution: 0.5},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.primary, plan.Primary)
			assert.Equal(t, tc.secondary, plan.Secondary)
		})
	}
}

func TestBuildPlan_Errors(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
	}{
		{"unknown type", Spec{Type: "3d_xyz", Dims: Dimensions{X: 1, Resolution: 0.5}}},
		{"empty type", Spec{Dims: Dimensions{X: 1, Resolution: 0.5}}},
		{"zero resolution", Spec{Type: Scan1DX, Dims: Dimensions{X: 1, Resolution: 0}}},
		{"negative resolution", Spec{Type: Scan1DX, Dims: Dimensions{X: 1, Resolution: -0.5}}},
		{"negative primary extent", Spec{Type: Scan1DX, Dims: Dimensions{X: -1, Resolution: 0.5}}},
		{"negative secondary extent", Spec{Type: Scan2DXY, Dims: Dimensions{X: 1, Y: -2, Resolution: 0.5}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildPlan(tc.spec)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBadSpec)
		})
	}
}

func TestStepCount(t *testing.T) {
	cases := []struct {
		extent, res float64
		want        int
	}{
		{2, 0.5, 4},
		{1, 0.5, 2},
		{0.4, 0.5, 0},
		{0, 0.5, 0},
		{10, 1, 10},
		{2.9, 1, 2},
	}
	for _, tc := range cases {
		if got := StepCount(tc.extent, tc.res); got != tc.want {
			t.Errorf("StepCount(%g, %g) = %d, want %d", tc.extent, tc.res, got, tc.want)
		}
	}
}

func TestSnakeDelta_AlternatesByRowParity(t *testing.T) {
	for row := 0; row < 6; row++ {
		got := SnakeDelta(row, 0.5)
		if row%2 == 0 {
			assert.Equal(t, 0.5, got, "row %d", row)
		} else {
			assert.Equal(t, -0.5, got, "row %d", row)
		}
	}
}

func TestPlan_RowDirection(t *testing.T) {
	plan := &Plan{}
	assert.Equal(t, "forward", plan.RowDirection(0))
	assert.Equal(t, "reverse", plan.RowDirection(1))
	assert.Equal(t, "forward", plan.RowDirection(2))
}

func TestScanType_Is2D(t *testing.T) {
	for _, tt := range []ScanType{Scan1DX, Scan1DY, Scan1DZ} {
		assert.False(t, tt.Is2D(), "%s", tt)
	}
	for _, tt := range []ScanType{Scan2DXY, Scan2DXZ, Scan2DYZ} {
		assert.True(t, tt.Is2D(), "%s", tt)
	}
}

func TestDimensions_Extent(t *testing.T) {
	d := Dimensions{X: 1, Y: 2, Z: 3}
	assert.Equal(t, 1.0, d.Extent(AxisX))
	assert.Equal(t, 2.0, d.Extent(AxisY))
	assert.Equal(t, 3.0, d.Extent(AxisZ))
	assert.Equal(t, 0.0, d.Extent(Axis("w")))
}
