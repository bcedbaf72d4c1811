package report

import (
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cjeanneret/SonoGo/internal/hw/scope"
	"github.com/cjeanneret/SonoGo/internal/logic/pattern"
	"github.com/cjeanneret/SonoGo/internal/logic/scan"
	"github.com/cjeanneret/SonoGo/internal/logic/track"
)

func fakeResult2D() *scan.Result {
	spec := pattern.Spec{
		Type: pattern.Scan2DXY,
		Dims: pattern.Dimensions{X: 1, Y: 1, Resolution: 0.5},
	}
	res := &scan.Result{
		Spec:      spec,
		StartedAt: time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC),
		Elapsed:   42 * time.Second,
	}

	xs := [][]float64{
		{-0.5, 0, 0.5},
		{0.5, 0, -0.5},
		{-0.5, 0, 0.5},
	}
	ys := []float64{-0.5, 0, 0.5}
	idx := 0
	for row, y := range ys {
		for _, x := range xs[row] {
			dp := scan.Datapoint{
				Index:    idx,
				Position: track.Position{X: x, Y: y},
				Time:     res.StartedAt.Add(time.Duration(idx) * time.Second),
			}
			if idx == 4 {
				res.Missing++ // simulated dropout at the centre point
			} else {
				dp.Peaks = &scope.Peaks{
					Positive:   1.0 - (x*x+y*y),
					Negative:   -0.9 * (1.0 - (x*x + y*y)),
					PeakToPeak: 1.9 * (1.0 - (x*x + y*y)),
					Method:     "PAVA_MAX",
				}
			}
			res.Points = append(res.Points, dp)
			idx++
		}
	}
	return res
}

func fakeResult1D() *scan.Result {
	res := &scan.Result{
		Spec: pattern.Spec{
			Type: pattern.Scan1DY,
			Dims: pattern.Dimensions{Y: 1, Resolution: 0.5},
		},
		StartedAt: time.Now(),
	}
	for i, y := range []float64{-0.5, 0, 0.5} {
		res.Points = append(res.Points, scan.Datapoint{
			Index:    i,
			Position: track.Position{Y: y},
			Time:     time.Now(),
			Peaks:    &scope.Peaks{Positive: 1, Negative: -1, PeakToPeak: 2, Method: "SIM"},
		})
	}
	return res
}

func TestNewRun_CreatesUniqueDirectories(t *testing.T) {
	base := t.TempDir()

	r1, err := NewRun(base)
	require.NoError(t, err)
	r2, err := NewRun(base)
	require.NoError(t, err)

	assert.NotEqual(t, r1.Dir, r2.Dir)
	for _, r := range []*Run{r1, r2} {
		info, err := os.Stat(r.Dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestSave_WritesAllArtifacts(t *testing.T) {
	r, err := NewRun(t.TempDir())
	require.NoError(t, err)

	res := fakeResult2D()
	require.NoError(t, r.Save(res, map[string]any{"arduino_port": "/dev/ttyACM0"}))

	for _, name := range []string{
		"scan_config.json", "scan_data.csv", "scan_data.json", "scan_summary.txt",
		"positive_voltage_heatmap.png", "negative_voltage_heatmap.png",
	} {
		_, err := os.Stat(filepath.Join(r.Dir, name))
		assert.NoError(t, err, name)
	}
}

func TestSave_CSVContents(t *testing.T) {
	r, err := NewRun(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, r.Save(fakeResult2D(), nil))

	f, err := os.Open(filepath.Join(r.Dir, "scan_data.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 10) // header + 9 points

	assert.Equal(t, csvHeader, rows[0])

	first := rows[1]
	assert.Equal(t, "1", first[0])
	assert.Equal(t, "-0.500", first[1])
	assert.Equal(t, "-0.500", first[2])
	assert.Equal(t, "0.000", first[3])
	assert.Equal(t, "PAVA_MAX", first[7])

	// Point 5 is the simulated dropout.
	failed := rows[5]
	assert.Equal(t, "5", failed[0])
	assert.Empty(t, failed[4])
	assert.Empty(t, failed[5])
	assert.Empty(t, failed[6])
	assert.Equal(t, "FAILED", failed[7])
	assert.NotEmpty(t, failed[8], "timestamp is written even for failed points")
}

func TestSave_MetaContents(t *testing.T) {
	r, err := NewRun(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, r.Save(fakeResult2D(), map[string]any{"scope_address": "192.168.1.50:5025"}))

	data, err := os.ReadFile(filepath.Join(r.Dir, "scan_config.json"))
	require.NoError(t, err)

	var meta Meta
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, r.ID, meta.ScanID)
	assert.Equal(t, "2d_xy", meta.ScanType)
	assert.Equal(t, "snake", meta.Pattern)
	assert.Equal(t, 9, meta.TotalPoints)
	assert.Equal(t, 1, meta.Missing)
	assert.InDelta(t, 42.0, meta.ElapsedSec, 1e-9)
	assert.Equal(t, "192.168.1.50:5025", meta.Hardware["scope_address"])
}

func TestSave_SummaryContents(t *testing.T) {
	r, err := NewRun(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, r.Save(fakeResult2D(), nil))

	data, err := os.ReadFile(filepath.Join(r.Dir, "scan_summary.txt"))
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "HYDROPHONE SCAN SUMMARY REPORT")
	assert.Contains(t, text, "Scan Type: 2d_xy")
	assert.Contains(t, text, "Total Points: 9")
	assert.Contains(t, text, "Missing Points: 1")
	assert.Contains(t, text, "POSITIVE PEAK STATISTICS:")
	assert.Contains(t, text, "NEGATIVE PEAK STATISTICS:")
	assert.Contains(t, text, "Mean:")
	assert.Contains(t, text, "Std Dev:")
}

func TestSave_1DSkipsHeatmaps(t *testing.T) {
	r, err := NewRun(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, r.Save(fakeResult1D(), nil))

	_, err = os.Stat(filepath.Join(r.Dir, "positive_voltage_heatmap.png"))
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(r.Dir, "scan_data.csv"))
	assert.NoError(t, err)
}

func TestBuildGrid(t *testing.T) {
	res := fakeResult2D()
	g := buildGrid(res, true)
	require.NotNil(t, g)

	cols, rows := g.Dims()
	assert.Equal(t, 3, cols)
	assert.Equal(t, 3, rows)
	assert.Equal(t, []float64{-0.5, 0, 0.5}, g.xs)
	assert.Equal(t, []float64{-0.5, 0, 0.5}, g.ys)

	// Corner value: 1 - (0.25+0.25).
	assert.InDelta(t, 0.5, g.Z(0, 0), 1e-9)

	// The dropout cell holds the field minimum, never NaN.
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			assert.False(t, math.IsNaN(g.Z(c, r)), "cell %d,%d", c, r)
		}
	}
}

func TestBuildGrid_NoData(t *testing.T) {
	res := fakeResult2D()
	for i := range res.Points {
		res.Points[i].Peaks = nil
	}
	assert.Nil(t, buildGrid(res, true))
}
