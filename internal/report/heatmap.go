package report

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/cjeanneret/SonoGo/internal/logic/scan"
)

// writeHeatmaps renders the positive and negative peak fields of a 2D scan
// over its plane axes.
func (r *Run) writeHeatmaps(res *scan.Result) error {
	primary, secondary, err := res.Spec.Type.Axes()
	if err != nil {
		return err
	}

	pos := buildGrid(res, true)
	neg := buildGrid(res, false)
	if pos == nil && neg == nil {
		return fmt.Errorf("no valid voltage data for heatmaps")
	}

	if pos != nil {
		path := filepath.Join(r.Dir, "positive_voltage_heatmap.png")
		if err := saveHeatmap(pos, "Positive Peak Voltage", string(primary), string(secondary), path); err != nil {
			return err
		}
	}
	if neg != nil {
		path := filepath.Join(r.Dir, "negative_voltage_heatmap.png")
		if err := saveHeatmap(neg, "Negative Peak Voltage", string(primary), string(secondary), path); err != nil {
			return err
		}
	}
	return nil
}

// peakGrid adapts scan datapoints to plotter.GridXYZ. Grid points with no
// reading hold the field minimum so the palette stays well defined.
type peakGrid struct {
	xs, ys []float64
	vals   [][]float64 // [row][col], row indexes ys
}

func (g *peakGrid) Dims() (int, int)   { return len(g.xs), len(g.ys) }
func (g *peakGrid) X(c int) float64    { return g.xs[c] }
func (g *peakGrid) Y(r int) float64    { return g.ys[r] }
func (g *peakGrid) Z(c, r int) float64 { return g.vals[r][c] }

// buildGrid collects one peak field onto the scan's coordinate grid.
// Returns nil when no point carries a usable value.
func buildGrid(res *scan.Result, positive bool) *peakGrid {
	primary, secondary, err := res.Spec.Type.Axes()
	if err != nil {
		return nil
	}

	xSet := map[float64]struct{}{}
	ySet := map[float64]struct{}{}
	for _, dp := range res.Points {
		xSet[roundCoord(dp.Position.Get(primary))] = struct{}{}
		ySet[roundCoord(dp.Position.Get(secondary))] = struct{}{}
	}
	xs := sortedKeys(xSet)
	ys := sortedKeys(ySet)
	if len(xs) == 0 || len(ys) == 0 {
		return nil
	}

	xIdx := indexOf(xs)
	yIdx := indexOf(ys)

	vals := make([][]float64, len(ys))
	for i := range vals {
		vals[i] = make([]float64, len(xs))
		for j := range vals[i] {
			vals[i][j] = math.NaN()
		}
	}

	min := math.Inf(1)
	any := false
	for _, dp := range res.Points {
		if dp.Peaks == nil {
			continue
		}
		v := dp.Peaks.Positive
		if !positive {
			v = dp.Peaks.Negative
		}
		if math.IsNaN(v) {
			continue
		}
		row := yIdx[roundCoord(dp.Position.Get(secondary))]
		col := xIdx[roundCoord(dp.Position.Get(primary))]
		vals[row][col] = v
		if v < min {
			min = v
		}
		any = true
	}
	if !any {
		return nil
	}

	// Missing cells take the field minimum; NaN would poison the
	// palette's range computation.
	for i := range vals {
		for j := range vals[i] {
			if math.IsNaN(vals[i][j]) {
				vals[i][j] = min
			}
		}
	}
	return &peakGrid{xs: xs, ys: ys, vals: vals}
}

// roundCoord collapses float jitter so grid columns line up even after many
// accumulated step deltas.
func roundCoord(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func sortedKeys(set map[float64]struct{}) []float64 {
	out := make([]float64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

func indexOf(vals []float64) map[float64]int {
	m := make(map[float64]int, len(vals))
	for i, v := range vals {
		m[v] = i
	}
	return m
}

func saveHeatmap(grid *peakGrid, title, xLabel, yLabel, path string) error {
	pal := moreland.SmoothBlueRed().Palette(255)
	h := plotter.NewHeatMap(grid, pal)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel + " (mm)"
	p.Y.Label.Text = yLabel + " (mm)"
	p.Add(h)

	if err := p.Save(6*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save heatmap %s: %w", filepath.Base(path), err)
	}
	return nil
}
