// Package report persists completed scans: a timestamped run directory with
// the raw measurements as CSV and JSON, the effective configuration, a
// statistics summary and, for 2D scans, heatmap renderings.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/cjeanneret/SonoGo/internal/debug"
	"github.com/cjeanneret/SonoGo/internal/logic/scan"
)

// Run is one scan's output directory.
type Run struct {
	ID  string
	Dir string
}

// NewRun creates a fresh run directory under basePath, named by creation
// time plus a short unique suffix so two scans started within the same
// second cannot collide.
func NewRun(basePath string) (*Run, error) {
	id := uuid.NewString()
	name := fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), id[:8])
	dir := filepath.Join(basePath, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}
	debug.Info("Created scan directory: %s", dir)
	return &Run{ID: id, Dir: dir}, nil
}

// Meta is the run's scan_config.json payload: everything needed to
// interpret the CSV later.
type Meta struct {
	ScanID      string         `json:"scan_id"`
	Timestamp   string         `json:"timestamp"`
	ScanType    string         `json:"scan_type"`
	Pattern     string         `json:"scan_pattern"` // "snake" or "linear"
	TotalPoints int            `json:"total_points"`
	Missing     int            `json:"missing_points"`
	ElapsedSec  float64        `json:"elapsed_s"`
	Start       any            `json:"starting_position"`
	Dimensions  any            `json:"dimensions"`
	Hardware    map[string]any `json:"hardware,omitempty"`
}

// Save writes every artifact for a completed scan. Heatmaps are only drawn
// for 2D results. hardware carries free-form instrument details (port,
// scope settings) into scan_config.json.
func (r *Run) Save(res *scan.Result, hardware map[string]any) error {
	if err := r.writeMeta(res, hardware); err != nil {
		return err
	}
	if err := r.writeCSV(res); err != nil {
		return err
	}
	if err := r.writeJSON(res); err != nil {
		return err
	}
	if err := r.writeSummary(res); err != nil {
		return err
	}
	if res.Spec.Type.Is2D() {
		if err := r.writeHeatmaps(res); err != nil {
			// A failed rendering should not lose the data files.
			debug.Error("Heatmap generation failed: %v", err)
		}
	}
	debug.Summary("Scan data saved to %s", r.Dir)
	return nil
}

func (r *Run) writeMeta(res *scan.Result, hardware map[string]any) error {
	pat := "linear"
	if res.Spec.Type.Is2D() {
		pat = "snake"
	}
	meta := Meta{
		ScanID:      r.ID,
		Timestamp:   res.StartedAt.Format("20060102_150405"),
		ScanType:    string(res.Spec.Type),
		Pattern:     pat,
		TotalPoints: len(res.Points),
		Missing:     res.Missing,
		ElapsedSec:  res.Elapsed.Seconds(),
		Start:       res.Start,
		Dimensions:  res.Spec.Dims,
		Hardware:    hardware,
	}
	return r.writeJSONFile("scan_config.json", meta)
}

func (r *Run) writeJSON(res *scan.Result) error {
	return r.writeJSONFile("scan_data.json", res.Points)
}

func (r *Run) writeJSONFile(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(r.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

var csvHeader = []string{
	"point_num", "x_mm", "y_mm", "z_mm",
	"positive_peak_v", "negative_peak_v", "peak_to_peak_v",
	"method", "timestamp",
}

func (r *Run) writeCSV(res *scan.Result) error {
	path := filepath.Join(r.Dir, "scan_data.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create scan_data.csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, dp := range res.Points {
		row := []string{
			strconv.Itoa(dp.Index + 1),
			formatMM(dp.Position.X),
			formatMM(dp.Position.Y),
			formatMM(dp.Position.Z),
		}
		if dp.Peaks == nil {
			row = append(row, "", "", "", "FAILED")
		} else {
			row = append(row,
				formatVolt(dp.Peaks.Positive),
				formatVolt(dp.Peaks.Negative),
				formatVolt(dp.Peaks.PeakToPeak),
				dp.Peaks.Method,
			)
		}
		row = append(row, dp.Time.Format(time.RFC3339Nano))
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatMM(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatVolt(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (r *Run) writeSummary(res *scan.Result) error {
	var pos, neg []float64
	for _, dp := range res.Points {
		if dp.Peaks == nil {
			continue
		}
		if !math.IsNaN(dp.Peaks.Positive) {
			pos = append(pos, dp.Peaks.Positive)
		}
		if !math.IsNaN(dp.Peaks.Negative) {
			neg = append(neg, dp.Peaks.Negative)
		}
	}

	var b []byte
	add := func(format string, args ...any) {
		b = append(b, fmt.Sprintf(format+"\n", args...)...)
	}
	add("HYDROPHONE SCAN SUMMARY REPORT")
	add("==================================================")
	add("Scan Date: %s", res.StartedAt.Format("2006-01-02 15:04:05"))
	add("Scan Type: %s", res.Spec.Type)
	add("Total Points: %d", len(res.Points))
	add("Missing Points: %d", res.Missing)
	add("Resolution: %g mm", res.Spec.Dims.Resolution)
	add("Duration: %s", res.Elapsed.Round(time.Second))
	add("")
	writePeakStats := func(label string, values []float64) {
		if len(values) == 0 {
			return
		}
		min, max := values[0], values[0]
		for _, v := range values {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		add("%s PEAK STATISTICS:", label)
		add("  Count: %d", len(values))
		add("  Min: %.6f V", min)
		add("  Max: %.6f V", max)
		add("  Mean: %.6f V", stat.Mean(values, nil))
		add("  Std Dev: %.6f V", stat.PopStdDev(values, nil))
		add("")
	}
	writePeakStats("POSITIVE", pos)
	writePeakStats("NEGATIVE", neg)

	path := filepath.Join(r.Dir, "scan_summary.txt")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write scan_summary.txt: %w", err)
	}
	return nil
}
