// Package scope reads voltage measurements from the oscilloscope that the
// hydrophone is plugged into. The real implementation speaks SCPI to a
// Siglent SDS over its raw socket; a simulated sampler stands in when no
// instrument is attached.
package scope

import "math"

// Peaks is one voltage reading. Fields the instrument could not provide are
// NaN; Derive fills in whatever can be computed from the others.
type Peaks struct {
	Positive   float64 `json:"positive_peak_v"`
	Negative   float64 `json:"negative_peak_v"`
	PeakToPeak float64 `json:"peak_to_peak_v"`

	// Method records which query path produced the reading, e.g.
	// "PAVA_MAX" or "WAVEFORM".
	Method string `json:"method,omitempty"`
}

// Derive computes missing fields when two of the three are known.
func (p *Peaks) Derive() {
	switch {
	case !math.IsNaN(p.Positive) && !math.IsNaN(p.Negative) && math.IsNaN(p.PeakToPeak):
		p.PeakToPeak = p.Positive - p.Negative
	case !math.IsNaN(p.PeakToPeak) && !math.IsNaN(p.Positive) && math.IsNaN(p.Negative):
		p.Negative = p.Positive - p.PeakToPeak
	case !math.IsNaN(p.PeakToPeak) && !math.IsNaN(p.Negative) && math.IsNaN(p.Positive):
		p.Positive = p.Negative + p.PeakToPeak
	}
}

// Empty reports whether no field holds a usable value.
func (p *Peaks) Empty() bool {
	return math.IsNaN(p.Positive) && math.IsNaN(p.Negative) && math.IsNaN(p.PeakToPeak)
}

// Trace is a raw waveform capture: voltage samples at a fixed interval.
type Trace struct {
	Volts []float64 `json:"volts"`

	// Interval is the time between consecutive samples, in seconds.
	Interval float64 `json:"interval_s"`
}

// Sampler is the measurement side of the scanner.
//
// Measure returns (nil, nil) when the instrument is reachable but has no
// measurement available right now; scans record such points as missing and
// continue. A non-nil error means the instrument itself failed.
type Sampler interface {
	Measure() (*Peaks, error)
}

// TraceSampler is implemented by samplers that can also capture the raw
// waveform behind a reading.
type TraceSampler interface {
	Sampler
	Waveform() (*Trace, error)
}
