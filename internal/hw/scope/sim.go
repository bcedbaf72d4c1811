package scope

import (
	"math"
	"math/rand"
)

// Sim is a synthetic sampler for running without an oscilloscope. It models
// a Gaussian focal spot centred on the position where the scan starts, so
// mock runs still produce plausible heatmaps.
type Sim struct {
	// Amplitude is the positive peak voltage at the centre of the spot.
	Amplitude float64

	// Sigma is the spot width in millimetres.
	Sigma float64

	// Noise is the standard deviation of additive measurement noise, in volts.
	Noise float64

	// Position reports the current probe offset from the scan start, in mm.
	// When nil the probe is assumed to sit at the centre.
	Position func() (x, y, z float64)

	rng *rand.Rand
}

// NewSim returns a simulated sampler with a 10mm-wide, 1V focal spot.
func NewSim(position func() (x, y, z float64)) *Sim {
	return &Sim{
		Amplitude: 1.0,
		Sigma:     5.0,
		Noise:     0.01,
		Position:  position,
		rng:       rand.New(rand.NewSource(42)),
	}
}

// Measure returns the synthetic reading for the current probe position.
func (s *Sim) Measure() (*Peaks, error) {
	var x, y, z float64
	if s.Position != nil {
		x, y, z = s.Position()
	}
	r2 := x*x + y*y + z*z
	amp := s.Amplitude * math.Exp(-r2/(2*s.Sigma*s.Sigma))
	if s.Noise > 0 && s.rng != nil {
		amp += s.Noise * s.rng.NormFloat64()
	}

	p := &Peaks{
		Positive:   amp,
		Negative:   -0.9 * amp,
		PeakToPeak: math.NaN(),
		Method:     "SIM",
	}
	p.Derive()
	return p, nil
}

// Waveform synthesizes a short tone burst scaled to the current amplitude.
func (s *Sim) Waveform() (*Trace, error) {
	p, _ := s.Measure()
	const n = 700
	volts := make([]float64, n)
	for i := range volts {
		t := float64(i) / n
		envelope := math.Exp(-math.Pow((t-0.5)/0.1, 2))
		volts[i] = p.Positive * envelope * math.Sin(2*math.Pi*40*t)
	}
	return &Trace{Volts: volts, Interval: 1e-7}, nil
}
