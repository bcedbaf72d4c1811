package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSim_PeakFallsOffWithDistance(t *testing.T) {
	pos := [3]float64{}
	s := NewSim(func() (float64, float64, float64) { return pos[0], pos[1], pos[2] })
	s.Noise = 0 // deterministic

	atCentre, err := s.Measure()
	require.NoError(t, err)
	assert.InDelta(t, s.Amplitude, atCentre.Positive, 1e-9)

	pos = [3]float64{10, 0, 0}
	offCentre, err := s.Measure()
	require.NoError(t, err)
	assert.Less(t, offCentre.Positive, atCentre.Positive)
	assert.Greater(t, offCentre.Positive, 0.0)
}

func TestSim_PeaksAreConsistent(t *testing.T) {
	s := NewSim(nil)
	s.Noise = 0

	p, err := s.Measure()
	require.NoError(t, err)
	assert.InDelta(t, p.Positive-p.Negative, p.PeakToPeak, 1e-9)
	assert.Negative(t, p.Negative)
	assert.Equal(t, "SIM", p.Method)
}

func TestSim_Waveform(t *testing.T) {
	s := NewSim(nil)
	s.Noise = 0

	tr, err := s.Waveform()
	require.NoError(t, err)
	assert.NotEmpty(t, tr.Volts)
	assert.Positive(t, tr.Interval)

	max, min := traceExtremes(tr)
	assert.Positive(t, max)
	assert.Negative(t, min)
}
