package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertAtBreakpoints(t *testing.T) {
	c := NewCalibrator()

	tests := []struct {
		raw   int
		theta float64
	}{
		{250, 0.00},
		{450, 0.10},
		{650, 0.25},
		{850, 0.40},
		{1000, 0.50},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.theta, c.Convert(tt.raw, 20), 1e-9, "raw=%d", tt.raw)
	}
}

func TestConvertInterpolatesBetweenBreakpoints(t *testing.T) {
	c := NewCalibrator()

	// Midpoint of the (450, 0.10)-(650, 0.25) segment.
	assert.InDelta(t, 0.175, c.Convert(550, 20), 1e-9)
	// Quarter of the (250, 0.00)-(450, 0.10) segment.
	assert.InDelta(t, 0.025, c.Convert(300, 20), 1e-9)
}

func TestConvertClampsOutsideCurve(t *testing.T) {
	c := NewCalibrator()

	assert.Equal(t, 0.0, c.Convert(0, 20))
	assert.Equal(t, 0.0, c.Convert(250, 20))
	assert.Equal(t, 0.50, c.Convert(1000, 20))
	assert.Equal(t, 0.50, c.Convert(4095, 20))
}

func TestConvertSiteCorrection(t *testing.T) {
	c := NewCalibrator()
	c.Gain = 1.1
	c.Offset = 0.02

	// 0.25 * 1.1 + 0.02
	assert.InDelta(t, 0.295, c.Convert(650, 20), 1e-9)
}

func TestConvertTemperatureCorrection(t *testing.T) {
	c := NewCalibrator()
	c.TempCoeff = 0.001

	// +10 C above reference adds 0.01.
	assert.InDelta(t, 0.26, c.Convert(650, 30), 1e-9)
	// Disabled by default.
	d := NewCalibrator()
	assert.InDelta(t, 0.25, d.Convert(650, 35), 1e-9)
}

func TestConvertFinalClamp(t *testing.T) {
	c := NewCalibrator()
	c.Offset = 0.2

	assert.Equal(t, 0.50, c.Convert(1000, 20))

	c.Offset = -0.2
	assert.Equal(t, 0.0, c.Convert(250, 20))
}

func TestConvertConfiguredBounds(t *testing.T) {
	// A denser soil caps porosity below the factory curve maximum.
	c := NewCalibrator()
	c.ThetaHi = 0.30

	assert.Equal(t, 0.30, c.Convert(1000, 20))
	assert.InDelta(t, 0.25, c.Convert(650, 20), 1e-9)

	c.ThetaLo = 0.05
	assert.Equal(t, 0.05, c.Convert(250, 20))
}
