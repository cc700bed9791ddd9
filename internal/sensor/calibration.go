// Package sensor converts raw capacitive-probe ADC readings into volumetric
// water content and screens each reading for quality. It also defines the
// probe Reader interface the acquisition loop samples from.
package sensor

// Theta bounds enforced after all corrections.
const (
	ThetaMin = 0.0
	ThetaMax = 0.50
)

// Breakpoint is one (raw ADC, theta) point on the factory curve.
type Breakpoint struct {
	Raw   int
	Theta float64
}

// FactoryCurve is the default capacitive-sensor calibration curve.
// Readings outside the endpoints clamp to the endpoint thetas.
var FactoryCurve = []Breakpoint{
	{250, 0.00},
	{450, 0.10},
	{650, 0.25},
	{850, 0.40},
	{1000, 0.50},
}

// Calibrator maps raw ADC readings to water content: piecewise-linear
// interpolation over the factory curve, then a site correction
// gain*theta + offset, then a temperature correction a*(T - Tref).
// ThetaLo/ThetaHi clamp the result; soils with a known porosity set a
// tighter ThetaHi than the factory default.
type Calibrator struct {
	Curve     []Breakpoint
	Gain      float64
	Offset    float64
	TempCoeff float64 // theta per degree C; 0 disables the correction
	TempRefC  float64
	ThetaLo   float64
	ThetaHi   float64
}

// NewCalibrator returns a calibrator with the factory curve, neutral
// site/temperature corrections, and the default theta bounds.
func NewCalibrator() *Calibrator {
	return &Calibrator{
		Curve:    FactoryCurve,
		Gain:     1.0,
		Offset:   0.0,
		TempRefC: 20.0,
		ThetaLo:  ThetaMin,
		ThetaHi:  ThetaMax,
	}
}

// Convert maps a raw ADC reading at probe temperature tempC to a clamped
// volumetric water content.
func (c *Calibrator) Convert(raw int, tempC float64) float64 {
	theta := c.interpolate(raw)
	theta = c.Gain*theta + c.Offset
	theta += c.TempCoeff * (tempC - c.TempRefC)
	if theta < c.ThetaLo {
		return c.ThetaLo
	}
	if theta > c.ThetaHi {
		return c.ThetaHi
	}
	return theta
}

func (c *Calibrator) interpolate(raw int) float64 {
	curve := c.Curve
	if len(curve) == 0 {
		return 0
	}
	if raw <= curve[0].Raw {
		return curve[0].Theta
	}
	last := curve[len(curve)-1]
	if raw >= last.Raw {
		return last.Theta
	}
	for i := 1; i < len(curve); i++ {
		if raw <= curve[i].Raw {
			lo, hi := curve[i-1], curve[i]
			frac := float64(raw-lo.Raw) / float64(hi.Raw-lo.Raw)
			return lo.Theta + frac*(hi.Theta-lo.Theta)
		}
	}
	return last.Theta
}
