// Package dynamics models the soil water balance forward in time and
// classifies each sample into an irrigation status with hysteresis.
package dynamics

import "math"

// Euler step size for forward simulation, hours.
const StepHours = 6.0

// Outlook horizons, hours.
const (
	DayAheadHours  = 24.0
	WeekAheadHours = 7 * 24.0
)

// Params are the fitted dynamics coefficients, per hour.
type Params struct {
	Kd       float64 // drainage rate above FC
	Ku       float64 // drydown coefficient
	Beta     float64 // drydown exponent (1 for the simplified fit)
	ThetaMin float64 // asymptotic dry floor
}

// Rate returns dtheta/dt at water content theta given field capacity fc.
// Drainage applies above FC, drydown below; each term floors at zero.
func (p Params) Rate(theta, fc float64) float64 {
	if theta > fc {
		return -p.Kd * (theta - fc)
	}
	if theta > p.ThetaMin {
		beta := p.Beta
		if beta == 0 {
			beta = 1
		}
		return -p.Ku * math.Pow(theta-p.ThetaMin, beta)
	}
	return 0
}

// Point is one simulated (hours-ahead, theta) pair.
type Point struct {
	Hours float64 `json:"hours"`
	Theta float64 `json:"theta"`
}

// Simulate integrates the dynamics forward from theta0 over horizonHours
// with explicit Euler steps, returning the trajectory including t=0.
func (p Params) Simulate(theta0, fc, horizonHours float64) []Point {
	steps := int(horizonHours/StepHours + 0.5)
	out := make([]Point, 0, steps+1)
	theta := theta0
	out = append(out, Point{Hours: 0, Theta: theta})
	for i := 1; i <= steps; i++ {
		theta += StepHours * p.Rate(theta, fc)
		if theta < p.ThetaMin {
			theta = p.ThetaMin
		}
		out = append(out, Point{Hours: float64(i) * StepHours, Theta: theta})
	}
	return out
}

// ApplyIrrigation converts an irrigation depth in mm over root depth
// rootDepthCm into a theta increment, capped at saturation thetaS.
func ApplyIrrigation(theta, depthMm, rootDepthCm, thetaS float64) float64 {
	theta += depthMm / (rootDepthCm * 10.0)
	if theta > thetaS {
		return thetaS
	}
	return theta
}

// IrrigationOutcome is the simulated end state for one candidate depth.
type IrrigationOutcome struct {
	DepthMm    float64 `json:"depth_mm"`
	ThetaAfter float64 `json:"theta_after"` // immediately after application
	ThetaEnd   float64 `json:"theta_end"`   // at the end of the horizon
}

// CompareIrrigation simulates each candidate depth forward over
// horizonHours and reports where theta ends up.
func (p Params) CompareIrrigation(theta0, fc, rootDepthCm, thetaS, horizonHours float64, depthsMm []float64) []IrrigationOutcome {
	out := make([]IrrigationOutcome, 0, len(depthsMm))
	for _, d := range depthsMm {
		start := ApplyIrrigation(theta0, d, rootDepthCm, thetaS)
		traj := p.Simulate(start, fc, horizonHours)
		out = append(out, IrrigationOutcome{
			DepthMm:    d,
			ThetaAfter: start,
			ThetaEnd:   traj[len(traj)-1].Theta,
		})
	}
	return out
}

// DrainageQuality grades the fitted drainage rate for advisory messaging.
func DrainageQuality(kd float64) string {
	switch {
	case kd < 0.01:
		return "poor"
	case kd > 0.15:
		return "excessive"
	default:
		return "good"
	}
}
