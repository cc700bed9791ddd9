// Package detect identifies soil-water episodes in the trailing sample
// window: wetting fronts, field-capacity plateaus after drainage, drying
// slopes, and the overall regime classification.
package detect

import (
	"math"
	"sort"

	"github.com/agriscan/agriscan-go/internal/domain"
)

// Production defaults for the detector thresholds.
const (
	DefaultWetJumpThresh      = 0.02      // m3/m3 rise that counts as a wetting event
	DefaultMinEventSeparation = 43200     // seconds between accepted events
	DefaultSlopeWindow        = 7200      // seconds of trailing window for slope fits
	DefaultSMin               = 5e-4      // m3/m3/hr below which the soil is settled
	DefaultHoldSeconds        = 8 * 3600  // plateau hold window
	DefaultMinHoldSamples     = 10        // samples required inside the hold
	minSlopePoints            = 3
)

// Reason explains why a wetting check did not fire.
type Reason string

const (
	ReasonDetected       Reason = "detected"
	ReasonBelowThreshold Reason = "below_threshold"
	ReasonTooSoon        Reason = "too_soon_after_last_event"
	ReasonNoData         Reason = "no_data"
)

// Wetting describes an accepted wetting event.
type Wetting struct {
	TsStart    int64
	TsEnd      int64
	DeltaTheta float64
}

// Detector applies the episode checks against copies of the ring window.
type Detector struct {
	WetJumpThresh      float64
	MinEventSeparation int64 // seconds
	SlopeWindow        int64 // seconds
	SMin               float64
	HoldSeconds        int64
	MinHoldSamples     int

	// Simulation mode accepts smaller jumps when the short trend is steep,
	// so commissioning converges in minutes instead of days.
	SimulationMode bool
}

// NewDetector returns a detector with production thresholds.
func NewDetector() *Detector {
	return &Detector{
		WetJumpThresh:      DefaultWetJumpThresh,
		MinEventSeparation: DefaultMinEventSeparation,
		SlopeWindow:        DefaultSlopeWindow,
		SMin:               DefaultSMin,
		HoldSeconds:        DefaultHoldSeconds,
		MinHoldSamples:     DefaultMinHoldSamples,
	}
}

// Slope fits an ordinary least-squares slope of theta against time in
// hours over the given samples. It reports false with fewer than three
// points.
func Slope(samples []domain.Sample) (float64, bool) {
	if len(samples) < minSlopePoints {
		return 0, false
	}
	t0 := samples[0].Timestamp
	var sx, sy, sxx, sxy float64
	for _, s := range samples {
		x := float64(s.Timestamp-t0) / 3600.0
		sx += x
		sy += s.Theta
		sxx += x * x
		sxy += x * s.Theta
	}
	n := float64(len(samples))
	denom := n*sxx - sx*sx
	if denom == 0 {
		return 0, false
	}
	return (n*sxy - sx*sy) / denom, true
}

// DryingRate returns the OLS slope over the trailing slope window of the
// given samples (ordered oldest first), or false with too few points.
func (d *Detector) DryingRate(window []domain.Sample) (float64, bool) {
	return Slope(window)
}

// CheckWetting looks for a wetting event over the trailing slope window.
// lastEventTS is the timestamp of the last accepted event (0 for none).
func (d *Detector) CheckWetting(window []domain.Sample, lastEventTS int64) (Wetting, Reason) {
	if len(window) < 2 {
		return Wetting{}, ReasonNoData
	}
	first, last := window[0], window[len(window)-1]
	if lastEventTS > 0 && last.Timestamp-lastEventTS < d.MinEventSeparation {
		return Wetting{}, ReasonTooSoon
	}

	delta := last.Theta - first.Theta
	if delta >= d.WetJumpThresh {
		return Wetting{TsStart: first.Timestamp, TsEnd: last.Timestamp, DeltaTheta: delta}, ReasonDetected
	}

	if d.SimulationMode && len(window) >= 5 {
		tail := window[len(window)-5:]
		trend := tail[len(tail)-1].Theta - tail[0].Theta
		if trend > 0.03 {
			return Wetting{TsStart: tail[0].Timestamp, TsEnd: last.Timestamp, DeltaTheta: trend}, ReasonDetected
		}
	}
	return Wetting{}, ReasonBelowThreshold
}

// CheckPlateau looks for a field-capacity plateau: a settled slope
// sustained over the hold window with enough samples. The candidate FC is
// the median theta over the hold.
func (d *Detector) CheckPlateau(hold []domain.Sample) (float64, bool) {
	if len(hold) < d.MinHoldSamples {
		return 0, false
	}
	span := hold[len(hold)-1].Timestamp - hold[0].Timestamp
	if span < d.HoldSeconds {
		return 0, false
	}
	slope, ok := Slope(hold)
	if !ok || math.Abs(slope) >= d.SMin {
		return 0, false
	}
	return medianTheta(hold), true
}

// Classify maps the current slope and theta to a regime.
func (d *Detector) Classify(slope float64, slopeOK bool, theta, thetaFC float64) domain.Regime {
	if !slopeOK {
		return domain.RegimeUnknown
	}
	if slope > 0.001 {
		return domain.RegimeWetting
	}
	if math.Abs(slope) < d.SMin {
		return domain.RegimeStable
	}
	if theta > thetaFC {
		return domain.RegimeDrainage
	}
	return domain.RegimeDrydown
}

func medianTheta(samples []domain.Sample) float64 {
	thetas := make([]float64, len(samples))
	for i, s := range samples {
		thetas[i] = s.Theta
	}
	sort.Float64s(thetas)
	n := len(thetas)
	if n%2 == 1 {
		return thetas[n/2]
	}
	return (thetas[n/2-1] + thetas[n/2]) / 2
}

// Percentile returns the p-th percentile (0..100) of theta over samples
// by nearest-rank, or false for an empty input.
func Percentile(samples []domain.Sample, p float64) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	thetas := make([]float64, len(samples))
	for i, s := range samples {
		thetas[i] = s.Theta
	}
	sort.Float64s(thetas)
	rank := int(math.Ceil(p/100.0*float64(len(thetas)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(thetas) {
		rank = len(thetas) - 1
	}
	return thetas[rank], true
}
