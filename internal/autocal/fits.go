package autocal

import (
	"math"

	"github.com/agriscan/agriscan-go/internal/domain"
)

// Drainage fit acceptance bounds, 1/hr.
const (
	kdMin = 0.001
	kdMax = 1.0
)

// Drydown fit acceptance bound, 1/hr.
const kuMax = 0.1

// FitDrainage fits the drainage rate k_d from a post-event segment:
// log-linear regression of ln(theta - theta_fc) against hours over the
// points still above field capacity. Requires at least five such points
// and a rate within [0.001, 1.0].
func FitDrainage(segment []domain.Sample, thetaFC float64) (float64, bool) {
	var xs, ys []float64
	var t0 int64 = -1
	for _, s := range segment {
		excess := s.Theta - thetaFC
		if excess <= 0 {
			continue
		}
		if t0 < 0 {
			t0 = s.Timestamp
		}
		xs = append(xs, float64(s.Timestamp-t0)/3600.0)
		ys = append(ys, math.Log(excess))
	}
	if len(xs) < 5 {
		return 0, false
	}
	slope, ok := olsSlope(xs, ys)
	if !ok {
		return 0, false
	}
	kd := -slope
	if kd < kdMin || kd > kdMax {
		return 0, false
	}
	return kd, true
}

// FitDrydown fits the simplified (beta = 1) drydown model over a segment:
// theta_min is the segment minimum less a margin, and
// k_u = -ln((theta_end - theta_min)/(theta_0 - theta_min)) / t_hours.
// Accepts only 0 < k_u < 0.1.
func FitDrydown(segment []domain.Sample) (ku, thetaMin float64, ok bool) {
	if len(segment) < 2 {
		return 0, 0, false
	}
	minTheta := segment[0].Theta
	for _, s := range segment {
		if s.Theta < minTheta {
			minTheta = s.Theta
		}
	}
	thetaMin = minTheta - 0.01

	first, last := segment[0], segment[len(segment)-1]
	hours := float64(last.Timestamp-first.Timestamp) / 3600.0
	if hours <= 0 {
		return 0, 0, false
	}
	num := last.Theta - thetaMin
	den := first.Theta - thetaMin
	if num <= 0 || den <= 0 {
		return 0, 0, false
	}
	ku = -math.Log(num/den) / hours
	if ku <= 0 || ku >= kuMax {
		return 0, 0, false
	}
	return ku, thetaMin, true
}

func olsSlope(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	var sx, sy, sxx, sxy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxx += xs[i] * xs[i]
		sxy += xs[i] * ys[i]
	}
	denom := n*sxx - sx*sx
	if denom == 0 {
		return 0, false
	}
	return (n*sxy - sx*sy) / denom, true
}
