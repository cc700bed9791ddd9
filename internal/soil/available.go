package soil

// WaterBudget is the plant-available-water accounting for a rooting depth.
// All depths are in millimetres.
type WaterBudget struct {
	TAWmm            float64 // total available water between FC and PWP
	AWmm             float64 // current available water
	DepletionMm      float64 // water used from TAW
	FractionDepleted float64 // depletion / TAW, clamped to [0, 1]
}

// AvailableWater computes the water budget for the current content theta
// given the field capacity, wilting point, and root depth in cm.
func AvailableWater(theta, thetaFC, thetaPWP, rootDepthCm float64) WaterBudget {
	taw := (thetaFC - thetaPWP) * rootDepthCm * 10.0
	aw := (theta - thetaPWP) * rootDepthCm * 10.0
	if aw < 0 {
		aw = 0
	}
	b := WaterBudget{TAWmm: taw, AWmm: aw}
	if taw > 0 {
		b.DepletionMm = taw - aw
		frac := b.DepletionMm / taw
		if frac < 0 {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
		b.FractionDepleted = frac
	}
	return b
}
