// Package soil implements the soil-hydraulic model: the van Genuchten
// retention curve and its inverse, Mualem-van Genuchten conductivity, and
// plant-available-water accounting over a rooting depth.
package soil

import "math"

// Matric potential landmarks in cm H2O.
const (
	PsiFieldCapacityCm = 330   // ~ -33 kPa
	PsiWiltingPointCm  = 15000 // ~ -1500 kPa
)

// Params are van Genuchten retention parameters plus saturated conductivity.
// Alpha is in 1/cm, Ks in cm/day.
type Params struct {
	ThetaR float64 `json:"theta_r"`
	ThetaS float64 `json:"theta_s"`
	Alpha  float64 `json:"alpha"`
	N      float64 `json:"n"`
	Ks     float64 `json:"ks"`
}

// DefaultLoam returns the loam parameter set used when no site-specific
// soil class is configured.
func DefaultLoam() Params {
	return Params{ThetaR: 0.078, ThetaS: 0.43, Alpha: 0.036, N: 1.56, Ks: 25.0}
}

// m is the van Genuchten shape parameter derived from n.
func (p Params) m() float64 {
	return 1.0 - 1.0/p.N
}

// Theta returns the water content at matric potential magnitude psiCm
// (cm H2O). Non-positive tension means saturation.
func (p Params) Theta(psiCm float64) float64 {
	if psiCm <= 0 {
		return p.ThetaS
	}
	se := math.Pow(1.0+math.Pow(p.Alpha*psiCm, p.N), -p.m())
	return p.ThetaR + (p.ThetaS-p.ThetaR)*se
}

// PsiCm inverts the retention curve: the tension magnitude in cm H2O at
// water content theta. Theta is clamped just inside (theta_r, theta_s)
// before inversion so the result stays finite.
func (p Params) PsiCm(theta float64) float64 {
	lo := p.ThetaR + 0.001
	hi := p.ThetaS - 0.001
	if theta < lo {
		theta = lo
	}
	if theta > hi {
		theta = hi
	}
	se := (theta - p.ThetaR) / (p.ThetaS - p.ThetaR)
	m := p.m()
	inner := math.Pow(se, -1.0/m) - 1.0
	return math.Pow(inner, 1.0/p.N) / p.Alpha
}

// PsiKPa returns the tension magnitude in kPa at water content theta.
func (p Params) PsiKPa(theta float64) float64 {
	return p.PsiCm(theta) / 10.0
}

// FieldCapacity returns theta at the field-capacity landmark tension.
func (p Params) FieldCapacity() float64 {
	return p.Theta(PsiFieldCapacityCm)
}

// WiltingPoint returns theta at the permanent-wilting-point tension.
func (p Params) WiltingPoint() float64 {
	return p.Theta(PsiWiltingPointCm)
}

// Conductivity returns the unsaturated hydraulic conductivity K(theta)
// per Mualem-van Genuchten with pore-connectivity exponent L = 0.5.
func (p Params) Conductivity(theta float64) float64 {
	const l = 0.5
	se := (theta - p.ThetaR) / (p.ThetaS - p.ThetaR)
	if se >= 1 {
		return p.Ks
	}
	if se <= 0.01 {
		return p.Ks * 1e-10
	}
	m := p.m()
	term := 1.0 - math.Pow(1.0-math.Pow(se, 1.0/m), m)
	return p.Ks * math.Pow(se, l) * term * term
}
