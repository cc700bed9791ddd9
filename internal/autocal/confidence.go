package autocal

import "math"

// Confidence weights: events, FC stability, QC pass rate, data volume.
const (
	weightEvents    = 0.40
	weightStability = 0.25
	weightQC        = 0.20
	weightData      = 0.15
)

// dataProgressTarget is the clean-sample count for full data credit.
const dataProgressTarget = 50

// stateBonus rewards progression through the learning cycle.
var stateBonus = map[State]float64{
	StateInit:       0.0,
	StateBaseline:   0.05,
	StateWetting:    0.10,
	StateDrainage:   0.125,
	StateFCEstimate: 0.15,
	StateDrydownFit: 0.20,
	StateNormal:     0.25,
}

// Confidence scores how much the learned calibration can be trusted, in
// [0, 1]. It is a weighted sum of the episode count, the stability of the
// FC estimate, the QC pass rate, and data volume, plus a state bonus.
func (m *Machine) Confidence() float64 {
	eventScore := float64(m.nEvents) / float64(m.eventTarget())
	if eventScore > 1 {
		eventScore = 1
	}

	c := weightEvents*eventScore +
		weightStability*m.stabilityScore() +
		weightQC*m.qcRate() +
		weightData*m.dataProgress() +
		stateBonus[m.state]

	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// stabilityScore rewards a settled FC estimate: exp(-std/0.02) over the
// EWMA history, with partial credit before three updates exist.
func (m *Machine) stabilityScore() float64 {
	n := len(m.fcHistory)
	if n == 0 {
		return 0
	}
	if n < 3 {
		return float64(n) / 3.0
	}
	var sum float64
	for _, v := range m.fcHistory {
		sum += v
	}
	mean := sum / float64(n)
	var ss float64
	for _, v := range m.fcHistory {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(n))
	return math.Exp(-std / 0.02)
}

func (m *Machine) qcRate() float64 {
	if m.qcTotal == 0 {
		return 0
	}
	return float64(m.qcPass) / float64(m.qcTotal)
}

func (m *Machine) dataProgress() float64 {
	p := float64(m.qcTotal) / dataProgressTarget
	if p > 1 {
		return 1
	}
	return p
}
