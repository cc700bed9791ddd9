package dynamics

import "github.com/agriscan/agriscan-go/internal/domain"

// DefaultHysteresis is the status band width in m3/m3.
const DefaultHysteresis = 0.01

// Drying-rate thresholds for the MONITOR band, m3/m3/hr.
const (
	rapidDryingRate = -0.002
	slowDryingRate  = -0.0005
)

// Decision is the status engine output for one sample.
type Decision struct {
	Status  domain.Status
	Urgency domain.Urgency
	Message string
}

// Engine classifies samples into irrigation statuses. It keeps the REFILL
// latch so statuses cannot flap inside the hysteresis band. Not safe for
// concurrent use; the pipeline serialises evaluation.
type Engine struct {
	Hysteresis float64
	inRefill   bool
}

// NewEngine returns a status engine with the default hysteresis band.
func NewEngine() *Engine {
	return &Engine{Hysteresis: DefaultHysteresis}
}

// Evaluate maps the current reading onto a status. refillKnown is false
// until auto-calibration has learned the refill threshold.
func (e *Engine) Evaluate(theta, thetaFC, thetaRefill float64, refillKnown bool, dryingRate float64) Decision {
	if !refillKnown {
		e.inRefill = false
		return Decision{Status: domain.StatusUnknown, Urgency: domain.UrgencyNone, Message: "Calibrating system…"}
	}

	h := e.Hysteresis
	if e.inRefill {
		if theta > thetaRefill+h {
			e.inRefill = false
		} else {
			return refillDecision()
		}
	}

	switch {
	case theta < thetaRefill-h:
		e.inRefill = true
		return refillDecision()
	case theta >= thetaFC:
		return Decision{Status: domain.StatusFull, Urgency: domain.UrgencyNone, Message: "Profile full — no irrigation needed"}
	case theta < thetaFC*0.9 && dryingRate < rapidDryingRate:
		return Decision{Status: domain.StatusMonitor, Urgency: domain.UrgencyMedium, Message: "Drying quickly — monitor closely"}
	case dryingRate < slowDryingRate:
		return Decision{Status: domain.StatusMonitor, Urgency: domain.UrgencyMedium, Message: "Drying — monitor"}
	default:
		return Decision{Status: domain.StatusOptimal, Urgency: domain.UrgencyLow, Message: "Soil moisture in the optimal band"}
	}
}

func refillDecision() Decision {
	return Decision{
		Status:  domain.StatusRefill,
		Urgency: domain.UrgencyHigh,
		Message: "Irrigate now — soil moisture critical",
	}
}
