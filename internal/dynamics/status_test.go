package dynamics

import (
	"testing"

	"github.com/agriscan/agriscan-go/internal/domain"
	"github.com/stretchr/testify/assert"
)

const (
	fc     = 0.30
	refill = 0.20
)

func TestEvaluateUnknownBeforeCalibration(t *testing.T) {
	e := NewEngine()

	d := e.Evaluate(0.25, 0, 0, false, 0)
	assert.Equal(t, domain.StatusUnknown, d.Status)
	assert.Equal(t, domain.UrgencyNone, d.Urgency)
	assert.Contains(t, d.Message, "Calibrating")
}

func TestEvaluateBands(t *testing.T) {
	tests := []struct {
		name       string
		theta      float64
		dryingRate float64
		status     domain.Status
		urgency    domain.Urgency
	}{
		{"full at fc", 0.30, 0, domain.StatusFull, domain.UrgencyNone},
		{"full above fc", 0.35, -0.01, domain.StatusFull, domain.UrgencyNone},
		{"optimal steady", 0.26, 0, domain.StatusOptimal, domain.UrgencyLow},
		{"monitor rapid dry", 0.26, -0.003, domain.StatusMonitor, domain.UrgencyMedium},
		{"monitor slow dry", 0.28, -0.001, domain.StatusMonitor, domain.UrgencyMedium},
		{"refill below band", 0.18, 0, domain.StatusRefill, domain.UrgencyHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine()
			d := e.Evaluate(tt.theta, fc, refill, true, tt.dryingRate)
			assert.Equal(t, tt.status, d.Status)
			assert.Equal(t, tt.urgency, d.Urgency)
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	// Same inputs always map to the same decision on a fresh engine.
	for i := 0; i < 5; i++ {
		e := NewEngine()
		d := e.Evaluate(0.26, fc, refill, true, -0.003)
		assert.Equal(t, domain.StatusMonitor, d.Status)
	}
}

func TestHysteresisHoldsRefill(t *testing.T) {
	e := NewEngine()

	d := e.Evaluate(0.185, fc, refill, true, 0)
	assert.Equal(t, domain.StatusRefill, d.Status)

	// Inside the band above the threshold: still latched.
	d = e.Evaluate(0.205, fc, refill, true, 0)
	assert.Equal(t, domain.StatusRefill, d.Status)

	// Clear of the band: released.
	d = e.Evaluate(0.215, fc, refill, true, 0)
	assert.NotEqual(t, domain.StatusRefill, d.Status)
}

func TestHysteresisNoFlapInsideBand(t *testing.T) {
	e := NewEngine()

	// Enter REFILL once.
	e.Evaluate(0.185, fc, refill, true, 0)

	// Oscillate within +/-H around the threshold: the status must stay
	// REFILL for the whole sequence.
	thetas := []float64{0.195, 0.205, 0.197, 0.208, 0.194, 0.209}
	for _, th := range thetas {
		d := e.Evaluate(th, fc, refill, true, 0)
		assert.Equal(t, domain.StatusRefill, d.Status, "theta=%v", th)
	}
}

func TestHysteresisBoundaryJustAboveBand(t *testing.T) {
	e := NewEngine()

	// Just inside the lower edge: not yet REFILL.
	d := e.Evaluate(refill-DefaultHysteresis, fc, refill, true, 0)
	assert.NotEqual(t, domain.StatusRefill, d.Status)

	// Strictly below the band: REFILL.
	d = e.Evaluate(refill-DefaultHysteresis-0.001, fc, refill, true, 0)
	assert.Equal(t, domain.StatusRefill, d.Status)
}

func TestUnknownResetsLatch(t *testing.T) {
	e := NewEngine()
	e.Evaluate(0.18, fc, refill, true, 0)

	d := e.Evaluate(0.18, 0, 0, false, 0)
	assert.Equal(t, domain.StatusUnknown, d.Status)

	// Relearning puts the engine back to plain threshold behaviour.
	d = e.Evaluate(0.25, fc, refill, true, 0)
	assert.Equal(t, domain.StatusOptimal, d.Status)
}
