package dynamics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{Kd: 0.05, Ku: 0.02, Beta: 1, ThetaMin: 0.10}
}

func TestRateDrainageAboveFC(t *testing.T) {
	p := testParams()

	r := p.Rate(0.35, 0.30)
	assert.InDelta(t, -0.05*0.05, r, 1e-12)
}

func TestRateDrydownBelowFC(t *testing.T) {
	p := testParams()

	r := p.Rate(0.25, 0.30)
	assert.InDelta(t, -0.02*0.15, r, 1e-12)
}

func TestRateFloorsAtThetaMin(t *testing.T) {
	p := testParams()

	assert.Equal(t, 0.0, p.Rate(0.10, 0.30))
	assert.Equal(t, 0.0, p.Rate(0.05, 0.30))
}

func TestSimulateDecaysTowardFC(t *testing.T) {
	p := testParams()

	traj := p.Simulate(0.40, 0.30, WeekAheadHours)
	require.Len(t, traj, 29) // 168h / 6h + initial point

	assert.Equal(t, 0.40, traj[0].Theta)
	for i := 1; i < len(traj); i++ {
		assert.LessOrEqual(t, traj[i].Theta, traj[i-1].Theta, "theta must not rise during decay")
	}
	// After a week of drainage + drydown theta sits below FC.
	assert.Less(t, traj[len(traj)-1].Theta, 0.30)
	assert.GreaterOrEqual(t, traj[len(traj)-1].Theta, p.ThetaMin)
}

func TestSimulateDayAhead(t *testing.T) {
	p := testParams()

	traj := p.Simulate(0.28, 0.30, DayAheadHours)
	require.Len(t, traj, 5)
	assert.Equal(t, 0.0, traj[0].Hours)
	assert.Equal(t, 24.0, traj[len(traj)-1].Hours)
}

func TestApplyIrrigation(t *testing.T) {
	// 15 mm over 30 cm root depth is +0.05.
	theta := ApplyIrrigation(0.20, 15, 30, 0.43)
	assert.InDelta(t, 0.25, theta, 1e-9)
}

func TestApplyIrrigationCapsAtSaturation(t *testing.T) {
	theta := ApplyIrrigation(0.40, 30, 30, 0.43)
	assert.Equal(t, 0.43, theta)
}

func TestCompareIrrigation(t *testing.T) {
	p := testParams()

	outcomes := p.CompareIrrigation(0.18, 0.30, 30, 0.43, DayAheadHours, []float64{0, 10, 25})
	require.Len(t, outcomes, 3)

	assert.Equal(t, 0.18, outcomes[0].ThetaAfter)
	assert.InDelta(t, 0.18+10.0/300.0, outcomes[1].ThetaAfter, 1e-9)
	// Deeper irrigation must end the horizon wetter.
	assert.Greater(t, outcomes[2].ThetaEnd, outcomes[1].ThetaEnd)
	assert.Greater(t, outcomes[1].ThetaEnd, outcomes[0].ThetaEnd)
}

func TestDrainageQuality(t *testing.T) {
	tests := []struct {
		kd   float64
		want string
	}{
		{0.005, "poor"},
		{0.01, "good"},
		{0.08, "good"},
		{0.15, "good"},
		{0.2, "excessive"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DrainageQuality(tt.kd), "kd=%v", tt.kd)
	}
}
