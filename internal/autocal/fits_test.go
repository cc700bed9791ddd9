package autocal

import (
	"math"
	"testing"

	"github.com/agriscan/agriscan-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decaySegment(theta0, thetaFloor, kPerHour float64, n int, cadence int64) []domain.Sample {
	out := make([]domain.Sample, n)
	for i := 0; i < n; i++ {
		ts := int64(i) * cadence
		hours := float64(ts) / 3600.0
		out[i] = domain.Sample{
			Timestamp: ts,
			Theta:     thetaFloor + (theta0-thetaFloor)*math.Exp(-kPerHour*hours),
		}
	}
	return out
}

func TestFitDrainageRecoversRate(t *testing.T) {
	// Exponential drainage toward FC at 0.08/hr.
	const fc = 0.30
	seg := decaySegment(0.38, fc, 0.08, 24, 900)

	kd, ok := FitDrainage(seg, fc)
	require.True(t, ok)
	assert.InDelta(t, 0.08, kd, 0.005)
}

func TestFitDrainageNeedsPointsAboveFC(t *testing.T) {
	const fc = 0.30
	seg := []domain.Sample{
		{Timestamp: 0, Theta: 0.32},
		{Timestamp: 900, Theta: 0.31},
		{Timestamp: 1800, Theta: 0.29},
		{Timestamp: 2700, Theta: 0.28},
	}

	_, ok := FitDrainage(seg, fc)
	assert.False(t, ok, "only two points above FC")
}

func TestFitDrainageRejectsOutOfRange(t *testing.T) {
	const fc = 0.30
	// Essentially flat excess: the fitted rate falls below 0.001.
	var seg []domain.Sample
	for i := 0; i < 10; i++ {
		seg = append(seg, domain.Sample{Timestamp: int64(i) * 900, Theta: 0.35})
	}

	_, ok := FitDrainage(seg, fc)
	assert.False(t, ok)
}

func TestFitDrydownRecoversCoefficient(t *testing.T) {
	// Slow exponential drydown: fitted k_u must land inside (0, 0.1).
	seg := decaySegment(0.28, 0.12, 0.02, 200, 900)

	ku, thetaMin, ok := FitDrydown(seg)
	require.True(t, ok)
	assert.Greater(t, ku, 0.0)
	assert.Less(t, ku, 0.1)
	assert.InDelta(t, seg[len(seg)-1].Theta-0.01, thetaMin, 1e-9)
}

func TestFitDrydownRejectsRising(t *testing.T) {
	seg := []domain.Sample{
		{Timestamp: 0, Theta: 0.20},
		{Timestamp: 3600, Theta: 0.22},
		{Timestamp: 7200, Theta: 0.25},
	}

	_, _, ok := FitDrydown(seg)
	assert.False(t, ok, "rising segment must not produce a drydown rate")
}

func TestFitDrydownRejectsTooFast(t *testing.T) {
	// Crash from 0.30 to 0.11 in 2h: k_u lands far above 0.1.
	seg := []domain.Sample{
		{Timestamp: 0, Theta: 0.30},
		{Timestamp: 3600, Theta: 0.18},
		{Timestamp: 7200, Theta: 0.11},
	}

	_, _, ok := FitDrydown(seg)
	assert.False(t, ok)
}

func TestFitDrydownTooShort(t *testing.T) {
	_, _, ok := FitDrydown([]domain.Sample{{Timestamp: 0, Theta: 0.2}})
	assert.False(t, ok)
}
