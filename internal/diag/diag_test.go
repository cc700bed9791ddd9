package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agriscan/agriscan-go/internal/domain"
	"github.com/agriscan/agriscan-go/internal/sensor"
)

func TestStatusLabel(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{0.0, LabelLearning},
		{0.34, LabelLearning},
		{0.35, LabelCalibrating},
		{0.64, LabelCalibrating},
		{0.65, LabelCalibrated},
		{1.0, LabelCalibrated},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusLabel(tt.confidence), "confidence=%v", tt.confidence)
	}
}

func TestCollectHostNeverPanics(t *testing.T) {
	h := CollectHost(".")
	assert.NotEmpty(t, h.CollectedAtUTC)
}

func TestAssessSensorEmptyWindow(t *testing.T) {
	h, invalid := AssessSensor(nil)
	assert.Equal(t, SoilOK, h.SoilStatus)
	assert.Equal(t, TempOK, h.TempStatus)
	assert.Zero(t, h.FailureRatePercent)
	assert.Zero(t, invalid)
}

func TestAssessSensorHealthyProbe(t *testing.T) {
	h, invalid := AssessSensor([]domain.Sample{
		{Timestamp: 1000, Raw: 650, TempC: 21.5, Theta: 0.25, QCValid: true},
		{Timestamp: 1900, Raw: 652, TempC: 21.6, Theta: 0.251, QCValid: true},
	})
	assert.Equal(t, SoilOK, h.SoilStatus)
	assert.Equal(t, TempOK, h.TempStatus)
	assert.Equal(t, 652, h.SoilLastRaw)
	assert.Equal(t, 21.6, h.TempLastC)
	assert.Zero(t, h.FailureRatePercent)
	assert.Zero(t, invalid)
}

func TestAssessSensorStuckProbe(t *testing.T) {
	h, invalid := AssessSensor([]domain.Sample{
		{Timestamp: 1000, Raw: 650, TempC: 21.5, Theta: 0.25, QCValid: true},
		{Timestamp: 1900, Raw: 650, TempC: 21.5, Theta: 0.25, QCValid: false,
			QCFlags: []domain.QCFlag{domain.QCStuck}},
	})
	assert.Equal(t, SoilStuck, h.SoilStatus)
	assert.Equal(t, TempOK, h.TempStatus)
	assert.Equal(t, 50.0, h.FailureRatePercent)
	assert.Equal(t, int64(1), invalid)
}

func TestAssessSensorStuckOutranksSpike(t *testing.T) {
	h, _ := AssessSensor([]domain.Sample{
		{Timestamp: 1000, Raw: 650, TempC: 21.5, Theta: 0.25, QCValid: false,
			QCFlags: []domain.QCFlag{domain.QCSpike, domain.QCStuck}},
	})
	assert.Equal(t, SoilStuck, h.SoilStatus)
}

func TestAssessSensorTempDisconnected(t *testing.T) {
	h, invalid := AssessSensor([]domain.Sample{
		{Timestamp: 1000, Raw: 650, TempC: sensor.TempDisconnectedC, Theta: 0.25,
			QCValid: false, QCFlags: []domain.QCFlag{domain.QCTempOutOfRange}},
	})
	assert.Equal(t, TempDisconnected, h.TempStatus)
	assert.Equal(t, SoilOK, h.SoilStatus)
	assert.Equal(t, 100.0, h.FailureRatePercent)
	assert.Equal(t, int64(1), invalid)
}
