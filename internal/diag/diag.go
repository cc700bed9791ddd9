// Package diag assembles the device diagnostics surface: host health plus
// a summary of the sensing and calibration state.
package diag

import (
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/agriscan/agriscan-go/internal/domain"
	"github.com/agriscan/agriscan-go/internal/sensor"
)

// Calibration status labels shown to the operator, chosen by confidence.
const (
	LabelLearning    = "Learning"
	LabelCalibrating = "Calibrating"
	LabelCalibrated  = "Calibrated"
)

// Confidence cut points for the labels.
const (
	learningBelow    = 0.35
	calibratingBelow = 0.65
)

// Probe status labels derived from the latest QC flags.
const (
	SoilOK          = "ok"
	SoilStuck       = "stuck"
	SoilOutOfBounds = "out_of_bounds"
	SoilSpike       = "spike"

	TempOK           = "ok"
	TempDisconnected = "disconnected"
	TempOutOfRange   = "out_of_range"
)

// SensorHealth is the probe section of the diagnostics report.
type SensorHealth struct {
	SoilStatus         string  `json:"soil_status"`
	SoilLastRaw        int     `json:"soil_last_raw"`
	TempStatus         string  `json:"temp_status"`
	TempLastC          float64 `json:"temp_last_c"`
	FailureRatePercent float64 `json:"failure_rate_percent"`
}

// AssessSensor derives the probe health from the trailing samples (oldest
// first): statuses come from the newest sample's QC flags, the failure
// rate from the whole window. The second return is the QC-invalid count.
func AssessSensor(recent []domain.Sample) (SensorHealth, int64) {
	h := SensorHealth{SoilStatus: SoilOK, TempStatus: TempOK}
	if len(recent) == 0 {
		return h, 0
	}

	last := recent[len(recent)-1]
	h.SoilLastRaw = last.Raw
	h.TempLastC = last.TempC

	switch {
	case last.HasFlag(domain.QCStuck):
		h.SoilStatus = SoilStuck
	case last.HasFlag(domain.QCOutOfBounds):
		h.SoilStatus = SoilOutOfBounds
	case last.HasFlag(domain.QCSpike):
		h.SoilStatus = SoilSpike
	}
	switch {
	case last.TempC <= sensor.TempDisconnectedC:
		h.TempStatus = TempDisconnected
	case last.HasFlag(domain.QCTempOutOfRange):
		h.TempStatus = TempOutOfRange
	}

	var invalid int64
	for _, s := range recent {
		if !s.QCValid {
			invalid++
		}
	}
	h.FailureRatePercent = 100.0 * float64(invalid) / float64(len(recent))
	return h, invalid
}

// Host is a snapshot of device health.
type Host struct {
	DiskFreeBytes  uint64  `json:"disk_free_bytes"`
	DiskUsedPct    float64 `json:"disk_used_pct"`
	MemUsedPct     float64 `json:"mem_used_pct"`
	UptimeSeconds  uint64  `json:"uptime_seconds"`
	CollectedAtUTC string  `json:"collected_at_utc"`
}

// Report is the full diagnostics payload.
type Report struct {
	Host             Host         `json:"host"`
	Sensor           SensorHealth `json:"sensor"`
	DeviceName       string       `json:"device_name"`
	SimulationMode   bool         `json:"simulation_mode"`
	SampleCount      int          `json:"sample_count"`
	LastSampleTs     int64        `json:"last_sample_ts"`
	LastWriteTs      int64        `json:"last_write_ts"`
	CalState         string       `json:"cal_state"`
	CalStatus        string       `json:"cal_status"`
	Confidence       float64      `json:"confidence"`
	ThetaFC          float64      `json:"theta_fc"`
	ThetaRefill      float64      `json:"theta_refill"`
	EventsCaptured   int          `json:"events_captured"`
	Errors24h        int64        `json:"errors_24h"`
	DroppedTicks     int64        `json:"dropped_ticks"`
	QCInvalidSamples int64        `json:"qc_invalid_samples"`
}

// StatusLabel maps a calibration confidence onto the operator-facing label.
func StatusLabel(confidence float64) string {
	switch {
	case confidence < learningBelow:
		return LabelLearning
	case confidence < calibratingBelow:
		return LabelCalibrating
	default:
		return LabelCalibrated
	}
}

// CollectHost gathers host health via gopsutil. Probe failures zero the
// affected fields rather than failing the whole report; diagnostics must
// stay reachable when the host is unhealthy.
func CollectHost(dataPath string) Host {
	h := Host{CollectedAtUTC: time.Now().UTC().Format(time.RFC3339)}

	if du, err := disk.Usage(dataPath); err == nil {
		h.DiskFreeBytes = du.Free
		h.DiskUsedPct = du.UsedPercent
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.MemUsedPct = vm.UsedPercent
	}
	if up, err := host.Uptime(); err == nil {
		h.UptimeSeconds = up
	}
	return h
}
