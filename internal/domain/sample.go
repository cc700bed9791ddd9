// Package domain defines the canonical records shared by every AgriScan
// component: the decorated soil-moisture sample, calibration versions, and
// detected physics events. All boundary crossings (HTTP JSON, database rows)
// serialize these types.
package domain

// Regime is the qualitative state of the soil water balance.
type Regime string

const (
	RegimeWetting  Regime = "wetting"
	RegimeDrainage Regime = "drainage"
	RegimeDrydown  Regime = "drydown"
	RegimeStable   Regime = "stable"
	RegimeUnknown  Regime = "unknown"
)

// Status is the irrigation status classification.
type Status string

const (
	StatusFull    Status = "FULL"
	StatusOptimal Status = "OPTIMAL"
	StatusMonitor Status = "MONITOR"
	StatusRefill  Status = "REFILL"
	StatusUnknown Status = "UNKNOWN"
)

// Urgency ranks how soon the operator should act on the current status.
type Urgency string

const (
	UrgencyNone   Urgency = "none"
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// QCFlag marks a quality-control failure on a sample.
type QCFlag string

const (
	QCOutOfBounds    QCFlag = "OUT_OF_BOUNDS"
	QCSpike          QCFlag = "SPIKE"
	QCStuck          QCFlag = "STUCK"
	QCTempOutOfRange QCFlag = "TEMP_OUT_OF_RANGE"
)

// Sample is one fully decorated soil-moisture reading. It is immutable once
// stored: every derived field reflects the calibration state as of Timestamp.
type Sample struct {
	Timestamp        int64    `json:"timestamp"` // epoch seconds, unique in the log
	Raw              int      `json:"raw"`
	TempC            float64  `json:"temp_c"`
	Theta            float64  `json:"theta"` // volumetric water content, m3/m3
	ThetaFC          float64  `json:"theta_fc"`
	ThetaRefill      float64  `json:"theta_refill"`
	PsiKPa           float64  `json:"psi_kpa"`
	AWmm             float64  `json:"aw_mm"`
	FractionDepleted float64  `json:"fraction_depleted"`
	DryingRate       float64  `json:"drying_rate"` // dtheta/dt, m3/m3/hr, positive = wetting
	Regime           Regime   `json:"regime"`
	Status           Status   `json:"status"`
	Urgency          Urgency  `json:"urgency"`
	Confidence       float64  `json:"confidence"`
	QCValid          bool     `json:"qc_valid"`
	QCFlags          []QCFlag `json:"qc_flags,omitempty"`
	Seq              int64    `json:"seq"`
}

// HasFlag reports whether the sample carries the given QC flag.
func (s *Sample) HasFlag(f QCFlag) bool {
	for _, have := range s.QCFlags {
		if have == f {
			return true
		}
	}
	return false
}

// FlagStrings returns the QC flags as plain strings, for persistence.
func (s *Sample) FlagStrings() []string {
	out := make([]string, len(s.QCFlags))
	for i, f := range s.QCFlags {
		out[i] = string(f)
	}
	return out
}
