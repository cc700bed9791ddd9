package sensor

import (
	"math"
	"time"

	"github.com/agriscan/agriscan-go/internal/domain"
)

// Probe temperature limits in degrees C.
const (
	TempMinC = -10.0
	TempMaxC = 60.0
)

// History sizes the QC checks look back over.
const (
	spikeWindow = 5
	stuckWindow = 10
)

// Reading is one prior (timestamp, theta) pair handed to QC checks.
type Reading struct {
	Timestamp int64 // epoch seconds
	Theta     float64
}

// QualityControl screens each converted reading against its trailing
// history. Flags are advisory for persistence and gating for calibration.
type QualityControl struct {
	SpikeZ   float64       // z-score threshold for the spike check
	StuckEps float64       // theta range below which readings count as stuck
	StuckMin time.Duration // minimum span of identical readings to flag STUCK
	ThetaLo  float64       // plausible theta bounds for the OUT_OF_BOUNDS flag
	ThetaHi  float64
}

// NewQualityControl returns QC with the production thresholds.
func NewQualityControl() *QualityControl {
	return &QualityControl{
		SpikeZ:   6.0,
		StuckEps: 0.001,
		StuckMin: 2 * time.Hour,
		ThetaLo:  ThetaMin,
		ThetaHi:  ThetaMax,
	}
}

// Check evaluates theta and tempC against the trailing history (oldest
// first, not including the current reading) and returns any QC flags.
func (q *QualityControl) Check(theta, tempC float64, history []Reading, now int64) []domain.QCFlag {
	var flags []domain.QCFlag

	if theta < q.ThetaLo || theta > q.ThetaHi {
		flags = append(flags, domain.QCOutOfBounds)
	}
	if tempC < TempMinC || tempC > TempMaxC {
		flags = append(flags, domain.QCTempOutOfRange)
	}
	if q.isSpike(theta, history) {
		flags = append(flags, domain.QCSpike)
	}
	if q.isStuck(theta, history, now) {
		flags = append(flags, domain.QCStuck)
	}
	return flags
}

func (q *QualityControl) isSpike(theta float64, history []Reading) bool {
	if len(history) < spikeWindow {
		return false
	}
	recent := history[len(history)-spikeWindow:]
	var sum float64
	for _, r := range recent {
		sum += r.Theta
	}
	mean := sum / float64(len(recent))
	var ss float64
	for _, r := range recent {
		d := r.Theta - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(recent)))
	const eps = 1e-6
	return math.Abs(theta-mean)/(std+eps) > q.SpikeZ
}

func (q *QualityControl) isStuck(theta float64, history []Reading, now int64) bool {
	if len(history) < stuckWindow-1 {
		return false
	}
	recent := history[len(history)-(stuckWindow-1):]
	lo, hi := theta, theta
	for _, r := range recent {
		if r.Theta < lo {
			lo = r.Theta
		}
		if r.Theta > hi {
			hi = r.Theta
		}
	}
	if hi-lo >= q.StuckEps {
		return false
	}
	span := time.Duration(now-recent[0].Timestamp) * time.Second
	return span >= q.StuckMin
}
