package sensor

import (
	"context"
	"math"
	"sync"
)

// TempDisconnectedC is the sentinel a disconnected DS18B20-style probe
// reports. Readings at or below it are flagged TEMP_OUT_OF_RANGE.
const TempDisconnectedC = -127.0

// ADC physical span of the moisture probe input.
const (
	ADCMin = 0
	ADCMax = 4095
)

// Reader reads the soil-moisture ADC and the temperature probe.
type Reader interface {
	Read(ctx context.Context) (raw int, tempC float64, err error)
}

// SyntheticReader emits a repeating wetting/drainage/drydown cycle. It
// drives the real pipeline during commissioning and in tests; no physics
// shortcuts, only the signal is synthetic.
type SyntheticReader struct {
	mu   sync.Mutex
	step int

	// Cycle shape, in steps.
	WetSteps   int
	DrainSteps int
	DrySteps   int

	DryRaw float64 // raw reading at the dry end of the cycle
	WetRaw float64 // raw reading right after a wetting event
	TempC  float64
}

// NewSyntheticReader returns a reader with a cycle sized for the
// commissioning cadence.
func NewSyntheticReader() *SyntheticReader {
	return &SyntheticReader{
		WetSteps:   8,
		DrainSteps: 40,
		DrySteps:   150,
		DryRaw:     820,
		WetRaw:     430,
		TempC:      22.0,
	}
}

// Read returns the next synthetic reading. It never blocks.
func (r *SyntheticReader) Read(_ context.Context) (int, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := r.WetSteps + r.DrainSteps + r.DrySteps
	pos := r.step % total
	r.step++

	var raw float64
	switch {
	case pos < r.WetSteps:
		// Sharp wetting front: dry toward wet.
		frac := float64(pos) / float64(r.WetSteps)
		raw = r.DryRaw + (r.WetRaw-r.DryRaw)*frac
	case pos < r.WetSteps+r.DrainSteps:
		// Drainage: slow exponential settle just above the plateau.
		k := float64(pos-r.WetSteps) / float64(r.DrainSteps)
		raw = r.WetRaw + 30.0*(1.0-math.Exp(-3.0*k))
	default:
		// Drydown: linear climb back toward the dry end.
		frac := float64(pos-r.WetSteps-r.DrainSteps) / float64(r.DrySteps)
		raw = (r.WetRaw + 30.0) + (r.DryRaw-r.WetRaw-30.0)*frac
	}
	return int(raw + 0.5), r.TempC, nil
}
