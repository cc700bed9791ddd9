// Package autocal learns the site's field capacity, refill threshold, and
// dynamics parameters from observed wetting/drainage/drydown episodes. No
// user calibration: the state machine advances on QC-clean samples only.
package autocal

import (
	"encoding/json"
	"math"

	"github.com/agriscan/agriscan-go/internal/buffer"
	"github.com/agriscan/agriscan-go/internal/detect"
	"github.com/agriscan/agriscan-go/internal/domain"
	"github.com/agriscan/agriscan-go/internal/soil"
)

// State identifies where the calibration engine is in its learning cycle.
type State string

const (
	StateInit       State = "INIT"
	StateBaseline   State = "BASELINE_MONITORING"
	StateWetting    State = "WETTING_EVENT"
	StateDrainage   State = "DRAINAGE_TRACKING"
	StateFCEstimate State = "FC_ESTIMATE"
	StateDrydownFit State = "DRYDOWN_FIT"
	StateNormal     State = "NORMAL_OPERATION"
)

// Production and simulation-mode learning thresholds.
const (
	DefaultNInit           = 96
	SimulationNInit        = 10
	DefaultEventTarget     = 8
	SimulationEventTarget  = 3
	DefaultLambda          = 0.25
	DefaultEta             = 0.5
	DefaultPostEventIgnore = 3600           // seconds
	DefaultRefillWindow    = 30 * 24 * 3600 // seconds
	refillRecomputeCount   = 100
)

// Params are the fitted dynamics parameters carried in calibration versions.
type Params struct {
	Kd       float64 `json:"k_d"`
	Ku       float64 `json:"k_u"`
	Beta     float64 `json:"beta"`
	ThetaMin float64 `json:"theta_min"`
	KdValid  bool    `json:"kd_valid"`
	KuValid  bool    `json:"ku_valid"`
}

// Snapshot is an immutable view of the calibration state, safe to hand to
// the status engine and HTTP handlers.
type Snapshot struct {
	State       State
	ThetaFC     float64
	ThetaRefill float64
	RefillKnown bool
	NEvents     int
	Confidence  float64
	Params      Params
}

// ParamsJSON serialises the fitted parameters for the calibration table.
func (s Snapshot) ParamsJSON() string {
	b, err := json.Marshal(s.Params)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Result reports what a tick changed.
type Result struct {
	Transitions        []State        // states entered during this tick, in order
	CalibrationChanged bool           // a new calibration version should be persisted
	Events             []domain.Event // episodes detected during this tick
}

// Options configure the machine.
type Options struct {
	SimulationMode  bool
	Soil            soil.Params
	SeedFC          float64 // reference-table seed; 0 means derive from Soil
	SeedRefill      float64 // reference-table seed; 0 means derive at INIT exit
	Lambda          float64 // FC EWMA weight
	Eta             float64 // refill pull toward the dry percentile
	PostEventIgnore int64   // seconds to ignore after a wetting event
	RefillWindow    int64   // seconds of rolling window for the dry percentile
	Detector        *detect.Detector
}

// Machine is the auto-calibration state machine. It is not safe for
// concurrent use; the pipeline serialises ticks and snapshots.
type Machine struct {
	opts Options
	det  *detect.Detector

	state       State
	thetaFC     float64
	thetaRefill float64
	refillKnown bool

	nEvents     int
	fcHistory   []float64
	goodSamples int
	qcPass      int
	qcTotal     int

	lastEventTS  int64
	eventStart   int64
	drydownStart int64

	params Params
}

// New creates a machine in INIT with the given options.
func New(opts Options) *Machine {
	if opts.Lambda == 0 {
		opts.Lambda = DefaultLambda
	}
	if opts.Eta == 0 {
		opts.Eta = DefaultEta
	}
	if opts.PostEventIgnore == 0 {
		opts.PostEventIgnore = DefaultPostEventIgnore
	}
	if opts.RefillWindow == 0 {
		opts.RefillWindow = DefaultRefillWindow
	}
	if opts.Soil.ThetaS == 0 {
		opts.Soil = soil.DefaultLoam()
	}
	det := opts.Detector
	if det == nil {
		det = detect.NewDetector()
	}
	det.SimulationMode = opts.SimulationMode
	return &Machine{
		opts:   opts,
		det:    det,
		state:  StateInit,
		params: Params{Beta: 1.0},
	}
}

// nInit returns the INIT exit threshold for the current mode.
func (m *Machine) nInit() int {
	if m.opts.SimulationMode {
		return SimulationNInit
	}
	return DefaultNInit
}

func (m *Machine) eventTarget() int {
	if m.opts.SimulationMode {
		return SimulationEventTarget
	}
	return DefaultEventTarget
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Snapshot returns an immutable view of the learned calibration.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		State:       m.state,
		ThetaFC:     m.thetaFC,
		ThetaRefill: m.thetaRefill,
		RefillKnown: m.refillKnown,
		NEvents:     m.nEvents,
		Confidence:  m.Confidence(),
		Params:      m.params,
	}
}

// Restore re-seeds the machine from the last persisted calibration version,
// used when the pipeline reboots.
func (m *Machine) Restore(cv *domain.CalibrationVersion) {
	if cv == nil {
		return
	}
	m.state = State(cv.State)
	if m.state == "" {
		m.state = StateInit
	}
	m.thetaFC = cv.ThetaFC
	m.thetaRefill = cv.ThetaRefill
	m.refillKnown = cv.ThetaRefill > 0
	m.nEvents = cv.NEvents
	if m.thetaFC > 0 {
		m.fcHistory = append(m.fcHistory, m.thetaFC)
	}
	var p Params
	if err := json.Unmarshal([]byte(cv.ParamsJSON), &p); err == nil && p.Beta != 0 {
		m.params = p
	}
	// Mid-episode states cannot resume without their window; fall back to
	// the nearest monitoring state.
	switch m.state {
	case StateWetting, StateDrainage, StateFCEstimate, StateDrydownFit:
		m.state = StateNormal
	}
}

// Tick advances the machine on one decorated sample. Samples failing QC
// update the QC counters but never advance the state.
func (m *Machine) Tick(s domain.Sample, ring *buffer.Ring) Result {
	m.qcTotal++
	if !s.QCValid {
		return Result{}
	}
	m.qcPass++
	m.goodSamples++

	var res Result
	switch m.state {
	case StateInit:
		m.tickInit(ring, &res)
	case StateBaseline, StateNormal:
		m.checkWetting(s, ring, &res)
	case StateWetting:
		if s.Timestamp-m.eventStart > m.opts.PostEventIgnore {
			m.transition(StateDrainage, &res)
		}
	case StateDrainage:
		m.tickDrainage(s, ring, &res)
	case StateFCEstimate:
		// Estimation work happened on entry; move on to the drydown fit.
		m.drydownStart = s.Timestamp
		m.transition(StateDrydownFit, &res)
	case StateDrydownFit:
		m.tickDrydownFit(s, ring, &res)
	}

	m.maybeRefreshRefill(ring, &res)
	return res
}

func (m *Machine) transition(to State, res *Result) {
	m.state = to
	res.Transitions = append(res.Transitions, to)
}

// tickInit seeds the thresholds once enough clean history has accumulated.
func (m *Machine) tickInit(ring *buffer.Ring, res *Result) {
	if m.goodSamples < m.nInit() {
		return
	}
	if m.opts.SeedFC > 0 {
		m.thetaFC = m.opts.SeedFC
	} else {
		m.thetaFC = m.opts.Soil.FieldCapacity()
	}
	if p5, ok := detect.Percentile(ring.All(), 5); ok && p5 < m.thetaFC {
		m.thetaRefill = m.thetaFC - m.opts.Eta*(m.thetaFC-p5)
	} else if m.opts.SeedRefill > 0 && m.opts.SeedRefill <= m.thetaFC {
		m.thetaRefill = m.opts.SeedRefill
	} else {
		m.thetaRefill = m.thetaFC - m.opts.Eta*(m.thetaFC-m.opts.Soil.WiltingPoint())
	}
	m.refillKnown = true
	m.fcHistory = append(m.fcHistory, m.thetaFC)
	res.CalibrationChanged = true
	m.transition(StateBaseline, res)
}

// checkWetting watches for a wetting event from a monitoring state.
func (m *Machine) checkWetting(s domain.Sample, ring *buffer.Ring, res *Result) {
	w, reason := m.det.CheckWetting(ring.Window(m.det.SlopeWindow), m.lastEventTS)
	if reason != detect.ReasonDetected {
		return
	}
	m.nEvents++
	m.lastEventTS = s.Timestamp
	m.eventStart = s.Timestamp
	res.Events = append(res.Events, domain.Event{
		TsStart:    w.TsStart,
		TsEnd:      w.TsEnd,
		EventType:  domain.EventWetting,
		DeltaTheta: w.DeltaTheta,
	})
	m.transition(StateWetting, res)
}

// tickDrainage watches for the FC plateau, or abandons the episode when
// the soil is already below field capacity and drying.
func (m *Machine) tickDrainage(s domain.Sample, ring *buffer.Ring, res *Result) {
	hold := ring.Window(m.det.HoldSeconds)
	if candidate, ok := m.det.CheckPlateau(hold); ok {
		m.transition(StateFCEstimate, res)
		m.applyFCCandidate(candidate, s, ring, res)
		return
	}
	slope, slopeOK := m.det.DryingRate(ring.Window(m.det.SlopeWindow))
	if m.det.Classify(slope, slopeOK, s.Theta, m.thetaFC) == domain.RegimeDrydown {
		m.transition(StateNormal, res)
	}
}

// applyFCCandidate folds a plateau candidate into theta_fc via EWMA,
// refreshes the refill threshold, and fits the drainage rate.
func (m *Machine) applyFCCandidate(candidate float64, s domain.Sample, ring *buffer.Ring, res *Result) {
	m.thetaFC = (1.0-m.opts.Lambda)*m.thetaFC + m.opts.Lambda*candidate
	m.fcHistory = append(m.fcHistory, m.thetaFC)
	m.refreshRefill(ring)

	segment := ring.Since(m.eventStart)
	if kd, ok := FitDrainage(segment, m.thetaFC); ok {
		m.params.Kd = kd
		m.params.KdValid = true
	}
	res.Events = append(res.Events, domain.Event{
		TsStart:    m.eventStart,
		TsEnd:      s.Timestamp,
		EventType:  domain.EventDrainage,
		DeltaTheta: candidate - m.thetaFC,
	})
	res.CalibrationChanged = true
}

// tickDrydownFit fits the drydown coefficient once the post-plateau
// segment is long enough. A fresh wetting event restarts the episode.
func (m *Machine) tickDrydownFit(s domain.Sample, ring *buffer.Ring, res *Result) {
	if w, reason := m.det.CheckWetting(ring.Window(m.det.SlopeWindow), m.lastEventTS); reason == detect.ReasonDetected {
		m.nEvents++
		m.lastEventTS = s.Timestamp
		m.eventStart = s.Timestamp
		res.Events = append(res.Events, domain.Event{
			TsStart:    w.TsStart,
			TsEnd:      w.TsEnd,
			EventType:  domain.EventWetting,
			DeltaTheta: w.DeltaTheta,
		})
		m.transition(StateWetting, res)
		return
	}

	segment := ring.Since(m.drydownStart)
	if len(segment) < 10 {
		return
	}
	slope, slopeOK := m.det.DryingRate(ring.Window(m.det.SlopeWindow))
	if m.det.Classify(slope, slopeOK, s.Theta, m.thetaFC) != domain.RegimeDrydown {
		return
	}
	if ku, thetaMin, ok := FitDrydown(segment); ok {
		m.params.Ku = ku
		m.params.Beta = 1.0
		m.params.ThetaMin = thetaMin
		m.params.KuValid = true
		res.CalibrationChanged = true
	}
	m.transition(StateNormal, res)
}

// maybeRefreshRefill recomputes the refill threshold from the rolling dry
// percentile once the window holds enough samples.
func (m *Machine) maybeRefreshRefill(ring *buffer.Ring, res *Result) {
	if !m.refillKnown {
		return
	}
	window := ring.Window(m.opts.RefillWindow)
	if len(window) <= refillRecomputeCount {
		return
	}
	before := m.thetaRefill
	m.refreshRefill(ring)
	if math.Abs(m.thetaRefill-before) > 1e-4 {
		res.CalibrationChanged = true
	}
}

func (m *Machine) refreshRefill(ring *buffer.Ring) {
	window := ring.Window(m.opts.RefillWindow)
	p5, ok := detect.Percentile(window, 5)
	if !ok || p5 >= m.thetaFC {
		return
	}
	m.thetaRefill = m.thetaFC - m.opts.Eta*(m.thetaFC-p5)
	if m.thetaRefill > m.thetaFC {
		m.thetaRefill = m.thetaFC
	}
}
