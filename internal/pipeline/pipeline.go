// Package pipeline runs the sampling loop: read the probe, convert and
// screen the reading, decorate it with physics and calibration state, feed
// the auto-calibration machine, classify the status, and persist batches.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/agriscan/agriscan-go/internal/autocal"
	"github.com/agriscan/agriscan-go/internal/buffer"
	"github.com/agriscan/agriscan-go/internal/config"
	"github.com/agriscan/agriscan-go/internal/detect"
	"github.com/agriscan/agriscan-go/internal/diag"
	"github.com/agriscan/agriscan-go/internal/domain"
	"github.com/agriscan/agriscan-go/internal/dynamics"
	"github.com/agriscan/agriscan-go/internal/sensor"
	"github.com/agriscan/agriscan-go/internal/soil"
	"github.com/agriscan/agriscan-go/internal/storage"
)

// RingCapacity holds 30 days of samples at the 15-minute cadence.
const RingCapacity = 2880

// Unflushed samples beyond this are dropped oldest-first when the store
// stays busy.
const backpressureBatches = 8

// QC history the checks look back over, in samples.
const qcHistory = 10

// pruneSchedule runs retention nightly, off the sampling cadence.
const pruneSchedule = "30 2 * * *"

type reading struct {
	ts    int64
	raw   int
	tempC float64
}

// Pipeline owns the ring, the calibration machine, and the status engine.
// All mutation happens on the processing goroutine; accessors copy under
// the mutex.
type Pipeline struct {
	cfg   config.Config
	prefs config.Preferences
	log   *zap.Logger

	reader     sensor.Reader
	calibrator *sensor.Calibrator
	qc         *sensor.QualityControl
	soil       soil.Params
	ref        *soil.Reference
	det        *detect.Detector
	store      storage.Store
	metrics    *Metrics

	mu           sync.Mutex
	ring         *buffer.Ring
	machine      *autocal.Machine
	status       *dynamics.Engine
	seq          int64
	batch        []domain.Sample
	lastSample   *domain.Sample
	lastDecision dynamics.Decision
	droppedTicks int64
	qcInvalid    int64

	readings chan reading
	now      func() time.Time
}

// Options wire the pipeline's collaborators.
type Options struct {
	Config      config.Config
	Preferences config.Preferences
	Reader      sensor.Reader
	Store       storage.Store
	Logger      *zap.Logger
	Metrics     *Metrics
	Soil        soil.Params
	Reference   *soil.Reference
	Now         func() time.Time // test hook; defaults to time.Now
}

// New assembles a pipeline. Boot state (ring, seq, calibration) is loaded
// by Run.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Soil.ThetaS == 0 {
		opts.Soil = soil.DefaultLoam()
	}
	if opts.Reference == nil {
		opts.Reference = soil.DefaultReference()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cfg := opts.Config
	det := &detect.Detector{
		WetJumpThresh:      cfg.WetJumpThresh,
		MinEventSeparation: int64(cfg.MinEventSeparationS),
		SlopeWindow:        int64(cfg.SlopeWindowS),
		SMin:               cfg.SMin,
		HoldSeconds:        int64(cfg.HoldHours * 3600),
		MinHoldSamples:     detect.DefaultMinHoldSamples,
		SimulationMode:     cfg.SimulationMode,
	}

	seedFC, seedRefill := opts.Reference.SeedThresholds(
		opts.Preferences.Crop, opts.Preferences.Soil, daysAfterPlanting(opts.Preferences, opts.Now()))

	machine := autocal.New(autocal.Options{
		SimulationMode:  cfg.SimulationMode,
		Soil:            opts.Soil,
		SeedFC:          seedFC,
		SeedRefill:      seedRefill,
		Lambda:          cfg.FCUpdateLambda,
		Eta:             cfg.EtaRefill,
		PostEventIgnore: int64(cfg.PostEventIgnoreS),
		Detector:        det,
	})

	qc := sensor.NewQualityControl()
	qc.SpikeZ = cfg.SpikeZThresh
	qc.StuckEps = cfg.StuckEps
	qc.ThetaLo = cfg.ThetaMin
	qc.ThetaHi = cfg.ThetaMax

	calibrator := sensor.NewCalibrator()
	calibrator.ThetaLo = cfg.ThetaMin
	calibrator.ThetaHi = cfg.ThetaMax

	return &Pipeline{
		cfg:        cfg,
		prefs:      opts.Preferences,
		log:        opts.Logger,
		reader:     opts.Reader,
		calibrator: calibrator,
		qc:         qc,
		soil:       opts.Soil,
		ref:        opts.Reference,
		det:        det,
		store:      opts.Store,
		metrics:    opts.Metrics,
		ring:       buffer.NewRing(RingCapacity),
		machine:    machine,
		status:     &dynamics.Engine{Hysteresis: cfg.RefillHysteresis},
		readings:   make(chan reading, 1),
		now:        opts.Now,
	}
}

func daysAfterPlanting(p config.Preferences, now time.Time) int {
	if p.PlantingTs <= 0 {
		return 0
	}
	d := int(now.Unix()-p.PlantingTs) / 86400
	if d < 0 {
		return 0
	}
	return d
}

// Boot rebuilds in-memory state from the database: the trailing ring, the
// sample sequence, and the last calibration version.
func (p *Pipeline) Boot(ctx context.Context) error {
	seq, err := p.store.MaxSeq(ctx)
	if err != nil {
		return err
	}
	p.seq = seq

	recent, err := p.store.RecentSamples(ctx, RingCapacity)
	if err != nil && !storage.IsNotFound(err) {
		return err
	}
	for _, s := range recent {
		p.ring.Append(s)
	}
	if len(recent) > 0 {
		last := recent[len(recent)-1]
		p.lastSample = &last
	}

	cv, err := p.store.LatestCalibration(ctx)
	if err != nil {
		if !storage.IsNotFound(err) {
			return err
		}
	} else {
		p.machine.Restore(cv)
	}

	p.log.Info("pipeline booted",
		zap.Int("ring_samples", len(recent)),
		zap.Int64("seq", p.seq),
		zap.String("cal_state", string(p.machine.State())))
	return nil
}

// Run drives the acquisition and processing loops until ctx is cancelled,
// then flushes the remaining batch.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Boot(ctx); err != nil {
		return err
	}

	sched := cron.New()
	if _, err := sched.AddFunc(pruneSchedule, func() { p.prune(context.Background()) }); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	go p.acquire(ctx)

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			p.mu.Lock()
			p.flushLocked(flushCtx, true)
			p.mu.Unlock()
			return nil
		case r := <-p.readings:
			p.processTick(ctx, r)
		}
	}
}

// acquire reads the probe on the cadence and hands readings to the
// processing loop. A full slot means processing fell behind; the tick is
// dropped and counted.
func (p *Pipeline) acquire(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.SampleCadence())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			raw, tempC, err := p.reader.Read(ctx)
			if err != nil {
				p.log.Warn("sensor read failed", zap.Error(err))
				continue
			}
			r := reading{ts: p.now().Unix(), raw: raw, tempC: tempC}
			select {
			case p.readings <- r:
			default:
				p.mu.Lock()
				p.droppedTicks++
				p.mu.Unlock()
				if p.metrics != nil {
					p.metrics.DroppedTicksTotal.Inc()
				}
				p.log.Warn("tick dropped, processing behind", zap.Int64("ts", r.ts))
			}
		}
	}
}

// processTick turns one raw reading into a decorated sample and advances
// every downstream consumer.
func (p *Pipeline) processTick(ctx context.Context, r reading) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.TicksTotal.Inc()
	}

	theta := p.calibrator.Convert(r.raw, r.tempC)
	flags := p.qc.Check(theta, r.tempC, p.qcReadings(), r.ts)
	qcValid := len(flags) == 0
	if !qcValid {
		p.qcInvalid++
		if p.metrics != nil {
			p.metrics.QCFailTotal.Inc()
		}
	}

	p.seq++
	s := domain.Sample{
		Timestamp: r.ts,
		Raw:       r.raw,
		TempC:     r.tempC,
		Theta:     theta,
		PsiKPa:    p.soil.PsiKPa(theta),
		QCValid:   qcValid,
		QCFlags:   flags,
		Seq:       p.seq,
	}

	// Drying rate and regime from the trailing window including this sample.
	window := append(p.ring.Window(p.det.SlopeWindow), s)
	slope, slopeOK := p.det.DryingRate(window)
	if slopeOK {
		s.DryingRate = slope
	}

	p.ring.Append(s)
	res := p.machine.Tick(s, p.ring)

	snap := p.machine.Snapshot()
	s.ThetaFC = snap.ThetaFC
	s.ThetaRefill = snap.ThetaRefill
	s.Confidence = snap.Confidence
	s.Regime = p.det.Classify(slope, slopeOK, theta, snap.ThetaFC)

	fc, wp := snap.ThetaFC, p.soil.WiltingPoint()
	if fc == 0 {
		fc = p.soil.FieldCapacity()
	}
	budget := soil.AvailableWater(theta, fc, wp, p.prefs.RootDepthCm)
	s.AWmm = budget.AWmm
	s.FractionDepleted = budget.FractionDepleted

	decision := p.status.Evaluate(theta, snap.ThetaFC, snap.ThetaRefill, snap.RefillKnown, s.DryingRate)
	s.Status = decision.Status
	s.Urgency = decision.Urgency

	p.lastSample = &s
	p.lastDecision = decision

	p.persistResult(ctx, r.ts, snap, res)

	p.batch = append(p.batch, s)
	if len(p.batch) >= p.cfg.BatchSize {
		p.flushLocked(ctx, false)
	}
}

// qcReadings copies the trailing ring into the QC history shape.
func (p *Pipeline) qcReadings() []sensor.Reading {
	last := p.ring.Last(qcHistory)
	out := make([]sensor.Reading, len(last))
	for i, s := range last {
		out[i] = sensor.Reading{Timestamp: s.Timestamp, Theta: s.Theta}
	}
	return out
}

// persistResult writes calibration versions and events produced by a tick.
func (p *Pipeline) persistResult(ctx context.Context, ts int64, snap autocal.Snapshot, res autocal.Result) {
	for _, st := range res.Transitions {
		p.log.Info("calibration transition", zap.String("state", string(st)))
	}
	for i := range res.Events {
		if _, err := p.store.WriteEvent(ctx, &res.Events[i]); err != nil {
			p.log.Warn("event write failed", zap.Error(err))
		}
	}
	if res.CalibrationChanged {
		cv := &domain.CalibrationVersion{
			Timestamp:   ts,
			State:       string(snap.State),
			ThetaFC:     snap.ThetaFC,
			ThetaRefill: snap.ThetaRefill,
			NEvents:     snap.NEvents,
			Confidence:  snap.Confidence,
			ParamsJSON:  snap.ParamsJSON(),
		}
		if _, err := p.store.WriteCalibration(ctx, cv); err != nil {
			p.log.Warn("calibration write failed", zap.Error(err))
		}
	}
}

// flushLocked commits the pending batch. On a busy store the batch is kept
// for the next tick, capped so RAM stays bounded. Callers hold the mutex.
func (p *Pipeline) flushLocked(ctx context.Context, final bool) {
	if len(p.batch) == 0 {
		return
	}
	start := time.Now()
	err := p.store.WriteSamples(ctx, p.batch)
	if p.metrics != nil {
		p.metrics.BatchFlushSeconds.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		p.log.Warn("persistence_backpressure",
			zap.Int("pending", len(p.batch)), zap.Bool("final", final), zap.Error(err))
		limit := backpressureBatches * p.cfg.BatchSize
		if len(p.batch) > limit {
			dropped := len(p.batch) - limit
			p.batch = p.batch[dropped:]
			p.log.Warn("pending samples dropped", zap.Int("dropped", dropped))
		}
		return
	}
	if p.metrics != nil {
		p.metrics.SamplesPersistedTotal.Add(float64(len(p.batch)))
	}
	p.batch = p.batch[:0]
}

// prune enforces retention.
func (p *Pipeline) prune(ctx context.Context) {
	cutoff := p.now().Add(-p.cfg.Retention()).Unix()
	n, err := p.store.PruneBefore(ctx, cutoff)
	if err != nil {
		p.log.Warn("prune failed", zap.Error(err))
		return
	}
	if n > 0 {
		p.log.Info("old samples pruned", zap.Int64("rows", n))
	}
}

// Latest returns the most recent decorated sample and its status decision.
func (p *Pipeline) Latest() (domain.Sample, dynamics.Decision, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastSample == nil {
		return domain.Sample{}, dynamics.Decision{}, false
	}
	return *p.lastSample, p.lastDecision, true
}

// CalSnapshot returns the current calibration view.
func (p *Pipeline) CalSnapshot() autocal.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.machine.Snapshot()
}

// Stage returns the current crop growth stage from the reference table.
func (p *Pipeline) Stage() (soil.CropStage, bool) {
	return p.ref.StageFor(p.prefs.Crop, daysAfterPlanting(p.prefs, p.now()))
}

// Crop returns the configured crop name.
func (p *Pipeline) Crop() string {
	return p.prefs.Crop
}

// Outlook is the forward water-balance projection from the latest sample.
type Outlook struct {
	DayAhead        []dynamics.Point             `json:"day_ahead"`
	WeekAhead       []dynamics.Point             `json:"week_ahead"`
	Irrigation      []dynamics.IrrigationOutcome `json:"irrigation"`
	DrainageQuality string                       `json:"drainage_quality"`
}

// Candidate irrigation depths compared in the outlook, mm.
var outlookDepthsMm = []float64{0, 10, 25}

// ComputeOutlook simulates theta forward with the fitted dynamics. It
// reports false until a drainage or drydown fit has landed and a sample
// exists.
func (p *Pipeline) ComputeOutlook() (Outlook, bool) {
	p.mu.Lock()
	snap := p.machine.Snapshot()
	last := p.lastSample
	p.mu.Unlock()

	if last == nil || (!snap.Params.KdValid && !snap.Params.KuValid) {
		return Outlook{}, false
	}

	params := dynamics.Params{
		Kd:       snap.Params.Kd,
		Ku:       snap.Params.Ku,
		Beta:     snap.Params.Beta,
		ThetaMin: snap.Params.ThetaMin,
	}
	fc := snap.ThetaFC
	return Outlook{
		DayAhead:  params.Simulate(last.Theta, fc, dynamics.DayAheadHours),
		WeekAhead: params.Simulate(last.Theta, fc, dynamics.WeekAheadHours),
		Irrigation: params.CompareIrrigation(
			last.Theta, fc, p.prefs.RootDepthCm, p.soil.ThetaS, dynamics.DayAheadHours, outlookDepthsMm),
		DrainageQuality: dynamics.DrainageQuality(snap.Params.Kd),
	}, true
}

// Diagnostics assembles the device diagnostics report.
func (p *Pipeline) Diagnostics() diag.Report {
	p.mu.Lock()
	snap := p.machine.Snapshot()
	var lastTs int64
	if p.lastSample != nil {
		lastTs = p.lastSample.Timestamp
	}
	count := p.ring.Len()
	dropped := p.droppedTicks
	qcInvalid := p.qcInvalid
	lastDay := p.ring.Window(86400)
	p.mu.Unlock()

	health, errors24h := diag.AssessSensor(lastDay)

	var lastWrite int64
	if t := p.store.LastWriteTime(); !t.IsZero() {
		lastWrite = t.Unix()
	}

	return diag.Report{
		Host:             diag.CollectHost("."),
		Sensor:           health,
		DeviceName:       p.prefs.DeviceName,
		SimulationMode:   p.cfg.SimulationMode,
		SampleCount:      count,
		LastSampleTs:     lastTs,
		LastWriteTs:      lastWrite,
		CalState:         string(snap.State),
		CalStatus:        diag.StatusLabel(snap.Confidence),
		Confidence:       snap.Confidence,
		ThetaFC:          snap.ThetaFC,
		ThetaRefill:      snap.ThetaRefill,
		EventsCaptured:   snap.NEvents,
		Errors24h:        errors24h,
		DroppedTicks:     dropped,
		QCInvalidSamples: qcInvalid,
	}
}

// ProcessReading runs one reading through the full tick path. Exposed for
// commissioning tools and tests that drive the pipeline without the ticker.
func (p *Pipeline) ProcessReading(ctx context.Context, ts int64, raw int, tempC float64) {
	p.processTick(ctx, reading{ts: ts, raw: raw, tempC: tempC})
}
