package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agriscan/agriscan-go/internal/domain"
	"github.com/agriscan/agriscan-go/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func makeSample(ts int64, theta float64, seq int64) domain.Sample {
	return domain.Sample{
		Timestamp:   ts,
		Raw:         650,
		TempC:       21.5,
		Theta:       theta,
		ThetaFC:     0.30,
		ThetaRefill: 0.20,
		PsiKPa:      33.0,
		AWmm:        45.0,
		DryingRate:  -0.001,
		Regime:      domain.RegimeDrydown,
		Status:      domain.StatusOptimal,
		Urgency:     domain.UrgencyLow,
		Confidence:  0.7,
		QCValid:     true,
		Seq:         seq,
	}
}

func TestWriteAndLatestSample(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	samples := []domain.Sample{
		makeSample(1000, 0.25, 1),
		makeSample(1900, 0.26, 2),
		makeSample(2800, 0.27, 3),
	}
	require.NoError(t, s.WriteSamples(ctx, samples))

	latest, err := s.LatestSample(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2800), latest.Timestamp)
	assert.Equal(t, 0.27, latest.Theta)
	assert.Equal(t, domain.StatusOptimal, latest.Status)
	assert.True(t, latest.QCValid)
	assert.Equal(t, int64(3), latest.Seq)
}

func TestLatestSampleEmpty(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LatestSample(context.Background())
	assert.True(t, storage.IsNotFound(err))
}

func TestQCFlagsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sm := makeSample(1000, 0.25, 1)
	sm.QCValid = false
	sm.QCFlags = []domain.QCFlag{domain.QCSpike, domain.QCTempOutOfRange}
	require.NoError(t, s.WriteSamples(ctx, []domain.Sample{sm}))

	got, err := s.LatestSample(ctx)
	require.NoError(t, err)
	assert.False(t, got.QCValid)
	assert.True(t, got.HasFlag(domain.QCSpike))
	assert.True(t, got.HasFlag(domain.QCTempOutOfRange))
	assert.False(t, got.HasFlag(domain.QCStuck))
}

func TestWriteSamplesReplacesDuplicateTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WriteSamples(ctx, []domain.Sample{makeSample(1000, 0.25, 1)}))
	require.NoError(t, s.WriteSamples(ctx, []domain.Sample{makeSample(1000, 0.30, 2)}))

	got, err := s.RecentSamples(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.30, got[0].Theta)
}

func TestRecentSamplesAscending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var batch []domain.Sample
	for i := 0; i < 8; i++ {
		batch = append(batch, makeSample(int64(1000+900*i), 0.25, int64(i+1)))
	}
	require.NoError(t, s.WriteSamples(ctx, batch))

	got, err := s.RecentSamples(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	// The newest five, oldest first.
	assert.Equal(t, int64(1000+900*3), got[0].Timestamp)
	assert.Equal(t, int64(1000+900*7), got[4].Timestamp)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Timestamp, got[i-1].Timestamp)
	}
}

func TestSamplesInRangeCapped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var batch []domain.Sample
	for i := 0; i < storage.RangeCap+50; i++ {
		batch = append(batch, makeSample(int64(1000+900*i), 0.25, int64(i+1)))
	}
	require.NoError(t, s.WriteSamples(ctx, batch))

	got, err := s.SamplesInRange(ctx, 0, 1<<40)
	require.NoError(t, err)
	assert.Len(t, got, storage.RangeCap)
	// Cap keeps the oldest rows in range, ascending.
	assert.Equal(t, int64(1000), got[0].Timestamp)
}

func TestStreamRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var batch []domain.Sample
	for i := 0; i < 10; i++ {
		batch = append(batch, makeSample(int64(1000+900*i), 0.25, int64(i+1)))
	}
	require.NoError(t, s.WriteSamples(ctx, batch))

	var seen []int64
	err := s.StreamRange(ctx, 1900, 4600, func(sm domain.Sample) error {
		seen = append(seen, sm.Timestamp)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1900, 2800, 3700, 4600}, seen)
}

func TestMaxSeq(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seq, err := s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, s.WriteSamples(ctx, []domain.Sample{
		makeSample(1000, 0.25, 41),
		makeSample(1900, 0.26, 42),
	}))

	seq, err = s.MaxSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), seq)
}

func TestCalibrationVersionsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v1, err := s.WriteCalibration(ctx, &domain.CalibrationVersion{
		Timestamp: 1000, State: "BASELINE_MONITORING", ThetaFC: 0.30, ThetaRefill: 0.20,
		Confidence: 0.2, ParamsJSON: "{}",
	})
	require.NoError(t, err)

	v2, err := s.WriteCalibration(ctx, &domain.CalibrationVersion{
		Timestamp: 2000, State: "NORMAL_OPERATION", ThetaFC: 0.31, ThetaRefill: 0.21,
		NEvents: 3, Confidence: 0.6, ParamsJSON: `{"k_d":0.05}`,
	})
	require.NoError(t, err)
	assert.Greater(t, v2, v1)

	cv, err := s.LatestCalibration(ctx)
	require.NoError(t, err)
	assert.Equal(t, v2, cv.Version)
	assert.Equal(t, "NORMAL_OPERATION", cv.State)
	assert.Equal(t, 0.31, cv.ThetaFC)
	assert.Equal(t, 3, cv.NEvents)
}

func TestLatestCalibrationEmpty(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LatestCalibration(context.Background())
	assert.True(t, storage.IsNotFound(err))
}

func TestEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.WriteEvent(ctx, &domain.Event{
		TsStart: 1000, TsEnd: 4600, EventType: domain.EventWetting, DeltaTheta: 0.08,
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	_, err = s.WriteEvent(ctx, &domain.Event{
		TsStart: 9000, TsEnd: 12000, EventType: domain.EventDrainage, DeltaTheta: -0.03,
	})
	require.NoError(t, err)

	events, err := s.EventsInRange(ctx, 0, 5000)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventWetting, events[0].EventType)
	assert.Equal(t, "{}", events[0].Metadata)
}

func TestPruneBefore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var batch []domain.Sample
	for i := 0; i < 10; i++ {
		batch = append(batch, makeSample(int64(1000+900*i), 0.25, int64(i+1)))
	}
	require.NoError(t, s.WriteSamples(ctx, batch))

	n, err := s.PruneBefore(ctx, 1000+900*5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	got, err := s.RecentSamples(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, int64(1000+900*5), got[0].Timestamp)
}

func TestLastWriteTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.True(t, s.LastWriteTime().IsZero())

	require.NoError(t, s.WriteSamples(ctx, []domain.Sample{makeSample(1000, 0.25, 1)}))
	assert.WithinDuration(t, time.Now(), s.LastWriteTime(), 5*time.Second)
}

func TestBusyWhenLockHeld(t *testing.T) {
	s := newTestStore(t)
	s.lockWait = 50 * time.Millisecond

	// Hold the semaphore so every caller times out.
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	_, err := s.LatestSample(context.Background())
	assert.True(t, storage.IsBusy(err))
}
