package buffer

import (
	"testing"

	"github.com/agriscan/agriscan-go/internal/domain"
	"github.com/stretchr/testify/assert"
)

func sampleAt(ts int64, theta float64) domain.Sample {
	return domain.Sample{Timestamp: ts, Theta: theta}
}

func TestRingAppendAndLen(t *testing.T) {
	r := NewRing(4)
	assert.Equal(t, 0, r.Len())

	r.Append(sampleAt(1, 0.1))
	r.Append(sampleAt(2, 0.2))
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 4, r.Cap())
}

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing(3)
	for ts := int64(1); ts <= 5; ts++ {
		r.Append(sampleAt(ts, float64(ts)/10))
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, int64(3), r.At(0).Timestamp)
	assert.Equal(t, int64(5), r.At(2).Timestamp)
}

func TestRingLatest(t *testing.T) {
	r := NewRing(3)

	_, ok := r.Latest()
	assert.False(t, ok)

	r.Append(sampleAt(10, 0.2))
	r.Append(sampleAt(20, 0.3))

	latest, ok := r.Latest()
	assert.True(t, ok)
	assert.Equal(t, int64(20), latest.Timestamp)
}

func TestRingLast(t *testing.T) {
	r := NewRing(5)
	for ts := int64(1); ts <= 5; ts++ {
		r.Append(sampleAt(ts, 0))
	}

	last := r.Last(3)
	assert.Len(t, last, 3)
	assert.Equal(t, int64(3), last[0].Timestamp)
	assert.Equal(t, int64(5), last[2].Timestamp)

	// Asking for more than held returns what is held.
	assert.Len(t, r.Last(10), 5)
}

func TestRingSince(t *testing.T) {
	r := NewRing(10)
	for ts := int64(100); ts <= 1000; ts += 100 {
		r.Append(sampleAt(ts, 0))
	}

	got := r.Since(700)
	assert.Len(t, got, 4)
	assert.Equal(t, int64(700), got[0].Timestamp)
}

func TestRingWindow(t *testing.T) {
	r := NewRing(10)
	for ts := int64(0); ts <= 9000; ts += 900 {
		r.Append(sampleAt(ts, 0))
	}

	// 2-hour window ending at ts 9000 covers 1800..9000.
	got := r.Window(7200)
	assert.Len(t, got, 9)
	assert.Equal(t, int64(1800), got[0].Timestamp)
	assert.Equal(t, int64(9000), got[len(got)-1].Timestamp)
}

func TestRingWindowEmpty(t *testing.T) {
	r := NewRing(4)
	assert.Nil(t, r.Window(7200))
}

func TestRingAllCopies(t *testing.T) {
	r := NewRing(3)
	r.Append(sampleAt(1, 0.1))

	all := r.All()
	all[0].Theta = 0.9

	assert.Equal(t, 0.1, r.At(0).Theta)
}
