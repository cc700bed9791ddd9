// Package buffer keeps the bounded trailing window of recent samples in
// RAM. The pipeline owns the ring exclusively; readers get copies.
package buffer

import "github.com/agriscan/agriscan-go/internal/domain"

// Ring is a fixed-capacity ring of samples ordered by arrival. It is not
// safe for concurrent use; the pipeline serialises access.
type Ring struct {
	buf   []domain.Sample
	start int
	n     int
}

// NewRing creates a ring holding up to capacity samples.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]domain.Sample, capacity)}
}

// Append adds a sample, evicting the oldest when full.
func (r *Ring) Append(s domain.Sample) {
	idx := (r.start + r.n) % len(r.buf)
	r.buf[idx] = s
	if r.n < len(r.buf) {
		r.n++
	} else {
		r.start = (r.start + 1) % len(r.buf)
	}
}

// Len returns the number of samples held.
func (r *Ring) Len() int {
	return r.n
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// At returns the i-th sample, oldest first.
func (r *Ring) At(i int) domain.Sample {
	return r.buf[(r.start+i)%len(r.buf)]
}

// Latest returns the most recent sample, if any.
func (r *Ring) Latest() (domain.Sample, bool) {
	if r.n == 0 {
		return domain.Sample{}, false
	}
	return r.At(r.n - 1), true
}

// Last copies out the most recent n samples, oldest first.
func (r *Ring) Last(n int) []domain.Sample {
	if n > r.n {
		n = r.n
	}
	out := make([]domain.Sample, n)
	for i := 0; i < n; i++ {
		out[i] = r.At(r.n - n + i)
	}
	return out
}

// Since copies out all samples with Timestamp >= ts, oldest first.
func (r *Ring) Since(ts int64) []domain.Sample {
	var out []domain.Sample
	for i := 0; i < r.n; i++ {
		s := r.At(i)
		if s.Timestamp >= ts {
			out = append(out, s)
		}
	}
	return out
}

// Window copies out the samples within the trailing windowSeconds ending at
// the latest sample, oldest first.
func (r *Ring) Window(windowSeconds int64) []domain.Sample {
	latest, ok := r.Latest()
	if !ok {
		return nil
	}
	return r.Since(latest.Timestamp - windowSeconds)
}

// All copies out every held sample, oldest first.
func (r *Ring) All() []domain.Sample {
	return r.Last(r.n)
}
