// Package storage provides the persistence abstractions for AgriScan: the
// append-only sample log, calibration versions, and detected events.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/agriscan/agriscan-go/internal/domain"
)

// RangeCap bounds how many rows a range query may return, protecting RAM
// on the device.
const RangeCap = 200

// ErrBusy is returned when the store lock cannot be acquired within the
// caller's deadline.
var ErrBusy = errors.New("store busy")

// Store is the interface to durable sample storage. Implementations must
// write sample batches atomically and keep timestamps unique.
type Store interface {
	// Sample log
	WriteSamples(ctx context.Context, samples []domain.Sample) error
	LatestSample(ctx context.Context) (*domain.Sample, error)
	RecentSamples(ctx context.Context, n int) ([]domain.Sample, error)
	SamplesInRange(ctx context.Context, start, end int64) ([]domain.Sample, error)
	StreamRange(ctx context.Context, start, end int64, fn func(domain.Sample) error) error
	MaxSeq(ctx context.Context) (int64, error)

	// Calibration versions
	WriteCalibration(ctx context.Context, cv *domain.CalibrationVersion) (int64, error)
	LatestCalibration(ctx context.Context) (*domain.CalibrationVersion, error)

	// Events
	WriteEvent(ctx context.Context, ev *domain.Event) (int64, error)
	EventsInRange(ctx context.Context, start, end int64) ([]domain.Event, error)

	// Maintenance
	PruneBefore(ctx context.Context, ts int64) (int64, error)
	LastWriteTime() time.Time

	// Lifecycle
	Close() error
}

// ErrNotFound is returned when a record is not found.
type ErrNotFound struct {
	Resource string
}

func (e ErrNotFound) Error() string {
	return e.Resource + " not found"
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// IsBusy checks if an error means the store lock timed out.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}
