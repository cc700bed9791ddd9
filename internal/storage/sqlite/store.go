// Package sqlite provides a SQLite implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/agriscan/agriscan-go/internal/domain"
	"github.com/agriscan/agriscan-go/internal/storage"

	_ "modernc.org/sqlite"
)

// DefaultLockWait bounds how long a caller waits for the store lock before
// getting storage.ErrBusy.
const DefaultLockWait = 2 * time.Second

// Store is a SQLite implementation of storage.Store. All operations are
// serialised through an internal semaphore so the single writer never
// contends with readers at the SQLite level.
type Store struct {
	db        *sql.DB
	sem       chan struct{}
	lockWait  time.Duration
	lastWrite atomic.Int64 // unix nanos of the last successful write
}

// NewMemoryStore creates an in-memory SQLite store.
func NewMemoryStore() (*Store, error) {
	return newStore(":memory:")
}

// NewFileStore creates a file-based SQLite store.
func NewFileStore(path string) (*Store, error) {
	return newStore(path)
}

func newStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc's driver serialises per connection; a single connection plus
	// the semaphore gives deterministic ordering.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:       db,
		sem:      make(chan struct{}, 1),
		lockWait: DefaultLockWait,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}
	_, err := s.db.Exec(schema)
	return err
}

// acquire takes the store lock, waiting at most lockWait or until ctx is
// done. Returns storage.ErrBusy on timeout.
func (s *Store) acquire(ctx context.Context) error {
	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-timer.C:
		return storage.ErrBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.sem
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sample methods

func (s *Store) WriteSamples(ctx context.Context, samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Timestamps are unique on the sampling cadence; REPLACE only fires
	// when a batch kept back by a busy store is retried, making the retry
	// idempotent instead of failing the whole transaction.
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO samples (
			timestamp, raw, temp_c, theta, theta_fc, theta_refill, psi_kpa,
			aw_mm, fraction_depleted, drying_rate, regime, status, urgency,
			confidence, qc_valid, qc_flags, seq
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sm := range samples {
		if _, err := stmt.ExecContext(ctx,
			sm.Timestamp, sm.Raw, sm.TempC, sm.Theta, sm.ThetaFC, sm.ThetaRefill, sm.PsiKPa,
			sm.AWmm, sm.FractionDepleted, sm.DryingRate, string(sm.Regime), string(sm.Status), string(sm.Urgency),
			sm.Confidence, boolToInt(sm.QCValid), strings.Join(sm.FlagStrings(), ","), sm.Seq,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.lastWrite.Store(time.Now().UnixNano())
	return nil
}

const sampleColumns = `timestamp, raw, temp_c, theta, theta_fc, theta_refill, psi_kpa,
	aw_mm, fraction_depleted, drying_rate, regime, status, urgency,
	confidence, qc_valid, qc_flags, seq`

func (s *Store) LatestSample(ctx context.Context) (*domain.Sample, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+sampleColumns+` FROM samples ORDER BY timestamp DESC LIMIT 1
	`)
	sm, err := scanSample(row.Scan)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "sample"}
	}
	if err != nil {
		return nil, err
	}
	return sm, nil
}

// RecentSamples returns up to n of the newest samples in ascending
// timestamp order.
func (s *Store) RecentSamples(ctx context.Context, n int) ([]domain.Sample, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sampleColumns+` FROM samples ORDER BY timestamp DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples, err := collectSamples(rows)
	if err != nil {
		return nil, err
	}
	// reverse to ascending
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// SamplesInRange returns samples in [start, end] ascending, capped at
// storage.RangeCap rows.
func (s *Store) SamplesInRange(ctx context.Context, start, end int64) ([]domain.Sample, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sampleColumns+` FROM samples
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC LIMIT ?
	`, start, end, storage.RangeCap)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSamples(rows)
}

// StreamRange calls fn for each sample in [start, end] ascending, capped at
// storage.RangeCap rows. fn returning an error stops the stream.
func (s *Store) StreamRange(ctx context.Context, start, end int64, fn func(domain.Sample) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sampleColumns+` FROM samples
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC LIMIT ?
	`, start, end, storage.RangeCap)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		sm, err := scanSample(rows.Scan)
		if err != nil {
			return err
		}
		if err := fn(*sm); err != nil {
			return err
		}
	}
	return rows.Err()
}

// MaxSeq returns the highest sequence number written, or 0 for an empty log.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()

	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM samples").Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq.Int64, nil
}

// Calibration methods

func (s *Store) WriteCalibration(ctx context.Context, cv *domain.CalibrationVersion) (int64, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO calibration (timestamp, state, theta_fc, theta_refill, n_events, confidence, params_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, cv.Timestamp, cv.State, cv.ThetaFC, cv.ThetaRefill, cv.NEvents, cv.Confidence, cv.ParamsJSON)
	if err != nil {
		return 0, err
	}
	version, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.lastWrite.Store(time.Now().UnixNano())
	return version, nil
}

func (s *Store) LatestCalibration(ctx context.Context) (*domain.CalibrationVersion, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	var cv domain.CalibrationVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT version, timestamp, state, theta_fc, theta_refill, n_events, confidence, params_json
		FROM calibration ORDER BY version DESC LIMIT 1
	`).Scan(&cv.Version, &cv.Timestamp, &cv.State, &cv.ThetaFC, &cv.ThetaRefill, &cv.NEvents, &cv.Confidence, &cv.ParamsJSON)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{Resource: "calibration"}
	}
	if err != nil {
		return nil, err
	}
	return &cv, nil
}

// Event methods

func (s *Store) WriteEvent(ctx context.Context, ev *domain.Event) (int64, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()

	metadata := ev.Metadata
	if metadata == "" {
		metadata = "{}"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (ts_start, ts_end, event_type, delta_theta, metadata)
		VALUES (?, ?, ?, ?, ?)
	`, ev.TsStart, ev.TsEnd, ev.EventType, ev.DeltaTheta, metadata)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.lastWrite.Store(time.Now().UnixNano())
	return id, nil
}

func (s *Store) EventsInRange(ctx context.Context, start, end int64) ([]domain.Event, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts_start, ts_end, event_type, delta_theta, metadata FROM events
		WHERE ts_start >= ? AND ts_start <= ?
		ORDER BY ts_start ASC LIMIT ?
	`, start, end, storage.RangeCap)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		if err := rows.Scan(&ev.ID, &ev.TsStart, &ev.TsEnd, &ev.EventType, &ev.DeltaTheta, &ev.Metadata); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Maintenance

// PruneBefore deletes samples older than ts and returns how many rows went.
func (s *Store) PruneBefore(ctx context.Context, ts int64) (int64, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()

	res, err := s.db.ExecContext(ctx, "DELETE FROM samples WHERE timestamp < ?", ts)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LastWriteTime reports when the store last committed a write. Zero time
// means nothing has been written this process.
func (s *Store) LastWriteTime() time.Time {
	n := s.lastWrite.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// helpers

func scanSample(scan func(dest ...any) error) (*domain.Sample, error) {
	var sm domain.Sample
	var regime, status, urgency, flags string
	var qcValid int
	err := scan(
		&sm.Timestamp, &sm.Raw, &sm.TempC, &sm.Theta, &sm.ThetaFC, &sm.ThetaRefill, &sm.PsiKPa,
		&sm.AWmm, &sm.FractionDepleted, &sm.DryingRate, &regime, &status, &urgency,
		&sm.Confidence, &qcValid, &flags, &sm.Seq,
	)
	if err != nil {
		return nil, err
	}
	sm.Regime = domain.Regime(regime)
	sm.Status = domain.Status(status)
	sm.Urgency = domain.Urgency(urgency)
	sm.QCValid = qcValid != 0
	if flags != "" {
		for _, f := range strings.Split(flags, ",") {
			sm.QCFlags = append(sm.QCFlags, domain.QCFlag(f))
		}
	}
	return &sm, nil
}

func collectSamples(rows *sql.Rows) ([]domain.Sample, error) {
	var samples []domain.Sample
	for rows.Next() {
		sm, err := scanSample(rows.Scan)
		if err != nil {
			return nil, err
		}
		samples = append(samples, *sm)
	}
	return samples, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Verify interface compliance
var _ storage.Store = (*Store)(nil)
