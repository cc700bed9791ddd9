package domain

// CalibrationVersion is one append-only snapshot of the auto-calibration
// state. A new version is written whenever the learned thresholds or the
// fitted dynamics parameters change; versions are never modified.
type CalibrationVersion struct {
	Version     int64   `json:"version"` // assigned by the store
	Timestamp   int64   `json:"timestamp"`
	State       string  `json:"state"`
	ThetaFC     float64 `json:"theta_fc"`
	ThetaRefill float64 `json:"theta_refill"`
	NEvents     int     `json:"n_events"`
	Confidence  float64 `json:"confidence"`
	ParamsJSON  string  `json:"params_json"` // fitted drainage/drydown parameters
}

// EventType classifies a detected soil-water episode.
type EventType string

const (
	EventWetting  EventType = "wetting"
	EventDrainage EventType = "drainage"
	EventDrydown  EventType = "drydown"
)

// Event is one detected soil-water episode, append-only once detected.
type Event struct {
	ID         int64     `json:"id"` // assigned by the store
	TsStart    int64     `json:"ts_start"`
	TsEnd      int64     `json:"ts_end"`
	EventType  EventType `json:"event_type"`
	DeltaTheta float64   `json:"delta_theta"`
	Metadata   string    `json:"metadata,omitempty"` // opaque JSON
}
