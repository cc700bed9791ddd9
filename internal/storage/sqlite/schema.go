package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	timestamp         INTEGER PRIMARY KEY,
	raw               INTEGER NOT NULL,
	temp_c            REAL NOT NULL,
	theta             REAL NOT NULL,
	theta_fc          REAL NOT NULL,
	theta_refill      REAL NOT NULL,
	psi_kpa           REAL NOT NULL,
	aw_mm             REAL NOT NULL,
	fraction_depleted REAL NOT NULL,
	drying_rate       REAL NOT NULL,
	regime            TEXT NOT NULL,
	status            TEXT NOT NULL,
	urgency           TEXT NOT NULL,
	confidence        REAL NOT NULL,
	qc_valid          INTEGER NOT NULL,
	qc_flags          TEXT NOT NULL DEFAULT '',
	seq               INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_samples_seq ON samples(seq);

CREATE TABLE IF NOT EXISTS calibration (
	version      INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp    INTEGER NOT NULL,
	state        TEXT NOT NULL,
	theta_fc     REAL NOT NULL,
	theta_refill REAL NOT NULL,
	n_events     INTEGER NOT NULL,
	confidence   REAL NOT NULL,
	params_json  TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_start    INTEGER NOT NULL,
	ts_end      INTEGER NOT NULL,
	event_type  TEXT NOT NULL,
	delta_theta REAL NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_events_ts_start ON events(ts_start);
`
