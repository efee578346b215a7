package storage

// schema is the normative SQLite layout from spec §6. Column names and
// table names are pinned there; this file only adds the engine-specific
// type affinities and indexes modernc.org/sqlite needs.
const schema = `
CREATE TABLE IF NOT EXISTS state_changes (
	identifier TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	type_name  TEXT NOT NULL,
	timestamp  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS state_snapshot (
	identifier       TEXT PRIMARY KEY,
	statechange_id   TEXT UNIQUE NOT NULL REFERENCES state_changes(identifier),
	statechange_qty  INTEGER NOT NULL,
	data             TEXT NOT NULL,
	timestamp        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS state_events (
	identifier             TEXT PRIMARY KEY,
	source_statechange_id  TEXT NOT NULL REFERENCES state_changes(identifier),
	data                   TEXT NOT NULL,
	type_name              TEXT NOT NULL,
	timestamp              INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	started_at TIMESTAMP PRIMARY KEY,
	version    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS matrix_config (
	sync_token TEXT
);

CREATE TABLE IF NOT EXISTS matrix_messages (
	queue_identifier TEXT NOT NULL,
	data             TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_state_events_source
	ON state_events(source_statechange_id);
`
