package index

// SchemaVersion is bumped whenever the table layout changes; a mismatch
// forces a rebuild from the log.
const SchemaVersion = 1

// Schema creates the index tables. Timestamps are stored as UTC unix
// nanoseconds so range comparisons are plain integer comparisons.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	seq               INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp_ns      INTEGER NOT NULL,
	user              TEXT NOT NULL,
	organization      TEXT NOT NULL DEFAULT '',
	department        TEXT NOT NULL DEFAULT '',
	input             TEXT NOT NULL,
	generated_command TEXT NOT NULL,
	executed          INTEGER NOT NULL,
	exit_code         INTEGER,
	safety_level      TEXT NOT NULL,
	notes             TEXT NOT NULL DEFAULT '',
	llm_backend       TEXT NOT NULL DEFAULT '',
	session_id        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_records_user ON audit_records(user);
CREATE INDEX IF NOT EXISTS idx_audit_records_tier ON audit_records(safety_level);
CREATE INDEX IF NOT EXISTS idx_audit_records_timestamp ON audit_records(timestamp_ns);

CREATE TABLE IF NOT EXISTS audit_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const (
	metaSchemaVersion = "schema_version"
	metaSkippedLines  = "skipped_lines"
	metaRebuiltAt     = "rebuilt_at"
)
