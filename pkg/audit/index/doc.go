// Package index maintains an optional SQLite mirror of the JSONL audit log.
//
// The log file stays the source of truth: the index never receives direct
// appends. Rebuild streams the log into a fresh snapshot, and a cron-driven
// Scheduler keeps the snapshot current for hosts that serve frequent ad hoc
// queries. Query and Statistics results are identical to scanning the log,
// including the skipped-line count captured at rebuild time.
package index
