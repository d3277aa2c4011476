// Package audit defines the durable, append-only record of command policy
// decisions and execution outcomes.
//
// Every classification produced by the policy engine, together with whether
// the command was executed and how it exited, is captured as a Record and
// appended to a Storage backend. Records are immutable once written: the
// store never mutates or deletes history, and queries observe records in
// insertion order.
//
// The canonical backend (store.JSONLStorage) persists one self-contained
// JSON object per line, flushed before an append reports success, so a crash
// or a concurrent in-process writer can never corrupt previously written
// records. A truncated final line is detected on the next read and skipped,
// not treated as corrupting the whole store.
//
// # Components
//
//   - store: JSONL file backend and an in-memory backend for tests
//   - index: optional SQLite mirror for faster ad hoc queries
//   - recorder: builds and appends records on behalf of a host assistant
//   - export: JSON and CSV exporters for compliance review
package audit
