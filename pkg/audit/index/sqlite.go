package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"warden-sh/warden/pkg/audit"
	"warden-sh/warden/pkg/policy"
)

// Config contains configuration for the SQLite index.
type Config struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// DefaultConfig returns the default index configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:        "data/audit.db",
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteIndex is a rebuildable query mirror of an audit log. It serves the
// same Query/Count/Statistics semantics as scanning the log, but from SQL.
type SQLiteIndex struct {
	db     *sql.DB
	config *Config
	logger *slog.Logger
}

// NewSQLiteIndex opens (or creates) the index database and initializes the
// schema.
func NewSQLiteIndex(config *Config) (*SQLiteIndex, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "audit.index")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}

	idx := &SQLiteIndex{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := idx.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("audit index opened", "path", config.Path)
	return idx, nil
}

// initialize sets pragmas and creates the schema.
func (idx *SQLiteIndex) initialize() error {
	if _, err := idx.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return audit.NewStorageError("sqlite", "enable_wal", err)
	}
	if _, err := idx.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", idx.config.BusyTimeout.Milliseconds())); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}
	if _, err := idx.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}

	var version string
	err := idx.db.QueryRow("SELECT value FROM audit_meta WHERE key = ?", metaSchemaVersion).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err = idx.db.Exec("INSERT INTO audit_meta (key, value) VALUES (?, ?)",
			metaSchemaVersion, strconv.Itoa(SchemaVersion))
		if err != nil {
			return audit.NewStorageError("sqlite", "insert_schema_version", err)
		}
	case err != nil:
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	default:
		if version != strconv.Itoa(SchemaVersion) {
			return audit.NewStorageError("sqlite", "schema_version_mismatch",
				fmt.Errorf("expected schema version %d, got %s", SchemaVersion, version))
		}
	}

	return nil
}

// Rebuild replaces the index contents with a fresh snapshot streamed from
// the source store. The snapshot, including the source's skipped-line count,
// is committed atomically: readers see either the old or the new state.
func (idx *SQLiteIndex) Rebuild(ctx context.Context, source audit.Storage) error {
	// Cancel the source stream on any early return so its producer can
	// never stay parked on a full channel holding the log open.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stats, err := source.Statistics(ctx)
	if err != nil {
		return audit.NewStorageError("sqlite", "rebuild", err)
	}

	recordsCh, errCh, err := source.QueryStream(ctx, nil)
	if err != nil {
		return audit.NewStorageError("sqlite", "rebuild", err)
	}

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return audit.NewStorageError("sqlite", "rebuild", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM audit_records"); err != nil {
		return audit.NewStorageError("sqlite", "rebuild", err)
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_records (
			timestamp_ns, user, organization, department,
			input, generated_command, executed, exit_code,
			safety_level, notes, llm_backend, session_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return audit.NewStorageError("sqlite", "rebuild", err)
	}
	defer insert.Close()

	var inserted int64
	for record := range recordsCh {
		var exitCode interface{}
		if record.ExitCode != nil {
			exitCode = *record.ExitCode
		}

		_, err := insert.ExecContext(ctx,
			record.Timestamp.UTC().UnixNano(),
			record.User, record.Organization, record.Department,
			record.Input, record.GeneratedCommand, record.Executed, exitCode,
			record.SafetyLevel.String(), record.Notes, record.Backend, record.SessionID,
		)
		if err != nil {
			return audit.NewStorageError("sqlite", "rebuild", err)
		}
		inserted++
	}
	if err := <-errCh; err != nil {
		return audit.NewStorageError("sqlite", "rebuild", err)
	}

	for key, value := range map[string]string{
		metaSkippedLines: strconv.FormatInt(stats.SkippedLines, 10),
		metaRebuiltAt:    time.Now().UTC().Format(time.RFC3339),
	} {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO audit_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, value)
		if err != nil {
			return audit.NewStorageError("sqlite", "rebuild", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return audit.NewStorageError("sqlite", "rebuild", err)
	}

	idx.logger.Info("audit index rebuilt",
		"records", inserted,
		"skipped_lines", stats.SkippedLines,
	)
	return nil
}

// Query returns matching records in log insertion order.
func (idx *SQLiteIndex) Query(ctx context.Context, filter *audit.Filter) ([]*audit.Record, error) {
	where, args := buildWhere(filter)

	query := "SELECT timestamp_ns, user, organization, department, input, generated_command, executed, exit_code, safety_level, notes, llm_backend, session_id FROM audit_records"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY seq"

	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*audit.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}

	return records, nil
}

// Count returns the number of records matching the filter.
func (idx *SQLiteIndex) Count(ctx context.Context, filter *audit.Filter) (int64, error) {
	where, args := buildWhere(filter)

	query := "SELECT COUNT(*) FROM audit_records"
	if where != "" {
		query += " WHERE " + where
	}

	var count int64
	if err := idx.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Statistics aggregates the indexed snapshot. Results match a full scan of
// the log as of the last rebuild.
func (idx *SQLiteIndex) Statistics(ctx context.Context) (*audit.Statistics, error) {
	stats := &audit.Statistics{
		PerTier: make(map[policy.Tier]int64),
	}

	row := idx.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(executed), 0),
			COALESCE(SUM(CASE WHEN executed = 1 AND (exit_code IS NULL OR exit_code != 0) THEN 1 ELSE 0 END), 0)
		FROM audit_records
	`)
	if err := row.Scan(&stats.Total, &stats.Executed, &stats.FailedExecutions); err != nil {
		return nil, audit.NewStorageError("sqlite", "statistics", err)
	}

	rows, err := idx.db.QueryContext(ctx, "SELECT safety_level, COUNT(*) FROM audit_records GROUP BY safety_level")
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "statistics", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return nil, audit.NewStorageError("sqlite", "statistics", err)
		}
		tier, err := policy.ParseTier(name)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "statistics", err)
		}
		stats.PerTier[tier] = count
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "statistics", err)
	}

	var skipped string
	err = idx.db.QueryRowContext(ctx, "SELECT value FROM audit_meta WHERE key = ?", metaSkippedLines).Scan(&skipped)
	if err != nil && err != sql.ErrNoRows {
		return nil, audit.NewStorageError("sqlite", "statistics", err)
	}
	if skipped != "" {
		stats.SkippedLines, _ = strconv.ParseInt(skipped, 10, 64)
	}

	return stats, nil
}

// Close closes the database.
func (idx *SQLiteIndex) Close() error {
	if err := idx.db.Close(); err != nil {
		return audit.NewStorageError("sqlite", "close", err)
	}
	return nil
}

// buildWhere translates a filter into a WHERE clause. Time bounds follow the
// store contract: since inclusive, until exclusive.
func buildWhere(filter *audit.Filter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}

	var conditions []string
	var args []interface{}

	if filter.User != "" {
		conditions = append(conditions, "user = ?")
		args = append(args, filter.User)
	}
	if filter.Tier != nil {
		conditions = append(conditions, "safety_level = ?")
		args = append(args, filter.Tier.String())
	}
	if filter.Since != nil {
		conditions = append(conditions, "timestamp_ns >= ?")
		args = append(args, filter.Since.UTC().UnixNano())
	}
	if filter.Until != nil {
		conditions = append(conditions, "timestamp_ns < ?")
		args = append(args, filter.Until.UTC().UnixNano())
	}

	where := ""
	for i, condition := range conditions {
		if i > 0 {
			where += " AND "
		}
		where += condition
	}
	return where, args
}

// scanRecord scans one row into an audit record.
func scanRecord(rows *sql.Rows) (*audit.Record, error) {
	var record audit.Record
	var timestampNs int64
	var executed int
	var exitCode sql.NullInt64
	var tierName string

	err := rows.Scan(
		&timestampNs, &record.User, &record.Organization, &record.Department,
		&record.Input, &record.GeneratedCommand, &executed, &exitCode,
		&tierName, &record.Notes, &record.Backend, &record.SessionID,
	)
	if err != nil {
		return nil, err
	}

	record.Timestamp = time.Unix(0, timestampNs).UTC()
	record.Executed = executed != 0
	if exitCode.Valid {
		code := int(exitCode.Int64)
		record.ExitCode = &code
	}

	tier, err := policy.ParseTier(tierName)
	if err != nil {
		return nil, err
	}
	record.SafetyLevel = tier

	return &record, nil
}
