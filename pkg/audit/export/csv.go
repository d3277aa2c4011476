package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"warden-sh/warden/pkg/audit"
)

// CSVExporter exports audit records to CSV format.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{
		IncludeHeader: includeHeader,
	}
}

// Export writes records to the provided writer in CSV format, one row per
// record, columns matching the audit line format.
func (e *CSVExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(headerRow()); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}

	for _, record := range records {
		if err := writer.Write(recordToRow(record)); err != nil {
			return audit.NewExportError("csv", len(records), err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return audit.NewExportError("csv", len(records), err)
	}
	return nil
}

// ExportStream writes records arriving on a channel in CSV format without
// holding the full result set in memory.
func (e *CSVExporter) ExportStream(ctx context.Context, recordsCh <-chan *audit.Record, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(headerRow()); err != nil {
			return audit.NewExportError("csv", 0, err)
		}
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return audit.NewExportError("csv", count, ctx.Err())

		case record, ok := <-recordsCh:
			if !ok {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return audit.NewExportError("csv", count, err)
				}
				return nil
			}

			if err := writer.Write(recordToRow(record)); err != nil {
				return audit.NewExportError("csv", count, err)
			}
			count++
		}
	}
}

func headerRow() []string {
	return []string{
		"timestamp", "user", "organization", "department",
		"input", "generated_command", "executed", "exit_code",
		"safety_level", "notes", "llm_backend", "session_id",
	}
}

func recordToRow(record *audit.Record) []string {
	exitCode := ""
	if record.ExitCode != nil {
		exitCode = strconv.Itoa(*record.ExitCode)
	}

	return []string{
		record.Timestamp.UTC().Format(time.RFC3339Nano),
		record.User,
		record.Organization,
		record.Department,
		record.Input,
		record.GeneratedCommand,
		strconv.FormatBool(record.Executed),
		exitCode,
		record.SafetyLevel.String(),
		record.Notes,
		record.Backend,
		record.SessionID,
	}
}
