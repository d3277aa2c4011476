package export

import (
	"context"
	"encoding/json"
	"io"

	"warden-sh/warden/pkg/audit"
)

// JSONExporter exports audit records to JSON format.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{
		Pretty: pretty,
	}
}

// Export writes records to the provided writer as a JSON array.
func (e *JSONExporter) Export(ctx context.Context, records []*audit.Record, w io.Writer) error {
	if records == nil {
		records = []*audit.Record{}
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return audit.NewExportError("json", len(records), err)
	}

	if _, err := w.Write(data); err != nil {
		return audit.NewExportError("json", len(records), err)
	}

	return nil
}

// ExportStream writes records arriving on a channel as a JSON array without
// holding the full result set in memory. Pair it with a storage QueryStream
// for large logs.
func (e *JSONExporter) ExportStream(ctx context.Context, recordsCh <-chan *audit.Record, w io.Writer) error {
	if _, err := w.Write([]byte("[")); err != nil {
		return audit.NewExportError("json", 0, err)
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return audit.NewExportError("json", count, ctx.Err())

		case record, ok := <-recordsCh:
			if !ok {
				_, err := w.Write([]byte("]"))
				if err != nil {
					return audit.NewExportError("json", count, err)
				}
				return nil
			}

			data, err := json.Marshal(record)
			if err != nil {
				return audit.NewExportError("json", count, err)
			}

			if count > 0 {
				if _, err := w.Write([]byte(",")); err != nil {
					return audit.NewExportError("json", count, err)
				}
			}
			if _, err := w.Write(data); err != nil {
				return audit.NewExportError("json", count, err)
			}
			count++
		}
	}
}
