package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"warden-sh/warden/pkg/audit"
	"warden-sh/warden/pkg/policy"
)

// JSONLConfig contains configuration for the JSONL storage backend.
type JSONLConfig struct {
	// Path is the audit log file path. The parent directory is created on
	// first append if it does not exist.
	Path string

	// Sync flushes the file to stable storage after every append.
	// Default: true. Disabling trades durability for throughput.
	Sync bool

	// MaxLineBytes caps the serialized size of a single record line. The
	// cap is enforced on append, and scans skip any line exceeding it so
	// an externally written oversized line cannot wedge every query.
	// Default: 1 MiB.
	MaxLineBytes int
}

// DefaultJSONLConfig returns the default JSONL configuration.
func DefaultJSONLConfig() *JSONLConfig {
	return &JSONLConfig{
		Path:         "data/audit.log",
		Sync:         true,
		MaxLineBytes: 1 << 20,
	}
}

// JSONLStorage implements audit.Storage over an append-only JSONL file.
//
// All appends funnel through one mutex-guarded file handle so the bytes of
// two records never interleave: each record is serialized to a single line
// and written with one write call, then flushed before Append returns.
// Readers open the file independently, so queries never block appends.
//
// The guarantee holds for concurrent callers within one process only.
// Multiple processes appending to the same log require external
// coordination and are unsupported here.
type JSONLStorage struct {
	config *JSONLConfig
	logger *slog.Logger

	mu   sync.Mutex // guards file
	file *os.File   // opened lazily on first append
}

// NewJSONLStorage creates a JSONL storage backend. The log file itself is
// not created until the first append, so querying a store that was never
// written to fails with the underlying open error.
func NewJSONLStorage(config *JSONLConfig) (*JSONLStorage, error) {
	if config == nil {
		config = DefaultJSONLConfig()
	}
	if config.Path == "" {
		return nil, audit.NewStorageError("jsonl", "open", fmt.Errorf("log path must not be empty"))
	}
	if config.MaxLineBytes <= 0 {
		config.MaxLineBytes = 1 << 20
	}

	return &JSONLStorage{
		config: config,
		logger: slog.Default().With("component", "audit.store.jsonl"),
	}, nil
}

// Append serializes the record as one line, writes it through the single
// writer handle, and flushes before reporting success. The append is
// all-or-nothing with respect to readers: a crash mid-write leaves at most
// one truncated final line, which scans detect and skip.
func (s *JSONLStorage) Append(ctx context.Context, record *audit.Record) error {
	if record == nil {
		return audit.NewStorageError("jsonl", "append", errNilRecord)
	}
	if err := ctx.Err(); err != nil {
		return audit.NewStorageError("jsonl", "append", err)
	}

	normalized := *record
	normalized.Timestamp = record.Timestamp.UTC()

	line, err := json.Marshal(&normalized)
	if err != nil {
		return audit.NewStorageError("jsonl", "serialize", err)
	}
	if len(line) > s.config.MaxLineBytes {
		return audit.NewStorageError("jsonl", "append",
			fmt.Errorf("serialized record of %d bytes exceeds the %d byte line limit", len(line), s.config.MaxLineBytes))
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpenLocked(); err != nil {
		return err
	}

	if _, err := s.file.Write(line); err != nil {
		return audit.NewStorageError("jsonl", "append", err)
	}
	if s.config.Sync {
		if err := s.file.Sync(); err != nil {
			return audit.NewStorageError("jsonl", "sync", err)
		}
	}

	return nil
}

// ensureOpenLocked opens the append handle, creating the parent directory
// and file as needed. Callers must hold mu.
func (s *JSONLStorage) ensureOpenLocked() error {
	if s.file != nil {
		return nil
	}

	if dir := filepath.Dir(s.config.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return audit.NewStorageError("jsonl", "mkdir", err)
		}
	}

	f, err := os.OpenFile(s.config.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return audit.NewStorageError("jsonl", "open", err)
	}
	s.file = f

	s.logger.Debug("audit log opened for append", "path", s.config.Path)
	return nil
}

// Query scans the log from the start and returns matching records in file
// order. Malformed lines are skipped and counted, never aborting the scan.
func (s *JSONLStorage) Query(ctx context.Context, filter *audit.Filter) ([]*audit.Record, error) {
	records := []*audit.Record{}
	_, err := s.scan(ctx, "query", func(r *audit.Record) bool {
		if filter.Matches(r) {
			records = append(records, r)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// QueryStream streams matching records in file order without holding the
// whole log in memory. Each call restarts from the beginning of the log, so
// the sequence is restartable: repeated calls over an unchanged store yield
// identical sequences.
func (s *JSONLStorage) QueryStream(ctx context.Context, filter *audit.Filter) (<-chan *audit.Record, <-chan error, error) {
	recordsCh := make(chan *audit.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordsCh)
		defer close(errCh)

		_, err := s.scan(ctx, "query_stream", func(r *audit.Record) bool {
			if !filter.Matches(r) {
				return true
			}
			select {
			case recordsCh <- r:
				return true
			case <-ctx.Done():
				errCh <- ctx.Err()
				return false
			}
		})
		if err != nil {
			errCh <- err
		}
	}()

	return recordsCh, errCh, nil
}

// Count returns the number of records matching the filter.
func (s *JSONLStorage) Count(ctx context.Context, filter *audit.Filter) (int64, error) {
	var count int64
	_, err := s.scan(ctx, "count", func(r *audit.Record) bool {
		if filter.Matches(r) {
			count++
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Statistics aggregates the full log in one O(n) scan.
func (s *JSONLStorage) Statistics(ctx context.Context) (*audit.Statistics, error) {
	stats := &audit.Statistics{
		PerTier: make(map[policy.Tier]int64),
	}

	skipped, err := s.scan(ctx, "statistics", func(r *audit.Record) bool {
		stats.Total++
		if r.Executed {
			stats.Executed++
			if r.ExitCode == nil || *r.ExitCode != 0 {
				stats.FailedExecutions++
			}
		}
		stats.PerTier[r.SafetyLevel]++
		return true
	})
	if err != nil {
		return nil, err
	}
	stats.SkippedLines = skipped

	return stats, nil
}

// Close closes the append handle. The store may be reused; the handle is
// reopened on the next append.
func (s *JSONLStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return audit.NewStorageError("jsonl", "close", err)
	}
	return nil
}

// scan reads the log line by line, invoking yield for every well-formed
// record until yield returns false or the log is exhausted. It returns the
// number of skipped lines. A missing log file is a whole-operation error;
// a malformed, truncated, or oversized line is not: all three are skipped
// and counted so one bad line can never make the store unreadable.
func (s *JSONLStorage) scan(ctx context.Context, operation string, yield func(*audit.Record) bool) (int64, error) {
	f, err := os.Open(s.config.Path)
	if err != nil {
		return 0, audit.NewStorageError("jsonl", operation, err)
	}
	defer f.Close()

	var skipped int64
	reader := bufio.NewReaderSize(f, 64*1024)

	for {
		if err := ctx.Err(); err != nil {
			return skipped, audit.NewStorageError("jsonl", operation, err)
		}

		line, tooLong, err := readLine(reader, s.config.MaxLineBytes)
		if err != nil && err != io.EOF {
			return skipped, audit.NewStorageError("jsonl", operation, err)
		}
		atEOF := err == io.EOF

		switch {
		case tooLong:
			skipped++
			s.logger.Warn("skipping oversized audit line",
				"path", s.config.Path,
				"limit_bytes", s.config.MaxLineBytes,
			)

		case len(line) > 0:
			var record audit.Record
			if uerr := json.Unmarshal(line, &record); uerr != nil {
				// Truncated final line from a crash mid-write lands
				// here too: count it and keep scanning.
				skipped++
				s.logger.Warn("skipping malformed audit line",
					"path", s.config.Path,
					"error", uerr,
				)
			} else if !yield(&record) {
				return skipped, nil
			}
		}

		if atEOF {
			return skipped, nil
		}
	}
}

// readLine returns the next line without its trailing newline. A line longer
// than max is consumed through its terminating newline and reported tooLong
// with no content, so the reader stays positioned on the following line.
func readLine(r *bufio.Reader, max int) (line []byte, tooLong bool, err error) {
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			if len(line) > max+1 {
				line = nil
				tooLong = true
			}
		}

		switch err {
		case nil:
			if !tooLong {
				line = line[:len(line)-1]
			}
			return line, tooLong, nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			return line, tooLong, io.EOF
		default:
			return nil, false, err
		}
	}
}
