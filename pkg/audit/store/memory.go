package store

import (
	"context"
	"sync"

	"warden-sh/warden/pkg/audit"
	"warden-sh/warden/pkg/policy"
)

// MemoryStorage implements audit.Storage with an in-memory slice. It keeps
// insertion order and is intended for tests; nothing it holds survives the
// process.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*audit.Record
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Append stores a copy of the record.
func (s *MemoryStorage) Append(ctx context.Context, record *audit.Record) error {
	if record == nil {
		return audit.NewStorageError("memory", "append", errNilRecord)
	}
	if err := ctx.Err(); err != nil {
		return audit.NewStorageError("memory", "append", err)
	}

	recordCopy := *record
	recordCopy.Timestamp = record.Timestamp.UTC()

	s.mu.Lock()
	s.records = append(s.records, &recordCopy)
	s.mu.Unlock()

	return nil
}

// Query returns matching records in insertion order.
func (s *MemoryStorage) Query(ctx context.Context, filter *audit.Filter) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []*audit.Record{}
	for _, record := range s.records {
		if filter.Matches(record) {
			recordCopy := *record
			results = append(results, &recordCopy)
		}
	}
	return results, nil
}

// QueryStream streams matching records in insertion order. The channels are
// closed when the scan completes or errors.
func (s *MemoryStorage) QueryStream(ctx context.Context, filter *audit.Filter) (<-chan *audit.Record, <-chan error, error) {
	recordsCh := make(chan *audit.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(recordsCh)
		defer close(errCh)

		s.mu.RLock()
		snapshot := make([]*audit.Record, len(s.records))
		copy(snapshot, s.records)
		s.mu.RUnlock()

		for _, record := range snapshot {
			if !filter.Matches(record) {
				continue
			}
			recordCopy := *record
			select {
			case recordsCh <- &recordCopy:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return recordsCh, errCh, nil
}

// Count returns the number of records matching the filter.
func (s *MemoryStorage) Count(ctx context.Context, filter *audit.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if filter.Matches(record) {
			count++
		}
	}
	return count, nil
}

// Statistics aggregates over all stored records.
func (s *MemoryStorage) Statistics(ctx context.Context) (*audit.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &audit.Statistics{
		PerTier: make(map[policy.Tier]int64),
	}
	for _, record := range s.records {
		stats.Total++
		if record.Executed {
			stats.Executed++
			if record.ExitCode == nil || *record.ExitCode != 0 {
				stats.FailedExecutions++
			}
		}
		stats.PerTier[record.SafetyLevel]++
	}
	return stats, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStorage) Close() error {
	return nil
}
