package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"warden-sh/warden/pkg/audit"
	"warden-sh/warden/pkg/policy"
)

func testRecord(user string, tier policy.Tier, ts time.Time) *audit.Record {
	return &audit.Record{
		Timestamp:        ts,
		User:             user,
		Input:            "list files",
		GeneratedCommand: "ls -la",
		SafetyLevel:      tier,
		Backend:          "ollama",
	}
}

func newTestStorage(t *testing.T) (*JSONLStorage, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "audit.log")
	storage, err := NewJSONLStorage(&JSONLConfig{Path: path, Sync: true})
	if err != nil {
		t.Fatalf("NewJSONLStorage() failed: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	return storage, path
}

// TestJSONLStorage_AppendAndQuery tests the basic append/query round trip and
// insertion ordering.
func TestJSONLStorage_AppendAndQuery(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		record := testRecord(fmt.Sprintf("user-%d", i), policy.TierSafe, base.Add(time.Duration(i)*time.Minute))
		if err := storage.Append(ctx, record); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	records, err := storage.Query(ctx, nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	for i, r := range records {
		if want := fmt.Sprintf("user-%d", i); r.User != want {
			t.Errorf("records[%d].User = %q, want %q (insertion order)", i, r.User, want)
		}
	}
}

// TestJSONLStorage_QueryMissingFile tests that querying a store that was
// never appended to fails rather than silently returning nothing.
func TestJSONLStorage_QueryMissingFile(t *testing.T) {
	storage, _ := newTestStorage(t)

	if _, err := storage.Query(context.Background(), nil); err == nil {
		t.Fatal("Query() on missing log succeeded, want error")
	}
	if _, err := storage.Statistics(context.Background()); err == nil {
		t.Fatal("Statistics() on missing log succeeded, want error")
	}
}

// TestJSONLStorage_QueryFilters tests user, tier, and time-range filtering.
func TestJSONLStorage_QueryFilters(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	seed := []*audit.Record{
		testRecord("alice", policy.TierSafe, base),
		testRecord("bob", policy.TierBlocked, base.Add(time.Hour)),
		testRecord("alice", policy.TierWarning, base.Add(2*time.Hour)),
	}
	for _, r := range seed {
		if err := storage.Append(ctx, r); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	records, err := storage.Query(ctx, &audit.Filter{User: "alice"})
	if err != nil {
		t.Fatalf("Query(user) failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("user filter: got %d records, want 2", len(records))
	}

	blocked := policy.TierBlocked
	records, err = storage.Query(ctx, &audit.Filter{Tier: &blocked})
	if err != nil {
		t.Fatalf("Query(tier) failed: %v", err)
	}
	if len(records) != 1 || records[0].User != "bob" {
		t.Errorf("tier filter: got %d records, want bob's single record", len(records))
	}

	// since inclusive, until exclusive: exactly the middle record
	since := base.Add(time.Hour)
	until := base.Add(2 * time.Hour)
	records, err = storage.Query(ctx, &audit.Filter{Since: &since, Until: &until})
	if err != nil {
		t.Fatalf("Query(range) failed: %v", err)
	}
	if len(records) != 1 || records[0].User != "bob" {
		t.Errorf("time range: got %d records, want bob's single record", len(records))
	}

	count, err := storage.Count(ctx, &audit.Filter{User: "alice"})
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}

// TestJSONLStorage_RepeatedQueriesIdentical tests that queries over an
// unchanged store are restartable: every scan yields the same sequence.
func TestJSONLStorage_RepeatedQueriesIdentical(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		if err := storage.Append(ctx, testRecord(fmt.Sprintf("u%d", i), policy.TierSafe, base)); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	first, err := storage.Query(ctx, nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}

	for attempt := 0; attempt < 3; attempt++ {
		again, err := storage.Query(ctx, nil)
		if err != nil {
			t.Fatalf("Query() attempt %d failed: %v", attempt, err)
		}
		if len(again) != len(first) {
			t.Fatalf("attempt %d: got %d records, want %d", attempt, len(again), len(first))
		}
		for i := range again {
			if again[i].User != first[i].User {
				t.Errorf("attempt %d: records[%d].User = %q, want %q", attempt, i, again[i].User, first[i].User)
			}
		}
	}
}

// TestJSONLStorage_TruncatedFinalLine tests crash tolerance: a partial final
// line (as left by a crash mid-write) is skipped and counted, and the intact
// records remain readable.
func TestJSONLStorage_TruncatedFinalLine(t *testing.T) {
	storage, path := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := storage.Append(ctx, testRecord("alice", policy.TierSafe, time.Now())); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}
	if err := storage.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// Simulate a crash mid-write: half a JSON object, no trailing newline
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		t.Fatalf("open for truncation: %v", err)
	}
	if _, err := f.WriteString(`{"timestamp":"2026-03-14T09:00:00Z","user":"bo`); err != nil {
		t.Fatalf("write partial line: %v", err)
	}
	f.Close()

	records, err := storage.Query(ctx, nil)
	if err != nil {
		t.Fatalf("Query() after truncation failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want the 2 intact ones", len(records))
	}

	stats, err := storage.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() failed: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.SkippedLines != 1 {
		t.Errorf("SkippedLines = %d, want 1", stats.SkippedLines)
	}

	// Appends keep working past the damage
	if err := storage.Append(ctx, testRecord("carol", policy.TierSafe, time.Now())); err != nil {
		t.Fatalf("Append() after truncation failed: %v", err)
	}
}

// TestJSONLStorage_Statistics tests the aggregate counters, including the
// failed-execution rule: executed with a missing or nonzero exit code.
func TestJSONLStorage_Statistics(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	zero := 0
	one := 1
	seed := []*audit.Record{
		{Timestamp: time.Now(), User: "a", SafetyLevel: policy.TierSafe, Executed: true, ExitCode: &zero, Backend: "ollama"},
		{Timestamp: time.Now(), User: "a", SafetyLevel: policy.TierWarning, Executed: true, ExitCode: &one, Backend: "ollama"},
		{Timestamp: time.Now(), User: "a", SafetyLevel: policy.TierDangerous, Executed: true, Backend: "ollama"},
		{Timestamp: time.Now(), User: "a", SafetyLevel: policy.TierBlocked, Executed: false, Backend: "ollama"},
	}
	for _, r := range seed {
		if err := storage.Append(ctx, r); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	stats, err := storage.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() failed: %v", err)
	}

	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if stats.Executed != 3 {
		t.Errorf("Executed = %d, want 3", stats.Executed)
	}
	// exit 1 and the unknown-exit execution count as failed; exit 0 does not
	if stats.FailedExecutions != 2 {
		t.Errorf("FailedExecutions = %d, want 2", stats.FailedExecutions)
	}
	for tier, want := range map[policy.Tier]int64{
		policy.TierSafe:      1,
		policy.TierWarning:   1,
		policy.TierDangerous: 1,
		policy.TierBlocked:   1,
	} {
		if stats.PerTier[tier] != want {
			t.Errorf("PerTier[%v] = %d, want %d", tier, stats.PerTier[tier], want)
		}
	}
	if stats.SkippedLines != 0 {
		t.Errorf("SkippedLines = %d, want 0", stats.SkippedLines)
	}
}

// TestJSONLStorage_OversizedRecordRejected tests that a record whose
// serialized line exceeds the line limit is refused at append time, so it
// can never poison later scans.
func TestJSONLStorage_OversizedRecordRejected(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	big := testRecord("alice", policy.TierSafe, time.Now())
	big.Input = strings.Repeat("x", 2<<20) // 2 MiB, well past the 1 MiB default

	if err := storage.Append(ctx, big); err == nil {
		t.Fatal("Append() of oversized record succeeded, want error")
	}

	// The store stays fully usable
	if err := storage.Append(ctx, testRecord("alice", policy.TierSafe, time.Now())); err != nil {
		t.Fatalf("Append() after rejection failed: %v", err)
	}
	records, err := storage.Query(ctx, nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records, want 1 (the rejected record must not be written)", len(records))
	}
}

// TestJSONLStorage_OversizedLineSkipped tests that an over-long line written
// by an external process is skipped and counted like any malformed line,
// never failing the whole scan or hiding the well-formed records around it.
func TestJSONLStorage_OversizedLineSkipped(t *testing.T) {
	storage, path := newTestStorage(t)
	ctx := context.Background()

	if err := storage.Append(ctx, testRecord("alice", policy.TierSafe, time.Now())); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	line := `{"user":"bob","input":"` + strings.Repeat("x", 2<<20) + `"}` + "\n"
	if _, err := f.WriteString(line); err != nil {
		t.Fatalf("write oversized line: %v", err)
	}
	f.Close()

	if err := storage.Append(ctx, testRecord("carol", policy.TierSafe, time.Now())); err != nil {
		t.Fatalf("Append() after oversized line failed: %v", err)
	}

	records, err := storage.Query(ctx, nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want the 2 well-formed ones", len(records))
	}
	if records[0].User != "alice" || records[1].User != "carol" {
		t.Errorf("records = %q, %q; want alice then carol", records[0].User, records[1].User)
	}

	stats, err := storage.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() failed: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.SkippedLines != 1 {
		t.Errorf("SkippedLines = %d, want 1", stats.SkippedLines)
	}
}

// TestJSONLStorage_StatisticsCleanExits tests that commands exiting zero are
// never counted as failed executions.
func TestJSONLStorage_StatisticsCleanExits(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	zero := 0
	seed := []*audit.Record{
		{Timestamp: time.Now(), User: "a", SafetyLevel: policy.TierSafe, Executed: true, ExitCode: &zero, Backend: "ollama"},
		{Timestamp: time.Now(), User: "a", SafetyLevel: policy.TierSafe, Executed: true, ExitCode: &zero, Backend: "ollama"},
		{Timestamp: time.Now(), User: "a", SafetyLevel: policy.TierBlocked, Executed: false, Backend: "ollama"},
	}
	for _, r := range seed {
		if err := storage.Append(ctx, r); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	stats, err := storage.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() failed: %v", err)
	}
	if stats.Total != 3 || stats.Executed != 2 || stats.FailedExecutions != 0 {
		t.Errorf("Statistics() = %+v, want total=3 executed=2 failed=0", stats)
	}

	records, err := storage.Query(ctx, nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if int64(len(records)) != stats.Total {
		t.Errorf("len(Query()) = %d, want Statistics().Total = %d", len(records), stats.Total)
	}
}

// TestJSONLStorage_RoundTripAllFields tests that every record field survives
// the append/query round trip.
func TestJSONLStorage_RoundTripAllFields(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	exitCode := 127
	original := &audit.Record{
		Timestamp:        time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		User:             "alice",
		Organization:     "acme",
		Department:       "platform",
		Input:            "delete the build directory",
		GeneratedCommand: "rm -rf ./build",
		Executed:         true,
		ExitCode:         &exitCode,
		SafetyLevel:      policy.TierDangerous,
		Notes:            "confirmed by operator",
		Backend:          "ollama",
		SessionID:        "session-42",
	}
	if err := storage.Append(ctx, original); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}

	records, err := storage.Query(ctx, nil)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	got := records[0]
	if !got.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, original.Timestamp)
	}
	if got.User != original.User || got.Organization != original.Organization || got.Department != original.Department {
		t.Errorf("identity fields = %q/%q/%q, want %q/%q/%q",
			got.User, got.Organization, got.Department,
			original.User, original.Organization, original.Department)
	}
	if got.Input != original.Input || got.GeneratedCommand != original.GeneratedCommand {
		t.Errorf("command fields differ: %+v", got)
	}
	if got.Executed != original.Executed || got.ExitCode == nil || *got.ExitCode != exitCode {
		t.Errorf("execution fields differ: executed=%v exit=%v", got.Executed, got.ExitCode)
	}
	if got.SafetyLevel != original.SafetyLevel || got.Notes != original.Notes ||
		got.Backend != original.Backend || got.SessionID != original.SessionID {
		t.Errorf("metadata fields differ: %+v", got)
	}
}

// TestJSONLStorage_QueryStream tests streaming delivery and that the stream
// restarts from the beginning on every call.
func TestJSONLStorage_QueryStream(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		if err := storage.Append(ctx, testRecord(fmt.Sprintf("u%d", i), policy.TierSafe, time.Now())); err != nil {
			t.Fatalf("Append() failed: %v", err)
		}
	}

	for attempt := 0; attempt < 2; attempt++ {
		recordsCh, errCh, err := storage.QueryStream(ctx, nil)
		if err != nil {
			t.Fatalf("QueryStream() failed: %v", err)
		}

		var got int
		for range recordsCh {
			got++
		}
		if err := <-errCh; err != nil {
			t.Fatalf("stream error: %v", err)
		}
		if got != 250 {
			t.Errorf("attempt %d: streamed %d records, want 250", attempt, got)
		}
	}
}

// TestJSONLStorage_ConcurrentAppends tests that concurrent appenders never
// interleave bytes: every line parses and every record survives.
func TestJSONLStorage_ConcurrentAppends(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				record := testRecord(fmt.Sprintf("writer-%d", w), policy.TierSafe, time.Now())
				if err := storage.Append(ctx, record); err != nil {
					t.Errorf("Append() failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	stats, err := storage.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() failed: %v", err)
	}
	if stats.Total != writers*perWriter {
		t.Errorf("Total = %d, want %d", stats.Total, writers*perWriter)
	}
	if stats.SkippedLines != 0 {
		t.Errorf("SkippedLines = %d, want 0 (interleaved write?)", stats.SkippedLines)
	}
}

// TestJSONLStorage_NilRecord tests nil-record rejection.
func TestJSONLStorage_NilRecord(t *testing.T) {
	storage, _ := newTestStorage(t)

	if err := storage.Append(context.Background(), nil); err == nil {
		t.Fatal("Append(nil) succeeded, want error")
	}
}

// TestJSONLStorage_ReopenAfterClose tests that the store reopens its append
// handle transparently after Close.
func TestJSONLStorage_ReopenAfterClose(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	if err := storage.Append(ctx, testRecord("alice", policy.TierSafe, time.Now())); err != nil {
		t.Fatalf("Append() failed: %v", err)
	}
	if err := storage.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := storage.Append(ctx, testRecord("bob", policy.TierSafe, time.Now())); err != nil {
		t.Fatalf("Append() after Close failed: %v", err)
	}

	count, err := storage.Count(ctx, nil)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Count() = %d, want 2", count)
	}
}
