// Package sqlite implements the append-only audit log and the relationship
// graph on SQLite via the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/memloom/memloom/internal/storage"
	"github.com/memloom/memloom/pkg/types"
)

// AppendLog implements storage.AppendLog on a SQLite database.
//
// The underlying engine is not safe for concurrent writers from multiple
// logical operations, so every read and write goes through a single
// store-level mutex. That same critical section covers the check-then-insert
// sequence in InsertMemoryIfAbsent, which makes the idempotent-skip check
// race-free within the process. Across processes no such guarantee exists.
type AppendLog struct {
	db *sql.DB
	mu sync.Mutex
}

// NewAppendLog opens (or creates) the append log database at dsn.
// Call Initialize before using the log.
func NewAppendLog(dsn string) (*AppendLog, error) {
	db, err := openDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open append log: %w", err)
	}
	return &AppendLog{db: db}, nil
}

// openDB opens a SQLite database configured for a single serialized writer.
func openDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite only supports one concurrent writer. A single open connection
	// serialises writes and avoids SQLITE_BUSY errors under concurrent load.
	// WAL mode allows concurrent readers to proceed without blocking the writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Wait instead of failing with an immediate SQLITE_BUSY when the
	// connection is held by another goroutine.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Initialize creates the four log tables. Idempotent.
func (l *AppendLog) Initialize(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.db.ExecContext(ctx, logSchema); err != nil {
		return fmt.Errorf("sqlite: failed to create log schema: %w", err)
	}
	return nil
}

// InsertMemoryIfAbsent appends the record to memory_log unless its id was
// already logged. The existence check and insert run under the store mutex
// as one critical section.
func (l *AppendLog) InsertMemoryIfAbsent(ctx context.Context, record *types.MemoryRecord) (bool, error) {
	if record == nil {
		return false, fmt.Errorf("sqlite: InsertMemoryIfAbsent: %w: nil record", storage.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var count int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memory_log WHERE id = ?", record.ID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to check memory_log for %s: %w", record.ID, err)
	}
	if count > 0 {
		return false, nil
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to marshal record %s: %w", record.ID, err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO memory_log (id, summary, created_at, version, record, logged_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.Summary,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		record.Version,
		string(recordJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: failed to insert memory_log entry for %s: %w", record.ID, err)
	}
	return true, nil
}

// InsertConflict appends a conflict event. Always appends, never deduplicates.
func (l *AppendLog) InsertConflict(ctx context.Context, event *types.ConflictEvent) error {
	if event == nil {
		return fmt.Errorf("sqlite: InsertConflict: %w: nil event", storage.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO conflict_log (
			timestamp, conflict_type,
			new_id, new_summary, new_version, new_confidence,
			current_id, current_summary, current_version, current_confidence
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.ConflictType,
		event.NewID, event.NewSummary, event.NewVersion, event.NewConfidence,
		event.CurrentID, event.CurrentSummary, event.CurrentVersion, event.CurrentConfidence,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to insert conflict event for %s: %w", event.NewID, err)
	}
	return nil
}

// InsertQuery appends a query event.
func (l *AppendLog) InsertQuery(ctx context.Context, event *types.QueryEvent) error {
	if event == nil {
		return fmt.Errorf("sqlite: InsertQuery: %w: nil event", storage.ErrInvalidInput)
	}

	ids, err := json.Marshal(event.ResultIDs)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal query result ids: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO query_log (timestamp, prompt, top_k, result_ids)
		VALUES (?, ?, ?, ?)
	`,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.Prompt,
		event.TopK,
		string(ids),
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to insert query event: %w", err)
	}
	return nil
}

// InsertSummary appends a summary event.
func (l *AppendLog) InsertSummary(ctx context.Context, event *types.SummaryEvent) error {
	if event == nil {
		return fmt.Errorf("sqlite: InsertSummary: %w: nil event", storage.ErrInvalidInput)
	}

	ids, err := json.Marshal(event.MemoryIDs)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal summary memory ids: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO summary_log (timestamp, memory_ids, prompt, summary)
		VALUES (?, ?, ?, ?)
	`,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		string(ids),
		event.Prompt,
		event.Summary,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failed to insert summary event: %w", err)
	}
	return nil
}

// CountMemoryEntries returns the number of memory_log rows for id.
// Exposed for idempotence verification in tests and diagnostics.
func (l *AppendLog) CountMemoryEntries(ctx context.Context, id string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var count int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM memory_log WHERE id = ?", id,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count memory_log entries for %s: %w", id, err)
	}
	return count, nil
}

// CountConflicts returns the number of logged conflict events for newID.
func (l *AppendLog) CountConflicts(ctx context.Context, newID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var count int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM conflict_log WHERE new_id = ?", newID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: failed to count conflict_log entries for %s: %w", newID, err)
	}
	return count, nil
}

// Close closes the underlying database.
func (l *AppendLog) Close() error {
	return l.db.Close()
}

// Compile-time assertion that AppendLog satisfies the storage interface.
var _ storage.AppendLog = (*AppendLog)(nil)
