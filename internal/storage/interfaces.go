// Package storage defines the capability interfaces the synchronization core
// consumes, plus the sentinel errors and result types shared by their
// implementations.
//
// The interfaces are deliberately small and focused so that backends can be
// implemented independently and swapped per deployment (pgvector vs. embedded
// chromem for the index; SQLite for the log and graph). The core imposes no
// locking on the index or graph; they are expected to be concurrency-safe
// internally. The append-only log is the one serialized resource; see
// AppendLog.
package storage

import (
	"context"

	"github.com/memloom/memloom/pkg/types"
)

// VectorIndex is the semantic store. It holds one point per memory record,
// keyed by the record's IndexKey, with the record itself as payload.
type VectorIndex interface {
	// Upsert inserts or replaces the point for record under key.
	Upsert(ctx context.Context, key string, vector []float32, record *types.MemoryRecord) error

	// Search returns up to limit payloads ordered by descending similarity
	// to vector.
	Search(ctx context.Context, vector []float32, limit int) ([]SearchHit, error)

	// GetByLogicalID fetches the payload whose record ID (not index key)
	// matches id. Returns ErrNotFound when absent.
	GetByLogicalID(ctx context.Context, id string) (*types.MemoryRecord, error)

	// Initialize prepares the backing collection/schema. Must be called once
	// at process start, before any other method.
	Initialize(ctx context.Context) error

	// Close releases the underlying client or connection.
	Close() error
}

// GraphStore is the relationship store. All writes use merge semantics:
// repeating a write is a no-op.
type GraphStore interface {
	// MergeMemoryNode creates or updates the graph node for a memory record.
	MergeMemoryNode(ctx context.Context, id, summary string) error

	// MergeEntityNode creates or updates an extracted entity node keyed by id.
	MergeEntityNode(ctx context.Context, id, name, entityType string) error

	// MergeEntityEdge creates a typed relationship between two existing
	// entity nodes; when either endpoint node is absent the edge is silently
	// skipped. The relationship type must satisfy
	// types.IsSafeRelationshipType; it is stored as data, never spliced into
	// query text.
	MergeEntityEdge(ctx context.Context, sourceID, targetID, relationshipType string) error

	// MergeMentionLink records that a memory's summary mentions an entity.
	MergeMentionLink(ctx context.Context, memoryID, entityID string) error

	// FindRelated walks the graph from a memory node and returns memories
	// reachable within maxHops (clamped to <= 5), up to limit (clamped to
	// <= 100).
	FindRelated(ctx context.Context, memoryID string, maxHops, limit int) ([]RelatedMemory, error)

	// Initialize prepares the backing schema. Must be called once at process
	// start, before any other method.
	Initialize(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// AppendLog is the insert-only audit store. Four logical tables: memory
// records (idempotent on id), conflict events, query events, and summary
// events (always appended, never deduplicated).
//
// The log engine is not safe for concurrent writers from multiple logical
// operations, so implementations must serialize all reads and writes behind
// a single process-wide mutual-exclusion section. In particular the
// existence check and insert inside InsertMemoryIfAbsent must execute as one
// critical section so duplicate-id races cannot occur within the process.
type AppendLog interface {
	// InsertMemoryIfAbsent appends a memory record unless one with the same
	// id was already logged. Returns true when the record was inserted,
	// false when it already existed (idempotent re-delivery, not an error).
	InsertMemoryIfAbsent(ctx context.Context, record *types.MemoryRecord) (bool, error)

	// InsertConflict appends a conflict event.
	InsertConflict(ctx context.Context, event *types.ConflictEvent) error

	// InsertQuery appends a query event.
	InsertQuery(ctx context.Context, event *types.QueryEvent) error

	// InsertSummary appends a summary event.
	InsertSummary(ctx context.Context, event *types.SummaryEvent) error

	// Initialize prepares the backing tables. Must be called once at process
	// start, before any other method.
	Initialize(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
