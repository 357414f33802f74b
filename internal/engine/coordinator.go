package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/memloom/memloom/internal/llm"
	"github.com/memloom/memloom/internal/storage"
	"github.com/memloom/memloom/pkg/types"
)

// SyncCoordinator fans a single logical write out to the vector index, the
// append-only log, and the relationship graph. The three writes run
// concurrently and are joined regardless of individual failure, so one
// store's outage does not prevent writes to the others. There is no
// cross-store atomicity and no rollback; partial failure is reported in the
// SyncResult and retry policy belongs to the caller.
type SyncCoordinator struct {
	index    storage.VectorIndex
	graph    storage.GraphStore
	audit    storage.AppendLog
	embedder llm.Embedder
	pipeline *ExtractionPipeline
}

// NewSyncCoordinator wires the coordinator. pipeline may be nil, in which
// case the post-write extraction step is skipped.
func NewSyncCoordinator(
	index storage.VectorIndex,
	graph storage.GraphStore,
	audit storage.AppendLog,
	embedder llm.Embedder,
	pipeline *ExtractionPipeline,
) *SyncCoordinator {
	return &SyncCoordinator{
		index:    index,
		graph:    graph,
		audit:    audit,
		embedder: embedder,
		pipeline: pipeline,
	}
}

// SyncWrite validates the record, stamps its access time, and writes it to
// all three stores concurrently. On a successful index write it then runs
// entity extraction over the summary and applies the result to the graph;
// that step is best-effort and never flips the result.
//
// The record is mutated in place: LastAccessed is set to the operation's
// start time before the index write, and IndexKey is assigned when empty.
func (c *SyncCoordinator) SyncWrite(ctx context.Context, record *types.MemoryRecord) (*SyncResult, error) {
	if record == nil {
		return nil, fmt.Errorf("sync: %w: nil record", storage.ErrInvalidInput)
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("sync: %w: %v", storage.ErrInvalidInput, err)
	}

	start := time.Now().UTC()
	record.LastAccessed = &start
	if record.IndexKey == "" {
		// The index needs its own primary-key format, distinct from the
		// logical record id.
		record.IndexKey = uuid.NewString()
	}

	// The summary embedding is only needed by the index; computing it before
	// the fan-out keeps the three store writes independent. An embedding
	// failure is reported as an index failure, and the log and graph writes
	// still proceed.
	vector, embedErr := c.embedder.Embed(ctx, record.Summary)

	result := &SyncResult{Stores: make(map[string]error, 3)}
	var mu sync.Mutex
	setStatus := func(store string, err error) {
		mu.Lock()
		result.Stores[store] = err
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		if embedErr != nil {
			setStatus(StoreIndex, fmt.Errorf("sync: embedding failed for %s: %w", record.ID, embedErr))
			return
		}
		if err := c.index.Upsert(ctx, record.IndexKey, vector, record); err != nil {
			setStatus(StoreIndex, fmt.Errorf("sync: index upsert failed for %s: %w", record.ID, err))
			return
		}
		setStatus(StoreIndex, nil)
	}()

	go func() {
		defer wg.Done()
		inserted, err := c.audit.InsertMemoryIfAbsent(ctx, record)
		if err != nil {
			setStatus(StoreLog, fmt.Errorf("sync: log insert failed for %s: %w", record.ID, err))
			return
		}
		if !inserted {
			// Idempotent re-delivery: the id is already logged. Not an error.
			log.Printf("sync: log entry for %s already exists, skipping", record.ID)
		}
		setStatus(StoreLog, nil)
	}()

	go func() {
		defer wg.Done()
		if err := c.graph.MergeMemoryNode(ctx, record.ID, record.Summary); err != nil {
			setStatus(StoreGraph, fmt.Errorf("sync: graph merge failed for %s: %w", record.ID, err))
			return
		}
		setStatus(StoreGraph, nil)
	}()

	wg.Wait()

	result.Success = result.Stores[StoreIndex] == nil &&
		result.Stores[StoreLog] == nil &&
		result.Stores[StoreGraph] == nil

	for store, err := range result.Stores {
		if err != nil {
			log.Printf("sync: store %s failed for %s: %v", store, record.ID, err)
		}
	}

	// Entity extraction rides on a successful index write. Its failure never
	// fails the overall write.
	if result.Stores[StoreIndex] == nil && c.pipeline != nil {
		extraction := c.pipeline.Extract(ctx, record.Summary)
		c.pipeline.Apply(ctx, record.ID, extraction)
	}

	return result, nil
}
