// Package engine implements the memory synchronization core: the multi-store
// fan-out writer, the optimistic-version conflict resolver, the relevance
// ranker, and the entity-extraction pipeline. The engine holds no record
// state between calls; all durable state lives behind the storage
// interfaces.
package engine

import (
	"github.com/memloom/memloom/pkg/types"
)

// Store names used as keys in SyncResult.Stores.
const (
	StoreIndex = "index"
	StoreLog   = "log"
	StoreGraph = "graph"
)

// SyncResult reports the per-store outcome of one fan-out write. Partial
// failure is reported, not thrown: a nil map entry means the store
// succeeded, and Success is true only when all stores did. The caller
// decides whether to retry individual stores; the engine never retries and
// never rolls back.
type SyncResult struct {
	Success bool
	Stores  map[string]error
}

// StoreErr returns the recorded error for a store (nil on success).
func (r *SyncResult) StoreErr(store string) error {
	if r == nil || r.Stores == nil {
		return nil
	}
	return r.Stores[store]
}

// UpdateStatus is the outcome of the optimistic-version state machine.
type UpdateStatus string

const (
	// UpdateCreated: no stored record existed; a fresh version-1 record was
	// written.
	UpdateCreated UpdateStatus = "created"

	// UpdateUpdated: the caller's version matched the stored version; the
	// record was written with the version incremented.
	UpdateUpdated UpdateStatus = "updated"

	// UpdateConflicted: versions diverged; nothing was written and a
	// conflict event was logged.
	UpdateConflicted UpdateStatus = "conflicted"
)

// UpdateOutcome is the result of a conflict-checked update.
type UpdateOutcome struct {
	Status UpdateStatus

	// Record is the record as written (version stamped), nil on conflict.
	Record *types.MemoryRecord

	// Current is the stored record that won, populated only on conflict so
	// the caller can reconcile.
	Current *types.MemoryRecord

	// Sync carries the per-store fan-out result for created/updated
	// outcomes.
	Sync *SyncResult
}

// QueryOptions tunes the relevance ranker. Zero values take defaults
// (TopK 3, recency weight 0.3, confidence weight 0.1).
type QueryOptions struct {
	TopK             int
	RecencyWeight    float64
	ConfidenceWeight float64

	// weightsSet distinguishes "explicit zero weights" from "use defaults".
	weightsSet bool
}

// WithWeights returns a copy of the options with explicit weights, including
// explicit zeros.
func (o QueryOptions) WithWeights(recency, confidence float64) QueryOptions {
	o.RecencyWeight = recency
	o.ConfidenceWeight = confidence
	o.weightsSet = true
	return o
}
