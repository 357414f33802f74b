package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/memloom/memloom/internal/storage"
	"github.com/memloom/memloom/pkg/types"
)

// VersionConflictResolver implements optimistic concurrency control for
// updates to an existing record. The state machine has three branches:
// absent record → Created, matching version → Updated, diverged version →
// Conflicted.
//
// There is no retry loop and no compare-and-swap guarantee: a mismatch is
// reported once per call, and repeated calls re-evaluate from the latest
// stored state (last-fetch-wins). The window between the fetch and the
// write is not race-free; callers needing stronger consistency must
// serialize updates themselves.
type VersionConflictResolver struct {
	index       storage.VectorIndex
	audit       storage.AppendLog
	coordinator *SyncCoordinator
}

// NewVersionConflictResolver wires the resolver.
func NewVersionConflictResolver(index storage.VectorIndex, audit storage.AppendLog, coordinator *SyncCoordinator) *VersionConflictResolver {
	return &VersionConflictResolver{
		index:       index,
		audit:       audit,
		coordinator: coordinator,
	}
}

// Update applies the optimistic version check and, when it passes, performs
// a full sync write. On conflict nothing is written; one conflict event is
// appended and the stored record is returned so the caller can reconcile
// (for example via Summarizer.Reconcile; this core never invokes that
// automatically).
func (r *VersionConflictResolver) Update(ctx context.Context, newRecord *types.MemoryRecord) (*UpdateOutcome, error) {
	if newRecord == nil {
		return nil, fmt.Errorf("resolver: %w: nil record", storage.ErrInvalidInput)
	}
	if err := newRecord.Validate(); err != nil {
		return nil, fmt.Errorf("resolver: %w: %v", storage.ErrInvalidInput, err)
	}

	// The index holds the authoritative current copy.
	current, err := r.index.GetByLogicalID(ctx, newRecord.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("resolver: failed to fetch current record %s: %w", newRecord.ID, err)
	}

	// NotFound branch: first write for this id.
	if current == nil {
		newRecord.Version = 1
		sync, err := r.coordinator.SyncWrite(ctx, newRecord)
		if err != nil {
			return nil, err
		}
		return &UpdateOutcome{Status: UpdateCreated, Record: newRecord, Sync: sync}, nil
	}

	// Matched branch: the caller's view was current, take the next version.
	if newRecord.Version == current.Version {
		newRecord.Version++
		// Reuse the stored point key so the index replaces the point instead
		// of accumulating one per version.
		if current.IndexKey != "" {
			newRecord.IndexKey = current.IndexKey
		}
		sync, err := r.coordinator.SyncWrite(ctx, newRecord)
		if err != nil {
			return nil, err
		}
		return &UpdateOutcome{Status: UpdateUpdated, Record: newRecord, Sync: sync}, nil
	}

	// Mismatched branch: concurrent-update collision. Report, don't write.
	log.Printf("resolver: version conflict on %s: stored=%d caller=%d",
		newRecord.ID, current.Version, newRecord.Version)

	event := types.NewConflictEvent(newRecord, current)
	if err := r.audit.InsertConflict(ctx, event); err != nil {
		// The conflict outcome stands even when the audit append fails; the
		// failure is surfaced for the caller's supervisor to act on.
		log.Printf("resolver: failed to log conflict for %s: %v", newRecord.ID, err)
	}

	return &UpdateOutcome{Status: UpdateConflicted, Current: current}, nil
}
