// Package types defines the shared data model for the memloom
// synchronization core: memory records, extracted graph entities, and the
// append-only audit events emitted by the read/write/update paths.
package types

import (
	"fmt"
	"strings"
	"time"
)

// MemoryRecord is the unit of synchronization: a versioned fact authored by
// an agent, fanned out to the vector index, the relationship graph, and the
// append-only log.
type MemoryRecord struct {
	// Core identification fields
	ID      string `json:"id"`      // Caller-assigned stable identifier, unique per record
	Project string `json:"project"` // Project the memory belongs to
	Agent   string `json:"agent"`   // Agent that produced the memory
	Summary string `json:"summary"` // Free-text content of the fact

	// Classification and provenance
	Type   string   `json:"type,omitempty"`   // Memory type (insight, decision, event, ...)
	Tags   []string `json:"tags,omitempty"`   // Ordered user-defined tags
	Source string   `json:"source,omitempty"` // Originating document or channel
	Author string   `json:"author,omitempty"` // Author attribution

	// Versioning and quality signals
	CreatedAt  time.Time `json:"created_at"` // When the fact was created
	Version    int       `json:"version"`    // Optimistic concurrency version, starts at 1
	Confidence float64   `json:"confidence"` // Confidence score in [0, 1]

	// Access control hints (advisory; enforced by callers, not by this core)
	Visibility  string `json:"visibility,omitempty"`
	Sensitivity string `json:"sensitivity,omitempty"`

	// LastAccessed is stamped on every read and write touching the record.
	LastAccessed *time.Time `json:"last_accessed,omitempty"`

	// IndexKey is the vector index's own primary key for this record. It is
	// distinct from ID because the index requires its own key format (a UUID
	// point id). Assigned on first index write when empty.
	IndexKey string `json:"index_key,omitempty"`
}

// Validate checks the required-field invariants at the boundary, before the
// record reaches any store.
func (m *MemoryRecord) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("memory record: id is required")
	}
	if m.Version < 1 {
		return fmt.Errorf("memory record %s: version must be >= 1, got %d", m.ID, m.Version)
	}
	if m.Confidence < 0.0 || m.Confidence > 1.0 {
		return fmt.Errorf("memory record %s: confidence must be in [0,1], got %f", m.ID, m.Confidence)
	}
	return nil
}

// EffectiveTimestamp returns the timestamp used for recency scoring:
// LastAccessed when set, otherwise CreatedAt. The second return value is
// false when neither is available.
func (m *MemoryRecord) EffectiveTimestamp() (time.Time, bool) {
	if m.LastAccessed != nil {
		return *m.LastAccessed, true
	}
	if !m.CreatedAt.IsZero() {
		return m.CreatedAt, true
	}
	return time.Time{}, false
}

// Clone returns a deep copy of the record. The sync paths mutate Version,
// LastAccessed and IndexKey; cloning keeps the caller's copy intact.
func (m *MemoryRecord) Clone() *MemoryRecord {
	out := *m
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	if m.LastAccessed != nil {
		t := *m.LastAccessed
		out.LastAccessed = &t
	}
	return &out
}
