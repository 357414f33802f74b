package types

import "time"

// ConflictTypeVersion marks a conflict detected by the optimistic version
// check on the update path.
const ConflictTypeVersion = "version"

// ConflictEvent captures a version collision between a caller's record and
// the stored copy. Conflict events are append-only: created once by the
// resolver, never mutated or deleted.
type ConflictEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	ConflictType string    `json:"conflict_type"`

	NewID         string  `json:"new_id"`
	NewSummary    string  `json:"new_summary"`
	NewVersion    int     `json:"new_version"`
	NewConfidence float64 `json:"new_confidence"`

	CurrentID         string  `json:"current_id"`
	CurrentSummary    string  `json:"current_summary"`
	CurrentVersion    int     `json:"current_version"`
	CurrentConfidence float64 `json:"current_confidence"`
}

// NewConflictEvent builds a version-conflict event from the two colliding
// records.
func NewConflictEvent(newRec, current *MemoryRecord) *ConflictEvent {
	return &ConflictEvent{
		Timestamp:         time.Now().UTC(),
		ConflictType:      ConflictTypeVersion,
		NewID:             newRec.ID,
		NewSummary:        newRec.Summary,
		NewVersion:        newRec.Version,
		NewConfidence:     newRec.Confidence,
		CurrentID:         current.ID,
		CurrentSummary:    current.Summary,
		CurrentVersion:    current.Version,
		CurrentConfidence: current.Confidence,
	}
}

// QueryEvent records one relevance query: the prompt, the requested result
// count, and the ids actually returned. Append-only audit trail.
type QueryEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Prompt    string    `json:"prompt"`
	TopK      int       `json:"top_k"`
	ResultIDs []string  `json:"result_ids"`
}

// SummaryEvent records one summarization call over a set of memories.
// Append-only audit trail.
type SummaryEvent struct {
	Timestamp time.Time `json:"timestamp"`
	MemoryIDs []string  `json:"memory_ids"`
	Prompt    string    `json:"prompt"`
	Summary   string    `json:"summary"`
}
