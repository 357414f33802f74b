package types

import (
	"fmt"
	"strings"
)

// DefaultEntityType is assumed when the extraction output omits a type.
const DefaultEntityType = "entity"

// DefaultRelationshipType is assumed when an extracted edge omits a type.
const DefaultRelationshipType = "RELATED"

// MentionsRelationship links a memory node to an entity extracted from its
// summary.
const MentionsRelationship = "MENTIONS"

// EntityNode is a named entity extracted from a memory summary. Nodes are
// deduplicated by ID across extraction calls (merge semantics, not insert).
type EntityNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Validate reports whether the node carries the fields required for a graph
// merge. Nodes failing validation are dropped, not fatal.
func (e *EntityNode) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("entity node: id is required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("entity node %s: name is required", e.ID)
	}
	return nil
}

// EntityEdge is a typed relationship between two entity nodes. Edges merge:
// re-extracting the same edge is a no-op in the graph.
type EntityEdge struct {
	SourceID         string `json:"source"`
	TargetID         string `json:"target"`
	RelationshipType string `json:"type"`
}

// Validate reports whether the edge carries both endpoints and a safe
// relationship type.
func (e *EntityEdge) Validate() error {
	if strings.TrimSpace(e.SourceID) == "" || strings.TrimSpace(e.TargetID) == "" {
		return fmt.Errorf("entity edge: source and target are required")
	}
	if e.RelationshipType != "" && !IsSafeRelationshipType(e.RelationshipType) {
		return fmt.Errorf("entity edge %s->%s: unsafe relationship type %q", e.SourceID, e.TargetID, e.RelationshipType)
	}
	return nil
}

// IsSafeRelationshipType restricts relationship types to a safe identifier
// charset: a letter followed by letters, digits or underscores. Extraction
// output is untrusted, and graph backends splice relationship types into
// query text, so anything outside this charset is rejected.
func IsSafeRelationshipType(relType string) bool {
	if relType == "" {
		return false
	}
	for i, r := range relType {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '_'):
		default:
			return false
		}
	}
	return true
}
