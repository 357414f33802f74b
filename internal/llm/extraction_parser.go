package llm

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/memloom/memloom/pkg/types"
)

// ExtractionResult is the normalized output of the extraction parser: the
// entity nodes and edges that survived validation. Either slice may be
// empty.
type ExtractionResult struct {
	Nodes []types.EntityNode
	Edges []types.EntityEdge
}

// Empty reports whether the extraction produced nothing usable.
func (r ExtractionResult) Empty() bool {
	return len(r.Nodes) == 0 && len(r.Edges) == 0
}

// extractionPayload mirrors the JSON shape the extraction prompt demands.
// Edges may arrive under "edges" or the singular "edge", and either key may
// hold a single object instead of an array; RawMessage defers that decision
// to coercion. Node and edge elements decode individually so a single
// malformed element is skipped without discarding the rest.
type extractionPayload struct {
	Nodes []json.RawMessage `json:"nodes"`
	Edges json.RawMessage   `json:"edges"`
	Edge  json.RawMessage   `json:"edge"`
}

type nodePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type edgePayload struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// ParseExtractionResponse parses the model's extraction output into a
// normalized ExtractionResult. It applies the cleanup pass (ExtractJSON)
// first; strict JSON errors are returned so the caller can attempt repair.
//
// Normalization rules:
//   - "edges" or singular "edge" accepted; a lone object becomes a
//     one-element slice
//   - nodes missing id or name are dropped
//   - edges missing source or target are dropped
//   - node type defaults to "entity", edge type to "RELATED"
//   - edges with an unsafe relationship type are dropped (extraction output
//     is untrusted; see types.IsSafeRelationshipType)
func ParseExtractionResponse(raw string) (ExtractionResult, error) {
	var result ExtractionResult

	var payload extractionPayload
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &payload); err != nil {
		return result, fmt.Errorf("failed to parse extraction JSON: %w", err)
	}

	for _, rawNode := range payload.Nodes {
		var n nodePayload
		if err := json.Unmarshal(rawNode, &n); err != nil {
			log.Printf("llm: skipping malformed node element: %v", err)
			continue
		}
		node := types.EntityNode{
			ID:   strings.TrimSpace(n.ID),
			Name: strings.TrimSpace(n.Name),
			Type: strings.TrimSpace(n.Type),
		}
		if node.Type == "" {
			node.Type = types.DefaultEntityType
		}
		if err := node.Validate(); err != nil {
			log.Printf("llm: skipping node with missing id or name: %v", err)
			continue
		}
		result.Nodes = append(result.Nodes, node)
	}

	for _, rawEdge := range coerceEdges(payload) {
		var e edgePayload
		if err := json.Unmarshal(rawEdge, &e); err != nil {
			log.Printf("llm: skipping malformed edge element: %v", err)
			continue
		}
		edge := types.EntityEdge{
			SourceID:         strings.TrimSpace(e.Source),
			TargetID:         strings.TrimSpace(e.Target),
			RelationshipType: strings.TrimSpace(e.Type),
		}
		if edge.RelationshipType == "" {
			edge.RelationshipType = types.DefaultRelationshipType
		}
		if err := edge.Validate(); err != nil {
			log.Printf("llm: skipping edge: %v", err)
			continue
		}
		result.Edges = append(result.Edges, edge)
	}

	return result, nil
}

// coerceEdges resolves the edges/edge key variants into a flat list of raw
// edge elements. A single object under either key is treated as a
// one-element sequence.
func coerceEdges(payload extractionPayload) []json.RawMessage {
	raw := payload.Edges
	if len(raw) == 0 {
		raw = payload.Edge
	}
	if len(raw) == 0 {
		return nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	// Not an array: treat the value as a single edge object.
	return []json.RawMessage{raw}
}
