package engine

import (
	"context"
	"log"
	"strings"

	"github.com/memloom/memloom/internal/llm"
	"github.com/memloom/memloom/internal/storage"
)

// ExtractionPipeline turns free-text memory summaries into graph entities
// via a language-model call. Every failure mode degrades: an unreachable
// model, empty output, or unparseable JSON all yield an empty extraction,
// and a single failing graph merge is skipped without aborting the rest.
// Nothing on this path ever propagates an error to the write path.
type ExtractionPipeline struct {
	completion llm.TextCompletion
	graph      storage.GraphStore
}

// NewExtractionPipeline wires the pipeline.
func NewExtractionPipeline(completion llm.TextCompletion, graph storage.GraphStore) *ExtractionPipeline {
	return &ExtractionPipeline{completion: completion, graph: graph}
}

// ApplyReport counts the graph operations performed for one extraction.
type ApplyReport struct {
	NodesMerged int
	EdgesMerged int
	LinksMerged int
	Failures    int
}

// Extract asks the model for entities and relationships in the summary and
// parses the output. Never returns an error: any failure degrades to an
// empty result, recorded in the log for diagnostics.
func (p *ExtractionPipeline) Extract(ctx context.Context, summary string) llm.ExtractionResult {
	var empty llm.ExtractionResult

	response, err := p.completion.Complete(ctx, llm.ExtractionPrompt(summary), llm.ExtractionTemperature)
	if err != nil {
		log.Printf("extraction: completion failed: %v", err)
		return empty
	}
	if strings.TrimSpace(response) == "" {
		log.Printf("extraction: model returned empty response")
		return empty
	}

	result, err := llm.ParseExtractionResponse(response)
	if err == nil {
		return result
	}

	// Strict parse failed; try a structural repair pass before giving up.
	result, repairErr := llm.ParseExtractionResponse(llm.RepairJSON(response))
	if repairErr != nil {
		log.Printf("extraction: JSON parse failed after repair: %v (raw response: %q)", repairErr, response)
		return empty
	}
	return result
}

// Apply merges the extraction into the graph: entity nodes first, then
// edges between them, then a mentions link from the memory's node to each
// entity. Each operation is independent and failure-isolated.
func (p *ExtractionPipeline) Apply(ctx context.Context, memoryID string, extraction llm.ExtractionResult) ApplyReport {
	var report ApplyReport

	for _, node := range extraction.Nodes {
		if err := p.graph.MergeEntityNode(ctx, node.ID, node.Name, node.Type); err != nil {
			log.Printf("extraction: failed to merge entity node %s: %v", node.ID, err)
			report.Failures++
			continue
		}
		report.NodesMerged++
	}

	for _, edge := range extraction.Edges {
		if err := p.graph.MergeEntityEdge(ctx, edge.SourceID, edge.TargetID, edge.RelationshipType); err != nil {
			log.Printf("extraction: failed to merge edge %s->%s: %v", edge.SourceID, edge.TargetID, err)
			report.Failures++
			continue
		}
		report.EdgesMerged++
	}

	if memoryID != "" {
		for _, node := range extraction.Nodes {
			if err := p.graph.MergeMentionLink(ctx, memoryID, node.ID); err != nil {
				log.Printf("extraction: failed to link memory %s to entity %s: %v", memoryID, node.ID, err)
				report.Failures++
				continue
			}
			report.LinksMerged++
		}
	}

	return report
}

// FindRelated exposes the bounded graph walk for a memory's neighborhood.
func (p *ExtractionPipeline) FindRelated(ctx context.Context, memoryID string, maxHops, limit int) ([]storage.RelatedMemory, error) {
	return p.graph.FindRelated(ctx, memoryID, maxHops, limit)
}
