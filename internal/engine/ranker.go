package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/memloom/memloom/internal/llm"
	"github.com/memloom/memloom/internal/storage"
	"github.com/memloom/memloom/pkg/types"
)

const (
	defaultTopK             = 3
	defaultRecencyWeight    = 0.3
	defaultConfidenceWeight = 0.1

	// overFetchFactor controls how many candidates are pulled from the index
	// relative to the requested result count, so re-ranking can reorder
	// materially.
	overFetchFactor = 3

	// defaultConfidence substitutes for candidates carrying no confidence
	// signal.
	defaultConfidence = 0.5
)

// RelevanceRanker retrieves candidates by vector similarity and re-ranks
// them with a blended score of similarity, recency, and confidence.
type RelevanceRanker struct {
	index    storage.VectorIndex
	embedder llm.Embedder
	audit    storage.AppendLog
}

// NewRelevanceRanker wires the ranker.
func NewRelevanceRanker(index storage.VectorIndex, embedder llm.Embedder, audit storage.AppendLog) *RelevanceRanker {
	return &RelevanceRanker{index: index, embedder: embedder, audit: audit}
}

// scoredCandidate pairs a hit with its combined score; input order carries
// the original similarity rank for stable tie-breaking.
type scoredCandidate struct {
	record   *types.MemoryRecord
	combined float64
}

// Query embeds the prompt, over-fetches candidates, blends
//
//	combined = similarity × (1 − rw − cw) + recency × rw + confidence × cw
//
// and returns the top results in descending combined order, ties broken by
// the index's similarity rank. One QueryEvent is appended per call; a
// logging failure never fails the query.
func (r *RelevanceRanker) Query(ctx context.Context, prompt string, opts QueryOptions) ([]*types.MemoryRecord, error) {
	topK, rw, cw, err := normalizeOptions(opts)
	if err != nil {
		return nil, err
	}

	vector, err := r.embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("ranker: failed to embed prompt: %w", err)
	}

	hits, err := r.index.Search(ctx, vector, topK*overFetchFactor)
	if err != nil {
		return nil, fmt.Errorf("ranker: index search failed: %w", err)
	}

	now := time.Now().UTC()
	scored := make([]scoredCandidate, 0, len(hits))
	for _, hit := range hits {
		if hit.Record == nil {
			continue
		}
		scored = append(scored, scoredCandidate{
			record:   hit.Record,
			combined: combinedScore(hit, now, rw, cw),
		})
	}

	// Stable sort: candidates arrive in similarity order, so equal combined
	// scores keep the original similarity rank.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].combined > scored[j].combined
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}

	results := make([]*types.MemoryRecord, len(scored))
	ids := make([]string, len(scored))
	for i, s := range scored {
		results[i] = s.record
		ids[i] = s.record.ID
	}

	// Audit trail, best-effort with respect to the caller's result.
	event := &types.QueryEvent{
		Timestamp: now,
		Prompt:    prompt,
		TopK:      topK,
		ResultIDs: ids,
	}
	if err := r.audit.InsertQuery(ctx, event); err != nil {
		log.Printf("ranker: failed to log query event: %v", err)
	}

	return results, nil
}

// normalizeOptions applies defaults and validates the weight envelope.
func normalizeOptions(opts QueryOptions) (topK int, rw, cw float64, err error) {
	topK = opts.TopK
	if topK < 1 {
		topK = defaultTopK
	}

	rw, cw = opts.RecencyWeight, opts.ConfidenceWeight
	if !opts.weightsSet && rw == 0 && cw == 0 {
		rw, cw = defaultRecencyWeight, defaultConfidenceWeight
	}
	if rw < 0 || cw < 0 {
		return 0, 0, 0, fmt.Errorf("ranker: %w: weights must be non-negative", storage.ErrInvalidInput)
	}
	if rw+cw > 1 {
		return 0, 0, 0, fmt.Errorf("ranker: %w: recency+confidence weights must not exceed 1", storage.ErrInvalidInput)
	}
	return topK, rw, cw, nil
}

// combinedScore blends the index similarity with recency and confidence.
func combinedScore(hit storage.SearchHit, now time.Time, rw, cw float64) float64 {
	recency := recencyScore(hit.Record, now)

	confidence := hit.Record.Confidence
	if confidence == 0 {
		// Zero value means the record carried no confidence signal.
		confidence = defaultConfidence
	}

	return hit.Similarity*(1-rw-cw) + recency*rw + confidence*cw
}

// recencyScore is 1/(1+daysOld): close to 1 for fresh records, decaying
// toward 0 with age, and exactly 1 when the record has no usable timestamp
// (undefined age is treated as zero days old).
func recencyScore(record *types.MemoryRecord, now time.Time) float64 {
	ts, ok := record.EffectiveTimestamp()
	if !ok {
		return 1.0
	}
	daysOld := int(now.Sub(ts).Hours() / 24)
	if daysOld < 0 {
		daysOld = 0
	}
	return 1.0 / float64(1+daysOld)
}
