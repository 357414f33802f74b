package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/memloom/memloom/internal/llm"
	"github.com/memloom/memloom/internal/storage"
	"github.com/memloom/memloom/pkg/types"
)

// diffSimilarityThreshold: summary pairs at or above this cosine similarity
// are treated as saying the same thing.
const diffSimilarityThreshold = 0.98

// Summarizer condenses sets of memories into single paragraphs, compares
// two memories semantically, and produces advisory reconciliations for
// conflicting records.
type Summarizer struct {
	completion llm.TextCompletion
	embedder   llm.Embedder
	audit      storage.AppendLog
}

// NewSummarizer wires the summarizer.
func NewSummarizer(completion llm.TextCompletion, embedder llm.Embedder, audit storage.AppendLog) *Summarizer {
	return &Summarizer{completion: completion, embedder: embedder, audit: audit}
}

// Summarize condenses the records' summaries into one paragraph and appends
// a summary event to the audit trail. The audit append is best-effort.
// A negative temperature selects the default (llm.SummarizationTemperature);
// zero is passed through and requests greedy decoding.
func (s *Summarizer) Summarize(ctx context.Context, records []*types.MemoryRecord, temperature float64) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("summarizer: %w: no records", storage.ErrInvalidInput)
	}
	if temperature < 0 {
		temperature = llm.SummarizationTemperature
	}

	summaries := make([]string, len(records))
	ids := make([]string, len(records))
	for i, rec := range records {
		summaries[i] = rec.Summary
		ids[i] = rec.ID
	}

	prompt := llm.SummarizationPrompt(summaries)
	summary, err := s.completion.Complete(ctx, prompt, temperature)
	if err != nil {
		return "", fmt.Errorf("summarizer: completion failed: %w", err)
	}

	event := &types.SummaryEvent{
		Timestamp: time.Now().UTC(),
		MemoryIDs: ids,
		Prompt:    prompt,
		Summary:   summary,
	}
	if err := s.audit.InsertSummary(ctx, event); err != nil {
		log.Printf("summarizer: failed to log summary event: %v", err)
	}

	return summary, nil
}

// DiffResult reports the semantic comparison of two summaries.
type DiffResult struct {
	Similarity  float64
	Significant bool // true when the summaries differ materially
}

// Diff embeds both records' summaries concurrently and compares them by
// cosine similarity.
func (s *Summarizer) Diff(ctx context.Context, a, b *types.MemoryRecord) (*DiffResult, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("summarizer: %w: two records are required", storage.ErrInvalidInput)
	}

	type embedResult struct {
		vec []float32
		err error
	}
	chA := make(chan embedResult, 1)
	chB := make(chan embedResult, 1)

	go func() {
		vec, err := s.embedder.Embed(ctx, a.Summary)
		chA <- embedResult{vec, err}
	}()
	go func() {
		vec, err := s.embedder.Embed(ctx, b.Summary)
		chB <- embedResult{vec, err}
	}()

	resA, resB := <-chA, <-chB
	if resA.err != nil {
		return nil, fmt.Errorf("summarizer: failed to embed first summary: %w", resA.err)
	}
	if resB.err != nil {
		return nil, fmt.Errorf("summarizer: failed to embed second summary: %w", resB.err)
	}

	similarity := cosineSimilarity(resA.vec, resB.vec)
	return &DiffResult{
		Similarity:  similarity,
		Significant: similarity < diffSimilarityThreshold,
	}, nil
}

// Reconcile asks the model for a single reconciled summary of two
// conflicting records. Advisory only: the conflict resolver never calls
// this automatically; the caller decides whether and when to apply it.
func (s *Summarizer) Reconcile(ctx context.Context, a, b *types.MemoryRecord) (string, error) {
	if a == nil || b == nil {
		return "", fmt.Errorf("summarizer: %w: two records are required", storage.ErrInvalidInput)
	}
	reconciled, err := s.completion.Complete(ctx, llm.ReconcilePrompt(a.Summary, b.Summary), llm.SummarizationTemperature)
	if err != nil {
		return "", fmt.Errorf("summarizer: reconcile completion failed: %w", err)
	}
	return reconciled, nil
}

// cosineSimilarity returns the cosine of the angle between two vectors, or
// 0 when either has zero norm or the dimensions differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
