package engine

import (
	"context"
	"sync"

	"github.com/memloom/memloom/internal/storage"
	"github.com/memloom/memloom/pkg/types"
)

// fakeIndex is an in-memory VectorIndex. Points are keyed by index key; the
// search result set is preset by tests.
type fakeIndex struct {
	mu         sync.Mutex
	points     map[string]*types.MemoryRecord
	searchHits []storage.SearchHit
	upserts    int

	upsertErr error
	searchErr error
	getErr    error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{points: make(map[string]*types.MemoryRecord)}
}

func (f *fakeIndex) Upsert(_ context.Context, key string, _ []float32, record *types.MemoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.points[key] = record.Clone()
	f.upserts++
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, limit int) ([]storage.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	hits := f.searchHits
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (f *fakeIndex) GetByLogicalID(_ context.Context, id string) (*types.MemoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, rec := range f.points {
		if rec.ID == id {
			return rec.Clone(), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeIndex) Initialize(context.Context) error { return nil }
func (f *fakeIndex) Close() error                     { return nil }

// fakeGraph is an in-memory GraphStore recording every merge.
type fakeGraph struct {
	mu          sync.Mutex
	memoryNodes map[string]string
	entityNodes map[string]string
	edges       []string
	mentions    []string
	related     []storage.RelatedMemory

	mergeMemoryErr error
	mergeEntityErr error
	mergeEdgeErr   error
	mergeLinkErr   error
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		memoryNodes: make(map[string]string),
		entityNodes: make(map[string]string),
	}
}

func (f *fakeGraph) MergeMemoryNode(_ context.Context, id, summary string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeMemoryErr != nil {
		return f.mergeMemoryErr
	}
	f.memoryNodes[id] = summary
	return nil
}

func (f *fakeGraph) MergeEntityNode(_ context.Context, id, name, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeEntityErr != nil {
		return f.mergeEntityErr
	}
	f.entityNodes[id] = name
	return nil
}

func (f *fakeGraph) MergeEntityEdge(_ context.Context, sourceID, targetID, relationshipType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeEdgeErr != nil {
		return f.mergeEdgeErr
	}
	f.edges = append(f.edges, sourceID+"-"+relationshipType+"-"+targetID)
	return nil
}

func (f *fakeGraph) MergeMentionLink(_ context.Context, memoryID, entityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeLinkErr != nil {
		return f.mergeLinkErr
	}
	f.mentions = append(f.mentions, memoryID+"->"+entityID)
	return nil
}

func (f *fakeGraph) FindRelated(context.Context, string, int, int) ([]storage.RelatedMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.related, nil
}

func (f *fakeGraph) Initialize(context.Context) error { return nil }
func (f *fakeGraph) Close() error                     { return nil }

// fakeLog is an in-memory AppendLog with the same idempotence contract as
// the SQLite implementation.
type fakeLog struct {
	mu        sync.Mutex
	memories  map[string]*types.MemoryRecord
	conflicts []*types.ConflictEvent
	queries   []*types.QueryEvent
	summaries []*types.SummaryEvent

	insertErr   error
	conflictErr error
	queryErr    error
	summaryErr  error
}

func newFakeLog() *fakeLog {
	return &fakeLog{memories: make(map[string]*types.MemoryRecord)}
}

func (f *fakeLog) InsertMemoryIfAbsent(_ context.Context, record *types.MemoryRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if _, exists := f.memories[record.ID]; exists {
		return false, nil
	}
	f.memories[record.ID] = record.Clone()
	return true, nil
}

func (f *fakeLog) InsertConflict(_ context.Context, event *types.ConflictEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflictErr != nil {
		return f.conflictErr
	}
	f.conflicts = append(f.conflicts, event)
	return nil
}

func (f *fakeLog) InsertQuery(_ context.Context, event *types.QueryEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return f.queryErr
	}
	f.queries = append(f.queries, event)
	return nil
}

func (f *fakeLog) InsertSummary(_ context.Context, event *types.SummaryEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryErr != nil {
		return f.summaryErr
	}
	f.summaries = append(f.summaries, event)
	return nil
}

func (f *fakeLog) Initialize(context.Context) error { return nil }
func (f *fakeLog) Close() error                     { return nil }

// fakeCompletion returns a canned response and records prompts and
// temperatures.
type fakeCompletion struct {
	mu           sync.Mutex
	response     string
	err          error
	prompts      []string
	temperatures []float64
}

func (f *fakeCompletion) Complete(_ context.Context, prompt string, temperature float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.temperatures = append(f.temperatures, temperature)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeCompletion) GetModel() string { return "fake-completion" }

// fakeEmbedder derives a deterministic vector from the input text, or fails.
type fakeEmbedder struct {
	mu    sync.Mutex
	err   error
	calls int

	// vectors overrides the derived vector per exact input text.
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	vec := make([]float32, 3)
	for i, r := range text {
		vec[i%3] += float32(r)
	}
	return vec, nil
}

func (f *fakeEmbedder) GetModel() string { return "fake-embedder" }
