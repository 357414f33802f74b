// Package chromem implements the vector index on chromem-go, a pure-Go
// embedded vector database. It is the zero-infrastructure alternative to the
// pgvector binding, suited to local runs and tests.
package chromem

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/memloom/memloom/internal/storage"
	"github.com/memloom/memloom/pkg/types"
)

const collectionName = "memos"

// VectorIndex implements storage.VectorIndex on an in-process chromem
// collection. Documents are keyed by the record's IndexKey; the record
// travels as JSON in the document content. A side map from logical record ID
// to index key supports GetByLogicalID, which chromem has no native query
// for.
type VectorIndex struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu       sync.RWMutex
	byID     map[string]*types.MemoryRecord // logical record ID → latest payload
	keyForID map[string]string              // logical record ID → index key
}

// NewVectorIndex creates an empty embedded index. Call Initialize before use.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		db:       chromem.NewDB(),
		byID:     make(map[string]*types.MemoryRecord),
		keyForID: make(map[string]string),
	}
}

// Initialize creates the backing collection. Idempotent.
func (v *VectorIndex) Initialize(ctx context.Context) error {
	// No embedding func: callers always provide vectors. Default distance is
	// cosine.
	col, err := v.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("chromem: failed to create collection: %w", err)
	}
	v.collection = col
	return nil
}

// Upsert inserts or replaces the point for record under key.
func (v *VectorIndex) Upsert(ctx context.Context, key string, vector []float32, record *types.MemoryRecord) error {
	if v.collection == nil {
		return fmt.Errorf("chromem: index not initialized")
	}
	if key == "" {
		return fmt.Errorf("chromem: Upsert: %w: empty index key", storage.ErrInvalidInput)
	}
	if len(vector) == 0 {
		return fmt.Errorf("chromem: Upsert: %w: empty vector", storage.ErrInvalidInput)
	}
	if record == nil {
		return fmt.Errorf("chromem: Upsert: %w: nil record", storage.ErrInvalidInput)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("chromem: failed to marshal payload for %s: %w", record.ID, err)
	}

	doc := chromem.Document{
		ID:        key,
		Content:   string(payload),
		Embedding: vector,
		Metadata:  map[string]string{"memory_id": record.ID},
	}
	if err := v.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("chromem: failed to add document %s: %w", key, err)
	}

	v.mu.Lock()
	v.byID[record.ID] = record.Clone()
	v.keyForID[record.ID] = key
	v.mu.Unlock()

	return nil
}

// Search returns up to limit payloads ordered by descending cosine
// similarity to vector. chromem rejects result counts larger than the
// collection, so the limit is clamped to the current document count.
func (v *VectorIndex) Search(ctx context.Context, vector []float32, limit int) ([]storage.SearchHit, error) {
	if v.collection == nil {
		return nil, fmt.Errorf("chromem: index not initialized")
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("chromem: Search: %w: empty vector", storage.ErrInvalidInput)
	}

	count := v.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit < 1 || limit > count {
		limit = count
	}

	results, err := v.collection.QueryEmbedding(ctx, vector, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query failed: %w", err)
	}

	hits := make([]storage.SearchHit, 0, len(results))
	for _, res := range results {
		var record types.MemoryRecord
		if err := json.Unmarshal([]byte(res.Content), &record); err != nil {
			return nil, fmt.Errorf("chromem: payload decode for %s: %w", res.ID, err)
		}
		hits = append(hits, storage.SearchHit{
			Record:     &record,
			Similarity: float64(res.Similarity),
		})
	}
	return hits, nil
}

// GetByLogicalID fetches the latest payload stored for the record id.
func (v *VectorIndex) GetByLogicalID(ctx context.Context, id string) (*types.MemoryRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("chromem: GetByLogicalID: %w: empty id", storage.ErrInvalidInput)
	}

	v.mu.RLock()
	record, ok := v.byID[id]
	v.mu.RUnlock()

	if !ok {
		return nil, storage.ErrNotFound
	}
	return record.Clone(), nil
}

// Close releases nothing: chromem keeps everything in memory.
func (v *VectorIndex) Close() error {
	return nil
}

// Compile-time assertion that VectorIndex satisfies the storage interface.
var _ storage.VectorIndex = (*VectorIndex)(nil)
