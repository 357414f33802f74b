package llm

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder wraps an Embedder with a ristretto cache keyed by the input
// text. Sync writes embed the same summary up to three times (index write,
// diff, re-rank), and extraction re-reads recent summaries; the cache keeps
// those from hitting the model server repeatedly.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps inner with an embedding cache holding up to
// maxBytes worth of vectors (64 MiB when <= 0).
func NewCachedEmbedder(inner Embedder, maxBytes int64) (*CachedEmbedder, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000, // ~10x expected entries for admission tracking
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text when present, otherwise delegates
// to the wrapped embedder and caches the result.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := c.cache.Get(text); ok {
		if vec, ok := cached.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}

// GetModel returns the wrapped embedder's model name.
func (c *CachedEmbedder) GetModel() string {
	return c.inner.GetModel()
}

// Wait blocks until pending cache writes are applied. Intended for tests.
func (c *CachedEmbedder) Wait() {
	c.cache.Wait()
}

var _ Embedder = (*CachedEmbedder)(nil)
