package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	fail  bool
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("embedder unavailable")
	}
	vec := make([]float32, 4)
	for i := range vec {
		vec[i] = float32(len(text) + i)
	}
	return vec, nil
}

func (e *countingEmbedder) GetModel() string { return "counting-test" }

func TestCachedEmbedderHit(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 1<<20)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := cached.Embed(ctx, "hello world")
	require.NoError(t, err)
	require.Len(t, first, 4)
	cached.Wait()

	second, err := cached.Embed(ctx, "hello world")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "second call should be served from cache")
}

func TestCachedEmbedderDistinctTexts(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 1<<20)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = cached.Embed(ctx, "alpha")
	require.NoError(t, err)
	cached.Wait()
	_, err = cached.Embed(ctx, "beta gamma")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
}

func TestCachedEmbedderPropagatesError(t *testing.T) {
	inner := &countingEmbedder{fail: true}
	cached, err := NewCachedEmbedder(inner, 1<<20)
	require.NoError(t, err)

	_, err = cached.Embed(context.Background(), "anything")
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedEmbedderModel(t *testing.T) {
	inner := &countingEmbedder{}
	cached, err := NewCachedEmbedder(inner, 0)
	require.NoError(t, err)
	assert.Equal(t, "counting-test", cached.GetModel())
}
