package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memloom/memloom/internal/storage"
	"github.com/memloom/memloom/pkg/types"
)

func hitWithAge(id string, similarity float64, age time.Duration, confidence float64) storage.SearchHit {
	ts := time.Now().UTC().Add(-age)
	return storage.SearchHit{
		Record: &types.MemoryRecord{
			ID:           id,
			Summary:      "summary for " + id,
			CreatedAt:    ts,
			LastAccessed: &ts,
			Version:      1,
			Confidence:   confidence,
		},
		Similarity: similarity,
	}
}

func TestCombinedScore(t *testing.T) {
	now := time.Now().UTC()

	// 36 hours old is 1 whole day, so recency is 1/(1+1) = 0.5:
	// 0.9*0.6 + 0.5*0.3 + 0.9*0.1 = 0.78.
	hit := hitWithAge("m-1", 0.9, 36*time.Hour, 0.9)
	assert.InDelta(t, 0.78, combinedScore(hit, now, 0.3, 0.1), 0.001)

	// Fresh record: recency 1.0.
	fresh := hitWithAge("m-2", 0.5, 0, 0.5)
	assert.InDelta(t, 0.5*0.6+1.0*0.3+0.5*0.1, combinedScore(fresh, now, 0.3, 0.1), 0.001)

	// Zero confidence is treated as unset and scored at 0.5.
	unset := hitWithAge("m-3", 0.8, 0, 0)
	assert.InDelta(t, 0.8*0.6+1.0*0.3+0.5*0.1, combinedScore(unset, now, 0.3, 0.1), 0.001)
}

func TestRecencyScore(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name string
		age  time.Duration
		want float64
	}{
		{"under a day", 6 * time.Hour, 1.0},
		{"one day", 30 * time.Hour, 0.5},
		{"nine days", 9*24*time.Hour + time.Hour, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := now.Add(-tt.age)
			rec := &types.MemoryRecord{CreatedAt: ts}
			assert.InDelta(t, tt.want, recencyScore(rec, now), 0.001)
		})
	}

	t.Run("future timestamp clamps to zero days", func(t *testing.T) {
		ts := now.Add(time.Hour)
		assert.InDelta(t, 1.0, recencyScore(&types.MemoryRecord{CreatedAt: ts}, now), 0.001)
	})

	t.Run("missing timestamp treated as fresh", func(t *testing.T) {
		assert.InDelta(t, 1.0, recencyScore(&types.MemoryRecord{}, now), 0.001)
	})
}

func TestQueryReRanksBeyondSimilarity(t *testing.T) {
	index := newFakeIndex()
	// Similarity order: stale first. The stale hit is old and uncertain; the
	// fresher, high-confidence hit should win the blended ranking.
	index.searchHits = []storage.SearchHit{
		hitWithAge("m-stale", 0.85, 20*24*time.Hour, 0.2),
		hitWithAge("m-fresh", 0.80, time.Hour, 0.95),
		hitWithAge("m-old", 0.40, 40*24*time.Hour, 0.5),
	}
	audit := newFakeLog()
	ranker := NewRelevanceRanker(index, &fakeEmbedder{}, audit)

	results, err := ranker.Query(context.Background(), "deploy gating", QueryOptions{TopK: 2})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "m-fresh", results[0].ID)
	assert.Equal(t, "m-stale", results[1].ID)
}

func TestQueryDeterministicTieBreak(t *testing.T) {
	index := newFakeIndex()
	index.searchHits = []storage.SearchHit{
		hitWithAge("m-a", 0.7, time.Hour, 0.5),
		hitWithAge("m-b", 0.7, time.Hour, 0.5),
	}
	ranker := NewRelevanceRanker(index, &fakeEmbedder{}, newFakeLog())

	for i := 0; i < 5; i++ {
		results, err := ranker.Query(context.Background(), "anything", QueryOptions{TopK: 2})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "m-a", results[0].ID, "equal scores keep the similarity order")
	}
}

func TestQueryLogsEvent(t *testing.T) {
	index := newFakeIndex()
	index.searchHits = []storage.SearchHit{hitWithAge("m-1", 0.9, time.Hour, 0.8)}
	audit := newFakeLog()
	ranker := NewRelevanceRanker(index, &fakeEmbedder{}, audit)

	_, err := ranker.Query(context.Background(), "what gates the deploy", QueryOptions{})
	require.NoError(t, err)

	require.Len(t, audit.queries, 1)
	event := audit.queries[0]
	assert.Equal(t, "what gates the deploy", event.Prompt)
	assert.Equal(t, defaultTopK, event.TopK)
	assert.Equal(t, []string{"m-1"}, event.ResultIDs)
}

func TestQueryLogFailureNotFatal(t *testing.T) {
	index := newFakeIndex()
	index.searchHits = []storage.SearchHit{hitWithAge("m-1", 0.9, time.Hour, 0.8)}
	audit := newFakeLog()
	audit.queryErr = errors.New("log down")
	ranker := NewRelevanceRanker(index, &fakeEmbedder{}, audit)

	results, err := ranker.Query(context.Background(), "prompt", QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestQueryEmptyIndex(t *testing.T) {
	ranker := NewRelevanceRanker(newFakeIndex(), &fakeEmbedder{}, newFakeLog())

	results, err := ranker.Query(context.Background(), "prompt", QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryEmbedFailure(t *testing.T) {
	ranker := NewRelevanceRanker(newFakeIndex(), &fakeEmbedder{err: errors.New("down")}, newFakeLog())

	_, err := ranker.Query(context.Background(), "prompt", QueryOptions{})
	assert.Error(t, err)
}

func TestNormalizeOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		topK, rw, cw, err := normalizeOptions(QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, defaultTopK, topK)
		assert.Equal(t, defaultRecencyWeight, rw)
		assert.Equal(t, defaultConfidenceWeight, cw)
	})

	t.Run("explicit zero weights honored", func(t *testing.T) {
		topK, rw, cw, err := normalizeOptions(QueryOptions{TopK: 5}.WithWeights(0, 0))
		require.NoError(t, err)
		assert.Equal(t, 5, topK)
		assert.Zero(t, rw)
		assert.Zero(t, cw)
	})

	t.Run("negative weight rejected", func(t *testing.T) {
		_, _, _, err := normalizeOptions(QueryOptions{}.WithWeights(-0.1, 0.1))
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrInvalidInput)
	})

	t.Run("weights exceeding one rejected", func(t *testing.T) {
		_, _, _, err := normalizeOptions(QueryOptions{}.WithWeights(0.7, 0.5))
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrInvalidInput)
	})
}
