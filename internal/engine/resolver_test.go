package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memloom/memloom/internal/storage"
)

func newTestResolver(index *fakeIndex, audit *fakeLog) *VersionConflictResolver {
	coord := NewSyncCoordinator(index, newFakeGraph(), audit, &fakeEmbedder{}, nil)
	return NewVersionConflictResolver(index, audit, coord)
}

func TestUpdateCreatesWhenAbsent(t *testing.T) {
	index := newFakeIndex()
	audit := newFakeLog()
	resolver := newTestResolver(index, audit)

	rec := testRecord("m-new")
	rec.Version = 7 // caller-supplied version is irrelevant for a first write

	outcome, err := resolver.Update(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, UpdateCreated, outcome.Status)
	require.NotNil(t, outcome.Record)
	assert.Equal(t, 1, outcome.Record.Version)
	require.NotNil(t, outcome.Sync)
	assert.True(t, outcome.Sync.Success)
	assert.Empty(t, audit.conflicts)
}

func TestUpdateIncrementsOnMatch(t *testing.T) {
	index := newFakeIndex()
	audit := newFakeLog()
	resolver := newTestResolver(index, audit)

	ctx := context.Background()
	stored := testRecord("m-ver")
	stored.Version = 2
	stored.IndexKey = "point-1"
	require.NoError(t, index.Upsert(ctx, stored.IndexKey, nil, stored))

	update := testRecord("m-ver")
	update.Version = 2
	update.Summary = "Pipeline gate widened to cover smoke tests"

	outcome, err := resolver.Update(ctx, update)
	require.NoError(t, err)

	assert.Equal(t, UpdateUpdated, outcome.Status)
	assert.Equal(t, 3, outcome.Record.Version)
	assert.Equal(t, "point-1", outcome.Record.IndexKey, "stored point key reused")
	assert.Len(t, index.points, 1, "update replaces the point, never adds one")
	assert.Empty(t, audit.conflicts)
}

func TestUpdateConflictOnMismatch(t *testing.T) {
	index := newFakeIndex()
	audit := newFakeLog()
	resolver := newTestResolver(index, audit)

	ctx := context.Background()
	stored := testRecord("m-conf")
	stored.Version = 3
	stored.IndexKey = "point-c"
	require.NoError(t, index.Upsert(ctx, stored.IndexKey, nil, stored))

	stale := testRecord("m-conf")
	stale.Version = 1
	stale.Summary = "A stale view of the decision"

	outcome, err := resolver.Update(ctx, stale)
	require.NoError(t, err)

	assert.Equal(t, UpdateConflicted, outcome.Status)
	assert.Nil(t, outcome.Record)
	require.NotNil(t, outcome.Current)
	assert.Equal(t, 3, outcome.Current.Version)

	// Nothing written: stored state unchanged.
	current, err := index.GetByLogicalID(ctx, "m-conf")
	require.NoError(t, err)
	assert.Equal(t, stored.Summary, current.Summary)
	assert.Empty(t, audit.memories)

	// Exactly one conflict event, carrying both sides.
	require.Len(t, audit.conflicts, 1)
	event := audit.conflicts[0]
	assert.Equal(t, "m-conf", event.NewID)
	assert.Equal(t, 1, event.NewVersion)
	assert.Equal(t, 3, event.CurrentVersion)
}

func TestUpdateConflictSurvivesAuditFailure(t *testing.T) {
	index := newFakeIndex()
	audit := newFakeLog()
	audit.conflictErr = errors.New("log down")
	resolver := newTestResolver(index, audit)

	ctx := context.Background()
	stored := testRecord("m-af")
	stored.Version = 2
	stored.IndexKey = "point-a"
	require.NoError(t, index.Upsert(ctx, stored.IndexKey, nil, stored))

	stale := testRecord("m-af")
	stale.Version = 1

	outcome, err := resolver.Update(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, UpdateConflicted, outcome.Status)
}

func TestUpdateFetchErrorPropagates(t *testing.T) {
	index := newFakeIndex()
	index.getErr = errors.New("index timeout")
	resolver := newTestResolver(index, newFakeLog())

	_, err := resolver.Update(context.Background(), testRecord("m-err"))
	assert.Error(t, err)
}

func TestUpdateInvalidRecord(t *testing.T) {
	resolver := newTestResolver(newFakeIndex(), newFakeLog())

	_, err := resolver.Update(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
