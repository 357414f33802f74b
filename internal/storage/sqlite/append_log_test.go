package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memloom/memloom/pkg/types"
)

func newTestLog(t *testing.T) *AppendLog {
	t.Helper()

	log, err := NewAppendLog(filepath.Join(t.TempDir(), "log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	require.NoError(t, log.Initialize(context.Background()))
	return log
}

func logRecord(id string) *types.MemoryRecord {
	return &types.MemoryRecord{
		ID:        id,
		Summary:   "summary for " + id,
		CreatedAt: time.Now().UTC(),
		Version:   1,
	}
}

func TestInsertMemoryIfAbsent(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	inserted, err := log.InsertMemoryIfAbsent(ctx, logRecord("m-1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = log.InsertMemoryIfAbsent(ctx, logRecord("m-1"))
	require.NoError(t, err)
	assert.False(t, inserted, "re-delivery of a logged id is skipped, not an error")

	count, err := log.CountMemoryEntries(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestInsertMemoryIfAbsentConcurrent(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := log.InsertMemoryIfAbsent(ctx, logRecord("m-race"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := log.CountMemoryEntries(ctx, "m-race")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "check-then-insert must be race-free within the process")
}

func TestInsertMemoryNilRecord(t *testing.T) {
	log := newTestLog(t)

	_, err := log.InsertMemoryIfAbsent(context.Background(), nil)
	assert.Error(t, err)
}

func TestInsertConflictAlwaysAppends(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	event := types.NewConflictEvent(logRecord("m-c"), logRecord("m-c"))
	require.NoError(t, log.InsertConflict(ctx, event))
	require.NoError(t, log.InsertConflict(ctx, event))

	count, err := log.CountConflicts(ctx, "m-c")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "conflict events are never deduplicated")
}

func TestInsertQueryAndSummary(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	require.NoError(t, log.InsertQuery(ctx, &types.QueryEvent{
		Timestamp: time.Now().UTC(),
		Prompt:    "what gates the deploy",
		TopK:      3,
		ResultIDs: []string{"m-1", "m-2"},
	}))

	require.NoError(t, log.InsertSummary(ctx, &types.SummaryEvent{
		Timestamp: time.Now().UTC(),
		MemoryIDs: []string{"m-1", "m-2"},
		Prompt:    "Summarize these notes",
		Summary:   "The notes agree on gating deploys.",
	}))
}

func TestInitializeIdempotent(t *testing.T) {
	log := newTestLog(t)
	assert.NoError(t, log.Initialize(context.Background()))
}
