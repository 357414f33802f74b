package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMainBadConfigPath(t *testing.T) {
	err := runMain(filepath.Join(t.TempDir(), "absent.yaml"), time.Second, []string{"related", "m-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRunMainUnknownCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MEMLOOM_LOG_PATH", filepath.Join(dir, "log.db"))
	t.Setenv("MEMLOOM_GRAPH_PATH", filepath.Join(dir, "graph.db"))

	// Errors surface as return values so the deferred engine Close still
	// runs; a second call over the same store files must reopen them cleanly.
	for i := 0; i < 2; i++ {
		err := runMain("", time.Minute, []string{"bogus"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown command")
	}
}
