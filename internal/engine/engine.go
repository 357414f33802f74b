package engine

import (
	"context"
	"fmt"

	"github.com/memloom/memloom/internal/llm"
	"github.com/memloom/memloom/internal/storage"
)

// Deps are the collaborators the engine is built from. Store handles are
// constructed once at process start and injected here; no component opens
// connections or schedules work as a side effect of being created.
type Deps struct {
	Index      storage.VectorIndex
	Graph      storage.GraphStore
	Audit      storage.AppendLog
	Completion llm.TextCompletion
	Embedder   llm.Embedder
}

// Engine bundles the synchronization core components over one set of store
// handles.
type Engine struct {
	Coordinator *SyncCoordinator
	Resolver    *VersionConflictResolver
	Ranker      *RelevanceRanker
	Pipeline    *ExtractionPipeline
	Summarizer  *Summarizer

	deps Deps
}

// New wires the engine from its dependencies.
func New(deps Deps) (*Engine, error) {
	if deps.Index == nil || deps.Graph == nil || deps.Audit == nil {
		return nil, fmt.Errorf("engine: index, graph and audit stores are required")
	}
	if deps.Completion == nil || deps.Embedder == nil {
		return nil, fmt.Errorf("engine: completion and embedder clients are required")
	}

	pipeline := NewExtractionPipeline(deps.Completion, deps.Graph)
	coordinator := NewSyncCoordinator(deps.Index, deps.Graph, deps.Audit, deps.Embedder, pipeline)

	return &Engine{
		Coordinator: coordinator,
		Resolver:    NewVersionConflictResolver(deps.Index, deps.Audit, coordinator),
		Ranker:      NewRelevanceRanker(deps.Index, deps.Embedder, deps.Audit),
		Pipeline:    pipeline,
		Summarizer:  NewSummarizer(deps.Completion, deps.Embedder, deps.Audit),
		deps:        deps,
	}, nil
}

// Initialize prepares every store's schema. It must be called once by the
// process entry point before any component is used; nothing in this module
// self-initializes on load.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.deps.Audit.Initialize(ctx); err != nil {
		return fmt.Errorf("engine: audit log init: %w", err)
	}
	if err := e.deps.Graph.Initialize(ctx); err != nil {
		return fmt.Errorf("engine: graph init: %w", err)
	}
	if err := e.deps.Index.Initialize(ctx); err != nil {
		return fmt.Errorf("engine: index init: %w", err)
	}
	return nil
}

// Close releases the store handles.
func (e *Engine) Close() error {
	var firstErr error
	for _, closer := range []interface{ Close() error }{e.deps.Index, e.deps.Graph, e.deps.Audit} {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
