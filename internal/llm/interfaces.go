// Package llm provides the language-model integration for the
// synchronization core: text completion and embedding clients, strict
// JSON-only prompt templates, and response parsing with structural repair
// for malformed model output.
package llm

import "context"

// TextCompletion is the interface for LLM text completion. Completions may
// be slow or unreliable; callers must treat empty or garbled output as a
// valid, non-exceptional response.
type TextCompletion interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
	GetModel() string
}

// Embedder is the interface for generating vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}
