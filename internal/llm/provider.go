// Package llm defines the external provider interfaces the pipeline consumes
// — embeddings and text completion — plus an OpenAI-compatible client with
// bounded retries. Providers are collaborators: they may be absent or
// failing, and the pipeline degrades rather than aborts where the contract
// allows it.
package llm

import (
	"context"
	"errors"
)

// Embedder produces fixed-length vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer generates text from a prompt, bounded by maxTokens.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ErrUnavailable marks a provider that is not configured at all (no API key).
// Callers treat it as "proceed without this provider" where the contract
// allows degradation.
var ErrUnavailable = errors.New("provider unavailable")

// NoopEmbedder is an always-unavailable embedder, used when no embedding
// provider is configured. Indexing proceeds graph-only.
type NoopEmbedder struct{}

// Embed always reports the provider unavailable.
func (NoopEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, ErrUnavailable
}
