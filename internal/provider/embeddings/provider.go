// Package embeddings defines the Provider interface for the vector
// embedding backend behind knowledge-chunk retrieval (§4.4.1 step 1) and the
// kb_index job that embeds newly ingested chunks.
//
// All vectors returned by one Provider instance share a dimensionality
// (Dimensions); callers must not mix vectors across providers in the same
// similarity computation.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
type Provider interface {
	// Embed computes the embedding vector for a single text string.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embedding vectors for a slice of texts in one
	// provider call. The result has the same length as texts; on error the
	// entire slice is nil, no partial results.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length produced by this provider,
	// constant for the provider instance's lifetime. The store's
	// knowledge_embeddings column must match it.
	Dimensions() int

	// ModelID returns the provider-specific model identifier, used for
	// logging and to detect a mismatched embedding space.
	ModelID() string
}
