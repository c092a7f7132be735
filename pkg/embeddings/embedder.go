// Package embeddings
package embeddings

import "context"

// Embedder provides text embedding capabilities.
// The vector dimensionality is fixed per deployment and must match what the
// configured vector store expects.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
