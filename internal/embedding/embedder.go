// Package embedding provides text embedding for chunks and queries.
package embedding

import "context"

// Embedder produces fixed-dimension vector embeddings for text. One Embedder
// instance serves the whole process, so every chunk and query embedding shares
// the same dimensionality.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
