// Package embeddings backfills article embeddings in paced batches and keeps
// an append-only cost ledger of every backend call.
package embeddings

import "context"

// Usage is the token accounting one backend call reports.
type Usage struct {
	PromptTokens int
	TotalTokens  int
}

// Backend generates embedding vectors. Implementations report usage so calls
// can be priced into the ledger.
type Backend interface {
	Provider() string
	Model() string
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, Usage, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, Usage, error)
}
