package embedding

import "context"

// BatchItem is the per-item outcome of EmbedBatch. One failing item does
// not fail the batch.
type BatchItem struct {
	Vector Vector
	Err    error
}

// Embedder port. Implementations: provider-backed (OpenAI) and a
// deterministic local embedder for offline mode.
type Embedder interface {
	Embed(ctx context.Context, content string) (Vector, error)
	EmbedBatch(ctx context.Context, contents []string) ([]BatchItem, error)
}
