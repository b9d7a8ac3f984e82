package local

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"

	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
)

// Embedder produces deterministic pseudo-embeddings for offline mode:
// token-hash buckets, L2-normalized. Same content always maps to the
// same vector, and token overlap still yields meaningful cosine
// similarity, which is enough for dev and tests. Never used as a
// fallback for the real provider.
type Embedder struct{}

func NewEmbedder() *Embedder { return &Embedder{} }

func (e *Embedder) Embed(_ context.Context, content string) (embedding.Vector, error) {
	vec := make(embedding.Vector, embedding.Dimension)
	for _, tok := range strings.Fields(strings.ToLower(content)) {
		sum := sha256.Sum256([]byte(tok))
		idx := binary.BigEndian.Uint32(sum[:4]) % embedding.Dimension
		sign := float32(1)
		if sum[4]&1 == 1 {
			sign = -1
		}
		vec[idx] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// Empty content still gets a fixed valid vector.
		vec[0] = 1
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, contents []string) ([]embedding.BatchItem, error) {
	items := make([]embedding.BatchItem, len(contents))
	for i, c := range contents {
		v, err := e.Embed(ctx, c)
		items[i] = embedding.BatchItem{Vector: v, Err: err}
	}
	return items, nil
}
