package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
	"github.com/bryanwahyu/scriptsage/internal/domain/similarity"
)

// ScanLimit is the corpus size up to which a linear scan stays fast
// enough (single-digit milliseconds on one core). This index is for dev
// and embedded deployments; beyond the limit, switch to the
// pgvector-backed index, which scales sub-linearly.
const ScanLimit = 50_000

// Index is an in-memory cosine-distance index guarded by one RWMutex.
// Linear scan per query; see ScanLimit for the documented ceiling.
type Index struct {
	mu      sync.RWMutex
	vectors map[string]embedding.Vector
}

func NewIndex() *Index {
	return &Index{vectors: make(map[string]embedding.Vector)}
}

func (ix *Index) Upsert(_ context.Context, artifactID string, vec embedding.Vector) error {
	if err := vec.Validate(); err != nil {
		return err
	}
	cp := make(embedding.Vector, len(vec))
	copy(cp, vec)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vectors[artifactID] = cp
	return nil
}

func (ix *Index) Query(_ context.Context, vec embedding.Vector, k int, excludeIDs []string) ([]similarity.Neighbor, error) {
	if err := vec.Validate(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	excluded := make(map[string]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	ix.mu.RLock()
	neighbors := make([]similarity.Neighbor, 0, len(ix.vectors))
	for id, stored := range ix.vectors {
		if _, skip := excluded[id]; skip {
			continue
		}
		neighbors = append(neighbors, similarity.Neighbor{
			ArtifactID: id,
			Distance:   cosineDistance(vec, stored),
		})
	}
	ix.mu.RUnlock()

	// Ascending distance, artifact id as the deterministic tie-break.
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].ArtifactID < neighbors[j].ArtifactID
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func (ix *Index) Remove(_ context.Context, artifactID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.vectors, artifactID)
	return nil
}

// Len reports the number of indexed vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// cosineDistance is 1 - cosine similarity. Zero vectors are treated as
// maximally distant rather than dividing by zero.
func cosineDistance(a, b embedding.Vector) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
