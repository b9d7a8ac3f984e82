package similarity

import (
	"context"
	"errors"

	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
)

// Neighbor is one k-NN result. Distance is cosine distance (1 - cosine
// similarity), so smaller means closer.
type Neighbor struct {
	ArtifactID string  `json:"artifact_id"`
	Distance   float64 `json:"distance"`
}

// ErrNotFound indicates the artifact has no vector in the index.
var ErrNotFound = errors.New("vector not found")

// Index port (interface for nearest-neighbor storage).
//
// Query returns the k closest vectors by cosine distance, ascending,
// ties broken by artifact id so results are deterministic. excludeIDs
// lets a caller drop the query artifact from its own neighbor list.
type Index interface {
	Upsert(ctx context.Context, artifactID string, vec embedding.Vector) error
	Query(ctx context.Context, vec embedding.Vector, k int, excludeIDs []string) ([]Neighbor, error)
	Remove(ctx context.Context, artifactID string) error
}
