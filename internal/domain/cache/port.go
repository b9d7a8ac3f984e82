package cache

import (
	"context"

	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
	"github.com/bryanwahyu/scriptsage/internal/domain/fingerprint"
)

// Store port (interface for the dedup persistence layer).
//
// Reserve is the concurrency linchpin: it must be backed by a single
// atomic insert-if-absent (unique key), never a check-then-act pair.
// Under N concurrent Reserve calls for one fingerprint exactly one
// returns created=true.
type Store interface {
	Lookup(ctx context.Context, fp fingerprint.Fingerprint) (*Entry, error)

	// Reserve atomically creates an empty entry if absent, or returns the
	// existing one. created reports whether this call inserted it.
	Reserve(ctx context.Context, fp fingerprint.Fingerprint) (entry *Entry, created bool, err error)

	// AttachAnalysis and AttachEmbedding are idempotent per-field upserts.
	// Last writer wins; both values are rederivable from content.
	AttachAnalysis(ctx context.Context, fp fingerprint.Fingerprint, res *analysis.Result) error
	AttachEmbedding(ctx context.Context, fp fingerprint.Fingerprint, vec embedding.Vector) error

	// LinkArtifact registers that an external artifact shares this
	// fingerprint. Idempotent.
	LinkArtifact(ctx context.Context, fp fingerprint.Fingerprint, artifactID string) error

	// FingerprintByArtifact is the reverse of LinkArtifact, used to serve
	// by-artifact reads. Returns ErrNotFound for unknown artifacts.
	FingerprintByArtifact(ctx context.Context, artifactID string) (fingerprint.Fingerprint, error)
}
