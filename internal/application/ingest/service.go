package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
	"github.com/bryanwahyu/scriptsage/internal/domain/cache"
	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
	"github.com/bryanwahyu/scriptsage/internal/domain/fingerprint"
	"github.com/bryanwahyu/scriptsage/internal/domain/similarity"
)

// ErrPending means the artifact is known but its analysis has not
// completed yet. A state, not a failure.
var ErrPending = errors.New("analysis pending")

// ErrSimilarityUnavailable means the artifact has no embedding (the
// provider was down when it was ingested), so neighbor search cannot be
// served for it right now.
var ErrSimilarityUnavailable = errors.New("similarity search temporarily unavailable")

// Archive is the optional raw-content store; nil disables archival.
type Archive interface {
	Put(ctx context.Context, key string, content []byte) (string, error)
}

// Service implements the ingestion use-cases: fingerprint, dedup,
// analysis, embedding, and similarity reads.
// Safe for concurrent use; per-fingerprint exclusivity comes from the
// cache store's atomic Reserve, not from any lock held here.
type Service struct {
	Cache    cache.Store
	Analyzer analysis.Analyzer
	Embedder embedding.Embedder
	Index    similarity.Index
	Archive  Archive // optional
}

// Result is what an ingest call reports back to the upstream caller.
type Result struct {
	ArtifactID  string                  `json:"artifact_id"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	// DuplicateOf lists artifacts that already share this content.
	// Non-empty means the upload was deduplicated, which is a success,
	// not an error.
	DuplicateOf []string         `json:"duplicate_of,omitempty"`
	Analysis    *analysis.Result `json:"analysis,omitempty"`
	// EmbeddingReady is false when the embedding provider was exhausted;
	// the artifact is ingested but similarity search skips it until a
	// re-embed run.
	EmbeddingReady bool `json:"embedding_ready"`
	// Pending is true for a concurrent duplicate whose first uploader is
	// still processing.
	Pending bool `json:"pending,omitempty"`
}

// Ingest registers content under artifactID (one is minted when empty),
// deduplicates by fingerprint, and on first sight of the content runs
// analysis and embedding concurrently.
func (s *Service) Ingest(ctx context.Context, artifactID string, content []byte) (*Result, error) {
	if artifactID == "" {
		artifactID = uuid.New().String()
	}
	fp := fingerprint.Compute(content)

	entry, created, err := s.Cache.Reserve(ctx, fp)
	if err != nil {
		return nil, fmt.Errorf("reserve %s: %w", fp, err)
	}

	// Snapshot of prior owners before we link ourselves.
	duplicateOf := append([]string(nil), entry.ArtifactIDs...)

	if err := s.Cache.LinkArtifact(ctx, fp, artifactID); err != nil {
		return nil, fmt.Errorf("link artifact %s: %w", artifactID, err)
	}

	if !created {
		// Someone else owns the computation for this content. Serve from
		// cache when it is done, report pending when it is still in flight.
		res := &Result{
			ArtifactID:     artifactID,
			Fingerprint:    fp,
			DuplicateOf:    duplicateOf,
			Analysis:       entry.Analysis,
			EmbeddingReady: len(entry.Embedding) > 0,
			Pending:        entry.Analysis == nil,
		}
		if len(entry.Embedding) > 0 {
			if err := s.Index.Upsert(ctx, artifactID, entry.Embedding); err != nil {
				return nil, fmt.Errorf("index upsert %s: %w", artifactID, err)
			}
		}
		return res, nil
	}

	if s.Archive != nil {
		if _, err := s.Archive.Put(ctx, string(fp), content); err != nil {
			// Archival is best-effort; the pipeline owns derived data only.
			log.Printf("archive fingerprint=%s err=%v", fp, err)
		}
	}

	res, embErr, err := s.process(ctx, fp, content)
	if err != nil {
		return nil, err
	}
	if embErr != nil {
		log.Printf("embedding unavailable fingerprint=%s err=%v", fp, embErr)
	}
	return &Result{
		ArtifactID:     artifactID,
		Fingerprint:    fp,
		DuplicateOf:    duplicateOf,
		Analysis:       res,
		EmbeddingReady: embErr == nil,
	}, nil
}

// process runs analysis and embedding concurrently and attaches each as
// it lands. The two are independent derivations of the same content, so
// either may finish first; a failure on the embedding side never fails
// the ingest. The caller must hold the fingerprint reservation.
func (s *Service) process(ctx context.Context, fp fingerprint.Fingerprint, content []byte) (*analysis.Result, error, error) {
	var (
		res    *analysis.Result
		embErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		r, err := s.Analyzer.Analyze(ctx, string(content))
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		if err := s.Cache.AttachAnalysis(ctx, fp, r); err != nil {
			return fmt.Errorf("attach analysis: %w", err)
		}
		res = r
		return nil
	})
	g.Go(func() error {
		vec, err := s.Embedder.Embed(ctx, string(content))
		if err != nil {
			embErr = err
			return nil // loud to the caller, silent to the group
		}
		if err := s.Cache.AttachEmbedding(ctx, fp, vec); err != nil {
			return fmt.Errorf("attach embedding: %w", err)
		}
		// Every artifact linked so far gets a queryable vector, including
		// concurrent duplicates that arrived while we were computing.
		entry, err := s.Cache.Lookup(ctx, fp)
		if err != nil {
			return fmt.Errorf("lookup after attach: %w", err)
		}
		for _, id := range entry.ArtifactIDs {
			if err := s.Index.Upsert(ctx, id, vec); err != nil {
				return fmt.Errorf("index upsert %s: %w", id, err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, embErr, err
	}
	return res, embErr, nil
}

// Reprocess rederives analysis and/or embedding for content that is
// already reserved, used by bulk re-analysis (e.g. after a rubric bump).
// Both attaches are idempotent upserts, so last writer wins.
func (s *Service) Reprocess(ctx context.Context, content []byte) (*Result, error) {
	fp := fingerprint.Compute(content)
	if _, _, err := s.Cache.Reserve(ctx, fp); err != nil {
		return nil, fmt.Errorf("reserve %s: %w", fp, err)
	}
	res, embErr, err := s.process(ctx, fp, content)
	if err != nil {
		return nil, err
	}
	return &Result{Fingerprint: fp, Analysis: res, EmbeddingReady: embErr == nil}, nil
}

// GetAnalysis serves the upstream getAnalysis contract: the cached
// result, ErrPending while in flight, cache.ErrNotFound for unknown ids.
func (s *Service) GetAnalysis(ctx context.Context, artifactID string) (*analysis.Result, error) {
	fp, err := s.Cache.FingerprintByArtifact(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	entry, err := s.Cache.Lookup(ctx, fp)
	if err != nil {
		return nil, err
	}
	if entry.Analysis == nil {
		return nil, ErrPending
	}
	return entry.Analysis, nil
}

// FindSimilar returns the k nearest artifacts to artifactID by cosine
// distance. The artifact itself and its content-identical siblings are
// excluded from the neighbor list.
func (s *Service) FindSimilar(ctx context.Context, artifactID string, k int) ([]similarity.Neighbor, error) {
	fp, err := s.Cache.FingerprintByArtifact(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	entry, err := s.Cache.Lookup(ctx, fp)
	if err != nil {
		return nil, err
	}
	if len(entry.Embedding) == 0 {
		return nil, ErrSimilarityUnavailable
	}
	exclude := entry.ArtifactIDs
	if len(exclude) == 0 {
		exclude = []string{artifactID}
	}
	return s.Index.Query(ctx, entry.Embedding, k, exclude)
}

// Remove drops an artifact's vector from the index when the owning
// artifact is deleted upstream. Cache entries stay; they are keyed by
// content, not by artifact, and other uploads may share them.
func (s *Service) Remove(ctx context.Context, artifactID string) error {
	return s.Index.Remove(ctx, artifactID)
}
