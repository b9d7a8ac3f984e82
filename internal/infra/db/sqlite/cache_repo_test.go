package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
	"github.com/bryanwahyu/scriptsage/internal/domain/cache"
	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
	"github.com/bryanwahyu/scriptsage/internal/domain/fingerprint"
)

func newRepo(t *testing.T) *CacheRepository {
	t.Helper()
	ctx := context.Background()
	db, err := Connect(ctx, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewCacheRepository(db)
	require.NoError(t, repo.EnsureSchema(ctx))
	return repo
}

func sampleResult() *analysis.Result {
	return &analysis.Result{
		SecurityScore:    2,
		QualityScore:     7,
		RiskScore:        3,
		ReliabilityScore: 8,
		Purpose:          "rotates log files",
		Category:         analysis.Categories[0],
		Findings: []analysis.Finding{
			{Severity: analysis.SeverityLow, Message: "no -WhatIf support", LineRef: 12},
		},
		AnalyzerVersion: "rubric-v2",
	}
}

func sampleVector() embedding.Vector {
	v := make(embedding.Vector, embedding.Dimension)
	v[0] = 0.6
	v[1] = 0.8
	return v
}

func TestReserveCreatesOnce(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	fp := fingerprint.Compute([]byte("Get-Process | Sort-Object CPU"))

	entry, created, err := repo.Reserve(ctx, fp)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, fp, entry.Fingerprint)
	assert.Nil(t, entry.Analysis)
	assert.Nil(t, entry.Embedding)
	assert.False(t, entry.Complete())

	entry, created, err = repo.Reserve(ctx, fp)
	require.NoError(t, err)
	assert.False(t, created, "second reserve must observe the existing row")
	assert.Equal(t, fp, entry.Fingerprint)
}

func TestReserveConcurrentExclusivity(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	fp := fingerprint.Compute([]byte("Restart-Service Spooler"))

	const n = 16
	createdCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := repo.Reserve(ctx, fp)
			require.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, createdCount, "exactly one caller wins the reservation")
}

func TestAttachAnalysisAndEmbedding(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	fp := fingerprint.Compute([]byte("Copy-Item src dst"))

	_, _, err := repo.Reserve(ctx, fp)
	require.NoError(t, err)

	require.NoError(t, repo.AttachAnalysis(ctx, fp, sampleResult()))

	// Partial entries are valid: analysis present, embedding pending.
	entry, err := repo.Lookup(ctx, fp)
	require.NoError(t, err)
	require.NotNil(t, entry.Analysis)
	assert.Equal(t, "rotates log files", entry.Analysis.Purpose)
	assert.Equal(t, 1, entry.Analysis.Category.ID)
	require.Len(t, entry.Analysis.Findings, 1)
	assert.Nil(t, entry.Embedding)
	assert.False(t, entry.Complete())

	require.NoError(t, repo.AttachEmbedding(ctx, fp, sampleVector()))
	entry, err = repo.Lookup(ctx, fp)
	require.NoError(t, err)
	require.NoError(t, entry.Embedding.Validate())
	assert.InDelta(t, 0.6, entry.Embedding[0], 1e-6)
	assert.True(t, entry.Complete())
}

func TestAttachEmbeddingRejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	fp := fingerprint.Compute([]byte("x"))
	_, _, err := repo.Reserve(ctx, fp)
	require.NoError(t, err)

	err = repo.AttachEmbedding(ctx, fp, make(embedding.Vector, 4))
	assert.ErrorIs(t, err, embedding.ErrDimensionMismatch)
}

func TestLinkArtifactIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	fp := fingerprint.Compute([]byte("Get-ChildItem -Recurse"))
	_, _, err := repo.Reserve(ctx, fp)
	require.NoError(t, err)

	require.NoError(t, repo.LinkArtifact(ctx, fp, "artifact-1"))
	require.NoError(t, repo.LinkArtifact(ctx, fp, "artifact-2"))
	require.NoError(t, repo.LinkArtifact(ctx, fp, "artifact-1"))

	entry, err := repo.Lookup(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, []string{"artifact-1", "artifact-2"}, entry.ArtifactIDs)
}

func TestFingerprintByArtifact(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	fp := fingerprint.Compute([]byte("Stop-Computer"))
	_, _, err := repo.Reserve(ctx, fp)
	require.NoError(t, err)
	require.NoError(t, repo.LinkArtifact(ctx, fp, "artifact-9"))

	got, err := repo.FingerprintByArtifact(ctx, "artifact-9")
	require.NoError(t, err)
	assert.Equal(t, fp, got)

	_, err = repo.FingerprintByArtifact(ctx, "no-such-artifact")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

func TestLookupUnknownFingerprint(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.Lookup(ctx, fingerprint.Compute([]byte("never stored")))
	assert.ErrorIs(t, err, cache.ErrNotFound)
}
