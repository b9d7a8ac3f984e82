package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/scriptsage/internal/application/ingest"
	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
	"github.com/bryanwahyu/scriptsage/internal/domain/fingerprint"
	memindex "github.com/bryanwahyu/scriptsage/internal/infra/similarity/memory"
	"github.com/bryanwahyu/scriptsage/internal/testutil"
)

// poisonMarker makes the stub analyzer fail for specific contents.
const poisonMarker = "POISON"

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, content string) (*analysis.Result, error) {
	if strings.Contains(content, poisonMarker) {
		return nil, errors.New("analyzer rejected content")
	}
	return &analysis.Result{
		SecurityScore:    2,
		QualityScore:     7,
		RiskScore:        2,
		ReliabilityScore: 7,
		Category:         analysis.Categories[9],
		AnalyzerVersion:  "rubric-v2",
	}, nil
}

func (stubAnalyzer) Version() string { return "rubric-v2" }

type stubEmbedder struct {
	err error
}

func (e *stubEmbedder) Embed(_ context.Context, content string) (embedding.Vector, error) {
	if e.err != nil {
		return nil, e.err
	}
	v := make(embedding.Vector, embedding.Dimension)
	v[len(content)%embedding.Dimension] = 1
	return v, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, contents []string) ([]embedding.BatchItem, error) {
	out := make([]embedding.BatchItem, len(contents))
	for i, c := range contents {
		vec, err := e.Embed(ctx, c)
		out[i] = embedding.BatchItem{Vector: vec, Err: err}
	}
	return out, nil
}

func newCoordinator(em *stubEmbedder) (*Coordinator, *testutil.MemStore) {
	store := testutil.NewMemStore()
	svc := &ingest.Service{
		Cache:    store,
		Analyzer: stubAnalyzer{},
		Embedder: em,
		Index:    memindex.NewIndex(),
	}
	return NewCoordinator(svc), store
}

func makeItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			ArtifactID: fmt.Sprintf("artifact-%d", i+1),
			Content:    []byte(fmt.Sprintf("Write-Output %d", i+1)),
		}
	}
	return items
}

func TestRunIsolatesItemFailures(t *testing.T) {
	c, _ := newCoordinator(&stubEmbedder{})

	items := makeItems(5)
	items[2].Content = []byte(poisonMarker + " Invoke-Something")

	report := c.Run(context.Background(), items, Options{Concurrency: 2})

	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, 4, report.SucceededAnalysis)
	assert.Equal(t, 4, report.SucceededEmbedding)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	f := report.Failures[0]
	assert.Equal(t, "artifact-3", f.ArtifactID)
	assert.Equal(t, fingerprint.Compute(items[2].Content), f.Fingerprint)
	assert.Contains(t, f.Reason, "analyzer rejected content")
}

func TestRunSkipExisting(t *testing.T) {
	c, store := newCoordinator(&stubEmbedder{})
	ctx := context.Background()

	// One content is already fully processed.
	_, err := c.Ingest.Ingest(ctx, "original", []byte("Write-Output 1"))
	require.NoError(t, err)

	report := c.Run(ctx, makeItems(3), Options{Concurrency: 2, SkipExisting: true})

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Processed)
	assert.Zero(t, report.Failed)

	// The skipped item is still linked under its new artifact id.
	fp := fingerprint.Compute([]byte("Write-Output 1"))
	entry, err := store.Lookup(ctx, fp)
	require.NoError(t, err)
	assert.Contains(t, entry.ArtifactIDs, "artifact-1")
	assert.Contains(t, entry.ArtifactIDs, "original")
}

func TestRunWithoutSkipReprocessesEverything(t *testing.T) {
	c, _ := newCoordinator(&stubEmbedder{})
	ctx := context.Background()

	_, err := c.Ingest.Ingest(ctx, "original", []byte("Write-Output 1"))
	require.NoError(t, err)

	report := c.Run(ctx, makeItems(3), Options{Concurrency: 2})
	assert.Equal(t, 3, report.Processed)
	assert.Zero(t, report.Skipped)
}

func TestRunEmbeddingExhaustionIsNotFailure(t *testing.T) {
	c, _ := newCoordinator(&stubEmbedder{err: embedding.ErrProviderError})

	report := c.Run(context.Background(), makeItems(3), Options{Concurrency: 2})

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 3, report.SucceededAnalysis)
	assert.Zero(t, report.SucceededEmbedding)
	assert.Zero(t, report.Failed)
}

func TestRunCancelledContextStopsDispatch(t *testing.T) {
	c, _ := newCoordinator(&stubEmbedder{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := c.Run(ctx, makeItems(10), Options{Concurrency: 2})
	assert.Zero(t, report.Processed)
}

func TestRunWithRateLimiter(t *testing.T) {
	c, _ := newCoordinator(&stubEmbedder{})

	report := c.Run(context.Background(), makeItems(4), Options{
		Concurrency:        2,
		RateLimitPerSecond: 1000,
	})
	assert.Equal(t, 4, report.Processed)
	assert.Zero(t, report.Failed)
}

func TestRunDefaultsConcurrency(t *testing.T) {
	c, _ := newCoordinator(&stubEmbedder{})

	report := c.Run(context.Background(), makeItems(6), Options{})
	assert.Equal(t, 6, report.Processed)
}
