package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
	"github.com/bryanwahyu/scriptsage/internal/infra/ai"
)

// maxBatchSize is the provider-imposed ceiling on inputs per embedding
// request.
const maxBatchSize = 64

// Embedder produces fixed-dimension vectors via the OpenAI embeddings
// API. Unlike analysis there is no heuristic fallback on failure: a
// wrong vector silently corrupts similarity search, a missing one only
// disables it for the item.
type Embedder struct {
	client      *openai.Client
	model       openai.EmbeddingModel
	retry       ai.RetryConfig
	concurrency int
}

func NewEmbedder(apiKey string, timeout time.Duration) *Embedder {
	retry := ai.DefaultEmbeddingRetry()
	if timeout > 0 {
		retry.Timeout = timeout
	}
	return &Embedder{
		client:      openai.NewClient(apiKey),
		model:       openai.AdaEmbeddingV2,
		retry:       retry,
		concurrency: 4,
	}
}

// NewEmbedderWithClient is used by tests to point at a fake server.
func NewEmbedderWithClient(client *openai.Client, retry ai.RetryConfig) *Embedder {
	return &Embedder{client: client, model: openai.AdaEmbeddingV2, retry: retry, concurrency: 4}
}

func (e *Embedder) Embed(ctx context.Context, content string) (embedding.Vector, error) {
	vecs, err := e.embedChunk(ctx, []string{content})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch partitions contents into provider-sized chunks and issues
// them concurrently up to the configured ceiling. One failing chunk
// marks only its own items; the rest of the batch still succeeds.
func (e *Embedder) EmbedBatch(ctx context.Context, contents []string) ([]embedding.BatchItem, error) {
	items := make([]embedding.BatchItem, len(contents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for start := 0; start < len(contents); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(contents) {
			end = len(contents)
		}
		start := start
		g.Go(func() error {
			vecs, err := e.embedChunk(gctx, contents[start:end])
			for i := start; i < end; i++ {
				if err != nil {
					items[i] = embedding.BatchItem{Err: err}
				} else {
					items[i] = embedding.BatchItem{Vector: vecs[i-start]}
				}
			}
			// Per-item failure semantics: never abort the group.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// embedChunk performs one provider request with retry/backoff and
// validates every returned vector's dimension.
func (e *Embedder) embedChunk(ctx context.Context, inputs []string) ([]embedding.Vector, error) {
	var out []embedding.Vector
	err := ai.Do(ctx, e.retry, "embed", func(ctx context.Context) error {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: inputs,
			Model: e.model,
		})
		if err != nil {
			return classifyEmbedErr(err)
		}
		if len(resp.Data) != len(inputs) {
			return fmt.Errorf("%w: got %d vectors for %d inputs", embedding.ErrProviderError, len(resp.Data), len(inputs))
		}
		vecs := make([]embedding.Vector, len(inputs))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(vecs) {
				return fmt.Errorf("%w: vector index %d out of range", embedding.ErrProviderError, d.Index)
			}
			v := embedding.Vector(d.Embedding)
			if err := v.Validate(); err != nil {
				return err
			}
			vecs[d.Index] = v
		}
		out = vecs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func classifyEmbedErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 500 {
		return fmt.Errorf("%w: %v", embedding.ErrProviderError, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", embedding.ErrProviderTimeout, err)
	}
	return fmt.Errorf("%w: %v", embedding.ErrProviderError, err)
}
