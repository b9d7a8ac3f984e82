package batch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bryanwahyu/scriptsage/internal/application/ingest"
	"github.com/bryanwahyu/scriptsage/internal/domain/fingerprint"
)

// Options control one bulk run.
type Options struct {
	// Concurrency is the worker-pool size. Defaults to 4.
	Concurrency int
	// RateLimitPerSecond is the token-bucket refill rate shared by all
	// workers, protecting external-provider quotas. 0 disables limiting.
	RateLimitPerSecond float64
	// SkipExisting skips items whose cache entry already has both
	// analysis and embedding.
	SkipExisting bool
}

// Item is one unit of bulk work.
type Item struct {
	ArtifactID string
	Content    []byte
}

// Failure documents one item that could not be processed. The batch
// itself keeps going.
type Failure struct {
	ArtifactID  string                  `json:"artifact_id"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Reason      string                  `json:"reason"`
}

// Report summarizes a bulk run.
type Report struct {
	Processed          int       `json:"processed"`
	Skipped            int       `json:"skipped"`
	SucceededAnalysis  int       `json:"succeeded_analysis"`
	SucceededEmbedding int       `json:"succeeded_embedding"`
	Failed             int       `json:"failed"`
	Failures           []Failure `json:"failures,omitempty"`
}

// Coordinator drives bulk (re-)analysis and (re-)embedding through the
// same fingerprint/orchestrator/embedding path single ingests use, with
// a bounded worker pool and a shared token bucket.
type Coordinator struct {
	Ingest *ingest.Service
}

func NewCoordinator(svc *ingest.Service) *Coordinator {
	return &Coordinator{Ingest: svc}
}

// Run processes items and reports per-item outcomes. A failing item is
// recorded in the report, never propagated. Cancelling ctx stops
// dispatching new items; in-flight items finish under their own calls'
// control.
func (c *Coordinator) Run(ctx context.Context, items []Item, opts Options) *Report {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	var limiter *rate.Limiter
	if opts.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitPerSecond), concurrency)
	}

	var (
		mu     sync.Mutex
		report Report
	)
	record := func(fn func(*Report)) {
		mu.Lock()
		fn(&report)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(concurrency)

	for _, item := range items {
		if ctx.Err() != nil {
			break // cooperative cancellation: stop dispatching
		}
		item := item
		g.Go(func() error {
			c.runOne(ctx, item, opts, limiter, record)
			return nil
		})
	}
	_ = g.Wait()
	return &report
}

func (c *Coordinator) runOne(ctx context.Context, item Item, opts Options, limiter *rate.Limiter, record func(func(*Report))) {
	fp := fingerprint.Compute(item.Content)

	fail := func(err error) {
		record(func(r *Report) {
			r.Failed++
			r.Failures = append(r.Failures, Failure{
				ArtifactID:  item.ArtifactID,
				Fingerprint: fp,
				Reason:      err.Error(),
			})
		})
	}

	if opts.SkipExisting {
		entry, err := c.Ingest.Cache.Lookup(ctx, fp)
		if err == nil && entry.Complete() {
			if item.ArtifactID != "" {
				if err := c.Ingest.Cache.LinkArtifact(ctx, fp, item.ArtifactID); err != nil {
					fail(err)
					return
				}
			}
			record(func(r *Report) { r.Skipped++ })
			return
		}
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			fail(err)
			return
		}
	}

	res, err := c.Ingest.Reprocess(ctx, item.Content)
	if err != nil {
		fail(err)
		return
	}
	if item.ArtifactID != "" {
		if err := c.Ingest.Cache.LinkArtifact(ctx, fp, item.ArtifactID); err != nil {
			fail(err)
			return
		}
		if res.EmbeddingReady {
			entry, err := c.Ingest.Cache.Lookup(ctx, fp)
			if err == nil && len(entry.Embedding) > 0 {
				_ = c.Ingest.Index.Upsert(ctx, item.ArtifactID, entry.Embedding)
			}
		}
	}

	record(func(r *Report) {
		r.Processed++
		if res.Analysis != nil {
			r.SucceededAnalysis++
		}
		if res.EmbeddingReady {
			r.SucceededEmbedding++
		}
	})
}
