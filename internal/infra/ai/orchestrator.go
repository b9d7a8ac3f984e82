package ai

import (
	"context"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
)

// DefaultMaxContentBytes bounds what we ship to the reasoning provider.
// Longer scripts are truncated, and the truncation is recorded as a
// finding so the result is honest about what was seen.
const DefaultMaxContentBytes = 96 * 1024

// Orchestrator drives one analysis: truncate, call the provider with
// retry/backoff, and degrade to the local heuristic when the provider is
// exhausted or not configured. Strategy selection (provider-backed vs
// local-only) happens once at wiring time, not per call.
//
// Dedup is the caller's job; the orchestrator assumes Reserve already
// established exclusivity for this content.
type Orchestrator struct {
	Provider        analysis.Analyzer // nil when running offline
	Fallback        analysis.Analyzer
	Retry           RetryConfig
	MaxContentBytes int
	Now             func() time.Time
}

func NewOrchestrator(provider, fallback analysis.Analyzer) *Orchestrator {
	return &Orchestrator{
		Provider:        provider,
		Fallback:        fallback,
		Retry:           DefaultAnalysisRetry(),
		MaxContentBytes: DefaultMaxContentBytes,
		Now:             time.Now,
	}
}

func (o *Orchestrator) Version() string {
	if o.Provider != nil {
		return o.Provider.Version()
	}
	return o.Fallback.Version()
}

func (o *Orchestrator) Analyze(ctx context.Context, content string) (*analysis.Result, error) {
	sent := content
	truncated := false
	if o.MaxContentBytes > 0 && len(sent) > o.MaxContentBytes {
		// Back off to a rune boundary; a split rune would ship invalid
		// UTF-8 to the provider.
		cut := o.MaxContentBytes
		for cut > 0 && !utf8.RuneStart(sent[cut]) {
			cut--
		}
		sent = sent[:cut]
		truncated = true
	}

	res, err := o.analyzeOnce(ctx, sent)
	if err != nil {
		return nil, err
	}

	if truncated {
		res.Findings = append(res.Findings, analysis.Finding{
			Severity: analysis.SeverityInfo,
			Message: fmt.Sprintf("content truncated to %d bytes before analysis (original %d bytes)",
				len(sent), len(content)),
		})
	}
	res.AnalyzedAt = o.Now()
	return res, res.Validate()
}

func (o *Orchestrator) analyzeOnce(ctx context.Context, content string) (*analysis.Result, error) {
	if o.Provider == nil {
		return o.Fallback.Analyze(ctx, content)
	}

	var res *analysis.Result
	err := Do(ctx, o.Retry, "analyze", func(ctx context.Context) error {
		r, err := o.Provider.Analyze(ctx, content)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		// Caller gave up; a degraded result would not be read anyway.
		return nil, err
	}

	log.Printf("analysis degraded to local heuristic: %v", err)
	return o.Fallback.Analyze(ctx, content)
}
