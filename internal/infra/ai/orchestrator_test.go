package ai

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
)

type fakeAnalyzer struct {
	calls   atomic.Int32
	err     error
	version string
	last    string // content seen by the most recent call
}

func (f *fakeAnalyzer) Analyze(_ context.Context, content string) (*analysis.Result, error) {
	f.calls.Add(1)
	f.last = content
	if f.err != nil {
		return nil, f.err
	}
	return &analysis.Result{
		SecurityScore:    2,
		QualityScore:     8,
		RiskScore:        2,
		ReliabilityScore: 8,
		Purpose:          fmt.Sprintf("analyzed %d bytes", len(content)),
		Category:         analysis.Categories[0],
		AnalyzerVersion:  f.version,
	}, nil
}

func (f *fakeAnalyzer) Version() string { return f.version }

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Timeout:           time.Second,
	}
}

func TestAnalyzeProviderSuccess(t *testing.T) {
	provider := &fakeAnalyzer{version: "rubric-v2"}
	fallback := &fakeAnalyzer{version: "rubric-v2-local"}
	o := NewOrchestrator(provider, fallback)
	o.Retry = fastRetry()

	res, err := o.Analyze(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "rubric-v2", res.AnalyzerVersion)
	assert.False(t, res.AnalyzedAt.IsZero())
	assert.EqualValues(t, 0, fallback.calls.Load())
}

func TestAnalyzeFallsBackAfterRetries(t *testing.T) {
	provider := &fakeAnalyzer{err: analysis.ErrProviderError, version: "rubric-v2"}
	fallback := &fakeAnalyzer{version: "rubric-v2-local"}
	o := NewOrchestrator(provider, fallback)
	o.Retry = fastRetry()

	res, err := o.Analyze(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "rubric-v2-local", res.AnalyzerVersion)
	assert.EqualValues(t, 3, provider.calls.Load(), "initial attempt plus two retries")
	assert.EqualValues(t, 1, fallback.calls.Load())
}

func TestAnalyzeSchemaViolationTriggersFallback(t *testing.T) {
	provider := &fakeAnalyzer{err: fmt.Errorf("%w: security_score=0", analysis.ErrSchemaViolation)}
	fallback := &fakeAnalyzer{version: "rubric-v2-local"}
	o := NewOrchestrator(provider, fallback)
	o.Retry = fastRetry()

	res, err := o.Analyze(context.Background(), "echo hello")
	require.NoError(t, err)
	require.NoError(t, res.Validate())
	assert.Equal(t, "rubric-v2-local", res.AnalyzerVersion)
}

func TestAnalyzeTruncatesLargeContent(t *testing.T) {
	provider := &fakeAnalyzer{version: "rubric-v2"}
	o := NewOrchestrator(provider, &fakeAnalyzer{version: "rubric-v2-local"})
	o.Retry = fastRetry()
	o.MaxContentBytes = 100

	res, err := o.Analyze(context.Background(), strings.Repeat("x", 500))
	require.NoError(t, err)
	require.NotEmpty(t, res.Findings)
	last := res.Findings[len(res.Findings)-1]
	assert.Contains(t, last.Message, "truncated to 100 bytes")
	assert.Contains(t, res.Purpose, "analyzed 100 bytes")
}

func TestAnalyzeTruncationKeepsRuneBoundary(t *testing.T) {
	provider := &fakeAnalyzer{version: "rubric-v2"}
	o := NewOrchestrator(provider, &fakeAnalyzer{version: "rubric-v2-local"})
	o.Retry = fastRetry()
	o.MaxContentBytes = 101

	// Two-byte runes: an odd byte limit lands mid-rune.
	res, err := o.Analyze(context.Background(), strings.Repeat("é", 60))
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(provider.last))
	assert.Len(t, provider.last, 100)
	require.NotEmpty(t, res.Findings)
	assert.Contains(t, res.Findings[len(res.Findings)-1].Message, "truncated to 100 bytes")
}

func TestAnalyzeOfflineMode(t *testing.T) {
	fallback := &fakeAnalyzer{version: "rubric-v2-local"}
	o := NewOrchestrator(nil, fallback)

	res, err := o.Analyze(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "rubric-v2-local", res.AnalyzerVersion)
	assert.Equal(t, "rubric-v2-local", o.Version())
}

func TestAnalyzeCancelledContext(t *testing.T) {
	provider := &fakeAnalyzer{err: analysis.ErrProviderError}
	fallback := &fakeAnalyzer{version: "rubric-v2-local"}
	o := NewOrchestrator(provider, fallback)
	o.Retry = fastRetry()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Analyze(ctx, "echo hello")
	require.Error(t, err)
	assert.EqualValues(t, 0, fallback.calls.Load(), "no degraded result for an abandoned call")
}
