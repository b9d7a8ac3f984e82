package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
)

// RetryConfig bounds the internal retry loop around provider calls.
type RetryConfig struct {
	MaxRetries        int           // attempts beyond the first
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Timeout           time.Duration // per-attempt deadline
}

// DefaultAnalysisRetry matches the reasoning-provider budget.
func DefaultAnalysisRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		Timeout:           60 * time.Second,
	}
}

// DefaultEmbeddingRetry is tighter: embedding calls are cheaper and the
// caller gets a typed error on exhaustion rather than a fallback.
func DefaultEmbeddingRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Timeout:           20 * time.Second,
	}
}

// Retryable reports whether an error is worth another attempt.
// Dimension mismatches and context cancellation are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, embedding.ErrDimensionMismatch) {
		return false
	}
	return true
}

// Do runs fn with per-attempt timeouts and exponential backoff. The
// returned error wraps the last attempt's error once retries are
// exhausted. The caller's ctx cancels both attempts and backoff sleeps.
func Do(ctx context.Context, cfg RetryConfig, operation string, fn func(context.Context) error) error {
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		}
		err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			if attempt > 0 {
				log.Printf("provider op=%s recovered after %d retries", operation, attempt)
			}
			return nil
		}
		lastErr = err

		if !Retryable(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		}

		log.Printf("provider op=%s attempt=%d/%d backoff=%s err=%v",
			operation, attempt+1, cfg.MaxRetries+1, backoff, err)
		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * cfg.BackoffMultiplier)
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, cfg.MaxRetries+1, lastErr)
}
