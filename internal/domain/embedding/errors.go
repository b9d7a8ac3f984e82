package embedding

import "errors"

// ErrDimensionMismatch is a programmer/config error: a vector whose width
// differs from Dimension reached a boundary. Never retried.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrProviderTimeout indicates the embedding provider did not answer
// within the configured deadline.
var ErrProviderTimeout = errors.New("embedding provider timeout")

// ErrProviderError indicates a transient embedding provider failure.
// Retried internally, then surfaced: there is no safe heuristic stand-in
// for a vector, so exhaustion means "similarity unavailable for this item".
var ErrProviderError = errors.New("embedding provider error")
