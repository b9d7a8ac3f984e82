package analysis

import "errors"

// ErrSchemaViolation indicates a provider response that fails validation
// (missing field, out-of-range score, unknown category). Treated as a
// transient provider error for retry purposes; never clamped or patched.
var ErrSchemaViolation = errors.New("analysis schema violation")

// ErrProviderTimeout indicates the reasoning provider did not answer
// within the configured deadline.
var ErrProviderTimeout = errors.New("analysis provider timeout")

// ErrProviderError indicates a transient provider failure (5xx, network,
// malformed body). Retried internally before the fallback kicks in.
var ErrProviderError = errors.New("analysis provider error")

// ErrQuotaExceeded indicates the provider returned a quota/limit error
// (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("analysis provider quota exceeded")
