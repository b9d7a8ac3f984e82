package analysis

import "context"

// Analyzer port (interface for producing a Result from raw script content).
// Implementations: provider-backed (OpenAI) and local heuristic. The
// caller is responsible for dedup; Analyze always computes.
type Analyzer interface {
	Analyze(ctx context.Context, content string) (*Result, error)
	Version() string
}
