package embedding

import "fmt"

// Dimension is the system-wide embedding width. Every vector in the
// corpus has exactly this dimension; mismatches are rejected, never
// truncated or padded.
const Dimension = 1536

// Vector is a fixed-dimension embedding.
type Vector []float32

// Validate rejects vectors whose dimension does not match the corpus.
func (v Vector) Validate() error {
	if len(v) != Dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), Dimension)
	}
	return nil
}
