package cache

import (
	"time"

	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
	"github.com/bryanwahyu/scriptsage/internal/domain/embedding"
	"github.com/bryanwahyu/scriptsage/internal/domain/fingerprint"
)

// Entry is the unit of dedup: one fingerprint, at most one analysis and
// one embedding, plus the set of artifact ids sharing this content.
// The store owns entry lifetime; analysis and embedding fill in
// independently, so an entry with only one of the two populated is a
// valid partially-complete state.
type Entry struct {
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Analysis    *analysis.Result        `json:"analysis,omitempty"`
	Embedding   embedding.Vector        `json:"embedding,omitempty"`
	ArtifactIDs []string                `json:"artifact_ids"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// Complete reports whether both derivations are present.
func (e *Entry) Complete() bool {
	return e.Analysis != nil && len(e.Embedding) > 0
}
