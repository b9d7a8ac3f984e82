package analysis

import (
	"fmt"
	"time"
)

// Severity enum for findings
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Category is one label from the closed script taxonomy. The taxonomy is
// owned by the upstream catalog; ids and labels must not be invented here.
type Category struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// Categories in catalog order. Index+1 == Category.ID.
var Categories = []Category{
	{1, "System Administration"},
	{2, "Security & Compliance"},
	{3, "Automation & DevOps"},
	{4, "Cloud Management"},
	{5, "Network Management"},
	{6, "Data Management"},
	{7, "Active Directory"},
	{8, "Monitoring & Diagnostics"},
	{9, "Backup & Recovery"},
	{10, "Utilities & Helpers"},
}

// CategoryFallback is used when the provider names a label outside the
// taxonomy or for content too thin to classify.
var CategoryFallback = Categories[9] // Utilities & Helpers

// CategoryByLabel resolves a label against the taxonomy.
func CategoryByLabel(label string) (Category, bool) {
	for _, c := range Categories {
		if c.Label == label {
			return c, true
		}
	}
	return Category{}, false
}

// Score bounds. Every score field on a Result is an integer in
// [ScoreMin, ScoreMax]; each field carries a three-band interpretation
// documented on the field.
const (
	ScoreMin = 1
	ScoreMax = 10
)

// Finding is a single analyst observation. Order is meaningful and
// duplicates are allowed.
type Finding struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	LineRef  int      `json:"line_ref,omitempty"` // 1-based, 0 when not tied to a line
}

// Reference points at external documentation for a command or concept
// used by the script.
type Reference struct {
	Label string `json:"label"`
	URL   string `json:"url"`
	Note  string `json:"note,omitempty"`
}

// Result is the canonical analysis schema. Producer (orchestrator) and
// every consumer conform to this one shape; mismatches fail at the parse
// boundary, never as silently missing fields.
type Result struct {
	// SecurityScore: 1-3 minimal, 4-6 moderate, 7-10 severe security risk.
	SecurityScore int `json:"security_score"`
	// QualityScore: 8-10 excellent, 5-7 acceptable, 1-4 poor code quality.
	QualityScore int `json:"quality_score"`
	// RiskScore: 1-3 minimal, 4-6 moderate, 7-10 high execution risk.
	RiskScore int `json:"risk_score"`
	// ReliabilityScore: 8-10 robust, 5-7 adequate, 1-4 poor error handling.
	ReliabilityScore int `json:"reliability_score"`

	Purpose    string      `json:"purpose,omitempty"`
	Category   Category    `json:"category"`
	Findings   []Finding   `json:"findings"`
	References []Reference `json:"references,omitempty"`

	AnalyzedAt      time.Time `json:"analyzed_at"`
	AnalyzerVersion string    `json:"analyzer_version"`
}

// Degraded reports whether this result came from the local fallback path.
func (r *Result) Degraded() bool {
	for _, f := range r.Findings {
		if f.Message == DegradedFindingMessage {
			return true
		}
	}
	return false
}

// DegradedFindingMessage flags a result produced without the external
// provider. Consumers key off this exact string.
const DegradedFindingMessage = "analysis degraded: produced by local heuristic analyzer"

// Validate enforces the schema invariants: all four scores present and in
// range, category from the taxonomy, severities from the enum.
func (r *Result) Validate() error {
	scores := map[string]int{
		"security_score":    r.SecurityScore,
		"quality_score":     r.QualityScore,
		"risk_score":        r.RiskScore,
		"reliability_score": r.ReliabilityScore,
	}
	for name, v := range scores {
		if v < ScoreMin || v > ScoreMax {
			return fmt.Errorf("%w: %s=%d outside [%d,%d]", ErrSchemaViolation, name, v, ScoreMin, ScoreMax)
		}
	}
	if _, ok := CategoryByLabel(r.Category.Label); !ok {
		return fmt.Errorf("%w: unknown category %q", ErrSchemaViolation, r.Category.Label)
	}
	for i, f := range r.Findings {
		switch f.Severity {
		case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		default:
			return fmt.Errorf("%w: finding[%d] has severity %q", ErrSchemaViolation, i, f.Severity)
		}
	}
	if r.AnalyzerVersion == "" {
		return fmt.Errorf("%w: missing analyzer_version", ErrSchemaViolation)
	}
	return nil
}
