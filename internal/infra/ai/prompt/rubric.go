package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
)

// Version tags every result with the exact rubric/schema it was produced
// under. Bump whenever the prompt text or the response schema changes so
// stale cache entries can be told apart.
const Version = "rubric-v2"

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	var cats strings.Builder
	for _, c := range analysis.Categories {
		fmt.Fprintf(&cats, "  %d: %q\n", c.ID, c.Label)
	}

	return `You are a senior script analyst reviewing administrative and automation scripts. You must produce one valid JSON object only (no markdown, no commentary, no code fences).

Scoring rubric, all scores are integers from 1 to 10:
- security_score: 1-3 minimal security risk, 4-6 moderate risks that should be addressed, 7-10 severe risks requiring immediate attention.
- quality_score: 8-10 excellent code following best practices, 5-7 acceptable with some improvements needed, 1-4 poor quality requiring significant refactoring.
- risk_score (execution risk): 1-3 minimal, 4-6 moderate risk requiring caution, 7-10 high risk requiring careful review and a controlled environment.
- reliability_score: 8-10 robust with excellent error handling, 5-7 adequate, 1-4 poor error handling.

Pick category from exactly one of these ids and labels:
` + cats.String() + `
Requirements:
- Output must be a single JSON object matching the schema below.
- Use lowercase severity values: critical, high, medium, low, info.
- findings is an ordered array; put the most important observation first. line_ref is a 1-based line number, omit or 0 when not applicable.
- references point at official documentation for commands or concepts the script uses; empty array is fine.

Schema (example with empty values):
{
  "purpose": "<1-2 sentence summary>",
  "security_score": 0,
  "quality_score": 0,
  "risk_score": 0,
  "reliability_score": 0,
  "category": "<label>",
  "category_id": 0,
  "findings": [
    {"severity": "<critical|high|medium|low|info>", "message": "<string>", "line_ref": 0}
  ],
  "references": [
    {"label": "<command or concept>", "url": "<documentation url>", "note": "<10-25 word description>"}
  ]
}`
}

// GetUserPrompt wraps the (possibly truncated) script content.
func GetUserPrompt(content string) string {
	return fmt.Sprintf("Analyze the following script and respond with the JSON per schema.\n\nSCRIPT:\n```\n%s\n```", content)
}
