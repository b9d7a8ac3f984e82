package local

import (
	"context"
	"strings"

	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
	"github.com/bryanwahyu/scriptsage/internal/infra/ai/prompt"
)

// Version distinguishes heuristic results from provider results built
// under the same rubric.
const Version = prompt.Version + "-local"

// Analyzer is the deterministic heuristic fallback: conservative
// mid-range scores nudged by cheap structural signals, always flagged
// with the degraded finding. Used both in offline mode (no API key) and
// when the provider path is exhausted.
type Analyzer struct{}

func NewAnalyzer() *Analyzer { return &Analyzer{} }

func (a *Analyzer) Version() string { return Version }

// riskKeywords are substrings that suggest the script touches something
// dangerous. Matching is case-insensitive and deliberately crude; the
// heuristic only has to be conservative and repeatable.
var riskKeywords = []string{
	"invoke-expression", "iex ", "downloadstring", "invoke-webrequest",
	"curl ", "wget ", "rm -rf", "remove-item", "format-volume",
	"start-process", "reg add", "schtasks", "base64", "frombase64string",
	"set-executionpolicy", "bypass", "net user", "chmod 777",
}

var errHandlingMarkers = []string{"try", "catch", "trap", "set -e", "erroraction", "if err", "|| exit"}

func (a *Analyzer) Analyze(_ context.Context, content string) (*analysis.Result, error) {
	lower := strings.ToLower(content)

	risky := 0
	for _, kw := range riskKeywords {
		if strings.Contains(lower, kw) {
			risky++
		}
	}
	handled := false
	for _, m := range errHandlingMarkers {
		if strings.Contains(lower, m) {
			handled = true
			break
		}
	}
	hasFunctions := strings.Contains(lower, "function ") || strings.Contains(lower, "func ") || strings.Contains(lower, "def ")
	hasParams := strings.Contains(lower, "param(") || strings.Contains(lower, "argv") || strings.Contains(lower, "$1")

	// Conservative mid-range defaults, nudged by the signals above.
	security := clampScore(5 + risky)
	risk := clampScore(4 + risky)
	quality := 5
	if hasFunctions {
		quality++
	}
	if hasParams {
		quality++
	}
	reliability := 4
	if handled {
		reliability = 6
		risk = clampScore(risk - 1)
	}

	if len(strings.TrimSpace(content)) == 0 {
		// Empty content carries no information and no risk to speak of.
		security, risk, quality, reliability = 1, 1, 5, 5
	}

	res := &analysis.Result{
		Purpose:          "Heuristic assessment; the reasoning provider was not consulted.",
		SecurityScore:    security,
		QualityScore:     quality,
		RiskScore:        risk,
		ReliabilityScore: reliability,
		Category:         categorize(lower),
		Findings: []analysis.Finding{
			{Severity: analysis.SeverityInfo, Message: analysis.DegradedFindingMessage},
		},
		AnalyzerVersion: Version,
	}
	if risky > 0 {
		res.Findings = append(res.Findings, analysis.Finding{
			Severity: analysis.SeverityMedium,
			Message:  "script contains constructs commonly associated with elevated execution risk",
		})
	}
	return res, nil
}

// categorize maps keyword hits onto the closed taxonomy. First match wins
// so the result is stable for identical content.
func categorize(lower string) analysis.Category {
	rules := []struct {
		keywords []string
		id       int
	}{
		{[]string{"get-aduser", "active directory", "add-adgroupmember"}, 7},
		{[]string{"gitlab", "jenkins", "pipeline", "docker", "kubectl", "ci/cd"}, 3},
		{[]string{"aws ", "azure", "gcloud", "az ", "s3://"}, 4},
		{[]string{"test-connection", "ping", "ipconfig", "netstat", "dns"}, 5},
		{[]string{"sql", "database", "import-csv", "export-csv", "etl"}, 6},
		{[]string{"get-eventlog", "get-counter", "monitor", "alert"}, 8},
		{[]string{"backup", "restore", "snapshot"}, 9},
		{[]string{"acl", "audit", "compliance", "firewall", "security"}, 2},
		{[]string{"get-service", "get-process", "systemctl", "restart-computer"}, 1},
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return analysis.Categories[r.id-1]
			}
		}
	}
	return analysis.CategoryFallback
}

func clampScore(v int) int {
	if v < analysis.ScoreMin {
		return analysis.ScoreMin
	}
	if v > analysis.ScoreMax {
		return analysis.ScoreMax
	}
	return v
}
