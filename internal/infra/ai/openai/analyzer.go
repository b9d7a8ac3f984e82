package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/scriptsage/internal/domain/analysis"
	"github.com/bryanwahyu/scriptsage/internal/infra/ai/prompt"
)

const maxTokens = 2048

// Analyzer calls the reasoning provider with the versioned rubric and
// parses the structured response. One attempt per call; retries are the
// orchestrator's job.
type Analyzer struct {
	client *openai.Client
	model  string
}

func NewAnalyzer(apiKey, model string) *Analyzer {
	if model == "" {
		model = "gpt-4o"
	}
	return &Analyzer{client: openai.NewClient(apiKey), model: model}
}

// NewAnalyzerWithClient is used by tests to point at a fake server.
func NewAnalyzerWithClient(client *openai.Client, model string) *Analyzer {
	return &Analyzer{client: client, model: model}
}

func (a *Analyzer) Version() string { return prompt.Version }

// providerResponse mirrors the schema the system prompt demands. Any
// deviation is a schema violation, not something to clamp.
type providerResponse struct {
	Purpose          string `json:"purpose"`
	SecurityScore    *int   `json:"security_score"`
	QualityScore     *int   `json:"quality_score"`
	RiskScore        *int   `json:"risk_score"`
	ReliabilityScore *int   `json:"reliability_score"`
	Category         string `json:"category"`
	CategoryID       int    `json:"category_id"`
	Findings         []struct {
		Severity string `json:"severity"`
		Message  string `json:"message"`
		LineRef  int    `json:"line_ref"`
	} `json:"findings"`
	References []struct {
		Label string `json:"label"`
		URL   string `json:"url"`
		Note  string `json:"note"`
	} `json:"references"`
}

func (a *Analyzer) Analyze(ctx context.Context, content string) (*analysis.Result, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(content)},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(a.model, "o1") || strings.HasPrefix(a.model, "o3") || strings.HasPrefix(a.model, "o4") || strings.HasPrefix(a.model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyErr(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", analysis.ErrProviderError)
	}

	return parseResult(resp.Choices[0].Message.Content)
}

// parseResult validates the provider payload against the canonical
// schema. Out-of-range and missing scores surface as ErrSchemaViolation,
// which the orchestrator treats like any transient provider failure.
func parseResult(raw string) (*analysis.Result, error) {
	var pr providerResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &pr); err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrSchemaViolation, err)
	}

	scores := []struct {
		name string
		v    *int
	}{
		{"security_score", pr.SecurityScore},
		{"quality_score", pr.QualityScore},
		{"risk_score", pr.RiskScore},
		{"reliability_score", pr.ReliabilityScore},
	}
	for _, s := range scores {
		if s.v == nil {
			return nil, fmt.Errorf("%w: missing %s", analysis.ErrSchemaViolation, s.name)
		}
		if *s.v < analysis.ScoreMin || *s.v > analysis.ScoreMax {
			return nil, fmt.Errorf("%w: %s=%d out of range", analysis.ErrSchemaViolation, s.name, *s.v)
		}
	}

	cat, ok := analysis.CategoryByLabel(pr.Category)
	if !ok {
		return nil, fmt.Errorf("%w: unknown category %q", analysis.ErrSchemaViolation, pr.Category)
	}
	if pr.CategoryID != 0 && pr.CategoryID != cat.ID {
		return nil, fmt.Errorf("%w: category_id %d does not match %q", analysis.ErrSchemaViolation, pr.CategoryID, pr.Category)
	}

	res := &analysis.Result{
		Purpose:          pr.Purpose,
		SecurityScore:    *pr.SecurityScore,
		QualityScore:     *pr.QualityScore,
		RiskScore:        *pr.RiskScore,
		ReliabilityScore: *pr.ReliabilityScore,
		Category:         cat,
	}
	for _, f := range pr.Findings {
		res.Findings = append(res.Findings, analysis.Finding{
			Severity: analysis.Severity(strings.ToLower(f.Severity)),
			Message:  f.Message,
			LineRef:  f.LineRef,
		})
	}
	for _, r := range pr.References {
		res.References = append(res.References, analysis.Reference{Label: r.Label, URL: r.URL, Note: r.Note})
	}
	res.AnalyzerVersion = prompt.Version
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

// stripFences tolerates models that wrap the object in ```json fences
// despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func classifyErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return fmt.Errorf("%w: %v", analysis.ErrQuotaExceeded, err)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %v", analysis.ErrProviderError, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", analysis.ErrProviderTimeout, err)
	}
	return fmt.Errorf("%w: %v", analysis.ErrProviderError, err)
}
