package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validResult() *Result {
	return &Result{
		SecurityScore:    3,
		QualityScore:     7,
		RiskScore:        2,
		ReliabilityScore: 6,
		Category:         Categories[0],
		Findings: []Finding{
			{Severity: SeverityLow, Message: "uses WMI remoting", LineRef: 4},
		},
		AnalyzerVersion: "rubric-v2",
	}
}

func TestValidateOK(t *testing.T) {
	assert.NoError(t, validResult().Validate())
}

func TestValidateScoreRange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Result)
	}{
		{"security zero", func(r *Result) { r.SecurityScore = 0 }},
		{"quality high", func(r *Result) { r.QualityScore = 11 }},
		{"risk negative", func(r *Result) { r.RiskScore = -2 }},
		{"reliability high", func(r *Result) { r.ReliabilityScore = 100 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validResult()
			tt.mutate(r)
			err := r.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaViolation)
		})
	}
}

func TestValidateCategory(t *testing.T) {
	r := validResult()
	r.Category = Category{ID: 99, Label: "Made Up"}
	assert.ErrorIs(t, r.Validate(), ErrSchemaViolation)
}

func TestValidateSeverity(t *testing.T) {
	r := validResult()
	r.Findings = append(r.Findings, Finding{Severity: "urgent", Message: "bad"})
	assert.ErrorIs(t, r.Validate(), ErrSchemaViolation)
}

func TestValidateMissingVersion(t *testing.T) {
	r := validResult()
	r.AnalyzerVersion = ""
	assert.ErrorIs(t, r.Validate(), ErrSchemaViolation)
}

func TestCategoryByLabel(t *testing.T) {
	c, ok := CategoryByLabel("Backup & Recovery")
	require.True(t, ok)
	assert.Equal(t, 9, c.ID)

	_, ok = CategoryByLabel("backup & recovery")
	assert.False(t, ok, "taxonomy labels are case-sensitive")
}

func TestDegraded(t *testing.T) {
	r := validResult()
	assert.False(t, r.Degraded())
	r.Findings = append(r.Findings, Finding{Severity: SeverityInfo, Message: DegradedFindingMessage})
	assert.True(t, r.Degraded())
}
