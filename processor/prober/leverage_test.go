package prober

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatesearch/estatesearch/estate"
)

func findingCategories(report *estate.LeverageReport) []string {
	var out []string
	for _, f := range report.Findings {
		out = append(out, f.Category)
	}
	return out
}

func TestAnalyzeDaysOnMarket(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		minScore float64
		detail   string
	}{
		{"long listing", "This home has been 95 days on market.", 8, "95 days on market"},
		{"moderate listing", "Now 45 days on the market, motivated pricing.", 4, "45 days on market"},
		{"fresh listing", "Just 5 days on market!", 1, "5 days on market"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Analyze(tt.content)
			require.NotEmpty(t, report.Findings)
			assert.Equal(t, estate.LeverageTimeOnMarket, report.Findings[0].Category)
			assert.Equal(t, tt.detail, report.Findings[0].Detail)
			assert.GreaterOrEqual(t, report.LeverageScore, tt.minScore)
		})
	}
}

func TestAnalyzeRecognizesDistressSignals(t *testing.T) {
	content := `Estate sale, sold as-is. Recent price cut of $25,000.
The roof repair was never completed and the seller is motivated.`

	report := Analyze(content)
	categories := findingCategories(report)
	assert.Contains(t, categories, estate.LeverageOwnerSituation)
	assert.Contains(t, categories, estate.LeveragePropertyIssues)
	assert.Contains(t, categories, estate.LeveragePriceHistory)
	assert.Greater(t, report.LeverageScore, 5.0)
}

func TestAnalyzeForeclosureScoresHigh(t *testing.T) {
	report := Analyze("Bank-owned foreclosure property, bring all offers.")
	require.Len(t, report.Findings, 1)
	assert.Equal(t, estate.LeverageOwnerSituation, report.Findings[0].Category)
	assert.GreaterOrEqual(t, report.LeverageScore, 8.0)
}

func TestAnalyzeCleanListing(t *testing.T) {
	report := Analyze(`Beautiful move-in-ready home with a renovated kitchen,
new windows, and a landscaped garden. Close to parks and schools.`)

	assert.Empty(t, report.Findings)
	assert.Zero(t, report.LeverageScore)
	assert.NotEmpty(t, report.Summary)
}

func TestAnalyzeScoreCappedAtTen(t *testing.T) {
	content := `120 days on market. Foreclosure, estate sale, price reduced,
as-is fixer-upper with foundation issues, back on market, buyer's market.`

	report := Analyze(content)
	assert.LessOrEqual(t, report.LeverageScore, 10.0)
	assert.GreaterOrEqual(t, len(report.Findings), 5)
}
