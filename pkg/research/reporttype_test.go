package research

import (
	"testing"

	"github.com/kpaschalidis/anvil/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestDetectReportType(t *testing.T) {
	cases := []struct {
		query string
		want  models.ReportType
	}{
		{"Identify 10 AI note-taking startups. Required details: pricing, website", models.ReportCatalog},
		{"List 5 open source vector databases", models.ReportCatalog},
		{"For each competitor, summarize their positioning", models.ReportCatalog},
		{"What is the history of the transistor?", models.ReportNarrative},
		{"Compare Go and Rust for systems programming", models.ReportNarrative},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DetectReportType(c.query), c.query)
	}
}

func TestParseTargetItems(t *testing.T) {
	assert.Equal(t, 10, ParseTargetItems("Identify 10 AI note-taking startups"))
	assert.Equal(t, 1, ParseTargetItems("List 0 things"))
	assert.Equal(t, maxTargetItems, ParseTargetItems("List 500 things"))
	assert.Equal(t, maxTargetItems, ParseTargetItems("no count mentioned here"))
}

func TestParseRequiredFields_AlwaysIncludesBaseline(t *testing.T) {
	fields := ParseRequiredFields("Identify 5 startups")
	assert.ElementsMatch(t, alwaysIncludedFields, fields)
}

func TestParseRequiredFields_CanonicalizesAndDedupes(t *testing.T) {
	query := "Identify 5 startups.\nRequired details: Pricing, website, proof links, pricing model\nMore text after a newline is ignored."
	fields := ParseRequiredFields(query)

	assert.Contains(t, fields, "pricing_model")
	assert.Contains(t, fields, "website_url")
	assert.Contains(t, fields, "proof_links")

	count := 0
	for _, f := range fields {
		if f == "pricing_model" {
			count++
		}
	}
	assert.Equal(t, 1, count, "pricing and pricing model both canonicalize to pricing_model and must not duplicate")
	assert.NotContains(t, fields, "More text after a newline is ignored.")
}

func TestParseRequiredFields_UnknownTermsSlugify(t *testing.T) {
	fields := ParseRequiredFields("Identify 5 startups. Required details: founding year")
	assert.Contains(t, fields, "founding_year")
}
