package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderNarrative_NumbersCitationsInFirstSeenOrder(t *testing.T) {
	result := SynthesisResult{
		Title:          "Report Title",
		SummaryBullets: []string{"a summary point"},
		Findings: []Finding{
			{Claim: "claim one", Citations: []string{"https://b.com/1"}, Why: "because reasons"},
			{Claim: "claim two", Citations: []string{"https://a.com/1", "https://b.com/1"}, Quote: "exact quote"},
		},
		OpenQuestions: []string{"what about X?"},
	}
	markdown, citations := renderNarrative(result)

	assert.Equal(t, []string{"https://b.com/1", "https://a.com/1"}, citations)
	assert.Contains(t, markdown, "# Report Title")
	assert.Contains(t, markdown, "## Summary")
	assert.Contains(t, markdown, "claim one [1]")
	assert.Contains(t, markdown, "claim two [2] [1]")
	assert.Contains(t, markdown, "Why: because reasons")
	assert.Contains(t, markdown, `Quote: "exact quote"`)
	assert.Contains(t, markdown, "## Open Questions")
	assert.Contains(t, markdown, "## Sources")
	assert.Contains(t, markdown, "1. https://b.com/1")
	assert.Contains(t, markdown, "2. https://a.com/1")
}

func TestRenderNarrative_OmitsEmptySections(t *testing.T) {
	result := SynthesisResult{Title: "Bare Report"}
	markdown, citations := renderNarrative(result)

	assert.Empty(t, citations)
	assert.NotContains(t, markdown, "## Summary")
	assert.NotContains(t, markdown, "## Findings")
	assert.NotContains(t, markdown, "## Sources")
}

func TestRenderCatalog_ListsItemFieldsAndSources(t *testing.T) {
	result := SynthesisResult{
		Title: "Catalog Report",
		Items: []CatalogItem{
			{
				Name:          "Acme Tool",
				WebsiteURL:    "https://acme.io",
				ProblemSolved: "note taking",
				PricingModel:  "freemium",
				ProofLinks:    []string{"https://acme.io/pricing"},
				Quote:         "it just works",
				SourceURL:     "https://acme.io/about",
			},
		},
	}
	markdown, citations := renderCatalog(result)

	assert.Contains(t, markdown, "### Acme Tool")
	assert.Contains(t, markdown, "Website: https://acme.io")
	assert.Contains(t, markdown, "Problem solved: note taking")
	assert.Contains(t, markdown, "Pricing: freemium")
	assert.Contains(t, markdown, "Proof: https://acme.io/pricing [1]")
	assert.Contains(t, markdown, `Quote: "it just works" [2]`)
	assert.ElementsMatch(t, []string{"https://acme.io/pricing", "https://acme.io/about"}, citations)
}

func TestRenderCatalog_SourceURLWithoutQuoteStillCited(t *testing.T) {
	result := SynthesisResult{
		Title: "Catalog Report",
		Items: []CatalogItem{
			{Name: "No Quote Tool", SourceURL: "https://noquote.example.com"},
		},
	}
	_, citations := renderCatalog(result)
	assert.Equal(t, []string{"https://noquote.example.com"}, citations)
}
