package research

import (
	"testing"

	"github.com/kpaschalidis/anvil/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestJoinResultOutputs_SkipsFailedResults(t *testing.T) {
	results := []models.WorkerResult{
		{TaskID: "t1", Success: true, Output: "good output"},
		{TaskID: "t2", Success: false, Output: "should not appear"},
	}
	joined := joinResultOutputs(results)
	assert.Contains(t, joined, "good output")
	assert.NotContains(t, joined, "should not appear")
}

func TestWhyFor_PrefersExcerptOverSnippetOverTitleOverDomain(t *testing.T) {
	sources := map[string]models.SourceMetadata{
		"https://a.example.com/1": {Title: "A title", Snippet: "a snippet"},
		"https://b.example.com/1": {Title: "B title"},
	}
	evidence := evidenceIndex{"https://a.example.com/1": "the full   extracted   excerpt text"}

	assert.Equal(t, "the full extracted excerpt text", whyFor("https://a.example.com/1", sources, evidence))
	assert.Equal(t, "B title", whyFor("https://b.example.com/1", sources, evidence))
	assert.Equal(t, "c.example.com", whyFor("https://c.example.com/1", sources, evidence))
}

func TestWhyFor_TruncatesLongExcerptsAt220Chars(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "word "
	}
	evidence := evidenceIndex{"https://a.example.com/1": long}

	got := whyFor("https://a.example.com/1", nil, evidence)
	assert.LessOrEqual(t, len([]rune(got)), 221) // 220 chars + ellipsis rune
	assert.Contains(t, got, "…")
}

func TestAnnotateWhy_SetsWhyFromPrimaryCitation(t *testing.T) {
	findings := []Finding{{Claim: "c", Citations: []string{"https://a.example.com/1"}}}
	results := []models.WorkerResult{
		{TaskID: "t1", Success: true, Sources: map[string]models.SourceMetadata{
			"https://a.example.com/1": {Title: "A title"},
		}},
	}

	annotateWhy(findings, results)
	assert.Equal(t, "A title", findings[0].Why)
}

func TestAllowedSourcesBlock_SortsURLs(t *testing.T) {
	allowed := map[string]bool{"https://z.com/1": true, "https://a.com/1": true}
	block := allowedSourcesBlock(allowed)
	zIdx := indexOf(block, "https://z.com/1")
	aIdx := indexOf(block, "https://a.com/1")
	assert.Less(t, aIdx, zIdx, "a.com should be listed before z.com")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestUrlsAllowed_EmptyAllowedSetPassesEverything(t *testing.T) {
	assert.True(t, urlsAllowed(map[string]bool{}, "https://anything.com"))
}

func TestUrlsAllowed_IgnoresEmptyStrings(t *testing.T) {
	allowed := map[string]bool{"https://a.com/1": true}
	assert.True(t, urlsAllowed(allowed, "", "https://a.com/1"))
}

func TestUrlsAllowed_RejectsOutOfSetURL(t *testing.T) {
	allowed := map[string]bool{"https://a.com/1": true}
	assert.False(t, urlsAllowed(allowed, "https://a.com/1", "https://b.com/1"))
}

func TestAllAllowed_DelegatesToUrlsAllowed(t *testing.T) {
	allowed := map[string]bool{"https://a.com/1": true}
	assert.True(t, allAllowed(allowed, []string{"https://a.com/1"}))
	assert.False(t, allAllowed(allowed, []string{"https://a.com/1", "https://c.com/1"}))
}

func TestGroundFindings_DropsUngroundedAndFlagsViolation(t *testing.T) {
	allowed := map[string]bool{"https://a.com/1": true}
	raw := []rawFinding{
		{Claim: "grounded", Citations: []string{"https://a.com/1"}},
		{Claim: "ungrounded", Citations: []string{"https://b.com/1"}},
	}
	findings, violated := groundFindings(raw, allowed)
	assert.True(t, violated)
	assert.Len(t, findings, 1)
	assert.Equal(t, "grounded", findings[0].Claim)
}

func TestGroundFindings_NoViolationWhenAllGrounded(t *testing.T) {
	allowed := map[string]bool{"https://a.com/1": true}
	raw := []rawFinding{{Claim: "grounded", Citations: []string{"https://a.com/1"}}}
	findings, violated := groundFindings(raw, allowed)
	assert.False(t, violated)
	assert.Len(t, findings, 1)
}

func TestDiversitySelect_CapsAndMaximizesNewDomains(t *testing.T) {
	findings := []Finding{
		{Claim: "f1", Citations: []string{"https://a.com/1"}},
		{Claim: "f2", Citations: []string{"https://a.com/2"}}, // same domain as f1, no new domain
		{Claim: "f3", Citations: []string{"https://b.com/1"}}, // new domain
	}
	selected := diversitySelect(findings, 2)
	assert.Len(t, selected, 2)
	assert.Equal(t, "f1", selected[0].Claim)
	assert.Equal(t, "f3", selected[1].Claim, "f3 introduces a new domain over f2's repeat of a.com")
}

func TestDiversitySelect_ReturnsAllWhenCapExceedsCount(t *testing.T) {
	findings := []Finding{{Claim: "only"}}
	assert.Equal(t, findings, diversitySelect(findings, 5))
}

func TestDiversitySelect_ZeroCapReturnsAll(t *testing.T) {
	findings := []Finding{{Claim: "only"}}
	assert.Equal(t, findings, diversitySelect(findings, 0))
}

func TestCheckCoverage_WarnModeNeverFails(t *testing.T) {
	o := &Orchestrator{cfg: Config{CoverageMode: "warn", CitationsPerFindingTarget: 5, MinTotalCitations: 10, MinTotalDomains: 10}}
	err := o.checkCoverage([]Finding{{Claim: "thin", Citations: nil}}, nil)
	assert.NoError(t, err)
}

func TestCheckCoverage_ErrorModeFailsBelowPerFindingTarget(t *testing.T) {
	o := &Orchestrator{cfg: Config{CoverageMode: "error", CitationsPerFindingTarget: 1}}
	err := o.checkCoverage([]Finding{{Claim: "thin", Citations: nil}}, nil)
	assert.Error(t, err)
}

func TestCheckCoverage_ErrorModeFailsBelowTotalMinimums(t *testing.T) {
	o := &Orchestrator{cfg: Config{CoverageMode: "error", CitationsPerFindingTarget: 0, MinTotalCitations: 5, MinTotalDomains: 1}}
	err := o.checkCoverage([]Finding{{Claim: "ok", Citations: []string{"https://a.com/1"}}}, nil)
	assert.Error(t, err)
}

func TestCheckCoverage_ErrorModePassesWhenTargetsMet(t *testing.T) {
	o := &Orchestrator{cfg: Config{CoverageMode: "error", CitationsPerFindingTarget: 1, MinTotalCitations: 1, MinTotalDomains: 1}}
	err := o.checkCoverage([]Finding{{Claim: "ok", Citations: []string{"https://a.com/1"}}}, nil)
	assert.NoError(t, err)
}
