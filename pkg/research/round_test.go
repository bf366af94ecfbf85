package research

import (
	"testing"

	"github.com/kpaschalidis/anvil/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestToWorkerTasks_CarriesConfigLimits(t *testing.T) {
	cfg := Config{MaxWebSearchCalls: 5, MaxWebExtractCalls: 2, WorkerMaxIterations: 10, DeepReadMaxChars: 4000}
	tasks := []Task{{ID: "t1", SearchQuery: "q1", Instructions: "i1"}}

	out := toWorkerTasks(tasks, cfg)
	assert.Len(t, out, 1)
	assert.Equal(t, "t1", out[0].TaskID)
	assert.Equal(t, "q1\n\ni1", out[0].Prompt)
	assert.Equal(t, 5, out[0].MaxWebSearchCalls)
	assert.Equal(t, 2, out[0].MaxWebExtractCalls)
	assert.Equal(t, 10, out[0].MaxIterations)
	assert.Equal(t, 4000, out[0].ExtractMaxChars)
}

func TestToWorkerCompletedEvent_MapsFields(t *testing.T) {
	r := models.WorkerResult{
		TaskID:          "t1",
		Success:         true,
		Citations:       []string{"https://a.com/1", "https://b.com/2"},
		WebSearchCalls:  2,
		WebExtractCalls: 1,
		Evidence:        []models.Evidence{{URL: "https://a.com/1"}},
	}
	ev := toWorkerCompletedEvent(r)
	assert.Equal(t, "t1", ev.TaskID)
	assert.True(t, ev.Success)
	assert.Equal(t, 2, ev.Citations)
	assert.Equal(t, 2, ev.Domains)
	assert.Equal(t, 1, ev.Evidence)
	assert.Nil(t, ev.DurationMS)
}

func TestBuildMemo_BoundsSourcesAndPerDomain(t *testing.T) {
	results := []models.WorkerResult{
		{
			TaskID: "t1", Success: true,
			Citations: []string{"https://a.com/1", "https://a.com/2", "https://a.com/3", "https://a.com/4", "https://b.com/1"},
			Sources: map[string]models.SourceMetadata{
				"https://a.com/1": {Title: "A1", Score: 0.9},
				"https://a.com/2": {Title: "A2", Score: 0.8},
				"https://a.com/3": {Title: "A3", Score: 0.7},
				"https://a.com/4": {Title: "A4", Score: 0.6},
				"https://b.com/1": {Title: "B1", Score: 0.5},
			},
		},
	}
	memo := buildMemo("topic", models.ReportNarrative, 1, 1, 0, results)

	assert.Equal(t, "topic", memo.Query)
	assert.Equal(t, 5, memo.UniqueCitations)
	assert.Equal(t, 2, memo.UniqueDomains)

	domainCount := map[string]int{}
	for _, s := range memo.Sources {
		domainCount[s.Domain]++
	}
	assert.LessOrEqual(t, domainCount["a.com"], models.MaxMemoSourcesPerDomain)
	assert.LessOrEqual(t, len(memo.Sources), models.MaxMemoSources)
}

func TestFormatMemo_RendersQueryAndSources(t *testing.T) {
	memo := models.ResearchMemo{
		Round: 1, TasksCompleted: 3, UniqueCitations: 4, UniqueDomains: 2, PagesExtracted: 1,
		Sources: []models.SourceSummaryEntry{{URL: "https://a.com/1", Title: "A1", Domain: "a.com"}},
	}
	text := formatMemo(memo)
	assert.Contains(t, text, "Round 1: 3 tasks completed")
	assert.Contains(t, text, "A1 (https://a.com/1)")
}

func TestFormatMemo_FallsBackToDomainWhenTitleMissing(t *testing.T) {
	memo := models.ResearchMemo{
		Sources: []models.SourceSummaryEntry{{URL: "https://a.com/1", Domain: "a.com"}},
	}
	text := formatMemo(memo)
	assert.Contains(t, text, "a.com (https://a.com/1)")
}
