package research

import (
	"testing"

	"github.com/kpaschalidis/anvil/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyInvariants_DowngradesZeroCitations(t *testing.T) {
	results := []models.WorkerResult{
		{TaskID: "a", Success: true, Citations: nil},
		{TaskID: "b", Success: true, Citations: []string{"https://example.com/x"}},
	}
	out := applyInvariants(results, false)
	require.Len(t, out, 2)
	assert.False(t, out[0].Success)
	assert.Contains(t, out[0].Error, "zero citations")
	assert.True(t, out[1].Success)
}

func TestApplyInvariants_DeepReadRequiresEvidence(t *testing.T) {
	results := []models.WorkerResult{
		{TaskID: "a", Success: true, Citations: []string{"https://example.com/x"}},
	}
	out := applyInvariants(results, true)
	require.Len(t, out, 1)
	assert.False(t, out[0].Success)
	assert.Contains(t, out[0].Error, "zero extracted evidence")
}

func TestApplyInvariants_LeavesFailedResultsAlone(t *testing.T) {
	results := []models.WorkerResult{
		{TaskID: "a", Success: false, Error: "boom"},
	}
	out := applyInvariants(results, true)
	assert.Equal(t, "boom", out[0].Error)
}

func TestCheckStrictness_SkippedWhenNotStrictOrBestEffort(t *testing.T) {
	cfg := Config{Strict: false}
	err := checkStrictness(cfg, []models.WorkerResult{{Success: false}})
	assert.NoError(t, err)

	cfg = Config{Strict: true, BestEffort: true}
	err = checkStrictness(cfg, []models.WorkerResult{{Success: false}})
	assert.NoError(t, err)
}

func TestCheckStrictness_FailsOnWorkerFailure(t *testing.T) {
	cfg := Config{Strict: true}
	results := []models.WorkerResult{{TaskID: "t1", Success: false, Error: "timed out"}}
	err := checkStrictness(cfg, results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "t1")
}

func TestCheckStrictness_FailsBelowMinimums(t *testing.T) {
	cfg := Config{Strict: true, MinTotalCitations: 3, MinTotalDomains: 2}
	results := []models.WorkerResult{
		{TaskID: "t1", Success: true, Citations: []string{"https://a.com/1"}},
	}
	err := checkStrictness(cfg, results)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "citations")
}

func TestCheckStrictness_PassesWhenMinimumsMet(t *testing.T) {
	cfg := Config{Strict: true, MinTotalCitations: 2, MinTotalDomains: 2}
	results := []models.WorkerResult{
		{TaskID: "t1", Success: true, Citations: []string{"https://a.com/1", "https://b.com/2"}},
	}
	err := checkStrictness(cfg, results)
	assert.NoError(t, err)
}

func TestMergeResults_AppendsAndUnionsCitations(t *testing.T) {
	existing := []models.WorkerResult{
		{TaskID: "t1", Success: true, Citations: []string{"https://a.com/1"}, Sources: map[string]models.SourceMetadata{"https://a.com/1": {Title: "A"}}},
	}
	additional := []models.WorkerResult{
		{TaskID: "t1", Success: true, Citations: []string{"https://a.com/1", "https://b.com/2"}, Sources: map[string]models.SourceMetadata{"https://b.com/2": {Title: "B"}}},
		{TaskID: "t2", Success: true, Citations: []string{"https://c.com/3"}},
	}
	merged := mergeResults(existing, additional)
	require.Len(t, merged, 2)

	var t1 models.WorkerResult
	for _, r := range merged {
		if r.TaskID == "t1" {
			t1 = r
		}
	}
	assert.ElementsMatch(t, []string{"https://a.com/1", "https://b.com/2"}, t1.Citations)
	assert.Len(t, t1.Sources, 2)
}

func TestMergeResults_FailurePropagatesFromAdditional(t *testing.T) {
	existing := []models.WorkerResult{{TaskID: "t1", Success: true}}
	additional := []models.WorkerResult{{TaskID: "t1", Success: false, Error: "broke"}}
	merged := mergeResults(existing, additional)
	require.Len(t, merged, 1)
	assert.False(t, merged[0].Success)
	assert.Equal(t, "broke", merged[0].Error)
}
