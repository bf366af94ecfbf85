package research

import (
	"fmt"

	"github.com/kpaschalidis/anvil/pkg/errs"
	"github.com/kpaschalidis/anvil/pkg/models"
)

// applyInvariants implements §4.8 step 5: a result marked successful but
// carrying zero citations (or, with deep-read enabled, zero extracted
// evidence) is downgraded to a failure with a descriptive error.
func applyInvariants(results []models.WorkerResult, deepRead bool) []models.WorkerResult {
	out := make([]models.WorkerResult, len(results))
	for i, r := range results {
		if r.Success && len(r.Citations) == 0 {
			r.Success = false
			r.Error = "invariant violation: zero citations"
		} else if r.Success && deepRead && len(r.Evidence) == 0 {
			r.Success = false
			r.Error = "invariant violation: deep-read enabled but zero extracted evidence"
		}
		out[i] = r
	}
	return out
}

// uniqueCitations returns the set of distinct citation URLs across every
// result.
func uniqueCitations(results []models.WorkerResult) map[string]bool {
	set := map[string]bool{}
	for _, r := range results {
		for _, c := range r.Citations {
			set[c] = true
		}
	}
	return set
}

// uniqueDomains returns the set of distinct domains across every result's
// citations.
func uniqueDomains(results []models.WorkerResult) map[string]bool {
	set := map[string]bool{}
	for _, r := range results {
		for d := range r.Domains() {
			set[d] = true
		}
	}
	return set
}

// checkStrictness implements §4.8 step 6's strictness gates: only active
// when Strict is set and BestEffort is not. Any failed worker, or citation
// or domain counts below the configured minimums, is fatal.
func checkStrictness(cfg Config, results []models.WorkerResult) error {
	if !cfg.Strict || cfg.BestEffort {
		return nil
	}
	for _, r := range results {
		if !r.Success {
			return errs.WorkerFailure("strictness", fmt.Sprintf("worker %s failed: %s", r.TaskID, r.Error), nil)
		}
	}
	if n := len(uniqueCitations(results)); n < cfg.MinTotalCitations {
		return errs.WorkerFailure("strictness", fmt.Sprintf("total citations %d below minimum %d", n, cfg.MinTotalCitations), nil)
	}
	if n := len(uniqueDomains(results)); n < cfg.MinTotalDomains {
		return errs.WorkerFailure("strictness", fmt.Sprintf("total domains %d below minimum %d", n, cfg.MinTotalDomains), nil)
	}
	return nil
}

// mergeResults implements §4.8 step 4's continuation merge: new results are
// unioned onto existing ones by task ID: citations are appended
// deduplicated, sources are unioned by URL, and evidence and traces are
// appended as-is rather than replaced.
func mergeResults(existing, additional []models.WorkerResult) []models.WorkerResult {
	byID := map[string]int{}
	out := append([]models.WorkerResult(nil), existing...)
	for i, r := range out {
		byID[r.TaskID] = i
	}

	for _, add := range additional {
		idx, ok := byID[add.TaskID]
		if !ok {
			out = append(out, add)
			byID[add.TaskID] = len(out) - 1
			continue
		}
		out[idx] = mergeOne(out[idx], add)
	}
	return out
}

func mergeOne(a, b models.WorkerResult) models.WorkerResult {
	seen := map[string]bool{}
	var citations []string
	for _, c := range append(a.Citations, b.Citations...) {
		if !seen[c] {
			seen[c] = true
			citations = append(citations, c)
		}
	}
	sources := map[string]models.SourceMetadata{}
	for k, v := range a.Sources {
		sources[k] = v
	}
	for k, v := range b.Sources {
		sources[k] = v
	}
	a.Citations = citations
	a.Sources = sources
	a.Evidence = append(a.Evidence, b.Evidence...)
	a.WebSearchTrace = append(a.WebSearchTrace, b.WebSearchTrace...)
	a.WebExtractTrace = append(a.WebExtractTrace, b.WebExtractTrace...)
	a.WebSearchCalls += b.WebSearchCalls
	a.WebExtractCalls += b.WebExtractCalls
	a.Iterations += b.Iterations
	a.Duration += b.Duration
	if b.Output != "" {
		a.Output = a.Output + "\n\n" + b.Output
	}
	a.Success = a.Success && b.Success
	if !b.Success && b.Error != "" {
		a.Error = b.Error
	}
	return a
}
