package research

import (
	"sort"

	"github.com/kpaschalidis/anvil/pkg/models"
)

type candidateURL struct {
	url    string
	domain string
	score  float64
	rank   int
}

// curateSources implements §4.8 step 9's narrative-mode curated-source
// selection: per task, candidates are ordered by score descending then rank
// ascending; a two-pass round-robin first guarantees min_per_task per task,
// then fills up to max_total overall, enforcing max_per_domain throughout.
// The returned set constrains which URLs the synthesizer may cite.
func curateSources(results []models.WorkerResult, cfg Config) map[string]bool {
	perTask := make([][]candidateURL, 0, len(results))
	for _, r := range results {
		var cands []candidateURL
		for _, url := range r.Citations {
			meta := r.Sources[url]
			cands = append(cands, candidateURL{url: url, domain: models.DomainOf(url), score: meta.Score, rank: meta.Rank})
		}
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].score != cands[j].score {
				return cands[i].score > cands[j].score
			}
			return cands[i].rank < cands[j].rank
		})
		perTask = append(perTask, cands)
	}

	domainCount := map[string]int{}
	selected := map[string]bool{}
	cursor := make([]int, len(perTask))

	tryTake := func(taskIdx int) bool {
		for cursor[taskIdx] < len(perTask[taskIdx]) {
			c := perTask[taskIdx][cursor[taskIdx]]
			cursor[taskIdx]++
			if selected[c.url] {
				continue
			}
			if cfg.MaxPerDomain > 0 && domainCount[c.domain] >= cfg.MaxPerDomain {
				continue
			}
			selected[c.url] = true
			domainCount[c.domain]++
			return true
		}
		return false
	}

	perTaskSelected := make([]int, len(perTask))
	// Pass 1: guarantee min_per_task per task.
	progress := true
	for progress && minBelowTarget(perTaskSelected, cfg.MinPerTask) {
		progress = false
		for i := range perTask {
			if perTaskSelected[i] >= cfg.MinPerTask {
				continue
			}
			if len(selected) >= cfg.MaxTotal && cfg.MaxTotal > 0 {
				break
			}
			if tryTake(i) {
				perTaskSelected[i]++
				progress = true
			}
		}
	}

	// Pass 2: fill to max_total via round-robin.
	progress = true
	for progress && (cfg.MaxTotal <= 0 || len(selected) < cfg.MaxTotal) {
		progress = false
		for i := range perTask {
			if cfg.MaxTotal > 0 && len(selected) >= cfg.MaxTotal {
				break
			}
			if tryTake(i) {
				perTaskSelected[i]++
				progress = true
			}
		}
	}

	return selected
}

func minBelowTarget(counts []int, target int) bool {
	for _, c := range counts {
		if c < target {
			return true
		}
	}
	return false
}
