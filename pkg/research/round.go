package research

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kpaschalidis/anvil/pkg/events"
	"github.com/kpaschalidis/anvil/pkg/models"
	"github.com/kpaschalidis/anvil/pkg/workerpool"
)

// RoundState is one state of the per-round state machine described in
// §4.8: Initial -> Planned -> Dispatched -> Collected -> {Continue |
// GapPlan | VerifyPlan | Synthesize} / Failed. A plan failure transitions
// to Failed unless best_effort is enabled.
type RoundState string

const (
	RoundInitial    RoundState = "initial"
	RoundPlanned    RoundState = "planned"
	RoundDispatched RoundState = "dispatched"
	RoundCollected  RoundState = "collected"
	RoundFailed     RoundState = "failed"
)

// RoundSnapshot is the per-round diagnostic record attached to the final
// Report (§4.8 step 11, §6 "rounds").
type RoundSnapshot struct {
	Index   int
	Kind    string // "initial" | "round2" | "verify"
	State   RoundState
	Tasks   []Task
	Results []models.WorkerResult
	Memo    models.ResearchMemo
}

// runRound drives one planner+dispatch+collect cycle for any round kind:
// buildPrompt produces the planner prompt, minTasks the plan-size floor
// (3 for the initial round, 0 for round2/verify per §4.8 step 2).
func (o *Orchestrator) runRound(ctx context.Context, index int, kind string, buildPrompt func() string, minTasks int, emitter events.Emitter) (RoundSnapshot, error) {
	snap := RoundSnapshot{Index: index, Kind: kind, State: RoundInitial}

	tasks, err := o.requestPlan(ctx, buildPrompt(), minTasks, emitter)
	if err != nil {
		snap.State = RoundFailed
		return snap, err
	}
	snap.Tasks = tasks
	snap.State = RoundPlanned

	if len(tasks) == 0 {
		snap.State = RoundCollected
		return snap, nil
	}

	workerTasks := toWorkerTasks(tasks, o.cfg)
	snap.State = RoundDispatched

	results := o.runner.SpawnParallel(ctx, workerTasks, workerpool.RunOptions{
		MaxWorkers:         o.cfg.MaxWorkers,
		MaxWebSearchCalls:  o.cfg.MaxWebSearchCalls,
		MaxWebExtractCalls: o.cfg.MaxWebExtractCalls,
		ExtractMaxChars:    o.cfg.DeepReadMaxChars,
		OnResult: func(_ models.WorkerTask, r models.WorkerResult) {
			emitter.Emit(events.KindWorkerCompleted, toWorkerCompletedEvent(r))
		},
	})

	results = applyInvariants(results, o.cfg.DeepRead)
	snap.Results = results
	snap.State = RoundCollected
	return snap, nil
}

func toWorkerTasks(tasks []Task, cfg Config) []models.WorkerTask {
	out := make([]models.WorkerTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, models.WorkerTask{
			TaskID:             t.ID,
			Prompt:             t.SearchQuery + "\n\n" + t.Instructions,
			MaxWebSearchCalls:  cfg.MaxWebSearchCalls,
			MaxWebExtractCalls: cfg.MaxWebExtractCalls,
			MaxIterations:      cfg.WorkerMaxIterations,
			ExtractMaxChars:    cfg.DeepReadMaxChars,
		})
	}
	return out
}

func toWorkerCompletedEvent(r models.WorkerResult) events.WorkerCompletedEvent {
	var ms *int64
	if r.Duration > 0 {
		v := r.Duration.Milliseconds()
		ms = &v
	}
	return events.WorkerCompletedEvent{
		TaskID:          r.TaskID,
		Success:         r.Success,
		WebSearchCalls:  r.WebSearchCalls,
		WebExtractCalls: r.WebExtractCalls,
		Citations:       len(r.Citations),
		Domains:         len(r.Domains()),
		Evidence:        len(r.Evidence),
		DurationMS:      ms,
		Error:           r.Error,
	}
}

// buildMemo implements §3's bounded round memo: at most MaxMemoSources
// source entries, at most MaxMemoSourcesPerDomain per domain, ranked by
// per-URL score descending so the most relevant sources survive the cap.
func buildMemo(query string, reportType models.ReportType, round int, completed, remaining int, results []models.WorkerResult) models.ResearchMemo {
	type scored struct {
		entry models.SourceSummaryEntry
		score float64
	}
	var candidates []scored
	seen := map[string]bool{}
	pagesExtracted := 0
	for _, r := range results {
		pagesExtracted += len(r.Evidence)
		hasEvidence := map[string]bool{}
		for _, e := range r.Evidence {
			hasEvidence[e.URL] = true
		}
		for _, url := range r.Citations {
			if seen[url] {
				continue
			}
			seen[url] = true
			meta := r.Sources[url]
			candidates = append(candidates, scored{
				entry: models.SourceSummaryEntry{
					URL: url, Title: meta.Title, Domain: models.DomainOf(url), HasEvidence: hasEvidence[url],
				},
				score: meta.Score,
			})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	domainCount := map[string]int{}
	var sources []models.SourceSummaryEntry
	for _, c := range candidates {
		if len(sources) >= models.MaxMemoSources {
			break
		}
		if domainCount[c.entry.Domain] >= models.MaxMemoSourcesPerDomain {
			continue
		}
		domainCount[c.entry.Domain]++
		sources = append(sources, c.entry)
	}

	return models.ResearchMemo{
		Query:           query,
		ReportType:      reportType,
		Round:           round,
		TasksCompleted:  completed,
		TasksRemaining:  remaining,
		UniqueCitations: len(uniqueCitations(results)),
		UniqueDomains:   len(uniqueDomains(results)),
		PagesExtracted:  pagesExtracted,
		Sources:         sources,
	}
}

// formatMemo renders a ResearchMemo as plain text for embedding in a
// follow-up planner prompt (gap/verify rounds), so the planner sees a
// bounded summary instead of the full worker output (§3).
func formatMemo(memo models.ResearchMemo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d: %d tasks completed, %d citations across %d domains, %d pages extracted.\n",
		memo.Round, memo.TasksCompleted, memo.UniqueCitations, memo.UniqueDomains, memo.PagesExtracted)
	for _, s := range memo.Sources {
		title := s.Title
		if title == "" {
			title = s.Domain
		}
		fmt.Fprintf(&b, "- %s (%s)\n", title, s.URL)
	}
	return b.String()
}
