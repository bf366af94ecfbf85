package research

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kpaschalidis/anvil/pkg/events"
	"github.com/kpaschalidis/anvil/pkg/llm"
	"github.com/kpaschalidis/anvil/pkg/models"
	"github.com/kpaschalidis/anvil/pkg/workerpool"
)

// RunDraftCentric implements §4.8 Strategy II: a fixed-iteration loop that
// alternates planning, fan-out, and draft refinement, then feeds the
// accumulated results through the same synthesis + rendering pipeline as
// Strategy I.
func (o *Orchestrator) RunDraftCentric(ctx context.Context, query string, cfg Strategy2Config, emitter events.Emitter) (*Outcome, error) {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = cfg.MaxRounds
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 1
	}

	reportType := DetectReportType(query)
	isCatalog := reportType == models.ReportCatalog

	var results []models.WorkerResult
	seenQueries := map[string]bool{}
	totalTasks := 0
	draft := ""
	stopReason := StopMaxIterations

	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		prompt := buildDraftPlanPrompt(query, draft, cfg.MaxTasksPerRound)
		tasks, err := o.requestPlan(ctx, prompt, 0, emitter)
		if err != nil || len(tasks) == 0 {
			stopReason = StopNoTasks
			break
		}

		anyNovel := false
		for _, t := range tasks {
			key := normalizeQuery(t.SearchQuery)
			if !seenQueries[key] {
				anyNovel = true
			}
		}
		if !anyNovel {
			stopReason = StopNoNovelQueries
			break
		}
		for _, t := range tasks {
			seenQueries[normalizeQuery(t.SearchQuery)] = true
		}

		totalTasks += len(tasks)
		if totalTasks > cfg.MaxTasksTotal {
			stopReason = StopTaskBudgetExhausted
			break
		}

		workerTasks := toWorkerTasks(tasks, o.cfg)
		roundResults := o.runner.SpawnParallel(ctx, workerTasks, workerpool.RunOptions{
			MaxWorkers:         o.cfg.MaxWorkers,
			MaxWebSearchCalls:  o.cfg.MaxWebSearchCalls,
			MaxWebExtractCalls: o.cfg.MaxWebExtractCalls,
			ExtractMaxChars:    o.cfg.DeepReadMaxChars,
			OnResult: func(_ models.WorkerTask, r models.WorkerResult) {
				emitter.Emit(events.KindWorkerCompleted, toWorkerCompletedEvent(r))
			},
		})
		roundResults = applyInvariants(roundResults, o.cfg.DeepRead)

		existingDomains := uniqueDomains(results)
		existingCitations := uniqueCitations(results)
		newDomains := 0
		newCitations := 0
		for d := range uniqueDomains(roundResults) {
			if !existingDomains[d] {
				newDomains++
			}
		}
		for c := range uniqueCitations(roundResults) {
			if !existingCitations[c] {
				newCitations++
			}
		}

		results = mergeResults(results, roundResults)

		if newDomains == 0 && newCitations < cfg.SaturationThreshold {
			stopReason = StopSaturated
			break
		}

		top := topFindingsContext(results, 10)
		refinePrompt := buildDraftRefinePrompt(query, draft, top)
		resp, err := completeWithRetry(ctx, o.completion, llm.Request{
			Model:       o.cfg.Model,
			Messages:    []llm.Message{{Role: llm.RoleUser, Content: refinePrompt}},
			Temperature: 0.2,
			MaxTokens:   4096,
		})
		if err == nil {
			draft = strings.TrimSpace(resp.Content)
		}
	}

	if err := checkStrictness(o.cfg, results); err != nil {
		partial := &Outcome{WorkerResults: results, StopReason: stopReason}
		return nil, &DeepResearchRunError{Err: err, Partial: partial}
	}

	allowed := allowedURLSet(results, o.cfg)
	synth, serr := o.synthesize(ctx, isCatalog, query, results, allowed)
	if serr != nil {
		partial := &Outcome{WorkerResults: results, StopReason: stopReason}
		return nil, &DeepResearchRunError{Err: serr, Partial: partial}
	}

	var markdown string
	var citations []string
	if isCatalog {
		markdown, citations = renderCatalog(synth)
	} else {
		markdown, citations = renderNarrative(synth)
	}

	return &Outcome{
		Report: &Report{
			Title:      synth.Title,
			Markdown:   markdown,
			Citations:  citations,
			ReportType: reportType,
		},
		WorkerResults: results,
		StopReason:    stopReason,
	}, nil
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// topFindingsContext ranks results by citations_count + 2*evidence_count
// (§4.8 Strategy II) and returns the top k, the only context passed to the
// draft refiner.
func topFindingsContext(results []models.WorkerResult, k int) []models.WorkerResult {
	ranked := append([]models.WorkerResult(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		si := len(ranked[i].Citations) + 2*len(ranked[i].Evidence)
		sj := len(ranked[j].Citations) + 2*len(ranked[j].Evidence)
		return si > sj
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

func buildDraftPlanPrompt(query, draft string, maxTasks int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research query: %s\n\n", query)
	if draft != "" {
		fmt.Fprintf(&b, "Current draft:\n%s\n\n", draft)
	}
	fmt.Fprintf(&b, "Propose up to %d research tasks that would move the draft forward, as a JSON object: "+
		`{"tasks": [{"id": "...", "search_query": "...", "instructions": "..."}]}`+"\nReturn raw JSON only, no commentary, no code fence.", maxTasks)
	return b.String()
}

func buildDraftRefinePrompt(query, draft string, top []models.WorkerResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research query: %s\n\n", query)
	if draft == "" {
		b.WriteString("There is no draft yet. Write a first draft.\n\n")
	} else {
		fmt.Fprintf(&b, "Current draft:\n%s\n\n", draft)
	}
	b.WriteString("New findings:\n")
	for _, r := range top {
		fmt.Fprintf(&b, "### %s\n%s\n\n", r.TaskID, r.Output)
	}
	b.WriteString("Rewrite the draft as Markdown. Never add unsupported claims. Mark uncertain information with [TBD]. " +
		"End with a \"## Still Missing\" section listing open gaps. Return the draft only, no commentary.")
	return b.String()
}
