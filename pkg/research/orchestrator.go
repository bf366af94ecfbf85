package research

import (
	"context"

	"github.com/kpaschalidis/anvil/pkg/events"
	"github.com/kpaschalidis/anvil/pkg/models"
	"github.com/kpaschalidis/anvil/pkg/workerpool"
)

// Run executes one deep-research query end to end per §4.8's multi-round
// plan-and-refine strategy: detect report type, plan and dispatch the
// initial round, optionally continue/gap-fill/verify, curate sources,
// synthesize, and render. Round boundaries are snapshotted to dataDir
// under sessionID (§6 research session layout) so a crashed run can
// resume via ResumeFromRound; pass dataDir="" to skip persistence.
func (o *Orchestrator) Run(ctx context.Context, query, dataDir, sessionID string, emitter events.Emitter) (*Outcome, error) {
	reportType := DetectReportType(query)
	isCatalog := reportType == models.ReportCatalog

	initialPrompt := buildInitialPlanPrompt(query, o.cfg.MaxTasks, isCatalog)
	snap1, err := o.runRound(ctx, 1, "initial", func() string { return initialPrompt }, o.cfg.MinTasks, emitter)
	if snap1.State == RoundFailed {
		return nil, &DeepResearchRunError{Err: err}
	}
	o.persistRound(dataDir, sessionID, snap1, models.ResearchMemo{}, emitter)

	results := snap1.Results
	rounds := []RoundSnapshot{snap1}

	if o.cfg.EnableWorkerContinuation {
		results = o.continueIncomplete(ctx, snap1.Tasks, results)
	}

	if err := checkStrictness(o.cfg, results); err != nil {
		partial := &Outcome{WorkerResults: results}
		return nil, &DeepResearchRunError{Err: err, Partial: partial}
	}

	memo := buildMemo(query, reportType, 1, len(snap1.Tasks), 0, results)
	if isCatalog {
		memo.TargetItems = ParseTargetItems(query)
		memo.RequiredFields = ParseRequiredFields(query)
	}

	if o.cfg.EnableRound2 {
		gapPrompt := buildGapPlanPrompt(query, formatMemo(memo), o.cfg.Round2MaxTasks)
		snap2, rerr := o.runRound(ctx, 2, "round2", func() string { return gapPrompt }, 0, emitter)
		if rerr == nil {
			results = mergeResults(results, snap2.Results)
			rounds = append(rounds, snap2)
			memo = buildMemo(query, reportType, 2, memo.TasksCompleted+len(snap2.Tasks), 0, results)
			o.persistRound(dataDir, sessionID, snap2, memo, emitter)
		}
	}

	if o.cfg.VerifyMaxTasks > 0 {
		verifyPrompt := buildVerifyPlanPrompt(query, formatMemo(memo), o.cfg.VerifyMaxTasks)
		snap3, rerr := o.runRound(ctx, len(rounds)+1, "verify", func() string { return verifyPrompt }, 0, emitter)
		if rerr == nil {
			results = mergeResults(results, snap3.Results)
			rounds = append(rounds, snap3)
			memo = buildMemo(query, reportType, len(rounds), memo.TasksCompleted+len(snap3.Tasks), 0, results)
			o.persistRound(dataDir, sessionID, snap3, memo, emitter)
		}
	}

	if err := checkStrictness(o.cfg, results); err != nil {
		partial := &Outcome{WorkerResults: results, Memo: memo}
		return nil, &DeepResearchRunError{Err: err, Partial: partial}
	}

	allowed := allowedURLSet(results, o.cfg)

	synth, serr := o.synthesize(ctx, isCatalog, query, results, allowed)
	if serr != nil {
		partial := &Outcome{WorkerResults: results, Memo: memo}
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
			Rounds:     rounds,
		},
		WorkerResults: results,
		Memo:          memo,
	}, nil
}

// persistRound best-effort snapshots a round boundary to disk; a write
// failure is reported through the emitter but never aborts the run, since
// resumability is a convenience, not a correctness requirement.
func (o *Orchestrator) persistRound(dataDir, sessionID string, snap RoundSnapshot, memo models.ResearchMemo, emitter events.Emitter) {
	if dataDir == "" {
		return
	}
	if err := SaveRound(dataDir, sessionID, snap, memo); err != nil {
		emitter.Error(err.Error(), "research.persist_round")
	}
}

func (o *Orchestrator) synthesize(ctx context.Context, isCatalog bool, query string, results []models.WorkerResult, allowed map[string]bool) (SynthesisResult, error) {
	if isCatalog {
		return o.synthesizeCatalog(ctx, results, allowed, ParseTargetItems(query), ParseRequiredFields(query))
	}
	if o.cfg.MultiPassSynthesis {
		return o.synthesizeNarrativeMultiPass(ctx, results, allowed)
	}
	return o.synthesizeNarrativeSinglePass(ctx, results, allowed)
}

// continueIncomplete implements §4.8 step 4: workers that failed or came
// back with a reported insufficient result are redispatched once, carrying
// PriorURLs/PriorExtracted so they avoid repeating work, and merged back
// onto the original result set.
func (o *Orchestrator) continueIncomplete(ctx context.Context, tasks []Task, results []models.WorkerResult) []models.WorkerResult {
	byID := map[string]Task{}
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var continuation []models.WorkerTask
	for _, r := range results {
		if r.Success {
			continue
		}
		t, ok := byID[r.TaskID]
		if !ok {
			continue
		}
		priorURLs := append([]string(nil), r.Citations...)
		var priorExtracted []string
		for _, e := range r.Evidence {
			priorExtracted = append(priorExtracted, e.URL)
		}
		continuation = append(continuation, models.WorkerTask{
			TaskID:             t.ID,
			Prompt:             t.SearchQuery + "\n\n" + t.Instructions + "\n\nContinue from where the previous attempt left off; do not repeat sources already covered.",
			MaxWebSearchCalls:  o.cfg.MaxWebSearchCalls,
			MaxWebExtractCalls: o.cfg.MaxWebExtractCalls,
			MaxIterations:      o.cfg.WorkerMaxIterations,
			ExtractMaxChars:    o.cfg.DeepReadMaxChars,
			PriorURLs:          priorURLs,
			PriorExtracted:     priorExtracted,
		})
	}
	if len(continuation) == 0 {
		return results
	}

	additional := o.runner.SpawnParallel(ctx, continuation, workerpool.RunOptions{
		MaxWorkers:         o.cfg.MaxWorkers,
		MaxWebSearchCalls:  o.cfg.MaxWebSearchCalls,
		MaxWebExtractCalls: o.cfg.MaxWebExtractCalls,
		ExtractMaxChars:    o.cfg.DeepReadMaxChars,
	})
	additional = applyInvariants(additional, o.cfg.DeepRead)
	return mergeResults(results, additional)
}
