// Package workerpool implements the Parallel Worker Runner of §4.7:
// bounded fan-out of WorkerTasks onto nested sub-agents, with deterministic
// evidence top-up and an overall wall-clock timeout. Grounded on the
// teacher's queue-worker pattern (pkg/queue) but rebuilt on
// golang.org/x/sync/errgroup.Group with SetLimit — the idiomatic Go
// equivalent of the teacher's fixed-size polling worker pool, without the
// Postgres-backed job table it relied on.
package workerpool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kpaschalidis/anvil/pkg/agent"
	"github.com/kpaschalidis/anvil/pkg/llm"
	"github.com/kpaschalidis/anvil/pkg/models"
	"github.com/kpaschalidis/anvil/pkg/toolregistry"
)

// ReadOnlyToolSet is the tool allowlist enforced when allow_writes=false
// (§4.7).
var ReadOnlyToolSet = []string{"read", "grep", "list", "web_search", "web_extract"}

// RunOptions configures one spawn_parallel call (§4.7).
type RunOptions struct {
	MaxWorkers         int
	Timeout            time.Duration
	AllowWrites        bool
	MaxWebSearchCalls  int
	MaxWebExtractCalls int
	ExtractMaxChars    int
	OnResult           func(models.WorkerTask, models.WorkerResult)
}

// Runner dispatches WorkerTasks onto nested sub-agent runs.
type Runner struct {
	completion llm.Completion
	registry   *toolregistry.Registry
}

// New builds a Runner over a completion port and tool registry shared by
// all workers.
func New(completion llm.Completion, registry *toolregistry.Registry) *Runner {
	return &Runner{completion: completion, registry: registry}
}

// SpawnParallel fans tasks out onto a bounded worker pool and blocks until
// every task has returned (§4.7). When opts.Timeout elapses the shared
// context is cancelled and the call waits for in-flight sub-agents to return;
// each task that has not succeeded by then is reported as a failed
// WorkerResult with error "Overall timeout", so the caller always receives
// exactly one WorkerResult per task.
func (r *Runner) SpawnParallel(ctx context.Context, tasks []models.WorkerTask, opts RunOptions) []models.WorkerResult {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results := make([]models.WorkerResult, len(tasks))
	done := make([]bool, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	if opts.MaxWorkers > 0 {
		g.SetLimit(opts.MaxWorkers)
	}

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			res := r.runOne(gctx, task, opts)
			if !res.Success && ctx.Err() == context.DeadlineExceeded {
				res = models.WorkerResult{TaskID: task.TaskID, Success: false, Error: "Overall timeout", Duration: res.Duration}
			}
			results[i] = res
			done[i] = true
			if opts.OnResult != nil {
				opts.OnResult(task, res)
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, task := range tasks {
		if !done[i] {
			res := models.WorkerResult{TaskID: task.TaskID, Success: false, Error: "Overall timeout"}
			results[i] = res
			if opts.OnResult != nil {
				opts.OnResult(task, res)
			}
		}
	}
	return results
}

func allowlistFor(opts RunOptions) []string {
	if !opts.AllowWrites {
		return ReadOnlyToolSet
	}
	all := make([]string, 0)
	all = append(all, ReadOnlyToolSet...)
	all = append(all, "write", "edit")
	return all
}

func (r *Runner) runOne(ctx context.Context, task models.WorkerTask, opts RunOptions) (result models.WorkerResult) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = models.WorkerResult{TaskID: task.TaskID, Success: false, Error: fmt.Sprintf("panic: %v", rec), Duration: time.Since(start)}
		}
	}()

	maxSearch := opts.MaxWebSearchCalls
	if task.MaxWebSearchCalls > 0 {
		maxSearch = task.MaxWebSearchCalls
	}
	maxIter := task.MaxIterations
	if maxIter == 0 {
		maxIter = 20
	}

	output, trace, iterations, err := agent.RunSubAgent(ctx, r.completion, r.registry, agent.SubAgentConfig{
		TaskPrompt:        task.Prompt,
		NamedAgentBody:    task.AgentLabel,
		ToolAllowlist:     allowlistFor(opts),
		MaxWebSearchCalls: maxSearch,
		MaxIterations:     maxIter,
	})
	if err != nil {
		return models.WorkerResult{TaskID: task.TaskID, Success: false, Error: err.Error(), Duration: time.Since(start)}
	}

	maxExtract := opts.MaxWebExtractCalls
	if task.MaxWebExtractCalls > 0 {
		maxExtract = task.MaxWebExtractCalls
	}
	extractMaxChars := opts.ExtractMaxChars
	if task.ExtractMaxChars > 0 {
		extractMaxChars = task.ExtractMaxChars
	}

	evidence := buildEvidence(trace)
	if trace.WebExtractCalls == 0 && maxExtract > 0 {
		evidence = topUpEvidence(ctx, r.registry, trace, maxExtract, extractMaxChars)
	}

	res := models.WorkerResult{
		TaskID:          task.TaskID,
		Output:          output,
		Citations:       trace.Citations,
		Sources:         trace.Sources,
		WebSearchTrace:  filterTrace(trace.Calls, "web_search"),
		WebExtractTrace: filterTrace(trace.Calls, "web_extract"),
		Evidence:        evidence,
		WebSearchCalls:  trace.WebSearchCalls,
		WebExtractCalls: trace.WebExtractCalls,
		Iterations:      iterations,
		Duration:        time.Since(start),
		Success:         true,
	}
	return res
}

func filterTrace(calls []models.ToolCallRecord, name string) []models.ToolCallRecord {
	var out []models.ToolCallRecord
	for _, c := range calls {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

func buildEvidence(trace *agent.SubAgentTrace) []models.Evidence {
	var out []models.Evidence
	for url, raw := range trace.Extracted {
		out = append(out, evidenceFrom(url, trace.Sources[url].Title, raw))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

func evidenceFrom(url, title, raw string) models.Evidence {
	const excerptLen = 1500
	truncated := len(raw) > excerptLen
	excerpt := raw
	if truncated {
		excerpt = raw[:excerptLen]
	}
	sum := sha256.Sum256([]byte(raw))
	return models.Evidence{
		URL:       url,
		Title:     title,
		Excerpt:   excerpt,
		RawLen:    len(raw),
		SHA256:    hex.EncodeToString(sum[:]),
		Truncated: truncated,
	}
}

// topUpEvidence implements §4.7's deterministic evidence top-up: when the
// model never called web_extract but a budget remained, select up to budget
// URLs from the search trace (preferring URLs with title/snippet metadata,
// deduplicated by URL and by domain) and extract them directly through the
// tool registry.
func topUpEvidence(ctx context.Context, registry *toolregistry.Registry, trace *agent.SubAgentTrace, budget, maxChars int) []models.Evidence {
	type candidate struct {
		url    string
		domain string
		hasMD  bool
		rank   int
	}
	var candidates []candidate
	for _, url := range trace.Citations {
		meta, hasMeta := trace.Sources[url]
		candidates = append(candidates, candidate{
			url: url, domain: models.DomainOf(url), hasMD: hasMeta && (meta.Title != "" || meta.Snippet != ""), rank: meta.Rank,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].hasMD != candidates[j].hasMD {
			return candidates[i].hasMD
		}
		return candidates[i].rank < candidates[j].rank
	})

	seenDomain := map[string]bool{}
	var picked []candidate
	for _, c := range candidates {
		if len(picked) >= budget {
			break
		}
		if seenDomain[c.domain] {
			continue
		}
		seenDomain[c.domain] = true
		picked = append(picked, c)
	}

	var out []models.Evidence
	for _, c := range picked {
		args := map[string]any{"url": c.url}
		if maxChars > 0 {
			args["max_chars"] = maxChars
		}
		res := registry.Execute(ctx, "web_extract", args)
		trace.Calls = append(trace.Calls, models.ToolCallRecord{
			Name: "web_extract", Arguments: args, Success: res.Success, Result: res.Result, Error: res.Error,
		})
		if !res.Success {
			continue
		}
		m, ok := res.Result.(map[string]any)
		if !ok {
			continue
		}
		content, _ := m["raw_content"].(string)
		out = append(out, evidenceFrom(c.url, trace.Sources[c.url].Title, content))
	}
	return out
}
