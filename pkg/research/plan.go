package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/kpaschalidis/anvil/pkg/errs"
	"github.com/kpaschalidis/anvil/pkg/events"
	"github.com/kpaschalidis/anvil/pkg/llm"
)

// Task is one planned unit of research work (§4.8 step 2).
type Task struct {
	ID           string `json:"id"`
	SearchQuery  string `json:"search_query"`
	Instructions string `json:"instructions"`
}

type rawPlan struct {
	Tasks []rawTask `json:"tasks"`
}

type rawTask struct {
	ID           string `json:"id"`
	SearchQuery  string `json:"search_query"`
	Instructions string `json:"instructions"`
}

// fallbackPlan is the deterministic {overview, comparison, recent} plan
// used under best_effort when the LLM planner fails to meet min_tasks
// (§4.8 step 2).
func fallbackPlan(query string) []Task {
	return []Task{
		{ID: "overview", SearchQuery: query, Instructions: "Provide a broad overview of " + query + "."},
		{ID: "comparison", SearchQuery: query + " alternatives comparison", Instructions: "Compare " + query + " against its main alternatives."},
		{ID: "recent", SearchQuery: query + " 2025", Instructions: "Find the most recent developments about " + query + "."},
	}
}

// validateTasks implements §4.8 step 2's plan validation: a task missing
// search_query or instructions is dropped; id defaults to task_<idx>.
func validateTasks(raw []rawTask) []Task {
	out := make([]Task, 0, len(raw))
	for i, rt := range raw {
		if strings.TrimSpace(rt.SearchQuery) == "" || strings.TrimSpace(rt.Instructions) == "" {
			continue
		}
		id := rt.ID
		if strings.TrimSpace(id) == "" {
			id = fmt.Sprintf("task_%d", i)
		}
		out = append(out, Task{ID: id, SearchQuery: rt.SearchQuery, Instructions: rt.Instructions})
	}
	return out
}

// requestPlan asks the LLM for a task list and validates it, falling back
// to the deterministic plan under best_effort (§4.8 step 2). minTasks=3 for
// the initial plan, 0 for follow-up rounds (round2/verify callers pass
// their own minimum, typically 0).
func (o *Orchestrator) requestPlan(ctx context.Context, prompt string, minTasks int, emitter events.Emitter) ([]Task, error) {
	resp, err := completeWithRetry(ctx, o.completion, llm.Request{
		Model:       o.cfg.Model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: 0.0,
		MaxTokens:   2048,
	})
	if err != nil {
		if o.cfg.BestEffort {
			return fallbackPlan(prompt), nil
		}
		return nil, errs.Planning("plan", "planner completion failed", err)
	}

	parsed, perr := parseJSONRepair[rawPlan](resp.Content)
	var tasks []Task
	if perr == nil {
		tasks = validateTasks(parsed.Tasks)
	}

	if len(tasks) < minTasks {
		if o.cfg.BestEffort {
			tasks = fallbackPlan(prompt)
		} else {
			return nil, errs.Planning("plan", fmt.Sprintf("plan yielded %d tasks, need >= %d", len(tasks), minTasks), nil)
		}
	}

	emitter.Emit(events.KindResearchPlan, events.ResearchPlanEvent{Tasks: toPlannedTasks(tasks)})
	return tasks, nil
}

func toPlannedTasks(tasks []Task) []events.PlannedTask {
	out := make([]events.PlannedTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, events.PlannedTask{ID: t.ID, SearchQuery: t.SearchQuery, Instructions: t.Instructions})
	}
	return out
}

func buildInitialPlanPrompt(query string, maxTasks int, isCatalog bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research query: %s\n\n", query)
	fmt.Fprintf(&b, "Propose between 3 and %d research tasks as a JSON object: "+
		`{"tasks": [{"id": "...", "search_query": "...", "instructions": "..."}]}`+"\n", maxTasks)
	if isCatalog {
		b.WriteString("This is a catalog-style query: tasks should each discover distinct candidate items.\n")
	}
	b.WriteString("Return raw JSON only, no commentary, no code fence.")
	return b.String()
}

func buildGapPlanPrompt(query string, memo string, maxTasks int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research query: %s\n\nFindings so far:\n%s\n\n", query, memo)
	fmt.Fprintf(&b, "Propose up to %d follow-up research tasks to fill remaining gaps, same JSON shape as before. Return raw JSON only.", maxTasks)
	return b.String()
}

func buildVerifyPlanPrompt(query string, memo string, maxTasks int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research query: %s\n\nFindings so far:\n%s\n\n", query, memo)
	fmt.Fprintf(&b, "Propose up to %d verification tasks that seek corroboration or contradiction of the findings above, same JSON shape. Return raw JSON only.", maxTasks)
	return b.String()
}
