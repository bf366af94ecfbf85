package agent

import (
	"context"
	"strings"

	"github.com/kpaschalidis/anvil/pkg/llm"
	"github.com/kpaschalidis/anvil/pkg/models"
	"github.com/kpaschalidis/anvil/pkg/toolregistry"
)

// ExhaustedResponseSentinel is returned as FinalResponse when the iteration
// budget is exhausted without a final text response, so callers can fail
// gracefully instead of treating an empty string as a real (empty) answer.
const ExhaustedResponseSentinel = "[no final response: iteration budget exhausted]"

// SubAgentConfig configures one nested sub-agent run (§4.6).
type SubAgentConfig struct {
	Model              string
	TaskPrompt         string
	ExploreInstructions string
	NamedAgentBody     string // optional body appended when the agent has a named persona
	ToolAllowlist      []string
	MaxWebSearchCalls  int
	MaxIterations      int
	Temperature        float64
	MaxTokens          int
	Stream             bool
}

// SubAgentTrace accumulates what the nested loop observed, independent of
// the final result (§4.6).
type SubAgentTrace struct {
	Calls           []models.ToolCallRecord
	WebSearchCalls  int
	WebExtractCalls int
	Citations       []string
	citationSet     map[string]bool
	Sources         map[string]models.SourceMetadata
	Extracted       map[string]string // URL -> extracted raw content, for evidence building
}

func newTrace() *SubAgentTrace {
	return &SubAgentTrace{
		citationSet: make(map[string]bool),
		Sources:     make(map[string]models.SourceMetadata),
		Extracted:   make(map[string]string),
	}
}

func (t *SubAgentTrace) addCitation(url string) {
	if t.citationSet[url] {
		return
	}
	t.citationSet[url] = true
	t.Citations = append(t.Citations, url)
}

// RunSubAgent runs one nested tool-calling agent loop constrained to an
// allowlisted tool subset with per-call caps (§4.6). registry is the full
// tool registry; only schemas named in cfg.ToolAllowlist are exposed to the
// model, and any call to a non-allowlisted or over-budget tool short
// circuits with a synthetic failure result rather than reaching the
// implementation.
func RunSubAgent(ctx context.Context, completion llm.Completion, registry *toolregistry.Registry, cfg SubAgentConfig) (string, *SubAgentTrace, int, error) {
	trace := newTrace()
	allowed := make(map[string]bool, len(cfg.ToolAllowlist))
	for _, name := range cfg.ToolAllowlist {
		allowed[name] = true
	}

	var allowedSchemas []llm.ToolSchema
	for _, s := range registry.Schemas() {
		if allowed[s.Name] {
			allowedSchemas = append(allowedSchemas, llm.ToolSchema{
				Name: s.Name, Description: s.Description, Parameters: s.Parameters,
			})
		}
	}

	systemPrompt := composeSystemPrompt(cfg)
	messages := []llm.Message{{Role: llm.RoleUser, Content: cfg.TaskPrompt}}

	exec := func(ctx context.Context, name string, args map[string]any) toolregistry.Result {
		if !allowed[name] {
			rec := models.ToolCallRecord{Name: name, Arguments: args, Success: false, Error: "tool not allowlisted for this agent"}
			trace.Calls = append(trace.Calls, rec)
			return toolregistry.Result{Success: false, Error: rec.Error}
		}

		if name == "web_search" {
			if cfg.MaxWebSearchCalls > 0 && trace.WebSearchCalls >= cfg.MaxWebSearchCalls {
				rec := models.ToolCallRecord{Name: name, Arguments: args, Success: false, Error: "max_web_search_calls reached"}
				trace.Calls = append(trace.Calls, rec)
				return toolregistry.Result{Success: false, Error: rec.Error}
			}
			trace.WebSearchCalls++
		}
		if name == "web_extract" {
			trace.WebExtractCalls++
		}

		result := registry.Execute(ctx, name, args)
		trace.Calls = append(trace.Calls, models.ToolCallRecord{
			Name: name, Arguments: args, Success: result.Success, Result: result.Result, Error: result.Error,
		})

		if name == "web_search" && result.Success {
			recordWebSearchMetadata(trace, result.Result)
		}
		if name == "web_extract" && result.Success {
			recordExtraction(trace, args, result.Result)
		}

		return result
	}

	loopCfg := Config{
		Model:         cfg.Model,
		SystemPrompt:  systemPrompt,
		MaxIterations: cfg.MaxIterations,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		Stream:        cfg.Stream,
		UseTools:      len(allowedSchemas) > 0,
	}

	res, err := Run(ctx, completion, &messages, allowedSchemas, exec, loopCfg, Hooks{})
	if err != nil {
		return "", trace, res.Iterations, err
	}
	if res.FinalResponse == "" {
		return ExhaustedResponseSentinel, trace, res.Iterations, nil
	}
	return res.FinalResponse, trace, res.Iterations, nil
}

func composeSystemPrompt(cfg SubAgentConfig) string {
	var b strings.Builder
	b.WriteString(cfg.TaskPrompt)
	if cfg.ExploreInstructions != "" {
		b.WriteString("\n\n")
		b.WriteString(cfg.ExploreInstructions)
	}
	if cfg.NamedAgentBody != "" {
		b.WriteString("\n\n")
		b.WriteString(cfg.NamedAgentBody)
	}
	return b.String()
}

// recordWebSearchMetadata extracts every http(s) URL from a web_search
// result's results list and records title/snippet metadata, per §4.6: "On
// web_search success, adds all http… URLs from result.result.results to
// citations and records title/snippet metadata."
func recordWebSearchMetadata(trace *SubAgentTrace, raw any) {
	m, ok := raw.(map[string]any)
	if !ok {
		return
	}
	results, ok := m["results"].([]any)
	if !ok {
		return
	}
	for rank, item := range results {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		url, _ := entry["url"].(string)
		if !strings.HasPrefix(url, "http") {
			continue
		}
		trace.addCitation(url)
		meta := models.SourceMetadata{Rank: rank + 1}
		if title, ok := entry["title"].(string); ok {
			meta.Title = title
		}
		if snippet, ok := entry["snippet"].(string); ok {
			meta.Snippet = snippet
		}
		if score, ok := entry["score"].(float64); ok {
			meta.Score = score
		}
		trace.Sources[url] = meta
	}
}

func recordExtraction(trace *SubAgentTrace, args map[string]any, raw any) {
	url, _ := args["url"].(string)
	if url == "" {
		return
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return
	}
	if content, ok := m["raw_content"].(string); ok {
		trace.Extracted[url] = content
	}
	trace.addCitation(url)
}
