// Package agent implements the tool-calling agent loop (§4.5) and the
// nested sub-agent runner (§4.6), grounded on the teacher's
// pkg/agent/orchestrator loop shape: a bounded iteration count, a mutable
// message history, and a Hooks struct standing in for the teacher's
// callback-based progress reporting.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kpaschalidis/anvil/pkg/events"
	"github.com/kpaschalidis/anvil/pkg/llm"
	"github.com/kpaschalidis/anvil/pkg/toolregistry"
)

// Config configures one agent-loop run (§4.5).
type Config struct {
	Model         string
	SystemPrompt  string
	MaxIterations int
	Temperature   float64
	MaxTokens     int
	Stream        bool
	UseTools      bool
}

// Result is the loop's output.
type Result struct {
	Iterations    int
	FinalResponse string
}

// Hooks lets callers observe loop progress without coupling the loop to any
// particular event-emission policy. Any nil hook is skipped.
type Hooks struct {
	OnResponseStart     func(iteration int)
	OnAssistantDelta    func(content string)
	OnToolCall          func(call llm.ToolCall)
	OnToolResult        func(call llm.ToolCall, result toolregistry.Result)
	OnTurnEnd           func(iteration int)
}

// Executor dispatches one tool call and returns its result. pkg/toolregistry
// satisfies this via (*Registry).Execute.
type Executor func(ctx context.Context, name string, args map[string]any) toolregistry.Result

// Run executes the bounded tool-calling loop of §4.5. messages is mutated
// in place (assistant and tool-role turns are appended); the Result carries
// only the iteration count and the final response text.
func Run(ctx context.Context, completion llm.Completion, messages *[]llm.Message, tools []llm.ToolSchema, exec Executor, cfg Config, hooks Hooks) (Result, error) {
	if hooks.OnResponseStart == nil {
		hooks.OnResponseStart = func(int) {}
	}
	if hooks.OnAssistantDelta == nil {
		hooks.OnAssistantDelta = func(string) {}
	}
	if hooks.OnToolCall == nil {
		hooks.OnToolCall = func(llm.ToolCall) {}
	}
	if hooks.OnToolResult == nil {
		hooks.OnToolResult = func(llm.ToolCall, toolregistry.Result) {}
	}
	if hooks.OnTurnEnd == nil {
		hooks.OnTurnEnd = func(int) {}
	}

	reqTools := tools
	if !cfg.UseTools {
		reqTools = nil
	}

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		turnMessages := withSystemPrompt(*messages, cfg.SystemPrompt)

		req := llm.Request{
			Model:       cfg.Model,
			Messages:    turnMessages,
			Tools:       reqTools,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Stream:      cfg.Stream,
		}

		var resp *llm.Response
		var err error
		if cfg.Stream {
			resp, err = runStreamed(ctx, completion, req, iter, hooks)
		} else {
			resp, err = completion.Complete(ctx, req)
		}
		if err != nil {
			return Result{Iterations: iter}, fmt.Errorf("agent loop iteration %d: %w", iter, err)
		}

		resp.ToolCalls = ensureToolCallIDs(resp.ToolCalls)

		if len(resp.ToolCalls) > 0 {
			*messages = append(*messages, llm.Message{
				Role:      llm.RoleAssistant,
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})

			for _, call := range resp.ToolCalls {
				hooks.OnToolCall(call)
				args := map[string]any{}
				_ = json.Unmarshal([]byte(call.Arguments), &args)

				result := exec(ctx, call.Name, args)
				hooks.OnToolResult(call, result)

				resultJSON, _ := json.Marshal(result)
				*messages = append(*messages, llm.Message{
					Role:       llm.RoleTool,
					Content:    string(resultJSON),
					ToolCallID: call.ID,
				})
			}
			hooks.OnTurnEnd(iter)
			continue
		}

		if resp.Content != "" {
			*messages = append(*messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
			hooks.OnTurnEnd(iter)
			return Result{Iterations: iter + 1, FinalResponse: resp.Content}, nil
		}

		hooks.OnTurnEnd(iter)
		return Result{Iterations: iter + 1, FinalResponse: ""}, nil
	}

	return Result{Iterations: cfg.MaxIterations, FinalResponse: ""}, nil
}

func runStreamed(ctx context.Context, completion llm.Completion, req llm.Request, iteration int, hooks Hooks) (*llm.Response, error) {
	hooks.OnResponseStart(iteration)

	deltas, err := completion.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &llm.Response{}
	var toolDeltas []llm.ToolCallDelta
	for d := range deltas {
		if d.Content != "" {
			resp.Content += d.Content
			hooks.OnAssistantDelta(d.Content)
		}
		toolDeltas = append(toolDeltas, d.ToolCallDeltas...)
	}
	resp.ToolCalls = llm.ReassembleToolCalls(toolDeltas)
	return resp, nil
}

func withSystemPrompt(messages []llm.Message, systemPrompt string) []llm.Message {
	if systemPrompt == "" {
		return messages
	}
	out := make([]llm.Message, 0, len(messages)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	out = append(out, messages...)
	return out
}

// ensureToolCallIDs assigns a synthetic "call_<index>" ID to any tool call
// whose provider-issued ID is empty, so downstream tool-role messages always
// have a stable ToolCallID to key on (§4.5 invariant: tool-call IDs survive
// round-trip).
func ensureToolCallIDs(calls []llm.ToolCall) []llm.ToolCall {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = fmt.Sprintf("call_%d", i)
		}
	}
	return calls
}

// EmitHooks adapts Hooks onto an events.Emitter, matching the event-kind
// names of §4.1/§4.5 (AssistantDelta, ToolCall, ToolResult).
func EmitHooks(emitter events.Emitter) Hooks {
	return Hooks{
		OnResponseStart: func(iteration int) {
			emitter.Emit(events.KindAssistantResponseStart, events.AssistantResponseStartEvent{Iteration: iteration})
		},
		OnAssistantDelta: func(content string) {
			emitter.Emit(events.KindAssistantDelta, events.AssistantDeltaEvent{Text: content})
		},
		OnToolCall: func(call llm.ToolCall) {
			args := map[string]any{}
			_ = json.Unmarshal([]byte(call.Arguments), &args)
			emitter.Emit(events.KindToolCall, events.ToolCallEvent{
				ID: call.ID, Name: call.Name, Args: args,
			})
		},
		OnToolResult: func(call llm.ToolCall, result toolregistry.Result) {
			emitter.Emit(events.KindToolResult, events.ToolResultEvent{
				ID: call.ID, Name: call.Name, Result: result,
			})
		},
	}
}
