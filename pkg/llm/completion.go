// Package llm defines the stateless LLM Completion port of §4.4/§6 and its
// streaming delta-reassembly rule, plus two concrete adapters (Anthropic,
// OpenAI-compatible) grounded on basegraphhq/relay's common/llm package and
// goadesign/goa-ai's provider wiring. Everything above this file (pkg/agent,
// pkg/research, pkg/ingestion) depends only on the Completion interface —
// the concrete adapters are additive, not required.
package llm

import "context"

// Role values for Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is an LLM's request to invoke a tool.
type ToolCall struct {
	ID        string // may be empty for some providers; pkg/agent's loop fills in synthetic IDs (ensureToolCallIDs)
	Name      string
	Arguments string // JSON-serialized
}

// Message is one turn of a conversation.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // set on assistant messages that called tools
	ToolCallID string     // set on tool-role messages
}

// ToolSchema is the minimal shape an adapter needs to describe a callable
// tool to the provider; pkg/toolregistry.Schema satisfies this by name.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolChoice constrains whether/which tool the model must call.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// Request is a single completion request (§4.4).
type Request struct {
	Model       string
	Messages    []Message
	Tools       []ToolSchema
	ToolChoice  ToolChoice
	Temperature float64
	MaxTokens   int
	Stream      bool
}

// Response is the non-streaming result: a completed message with an
// optional tool-call list.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolCallDelta is a partial, indexed tool-call fragment from a streamed
// response. Index identifies which tool call (by position) this fragment
// belongs to; Name/ArgumentsChunk are appended incrementally.
type ToolCallDelta struct {
	Index           int
	ID              string
	NameChunk       string
	ArgumentsChunk  string
}

// Delta is one streamed increment: a text chunk and/or partial tool calls.
type Delta struct {
	Content        string
	ToolCallDeltas []ToolCallDelta
}

// Completion is the stateless request interface every provider adapter
// implements (§4.4, §6).
type Completion interface {
	// Complete performs a non-streaming request.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream performs a streaming request. The returned channel is closed
	// when the stream ends; an error mid-stream is returned out-of-band via
	// the accompanying error return of the *initiating* call only when the
	// stream could not be started at all. Callers should treat channel
	// closure without a terminal Response assembly as "stream ended".
	Stream(ctx context.Context, req Request) (<-chan Delta, error)
}

// ReassembleToolCalls deterministically folds a sequence of streamed
// ToolCallDeltas into the same []ToolCall shape Complete would have
// returned for the same underlying model response (§4.5 streaming variant,
// §8 round-trip law). Deltas are applied in channel-receive order; Index
// selects the accumulating slot, growing the slice as needed.
func ReassembleToolCalls(deltas []ToolCallDelta) []ToolCall {
	var calls []ToolCall
	for _, d := range deltas {
		for len(calls) <= d.Index {
			calls = append(calls, ToolCall{})
		}
		if d.ID != "" {
			calls[d.Index].ID = d.ID
		}
		calls[d.Index].Name += d.NameChunk
		calls[d.Index].Arguments += d.ArgumentsChunk
	}
	return calls
}
