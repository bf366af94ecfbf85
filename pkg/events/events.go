// Package events implements the type-tagged event bus described in §4.1:
// a single synchronous callback, no buffering, no backpressure. Components
// that need to publish events take an Emitter by value (or nil) and call
// Emit — they never assume a particular consumer exists.
package events

// Kind tags an Event's payload type, matching the closed set in §6.
type Kind string

const (
	KindProgress             Kind = "progress"
	KindResearchPlan         Kind = "research_plan"
	KindWorkerCompleted      Kind = "worker_completed"
	KindAssistantResponseStart Kind = "assistant_response_start"
	KindAssistantDelta       Kind = "assistant_delta"
	KindAssistantMessage     Kind = "assistant_message"
	KindDocument             Kind = "document"
	KindToolCall             Kind = "tool_call"
	KindToolResult           Kind = "tool_result"
	KindError                Kind = "error"
)

// Event is an immutable, value-typed record tagged by Kind. Payload holds
// one of the structs below matching Kind.
type Event struct {
	Kind    Kind
	Payload any
}

// ProgressEvent reports coarse-grained progress for a long-running stage.
type ProgressEvent struct {
	Stage   string
	Current int
	Total   *int
	Message string
}

// ResearchPlanEvent carries the planner's task list for a round.
type ResearchPlanEvent struct {
	Tasks []PlannedTask
}

// PlannedTask is one entry of a planner response.
type PlannedTask struct {
	ID           string
	SearchQuery  string
	Instructions string
}

// WorkerCompletedEvent reports one finished worker task.
type WorkerCompletedEvent struct {
	TaskID          string
	Success         bool
	WebSearchCalls  int
	WebExtractCalls int
	Citations       int
	Domains         int
	Evidence        int
	DurationMS      *int64
	Error           string
}

// AssistantResponseStartEvent fires once per agent-loop iteration, before
// any deltas for that iteration are emitted.
type AssistantResponseStartEvent struct {
	Iteration int
}

// AssistantDeltaEvent carries one incremental text chunk during streaming.
type AssistantDeltaEvent struct {
	Text string
}

// AssistantMessageEvent carries a completed assistant text message.
type AssistantMessageEvent struct {
	Content string
}

// DocumentEvent reports a persisted Document.
type DocumentEvent struct {
	DocID  string
	Title  string
	Source string
}

// ToolCallEvent reports a dispatched tool call.
type ToolCallEvent struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResultEvent reports the result of a dispatched tool call.
type ToolResultEvent struct {
	ID     string
	Name   string
	Result any
}

// ErrorEvent reports a recoverable or fatal error to stream consumers.
type ErrorEvent struct {
	Message string
	Source  string
}

// Callback receives one Event at a time, synchronously, on the caller's
// goroutine. It must not block indefinitely — the emitting component makes
// no concurrency guarantees beyond "delivered on the same thread that
// produced it" (§5).
type Callback func(Event)

// Emitter delivers events to an optional Callback. The zero value is a
// valid "no consumer" emitter: Emit is then a no-op, matching §4.1's
// "otherwise discards" contract.
type Emitter struct {
	cb Callback
}

// New creates an Emitter wrapping cb. cb may be nil.
func New(cb Callback) Emitter { return Emitter{cb: cb} }

// Emit synchronously invokes the callback if set. No error is returned:
// per §4.1, the bus never swallows callback errors because it never calls
// anything that can fail — panics from a misbehaving callback propagate to
// the caller of Emit, which is intentional (the caller owns their thread).
func (e Emitter) Emit(kind Kind, payload any) {
	if e.cb == nil {
		return
	}
	e.cb(Event{Kind: kind, Payload: payload})
}

// Progress is a convenience wrapper for the common progress-report case.
func (e Emitter) Progress(stage string, current int, total *int, message string) {
	e.Emit(KindProgress, ProgressEvent{Stage: stage, Current: current, Total: total, Message: message})
}

// Error is a convenience wrapper for reporting a recoverable error.
func (e Emitter) Error(message, source string) {
	e.Emit(KindError, ErrorEvent{Message: message, Source: source})
}
