// Package errs defines the error taxonomy shared by the research and
// ingestion subsystems (§7). Each kind wraps an underlying cause and
// carries a Stage label so callers building diagnostics blocks don't need
// to re-derive where in the pipeline a failure occurred.
package errs

import "fmt"

// Kind identifies one of the closed-set error categories from §7.
type Kind string

const (
	KindPlanning        Kind = "planning"
	KindSynthesis       Kind = "synthesis"
	KindWorkerFailure   Kind = "worker_failure"
	KindToolExecution   Kind = "tool_execution"
	KindStorage         Kind = "storage"
	KindSource          Kind = "source"
	KindConfig          Kind = "config"
)

// Error is the common shape for every taxonomy member.
type Error struct {
	Kind  Kind
	Stage string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Stage, e.detail())
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.detail())
}

func (e *Error) detail() string {
	if e.Err != nil {
		if e.Msg != "" {
			return fmt.Sprintf("%s: %v", e.Msg, e.Err)
		}
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, stage, msg string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Msg: msg, Err: cause}
}

// Planning reports an empty/invalid planner output or validation failure.
func Planning(stage, msg string, cause error) *Error { return newErr(KindPlanning, stage, msg, cause) }

// Synthesis reports invalid JSON, grounding, or coverage violations.
func Synthesis(stage, msg string, cause error) *Error {
	return newErr(KindSynthesis, stage, msg, cause)
}

// WorkerFailure reports a transport/tool exception or invariant failure
// during a worker run.
func WorkerFailure(stage, msg string, cause error) *Error {
	return newErr(KindWorkerFailure, stage, msg, cause)
}

// ToolExecution reports an exception raised inside a tool implementation.
func ToolExecution(stage, msg string, cause error) *Error {
	return newErr(KindToolExecution, stage, msg, cause)
}

// Storage reports relational-store or JSONL-append failures.
func Storage(stage, msg string, cause error) *Error { return newErr(KindStorage, stage, msg, cause) }

// Source reports a failure raised by a Source implementation.
func Source(stage, msg string, cause error) *Error { return newErr(KindSource, stage, msg, cause) }

// Config reports invalid configuration, raised only at validation time.
func Config(stage, msg string, cause error) *Error { return newErr(KindConfig, stage, msg, cause) }

// Is supports errors.Is(err, &errs.Error{Kind: errs.KindX}) checks: a target
// *Error with no Msg and no Err matches any *Error of the same Kind, since
// Kind itself isn't an error. Prefer errors.As(&errs.Error{})
// and inspecting .Kind for real classification; this helper exists for the
// common "is this any Synthesis error" check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Msg != "" || t.Err != nil {
		return false
	}
	return e.Kind == t.Kind
}
