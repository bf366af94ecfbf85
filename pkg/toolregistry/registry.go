// Package toolregistry implements the named, schema-described, synchronously
// callable tool registry of §4.2, grounded on the teacher's MCP router/
// executor pattern (pkg/mcp/router.go, pkg/mcp/executor.go) but generalized
// away from the Model Context Protocol transport: here a "tool" is just a
// Go function registered under a name with a JSON-Schema parameter
// description, not a remote MCP server call.
package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema describes one tool's calling convention to an LLM (§6 "Tool
// schema"): a JSON-Schema-like object type with per-field descriptions.
type Schema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON-Schema document
}

// Impl is a tool's implementation. It receives the keyword-argument map
// decoded from the model's tool-call arguments and returns a result value
// (marshaled to JSON for the tool-result message) or an error.
type Impl func(ctx context.Context, args map[string]any) (any, error)

// Result is the outcome of Execute, matching §4.2's contract: execute never
// raises, it always returns a Result.
type Result struct {
	Success bool `json:"success"`
	Result  any  `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

type entry struct {
	schema   Schema
	impl     Impl
	compiled *jsonschema.Schema // nil if Parameters didn't compile (ignored, not fatal)
}

// Registry is a name -> (schema, implementation) map. It is effectively
// immutable during a run: concurrent Execute calls are safe; Register
// should only be called between runs (§5 "Shared-resource policy").
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds or overwrites a tool by name (§4.2). If params is a valid
// JSON-Schema document it is compiled eagerly so Execute can validate
// arguments before dispatch; an invalid schema is kept uncompiled (argument
// validation is then skipped for that tool, but registration still
// succeeds — a malformed schema shouldn't prevent the tool from working).
func (r *Registry) Register(name, description string, parameters map[string]any, impl Impl) {
	e := &entry{schema: Schema{Name: name, Description: description, Parameters: parameters}, impl: impl}
	if compiled, err := compileSchema(parameters); err == nil {
		e.compiled = compiled
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = e
}

func compileSchema(parameters map[string]any) (*jsonschema.Schema, error) {
	if len(parameters) == 0 {
		return nil, fmt.Errorf("empty schema")
	}
	raw, err := json.Marshal(parameters)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytesReader(raw))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("mem://tool-schema.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("mem://tool-schema.json")
}

// Schemas returns the schema list used by the LLM (§4.2).
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schema, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.schema)
	}
	return out
}

// Execute invokes the named tool's implementation with arguments. It never
// panics out to the caller: exceptions (recovered panics) and missing-tool
// lookups are both converted into a failed Result (§4.2).
func (r *Registry) Execute(ctx context.Context, name string, arguments map[string]any) (result Result) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return Result{Success: false, Error: "not found"}
	}

	if e.compiled != nil {
		if err := e.compiled.Validate(arguments); err != nil {
			return Result{Success: false, Error: fmt.Sprintf("invalid arguments: %v", err)}
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = Result{Success: false, Error: fmt.Sprintf("panic: %v", rec)}
		}
	}()

	val, err := e.impl(ctx, arguments)
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, Result: val}
}
