// Package source defines the Source capability contract (§6) that the
// ingestion scheduler (§4.9) drives, plus a deterministic in-memory fake
// implementation used in tests and as a template for real adapters. Grounded
// on the teacher's pkg/mcp server-interface shape: a small named-capability
// interface plus a registry of concrete implementations keyed by name.
package source

import (
	"context"

	"github.com/kpaschalidis/anvil/pkg/models"
)

// DeepComments controls how aggressively Fetch should expand a discussion
// thread's nested replies.
type DeepComments string

const (
	DeepCommentsAuto   DeepComments = "auto"
	DeepCommentsAlways DeepComments = "always"
	DeepCommentsNever  DeepComments = "never"
)

// Source is the capability contract of §6. Implementations must be
// thread-safe for concurrent Search/Fetch calls across tasks; per-source
// rate limiting and retries are the implementation's responsibility (the
// scheduler only enforces the circuit breaker around call outcomes).
type Source interface {
	Name() string
	AdaptQueries(ctx context.Context, queries []string, topic string) ([]models.SearchTask, error)
	Discover(ctx context.Context, topic string, limit int) ([]string, error)
	Search(ctx context.Context, task models.SearchTask) (models.Page[models.DocumentRef], error)
	Fetch(ctx context.Context, ref models.DocumentRef, deepComments DeepComments) (models.Document, error)
}

// Registry maps source names to implementations, the way the teacher's MCP
// server registry maps tool names to servers.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds a Registry from a list of sources, keyed by Name().
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(sources))}
	for _, s := range sources {
		r.sources[s.Name()] = s
	}
	return r
}

// Get looks up a source by name.
func (r *Registry) Get(name string) (Source, bool) {
	s, ok := r.sources[name]
	return s, ok
}

// All returns every registered source, in no particular order.
func (r *Registry) All() []Source {
	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	return out
}

// Names returns every registered source name.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.sources))
	for name := range r.sources {
		out = append(out, name)
	}
	return out
}
