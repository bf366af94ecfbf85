package source

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kpaschalidis/anvil/pkg/models"
)

// FakeDocument seeds a FakeSource's in-memory corpus.
type FakeDocument struct {
	URL          string
	Title        string
	RawText      string
	SourceEntity string
	Score        float64
}

// FakeSource is a deterministic, thread-safe in-memory Source used for
// tests and as the reference adapter shape for real per-site sources
// (supplemented feature: the original per-source adapters in
// original_source/scout/sources/* each implement this same five-method
// contract against a real API; FakeSource implements it against a
// preloaded slice instead, matching the teacher's style of shipping an
// in-memory fake alongside its database-backed implementations for tests).
type FakeSource struct {
	name string

	mu    sync.Mutex
	docs  []FakeDocument
	calls int
}

// NewFakeSource builds a FakeSource named name, preloaded with docs.
func NewFakeSource(name string, docs []FakeDocument) *FakeSource {
	return &FakeSource{name: name, docs: docs}
}

func (f *FakeSource) Name() string { return f.name }

// AdaptQueries lowercases and trims each query and appends a single
// source-flavored variant ("<query> site:<name>"), the simplest possible
// per-source search-grammar adaptation (§4.9 seeding step).
func (f *FakeSource) AdaptQueries(_ context.Context, queries []string, topic string) ([]models.SearchTask, error) {
	out := make([]models.SearchTask, 0, len(queries))
	for i, q := range queries {
		norm := strings.TrimSpace(strings.ToLower(q))
		out = append(out, models.SearchTask{
			TaskID: fmt.Sprintf("%s_%d", f.name, i),
			Source: f.name,
			Mode:   models.ModeSearch,
			Query:  fmt.Sprintf("%s site:%s", norm, f.name),
			Budget: 20,
		})
	}
	_ = topic
	return out, nil
}

// Discover returns up to limit distinct SourceEntity values observed in the
// preloaded corpus.
func (f *FakeSource) Discover(_ context.Context, _ string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, d := range f.docs {
		if d.SourceEntity == "" || seen[d.SourceEntity] {
			continue
		}
		seen[d.SourceEntity] = true
		out = append(out, d.SourceEntity)
		if len(out) >= limit {
			break
		}
	}
	sort.Strings(out)
	return out, nil
}

// Search matches documents whose title or body contains the task's query
// terms (case-insensitive substring), returning a single exhausted page —
// FakeSource has no real pagination, it just respects Page's invariant.
func (f *FakeSource) Search(_ context.Context, task models.SearchTask) (models.Page[models.DocumentRef], error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	needle := strings.ToLower(strings.TrimSuffix(task.Query, " site:"+f.name))
	var refs []models.DocumentRef
	for i, d := range f.docs {
		if needle != "" && !strings.Contains(strings.ToLower(d.Title+" "+d.RawText), needle) {
			continue
		}
		refs = append(refs, models.DocumentRef{
			RefID:           d.URL,
			RefType:         "document",
			Source:          f.name,
			SourceEntity:    d.SourceEntity,
			OriginatingTask: task.TaskID,
			Rank:            i,
			Preview:         preview(d.RawText),
		})
	}
	return models.Page[models.DocumentRef]{Items: refs, Exhausted: true}, nil
}

// Fetch returns the full Document for a ref produced by Search.
func (f *FakeSource) Fetch(_ context.Context, ref models.DocumentRef, _ DeepComments) (models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.URL == ref.RefID {
			score := d.Score
			return models.Document{
				DocID:        d.URL,
				Source:       f.name,
				SourceEntity: d.SourceEntity,
				URL:          d.URL,
				RetrievedAt:  time.Now(),
				Title:        d.Title,
				RawText:      d.RawText,
				Score:        &score,
			}, nil
		}
	}
	return models.Document{}, fmt.Errorf("fake source %s: no document for ref %s", f.name, ref.RefID)
}

// CallCount reports how many Search calls this source has served, for test
// assertions about dispatch fan-out.
func (f *FakeSource) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func preview(text string) string {
	const n = 120
	if len(text) <= n {
		return text
	}
	return text[:n]
}
