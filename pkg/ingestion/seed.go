package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/kpaschalidis/anvil/pkg/models"
	"github.com/kpaschalidis/anvil/pkg/session"
	"github.com/kpaschalidis/anvil/pkg/source"
)

// queryTemplates is the fixed template set for semantic query variants
// (§4.9 seeding step): base topic, plus problem/hate/alternative framings.
var queryTemplates = []string{
	"%s",
	"%s problems",
	"%s hate",
	"%s alternative",
	"%s complaints",
	"switching from %s",
}

// SeedQueries generates the fixed-template query variants for topic.
func SeedQueries(topic string) []string {
	out := make([]string, 0, len(queryTemplates))
	for _, tmpl := range queryTemplates {
		out = append(out, fmt.Sprintf(tmpl, topic))
	}
	return out
}

// Seed populates an empty session's task queue: generates semantic query
// variants, then asks every registered source to adapt them to its own
// search grammar (§4.9 seeding). A no-op if the session already has a
// queue, so resuming a session never re-seeds.
func Seed(ctx context.Context, st *session.State, registry *source.Registry, topic string) error {
	if st.QueueLen() > 0 {
		return nil
	}

	queries := SeedQueries(topic)
	for _, src := range registry.All() {
		tasks, err := src.AdaptQueries(ctx, queries, topic)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			st.EnqueueTask(session.QueuedTask{
				TaskID:        t.TaskID,
				Source:        t.Source,
				Query:         t.Query,
				NormalizedKey: NormalizeQueryKey(t.Query),
			})
		}
	}
	return nil
}

// NormalizeQueryKey canonicalizes a query string for yield scoring (§4.9
// step 1): lowercase, collapsed whitespace.
func NormalizeQueryKey(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// taskForQueued reconstructs the models.SearchTask a QueuedTask stands for,
// for dispatch against a Source.
func taskForQueued(qt session.QueuedTask, budget int) models.SearchTask {
	return models.SearchTask{
		TaskID: qt.TaskID,
		Source: qt.Source,
		Mode:   models.ModeSearch,
		Query:  qt.Query,
		Budget: budget,
	}
}
