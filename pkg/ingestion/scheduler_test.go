package ingestion

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kpaschalidis/anvil/pkg/events"
	"github.com/kpaschalidis/anvil/pkg/extraction"
	"github.com/kpaschalidis/anvil/pkg/llm"
	"github.com/kpaschalidis/anvil/pkg/session"
	"github.com/kpaschalidis/anvil/pkg/source"
	"github.com/kpaschalidis/anvil/pkg/storage"
)

// alwaysExtractCompletion returns one fixed well-formed extraction JSON
// response for every call, cycling independent of call order.
type alwaysExtractCompletion struct {
	mu    sync.Mutex
	calls int
}

func (c *alwaysExtractCompletion) Complete(context.Context, llm.Request) (*llm.Response, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return &llm.Response{Content: `{
		"snippets": [{"excerpt": "users say the export is totally broken", "pain_statement": "csv export fails regularly", "signal_type": "bug", "intensity": 4, "confidence": 0.8}],
		"entities": ["acme"],
		"followup_queries": [],
		"novelty": 0.5
	}`}, nil
}

func (c *alwaysExtractCompletion) Stream(context.Context, llm.Request) (<-chan llm.Delta, error) {
	panic("unused")
}

func sampleDocs() []source.FakeDocument {
	return []source.FakeDocument{
		{URL: "https://forum.example.com/1", Title: "CSV export is broken", RawText: "users complain the csv export is broken constantly and nobody fixes it for months", SourceEntity: "acme", Score: 12},
		{URL: "https://forum.example.com/2", Title: "Feature request: dark mode", RawText: "would love dark mode in the settings panel of the app please add it soon", SourceEntity: "acme", Score: 3},
	}
}

func newTestScheduler(t *testing.T) (*Scheduler, *session.State, *storage.Store, *source.Registry) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := source.NewRegistry(source.NewFakeSource("forum", sampleDocs()))
	pipeline := extraction.New(&alwaysExtractCompletion{}, "test-model", "v1", extraction.DefaultTunables())
	cost := NewCostTracker(nil)

	cfg := DefaultConfig()
	cfg.ParallelWorkers = 2

	sched := New(reg, store, pipeline, events.New(nil), cost, cfg)
	st := session.New("sess-1", "csv export tool", "v1")
	st.SetComplexity(session.ComplexitySimple)

	return sched, st, store, reg
}

func TestScheduler_SeedThenRunIterationPersistsDocumentsAndSnippets(t *testing.T) {
	sched, st, store, reg := newTestScheduler(t)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, st, reg, "csv export tool"))
	require.Greater(t, st.QueueLen(), 0)

	require.NoError(t, sched.RunIteration(ctx, st, "csv export tool"))

	count, err := store.CountDocuments(ctx)
	require.NoError(t, err)
	require.Greater(t, count, 0)

	snap := st.Snapshot()
	require.Equal(t, 1, snap.Stats.Iterations)
	require.Greater(t, snap.Stats.DocumentsFetched, 0)
	require.Greater(t, snap.Stats.SnippetsExtracted, 0)
	require.Contains(t, snap.Stats.SignalTypeCounts, "bug")
}

func TestScheduler_CheckStopQueueEmpty(t *testing.T) {
	sched, st, _, _ := newTestScheduler(t)
	require.Equal(t, StopQueueEmpty, sched.CheckStop(st, 0))
}

func TestScheduler_CheckStopMaxDocuments(t *testing.T) {
	sched, st, _, _ := newTestScheduler(t)
	st.EnqueueTask(session.QueuedTask{TaskID: "t1", Source: "forum", Query: "x", NormalizedKey: "x"})
	sched.cfg.MaxDocuments = 1
	require.Equal(t, StopMaxDocuments, sched.CheckStop(st, 5))
}

func TestScheduler_CheckStopMaxIterations(t *testing.T) {
	sched, st, _, _ := newTestScheduler(t)
	st.EnqueueTask(session.QueuedTask{TaskID: "t1", Source: "forum", Query: "x", NormalizedKey: "x"})
	for i := 0; i < session.MaxIterationsFor(session.ComplexitySimple); i++ {
		st.IncrementIteration()
	}
	require.Equal(t, StopMaxIterations, sched.CheckStop(st, 0))
}

func TestScheduler_CheckStopCostExceeded(t *testing.T) {
	sched, st, _, _ := newTestScheduler(t)
	st.EnqueueTask(session.QueuedTask{TaskID: "t1", Source: "forum", Query: "x", NormalizedKey: "x"})
	sched.cfg.MaxCostUSD = 1.0
	sched.cost.prices = map[string]ModelPrice{"m": {InputPerMillion: 1_000_000, OutputPerMillion: 0}}
	sched.cost.Record("m", 2, 0)
	require.Equal(t, StopCostExceeded, sched.CheckStop(st, 0))
}

func TestScheduler_IsSaturatedWhenNoveltyWindowAllEmpty(t *testing.T) {
	sched, st, _, _ := newTestScheduler(t)
	sched.cfg.SaturationWindow = 3
	for i := 0; i < 3; i++ {
		st.RecordNovelty(0)
	}
	require.True(t, sched.isSaturated(st.Snapshot()))
}

func TestEffectiveWorkers_HalvesBelowFiftyPercentSuccessRate(t *testing.T) {
	window := newRollingWindow(20)
	for i := 0; i < 10; i++ {
		window.record(false)
	}
	require.Equal(t, 4, effectiveWorkers(8, window.successRate()))
}

func TestEffectiveWorkers_FullConcurrencyAtOrAboveFiftyPercent(t *testing.T) {
	window := newRollingWindow(20)
	for i := 0; i < 10; i++ {
		window.record(true)
	}
	require.Equal(t, 8, effectiveWorkers(8, window.successRate()))
}

func TestEffectiveWorkers_FloorsAtOneWorker(t *testing.T) {
	require.Equal(t, 1, effectiveWorkers(1, 0.0))
}

func TestRollingWindow_EmptyWindowDefaultsToFullSuccessRate(t *testing.T) {
	window := newRollingWindow(20)
	require.Equal(t, 1.0, window.successRate())
}

func TestRollingWindow_EvictsOldestBeyondSize(t *testing.T) {
	window := newRollingWindow(3)
	window.record(false)
	window.record(false)
	window.record(false)
	window.record(true)
	window.record(true)
	// window now holds the last 3 records: [false, true, true]
	require.InDelta(t, 2.0/3.0, window.successRate(), 1e-9)
}

func TestScheduler_RunStopsOnQueueEmptyForEmptyRegistry(t *testing.T) {
	sched, st, _, _ := newTestScheduler(t)
	emptyReg := source.NewRegistry()

	reason, err := sched.Run(context.Background(), st, emptyReg, "csv export tool", t.TempDir())
	require.NoError(t, err)
	require.Equal(t, StopQueueEmpty, reason)
}
