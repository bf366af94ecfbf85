package ingestion

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kpaschalidis/anvil/pkg/events"
	"github.com/kpaschalidis/anvil/pkg/extraction"
	"github.com/kpaschalidis/anvil/pkg/models"
	"github.com/kpaschalidis/anvil/pkg/resilience"
	"github.com/kpaschalidis/anvil/pkg/session"
	"github.com/kpaschalidis/anvil/pkg/source"
	"github.com/kpaschalidis/anvil/pkg/storage"
)

// StopReason is the terminal condition of an ingestion run (§6).
type StopReason string

const (
	StopCostExceeded    StopReason = "cost_exceeded"
	StopQueueEmpty      StopReason = "queue_empty"
	StopMaxIterations   StopReason = "max_iterations"
	StopMaxDocuments    StopReason = "max_documents"
	StopSaturated       StopReason = "saturated"
	StopPaused          StopReason = "paused"
	StopNone            StopReason = ""
)

// Config bundles the scheduler's tunable stop conditions and dispatch
// shape (§4.9).
type Config struct {
	ParallelWorkers                   int
	MaxCostUSD                        float64
	MaxDocuments                      int
	SaturationWindow                  int
	SaturationThreshold               float64
	SaturationMinEntities             int
	SaturationSignalDiversityThreshold int
	DeepComments                      source.DeepComments
}

// DefaultConfig returns reasonable defaults for the tunables not otherwise
// specified (no numeric defaults are named in the spec text itself).
func DefaultConfig() Config {
	return Config{
		ParallelWorkers:                    5,
		MaxDocuments:                       500,
		SaturationWindow:                   10,
		SaturationThreshold:                0.1,
		SaturationMinEntities:              3,
		SaturationSignalDiversityThreshold: 3,
		DeepComments:                       source.DeepCommentsAuto,
	}
}

// rollingWindow tracks the last N boolean outcomes for adaptive
// concurrency's success-rate check (§4.9 step 3, window=20).
type rollingWindow struct {
	mu      sync.Mutex
	results []bool
	size    int
}

func newRollingWindow(size int) *rollingWindow { return &rollingWindow{size: size} }

func (w *rollingWindow) record(ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.results = append(w.results, ok)
	if len(w.results) > w.size {
		w.results = w.results[len(w.results)-w.size:]
	}
}

func (w *rollingWindow) successRate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.results) == 0 {
		return 1.0
	}
	successes := 0
	for _, r := range w.results {
		if r {
			successes++
		}
	}
	return float64(successes) / float64(len(w.results))
}

// Scheduler drives one ingestion session through seeding, iteration, and
// stop-condition evaluation (§4.9). Grounded on the teacher's pkg/queue
// dispatch loop, rebuilt around per-source circuit breakers and a single
// in-memory task queue rather than a Postgres-backed job table.
type Scheduler struct {
	registry  *source.Registry
	store     *storage.Store
	pipeline  *extraction.Pipeline
	emitter   events.Emitter
	cost      *CostTracker
	cfg       Config

	mu        sync.Mutex
	breakers  map[string]*resilience.Breaker
	windows   map[string]*rollingWindow
}

// New builds a Scheduler.
func New(registry *source.Registry, store *storage.Store, pipeline *extraction.Pipeline, emitter events.Emitter, cost *CostTracker, cfg Config) *Scheduler {
	return &Scheduler{
		registry: registry,
		store:    store,
		pipeline: pipeline,
		emitter:  emitter,
		cost:     cost,
		cfg:      cfg,
		breakers: map[string]*resilience.Breaker{},
		windows:  map[string]*rollingWindow{},
	}
}

func (s *Scheduler) breakerFor(src string) *resilience.Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[src]
	if !ok {
		b = resilience.NewBreaker(5, 30*time.Second) // 5 consecutive failures, 30s recovery
		s.breakers[src] = b
	}
	return b
}

func (s *Scheduler) windowFor(src string) *rollingWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[src]
	if !ok {
		w = newRollingWindow(20)
		s.windows[src] = w
	}
	return w
}

// CheckStop evaluates the stop conditions of §4.9 against the current
// session state, in priority order.
func (s *Scheduler) CheckStop(st *session.State, docCount int) StopReason {
	snap := st.Snapshot()

	if s.cost.ExceedsBudget(s.cfg.MaxCostUSD) {
		return StopCostExceeded
	}
	if st.QueueLen() == 0 {
		return StopQueueEmpty
	}
	if snap.MaxIterations > 0 && snap.Stats.Iterations >= snap.MaxIterations {
		return StopMaxIterations
	}
	if s.cfg.MaxDocuments > 0 && docCount >= s.cfg.MaxDocuments {
		return StopMaxDocuments
	}
	if s.isSaturated(snap) {
		return StopSaturated
	}
	return StopNone
}

// isSaturated implements §4.9's saturation stop condition: the novelty
// history must have at least saturation_window entries, AND either the
// last N extractions were all empty (novelty==0) or average novelty is
// below threshold while entity/signal diversity are both high enough that
// further iteration is unlikely to add new ground.
func (s *Scheduler) isSaturated(snap session.State) bool {
	hist := snap.NoveltyHistory
	if len(hist) < s.cfg.SaturationWindow {
		return false
	}
	window := hist[len(hist)-s.cfg.SaturationWindow:]

	allEmpty := true
	var sum float64
	for _, n := range window {
		sum += n
		if n > 0 {
			allEmpty = false
		}
	}
	if allEmpty {
		return true
	}

	avg := sum / float64(len(window))
	if avg >= s.cfg.SaturationThreshold {
		return false
	}
	if len(snap.Stats.EntityCounts) < s.cfg.SaturationMinEntities {
		return false
	}
	if len(snap.Stats.SignalTypeCounts) < s.cfg.SaturationSignalDiversityThreshold {
		return false
	}
	return true
}

type scoredTask struct {
	task  session.QueuedTask
	score float64
}

// selectTasks implements §4.9 step 1: pick up to n tasks from the queue,
// scoring each by historical yield, highest score first.
func (s *Scheduler) selectTasks(st *session.State, n int) []session.QueuedTask {
	pool := st.DequeueUpTo(st.QueueLen()) // pull everything, we'll requeue the rest
	scored := make([]scoredTask, 0, len(pool))
	for _, t := range pool {
		scored = append(scored, scoredTask{task: t, score: st.QueryScore(t.NormalizedKey)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	if n > len(scored) {
		n = len(scored)
	}
	picked := make([]session.QueuedTask, 0, n)
	for i := 0; i < n; i++ {
		picked = append(picked, scored[i].task)
	}
	for i := n; i < len(scored); i++ {
		st.EnqueueTask(scored[i].task)
	}
	return picked
}

// Run drives a session from its current state to a stop condition (§4.9),
// seeding the queue on first entry, persisting after every iteration, and
// returning the StopReason that ended the run. A cancelled context pauses
// the session (status -> paused, persisted) rather than erroring, so a
// later call to Run against the same dataDir resumes it.
func (s *Scheduler) Run(ctx context.Context, st *session.State, registry *source.Registry, topic, dataDir string) (StopReason, error) {
	if err := Seed(ctx, st, registry, topic); err != nil {
		st.SetError(err.Error())
		_ = st.Save(dataDir)
		return StopNone, err
	}

	for {
		select {
		case <-ctx.Done():
			st.SetStatus(session.StatusPaused)
			if err := st.Save(dataDir); err != nil {
				return StopPaused, err
			}
			return StopPaused, nil
		default:
		}

		docCount, err := s.store.CountDocuments(ctx)
		if err != nil {
			return StopNone, err
		}
		if reason := s.CheckStop(st, docCount); reason != StopNone {
			st.SetStatus(session.StatusCompleted)
			if err := st.Save(dataDir); err != nil {
				return reason, err
			}
			return reason, nil
		}

		if err := s.RunIteration(ctx, st, topic); err != nil {
			st.SetError(err.Error())
			_ = st.Save(dataDir)
			return StopNone, err
		}
		if err := st.Save(dataDir); err != nil {
			return StopNone, err
		}
	}
}

// RunIteration executes one pass of §4.9's iteration loop: task selection,
// per-source breaker gating, adaptive-concurrency dispatch, ref processing.
func (s *Scheduler) RunIteration(ctx context.Context, st *session.State, topic string) error {
	picked := s.selectTasks(st, s.cfg.ParallelWorkers)
	if len(picked) == 0 {
		return nil
	}

	bySource := map[string][]session.QueuedTask{}
	for _, t := range picked {
		bySource[t.Source] = append(bySource[t.Source], t)
	}

	var wg errgroup.Group
	for src, tasks := range bySource {
		src, tasks := src, tasks
		wg.Go(func() error {
			return s.dispatchSource(ctx, st, topic, src, tasks)
		})
	}
	if err := wg.Wait(); err != nil {
		return err
	}

	st.IncrementIteration()
	return nil
}

// effectiveWorkers implements §4.9 step 3's adaptive concurrency: halve the
// configured worker count (floor at 1) once a source's rolling success rate
// drops below 50%, restoring full concurrency once it recovers.
func effectiveWorkers(maxWorkers int, successRate float64) int {
	if successRate >= 0.5 {
		return maxWorkers
	}
	workers := maxWorkers / 2
	if workers < 1 {
		workers = 1
	}
	return workers
}

func (s *Scheduler) dispatchSource(ctx context.Context, st *session.State, topic, src string, tasks []session.QueuedTask) error {
	breaker := s.breakerFor(src)
	if !breaker.CanExecute() {
		for _, t := range tasks {
			st.EnqueueTask(t)
		}
		s.emitter.Emit(events.KindProgress, events.ProgressEvent{Stage: "circuit_open", Message: src})
		return nil
	}

	window := s.windowFor(src)
	workers := effectiveWorkers(s.cfg.ParallelWorkers, window.successRate())

	impl, ok := s.registry.Get(src)
	if !ok {
		for _, t := range tasks {
			st.EnqueueTask(t)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, t := range tasks {
		t := t
		g.Go(func() error {
			s.runTask(gctx, st, topic, impl, breaker, window, t)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) runTask(ctx context.Context, st *session.State, topic string, impl source.Source, breaker *resilience.Breaker, window *rollingWindow, qt session.QueuedTask) {
	page, err := impl.Search(ctx, taskForQueued(qt, 20))
	if err != nil {
		breaker.RecordFailure()
		window.record(false)
		s.emitter.Emit(events.KindError, events.ErrorEvent{Message: err.Error(), Source: "task_failed"})
		return
	}
	breaker.RecordSuccess()
	window.record(true)
	st.MarkTaskVisited(qt.TaskID)

	docs, snippets := 0, 0
	for _, ref := range page.Items {
		if !st.MarkDocVisited(ref.RefID) {
			continue
		}
		d, snips := s.processRef(ctx, st, topic, impl, ref)
		if d {
			docs++
		}
		snippets += snips
	}
	st.RecordQueryYield(qt.NormalizedKey, snippets, docs)

	if page.NextCursor != "" {
		st.EnqueueTask(session.QueuedTask{
			TaskID: fmt.Sprintf("%s_cont", qt.TaskID), Source: qt.Source, Query: qt.Query, NormalizedKey: qt.NormalizedKey,
		})
	}
}

// processRef fetches, persists, and extracts one discovered ref (§4.9 step
// 6). Returns whether a Document was persisted and how many snippets were
// extracted.
func (s *Scheduler) processRef(ctx context.Context, st *session.State, topic string, impl source.Source, ref models.DocumentRef) (bool, int) {
	doc, err := impl.Fetch(ctx, ref, s.cfg.DeepComments)
	if err != nil {
		s.emitter.Emit(events.KindError, events.ErrorEvent{Message: err.Error(), Source: "fetch_failed"})
		return false, 0
	}
	if err := s.store.PutDocument(ctx, doc); err != nil {
		s.emitter.Emit(events.KindError, events.ErrorEvent{Message: err.Error(), Source: "storage_error"})
		return false, 0
	}
	st.RecordDocument()
	s.emitter.Emit(events.KindDocument, events.DocumentEvent{DocID: doc.DocID, Title: doc.Title, Source: doc.Source})

	filter := s.pipeline.Filter(doc)
	if !filter.Pass {
		s.emitter.Emit(events.KindProgress, events.ProgressEvent{Stage: "doc_filtered", Message: filter.Reason})
		return true, 0
	}

	snap := st.Snapshot()
	result, err := s.pipeline.Run(ctx, doc, topic, impl.Name(), snap.Knowledge)
	if err != nil || result.ErrorKind != "" {
		st.RecordNovelty(0)
		return true, 0
	}

	for _, snip := range result.Snippets {
		if err := s.store.PutSnippet(ctx, snip); err != nil {
			s.emitter.Emit(events.KindError, events.ErrorEvent{Message: err.Error(), Source: "storage_error"})
			continue
		}
		st.AppendKnowledge(snip.PainStatement)
		st.RecordSnippet(string(snip.SignalType), result.ExtractedEntities)
	}
	st.RecordNovelty(result.Novelty)

	return true, len(result.Snippets)
}
