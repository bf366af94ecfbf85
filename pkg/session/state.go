// Package session implements the ingestion SessionState of §3/§4.11/§4.9:
// the scheduler's exclusive, persisted view of one run's progress. Adapted
// from the teacher's pkg/session Manager/Session pair (in-memory map +
// mutex-guarded struct with a Clone method for safe reads) but generalized
// from a chat-message history to the ingestion domain's task queue,
// visited sets, knowledge window, and stop-condition inputs.
package session

import (
	"sync"
	"time"
)

// Status is the lifecycle state of an ingestion session (§3).
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Complexity is the assessed classification driving max_iterations (§4.9).
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// MaxIterationsFor maps a Complexity to its iteration cap (§4.9).
func MaxIterationsFor(c Complexity) int {
	switch c {
	case ComplexitySimple:
		return 30
	case ComplexityComplex:
		return 100
	default:
		return 60
	}
}

// Stats is the session's running statistics aggregate (§3, §7 supplemented
// feature 1: TotalCostUSD is accumulated through RecordCost).
type Stats struct {
	DocumentsFetched int            `json:"documents_fetched"`
	SnippetsExtracted int           `json:"snippets_extracted"`
	EntityCounts     map[string]int `json:"entity_counts,omitempty"`
	SignalTypeCounts map[string]int `json:"signal_type_counts,omitempty"`
	TotalCostUSD     float64        `json:"total_cost_usd"`
	Iterations       int            `json:"iterations"`
}

// QueryStat tracks the historical yield of one normalized query, used for
// scheduler scoring (§4.9 step 1).
type QueryStat struct {
	Snippets int `json:"snippets"`
	Docs     int `json:"docs"`
}

// maxKnowledgeWindow / maxNoveltyHistory bound the retained slices per
// §4.11's "bounded retention (knowledge[-K:], novelty_history[-W:])".
const (
	maxKnowledgeWindow = 50
	maxNoveltyHistory  = 30
)

// State is the ingestion SessionState of §3. It is mutated only by the
// scheduler (single-writer discipline) and persisted on every iteration via
// WriteJSONAtomic; the mutex exists only to let read-only consumers (a
// status API, tests) safely Snapshot it while the scheduler goroutine is
// between iterations, not to support concurrent writers.
type State struct {
	mu sync.RWMutex

	SessionID            string                `json:"session_id"`
	Topic                string                `json:"topic"`
	Status               Status                `json:"status"`
	ExtractionPromptVer  string                `json:"extraction_prompt_version"`
	TaskQueue            []QueuedTask          `json:"task_queue"`
	VisitedTasks         map[string]bool       `json:"visited_tasks"`
	VisitedDocs          map[string]bool       `json:"visited_docs"`
	Knowledge            []string              `json:"knowledge"`
	NoveltyHistory       []float64             `json:"novelty_history"`
	SourceCursors        map[string]string     `json:"source_cursors"`
	QueryStats           map[string]QueryStat  `json:"query_stats"`
	Stats                Stats                 `json:"stats"`
	Complexity           Complexity            `json:"complexity,omitempty"`
	MaxIterations        int                   `json:"max_iterations"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
	Error                string                `json:"error,omitempty"`
}

// QueuedTask wraps a pending unit of source work with scheduling metadata.
// The SearchTask shape itself lives in pkg/models to avoid an import cycle
// between session and models.
type QueuedTask struct {
	TaskID       string `json:"task_id"`
	Source       string `json:"source"`
	Query        string `json:"query"`
	NormalizedKey string `json:"normalized_key"`
}

// New creates a fresh running session.
func New(sessionID, topic, extractionPromptVersion string) *State {
	now := time.Now()
	return &State{
		SessionID:           sessionID,
		Topic:               topic,
		Status:              StatusRunning,
		ExtractionPromptVer: extractionPromptVersion,
		VisitedTasks:        map[string]bool{},
		VisitedDocs:         map[string]bool{},
		SourceCursors:       map[string]string{},
		QueryStats:          map[string]QueryStat{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (s *State) touch() { s.UpdatedAt = time.Now() }

// EnqueueTask appends a task to the queue unless already visited.
func (s *State) EnqueueTask(t QueuedTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.VisitedTasks[t.TaskID] {
		return
	}
	s.TaskQueue = append(s.TaskQueue, t)
	s.touch()
}

// DequeueUpTo removes and returns up to n tasks from the front of the
// queue.
func (s *State) DequeueUpTo(n int) []QueuedTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.TaskQueue) {
		n = len(s.TaskQueue)
	}
	out := append([]QueuedTask(nil), s.TaskQueue[:n]...)
	s.TaskQueue = s.TaskQueue[n:]
	s.touch()
	return out
}

// QueueLen reports the current queue length.
func (s *State) QueueLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.TaskQueue)
}

// MarkTaskVisited records a completed task ID.
func (s *State) MarkTaskVisited(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.VisitedTasks[taskID] = true
	s.touch()
}

// MarkDocVisited records a fetched document/ref ID, returning false if it
// was already present (the caller's de-duplication signal).
func (s *State) MarkDocVisited(docID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.VisitedDocs[docID] {
		return false
	}
	s.VisitedDocs[docID] = true
	s.touch()
	return true
}

// RecordQueryYield updates the historical yield for a normalized query key
// (§4.9 step 1 scoring input).
func (s *State) RecordQueryYield(key string, snippets, docs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.QueryStats[key]
	st.Snippets += snippets
	st.Docs += docs
	s.QueryStats[key] = st
	s.touch()
}

// QueryScore implements §4.9 step 1: a normalized query seen before scores
// snippets/docs observed so far; an unknown query scores 0.2.
func (s *State) QueryScore(key string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.QueryStats[key]
	if !ok || st.Docs == 0 {
		return 0.2
	}
	return float64(st.Snippets) / float64(st.Docs)
}

// AppendKnowledge appends to the rolling knowledge window, truncating to
// the most recent maxKnowledgeWindow items.
func (s *State) AppendKnowledge(item string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Knowledge = append(s.Knowledge, item)
	if len(s.Knowledge) > maxKnowledgeWindow {
		s.Knowledge = s.Knowledge[len(s.Knowledge)-maxKnowledgeWindow:]
	}
	s.touch()
}

// RecordNovelty appends to the novelty history, truncating to the most
// recent maxNoveltyHistory entries.
func (s *State) RecordNovelty(n float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NoveltyHistory = append(s.NoveltyHistory, n)
	if len(s.NoveltyHistory) > maxNoveltyHistory {
		s.NoveltyHistory = s.NoveltyHistory[len(s.NoveltyHistory)-maxNoveltyHistory:]
	}
	s.touch()
}

// IncrementIteration advances the iteration counter (§4.9 step 0).
func (s *State) IncrementIteration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stats.Iterations++
	s.touch()
}

// RecordDocument updates the running document count for one fetched
// document (§3 Stats).
func (s *State) RecordDocument() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stats.DocumentsFetched++
	s.touch()
}

// RecordSnippet updates the running snippet aggregate and tallies the
// snippet's entities/signal type into the Stats counters used by the
// saturation check (§4.9, §3).
func (s *State) RecordSnippet(signalType string, entities []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stats.SnippetsExtracted++
	if s.Stats.SignalTypeCounts == nil {
		s.Stats.SignalTypeCounts = map[string]int{}
	}
	s.Stats.SignalTypeCounts[signalType]++
	if s.Stats.EntityCounts == nil {
		s.Stats.EntityCounts = map[string]int{}
	}
	for _, e := range entities {
		if e != "" {
			s.Stats.EntityCounts[e]++
		}
	}
	s.touch()
}

// RecordCost adds an incremental USD cost to the running total (§7
// supplemented feature 1).
func (s *State) RecordCost(delta float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Stats.TotalCostUSD += delta
	s.touch()
}

// SetCursor records a source's continuation cursor.
func (s *State) SetCursor(source, cursor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SourceCursors[source] = cursor
	s.touch()
}

// SetStatus transitions the session's lifecycle state.
func (s *State) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.touch()
}

// SetComplexity records the assessed complexity and derives MaxIterations.
func (s *State) SetComplexity(c Complexity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Complexity = c
	s.MaxIterations = MaxIterationsFor(c)
	s.touch()
}

// SetError records a fatal error and transitions to StatusError.
func (s *State) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Error = msg
	s.Status = StatusError
	s.touch()
}

// Snapshot returns a value copy safe to marshal or hand to a renderer
// without racing the scheduler's next mutation.
func (s *State) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := State{
		SessionID:           s.SessionID,
		Topic:               s.Topic,
		Status:              s.Status,
		ExtractionPromptVer: s.ExtractionPromptVer,
		TaskQueue:           append([]QueuedTask(nil), s.TaskQueue...),
		VisitedTasks:        cloneBoolSet(s.VisitedTasks),
		VisitedDocs:         cloneBoolSet(s.VisitedDocs),
		Knowledge:           append([]string(nil), s.Knowledge...),
		NoveltyHistory:      append([]float64(nil), s.NoveltyHistory...),
		SourceCursors:       cloneStringMap(s.SourceCursors),
		QueryStats:          cloneQueryStats(s.QueryStats),
		Stats:               s.Stats,
		Complexity:          s.Complexity,
		MaxIterations:       s.MaxIterations,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
		Error:               s.Error,
	}
	return cp
}

func cloneBoolSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneQueryStats(m map[string]QueryStat) map[string]QueryStat {
	out := make(map[string]QueryStat, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
