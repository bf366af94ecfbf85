// Package research implements the Deep-Research Orchestrator of §4.8: two
// strategies (multi-round plan-and-refine, draft-centric) that both consume
// a query and emit a rendered Markdown report plus citation list. Grounded
// on the teacher's pkg/agent workflow orchestration (round/phase state
// machine driving nested agent dispatch) generalized from a single
// incident-investigation workflow to research's plan -> dispatch ->
// synthesize round loop.
package research

import (
	"github.com/kpaschalidis/anvil/pkg/llm"
	"github.com/kpaschalidis/anvil/pkg/models"
	"github.com/kpaschalidis/anvil/pkg/toolregistry"
	"github.com/kpaschalidis/anvil/pkg/workerpool"
)

// Config bundles every tunable named across §4.8's multi-round strategy.
// Zero-valued fields disable the optional stage they gate (e.g.
// EnableRound2=false skips the gap-fill round).
type Config struct {
	Model              string
	MaxTasks           int // upper bound on initial plan size
	MinTasks           int // lower bound on initial plan size (3 per spec)
	BestEffort         bool
	Strict             bool
	MinTotalCitations  int
	MinTotalDomains    int
	EnableWorkerContinuation bool
	EnableRound2       bool
	Round2MaxTasks     int
	VerifyMaxTasks     int
	DeepRead           bool
	DeepReadMaxPages   int
	DeepReadMaxChars   int
	MaxWebSearchCalls  int
	MaxWebExtractCalls int
	WorkerMaxIterations int
	WorkerTimeoutSec   int
	MaxWorkers         int

	// Curated-sources selection (narrative mode only).
	CurateSources  bool
	MinPerTask     int
	MaxTotal       int
	MaxPerDomain   int

	// Synthesis shape.
	MultiPassSynthesis   bool
	RequireQuotePerClaim bool
	ReportFindingsTarget int
	CoverageMode         string // "warn" | "error"
	CitationsPerFindingTarget int
}

// DefaultConfig returns the magnitudes implied by spec.md §4.8/§8 where a
// concrete number is named (min_tasks=3, etc.); everything else defaults to
// a conservative value a caller is expected to override per deployment.
func DefaultConfig() Config {
	return Config{
		MaxTasks:                  6,
		MinTasks:                  3,
		MinTotalCitations:         3,
		MinTotalDomains:           2,
		Round2MaxTasks:            3,
		VerifyMaxTasks:            0,
		DeepReadMaxPages:          3,
		DeepReadMaxChars:          4000,
		MaxWebSearchCalls:         6,
		MaxWebExtractCalls:        4,
		WorkerMaxIterations:       15,
		WorkerTimeoutSec:          180,
		MaxWorkers:                4,
		MinPerTask:                1,
		MaxTotal:                  12,
		MaxPerDomain:              3,
		ReportFindingsTarget:      8,
		CoverageMode:              "warn",
		CitationsPerFindingTarget: 1,
	}
}

// Report is the orchestrator's final output: rendered Markdown plus the
// structured findings/citations it was built from (§4.8 step 11).
type Report struct {
	Title       string
	Markdown    string
	Citations   []string // numbered in first-seen order, matches ## Sources
	ReportType  models.ReportType
	Rounds      []RoundSnapshot
}

// Outcome carries a Report plus every WorkerResult collected, even on a
// partial/failed run, so a caller can persist diagnostics (§4.8 Failure
// semantics, §7 "partial outcome attached").
type Outcome struct {
	Report        *Report
	WorkerResults []models.WorkerResult
	Memo          models.ResearchMemo
	StopReason    string // set only by the draft-centric (Strategy II) run
}

// Strategy2Config bundles the draft-centric strategy's own tunables (§4.8
// Strategy II), kept separate from Config since they govern a fixed-
// iteration loop rather than the multi-round plan-and-refine shape.
type Strategy2Config struct {
	MaxIterations       int // fixed loop bound, minimum 1, defaults to MaxRounds
	MaxRounds           int
	MaxTasksPerRound    int
	MaxTasksTotal       int
	SaturationThreshold int
}

// DefaultStrategy2Config returns conservative defaults for the
// draft-centric loop.
func DefaultStrategy2Config() Strategy2Config {
	return Strategy2Config{
		MaxIterations:       5,
		MaxRounds:           5,
		MaxTasksPerRound:    4,
		MaxTasksTotal:       20,
		SaturationThreshold: 2,
	}
}

// Stop reasons for the draft-centric strategy (§6 "Stop reasons (deep
// research, draft-centric)").
const (
	StopTaskBudgetExhausted = "task_budget_exhausted"
	StopNoNovelQueries      = "no_novel_queries"
	StopNoTasks             = "no_tasks"
	StopSaturated           = "saturated"
	StopMaxIterations       = "max_iterations"
)

// Orchestrator runs one deep-research query end to end.
type Orchestrator struct {
	completion llm.Completion
	runner     *workerpool.Runner
	cfg        Config
}

// New builds an Orchestrator over a completion port and the tool registry
// its workers will use.
func New(completion llm.Completion, registry *toolregistry.Registry, cfg Config) *Orchestrator {
	return &Orchestrator{
		completion: completion,
		runner:     workerpool.New(completion, registry),
		cfg:        cfg,
	}
}
