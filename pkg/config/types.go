package config

// AnvilYAMLConfig is the top-level shape of anvil.yaml, mirroring the
// teacher's TarsyYAMLConfig split between a user-facing YAML document and
// the runtime Config it is merged/validated into.
type AnvilYAMLConfig struct {
	DataDir      string                        `yaml:"data_dir"`
	LLMProviders map[string]*LLMProviderConfig `yaml:"llm_providers"`
	Defaults     *Defaults                     `yaml:"defaults"`
	Research     *ResearchYAMLConfig           `yaml:"research"`
	Ingestion    *IngestionYAMLConfig          `yaml:"ingestion"`
}

// LLMProviderConfig defines one named LLM provider (§6 Completion
// capability: provider-agnostic model name, credential indirection via an
// env var rather than an inline secret).
type LLMProviderConfig struct {
	Type      string `yaml:"type"` // "anthropic" | "openai"
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

// Defaults holds system-wide fallbacks applied when a component doesn't
// specify its own value.
type Defaults struct {
	LLMProvider string `yaml:"llm_provider,omitempty"`
}

// ResearchYAMLConfig mirrors the subset of research.Config exposed to
// operators via YAML; zero strings and numbers leave
// research.DefaultConfig()'s value in place, booleans are copied as given
// (see mergeResearchConfig).
type ResearchYAMLConfig struct {
	Model                     string  `yaml:"model,omitempty"`
	MaxTasks                  int     `yaml:"max_tasks,omitempty"`
	MinTasks                  int     `yaml:"min_tasks,omitempty"`
	BestEffort                bool    `yaml:"best_effort,omitempty"`
	Strict                    bool    `yaml:"strict,omitempty"`
	MinTotalCitations         int     `yaml:"min_total_citations,omitempty"`
	MinTotalDomains           int     `yaml:"min_total_domains,omitempty"`
	EnableWorkerContinuation  bool    `yaml:"enable_worker_continuation,omitempty"`
	EnableRound2              bool    `yaml:"enable_round2,omitempty"`
	Round2MaxTasks            int     `yaml:"round2_max_tasks,omitempty"`
	VerifyMaxTasks            int     `yaml:"verify_max_tasks,omitempty"`
	DeepRead                  bool    `yaml:"deep_read,omitempty"`
	DeepReadMaxPages          int     `yaml:"deep_read_max_pages,omitempty"`
	DeepReadMaxChars          int     `yaml:"deep_read_max_chars,omitempty"`
	MaxWebSearchCalls         int     `yaml:"max_web_search_calls,omitempty"`
	MaxWebExtractCalls        int     `yaml:"max_web_extract_calls,omitempty"`
	WorkerMaxIterations       int     `yaml:"worker_max_iterations,omitempty"`
	WorkerTimeoutSec          int     `yaml:"worker_timeout_sec,omitempty"`
	MaxWorkers                int     `yaml:"max_workers,omitempty"`
	CurateSources             bool    `yaml:"curate_sources,omitempty"`
	MinPerTask                int     `yaml:"min_per_task,omitempty"`
	MaxTotal                  int     `yaml:"max_total,omitempty"`
	MaxPerDomain              int     `yaml:"max_per_domain,omitempty"`
	MultiPassSynthesis        bool    `yaml:"multi_pass_synthesis,omitempty"`
	RequireQuotePerClaim      bool    `yaml:"require_quote_per_claim,omitempty"`
	ReportFindingsTarget      int     `yaml:"report_findings_target,omitempty"`
	CoverageMode              string  `yaml:"coverage_mode,omitempty"`
	CitationsPerFindingTarget int     `yaml:"citations_per_finding_target,omitempty"`
}

// IngestionYAMLConfig mirrors the subset of ingestion.Config exposed to
// operators via YAML.
type IngestionYAMLConfig struct {
	ParallelWorkers                    int     `yaml:"parallel_workers,omitempty"`
	MaxCostUSD                         float64 `yaml:"max_cost_usd,omitempty"`
	MaxDocuments                       int     `yaml:"max_documents,omitempty"`
	SaturationWindow                   int     `yaml:"saturation_window,omitempty"`
	SaturationThreshold                float64 `yaml:"saturation_threshold,omitempty"`
	SaturationMinEntities               int     `yaml:"saturation_min_entities,omitempty"`
	SaturationSignalDiversityThreshold int     `yaml:"saturation_signal_diversity_threshold,omitempty"`
	DeepComments                       string  `yaml:"deep_comments,omitempty"`
}
