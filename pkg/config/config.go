// Package config loads and validates anvil.yaml into ready-to-use runtime
// configuration, grounded on the teacher's pkg/config (Initialize/load/
// validate split, YAML-then-merge-onto-defaults shape) but rebuilt over a
// single-provider-map LLM surface and research/ingestion config blocks
// instead of the teacher's agent/chain/MCP registries.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kpaschalidis/anvil/pkg/ingestion"
	"github.com/kpaschalidis/anvil/pkg/research"
	"github.com/kpaschalidis/anvil/pkg/source"
)

// Config is the umbrella runtime configuration returned by Initialize.
type Config struct {
	configDir string

	DataDir      string
	LLMProviders map[string]*LLMProviderConfig
	Defaults     *Defaults
	Research     research.Config
	Ingestion    ingestion.Config
}

// ConfigDir returns the directory Initialize loaded anvil.yaml from.
func (c *Config) ConfigDir() string { return c.configDir }

// DefaultProvider resolves the LLM provider to use when a caller doesn't
// name one explicitly, falling back to Defaults.LLMProvider.
func (c *Config) DefaultProvider() (*LLMProviderConfig, string, error) {
	name := ""
	if c.Defaults != nil {
		name = c.Defaults.LLMProvider
	}
	if name == "" {
		for n := range c.LLMProviders {
			name = n
			break
		}
	}
	p, ok := c.LLMProviders[name]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrLLMProviderNotFound, name)
	}
	return p, name, nil
}

// Initialize loads anvil.yaml from configDir, merges it onto package
// defaults, and validates the result.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	raw, err := loadYAML(configDir)
	if err != nil {
		return nil, NewLoadError("anvil.yaml", err)
	}

	cfg := merge(configDir, raw)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized", "llm_providers", len(cfg.LLMProviders))
	return cfg, nil
}

func loadYAML(configDir string) (*AnvilYAMLConfig, error) {
	path := configDir + "/anvil.yaml"
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &AnvilYAMLConfig{}, nil
	}
	if err != nil {
		return nil, err
	}
	var parsed AnvilYAMLConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &parsed, nil
}

// merge overlays a user's YAML document onto package defaults: a string or
// numeric field left at its zero value in the YAML keeps the default, while
// boolean fields are always copied from the YAML (omitted means false),
// mirroring the
// teacher's builtin-then-user merge order (user values win, never
// silently dropped).
func merge(configDir string, raw *AnvilYAMLConfig) *Config {
	cfg := &Config{
		configDir:    configDir,
		DataDir:      "./data",
		LLMProviders: map[string]*LLMProviderConfig{},
		Defaults:     raw.Defaults,
		Research:     research.DefaultConfig(),
		Ingestion:    ingestion.DefaultConfig(),
	}
	if raw.DataDir != "" {
		cfg.DataDir = raw.DataDir
	}
	for name, p := range raw.LLMProviders {
		cfg.LLMProviders[name] = p
	}
	if raw.Research != nil {
		mergeResearchConfig(&cfg.Research, raw.Research)
	}
	if raw.Ingestion != nil {
		mergeIngestionConfig(&cfg.Ingestion, raw.Ingestion)
	}
	return cfg
}

func mergeResearchConfig(dst *research.Config, src *ResearchYAMLConfig) {
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.MaxTasks != 0 {
		dst.MaxTasks = src.MaxTasks
	}
	if src.MinTasks != 0 {
		dst.MinTasks = src.MinTasks
	}
	dst.BestEffort = src.BestEffort
	dst.Strict = src.Strict
	if src.MinTotalCitations != 0 {
		dst.MinTotalCitations = src.MinTotalCitations
	}
	if src.MinTotalDomains != 0 {
		dst.MinTotalDomains = src.MinTotalDomains
	}
	dst.EnableWorkerContinuation = src.EnableWorkerContinuation
	dst.EnableRound2 = src.EnableRound2
	if src.Round2MaxTasks != 0 {
		dst.Round2MaxTasks = src.Round2MaxTasks
	}
	if src.VerifyMaxTasks != 0 {
		dst.VerifyMaxTasks = src.VerifyMaxTasks
	}
	dst.DeepRead = src.DeepRead
	if src.DeepReadMaxPages != 0 {
		dst.DeepReadMaxPages = src.DeepReadMaxPages
	}
	if src.DeepReadMaxChars != 0 {
		dst.DeepReadMaxChars = src.DeepReadMaxChars
	}
	if src.MaxWebSearchCalls != 0 {
		dst.MaxWebSearchCalls = src.MaxWebSearchCalls
	}
	if src.MaxWebExtractCalls != 0 {
		dst.MaxWebExtractCalls = src.MaxWebExtractCalls
	}
	if src.WorkerMaxIterations != 0 {
		dst.WorkerMaxIterations = src.WorkerMaxIterations
	}
	if src.WorkerTimeoutSec != 0 {
		dst.WorkerTimeoutSec = src.WorkerTimeoutSec
	}
	if src.MaxWorkers != 0 {
		dst.MaxWorkers = src.MaxWorkers
	}
	dst.CurateSources = src.CurateSources
	if src.MinPerTask != 0 {
		dst.MinPerTask = src.MinPerTask
	}
	if src.MaxTotal != 0 {
		dst.MaxTotal = src.MaxTotal
	}
	if src.MaxPerDomain != 0 {
		dst.MaxPerDomain = src.MaxPerDomain
	}
	dst.MultiPassSynthesis = src.MultiPassSynthesis
	dst.RequireQuotePerClaim = src.RequireQuotePerClaim
	if src.ReportFindingsTarget != 0 {
		dst.ReportFindingsTarget = src.ReportFindingsTarget
	}
	if src.CoverageMode != "" {
		dst.CoverageMode = src.CoverageMode
	}
	if src.CitationsPerFindingTarget != 0 {
		dst.CitationsPerFindingTarget = src.CitationsPerFindingTarget
	}
}

func mergeIngestionConfig(dst *ingestion.Config, src *IngestionYAMLConfig) {
	if src.ParallelWorkers != 0 {
		dst.ParallelWorkers = src.ParallelWorkers
	}
	if src.MaxCostUSD != 0 {
		dst.MaxCostUSD = src.MaxCostUSD
	}
	if src.MaxDocuments != 0 {
		dst.MaxDocuments = src.MaxDocuments
	}
	if src.SaturationWindow != 0 {
		dst.SaturationWindow = src.SaturationWindow
	}
	if src.SaturationThreshold != 0 {
		dst.SaturationThreshold = src.SaturationThreshold
	}
	if src.SaturationMinEntities != 0 {
		dst.SaturationMinEntities = src.SaturationMinEntities
	}
	if src.SaturationSignalDiversityThreshold != 0 {
		dst.SaturationSignalDiversityThreshold = src.SaturationSignalDiversityThreshold
	}
	if src.DeepComments != "" {
		dst.DeepComments = source.DeepComments(src.DeepComments)
	}
}
