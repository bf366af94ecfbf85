package config

import "fmt"

// validate checks the merged configuration's invariants, mirroring the
// teacher's hand-rolled field-by-field validator rather than a reflection-
// based library: the domain here is small enough that explicit checks stay
// readable.
func validate(cfg *Config) error {
	if len(cfg.LLMProviders) == 0 {
		return newValidationError("config", "root", "llm_providers", fmt.Errorf("%w: at least one provider required", ErrMissingRequiredField))
	}
	for name, p := range cfg.LLMProviders {
		if p.Type != "anthropic" && p.Type != "openai" {
			return newValidationError("llm_provider", name, "type", fmt.Errorf("%w: %q (want anthropic|openai)", ErrInvalidValue, p.Type))
		}
		if p.Model == "" {
			return newValidationError("llm_provider", name, "model", ErrMissingRequiredField)
		}
		if p.APIKeyEnv == "" {
			return newValidationError("llm_provider", name, "api_key_env", ErrMissingRequiredField)
		}
	}
	if cfg.Defaults != nil && cfg.Defaults.LLMProvider != "" {
		if _, ok := cfg.LLMProviders[cfg.Defaults.LLMProvider]; !ok {
			return newValidationError("defaults", "root", "llm_provider", fmt.Errorf("%w: %q", ErrInvalidValue, cfg.Defaults.LLMProvider))
		}
	}

	r := cfg.Research
	if r.MinTasks < 1 {
		return newValidationError("research", "root", "min_tasks", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if r.MaxTasks < r.MinTasks {
		return newValidationError("research", "root", "max_tasks", fmt.Errorf("%w: must be >= min_tasks", ErrInvalidValue))
	}
	if r.CoverageMode != "warn" && r.CoverageMode != "error" {
		return newValidationError("research", "root", "coverage_mode", fmt.Errorf("%w: %q (want warn|error)", ErrInvalidValue, r.CoverageMode))
	}
	if r.MaxWorkers < 1 {
		return newValidationError("research", "root", "max_workers", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}

	i := cfg.Ingestion
	if i.ParallelWorkers < 1 {
		return newValidationError("ingestion", "root", "parallel_workers", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if i.MaxDocuments < 1 {
		return newValidationError("ingestion", "root", "max_documents", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}

	return nil
}
