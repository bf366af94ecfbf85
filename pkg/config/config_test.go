package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAnvilYAML(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "anvil.yaml"), []byte(content), 0o644))
}

const minimalYAML = `
llm_providers:
  primary:
    type: anthropic
    model: claude-sonnet
    api_key_env: ANTHROPIC_API_KEY
defaults:
  llm_provider: primary
`

func TestInitialize_LoadsAndValidatesMinimalConfig(t *testing.T) {
	dir := t.TempDir()
	writeAnvilYAML(t, dir, minimalYAML)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, dir, cfg.ConfigDir())

	provider, name, err := cfg.DefaultProvider()
	require.NoError(t, err)
	assert.Equal(t, "primary", name)
	assert.Equal(t, "claude-sonnet", provider.Model)
}

func TestInitialize_MissingFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err, "no llm_providers configured should fail validation")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestInitialize_DataDirAndOverridesApplied(t *testing.T) {
	dir := t.TempDir()
	writeAnvilYAML(t, dir, minimalYAML+`
data_dir: /var/data/anvil
research:
  max_tasks: 10
  min_tasks: 5
  strict: true
ingestion:
  parallel_workers: 8
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "/var/data/anvil", cfg.DataDir)
	assert.Equal(t, 10, cfg.Research.MaxTasks)
	assert.Equal(t, 5, cfg.Research.MinTasks)
	assert.True(t, cfg.Research.Strict)
	assert.Equal(t, 8, cfg.Ingestion.ParallelWorkers)
}

func TestInitialize_InvalidProviderTypeFails(t *testing.T) {
	dir := t.TempDir()
	writeAnvilYAML(t, dir, `
llm_providers:
  primary:
    type: not-a-real-provider
    model: m
    api_key_env: X
`)
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type")
}

func TestInitialize_DefaultProviderMustExist(t *testing.T) {
	dir := t.TempDir()
	writeAnvilYAML(t, dir, `
llm_providers:
  primary:
    type: anthropic
    model: m
    api_key_env: X
defaults:
  llm_provider: nonexistent
`)
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm_provider")
}

func TestInitialize_InvalidCoverageModeFails(t *testing.T) {
	dir := t.TempDir()
	writeAnvilYAML(t, dir, minimalYAML+`
research:
  coverage_mode: sometimes
`)
	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coverage_mode")
}

func TestDefaultProvider_FallsBackToFirstWhenNoDefaultsSpecified(t *testing.T) {
	dir := t.TempDir()
	writeAnvilYAML(t, dir, `
llm_providers:
  only:
    type: openai
    model: gpt
    api_key_env: OPENAI_API_KEY
`)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	provider, name, err := cfg.DefaultProvider()
	require.NoError(t, err)
	assert.Equal(t, "only", name)
	assert.Equal(t, "gpt", provider.Model)
}

func TestDefaultProvider_ErrorsWhenNoProvidersExist(t *testing.T) {
	cfg := &Config{LLMProviders: map[string]*LLMProviderConfig{}}
	_, _, err := cfg.DefaultProvider()
	assert.ErrorIs(t, err, ErrLLMProviderNotFound)
}
