// Command ingest drives one Ingestion Scheduler session (§4.9) to
// completion for a topic. Grounded on the teacher's cmd/tarsy/main.go
// bootstrap idiom (flag, godotenv, config.Initialize), reworked around the
// ingestion domain's session/store/scheduler wiring instead of an HTTP
// server.
//
// No concrete Source implementation (Hacker News, Reddit, GitHub, Product
// Hunt) ships in this repository: spec.md's External Interfaces name the
// Source contract but leave concrete providers out of scope, and
// SPEC_FULL.md's Non-goals carry that boundary forward rather than
// fabricating production scrapers against third-party APIs this exercise
// has no credentials or sanctioned usage terms for. This command wires a
// real session/store/scheduler and registers source.NewFakeSource so the
// pipeline is runnable end to end against seeded fixture documents; wiring
// a genuine Source means implementing the Source interface in pkg/source
// and registering it here instead of FakeSource.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/kpaschalidis/anvil/pkg/config"
	"github.com/kpaschalidis/anvil/pkg/events"
	"github.com/kpaschalidis/anvil/pkg/extraction"
	"github.com/kpaschalidis/anvil/pkg/ingestion"
	"github.com/kpaschalidis/anvil/pkg/llm"
	"github.com/kpaschalidis/anvil/pkg/session"
	"github.com/kpaschalidis/anvil/pkg/source"
	"github.com/kpaschalidis/anvil/pkg/storage"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	topic := flag.String("topic", "", "the ingestion topic to seed and run")
	sessionID := flag.String("session-id", "", "session id; a UUID is generated if empty")
	flag.Parse()

	if *topic == "" {
		fmt.Fprintln(os.Stderr, "error: -topic is required")
		os.Exit(2)
	}

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
	}

	ctx := context.Background()
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	sid := *sessionID
	if sid == "" {
		sid = uuid.NewString()
	}
	dataDir := filepath.Join(cfg.DataDir, sid)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		slog.Error("failed to create session directory", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(filepath.Join(dataDir, "ingestion.db"))
	if err != nil {
		slog.Error("failed to open document store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	provider, _, err := cfg.DefaultProvider()
	if err != nil {
		slog.Error("failed to resolve default LLM provider", "error", err)
		os.Exit(1)
	}
	completion, err := newCompletion(provider)
	if err != nil {
		slog.Error("failed to build LLM completion port", "error", err)
		os.Exit(1)
	}

	pipeline := extraction.New(completion, provider.Model, "v1", extraction.DefaultTunables())
	cost := ingestion.NewCostTracker(map[string]ingestion.ModelPrice{})
	emitter := events.New(func(ev events.Event) {
		slog.Info("ingestion event", "kind", ev.Kind, "payload", ev.Payload)
	})

	registry := source.NewRegistry(source.NewFakeSource("fixture", nil))
	scheduler := ingestion.New(registry, store, pipeline, emitter, cost, ingestion.DefaultConfig())

	complexity := ingestion.AssessComplexity(ctx, completion, provider.Model, *topic)
	st := session.New(sid, *topic, "v1")
	st.SetComplexity(complexity)

	reason, err := scheduler.Run(ctx, st, registry, *topic, cfg.DataDir)
	if err != nil {
		slog.Error("ingestion run failed", "error", err, "stop_reason", reason)
		os.Exit(1)
	}
	slog.Info("ingestion run completed", "stop_reason", reason, "session_id", sid)
}

func newCompletion(provider *config.LLMProviderConfig) (llm.Completion, error) {
	apiKey := os.Getenv(provider.APIKeyEnv)
	switch provider.Type {
	case "anthropic":
		return llm.NewAnthropicAdapter(apiKey), nil
	case "openai":
		return llm.NewOpenAICompatAdapter(apiKey, provider.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider type: %q", provider.Type)
	}
}
