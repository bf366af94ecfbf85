// Command research runs a single Deep-Research Orchestrator query end to
// end (§4.8): it loads configuration, wires an LLM completion port, a tool
// registry (web_search/web_extract over Tavily, read/grep/list over the
// session's working directory), runs either the multi-round or
// draft-centric strategy, and writes the resulting Markdown report to
// stdout and to disk. Grounded on the teacher's cmd/tarsy/main.go
// flag+godotenv+config.Initialize bootstrap sequence, minus the gin HTTP
// server: this system exposes no HTTP surface (§6 lists only the
// Source/Completion/Tool contracts and on-disk layouts), so the CLI runs
// one query and exits rather than serving requests.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/kpaschalidis/anvil/pkg/config"
	"github.com/kpaschalidis/anvil/pkg/events"
	"github.com/kpaschalidis/anvil/pkg/fstools"
	"github.com/kpaschalidis/anvil/pkg/llm"
	"github.com/kpaschalidis/anvil/pkg/research"
	"github.com/kpaschalidis/anvil/pkg/tavily"
	"github.com/kpaschalidis/anvil/pkg/toolregistry"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	query := flag.String("query", "", "the research query to run")
	strategy := flag.String("strategy", "multi-round", "orchestration strategy: multi-round | draft-centric")
	sessionID := flag.String("session-id", "", "session id; a UUID is generated if empty")
	outFile := flag.String("out", "", "path to write the rendered report; defaults to <data-dir>/<session-id>/research/report.md")
	flag.Parse()

	if *query == "" {
		fmt.Fprintln(os.Stderr, "error: -query is required")
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

	completion, err := newCompletion(cfg)
	if err != nil {
		slog.Error("failed to build LLM completion port", "error", err)
		os.Exit(1)
	}

	registry := toolregistry.New()
	if apiKey := os.Getenv("TAVILY_API_KEY"); apiKey != "" {
		tavily.RegisterTools(registry, tavily.NewClient(apiKey))
	} else {
		slog.Warn("TAVILY_API_KEY not set; web_search/web_extract will not be registered")
	}
	workDir := filepath.Join(cfg.DataDir, sid)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		slog.Error("failed to create session working directory", "error", err)
		os.Exit(1)
	}
	fstools.New(workDir).RegisterTools(registry)

	emitter := events.New(func(ev events.Event) {
		slog.Info("research event", "kind", ev.Kind, "payload", ev.Payload)
	})

	orchestrator := research.New(completion, registry, cfg.Research)

	start := time.Now()
	var outcome *research.Outcome
	switch *strategy {
	case "draft-centric":
		outcome, err = orchestrator.RunDraftCentric(ctx, *query, research.DefaultStrategy2Config(), emitter)
	default:
		outcome, err = orchestrator.Run(ctx, *query, cfg.DataDir, sid, emitter)
	}
	if err != nil {
		slog.Error("research run failed", "error", err, "elapsed", time.Since(start))
		if outcome != nil && outcome.Report != nil {
			writeReport(cfg.DataDir, sid, *outFile, outcome.Report.Markdown)
		}
		os.Exit(1)
	}

	slog.Info("research run completed", "elapsed", time.Since(start), "citations", len(outcome.Report.Citations))
	writeReport(cfg.DataDir, sid, *outFile, outcome.Report.Markdown)
	fmt.Println(outcome.Report.Markdown)
}

func writeReport(dataDir, sessionID, outFile, markdown string) {
	path := outFile
	if path == "" {
		dir := filepath.Join(dataDir, sessionID, "research")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("failed to create report directory", "error", err)
			return
		}
		path = filepath.Join(dir, "report.md")
	}
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		slog.Error("failed to write report", "path", path, "error", err)
	}
}

// newCompletion resolves the configured default LLM provider into a
// Completion adapter (§6 "Completion capability"), honoring either a real
// anthropic or openai(-compatible) provider.
func newCompletion(cfg *config.Config) (llm.Completion, error) {
	provider, _, err := cfg.DefaultProvider()
	if err != nil {
		return nil, err
	}
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
