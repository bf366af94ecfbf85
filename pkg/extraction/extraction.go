// Package extraction implements the four-stage extraction pipeline of
// §4.10: content filter, LLM extraction with JSON-repair, response parsing
// with closed-set coercion/clamping, and snippet validation/dedup. Grounded
// on the teacher's pkg/agent prompt-templating helpers for the versioned
// template mechanism, and on the "try raw JSON, strip code fence, retry"
// rule carried verbatim from original_source/ per §9's explicit
// instruction to preserve it.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kpaschalidis/anvil/pkg/errs"
	"github.com/kpaschalidis/anvil/pkg/llm"
	"github.com/kpaschalidis/anvil/pkg/models"
)

// Tunables bundles the pipeline's configured constants (§4.10).
type Tunables struct {
	MinContentLength      int
	MinScore              float64
	DeletedAuthorSentinel string // e.g. "[deleted]"; "" disables the check
	ContentTruncationLimit int
	KnowledgeContextSize  int
	MaxRetries            int
	MaxFollowupQueries    int
	MinExcerptLength      int
	MinPainStatementLength int
	MinConfidence         float64
}

// DefaultTunables mirrors the magnitudes implied by the original scout
// extraction prompts.
func DefaultTunables() Tunables {
	return Tunables{
		MinContentLength:       40,
		MinScore:               0,
		DeletedAuthorSentinel:  "[deleted]",
		ContentTruncationLimit: 6000,
		KnowledgeContextSize:   15,
		MaxRetries:             2,
		MaxFollowupQueries:     3,
		MinExcerptLength:       15,
		MinPainStatementLength: 10,
		MinConfidence:          0.3,
	}
}

// ExtractionResult is the pipeline's output (§4.10).
type ExtractionResult struct {
	Snippets         []models.Snippet
	ExtractedEntities []string
	FollowupQueries  []string
	Novelty          float64
	Dropped          int
	ErrorKind        string // empty unless extraction failed outright
}

// Pipeline runs the four extraction stages against one Document.
type Pipeline struct {
	completion      llm.Completion
	model           string
	promptVersion   string
	tunables        Tunables
}

// New builds a Pipeline. promptVersion tags every produced Snippet so a
// later re-extraction run can be distinguished from this one.
func New(completion llm.Completion, model, promptVersion string, tunables Tunables) *Pipeline {
	return &Pipeline{completion: completion, model: model, promptVersion: promptVersion, tunables: tunables}
}

// FilterResult is Stage 1's verdict.
type FilterResult struct {
	Pass   bool
	Reason string // non-empty when Pass is false; feeds the doc_filtered event
}

// Filter is Stage 1: content filter.
func (p *Pipeline) Filter(doc models.Document) FilterResult {
	if len(strings.TrimSpace(doc.RawText)) < p.tunables.MinContentLength {
		return FilterResult{Reason: "content_too_short"}
	}
	if doc.Score != nil && *doc.Score < p.tunables.MinScore {
		return FilterResult{Reason: "score_below_minimum"}
	}
	if p.tunables.DeletedAuthorSentinel != "" && doc.Author == p.tunables.DeletedAuthorSentinel {
		return FilterResult{Reason: "author_deleted"}
	}
	return FilterResult{Pass: true}
}

// rawExtraction is the wire shape the LLM is asked to emit in Stage 2,
// before Stage 3's validation/clamping pass.
type rawExtraction struct {
	Snippets []rawSnippet `json:"snippets"`
	Entities []string     `json:"entities"`
	Followup []string     `json:"followup_queries"`
	Novelty  float64      `json:"novelty"`
}

type rawSnippet struct {
	Excerpt       string  `json:"excerpt"`
	PainStatement string  `json:"pain_statement"`
	SignalType    string  `json:"signal_type"`
	Intensity     float64 `json:"intensity"`
	Confidence    float64 `json:"confidence"`
}

// Run executes Stages 2-4 against a document that already passed Filter.
// topic/sourceLabel/knowledge feed the extraction prompt (§4.10 Stage 2).
func (p *Pipeline) Run(ctx context.Context, doc models.Document, topic, sourceLabel string, knowledge []string) (ExtractionResult, error) {
	prompt := p.buildPrompt(doc, topic, sourceLabel, knowledge)

	raw, errKind := p.extractWithRetry(ctx, prompt)
	if errKind != "" {
		return ExtractionResult{ErrorKind: errKind}, nil
	}

	snippets, dropped := p.parseAndValidate(raw, doc.DocID)
	followups := raw.Followup
	if len(followups) > p.tunables.MaxFollowupQueries {
		followups = followups[:p.tunables.MaxFollowupQueries]
	}

	return ExtractionResult{
		Snippets:          snippets,
		ExtractedEntities: raw.Entities,
		FollowupQueries:   followups,
		Novelty:           models.Clamp01(raw.Novelty),
		Dropped:           dropped,
	}, nil
}

func (p *Pipeline) buildPrompt(doc models.Document, topic, sourceLabel string, knowledge []string) string {
	text := doc.RawText
	if len(text) > p.tunables.ContentTruncationLimit {
		text = text[:p.tunables.ContentTruncationLimit]
	}
	ctxItems := knowledge
	if len(ctxItems) > p.tunables.KnowledgeContextSize {
		ctxItems = ctxItems[len(ctxItems)-p.tunables.KnowledgeContextSize:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Extraction template %s\n", p.promptVersion)
	fmt.Fprintf(&b, "Topic: %s\nSource: %s\nTitle: %s\nURL: %s\n\n", topic, sourceLabel, doc.Title, doc.URL)
	if len(ctxItems) > 0 {
		b.WriteString("Recent knowledge:\n")
		for _, k := range ctxItems {
			fmt.Fprintf(&b, "- %s\n", k)
		}
		b.WriteString("\n")
	}
	b.WriteString("Document text:\n")
	b.WriteString(text)
	b.WriteString("\n\nReturn a JSON object with snippets[], entities[], followup_queries[], novelty.")
	return b.String()
}

// extractWithRetry implements the "try raw JSON, strip code fence, retry"
// rule of §4.8/§9, preserved verbatim for the extraction pipeline's own
// JSON response.
func (p *Pipeline) extractWithRetry(ctx context.Context, prompt string) (rawExtraction, string) {
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}

	var lastErr error
	for attempt := 0; attempt <= p.tunables.MaxRetries; attempt++ {
		resp, err := p.completion.Complete(ctx, llm.Request{
			Model:       p.model,
			Messages:    messages,
			Temperature: 0.0,
			MaxTokens:   2048,
		})
		if err != nil {
			lastErr = err
			continue
		}

		parsed, err := parseJSONRepair[rawExtraction](resp.Content)
		if err == nil {
			return parsed, ""
		}
		lastErr = err
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.Message{Role: llm.RoleUser, Content: "That was not valid JSON. Return raw JSON only, no commentary, no code fence."})
	}
	_ = lastErr
	return rawExtraction{}, "json_decode_failed"
}

// parseJSONRepair implements the shared JSON-repair rule: try the raw text
// as JSON, then strip a single ```...``` code fence and retry.
func parseJSONRepair[T any](text string) (T, error) {
	var out T
	trimmed := strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
		return out, nil
	}

	if stripped, ok := stripCodeFence(trimmed); ok {
		if err := json.Unmarshal([]byte(stripped), &out); err == nil {
			return out, nil
		}
	}
	return out, fmt.Errorf("%w: could not parse JSON response", errs.Synthesis("extraction", "invalid json", nil))
}

func stripCodeFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		first := s[:idx]
		if !strings.Contains(first, "{") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s), true
}

// parseAndValidate is Stages 3-4: coerce/clamp each raw snippet, then drop
// snippets failing length/confidence minimums, deduplicating by normalized
// pain statement.
func (p *Pipeline) parseAndValidate(raw rawExtraction, docID string) ([]models.Snippet, int) {
	dropped := 0
	seen := map[string]bool{}
	var out []models.Snippet

	for i, rs := range raw.Snippets {
		if strings.TrimSpace(rs.Excerpt) == "" || strings.TrimSpace(rs.PainStatement) == "" {
			dropped++
			continue
		}

		signal := models.CoerceSignalType(rs.SignalType)
		intensity := models.ClampIntensity(rs.Intensity)
		confidence := models.Clamp01(rs.Confidence)

		if len(rs.Excerpt) < p.tunables.MinExcerptLength || len(rs.PainStatement) < p.tunables.MinPainStatementLength || confidence < p.tunables.MinConfidence {
			dropped++
			continue
		}

		key := strings.ToLower(strings.TrimSpace(rs.PainStatement))
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true

		out = append(out, models.Snippet{
			SnippetID:      fmt.Sprintf("%s_%d", docID, i),
			DocID:          docID,
			Excerpt:        rs.Excerpt,
			PainStatement:  rs.PainStatement,
			SignalType:     signal,
			Intensity:      intensity,
			Confidence:     confidence,
			QualityScore:   models.QualityScoreOf(intensity, confidence, models.Clamp01(raw.Novelty)),
			ExtractorModel: p.model,
			PromptVersion:  p.promptVersion,
			ExtractedAt:    time.Now(),
		})
	}
	return out, dropped
}
