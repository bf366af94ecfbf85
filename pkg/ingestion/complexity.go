package ingestion

import (
	"context"
	"strings"

	"github.com/kpaschalidis/anvil/pkg/llm"
	"github.com/kpaschalidis/anvil/pkg/session"
)

// conjunctions signal a multi-part topic for the fallback heuristic (§7
// supplemented feature 2), grounded on
// original_source/src/scout/complexity.py's word list.
var conjunctions = []string{" and ", " vs ", " versus ", " or ", " comparing ", " compared to "}

// AssessComplexity calls the LLM with a one-word classification prompt
// ("simple", "medium", or "complex") and parses the response; if the LLM
// call itself fails, it falls back to a deterministic heuristic over the
// topic's word count and the presence of multi-part conjunctions rather
// than aborting seeding (§4.9, §7 supplemented feature 2).
func AssessComplexity(ctx context.Context, completion llm.Completion, model, topic string) session.Complexity {
	resp, err := completion.Complete(ctx, llm.Request{
		Model: model,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: "Classify the research complexity of this topic as exactly one word - simple, medium, or complex: " + topic,
		}},
		Temperature: 0.0,
		MaxTokens:   10,
	})
	if err == nil {
		if c, ok := parseComplexityWord(resp.Content); ok {
			return c
		}
	}
	return heuristicComplexity(topic)
}

func parseComplexityWord(content string) (session.Complexity, bool) {
	word := strings.ToLower(strings.TrimSpace(content))
	word = strings.Trim(word, ".!\"' ")
	switch word {
	case string(session.ComplexitySimple):
		return session.ComplexitySimple, true
	case string(session.ComplexityMedium):
		return session.ComplexityMedium, true
	case string(session.ComplexityComplex):
		return session.ComplexityComplex, true
	default:
		return "", false
	}
}

// heuristicComplexity implements original_source/src/scout/complexity.py's
// fallback: short single-idea topics are simple, topics with a
// multi-part conjunction or many words are complex, everything else is
// medium.
func heuristicComplexity(topic string) session.Complexity {
	lower := " " + strings.ToLower(topic) + " "
	words := len(strings.Fields(topic))

	for _, c := range conjunctions {
		if strings.Contains(lower, c) {
			return session.ComplexityComplex
		}
	}
	if words <= 3 {
		return session.ComplexitySimple
	}
	if words >= 10 {
		return session.ComplexityComplex
	}
	return session.ComplexityMedium
}
