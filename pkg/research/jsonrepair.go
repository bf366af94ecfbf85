package research

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kpaschalidis/anvil/pkg/errs"
)

// parseJSONRepair implements the "try raw JSON, strip a single fenced code
// block, retry" rule shared by every JSON-emitting LLM call in this package
// (§4.8 step 10, §6, §9), a sibling of pkg/extraction's identically-shaped
// helper: extraction's copy is preserved verbatim from original_source per
// §9, so it is not factored out across the package boundary.
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
	return out, fmt.Errorf("%w: could not parse JSON response", errs.Synthesis("parse", "invalid json", nil))
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
