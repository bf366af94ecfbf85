package llm

import "strings"

// IsRateLimitError reports whether err looks like a provider rate-limit
// rejection. Per §4.4 this is intentionally a substring heuristic over the
// error text ("rate" and "limit" both present, case-insensitive) rather than
// a typed-error check, since both the Anthropic and OpenAI SDKs surface rate
// limiting through generic HTTP-status error types whose exported fields
// differ across SDK versions; matching on message text is the stable
// cross-provider signal.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate") && strings.Contains(msg, "limit")
}
