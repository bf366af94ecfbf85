package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/kpaschalidis/anvil/pkg/llm"
)

// DeepResearchRunError wraps a fatal failure from Run, attaching whatever
// partial Outcome had been collected before the failure so a caller can
// still persist diagnostics (§7 "partial outcome attached").
type DeepResearchRunError struct {
	Err     error
	Partial *Outcome
}

func (e *DeepResearchRunError) Error() string {
	return fmt.Sprintf("deep research run failed: %v", e.Err)
}

func (e *DeepResearchRunError) Unwrap() error { return e.Err }

// isTransientProviderError heuristically classifies a completion error as
// a transport-level hiccup (timeout, reset connection, truncated
// response) rather than a content/validation failure, per §7's "one local
// retry for transient provider errors" propagation policy.
func isTransientProviderError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "deadline exceeded", "connection reset", "eof", "temporary failure", "rate limit", "503", "502", "overloaded"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// completeWithRetry runs one completion call and, on a transient error,
// retries exactly once before giving up.
func completeWithRetry(ctx context.Context, completion llm.Completion, req llm.Request) (*llm.Response, error) {
	resp, err := completion.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if !isTransientProviderError(err) {
		return nil, err
	}
	return completion.Complete(ctx, req)
}
