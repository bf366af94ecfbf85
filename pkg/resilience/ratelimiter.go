package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter maintains a rolling 60-second window cap plus a minimum
// inter-request delay (§4.3). The rolling-window cap is implemented with
// golang.org/x/time/rate's token bucket (refilled continuously over the
// window, which is equivalent in steady state to a fixed 60s window and is
// the idiomatic Go way to express it — see goadesign/goa-ai's use of the
// same package for LLM-call throttling) layered with an explicit minimum
// spacing check the token bucket alone doesn't give us.
type RateLimiter struct {
	limiter   *rate.Limiter
	minDelay  time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// NewRateLimiter creates a limiter allowing at most maxPerWindow requests
// per 60-second window, with at least minDelay between any two requests.
func NewRateLimiter(maxPerWindow int, minDelay time.Duration) *RateLimiter {
	if maxPerWindow <= 0 {
		maxPerWindow = 1
	}
	perSecond := rate.Limit(float64(maxPerWindow) / 60.0)
	return &RateLimiter{
		limiter:  rate.NewLimiter(perSecond, maxPerWindow),
		minDelay: minDelay,
	}
}

// Wait blocks until both the window cap and the minimum spacing are
// satisfied, then records the request (§4.3). It respects ctx cancellation.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	sinceLast := time.Since(r.lastCall)
	var spacingWait time.Duration
	if !r.lastCall.IsZero() && sinceLast < r.minDelay {
		spacingWait = r.minDelay - sinceLast
	}
	r.mu.Unlock()

	if spacingWait > 0 {
		t := time.NewTimer(spacingWait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	r.lastCall = time.Now()
	r.mu.Unlock()
	return nil
}
