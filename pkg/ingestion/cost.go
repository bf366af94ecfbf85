// Package ingestion implements the Ingestion Scheduler of §4.9: seeding,
// complexity assessment, the iteration loop, and stop conditions, driving a
// session from empty queue to completion. Grounded on the teacher's
// pkg/queue worker-dispatch loop for the iteration shape and on
// original_source/src/scout/*.py for the two supplemented mechanisms this
// file and complexity.go implement.
package ingestion

import "sync"

// ModelPrice is a per-million-token price pair for one model (§7
// supplemented feature 1).
type ModelPrice struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// CostTracker accumulates a running USD estimate from LLM token usage,
// checked against max_cost_usd (§4.9 stop conditions). Grounded on
// original_source/src/scout/cost.py's per-model price table + running
// total, reimplemented as a small thread-safe accumulator since the
// scheduler's per-source dispatch runs concurrently.
type CostTracker struct {
	mu     sync.Mutex
	prices map[string]ModelPrice
	total  float64
}

// NewCostTracker builds a tracker from a model -> price table.
func NewCostTracker(prices map[string]ModelPrice) *CostTracker {
	if prices == nil {
		prices = map[string]ModelPrice{}
	}
	return &CostTracker{prices: prices}
}

// Record adds the cost of one completion call to the running total and
// returns the incremental cost.
func (c *CostTracker) Record(model string, inputTokens, outputTokens int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	price, ok := c.prices[model]
	if !ok {
		return 0
	}
	cost := float64(inputTokens)/1_000_000*price.InputPerMillion + float64(outputTokens)/1_000_000*price.OutputPerMillion
	c.total += cost
	return cost
}

// Total returns the running USD total.
func (c *CostTracker) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// ExceedsBudget reports whether the running total has passed maxCostUSD.
func (c *CostTracker) ExceedsBudget(maxCostUSD float64) bool {
	if maxCostUSD <= 0 {
		return false
	}
	return c.Total() > maxCostUSD
}
