// Package monitoring provides in-process quote metrics and a background
// health checker for the pricing service.
package monitoring

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsSnapshot holds a point-in-time view of quoting activity since
// process start.
type MetricsSnapshot struct {
	QuotesTotal      int64            `json:"quotes_total"`
	SurgeQuotes      int64            `json:"surge_quotes"`
	ThirdPartyQuotes int64            `json:"third_party_quotes"`
	RuleFailures     map[string]int64 `json:"rule_failures"`
	AvgQuoteMillis   float64          `json:"avg_quote_millis"`
	MaxQuoteMillis   int64            `json:"max_quote_millis"`
	CollectedAt      time.Time        `json:"collected_at"`
}

// Collector accumulates quote metrics. All methods are safe for
// concurrent use; the engine records into it on every request.
type Collector struct {
	quotesTotal      atomic.Int64
	surgeQuotes      atomic.Int64
	thirdPartyQuotes atomic.Int64
	totalMillis      atomic.Int64
	maxMillis        atomic.Int64

	mu           sync.Mutex
	ruleFailures map[string]int64
}

// NewCollector creates an empty metrics collector.
func NewCollector() *Collector {
	return &Collector{ruleFailures: make(map[string]int64)}
}

// RecordQuote records one completed quote calculation.
func (c *Collector) RecordQuote(elapsed time.Duration, surged, thirdParty bool) {
	c.quotesTotal.Add(1)
	if surged {
		c.surgeQuotes.Add(1)
	}
	if thirdParty {
		c.thirdPartyQuotes.Add(1)
	}

	ms := elapsed.Milliseconds()
	c.totalMillis.Add(ms)
	for {
		cur := c.maxMillis.Load()
		if ms <= cur || c.maxMillis.CompareAndSwap(cur, ms) {
			break
		}
	}
}

// RecordRuleFailure counts a rule whose evaluation errored and was skipped.
func (c *Collector) RecordRuleFailure(ruleName string) {
	c.mu.Lock()
	c.ruleFailures[ruleName]++
	c.mu.Unlock()
}

// Snapshot returns the current metrics.
func (c *Collector) Snapshot() MetricsSnapshot {
	c.mu.Lock()
	failures := make(map[string]int64, len(c.ruleFailures))
	for name, n := range c.ruleFailures {
		failures[name] = n
	}
	c.mu.Unlock()

	total := c.quotesTotal.Load()
	snap := MetricsSnapshot{
		QuotesTotal:      total,
		SurgeQuotes:      c.surgeQuotes.Load(),
		ThirdPartyQuotes: c.thirdPartyQuotes.Load(),
		RuleFailures:     failures,
		MaxQuoteMillis:   c.maxMillis.Load(),
		CollectedAt:      time.Now().UTC(),
	}
	if total > 0 {
		snap.AvgQuoteMillis = float64(c.totalMillis.Load()) / float64(total)
	}
	return snap
}
