// Package pricing implements the delivery fee engine: it evaluates the
// registered rules against a pricing context and composes their
// modifications into a time-boxed quote.
package pricing

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/monitoring"
	"github.com/plateful/pricing-engine/internal/pricing/rule"
	"github.com/plateful/pricing-engine/internal/store"
)

// DefaultQuoteTTL is how long an issued quote remains bookable. Expiry is
// advisory; callers check it, nothing here enforces it.
const DefaultQuoteTTL = 10 * time.Minute

// Engine orchestrates rule evaluation and fee composition. It is
// stateless per request and safe for concurrent use.
type Engine struct {
	registry *rule.Registry
	cfg      store.ConfigReader
	metrics  *monitoring.Collector
	parallel bool
	quoteTTL time.Duration
	nowFunc  func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallelRules evaluates rules concurrently. Composition stays a
// sequential fold over the priority order, so output is unchanged; only
// wall time differs when the third-party rule is slow.
func WithParallelRules() Option {
	return func(e *Engine) { e.parallel = true }
}

// WithMetrics records quote metrics into the collector.
func WithMetrics(m *monitoring.Collector) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithQuoteTTL overrides the quote expiry window.
func WithQuoteTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.quoteTTL = ttl }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.nowFunc = now }
}

// NewEngine creates a pricing engine over the given rule registry and
// config reader.
func NewEngine(registry *rule.Registry, cfg store.ConfigReader, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		cfg:      cfg,
		quoteTTL: DefaultQuoteTTL,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CalculateDeliveryFee evaluates all enabled rules against the context and
// returns a quote. Individual rule failures are logged and skipped; the
// engine always returns a quote unless the context itself is cancelled.
func (e *Engine) CalculateDeliveryFee(ctx context.Context, pc *model.PricingContext) (*model.QuoteResult, error) {
	start := e.nowFunc()
	rules := e.registry.Enabled()

	results := make([]*rule.Result, len(rules))
	if e.parallel {
		var g errgroup.Group
		for i, rl := range rules {
			i, rl := i, rl
			g.Go(func() error {
				results[i] = e.evaluate(ctx, rl, pc)
				return nil
			})
		}
		_ = g.Wait() // goroutines never return errors
	} else {
		for i, rl := range rules {
			results[i] = e.evaluate(ctx, rl, pc)
		}
	}

	// Collect modifications in rule order. rules is already sorted by
	// priority, so this is the composition order.
	var mods []*model.PriceModification
	var thirdParty *model.ThirdPartyQuote
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Modification != nil {
			mods = append(mods, res.Modification)
		}
		if res.ThirdParty != nil {
			thirdParty = res.ThirdParty
		}
	}

	baseFee, finalFee, multiplier, surgeReason, breakdown := compose(mods)
	finalFee = e.clamp(ctx, finalFee)
	if finalFee < 0 {
		finalFee = 0
	}

	now := e.nowFunc()
	quote := &model.QuoteResult{
		QuoteID:         uuid.New().String(),
		IssuedAt:        now,
		ExpiresAt:       now.Add(e.quoteTTL),
		BaseFee:         baseFee,
		FinalFee:        finalFee,
		Multiplier:      multiplier,
		SurgeReason:     surgeReason,
		ThirdPartyQuote: thirdParty,
		Breakdown:       breakdown,
	}

	if e.metrics != nil {
		e.metrics.RecordQuote(now.Sub(start), multiplier > 1, thirdParty != nil)
	}
	return quote, nil
}

// evaluate runs one rule's applies/calculate pair. Any error is logged
// with the rule name and turned into "contributes nothing"; a broken rule
// must never block the other fee components.
func (e *Engine) evaluate(ctx context.Context, rl rule.Rule, pc *model.PricingContext) *rule.Result {
	applies, err := rl.Applies(ctx, pc)
	if err != nil {
		e.skip(rl, "applies", err)
		return nil
	}
	if !applies {
		return nil
	}

	res, err := rl.Calculate(ctx, pc)
	if err != nil {
		e.skip(rl, "calculate", err)
		return nil
	}
	return res
}

func (e *Engine) skip(rl rule.Rule, op string, err error) {
	zap.L().Warn("pricing: rule skipped",
		zap.String("rule", rl.Name()),
		zap.String("op", op),
		zap.Error(err),
	)
	if e.metrics != nil {
		e.metrics.RecordRuleFailure(rl.Name())
	}
}

// compose folds the priority-ordered modifications into the final numbers.
// Three running values: baseFee (overwritten by the base fee rule),
// flatTotal (sum of flats and percentage amounts), multiplier (product).
// The first multiplier above 1 labels the quote's primary surge reason.
func compose(mods []*model.PriceModification) (baseFee, finalFee, multiplier float64, surgeReason string, breakdown []model.AppliedModification) {
	multiplier = 1
	var flatTotal float64

	for _, m := range mods {
		var applied float64
		switch m.Kind {
		case model.KindFlat:
			if m.RuleName == rule.NameBaseFee {
				baseFee = m.Amount
			} else {
				flatTotal += m.Amount
			}
			applied = m.Amount
		case model.KindPercentage:
			// Always against baseFee, not the running total, so
			// percentage rules stay order-independent among themselves.
			applied = baseFee * m.Amount / 100
			flatTotal += applied
		case model.KindMultiplier:
			multiplier *= m.Amount
			if surgeReason == "" && m.Amount > 1 {
				surgeReason = m.Description
			}
			applied = baseFee * (m.Amount - 1)
		}

		breakdown = append(breakdown, model.AppliedModification{
			RuleName:    m.RuleName,
			Description: m.Description,
			Kind:        m.Kind,
			Amount:      m.Amount,
			Applied:     round2(applied),
		})
	}

	finalFee = round2((baseFee + flatTotal) * multiplier)
	return baseFee, finalFee, multiplier, surgeReason, breakdown
}

// clamp bounds the fee into the configured [min, max] window. Clamping
// happens after composition, never before. A store failure here degrades
// to no clamping rather than failing the quote.
func (e *Engine) clamp(ctx context.Context, fee float64) float64 {
	cfg, err := e.cfg.ActiveBaseFeeConfig(ctx)
	if err != nil {
		zap.L().Warn("pricing: fee bounds unavailable, skipping clamp", zap.Error(err))
		return fee
	}
	if cfg == nil {
		return fee
	}
	if cfg.MinimumFee != nil && fee < *cfg.MinimumFee {
		return *cfg.MinimumFee
	}
	if cfg.MaximumFee != nil && fee > *cfg.MaximumFee {
		return *cfg.MaximumFee
	}
	return fee
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
