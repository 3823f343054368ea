// Package rule defines the pricing rule contract and its variants. Each
// rule is one unit of fee computation: it decides whether it applies to a
// pricing context, and if so, what modification it contributes. The engine
// composes the contributions; rules never see each other's output.
package rule

import (
	"context"
	"sort"
	"sync"

	"github.com/plateful/pricing-engine/internal/model"
)

// Rule names. The engine keys its base fee handling off NameBaseFee, so
// there must be exactly one rule with that name registered.
const (
	NameBaseFee    = "base_fee"
	NameDistance   = "distance"
	NameTimeSurge  = "time_surge"
	NameWeather    = "weather_surge"
	NameDemand     = "demand_surge"
	NameSpecialDay = "special_day_surge"
	NamePromo      = "promo_discount"
	NameThirdParty = "third_party_delivery"
)

// Rule priorities. Lower runs first. Third-party delivery is pinned last
// so its network call never delays the cheap config-lookup rules' chance
// to contribute.
const (
	PriorityBaseFee    = 1
	PriorityDistance   = 2
	PriorityTimeSurge  = 3
	PriorityWeather    = 4
	PriorityDemand     = 5
	PrioritySpecialDay = 6
	PriorityPromo      = 7
	PriorityThirdParty = 100
)

// Result is what a rule's Calculate returns. A nil Modification means the
// rule looked at its config and found nothing to contribute. ThirdParty is
// a side channel used only by the third-party delivery rule; the engine
// threads it into the quote instead of letting the rule mutate the context.
type Result struct {
	Modification *model.PriceModification
	ThirdParty   *model.ThirdPartyQuote
}

// Rule is the polymorphic pricing rule contract.
type Rule interface {
	// Name returns the stable rule identifier used in breakdowns and logs.
	Name() string
	// Priority orders composition. Lower runs first.
	Priority() int
	// Enabled reports whether the rule participates at all. Static per
	// deployment, e.g. false when no third-party provider is configured.
	Enabled() bool
	// Applies reports whether the rule has anything to say about this
	// context. May consult the config store.
	Applies(ctx context.Context, pc *model.PricingContext) (bool, error)
	// Calculate produces the rule's contribution, or a nil-modification
	// Result when the required config is absent.
	Calculate(ctx context.Context, pc *model.PricingContext) (*Result, error)
}

// QuoteRequest carries the trip facts a third-party logistics provider
// needs to price a delivery.
type QuoteRequest struct {
	Pickup      model.Coordinate
	Drop        model.Coordinate
	OrderAmount float64
	OrderWeight *float64
}

// QuoteProvider is the third-party delivery quote collaborator.
type QuoteProvider interface {
	Name() string
	GetQuote(ctx context.Context, req QuoteRequest) (*model.ThirdPartyQuote, error)
}

// Registry holds the statically registered rule set. Registration order is
// preserved as the tie-break for equal priorities.
type Registry struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a rule to the registry.
func (r *Registry) Register(rules ...Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rules...)
}

// Enabled returns the enabled rules sorted ascending by priority. The sort
// is stable, so rules sharing a priority keep registration order.
func (r *Registry) Enabled() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Rule, 0, len(r.rules))
	for _, rl := range r.rules {
		if rl.Enabled() {
			out = append(out, rl)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() < out[j].Priority()
	})
	return out
}

// Names returns all registered rule names, enabled or not.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.rules))
	for _, rl := range r.rules {
		names = append(names, rl.Name())
	}
	return names
}
