package rule

import (
	"context"
	"fmt"

	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/store"
)

// Demand contributes a multiplier when the restaurant's current
// orders-per-hour falls inside an active demand band. The signal is
// resolved by the caller into the context; when it is unknown the rule
// simply does not apply.
type Demand struct {
	cfg store.ConfigReader
}

// NewDemand creates the demand surge rule.
func NewDemand(cfg store.ConfigReader) *Demand {
	return &Demand{cfg: cfg}
}

func (r *Demand) Name() string  { return NameDemand }
func (r *Demand) Priority() int { return PriorityDemand }
func (r *Demand) Enabled() bool { return true }

func (r *Demand) Applies(_ context.Context, pc *model.PricingContext) (bool, error) {
	return pc.OrdersPerHour != nil, nil
}

func (r *Demand) Calculate(ctx context.Context, pc *model.PricingContext) (*Result, error) {
	if pc.OrdersPerHour == nil {
		return &Result{}, nil
	}
	surges, err := r.cfg.ActiveDemandSurges(ctx)
	if err != nil {
		return nil, err
	}

	oph := *pc.OrdersPerHour
	for _, band := range surges {
		if band.Matches(oph) {
			return &Result{Modification: &model.PriceModification{
				RuleName:    NameDemand,
				Description: fmt.Sprintf("High demand charge (%d orders/hr)", oph),
				Amount:      band.Multiplier,
				Kind:        model.KindMultiplier,
				Priority:    PriorityDemand,
			}}, nil
		}
	}
	return &Result{}, nil
}
