package rule

import (
	"context"

	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/store"
)

// SpecialDay contributes a flat amount or a multiplier when the order date
// has an active special-day config (public holidays, big match days).
type SpecialDay struct {
	cfg store.ConfigReader
}

// NewSpecialDay creates the special day surge rule.
func NewSpecialDay(cfg store.ConfigReader) *SpecialDay {
	return &SpecialDay{cfg: cfg}
}

func (r *SpecialDay) Name() string  { return NameSpecialDay }
func (r *SpecialDay) Priority() int { return PrioritySpecialDay }
func (r *SpecialDay) Enabled() bool { return true }

func (r *SpecialDay) Applies(ctx context.Context, pc *model.PricingContext) (bool, error) {
	surge, err := r.cfg.SpecialDaySurge(ctx, pc.OrderTime.Format("2006-01-02"))
	if err != nil {
		return false, err
	}
	return surge != nil, nil
}

func (r *SpecialDay) Calculate(ctx context.Context, pc *model.PricingContext) (*Result, error) {
	surge, err := r.cfg.SpecialDaySurge(ctx, pc.OrderTime.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	if surge == nil {
		return &Result{}, nil
	}

	desc := surge.Reason
	if desc == "" {
		desc = "Special day charge"
	}
	switch {
	case surge.FlatAmount != nil:
		return &Result{Modification: &model.PriceModification{
			RuleName:    NameSpecialDay,
			Description: desc,
			Amount:      *surge.FlatAmount,
			Kind:        model.KindFlat,
			Priority:    PrioritySpecialDay,
		}}, nil
	case surge.Multiplier != nil:
		return &Result{Modification: &model.PriceModification{
			RuleName:    NameSpecialDay,
			Description: desc,
			Amount:      *surge.Multiplier,
			Kind:        model.KindMultiplier,
			Priority:    PrioritySpecialDay,
		}}, nil
	}
	return &Result{}, nil
}
