package rule

import (
	"context"
	"fmt"

	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/store"
)

// Promo contributes a negative percentage of the base fee when the context
// carries a recognized promo code. Unknown or inactive codes are silently
// ignored rather than rejected; code validation belongs to the order flow.
type Promo struct {
	cfg store.ConfigReader
}

// NewPromo creates the promo discount rule.
func NewPromo(cfg store.ConfigReader) *Promo {
	return &Promo{cfg: cfg}
}

func (r *Promo) Name() string  { return NamePromo }
func (r *Promo) Priority() int { return PriorityPromo }
func (r *Promo) Enabled() bool { return true }

func (r *Promo) Applies(_ context.Context, pc *model.PricingContext) (bool, error) {
	return pc.PromoCode != "", nil
}

func (r *Promo) Calculate(ctx context.Context, pc *model.PricingContext) (*Result, error) {
	if pc.PromoCode == "" {
		return &Result{}, nil
	}
	promo, err := r.cfg.Promo(ctx, pc.PromoCode)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return &Result{}, nil
	}

	desc := promo.Description
	if desc == "" {
		desc = fmt.Sprintf("Promo %s (%.0f%% off delivery)", promo.Code, promo.PercentOff)
	}
	return &Result{Modification: &model.PriceModification{
		RuleName:    NamePromo,
		Description: desc,
		Amount:      -promo.PercentOff,
		Kind:        model.KindPercentage,
		Priority:    PriorityPromo,
	}}, nil
}
