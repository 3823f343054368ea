package rule

import (
	"context"

	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/store"
)

// BaseFee contributes the configured flat base amount. It always applies;
// when no active config exists it contributes nothing and the quote bottoms
// out at zero.
type BaseFee struct {
	cfg store.ConfigReader
}

// NewBaseFee creates the base fee rule.
func NewBaseFee(cfg store.ConfigReader) *BaseFee {
	return &BaseFee{cfg: cfg}
}

func (r *BaseFee) Name() string  { return NameBaseFee }
func (r *BaseFee) Priority() int { return PriorityBaseFee }
func (r *BaseFee) Enabled() bool { return true }

func (r *BaseFee) Applies(_ context.Context, _ *model.PricingContext) (bool, error) {
	return true, nil
}

func (r *BaseFee) Calculate(ctx context.Context, _ *model.PricingContext) (*Result, error) {
	cfg, err := r.cfg.ActiveBaseFeeConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return &Result{}, nil
	}
	return &Result{Modification: &model.PriceModification{
		RuleName:    NameBaseFee,
		Description: "Base delivery fee",
		Amount:      cfg.Amount,
		Kind:        model.KindFlat,
		Priority:    PriorityBaseFee,
	}}, nil
}
