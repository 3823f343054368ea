package rule

import (
	"context"
	"fmt"

	"github.com/plateful/pricing-engine/internal/model"
)

// ThirdParty asks an external logistics provider to quote the delivery and
// contributes the quoted price as a flat amount. It runs last so a slow or
// failing provider never delays the config-lookup rules. Disabled when no
// provider is configured.
type ThirdParty struct {
	provider QuoteProvider
}

// NewThirdParty creates the third-party delivery rule. A nil provider
// yields a permanently disabled rule.
func NewThirdParty(provider QuoteProvider) *ThirdParty {
	return &ThirdParty{provider: provider}
}

func (r *ThirdParty) Name() string  { return NameThirdParty }
func (r *ThirdParty) Priority() int { return PriorityThirdParty }
func (r *ThirdParty) Enabled() bool { return r.provider != nil }

func (r *ThirdParty) Applies(_ context.Context, _ *model.PricingContext) (bool, error) {
	return r.provider != nil, nil
}

func (r *ThirdParty) Calculate(ctx context.Context, pc *model.PricingContext) (*Result, error) {
	quote, err := r.provider.GetQuote(ctx, QuoteRequest{
		Pickup:      pc.PickupLocation,
		Drop:        pc.DropLocation,
		OrderAmount: pc.OrderAmount,
		OrderWeight: pc.OrderWeight,
	})
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return &Result{}, nil
	}

	return &Result{
		Modification: &model.PriceModification{
			RuleName:    NameThirdParty,
			Description: fmt.Sprintf("Third-party delivery (%s)", quote.Provider),
			Amount:      quote.Price,
			Kind:        model.KindFlat,
			Priority:    PriorityThirdParty,
		},
		ThirdParty: quote,
	}, nil
}
