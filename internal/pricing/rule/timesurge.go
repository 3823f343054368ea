package rule

import (
	"context"

	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/store"
)

// TimeSurge contributes the flat amount of the first active time window
// matching the order's day-of-week and time-of-day. Window bounds are
// inclusive on both ends.
type TimeSurge struct {
	cfg store.ConfigReader
}

// NewTimeSurge creates the time surge rule.
func NewTimeSurge(cfg store.ConfigReader) *TimeSurge {
	return &TimeSurge{cfg: cfg}
}

func (r *TimeSurge) Name() string  { return NameTimeSurge }
func (r *TimeSurge) Priority() int { return PriorityTimeSurge }
func (r *TimeSurge) Enabled() bool { return true }

func (r *TimeSurge) Applies(ctx context.Context, pc *model.PricingContext) (bool, error) {
	surge, err := r.match(ctx, pc)
	if err != nil {
		return false, err
	}
	return surge != nil, nil
}

func (r *TimeSurge) Calculate(ctx context.Context, pc *model.PricingContext) (*Result, error) {
	surge, err := r.match(ctx, pc)
	if err != nil {
		return nil, err
	}
	if surge == nil {
		return &Result{}, nil
	}
	return &Result{Modification: &model.PriceModification{
		RuleName:    NameTimeSurge,
		Description: "Peak hours charge",
		Amount:      surge.Amount,
		Kind:        model.KindFlat,
		Priority:    PriorityTimeSurge,
	}}, nil
}

func (r *TimeSurge) match(ctx context.Context, pc *model.PricingContext) (*model.TimeSurge, error) {
	surges, err := r.cfg.ActiveTimeSurges(ctx)
	if err != nil {
		return nil, err
	}
	for i := range surges {
		if surges[i].Matches(pc.OrderTime) {
			return &surges[i], nil
		}
	}
	return nil, nil
}
