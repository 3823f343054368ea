package rule

import (
	"context"
	"fmt"

	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/store"
)

// Weather contributes a flat amount or a multiplier when the current
// weather is strictly worse than cloudy on the ordinal severity scale.
// Which kind it contributes is decided by the matched config row.
type Weather struct {
	cfg store.ConfigReader
}

// NewWeather creates the weather surge rule.
func NewWeather(cfg store.ConfigReader) *Weather {
	return &Weather{cfg: cfg}
}

func (r *Weather) Name() string  { return NameWeather }
func (r *Weather) Priority() int { return PriorityWeather }
func (r *Weather) Enabled() bool { return true }

func (r *Weather) Applies(_ context.Context, pc *model.PricingContext) (bool, error) {
	if pc.Weather == nil {
		return false, nil
	}
	return pc.Weather.WorseThan(model.WeatherCloudy), nil
}

func (r *Weather) Calculate(ctx context.Context, pc *model.PricingContext) (*Result, error) {
	if pc.Weather == nil {
		return &Result{}, nil
	}
	surge, err := r.cfg.WeatherSurge(ctx, *pc.Weather)
	if err != nil {
		return nil, err
	}
	if surge == nil {
		return &Result{}, nil
	}

	desc := fmt.Sprintf("Bad weather charge (%s)", *pc.Weather)
	switch {
	case surge.FlatAmount != nil:
		return &Result{Modification: &model.PriceModification{
			RuleName:    NameWeather,
			Description: desc,
			Amount:      *surge.FlatAmount,
			Kind:        model.KindFlat,
			Priority:    PriorityWeather,
		}}, nil
	case surge.Multiplier != nil:
		return &Result{Modification: &model.PriceModification{
			RuleName:    NameWeather,
			Description: desc,
			Amount:      *surge.Multiplier,
			Kind:        model.KindMultiplier,
			Priority:    PriorityWeather,
		}}, nil
	}
	return &Result{}, nil
}
