package rule

import (
	"context"
	"fmt"

	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/store"
)

// Distance contributes the flat rate of the band containing the trip
// distance. Bands come back from the store ordered by MinKm and the first
// containing band wins; authors are responsible for keeping bands
// non-overlapping.
type Distance struct {
	cfg store.ConfigReader
}

// NewDistance creates the distance rule.
func NewDistance(cfg store.ConfigReader) *Distance {
	return &Distance{cfg: cfg}
}

func (r *Distance) Name() string  { return NameDistance }
func (r *Distance) Priority() int { return PriorityDistance }
func (r *Distance) Enabled() bool { return true }

func (r *Distance) Applies(_ context.Context, pc *model.PricingContext) (bool, error) {
	return pc.TripDistanceKm() > 0, nil
}

func (r *Distance) Calculate(ctx context.Context, pc *model.PricingContext) (*Result, error) {
	rates, err := r.cfg.ActiveDistanceRates(ctx)
	if err != nil {
		return nil, err
	}

	km := pc.TripDistanceKm()
	for _, band := range rates {
		if band.Contains(km) {
			return &Result{Modification: &model.PriceModification{
				RuleName:    NameDistance,
				Description: fmt.Sprintf("Distance charge (%.1f km)", km),
				Amount:      band.Rate,
				Kind:        model.KindFlat,
				Priority:    PriorityDistance,
			}}, nil
		}
	}
	return &Result{}, nil
}
