// Package demand resolves the orders-per-hour signal used by the demand
// surge rule. Samples are written to the store by the order intake
// process; this package only reads them.
package demand

import (
	"context"

	"go.uber.org/zap"
)

// SampleReader is the slice of the store the tracker needs.
type SampleReader interface {
	RestaurantOrdersPerHour(ctx context.Context, restaurantID string) (*int, error)
}

// Tracker reports current restaurant demand. An unavailable or stale
// signal comes back as nil, never as an error: demand is an enrichment,
// and a quote without it is still a valid quote.
type Tracker struct {
	store SampleReader
}

// NewTracker creates a demand tracker over the given sample reader.
func NewTracker(store SampleReader) *Tracker {
	return &Tracker{store: store}
}

// CurrentOrdersPerHour returns the restaurant's most recent fresh demand
// sample, or nil when none exists. Store failures degrade to nil with a
// warning so context assembly never blocks on the demand signal.
func (t *Tracker) CurrentOrdersPerHour(ctx context.Context, restaurantID string) *int {
	oph, err := t.store.RestaurantOrdersPerHour(ctx, restaurantID)
	if err != nil {
		zap.L().Warn("demand: sample lookup failed",
			zap.String("restaurant_id", restaurantID),
			zap.Error(err),
		)
		return nil
	}
	return oph
}
