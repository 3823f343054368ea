package store

import (
	"context"
	"time"

	"github.com/plateful/pricing-engine/internal/model"
)

// ConfigReader is the read side of the pricing configuration store. Rules
// and the engine consume it; in production they see it through the
// config-cache wrapper, never directly.
//
// Absent configuration is not an error: point lookups return (nil, nil)
// and list lookups return an empty slice. Only infrastructure failures
// (connection loss, bad schema) surface as errors.
type ConfigReader interface {
	// ActiveBaseFeeConfig returns the single active base fee config, or nil.
	ActiveBaseFeeConfig(ctx context.Context) (*model.BaseFeeConfig, error)
	// ActiveDistanceRates returns active distance bands ordered by MinKm.
	// First match wins, so the returned order is the tie-break order.
	ActiveDistanceRates(ctx context.Context) ([]model.DistanceRate, error)
	// ActiveTimeSurges returns active time windows ordered by StartTime.
	ActiveTimeSurges(ctx context.Context) ([]model.TimeSurge, error)
	// WeatherSurge returns the active surge for the exact condition, or nil.
	WeatherSurge(ctx context.Context, condition model.WeatherCondition) (*model.WeatherSurge, error)
	// ActiveDemandSurges returns active demand bands ordered by MinOrdersPerHour.
	ActiveDemandSurges(ctx context.Context) ([]model.DemandSurge, error)
	// SpecialDaySurge returns the active surge for the date ("2006-01-02"), or nil.
	SpecialDaySurge(ctx context.Context, date string) (*model.SpecialDaySurge, error)
	// Promo returns the active promo for the code, or nil.
	Promo(ctx context.Context, code string) (*model.PromoConfig, error)
	// RestaurantOrdersPerHour returns the most recent demand sample for the
	// restaurant, or nil when no sufficiently fresh sample exists. Samples
	// are written by the demand-tracking process, not by this service.
	RestaurantOrdersPerHour(ctx context.Context, restaurantID string) (*int, error)
}

// demandSampleMaxAge bounds how old a demand sample may be before the
// tracker treats the signal as unavailable.
const demandSampleMaxAge = 30 * time.Minute

// Store is the full persistence interface: the reader plus the
// administrative write surface used by migrate/seed and ops tooling.
type Store interface {
	ConfigReader

	// Admin writes. Each validates before persisting.
	UpsertBaseFeeConfig(ctx context.Context, cfg model.BaseFeeConfig) error
	ReplaceDistanceRates(ctx context.Context, rates []model.DistanceRate) error
	UpsertTimeSurge(ctx context.Context, surge model.TimeSurge) error
	UpsertWeatherSurge(ctx context.Context, surge model.WeatherSurge) error
	UpsertDemandSurge(ctx context.Context, surge model.DemandSurge) error
	UpsertSpecialDaySurge(ctx context.Context, surge model.SpecialDaySurge) error
	UpsertPromo(ctx context.Context, promo model.PromoConfig) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
