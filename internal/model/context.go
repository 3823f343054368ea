package model

import (
	"time"

	"github.com/plateful/pricing-engine/internal/geo"
)

// Coordinate is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PricingContext is the immutable input bundle for a single quote
// calculation. Callers construct it once per request; nothing in the
// engine mutates it. External signals (weather, demand) are optional;
// a nil pointer means the signal was unavailable at assembly time.
type PricingContext struct {
	PickupLocation Coordinate `json:"pickup_location"`
	DropLocation   Coordinate `json:"drop_location"`
	PickupPostcode string     `json:"pickup_postcode,omitempty"`
	DropPostcode   string     `json:"drop_postcode,omitempty"`
	City           string     `json:"city,omitempty"`

	OrderTime    time.Time `json:"order_time"`
	OrderAmount  float64   `json:"order_amount"`
	ItemCount    int       `json:"item_count"`
	OrderWeight  *float64  `json:"order_weight,omitempty"`
	RestaurantID string    `json:"restaurant_id"`
	CustomerID   string    `json:"customer_id,omitempty"`
	PromoCode    string    `json:"promo_code,omitempty"`

	// External signals, resolved by the caller before quoting.
	Weather       *WeatherCondition `json:"weather,omitempty"`
	OrdersPerHour *int              `json:"orders_per_hour,omitempty"`
}

// DayOfWeek returns the weekday of the order timestamp.
func (c PricingContext) DayOfWeek() time.Weekday {
	return c.OrderTime.Weekday()
}

// TripDistanceKm returns the great-circle pickup-to-drop distance in
// kilometres. Recomputed on every call so the same formula backs every
// distance-sensitive rule.
func (c PricingContext) TripDistanceKm() float64 {
	return geo.HaversineKm(
		c.PickupLocation.Latitude, c.PickupLocation.Longitude,
		c.DropLocation.Latitude, c.DropLocation.Longitude,
	)
}
