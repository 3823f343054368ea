package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Configuration entities are owned by administrative processes and are
// read-only from the engine's perspective within a request. Validation
// happens at write time (seed/upsert), which is what lets the engine treat
// composed fees as non-negative by construction.

// BaseFeeConfig is the foundational delivery charge plus optional fee
// bounds applied after composition.
type BaseFeeConfig struct {
	ID         string   `json:"id"`
	Amount     float64  `json:"amount"`
	MinimumFee *float64 `json:"minimum_fee,omitempty"`
	MaximumFee *float64 `json:"maximum_fee,omitempty"`
	Active     bool     `json:"active"`
}

// Validate checks write-time invariants.
func (c BaseFeeConfig) Validate() error {
	if c.Amount < 0 {
		return eris.New("base fee amount must be non-negative")
	}
	if c.MinimumFee != nil && *c.MinimumFee < 0 {
		return eris.New("minimum fee must be non-negative")
	}
	if c.MinimumFee != nil && c.MaximumFee != nil && *c.MinimumFee > *c.MaximumFee {
		return eris.New("minimum fee must not exceed maximum fee")
	}
	return nil
}

// DistanceRate is one band of the distance-rate table: a flat rate for
// trips whose distance falls in [MinKm, MaxKm). A nil MaxKm means the band
// is open-ended. Bands should not overlap; first match wins if they do.
type DistanceRate struct {
	ID     string   `json:"id"`
	MinKm  float64  `json:"min_km"`
	MaxKm  *float64 `json:"max_km,omitempty"`
	Rate   float64  `json:"rate"`
	Active bool     `json:"active"`
}

// Validate checks write-time invariants.
func (r DistanceRate) Validate() error {
	if r.MinKm < 0 {
		return eris.New("distance band minimum must be non-negative")
	}
	if r.MaxKm != nil && *r.MaxKm <= r.MinKm {
		return eris.New("distance band maximum must exceed minimum")
	}
	if r.Rate < 0 {
		return eris.New("distance rate must be non-negative")
	}
	return nil
}

// Contains reports whether the band covers the given distance.
func (r DistanceRate) Contains(km float64) bool {
	if km < r.MinKm {
		return false
	}
	return r.MaxKm == nil || km < *r.MaxKm
}

// TimeSurge adds a flat amount during a daily time window, optionally
// restricted to one weekday. Start and end are "HH:MM" wall-clock times
// and the window is inclusive on both ends.
type TimeSurge struct {
	ID        string        `json:"id"`
	DayOfWeek *time.Weekday `json:"day_of_week,omitempty"`
	StartTime string        `json:"start_time"`
	EndTime   string        `json:"end_time"`
	Amount    float64       `json:"amount"`
	Active    bool          `json:"active"`
}

// Validate checks write-time invariants.
func (s TimeSurge) Validate() error {
	start, err := parseMinuteOfDay(s.StartTime)
	if err != nil {
		return eris.Wrap(err, "time surge start")
	}
	end, err := parseMinuteOfDay(s.EndTime)
	if err != nil {
		return eris.Wrap(err, "time surge end")
	}
	if start > end {
		return eris.New("time surge window must not wrap midnight")
	}
	if s.Amount < 0 {
		return eris.New("time surge amount must be non-negative")
	}
	return nil
}

// Matches reports whether the window covers the given instant.
func (s TimeSurge) Matches(t time.Time) bool {
	if s.DayOfWeek != nil && *s.DayOfWeek != t.Weekday() {
		return false
	}
	start, err := parseMinuteOfDay(s.StartTime)
	if err != nil {
		return false
	}
	end, err := parseMinuteOfDay(s.EndTime)
	if err != nil {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	return minute >= start && minute <= end
}

// WeatherSurge raises the fee when the current weather matches Condition.
// Exactly one of FlatAmount or Multiplier is set; the config author decides
// which semantics the condition carries.
type WeatherSurge struct {
	ID         string           `json:"id"`
	Condition  WeatherCondition `json:"condition"`
	FlatAmount *float64         `json:"flat_amount,omitempty"`
	Multiplier *float64         `json:"multiplier,omitempty"`
	Active     bool             `json:"active"`
}

// Validate checks write-time invariants.
func (s WeatherSurge) Validate() error {
	if !s.Condition.Known() {
		return eris.Errorf("unknown weather condition %q", s.Condition)
	}
	return validateFlatOrMultiplier(s.FlatAmount, s.Multiplier)
}

// DemandSurge multiplies the fee when the restaurant's orders-per-hour
// falls in [MinOrdersPerHour, MaxOrdersPerHour). A nil max is open-ended.
type DemandSurge struct {
	ID               string  `json:"id"`
	MinOrdersPerHour int     `json:"min_orders_per_hour"`
	MaxOrdersPerHour *int    `json:"max_orders_per_hour,omitempty"`
	Multiplier       float64 `json:"multiplier"`
	Active           bool    `json:"active"`
}

// Validate checks write-time invariants.
func (s DemandSurge) Validate() error {
	if s.MinOrdersPerHour < 0 {
		return eris.New("demand band minimum must be non-negative")
	}
	if s.MaxOrdersPerHour != nil && *s.MaxOrdersPerHour <= s.MinOrdersPerHour {
		return eris.New("demand band maximum must exceed minimum")
	}
	if s.Multiplier < 1 {
		return eris.New("demand multiplier must be at least 1")
	}
	return nil
}

// Matches reports whether the band covers the given orders-per-hour value.
func (s DemandSurge) Matches(ordersPerHour int) bool {
	if ordersPerHour < s.MinOrdersPerHour {
		return false
	}
	return s.MaxOrdersPerHour == nil || ordersPerHour < *s.MaxOrdersPerHour
}

// SpecialDaySurge raises the fee on a specific calendar date ("2006-01-02").
type SpecialDaySurge struct {
	ID         string   `json:"id"`
	Date       string   `json:"date"`
	FlatAmount *float64 `json:"flat_amount,omitempty"`
	Multiplier *float64 `json:"multiplier,omitempty"`
	Reason     string   `json:"reason"`
	Active     bool     `json:"active"`
}

// Validate checks write-time invariants.
func (s SpecialDaySurge) Validate() error {
	if _, err := time.Parse("2006-01-02", s.Date); err != nil {
		return eris.Wrapf(err, "special day date %q", s.Date)
	}
	return validateFlatOrMultiplier(s.FlatAmount, s.Multiplier)
}

// PromoConfig is a percentage discount keyed by promo code. PercentOff is
// bounded to (0, 100] so a promo can never push the composed fee negative.
type PromoConfig struct {
	ID          string  `json:"id"`
	Code        string  `json:"code"`
	PercentOff  float64 `json:"percent_off"`
	Description string  `json:"description"`
	Active      bool    `json:"active"`
}

// Validate checks write-time invariants.
func (p PromoConfig) Validate() error {
	if strings.TrimSpace(p.Code) == "" {
		return eris.New("promo code is required")
	}
	if p.PercentOff <= 0 || p.PercentOff > 100 {
		return eris.New("promo percent off must be in (0, 100]")
	}
	return nil
}

func validateFlatOrMultiplier(flat, mult *float64) error {
	if (flat == nil) == (mult == nil) {
		return eris.New("exactly one of flat amount or multiplier must be set")
	}
	if flat != nil && *flat < 0 {
		return eris.New("flat amount must be non-negative")
	}
	if mult != nil && *mult < 1 {
		return eris.New("multiplier must be at least 1")
	}
	return nil
}

// parseMinuteOfDay parses "HH:MM" into minutes since midnight.
func parseMinuteOfDay(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
