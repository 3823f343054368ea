package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func TestBaseFeeConfig_Validate(t *testing.T) {
	assert.NoError(t, BaseFeeConfig{Amount: 30, Active: true}.Validate())
	assert.Error(t, BaseFeeConfig{Amount: -1}.Validate())
	assert.Error(t, BaseFeeConfig{Amount: 30, MinimumFee: f64(80), MaximumFee: f64(60)}.Validate())
	assert.NoError(t, BaseFeeConfig{Amount: 30, MinimumFee: f64(20), MaximumFee: f64(200)}.Validate())
}

func TestDistanceRate_Contains(t *testing.T) {
	band := DistanceRate{MinKm: 0, MaxKm: f64(5), Rate: 10}
	assert.True(t, band.Contains(0))
	assert.True(t, band.Contains(3))
	assert.True(t, band.Contains(4.999))
	assert.False(t, band.Contains(5)) // max is exclusive

	open := DistanceRate{MinKm: 10, Rate: 40}
	assert.True(t, open.Contains(10))
	assert.True(t, open.Contains(500))
	assert.False(t, open.Contains(9.9))
}

func TestDistanceRate_Validate(t *testing.T) {
	assert.Error(t, DistanceRate{MinKm: -1, Rate: 10}.Validate())
	assert.Error(t, DistanceRate{MinKm: 5, MaxKm: f64(5), Rate: 10}.Validate())
	assert.Error(t, DistanceRate{MinKm: 0, MaxKm: f64(5), Rate: -10}.Validate())
	assert.NoError(t, DistanceRate{MinKm: 0, MaxKm: f64(5), Rate: 10}.Validate())
}

func TestTimeSurge_Matches(t *testing.T) {
	friday := time.Date(2026, 8, 28, 19, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 8, 29, 19, 0, 0, 0, time.UTC)
	fri := time.Friday

	dayAgnostic := TimeSurge{StartTime: "18:00", EndTime: "21:00", Amount: 15}
	assert.True(t, dayAgnostic.Matches(friday))
	assert.True(t, dayAgnostic.Matches(saturday))

	fridayOnly := TimeSurge{DayOfWeek: &fri, StartTime: "18:00", EndTime: "21:00", Amount: 15}
	assert.True(t, fridayOnly.Matches(friday))
	assert.False(t, fridayOnly.Matches(saturday))

	// Window is inclusive on both ends.
	boundary := TimeSurge{StartTime: "19:00", EndTime: "19:00", Amount: 15}
	assert.True(t, boundary.Matches(friday))
	assert.False(t, boundary.Matches(friday.Add(time.Minute)))
}

func TestTimeSurge_Validate(t *testing.T) {
	assert.NoError(t, TimeSurge{StartTime: "08:00", EndTime: "10:00", Amount: 5}.Validate())
	assert.Error(t, TimeSurge{StartTime: "25:00", EndTime: "10:00"}.Validate())
	assert.Error(t, TimeSurge{StartTime: "08:00", EndTime: "07:00"}.Validate())
	assert.Error(t, TimeSurge{StartTime: "8am", EndTime: "10:00"}.Validate())
	assert.Error(t, TimeSurge{StartTime: "08:00", EndTime: "10:00", Amount: -5}.Validate())
}

func TestWeatherSurge_Validate(t *testing.T) {
	assert.NoError(t, WeatherSurge{Condition: WeatherHeavyRain, FlatAmount: f64(20)}.Validate())
	assert.NoError(t, WeatherSurge{Condition: WeatherSnow, Multiplier: f64(1.5)}.Validate())
	assert.Error(t, WeatherSurge{Condition: WeatherRain}.Validate(), "neither set")
	assert.Error(t, WeatherSurge{Condition: WeatherRain, FlatAmount: f64(20), Multiplier: f64(1.5)}.Validate(), "both set")
	assert.Error(t, WeatherSurge{Condition: "blizzard", FlatAmount: f64(20)}.Validate())
	assert.Error(t, WeatherSurge{Condition: WeatherRain, Multiplier: f64(0.9)}.Validate())
}

func TestDemandSurge_Matches(t *testing.T) {
	band := DemandSurge{MinOrdersPerHour: 20, Multiplier: 1.5}
	assert.True(t, band.Matches(20))
	assert.True(t, band.Matches(500))
	assert.False(t, band.Matches(19))

	bounded := DemandSurge{MinOrdersPerHour: 20, MaxOrdersPerHour: intp(40), Multiplier: 1.5}
	assert.True(t, bounded.Matches(39))
	assert.False(t, bounded.Matches(40)) // max is exclusive
}

func TestSpecialDaySurge_Validate(t *testing.T) {
	assert.NoError(t, SpecialDaySurge{Date: "2026-12-25", FlatAmount: f64(25), Reason: "Christmas"}.Validate())
	assert.Error(t, SpecialDaySurge{Date: "25-12-2026", FlatAmount: f64(25)}.Validate())
	assert.Error(t, SpecialDaySurge{Date: "2026-12-25"}.Validate())
}

func TestPromoConfig_Validate(t *testing.T) {
	require.NoError(t, PromoConfig{Code: "WELCOME10", PercentOff: 10}.Validate())
	assert.Error(t, PromoConfig{Code: "", PercentOff: 10}.Validate())
	assert.Error(t, PromoConfig{Code: "ZERO", PercentOff: 0}.Validate())
	assert.Error(t, PromoConfig{Code: "TOOBIG", PercentOff: 101}.Validate())
	assert.NoError(t, PromoConfig{Code: "FREE", PercentOff: 100}.Validate())
}
