package rule

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateful/pricing-engine/internal/model"
)

// fakeConfig is an in-memory store.ConfigReader for rule tests.
type fakeConfig struct {
	baseFee       *model.BaseFeeConfig
	distanceRates []model.DistanceRate
	timeSurges    []model.TimeSurge
	weatherSurges map[model.WeatherCondition]*model.WeatherSurge
	demandSurges  []model.DemandSurge
	specialDays   map[string]*model.SpecialDaySurge
	promos        map[string]*model.PromoConfig
	err           error
}

func (f *fakeConfig) ActiveBaseFeeConfig(context.Context) (*model.BaseFeeConfig, error) {
	return f.baseFee, f.err
}

func (f *fakeConfig) ActiveDistanceRates(context.Context) ([]model.DistanceRate, error) {
	return f.distanceRates, f.err
}

func (f *fakeConfig) ActiveTimeSurges(context.Context) ([]model.TimeSurge, error) {
	return f.timeSurges, f.err
}

func (f *fakeConfig) WeatherSurge(_ context.Context, c model.WeatherCondition) (*model.WeatherSurge, error) {
	return f.weatherSurges[c], f.err
}

func (f *fakeConfig) ActiveDemandSurges(context.Context) ([]model.DemandSurge, error) {
	return f.demandSurges, f.err
}

func (f *fakeConfig) SpecialDaySurge(_ context.Context, date string) (*model.SpecialDaySurge, error) {
	return f.specialDays[date], f.err
}

func (f *fakeConfig) Promo(_ context.Context, code string) (*model.PromoConfig, error) {
	return f.promos[code], f.err
}

func (f *fakeConfig) RestaurantOrdersPerHour(context.Context, string) (*int, error) {
	return nil, f.err
}

// bangaloreTrip is a ~5 km hop used whenever a test needs nonzero distance.
func bangaloreTrip(t time.Time) *model.PricingContext {
	return &model.PricingContext{
		PickupLocation: model.Coordinate{Latitude: 12.9716, Longitude: 77.5946},
		DropLocation:   model.Coordinate{Latitude: 12.9352, Longitude: 77.6245},
		OrderTime:      t,
		OrderAmount:    450,
		ItemCount:      2,
		RestaurantID:   "rest-1",
	}
}

func TestBaseFee(t *testing.T) {
	ctx := context.Background()
	pc := bangaloreTrip(time.Now())

	t.Run("always applies", func(t *testing.T) {
		r := NewBaseFee(&fakeConfig{})
		ok, err := r.Applies(ctx, pc)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("contributes configured amount", func(t *testing.T) {
		r := NewBaseFee(&fakeConfig{baseFee: &model.BaseFeeConfig{Amount: 30, Active: true}})
		res, err := r.Calculate(ctx, pc)
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, NameBaseFee, res.Modification.RuleName)
		assert.Equal(t, model.KindFlat, res.Modification.Kind)
		assert.Equal(t, 30.0, res.Modification.Amount)
	})

	t.Run("no active config contributes nothing", func(t *testing.T) {
		r := NewBaseFee(&fakeConfig{})
		res, err := r.Calculate(ctx, pc)
		require.NoError(t, err)
		assert.Nil(t, res.Modification)
	})

	t.Run("store error propagates", func(t *testing.T) {
		r := NewBaseFee(&fakeConfig{err: eris.New("connection refused")})
		_, err := r.Calculate(ctx, pc)
		assert.Error(t, err)
	})
}

func TestDistance(t *testing.T) {
	ctx := context.Background()
	five := 5.0
	ten := 10.0
	cfg := &fakeConfig{distanceRates: []model.DistanceRate{
		{MinKm: 0, MaxKm: &five, Rate: 10, Active: true},
		{MinKm: 5, MaxKm: &ten, Rate: 20, Active: true},
		{MinKm: 10, Rate: 40, Active: true},
	}}
	r := NewDistance(cfg)

	t.Run("zero distance does not apply", func(t *testing.T) {
		pc := bangaloreTrip(time.Now())
		pc.DropLocation = pc.PickupLocation
		ok, err := r.Applies(ctx, pc)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("band containing trip wins", func(t *testing.T) {
		pc := bangaloreTrip(time.Now()) // ~5.2 km, falls in [5,10)
		ok, err := r.Applies(ctx, pc)
		require.NoError(t, err)
		require.True(t, ok)

		res, err := r.Calculate(ctx, pc)
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, 20.0, res.Modification.Amount)
		assert.Equal(t, model.KindFlat, res.Modification.Kind)
	})

	t.Run("open-ended last band", func(t *testing.T) {
		pc := bangaloreTrip(time.Now())
		pc.DropLocation = model.Coordinate{Latitude: 13.1986, Longitude: 77.7066} // airport, ~27 km
		res, err := r.Calculate(ctx, pc)
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, 40.0, res.Modification.Amount)
	})

	t.Run("no containing band contributes nothing", func(t *testing.T) {
		gap := &fakeConfig{distanceRates: []model.DistanceRate{
			{MinKm: 50, Rate: 100, Active: true},
		}}
		res, err := NewDistance(gap).Calculate(ctx, bangaloreTrip(time.Now()))
		require.NoError(t, err)
		assert.Nil(t, res.Modification)
	})
}

func TestTimeSurge(t *testing.T) {
	ctx := context.Background()
	fri := time.Friday
	cfg := &fakeConfig{timeSurges: []model.TimeSurge{
		{StartTime: "07:00", EndTime: "09:30", Amount: 10, Active: true},
		{DayOfWeek: &fri, StartTime: "18:00", EndTime: "21:00", Amount: 15, Active: true},
	}}
	r := NewTimeSurge(cfg)

	// 2026-08-28 is a Friday.
	friday := time.Date(2026, 8, 28, 19, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 8, 29, 19, 0, 0, 0, time.UTC)

	t.Run("day-specific window matches", func(t *testing.T) {
		res, err := r.Calculate(ctx, bangaloreTrip(friday))
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, 15.0, res.Modification.Amount)
	})

	t.Run("day-specific window rejects other days", func(t *testing.T) {
		ok, err := r.Applies(ctx, bangaloreTrip(saturday))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("day-agnostic window matches any day", func(t *testing.T) {
		res, err := r.Calculate(ctx, bangaloreTrip(time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)))
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, 10.0, res.Modification.Amount)
	})

	t.Run("window ends are inclusive", func(t *testing.T) {
		res, err := r.Calculate(ctx, bangaloreTrip(time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)))
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, 10.0, res.Modification.Amount)
	})

	t.Run("first matching window wins", func(t *testing.T) {
		overlap := &fakeConfig{timeSurges: []model.TimeSurge{
			{StartTime: "18:00", EndTime: "22:00", Amount: 5, Active: true},
			{DayOfWeek: &fri, StartTime: "18:00", EndTime: "21:00", Amount: 15, Active: true},
		}}
		res, err := NewTimeSurge(overlap).Calculate(ctx, bangaloreTrip(friday))
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, 5.0, res.Modification.Amount, "store order decides, no re-sorting")
	})
}

func TestWeather(t *testing.T) {
	ctx := context.Background()
	flat := 20.0
	mult := 1.3
	cfg := &fakeConfig{weatherSurges: map[model.WeatherCondition]*model.WeatherSurge{
		model.WeatherHeavyRain:    {Condition: model.WeatherHeavyRain, FlatAmount: &flat, Active: true},
		model.WeatherThunderstorm: {Condition: model.WeatherThunderstorm, Multiplier: &mult, Active: true},
	}}
	r := NewWeather(cfg)

	weatherCtx := func(c model.WeatherCondition) *model.PricingContext {
		pc := bangaloreTrip(time.Now())
		pc.Weather = &c
		return pc
	}

	t.Run("no weather signal does not apply", func(t *testing.T) {
		ok, err := r.Applies(ctx, bangaloreTrip(time.Now()))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("cloudy or better does not apply", func(t *testing.T) {
		for _, c := range []model.WeatherCondition{model.WeatherClear, model.WeatherPartlyCloudy, model.WeatherCloudy} {
			ok, err := r.Applies(ctx, weatherCtx(c))
			require.NoError(t, err)
			assert.False(t, ok, "condition %s", c)
		}
	})

	t.Run("flat surge", func(t *testing.T) {
		res, err := r.Calculate(ctx, weatherCtx(model.WeatherHeavyRain))
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, model.KindFlat, res.Modification.Kind)
		assert.Equal(t, 20.0, res.Modification.Amount)
	})

	t.Run("multiplier surge", func(t *testing.T) {
		res, err := r.Calculate(ctx, weatherCtx(model.WeatherThunderstorm))
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, model.KindMultiplier, res.Modification.Kind)
		assert.Equal(t, 1.3, res.Modification.Amount)
	})

	t.Run("bad weather without config contributes nothing", func(t *testing.T) {
		res, err := r.Calculate(ctx, weatherCtx(model.WeatherSnow))
		require.NoError(t, err)
		assert.Nil(t, res.Modification)
	})
}

func TestDemand(t *testing.T) {
	ctx := context.Background()
	forty := 40
	cfg := &fakeConfig{demandSurges: []model.DemandSurge{
		{MinOrdersPerHour: 20, MaxOrdersPerHour: &forty, Multiplier: 1.5, Active: true},
		{MinOrdersPerHour: 40, Multiplier: 2.0, Active: true},
	}}
	r := NewDemand(cfg)

	demandCtx := func(oph int) *model.PricingContext {
		pc := bangaloreTrip(time.Now())
		pc.OrdersPerHour = &oph
		return pc
	}

	t.Run("unknown demand does not apply", func(t *testing.T) {
		ok, err := r.Applies(ctx, bangaloreTrip(time.Now()))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("band match", func(t *testing.T) {
		res, err := r.Calculate(ctx, demandCtx(25))
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, model.KindMultiplier, res.Modification.Kind)
		assert.Equal(t, 1.5, res.Modification.Amount)
	})

	t.Run("max bound is exclusive", func(t *testing.T) {
		res, err := r.Calculate(ctx, demandCtx(40))
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, 2.0, res.Modification.Amount, "40 falls into the open-ended band")
	})

	t.Run("below all bands contributes nothing", func(t *testing.T) {
		res, err := r.Calculate(ctx, demandCtx(5))
		require.NoError(t, err)
		assert.Nil(t, res.Modification)
	})
}

func TestSpecialDay(t *testing.T) {
	ctx := context.Background()
	flat := 25.0
	cfg := &fakeConfig{specialDays: map[string]*model.SpecialDaySurge{
		"2026-12-25": {Date: "2026-12-25", FlatAmount: &flat, Reason: "Christmas Day", Active: true},
	}}
	r := NewSpecialDay(cfg)

	t.Run("configured date applies", func(t *testing.T) {
		pc := bangaloreTrip(time.Date(2026, 12, 25, 13, 0, 0, 0, time.UTC))
		ok, err := r.Applies(ctx, pc)
		require.NoError(t, err)
		require.True(t, ok)

		res, err := r.Calculate(ctx, pc)
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, "Christmas Day", res.Modification.Description)
		assert.Equal(t, 25.0, res.Modification.Amount)
	})

	t.Run("ordinary date does not apply", func(t *testing.T) {
		ok, err := r.Applies(ctx, bangaloreTrip(time.Date(2026, 12, 26, 13, 0, 0, 0, time.UTC)))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestPromo(t *testing.T) {
	ctx := context.Background()
	cfg := &fakeConfig{promos: map[string]*model.PromoConfig{
		"WELCOME10": {Code: "WELCOME10", PercentOff: 10, Active: true},
	}}
	r := NewPromo(cfg)

	t.Run("no code does not apply", func(t *testing.T) {
		ok, err := r.Applies(ctx, bangaloreTrip(time.Now()))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("known code contributes negative percentage", func(t *testing.T) {
		pc := bangaloreTrip(time.Now())
		pc.PromoCode = "WELCOME10"
		res, err := r.Calculate(ctx, pc)
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, model.KindPercentage, res.Modification.Kind)
		assert.Equal(t, -10.0, res.Modification.Amount)
	})

	t.Run("unknown code contributes nothing", func(t *testing.T) {
		pc := bangaloreTrip(time.Now())
		pc.PromoCode = "BOGUS"
		res, err := r.Calculate(ctx, pc)
		require.NoError(t, err)
		assert.Nil(t, res.Modification)
	})
}

type fakeProvider struct {
	quote  *model.ThirdPartyQuote
	err    error
	gotReq *QuoteRequest
}

func (p *fakeProvider) Name() string { return "speedyship" }

func (p *fakeProvider) GetQuote(_ context.Context, req QuoteRequest) (*model.ThirdPartyQuote, error) {
	p.gotReq = &req
	return p.quote, p.err
}

func TestThirdParty(t *testing.T) {
	ctx := context.Background()

	t.Run("nil provider disables the rule", func(t *testing.T) {
		r := NewThirdParty(nil)
		assert.False(t, r.Enabled())
	})

	t.Run("quote becomes flat modification plus side channel", func(t *testing.T) {
		p := &fakeProvider{quote: &model.ThirdPartyQuote{
			QuoteID: "sq-123", Provider: "speedyship", Price: 55, ETAMinutes: 35,
		}}
		r := NewThirdParty(p)
		require.True(t, r.Enabled())

		pc := bangaloreTrip(time.Now())
		res, err := r.Calculate(ctx, pc)
		require.NoError(t, err)
		require.NotNil(t, res.Modification)
		assert.Equal(t, 55.0, res.Modification.Amount)
		assert.Equal(t, model.KindFlat, res.Modification.Kind)
		require.NotNil(t, res.ThirdParty)
		assert.Equal(t, "sq-123", res.ThirdParty.QuoteID)
		assert.Equal(t, 35, res.ThirdParty.ETAMinutes)

		require.NotNil(t, p.gotReq)
		assert.Equal(t, pc.PickupLocation, p.gotReq.Pickup)
		assert.Equal(t, 450.0, p.gotReq.OrderAmount)
	})

	t.Run("provider error propagates for the engine to isolate", func(t *testing.T) {
		r := NewThirdParty(&fakeProvider{err: eris.New("upstream timeout")})
		_, err := r.Calculate(ctx, bangaloreTrip(time.Now()))
		assert.Error(t, err)
	})
}

func TestRegistry(t *testing.T) {
	cfg := &fakeConfig{}
	reg := NewRegistry()
	// Register deliberately out of priority order.
	reg.Register(NewDemand(cfg), NewBaseFee(cfg), NewThirdParty(nil), NewDistance(cfg))

	enabled := reg.Enabled()
	require.Len(t, enabled, 3, "disabled third-party rule excluded")
	assert.Equal(t, NameBaseFee, enabled[0].Name())
	assert.Equal(t, NameDistance, enabled[1].Name())
	assert.Equal(t, NameDemand, enabled[2].Name())

	assert.Len(t, reg.Names(), 4)
}
