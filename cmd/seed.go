package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/plateful/pricing-engine/internal/db"
	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/store"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load pricing configuration from a YAML fixture",
	Long: `Reads a YAML fixture and upserts its pricing configuration into the
store. Re-running with the same file is safe: existing rows are updated
in place, and the distance-rate table is replaced as a whole.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "pricing.yaml", "fixture file to load")
	rootCmd.AddCommand(seedCmd)
}

// seedFixture is the YAML shape of a pricing fixture. Rows are active
// unless the fixture says otherwise.
type seedFixture struct {
	BaseFee *struct {
		Amount     float64  `yaml:"amount"`
		MinimumFee *float64 `yaml:"minimum_fee"`
		MaximumFee *float64 `yaml:"maximum_fee"`
	} `yaml:"base_fee"`

	DistanceRates []struct {
		MinKm float64  `yaml:"min_km"`
		MaxKm *float64 `yaml:"max_km"`
		Rate  float64  `yaml:"rate"`
	} `yaml:"distance_rates"`

	TimeSurges []struct {
		DayOfWeek *int    `yaml:"day_of_week"`
		Start     string  `yaml:"start"`
		End       string  `yaml:"end"`
		Amount    float64 `yaml:"amount"`
	} `yaml:"time_surges"`

	WeatherSurges []struct {
		Condition  string   `yaml:"condition"`
		FlatAmount *float64 `yaml:"flat_amount"`
		Multiplier *float64 `yaml:"multiplier"`
	} `yaml:"weather_surges"`

	DemandSurges []struct {
		MinOrdersPerHour int     `yaml:"min_orders_per_hour"`
		MaxOrdersPerHour *int    `yaml:"max_orders_per_hour"`
		Multiplier       float64 `yaml:"multiplier"`
	} `yaml:"demand_surges"`

	SpecialDays []struct {
		Date       string   `yaml:"date"`
		FlatAmount *float64 `yaml:"flat_amount"`
		Multiplier *float64 `yaml:"multiplier"`
		Reason     string   `yaml:"reason"`
	} `yaml:"special_days"`

	Promos []struct {
		Code        string  `yaml:"code"`
		PercentOff  float64 `yaml:"percent_off"`
		Description string  `yaml:"description"`
	} `yaml:"promos"`
}

func runSeed(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate("admin"); err != nil {
		return err
	}

	raw, err := os.ReadFile(seedFile)
	if err != nil {
		return eris.Wrapf(err, "seed: read %s", seedFile)
	}
	var fx seedFixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return eris.Wrapf(err, "seed: parse %s", seedFile)
	}

	ctx := cmd.Context()
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := applyFixture(ctx, st, fx); err != nil {
		return err
	}
	zap.L().Info("seed applied", zap.String("file", seedFile))
	return nil
}

func applyFixture(ctx context.Context, st store.Store, fx seedFixture) error {
	if fx.BaseFee != nil {
		err := st.UpsertBaseFeeConfig(ctx, model.BaseFeeConfig{
			Amount:     fx.BaseFee.Amount,
			MinimumFee: fx.BaseFee.MinimumFee,
			MaximumFee: fx.BaseFee.MaximumFee,
			Active:     true,
		})
		if err != nil {
			return eris.Wrap(err, "seed: base fee")
		}
	}

	if len(fx.DistanceRates) > 0 {
		rates := make([]model.DistanceRate, 0, len(fx.DistanceRates))
		for _, r := range fx.DistanceRates {
			rates = append(rates, model.DistanceRate{
				MinKm:  r.MinKm,
				MaxKm:  r.MaxKm,
				Rate:   r.Rate,
				Active: true,
			})
		}
		if err := st.ReplaceDistanceRates(ctx, rates); err != nil {
			return eris.Wrap(err, "seed: distance rates")
		}
	}

	for _, s := range fx.TimeSurges {
		surge := model.TimeSurge{
			StartTime: s.Start,
			EndTime:   s.End,
			Amount:    s.Amount,
			Active:    true,
		}
		if s.DayOfWeek != nil {
			d := time.Weekday(*s.DayOfWeek)
			surge.DayOfWeek = &d
		}
		if err := st.UpsertTimeSurge(ctx, surge); err != nil {
			return eris.Wrap(err, "seed: time surge")
		}
	}

	for _, s := range fx.WeatherSurges {
		err := st.UpsertWeatherSurge(ctx, model.WeatherSurge{
			Condition:  model.WeatherCondition(s.Condition),
			FlatAmount: s.FlatAmount,
			Multiplier: s.Multiplier,
			Active:     true,
		})
		if err != nil {
			return eris.Wrap(err, "seed: weather surge")
		}
	}

	for _, s := range fx.DemandSurges {
		err := st.UpsertDemandSurge(ctx, model.DemandSurge{
			MinOrdersPerHour: s.MinOrdersPerHour,
			MaxOrdersPerHour: s.MaxOrdersPerHour,
			Multiplier:       s.Multiplier,
			Active:           true,
		})
		if err != nil {
			return eris.Wrap(err, "seed: demand surge")
		}
	}

	for _, s := range fx.SpecialDays {
		err := st.UpsertSpecialDaySurge(ctx, model.SpecialDaySurge{
			Date:       s.Date,
			FlatAmount: s.FlatAmount,
			Multiplier: s.Multiplier,
			Reason:     s.Reason,
			Active:     true,
		})
		if err != nil {
			return eris.Wrap(err, "seed: special day surge")
		}
	}

	return seedPromos(ctx, st, fx)
}

// seedPromos bulk-loads promo codes. Fixtures for marketing campaigns can
// carry thousands of codes, so against Postgres this goes through the COPY
// based upsert instead of one round trip per code.
func seedPromos(ctx context.Context, st store.Store, fx seedFixture) error {
	if len(fx.Promos) == 0 {
		return nil
	}

	promos := make([]model.PromoConfig, 0, len(fx.Promos))
	for _, p := range fx.Promos {
		promo := model.PromoConfig{
			Code:        p.Code,
			PercentOff:  p.PercentOff,
			Description: p.Description,
			Active:      true,
		}
		if err := promo.Validate(); err != nil {
			return eris.Wrapf(err, "seed: promo %q", p.Code)
		}
		promos = append(promos, promo)
	}

	if ps, ok := st.(*store.PostgresStore); ok {
		rows := make([][]any, 0, len(promos))
		for _, p := range promos {
			rows = append(rows, []any{uuid.New().String(), p.Code, p.PercentOff, p.Description, p.Active})
		}
		n, err := db.BulkUpsert(ctx, ps.Pool(), db.UpsertConfig{
			Table:        "promos",
			Columns:      []string{"id", "code", "percent_off", "description", "active"},
			ConflictKeys: []string{"code"},
			UpdateCols:   []string{"percent_off", "description", "active"},
		}, rows)
		if err != nil {
			return eris.Wrap(err, "seed: promos")
		}
		zap.L().Info("promos upserted", zap.Int64("rows", n))
		return nil
	}

	for _, p := range promos {
		if err := st.UpsertPromo(ctx, p); err != nil {
			return eris.Wrapf(err, "seed: promo %q", p.Code)
		}
	}
	return nil
}
