package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/plateful/pricing-engine/internal/model"
)

var quoteFlags struct {
	pickup       string
	drop         string
	amount       float64
	items        int
	weight       float64
	restaurantID string
	customerID   string
	promoCode    string
	city         string
	orderTime    string
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Calculate a one-off delivery fee quote",
	Long: `Calculates a delivery fee quote directly against the config store,
without going through the HTTP server. Useful for verifying pricing
config changes before they hit production traffic.

Coordinates are given as "lat,lon" pairs:

  pricing-engine quote --pickup 12.9716,77.5946 --drop 12.9352,77.6245 \
    --restaurant rest-42 --amount 450`,
	RunE: runQuote,
}

func init() {
	quoteCmd.Flags().StringVar(&quoteFlags.pickup, "pickup", "", "pickup coordinate as lat,lon (required)")
	quoteCmd.Flags().StringVar(&quoteFlags.drop, "drop", "", "drop coordinate as lat,lon (required)")
	quoteCmd.Flags().Float64Var(&quoteFlags.amount, "amount", 0, "order subtotal")
	quoteCmd.Flags().IntVar(&quoteFlags.items, "items", 1, "item count")
	quoteCmd.Flags().Float64Var(&quoteFlags.weight, "weight", 0, "order weight in kg")
	quoteCmd.Flags().StringVar(&quoteFlags.restaurantID, "restaurant", "", "restaurant id (required)")
	quoteCmd.Flags().StringVar(&quoteFlags.customerID, "customer", "", "customer id")
	quoteCmd.Flags().StringVar(&quoteFlags.promoCode, "promo", "", "promo code")
	quoteCmd.Flags().StringVar(&quoteFlags.city, "city", "", "city name")
	quoteCmd.Flags().StringVar(&quoteFlags.orderTime, "time", "", "order time in RFC3339 (default now)")
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate("quote"); err != nil {
		return err
	}
	if quoteFlags.restaurantID == "" {
		return eris.New("quote: --restaurant is required")
	}

	pickup, err := parseCoordinate(quoteFlags.pickup)
	if err != nil {
		return eris.Wrap(err, "quote: --pickup")
	}
	drop, err := parseCoordinate(quoteFlags.drop)
	if err != nil {
		return eris.Wrap(err, "quote: --drop")
	}

	orderTime := time.Now()
	if quoteFlags.orderTime != "" {
		orderTime, err = time.Parse(time.RFC3339, quoteFlags.orderTime)
		if err != nil {
			return eris.Wrap(err, "quote: --time")
		}
	}

	ctx := cmd.Context()
	env, err := initEnvironment(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	pc := &model.PricingContext{
		PickupLocation: pickup,
		DropLocation:   drop,
		City:           quoteFlags.city,
		OrderTime:      orderTime,
		OrderAmount:    quoteFlags.amount,
		ItemCount:      quoteFlags.items,
		RestaurantID:   quoteFlags.restaurantID,
		CustomerID:     quoteFlags.customerID,
		PromoCode:      quoteFlags.promoCode,
	}
	if quoteFlags.weight > 0 {
		pc.OrderWeight = &quoteFlags.weight
	}
	if env.Weather != nil {
		cond, werr := env.Weather.CurrentCondition(ctx, pickup.Latitude, pickup.Longitude)
		if werr == nil {
			pc.Weather = cond
		}
	}
	pc.OrdersPerHour = env.Demand.CurrentOrdersPerHour(ctx, quoteFlags.restaurantID)

	quote, err := env.Engine.CalculateDeliveryFee(ctx, pc)
	if err != nil {
		return err
	}

	printQuote(quote, pc)
	return nil
}

// parseCoordinate parses a "lat,lon" pair.
func parseCoordinate(s string) (model.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return model.Coordinate{}, eris.New("expected lat,lon")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return model.Coordinate{}, eris.Wrap(err, "latitude")
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return model.Coordinate{}, eris.Wrap(err, "longitude")
	}
	return model.Coordinate{Latitude: lat, Longitude: lon}, nil
}

func printQuote(quote *model.QuoteResult, pc *model.PricingContext) {
	p := message.NewPrinter(language.English)

	p.Fprintf(os.Stdout, "Quote %s\n", quote.QuoteID)
	p.Fprintf(os.Stdout, "  Distance:   %.1f km\n", pc.TripDistanceKm())
	for _, item := range quote.Breakdown {
		sign := ""
		if item.Applied > 0 {
			sign = "+"
		}
		p.Fprintf(os.Stdout, "  %-32s %s%.2f\n", item.Description, sign, item.Applied)
	}
	if quote.SurgeReason != "" {
		p.Fprintf(os.Stdout, "  Surge:      %s (x%.2f)\n", quote.SurgeReason, quote.Multiplier)
	}
	if quote.ThirdPartyQuote != nil {
		p.Fprintf(os.Stdout, "  Courier:    %s\n", quote.ThirdPartyQuote.Provider)
	}
	p.Fprintf(os.Stdout, "  Total:      %.2f\n", quote.FinalFee)
	p.Fprintf(os.Stdout, "  Expires:    %s\n", quote.ExpiresAt.Format(time.RFC3339))
}
