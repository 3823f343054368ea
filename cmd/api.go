package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/plateful/pricing-engine/internal/model"
)

// quoteRequest is the POST /v1/quotes body. Coordinates are required;
// everything else is optional enrichment.
type quoteRequest struct {
	Pickup         model.Coordinate `json:"pickup"`
	Drop           model.Coordinate `json:"drop"`
	PickupPostcode string           `json:"pickup_postcode,omitempty"`
	DropPostcode   string           `json:"drop_postcode,omitempty"`
	City           string           `json:"city,omitempty"`
	OrderTime      *time.Time       `json:"order_time,omitempty"`
	OrderAmount    float64          `json:"order_amount"`
	ItemCount      int              `json:"item_count"`
	OrderWeight    *float64         `json:"order_weight,omitempty"`
	RestaurantID   string           `json:"restaurant_id"`
	CustomerID     string           `json:"customer_id,omitempty"`
	PromoCode      string           `json:"promo_code,omitempty"`
}

func (r quoteRequest) validate() string {
	if r.RestaurantID == "" {
		return "restaurant_id is required"
	}
	if r.Pickup == (model.Coordinate{}) || r.Drop == (model.Coordinate{}) {
		return "pickup and drop coordinates are required"
	}
	if r.OrderAmount < 0 {
		return "order_amount must be >= 0"
	}
	return ""
}

// newRouter builds the HTTP API for the quote server.
func newRouter(env *environment, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Post("/v1/quotes", handleQuote(env))
	r.Get("/v1/health", handleHealth(env))
	r.Get("/v1/stats", handleStats(env))
	return r
}

func handleQuote(env *environment) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg := req.validate(); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		orderTime := time.Now()
		if req.OrderTime != nil {
			orderTime = *req.OrderTime
		}

		pc := &model.PricingContext{
			PickupLocation: req.Pickup,
			DropLocation:   req.Drop,
			PickupPostcode: req.PickupPostcode,
			DropPostcode:   req.DropPostcode,
			City:           req.City,
			OrderTime:      orderTime,
			OrderAmount:    req.OrderAmount,
			ItemCount:      req.ItemCount,
			OrderWeight:    req.OrderWeight,
			RestaurantID:   req.RestaurantID,
			CustomerID:     req.CustomerID,
			PromoCode:      req.PromoCode,
		}

		// External signals: best effort, never a reason to refuse a quote.
		if env.Weather != nil {
			cond, err := env.Weather.CurrentCondition(r.Context(), req.Pickup.Latitude, req.Pickup.Longitude)
			if err != nil {
				zap.L().Warn("quote: weather lookup failed", zap.Error(err))
			} else {
				pc.Weather = cond
			}
		}
		pc.OrdersPerHour = env.Demand.CurrentOrdersPerHour(r.Context(), req.RestaurantID)

		quote, err := env.Engine.CalculateDeliveryFee(r.Context(), pc)
		if err != nil {
			zap.L().Error("quote: calculation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "quote calculation failed")
			return
		}

		writeJSON(w, http.StatusOK, quote)
	}
}

func handleHealth(env *environment) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := env.Store.Ping(r.Context()); err != nil {
			zap.L().Error("health: store ping failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleStats(env *environment) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"quotes": env.Metrics.Snapshot(),
			"cache":  env.Cache.Stats(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
