package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateful/pricing-engine/internal/configstore"
	"github.com/plateful/pricing-engine/internal/demand"
	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/monitoring"
	"github.com/plateful/pricing-engine/internal/pricing"
	"github.com/plateful/pricing-engine/internal/pricing/rule"
	"github.com/plateful/pricing-engine/internal/store"
)

func newTestEnv(t *testing.T) *environment {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "pricing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	ctx := context.Background()
	require.NoError(t, st.UpsertBaseFeeConfig(ctx, model.BaseFeeConfig{Amount: 30, Active: true}))
	five := 5.0
	require.NoError(t, st.ReplaceDistanceRates(ctx, []model.DistanceRate{
		{MinKm: 0, MaxKm: &five, Rate: 10, Active: true},
		{MinKm: 5, Rate: 25, Active: true},
	}))

	cache := configstore.New(st)
	registry := rule.NewRegistry()
	registry.Register(
		rule.NewBaseFee(cache),
		rule.NewDistance(cache),
		rule.NewTimeSurge(cache),
		rule.NewWeather(cache),
		rule.NewDemand(cache),
		rule.NewSpecialDay(cache),
		rule.NewPromo(cache),
		rule.NewThirdParty(nil),
	)
	metrics := monitoring.NewCollector()

	return &environment{
		Store:   st,
		Cache:   cache,
		Engine:  pricing.NewEngine(registry, cache, pricing.WithMetrics(metrics)),
		Demand:  demand.NewTracker(cache),
		Metrics: metrics,
	}
}

func postQuote(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/quotes", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestQuoteEndpoint(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env, 5*time.Second)

	orderTime := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	w := postQuote(t, h, quoteRequest{
		Pickup:       model.Coordinate{Latitude: 12.9716, Longitude: 77.5946},
		Drop:         model.Coordinate{Latitude: 12.9716, Longitude: 77.6216},
		OrderTime:    &orderTime,
		OrderAmount:  450,
		ItemCount:    2,
		RestaurantID: "rest-42",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var quote model.QuoteResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&quote))
	assert.NotEmpty(t, quote.QuoteID)
	assert.Equal(t, 30.0, quote.BaseFee)
	assert.Equal(t, 40.0, quote.FinalFee)
	assert.Len(t, quote.Breakdown, 2)
	assert.True(t, quote.ExpiresAt.After(quote.IssuedAt))
}

func TestQuoteEndpointValidation(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env, 5*time.Second)

	tests := []struct {
		name string
		req  quoteRequest
	}{
		{
			name: "missing restaurant",
			req: quoteRequest{
				Pickup: model.Coordinate{Latitude: 1, Longitude: 1},
				Drop:   model.Coordinate{Latitude: 2, Longitude: 2},
			},
		},
		{
			name: "missing coordinates",
			req:  quoteRequest{RestaurantID: "rest-42"},
		},
		{
			name: "negative amount",
			req: quoteRequest{
				Pickup:       model.Coordinate{Latitude: 1, Longitude: 1},
				Drop:         model.Coordinate{Latitude: 2, Longitude: 2},
				RestaurantID: "rest-42",
				OrderAmount:  -10,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postQuote(t, h, tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/quotes", bytes.NewReader([]byte("{not json")))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env, 5*time.Second)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealthEndpointDegraded(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env, 5*time.Second)
	require.NoError(t, env.Store.Close())

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	h := newRouter(env, 5*time.Second)

	// Issue one quote so the counters are non-zero.
	orderTime := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	w := postQuote(t, h, quoteRequest{
		Pickup:       model.Coordinate{Latitude: 12.9716, Longitude: 77.5946},
		Drop:         model.Coordinate{Latitude: 12.9716, Longitude: 77.6216},
		OrderTime:    &orderTime,
		RestaurantID: "rest-42",
	})
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Quotes monitoring.MetricsSnapshot `json:"quotes"`
		Cache  configstore.Stats          `json:"cache"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(1), body.Quotes.QuotesTotal)
	assert.Positive(t, body.Cache.Misses)
}
