package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func conditionServer(t *testing.T, code string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/current", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.URL.Query().Get("lat"))
		assert.NotEmpty(t, r.URL.Query().Get("lon"))
		json.NewEncoder(w).Encode(currentResponse{Condition: code, TempC: 24.5})
	}))
}

func TestCurrentCondition(t *testing.T) {
	tests := []struct {
		code string
		want model.WeatherCondition
	}{
		{"clear", model.WeatherClear},
		{"Sunny", model.WeatherClear},
		{"overcast", model.WeatherCloudy},
		{"drizzle", model.WeatherDrizzle},
		{"HEAVY_RAIN", model.WeatherHeavyRain},
		{"thunderstorm", model.WeatherThunderstorm},
		{"sleet", model.WeatherSnow},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			srv := conditionServer(t, tt.code)
			defer srv.Close()

			c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryConfig(fastRetry()))
			cond, err := c.CurrentCondition(context.Background(), 12.9716, 77.5946)
			require.NoError(t, err)
			require.NotNil(t, cond)
			assert.Equal(t, tt.want, *cond)
		})
	}
}

func TestCurrentCondition_UnmappedCode(t *testing.T) {
	srv := conditionServer(t, "volcanic_ash")
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryConfig(fastRetry()))
	cond, err := c.CurrentCondition(context.Background(), 12.9716, 77.5946)
	require.NoError(t, err)
	assert.Nil(t, cond, "unknown vocabulary degrades to no signal")
}

func TestCurrentCondition_RetriesTransientFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(currentResponse{Condition: "rain"})
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryConfig(fastRetry()))
	cond, err := c.CurrentCondition(context.Background(), 12.9716, 77.5946)
	require.NoError(t, err)
	require.NotNil(t, cond)
	assert.Equal(t, model.WeatherRain, *cond)
	assert.Equal(t, 2, calls)
}

func TestCurrentCondition_PermanentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL), WithRetryConfig(fastRetry()))
	_, err := c.CurrentCondition(context.Background(), 12.9716, 77.5946)
	assert.Error(t, err)
}
