// Package weather is the client for the current-conditions API. It maps
// the provider's condition vocabulary onto the normalized ordinal scale
// the weather surge rule compares against.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/resilience"
)

const defaultBaseURL = "https://api.skywatch.dev"

// conditionMap translates provider condition codes to the normalized
// scale. Lookup is case-insensitive; unmapped codes are treated as an
// unavailable signal, never as a surge trigger.
var conditionMap = map[string]model.WeatherCondition{
	"clear":         model.WeatherClear,
	"sunny":         model.WeatherClear,
	"partly_cloudy": model.WeatherPartlyCloudy,
	"few_clouds":    model.WeatherPartlyCloudy,
	"cloudy":        model.WeatherCloudy,
	"overcast":      model.WeatherCloudy,
	"fog":           model.WeatherFog,
	"mist":          model.WeatherFog,
	"haze":          model.WeatherFog,
	"drizzle":       model.WeatherDrizzle,
	"light_rain":    model.WeatherDrizzle,
	"rain":          model.WeatherRain,
	"heavy_rain":    model.WeatherHeavyRain,
	"downpour":      model.WeatherHeavyRain,
	"thunderstorm":  model.WeatherThunderstorm,
	"snow":          model.WeatherSnow,
	"sleet":         model.WeatherSnow,
}

// currentResponse is the provider's payload for GET /v1/current.
type currentResponse struct {
	Condition string  `json:"condition"`
	TempC     float64 `json:"temp_c"`
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithRetryConfig overrides the default retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// Client fetches current weather conditions.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a weather client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CurrentCondition returns the normalized weather condition at the given
// coordinates, or nil when the provider reports a code outside the known
// vocabulary. Callers treat nil as "signal unavailable".
func (c *Client) CurrentCondition(ctx context.Context, lat, lon float64) (*model.WeatherCondition, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "weather: rate limit wait")
	}

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*currentResponse, error) {
		return c.fetchCurrent(ctx, lat, lon)
	})
	if err != nil {
		return nil, err
	}

	code := strings.ToLower(strings.TrimSpace(resp.Condition))
	cond, ok := conditionMap[code]
	if !ok {
		zap.L().Warn("weather: unmapped condition code", zap.String("code", resp.Condition))
		return nil, nil
	}
	return &cond, nil
}

func (c *Client) fetchCurrent(ctx context.Context, lat, lon float64) (*currentResponse, error) {
	url := fmt.Sprintf("%s/v1/current?lat=%f&lon=%f", c.baseURL, lat, lon)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "weather: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "weather: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "weather: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("weather: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result currentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "weather: unmarshal response")
	}
	return &result, nil
}
