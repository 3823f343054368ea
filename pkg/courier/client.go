// Package courier is the client for the third-party logistics quote API.
// It wraps the provider's HTTP endpoint with rate limiting, retries, and a
// circuit breaker; the pricing engine sees only GetQuote.
package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/pricing/rule"
	"github.com/plateful/pricing-engine/internal/resilience"
)

const (
	defaultBaseURL  = "https://api.shipquick.io"
	defaultProvider = "shipquick"
)

// quoteRequest is the request body for POST /v1/delivery-quotes.
type quoteRequest struct {
	Pickup        point    `json:"pickup"`
	Drop          point    `json:"drop"`
	OrderAmount   float64  `json:"order_amount"`
	OrderWeightKg *float64 `json:"order_weight_kg,omitempty"`
}

type point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// quoteResponse is the provider's quote payload.
type quoteResponse struct {
	QuoteID    string  `json:"quote_id"`
	Price      float64 `json:"price"`
	ETAMinutes int     `json:"eta_minutes"`
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithProviderName overrides the provider label stamped on quotes.
func WithProviderName(name string) Option {
	return func(c *Client) { c.provider = name }
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

// WithCircuitBreaker routes calls through the given breaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// Client calls the logistics provider's quote endpoint. It satisfies the
// pricing engine's quote provider contract.
type Client struct {
	apiKey   string
	baseURL  string
	provider string
	http     *http.Client
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
}

// NewClient creates a courier quote client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		baseURL:  defaultBaseURL,
		provider: defaultProvider,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name returns the provider label.
func (c *Client) Name() string { return c.provider }

// GetQuote requests a delivery quote for the trip. Transient provider
// errors are retried with backoff; a tripped breaker fails fast.
func (c *Client) GetQuote(ctx context.Context, req rule.QuoteRequest) (*model.ThirdPartyQuote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "courier: rate limit wait")
	}

	fetch := func(ctx context.Context) (*model.ThirdPartyQuote, error) {
		return c.fetchQuote(ctx, req)
	}
	if c.breaker != nil {
		inner := fetch
		fetch = func(ctx context.Context) (*model.ThirdPartyQuote, error) {
			return resilience.ExecuteVal(ctx, c.breaker, inner)
		}
	}
	return resilience.DoVal(ctx, c.retry, fetch)
}

func (c *Client) fetchQuote(ctx context.Context, req rule.QuoteRequest) (*model.ThirdPartyQuote, error) {
	body, err := json.Marshal(quoteRequest{
		Pickup:        point{Latitude: req.Pickup.Latitude, Longitude: req.Pickup.Longitude},
		Drop:          point{Latitude: req.Drop.Latitude, Longitude: req.Drop.Longitude},
		OrderAmount:   req.OrderAmount,
		OrderWeightKg: req.OrderWeight,
	})
	if err != nil {
		return nil, eris.Wrap(err, "courier: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/delivery-quotes", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "courier: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "courier: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "courier: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("courier: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result quoteResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "courier: unmarshal response")
	}

	return &model.ThirdPartyQuote{
		QuoteID:    result.QuoteID,
		Provider:   c.provider,
		Price:      result.Price,
		ETAMinutes: result.ETAMinutes,
	}, nil
}
