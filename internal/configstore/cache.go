// Package configstore layers a read-through TTL cache over a pricing
// configuration store. Every quote touches several config lookups, and the
// config itself changes rarely, so the engine reads through this cache
// instead of hitting the database per rule.
package configstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/plateful/pricing-engine/internal/model"
	"github.com/plateful/pricing-engine/internal/store"
)

// DefaultTTL is how long a cached config entry stays fresh. Admin changes
// take at most this long to reach quoting.
const DefaultTTL = 5 * time.Minute

// CachedReader wraps a store.ConfigReader with per-key TTL caching.
// Absent config is cached too, so a missing weather surge does not turn
// into a database query on every rainy-day quote.
type CachedReader struct {
	loader store.ConfigReader
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]*cacheEntry

	hits   atomic.Int64
	misses atomic.Int64

	nowFunc func() time.Time
}

type cacheEntry struct {
	value    any
	loadedAt time.Time
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// Option configures a CachedReader.
type Option func(*CachedReader)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *CachedReader) { c.ttl = ttl }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *CachedReader) { c.nowFunc = now }
}

// New creates a CachedReader backed by the given loader.
func New(loader store.ConfigReader, opts ...Option) *CachedReader {
	c := &CachedReader{
		loader:  loader,
		ttl:     DefaultTTL,
		entries: make(map[string]*cacheEntry),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedReader) lookup(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if c.nowFunc().Sub(entry.loadedAt) > c.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.value, true
}

func (c *CachedReader) put(key string, value any) {
	c.mu.Lock()
	c.entries[key] = &cacheEntry{value: value, loadedAt: c.nowFunc()}
	c.mu.Unlock()
}

// Invalidate drops every cached entry. Admin write paths call this so
// config changes apply without waiting out the TTL.
func (c *CachedReader) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// Stats returns cache performance statistics.
func (c *CachedReader) Stats() Stats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries: entries,
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate,
	}
}

func (c *CachedReader) ActiveBaseFeeConfig(ctx context.Context) (*model.BaseFeeConfig, error) {
	if v, ok := c.lookup("base_fee"); ok {
		return v.(*model.BaseFeeConfig), nil
	}
	cfg, err := c.loader.ActiveBaseFeeConfig(ctx)
	if err != nil {
		return nil, err
	}
	c.put("base_fee", cfg)
	return cfg, nil
}

func (c *CachedReader) ActiveDistanceRates(ctx context.Context) ([]model.DistanceRate, error) {
	if v, ok := c.lookup("distance_rates"); ok {
		return v.([]model.DistanceRate), nil
	}
	rates, err := c.loader.ActiveDistanceRates(ctx)
	if err != nil {
		return nil, err
	}
	c.put("distance_rates", rates)
	return rates, nil
}

func (c *CachedReader) ActiveTimeSurges(ctx context.Context) ([]model.TimeSurge, error) {
	if v, ok := c.lookup("time_surges"); ok {
		return v.([]model.TimeSurge), nil
	}
	surges, err := c.loader.ActiveTimeSurges(ctx)
	if err != nil {
		return nil, err
	}
	c.put("time_surges", surges)
	return surges, nil
}

func (c *CachedReader) WeatherSurge(ctx context.Context, condition model.WeatherCondition) (*model.WeatherSurge, error) {
	key := "weather:" + string(condition)
	if v, ok := c.lookup(key); ok {
		return v.(*model.WeatherSurge), nil
	}
	ws, err := c.loader.WeatherSurge(ctx, condition)
	if err != nil {
		return nil, err
	}
	c.put(key, ws)
	return ws, nil
}

func (c *CachedReader) ActiveDemandSurges(ctx context.Context) ([]model.DemandSurge, error) {
	if v, ok := c.lookup("demand_surges"); ok {
		return v.([]model.DemandSurge), nil
	}
	surges, err := c.loader.ActiveDemandSurges(ctx)
	if err != nil {
		return nil, err
	}
	c.put("demand_surges", surges)
	return surges, nil
}

func (c *CachedReader) SpecialDaySurge(ctx context.Context, date string) (*model.SpecialDaySurge, error) {
	key := "special_day:" + date
	if v, ok := c.lookup(key); ok {
		return v.(*model.SpecialDaySurge), nil
	}
	sd, err := c.loader.SpecialDaySurge(ctx, date)
	if err != nil {
		return nil, err
	}
	c.put(key, sd)
	return sd, nil
}

func (c *CachedReader) Promo(ctx context.Context, code string) (*model.PromoConfig, error) {
	key := "promo:" + code
	if v, ok := c.lookup(key); ok {
		return v.(*model.PromoConfig), nil
	}
	p, err := c.loader.Promo(ctx, code)
	if err != nil {
		return nil, err
	}
	c.put(key, p)
	return p, nil
}

// RestaurantOrdersPerHour is deliberately not cached. Demand samples are
// live signal, and the store already enforces its own staleness cutoff.
func (c *CachedReader) RestaurantOrdersPerHour(ctx context.Context, restaurantID string) (*int, error) {
	return c.loader.RestaurantOrdersPerHour(ctx, restaurantID)
}
