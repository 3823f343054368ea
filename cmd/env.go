package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/plateful/pricing-engine/internal/configstore"
	"github.com/plateful/pricing-engine/internal/demand"
	"github.com/plateful/pricing-engine/internal/monitoring"
	"github.com/plateful/pricing-engine/internal/pricing"
	"github.com/plateful/pricing-engine/internal/pricing/rule"
	"github.com/plateful/pricing-engine/internal/resilience"
	"github.com/plateful/pricing-engine/internal/store"
	"github.com/plateful/pricing-engine/pkg/courier"
	"github.com/plateful/pricing-engine/pkg/weather"
)

// environment bundles the wired components shared by the serve and quote
// commands.
type environment struct {
	Store   store.Store
	Cache   *configstore.CachedReader
	Engine  *pricing.Engine
	Demand  *demand.Tracker
	Weather *weather.Client
	Metrics *monitoring.Collector
}

func (e *environment) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "pricing.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCourier builds the third-party quote client, or nil when no API key
// is configured. A nil client leaves the third-party rule disabled.
func initCourier() rule.QuoteProvider {
	if cfg.Courier.Key == "" {
		return nil
	}
	return courier.NewClient(cfg.Courier.Key,
		courier.WithBaseURL(cfg.Courier.BaseURL),
		courier.WithProviderName(cfg.Courier.Provider),
		courier.WithRateLimit(cfg.Courier.RequestsPerSec, cfg.Courier.Burst),
		courier.WithRetryConfig(resilience.FromRetryConfig(
			cfg.Courier.MaxAttempts, cfg.Courier.InitialBackoffMs, cfg.Courier.MaxBackoffMs)),
		courier.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.FromCircuitConfig(
			cfg.Courier.FailureThreshold, cfg.Courier.ResetTimeoutSecs))),
	)
}

// initWeather builds the weather client, or nil when no API key is
// configured. Without it quotes simply carry no weather signal.
func initWeather() *weather.Client {
	if cfg.Weather.Key == "" {
		return nil
	}
	return weather.NewClient(cfg.Weather.Key,
		weather.WithBaseURL(cfg.Weather.BaseURL),
		weather.WithRateLimit(cfg.Weather.RequestsPerSec, cfg.Weather.Burst),
	)
}

// initEnvironment wires the store, config cache, rule registry, and engine.
func initEnvironment(ctx context.Context) (*environment, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	cache := configstore.New(st,
		configstore.WithTTL(time.Duration(cfg.Pricing.ConfigCacheTTLSecs)*time.Second))

	registry := rule.NewRegistry()
	registry.Register(
		rule.NewBaseFee(cache),
		rule.NewDistance(cache),
		rule.NewTimeSurge(cache),
		rule.NewWeather(cache),
		rule.NewDemand(cache),
		rule.NewSpecialDay(cache),
		rule.NewPromo(cache),
		rule.NewThirdParty(initCourier()),
	)

	metrics := monitoring.NewCollector()
	opts := []pricing.Option{
		pricing.WithMetrics(metrics),
		pricing.WithQuoteTTL(time.Duration(cfg.Pricing.QuoteTTLSecs) * time.Second),
	}
	if cfg.Pricing.ParallelRules {
		opts = append(opts, pricing.WithParallelRules())
	}

	return &environment{
		Store:   st,
		Cache:   cache,
		Engine:  pricing.NewEngine(registry, cache, opts...),
		Demand:  demand.NewTracker(cache),
		Weather: initWeather(),
		Metrics: metrics,
	}, nil
}
